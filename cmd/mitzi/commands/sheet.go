package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Billy-Davies-2/mitzi/internal/store"
)

func showCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved sheet as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), c.sheet.Get())
		},
	}
}

// set <field> <json>: change one sheet field, e.g. set currency '"euro"'
func setCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> <json-value>",
		Short: "Set a sheet field (template, artistName, currency, colors, links.<type>, font)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := json.RawMessage(args[1])
			if !json.Valid(value) {
				// bare words are taken as strings
				quoted, _ := json.Marshal(args[1])
				value = quoted
			}
			change, err := store.ParseChange(args[0], value)
			if err != nil {
				return err
			}
			doc, err := c.sheet.Apply(cmd.Context(), change)
			return report(cmd, doc, err)
		},
	}
}

func resetCmd(c *cli) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the starter sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if purge {
				if err := c.sheet.DiscardBackup(cmd.Context()); err != nil {
					return err
				}
			}
			doc, err := c.sheet.Reset(cmd.Context())
			return report(cmd, doc, err)
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "also delete the backup of an unreadable sheet")
	return cmd
}
