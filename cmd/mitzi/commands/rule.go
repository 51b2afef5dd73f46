package commands

import (
	"github.com/spf13/cobra"

	"github.com/Billy-Davies-2/mitzi/internal/editor"
)

func ruleCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage the rules list",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <text>",
			Short: "Append a rule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				doc, err := editor.NewRuleEditor(c.sheet).Add(cmd.Context(), args[0])
				return report(cmd, doc, err)
			},
		},
		&cobra.Command{
			Use:   "remove <text>",
			Short: "Remove the first rule with this text",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				doc, err := editor.NewRuleEditor(c.sheet).Remove(cmd.Context(), args[0])
				return report(cmd, doc, err)
			},
		},
	)
	return cmd
}
