package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Billy-Davies-2/mitzi/internal/editor"
	"github.com/Billy-Davies-2/mitzi/internal/models"
)

func tierCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Manage price tiers",
	}
	cmd.AddCommand(tierAddCmd(c), tierRemoveCmd(c), tierMoveCmd(c))
	return cmd
}

func tierAddCmd(c *cli) *cobra.Command {
	var tier models.Tier

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := editor.NewTierEditor(c.sheet).Add(cmd.Context(), tier)
			return report(cmd, doc, err)
		},
	}
	cmd.Flags().StringVar(&tier.Name, "name", "", "tier name")
	cmd.Flags().Float64Var(&tier.Price, "price", 0, "price in the sheet currency")
	cmd.Flags().StringVar(&tier.Image, "image", "/images/placeholder.jpg", "image reference")
	cmd.Flags().StringArrayVar(&tier.Info, "info", nil, "info line (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("tier id must be a number: %q", s)
	}
	return id, nil
}

func tierRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a tier by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			doc, err := editor.NewTierEditor(c.sheet).Remove(cmd.Context(), id)
			return report(cmd, doc, err)
		},
	}
}

func tierMoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <index>",
		Short: "Move a tier to a zero-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index must be a number: %q", args[1])
			}
			doc, err := editor.NewTierEditor(c.sheet).Move(cmd.Context(), id, index)
			return report(cmd, doc, err)
		},
	}
}
