package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Billy-Davies-2/mitzi/internal/fonts"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/render"
)

// export png|xlsx: render the saved sheet to a file ("-" for stdout)
func exportCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "export <png|xlsx>",
		Short:     "Render the saved sheet",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(models.ExportPNG), string(models.ExportXLSX)},
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := fonts.NewRegistry()
			if err != nil {
				return err
			}

			renderer := render.NewRenderer(registry,
				render.WithImages(render.NewImages(c.cfg.StaticDir)),
				render.WithFontLoader(fonts.NewLoader(registry)),
			)
			a, err := renderer.Export(cmd.Context(), c.sheet.Get(), models.ExportFormat(args[0]), "cli")
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(a.Data)
				return err
			}
			if output == "" {
				output = a.Filename
			}
			if err := os.WriteFile(output, a.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(a.Data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default commission-sheet.<format>, - for stdout)")
	return cmd
}
