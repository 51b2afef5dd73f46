package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Billy-Davies-2/mitzi/internal/app"
	"github.com/Billy-Davies-2/mitzi/internal/config"
	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/Billy-Davies-2/mitzi/internal/models"
	"github.com/Billy-Davies-2/mitzi/internal/store"
)

// cli holds what the subcommands share
type cli struct {
	cfg   *config.Config
	sheet *store.Store

	driver    string
	dir       string
	key       string
	staticDir string
	verbose   bool
}

func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the mitzi command tree
func NewRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "mitzi",
		Short:        "Edit and export the saved commission sheet",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.sheet == nil {
				return nil
			}
			return c.sheet.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.driver, "driver", "", "storage driver: file, sqlite, postgres or redis (default $STORE_DRIVER, or file)")
	flags.StringVar(&c.dir, "dir", "", "directory for the file driver (default $STORE_DIR)")
	flags.StringVar(&c.key, "key", "", "storage key (default $STORE_KEY)")
	flags.StringVar(&c.staticDir, "static", "", "directory tier images are read from (default $STATIC_DIR)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(showCmd(c), setCmd(c), resetCmd(c), tierCmd(c), ruleCmd(c), exportCmd(c))
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	level := "error"
	if c.verbose {
		level = "debug"
	}
	logger.InitWithWriter(cmd.ErrOrStderr(), level, "text")

	c.cfg = config.LoadFromEnv()
	if c.driver != "" {
		c.cfg.Store.Driver = c.driver
	} else if c.cfg.Store.Driver == "memory" {
		// nothing would survive the process
		c.cfg.Store.Driver = "file"
	}
	if c.dir != "" {
		c.cfg.Store.Dir = c.dir
	}
	if c.key != "" {
		c.cfg.Store.Key = c.key
	}
	if c.staticDir != "" {
		c.cfg.StaticDir = c.staticDir
	}

	sheet, err := app.OpenStore(cmd.Context(), c.cfg)
	if err != nil {
		return err
	}
	c.sheet = sheet
	return nil
}

// report prints doc, noting a change that could not be saved
func report(cmd *cobra.Command, doc models.Document, err error) error {
	if err != nil && !store.IsDegraded(err) {
		return err
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return printJSON(cmd.OutOrStdout(), doc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
