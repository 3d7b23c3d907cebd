package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/pkg/adapters/console"
	"github.com/aretw0/concierge/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the services and masters on offer",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(v, path)
		if err != nil {
			return err
		}

		cat := catalog.Default()
		if cfg.Catalog != "" {
			if cat, err = catalog.Load(cfg.Catalog); err != nil {
				return err
			}
		}
		if cfg.Business != "" {
			cat.Business = cfg.Business
		}

		text := cat.Markdown()
		if raw, _ := cmd.Flags().GetBool("raw"); !raw && term.IsTerminal(int(os.Stdout.Fd())) {
			width, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil {
				width = 80
			}
			if rendered, err := console.NewRenderer(width)(text); err == nil {
				text = rendered
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().Bool("raw", false, "Print markdown without rendering")
}
