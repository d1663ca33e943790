package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTabsCommand creates the tabs command.
func NewTabsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "List the dashboard tabs",
		Long: `List every tab of the layout document with its panel count and filters.

A missing layout file yields the default single-tab document; nothing is
written to disk.`,
		Example: `  # List tabs
  leapboard tabs

  # List tabs as JSON
  leapboard tabs --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			doc, err := cmdCtx.Store.Load()
			if err != nil {
				return fmt.Errorf("load layout: %w", err)
			}

			if cmdCtx.Cfg.Output == "json" {
				return renderJSON(cmd.OutOrStdout(), doc)
			}
			renderTabsTable(cmd.OutOrStdout(), doc)
			return nil
		},
	}
}
