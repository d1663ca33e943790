package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/dataset"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	var (
		rows       int
		sampleMode string
		top        int
	)

	cmd := &cobra.Command{
		Use:   "inspect <column>",
		Short: "Summarize one dataset column",
		Long: `Compute summary statistics for a single dataset column: missing counts,
numeric stats and quantiles, top values with an NA category, a distinct-count
estimate, and a handful of sample values.

Large columns are subsampled. Head mode reads a prefix; random mode draws a
seeded sample so repeated calls agree.`,
		Example: `  # Inspect with defaults
  leapboard inspect thickness

  # Random sample of 50k rows, top 10 values
  leapboard inspect defects --rows 50000 --sample random --top 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			ds, err := cmdCtx.OpenDataset(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			opts := cmdCtx.InspectOptions()
			if cmd.Flags().Changed("rows") {
				opts.RowLimit = rows
			}
			if cmd.Flags().Changed("sample") {
				opts.SampleMode = sampleMode
			}
			if cmd.Flags().Changed("top") {
				opts.TopN = top
			}
			if opts.SampleMode != dataset.SampleHead && opts.SampleMode != dataset.SampleRandom {
				return fmt.Errorf("invalid sample mode %q (want head or random)", opts.SampleMode)
			}

			report, err := ds.Inspect(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			if cmdCtx.Cfg.Output == "json" {
				return renderJSON(cmd.OutOrStdout(), report)
			}
			renderReportTable(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", dataset.DefaultRowLimit, "Maximum rows to sample")
	cmd.Flags().StringVar(&sampleMode, "sample", dataset.SampleHead, "Sampling mode (head|random)")
	cmd.Flags().IntVar(&top, "top", dataset.DefaultTopN, "Number of top values to report")

	return cmd
}
