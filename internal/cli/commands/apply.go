package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/controller"
	"github.com/leapstack-labs/leapboard/internal/extract"
)

// NewApplyCommand creates the apply command.
func NewApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply [commands...]",
		Short: "Apply JSON commands to the dashboard",
		Long: `Extract JSON command objects from the arguments (or stdin when no
arguments are given) and apply them in order. Commands may be bare objects,
newline-separated objects, or a JSON array; surrounding prose is ignored.

Each command fails independently; a failed command never aborts the batch.
The exit code is non-zero if any command failed.`,
		Example: `  # Apply a single command
  leapboard apply '{"action":"add_tab","name":"Quality"}'

  # Pipe a model transcript through the extractor
  cat transcript.txt | leapboard apply`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, "\n")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			cmds := extract.Objects(text)
			if len(cmds) == 0 {
				return fmt.Errorf("no JSON commands found in input")
			}

			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			ds, err := cmdCtx.OpenDataset(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = ds.Close() }()

			ctrl := cmdCtx.NewController(ds)

			results := make([]controller.Result, 0, len(cmds))
			failed := 0
			for _, raw := range cmds {
				res := ctrl.Apply(cmd.Context(), raw)
				if !res.OK {
					failed++
				}
				results = append(results, res)
			}

			if cmdCtx.Cfg.Output == "json" {
				if err := renderJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				for _, res := range results {
					renderResult(cmd.OutOrStdout(), res)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d commands failed", failed, len(results))
			}
			return nil
		},
	}

	return cmd
}
