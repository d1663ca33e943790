package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/layout"
)

// NewBackupsCommand creates the backups command group.
func NewBackupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Manage layout backups",
		Long: `List the layout backup snapshots or roll the layout back to the most
recent one. A snapshot is taken automatically before every mutating command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackupsList(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackupsList(cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rollback",
		Short: "Restore the most recent backup",
		Long: `Restore the layout document from the most recent backup, byte for byte.
The backup file itself is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			used, err := cmdCtx.Store.RollbackLast()
			if errors.Is(err, layout.ErrNoBackups) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No backups to roll back to.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("rollback: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored layout from %s\n", used)
			return nil
		},
	})

	return cmd
}

func runBackupsList(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	names, err := cmdCtx.Store.ListBackups()
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	if cmdCtx.Cfg.Output == "json" {
		if names == nil {
			names = []string{}
		}
		return renderJSON(cmd.OutOrStdout(), names)
	}
	renderBackupsTable(cmd.OutOrStdout(), names)
	return nil
}
