// Package commands implements the leapboard subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/cli/config"
	"github.com/leapstack-labs/leapboard/internal/controller"
	"github.com/leapstack-labs/leapboard/internal/dataset"
	"github.com/leapstack-labs/leapboard/internal/layout"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Store  *layout.Store
}

// NewCommandContext builds the store and shared dependencies from the loaded
// configuration.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	logger := config.GetLogger(cmd.Context())

	store := layout.NewStore(cfg.ProjectRoot,
		layout.WithLayoutFile(cfg.Layout.File),
		layout.WithBackupDir(cfg.Layout.BackupDir),
		layout.WithRetention(cfg.Layout.Retention),
		layout.WithLogger(logger),
	)

	return &CommandContext{Cfg: cfg, Logger: logger, Store: store}, nil
}

// OpenDataset attaches the configured dataset file. Commands that validate or
// inspect columns need it; plain layout commands do not.
func (c *CommandContext) OpenDataset(ctx context.Context) (*dataset.Dataset, error) {
	if c.Cfg.Dataset.Path == "" {
		return nil, fmt.Errorf("no dataset configured: set dataset.path in %s or pass --dataset", config.ConfigFileName)
	}
	return dataset.Open(ctx, c.Cfg.Dataset.Path, c.Logger)
}

// NewController builds the command controller over the store and dataset.
func (c *CommandContext) NewController(ds *dataset.Dataset) *controller.Controller {
	return controller.New(c.Store, c.Cfg.ProjectRoot, ds.Columns(),
		controller.WithInspector(ds),
		controller.WithLogger(c.Logger),
	)
}

// InspectOptions translates the configured inspection defaults.
func (c *CommandContext) InspectOptions() dataset.InspectOptions {
	return dataset.InspectOptions{
		RowLimit:   c.Cfg.Inspect.RowLimit,
		SampleMode: c.Cfg.Inspect.SampleMode,
		TopN:       c.Cfg.Inspect.Top,
	}
}
