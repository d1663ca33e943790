package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapboard/internal/cli/config"
	"github.com/leapstack-labs/leapboard/internal/layout"
)

// initConfig is the config file template written by init. It mirrors the
// koanf sections without pulling the resolved runtime Config into YAML.
type initConfig struct {
	Layout struct {
		File      string `yaml:"file"`
		BackupDir string `yaml:"backup_dir"`
		Retention int    `yaml:"retention"`
	} `yaml:"layout"`
	Dataset struct {
		Path string `yaml:"path"`
	} `yaml:"dataset"`
	Agent struct {
		Model     string `yaml:"model"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"agent"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var datasetPath string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapboard project",
		Long: `Initialize a new leapboard project.

This creates:
  - leapboard.yaml configuration file
  - layout.json with the default single-tab layout`,
		Example: `  # Initialize in current directory
  leapboard init

  # Initialize a new directory with a dataset
  leapboard init my-dashboard --dataset-path data/production.parquet

  # Force overwrite existing config
  leapboard init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, datasetPath, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&datasetPath, "dataset-path", "", "Dataset path written to the config file")

	return cmd
}

func runInit(cmd *cobra.Command, dir, datasetPath string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	var tpl initConfig
	tpl.Layout.File = config.DefaultLayoutFile
	tpl.Layout.BackupDir = config.DefaultBackupDir
	tpl.Dataset.Path = datasetPath
	tpl.Agent.Model = config.DefaultModel
	tpl.Agent.APIKeyEnv = config.DefaultAPIKeyEnv

	data, err := yaml.Marshal(&tpl)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", config.ConfigFileName, err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created %s\n", configPath)

	// Seed the default layout unless one is already there
	store := layout.NewStore(dir, layout.WithLayoutFile(config.DefaultLayoutFile))
	if _, err := os.Stat(store.Path()); os.IsNotExist(err) {
		if err := store.Save(layout.DefaultDocument()); err != nil {
			return fmt.Errorf("write layout: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Created %s\n", store.Path())
	}

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Leapboard project initialized!")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintf(out, "  1. Point dataset.path at your data file in %s\n", config.ConfigFileName)
	_, _ = fmt.Fprintf(out, "  2. Export your API key: export %s=...\n", config.DefaultAPIKeyEnv)
	_, _ = fmt.Fprintln(out, "  3. Run 'leapboard agent' to start editing the dashboard")

	return nil
}
