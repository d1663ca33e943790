package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names, checked in order.
const (
	ConfigFileName    = "leapboard.yaml"
	ConfigFileNameAlt = "leapboard.yml"
)

// maxUpwardSearchLevels limits how far up the directory tree to search for
// config files.
const maxUpwardSearchLevels = 10

// configFileUsed tracks the config file resolved by the last LoadConfig call.
var configFileUsed string

// configExistsIn checks if a leapboard config file exists in the directory.
func configExistsIn(dir string) bool {
	return findConfigFileIn(dir) != ""
}

// findConfigFileIn returns the config file path in dir, or "".
func findConfigFileIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a leapboard config
// file. Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root from CLI flags and filesystem.
// Priority:
//  1. Explicit --project-dir flag
//  2. Search upward from CWD for leapboard.yaml
//  3. Current working directory
func inferProjectRoot(flags *pflag.FlagSet) string {
	if flags != nil {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" && flags.Changed("project-dir") {
			abs, err := filepath.Abs(projectDir)
			if err == nil {
				return abs
			}
			return filepath.Clean(projectDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	projectRoot := inferProjectRoot(flags)

	// If an explicit config file is provided, its directory is the project
	// root unless --project-dir said otherwise.
	if cfgFile != "" && (flags == nil || !flags.Changed("project-dir")) {
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(absPath)
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"layout.file":         DefaultLayoutFile,
		"layout.backup_dir":   DefaultBackupDir,
		"layout.retention":    0,
		"dataset.path":        "",
		"agent.base_url":      DefaultBaseURL,
		"agent.model":         DefaultModel,
		"agent.api_key_env":   DefaultAPIKeyEnv,
		"inspect.row_limit":   DefaultRowLimit,
		"inspect.sample_mode": DefaultSampleMode,
		"inspect.top":         DefaultTop,
		"output":              DefaultOutput,
		"verbose":             false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = findConfigFileIn(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (LEAPBOARD_ prefix)
	// Transform: LEAPBOARD_DATASET_PATH -> dataset.path. Only the first
	// underscore splits section from key, so LAYOUT_BACKUP_DIR maps to
	// layout.backup_dir.
	if err := k.Load(env.Provider("LEAPBOARD_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "LEAPBOARD_"))
		return strings.Replace(key, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			switch f.Name {
			case "dataset":
				return "dataset.path", posflag.FlagVal(flags, f)
			case "layout":
				return "layout.file", posflag.FlagVal(flags, f)
			case "output", "verbose":
				return f.Name, posflag.FlagVal(flags, f)
			}
			// config and project-dir are resolved before koanf runs
			return "", nil
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot

	// The dataset path is resolved against the project root. Layout and
	// backup paths stay relative because the store anchors them itself.
	if cfg.Dataset.Path != "" && !filepath.IsAbs(cfg.Dataset.Path) {
		cfg.Dataset.Path = filepath.Join(projectRoot, cfg.Dataset.Path)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

func (c *Config) validate() error {
	switch c.Inspect.SampleMode {
	case "head", "random":
	default:
		return fmt.Errorf("invalid inspect.sample_mode %q (want head or random)", c.Inspect.SampleMode)
	}
	switch c.Output {
	case "table", "json":
	default:
		return fmt.Errorf("invalid output %q (want table or json)", c.Output)
	}
	if c.Layout.Retention < 0 {
		return fmt.Errorf("layout.retention must be >= 0, got %d", c.Layout.Retention)
	}
	return nil
}
