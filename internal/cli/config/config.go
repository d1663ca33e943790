// Package config loads leapboard configuration from file, environment, and
// CLI flags, and resolves the project root every store path hangs off.
package config

// LayoutConfig locates the layout document and its backups, relative to the
// project root.
type LayoutConfig struct {
	File      string `koanf:"file"`
	BackupDir string `koanf:"backup_dir"`
	// Retention caps how many backups are kept; 0 keeps the full audit trail.
	Retention int `koanf:"retention"`
}

// DatasetConfig locates the tabular source file.
type DatasetConfig struct {
	Path string `koanf:"path"`
}

// AgentConfig configures the text-generation service.
type AgentConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	// APIKeyEnv names the environment variable holding the key, so the key
	// itself never lives in a config file.
	APIKeyEnv string `koanf:"api_key_env"`
}

// InspectConfig holds column-inspection defaults, overridable per command.
type InspectConfig struct {
	RowLimit   int    `koanf:"row_limit"`
	SampleMode string `koanf:"sample_mode"`
	Top        int    `koanf:"top"`
}

// Config is the resolved configuration for one invocation.
type Config struct {
	// ProjectRoot is absolute; it is inferred, not read from the file.
	ProjectRoot string `koanf:"-"`

	Layout  LayoutConfig  `koanf:"layout"`
	Dataset DatasetConfig `koanf:"dataset"`
	Agent   AgentConfig   `koanf:"agent"`
	Inspect InspectConfig `koanf:"inspect"`

	Output  string `koanf:"output"`
	Verbose bool   `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultLayoutFile = "layout.json"
	DefaultBackupDir  = ".backups/layout"
	DefaultModel      = "gpt-4.1-mini"
	DefaultAPIKeyEnv  = "OPENAI_API_KEY"
	DefaultBaseURL    = "https://api.openai.com"
	DefaultRowLimit   = 100000
	DefaultSampleMode = "head"
	DefaultTop        = 20
	DefaultOutput     = "table"
)
