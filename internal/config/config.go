package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all stenv configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Conda configuration
	Conda CondaConfig `yaml:"conda"`

	// Bootstrap target
	Bootstrap BootstrapConfig `yaml:"bootstrap"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// History ledger
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// CondaConfig configures the package-manager adapter.
type CondaConfig struct {
	// Binary is the conda executable ("conda", "mamba", or an absolute path).
	Binary string `yaml:"binary"`

	// Channels are extra channels passed to conda install.
	Channels []string `yaml:"channels"`
}

// BootstrapConfig configures the default bootstrap target.
// These mirror the manifest defaults and are overridden by an explicit
// manifest file when one is given.
type BootstrapConfig struct {
	EnvName       string `yaml:"env_name"`
	PythonVersion string `yaml:"python_version"`
	Package       string `yaml:"package"`
	DemoCommand   string `yaml:"demo_command"`
}

// ExecutionConfig configures the shell executor.
type ExecutionConfig struct {
	DefaultTimeout string   `yaml:"default_timeout"`
	CreateTimeout  string   `yaml:"create_timeout"`
	InstallTimeout string   `yaml:"install_timeout"`
	LaunchTimeout  string   `yaml:"launch_timeout"`
	MaxOutputBytes int64    `yaml:"max_output_bytes"`
	AllowedEnvVars []string `yaml:"allowed_env_vars"`
}

// HistoryConfig configures the bootstrap run ledger.
type HistoryConfig struct {
	DatabasePath string `yaml:"database_path"`
	Enabled      bool   `yaml:"enabled"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "stenv",
		Version: "0.1.0",

		Conda: CondaConfig{
			Binary:   "conda",
			Channels: []string{},
		},

		Bootstrap: BootstrapConfig{
			EnvName:       "stenv",
			PythonVersion: "3.9",
			Package:       "streamlit",
			DemoCommand:   "streamlit hello",
		},

		Execution: ExecutionConfig{
			DefaultTimeout: "30s",
			CreateTimeout:  "5m",
			InstallTimeout: "10m",
			LaunchTimeout:  "30s",
			MaxOutputBytes: 10 * 1024 * 1024,
			AllowedEnvVars: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR", "CONDA_EXE", "CONDA_PREFIX"},
		},

		History: HistoryConfig{
			DatabasePath: filepath.Join(".stenv", "history.db"),
			Enabled:      true,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns the config path inside a workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, ".stenv", "config.yaml")
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if bin := os.Getenv("STENV_CONDA"); bin != "" {
		c.Conda.Binary = bin
	}
	if name := os.Getenv("STENV_ENV_NAME"); name != "" {
		c.Bootstrap.EnvName = name
	}
	if ver := os.Getenv("STENV_PYTHON"); ver != "" {
		c.Bootstrap.PythonVersion = ver
	}
	if pkg := os.Getenv("STENV_PACKAGE"); pkg != "" {
		c.Bootstrap.Package = pkg
	}
	if path := os.Getenv("STENV_DB"); path != "" {
		c.History.DatabasePath = path
	}
}

// GetExecutionTimeout returns the default execution timeout as a duration.
func (c *Config) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.DefaultTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetCreateTimeout returns the environment-creation timeout as a duration.
func (c *Config) GetCreateTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.CreateTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetInstallTimeout returns the package-install timeout as a duration.
func (c *Config) GetInstallTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.InstallTimeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetLaunchTimeout returns the demo-launch timeout as a duration.
func (c *Config) GetLaunchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.LaunchTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Conda.Binary == "" {
		return fmt.Errorf("conda binary not configured")
	}
	if c.Bootstrap.EnvName == "" {
		return fmt.Errorf("bootstrap environment name not configured")
	}
	if strings.ContainsAny(c.Bootstrap.EnvName, " /\\") {
		return fmt.Errorf("invalid environment name: %q", c.Bootstrap.EnvName)
	}
	if c.Bootstrap.Package == "" {
		return fmt.Errorf("bootstrap package not configured")
	}
	if c.Bootstrap.DemoCommand == "" {
		return fmt.Errorf("bootstrap demo command not configured")
	}
	return nil
}
