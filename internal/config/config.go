// Package config handles configuration loading and management for foldcrew.
// It supports XDG config paths, project-level overrides, a .env file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ProjectConfigName is the project override file searched for upward from
// the working directory.
const ProjectConfigName = ".foldcrew.yaml"

// Config holds all configuration for foldcrew.
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	RunID     RunIDConfig     `mapstructure:"run_id"`
	ESMFold   ESMFoldConfig   `mapstructure:"esmfold"`
	Boltz     BoltzConfig     `mapstructure:"boltz"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Selection SelectionConfig `mapstructure:"selection"`
	Log       LogConfig       `mapstructure:"log"`
	State     StateConfig     `mapstructure:"state"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// WorkspaceConfig holds the base directories for per-run directories.
type WorkspaceConfig struct {
	InputRoot  string `mapstructure:"input_root"`
	OutputRoot string `mapstructure:"output_root"`
}

// RunIDConfig controls run id generation.
type RunIDConfig struct {
	// UniqueSuffix appends a random suffix so runs started in the same
	// minute get distinct ids.
	UniqueSuffix bool `mapstructure:"unique_suffix"`
}

// ESMFoldConfig holds the hosted ESMFold endpoint settings.
type ESMFoldConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// BoltzConfig holds the local boltz CLI settings.
type BoltzConfig struct {
	Executable    string        `mapstructure:"executable"`
	Devices       int           `mapstructure:"devices"`
	OutputFormat  string        `mapstructure:"output_format"`
	UseMSAServer  bool          `mapstructure:"use_msa_server"`
	SuccessMarker string        `mapstructure:"success_marker"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// OracleConfig selects the model selection oracle.
type OracleConfig struct {
	// Provider is one of rules, static, anthropic, bedrock, openai.
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	StaticModels []string      `mapstructure:"static_models"`
	AWSRegion    string        `mapstructure:"aws_region"`
	AWSProfile   string        `mapstructure:"aws_profile"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SelectionConfig controls the gate and human approval.
type SelectionConfig struct {
	DropUnknown bool `mapstructure:"drop_unknown"`
	// Approval is one of auto, prompt, file.
	Approval        string        `mapstructure:"approval"`
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// StateConfig locates the run ledger.
type StateConfig struct {
	// Path is the SQLite file. Empty means <workspace>/.foldcrew/state.db.
	Path string `mapstructure:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr serves /metrics during a run when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from XDG paths, project overrides, a .env file
// and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (FOLDCREW_*, NVIDIA_NIM_API_KEY, ANTHROPIC_API_KEY, OPENAI_API_KEY)
// 2. .env in the current directory (never overrides the real environment)
// 3. Project config (.foldcrew.yaml in current directory or parent)
// 4. User config (~/.config/foldcrew/config.yaml)
// 5. Built-in defaults
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file plus environment
// overrides.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment.
// A missing file is not an error. Variables already set are kept.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("FOLDCREW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("esmfold.api_key", "FOLDCREW_ESMFOLD_API_KEY", "NVIDIA_NIM_API_KEY")
	v.BindEnv("anthropic.api_key", "FOLDCREW_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.base_url", "FOLDCREW_ANTHROPIC_BASE_URL", "ANTHROPIC_BASE_URL")
	v.BindEnv("openai.api_key", "FOLDCREW_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "FOLDCREW_OPENAI_BASE_URL", "OPENAI_BASE_URL")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.ESMFold.APIKey = expandEnv(cfg.ESMFold.APIKey)
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	cfg.Workspace.InputRoot = expandEnv(cfg.Workspace.InputRoot)
	cfg.Workspace.OutputRoot = expandEnv(cfg.Workspace.OutputRoot)
	cfg.State.Path = expandEnv(cfg.State.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Oracle.Provider) {
	case "rules", "static", "anthropic", "bedrock", "openai":
	default:
		return fmt.Errorf("invalid oracle.provider %q: want rules, static, anthropic, bedrock or openai", c.Oracle.Provider)
	}
	switch strings.ToLower(c.Selection.Approval) {
	case "auto", "prompt", "file":
	default:
		return fmt.Errorf("invalid selection.approval %q: want auto, prompt or file", c.Selection.Approval)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format %q: want console or json", c.Log.Format)
	}
	if c.Boltz.Devices < 1 {
		return fmt.Errorf("invalid boltz.devices %d: must be at least 1", c.Boltz.Devices)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveToPath(cfg, GetUserConfigPath())
}

// SaveToPath writes the configuration to path.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	for _, f := range fields {
		val := f.get(cfg)
		if d, ok := val.(time.Duration); ok {
			val = d.String()
		}
		v.Set(f.Key, val)
	}

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()
	for _, f := range fields {
		v.SetDefault(f.Key, f.get(d))
	}
}

// getUserConfigDir returns the XDG config directory for foldcrew.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foldcrew")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foldcrew")
	}
	return filepath.Join(home, ".config", "foldcrew")
}

// findProjectConfig searches for .foldcrew.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			InputRoot:  "input",
			OutputRoot: "output",
		},
		RunID: RunIDConfig{
			UniqueSuffix: true,
		},
		ESMFold: ESMFoldConfig{
			Endpoint: "https://health.api.nvidia.com/v1/biology/nvidia/esmfold",
			Timeout:  5 * time.Minute,
		},
		Boltz: BoltzConfig{
			Executable:    "boltz",
			Devices:       1,
			OutputFormat:  "pdb",
			UseMSAServer:  true,
			SuccessMarker: "Number of failed examples: 0",
			Timeout:       2 * time.Hour,
		},
		Oracle: OracleConfig{
			Provider:     "rules",
			StaticModels: []string{},
			Timeout:      2 * time.Minute,
		},
		Selection: SelectionConfig{
			Approval:        "auto",
			ApprovalTimeout: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
