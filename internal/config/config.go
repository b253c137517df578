// Package config loads and validates monobuild.yaml.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/monobuild/internal/foundation/errors"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "monobuild.yaml"

// Config represents the application configuration.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Projects   ProjectsConfig   `yaml:"projects"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Steps      StepsConfig      `yaml:"steps"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
	Watch      WatchConfig      `yaml:"watch,omitempty"`
}

// RepositoryConfig locates the monorepo and its history.
type RepositoryConfig struct {
	Path                string `yaml:"path"`
	MainBranch          string `yaml:"main_branch"`
	IncludeLocalChanges bool   `yaml:"include_local_changes"`
	// MaxCommits bounds the branch history walk; 0 = unlimited. Changes in
	// commits beyond the limit are not seen, so a project whose last output
	// predates the cutoff can be missed. A warning is logged when it applies.
	MaxCommits          int    `yaml:"max_commits,omitempty"`
}

// ProjectsConfig controls manifest discovery.
type ProjectsConfig struct {
	ManifestNames []string `yaml:"manifest_names"`
	ManifestDir   string   `yaml:"manifest_dir"`
	Exclude       []string `yaml:"exclude,omitempty"`
}

// ArtifactBackend selects where stage outputs are recorded.
type ArtifactBackend string

const (
	ArtifactBackendFile   ArtifactBackend = "file"
	ArtifactBackendSQLite ArtifactBackend = "sqlite"
)

// ArtifactsConfig configures the output store. For the file backend Path is
// the directory name created next to each manifest; for sqlite it is the
// database file, relative to the repository.
type ArtifactsConfig struct {
	Backend ArtifactBackend `yaml:"backend"`
	Path    string          `yaml:"path"`
}

// StepsConfig configures how stage commands are executed.
type StepsConfig struct {
	Shell   string      `yaml:"shell"`
	Timeout string      `yaml:"timeout,omitempty"` // per command, e.g. "10m"; empty = none
	Retry   RetryConfig `yaml:"retry"`
}

// RetryConfig is the retry policy for failing commands.
type RetryConfig struct {
	Mode         RetryBackoffMode `yaml:"mode"`
	InitialDelay string           `yaml:"initial"`
	MaxDelay     string           `yaml:"max"`
	MaxRetries   int              `yaml:"max_retries"`
}

// LoggingConfig configures the default slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig configures Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath) // #nosec G304 -- user supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).Build()
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config file").
			WithContext("path", configPath).Fatal().Build()
	}

	normalize(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configPath when it exists. A missing file at the
// default location yields the defaults; a missing explicit file is an error.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) && configPath == DefaultPath {
		loadEnvFiles()
		return Default(), nil
	}
	return Load(configPath)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// StepTimeout returns the parsed per-command timeout, 0 when unset.
func (c *Config) StepTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Steps.Timeout)
	return d
}

// WatchDebounce returns the parsed watch debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return defaultWatchDebounce
	}
	return d
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	example := Default()
	example.Repository.IncludeLocalChanges = true
	example.Steps.Timeout = "30m"
	example.Steps.Retry.MaxRetries = 1
	example.Metrics.Textfile = ".monobuild/metrics.prom"

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}
