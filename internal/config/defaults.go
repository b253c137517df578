package config

import (
	"path/filepath"
	"time"
)

const defaultWatchDebounce = 500 * time.Millisecond

// DefaultManifestNames are the manifest file names searched for.
var DefaultManifestNames = []string{"project.yml", "project.yaml", "project.toml"}

// normalize case-folds enumerations so defaults and validation see canonical values.
func normalize(cfg *Config) {
	if cfg.Logging.Level != "" {
		cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	}
	if cfg.Logging.Format != "" {
		cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	}
	if cfg.Steps.Retry.Mode != "" {
		if m := NormalizeRetryBackoff(string(cfg.Steps.Retry.Mode)); m != "" {
			cfg.Steps.Retry.Mode = m
		}
	}
	if cfg.Artifacts.Backend != "" {
		if b, ok := artifactBackendNormalizer.Lookup(string(cfg.Artifacts.Backend)); ok {
			cfg.Artifacts.Backend = b
		}
	}
}

// applyDefaults fills every unset field.
func applyDefaults(cfg *Config) {
	if cfg.Repository.Path == "" {
		cfg.Repository.Path = "."
	}
	if cfg.Repository.MainBranch == "" {
		cfg.Repository.MainBranch = "main"
	}

	if len(cfg.Projects.ManifestNames) == 0 {
		cfg.Projects.ManifestNames = append([]string(nil), DefaultManifestNames...)
	}
	if cfg.Projects.ManifestDir == "" {
		cfg.Projects.ManifestDir = "deployment"
	}

	if cfg.Artifacts.Backend == "" {
		cfg.Artifacts.Backend = ArtifactBackendFile
	}
	if cfg.Artifacts.Path == "" {
		switch cfg.Artifacts.Backend {
		case ArtifactBackendSQLite:
			cfg.Artifacts.Path = filepath.Join(".monobuild", "outputs.db")
		default:
			cfg.Artifacts.Path = ".monobuild"
		}
	}

	if cfg.Steps.Shell == "" {
		cfg.Steps.Shell = "/bin/sh"
	}
	if cfg.Steps.Retry.Mode == "" {
		cfg.Steps.Retry.Mode = RetryBackoffLinear
	}
	if cfg.Steps.Retry.InitialDelay == "" {
		cfg.Steps.Retry.InitialDelay = "1s"
	}
	if cfg.Steps.Retry.MaxDelay == "" {
		cfg.Steps.Retry.MaxDelay = "30s"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}

	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = defaultWatchDebounce.String()
	}
}
