package config

import (
	"strings"
	"time"

	"git.home.luguber.info/inful/monobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/monobuild/internal/foundation/normalization"
)

var artifactBackendNormalizer = normalization.NewNormalizer(map[string]ArtifactBackend{
	"file":   ArtifactBackendFile,
	"sqlite": ArtifactBackendSQLite,
}, ArtifactBackendFile)

// Validate checks the configuration after defaults were applied.
func (c *Config) Validate() error {
	if c.Repository.MaxCommits < 0 {
		return invalid("repository.max_commits cannot be negative", "repository.max_commits")
	}
	if strings.Contains(c.Projects.ManifestDir, "..") {
		return invalid("projects.manifest_dir must stay inside the project", "projects.manifest_dir")
	}
	for _, name := range c.Projects.ManifestNames {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return invalid("projects.manifest_names must be plain file names", "projects.manifest_names")
		}
	}
	if _, ok := artifactBackendNormalizer.Lookup(string(c.Artifacts.Backend)); !ok {
		return invalid("artifacts.backend must be one of "+strings.Join(artifactBackendNormalizer.ValidKeys(), ", "), "artifacts.backend")
	}
	if NormalizeRetryBackoff(string(c.Steps.Retry.Mode)) == "" {
		return invalid("steps.retry.mode must be fixed, linear or exponential", "steps.retry.mode")
	}
	if c.Steps.Retry.MaxRetries < 0 {
		return invalid("steps.retry.max_retries cannot be negative", "steps.retry.max_retries")
	}
	durations := []struct{ field, raw string }{
		{"steps.retry.initial", c.Steps.Retry.InitialDelay},
		{"steps.retry.max", c.Steps.Retry.MaxDelay},
		{"steps.timeout", c.Steps.Timeout},
		{"watch.debounce", c.Watch.Debounce},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		if v, err := time.ParseDuration(d.raw); err != nil || v < 0 {
			return invalid(d.field+" must be a positive duration such as 1s or 5m", d.field)
		}
	}
	return nil
}

func invalid(message, field string) error {
	return errors.ConfigError(message).WithContext("field", field).Build()
}
