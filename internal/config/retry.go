package config

import (
	"time"

	"git.home.luguber.info/inful/monobuild/internal/foundation/normalization"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff converts user input (case-insensitive) into a typed
// mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}

// Initial returns the parsed initial delay, 0 when unset or invalid.
func (r RetryConfig) Initial() time.Duration {
	d, _ := time.ParseDuration(r.InitialDelay)
	return d
}

// Max returns the parsed maximum delay, 0 when unset or invalid.
func (r RetryConfig) Max() time.Duration {
	d, _ := time.ParseDuration(r.MaxDelay)
	return d
}
