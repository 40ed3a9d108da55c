package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Step              time.Duration // Hard per-call timeout for workflow step execution
	Vendor            time.Duration // HTTP timeout for individual platform calls
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - SITEFLOW_TIMEOUT_STEP (default: 2m)
//   - SITEFLOW_TIMEOUT_VENDOR (default: 30s)
//   - SITEFLOW_RETRY_MAX_ATTEMPTS (default: 5)
//   - SITEFLOW_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Step:              parseDuration("SITEFLOW_TIMEOUT_STEP", 2*time.Minute),
		Vendor:            parseDuration("SITEFLOW_TIMEOUT_VENDOR", 30*time.Second),
		RetryMaxAttempts:  parseInt("SITEFLOW_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("SITEFLOW_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
