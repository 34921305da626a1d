// Package profile holds the runtime configuration for the agentmetrics server.
package profile

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the server
	Addr string
	// Port is the binding port for the server
	Port int
	// Version is the current version of the server
	Version string

	// FlushInterval is how often completed hour buckets are persisted
	FlushInterval time.Duration // AGENTMETRICS_FLUSH_INTERVAL
	// RetentionPeriod is how long persisted metrics are kept
	RetentionPeriod time.Duration // AGENTMETRICS_RETENTION_PERIOD
	// CleanupInterval is how often the retention sweep runs
	CleanupInterval time.Duration // AGENTMETRICS_CLEANUP_INTERVAL

	// TracingEnabled turns on debug span logging
	TracingEnabled bool // AGENTMETRICS_TRACING_ENABLED
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from AGENTMETRICS_* environment variables.
// Unset or empty values keep the profile's current field values.
func (p *Profile) FromEnv() error {
	p.Mode = getEnvOrDefault("AGENTMETRICS_MODE", p.Mode)
	p.Addr = getEnvOrDefault("AGENTMETRICS_ADDR", p.Addr)

	p.TracingEnabled = p.TracingEnabled || os.Getenv("AGENTMETRICS_TRACING_ENABLED") == "true"

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"AGENTMETRICS_FLUSH_INTERVAL", &p.FlushInterval},
		{"AGENTMETRICS_RETENTION_PERIOD", &p.RetentionPeriod},
		{"AGENTMETRICS_CLEANUP_INTERVAL", &p.CleanupInterval},
	}
	for _, d := range durations {
		value := os.Getenv(d.key)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "invalid duration in %s", d.key)
		}
		*d.target = parsed
	}

	return nil
}

// Validate normalizes the profile and rejects unusable values.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}

	if p.FlushInterval < 0 || p.RetentionPeriod < 0 || p.CleanupInterval < 0 {
		return errors.New("intervals must not be negative")
	}

	return nil
}
