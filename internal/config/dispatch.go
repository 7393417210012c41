// Package config loads the engine's configuration: channel sender wiring
// from YAML and dispatch/retry tuning from environment variables.
package config

import (
	"fmt"
	"time"

	pkgconfig "school-notify/pkg/config"
)

// DispatchConfig holds tuning for the dispatch engine and the recovery jobs.
type DispatchConfig struct {
	// MaxConcurrent is the per-pass worker pool size for recipient fan-out.
	// Default: 10
	MaxConcurrent int

	// RetryMaxAttempts is the per-(record, channel) attempt budget including
	// the original send. Default: 5
	RetryMaxAttempts int

	// RetryBatchSize bounds how many failed records one retry run picks up
	// per channel. Default: 200
	RetryBatchSize int

	// RetryMaxConcurrent bounds concurrent redeliveries within one retry
	// run. Default: 5
	RetryMaxConcurrent int

	// SweepMinAge is how old an unsent notification must be before the
	// sweep re-dispatches it, so the sweep never races an in-flight initial
	// pass. Default: 5 minutes
	SweepMinAge time.Duration
}

// LoadDispatchConfig loads dispatch configuration from environment variables.
// Returns a config with defaults for unset variables and an error for values
// outside their valid range.
func LoadDispatchConfig() (*DispatchConfig, error) {
	cfg := &DispatchConfig{
		MaxConcurrent:      pkgconfig.GetEnvInt("DISPATCH_MAX_CONCURRENT", 10),
		RetryMaxAttempts:   pkgconfig.GetEnvInt("RETRY_MAX_ATTEMPTS", 5),
		RetryBatchSize:     pkgconfig.GetEnvInt("RETRY_BATCH_SIZE", 200),
		RetryMaxConcurrent: pkgconfig.GetEnvInt("RETRY_MAX_CONCURRENT", 5),
		SweepMinAge:        pkgconfig.GetEnvDuration("SWEEP_MIN_AGE", 5*time.Minute),
	}

	if cfg.MaxConcurrent < 1 || cfg.MaxConcurrent > 100 {
		return nil, fmt.Errorf("DISPATCH_MAX_CONCURRENT must be between 1 and 100, got %d", cfg.MaxConcurrent)
	}
	if cfg.RetryMaxAttempts < 1 || cfg.RetryMaxAttempts > 20 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be between 1 and 20, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryBatchSize < 1 || cfg.RetryBatchSize > 10000 {
		return nil, fmt.Errorf("RETRY_BATCH_SIZE must be between 1 and 10000, got %d", cfg.RetryBatchSize)
	}
	if cfg.RetryMaxConcurrent < 1 || cfg.RetryMaxConcurrent > 50 {
		return nil, fmt.Errorf("RETRY_MAX_CONCURRENT must be between 1 and 50, got %d", cfg.RetryMaxConcurrent)
	}
	if err := pkgconfig.ValidatePositiveDuration(cfg.SweepMinAge); err != nil {
		return nil, fmt.Errorf("SWEEP_MIN_AGE: %w", err)
	}

	return cfg, nil
}
