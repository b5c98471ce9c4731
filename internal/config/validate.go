package config

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.WalletName == "" {
		errs = append(errs, ValidationError{
			Field:   "wallet",
			Message: "wallet name is required",
		})
	}

	if cfg.Netuid < 1 {
		errs = append(errs, ValidationError{
			Field:   "netuid",
			Message: fmt.Sprintf("must be a positive subnet UID (got %d)", cfg.Netuid),
		})
	}

	if cfg.ProcessCount() == 0 {
		errs = append(errs, ValidationError{
			Field:   "miners/validators/aggregators",
			Message: "at least one instance is required",
		})
	}

	for i, inst := range cfg.Miners {
		if inst.Hotkey == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("miners[%d].hotkey", i),
				Message: "hotkey label is required",
			})
		}
	}
	for i, inst := range cfg.Validators {
		if inst.Hotkey == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("validators[%d].hotkey", i),
				Message: "hotkey label is required",
			})
		}
	}
	for i, inst := range cfg.Aggregators {
		if inst.Hotkey == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("aggregators[%d].hotkey", i),
				Message: "hotkey label is required",
			})
		}
	}

	if cfg.Manager == "" {
		errs = append(errs, ValidationError{
			Field:   "manager",
			Message: "process-manager binary is required",
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// Ramp rate must be positive
	if cfg.RampRate < 1 {
		errs = append(errs, ValidationError{
			Field:   "ramp_rate",
			Message: "must be at least 1",
		})
	}

	// Backoff settings
	if cfg.BackoffInitial <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_initial",
			Message: "must be positive",
		})
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, ValidationError{
			Field:   "backoff_max",
			Message: "must be >= backoff_initial",
		})
	}
	if cfg.BackoffMultiply < 1.0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_multiply",
			Message: "must be >= 1.0",
		})
	}

	// Host metrics window validation (if the scrape is enabled)
	if cfg.HostMetricsURL != "" || cfg.HostGPUMetricsURL != "" {
		const minWindow = 10 * time.Second
		const maxWindow = 300 * time.Second
		if cfg.HostMetricsWindow < minWindow {
			errs = append(errs, ValidationError{
				Field:   "host_metrics_window",
				Message: fmt.Sprintf("must be at least %v (got %v)", minWindow, cfg.HostMetricsWindow),
			})
		}
		if cfg.HostMetricsWindow > maxWindow {
			errs = append(errs, ValidationError{
				Field:   "host_metrics_window",
				Message: fmt.Sprintf("must be at most %v (got %v)", maxWindow, cfg.HostMetricsWindow),
			})
		}
		if cfg.HostMetricsWindow < 2*cfg.HostMetricsInterval {
			errs = append(errs, ValidationError{
				Field:   "host_metrics_window",
				Message: fmt.Sprintf("must be at least 2× scrape interval (%v), got %v",
					2*cfg.HostMetricsInterval, cfg.HostMetricsWindow),
			})
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
