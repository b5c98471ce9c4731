package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.WalletName = "default"
	cfg.Miners = []descriptor.Instance{{Hotkey: "M1", Device: "cuda:0"}}
	return cfg
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "missing wallet",
			mutate:    func(c *Config) { c.WalletName = "" },
			wantField: "wallet",
		},
		{
			name:      "zero netuid",
			mutate:    func(c *Config) { c.Netuid = 0 },
			wantField: "netuid",
		},
		{
			name:      "no instances",
			mutate:    func(c *Config) { c.Miners = nil },
			wantField: "miners/validators/aggregators",
		},
		{
			name:      "empty miner hotkey",
			mutate:    func(c *Config) { c.Miners[0].Hotkey = "" },
			wantField: "miners[0].hotkey",
		},
		{
			name: "empty validator hotkey",
			mutate: func(c *Config) {
				c.Validators = []descriptor.Instance{{Device: "cuda:1"}}
			},
			wantField: "validators[0].hotkey",
		},
		{
			name:      "empty manager",
			mutate:    func(c *Config) { c.Manager = "" },
			wantField: "manager",
		},
		{
			name:      "bad log format",
			mutate:    func(c *Config) { c.LogFormat = "xml" },
			wantField: "log_format",
		},
		{
			name:      "zero ramp rate",
			mutate:    func(c *Config) { c.RampRate = 0 },
			wantField: "ramp_rate",
		},
		{
			name:      "backoff max below initial",
			mutate:    func(c *Config) { c.BackoffMax = c.BackoffInitial / 2 },
			wantField: "backoff_max",
		},
		{
			name:      "backoff multiplier below one",
			mutate:    func(c *Config) { c.BackoffMultiply = 0.5 },
			wantField: "backoff_multiply",
		},
		{
			name: "host window too small",
			mutate: func(c *Config) {
				c.HostMetricsURL = "http://gpu-host:9100/metrics"
				c.HostMetricsWindow = 2 * time.Second
			},
			wantField: "host_metrics_window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate returned nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("error %q does not mention field %q", err, tt.wantField)
			}
		})
	}
}

func TestValidateJoinsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.WalletName = ""
	cfg.RampRate = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate returned nil")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("joined error does not expose ValidationError: %v", err)
	}
	for _, field := range []string{"wallet", "ramp_rate"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q missing field %q", err, field)
		}
	}
}
