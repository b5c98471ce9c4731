// Package config provides configuration management for go-neuron-swarm.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
)

// Config holds all configuration options for the deploy tool.
type Config struct {
	// Deployment
	WalletName string `yaml:"wallet"`
	Network    string `yaml:"network"`
	Netuid     int    `yaml:"netuid"`
	Project    string `yaml:"project"`

	Interpreter      string `yaml:"interpreter"`
	MinerScript      string `yaml:"miner_script"`
	ValidatorScript  string `yaml:"validator_script"`
	AggregatorScript string `yaml:"aggregator_script"`

	Miners      []descriptor.Instance `yaml:"miners"`
	Validators  []descriptor.Instance `yaml:"validators"`
	Aggregators []descriptor.Instance `yaml:"aggregators"`

	Env       map[string]string `yaml:"env"`
	ExtraArgs string            `yaml:"extra_args"`
	Debug     bool              `yaml:"debug"`

	// Process manager
	Manager       string `yaml:"manager"`
	EcosystemFile string `yaml:"ecosystem"`
	WorkDir       string `yaml:"workdir"`

	// Supervision (run mode)
	RampRate        int           `yaml:"ramp_rate"`
	RampJitter      time.Duration `yaml:"ramp_jitter"`
	MaxRestarts     int           `yaml:"max_restarts"` // 0 = unlimited
	BackoffInitial  time.Duration `yaml:"backoff_initial"`
	BackoffMax      time.Duration `yaml:"backoff_max"`
	BackoffMultiply float64       `yaml:"backoff_multiply"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"`
	Verbose     bool   `yaml:"verbose"`
	LogFormat   string `yaml:"log_format"` // json, text
	TUIEnabled  bool   `yaml:"tui"`

	// Host metrics (optional node_exporter / DCGM scrape of the GPU host)
	HostMetricsURL      string        `yaml:"host_metrics_url"`
	HostGPUMetricsURL   string        `yaml:"host_gpu_metrics_url"`
	HostMetricsInterval time.Duration `yaml:"host_metrics_interval"`
	HostMetricsWindow   time.Duration `yaml:"host_metrics_window"`

	// Diagnostics
	SkipPreflight bool `yaml:"skip_preflight"`
	PrintCmd      bool `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Deployment
		Network:     "finney",
		Netuid:      268,
		Project:     "templar",
		Interpreter: "python3",

		MinerScript:      "neurons/miner.py",
		ValidatorScript:  "neurons/validator.py",
		AggregatorScript: "neurons/aggregator.py",

		// Process manager
		Manager:       "pm2",
		EcosystemFile: "ecosystem.config.json",
		WorkDir:       ".",

		// Supervision
		RampRate:        2,
		RampJitter:      500 * time.Millisecond,
		MaxRestarts:     0, // Unlimited
		BackoffInitial:  250 * time.Millisecond,
		BackoffMax:      30 * time.Second,
		BackoffMultiply: 1.7,
		ShutdownTimeout: 15 * time.Second,

		// Observability
		MetricsAddr: "0.0.0.0:17092",
		LogFormat:   "json",
		TUIEnabled:  true,

		HostMetricsInterval: 2 * time.Second,
		HostMetricsWindow:   30 * time.Second,
	}
}

// Load builds a Config from defaults overlaid with an optional YAML deploy
// file. Flag overrides are applied afterwards by the CLI layer.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load deploy config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse deploy config %s: %w", path, err)
	}
	return cfg, nil
}

// DescriptorSpec maps the deploy config onto the descriptor builder input.
func (c *Config) DescriptorSpec() *descriptor.Spec {
	return &descriptor.Spec{
		WalletName:       c.WalletName,
		Network:          c.Network,
		Netuid:           c.Netuid,
		Project:          c.Project,
		Interpreter:      c.Interpreter,
		MinerScript:      c.MinerScript,
		ValidatorScript:  c.ValidatorScript,
		AggregatorScript: c.AggregatorScript,
		Miners:           c.Miners,
		Validators:       c.Validators,
		Aggregators:      c.Aggregators,
		Env:              c.Env,
		ExtraArgs:        c.ExtraArgs,
		Debug:            c.Debug,
	}
}

// ProcessCount returns the total number of processes the config describes.
func (c *Config) ProcessCount() int {
	return len(c.Miners) + len(c.Validators) + len(c.Aggregators)
}
