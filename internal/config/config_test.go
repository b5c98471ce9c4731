package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Manager != "pm2" {
		t.Errorf("Manager = %q, want pm2", cfg.Manager)
	}
	if cfg.EcosystemFile != "ecosystem.config.json" {
		t.Errorf("EcosystemFile = %q", cfg.EcosystemFile)
	}
	if cfg.Netuid != 268 {
		t.Errorf("Netuid = %d, want 268", cfg.Netuid)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if cfg.BackoffMultiply != 1.7 {
		t.Errorf("BackoffMultiply = %v, want 1.7", cfg.BackoffMultiply)
	}
}

func TestLoadMissingPathKeepsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Manager != "pm2" {
		t.Errorf("Manager = %q, want pm2", cfg.Manager)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yml")
	doc := `
wallet: prod-wallet
network: test
netuid: 3
project: templar
miners:
  - hotkey: M1
    device: "cuda:0"
  - hotkey: M2
    device: "cuda:1"
validators:
  - hotkey: V1
    device: "cuda:2"
env:
  WANDB_API_KEY: secret
extra_args: "--trace"
ramp_jitter: 250ms
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.WalletName != "prod-wallet" {
		t.Errorf("WalletName = %q", cfg.WalletName)
	}
	if cfg.Network != "test" {
		t.Errorf("Network = %q", cfg.Network)
	}
	if cfg.Netuid != 3 {
		t.Errorf("Netuid = %d", cfg.Netuid)
	}
	if len(cfg.Miners) != 2 || cfg.Miners[1].Hotkey != "M2" {
		t.Errorf("Miners = %+v", cfg.Miners)
	}
	if cfg.Miners[1].Device != "cuda:1" {
		t.Errorf("Miners[1].Device = %q", cfg.Miners[1].Device)
	}
	if cfg.Env["WANDB_API_KEY"] != "secret" {
		t.Errorf("Env = %v", cfg.Env)
	}
	if cfg.RampJitter != 250*time.Millisecond {
		t.Errorf("RampJitter = %v", cfg.RampJitter)
	}

	// Untouched fields keep their defaults.
	if cfg.Manager != "pm2" {
		t.Errorf("Manager = %q, want default pm2", cfg.Manager)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yml")
	if err := os.WriteFile(path, []byte("wallet: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded on broken YAML")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/swarm.yml"); err == nil {
		t.Fatal("Load succeeded on missing file")
	}
}

func TestDescriptorSpecMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WalletName = "w"
	cfg.Miners = []descriptor.Instance{{Hotkey: "M1", Device: "cuda:0"}}
	cfg.Validators = []descriptor.Instance{{Hotkey: "V1"}}
	cfg.ExtraArgs = "--trace"

	spec := cfg.DescriptorSpec()

	if spec.WalletName != "w" {
		t.Errorf("WalletName = %q", spec.WalletName)
	}
	if spec.Netuid != cfg.Netuid {
		t.Errorf("Netuid = %d, want %d", spec.Netuid, cfg.Netuid)
	}
	if len(spec.Miners) != 1 || spec.Miners[0].Hotkey != "M1" {
		t.Errorf("Miners = %+v", spec.Miners)
	}
	if spec.ExtraArgs != "--trace" {
		t.Errorf("ExtraArgs = %q", spec.ExtraArgs)
	}
}

func TestProcessCount(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ProcessCount(); got != 0 {
		t.Errorf("ProcessCount = %d, want 0", got)
	}
	cfg.Miners = []descriptor.Instance{{Hotkey: "a"}, {Hotkey: "b"}}
	cfg.Aggregators = []descriptor.Instance{{Hotkey: "c"}}
	if got := cfg.ProcessCount(); got != 3 {
		t.Errorf("ProcessCount = %d, want 3", got)
	}
}
