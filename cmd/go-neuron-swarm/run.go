package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-neuron-swarm/internal/config"
	"github.com/randomizedcoder/go-neuron-swarm/internal/orchestrator"
	"github.com/randomizedcoder/go-neuron-swarm/internal/runid"
	"github.com/randomizedcoder/go-neuron-swarm/internal/tui"
)

var (
	flagRunNoTUI         bool
	flagRunSkipPrechecks bool
	flagRunPrintCmd      bool
)

func init() {
	cmdRun.Flags().BoolVar(&flagRunNoTUI, "no-tui", false, "disable the live dashboard")
	cmdRun.Flags().BoolVar(&flagRunSkipPrechecks, "skip-preflight", false, "skip preflight checks")
	cmdRun.Flags().BoolVar(&flagRunPrintCmd, "print-cmd", false, "print the rendered neuron commands and exit")
	rootCmd.AddCommand(cmdRun)
}

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Supervise the neuron swarm directly (no external process manager)",
	Long: `Builds the descriptor set and launches every neuron under its own
supervisor: ramped start, exponential backoff with per-process jitter,
Prometheus metrics, optional GPU-host scrape and a live dashboard.
SIGTERM/SIGINT shuts the group down gracefully and prints an exit
summary with uptime percentiles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagRunSkipPrechecks {
			cfg.SkipPreflight = true
		}
		if flagRunNoTUI {
			cfg.TUIEnabled = false
		}
		logger := newLogger(cfg)

		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid deploy config: %w", err)
		}

		runID := runid.New()
		orch, err := orchestrator.New(cfg, runID, logger)
		if err != nil {
			return err
		}

		if flagRunPrintCmd {
			for _, name := range orch.Runner().Names() {
				fmt.Printf("%s: %s\n", name, orch.Runner().CommandString(name))
			}
			return nil
		}

		if cfg.TUIEnabled {
			go func() {
				_ = tui.Run(tui.Config{
					TargetProcesses: cfg.ProcessCount(),
					Network:         cfg.Network,
					RunID:           runID,
					MetricsAddr:     cfg.MetricsAddr,
					SwarmSource:     orch.GroupManager(),
					HostSource:      orch.HostScraper(),
				})
			}()
		}

		return orch.Run(cmd.Context())
	},
}
