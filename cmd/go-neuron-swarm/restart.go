package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-neuron-swarm/internal/controller"
	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
)

var (
	flagMinerCount      int
	flagValidatorCount  int
	flagAggregatorCount int
)

func init() {
	cmdRestart.Flags().IntVar(&flagMinerCount, "miners", -1, "miner instances to restart (default: from config)")
	cmdRestart.Flags().IntVar(&flagValidatorCount, "validators", -1, "validator instances to restart (default: from config)")
	cmdRestart.Flags().IntVar(&flagAggregatorCount, "aggregators", -1, "aggregator instances to restart (default: from config)")
	rootCmd.AddCommand(cmdRestart)
}

var cmdRestart = &cobra.Command{
	Use:   "restart",
	Short: "Restart process groups through the process manager",
	Long: `Issues one pm2 restart directive per role instance, addressing
processes TM1..TMn, TV1..TVn and TA1..TAn in ascending order. A zero
count skips the role entirely. A failed directive does not block the
directives after it; all failures are reported together at the end.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		counts := []controller.RoleCount{
			{Role: descriptor.RoleMiner, Count: resolveCount(flagMinerCount, len(cfg.Miners))},
			{Role: descriptor.RoleValidator, Count: resolveCount(flagValidatorCount, len(cfg.Validators))},
			{Role: descriptor.RoleAggregator, Count: resolveCount(flagAggregatorCount, len(cfg.Aggregators))},
		}

		ctrl := controller.New(controller.Config{
			Manager:       cfg.Manager,
			EcosystemFile: cfg.EcosystemFile,
			WorkDir:       cfg.WorkDir,
			Logger:        logger,
		})

		if err := ctrl.RestartGroups(cmd.Context(), counts); err != nil {
			return fmt.Errorf("restart directives failed: %w", err)
		}

		total := 0
		for _, rc := range counts {
			total += rc.Count
		}
		fmt.Printf("issued %d restart directives\n", total)
		return nil
	},
}

// resolveCount prefers the explicit flag, falling back to the config.
func resolveCount(flag, fromConfig int) int {
	if flag >= 0 {
		return flag
	}
	return fromConfig
}
