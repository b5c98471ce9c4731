package main

import (
	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-neuron-swarm/internal/controller"
	"github.com/randomizedcoder/go-neuron-swarm/internal/launcher"
)

func init() {
	rootCmd.AddCommand(cmdUp)
}

var cmdUp = &cobra.Command{
	Use:   "up",
	Short: "Interactively configure and start a single node via docker compose",
	Long: `Prompts for node type, wallet identity, W&B credential, network,
CUDA device and debug flag (required fields re-prompt until non-empty,
optional fields default when left blank), exports the answers into the
environment and runs docker compose -f compose.<node-type>.yml up -d.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		l := launcher.New(controller.ExecRunner{}, cfg.WorkDir, logger)
		return l.Run(cmd.Context())
	},
}
