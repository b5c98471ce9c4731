package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-neuron-swarm/internal/preflight"
)

func init() {
	rootCmd.AddCommand(cmdPreflight)
}

var cmdPreflight = &cobra.Command{
	Use:   "preflight",
	Short: "Run the environment checks without starting anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		newLogger(cfg)

		result := preflight.RunAll(cfg)
		preflight.PrintResults(result)
		if !result.Passed {
			return errors.New("preflight checks failed")
		}
		return nil
	},
}
