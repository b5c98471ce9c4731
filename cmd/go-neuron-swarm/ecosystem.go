package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-neuron-swarm/internal/config"
	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
	"github.com/randomizedcoder/go-neuron-swarm/internal/runid"
)

var flagEcosystemOut string

func init() {
	cmdEcosystem.Flags().StringVarP(&flagEcosystemOut, "output", "o", "", "output path (default: <workdir>/<ecosystem file>, '-' for stdout)")
	rootCmd.AddCommand(cmdEcosystem)
}

var cmdEcosystem = &cobra.Command{
	Use:   "ecosystem",
	Short: "Render the descriptor set to an ecosystem.config.json",
	Long: `Builds the process launch descriptor set from the deploy config and
writes it in pm2 ecosystem format. A fresh run identifier is generated on
every invocation and shared by all entries, so the whole batch reports
under one logical run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid deploy config: %w", err)
		}

		runID := runid.New()
		defs, err := descriptor.Build(cfg.DescriptorSpec(), runID)
		if err != nil {
			return fmt.Errorf("building descriptor set: %w", err)
		}

		if flagEcosystemOut == "-" {
			data, err := descriptor.MarshalEcosystem(defs)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		path := flagEcosystemOut
		if path == "" {
			path = filepath.Join(cfg.WorkDir, cfg.EcosystemFile)
		}

		if err := descriptor.WriteEcosystem(defs, path); err != nil {
			return err
		}

		logger.Info("ecosystem_written",
			"path", path,
			"processes", len(defs),
			"run_id", runID,
		)
		fmt.Printf("wrote %d process definitions to %s (run %s)\n", len(defs), path, runID)
		return nil
	},
}
