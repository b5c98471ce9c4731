package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-neuron-swarm/internal/controller"
	"github.com/randomizedcoder/go-neuron-swarm/internal/provision"
)

var flagProvisionFile string

func init() {
	cmdProvision.Flags().StringVarP(&flagProvisionFile, "file", "f", "provision.yml", "provisioning config file")
	rootCmd.AddCommand(cmdProvision)
}

var cmdProvision = &cobra.Command{
	Use:   "provision",
	Short: "Apply a declarative provisioning config to the target instance",
	Long: `Loads and validates a provisioning config (ansible playbook, shell
script or docker compose), then applies it: provision, one-way directory
sync pairs in order, and the configured reload step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		pcfg, err := provision.Load(flagProvisionFile)
		if err != nil {
			return err
		}

		applier := provision.NewApplier(controller.ExecRunner{}, logger)

		spin := spinner.New(spinner.CharSets[21], 120*time.Millisecond, spinner.WithWriter(os.Stdout))
		spin.Suffix = fmt.Sprintf(" provisioning (%s)...", pcfg.Provisioning.Type)
		spin.Start()
		err = applier.Apply(cmd.Context(), pcfg, cfg.WorkDir)
		spin.Stop()

		if err != nil {
			return err
		}
		fmt.Println("✓ provisioning complete")
		return nil
	},
}
