// go-neuron-swarm deploys and supervises a swarm of templar neuron
// processes: miners, validators and aggregators sharing one wallet.
package main

import (
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-neuron-swarm/internal/config"
	"github.com/randomizedcoder/go-neuron-swarm/internal/logging"
)

var (
	flagConfig   string
	flagLogLevel string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "go-neuron-swarm [command]",
	Short: "go-neuron-swarm: deploy and supervise templar neuron swarms",
	Long: `go-neuron-swarm renders the neuron process descriptor set, restarts
process groups through pm2, supervises the swarm directly with backoff
and metrics, brings single nodes up through docker compose, and applies
declarative provisioning configs.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "deploy config file (swarm.yml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose neuron output")
}

// loadConfig layers the deploy file over defaults. Verbs apply their own
// flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagVerbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := logging.NewLogger(cfg.LogFormat, flagLogLevel, cfg.Verbose)
	logging.SetDefault(logger)
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
