package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-neuron-swarm/internal/config"
	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
	"github.com/randomizedcoder/go-neuron-swarm/internal/metrics"
	"github.com/randomizedcoder/go-neuron-swarm/internal/preflight"
	"github.com/randomizedcoder/go-neuron-swarm/internal/process"
	"github.com/randomizedcoder/go-neuron-swarm/internal/supervisor"
)

// Orchestrator coordinates all components for a supervised swarm run.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger
	runID  string

	runner        *process.NeuronRunner
	groupManager  *GroupManager
	rampScheduler *RampScheduler
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	hostScraper   *metrics.HostScraper

	startTime time.Time
}

// New creates a new Orchestrator with the given configuration.
// The runID ties every neuron in this invocation to one experiment group.
func New(cfg *config.Config, runID string, logger *slog.Logger) (*Orchestrator, error) {
	defs, err := descriptor.Build(cfg.DescriptorSpec(), runID)
	if err != nil {
		return nil, fmt.Errorf("build process descriptors: %w", err)
	}
	runner := process.NewNeuronRunner(defs, cfg.WorkDir)

	rampScheduler := NewRampScheduler(cfg.RampRate, cfg.RampJitter)

	collector := metrics.NewCollector(metrics.CollectorConfig{
		Network: cfg.Network,
		Project: cfg.Project,
		RunID:   runID,
		Targets: map[descriptor.Role]int{
			descriptor.RoleMiner:      len(cfg.Miners),
			descriptor.RoleValidator:  len(cfg.Validators),
			descriptor.RoleAggregator: len(cfg.Aggregators),
		},
	})
	metricsServer := metrics.NewServer(cfg.MetricsAddr, logger)
	hostScraper := metrics.NewHostScraper(
		cfg.HostMetricsURL,
		cfg.HostGPUMetricsURL,
		cfg.HostMetricsInterval,
		cfg.HostMetricsWindow,
		logger,
	)

	orch := &Orchestrator{
		config:        cfg,
		logger:        logger,
		runID:         runID,
		runner:        runner,
		rampScheduler: rampScheduler,
		metrics:       collector,
		metricsServer: metricsServer,
		hostScraper:   hostScraper,
	}

	orch.groupManager = NewGroupManager(GroupConfig{
		Builder: runner,
		Logger:  logger,
		BackoffConfig: supervisor.BackoffConfig{
			Initial:    cfg.BackoffInitial,
			Max:        cfg.BackoffMax,
			Multiplier: cfg.BackoffMultiply,
			JitterPct:  0.4,
		},
		MaxRestarts: cfg.MaxRestarts,
		Verbose:     cfg.Verbose,
		Callbacks: GroupCallbacks{
			OnStateChange: orch.onStateChange,
			OnStart:       orch.onStart,
			OnExit:        orch.onExit,
			OnRestart:     orch.onRestart,
			OnOutputLine:  orch.onOutputLine,
		},
	})

	return orch, nil
}

// Run executes the swarm. It blocks until a signal arrives or the context
// is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.config)
		preflight.PrintResults(result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use --skip-preflight to override)")
		}
	}

	if err := o.metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.hostScraper != nil {
		go o.hostScraper.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	names := o.runner.Names()
	o.logger.Info("ramp_starting",
		"run_id", o.runID,
		"processes", len(names),
		"rate", o.rampScheduler.Rate(),
		"estimated_duration", o.rampScheduler.EstimatedRampDuration(len(names)).String(),
	)

	rampDone := make(chan struct{})
	go func() {
		defer close(rampDone)
		o.rampUp(ctx, names)
	}()

	// Refresh time-derived gauges while waiting
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

waitLoop:
	for {
		select {
		case sig := <-sigCh:
			o.logger.Info("received_signal", "signal", sig.String())
			break waitLoop
		case <-ctx.Done():
			o.logger.Info("context_cancelled")
			break waitLoop
		case <-tick.C:
			o.metrics.Tick()
		}
	}

	// Cancel context to stop all neurons
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), o.config.ShutdownTimeout)
	defer shutdownCancel()

	if err := o.groupManager.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("shutdown_incomplete", "error", err)
	}

	if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("metrics_server_shutdown_error", "error", err)
	}

	o.printExitSummary()

	return nil
}

// rampUp starts neurons at the configured rate.
func (o *Orchestrator) rampUp(ctx context.Context, names []descriptor.ProcessName) {
	for i, name := range names {
		select {
		case <-ctx.Done():
			o.logger.Info("ramp_cancelled", "started", i, "target", len(names))
			return
		default:
		}

		// Don't wait for the first process
		if i > 0 {
			if err := o.rampScheduler.Schedule(ctx, name); err != nil {
				return
			}
		}

		o.groupManager.StartProcess(ctx, name)
		o.metrics.ProcessStarted(name)
		o.metrics.SetRampProgress(float64(i+1) / float64(len(names)))

		o.logger.Info("ramp_progress",
			"started", i+1,
			"target", len(names),
			"process", name.String(),
		)
	}

	o.logger.Info("ramp_complete",
		"processes", len(names),
		"active", o.groupManager.ActiveCount(),
	)
}

// Callback handlers

func (o *Orchestrator) onStateChange(name descriptor.ProcessName, oldState, newState supervisor.State) {
	o.metrics.SetActiveCount(name.Role, o.groupManager.ActiveCountForRole(name.Role))
	o.metrics.SetPeakActive(o.groupManager.ActiveCount())
}

func (o *Orchestrator) onStart(name descriptor.ProcessName, pid int) {
	if o.config.Verbose {
		o.logger.Debug("neuron_started", "process", name.String(), "pid", pid)
	}
}

func (o *Orchestrator) onExit(name descriptor.ProcessName, exitCode int, uptime time.Duration) {
	o.metrics.RecordExit(name, exitCode, uptime)
}

func (o *Orchestrator) onOutputLine(name descriptor.ProcessName, level slog.Level) {
	o.metrics.RecordOutputLine(severityLabel(level))
}

func (o *Orchestrator) onRestart(name descriptor.ProcessName, attempt int, delay time.Duration) {
	o.metrics.ProcessRestarted(name)

	if o.config.Verbose {
		o.logger.Debug("neuron_restart_scheduled",
			"process", name.String(),
			"attempt", attempt,
			"delay", delay.String(),
		)
	}
}

// printExitSummary prints a summary of the run.
func (o *Orchestrator) printExitSummary() {
	summary := o.metrics.GenerateSummary()

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Println("                       go-neuron-swarm Exit Summary")
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Printf("Run ID:                 %s\n", o.runID)
	fmt.Printf("Run Duration:           %s\n", formatDuration(summary.Duration))
	fmt.Printf("Target Processes:       %d\n", summary.TargetProcesses)
	fmt.Printf("Peak Active Processes:  %d\n", summary.PeakActive)
	fmt.Println()

	if summary.UptimeP50 > 0 || summary.UptimeP95 > 0 {
		fmt.Println("Uptime Distribution:")
		fmt.Printf("  P50 (median):         %s\n", formatDuration(summary.UptimeP50))
		fmt.Printf("  P95:                  %s\n", formatDuration(summary.UptimeP95))
		fmt.Printf("  P99:                  %s\n", formatDuration(summary.UptimeP99))
		fmt.Println()
	}

	fmt.Println("Lifecycle:")
	fmt.Printf("  Total Starts:         %d\n", summary.TotalStarts)
	fmt.Printf("  Total Restarts:       %d\n", summary.TotalRestarts)
	fmt.Println()

	if len(summary.ExitCodes) > 0 {
		fmt.Println("Exit Codes:")
		for code, count := range summary.ExitCodes {
			fmt.Printf("  %3d %-16s %d\n", code, exitCodeLabel(code), count)
		}
		fmt.Println()
	}

	if errCounts := o.groupManager.ErrorCounts(); len(errCounts) > 0 {
		fmt.Println("Neuron Errors Observed:")
		for pattern, count := range errCounts {
			fmt.Printf("  %-40s %d\n", pattern, count)
		}
		fmt.Println()
	}

	fmt.Printf("Metrics endpoint was: http://%s/metrics\n", o.config.MetricsAddr)
	fmt.Println("═══════════════════════════════════════════════════════════════════")
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// severityLabel maps an slog level onto the metric's severity label.
func severityLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// GroupManager returns the group manager for external access.
func (o *Orchestrator) GroupManager() *GroupManager {
	return o.groupManager
}

// Runner returns the neuron runner for external access.
func (o *Orchestrator) Runner() *process.NeuronRunner {
	return o.runner
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// HostScraper returns the host scraper (nil when disabled).
func (o *Orchestrator) HostScraper() *metrics.HostScraper {
	return o.hostScraper
}

// RunID returns the run identifier for this invocation.
func (o *Orchestrator) RunID() string {
	return o.runID
}
