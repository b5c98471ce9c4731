// Package metrics provides Prometheus metrics for go-neuron-swarm.
//
// All metrics are aggregate (per-role at most) so cardinality stays flat
// no matter how many neurons a deployment runs.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
)

// =============================================================================
// Panel 1: Swarm Overview
// =============================================================================

var (
	swarmInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "neuron_swarm_info",
			Help: "Information about the swarm (value always 1)",
		},
		[]string{"version", "network", "project", "run_id"},
	)

	swarmTargetProcesses = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "neuron_swarm_target_processes",
			Help: "Target number of neuron processes per role",
		},
		[]string{"role"},
	)

	swarmActiveProcesses = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "neuron_swarm_active_processes",
			Help: "Currently running neuron processes per role",
		},
		[]string{"role"},
	)

	swarmRampProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "neuron_swarm_ramp_progress",
			Help: "Process ramp-up progress (0.0 to 1.0)",
		},
	)

	swarmElapsedSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "neuron_swarm_elapsed_seconds",
			Help: "Seconds since the swarm started",
		},
	)
)

// =============================================================================
// Panel 2: Process Lifecycle
// =============================================================================

var (
	swarmStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuron_swarm_process_starts_total",
			Help: "Total neuron process starts per role",
		},
		[]string{"role"},
	)

	swarmRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuron_swarm_process_restarts_total",
			Help: "Total neuron process restarts (after failure) per role",
		},
		[]string{"role"},
	)

	swarmExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuron_swarm_process_exits_total",
			Help: "Neuron process exits by role and exit category",
		},
		[]string{"role", "category"}, // "success", "error", "signal"
	)

	swarmUptimeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neuron_swarm_process_uptime_seconds",
			Help:    "Neuron process uptime before exit",
			Buckets: []float64{1, 5, 30, 60, 300, 600, 1800, 3600, 7200, 21600},
		},
	)
)

// =============================================================================
// Panel 3: Process Output Health
// =============================================================================

var (
	swarmOutputLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neuron_swarm_output_lines_total",
			Help: "Neuron output lines observed by severity",
		},
		[]string{"severity"}, // "error", "warn", "info", "debug"
	)
)

// Collector manages all Prometheus metrics for the swarm.
type Collector struct {
	startTime time.Time

	// For summary generation
	mu            sync.Mutex
	peakActive    int
	totalStarts   int64
	totalRestarts int64
	exitCodes     map[int]int64
	uptimes       []time.Duration

	targetTotal int
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
	Network string
	Project string
	RunID   string

	// Target process counts per role.
	Targets map[descriptor.Role]int
}

// NewCollector creates a collector registered against the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		startTime: time.Now(),
		exitCodes: make(map[int]int64),
	}

	registry.MustRegister(
		swarmInfo,
		swarmTargetProcesses,
		swarmActiveProcesses,
		swarmRampProgress,
		swarmElapsedSeconds,

		swarmStartsTotal,
		swarmRestartsTotal,
		swarmExitsTotal,
		swarmUptimeSeconds,

		swarmOutputLinesTotal,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	swarmInfo.WithLabelValues(version, cfg.Network, cfg.Project, cfg.RunID).Set(1)

	for role, count := range cfg.Targets {
		swarmTargetProcesses.WithLabelValues(role.String()).Set(float64(count))
		c.targetTotal += count
	}

	return c
}

// =============================================================================
// Event Recording
// =============================================================================

// ProcessStarted records a process start event.
func (c *Collector) ProcessStarted(name descriptor.ProcessName) {
	swarmStartsTotal.WithLabelValues(name.Role.String()).Inc()

	c.mu.Lock()
	c.totalStarts++
	c.mu.Unlock()
}

// ProcessRestarted records a process restart event.
func (c *Collector) ProcessRestarted(name descriptor.ProcessName) {
	swarmRestartsTotal.WithLabelValues(name.Role.String()).Inc()

	c.mu.Lock()
	c.totalRestarts++
	c.mu.Unlock()
}

// RecordExit records a process exit event.
func (c *Collector) RecordExit(name descriptor.ProcessName, exitCode int, uptime time.Duration) {
	category := "error"
	if exitCode == 0 {
		category = "success"
	} else if exitCode > 128 {
		category = "signal"
	}
	swarmExitsTotal.WithLabelValues(name.Role.String(), category).Inc()
	swarmUptimeSeconds.Observe(uptime.Seconds())

	c.mu.Lock()
	c.exitCodes[exitCode]++
	c.uptimes = append(c.uptimes, uptime)
	c.mu.Unlock()
}

// RecordOutputLine records an observed output line by severity.
func (c *Collector) RecordOutputLine(severity string) {
	swarmOutputLinesTotal.WithLabelValues(severity).Inc()
}

// SetActiveCount updates the active process count for a role.
func (c *Collector) SetActiveCount(role descriptor.Role, count int) {
	swarmActiveProcesses.WithLabelValues(role.String()).Set(float64(count))
}

// SetPeakActive tracks the overall peak active count for the summary.
func (c *Collector) SetPeakActive(total int) {
	c.mu.Lock()
	if total > c.peakActive {
		c.peakActive = total
	}
	c.mu.Unlock()
}

// SetRampProgress updates the ramp-up progress.
func (c *Collector) SetRampProgress(progress float64) {
	swarmRampProgress.Set(progress)
}

// Tick refreshes time-derived gauges. Called periodically by the orchestrator.
func (c *Collector) Tick() {
	swarmElapsedSeconds.Set(time.Since(c.startTime).Seconds())
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration          time.Duration
	TargetProcesses   int
	PeakActive        int
	TotalStarts       int64
	TotalRestarts     int64
	ExitCodes         map[int]int64
	UptimeP50         time.Duration
	UptimeP95         time.Duration
	UptimeP99         time.Duration
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:        time.Since(c.startTime),
		TargetProcesses: c.targetTotal,
		PeakActive:      c.peakActive,
		TotalStarts:     c.totalStarts,
		TotalRestarts:   c.totalRestarts,
		ExitCodes:       make(map[int]int64),
	}

	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}

	if len(c.uptimes) > 0 {
		sorted := make([]time.Duration, len(c.uptimes))
		copy(sorted, c.uptimes)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		s.UptimeP50 = percentile(sorted, 0.50)
		s.UptimeP95 = percentile(sorted, 0.95)
		s.UptimeP99 = percentile(sorted, 0.99)
	}

	return s
}

// PeakActive returns the peak active process count.
func (c *Collector) PeakActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}

// TotalStarts returns the total number of process starts.
func (c *Collector) TotalStarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStarts
}

// TotalRestarts returns the total number of restarts.
func (c *Collector) TotalRestarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRestarts
}

// =============================================================================
// Helper Functions
// =============================================================================

// percentile returns the value at the given percentile (0.0-1.0).
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
