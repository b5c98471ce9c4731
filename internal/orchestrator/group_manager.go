package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
	"github.com/randomizedcoder/go-neuron-swarm/internal/logging"
	"github.com/randomizedcoder/go-neuron-swarm/internal/supervisor"
)

// GroupManager coordinates the supervisors for every neuron in the swarm.
// It handles starting processes, tracking their state per role, and
// coordinating shutdown.
type GroupManager struct {
	builder    supervisor.ProcessBuilder
	logger     *slog.Logger
	configSeed int64

	backoffConfig supervisor.BackoffConfig

	// Maximum restarts per process (0 = unlimited)
	maxRestarts int

	// Verbose forwards neuron output to the logger at debug level
	verbose bool

	// Supervisors indexed by process name
	supervisors map[descriptor.ProcessName]*supervisor.Supervisor
	mu          sync.RWMutex

	// Per-role active counters
	activeByRole map[descriptor.Role]*atomic.Int64

	// WaitGroup for all supervisor goroutines
	wg sync.WaitGroup

	// Callbacks for external metrics/logging
	callbacks GroupCallbacks

	startedCount atomic.Int64
	restartCount atomic.Int64
}

// GroupCallbacks contains optional callbacks for manager events.
type GroupCallbacks struct {
	// OnStateChange is called when any process changes state.
	OnStateChange func(name descriptor.ProcessName, oldState, newState supervisor.State)

	// OnStart is called when a neuron process starts.
	OnStart func(name descriptor.ProcessName, pid int)

	// OnExit is called when a neuron process exits.
	OnExit func(name descriptor.ProcessName, exitCode int, uptime time.Duration)

	// OnRestart is called when a process is about to restart.
	OnRestart func(name descriptor.ProcessName, attempt int, delay time.Duration)

	// OnOutputLine is called with the classified level of every neuron
	// output line.
	OnOutputLine func(name descriptor.ProcessName, level slog.Level)
}

// GroupConfig holds configuration for the GroupManager.
type GroupConfig struct {
	Builder       supervisor.ProcessBuilder
	Logger        *slog.Logger
	BackoffConfig supervisor.BackoffConfig
	MaxRestarts   int
	Verbose       bool
	Callbacks     GroupCallbacks
}

// NewGroupManager creates a new GroupManager.
func NewGroupManager(cfg GroupConfig) *GroupManager {
	active := make(map[descriptor.Role]*atomic.Int64, len(descriptor.AllRoles()))
	for _, role := range descriptor.AllRoles() {
		active[role] = &atomic.Int64{}
	}

	return &GroupManager{
		builder:       cfg.Builder,
		logger:        cfg.Logger,
		backoffConfig: cfg.BackoffConfig,
		maxRestarts:   cfg.MaxRestarts,
		verbose:       cfg.Verbose,
		callbacks:     cfg.Callbacks,
		supervisors:   make(map[descriptor.ProcessName]*supervisor.Supervisor),
		activeByRole:  active,
		configSeed:    time.Now().UnixNano(),
	}
}

// StartProcess creates and starts a new supervised neuron.
// The supervisor runs in a goroutine and will restart on failures.
func (m *GroupManager) StartProcess(ctx context.Context, name descriptor.ProcessName) {
	backoff := supervisor.NewBackoff(name.String(), m.configSeed, m.backoffConfig)

	output := logging.NewOutputHandler(name.String(), m.logger, m.verbose)
	if m.callbacks.OnOutputLine != nil {
		hook := m.callbacks.OnOutputLine
		output.SetLineHook(func(level slog.Level) {
			hook(name, level)
		})
	}

	sup := supervisor.New(supervisor.Config{
		Name:        name,
		Builder:     m.builder,
		Backoff:     backoff,
		Logger:      m.logger,
		Output:      output,
		MaxRestarts: m.maxRestarts,
		Verbose:     m.verbose,
		Callbacks: supervisor.Callbacks{
			OnStateChange: m.handleStateChange,
			OnStart:       m.handleStart,
			OnExit:        m.handleExit,
			OnRestart:     m.handleRestart,
		},
	})

	m.mu.Lock()
	m.supervisors[name] = sup
	m.mu.Unlock()

	m.startedCount.Add(1)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := sup.Run(ctx); err != nil {
			// Context cancelled or max restarts reached
			m.logger.Debug("supervisor_ended",
				"process", name.String(),
				"error", err,
			)
		}
	}()
}

// handleStateChange processes state changes from supervisors.
func (m *GroupManager) handleStateChange(name descriptor.ProcessName, oldState, newState supervisor.State) {
	wasRunning := oldState == supervisor.StateRunning
	isRunning := newState == supervisor.StateRunning

	if counter := m.activeByRole[name.Role]; counter != nil {
		if !wasRunning && isRunning {
			counter.Add(1)
		} else if wasRunning && !isRunning {
			counter.Add(-1)
		}
	}

	if m.callbacks.OnStateChange != nil {
		m.callbacks.OnStateChange(name, oldState, newState)
	}
}

func (m *GroupManager) handleStart(name descriptor.ProcessName, pid int) {
	if m.callbacks.OnStart != nil {
		m.callbacks.OnStart(name, pid)
	}
}

func (m *GroupManager) handleExit(name descriptor.ProcessName, exitCode int, uptime time.Duration) {
	if m.callbacks.OnExit != nil {
		m.callbacks.OnExit(name, exitCode, uptime)
	}
}

func (m *GroupManager) handleRestart(name descriptor.ProcessName, attempt int, delay time.Duration) {
	m.restartCount.Add(1)

	if m.callbacks.OnRestart != nil {
		m.callbacks.OnRestart(name, attempt, delay)
	}
}

// Shutdown gracefully stops all neurons.
// It waits for all supervisors to stop, with a timeout via ctx.
func (m *GroupManager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutdown_initiated", "active", m.ActiveCount())

	// Supervisors stop because the context passed to StartProcess is
	// cancelled; here we only wait for them to drain.
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("all_neurons_stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown_timeout")
		return ctx.Err()
	}
}

// ActiveCount returns the total number of currently running neurons.
func (m *GroupManager) ActiveCount() int {
	var total int64
	for _, counter := range m.activeByRole {
		total += counter.Load()
	}
	return int(total)
}

// ActiveCountForRole returns the number of running neurons for one role.
func (m *GroupManager) ActiveCountForRole(role descriptor.Role) int {
	if counter := m.activeByRole[role]; counter != nil {
		return int(counter.Load())
	}
	return 0
}

// StartedCount returns the total number of neurons that have been started.
func (m *GroupManager) StartedCount() int {
	return int(m.startedCount.Load())
}

// RestartCount returns the total number of restart events.
func (m *GroupManager) RestartCount() int {
	return int(m.restartCount.Load())
}

// ProcessCount returns the number of registered supervisors.
func (m *GroupManager) ProcessCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.supervisors)
}

// GetSupervisor returns the supervisor for a specific process.
func (m *GroupManager) GetSupervisor(name descriptor.ProcessName) *supervisor.Supervisor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supervisors[name]
}

// States returns a map of process names to their current states.
func (m *GroupManager) States() map[descriptor.ProcessName]supervisor.State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[descriptor.ProcessName]supervisor.State, len(m.supervisors))
	for name, sup := range m.supervisors {
		states[name] = sup.State()
	}
	return states
}

// ErrorCounts sums classified error lines across every neuron's output.
func (m *GroupManager) ErrorCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totals := make(map[string]int)
	for _, sup := range m.supervisors {
		for pattern, count := range sup.Output().CountErrors() {
			totals[pattern] += count
		}
	}
	return totals
}
