package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
	"github.com/randomizedcoder/go-neuron-swarm/internal/logging"
)

// ProcessBuilder creates executable commands for named processes.
// This interface keeps the supervisor decoupled from neuron specifics.
type ProcessBuilder interface {
	// BuildCommand returns a ready-to-start command for the given process.
	BuildCommand(ctx context.Context, name descriptor.ProcessName) (*exec.Cmd, error)

	// Name returns a human-readable name for this process type.
	Name() string
}

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the process state changes.
	OnStateChange func(name descriptor.ProcessName, oldState, newState State)

	// OnStart is called when a process starts.
	OnStart func(name descriptor.ProcessName, pid int)

	// OnExit is called when a process exits.
	OnExit func(name descriptor.ProcessName, exitCode int, uptime time.Duration)

	// OnRestart is called before a restart attempt.
	OnRestart func(name descriptor.ProcessName, attempt int, delay time.Duration)
}

// Supervisor manages the lifecycle of a single neuron process.
// It handles starting, monitoring, and restarting the process with backoff.
type Supervisor struct {
	name      descriptor.ProcessName
	builder   ProcessBuilder
	backoff   *Backoff
	logger    *slog.Logger
	callbacks Callbacks

	// Process output handling
	output *logging.OutputHandler

	// State management
	state     State
	stateMu   sync.RWMutex
	startTime time.Time

	// Current process
	cmd   *exec.Cmd
	cmdMu sync.Mutex

	// Configuration
	maxRestarts int // 0 = unlimited
	restarts    int
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Name        descriptor.ProcessName
	Builder     ProcessBuilder
	Backoff     *Backoff
	Logger      *slog.Logger
	Callbacks   Callbacks
	MaxRestarts int // 0 = unlimited

	// Output receives the process's combined stdout/stderr lines.
	// Optional; when nil the output is classified under the process name
	// with a fresh handler.
	Output *logging.OutputHandler

	// Verbose forwards debug-level process output to the logger.
	Verbose bool
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	output := cfg.Output
	if output == nil {
		output = logging.NewOutputHandler(cfg.Name.String(), cfg.Logger, cfg.Verbose)
	}

	return &Supervisor{
		name:        cfg.Name,
		builder:     cfg.Builder,
		backoff:     cfg.Backoff,
		logger:      cfg.Logger,
		callbacks:   cfg.Callbacks,
		state:       StateCreated,
		maxRestarts: cfg.MaxRestarts,
		output:      output,
	}
}

// Run starts the supervision loop. It blocks until the context is cancelled.
// The supervisor will continuously restart the process on failure until:
// - The context is cancelled
// - MaxRestarts is reached (if configured)
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Debug("supervisor_starting", "process", s.name.String())

	for {
		// Check if we should stop
		select {
		case <-ctx.Done():
			s.setState(StateStopped)
			s.logger.Debug("supervisor_stopped", "process", s.name.String(), "reason", "context_cancelled")
			return ctx.Err()
		default:
		}

		// Check max restarts
		if s.maxRestarts > 0 && s.restarts >= s.maxRestarts {
			s.setState(StateStopped)
			s.logger.Warn("max_restarts_reached",
				"process", s.name.String(),
				"restarts", s.restarts,
				"max", s.maxRestarts,
			)
			return errors.New("max restarts reached")
		}

		// Start the process
		exitCode, uptime, err := s.runOnce(ctx)
		if err != nil && ctx.Err() != nil {
			// Context cancelled during execution
			s.setState(StateStopped)
			return ctx.Err()
		}

		// Process exited, determine if we should reset backoff
		if ShouldReset(uptime, exitCode) {
			s.backoff.Reset()
		}

		// Calculate backoff delay
		delay := s.backoff.Next()
		s.restarts++

		// Notify callback
		if s.callbacks.OnRestart != nil {
			s.callbacks.OnRestart(s.name, s.restarts, delay)
		}

		s.logger.Info("process_restart_scheduled",
			"process", s.name.String(),
			"attempt", s.restarts,
			"delay", delay.String(),
		)

		// Wait with backoff
		s.setState(StateBackoff)
		select {
		case <-ctx.Done():
			s.setState(StateStopped)
			return ctx.Err()
		case <-time.After(delay):
			// Continue to restart
		}
	}
}

// runOnce runs the process once and waits for it to exit.
// Returns the exit code, uptime, and any error.
func (s *Supervisor) runOnce(ctx context.Context) (exitCode int, uptime time.Duration, err error) {
	s.setState(StateStarting)

	cmd, err := s.builder.BuildCommand(ctx, s.name)
	if err != nil {
		s.logger.Error("failed_to_build_command",
			"process", s.name.String(),
			"error", err,
		)
		return 1, 0, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 1, 0, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 1, 0, err
	}

	// Set process group for clean shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	// Store command reference
	s.cmdMu.Lock()
	s.cmd = cmd
	s.cmdMu.Unlock()

	// Start the process
	s.startTime = time.Now()
	if err := cmd.Start(); err != nil {
		s.logger.Error("failed_to_start_process",
			"process", s.name.String(),
			"error", err,
		)
		return 1, 0, err
	}

	pid := cmd.Process.Pid
	s.setState(StateRunning)

	s.logger.Info("process_started",
		"process", s.name.String(),
		"pid", pid,
	)

	// Forward process output through the classifier
	var outputWg sync.WaitGroup
	outputWg.Add(2)
	go func() {
		defer outputWg.Done()
		s.output.HandleReader(stdout)
	}()
	go func() {
		defer outputWg.Done()
		s.output.HandleReader(stderr)
	}()

	// Notify callback
	if s.callbacks.OnStart != nil {
		s.callbacks.OnStart(s.name, pid)
	}

	// Drain output before Wait so the pipes are fully consumed
	outputWg.Wait()

	waitErr := cmd.Wait()
	uptime = time.Since(s.startTime)
	exitCode = extractExitCode(waitErr)

	s.logger.Info("process_exited",
		"process", s.name.String(),
		"pid", pid,
		"exit_code", exitCode,
		"uptime", uptime.String(),
	)

	// Clear command reference
	s.cmdMu.Lock()
	s.cmd = nil
	s.cmdMu.Unlock()

	// Notify callback
	if s.callbacks.OnExit != nil {
		s.callbacks.OnExit(s.name, exitCode, uptime)
	}

	return exitCode, uptime, waitErr
}

// Stop gracefully stops the supervised process.
// It first sends SIGTERM, then SIGKILL if the process doesn't exit.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.cmdMu.Lock()
	cmd := s.cmd
	s.cmdMu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	// Send SIGTERM to the process group
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		cmd.Process.Signal(syscall.SIGTERM)
	}

	// Wait for graceful shutdown
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		// Force kill
		s.logger.Warn("force_killing_process",
			"process", s.name.String(),
			"pid", cmd.Process.Pid,
		)
		if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
			syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			cmd.Process.Kill()
		}
		return errors.New("process did not exit gracefully")
	}
}

// State returns the current state of the supervisor.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState updates the state and calls the callback if registered.
func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	oldState := s.state
	s.state = newState
	s.stateMu.Unlock()

	if s.callbacks.OnStateChange != nil && oldState != newState {
		s.callbacks.OnStateChange(s.name, oldState, newState)
	}
}

// ProcessName returns the name of the supervised process.
func (s *Supervisor) ProcessName() descriptor.ProcessName {
	return s.name
}

// Restarts returns the number of restarts that have occurred.
func (s *Supervisor) Restarts() int {
	return s.restarts
}

// Uptime returns the current uptime if running, or 0 if not.
func (s *Supervisor) Uptime() time.Duration {
	if s.State() != StateRunning {
		return 0
	}
	return time.Since(s.startTime)
}

// Output returns the output handler, for exit-summary error counting.
func (s *Supervisor) Output() *logging.OutputHandler {
	return s.output
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
