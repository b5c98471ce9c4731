package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
)

// RoleCount is the externally supplied desired instance count for one role.
type RoleCount struct {
	Role  descriptor.Role
	Count int
}

// Callbacks contains optional hooks for controller events.
type Callbacks struct {
	// OnDirective is called after each restart directive completes,
	// with the error it produced (nil on success).
	OnDirective func(name descriptor.ProcessName, err error)
}

// Config holds configuration for creating a Controller.
type Config struct {
	// Manager is the process-manager binary, default "pm2".
	Manager string

	// EcosystemFile is the descriptor-set file passed to every directive.
	EcosystemFile string

	// WorkDir is the fixed working directory the descriptor set is
	// defined in. Directives execute there.
	WorkDir string

	Logger    *slog.Logger
	Execer    Execer
	Callbacks Callbacks
}

// Controller restarts groups of named processes through the external
// process manager.
type Controller struct {
	manager   string
	ecosystem string
	workDir   string
	logger    *slog.Logger
	execer    Execer
	callbacks Callbacks
}

// New creates a Controller. Zero-value Config fields get defaults.
func New(cfg Config) *Controller {
	manager := cfg.Manager
	if manager == "" {
		manager = "pm2"
	}
	ecosystem := cfg.EcosystemFile
	if ecosystem == "" {
		ecosystem = "ecosystem.config.json"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	execer := cfg.Execer
	if execer == nil {
		execer = ExecRunner{}
	}

	return &Controller{
		manager:   manager,
		ecosystem: ecosystem,
		workDir:   cfg.WorkDir,
		logger:    logger,
		execer:    execer,
		callbacks: cfg.Callbacks,
	}
}

// Directives expands role counts into the ordered list of process names to
// restart: indices 1..N ascending within each role, roles in input order,
// nothing for a zero count. No existence check is performed; wrong counts
// address processes the manager will report as unknown.
func Directives(counts []RoleCount) []descriptor.ProcessName {
	var names []descriptor.ProcessName
	for _, rc := range counts {
		for i := 1; i <= rc.Count; i++ {
			names = append(names, descriptor.ProcessName{Role: rc.Role, Index: i})
		}
	}
	return names
}

// RestartGroups issues one restart directive per expanded process name.
// A failing directive does not block the ones after it; all failures are
// joined into the returned error.
func (c *Controller) RestartGroups(ctx context.Context, counts []RoleCount) error {
	for _, rc := range counts {
		if rc.Count < 0 {
			return fmt.Errorf("%s: count %d must be non-negative", rc.Role, rc.Count)
		}
	}

	names := Directives(counts)
	c.logger.Info("restart_group_starting",
		"directives", len(names),
		"manager", c.manager,
	)

	var errs []error
	for _, name := range names {
		err := c.restartOne(ctx, name)
		if c.callbacks.OnDirective != nil {
			c.callbacks.OnDirective(name, err)
		}
		if err != nil {
			c.logger.Warn("restart_directive_failed",
				"process", name.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("restart %s: %w", name, err))
			continue
		}
		c.logger.Info("restart_directive_issued", "process", name.String())
	}

	return errors.Join(errs...)
}

// restartOne issues `pm2 restart <ecosystem> --only <name>` in the
// configured working directory.
func (c *Controller) restartOne(ctx context.Context, name descriptor.ProcessName) error {
	return c.execer.Run(ctx, c.workDir,
		c.manager, "restart", c.ecosystem, "--only", name.String())
}
