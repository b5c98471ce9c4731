// Package controller issues restart directives against the external
// process manager, one per role/index.
package controller

import (
	"context"
	"os"
	"os/exec"
)

// Execer runs one external command to completion. The controller never
// spawns the process manager directly so tests can substitute a fake.
type Execer interface {
	// Run executes name with args in dir, inheriting stdout/stderr.
	Run(ctx context.Context, dir string, name string, args ...string) error
}

// ExecRunner is the production Execer backed by os/exec.
type ExecRunner struct{}

// Run implements Execer.
func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
