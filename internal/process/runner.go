// Package process provides abstractions for running neuron processes.
package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
)

// Builder creates executable commands for named processes.
// This interface allows the supervisor to be process-agnostic.
type Builder interface {
	// BuildCommand returns a ready-to-start command for the given process.
	// The command should NOT be started yet.
	BuildCommand(ctx context.Context, name descriptor.ProcessName) (*exec.Cmd, error)

	// Name returns a human-readable name for this process type.
	Name() string
}

// NeuronRunner implements Builder for the neuron descriptor set.
type NeuronRunner struct {
	workDir string
	defs    map[descriptor.ProcessName]descriptor.Definition
	order   []descriptor.ProcessName
}

// NewNeuronRunner creates a runner over a built descriptor set.
func NewNeuronRunner(defs []descriptor.Definition, workDir string) *NeuronRunner {
	r := &NeuronRunner{
		workDir: workDir,
		defs:    make(map[descriptor.ProcessName]descriptor.Definition, len(defs)),
		order:   make([]descriptor.ProcessName, 0, len(defs)),
	}
	for _, d := range defs {
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r
}

// Name returns "neuron".
func (r *NeuronRunner) Name() string {
	return "neuron"
}

// Names returns every process name in descriptor order.
func (r *NeuronRunner) Names() []descriptor.ProcessName {
	out := make([]descriptor.ProcessName, len(r.order))
	copy(out, r.order)
	return out
}

// Definition returns the definition for a process name.
func (r *NeuronRunner) Definition(name descriptor.ProcessName) (descriptor.Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// BuildCommand creates an exec.Cmd for the named neuron with the
// definition's interpreter, script, rendered arguments and merged
// environment.
func (r *NeuronRunner) BuildCommand(ctx context.Context, name descriptor.ProcessName) (*exec.Cmd, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("no definition for process %s", name)
	}

	argv := append([]string{def.Script}, def.Args...)
	cmd := exec.CommandContext(ctx, def.Interpreter, argv...)
	cmd.Dir = r.workDir
	cmd.Env = def.Environ(os.Environ())
	return cmd, nil
}

// CommandString returns the command line that would be executed for the
// named process (for --print-cmd diagnostics).
func (r *NeuronRunner) CommandString(name descriptor.ProcessName) string {
	def, ok := r.defs[name]
	if !ok {
		return ""
	}
	return def.Interpreter + " " + def.Script + " " + strings.Join(def.Args, " ")
}
