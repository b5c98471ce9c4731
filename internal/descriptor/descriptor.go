package descriptor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// Instance holds the per-process substitutions for one neuron: the wallet
// hotkey label that distinguishes it from its siblings and the compute
// device it is pinned to.
type Instance struct {
	Hotkey string `yaml:"hotkey"`
	Device string `yaml:"device"`
}

// Spec describes how to build the full descriptor set for one deployment.
type Spec struct {
	// WalletName is the coldkey wallet shared by every process.
	WalletName string

	// Network and Netuid select the chain endpoint and subnet.
	Network string
	Netuid  int

	// Project is the base run/project name. The run identifier is appended
	// so concurrently started processes report under the same logical run.
	Project string

	// Interpreter runs the neuron scripts, e.g. "python3".
	Interpreter string

	// Script paths per role.
	MinerScript      string
	ValidatorScript  string
	AggregatorScript string

	// Per-role instances, index i produces process <Prefix>i+1.
	Miners      []Instance
	Validators  []Instance
	Aggregators []Instance

	// Env entries applied to every definition, after the ambient
	// environment and before the run identifier override.
	Env map[string]string

	// ExtraArgs is an operator-supplied argument string appended verbatim
	// (shell-split) to every definition.
	ExtraArgs string

	// Debug enables debug logging on every neuron.
	Debug bool
}

// Definition is one immutable process entry of the descriptor set.
type Definition struct {
	Name        ProcessName
	Script      string
	Interpreter string
	Env         map[string]string
	Args        []string
}

// ArgString renders the argument vector as the single string the process
// manager stores. Tokens are joined with exactly one space; the historical
// template glued one trailing flag to its neighbour, which the consuming
// parser happened to tolerate, but regenerated output keeps every
// separator.
func (d Definition) ArgString() string {
	return strings.Join(d.Args, " ")
}

// Environ merges the definition env over a base environment (usually
// os.Environ). Definition entries override base entries of the same key.
func (d Definition) Environ(base []string) []string {
	merged := make([]string, 0, len(base)+len(d.Env))
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if ok {
			if _, shadowed := d.Env[key]; shadowed {
				continue
			}
		}
		merged = append(merged, kv)
	}

	keys := make([]string, 0, len(d.Env))
	for k := range d.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+d.Env[k])
	}
	return merged
}

// Build renders the descriptor set for spec. The run identifier is computed
// once by the caller and reused across all entries of one load: it lands in
// every definition's env and in the --project argument.
func Build(spec *Spec, runID string) ([]Definition, error) {
	if runID == "" {
		return nil, fmt.Errorf("run identifier must not be empty")
	}
	if spec.WalletName == "" {
		return nil, fmt.Errorf("wallet name must not be empty")
	}

	extra, err := shlex.Split(spec.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("split extra args %q: %w", spec.ExtraArgs, err)
	}

	groups := []struct {
		role      Role
		script    string
		instances []Instance
	}{
		{RoleMiner, spec.MinerScript, spec.Miners},
		{RoleValidator, spec.ValidatorScript, spec.Validators},
		{RoleAggregator, spec.AggregatorScript, spec.Aggregators},
	}

	var defs []Definition
	for _, g := range groups {
		if len(g.instances) > 0 && g.script == "" {
			return nil, fmt.Errorf("%s script path must not be empty", g.role)
		}
		for i, inst := range g.instances {
			name := ProcessName{Role: g.role, Index: i + 1}
			if inst.Hotkey == "" {
				return nil, fmt.Errorf("%s: hotkey must not be empty", name)
			}
			defs = append(defs, Definition{
				Name:        name,
				Script:      g.script,
				Interpreter: spec.Interpreter,
				Env:         buildEnv(spec.Env, runID),
				Args:        buildArgs(spec, inst, runID, extra),
			})
		}
	}

	return defs, nil
}

// buildEnv copies the shared env entries and applies the run identifier
// override on top.
func buildEnv(shared map[string]string, runID string) map[string]string {
	env := make(map[string]string, len(shared)+1)
	for k, v := range shared {
		env[k] = v
	}
	env["RUN_ID"] = runID
	return env
}

// buildArgs renders one entry's argument template. Flag order is fixed so
// regenerated descriptor sets diff cleanly.
func buildArgs(spec *Spec, inst Instance, runID string, extra []string) []string {
	args := []string{
		"--wallet.name", spec.WalletName,
		"--wallet.hotkey", inst.Hotkey,
	}

	if inst.Device != "" {
		args = append(args, "--device", inst.Device)
	}

	if spec.Network != "" {
		args = append(args, "--subtensor.network", spec.Network)
	}
	if spec.Netuid > 0 {
		args = append(args, "--netuid", strconv.Itoa(spec.Netuid))
	}

	args = append(args, "--project", projectName(spec.Project, runID))

	if spec.Debug {
		args = append(args, "--debug")
	}

	args = append(args, extra...)
	return args
}

// projectName joins the base project name with the shared run identifier.
func projectName(base, runID string) string {
	if base == "" {
		return runID
	}
	return base + "-" + runID
}
