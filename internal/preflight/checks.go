// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/randomizedcoder/go-neuron-swarm/internal/config"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks for the given deployment.
func RunAll(cfg *config.Config) *Result {
	result := &Result{
		Checks: make([]Check, 0, 6),
		Passed: true,
	}

	processes := cfg.ProcessCount()

	fdCheck := checkFileDescriptors(processes)
	result.Checks = append(result.Checks, fdCheck)
	if !fdCheck.Passed {
		result.Passed = false
	}

	procCheck := checkProcessLimit(processes)
	result.Checks = append(result.Checks, procCheck)
	if !procCheck.Passed {
		result.Passed = false
	}

	interpCheck := checkInterpreter(cfg.Interpreter)
	result.Checks = append(result.Checks, interpCheck)
	if !interpCheck.Passed {
		result.Passed = false
	}

	scriptCheck := checkScripts(cfg)
	result.Checks = append(result.Checks, scriptCheck)
	if !scriptCheck.Passed {
		result.Passed = false
	}

	// GPU check (warning only: CPU-only validators are legitimate)
	result.Checks = append(result.Checks, checkGPU(cfg))

	// Manager check only matters for ecosystem/restart flows, warn only
	result.Checks = append(result.Checks, checkManager(cfg.Manager))

	return result
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(processes int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	// Each neuron holds websocket connections to the chain, checkpoint
	// bucket transfers, and log pipes. Plus orchestrator overhead.
	required := processes*50 + 100
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d neurons)", actual, required, processes),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
// RLIMIT_NPROC is not exported by Go's syscall package, so the soft limit
// is read from /proc/self/limits.
func checkProcessLimit(processes int) Check {
	// Trainers fork dataloader workers, so budget well past the neuron count
	required := processes*8 + 50

	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	actual := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Max processes") {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if fields[3] == "unlimited" {
					actual = 1000000
				} else {
					fmt.Sscanf(fields[3], "%d", &actual)
				}
			}
			break
		}
	}

	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// checkInterpreter verifies the neuron interpreter is available.
func checkInterpreter(interpreter string) Check {
	cmd := exec.Command(interpreter, "--version")
	output, err := cmd.Output()

	if err != nil {
		return Check{
			Name:    "interpreter",
			Passed:  false,
			Message: fmt.Sprintf("%s not found: %v", interpreter, err),
		}
	}

	// "Python 3.11.9"
	version := "unknown"
	if fields := strings.Fields(strings.TrimSpace(string(output))); len(fields) >= 2 {
		version = fields[1]
	}

	return Check{
		Name:    "interpreter",
		Passed:  true,
		Message: fmt.Sprintf("%s (version %s)", interpreter, version),
	}
}

// checkScripts verifies that every neuron script referenced by the config
// exists relative to the working directory.
func checkScripts(cfg *config.Config) Check {
	var missing []string

	check := func(script string, needed bool) {
		if !needed || script == "" {
			return
		}
		path := script
		if !strings.HasPrefix(path, "/") {
			path = cfg.WorkDir + "/" + script
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, script)
		}
	}

	check(cfg.MinerScript, len(cfg.Miners) > 0)
	check(cfg.ValidatorScript, len(cfg.Validators) > 0)
	check(cfg.AggregatorScript, len(cfg.Aggregators) > 0)

	if len(missing) > 0 {
		return Check{
			Name:    "neuron_scripts",
			Passed:  false,
			Message: fmt.Sprintf("missing: %s", strings.Join(missing, ", ")),
		}
	}

	return Check{
		Name:    "neuron_scripts",
		Passed:  true,
		Message: "all referenced scripts found",
	}
}

// checkGPU verifies nvidia-smi responds when any instance requests a CUDA
// device. Warning only: validators commonly run on CPU.
func checkGPU(cfg *config.Config) Check {
	wantsCUDA := false
	for _, inst := range cfg.Miners {
		if strings.HasPrefix(inst.Device, "cuda") {
			wantsCUDA = true
		}
	}
	for _, inst := range cfg.Validators {
		if strings.HasPrefix(inst.Device, "cuda") {
			wantsCUDA = true
		}
	}
	for _, inst := range cfg.Aggregators {
		if strings.HasPrefix(inst.Device, "cuda") {
			wantsCUDA = true
		}
	}

	if !wantsCUDA {
		return Check{
			Name:    "gpu",
			Passed:  true,
			Message: "no CUDA devices requested",
		}
	}

	cmd := exec.Command("nvidia-smi", "--query-gpu=count", "--format=csv,noheader")
	output, err := cmd.Output()
	if err != nil {
		return Check{
			Name:    "gpu",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("nvidia-smi failed (%v), CUDA neurons may not start", err),
		}
	}

	gpus := len(strings.Split(strings.TrimSpace(string(output)), "\n"))
	return Check{
		Name:    "gpu",
		Passed:  true,
		Message: fmt.Sprintf("%d GPU(s) visible", gpus),
	}
}

// checkManager verifies the process manager binary is reachable.
// Warning only: run mode supervises neurons directly and never shells out
// to the manager.
func checkManager(manager string) Check {
	if manager == "" {
		return Check{
			Name:    "process_manager",
			Passed:  true,
			Warning: true,
			Message: "not configured",
		}
	}

	if _, err := exec.LookPath(manager); err != nil {
		return Check{
			Name:    "process_manager",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s not on PATH (restart directives will fail)", manager),
		}
	}

	return Check{
		Name:    "process_manager",
		Passed:  true,
		Message: fmt.Sprintf("%s found", manager),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	case "interpreter":
		return "install python3 or point --interpreter at your venv"
	case "neuron_scripts":
		return "check --workdir points at the repository checkout"
	default:
		return "see documentation"
	}
}
