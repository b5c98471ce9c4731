package provision

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/shlex"

	"github.com/randomizedcoder/go-neuron-swarm/internal/controller"
)

// Applier executes a provisioning config against the target through an
// injectable command runner: provision, then sync, then reload.
type Applier struct {
	execer controller.Execer
	logger *slog.Logger
}

// NewApplier creates an Applier that shells out through execer.
func NewApplier(execer controller.Execer, logger *slog.Logger) *Applier {
	return &Applier{execer: execer, logger: logger}
}

// Apply runs the full provisioning sequence from workDir. Sync pairs
// are applied in config order. The first failing step aborts the
// sequence: later steps assume the earlier ones succeeded.
func (a *Applier) Apply(ctx context.Context, cfg *Config, workDir string) error {
	name, args, err := provisionCommand(cfg)
	if err != nil {
		return err
	}

	a.logger.Info("provisioning",
		"type", string(cfg.Provisioning.Type),
		"command", name)
	if err := a.execer.Run(ctx, workDir, name, args...); err != nil {
		return fmt.Errorf("provisioning step (%s): %w", cfg.Provisioning.Type, err)
	}

	for i, pair := range cfg.Sync {
		a.logger.Info("syncing", "source", pair.Source, "destination", pair.Destination)
		if err := a.execer.Run(ctx, workDir, "rsync", syncArgs(pair)...); err != nil {
			return fmt.Errorf("sync[%d] %s -> %s: %w", i, pair.Source, pair.Destination, err)
		}
	}

	if cfg.Reload != nil {
		name, args, err := reloadCommand(cfg.Reload)
		if err != nil {
			return err
		}
		a.logger.Info("reloading", "type", string(cfg.Reload.Type))
		if err := a.execer.Run(ctx, workDir, name, args...); err != nil {
			return fmt.Errorf("reload step (%s): %w", cfg.Reload.Type, err)
		}
	}

	return nil
}

// provisionCommand builds the provisioner invocation for the config.
// The environment map is applied through env(1) so it reaches the
// provisioner regardless of type.
func provisionCommand(cfg *Config) (string, []string, error) {
	var name string
	var args []string

	switch cfg.Provisioning.Type {
	case TypeAnsible:
		name = "ansible-playbook"
		args = []string{cfg.Provisioning.Playbook, "-l", cfg.Provisioning.HostGroup}
		if cfg.Provisioning.VarsFile != "" {
			args = append(args, "-e", "@"+cfg.Provisioning.VarsFile)
		}
		for _, key := range sortedKeys(cfg.Provisioning.ExtraVars) {
			args = append(args, "-e", key+"="+cfg.Provisioning.ExtraVars[key])
		}

	case TypeScript:
		parts, err := shlex.Split(cfg.Provisioning.Command)
		if err != nil {
			return "", nil, fmt.Errorf("parsing provisioning command: %w", err)
		}
		if len(parts) == 0 {
			return "", nil, fmt.Errorf("provisioning command is empty")
		}
		name = parts[0]
		args = parts[1:]

	case TypeDocker:
		name = "docker"
		args = []string{"compose", "-f", cfg.Provisioning.ComposeFile, "up", "-d"}

	default:
		return "", nil, fmt.Errorf("unknown provisioning type %q", cfg.Provisioning.Type)
	}

	if len(cfg.Environment) > 0 {
		envArgs := make([]string, 0, len(cfg.Environment)+1+len(args))
		for _, key := range sortedKeys(cfg.Environment) {
			envArgs = append(envArgs, key+"="+cfg.Environment[key])
		}
		envArgs = append(envArgs, name)
		envArgs = append(envArgs, args...)
		return "env", envArgs, nil
	}

	return name, args, nil
}

// syncArgs builds the rsync arguments for one pair. Trailing-slash
// semantics are the operator's responsibility, same as hand-run rsync.
func syncArgs(pair SyncPair) []string {
	return []string{"-az", "--delete", pair.Source, pair.Destination}
}

// reloadCommand builds the post-provision reload invocation.
func reloadCommand(r *Reload) (string, []string, error) {
	switch r.Type {
	case TypeAnsible:
		return "ansible-playbook", []string{r.Playbook}, nil

	case TypeScript:
		parts, err := shlex.Split(r.Command)
		if err != nil {
			return "", nil, fmt.Errorf("parsing reload command: %w", err)
		}
		if len(parts) == 0 {
			return "", nil, fmt.Errorf("reload command is empty")
		}
		return parts[0], parts[1:], nil

	case TypeDocker:
		return "docker", []string{"compose", "-f", r.ComposeFile, "restart"}, nil

	default:
		return "", nil, fmt.Errorf("unknown reload type %q", r.Type)
	}
}

// sortedKeys returns map keys in stable order so generated commands are
// deterministic.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
