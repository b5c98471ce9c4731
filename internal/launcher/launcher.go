package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"github.com/randomizedcoder/go-neuron-swarm/internal/controller"
)

// Launcher collects node settings and brings the node up through
// docker compose.
type Launcher struct {
	execer controller.Execer
	logger *slog.Logger

	// WorkDir is where the compose files live.
	WorkDir string

	// Fields is the questionnaire; defaults to DefaultFields.
	Fields []Field

	// Prompt collects answers. Defaults to the interactive form so
	// tests can substitute canned answers.
	Prompt func(fields []Field) (Answers, error)
}

// New creates a Launcher that shells out through execer.
func New(execer controller.Execer, workDir string, logger *slog.Logger) *Launcher {
	return &Launcher{
		execer:  execer,
		logger:  logger,
		WorkDir: workDir,
		Fields:  DefaultFields(),
		Prompt:  RunForm,
	}
}

// Run prompts for settings, exports them into the process environment,
// and starts the node's compose stack detached.
func (l *Launcher) Run(ctx context.Context) error {
	answers, err := l.Prompt(l.Fields)
	if err != nil {
		return fmt.Errorf("collecting launch settings: %w", err)
	}
	return l.Launch(ctx, answers)
}

// Launch applies validated answers: environment export then compose up.
// Split from Run so non-interactive callers can supply answers directly.
func (l *Launcher) Launch(ctx context.Context, answers Answers) error {
	nodeType, ok := answers["NODE_TYPE"]
	if !ok {
		return fmt.Errorf("NODE_TYPE missing from answers")
	}
	if err := validateNodeType(nodeType); err != nil {
		return fmt.Errorf("NODE_TYPE: %w", err)
	}

	// Compose reads the variables from the calling environment, so
	// export them rather than passing them per-command.
	for _, f := range l.Fields {
		if value, ok := answers[f.Key]; ok {
			if err := os.Setenv(f.Key, value); err != nil {
				return fmt.Errorf("exporting %s: %w", f.Key, err)
			}
		}
	}

	composeFile := ComposeFile(nodeType)
	l.logger.Info("starting node",
		"node_type", nodeType,
		"compose_file", composeFile,
		"wallet", answers["WALLET_NAME"],
		"network", answers["NETWORK"])

	spin := spinner.New(spinner.CharSets[21], 120*time.Millisecond, spinner.WithWriter(os.Stdout))
	spin.Suffix = fmt.Sprintf(" starting %s via %s...", nodeType, composeFile)
	spin.Start()
	err := l.execer.Run(ctx, l.WorkDir, "docker", "compose", "-f", composeFile, "up", "-d")
	spin.Stop()

	if err != nil {
		return fmt.Errorf("docker compose up failed: %w", err)
	}

	fmt.Printf("✓ %s started. Follow logs with: docker compose -f %s logs -f\n", nodeType, composeFile)
	return nil
}
