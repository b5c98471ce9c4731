package tui

import (
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
	"github.com/randomizedcoder/go-neuron-swarm/internal/metrics"
	"github.com/randomizedcoder/go-neuron-swarm/internal/supervisor"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Sources
// =============================================================================

// SwarmSource provides live process-group state. *orchestrator.GroupManager
// implements it.
type SwarmSource interface {
	States() map[descriptor.ProcessName]supervisor.State
	GetSupervisor(name descriptor.ProcessName) *supervisor.Supervisor
	ActiveCount() int
	StartedCount() int
	RestartCount() int
	ErrorCounts() map[string]int
}

// HostSource provides GPU-host metrics. *metrics.HostScraper implements it.
type HostSource interface {
	GetMetrics() *metrics.HostMetrics
}

// ProcessRow is one line of the process table.
type ProcessRow struct {
	Name     descriptor.ProcessName
	State    supervisor.State
	Restarts int
	Uptime   time.Duration
}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	targetProcesses int
	network         string
	runID           string
	metricsAddr     string

	// Current state
	rows       []ProcessRow
	active     int
	restarts   int
	errors     map[string]int
	host       *metrics.HostMetrics
	startTime  time.Time
	lastUpdate time.Time

	// Display options
	width  int
	height int

	// Sources
	swarmSource SwarmSource
	hostSource  HostSource

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	TargetProcesses int
	Network         string
	RunID           string
	MetricsAddr     string
	SwarmSource     SwarmSource
	HostSource      HostSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		targetProcesses: cfg.TargetProcesses,
		network:         cfg.Network,
		runID:           cfg.RunID,
		metricsAddr:     cfg.MetricsAddr,
		swarmSource:     cfg.SwarmSource,
		hostSource:      cfg.HostSource,
		startTime:       time.Now(),
		lastUpdate:      time.Now(),
		width:           80,
		height:          24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			// Force refresh
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m = m.refresh()
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// =============================================================================
// Data Refresh
// =============================================================================

// refresh pulls a fresh snapshot from the sources.
func (m Model) refresh() Model {
	if m.swarmSource != nil {
		m.rows = snapshotRows(m.swarmSource)
		m.active = m.swarmSource.ActiveCount()
		m.restarts = m.swarmSource.RestartCount()
		m.errors = m.swarmSource.ErrorCounts()
	}
	if m.hostSource != nil {
		m.host = m.hostSource.GetMetrics()
	}
	m.lastUpdate = time.Now()
	return m
}

// snapshotRows converts the live state map into a stable, sorted table.
func snapshotRows(src SwarmSource) []ProcessRow {
	states := src.States()
	rows := make([]ProcessRow, 0, len(states))

	for name, state := range states {
		row := ProcessRow{Name: name, State: state}
		if sup := src.GetSupervisor(name); sup != nil {
			row.Restarts = sup.Restarts()
			row.Uptime = sup.Uptime()
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name.Role != rows[j].Name.Role {
			return rows[i].Name.Role < rows[j].Name.Role
		}
		return rows[i].Name.Index < rows[j].Name.Index
	})
	return rows
}

// RampProgress returns the fraction of target processes that are active.
func (m Model) RampProgress() float64 {
	if m.targetProcesses == 0 {
		return 0
	}
	progress := float64(m.active) / float64(m.targetProcesses)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

func (m Model) hasErrors() bool {
	for _, count := range m.errors {
		if count > 0 {
			return true
		}
	}
	return false
}

// tickCmd returns a command that sends a TickMsg after one second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Run starts the TUI program and blocks until it exits.
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
