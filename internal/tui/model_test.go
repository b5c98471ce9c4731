package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
	"github.com/randomizedcoder/go-neuron-swarm/internal/metrics"
	"github.com/randomizedcoder/go-neuron-swarm/internal/supervisor"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeSwarm struct {
	states   map[descriptor.ProcessName]supervisor.State
	active   int
	started  int
	restarts int
	errors   map[string]int
}

func (f *fakeSwarm) States() map[descriptor.ProcessName]supervisor.State { return f.states }
func (f *fakeSwarm) GetSupervisor(descriptor.ProcessName) *supervisor.Supervisor {
	return nil
}
func (f *fakeSwarm) ActiveCount() int          { return f.active }
func (f *fakeSwarm) StartedCount() int         { return f.started }
func (f *fakeSwarm) RestartCount() int         { return f.restarts }
func (f *fakeSwarm) ErrorCounts() map[string]int {
	return f.errors
}

type fakeHost struct {
	metrics *metrics.HostMetrics
}

func (f *fakeHost) GetMetrics() *metrics.HostMetrics { return f.metrics }

func name(role descriptor.Role, index int) descriptor.ProcessName {
	return descriptor.ProcessName{Role: role, Index: index}
}

func testSwarm() *fakeSwarm {
	return &fakeSwarm{
		states: map[descriptor.ProcessName]supervisor.State{
			name(descriptor.RoleValidator, 1): supervisor.StateRunning,
			name(descriptor.RoleMiner, 2):     supervisor.StateBackoff,
			name(descriptor.RoleMiner, 1):     supervisor.StateRunning,
		},
		active:   2,
		started:  3,
		restarts: 1,
	}
}

func testModel() Model {
	m := New(Config{
		TargetProcesses: 3,
		Network:         "test",
		RunID:           "abcd1234",
		MetricsAddr:     "localhost:9108",
		SwarmSource:     testSwarm(),
	})
	return m.refresh()
}

// =============================================================================
// Model Tests
// =============================================================================

func TestSnapshotRows_Sorted(t *testing.T) {
	rows := snapshotRows(testSwarm())

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	// Miners before validators, ascending index within a role
	want := []string{"TM1", "TM2", "TV1"}
	for i, w := range want {
		if got := rows[i].Name.String(); got != w {
			t.Errorf("rows[%d] = %s, want %s", i, got, w)
		}
	}
}

func TestRampProgress(t *testing.T) {
	tests := []struct {
		name   string
		target int
		active int
		want   float64
	}{
		{"empty", 0, 0, 0},
		{"half", 4, 2, 0.5},
		{"full", 3, 3, 1.0},
		{"clamped", 2, 5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Model{targetProcesses: tt.target, active: tt.active}
			if got := m.RampProgress(); got != tt.want {
				t.Errorf("RampProgress() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		t.Run(key, func(t *testing.T) {
			m := testModel()

			var msg tea.Msg
			switch key {
			case "ctrl+c":
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			case "esc":
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			default:
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			}

			next, cmd := m.Update(msg)
			if !next.(Model).quitting {
				t.Error("model should be quitting")
			}
			if cmd == nil {
				t.Error("expected a quit command")
			}
		})
	}
}

func TestUpdate_WindowSize(t *testing.T) {
	m := testModel()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	got := next.(Model)
	if got.width != 120 || got.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", got.width, got.height)
	}
}

func TestUpdate_TickRefreshes(t *testing.T) {
	swarm := testSwarm()
	m := New(Config{TargetProcesses: 3, SwarmSource: swarm})

	swarm.active = 3
	next, cmd := m.Update(TickMsg(time.Now()))
	got := next.(Model)

	if got.active != 3 {
		t.Errorf("active = %d, want 3 after tick", got.active)
	}
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
}

func TestHasErrors(t *testing.T) {
	m := Model{errors: map[string]int{"NaN loss": 0}}
	if m.hasErrors() {
		t.Error("zero counts should not register as errors")
	}
	m.errors["NaN loss"] = 2
	if !m.hasErrors() {
		t.Error("non-zero count should register as errors")
	}
}

// =============================================================================
// View Tests
// =============================================================================

func TestView_ContainsProcesses(t *testing.T) {
	view := testModel().View()

	for _, want := range []string{"TM1", "TM2", "TV1", "abcd1234", "Ramp Progress"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestView_EmptySwarm(t *testing.T) {
	m := New(Config{TargetProcesses: 0})
	view := m.View()
	if !strings.Contains(view, "no processes yet") {
		t.Error("empty view should show the placeholder row")
	}
}

func TestView_QuittingIsEmpty(t *testing.T) {
	m := testModel()
	m.quitting = true
	if m.View() != "" {
		t.Error("quitting view should be empty")
	}
}

func TestView_HostSection(t *testing.T) {
	m := testModel()
	m.hostSource = &fakeHost{metrics: &metrics.HostMetrics{
		Healthy:        true,
		CPUPercent:     42.5,
		MemUsed:        2 << 30,
		MemTotal:       8 << 30,
		MemPercent:     25,
		GPUUtilPercent: 97,
		GPUMemUsed:     70 << 30,
		GPUMemTotal:    80 << 30,
	}}
	m = m.refresh()

	view := m.View()
	for _, want := range []string{"GPU Host", "42.5%", "97%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestView_HostScrapeFailing(t *testing.T) {
	m := testModel()
	m.hostSource = &fakeHost{metrics: &metrics.HostMetrics{
		Healthy: false,
		Error:   "connection refused",
	}}
	m = m.refresh()

	if !strings.Contains(m.View(), "scrape failing") {
		t.Error("unhealthy host should render the failure banner")
	}
}

func TestView_ErrorSection(t *testing.T) {
	m := testModel()
	m.errors = map[string]int{"CUDA out of memory": 3}

	if !strings.Contains(m.View(), "CUDA out of memory") {
		t.Error("error section should list observed neuron errors")
	}
}

// =============================================================================
// Formatting Tests
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{61 * time.Second, "00:01:01"},
		{3*time.Hour + 4*time.Minute + 5*time.Second, "03:04:05"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "-"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h05m"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		b    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 << 20, "3.0 MiB"},
		{80 << 30, "80.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.b); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.b, got, tt.want)
		}
	}
}

func TestRenderProgressBar(t *testing.T) {
	bar := RenderProgressBar(0.5, 20)
	if !strings.Contains(bar, "50%") {
		t.Errorf("bar = %q, missing percentage", bar)
	}

	full := RenderProgressBar(1.5, 20)
	if !strings.Contains(full, "150%") && !strings.Contains(full, "100%") {
		t.Errorf("overfull bar = %q", full)
	}
}

func TestStateStyle(t *testing.T) {
	// Distinct states should not all share one style
	running := StateStyle(supervisor.StateRunning).Render("x")
	stopped := StateStyle(supervisor.StateStopped).Render("x")
	_ = running
	_ = stopped
	// Styles degrade to plain text without a TTY; just exercise the switch
	for _, s := range []supervisor.State{
		supervisor.StateCreated, supervisor.StateStarting,
		supervisor.StateRunning, supervisor.StateBackoff,
		supervisor.StateStopped,
	} {
		StateStyle(s)
	}
}
