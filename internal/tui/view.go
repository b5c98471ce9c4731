package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderDashboard renders the full dashboard.
func (m Model) renderDashboard() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderProgress())
	sections = append(sections, m.renderProcessTable())

	if m.host != nil {
		sections = append(sections, m.renderHostStats())
	}

	if m.hasErrors() {
		sections = append(sections, m.renderErrorStats())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" go-neuron-swarm │ run %s │ %s │ Neurons: %d/%d │ Elapsed: %s ",
		m.runID,
		m.network,
		m.active,
		m.targetProcesses,
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Ramp Progress
// =============================================================================

func (m Model) renderProgress() string {
	progress := m.RampProgress()

	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(progress, barWidth)

	var status string
	if progress >= 1.0 {
		status = statusOK.Render("✓ All neurons running")
	} else {
		status = statusInfo.Render(fmt.Sprintf("Ramping up... %d/%d", m.active, m.targetProcesses))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Ramp Progress"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Process Table
// =============================================================================

func (m Model) renderProcessTable() string {
	header := tableHeaderStyle.Render(
		fmt.Sprintf("%-8s %-12s %-10s %10s %12s", "NAME", "ROLE", "STATE", "RESTARTS", "UPTIME"))

	lines := []string{header}
	for _, row := range m.rows {
		restarts := fmt.Sprintf("%d", row.Restarts)
		restartStyle := valueStyle
		if row.Restarts > 0 {
			restartStyle = valueWarnStyle
		}

		line := fmt.Sprintf("%-8s %-12s %s %s %12s",
			row.Name.String(),
			row.Name.Role.String(),
			StateStyle(row.State).Render(fmt.Sprintf("%-10s", row.State.String())),
			restartStyle.Render(fmt.Sprintf("%10s", restarts)),
			formatUptime(row.Uptime),
		)
		lines = append(lines, line)
	}

	if len(m.rows) == 0 {
		lines = append(lines, dimStyle.Render("  (no processes yet)"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Neuron Processes")}, lines...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Host Statistics
// =============================================================================

func (m Model) renderHostStats() string {
	h := m.host

	if !h.Healthy {
		content := lipgloss.JoinVertical(lipgloss.Left,
			sectionHeaderStyle.Render("GPU Host"),
			statusWarning.Render("● scrape failing: "+h.Error),
		)
		return boxStyle.Width(m.width - 2).Render(content)
	}

	rows := []string{
		RenderKeyValue("CPU", fmt.Sprintf("%.1f%%", h.CPUPercent)),
		RenderKeyValue("Memory", fmt.Sprintf("%s / %s (%.1f%%)",
			formatBytes(h.MemUsed), formatBytes(h.MemTotal), h.MemPercent)),
		RenderKeyValue("Net in/out", fmt.Sprintf("%s/s / %s/s",
			formatBytes(int64(h.NetInRate)), formatBytes(int64(h.NetOutRate)))),
	}

	if h.GPUMemTotal > 0 {
		gpuStyle := GPUStyle(h.GPUUtilPercent)
		rows = append(rows,
			lipgloss.JoinHorizontal(lipgloss.Left,
				labelStyle.Render("GPU util:"),
				gpuStyle.Render(fmt.Sprintf("%.0f%%", h.GPUUtilPercent)),
				mutedStyle.Render(fmt.Sprintf("  (p50 %.0f%%, max %.0f%% over %ds)",
					h.GPUUtilP50, h.GPUUtilMax, h.NetWindowSeconds)),
			),
			RenderKeyValue("GPU memory", fmt.Sprintf("%s / %s",
				formatBytes(h.GPUMemUsed), formatBytes(h.GPUMemTotal))),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("GPU Host")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Error Statistics
// =============================================================================

func (m Model) renderErrorStats() string {
	// Stable ordering for rendering
	keys := make([]string, 0, len(m.errors))
	for key, count := range m.errors {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	rows := make([]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render(key+":"),
			valueBadStyle.Render(fmt.Sprintf("%d", m.errors[key])),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Neuron Errors")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	parts := []string{
		fmt.Sprintf("restarts: %d", m.restarts),
	}
	if m.metricsAddr != "" {
		parts = append(parts, "metrics: http://"+m.metricsAddr+"/metrics")
	}
	parts = append(parts, "q: quit  r: refresh")

	return footerStyle.Render(" " + strings.Join(parts, " │ "))
}

// =============================================================================
// Formatting Helpers
// =============================================================================

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatUptime(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
