package logging

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of lines to buffer per process.
	MaxBufferedLines = 100
)

// OutputHandler handles combined stdout/stderr output from neuron
// processes. It buffers recent lines for the exit summary and forwards
// them to the structured logger at a level inferred from the line.
type OutputHandler struct {
	process string
	logger  *slog.Logger
	verbose bool

	// Called with the classified level of every line, if set
	lineHook func(slog.Level)

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewOutputHandler creates a new output handler for a named process.
func NewOutputHandler(process string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		process: process,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// SetLineHook registers a callback invoked with the classified level of
// every line. Set it before the process starts producing output.
func (h *OutputHandler) SetLineHook(hook func(slog.Level)) {
	h.lineHook = hook
}

// HandleReader reads from an io.Reader and processes each line.
// This should be run in a goroutine.
func (h *OutputHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	// Neuron tracebacks produce long lines
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
}

// HandleLine processes a single line of process output.
func (h *OutputHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	level := classifyLine(line)
	if h.lineHook != nil {
		h.lineHook(level)
	}
	h.logLine(line, level)
}

// logLine logs the line at its classified level.
func (h *OutputHandler) logLine(line string, level slog.Level) {
	// In non-verbose mode, only surface warnings and errors
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(nil, level, "neuron_output",
		"process", h.process,
		"line", line,
	)
}

// classifyLine maps a neuron log line (loguru-style level markers, chain
// client errors, CUDA failures) onto a slog level.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	switch {
	case strings.Contains(lower, "| error") ||
		strings.Contains(lower, "traceback (most recent call last)") ||
		strings.Contains(lower, "cuda out of memory") ||
		strings.Contains(lower, "is not registered on subnet"):
		return slog.LevelError

	case strings.Contains(lower, "| warning") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "websocket") && strings.Contains(lower, "closed") ||
		strings.Contains(lower, "retrying"):
		return slog.LevelWarn

	case strings.Contains(lower, "| info"):
		return slog.LevelInfo
	}

	// Everything else (debug chatter, progress lines) stays at debug
	return slog.LevelDebug
}

// RecentLines returns the most recent lines from the buffer, oldest first.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}
	return lines
}

// ErrorPatterns are common failure patterns counted for the exit summary.
var ErrorPatterns = []string{
	"CUDA out of memory",
	"is not registered on subnet",
	"Connection refused",
	"Broken pipe",
	"Traceback",
	"timeout",
	"429",
	"503",
}

// CountErrors counts occurrences of error patterns in the buffer.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}
	return counts
}
