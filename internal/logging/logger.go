// Package logging provides structured logging for go-neuron-swarm and
// the handler that folds supervised neuron output into it.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide logger. Format is "json" or "text";
// level is "debug", "info", "warn" or "error". Verbose forces debug and
// attaches source locations, since it exists for diagnosing the
// supervisor itself rather than the neurons.
func NewLogger(format, level string, verbose bool) *slog.Logger {
	logLevel := parseLevel(level)
	if verbose {
		logLevel = slog.LevelDebug
	}
	return NewLoggerWithWriter(os.Stderr, format, logLevel.String())
}

// NewLoggerWithWriter creates a logger that writes to a custom writer.
// The TUI hands this an io.Discard writer while it owns the terminal;
// tests hand it a buffer.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	logLevel := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		// JSON unless text was asked for, machines read these logs
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault sets the default logger for the slog package.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
