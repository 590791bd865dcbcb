// Package logging builds the slog loggers used across the consumer.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New creates a logger with the given level writing to stdout.
// format can be "json" or "text" (default is json).
func New(level slog.Level, format string) *slog.Logger {
	return slog.New(newHandler(os.Stdout, level, format))
}

// NewWithFile creates a logger that writes to stdout and appends to the
// given file. The returned close func releases the file handle.
func NewWithFile(level slog.Level, format, path string) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %q: %w", path, err)
	}

	l := slog.New(newHandler(io.MultiWriter(os.Stdout, f), level, format))
	return l, f.Close, nil
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// ParseLevel converts a string log level to slog.Level.
// Valid values: "debug", "info", "warn", "error".
// Returns slog.LevelInfo for invalid values.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault sets the default logger for the application.
// This affects both slog.Default() and log package functions.
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}
