// Package logging wraps log/slog with the supervisor's default fields
// and level handling.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config configures Logger construction.
type Config struct {
	Level  string
	Format string // "json" or "text"
	Output string // "stdout" or "stderr"
}

// Logger wraps slog.Logger with supervisor-specific default fields.
type Logger struct {
	*slog.Logger
}

// New builds a Logger for the given config, version, and device identity.
// Default fields service=supervisor, version, device_id are attached to
// every record so multi-device log aggregation can filter by device.
func New(cfg Config, version, deviceID string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "supervisor"),
		slog.String("version", version),
		slog.String("device_id", deviceID),
	})

	return &Logger{Logger: slog.New(handler)}
}

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

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a logger usable before configuration has been loaded
// (stdout, JSON, info level) — for early-startup diagnostics only.
func Default() *Logger {
	return New(Config{Level: "info", Format: "json", Output: "stdout"}, "dev", "unconfigured")
}
