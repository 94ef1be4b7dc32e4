package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/zoobzio/forge/internal/config"
)

// Logger wraps slog.Logger with the CLI's defaults.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a structured logger writing to stderr.
func NewLogger(cfg config.LoggingConfig) *Logger {
	return newLoggerTo(os.Stderr, cfg)
}

func newLoggerTo(w io.Writer, cfg config.LoggingConfig) *Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: parseLevel(cfg.Level) == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler).With("app", appName)}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
