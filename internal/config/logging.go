package config

import (
	"io"
	"log/slog"
)

// NewLogger builds the process logger from the logging configuration
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(c.Level),
	}

	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, logOpts))
	}
	return slog.New(slog.NewTextHandler(w, logOpts))
}

func parseLogLevel(level string) slog.Level {
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
