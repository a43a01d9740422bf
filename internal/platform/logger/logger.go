package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns the service's structured JSON logger. Every record carries the
// service attribute so aggregated logs stay attributable; CIVITA_LOG_LEVEL
// (debug, info, warn, error) overrides the default level.
func New() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: levelFromEnv(),
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With("service", "civita")
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("CIVITA_LOG_LEVEL")) {
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
