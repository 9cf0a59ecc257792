// Package logging sets up the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// EnvVar is the environment variable that overrides the configured log
// level regardless of the --verbose flag, for use when attaching a
// debugger to a running preview session.
const EnvVar = "BOOKPREVIEW_LOG"

// Setup builds and installs the default slog logger. verbose raises the
// base level to debug; BOOKPREVIEW_LOG, if set to a valid level name
// (debug, info, warn, error), always wins.
func Setup(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if envLevel, ok := parseLevel(os.Getenv(EnvVar)); ok {
		level = envLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
