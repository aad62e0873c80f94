// Package logger owns the process-wide slog logger. Output is JSON on
// stdout; the level comes from MITHOO_LOG_LEVEL (debug, info, warn,
// error) and defaults to info. The package-level helpers log through
// the shared instance so callers never hold a logger of their own.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Init builds the shared logger and installs it as slog's default.
// Safe to call more than once; only the first call does anything.
func Init() {
	once.Do(func() {
		defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: levelFromEnv(),
		}))
		slog.SetDefault(defaultLogger)
	})
}

func levelFromEnv() slog.Level {
	return parseLevel(os.Getenv("MITHOO_LOG_LEVEL"))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// Get returns the shared logger, initializing it if needed.
func Get() *slog.Logger {
	Init()
	return defaultLogger
}

// With returns a logger carrying the given attributes on every record.
func With(args ...any) *slog.Logger {
	return Get().With(args...)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs through the shared logger, appending the error as an
// attribute when one is given.
func Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	Get().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}
