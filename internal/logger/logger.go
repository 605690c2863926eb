// Package logger configures the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var log *slog.Logger
var logLevel = new(slog.LevelVar)

func init() {
	logLevel.Set(ParseLevel(os.Getenv("LOG_LEVEL")))

	// JSON on stdout; the platform ships stdout to the log pipeline
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}

// ParseLevel maps debug|info|warn|warning|error (case-insensitive) to a level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// SetLevel changes the level at runtime.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetOutput sends log records to w from now on. The CLI uses it to keep
// stdout free for command output.
func SetOutput(w io.Writer) {
	log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}

// Debug logs a debug message with structured fields
func Debug(msg string, args ...any) {
	log.Debug(msg, args...)
}

// Info logs an informational message with structured fields
func Info(msg string, args ...any) {
	log.Info(msg, args...)
}

// Warn logs a warning message with structured fields
func Warn(msg string, args ...any) {
	log.Warn(msg, args...)
}

// Error logs an error message with structured fields
func Error(msg string, args ...any) {
	log.Error(msg, args...)
}

// Fatal logs an error message and exits with status 1
func Fatal(msg string, args ...any) {
	log.Error(msg, args...)
	os.Exit(1)
}

// SetOutputForTest redirects log output to w.
// Returns a cleanup function that restores the original output.
// This should only be used in tests.
func SetOutputForTest(w io.Writer) func() {
	originalHandler := log.Handler()
	SetOutput(w)
	return func() {
		log = slog.New(originalHandler)
		slog.SetDefault(log)
	}
}
