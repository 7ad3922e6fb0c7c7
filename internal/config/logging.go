package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the process logger. Console output is colored text on
// stderr; when logFile is set, records are also written there as JSON.
// The returned close function must be called before exit.
func SetupLogger(level, logFile string) (*slog.Logger, func() error, error) {
	if logFile == "" {
		return SetupLoggerWithWriters(level, os.Stderr, nil), func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", logFile, err)
	}
	return SetupLoggerWithWriters(level, os.Stderr, f), f.Close, nil
}

// SetupLoggerWithWriters builds a logger over explicit writers. A nil file
// writer disables the JSON sink.
func SetupLoggerWithWriters(level string, console, file io.Writer) *slog.Logger {
	lvl := ParseLogLevel(level)

	consoleHandler := tint.NewHandler(console, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05",
	})
	if file == nil {
		return slog.New(consoleHandler)
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: lvl})
	return slog.New(slogmulti.Fanout(consoleHandler, fileHandler))
}

// ParseLogLevel maps a level name to a slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
