// Package logging bootstraps the process-wide slog logger for the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment variables read by Init.
const (
	EnvFormat = "HSFILTER_LOG_FORMAT"
	EnvLevel  = "HSFILTER_LOG_LEVEL"
)

// Init configures the default slog logger. Output is JSON when
// HSFILTER_LOG_FORMAT is json, text otherwise. level overrides
// HSFILTER_LOG_LEVEL when non-nil.
func Init(service string, w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if level == nil {
		level = levelFromEnv()
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isJSON(os.Getenv(EnvFormat)) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Debug("logging initialized", "json", isJSON(os.Getenv(EnvFormat)))
	return logger
}

func isJSON(mode string) bool {
	mode = strings.ToLower(mode)
	return mode == "1" || mode == "true" || mode == "json"
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv(EnvLevel)) {
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
