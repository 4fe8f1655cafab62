// Package observability provides structured logging and tracing setup for
// the helmsman runtime.
package observability

import (
	"io"
	"log/slog"
	"strings"

	"github.com/avstack-io/helmsman/internal/config"
)

// NewLogger builds a slog.Logger from the logging configuration, writing
// to w. Unknown level or format values fall back to info/text.
func NewLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level := ParseLevel(cfg.Level)
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = NewJSONHandler(w, level)
	default:
		handler = NewTextHandler(w, level)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to
// info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// NewJSONHandler creates a JSON log handler with the specified output and
// level. JSON format is ideal for structured logging in production.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// NewTextHandler creates a text log handler with the specified output and
// level. Text format is human-readable and useful for development.
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}
