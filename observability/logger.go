// Package observability provides simple logging utilities.
//
// This is a minimal implementation focused on structured logging with slog;
// every engine component takes a *slog.Logger from here.
package observability

import (
	"io"
	"log/slog"
	"os"

	"github.com/mkellner/storefront-engine/config"
)

// NewLogger creates a structured logger based on config.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// Nop returns a logger that discards everything. Useful in tests and for
// hosts that do not want engine logging.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
