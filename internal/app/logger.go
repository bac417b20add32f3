package app

import (
	"io"
	"log/slog"
)

// newLogger builds the logger of one App from its validated configuration.
// slog.Default is left alone, so several Apps can log side by side in tests.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch cfg.LogFormat {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	if cfg.DryRun {
		logger = logger.With("dry_run", true)
	}
	return logger
}
