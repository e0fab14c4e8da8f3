package logger

import (
	"log/slog"
	"os"
)

// New builds the process-wide slog logger and installs it as default.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(log)
	return log
}
