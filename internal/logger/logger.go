// Package logger creates the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
)

// New returns a text logger on stderr, keeping stdout free for
// dry-run listings and the run summary.
func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
