// Package logging builds the slog logger the command line installs as
// the process default.
package logging

import (
	"io"
	"log/slog"
)

// New creates a text logger writing to w. Verbose lowers the level to
// debug; otherwise only info and above are emitted.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
