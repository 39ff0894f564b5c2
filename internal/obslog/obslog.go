// Package obslog builds the *slog.Logger the engine logs through.
//
// Grounded on the cobra-CLI sibling's internal/logger package (the
// stdlib log/slog handler construction: level from a debug flag, text
// handler to stderr) but deliberately not its global-singleton shape —
// spec.md §9 states the engine keeps no global state, so the logger is
// a constructor argument threaded through engine.Engine, never a
// package-level var (see SPEC_FULL.md and DESIGN.md).
package obslog

import (
	"io"
	"log/slog"
	"os"
)

// Options configures New.
type Options struct {
	// Verbose raises the level to Debug; otherwise Info.
	Verbose bool
	// Writer overrides the default of os.Stderr (tests pass a buffer).
	Writer io.Writer
}

// New builds a text-handler logger per Options.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Noop returns a logger that discards everything, for callers (tests,
// library embedders) that do not want engine diagnostics on stderr.
func Noop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
