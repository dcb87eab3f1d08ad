// Package vlog provides the structured logging the crypto core emits
// for operational events (the vault logs initialization and unlock at
// info level). It never logs plaintext, passwords, derived keys, or
// raw secrets — only structural facts about an operation.
package vlog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures an optional rotating file sink, mirroring
// the rotation knobs a host would want for a long-lived vault.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	mu     sync.RWMutex
	logger = zerolog.New(io.Discard).Level(zerolog.Disabled)
)

// L returns the package-level logger. Safe for concurrent use.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// SetOutput replaces the logger's writer. Hosts embedding the core as
// a library call this once during initialization; the default is a
// discarded, disabled logger so an unconfigured core stays silent.
func SetOutput(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// SetLevel adjusts the minimum level without touching the writer.
func SetLevel(level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(level)
}

// UseConsole wires a human-readable console writer to stderr, useful
// for host applications running interactively.
func UseConsole(level zerolog.Level) {
	SetOutput(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

// UseRotatingFile wires a size/age-rotated file sink via lumberjack,
// for long-running hosts that keep a vault open across sessions.
func UseRotatingFile(opts FileOptions, level zerolog.Level) error {
	if opts.Path == "" {
		return io.ErrClosedPipe
	}
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	SetOutput(w, level)
	return nil
}
