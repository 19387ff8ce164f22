// Package xlog is a minimal leveled logger wrapping *log.Logger, in the
// style of the teacher's buffered debug logging (arena.go's
// `log.New(&buf, "", log.Ltime)`). Gated by a Level so the search hot
// path pays nothing when quiet: callers should guard expensive argument
// construction with Enabled.
package xlog

import (
	"io"
	"log"
	"os"
)

// Level controls which messages a Logger emits.
type Level int

const (
	// LevelSilent emits nothing.
	LevelSilent Level = iota
	// LevelInfo emits lifecycle and search-summary messages.
	LevelInfo
	// LevelDebug emits per-iteration and per-expansion detail; never
	// enable this on a production search, only for targeted debugging.
	LevelDebug
)

// Logger is a small leveled wrapper around the standard library logger.
type Logger struct {
	level Level
	std   *log.Logger
}

// New builds a Logger writing to w at the given level.
func New(w io.Writer, level Level) *Logger {
	return &Logger{level: level, std: log.New(w, "", log.Ltime|log.Lmicroseconds)}
}

// Default returns an info-level logger writing to stderr, the engine's
// out-of-the-box configuration.
func Default() *Logger { return New(os.Stderr, LevelInfo) }

// Enabled reports whether a message at lvl would actually be emitted,
// letting callers skip building an expensive message on the hot path.
func (l *Logger) Enabled(lvl Level) bool {
	return l != nil && l.level >= lvl
}

// Infof logs a formatted message at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	if !l.Enabled(LevelInfo) {
		return
	}
	l.std.Printf(format, args...)
}

// Debugf logs a formatted message at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.Enabled(LevelDebug) {
		return
	}
	l.std.Printf(format, args...)
}

// SetLevel adjusts the logger's verbosity. No UCI option calls it; the
// level is otherwise fixed when the Logger is built with New.
func (l *Logger) SetLevel(lvl Level) { l.level = lvl }
