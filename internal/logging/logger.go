// Package logging is a thin key/value facade over zerolog shared by the
// API, the ingestor and the CLI.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with key/value convenience methods.
// Call sites pass alternating keys and values; non-string keys are skipped.
type Logger struct {
	zl zerolog.Logger
}

var global = NewDevelopment()

// New writes JSON lines at level and above to w
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// NewDevelopment writes colored console lines to stderr at debug level
func NewDevelopment() *Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, zerolog.DebugLevel)
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// SetGlobal replaces the fallback logger used by components built without one
func SetGlobal(logger *Logger) {
	if logger != nil {
		global = logger
	}
}

// Global returns the fallback logger
func Global() *Logger {
	return global
}

// With returns a child logger that stamps kv on every entry
func (l *Logger) With(kv ...interface{}) *Logger {
	if len(kv) < 2 {
		return l
	}
	return &Logger{zl: l.zl.With().Fields(kv).Logger()}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { emit(l.zl.Debug(), msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { emit(l.zl.Info(), msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { emit(l.zl.Warn(), msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { emit(l.zl.Error(), msg, kv) }

// Fatal logs and exits the process with status 1
func (l *Logger) Fatal(msg string, kv ...interface{}) { emit(l.zl.Fatal(), msg, kv) }

// emit relies on zerolog's field encoder: errors render as their message
// and durations follow zerolog.DurationFieldUnit.
func emit(e *zerolog.Event, msg string, kv []interface{}) {
	if e == nil {
		return
	}
	if len(kv) >= 2 {
		e = e.Fields(kv)
	}
	e.Msg(msg)
}
