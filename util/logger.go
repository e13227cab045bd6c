// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages to the diagnostic stream (stderr by
// default) with optional timestamps and level prefixes. Child loggers
// created with WithPrefix share the parent's output and lock, so lines
// from concurrent connections never interleave mid-line.
type Logger struct {
	level      LogLevel
	prefix     string // e.g. "conn 7: ", empty for the root logger
	timestamps bool

	core *logCore // shared across WithPrefix children
}

type logCore struct {
	mu     sync.Mutex
	output io.Writer
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level:      LogLevel(verbosity),
		timestamps: verbosity >= 3,
		core:       &logCore{output: os.Stderr},
	}
}

// WithPrefix returns a child logger that prepends prefix to every
// message. The child shares the parent's level, output, and lock.
func (l *Logger) WithPrefix(prefix string) *Logger {
	child := *l
	child.prefix = l.prefix + prefix
	return &child
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) { l.timestamps = on }

// SetOutput overrides the output writer (default: os.Stderr) for this
// logger and every logger sharing its core.
func (l *Logger) SetOutput(w io.Writer) {
	l.core.mu.Lock()
	l.core.output = w
	l.core.mu.Unlock()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("INF", format, args...)
	}
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("WRN", format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.write("VRB", format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.write("DBG", format, args...)
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERR", format, args...)
}

func (l *Logger) write(level, format string, args ...interface{}) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	msg := l.prefix + fmt.Sprintf(format, args...)
	if l.timestamps {
		ts := time.Now().Format("15:04:05.000")
		fmt.Fprintf(l.core.output, "%s [%s] %s\n", ts, level, msg)
	} else {
		fmt.Fprintf(l.core.output, "[%s] %s\n", level, msg)
	}
}
