// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package host

import (
	"io"

	"github.com/charmbracelet/log"
)

// Logger is the interface used by an [Instance] to log lifecycle and control
// activity. Arguments after the message are alternating keys and values.
// Nothing is logged from the processing path.
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StdLogger implements the [Logger] interface using charmbracelet/log.
type StdLogger struct {
	logger *log.Logger
}

// NewLogger constructs a StdLogger that writes to w at the given level.
func NewLogger(w io.Writer, level log.Level) *StdLogger {
	logger := log.New(w)
	logger.SetLevel(level)
	logger.SetPrefix("spa")
	return &StdLogger{logger: logger}
}

var _ Logger = (*StdLogger)(nil)

// Info logs an informational message.
func (l *StdLogger) Info(msg string, args ...any) {
	if len(args) == 0 {
		l.logger.Info(msg)
		return
	}
	l.logger.With(args...).Info(msg)
}

// Debug logs a debug message.
func (l *StdLogger) Debug(msg string, args ...any) {
	if len(args) == 0 {
		l.logger.Debug(msg)
		return
	}
	l.logger.With(args...).Debug(msg)
}

// Warn logs a warning message.
func (l *StdLogger) Warn(msg string, args ...any) {
	if len(args) == 0 {
		l.logger.Warn(msg)
		return
	}
	l.logger.With(args...).Warn(msg)
}

// Error logs an error message.
func (l *StdLogger) Error(msg string, args ...any) {
	if len(args) == 0 {
		l.logger.Error(msg)
		return
	}
	l.logger.With(args...).Error(msg)
}

// NopLogger is a [Logger] that discards everything.
var NopLogger Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
