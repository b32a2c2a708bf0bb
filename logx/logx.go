// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logx implements the core's printLevel-gated console logging
// (spec §6.5), in the style of fem.FEM.Run / fem.FEM.onexit: plain
// io.Pf for routine messages, io.PfGreen/io.PfRed for outcome lines,
// io.Pfred/io.PfMag for warnings, all gated behind a verbosity level
// instead of a single bool.
package logx

import "github.com/cpmech/gosl/io"

// Level mirrors spec §6.5's printLevel values.
type Level int

const (
	NoPrint Level = iota
	Error
	Warning
	Summary
	Normal
	Debug
	Trace
)

// Logger gates io.Pf* calls behind a Level, the way fem.FEM gates io.Pf
// calls behind ShowMsg.
type Logger struct {
	Level Level
}

// New returns a Logger at the given level.
func New(level Level) *Logger { return &Logger{Level: level} }

func (l *Logger) enabled(min Level) bool { return l != nil && l.Level >= min }

// Debugf prints a debug-level message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.enabled(Debug) {
		io.Pf(format, args...)
	}
}

// Tracef prints a trace-level message.
func (l *Logger) Tracef(format string, args ...interface{}) {
	if l.enabled(Trace) {
		io.Pf(format, args...)
	}
}

// Infof prints a normal-level message.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.enabled(Normal) {
		io.Pf(format, args...)
	}
}

// Summaryf prints a summary-level message.
func (l *Logger) Summaryf(format string, args ...interface{}) {
	if l.enabled(Summary) {
		io.Pf(format, args...)
	}
}

// Warnf prints a warning in magenta, matching fem/s_implicit.go's
// io.PfMag("max number of iterations reached...").
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.enabled(Warning) {
		io.PfMag(format, args...)
	}
}

// Errorf prints an error in red, matching fem/s_implicit.go's
// io.Pfred(". . . iterations diverging ...").
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.enabled(Error) {
		io.PfRed(format, args...)
	}
}

// Success prints the "> Success" outcome line (fem.FEM.onexit).
func (l *Logger) Success(format string, args ...interface{}) {
	if l.enabled(Summary) {
		io.PfGreen(format, args...)
	}
}

// Failure prints the "> Failed" outcome line (fem.FEM.onexit).
func (l *Logger) Failure(format string, args ...interface{}) {
	if l.enabled(Error) {
		io.PfRed(format, args...)
	}
}
