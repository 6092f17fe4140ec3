// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package klog is the kernel's structured logger. It mirrors the public
// surface of the teacher's vlog package (leveled Info/Warning/Error/Fatal,
// a V(level) verbosity gate, a swappable sink) without vendoring vlog's
// underlying github.com/cosmosnicolaou/llog dependency, whose source was not
// part of the retrieved example pack. See DESIGN.md for the rationale.
package klog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a verbosity level for V-gated logging.
type Level int

// Severity identifies the kind of a log line, in increasing importance.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "I"
	case SeverityWarning:
		return "W"
	case SeverityError:
		return "E"
	case SeverityFatal:
		return "F"
	default:
		return "?"
	}
}

// Logger is a leveled logger with a configurable verbosity threshold.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	name   string
	level  Level
	exitFn func(int)
}

// New returns a Logger named name, writing to os.Stderr with verbosity 0.
func New(name string) *Logger {
	return &Logger{out: os.Stderr, name: name, exitFn: os.Exit}
}

// Std is the kernel-wide default logger, analogous to vlog.Log.
var Std = New("vela")

// SetOutput redirects where log lines are written.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// SetExitFunc overrides the function called by Fatalf, letting tests observe
// a fatal log without terminating the process.
func (l *Logger) SetExitFunc(fn func(int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exitFn = fn
}

// SetLevel sets the verbosity threshold consulted by V.
func (l *Logger) SetLevel(v Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = v
}

// V reports whether logging at verbosity level is enabled.
func (l *Logger) V(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level <= l.level
}

func (l *Logger) write(sev Severity, msg string) {
	l.mu.Lock()
	out := l.out
	name := l.name
	exitFn := l.exitFn
	l.mu.Unlock()
	fmt.Fprintf(out, "%s%s %s %s] %s\n", sev, time.Now().Format("0102 15:04:05.000000"), name, sev, msg)
	if sev == SeverityFatal {
		exitFn(1)
	}
}

func (l *Logger) Info(args ...interface{})  { l.write(SeverityInfo, fmt.Sprint(args...)) }
func (l *Logger) Infof(f string, a ...interface{}) {
	l.write(SeverityInfo, fmt.Sprintf(f, a...))
}
func (l *Logger) Warningf(f string, a ...interface{}) {
	l.write(SeverityWarning, fmt.Sprintf(f, a...))
}
func (l *Logger) Errorf(f string, a ...interface{}) {
	l.write(SeverityError, fmt.Sprintf(f, a...))
}

// Fatalf logs at SeverityFatal and terminates the process, matching the
// teacher's llog.Fatal semantics. The kernel calls it when irq.Dispatch is
// given an out-of-range or disabled vector and when sched.Start finds no
// thread. Blocking primitives called from interrupt context are not
// detected here; with no current thread they return kerr.InvalidState.
func (l *Logger) Fatalf(f string, a ...interface{}) {
	l.write(SeverityFatal, fmt.Sprintf(f, a...))
}

// Package-level convenience wrappers over Std, mirroring vlog's top-level
// Info/Error/Fatal functions.
func Infof(f string, a ...interface{})    { Std.Infof(f, a...) }
func Warningf(f string, a ...interface{}) { Std.Warningf(f, a...) }
func Errorf(f string, a ...interface{})   { Std.Errorf(f, a...) }
func Fatalf(f string, a ...interface{})   { Std.Fatalf(f, a...) }
func V(level Level) bool                  { return Std.V(level) }
