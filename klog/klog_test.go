// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package klog_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vela-rtos/vela/klog"
)

func TestLoggerWritesLeveledLines(t *testing.T) {
	var buf bytes.Buffer
	l := klog.New("test")
	l.SetOutput(&buf)

	l.Infof("hello %d", 42)
	l.Warningf("careful")
	l.Errorf("bad thing")

	out := buf.String()
	for _, want := range []string{"hello 42", "careful", "bad thing"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestVerbosityGate(t *testing.T) {
	l := klog.New("test")
	if l.V(1) {
		t.Fatal("V(1) should be false at default level 0")
	}
	l.SetLevel(2)
	if !l.V(1) || !l.V(2) {
		t.Fatal("V(1) and V(2) should be true at level 2")
	}
	if l.V(3) {
		t.Fatal("V(3) should be false at level 2")
	}
}

func TestFatalfCallsExit(t *testing.T) {
	var buf bytes.Buffer
	l := klog.New("test")
	l.SetOutput(&buf)

	var exitCode int
	called := false
	l.SetExitFunc(func(code int) { called = true; exitCode = code })

	l.Fatalf("halt and catch fire")

	if !called {
		t.Fatal("Fatalf did not invoke the exit function")
	}
	if exitCode != 1 {
		t.Fatalf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(buf.String(), "halt and catch fire") {
		t.Fatalf("log output missing fatal message: %q", buf.String())
	}
}
