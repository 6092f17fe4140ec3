// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package irq implements the kernel's software indirection layer between
// hardware IRQ numbers and registered handlers (spec.md §4.5). First-level
// hardware ISRs are thin trampolines that call Dispatch; everything else —
// enabling, disabling, and registering a handler + opaque argument — lives
// here.
//
// This is a fixed-size array indexed by IRQ number, not the map-of-
// reflect.Value registry the teacher's gosh package used for registering
// subprocess callbacks: a microcontroller's vector table is small, static,
// and known at board-bring-up time, so there is no need for gosh's
// reflection or gob-encoding machinery, only its name/record-registration
// shape.
package irq

import (
	"fmt"

	"github.com/vela-rtos/vela/kerr"
	"github.com/vela-rtos/vela/klog"
	"github.com/vela-rtos/vela/platform"
)

// Handler is a registered interrupt handler. It must not block: spec.md §6
// requires drivers to signal readiness via the standard primitives (which
// request a context switch that takes effect on ISR exit) rather than
// blocking the ISR itself.
type Handler func(arg interface{})

type record struct {
	handler Handler
	arg     interface{}
	enabled bool
}

// Table is the kernel's interrupt vector table.
type Table struct {
	cs      platform.CriticalSection
	records []record
}

// NewTable returns a Table sized for IRQ numbers [0, n).
func NewTable(n int) *Table {
	return &Table{records: make([]record, n)}
}

func (t *Table) valid(n int) bool {
	return n >= 0 && n < len(t.records)
}

// Register installs fn as the handler for IRQ n, called with arg on every
// Dispatch(n). The vector starts disabled; call Enable to arm it.
func (t *Table) Register(n int, fn Handler, arg interface{}) error {
	if !t.valid(n) {
		return errOutOfRange("irq.Register", n)
	}
	if fn == nil {
		return errNilHandler("irq.Register")
	}
	t.cs.Enter()
	defer t.cs.Exit()
	t.records[n] = record{handler: fn, arg: arg}
	return nil
}

// Enable arms IRQ n so that Dispatch will invoke its handler.
func (t *Table) Enable(n int) error {
	if !t.valid(n) {
		return errOutOfRange("irq.Enable", n)
	}
	t.cs.Enter()
	defer t.cs.Exit()
	t.records[n].enabled = true
	return nil
}

// Disable disarms IRQ n.
func (t *Table) Disable(n int) error {
	if !t.valid(n) {
		return errOutOfRange("irq.Disable", n)
	}
	t.cs.Enter()
	defer t.cs.Exit()
	t.records[n].enabled = false
	return nil
}

// Enabled reports whether IRQ n is currently armed.
func (t *Table) Enabled(n int) bool {
	if !t.valid(n) {
		return false
	}
	t.cs.Enter()
	defer t.cs.Exit()
	return t.records[n].enabled
}

// Dispatch invokes the handler registered for IRQ n, the way a first-level
// hardware trampoline would. Dispatching a disabled or unregistered vector
// is a board-support bug, not a caller-recoverable error: it is logged
// fatally, matching spec.md §7's treatment of ISR-context contract
// violations as the one unrecoverable condition.
func (t *Table) Dispatch(n int) {
	if !t.valid(n) {
		klog.Fatalf("irq: dispatch of out-of-range vector %d", n)
		return
	}
	t.cs.Enter()
	rec := t.records[n]
	t.cs.Exit()

	if !rec.enabled || rec.handler == nil {
		klog.Fatalf("irq: dispatch of disabled/unregistered vector %d", n)
		return
	}
	rec.handler(rec.arg)
}

func errOutOfRange(op string, n int) error {
	return kerr.New(op, kerr.InvalidArgument, fmt.Sprintf("irq number %d out of range", n))
}

func errNilHandler(op string) error {
	return kerr.New(op, kerr.InvalidArgument, "nil handler")
}
