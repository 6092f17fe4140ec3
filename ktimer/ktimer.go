// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ktimer implements the kernel's timer wheel: a single sorted
// delta-list of pending timeouts driven by the tick (spec.md §4.2). It is
// the one-shot/periodic backbone underneath sleep, and the timeout argument
// of every blocking call in ksync.
//
// This is deliberately not the `timing` package kept elsewhere in this
// tree: timing.Timer/FullTimer measure elapsed wall-clock duration for
// diagnostic instrumentation (used by the kernel's boot-phase tracing);
// ktimer.Wheel fires callbacks and wakes threads off a tick count, which is
// a different contract entirely.
package ktimer

import (
	"github.com/vela-rtos/vela/platform"
	"github.com/vela-rtos/vela/tlist"
)

// State is the lifecycle of a timer Entry.
type State int

const (
	Idle State = iota
	Armed
	Firing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Firing:
		return "firing"
	default:
		return "unknown"
	}
}

// Handler is invoked when a timer fires. It runs in tick-ISR context
// (spec.md §4.2): it must not block, and must not call heap.Alloc or
// mutex.Acquire. ksync's timeout path uses this to move a blocked thread
// back to Ready rather than blocking itself.
type Handler func(arg interface{})

// Entry is a single pending or idle timer. Its zero value is an Idle timer
// ready to be armed; the caller owns its storage (no internal allocation).
type Entry struct {
	node tlist.Node

	wheel  *Wheel
	delta  uint64 // ticks after the previous armed entry, while Armed
	period uint64 // 0 for one-shot
	fn     Handler
	arg    interface{}
	state  State
}

// State reports the entry's current lifecycle state.
func (e *Entry) State() State {
	return e.state
}

// Wheel is the kernel's single timer delta-list.
type Wheel struct {
	cs   platform.CriticalSection
	head tlist.Node
	tick uint64
}

// NewWheel returns an empty Wheel at tick 0.
func NewWheel() *Wheel {
	w := &Wheel{}
	w.head.Reset()
	return w
}

// Ticks returns the wheel's current tick count.
func (w *Wheel) Ticks() uint64 {
	w.cs.Enter()
	defer w.cs.Exit()
	return w.tick
}

// entryOf recovers the Entry embedding a tlist.Node reached while walking
// the delta-list.
func entryOf(n *tlist.Node) *Entry {
	return n.Owner.(*Entry)
}

// Arm schedules fn(arg) to run after `after` ticks, and every `period`
// ticks thereafter if period != 0. Re-arming an already-armed entry is a
// caller bug; Cancel it first.
func (w *Wheel) Arm(e *Entry, after uint64, period uint64, fn Handler, arg interface{}) {
	w.cs.Enter()
	defer w.cs.Exit()

	e.wheel = w
	e.period = period
	e.fn = fn
	e.arg = arg
	e.state = Armed
	e.node.Owner = e
	w.insertLocked(e, after)
}

// insertLocked splices e into the delta-list so that it fires `ticks` ticks
// from now, per spec.md §4.2: walk from the head accumulating deltas until
// the running sum would exceed ticks; e's own delta is the remainder, and
// the following entry (if any) has its delta reduced by that remainder so
// that its own absolute expiry is unaffected.
func (w *Wheel) insertLocked(e *Entry, ticks uint64) {
	running := uint64(0)
	cur := w.head.Next()
	for cur != &w.head {
		ce := entryOf(cur)
		if running+ce.delta > ticks {
			break
		}
		running += ce.delta
		cur = cur.Next()
	}
	e.delta = ticks - running
	if cur != &w.head {
		entryOf(cur).delta -= e.delta
	}
	e.node.InsertBefore(cur)
}

// Cancel removes an Armed entry, adding its delta to its successor's so
// that the successor's absolute expiry is preserved (spec.md §4.2). Safe to
// call on an Idle or Firing entry, in which case it is a no-op.
func (w *Wheel) Cancel(e *Entry) {
	w.cs.Enter()
	defer w.cs.Exit()
	w.cancelLocked(e)
}

func (w *Wheel) cancelLocked(e *Entry) {
	if e.state != Armed {
		return
	}
	if next := e.node.Next(); next != &w.head {
		entryOf(next).delta += e.delta
	}
	e.node.Remove()
	e.state = Idle
}

// Tick advances the wheel by one tick and fires every entry whose delta has
// reached zero, per spec.md §4.2. Intended to be called from the system
// tick handler; Handlers run synchronously, inline, in this call.
func (w *Wheel) Tick() {
	w.cs.Enter()
	w.tick++

	var fired []*Entry
	if head := w.head.Next(); head != &w.head {
		if he := entryOf(head); he.delta > 0 {
			he.delta--
		}
	}
	for {
		head := w.head.Next()
		if head == &w.head {
			break
		}
		e := entryOf(head)
		if e.delta != 0 {
			break
		}
		e.node.Remove()
		e.state = Firing
		fired = append(fired, e)
	}
	w.cs.Exit()

	// Handlers run outside the critical section lock but still logically
	// in "tick ISR context": they must not block, matching spec.md §4.2's
	// callback-context policy. They run after Exit so that a handler which
	// re-arms its own entry (periodic timers) can take the critical
	// section again without recursing into an already-held lock.
	for _, e := range fired {
		if e.fn != nil {
			e.fn(e.arg)
		}
		if e.period != 0 {
			w.cs.Enter()
			e.state = Armed
			w.insertLocked(e, e.period)
			w.cs.Exit()
		} else {
			e.state = Idle
		}
	}
}
