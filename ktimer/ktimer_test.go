// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ktimer_test

import (
	"testing"

	"github.com/vela-rtos/vela/ktimer"
)

func TestOneShotFiresOnceAtDeadline(t *testing.T) {
	w := ktimer.NewWheel()
	var e ktimer.Entry
	fired := 0
	w.Arm(&e, 3, 0, func(interface{}) { fired++ }, nil)

	for i := 0; i < 2; i++ {
		w.Tick()
	}
	if fired != 0 {
		t.Fatalf("fired = %d before deadline, want 0", fired)
	}
	w.Tick()
	if fired != 1 {
		t.Fatalf("fired = %d at deadline, want 1", fired)
	}
	if e.State() != ktimer.Idle {
		t.Fatalf("state after one-shot fire = %v, want Idle", e.State())
	}

	w.Tick()
	if fired != 1 {
		t.Fatalf("fired = %d after extra tick, want still 1", fired)
	}
}

func TestPeriodicReArms(t *testing.T) {
	w := ktimer.NewWheel()
	var e ktimer.Entry
	fired := 0
	w.Arm(&e, 2, 2, func(interface{}) { fired++ }, nil)

	for i := 0; i < 6; i++ {
		w.Tick()
	}
	if fired != 3 {
		t.Fatalf("fired = %d after 6 ticks of period 2 (first at 2), want 3", fired)
	}
	if e.State() != ktimer.Armed {
		t.Fatalf("state of periodic timer = %v, want Armed", e.State())
	}
}

func TestCancelPreservesSuccessorExpiry(t *testing.T) {
	w := ktimer.NewWheel()
	var a, b ktimer.Entry
	var firedA, firedB int
	w.Arm(&a, 2, 0, func(interface{}) { firedA++ }, nil)
	w.Arm(&b, 5, 0, func(interface{}) { firedB++ }, nil)

	w.Cancel(&a)

	for i := 0; i < 4; i++ {
		w.Tick()
	}
	if firedB != 0 {
		t.Fatalf("firedB = %d after 4 ticks, want 0 (deadline is 5)", firedB)
	}
	w.Tick()
	if firedB != 1 {
		t.Fatalf("firedB = %d after 5 ticks, want 1", firedB)
	}
	if firedA != 0 {
		t.Fatalf("firedA = %d, cancelled timer should never fire", firedA)
	}
}

func TestMultipleEntriesFireInOrder(t *testing.T) {
	w := ktimer.NewWheel()
	var order []int
	var e1, e2, e3 ktimer.Entry
	w.Arm(&e3, 5, 0, func(interface{}) { order = append(order, 3) }, nil)
	w.Arm(&e1, 1, 0, func(interface{}) { order = append(order, 1) }, nil)
	w.Arm(&e2, 3, 0, func(interface{}) { order = append(order, 2) }, nil)

	for i := 0; i < 5; i++ {
		w.Tick()
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("fire order = %v, want [1 2 3]", order)
	}
}

func TestSuccessorFiresAtExactTickNotEarly(t *testing.T) {
	w := ktimer.NewWheel()
	var a, b ktimer.Entry
	var tickA, tickB uint64
	w.Arm(&a, 2, 0, func(interface{}) { tickA = w.Ticks() }, nil)
	w.Arm(&b, 5, 0, func(interface{}) { tickB = w.Ticks() }, nil)

	for i := 0; i < 5; i++ {
		w.Tick()
	}
	if tickA != 2 {
		t.Fatalf("a fired at tick %d, want 2", tickA)
	}
	if tickB != 5 {
		t.Fatalf("b fired at tick %d, want 5 (a firing must not steal a tick from b's delta)", tickB)
	}
}

func TestCancelIdleEntryIsNoop(t *testing.T) {
	w := ktimer.NewWheel()
	var e ktimer.Entry
	w.Cancel(&e) // never armed; must not panic
	if e.State() != ktimer.Idle {
		t.Fatalf("state = %v, want Idle", e.State())
	}
}
