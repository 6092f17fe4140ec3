// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform_test

import (
	"testing"

	"github.com/vela-rtos/vela/platform"
)

func TestCriticalSectionExclusion(t *testing.T) {
	var cs platform.CriticalSection
	cs.Enter()
	if !cs.Held() {
		t.Fatal("Held() = false while entered")
	}
	if cs.TryEnter() {
		t.Fatal("TryEnter succeeded while already held")
	}
	cs.Exit()
	if cs.Held() {
		t.Fatal("Held() = true after Exit")
	}
	if !cs.TryEnter() {
		t.Fatal("TryEnter failed on a free critical section")
	}
	cs.Exit()
}

func TestTickCounterMonotonic(t *testing.T) {
	var c platform.TickCounter
	if c.Ticks() != 0 {
		t.Fatalf("Ticks() = %d before any Tick, want 0", c.Ticks())
	}
	for i := uint64(1); i <= 5; i++ {
		if got := c.Tick(); got != i {
			t.Fatalf("Tick() = %d, want %d", got, i)
		}
	}
	if c.Ticks() != 5 {
		t.Fatalf("Ticks() = %d, want 5", c.Ticks())
	}
}
