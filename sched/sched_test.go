// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched_test

import (
	"sync"
	"testing"
	"time"

	"github.com/vela-rtos/vela/sched"
)

const stackBytes = 1024

func TestHighestPriorityRunsFirst(t *testing.T) {
	s := sched.New(4, 0)
	var mu sync.Mutex
	var order []int

	_, err := s.Create(2, stackBytes, func(interface{}) {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Create(0, stackBytes, func(interface{}) {
		mu.Lock()
		order = append(order, 0)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	go s.Start()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) == 0 || order[0] != 0 {
		t.Fatalf("run order = %v, want priority 0 thread first", order)
	}
}

func TestCreateRejectsBadArgs(t *testing.T) {
	s := sched.New(4, 0)
	if _, err := s.Create(99, stackBytes, func(interface{}) {}, nil); err == nil {
		t.Fatal("Create with out-of-range priority succeeded")
	}
	if _, err := s.Create(0, 4, func(interface{}) {}, nil); err == nil {
		t.Fatal("Create with undersized stack succeeded")
	}
	if _, err := s.Create(0, stackBytes, nil, nil); err == nil {
		t.Fatal("Create with nil entry succeeded")
	}
}

func TestSleepWakesAfterTicks(t *testing.T) {
	s := sched.New(2, 0)
	done := make(chan struct{})
	_, err := s.Create(0, stackBytes, func(interface{}) {
		s.Sleep(3)
		close(done)
		s.Exit()
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	go s.Start()
	time.Sleep(5 * time.Millisecond)

	select {
	case <-done:
		t.Fatal("thread woke before any ticks were delivered")
	default:
	}

	for i := 0; i < 3; i++ {
		s.Tick()
	}

	select {
	case <-done:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("thread never woke after 3 ticks")
	}
}

func TestYieldSharesCPUWithinPriority(t *testing.T) {
	s := sched.New(1, 0)
	var mu sync.Mutex
	var interleaved []int
	const rounds = 3

	makeEntry := func(id int) sched.Entry {
		return func(interface{}) {
			for i := 0; i < rounds; i++ {
				mu.Lock()
				interleaved = append(interleaved, id)
				mu.Unlock()
				s.Yield()
			}
			s.Exit()
		}
	}
	if _, err := s.Create(0, stackBytes, makeEntry(1), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(0, stackBytes, makeEntry(2), nil); err != nil {
		t.Fatal(err)
	}

	go s.Start()
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(interleaved) != 2*rounds {
		t.Fatalf("recorded %d scheduling events, want %d", len(interleaved), 2*rounds)
	}
	for i := 1; i < len(interleaved); i++ {
		if interleaved[i] == interleaved[i-1] {
			t.Fatalf("interleaved = %v, want the two threads to alternate", interleaved)
		}
	}
}
