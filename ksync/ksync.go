// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ksync implements the kernel's three inter-thread synchronisation
// primitives (spec.md §4.3): Mutex, Event, and Queue. All three share one
// shape: block the calling thread on a priority-ordered wait list under the
// scheduler's own critical section, request a context switch, and on wake
// re-check why — a release/signal, or a timeout.
//
// Every blocked-list node is the waiting Thread's own tlist.Node (via
// sched.Thread.ListNode), and every timeout is armed on the waiting
// Thread's own ktimer.Entry (via sched.Thread.Timer): spec.md §3 guarantees
// a thread is never on more than one kernel list or waiting on more than
// one timeout simultaneously, so there is nothing to allocate per wait.
package ksync

import (
	"github.com/vela-rtos/vela/kerr"
	"github.com/vela-rtos/vela/sched"
	"github.com/vela-rtos/vela/tlist"
)

// Infinite is the timeout sentinel meaning "wait forever" (spec.md §5).
const Infinite = ^uint64(0)

// Mutex is the kernel's owner-tracked, non-recursive mutex (spec.md §4.3).
// Priority inheritance is deliberately not implemented, matching the
// spec's explicit statement that the mutex stays cheap; a thread holding a
// Mutex and blocking a higher-priority waiter can still be preempted by
// anything that outranks it, same as any other low-priority thread.
type Mutex struct {
	sched   *sched.Scheduler
	owner   *sched.Thread
	blocked *tlist.PriorityQueue
}

// NewMutex returns an unlocked Mutex whose blocked-waiter list has
// `levels` priority levels, matching the owning Scheduler's.
func NewMutex(s *sched.Scheduler, levels int) *Mutex {
	return &Mutex{sched: s, blocked: tlist.NewPriorityQueue(levels)}
}

// Acquire blocks the calling thread until the mutex is free, or timeout
// ticks elapse. A re-acquire by the current owner is InvalidState, not a
// deadlock — recursive acquisition is not supported (spec.md §4.3).
func (m *Mutex) Acquire(timeout uint64) error {
	s := m.sched
	s.Lock()
	self := s.CurrentLocked()
	if self == nil {
		s.Unlock()
		return kerr.New("ksync.Mutex.Acquire", kerr.InvalidState, "no current thread")
	}
	if m.owner == nil {
		m.owner = self
		s.Unlock()
		return nil
	}
	if m.owner == self {
		s.Unlock()
		return kerr.New("ksync.Mutex.Acquire", kerr.InvalidState, "recursive acquire")
	}
	if timeout == 0 {
		s.Unlock()
		return kerr.New("ksync.Mutex.Acquire", kerr.WouldBlock, "")
	}

	m.blocked.PushBack(self.Priority(), self.ListNode())
	if timeout != Infinite {
		s.ArmTimeout(self.Timer(), timeout, s.WakeTimedOut, self)
	}
	old, next := s.BlockLocked(self, m, sched.Blocked)
	s.Unlock()
	s.ApplySwitch(old, next)

	s.Lock()
	s.CancelTimeout(self.Timer())
	timedOut := self.TimedOut()
	s.Unlock()
	if timedOut {
		return kerr.New("ksync.Mutex.Acquire", kerr.Timeout, "")
	}
	return nil
}

// Release hands ownership to the highest-priority blocked waiter (FIFO
// within priority), or clears ownership if none is waiting (spec.md
// §4.3). Only the current owner may call Release.
func (m *Mutex) Release() error {
	s := m.sched
	s.Lock()
	self := s.CurrentLocked()
	if m.owner != self {
		s.Unlock()
		return kerr.New("ksync.Mutex.Release", kerr.InvalidState, "release by non-owner")
	}
	node, _ := m.blocked.PopFront()
	if node == nil {
		m.owner = nil
		s.Unlock()
		return nil
	}
	waiter := node.Owner.(*sched.Thread)
	m.owner = waiter
	old, next := s.ReadyLocked(waiter)
	s.Unlock()
	s.ApplySwitch(old, next)
	return nil
}

// Event is the kernel's binary event (spec.md §4.3): auto-reset unless
// constructed with NewManualResetEvent. Signalling wakes exactly the
// highest-priority waiter if any are blocked; otherwise the flag latches
// for the next Wait to consume.
type Event struct {
	sched       *sched.Scheduler
	blocked     *tlist.PriorityQueue
	signalled   bool
	manualReset bool
}

// NewEvent returns an auto-reset Event: a successful Wait always clears
// the flag, whether it was already latched or just delivered by Signal.
func NewEvent(s *sched.Scheduler, levels int) *Event {
	return &Event{sched: s, blocked: tlist.NewPriorityQueue(levels)}
}

// NewManualResetEvent returns a manual-reset Event: once signalled, every
// Wait succeeds immediately until Reset is called explicitly.
func NewManualResetEvent(s *sched.Scheduler, levels int) *Event {
	return &Event{sched: s, blocked: tlist.NewPriorityQueue(levels), manualReset: true}
}

// Wait blocks until the event is signalled or timeout ticks elapse.
func (e *Event) Wait(timeout uint64) error {
	s := e.sched
	s.Lock()
	self := s.CurrentLocked()
	if self == nil {
		s.Unlock()
		return kerr.New("ksync.Event.Wait", kerr.InvalidState, "no current thread")
	}
	if e.signalled {
		if !e.manualReset {
			e.signalled = false
		}
		s.Unlock()
		return nil
	}
	if timeout == 0 {
		s.Unlock()
		return kerr.New("ksync.Event.Wait", kerr.WouldBlock, "")
	}

	e.blocked.PushBack(self.Priority(), self.ListNode())
	if timeout != Infinite {
		s.ArmTimeout(self.Timer(), timeout, s.WakeTimedOut, self)
	}
	old, next := s.BlockLocked(self, e, sched.Blocked)
	s.Unlock()
	s.ApplySwitch(old, next)

	s.Lock()
	s.CancelTimeout(self.Timer())
	timedOut := self.TimedOut()
	s.Unlock()
	if timedOut {
		return kerr.New("ksync.Event.Wait", kerr.Timeout, "")
	}
	return nil
}

// Signal wakes waiters and latches the flag per spec.md §4.3: for an
// auto-reset Event it wakes exactly the highest-priority waiter if any are
// blocked, otherwise latches the flag for the next Wait to consume; for a
// manual-reset Event it latches the flag and wakes every blocked waiter,
// since every Wait must succeed immediately until Reset.
func (e *Event) Signal() error {
	s := e.sched
	s.Lock()
	if !e.manualReset {
		node, _ := e.blocked.PopFront()
		if node == nil {
			e.signalled = true
			s.Unlock()
			return nil
		}
		waiter := node.Owner.(*sched.Thread)
		old, next := s.ReadyLocked(waiter)
		s.Unlock()
		s.ApplySwitch(old, next)
		return nil
	}

	e.signalled = true
	var old, next *sched.Thread
	woken := false
	for {
		node, _ := e.blocked.PopFront()
		if node == nil {
			break
		}
		waiter := node.Owner.(*sched.Thread)
		if !woken {
			old, next = s.ReadyLocked(waiter)
			woken = true
			continue
		}
		s.ReadyLockedPassive(waiter)
	}
	s.Unlock()
	s.ApplySwitch(old, next)
	return nil
}

// Reset clears the latched flag. It never affects threads already
// blocked in Wait (spec.md §4.3).
func (e *Event) Reset() {
	s := e.sched
	s.Lock()
	e.signalled = false
	s.Unlock()
}
