// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ksync

import (
	"github.com/vela-rtos/vela/kerr"
	"github.com/vela-rtos/vela/sched"
	"github.com/vela-rtos/vela/tlist"
)

// Queue is the kernel's bounded message queue (spec.md §3, §4.3): a
// circular buffer of N fixed-size S-byte slots, blocking on both ends.
// The head/tail wraparound arithmetic is the same modulo-capacity trick as
// gosh's ring buffer, generalised from an overwrite-oldest byte stream to
// fixed-size slots that block rather than evict when full.
type Queue struct {
	sched     *sched.Scheduler
	slotSize  int
	capacity  int
	buf       []byte
	head      int
	tail      int
	count     int
	producers *tlist.PriorityQueue
	consumers *tlist.PriorityQueue
}

// NewQueue returns an empty Queue of `capacity` slots of `slotSize` bytes
// each, with blocked-waiter lists of `levels` priority levels.
func NewQueue(s *sched.Scheduler, levels int, capacity int, slotSize int) (*Queue, error) {
	if capacity <= 0 || slotSize <= 0 {
		return nil, kerr.New("ksync.NewQueue", kerr.InvalidArgument, "capacity and slot size must be positive")
	}
	return &Queue{
		sched:     s,
		slotSize:  slotSize,
		capacity:  capacity,
		buf:       make([]byte, capacity*slotSize),
		producers: tlist.NewPriorityQueue(levels),
		consumers: tlist.NewPriorityQueue(levels),
	}, nil
}

// Len reports the number of occupied slots.
func (q *Queue) Len() int {
	q.sched.Lock()
	defer q.sched.Unlock()
	return q.count
}

// Cap reports the queue's fixed capacity in slots.
func (q *Queue) Cap() int { return q.capacity }

// Send copies item (which must be exactly slotSize bytes) into the queue,
// blocking while full for up to timeout ticks (spec.md §4.3). Exactly one
// blocked Receive is woken per successful Send.
func (q *Queue) Send(item []byte, timeout uint64) error {
	if len(item) != q.slotSize {
		return kerr.New("ksync.Queue.Send", kerr.InvalidArgument, "item size mismatch")
	}
	s := q.sched
	s.Lock()
	self := s.CurrentLocked()

	for q.count == q.capacity {
		if timeout == 0 {
			s.Unlock()
			return kerr.New("ksync.Queue.Send", kerr.WouldBlock, "")
		}
		if self == nil {
			s.Unlock()
			return kerr.New("ksync.Queue.Send", kerr.InvalidState, "no current thread")
		}
		q.producers.PushBack(self.Priority(), self.ListNode())
		if timeout != Infinite {
			s.ArmTimeout(self.Timer(), timeout, s.WakeTimedOut, self)
		}
		old, next := s.BlockLocked(self, q, sched.Blocked)
		s.Unlock()
		s.ApplySwitch(old, next)

		s.Lock()
		s.CancelTimeout(self.Timer())
		if self.TimedOut() {
			s.Unlock()
			return kerr.New("ksync.Queue.Send", kerr.Timeout, "")
		}
	}

	off := q.tail * q.slotSize
	copy(q.buf[off:off+q.slotSize], item)
	q.tail = (q.tail + 1) % q.capacity
	q.count++

	var old, next *sched.Thread
	if node, _ := q.consumers.PopFront(); node != nil {
		old, next = s.ReadyLocked(node.Owner.(*sched.Thread))
	}
	s.Unlock()
	s.ApplySwitch(old, next)
	return nil
}

// Receive copies the oldest slot into buf (which must be exactly slotSize
// bytes), blocking while empty for up to timeout ticks. Exactly one
// blocked Send is woken per successful Receive.
func (q *Queue) Receive(buf []byte, timeout uint64) error {
	if len(buf) != q.slotSize {
		return kerr.New("ksync.Queue.Receive", kerr.InvalidArgument, "buffer size mismatch")
	}
	s := q.sched
	s.Lock()
	self := s.CurrentLocked()

	for q.count == 0 {
		if timeout == 0 {
			s.Unlock()
			return kerr.New("ksync.Queue.Receive", kerr.WouldBlock, "")
		}
		if self == nil {
			s.Unlock()
			return kerr.New("ksync.Queue.Receive", kerr.InvalidState, "no current thread")
		}
		q.consumers.PushBack(self.Priority(), self.ListNode())
		if timeout != Infinite {
			s.ArmTimeout(self.Timer(), timeout, s.WakeTimedOut, self)
		}
		old, next := s.BlockLocked(self, q, sched.Blocked)
		s.Unlock()
		s.ApplySwitch(old, next)

		s.Lock()
		s.CancelTimeout(self.Timer())
		if self.TimedOut() {
			s.Unlock()
			return kerr.New("ksync.Queue.Receive", kerr.Timeout, "")
		}
	}

	off := q.head * q.slotSize
	copy(buf, q.buf[off:off+q.slotSize])
	q.head = (q.head + 1) % q.capacity
	q.count--

	var old, next *sched.Thread
	if node, _ := q.producers.PopFront(); node != nil {
		old, next = s.ReadyLocked(node.Owner.(*sched.Thread))
	}
	s.Unlock()
	s.ApplySwitch(old, next)
	return nil
}
