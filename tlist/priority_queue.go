// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlist

import "fmt"

// PriorityQueue is a set of intrusive sublists, one per priority level,
// always ordered so that the head of the highest-priority (lowest-numbered)
// non-empty sublist is the front. It preserves FIFO insertion order within
// a priority level.
//
// Both the scheduler's ready queue and every synchronisation primitive's
// blocked-waiter list are a PriorityQueue: spec.md requires the same
// "priority order, FIFO within priority" discipline in both places, so this
// one type serves both, matching the teacher's instinct (nsync's dll) to
// reuse the same list type for every primitive's waiters.
type PriorityQueue struct {
	levels []Node
}

// NewPriorityQueue returns a queue with the given number of priority
// levels, numbered 0 (highest) .. n-1 (lowest).
func NewPriorityQueue(levels int) *PriorityQueue {
	if levels <= 0 {
		panic("tlist: NewPriorityQueue requires at least one priority level")
	}
	pq := &PriorityQueue{levels: make([]Node, levels)}
	for i := range pq.levels {
		pq.levels[i].Reset()
	}
	return pq
}

// Levels returns the number of priority levels this queue was built with.
func (pq *PriorityQueue) Levels() int {
	return len(pq.levels)
}

func (pq *PriorityQueue) checkPriority(priority int) {
	if priority < 0 || priority >= len(pq.levels) {
		panic(fmt.Sprintf("tlist: priority %d out of range [0,%d)", priority, len(pq.levels)))
	}
}

// PushBack inserts n at the tail of priority's sublist (FIFO order).
func (pq *PriorityQueue) PushBack(priority int, n *Node) {
	pq.checkPriority(priority)
	n.InsertBefore(&pq.levels[priority])
}

// PushFront inserts n at the head of priority's sublist, ahead of any nodes
// already queued at that priority.
func (pq *PriorityQueue) PushFront(priority int, n *Node) {
	pq.checkPriority(priority)
	n.InsertAfter(&pq.levels[priority])
}

// Empty reports whether every priority level is empty.
func (pq *PriorityQueue) Empty() bool {
	for i := range pq.levels {
		if !pq.levels[i].Empty() {
			return false
		}
	}
	return true
}

// EmptyAt reports whether the given priority level is empty.
func (pq *PriorityQueue) EmptyAt(priority int) bool {
	pq.checkPriority(priority)
	return pq.levels[priority].Empty()
}

// Front returns the head of the highest-priority non-empty sublist, and
// that sublist's priority, or (nil, -1) if the queue is empty. This is
// spec.md §4.1's next-to-run candidate-selection algorithm, step 1.
func (pq *PriorityQueue) Front() (*Node, int) {
	for p := range pq.levels {
		if n := pq.levels[p].Front(); n != nil {
			return n, p
		}
	}
	return nil, -1
}

// PopFront removes and returns the head of the highest-priority non-empty
// sublist, or (nil, -1) if empty.
func (pq *PriorityQueue) PopFront() (*Node, int) {
	n, p := pq.Front()
	if n == nil {
		return nil, -1
	}
	n.Remove()
	return n, p
}

// Rotate moves the head of priority's sublist to its tail, implementing
// round-robin rotation within a priority band (spec.md §4.1).
func (pq *PriorityQueue) Rotate(priority int) {
	pq.checkPriority(priority)
	head := &pq.levels[priority]
	front := head.Front()
	if front == nil || front.next == head {
		return // 0 or 1 elements; nothing to rotate.
	}
	front.Remove()
	front.InsertBefore(head)
}

// Remove detaches n from whatever sublist currently holds it. It is the
// caller's responsibility to know n is in this queue (or some queue); this
// just delegates to Node.Remove.
func (pq *PriorityQueue) Remove(n *Node) {
	n.Remove()
}

// Each calls fn for every node across every priority level, in priority
// order, FIFO within a level.
func (pq *PriorityQueue) Each(fn func(priority int, n *Node)) {
	for p := range pq.levels {
		pq.levels[p].Each(func(n *Node) { fn(p, n) })
	}
}
