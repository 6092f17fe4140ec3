// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tlist implements the intrusive, priority-ordered doubly-linked
// list used throughout the kernel for ready queues and blocked-waiter
// lists: the scheduler's ready queue, ksync's mutex/event/queue waiter
// lists, and ktimer's delta-list all link through a tlist.Node embedded in
// their own structs, so queueing never allocates.
//
// The list node itself is grounded on nsync/waiter.go's dll: a circular
// doubly-linked list where the empty list is a node that points to itself.
package tlist

// Node is an intrusive doubly-linked list element. Embed it in any struct
// that needs to live on a kernel list (a Thread, a waiter, a timer entry).
// Owner should be set by the embedder to a pointer back to itself, so that
// list-walking code can recover the containing struct.
type Node struct {
	next, prev *Node
	Owner      interface{}
}

// Reset makes n an empty, self-referential list head or detaches it.
// Required before n is used as a list head, or after Remove.
func (n *Node) Reset() {
	n.next = n
	n.prev = n
}

// Empty reports whether n (used as a list head) has no elements.
func (n *Node) Empty() bool {
	return n.next == n || n.next == nil
}

// InsertAfter inserts n into the list immediately after p.
// Requires that n is not currently part of any list.
func (n *Node) InsertAfter(p *Node) {
	n.next = p.next
	n.prev = p
	n.next.prev = n
	n.prev.next = n
}

// InsertBefore inserts n into the list immediately before p.
func (n *Node) InsertBefore(p *Node) {
	n.InsertAfter(p.prev)
}

// Remove detaches n from whatever list it is in. Safe to call on a node
// that is its own list head (no-op shape, but callers should not do this).
func (n *Node) Remove() {
	n.next.prev = n.prev
	n.prev.next = n.next
	n.next = nil
	n.prev = nil
}

// InList reports whether n is currently linked into some list (as opposed
// to detached, or serving as a standalone head).
func (n *Node) InList() bool {
	return n.next != nil
}

// Front returns the first element after head, or nil if head is empty.
func (n *Node) Front() *Node {
	if n.Empty() {
		return nil
	}
	return n.next
}

// Next returns the element following n, which may be the list head itself;
// callers walking a list manually (rather than via Each) compare the result
// against their own head node to detect the end, the way ktimer's delta-list
// insertion walk does.
func (n *Node) Next() *Node {
	return n.next
}

// Each calls fn for every element in the list headed by n, in order.
// fn must not mutate the list.
func (n *Node) Each(fn func(*Node)) {
	for p := n.next; p != nil && p != n; p = p.next {
		fn(p)
	}
}
