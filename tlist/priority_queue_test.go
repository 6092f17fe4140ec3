// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlist_test

import (
	"testing"

	"github.com/vela-rtos/vela/tlist"
)

type item struct {
	node tlist.Node
	id   int
}

func newItem(id int) *item {
	it := &item{id: id}
	it.node.Owner = it
	return it
}

func owner(n *tlist.Node) *item {
	return n.Owner.(*item)
}

func TestFrontPicksHighestPriority(t *testing.T) {
	pq := tlist.NewPriorityQueue(4)
	low := newItem(1)
	high := newItem(2)
	pq.PushBack(3, &low.node)
	pq.PushBack(0, &high.node)

	n, p := pq.Front()
	if p != 0 || owner(n).id != 2 {
		t.Fatalf("Front() = (%v, %d), want item 2 at priority 0", owner(n).id, p)
	}
}

func TestFIFOWithinPriority(t *testing.T) {
	pq := tlist.NewPriorityQueue(2)
	a, b, c := newItem(1), newItem(2), newItem(3)
	pq.PushBack(0, &a.node)
	pq.PushBack(0, &b.node)
	pq.PushBack(0, &c.node)

	var order []int
	for {
		n, _ := pq.PopFront()
		if n == nil {
			break
		}
		order = append(order, owner(n).id)
	}
	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRotate(t *testing.T) {
	pq := tlist.NewPriorityQueue(1)
	a, b, c := newItem(1), newItem(2), newItem(3)
	pq.PushBack(0, &a.node)
	pq.PushBack(0, &b.node)
	pq.PushBack(0, &c.node)

	pq.Rotate(0)

	n, _ := pq.Front()
	if owner(n).id != 2 {
		t.Fatalf("after rotate, front = %d, want 2", owner(n).id)
	}
}

func TestRemoveDetaches(t *testing.T) {
	pq := tlist.NewPriorityQueue(1)
	a, b := newItem(1), newItem(2)
	pq.PushBack(0, &a.node)
	pq.PushBack(0, &b.node)

	pq.Remove(&a.node)
	if pq.EmptyAt(0) {
		t.Fatal("queue should still hold b")
	}
	n, _ := pq.Front()
	if owner(n).id != 2 {
		t.Fatalf("front = %d, want 2", owner(n).id)
	}
	if a.node.InList() {
		t.Fatal("removed node should report InList() == false")
	}
}

func TestEmptyQueue(t *testing.T) {
	pq := tlist.NewPriorityQueue(3)
	if !pq.Empty() {
		t.Fatal("new queue should be empty")
	}
	if n, p := pq.Front(); n != nil || p != -1 {
		t.Fatalf("Front() on empty queue = (%v, %d), want (nil, -1)", n, p)
	}
}
