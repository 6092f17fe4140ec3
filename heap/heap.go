// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heap implements the kernel's single best-fit free-list allocator
// over a fixed RAM region (spec.md §4.4). It is safe to call from thread
// context and from (synchronously dispatched) interrupt context, since the
// whole alloc/free path runs under platform.CriticalSection.
package heap

import (
	"encoding/binary"

	"github.com/vela-rtos/vela/kerr"
	"github.com/vela-rtos/vela/platform"
)

const (
	// headerSize is the on-region header: a uint32 payload size followed
	// by a uint32 flags word (bit 0 = used).
	headerSize = 8
	flagUsed   = uint32(1)

	// align is the alignment of every returned payload: the maximum
	// scalar alignment on a Cortex-M4 with FPU (a double is 8 bytes).
	align = 8

	// minSplit is the minimum free payload, in bytes, left behind by a
	// split; below this threshold the whole block is handed out instead
	// (spec.md §4.4).
	minSplit = 16

	noNext = ^uint32(0)
)

// Block is the handle returned by Alloc. It stands in for a raw pointer: it
// remembers which Heap it came from (so Free can detect a pointer handed to
// the wrong heap) and whether it has already been freed (so Free can detect
// a double free), without resorting to unsafe address arithmetic.
type Block struct {
	heap   *Heap
	offset int
	data   []byte
	freed  bool
}

// Bytes returns the payload of this allocation. Valid until Free(b).
func (b *Block) Bytes() []byte {
	return b.data
}

// Len returns the size of this allocation in bytes.
func (b *Block) Len() int {
	return len(b.data)
}

// Heap is a single global heap over a contiguous byte region.
type Heap struct {
	cs       platform.CriticalSection
	region   []byte
	freeHead uint32 // offset of the first free chunk's header, or noNext
}

// Stats reports byte accounting over the whole region, satisfying spec.md
// §8 testable property 5: Used+Free+Overhead always equals len(region).
type Stats struct {
	Used     int
	Free     int
	Overhead int
}

// New creates a Heap over a freshly allocated region of sizeBytes bytes.
func New(sizeBytes int) *Heap {
	if sizeBytes < headerSize+minSplit {
		panic("heap: region too small")
	}
	h := &Heap{region: make([]byte, sizeBytes)}
	h.setHeader(0, uint32(sizeBytes-headerSize), false)
	h.setFreeNext(0, noNext)
	h.freeHead = 0
	return h
}

func roundUp(n, to int) int {
	if r := n % to; r != 0 {
		n += to - r
	}
	return n
}

func (h *Heap) header(offset int) (size uint32, used bool) {
	size = binary.LittleEndian.Uint32(h.region[offset:])
	flags := binary.LittleEndian.Uint32(h.region[offset+4:])
	return size, flags&flagUsed != 0
}

func (h *Heap) setHeader(offset int, size uint32, used bool) {
	binary.LittleEndian.PutUint32(h.region[offset:], size)
	var flags uint32
	if used {
		flags = flagUsed
	}
	binary.LittleEndian.PutUint32(h.region[offset+4:], flags)
}

// free chunks store their free-list successor in the first 4 bytes of their
// own payload, since that memory is otherwise unused while the chunk is
// free — the classic intrusive free-list trick.
func (h *Heap) freeNext(offset int) uint32 {
	return binary.LittleEndian.Uint32(h.region[offset+headerSize:])
}

func (h *Heap) setFreeNext(offset int, next uint32) {
	binary.LittleEndian.PutUint32(h.region[offset+headerSize:], next)
}

// listRemove unlinks the free chunk at offset from the free list.
func (h *Heap) listRemove(offset uint32) {
	if h.freeHead == offset {
		h.freeHead = h.freeNext(int(offset))
		return
	}
	prev := h.freeHead
	for prev != noNext {
		next := h.freeNext(int(prev))
		if next == offset {
			h.setFreeNext(int(prev), h.freeNext(int(offset)))
			return
		}
		prev = next
	}
}

// findBackwardNeighbor returns the free chunk whose end address is exactly
// offset, if one exists, so Free can coalesce backward as well as forward.
func (h *Heap) findBackwardNeighbor(offset int) (uint32, bool) {
	cur := h.freeHead
	for cur != noNext {
		size, _ := h.header(int(cur))
		if int(cur)+headerSize+int(size) == offset {
			return cur, true
		}
		cur = h.freeNext(int(cur))
	}
	return 0, false
}

// listInsertOrdered inserts the free chunk at offset into the free list,
// keeping the list in ascending address order so that Free's forward-
// neighbour coalescing check stays a single header read (spec.md §4.4).
func (h *Heap) listInsertOrdered(offset uint32) {
	if h.freeHead == noNext || offset < h.freeHead {
		h.setFreeNext(int(offset), h.freeHead)
		h.freeHead = offset
		return
	}
	prev := h.freeHead
	for {
		next := h.freeNext(int(prev))
		if next == noNext || offset < next {
			h.setFreeNext(int(offset), next)
			h.setFreeNext(int(prev), offset)
			return
		}
		prev = next
	}
}

// Alloc returns a Block of at least n bytes, or kerr.OutOfMemory if no free
// chunk is large enough. The allocator is best-fit: it scans the whole free
// list and picks the smallest chunk that still satisfies the request.
func (h *Heap) Alloc(n int) (*Block, error) {
	if n < 0 {
		return nil, kerr.New("heap.Alloc", kerr.InvalidArgument, "negative size")
	}
	want := roundUp(n, align)
	if want == 0 {
		want = align
	}

	h.cs.Enter()
	defer h.cs.Exit()

	var (
		bestOffset     = noNext
		bestSize       uint32
		bestListPrev   = noNext
		prev           = noNext
		cur            = h.freeHead
		bestHasPrev    bool
	)
	for cur != noNext {
		size, _ := h.header(int(cur))
		if size >= uint32(want) && (bestOffset == noNext || size < bestSize) {
			bestOffset, bestSize = cur, size
			bestListPrev = prev
			bestHasPrev = prev != noNext
		}
		prev = cur
		cur = h.freeNext(int(cur))
	}
	if bestOffset == noNext {
		return nil, kerr.New("heap.Alloc", kerr.OutOfMemory, "")
	}

	// Unlink the chosen chunk from the free list.
	if bestHasPrev {
		h.setFreeNext(int(bestListPrev), h.freeNext(int(bestOffset)))
	} else {
		h.freeHead = h.freeNext(int(bestOffset))
	}

	allocSize := bestSize
	if remainder := int(bestSize) - want; remainder >= headerSize+minSplit {
		// Split: shrink this chunk to exactly `want`, and create a new
		// free chunk after it with the remainder.
		allocSize = uint32(want)
		splitOffset := int(bestOffset) + headerSize + want
		splitSize := remainder - headerSize
		h.setHeader(splitOffset, uint32(splitSize), false)
		h.listInsertOrdered(uint32(splitOffset))
	}
	h.setHeader(int(bestOffset), allocSize, true)

	start := int(bestOffset) + headerSize
	return &Block{heap: h, offset: int(bestOffset), data: h.region[start : start+int(allocSize)]}, nil
}

// Free releases b back to the heap. Freeing a Block from a different Heap,
// or one already freed, returns kerr.InvalidState.
func (h *Heap) Free(b *Block) error {
	if b == nil {
		return kerr.New("heap.Free", kerr.InvalidArgument, "nil block")
	}
	if b.heap != h {
		return kerr.New("heap.Free", kerr.InvalidState, "block belongs to a different heap")
	}

	h.cs.Enter()
	defer h.cs.Exit()

	if b.freed {
		return kerr.New("heap.Free", kerr.InvalidState, "double free")
	}
	size, used := h.header(b.offset)
	if !used {
		return kerr.New("heap.Free", kerr.InvalidState, "chunk already free")
	}
	b.freed = true
	b.data = nil

	offset := b.offset

	// Coalesce with the backward neighbour first, if it exists and is
	// free: the address-ordered free list makes its predecessor cheap to
	// find, and merging it in first lets the forward check below run
	// against the merged chunk's own (now further out) boundary.
	if prevOffset, ok := h.findBackwardNeighbor(offset); ok {
		psize, _ := h.header(int(prevOffset))
		h.listRemove(prevOffset)
		size += uint32(headerSize) + psize
		offset = int(prevOffset)
	}

	// Coalesce with the forward neighbour, if it exists and is free
	// (spec.md §4.4: "if its forward neighbour is free, coalesce").
	next := offset + headerSize + int(size)
	if next < len(h.region) {
		if nsize, nused := h.header(next); !nused {
			h.listRemove(uint32(next))
			size += uint32(headerSize) + nsize
		}
	}
	h.setHeader(offset, size, false)
	h.listInsertOrdered(uint32(offset))
	return nil
}

// Stats walks the whole region in address order and reports used, free and
// header-overhead byte counts.
func (h *Heap) Stats() Stats {
	h.cs.Enter()
	defer h.cs.Exit()

	var st Stats
	for off := 0; off < len(h.region); {
		size, used := h.header(off)
		st.Overhead += headerSize
		if used {
			st.Used += int(size)
		} else {
			st.Free += int(size)
		}
		off += headerSize + int(size)
	}
	return st
}

// Len returns the total size of the heap's backing region.
func (h *Heap) Len() int {
	return len(h.region)
}
