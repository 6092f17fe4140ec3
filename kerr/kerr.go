// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kerr defines the kernel-wide error taxonomy. Every blocking or
// fallible kernel operation returns one of these, by value, rather than
// panicking; a caller mistake is reported to the caller, never aborted.
package kerr

import "errors"

// Kind identifies the class of a kernel error.
type Kind int

const (
	// OutOfMemory is returned by alloc, thread create or queue create on
	// heap exhaustion.
	OutOfMemory Kind = iota
	// Timeout is returned by a blocking operation whose deadline elapsed.
	Timeout
	// InvalidState is returned for operations that violate an object's
	// state invariant: releasing a mutex you don't own, re-entering a
	// non-recursive mutex, freeing a pointer that isn't this heap's.
	InvalidState
	// InvalidArgument is returned for a null handle, an out-of-range
	// priority, or a stack size below the minimum.
	InvalidArgument
	// WouldBlock is returned by a non-blocking (timeout==0) call that
	// would otherwise have to wait.
	WouldBlock
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "out of memory"
	case Timeout:
		return "timeout"
	case InvalidState:
		return "invalid state"
	case InvalidArgument:
		return "invalid argument"
	case WouldBlock:
		return "would block"
	default:
		return "unknown kernel error"
	}
}

// Error is a kernel error: a Kind plus an optional operation-specific detail.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Detail
}

// Is reports whether target is the same Kind, so callers can use
// errors.Is(err, kerr.TimeoutErr) style checks against the sentinels below
// instead of unwrapping to *Error and comparing Kind by hand.
func (e *Error) Is(target error) bool {
	s, ok := target.(*sentinel)
	return ok && s.kind == e.Kind
}

// sentinel lets callers write errors.Is(err, kerr.TimeoutErr) without
// allocating; New() below produces *Error values compared against these by
// Kind, not identity.
type sentinel struct{ kind Kind }

func (s *sentinel) Error() string { return s.kind.String() }

var (
	// OutOfMemoryErr etc. are comparison sentinels for errors.Is. Most call
	// sites prefer Kindof, which returns a Kind directly for switch/compare;
	// these sentinels exist for callers that only care about one Kind.
	OutOfMemoryErr     error = &sentinel{OutOfMemory}
	TimeoutErr         error = &sentinel{Timeout}
	InvalidStateErr    error = &sentinel{InvalidState}
	InvalidArgumentErr error = &sentinel{InvalidArgument}
	WouldBlockErr      error = &sentinel{WouldBlock}
)

// New constructs a kernel Error for the given operation.
func New(op string, kind Kind, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Kindof extracts the Kind of err, if it is (or wraps) a *Error.
func Kindof(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
