// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sched implements the kernel's thread core: thread control blocks,
// the priority ready queue, the current-thread pointer, and the handful of
// reschedule points named in spec.md §4.1 (create, yield, sleep, exit,
// priority_set, current).
//
// Host simulation model: each Thread is a goroutine gated by a buffered,
// capacity-1 channel that acts as its run token. Exactly one goroutine ever
// holds a thread's token at a time, and the scheduler's critical section
// (shared with ksync, per spec.md §5) serialises every mutation of the
// ready queue and the current-thread pointer, so "at most one thread is
// Running" (spec.md §8 property 2) holds structurally rather than by
// convention. This is grounded on the G/blockChan gate pattern from the
// toysched teaching examples, generalised from a round-robin run queue to
// the priority-ordered tlist.PriorityQueue used throughout this kernel.
//
// Reschedule points that originate from the currently running thread's own
// call (Yield, Sleep, a synchronisation release/signal, Create) perform an
// immediate switch: the calling goroutine is, by construction, the current
// thread's own goroutine, so it can safely park on its own gate until it is
// scheduled again. Reschedule points that originate elsewhere — the tick
// handler's quantum expiry, and a timer firing to wake a sleeping or
// timed-out thread — cannot forcibly suspend a goroutine that is actively
// executing arbitrary Go code (there is no portable equivalent of a
// Cortex-M PendSV exception), so they only update scheduler bookkeeping and
// wake the new head's gate; the preempted thread rejoins the ready queue
// for real the next time it makes its own call into this package. This is
// the one deliberate fidelity gap in an otherwise faithful host model of
// spec.md's scheduling algorithm (see DESIGN.md).
package sched

import (
	"sync/atomic"

	"github.com/vela-rtos/vela/kerr"
	"github.com/vela-rtos/vela/klog"
	"github.com/vela-rtos/vela/ktimer"
	"github.com/vela-rtos/vela/platform"
	"github.com/vela-rtos/vela/tlist"
)

// MinStackBytes is the smallest stack allocation Create will accept.
const MinStackBytes = 256

// State is a Thread's position in its lifecycle (spec.md §3).
type State int

const (
	Ready State = iota
	Running
	Blocked
	Sleeping
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Sleeping:
		return "sleeping"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Entry is a thread's body. It runs on its own goroutine and should call
// back into the owning Scheduler (Yield, Sleep, Exit, or a ksync
// primitive) at its natural suspension points; a body that never calls
// back cannot be preempted by this host simulation (see package doc).
type Entry func(arg interface{})

// Thread is the kernel's thread control block (spec.md §3). The zero value
// is not usable; Threads are created by Scheduler.Create.
type Thread struct {
	node tlist.Node

	id          uint64
	priority    int
	stackBytes  int
	state       State
	waitObj     interface{}
	quantumLeft int
	timer       ktimer.Entry
	timedOut    bool

	gate  chan struct{}
	entry Entry
	arg   interface{}
	sched *Scheduler
}

// ID returns the thread's stable identity.
func (t *Thread) ID() uint64 { return t.id }

// Priority returns the thread's current scheduling priority (0 = highest).
func (t *Thread) Priority() int { return t.priority }

// State reports the thread's last-known lifecycle state. Racy with respect
// to a concurrently running scheduler unless read while Lock is held; safe
// as a diagnostic snapshot otherwise.
func (t *Thread) State() State { return t.state }

// ListNode exposes the thread's intrusive list node so that ksync's
// mutex/event/queue blocked lists can link a Thread directly — it is never
// in more than one list at a time (spec.md §3), so reusing the same node
// across the ready queue and a primitive's blocked list is safe.
func (t *Thread) ListNode() *tlist.Node { return &t.node }

// Timer exposes the thread's embedded timeout entry for ksync's timed
// blocking operations. As with ListNode, a thread is blocked on at most one
// thing at a time, so one embedded ktimer.Entry per Thread suffices.
func (t *Thread) Timer() *ktimer.Entry { return &t.timer }

// TimedOut reports whether the thread's most recent wait (BlockLocked call)
// was resolved by WakeTimedOut rather than by whatever primitive it was
// waiting on. Valid to read once the thread resumes from ApplySwitch.
func (t *Thread) TimedOut() bool { return t.timedOut }

// Scheduler owns the ready queue, the current-thread pointer, and a
// critical section, which ksync's primitives share via Lock/Unlock so that
// a blocked-list mutation and a ready-queue mutation happen atomically
// together. The timer wheel, heap and irq table each hold a separate one.
type Scheduler struct {
	cs    platform.CriticalSection
	ready *tlist.PriorityQueue
	wheel *ktimer.Wheel

	levels       int
	quantumTicks int
	current      *Thread
	nextID       uint64
	started      bool
}

// New returns a Scheduler with `levels` priority levels (0 is highest) and
// a round-robin quantum of `quantumTicks` ticks (0 disables quantum
// expiry — a thread runs until it voluntarily yields or blocks).
func New(levels int, quantumTicks int) *Scheduler {
	if levels <= 0 {
		panic("sched: levels must be positive")
	}
	return &Scheduler{
		ready:  tlist.NewPriorityQueue(levels),
		wheel:  ktimer.NewWheel(),
		levels: levels,
		quantumTicks: quantumTicks,
	}
}

// Lock acquires the scheduler's critical section. ksync's
// primitives call this directly so their own list mutations are atomic
// with the scheduler's.
func (s *Scheduler) Lock() { s.cs.Enter() }

// Unlock releases the critical section acquired by Lock.
func (s *Scheduler) Unlock() { s.cs.Exit() }

// CurrentLocked returns the calling thread. Lock must be held.
func (s *Scheduler) CurrentLocked() *Thread { return s.current }

// Current returns the calling thread's handle (spec.md §4.1 `current`), or
// nil if called from outside any thread's context (board bring-up code
// before Start, or a driver's own goroutine).
func (s *Scheduler) Current() *Thread {
	s.cs.Enter()
	defer s.cs.Exit()
	return s.current
}

func (s *Scheduler) popNextLocked() *Thread {
	node, _ := s.ready.PopFront()
	if node == nil {
		return nil
	}
	nt := node.Owner.(*Thread)
	nt.state = Running
	return nt
}

func (s *Scheduler) readyLocked(t *Thread) {
	t.state = Ready
	t.node.Owner = t
	s.ready.PushBack(t.priority, &t.node)
}

// yieldLocked requeues t at the back of its own priority level and always
// dispatches the new front of the ready queue (which may be t itself).
func (s *Scheduler) yieldLocked(t *Thread) (old, next *Thread) {
	s.readyLocked(t)
	next = s.popNextLocked()
	s.current = next
	return t, next
}

// blockLocked removes t from scheduling. The caller is responsible for
// having already linked t into whatever wait list it is blocking on (and
// for setting t.state/t.waitObj) before calling this.
func (s *Scheduler) blockLocked(t *Thread) (old, next *Thread) {
	next = s.popNextLocked()
	s.current = next
	return t, next
}

// admitAndMaybeSwitchLocked readies t and, if a scheduler is already
// running (Start has been called) and t outranks the current thread,
// immediately preempts it. Used for reschedule points that are always
// invoked by the current thread's own goroutine (Create, a synchronisation
// release/signal): only there is it safe for ApplySwitch to park the
// caller on its own gate afterward.
func (s *Scheduler) admitAndMaybeSwitchLocked(t *Thread) (old, next *Thread) {
	s.readyLocked(t)
	old = s.current
	if old == nil {
		if s.started {
			// The scheduler is running but nothing is currently
			// dispatched (the last thread went idle); there is no live
			// goroutine to disturb, so hand the CPU to t right away.
			next = s.popNextLocked()
			s.current = next
		}
		return nil, next
	}
	if t.priority >= old.priority {
		return old, old
	}
	old.state = Ready
	old.node.Owner = old
	s.ready.PushBack(old.priority, &old.node)
	next = s.popNextLocked()
	s.current = next
	return old, next
}

// ReadyLocked is admitAndMaybeSwitchLocked exposed for ksync: moving a
// waiter back to Ready on release/signal, from the releasing thread's own
// call stack. Lock must be held; call ApplySwitch after Unlock.
func (s *Scheduler) ReadyLocked(t *Thread) (old, next *Thread) {
	t.waitObj = nil
	return s.admitAndMaybeSwitchLocked(t)
}

// ReadyLockedPassive moves t back to Ready without attempting to preempt a
// live current thread. Used when the caller is not t's or current's own
// goroutine (a timer callback waking a timed-out waiter runs in the tick
// handler's call stack, per the package-level preemption caveat). If no
// thread is currently running at all — the scheduler is genuinely idle,
// e.g. no idle thread was created and the last thread went to sleep —
// there is no live goroutine to avoid disturbing, so t is dispatched
// immediately; the caller must invoke ApplySwitch with the returned pair
// after Unlock.
func (s *Scheduler) ReadyLockedPassive(t *Thread) (old, next *Thread) {
	t.waitObj = nil
	s.readyLocked(t)
	if s.current == nil && s.started {
		next = s.popNextLocked()
		s.current = next
		return nil, next
	}
	return nil, nil
}

// BlockLocked parks the calling thread t in state (Blocked or Sleeping),
// having already been linked into a wait list by the caller. Lock must be
// held; call ApplySwitch after Unlock.
func (s *Scheduler) BlockLocked(t *Thread, waitObj interface{}, state State) (old, next *Thread) {
	t.state = state
	t.waitObj = waitObj
	t.timedOut = false
	return s.blockLocked(t)
}

// ApplySwitch performs the gate handshake for an (old, next) pair returned
// by one of the *Locked methods above, called with Lock released. next is
// woken if it differs from old; old — which, by the calling convention of
// every *Locked method above except the passive one, is the calling
// goroutine's own thread — then parks on its own gate until rescheduled.
func (s *Scheduler) ApplySwitch(old, next *Thread) {
	if next == old {
		return
	}
	if next != nil {
		next.gate <- struct{}{}
	}
	if old != nil {
		<-old.gate
	}
}

// Create allocates a new Thread at the given priority and links it into
// the ready queue (spec.md §4.1 `create`). The new goroutine does not run
// until the scheduler dispatches it — either immediately, if Create
// preempts the calling thread, or later.
func (s *Scheduler) Create(priority int, stackBytes int, entry Entry, arg interface{}) (*Thread, error) {
	if priority < 0 || priority >= s.levels {
		return nil, kerr.New("sched.Create", kerr.InvalidArgument, "priority out of range")
	}
	if stackBytes < MinStackBytes {
		return nil, kerr.New("sched.Create", kerr.InvalidArgument, "stack below minimum")
	}
	if entry == nil {
		return nil, kerr.New("sched.Create", kerr.InvalidArgument, "nil entry")
	}

	t := &Thread{
		id:         atomic.AddUint64(&s.nextID, 1),
		priority:   priority,
		stackBytes: stackBytes,
		entry:      entry,
		arg:        arg,
		sched:      s,
		gate:       make(chan struct{}, 1),
	}
	t.node.Owner = t
	t.quantumLeft = s.quantumTicks

	s.cs.Enter()
	old, next := s.admitAndMaybeSwitchLocked(t)
	s.cs.Exit()

	go t.bootstrap()
	s.ApplySwitch(old, next)
	return t, nil
}

// bootstrap is the body of every Thread's goroutine: it waits to be
// scheduled for the first time, runs the entry point, then exits.
func (t *Thread) bootstrap() {
	<-t.gate
	t.entry(t.arg)
	t.sched.Exit()
}

// Yield gives up the remainder of the calling thread's quantum (spec.md
// §4.1 `yield`), returning after at least one reschedule point.
func (s *Scheduler) Yield() {
	s.cs.Enter()
	t := s.current
	if t == nil {
		s.cs.Exit()
		return
	}
	old, next := s.yieldLocked(t)
	s.cs.Exit()
	s.ApplySwitch(old, next)
}

// Sleep blocks the calling thread for at least `ticks` tick periods
// (spec.md §4.1 `sleep`). Sleep(0) is a no-op.
func (s *Scheduler) Sleep(ticks uint64) {
	if ticks == 0 {
		return
	}
	s.cs.Enter()
	t := s.current
	if t == nil {
		s.cs.Exit()
		return
	}
	s.wheel.Arm(&t.timer, ticks, 0, s.WakeTimedOut, t)
	old, next := s.BlockLocked(t, nil, Sleeping)
	s.cs.Exit()
	s.ApplySwitch(old, next)
}

// WakeTimedOut is the ktimer.Handler used whenever a blocking wait is
// given a finite timeout (Sleep, and every timed call in ksync): it moves
// the waiter back to Ready if it is still Sleeping or Blocked, i.e. if
// nothing else (a release, a signal, an enqueue) woke it first.
func (s *Scheduler) WakeTimedOut(arg interface{}) {
	t := arg.(*Thread)
	s.cs.Enter()
	var old, next *Thread
	if t.state == Sleeping || t.state == Blocked {
		// Detach from whatever synchronisation primitive's wait list t is
		// still linked into (Node.Remove is list-agnostic); Sleep never
		// links the node anywhere, so this is a no-op for a plain sleep
		// timeout.
		if t.node.InList() {
			t.node.Remove()
		}
		t.timedOut = true
		old, next = s.ReadyLockedPassive(t)
	}
	s.cs.Exit()
	if next != nil && next != old {
		next.gate <- struct{}{}
	}
}

// Exit terminates the calling thread; it never returns (spec.md §4.1
// `exit`).
func (s *Scheduler) Exit() {
	s.cs.Enter()
	t := s.current
	if t == nil {
		s.cs.Exit()
		return
	}
	t.state = Terminated
	s.wheel.Cancel(&t.timer)
	_, next := s.blockLocked(t)
	s.cs.Exit()
	if next != nil {
		next.gate <- struct{}{}
	}
	select {} // a terminated thread's goroutine parks here forever.
}

// SetPriority changes t's priority, repositioning it in the ready queue if
// it is currently Ready (spec.md §4.1 `priority_set`).
func (s *Scheduler) SetPriority(t *Thread, newPriority int) error {
	if newPriority < 0 || newPriority >= s.levels {
		return kerr.New("sched.SetPriority", kerr.InvalidArgument, "priority out of range")
	}
	s.cs.Enter()
	defer s.cs.Exit()
	if t.state == Ready {
		s.ready.Remove(&t.node)
		t.priority = newPriority
		s.ready.PushBack(newPriority, &t.node)
	} else {
		t.priority = newPriority
	}
	return nil
}

// Start performs the kernel's first context switch, into the
// highest-priority Ready thread, and never returns (spec.md §6). At least
// the idle thread must already have been created.
func (s *Scheduler) Start() {
	s.cs.Enter()
	s.started = true
	next := s.popNextLocked()
	s.current = next
	s.cs.Exit()

	if next == nil {
		klog.Fatalf("sched: Start called with no thread created")
		return
	}
	next.gate <- struct{}{}
	select {}
}

// Tick advances the tick count, services the timer wheel, and accounts the
// running thread's round-robin quantum (spec.md §6's tick source, items
// a-d). See the package doc for the scope of preemption this drives.
func (s *Scheduler) Tick() {
	s.wheel.Tick()

	s.cs.Enter()
	t := s.current
	if t == nil || s.quantumTicks <= 0 {
		s.cs.Exit()
		return
	}
	t.quantumLeft--
	if t.quantumLeft > 0 {
		s.cs.Exit()
		return
	}
	t.quantumLeft = s.quantumTicks
	old, next := s.yieldLocked(t)
	s.cs.Exit()
	if next != nil && next != old {
		next.gate <- struct{}{}
	}
}

// ArmTimeout arms e to call fn(arg) after `ticks` ticks, for use by ksync's
// timed blocking operations. Canceling a never-fired timeout is the
// caller's responsibility (CancelTimeout) once the wait resolves some
// other way.
func (s *Scheduler) ArmTimeout(e *ktimer.Entry, ticks uint64, fn ktimer.Handler, arg interface{}) {
	s.wheel.Arm(e, ticks, 0, fn, arg)
}

// CancelTimeout cancels a timeout armed by ArmTimeout.
func (s *Scheduler) CancelTimeout(e *ktimer.Entry) {
	s.wheel.Cancel(e)
}
