// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nsync_test

import "sync"
import "testing"

import "github.com/vela-rtos/vela/nsync"

// The benchmarks in this file ping-pong back and forth between two threads
// as they count i from 0 to limit, using only the primitives Mu actually
// needs to support: itself as a sync.Locker, paired with sync.Cond.
//
// The setting of GOMAXPROCS, and the exact choices of the thread scheduler can
// have great effect on the timings.
type pingPong struct {
	mu nsync.Mu

	mutex sync.Mutex
	cond  [2]*sync.Cond

	i     int
	limit int
}

// mutexCondPingPong() is run by each thread in BenchmarkPingPongMutexCond().
func (pp *pingPong) mutexCondPingPong(parity int) {
	pp.mutex.Lock()
	for pp.i < pp.limit {
		for (pp.i & 1) == parity {
			pp.cond[parity].Wait()
		}
		pp.i++
		pp.cond[1-parity].Signal()
	}
	pp.mutex.Unlock()
}

// BenchmarkPingPongMutexCond() measures the wakeup speed of
// sync.Mutex/sync.Cond used to ping-pong back and forth between two threads.
func BenchmarkPingPongMutexCond(b *testing.B) {
	pp := pingPong{limit: b.N}
	pp.cond[0] = sync.NewCond(&pp.mutex)
	pp.cond[1] = sync.NewCond(&pp.mutex)
	go pp.mutexCondPingPong(0)
	pp.mutexCondPingPong(1)
}

// muCondPingPong() is run by each thread in BenchmarkPingPongMuCond().
func (pp *pingPong) muCondPingPong(parity int) {
	pp.mu.Lock()
	for pp.i < pp.limit {
		for (pp.i & 1) == parity {
			pp.cond[parity].Wait()
		}
		pp.i++
		pp.cond[1-parity].Signal()
	}
	pp.mu.Unlock()
}

// BenchmarkPingPongMuCond() measures the wakeup speed of nsync.Mu/sync.Cond
// used to ping-pong back and forth between two threads. It exercises Mu as a
// sync.Locker, the same interface platform.CriticalSection relies on.
func BenchmarkPingPongMuCond(b *testing.B) {
	pp := pingPong{limit: b.N}
	pp.cond[0] = sync.NewCond(&pp.mu)
	pp.cond[1] = sync.NewCond(&pp.mu)
	go pp.muCondPingPong(0)
	pp.muCondPingPong(1)
}
