// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel orchestrates boot: it brings up the heap, the interrupt
// vector table, the device registry, and the scheduler, in the order
// spec.md §6 lays out (heap, vectors, devices, idle thread, initial
// thread, start scheduler), instrumenting every phase with a timing.Timer
// so a board can log how long boot took and where the time went.
package kernel

import (
	"github.com/vela-rtos/vela/bootconfig"
	"github.com/vela-rtos/vela/boot"
	"github.com/vela-rtos/vela/device"
	"github.com/vela-rtos/vela/heap"
	"github.com/vela-rtos/vela/irq"
	"github.com/vela-rtos/vela/klog"
	"github.com/vela-rtos/vela/sched"
	"github.com/vela-rtos/vela/timing"
)

// Kernel bundles the subsystems Init brings up. Zero value is not usable;
// construct with Init.
type Kernel struct {
	Config  bootconfig.Config
	Heap    *heap.Heap
	IRQ     *irq.Table
	Sched   *sched.Scheduler
	Devices *device.Registry

	// Boot is the timing tree Init recorded while bringing the kernel up.
	// Finish has already been called on it by the time Init returns.
	Boot *timing.FullTimer

	idle *sched.Thread
	log  *klog.Logger
}

// Init verifies the firmware image named by cfg.FirmwarePath (skipped if
// empty — see boot.VerifyFile), then brings up the heap, interrupt vector
// table, device registry, scheduler, and idle thread, in that order. It
// does not start the scheduler; call Start once the board's own initial
// thread is ready to run.
//
// devices may be nil, in which case no drivers are opened. log may be nil,
// in which case klog.Std is used.
func Init(cfg bootconfig.Config, firmwareSum []byte, devices *device.Registry, log *klog.Logger) (*Kernel, error) {
	if log == nil {
		log = klog.Std
	}
	if err := cfg.Validate(sched.MinStackBytes); err != nil {
		return nil, err
	}

	timer := timing.NewFullTimer("boot")

	timer.Push("verify-image")
	if _, err := boot.VerifyFile(cfg.FirmwarePath, firmwareSum); err != nil {
		timer.Pop()
		timer.Finish()
		log.Errorf("kernel: firmware verification failed: %v", err)
		return nil, err
	}
	timer.Pop()

	timer.Push("heap")
	h := heap.New(cfg.HeapBytes)
	timer.Pop()

	timer.Push("irq-vectors")
	vectors := irq.NewTable(cfg.IRQVectors)
	timer.Pop()

	timer.Push("devices")
	if devices != nil {
		if err := devices.OpenAll(); err != nil {
			timer.Pop()
			timer.Finish()
			log.Errorf("kernel: device init failed: %v", err)
			return nil, err
		}
	}
	timer.Pop()

	timer.Push("scheduler")
	s := sched.New(cfg.PriorityLevels, cfg.QuantumTicks)
	timer.Pop()

	k := &Kernel{
		Config:  cfg,
		Heap:    h,
		IRQ:     vectors,
		Sched:   s,
		Devices: devices,
		log:     log,
	}

	timer.Push("idle-thread")
	idle, err := s.Create(cfg.PriorityLevels-1, cfg.IdleStackBytes, k.idleLoop, nil)
	timer.Pop()
	if err != nil {
		timer.Finish()
		log.Errorf("kernel: idle thread creation failed: %v", err)
		return nil, err
	}
	k.idle = idle

	timer.Finish()
	k.Boot = timer
	log.Infof("kernel: boot complete\n%s", timer.String())
	return k, nil
}

// idleLoop is the body of the idle thread Init creates at the lowest
// priority: it never does real work, it only ever yields, so the ready
// queue always has something to dispatch once every other thread blocks.
func (k *Kernel) idleLoop(interface{}) {
	for {
		k.Sched.Yield()
	}
}

// Start creates the board's initial thread and begins scheduling; it never
// returns (spec.md §6's final boot step). Call it only once, after Init
// and after any additional threads or devices the board wants running
// before the scheduler takes over have been set up.
func (k *Kernel) Start(entry sched.Entry, priority, stackBytes int, arg interface{}) error {
	if _, err := k.Sched.Create(priority, stackBytes, entry, arg); err != nil {
		return err
	}
	k.Sched.Start()
	return nil
}

// Tick drives one scheduler tick (spec.md §6's tick source): a board wires
// this to its hardware timer interrupt.
func (k *Kernel) Tick() {
	k.Sched.Tick()
}

// Shutdown closes every opened device driver in reverse init order. It
// does not stop the scheduler, which this host simulation has no way to
// tear down once goroutines are parked on their gates.
func (k *Kernel) Shutdown() {
	if k.Devices != nil {
		k.Devices.CloseAll()
	}
}
