// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command velasim brings up the kernel against a host-simulated board: a
// time.Ticker stands in for the hardware tick interrupt, and a couple of
// in-memory devices stand in for real peripherals, so the scheduler,
// synchronisation primitives, and device contract can all be exercised
// without target hardware.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/vela-rtos/vela/bootconfig"
	"github.com/vela-rtos/vela/buildinfo"
	"github.com/vela-rtos/vela/device"
	"github.com/vela-rtos/vela/klog"
	"github.com/vela-rtos/vela/ksync"
	"github.com/vela-rtos/vela/kernel"
)

func main() {
	var cfg bootconfig.Config
	var showVersion bool
	var verbosity klog.Level

	if err := bootconfig.RegisterFlags(pflag.CommandLine, &cfg); err != nil {
		fmt.Fprintln(os.Stderr, "velasim:", err)
		os.Exit(2)
	}
	pflag.BoolVar(&showVersion, "version", false, "print build information and exit")
	pflag.IntVarP((*int)(&verbosity), "v", "v", 0, "log verbosity level")
	pflag.Parse()

	if showVersion {
		fmt.Println(buildinfo.Info().String())
		return
	}
	klog.Std.SetLevel(verbosity)

	devices := device.NewRegistry(klog.Std)
	if err := devices.Register("console", newConsoleDriver()); err != nil {
		klog.Fatalf("velasim: %v", err)
	}
	if err := devices.Register("sensor", newSensorDriver(), "console"); err != nil {
		klog.Fatalf("velasim: %v", err)
	}

	k, err := kernel.Init(cfg, nil, devices, klog.Std)
	if err != nil {
		klog.Fatalf("velasim: kernel.Init: %v", err)
	}
	defer k.Shutdown()

	mutex := ksync.NewMutex(k.Sched, cfg.PriorityLevels)
	queue, err := ksync.NewQueue(k.Sched, cfg.PriorityLevels, 4, 8)
	if err != nil {
		klog.Fatalf("velasim: %v", err)
	}
	done := make(chan struct{})

	ticker := time.NewTicker(time.Second / time.Duration(cfg.TickHz))
	go func() {
		for range ticker.C {
			k.Tick()
		}
	}()

	go k.Start(func(interface{}) {
		runDemo(k, mutex, queue, done)
	}, 0, cfg.IdleStackBytes, nil)

	<-done
	klog.Infof("velasim: demo complete")
}

// runDemo exercises a producer/consumer pair over mutex-protected shared
// state and a bounded queue, then closes done so main can return.
func runDemo(k *kernel.Kernel, mutex *ksync.Mutex, queue *ksync.Queue, done chan<- struct{}) {
	producerDone := ksync.NewEvent(k.Sched, k.Config.PriorityLevels)

	if _, err := k.Sched.Create(1, 512, func(interface{}) {
		for i := 0; i < 4; i++ {
			slot := []byte{byte(i), 0, 0, 0, 0, 0, 0, 0}
			if err := queue.Send(slot, ksync.Infinite); err != nil {
				klog.Errorf("velasim: producer Send: %v", err)
			}
			k.Sched.Yield()
		}
		producerDone.Signal()
		k.Sched.Exit()
	}, nil); err != nil {
		klog.Errorf("velasim: producer Create: %v", err)
	}

	if _, err := k.Sched.Create(1, 512, func(interface{}) {
		var buf [8]byte
		for i := 0; i < 4; i++ {
			if err := queue.Receive(buf[:], ksync.Infinite); err != nil {
				klog.Errorf("velasim: consumer Receive: %v", err)
				continue
			}
			if err := mutex.Acquire(ksync.Infinite); err != nil {
				klog.Errorf("velasim: consumer Acquire: %v", err)
				continue
			}
			klog.Infof("velasim: consumed slot %d", buf[0])
			mutex.Release()
		}
		producerDone.Wait(ksync.Infinite)
		close(done)
		k.Sched.Exit()
	}, nil); err != nil {
		klog.Errorf("velasim: consumer Create: %v", err)
	}
}
