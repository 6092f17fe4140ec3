// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bootconfig assembles the board bring-up parameters kernel.Init
// needs — tick rate, heap region size, ready-queue priority levels, idle
// thread stack size — into a single Config, populated from pflag-parsed
// command-line flags via cmd/pflagvar.
package bootconfig

import (
	"github.com/spf13/pflag"

	"github.com/vela-rtos/vela/cmd/pflagvar"
	"github.com/vela-rtos/vela/kerr"
)

// Config holds the parameters a board needs to bring the kernel up.
// Every field is tagged for RegisterFlags; the tag's default is this
// repo's generic simulated board.
type Config struct {
	// TickHz is the rate, in Hz, at which kernel.Tick is expected to be
	// driven (e.g. by a hardware SysTick interrupt on real silicon).
	TickHz int `boot:"tick-hz,1000,scheduler tick rate in Hz"`

	// HeapBytes is the size, in bytes, of the region handed to heap.New.
	HeapBytes int `boot:"heap-bytes,65536,heap region size in bytes"`

	// PriorityLevels is the number of distinct thread priorities the
	// scheduler's ready queue supports, 0 being highest.
	PriorityLevels int `boot:"priorities,8,number of scheduler priority levels"`

	// IdleStackBytes is the stack reserved for the idle thread kernel.Init
	// creates at priority PriorityLevels-1.
	IdleStackBytes int `boot:"idle-stack-bytes,512,idle thread stack size in bytes"`

	// QuantumTicks is the number of ticks a thread may run before the
	// round-robin quantum expires and it yields to the next ready thread
	// at the same priority.
	QuantumTicks int `boot:"quantum-ticks,10,round-robin quantum in ticks"`

	// IRQVectors is the number of entries in the interrupt vector table.
	IRQVectors int `boot:"irq-vectors,16,number of interrupt vector table entries"`

	// FirmwarePath names the flash image boot.VerifyImage checksums
	// before kernel.Init runs. Empty means "skip verification", which
	// cmd/velasim uses when simulating without a real image on disk.
	FirmwarePath string `boot:"firmware,,path to the firmware image to verify before boot"`
}

// Default returns the Config a generic simulated board uses when nothing
// overrides it: the same values the struct tags above declare.
func Default() Config {
	var c Config
	if err := RegisterFlags(&pflag.FlagSet{}, &c); err != nil {
		// RegisterFlags only fails on a programmer error in the tags
		// above (duplicate or malformed), which Default can't trigger
		// independently of every other caller; a panic here would fire
		// in every build, making it as good as a compile error.
		panic(err)
	}
	return c
}

// RegisterFlags registers c's fields as pflag flags on fs, so a board's
// main can parse os.Args into c before calling kernel.Init.
func RegisterFlags(fs *pflag.FlagSet, c *Config) error {
	return pflagvar.RegisterFlagsInStruct(fs, "boot", c, nil)
}

// Validate checks the invariants kernel.Init relies on: positive tick
// rate, heap size, priority levels, and idle stack meeting the kernel's
// stack-size floor (spec.md §4.1's MinStackBytes).
func (c Config) Validate(minStackBytes int) error {
	switch {
	case c.TickHz <= 0:
		return kerr.New("bootconfig.Config.Validate", kerr.InvalidArgument, "tick-hz must be positive")
	case c.HeapBytes <= 0:
		return kerr.New("bootconfig.Config.Validate", kerr.InvalidArgument, "heap-bytes must be positive")
	case c.PriorityLevels <= 0:
		return kerr.New("bootconfig.Config.Validate", kerr.InvalidArgument, "priorities must be positive")
	case c.IdleStackBytes < minStackBytes:
		return kerr.New("bootconfig.Config.Validate", kerr.InvalidArgument, "idle-stack-bytes below the minimum stack size")
	case c.QuantumTicks <= 0:
		return kerr.New("bootconfig.Config.Validate", kerr.InvalidArgument, "quantum-ticks must be positive")
	case c.IRQVectors <= 0:
		return kerr.New("bootconfig.Config.Validate", kerr.InvalidArgument, "irq-vectors must be positive")
	}
	return nil
}
