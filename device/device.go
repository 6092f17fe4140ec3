// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package device defines the kernel's device driver contract (spec.md §6):
// a name-registered table of opaque handles exposing Open/Close/Read/Write/
// Ioctl, plus a dependency-ordered init sequence. device never implements a
// specific peripheral — it only defines what a driver looks like and in
// what order drivers come up.
package device

import (
	"github.com/vela-rtos/vela/kerr"
	"github.com/vela-rtos/vela/klog"
	"github.com/vela-rtos/vela/toposort"
)

// Driver is the contract every registered device implements. Open is called
// once, in dependency order, by Registry.OpenAll; Close tears down in the
// reverse of that order.
type Driver interface {
	// Open initializes the underlying peripheral. It is called at most once.
	Open() error
	// Close releases the underlying peripheral. It is called at most once,
	// and only on a Driver whose Open returned nil.
	Close() error
	// Read copies up to len(p) bytes from the device into p, returning the
	// count actually read.
	Read(p []byte) (int, error)
	// Write copies len(p) bytes from p to the device, returning the count
	// actually written.
	Write(p []byte) (int, error)
	// Ioctl performs a driver-defined control operation identified by op.
	Ioctl(op int, arg interface{}) (interface{}, error)
}

// entry pairs a registered Driver with the names of the other registered
// drivers it depends on having been opened first.
type entry struct {
	name    string
	driver  Driver
	depends []string
}

// Registry is the kernel's device table (spec.md §6): drivers register by
// name before boot, declaring what else they depend on, and OpenAll brings
// them all up in an order that respects those dependencies.
type Registry struct {
	log     *klog.Logger
	entries map[string]*entry
	opened  []string // names, in the order Open succeeded; used to unwind on Close
}

// NewRegistry returns an empty Registry. log may be nil, in which case
// klog.Std is used.
func NewRegistry(log *klog.Logger) *Registry {
	if log == nil {
		log = klog.Std
	}
	return &Registry{log: log, entries: make(map[string]*entry)}
}

// Register adds a driver under name, depending on the named drivers (which
// need not be registered yet). Registering the same name twice is
// InvalidArgument.
func (r *Registry) Register(name string, driver Driver, dependsOn ...string) error {
	if name == "" || driver == nil {
		return kerr.New("device.Registry.Register", kerr.InvalidArgument, "empty name or nil driver")
	}
	if _, exists := r.entries[name]; exists {
		return kerr.New("device.Registry.Register", kerr.InvalidArgument, "duplicate name "+name)
	}
	r.entries[name] = &entry{name: name, driver: driver, depends: dependsOn}
	return nil
}

// Lookup returns the driver registered under name, if any.
func (r *Registry) Lookup(name string) (Driver, bool) {
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.driver, true
}

// initOrder runs toposort over the declared dependency edges: driver d
// depends on dep means dep must appear first in the result, the same
// direction toposort.AddEdge documents (from depends on to).
func (r *Registry) initOrder() ([]string, [][]interface{}) {
	var s toposort.Sorter
	for name, e := range r.entries {
		s.AddNode(name)
		for _, dep := range e.depends {
			s.AddEdge(name, dep)
		}
	}
	sorted, cycles := s.Sort()
	names := make([]string, 0, len(sorted))
	for _, v := range sorted {
		names = append(names, v.(string))
	}
	return names, cycles
}

// OpenAll opens every registered driver in dependency order, logging each
// transition via klog. If the dependency graph has a cycle, OpenAll opens
// nothing and returns InvalidState. If a driver's Open fails, OpenAll
// closes every driver it already opened, in reverse order, and returns that
// driver's error.
func (r *Registry) OpenAll() error {
	order, cycles := r.initOrder()
	if len(cycles) > 0 {
		r.log.Errorf("device: dependency cycle detected, refusing to open any driver: %v", cycles)
		return kerr.New("device.Registry.OpenAll", kerr.InvalidState, "dependency cycle")
	}
	for _, name := range order {
		e, ok := r.entries[name]
		if !ok {
			// initOrder can include dependency names that were never
			// registered as drivers of their own (e.g. a board rail with
			// no software contract); nothing to open.
			continue
		}
		r.log.Infof("device: opening %s", name)
		if err := e.driver.Open(); err != nil {
			r.log.Errorf("device: %s failed to open: %v", name, err)
			r.closeOpened()
			return err
		}
		r.opened = append(r.opened, name)
	}
	return nil
}

// CloseAll closes every opened driver in the reverse of its open order.
func (r *Registry) CloseAll() {
	r.closeOpened()
}

func (r *Registry) closeOpened() {
	for i := len(r.opened) - 1; i >= 0; i-- {
		name := r.opened[i]
		if err := r.entries[name].driver.Close(); err != nil {
			r.log.Warningf("device: %s failed to close: %v", name, err)
		}
	}
	r.opened = nil
}
