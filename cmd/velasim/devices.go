// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"os"
)

// consoleDriver mirrors a UART console: Write goes to stdout, Read is
// unsupported on this simulated board.
type consoleDriver struct{}

func newConsoleDriver() *consoleDriver { return &consoleDriver{} }

func (d *consoleDriver) Open() error  { return nil }
func (d *consoleDriver) Close() error { return nil }
func (d *consoleDriver) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("console: read not supported")
}
func (d *consoleDriver) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (d *consoleDriver) Ioctl(op int, arg interface{}) (interface{}, error) {
	return nil, fmt.Errorf("console: no ioctls defined")
}

// sensorDriver simulates a simple polled sensor that depends on the
// console being up before it opens, to exercise device's dependency
// ordering. Reads return a fixed sample frame; Write is unsupported.
type sensorDriver struct {
	buf *bytes.Reader
}

func newSensorDriver() *sensorDriver {
	return &sensorDriver{buf: bytes.NewReader([]byte{0x2A, 0x00, 0x00, 0x00})}
}

func (d *sensorDriver) Open() error  { return nil }
func (d *sensorDriver) Close() error { return nil }
func (d *sensorDriver) Read(p []byte) (int, error) {
	n, err := d.buf.Read(p)
	if n == 0 {
		d.buf.Seek(0, 0)
	}
	return n, err
}
func (d *sensorDriver) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("sensor: write not supported")
}
func (d *sensorDriver) Ioctl(op int, arg interface{}) (interface{}, error) {
	return nil, fmt.Errorf("sensor: no ioctls defined")
}
