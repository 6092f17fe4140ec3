// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pflagvar adapts flagvar.RegisterFlagsInStruct onto a
// pflag.FlagSet, so the fields registered this way appear as ordinary
// POSIX/GNU-style double-dash flags alongside the rest of a command's
// pflag surface.
package pflagvar

import (
	"flag"

	"github.com/spf13/pflag"

	"github.com/vela-rtos/vela/cmd/flagvar"
)

// RegisterFlagsInStruct is flagvar.RegisterFlagsInStruct, but registers
// onto pfs: it builds a throwaway standard flag.FlagSet, registers the
// tagged fields onto that, then absorbs it into pfs via AddGoFlagSet.
func RegisterFlagsInStruct(pfs *pflag.FlagSet, tag string, structWithFlags interface{}, valueDefaults map[string]interface{}) error {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	if err := flagvar.RegisterFlagsInStruct(fs, tag, structWithFlags, valueDefaults); err != nil {
		return err
	}
	pfs.AddGoFlagSet(fs)
	return nil
}
