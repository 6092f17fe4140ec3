// Copyright 2024 The Vela Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pflagvar_test

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/vela-rtos/vela/cmd/pflagvar"
)

func ExampleRegisterFlagsInStruct() {
	eg := struct {
		TickHz int    `boot:"tick-hz,1000,scheduler tick rate"`
		Board  string `boot:"board,'generic,v1',board identifier"`
	}{}
	flagSet := &pflag.FlagSet{}
	if err := pflagvar.RegisterFlagsInStruct(flagSet, "boot", &eg, nil); err != nil {
		panic(err)
	}
	fmt.Println(eg.TickHz)
	fmt.Println(eg.Board)
	flagSet.Parse([]string{"--tick-hz=500"})
	fmt.Println(eg.TickHz)
	fmt.Println(eg.Board)
	// Output:
	// 1000
	// generic,v1
	// 500
	// generic,v1
}
