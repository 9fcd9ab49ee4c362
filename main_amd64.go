// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/opsboot/uefi-bootmenu/orchestrator"
	"github.com/opsboot/uefi-bootmenu/uefi"
	"github.com/opsboot/uefi-bootmenu/uefi/x64"
)

// Revision and Build are injected at link time via -ldflags "-X
// main.Revision=... -X main.Build=...".
var (
	Revision string
	Build    string
)

// panicking guards the panic discipline against re-entrancy: a second
// panic raised while redScreen itself is unwinding skips the UI and
// halts the CPU outright, since console I/O is not safe to re-enter.
var panicking bool

// panicStallMicroseconds is the minimum time the red screen stays up
// before waiting for a keystroke.
const panicStallMicroseconds = 3_000_000

func init() {
	log.SetFlags(0)
}

// redScreen implements the panic discipline: flip the console to red,
// print the recovered value, stall for visibility, wait for any key,
// then shut down. Structural invariant violations are the only panics
// expected to reach here; everything else returns a plain error.
func redScreen(r any) {
	if panicking {
		for {
		}
	}

	panicking = true

	c := x64.UEFI.Console
	c.SetAttribute(uefi.White, uefi.Red)
	c.ClearScreen()
	fmt.Fprintf(c, "panic: %v\r\n", r)

	if x64.UEFI.Boot != nil {
		x64.UEFI.Boot.Stall(panicStallMicroseconds)
	}

	c.ReadKey()

	if x64.UEFI.Runtime != nil {
		x64.UEFI.Runtime.ResetSystem(uefi.EfiResetShutdown)
	}

	for {
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			redScreen(r)
		}
	}()

	logFile, _ := os.OpenFile("/runtime.log", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	log.SetOutput(io.MultiWriter(x64.Console, logFile))

	fmt.Fprintf(x64.Console, "%s/%s (%s) - UEFI boot menu %s %s\r\n",
		runtime.GOOS, runtime.GOARCH, runtime.Version(), Revision, Build)

	if err := orchestrator.Run(x64.UEFI); err != nil {
		fmt.Fprintf(x64.Console, "fatal: %v\r\n", err)
	}

	runtime.Exit(0)
}
