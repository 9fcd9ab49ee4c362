// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package orchestrator wires together the discovery, chain-loading and
// menu packages into the single entry point main calls once UEFI
// services are initialized: pre-load auxiliary drivers, read every
// disk's GPT root map, scan every mounted volume for bootable images,
// then hand the resulting registry to the interactive menu.
package orchestrator

import (
	"fmt"
	"log"

	"github.com/opsboot/uefi-bootmenu/arena"
	"github.com/opsboot/uefi-bootmenu/chainload"
	"github.com/opsboot/uefi-bootmenu/diag"
	"github.com/opsboot/uefi-bootmenu/gpt"
	"github.com/opsboot/uefi-bootmenu/loader"
	"github.com/opsboot/uefi-bootmenu/menu"
	"github.com/opsboot/uefi-bootmenu/scanner"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

// sessionArenaSize bounds the durable copies of scanner-discovered
// strings (disk labels) made for the lifetime of the process.
const sessionArenaSize = 64 * 1024

// Run drives the full boot menu lifecycle against svc, an initialized
// UEFI services instance.
func Run(svc *uefi.Services) error {
	// The interactive menu waits indefinitely for operator input; the
	// platform boot watchdog would otherwise reset the system out from
	// under it.
	if err := svc.Boot.SetWatchdogTimer(0); err != nil {
		log.Printf("warning: disabling boot watchdog: %v", err)
	}

	root, err := svc.Root()

	if err != nil {
		return fmt.Errorf("orchestrator: opening image root volume: %w", err)
	}

	// A missing or empty drivers directory is not fatal; PreloadDrivers
	// already tolerates it.
	_ = chainload.PreloadDrivers(svc.Boot, root)

	roots, err := readRoots(svc.Boot)

	if err != nil {
		svc.Console.SetAttribute(uefi.LightGray, uefi.Black)
		fmt.Fprintf(svc.Console, "warning: reading GPT root map: %v\r\n", err)
		roots = gpt.NameMap{}
	}

	// a stays nil (its scanner.Arena interface value, not just its
	// pointee) when reservation fails: a wrapped nil *arena.Arena
	// would panic on first use, so the assignment only happens on
	// success.
	var a scanner.Arena

	if reserved, err := arena.New(sessionArenaSize); err != nil {
		log.Printf("warning: reserving session arena: %v", err)
	} else {
		a = reserved
	}

	var reg loader.Registry

	if err := scanVolumes(svc, roots, &reg, a); err != nil {
		return fmt.Errorf("orchestrator: scanning volumes: %w", err)
	}

	reg.AddDebug("Print roots", func() error {
		fmt.Fprint(svc.Console, diag.Roots(roots))
		return nil
	})

	reg.AddDebug("System information", func() error {
		info, err := diag.SystemInfo(svc)

		if err != nil {
			return err
		}

		fmt.Fprint(svc.Console, info)

		return nil
	})

	m := &menu.Menu{
		Console:  svc.Console,
		Firmware: svc.Runtime,
		Boot:     svc.Boot,
		Stall:    svc.Boot.Stall,
	}

	return m.Run(reg.Entries())
}

// readRoots aggregates the GPT root-partition name map across every
// block device in the system, so the scanner can enrich disk labels
// and build root-partition submenus regardless of which volume a
// kernel was discovered on.
func readRoots(boot *uefi.BootServices) (gpt.NameMap, error) {
	handles, err := boot.LocateHandleBuffer(uefi.EFI_BLOCK_IO_PROTOCOL_GUID)

	if err != nil {
		return nil, err
	}

	roots := gpt.NameMap{}

	for _, h := range handles {
		dev, err := boot.GetBlockIO(h)

		if err != nil {
			continue
		}

		table, err := gpt.ReadTable(dev)

		if err != nil {
			continue
		}

		for id, name := range table.NameMap(gpt.LogicalBlockSize) {
			roots[id] = name
		}
	}

	return roots, nil
}

// scanVolumes enumerates every EFI_SIMPLE_FILE_SYSTEM_PROTOCOL handle
// in the system and scans each one into reg.
func scanVolumes(svc *uefi.Services, roots gpt.NameMap, reg *loader.Registry, a scanner.Arena) error {
	handles, err := svc.Boot.LocateHandleBuffer(uefi.EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID)

	if err != nil {
		return err
	}

	for _, h := range handles {
		vol, err := svc.OpenVolume(h)

		if err != nil {
			continue
		}

		if err := scanner.Scan(vol, vol, roots, reg, a); err != nil {
			continue
		}
	}

	return nil
}
