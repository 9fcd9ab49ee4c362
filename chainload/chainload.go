// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package chainload starts a discovered Loader as a new UEFI image,
// and pre-loads the auxiliary drivers the orchestrator stages before
// interactive discovery begins.
package chainload

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/opsboot/uefi-bootmenu/loader"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

var errNoVolume = errors.New("chainload: loader has no originating volume")

// driversDir is the well-known directory holding drivers to pre-load
// before interactive discovery.
const driversDir = "EFI/zbl/drivers"

// BootServices is the subset of [uefi.BootServices] chain-loading
// needs, factored out as an interface so the dispatch and error
// handling logic below can be exercised without live firmware.
type BootServices interface {
	LoadImage(boot int, root *uefi.FS, name string) (imageHandle uint64, err error)
	StartImage(imageHandle uint64) error
	SetLoadOptions(imageHandle uint64, args string) error
}

// Start loads and starts l as a new UEFI image, read from the file
// system instance recorded on l's originating disk. An EFI_ABORTED
// status from StartImage is treated as benign completion: UEFI
// drivers and some loaders commonly abort after registering
// themselves.
func Start(boot BootServices, l loader.Loader) error {
	if l.Disk == nil || l.Disk.FS == nil {
		return errNoVolume
	}

	root := l.Disk.FS

	imageHandle, err := boot.LoadImage(0, root, l.FileName)

	if err != nil {
		return fmt.Errorf("chainload: loading %s: %w", l.FileName, err)
	}

	if err = boot.SetLoadOptions(imageHandle, l.Args); err != nil {
		return fmt.Errorf("chainload: setting load options for %s: %w", l.FileName, err)
	}

	err = boot.StartImage(imageHandle)

	if err != nil && !errors.Is(err, uefi.ErrAborted) {
		return fmt.Errorf("chainload: starting %s: %w", l.FileName, err)
	}

	return nil
}

// PreloadDrivers chain-loads every .efi file under EFI\zbl\drivers on
// root, tolerating a failure or an EFI_ABORTED completion for any
// individual driver and continuing with the rest. A missing drivers
// directory is not an error.
func PreloadDrivers(boot BootServices, root *uefi.FS) error {
	entries, err := fs.ReadDir(root, driversDir)

	if err != nil {
		return nil
	}

	disk := &loader.DiskInfo{FS: root}

	for _, path := range driverPaths(entries) {
		_ = Start(boot, loader.Loader{FileName: path, Disk: disk})
	}

	return nil
}

// driverPaths converts a directory listing of EFI\zbl\drivers into the
// UEFI-style backslash paths of its .efi/.EFI entries, factored out of
// PreloadDrivers so the naming logic can be tested against a synthetic
// directory listing.
func driverPaths(entries []fs.DirEntry) []string {
	var paths []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()

		if !strings.HasSuffix(name, ".efi") && !strings.HasSuffix(name, ".EFI") {
			continue
		}

		paths = append(paths, `EFI\zbl\drivers\`+name)
	}

	return paths
}
