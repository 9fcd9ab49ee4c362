// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package loader holds the data model shared between the filesystem
// scanner, the chain-loader and the interactive menu: the record of a
// discovered bootable image, the disk it lives on, and the registry
// that turns a batch of discovered images into menu entries.
package loader

import (
	"fmt"

	"github.com/opsboot/uefi-bootmenu/devicepath"
	"github.com/opsboot/uefi-bootmenu/guid"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

// DiskInfo identifies the disk a Loader was discovered on: its device
// path (for re-synthesizing a path to a file on it), a human-readable
// label composed by the scanner from the volume label and, when
// available, the GPT root-map name, and the live file system instance
// chain-loading needs to hand back to EFI_BOOT_SERVICES.LoadImage().
// FS is nil for synthetic disks built in tests.
type DiskInfo struct {
	DevicePath []devicepath.Node
	Label      string
	FS         *uefi.FS
}

// Loader represents a candidate bootable image found on a disk.
type Loader struct {
	FileName string
	Disk     *DiskInfo
	Args     string
}

// Description synthesizes the menu label for l: "<disk label>: <file
// name>".
func (l Loader) Description() string {
	return fmt.Sprintf("%s: %s", l.Disk.Label, l.FileName)
}

// KernelDescriptor names a Linux kernel/initrd pair discovered without
// an accompanying sidecar file, deferring the choice of root partition
// to a submenu built around a GuidNameMap.
type KernelDescriptor struct {
	Disk       *DiskInfo
	KernelPath string
	InitrdPath string
}

// CmdLine synthesizes the kernel argument line for root, the chosen
// root partition.
func (k KernelDescriptor) CmdLine(root guid.GUID) string {
	return fmt.Sprintf("ro root=PARTUUID=%s initrd=%s", root.String(), k.InitrdPath)
}

// ActionKind discriminates the variants of Action, replacing the
// original opaque-pointer callback with a closed sum type dispatched
// by the menu.
type ActionKind int

const (
	// ActionBack requests the menu to return to its caller.
	ActionBack ActionKind = iota
	// ActionRebootFirmware requests a reboot into firmware setup.
	ActionRebootFirmware
	// ActionExit is a Back sentinel labeled "Exit" at the top level.
	ActionExit
	// ActionChainLoad starts Loader as a new UEFI image.
	ActionChainLoad
	// ActionBootLinux starts Loader's kernel directly, bypassing a
	// second chain-loaded EFI stub.
	ActionBootLinux
	// ActionPickRootFor opens a submenu of root-partition choices for
	// Kernel.
	ActionPickRootFor
	// ActionCallback invokes an arbitrary parameterless fallible
	// action, used for debug entries ("Print roots", system info).
	ActionCallback
)

// Action is the closed set of things a MenuEntry can cause when
// dispatched, replacing the opaque-pointer callback variants of the
// original design with a sum type the menu can switch over
// exhaustively.
type Action struct {
	Kind     ActionKind
	Loader   Loader
	Kernel   KernelDescriptor
	Submenu  []MenuEntry
	Callback func() error
}

// MenuEntry pairs a display description with the Action it triggers.
type MenuEntry struct {
	Description string
	Action      Action
}

// Registry accumulates Loaders and debug callbacks discovered across
// every scanned filesystem, materializing them into menu entries only
// once discovery completes.
type Registry struct {
	loaders []Loader
	kernels []MenuEntry
	debug   []MenuEntry
}

// Add records a discovered Loader.
func (r *Registry) Add(l Loader) {
	r.loaders = append(r.loaders, l)
}

// AddSubmenu records a menu entry whose action opens a nested submenu,
// used for the kernel-without-sidecar root-partition picker.
func (r *Registry) AddSubmenu(description string, entries []MenuEntry) {
	r.kernels = append(r.kernels, MenuEntry{
		Description: description,
		Action: Action{
			Kind:    ActionPickRootFor,
			Submenu: entries,
		},
	})
}

// AddDebug records an optional debug entry ("Print roots", system
// information) invoked via a parameterless callback.
func (r *Registry) AddDebug(description string, callback func() error) {
	r.debug = append(r.debug, MenuEntry{
		Description: description,
		Action: Action{
			Kind:     ActionCallback,
			Callback: callback,
		},
	})
}

// Entries materializes the registry's contents into the final menu
// entry list, appending the fixed tail: any debug entries, "Reboot
// into firmware", and "Exit".
func (r *Registry) Entries() []MenuEntry {
	entries := make([]MenuEntry, 0, len(r.loaders)+len(r.kernels)+len(r.debug)+2)

	for _, l := range r.loaders {
		entries = append(entries, MenuEntry{
			Description: l.Description(),
			Action: Action{
				Kind:   ActionChainLoad,
				Loader: l,
			},
		})
	}

	entries = append(entries, r.kernels...)
	entries = append(entries, r.debug...)

	entries = append(entries, MenuEntry{
		Description: "Reboot into firmware",
		Action:      Action{Kind: ActionRebootFirmware},
	})

	entries = append(entries, MenuEntry{
		Description: "Exit",
		Action:      Action{Kind: ActionExit},
	})

	return entries
}
