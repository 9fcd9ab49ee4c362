// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package scanner walks a mounted file system looking for bootable
// images: EFI applications at the root and under EFI/<vendor>/, Linux
// kernel/initrd pairs (with an optional command-line sidecar), and the
// well-known Windows/macOS loader paths. Discovered images are
// recorded into a loader.Registry.
package scanner

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/opsboot/uefi-bootmenu/devicepath"
	"github.com/opsboot/uefi-bootmenu/gpt"
	"github.com/opsboot/uefi-bootmenu/guid"
	"github.com/opsboot/uefi-bootmenu/loader"
	"github.com/opsboot/uefi-bootmenu/sidecar"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

// Volume is the capability a scanned file system must expose: its
// contents via [fs.FS], its volume label, and the device path used to
// re-synthesize a path to any file discovered on it.
type Volume interface {
	fs.FS
	Label() (string, error)
	DevicePath() ([]devicepath.Node, error)
}

// Arena durably copies a string out of memory the firmware may reclaim
// once boot services exit, such as pool memory returned by a file
// system protocol call. A nil Arena is valid: callers fall back to the
// string as returned by the firmware.
type Arena interface {
	String(s string) (string, error)
}

var kernelPrefixes = []string{"vmlinuz-", "vmlinuz"}

var initrdPatterns = []string{
	"initramfs-%s.img",
	"initrd-%s.img",
	"init-%s.img",
	"init%s.img",
}

// Scan walks v, recording every bootable image it finds into reg.
// roots maps GPT partition-unique GUIDs to names, used both to enrich
// the disk's display label and to build root-partition picker
// submenus for kernels found without a command-line sidecar.
//
// A volume whose device path carries no GPT hard-drive record is
// skipped entirely, without error: its partition GUID, which the
// display label is composed from, cannot be determined.
//
// instance is the live firmware file system handle backing v, stashed
// on every discovered DiskInfo so the chain-loader can hand it back to
// EFI_BOOT_SERVICES.LoadImage(). It is nil in tests that scan a
// synthetic Volume.
//
// a, when non-nil, durably copies the composed disk label out of pool
// memory the volume label call returned, so it survives past
// EFI_BOOT_SERVICES.ExitBootServices() for use in a post-exit direct
// Linux boot's diagnostics. Tests pass nil.
func Scan(v Volume, instance *uefi.FS, roots gpt.NameMap, reg *loader.Registry, a Arena) error {
	dp, err := v.DevicePath()

	if err != nil {
		return err
	}

	hd, ok := devicepath.FindHardDrive(dp)

	if !ok {
		return nil
	}

	id := guid.GUID(hd.Signature)

	volLabel, err := v.Label()

	if err != nil {
		volLabel = ""
	}

	label := composeLabel(volLabel, id, roots)

	if a != nil {
		if copied, err := a.String(label); err == nil {
			label = copied
		}
	}

	disk := &loader.DiskInfo{
		DevicePath: dp,
		Label:      label,
		FS:         instance,
	}

	scanEFIFiles(v, ".", disk, reg)
	scanKernels(v, ".", "", disk, roots, reg)
	scanEFISubdirs(v, disk, reg)

	if isDir(v, "boot") {
		if sub, err := fs.Sub(v, "boot"); err == nil {
			scanKernels(sub, ".", `boot\`, disk, roots, reg)
		}
	}

	probeWellKnown(v, disk, reg)

	return nil
}

// composeLabel synthesizes a disk's display label: the volume label
// (or the partition GUID as text when the volume carries no label),
// suffixed with " - <name>" when id is present in roots.
func composeLabel(volLabel string, id guid.GUID, roots gpt.NameMap) string {
	base := volLabel

	if base == "" {
		base = id.String()
	}

	if name, ok := roots[id]; ok {
		return fmt.Sprintf("%s - %s", base, name)
	}

	return base
}

// scanEFIFiles records a Loader for every non-directory entry under
// dir ending in .efi or .EFI, skipping macOS extended-attribute
// sidecar files ("._" prefix).
func scanEFIFiles(fsys fs.FS, dir string, disk *loader.DiskInfo, reg *loader.Registry) {
	entries, err := fs.ReadDir(fsys, dir)

	if err != nil {
		return
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()

		if strings.HasPrefix(name, "._") {
			continue
		}

		if !strings.HasSuffix(name, ".efi") && !strings.HasSuffix(name, ".EFI") {
			continue
		}

		reg.Add(loader.Loader{
			FileName: toUEFIPath(fsPath(dir, name)),
			Disk:     disk,
		})
	}
}

// scanKernels recognizes Linux kernel/initrd pairs under dir, prefixing
// recorded file paths with pathPrefix (used for the /boot fallback
// scan, where paths must read "boot\...").
func scanKernels(fsys fs.FS, dir, pathPrefix string, disk *loader.DiskInfo, roots gpt.NameMap, reg *loader.Registry) {
	entries, err := fs.ReadDir(fsys, dir)

	if err != nil {
		return
	}

	names := make(map[string]bool, len(entries))

	for _, e := range entries {
		if !e.IsDir() {
			names[e.Name()] = true
		}
	}

	for fname := range names {
		if strings.HasSuffix(fname, ".conf") {
			continue
		}

		suffix, ok := kernelSuffix(fname)

		if !ok {
			continue
		}

		initrd := findInitrd(names, suffix)

		if initrd == "" {
			continue
		}

		kernelPath := pathPrefix + toUEFIPath(fname)
		initrdPath := pathPrefix + toUEFIPath(initrd)

		confPath := fsPath(dir, fname+".conf")

		if cfg, err := sidecar.Load(fsys, confPath); err == nil {
			args := strings.TrimSpace(fmt.Sprintf("%s initrd=%s", cfg.Options, initrdPath))

			reg.Add(loader.Loader{
				FileName: kernelPath,
				Disk:     disk,
				Args:     args,
			})

			continue
		}

		kd := loader.KernelDescriptor{
			Disk:       disk,
			KernelPath: kernelPath,
			InitrdPath: initrdPath,
		}

		reg.AddSubmenu(fmt.Sprintf("%s: %s", disk.Label, kernelPath), rootSubmenu(kd, roots))
	}
}

// kernelSuffix reports whether fname carries one of the recognized
// kernel prefixes, returning the version suffix that follows it.
func kernelSuffix(fname string) (suffix string, ok bool) {
	for _, prefix := range kernelPrefixes {
		if strings.HasPrefix(fname, prefix) {
			return fname[len(prefix):], true
		}
	}

	return "", false
}

// findInitrd returns the first initrd file name matching one of the
// recognized naming patterns for suffix that is present in names.
func findInitrd(names map[string]bool, suffix string) string {
	for _, pattern := range initrdPatterns {
		candidate := fmt.Sprintf(pattern, suffix)

		if names[candidate] {
			return candidate
		}
	}

	return ""
}

// rootSubmenu builds two menu rows per known root partition for kd's
// kernel: booting it through the firmware's own EFI stub (the default,
// via [loader.ActionChainLoad]) and booting it directly (via
// [loader.ActionBootLinux]), for firmware whose EFI stub support for
// Linux is unavailable or unwanted. Both carry the same root=PARTUUID=
// argument naming the chosen partition.
func rootSubmenu(kd loader.KernelDescriptor, roots gpt.NameMap) []loader.MenuEntry {
	ids := make([]guid.GUID, 0, len(roots))

	for id := range roots {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	entries := make([]loader.MenuEntry, 0, len(ids)*2)

	for _, id := range ids {
		l := loader.Loader{
			FileName: kd.KernelPath,
			Disk:     kd.Disk,
			Args:     kd.CmdLine(id),
		}

		entries = append(entries,
			loader.MenuEntry{
				Description: fmt.Sprintf("%s: %s", roots[id], id.String()),
				Action:      loader.Action{Kind: loader.ActionChainLoad, Loader: l},
			},
			loader.MenuEntry{
				Description: fmt.Sprintf("%s: %s (direct boot)", roots[id], id.String()),
				Action:      loader.Action{Kind: loader.ActionBootLinux, Loader: l},
			},
		)
	}

	return entries
}

// scanEFISubdirs records a Loader for every .efi/.EFI file found in an
// immediate subdirectory of EFI/.
func scanEFISubdirs(fsys fs.FS, disk *loader.DiskInfo, reg *loader.Registry) {
	entries, err := fs.ReadDir(fsys, "EFI")

	if err != nil {
		return
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		scanEFIFiles(fsys, fsPath("EFI", e.Name()), disk, reg)
	}
}

// wellKnownPaths names the fixed loader locations probed on every
// volume regardless of vendor.
var wellKnownPaths = []string{
	"EFI/Microsoft/Boot/bootmgfw.efi",
	"System/Library/CoreServices/boot.efi",
}

// probeWellKnown records a Loader for each well-known path that
// exists on the volume.
func probeWellKnown(fsys fs.FS, disk *loader.DiskInfo, reg *loader.Registry) {
	for _, p := range wellKnownPaths {
		if fi, err := fs.Stat(fsys, p); err == nil && !fi.IsDir() {
			reg.Add(loader.Loader{
				FileName: toUEFIPath(p),
				Disk:     disk,
			})
		}
	}
}

func isDir(fsys fs.FS, name string) bool {
	fi, err := fs.Stat(fsys, name)
	return err == nil && fi.IsDir()
}

func fsPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}

	return dir + "/" + name
}

func toUEFIPath(p string) string {
	return strings.ReplaceAll(p, "/", `\`)
}
