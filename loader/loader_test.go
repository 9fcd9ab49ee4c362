// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package loader

import (
	"testing"

	"github.com/opsboot/uefi-bootmenu/guid"
)

func TestLoaderDescription(t *testing.T) {
	l := Loader{
		FileName: `EFI\Microsoft\Boot\bootmgfw.efi`,
		Disk:     &DiskInfo{Label: "ESP"},
	}

	want := `ESP: EFI\Microsoft\Boot\bootmgfw.efi`

	if got := l.Description(); got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}
}

func TestKernelDescriptorCmdLine(t *testing.T) {
	k := KernelDescriptor{
		KernelPath: "vmlinuz-6.1",
		InitrdPath: "initramfs-6.1.img",
	}

	root := guid.MustParse("11111111-1111-1111-1111-111111111111")
	want := "ro root=PARTUUID=11111111-1111-1111-1111-111111111111 initrd=initramfs-6.1.img"

	if got := k.CmdLine(root); got != want {
		t.Errorf("CmdLine() = %q, want %q", got, want)
	}
}

func TestRegistryEntriesOrderAndTail(t *testing.T) {
	var r Registry

	r.Add(Loader{FileName: "bootmgfw.efi", Disk: &DiskInfo{Label: "ESP"}})
	r.AddSubmenu("root: 11111111-...", []MenuEntry{
		{Description: "root", Action: Action{Kind: ActionChainLoad}},
	})
	r.AddDebug("Print roots", func() error { return nil })

	entries := r.Entries()

	if len(entries) != 5 {
		t.Fatalf("Entries() returned %d entries, want 5", len(entries))
	}

	if entries[0].Action.Kind != ActionChainLoad {
		t.Errorf("entries[0].Action.Kind = %v, want ActionChainLoad", entries[0].Action.Kind)
	}

	if entries[1].Action.Kind != ActionPickRootFor {
		t.Errorf("entries[1].Action.Kind = %v, want ActionPickRootFor", entries[1].Action.Kind)
	}

	if entries[2].Action.Kind != ActionCallback {
		t.Errorf("entries[2].Action.Kind = %v, want ActionCallback", entries[2].Action.Kind)
	}

	if entries[3].Description != "Reboot into firmware" || entries[3].Action.Kind != ActionRebootFirmware {
		t.Errorf("entries[3] = %+v, want Reboot into firmware", entries[3])
	}

	if entries[4].Description != "Exit" || entries[4].Action.Kind != ActionExit {
		t.Errorf("entries[4] = %+v, want Exit", entries[4])
	}
}

func TestRegistryEmpty(t *testing.T) {
	var r Registry

	entries := r.Entries()

	if len(entries) != 2 {
		t.Fatalf("Entries() on empty registry returned %d entries, want 2", len(entries))
	}
}
