// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package chainload

import (
	"errors"
	"testing"

	"github.com/u-root/u-root/pkg/boot/bzimage"

	"github.com/opsboot/uefi-bootmenu/loader"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

type fakeLinuxBoot struct {
	fakeBoot

	mmap   *uefi.MemoryMap
	mapErr error
}

func (f *fakeLinuxBoot) GetMemoryMap() (*uefi.MemoryMap, error) { return f.mmap, f.mapErr }

func (f *fakeLinuxBoot) AllocatePages(allocateType int, memoryType int, size int, physicalAddress uint64) error {
	return nil
}

func (f *fakeLinuxBoot) FreePages(physicalAddress uint64, size int) error { return nil }

func (f *fakeLinuxBoot) Exit(code int) error { return nil }

func TestBootLinuxRequiresOriginatingVolume(t *testing.T) {
	boot := &fakeLinuxBoot{}

	err := BootLinux(boot, loader.Loader{FileName: "vmlinuz"})

	if !errors.Is(err, errNoVolume) {
		t.Fatalf("BootLinux() error = %v, want errNoVolume", err)
	}
}

func TestBootLinuxSurfacesReadError(t *testing.T) {
	boot := &fakeLinuxBoot{}

	l := loader.Loader{FileName: "vmlinuz", Disk: fakeDisk}

	if err := BootLinux(boot, l); err == nil {
		t.Fatalf("BootLinux() error = nil, want non-nil (uninitialized FS cannot read a kernel)")
	}
}

func TestBuildE820MapTranslatesDescriptors(t *testing.T) {
	boot := &fakeLinuxBoot{mmap: &uefi.MemoryMap{
		Descriptors: []*uefi.MemoryDescriptor{
			{Type: uefi.EfiConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 16},
			{Type: uefi.EfiACPIMemoryNVS, PhysicalStart: 0x200000, NumberOfPages: 1},
		},
	}}

	entries, err := buildE820Map(boot)

	if err != nil {
		t.Fatalf("buildE820Map() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("buildE820Map() = %d entries, want 2", len(entries))
	}

	if entries[0].MemType != bzimage.RAM {
		t.Errorf("entries[0].MemType = %v, want RAM", entries[0].MemType)
	}

	if entries[1].MemType != bzimage.NVS {
		t.Errorf("entries[1].MemType = %v, want NVS", entries[1].MemType)
	}
}

func TestBuildE820MapPropagatesError(t *testing.T) {
	wantErr := errors.New("device error")
	boot := &fakeLinuxBoot{mapErr: wantErr}

	if _, err := buildE820Map(boot); !errors.Is(err, wantErr) {
		t.Fatalf("buildE820Map() error = %v, want %v", err, wantErr)
	}
}
