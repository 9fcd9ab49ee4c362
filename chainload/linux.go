// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package chainload

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/u-root/u-root/pkg/boot/bzimage"
	"github.com/usbarmory/armory-boot/exec"
	"github.com/usbarmory/tamago/dma"

	"github.com/opsboot/uefi-bootmenu/loader"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

// kernelMemorySize is the amount of RAM reserved for a directly booted
// Linux kernel image.
const kernelMemorySize = 0x10000000 // 256MB

// LinuxBootServices is the subset of [uefi.BootServices] direct Linux
// kernel boot needs, on top of what [BootServices] already requires.
type LinuxBootServices interface {
	BootServices
	GetMemoryMap() (m *uefi.MemoryMap, err error)
	AllocatePages(allocateType int, memoryType int, size int, physicalAddress uint64) error
	FreePages(physicalAddress uint64, size int) error
	Exit(code int) error
}

// BootLinux loads and jumps to l's kernel directly, bypassing a second
// chain-loaded EFI stub. It is the alternate dispatch path for a
// [loader.Loader] naming a bare Linux kernel image, used when the
// firmware's own EFI stub loader for Linux is unavailable. It does not
// replace [Start], which remains the default for every .efi loader,
// including a kernel started through its own EFI stub.
//
// Unlike Start this does not return on success: a successful boot hands
// control to the kernel and never comes back. It only returns when
// loading fails before the point of no return.
func BootLinux(boot LinuxBootServices, l loader.Loader) error {
	if l.Disk == nil || l.Disk.FS == nil {
		return errNoVolume
	}

	kernel, err := fs.ReadFile(l.Disk.FS, l.FileName)

	if err != nil {
		return fmt.Errorf("chainload: reading %s: %w", l.FileName, err)
	}

	mmap, err := buildE820Map(boot)

	if err != nil {
		return fmt.Errorf("chainload: building memory map: %w", err)
	}

	mem, err := reserveKernelMemory(mmap, kernelMemorySize)

	if err != nil {
		return fmt.Errorf("chainload: reserving kernel memory: %w", err)
	}
	defer mem.Release(mem.Start())

	if err = boot.AllocatePages(
		uefi.AllocateAddress,
		uefi.EfiLoaderData,
		int(mem.Size()),
		uint64(mem.Start()),
	); err != nil {
		return fmt.Errorf("chainload: allocating kernel memory: %w", err)
	}
	defer boot.FreePages(uint64(mem.Start()), int(mem.Size()))

	image := &exec.LinuxImage{
		Memory:  mmap,
		Region:  mem,
		Kernel:  kernel,
		CmdLine: l.Args,
	}

	if err = image.Load(); err != nil {
		return fmt.Errorf("chainload: loading kernel: %w", err)
	}

	return image.Boot(func() {
		boot.Exit(0)
	})
}

// buildE820Map translates the current EFI memory map into the E820
// format the Linux boot protocol expects, matching the layout Linux
// itself receives when started through its own EFI stub.
func buildE820Map(boot LinuxBootServices) ([]bzimage.E820Entry, error) {
	m, err := boot.GetMemoryMap()

	if err != nil {
		return nil, err
	}

	entries := make([]bzimage.E820Entry, 0, len(m.Descriptors))

	for _, desc := range m.Descriptors {
		e, err := desc.E820()

		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// reserveKernelMemory finds the first RAM region in m at least size
// bytes long and reserves a DMA region over it for kernel staging.
func reserveKernelMemory(m []bzimage.E820Entry, size int) (mem *dma.Region, err error) {
	for _, e := range m {
		if e.MemType != bzimage.RAM || e.Size < uint64(size) {
			continue
		}

		if mem, err = dma.NewRegion(uint(e.Addr), size, false); err != nil {
			return nil, err
		}

		mem.Reserve(size, 0)

		return mem, nil
	}

	return nil, errors.New("chainload: no suitable RAM region for kernel loading")
}
