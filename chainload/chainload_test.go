// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package chainload

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/opsboot/uefi-bootmenu/loader"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

type fakeBoot struct {
	loadErr        error
	startErr       error
	setOptionsErr  error
	loadedName     string
	loadOptionsArg string
	imageHandle    uint64
}

func (f *fakeBoot) LoadImage(boot int, root *uefi.FS, name string) (uint64, error) {
	f.loadedName = name
	return f.imageHandle, f.loadErr
}

func (f *fakeBoot) StartImage(imageHandle uint64) error {
	return f.startErr
}

func (f *fakeBoot) SetLoadOptions(imageHandle uint64, args string) error {
	f.loadOptionsArg = args
	return f.setOptionsErr
}

// fakeDisk is a non-nil DiskInfo carrying no live *uefi.FS: the
// fakeBoot never dereferences it, so this is enough to satisfy Start's
// "has an originating volume" check in tests.
var fakeDisk = &loader.DiskInfo{FS: &uefi.FS{}}

func TestStartTreatsAbortedAsSuccess(t *testing.T) {
	boot := &fakeBoot{startErr: uefi.ErrAborted}

	err := Start(boot, loader.Loader{FileName: `EFI\zbl\drivers\net.efi`, Disk: fakeDisk})

	if err != nil {
		t.Fatalf("Start() error = %v, want nil (Aborted is benign)", err)
	}
}

func TestStartSurfacesOtherStartError(t *testing.T) {
	wantErr := errors.New("device error")
	boot := &fakeBoot{startErr: wantErr}

	err := Start(boot, loader.Loader{FileName: "bootx64.efi", Disk: fakeDisk})

	if err == nil {
		t.Fatalf("Start() error = nil, want non-nil")
	}
}

func TestStartPropagatesLoadError(t *testing.T) {
	wantErr := errors.New("not found")
	boot := &fakeBoot{loadErr: wantErr}

	err := Start(boot, loader.Loader{FileName: "missing.efi", Disk: fakeDisk})

	if err == nil {
		t.Fatalf("Start() error = nil, want non-nil")
	}
}

func TestStartRequiresOriginatingVolume(t *testing.T) {
	boot := &fakeBoot{}

	err := Start(boot, loader.Loader{FileName: "orphan.efi"})

	if !errors.Is(err, errNoVolume) {
		t.Fatalf("Start() error = %v, want errNoVolume", err)
	}
}

func TestStartSetsLoadOptions(t *testing.T) {
	boot := &fakeBoot{}

	l := loader.Loader{FileName: "vmlinuz-6.1", Args: "ro root=PARTUUID=x initrd=y", Disk: fakeDisk}

	if err := Start(boot, l); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if boot.loadOptionsArg != l.Args {
		t.Errorf("SetLoadOptions arg = %q, want %q", boot.loadOptionsArg, l.Args)
	}

	if boot.loadedName != l.FileName {
		t.Errorf("LoadImage name = %q, want %q", boot.loadedName, l.FileName)
	}
}

func TestDriverPathsFiltersAndFormats(t *testing.T) {
	fsys := fstest.MapFS{
		"EFI/zbl/drivers/net.efi":     &fstest.MapFile{},
		"EFI/zbl/drivers/GRAPHIC.EFI": &fstest.MapFile{},
		"EFI/zbl/drivers/readme.txt":  &fstest.MapFile{},
		"EFI/zbl/drivers/sub/inner.efi": &fstest.MapFile{},
	}

	entries, err := fsys.ReadDir("EFI/zbl/drivers")

	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	paths := driverPaths(entries)

	want := map[string]bool{
		`EFI\zbl\drivers\net.efi`:     true,
		`EFI\zbl\drivers\GRAPHIC.EFI`: true,
	}

	if len(paths) != len(want) {
		t.Fatalf("driverPaths() = %v, want %d entries", paths, len(want))
	}

	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected path %q", p)
		}
	}
}
