// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package scanner

import (
	"encoding/binary"
	"testing"
	"testing/fstest"

	"github.com/opsboot/uefi-bootmenu/devicepath"
	"github.com/opsboot/uefi-bootmenu/gpt"
	"github.com/opsboot/uefi-bootmenu/guid"
	"github.com/opsboot/uefi-bootmenu/loader"
)

type fakeVolume struct {
	fstest.MapFS
	label string
	dp    []devicepath.Node
}

func (f fakeVolume) Label() (string, error) { return f.label, nil }

func (f fakeVolume) DevicePath() ([]devicepath.Node, error) { return f.dp, nil }

func hardDriveNode(id guid.GUID) devicepath.Node {
	data := make([]byte, 38)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	binary.LittleEndian.PutUint64(data[4:12], 34)
	binary.LittleEndian.PutUint64(data[12:20], 1000)
	copy(data[20:36], id[:])
	data[36] = 0x02 // GPT MBR type
	data[37] = devicepath.SignatureTypeGPT

	return devicepath.Node{
		Type:    devicepath.TypeMedia,
		SubType: devicepath.SubTypeHardDrive,
		Length:  uint16(4 + len(data)),
		Data:    data,
	}
}

func withEnd(nodes ...devicepath.Node) []devicepath.Node {
	return append(nodes, devicepath.Node{Type: devicepath.TypeEnd, SubType: devicepath.SubTypeEndEntire, Length: 4})
}

var espGUID = guid.MustParse("22222222-2222-2222-2222-222222222222")

func TestScanSkipsVolumeWithoutHardDriveRecord(t *testing.T) {
	v := fakeVolume{
		MapFS: fstest.MapFS{
			"foo.efi": &fstest.MapFile{},
		},
		dp: withEnd(),
	}

	var reg loader.Registry

	if err := Scan(v, nil, nil, &reg, nil); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if entries := reg.Entries(); len(entries) != 2 {
		t.Fatalf("Entries() = %d, want 2 (tail only)", len(entries))
	}
}

func TestScanRootEFIFiles(t *testing.T) {
	v := fakeVolume{
		MapFS: fstest.MapFS{
			"bootx64.efi":  &fstest.MapFile{},
			"BOOTX64.EFI":  &fstest.MapFile{},
			"._bootx64.efi": &fstest.MapFile{},
			"notes.txt":    &fstest.MapFile{},
		},
		label: "ESP",
		dp:    withEnd(hardDriveNode(espGUID)),
	}

	var reg loader.Registry

	if err := Scan(v, nil, nil, &reg, nil); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	entries := reg.Entries()

	if len(entries) != 2+2 {
		t.Fatalf("Entries() = %d, want 4", len(entries))
	}
}

func TestScanWindowsWellKnownPath(t *testing.T) {
	v := fakeVolume{
		MapFS: fstest.MapFS{
			"EFI/Microsoft/Boot/bootmgfw.efi": &fstest.MapFile{},
		},
		label: "ESP",
		dp:    withEnd(hardDriveNode(espGUID)),
	}

	var reg loader.Registry

	if err := Scan(v, nil, nil, &reg, nil); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	entries := reg.Entries()

	if len(entries) != 3 {
		t.Fatalf("Entries() = %d, want 3", len(entries))
	}

	want := `ESP: EFI\Microsoft\Boot\bootmgfw.efi`

	if entries[0].Description != want {
		t.Errorf("Description = %q, want %q", entries[0].Description, want)
	}
}

func TestScanEFISubdirectory(t *testing.T) {
	v := fakeVolume{
		MapFS: fstest.MapFS{
			"EFI/zbl/loader.efi": &fstest.MapFile{},
		},
		label: "ESP",
		dp:    withEnd(hardDriveNode(espGUID)),
	}

	var reg loader.Registry

	if err := Scan(v, nil, nil, &reg, nil); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	entries := reg.Entries()

	if len(entries) != 3 {
		t.Fatalf("Entries() = %d, want 3", len(entries))
	}

	want := `ESP: EFI\zbl\loader.efi`

	if entries[0].Description != want {
		t.Errorf("Description = %q, want %q", entries[0].Description, want)
	}
}

func TestScanKernelWithConf(t *testing.T) {
	v := fakeVolume{
		MapFS: fstest.MapFS{
			"vmlinuz-6.1":          &fstest.MapFile{},
			"initramfs-6.1.img":    &fstest.MapFile{},
			"vmlinuz-6.1.conf":     &fstest.MapFile{Data: []byte("quiet splash\n")},
		},
		label: "root",
		dp:    withEnd(hardDriveNode(espGUID)),
	}

	var reg loader.Registry

	if err := Scan(v, nil, nil, &reg, nil); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	entries := reg.Entries()

	if len(entries) != 3 {
		t.Fatalf("Entries() = %d, want 3", len(entries))
	}

	got := entries[0]

	if got.Action.Kind != loader.ActionChainLoad {
		t.Fatalf("Action.Kind = %v, want ActionChainLoad", got.Action.Kind)
	}

	wantArgs := `quiet splash initrd=initramfs-6.1.img`

	if got.Action.Loader.Args != wantArgs {
		t.Errorf("Args = %q, want %q", got.Action.Loader.Args, wantArgs)
	}
}

func TestScanKernelWithoutConfBuildsRootSubmenu(t *testing.T) {
	rootGUID := guid.MustParse("11111111-1111-1111-1111-111111111111")

	v := fakeVolume{
		MapFS: fstest.MapFS{
			"vmlinuz-6.1":       &fstest.MapFile{},
			"initramfs-6.1.img": &fstest.MapFile{},
		},
		label: "root",
		dp:    withEnd(hardDriveNode(espGUID)),
	}

	roots := gpt.NameMap{rootGUID: "root"}

	var reg loader.Registry

	if err := Scan(v, nil, roots, &reg, nil); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	entries := reg.Entries()

	if len(entries) != 3 {
		t.Fatalf("Entries() = %d, want 3", len(entries))
	}

	top := entries[0]

	if top.Action.Kind != loader.ActionPickRootFor {
		t.Fatalf("Action.Kind = %v, want ActionPickRootFor", top.Action.Kind)
	}

	if len(top.Action.Submenu) != 2 {
		t.Fatalf("Submenu has %d entries, want 2 (chain-load and direct boot)", len(top.Action.Submenu))
	}

	chainRow := top.Action.Submenu[0]
	wantDesc := "root: 11111111-1111-1111-1111-111111111111"

	if chainRow.Description != wantDesc {
		t.Errorf("row Description = %q, want %q", chainRow.Description, wantDesc)
	}

	if chainRow.Action.Kind != loader.ActionChainLoad {
		t.Errorf("chainRow Action.Kind = %v, want ActionChainLoad", chainRow.Action.Kind)
	}

	wantArgs := "ro root=PARTUUID=11111111-1111-1111-1111-111111111111 initrd=initramfs-6.1.img"

	if chainRow.Action.Loader.Args != wantArgs {
		t.Errorf("row Args = %q, want %q", chainRow.Action.Loader.Args, wantArgs)
	}

	directRow := top.Action.Submenu[1]

	if directRow.Action.Kind != loader.ActionBootLinux {
		t.Errorf("directRow Action.Kind = %v, want ActionBootLinux", directRow.Action.Kind)
	}

	if directRow.Action.Loader.Args != wantArgs {
		t.Errorf("directRow Args = %q, want %q", directRow.Action.Loader.Args, wantArgs)
	}
}

func TestScanKernelMissingInitrdIsSkipped(t *testing.T) {
	v := fakeVolume{
		MapFS: fstest.MapFS{
			"vmlinuz-6.1": &fstest.MapFile{},
		},
		label: "root",
		dp:    withEnd(hardDriveNode(espGUID)),
	}

	var reg loader.Registry

	if err := Scan(v, nil, nil, &reg, nil); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if entries := reg.Entries(); len(entries) != 2 {
		t.Fatalf("Entries() = %d, want 2 (tail only)", len(entries))
	}
}

func TestScanBootFallback(t *testing.T) {
	v := fakeVolume{
		MapFS: fstest.MapFS{
			"boot/vmlinuz-6.1":       &fstest.MapFile{},
			"boot/initramfs-6.1.img": &fstest.MapFile{},
			"boot/vmlinuz-6.1.conf":  &fstest.MapFile{Data: []byte("quiet\n")},
		},
		label: "root",
		dp:    withEnd(hardDriveNode(espGUID)),
	}

	var reg loader.Registry

	if err := Scan(v, nil, nil, &reg, nil); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	entries := reg.Entries()

	if len(entries) != 3 {
		t.Fatalf("Entries() = %d, want 3", len(entries))
	}

	want := `boot\vmlinuz-6.1`

	if entries[0].Action.Loader.FileName != want {
		t.Errorf("FileName = %q, want %q", entries[0].Action.Loader.FileName, want)
	}
}

func TestComposeLabelUsesGUIDWhenVolumeLabelEmpty(t *testing.T) {
	roots := gpt.NameMap{espGUID: "esp"}

	got := composeLabel("", espGUID, roots)
	want := espGUID.String() + " - esp"

	if got != want {
		t.Errorf("composeLabel() = %q, want %q", got, want)
	}
}

func TestComposeLabelPlainVolumeLabel(t *testing.T) {
	got := composeLabel("DATA", espGUID, gpt.NameMap{})

	if got != "DATA" {
		t.Errorf("composeLabel() = %q, want %q", got, "DATA")
	}
}
