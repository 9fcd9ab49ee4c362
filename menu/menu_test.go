// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package menu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/opsboot/uefi-bootmenu/loader"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

type fakeConsole struct {
	bytes.Buffer

	keys      []uefi.InputKey
	pos       int
	cols      int
	rows      int
	modeErr   error
	cleared   int
	positions [][2]int
}

func (c *fakeConsole) ReadKey() (uefi.InputKey, error) {
	if c.pos >= len(c.keys) {
		return uefi.InputKey{}, errors.New("fakeConsole: input exhausted")
	}

	k := c.keys[c.pos]
	c.pos++

	return k, nil
}

func (c *fakeConsole) ClearScreen() error {
	c.cleared++
	return nil
}

func (c *fakeConsole) SetAttribute(fg, bg int) error { return nil }

func (c *fakeConsole) SetCursorPosition(column, row int) error {
	c.positions = append(c.positions, [2]int{column, row})
	return nil
}

func (c *fakeConsole) Mode() (int, int, error) {
	if c.modeErr != nil {
		return 0, 0, c.modeErr
	}

	cols, rows := c.cols, c.rows

	if cols == 0 {
		cols = 80
	}

	if rows == 0 {
		rows = 25
	}

	return cols, rows, nil
}

type fakeFirmware struct {
	variable    []byte
	varErr      error
	setErr      error
	setName     string
	setData     []byte
	resetCalled int
	lastReset   int
}

func (f *fakeFirmware) GetVariable(name string, guid uefi.GUID, withData bool) (uefi.VariableAttributes, uint64, []byte, error) {
	return uefi.VariableAttributes{}, uint64(len(f.variable)), f.variable, f.varErr
}

func (f *fakeFirmware) SetVariable(name string, guid uefi.GUID, attr uefi.VariableAttributes, data []byte) error {
	f.setName = name
	f.setData = data
	return f.setErr
}

func (f *fakeFirmware) ResetSystem(resetType int) error {
	f.resetCalled++
	f.lastReset = resetType
	return nil
}

type fakeBoot struct {
	loadErr error
	mapErr  error
}

func (f *fakeBoot) LoadImage(boot int, root *uefi.FS, name string) (uint64, error) {
	return 1, f.loadErr
}

func (f *fakeBoot) StartImage(imageHandle uint64) error { return nil }

func (f *fakeBoot) SetLoadOptions(imageHandle uint64, args string) error { return nil }

func (f *fakeBoot) GetMemoryMap() (*uefi.MemoryMap, error) { return nil, f.mapErr }

func (f *fakeBoot) AllocatePages(allocateType int, memoryType int, size int, physicalAddress uint64) error {
	return nil
}

func (f *fakeBoot) FreePages(physicalAddress uint64, size int) error { return nil }

func (f *fakeBoot) Exit(code int) error { return nil }

func enter() uefi.InputKey {
	return uefi.InputKey{UnicodeChar: [2]byte{0x0d, 0x00}}
}

func TestRunEscapePowersOff(t *testing.T) {
	console := &fakeConsole{keys: []uefi.InputKey{{ScanCode: uefi.ScanCodeEscape}}}
	firmware := &fakeFirmware{}
	m := &Menu{Console: console, Firmware: firmware, Boot: &fakeBoot{}}

	entries := []loader.MenuEntry{
		{Description: "Exit", Action: loader.Action{Kind: loader.ActionExit}},
	}

	if err := m.Run(entries); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if firmware.resetCalled != 1 || firmware.lastReset != uefi.EfiResetShutdown {
		t.Errorf("ResetSystem called %d times with type %d, want 1 call with EfiResetShutdown", firmware.resetCalled, firmware.lastReset)
	}
}

func TestRunSelectsExitOnEnter(t *testing.T) {
	console := &fakeConsole{keys: []uefi.InputKey{enter()}}
	m := &Menu{Console: console, Firmware: &fakeFirmware{}, Boot: &fakeBoot{}}

	entries := []loader.MenuEntry{
		{Description: "Exit", Action: loader.Action{Kind: loader.ActionExit}},
	}

	if err := m.Run(entries); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunNavigatesDown(t *testing.T) {
	console := &fakeConsole{keys: []uefi.InputKey{
		{ScanCode: uefi.ScanCodeDown},
		{ScanCode: uefi.ScanCodeDown},
		enter(),
	}}
	m := &Menu{Console: console, Firmware: &fakeFirmware{}, Boot: &fakeBoot{}}

	entries := []loader.MenuEntry{
		{Description: "first", Action: loader.Action{Kind: loader.ActionBack}},
		{Description: "second", Action: loader.Action{Kind: loader.ActionBack}},
		{Description: "Exit", Action: loader.Action{Kind: loader.ActionExit}},
	}

	// Down, Down from index 0 lands on index 2 (Exit).
	if err := m.Run(entries); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunNavigatesUpWraparound(t *testing.T) {
	console := &fakeConsole{keys: []uefi.InputKey{
		{ScanCode: uefi.ScanCodeUp},
		enter(),
	}}
	m := &Menu{Console: console, Firmware: &fakeFirmware{}, Boot: &fakeBoot{}}

	entries := []loader.MenuEntry{
		{Description: "Exit", Action: loader.Action{Kind: loader.ActionExit}},
		{Description: "last", Action: loader.Action{Kind: loader.ActionBack}},
	}

	// Up from index 0 wraps to the last entry (index 1), whose Back
	// action also terminates Run: this exercises the wraparound
	// arithmetic without needing a third round trip.
	if err := m.Run(entries); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !bytes.Contains(console.Bytes(), []byte("last")) {
		t.Errorf("rendered output = %q, does not contain the wrapped-to entry", console.String())
	}
}

func TestDispatchChainLoad(t *testing.T) {
	m := &Menu{Boot: &fakeBoot{}}

	action := loader.Action{
		Kind: loader.ActionChainLoad,
		Loader: loader.Loader{
			FileName: "bootx64.efi",
			Disk:     &loader.DiskInfo{FS: &uefi.FS{}},
		},
	}

	done, err := m.dispatch(action)

	if err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}

	if done {
		t.Errorf("dispatch() done = true, want false (chain-load does not close the menu on success)")
	}
}

func TestDispatchChainLoadPropagatesError(t *testing.T) {
	m := &Menu{Boot: &fakeBoot{loadErr: errors.New("device error")}}

	action := loader.Action{
		Kind: loader.ActionChainLoad,
		Loader: loader.Loader{
			FileName: "bootx64.efi",
			Disk:     &loader.DiskInfo{FS: &uefi.FS{}},
		},
	}

	_, err := m.dispatch(action)

	if err == nil {
		t.Fatalf("dispatch() error = nil, want non-nil")
	}
}

func TestDispatchBootLinuxPropagatesError(t *testing.T) {
	m := &Menu{Boot: &fakeBoot{}}

	action := loader.Action{
		Kind: loader.ActionBootLinux,
		Loader: loader.Loader{
			FileName: "vmlinuz",
			Disk:     &loader.DiskInfo{FS: &uefi.FS{}},
		},
	}

	done, err := m.dispatch(action)

	if err == nil {
		t.Fatalf("dispatch() error = nil, want non-nil (uninitialized FS cannot read a kernel)")
	}

	if done {
		t.Errorf("dispatch() done = true, want false")
	}
}

func TestDispatchCallback(t *testing.T) {
	called := false
	m := &Menu{}

	action := loader.Action{
		Kind:     loader.ActionCallback,
		Callback: func() error { called = true; return nil },
	}

	if _, err := m.dispatch(action); err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}

	if !called {
		t.Error("callback was not invoked")
	}
}

func TestDispatchCallbackPropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	m := &Menu{}

	action := loader.Action{
		Kind:     loader.ActionCallback,
		Callback: func() error { return wantErr },
	}

	_, err := m.dispatch(action)

	if !errors.Is(err, wantErr) {
		t.Fatalf("dispatch() error = %v, want %v", err, wantErr)
	}
}

func TestDispatchPickRootForRecursesAndReturnsOnBack(t *testing.T) {
	console := &fakeConsole{keys: []uefi.InputKey{enter()}}
	m := &Menu{Console: console, Firmware: &fakeFirmware{}, Boot: &fakeBoot{}}

	action := loader.Action{
		Kind: loader.ActionPickRootFor,
		Submenu: []loader.MenuEntry{
			{Description: "Back", Action: loader.Action{Kind: loader.ActionBack}},
		},
	}

	done, err := m.dispatch(action)

	if err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}

	if done {
		t.Errorf("dispatch() done = true, want false (submenu closing does not close the parent menu)")
	}
}

func TestRebootFirmwareSetsBitAndResetsCold(t *testing.T) {
	firmware := &fakeFirmware{varErr: uefi.ErrEfiNotFound}
	m := &Menu{Firmware: firmware}

	if err := m.rebootFirmware(); err != nil {
		t.Fatalf("rebootFirmware() error = %v", err)
	}

	if len(firmware.setData) == 0 || firmware.setData[0]&0x01 == 0 {
		t.Errorf("setData = %v, want BOOT_TO_FW_UI bit set", firmware.setData)
	}

	if firmware.resetCalled != 1 || firmware.lastReset != uefi.EfiResetCold {
		t.Errorf("ResetSystem called %d times with type %d, want 1 call with EfiResetCold", firmware.resetCalled, firmware.lastReset)
	}
}

func TestRebootFirmwarePreservesExistingBits(t *testing.T) {
	firmware := &fakeFirmware{variable: []byte{0x02, 0, 0, 0, 0, 0, 0, 0}}
	m := &Menu{Firmware: firmware}

	if err := m.rebootFirmware(); err != nil {
		t.Fatalf("rebootFirmware() error = %v", err)
	}

	if firmware.setData[0] != 0x03 {
		t.Errorf("setData[0] = %#x, want 0x03 (existing bit 0x02 preserved, 0x01 added)", firmware.setData[0])
	}
}

func TestRenderClearsAndWritesEveryLabel(t *testing.T) {
	console := &fakeConsole{cols: 80, rows: 25}
	m := &Menu{Console: console}

	entries := []loader.MenuEntry{
		{Description: "one"},
		{Description: "two"},
	}

	if err := m.render(entries, 1); err != nil {
		t.Fatalf("render() error = %v", err)
	}

	if console.cleared != 1 {
		t.Errorf("ClearScreen called %d times, want 1", console.cleared)
	}

	if got := console.String(); got != "onetwo" {
		t.Errorf("rendered text = %q, want %q", got, "onetwo")
	}
}

func TestRenderCentersLabelsHorizontally(t *testing.T) {
	console := &fakeConsole{cols: 20, rows: 25}
	m := &Menu{Console: console}

	entries := []loader.MenuEntry{
		{Description: "boot"}, // len 4, (20-4)/2 == 8
	}

	if err := m.render(entries, 0); err != nil {
		t.Fatalf("render() error = %v", err)
	}

	if len(console.positions) != 1 {
		t.Fatalf("SetCursorPosition called %d times, want 1", len(console.positions))
	}

	if col := console.positions[0][0]; col != 8 {
		t.Errorf("column = %d, want 8", col)
	}
}

func TestRenderClampsOversizeLabelToColumnZero(t *testing.T) {
	console := &fakeConsole{cols: 4, rows: 25}
	m := &Menu{Console: console}

	entries := []loader.MenuEntry{
		{Description: "way too long for the console"},
	}

	if err := m.render(entries, 0); err != nil {
		t.Fatalf("render() error = %v", err)
	}

	if col := console.positions[0][0]; col != 0 {
		t.Errorf("column = %d, want 0", col)
	}
}
