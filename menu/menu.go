// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package menu renders a loader.Registry as a full-screen, keyboard
// driven list and dispatches the entry the operator selects.
package menu

import (
	"errors"
	"fmt"
	"io"

	"github.com/opsboot/uefi-bootmenu/chainload"
	"github.com/opsboot/uefi-bootmenu/loader"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

// Console is the subset of [uefi.Console] the menu needs to render
// itself and read operator input, factored out as an interface so the
// selection and dispatch logic can be exercised without live firmware.
type Console interface {
	io.Writer
	ReadKey() (uefi.InputKey, error)
	ClearScreen() error
	SetAttribute(fg, bg int) error
	SetCursorPosition(column, row int) error
	Mode() (cols, rows int, err error)
}

// Firmware is the subset of [uefi.RuntimeServices] the "Reboot into
// firmware" action needs.
type Firmware interface {
	GetVariable(name string, guid uefi.GUID, withData bool) (attr uefi.VariableAttributes, dataSize uint64, data []byte, err error)
	SetVariable(name string, guid uefi.GUID, attr uefi.VariableAttributes, data []byte) error
	ResetSystem(resetType int) error
}

// errorDisplaySeconds is how long an inline error stays on screen
// before the menu redraws over it.
const errorDisplaySeconds = 2

// osIndicationsBootToFwUI is the OsIndications bit requesting the
// firmware boot to its setup UI on the next reset.
// https://uefi.org/specs/UEFI/2.10/08_Services_Runtime_Services.html#os-indications
const osIndicationsBootToFwUI = 0x0000000000000001

const osIndicationsName = "OsIndications"

// Menu renders a stack of loader.MenuEntry lists and drives the
// operator's selection to completion.
type Menu struct {
	Console  Console
	Firmware Firmware
	Boot     chainload.LinuxBootServices

	// Stall pauses execution for microseconds, backed by
	// EFI_BOOT_SERVICES.Stall(). Left nil, showError skips the pause.
	Stall func(microseconds int) error
}

// Run displays entries full-screen and blocks until the operator picks
// an entry whose action terminates the menu (Exit) or an unrecoverable
// read error occurs. ActionCallback and ActionChainLoad failures are
// reported in place and do not exit the menu, per the tolerant
// per-entry error handling policy: a broken loader should not deny the
// operator the rest of the list.
func (m *Menu) Run(entries []loader.MenuEntry) error {
	selected := 0

	for {
		if err := m.render(entries, selected); err != nil {
			return err
		}

		key, err := m.Console.ReadKey()

		if err != nil {
			return fmt.Errorf("menu: reading key: %w", err)
		}

		switch {
		case key.ScanCode == uefi.ScanCodeUp:
			selected = (selected - 1 + len(entries)) % len(entries)
		case key.ScanCode == uefi.ScanCodeDown:
			selected = (selected + 1) % len(entries)
		case key.ScanCode == uefi.ScanCodeEscape:
			return m.Firmware.ResetSystem(uefi.EfiResetShutdown)
		case key.UnicodeChar[0] == 0x0d: // Enter
			done, err := m.dispatch(entries[selected].Action)

			if err != nil {
				m.showError(err)
			}

			if done {
				return nil
			}
		}
	}
}

// dispatch executes action, reporting whether the menu that invoked it
// should terminate.
func (m *Menu) dispatch(action loader.Action) (done bool, err error) {
	switch action.Kind {
	case loader.ActionBack:
		return true, nil

	case loader.ActionExit:
		return true, nil

	case loader.ActionRebootFirmware:
		return false, m.rebootFirmware()

	case loader.ActionChainLoad:
		return false, chainload.Start(m.Boot, action.Loader)

	case loader.ActionBootLinux:
		return false, chainload.BootLinux(m.Boot, action.Loader)

	case loader.ActionPickRootFor:
		sub := &Menu{Console: m.Console, Firmware: m.Firmware, Boot: m.Boot, Stall: m.Stall}
		return false, sub.Run(action.Submenu)

	case loader.ActionCallback:
		return false, action.Callback()

	default:
		return false, fmt.Errorf("menu: unhandled action kind %v", action.Kind)
	}
}

// rebootFirmware sets the OsIndications EFI variable's
// BOOT_TO_FW_UI bit and issues a cold reset. A variable that does not
// yet exist reads as zero rather than failing the request.
func (m *Menu) rebootFirmware() error {
	_, _, data, err := m.Firmware.GetVariable(osIndicationsName, uefi.EFI_GLOBAL_VARIABLE_GUID, true)

	var current uint64

	if err != nil && !errors.Is(err, uefi.ErrEfiNotFound) {
		return fmt.Errorf("menu: reading OsIndications: %w", err)
	}

	for i := 0; i < len(data) && i < 8; i++ {
		current |= uint64(data[i]) << (8 * i)
	}

	current |= osIndicationsBootToFwUI

	buf := make([]byte, 8)

	for i := 0; i < 8; i++ {
		buf[i] = byte(current >> (8 * i))
	}

	attr := uefi.VariableAttributes{
		NonVolatile:          true,
		BootServiceAccess:    true,
		RuntimeServiceAccess: true,
	}

	if err := m.Firmware.SetVariable(osIndicationsName, uefi.EFI_GLOBAL_VARIABLE_GUID, attr, buf); err != nil {
		return fmt.Errorf("menu: setting OsIndications: %w", err)
	}

	return m.Firmware.ResetSystem(uefi.EfiResetCold)
}

// showError prints err on the last console row and, when Stall is
// set, pauses so the operator has a chance to read it before the menu
// redraws.
func (m *Menu) showError(err error) {
	_, rows, mErr := m.Console.Mode()

	if mErr == nil {
		m.Console.SetCursorPosition(0, rows-1)
	}

	fmt.Fprintf(m.Console, "error: %v", err)

	if m.Stall != nil {
		m.Stall(errorDisplaySeconds * 1_000_000)
	}
}

// render draws entries centered horizontally within the console's
// reported column count, with the row at index selected shown in
// inverted colors. A label wider than the console is clamped to
// column 0 rather than given a negative start column.
func (m *Menu) render(entries []loader.MenuEntry, selected int) error {
	if err := m.Console.ClearScreen(); err != nil {
		return fmt.Errorf("menu: clearing screen: %w", err)
	}

	cols, rows, err := m.Console.Mode()

	if err != nil {
		cols, rows = 80, 25
	}

	top := 1

	if rows > len(entries)+2 {
		top = (rows - len(entries)) / 2
	}

	for i, e := range entries {
		row := top + i

		if row >= rows {
			break
		}

		label := e.Description

		if len(label) > cols {
			label = label[:cols]
		}

		col := (cols - len(label)) / 2

		if col < 0 {
			col = 0
		}

		m.Console.SetCursorPosition(col, row)

		if i == selected {
			m.Console.SetAttribute(uefi.Black, uefi.LightGray)
		} else {
			m.Console.SetAttribute(uefi.White, uefi.Black)
		}

		fmt.Fprint(m.Console, label)
	}

	m.Console.SetAttribute(uefi.White, uefi.Black)

	return nil
}
