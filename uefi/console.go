// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"io"
	"unicode/utf16"
)

// EFI Simple Text Output Protocol offsets
const (
	outputString      = 0x08
	queryMode         = 0x18
	setAttribute      = 0x28
	clearScreen       = 0x30
	setCursorPosition = 0x38
	enableCursor      = 0x40
	outputMode        = 0x48
)

// EFI Simple Text Input Protocol offsets
const (
	readKeyStroke = 0x08
)

// EFI_TEXT_ATTR foreground/background colors, packed as fg | (bg << 4).
const (
	Black     = 0x0
	Blue      = 0x1
	Green     = 0x2
	Cyan      = 0x3
	Red       = 0x4
	Magenta   = 0x5
	Brown     = 0x6
	LightGray = 0x7
	DarkGray  = 0x8
	White     = 0xf
)

// InputKey represents an EFI Input Key descriptor.
type InputKey struct {
	ScanCode    uint16
	UnicodeChar [2]byte
}

// EFI scan codes recognized by the interactive menu.
const (
	ScanCodeUp     = 0x01
	ScanCodeDown   = 0x02
	ScanCodeEscape = 0x17
)

// Console implements the [io.ReadWriter] interface over EFI Simple Text
// Input/Output protocol, plus the cursor and attribute controls the
// interactive menu needs to render itself.
type Console struct {
	io.ReadWriter

	// ForceLine controls whether line feeds (LF) should be supplemented
	// with a carriage return (CR).
	ForceLine bool

	// ReplaceTabs controls whether Console I/O output should have Tab
	// characters replaced with a number of spaces.
	ReplaceTabs int

	// In and Out are the EFI_SIMPLE_TEXT_INPUT_PROTOCOL and
	// EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL instance addresses.
	In  uint64
	Out uint64
}

// outputModeInfo mirrors SIMPLE_TEXT_OUTPUT_MODE.
type outputModeInfo struct {
	MaxMode       int32
	Mode          int32
	Attribute     int32
	CursorColumn  int32
	CursorRow     int32
	CursorVisible bool
}

// Input calls EFI_SIMPLE_TEXT_INPUT_PROTOCOL.ReadKeyStroke().
func (c *Console) Input(k *InputKey) (status uint64) {
	if c.In == 0 {
		return
	}

	return callService(c.In+readKeyStroke, []uint64{c.In, ptrval(k), 0, 0})
}

// Output calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.OutputString().
func (c *Console) Output(p []byte) (status uint64) {
	if c.Out == 0 {
		return
	}

	if len(p) == 0 || p[len(p)-1] != 0x00 {
		p = append(p, 0x00, 0x00)
	}

	return callService(c.Out+outputString, []uint64{c.Out, ptrval(&p[0]), 0, 0})
}

// Read available data to buffer from console.
func (c *Console) Read(p []byte) (n int, err error) {
	k := &InputKey{}

	for n = 0; n < len(p); n += 2 {
		status := c.Input(k)

		switch {
		case status == EFI_SUCCESS:
			copy(p[n:], k.UnicodeChar[:])
		case status == EFI_NOT_READY:
			return
		default:
			return n, parseStatus(status)
		}
	}

	return
}

// Write data from buffer to console.
func (c *Console) Write(p []byte) (n int, err error) {
	var s []byte

	if len(p) == 0 {
		return
	}

	b := utf16.Encode([]rune(string(p)))

	// We receive an UTF-8 string but we can output only UTF-16 ones.

	for _, r := range b {
		if r == 0x09 && c.ReplaceTabs > 0 { // Tab
			for i := 0; i < c.ReplaceTabs; i++ {
				s = append(s, []byte{0x20, 0x00}...) // Space
			}
			continue
		}

		s = append(s, byte(r&0xff))
		s = append(s, byte(r>>8))

		if r == 0x0a && c.ForceLine { // LF
			s = append(s, []byte{0x0d, 0x00}...) // CR
		}
	}

	if status := c.Output(s); status != EFI_SUCCESS {
		return n, parseStatus(status)
	}

	return len(p), nil
}

// ReadKey blocks until a key is available and returns it.
func (c *Console) ReadKey() (k InputKey, err error) {
	for {
		status := c.Input(&k)

		switch {
		case status == EFI_SUCCESS:
			return k, nil
		case status == EFI_NOT_READY:
			continue
		default:
			return k, parseStatus(status)
		}
	}
}

// ClearScreen calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.ClearScreen().
func (c *Console) ClearScreen() (err error) {
	if c.Out == 0 {
		return
	}

	status := callService(c.Out+clearScreen, []uint64{c.Out, 0, 0, 0})
	return parseStatus(status)
}

// SetAttribute calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.SetAttribute().
// fg and bg are the EFI_TEXT_ATTR foreground/background color values.
func (c *Console) SetAttribute(fg int, bg int) (err error) {
	if c.Out == 0 {
		return
	}

	attr := uint64(fg&0xf) | uint64(bg&0x7)<<4
	status := callService(c.Out+setAttribute, []uint64{c.Out, attr, 0, 0})
	return parseStatus(status)
}

// SetCursorPosition calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.SetCursorPosition().
func (c *Console) SetCursorPosition(column, row int) (err error) {
	if c.Out == 0 {
		return
	}

	status := callService(c.Out+setCursorPosition, []uint64{c.Out, uint64(column), uint64(row), 0})
	return parseStatus(status)
}

// EnableCursor calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.EnableCursor().
func (c *Console) EnableCursor(visible bool) (err error) {
	if c.Out == 0 {
		return
	}

	v := uint64(0)

	if visible {
		v = 1
	}

	status := callService(c.Out+enableCursor, []uint64{c.Out, v, 0, 0})
	return parseStatus(status)
}

// Mode returns the current console columns and rows, obtained via
// EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.QueryMode() against the current mode.
func (c *Console) Mode() (cols int, rows int, err error) {
	if c.Out == 0 {
		return 0, 0, errNoConsole
	}

	var modeAddr uint64

	if err = decode(&modeAddr, c.Out+outputMode); err != nil {
		return
	}

	info := &outputModeInfo{}

	if err = decode(info, modeAddr); err != nil {
		return
	}

	var mCols, mRows uint64

	status := callService(c.Out+queryMode, []uint64{c.Out, uint64(info.Mode), ptrval(&mCols), ptrval(&mRows)})

	if err = parseStatus(status); err != nil {
		return
	}

	return int(mCols), int(mRows), nil
}
