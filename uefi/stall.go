// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

// EFI Boot Services offset for Stall
const stall = 0xf8

// Stall calls EFI_BOOT_SERVICES.Stall(), busy-waiting for microseconds
// microseconds.
func (s *BootServices) Stall(microseconds int) (err error) {
	status := callService(s.base+stall, []uint64{
		uint64(microseconds),
		0,
		0,
		0,
	})

	return parseStatus(status)
}
