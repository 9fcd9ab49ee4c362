// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"

	"github.com/usbarmory/tamago/dma"
)

// EFI Boot Services offset for LocateHandleBuffer
const locateHandleBuffer = 0x138

// EFI_LOCATE_SEARCH_TYPE value selecting handles supporting a given
// protocol.
const byProtocol = 2

// LocateHandleBuffer calls EFI_BOOT_SERVICES.LocateHandleBuffer() with
// SearchType ByProtocol, returning every handle in the system that
// supports guid.
func (s *BootServices) LocateHandleBuffer(guid GUID) (handles []uint64, err error) {
	var count uint64
	var bufAddr uint64

	status := callService(s.base+locateHandleBuffer, []uint64{
		byProtocol,
		guid.ptrval(),
		0,
		ptrval(&count),
		ptrval(&bufAddr),
	})

	if err = parseStatus(status); err != nil {
		return
	}

	if count == 0 || bufAddr == 0 {
		return nil, nil
	}

	size := int(count) * 8

	r, err := dma.NewRegion(uint(bufAddr), size, false)

	if err != nil {
		return
	}

	addr, buf := r.Reserve(size, 0)
	defer r.Release(addr)

	handles = make([]uint64, count)

	for i := range handles {
		handles[i] = binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
	}

	return handles, nil
}
