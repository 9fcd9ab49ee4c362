// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"github.com/usbarmory/tamago/dma"

	"github.com/opsboot/uefi-bootmenu/devicepath"
)

const devicePathBufferSize = (1 << 16)

// While we could use UEFI functions to perform the same, we prefer to keep
// control on this parsing given that UEFI firmware does not handle
// gracefully invalid pointers (e.g. DoS condition).
func (root *FS) devicePathBytes() (buf []byte, err error) {
	addr := uint(root.device)

	r, err := dma.NewRegion(addr, devicePathBufferSize, false)

	if err != nil {
		return
	}

	defer r.Release(addr)
	_, raw := r.Reserve(devicePathBufferSize, 0)

	_, size, err := devicepath.Parse(raw)

	if err != nil {
		return nil, err
	}

	buf = make([]byte, size)
	copy(buf, raw[:size])

	return
}

// DevicePath returns the parsed EFI Device Path Protocol chain associated
// with root's volume (the image root volume for [Services.Root], the
// given handle's volume for [Services.OpenVolume]).
func (root *FS) DevicePath() (nodes []devicepath.Node, err error) {
	buf, err := root.devicePathBytes()

	if err != nil {
		return
	}

	nodes, _, err = devicepath.Parse(buf)

	return
}

// FilePath returns the full EFI Device Path bytes locating the named file
// on root's volume.
func (root *FS) FilePath(name string) (dp []byte, err error) {
	buf, err := root.devicePathBytes()

	if err != nil {
		return
	}

	nodes, _, err := devicepath.Parse(buf)

	if err != nil {
		return
	}

	return devicepath.Synthesize(nodes, name)
}
