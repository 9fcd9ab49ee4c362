// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"io/fs"
)

// EFI Boot Services offsets
const (
	loadImage  = 0xc8
	startImage = 0xd0
)

// LoadImage calls EFI_BOOT_SERVICES.LoadImage().
func (s *BootServices) LoadImage(boot int, root *FS, name string) (imageHandle uint64, err error) {
	filePath, err := root.FilePath(name)

	if err != nil {
		return
	}

	buf, err := fs.ReadFile(root, name)

	if err != nil {
		return
	}

	status := callService(s.base+loadImage, []uint64{
		uint64(boot),
		s.imageHandle,
		ptrval(&filePath[0]),
		ptrval(&buf[0]),
		uint64(len(buf)),
		ptrval(&imageHandle),
	})

	return imageHandle, parseStatus(status)
}

// StartImage calls EFI_BOOT_SERVICES.StartImage().
func (s *BootServices) StartImage(imageHandle uint64) (err error) {
	status := callService(s.base+startImage, []uint64{
		imageHandle,
		0,
		0,
		0,
	})

	return parseStatus(status)
}

// SetLoadOptions sets or clears the LoadOptions/LoadOptionsSize fields
// of the EFI_LOADED_IMAGE_PROTOCOL instance for imageHandle, per the
// argument-passing step of chain-loading. An empty args clears both
// fields.
func (s *BootServices) SetLoadOptions(imageHandle uint64, args string) (err error) {
	addr, err := s.HandleProtocol(imageHandle, EFI_LOADED_IMAGE_PROTOCOL_GUID)

	if err != nil {
		return
	}

	img := &loadedImage{}

	if err = decode(img, addr); err != nil {
		return
	}

	if args == "" {
		img.LoadOptions = 0
		img.LoadOptionsSize = 0
	} else {
		buf := toUTF16(args)
		img.LoadOptionsSize = uint32(len(buf))
		img.LoadOptions = ptrval(&buf[0])
	}

	return encode(img, addr)
}
