// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import "errors"

// EFI_FILE_SYSTEM_INFO_ID identifies the EFI_FILE_SYSTEM_INFO structure
// returned by GetInfo() against an open volume.
var EFI_FILE_SYSTEM_INFO_ID = MustParseGUID("09576e93-6d3f-11d2-8e39-00a0c969723b")

const fileSystemInfoSize = 8 + 1 + 7 /* padding */ + 8 + 8 + 4 // Size, ReadOnly, VolumeSize, FreeSpace, BlockSize

// fileSystemInfo mirrors the fixed-size header of an EFI_FILE_SYSTEM_INFO
// structure; the variable-length UTF-16 volume label follows in the wire
// buffer.
type fileSystemInfo struct {
	Size       uint64
	ReadOnly   bool
	_          [7]byte
	VolumeSize uint64
	FreeSpace  uint64
	BlockSize  uint32
}

// getFileSystemInfo calls EFI_FILE_PROTOCOL.GetInfo() against the open
// volume identified by handle, requesting the EFI_FILE_SYSTEM_INFO
// structure and returning its volume label.
func (f *fileProtocol) getFileSystemInfo(handle uint64) (label string, err error) {
	guid := EFI_FILE_SYSTEM_INFO_ID
	buf := make([]byte, fileSystemInfoSize+MaxFileName*2)
	size := uint64(len(buf))

	status := callService(ptrval(&f.GetInfo), []uint64{
		handle,
		guid.ptrval(),
		ptrval(&size),
		ptrval(&buf[0]),
	})

	if err = parseStatus(status); err != nil {
		return
	}

	if size < fileSystemInfoSize {
		return "", errors.New("uefi: short file system info buffer")
	}

	return fromUTF16(buf[fileSystemInfoSize:size]), nil
}

// Label returns the volume's label, empty if the volume carries none.
func (root *FS) Label() (string, error) {
	if root.volume == nil || root.volume.file == nil {
		return "", errors.New("uefi: invalid file system instance")
	}

	return root.volume.file.getFileSystemInfo(root.volume.addr)
}
