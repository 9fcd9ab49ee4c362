// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import "errors"

// EFI_BLOCK_IO_PROTOCOL_GUID identifies the Block I/O Protocol.
var EFI_BLOCK_IO_PROTOCOL_GUID = MustParseGUID("964e5b21-6459-11d2-8e39-00a0c969723b")

// blockIOMedia mirrors EFI_BLOCK_IO_MEDIA.
type blockIOMedia struct {
	MediaID          uint32
	RemovableMedia   bool
	MediaPresent     bool
	LogicalPartition bool
	ReadOnly         bool
	WriteCaching     bool
	_                [3]byte
	BlockSize        uint32
	IoAlign          uint32
	_                uint32
	LastBlock        uint64
}

// blockIOProtocol mirrors EFI_BLOCK_IO_PROTOCOL.
type blockIOProtocol struct {
	Revision    uint64
	Media       uint64
	Reset       uint64
	ReadBlocks  uint64
	WriteBlocks uint64
	FlushBlocks uint64
}

// BlockDevice implements [io.ReaderAt] over an EFI_BLOCK_IO_PROTOCOL
// instance, allowing the gpt package to read raw sectors without any
// knowledge of UEFI calling conventions.
type BlockDevice struct {
	proto     *blockIOProtocol
	addr      uint64
	mediaID   uint32
	blockSize int
}

// GetBlockIO locates the EFI_BLOCK_IO_PROTOCOL instance associated with the
// given handle.
func (s *BootServices) GetBlockIO(handle uint64) (b *BlockDevice, err error) {
	addr, err := s.HandleProtocol(handle, EFI_BLOCK_IO_PROTOCOL_GUID)

	if err != nil {
		return
	}

	p := &blockIOProtocol{}

	if err = decode(p, addr); err != nil {
		return
	}

	m := &blockIOMedia{}

	if err = decode(m, p.Media); err != nil {
		return
	}

	if m.BlockSize == 0 {
		return nil, errors.New("uefi: invalid block device media")
	}

	return &BlockDevice{
		proto:     p,
		addr:      addr,
		mediaID:   m.MediaID,
		blockSize: int(m.BlockSize),
	}, nil
}

// BlockSize returns the device logical block size in bytes.
func (b *BlockDevice) BlockSize() int {
	return b.blockSize
}

// ReadAt implements [io.ReaderAt]. off must be a multiple of BlockSize().
func (b *BlockDevice) ReadAt(p []byte, off int64) (n int, err error) {
	if b.blockSize == 0 || b.proto == nil {
		return 0, errors.New("uefi: block device not initialized")
	}

	if off < 0 || off%int64(b.blockSize) != 0 {
		return 0, errors.New("uefi: unaligned read offset")
	}

	lba := uint64(off) / uint64(b.blockSize)
	bufSize := ((len(p) + b.blockSize - 1) / b.blockSize) * b.blockSize

	if bufSize == 0 {
		return 0, nil
	}

	buf := make([]byte, bufSize)

	status := callService(ptrval(&b.proto.ReadBlocks), []uint64{
		b.addr,
		uint64(b.mediaID),
		lba,
		uint64(bufSize),
		ptrval(&buf[0]),
	})

	if err = parseStatus(status); err != nil {
		return 0, err
	}

	return copy(p, buf), nil
}
