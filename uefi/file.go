// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
)

// EFI_FILE_PROTOCOL revisions.
const (
	EFI_FILE_PROTOCOL_REVISION  = 0x00010000
	EFI_FILE_PROTOCOL_REVISION2 = 0x00020000
)

// EFI_FILE_INFO_ID identifies the EFI_FILE_INFO structure returned by
// GetInfo().
var EFI_FILE_INFO_ID = MustParseGUID("09576e92-6d3f-11d2-8e39-00a0c969723b")

// EFI_FILE open mode bits.
const (
	EFI_FILE_MODE_READ  = 0x0000000000000001
	EFI_FILE_MODE_WRITE = 0x0000000000000002
)

// EFI_FILE_INFO Attribute bits.
const EFI_FILE_DIRECTORY = 0x0000000000000010

const (
	// MaxFileName caps the UTF-16 file name length read back by GetInfo().
	MaxFileName = 256
	// MaxDirEntries caps the number of entries a single ReadDir(-1) call returns.
	MaxDirEntries = 4096

	fileInfoSize = 8*4 + 16*3 // Size, FileSize, PhysicalSize, 3 EFI_TIME timestamps, Attribute
)

// fileProtocol represents an EFI_FILE_PROTOCOL instance, decoded in place
// with each field holding the actual function pointer value copied from
// firmware memory.
type fileProtocol struct {
	Revision    uint64
	Open        uint64
	Close       uint64
	Delete      uint64
	Read        uint64
	Write       uint64
	GetPosition uint64
	SetPosition uint64
	GetInfo     uint64
	SetInfo     uint64
	Flush       uint64
	OpenEx      uint64
	ReadEx      uint64
	WriteEx     uint64
	FlushEx     uint64
}

// open calls EFI_FILE_PROTOCOL.Open() against the file or directory
// identified by handle.
func (f *fileProtocol) open(handle uint64, name string, mode uint64) (child *fileProtocol, addr uint64, err error) {
	nameUTF16 := toUTF16(name)

	status := callService(ptrval(&f.Open), []uint64{
		handle,
		ptrval(&addr),
		ptrval(&nameUTF16[0]),
		mode,
		0,
	})

	if err = parseStatus(status); err != nil {
		return
	}

	child = &fileProtocol{}

	if err = decode(child, addr); err != nil {
		return
	}

	if child.Revision != EFI_FILE_PROTOCOL_REVISION && child.Revision != EFI_FILE_PROTOCOL_REVISION2 {
		return nil, 0, fmt.Errorf("uefi: invalid file protocol revision (%#x)", child.Revision)
	}

	return
}

// read calls EFI_FILE_PROTOCOL.Read() against the file identified by handle.
func (f *fileProtocol) read(handle uint64, buf []byte) (n int, err error) {
	if len(buf) == 0 {
		return 0, nil
	}

	size := uint64(len(buf))

	status := callService(ptrval(&f.Read), []uint64{
		handle,
		ptrval(&size),
		ptrval(&buf[0]),
	})

	if err = parseStatus(status); err != nil {
		return 0, err
	}

	return int(size), nil
}

// close calls EFI_FILE_PROTOCOL.Close() against the file identified by handle.
func (f *fileProtocol) close(handle uint64) error {
	status := callService(ptrval(&f.Close), []uint64{handle})
	return parseStatus(status)
}

// getInfo calls EFI_FILE_PROTOCOL.GetInfo() against the file identified by
// handle, requesting the EFI_FILE_INFO structure.
func (f *fileProtocol) getInfo(handle uint64) (fi FileInfo, err error) {
	guid := EFI_FILE_INFO_ID
	buf := make([]byte, fileInfoSize+MaxFileName*2)
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

	info := &fileInfo{}
	name, err := info.decode(buf[:size])

	if err != nil {
		return
	}

	return FileInfo{name: name, info: info}, nil
}

// fileInfo mirrors the fixed-size header of an EFI_FILE_INFO structure, the
// variable-length UTF-16 file name follows it in the wire buffer.
type fileInfo struct {
	Size             uint64
	FileSize         uint64
	PhysicalSize     uint64
	CreateTime       [16]byte
	LastAccessTime   [16]byte
	ModificationTime [16]byte
	Attribute        uint64
}

func (fi *fileInfo) decode(buf []byte) (name string, err error) {
	if len(buf) < fileInfoSize {
		return "", errors.New("uefi: short file info buffer")
	}

	if err = unmarshalBinary(buf[:fileInfoSize], fi); err != nil {
		return
	}

	return fromUTF16(buf[fileInfoSize:]), nil
}

// FileInfo implements the [fs.FileInfo] interface over an EFI_FILE_INFO
// structure.
type FileInfo struct {
	name string
	info *fileInfo
}

// Name returns the base name of the file.
func (fi FileInfo) Name() string {
	return fi.name
}

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 {
	return int64(fi.info.FileSize)
}

// Mode returns the file mode bits.
func (fi FileInfo) Mode() fs.FileMode {
	if fi.IsDir() {
		return fs.ModeDir | 0555
	}

	return 0444
}

// ModTime returns the file modification time. EFI_TIME is not decoded to a
// wall clock value, so this always returns the zero time.
func (fi FileInfo) ModTime() time.Time {
	return time.Time{}
}

// IsDir reports whether the file is a directory.
func (fi FileInfo) IsDir() bool {
	return fi.info.Attribute&EFI_FILE_DIRECTORY != 0
}

// Sys returns the underlying *fileInfo.
func (fi FileInfo) Sys() any {
	return fi.info
}

// File implements the [fs.File] and [fs.ReadDirFile] interfaces over an
// EFI_FILE_PROTOCOL instance.
type File struct {
	name string
	file *fileProtocol
	addr uint64
	n    int
}

// Read implements [io.Reader].
func (f *File) Read(p []byte) (n int, err error) {
	if f.file == nil {
		return 0, errors.New("uefi: file not open")
	}

	n, err = f.file.read(f.addr, p)

	if err != nil {
		return
	}

	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}

	return
}

// Close implements [io.Closer].
func (f *File) Close() error {
	if f.file == nil {
		return nil
	}

	err := f.file.close(f.addr)
	f.file = nil

	return err
}

// Stat implements [fs.File].
func (f *File) Stat() (fs.FileInfo, error) {
	if f.file == nil {
		return nil, errors.New("uefi: file not open")
	}

	fi, err := f.file.getInfo(f.addr)

	if err != nil {
		return nil, err
	}

	if fi.name == "" {
		fi.name = f.name
	}

	return fi, nil
}
