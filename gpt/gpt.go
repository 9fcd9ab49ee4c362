// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package gpt implements a minimal GUID Partition Table reader, sufficient
// to enumerate the partitions of a disk and resolve a partition's unique
// GUID to its name.
package gpt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"

	"github.com/opsboot/uefi-bootmenu/guid"
)

// LogicalBlockSize is the only sector size this reader supports.
const LogicalBlockSize = 512

const (
	mbrSignatureOffset = 510
	mbrSignatureLow    = 0x55
	mbrSignatureHigh   = 0xaa

	mbrPartitionTableOffset = 446
	mbrEntrySize            = 16
	mbrProtectiveType       = 0xee
)

// header mirrors the fixed portion of the GPT header structure.
type header struct {
	Signature                [8]byte
	Revision                 uint32
	HeaderSize               uint32
	HeaderCRC32              uint32
	_                        uint32
	MyLBA                    uint64
	AltLBA                   uint64
	FirstUsableLBA           uint64
	LastUsableLBA            uint64
	DiskGUID                 guid.GUID
	PartitionEntryLBA        uint64
	NumberOfPartitionEntries uint32
	SizeOfPartitionEntry     uint32
	PartitionEntryArrayCRC32 uint32
}

var gptSignature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

// maxPartitionEntries bounds the number of entries read, guarding against a
// corrupted header claiming an unreasonable count.
const maxPartitionEntries = 512

// Entry represents a single GPT partition table entry.
type Entry struct {
	TypeGUID   guid.GUID
	UniqueGUID guid.GUID
	StartLBA   uint64
	EndLBA     uint64
	Attributes uint64
	Name       string
}

// IsEmpty reports whether the entry is an unused partition table slot.
func (e Entry) IsEmpty() bool {
	return e.TypeGUID.IsZero()
}

// Table represents a parsed GUID Partition Table.
type Table struct {
	DiskGUID guid.GUID
	Entries  []Entry
}

// Lookup returns the entry whose unique partition GUID matches id.
func (t *Table) Lookup(id guid.GUID) (Entry, bool) {
	for _, e := range t.Entries {
		if e.UniqueGUID == id {
			return e, true
		}
	}

	return Entry{}, false
}

// NameMap maps a partition's unique GUID to a human-readable name.
type NameMap map[guid.GUID]string

// NameMap returns t's entries indexed by unique partition GUID. Entries
// with an empty name are given a size-derived synthetic label instead,
// per the KiB/MiB/GiB thresholds used for unlabeled volumes.
func (t *Table) NameMap(blockSize uint64) NameMap {
	m := make(NameMap, len(t.Entries))

	for _, e := range t.Entries {
		name := e.Name

		if name == "" {
			name = sizeLabel(e.StartLBA, e.EndLBA, blockSize)
		}

		m[e.UniqueGUID] = name
	}

	return m
}

// sizeLabel synthesizes a "unknown <N><unit> volume" label from a
// partition's extent, saturating to "unknown volume" on overflow or an
// inverted range.
func sizeLabel(startLBA, endLBA, blockSize uint64) string {
	const (
		KiB = uint64(1) << 10
		MiB = uint64(1) << 20
		GiB = uint64(1) << 30
	)

	if endLBA < startLBA {
		return "unknown volume"
	}

	span := endLBA - startLBA

	if blockSize != 0 && span > math.MaxUint64/blockSize {
		return "unknown volume"
	}

	size := span * blockSize

	switch {
	case size < KiB:
		return "unknown volume"
	case size < MiB:
		return fmt.Sprintf("unknown %dKiB volume", size/KiB)
	case size < GiB:
		return fmt.Sprintf("unknown %dMiB volume", size/MiB)
	default:
		return fmt.Sprintf("unknown %dGiB volume", size/GiB)
	}
}

var (
	// ErrNoProtectiveMBR is returned when block zero does not carry a
	// valid protective MBR pointing at a GPT disk.
	ErrNoProtectiveMBR = errors.New("gpt: missing protective MBR")
	// ErrInvalidHeader is returned when the GPT header signature or size
	// fields are inconsistent.
	ErrInvalidHeader = errors.New("gpt: invalid header")
)

// verifyProtectiveMBR reads logical block 0 and checks for the 0x55AA
// boot signature and a 0xEE (GPT protective) partition type in the
// first partition record.
func verifyProtectiveMBR(r io.ReaderAt) error {
	buf := make([]byte, LogicalBlockSize)

	if _, err := r.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("gpt: reading MBR: %w", err)
	}

	if buf[mbrSignatureOffset] != mbrSignatureLow || buf[mbrSignatureOffset+1] != mbrSignatureHigh {
		return ErrNoProtectiveMBR
	}

	osType := buf[mbrPartitionTableOffset+4]

	if osType != mbrProtectiveType {
		return ErrNoProtectiveMBR
	}

	return nil
}

// ReadTable parses the GUID Partition Table found on r, a block device
// exposing LogicalBlockSize-sized sectors starting at LBA 0.
func ReadTable(r io.ReaderAt) (t *Table, err error) {
	if err = verifyProtectiveMBR(r); err != nil {
		return
	}

	hdrBuf := make([]byte, LogicalBlockSize)

	if _, err = r.ReadAt(hdrBuf, LogicalBlockSize); err != nil {
		return nil, fmt.Errorf("gpt: reading header: %w", err)
	}

	h := &header{}

	if err = binary.Read(bytes.NewReader(hdrBuf), binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("gpt: decoding header: %w", err)
	}

	if h.Signature != gptSignature {
		return nil, ErrInvalidHeader
	}

	if h.SizeOfPartitionEntry == 0 || h.NumberOfPartitionEntries == 0 {
		return nil, ErrInvalidHeader
	}

	if h.NumberOfPartitionEntries > maxPartitionEntries {
		return nil, fmt.Errorf("%w: %d partition entries exceeds limit", ErrInvalidHeader, h.NumberOfPartitionEntries)
	}

	t = &Table{DiskGUID: h.DiskGUID}

	entrySize := int(h.SizeOfPartitionEntry)
	tableSize := entrySize * int(h.NumberOfPartitionEntries)
	entryBuf := make([]byte, tableSize)

	if _, err = r.ReadAt(entryBuf, int64(h.PartitionEntryLBA)*LogicalBlockSize); err != nil {
		return nil, fmt.Errorf("gpt: reading partition entries: %w", err)
	}

	for off := 0; off+entrySize <= len(entryBuf); off += entrySize {
		e, decodeErr := decodeEntry(entryBuf[off : off+entrySize])

		if decodeErr != nil {
			return nil, decodeErr
		}

		if e.IsEmpty() {
			continue
		}

		t.Entries = append(t.Entries, e)
	}

	return t, nil
}

const entryHeaderSize = 16 + 16 + 8 + 8 + 8 // TypeGUID, UniqueGUID, StartLBA, EndLBA, Attributes

func decodeEntry(buf []byte) (e Entry, err error) {
	if len(buf) < entryHeaderSize {
		return e, fmt.Errorf("%w: short partition entry", ErrInvalidHeader)
	}

	copy(e.TypeGUID[:], buf[0:16])
	copy(e.UniqueGUID[:], buf[16:32])
	e.StartLBA = binary.LittleEndian.Uint64(buf[32:40])
	e.EndLBA = binary.LittleEndian.Uint64(buf[40:48])
	e.Attributes = binary.LittleEndian.Uint64(buf[48:56])

	if len(buf) > entryHeaderSize {
		e.Name = decodeName(buf[entryHeaderSize:])
	}

	return e, nil
}

func decodeName(buf []byte) string {
	u := make([]uint16, len(buf)/2)

	for i := range u {
		u[i] = binary.LittleEndian.Uint16(buf[2*i:])
	}

	end := len(u)

	for i, c := range u {
		if c == 0 {
			end = i
			break
		}
	}

	return string(utf16.Decode(u[:end]))
}
