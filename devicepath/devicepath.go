// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package devicepath implements the EFI Device Path Protocol node
// codec: parsing a variable-length record chain for display, and
// synthesizing a new chain by appending a file-path node so that a
// discovered loader can be started.
//
// https://uefi.org/specs/UEFI/2.10/10_Protocols_Device_Path_Protocol.html
package devicepath

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
)

// Device Path node types.
const (
	TypeHardware  = 0x01
	TypeACPI      = 0x02
	TypeMessaging = 0x03
	TypeMedia     = 0x04
	TypeEnd       = 0x7f
)

// Media Device Path sub-types.
const (
	SubTypeHardDrive = 0x01
	SubTypeCDROM     = 0x02
	SubTypeFilePath  = 0x04
)

// End Device Path sub-types.
const (
	SubTypeEndInstance = 0x01
	SubTypeEndEntire   = 0xff
)

// HardDrive partition signature types.
const (
	SignatureTypeNone = 0x00
	SignatureTypeMBR  = 0x01
	SignatureTypeGPT  = 0x02
)

// minimum size of a node header (Type, SubType, Length).
const headerSize = 4

// maxNodes bounds a chain walk against a malformed or maliciously
// crafted device path that never terminates.
const maxNodes = 256

var (
	ErrTruncated   = errors.New("devicepath: truncated node")
	ErrInvalidNode = errors.New("devicepath: invalid node length")
	ErrTooDeep     = errors.New("devicepath: node limit exceeded")
	ErrNotFound    = errors.New("devicepath: no matching node")
)

// Node is a single record in a device path chain.
type Node struct {
	Type    uint8
	SubType uint8
	Length  uint16
	Data    []byte
}

// IsEnd reports whether the node is the terminating End/EndEntire node.
func (n Node) IsEnd() bool {
	return n.Type == TypeEnd && n.SubType == SubTypeEndEntire
}

// Bytes serializes the node back to wire format.
func (n Node) Bytes() []byte {
	buf := make([]byte, headerSize+len(n.Data))
	buf[0] = n.Type
	buf[1] = n.SubType
	binary.LittleEndian.PutUint16(buf[2:4], n.Length)
	copy(buf[4:], n.Data)
	return buf
}

// Parse walks a raw device path buffer into a slice of Nodes, stopping
// at (and including) the End/EndEntire terminator. It never trusts a
// length that would run past the end of buf.
func Parse(buf []byte) (nodes []Node, size int, err error) {
	off := 0

	for i := 0; ; i++ {
		if i >= maxNodes {
			return nil, 0, ErrTooDeep
		}

		if off+headerSize > len(buf) {
			return nil, 0, ErrTruncated
		}

		length := binary.LittleEndian.Uint16(buf[off+2 : off+4])

		if length < headerSize {
			return nil, 0, ErrInvalidNode
		}

		if off+int(length) > len(buf) {
			return nil, 0, ErrTruncated
		}

		n := Node{
			Type:    buf[off],
			SubType: buf[off+1],
			Length:  length,
			Data:    append([]byte(nil), buf[off+headerSize:off+int(length)]...),
		}

		nodes = append(nodes, n)
		off += int(length)

		if n.IsEnd() {
			break
		}
	}

	return nodes, off, nil
}

// hardwareTags and mediaTags name the well-known sub-types the menu
// renders as plain tags rather than raw payload bytes.
var hardwareTags = map[uint8]string{
	0x01: "PCI",
	0x02: "PCCARD",
	0x03: "MemoryMapped",
	0x04: "Vendor",
	0x05: "Controller",
	0x06: "BMC",
}

var mediaTags = map[uint8]string{
	SubTypeHardDrive: "HD",
	SubTypeCDROM:     "CDROM",
	0x03:             "Vendor",
	0x05:             "PIWG-Firmware-Volume",
	0x06:             "RelativeOffsetRange",
	0x07:             "RAMDisk",
}

// Format renders a parsed device path chain as a backslash-separated
// string suitable for the menu, per the display rules of the device
// path codec: FilePath nodes contribute their embedded string
// verbatim, other known Hardware/Media sub-types contribute a tag
// name, Messaging and ACPI nodes contribute an empty token (their
// separator is kept), and anything else renders as "?".
func Format(nodes []Node) string {
	var tokens []string

	for _, n := range nodes {
		if n.IsEnd() {
			break
		}

		switch {
		case n.Type == TypeMedia && n.SubType == SubTypeFilePath:
			tokens = append(tokens, decodeUTF16(n.Data))
		case n.Type == TypeHardware:
			if tag, ok := hardwareTags[n.SubType]; ok {
				tokens = append(tokens, tag)
			} else {
				tokens = append(tokens, "?")
			}
		case n.Type == TypeMedia:
			if tag, ok := mediaTags[n.SubType]; ok {
				tokens = append(tokens, tag)
			} else {
				tokens = append(tokens, "?")
			}
		case n.Type == TypeMessaging || n.Type == TypeACPI:
			// TODO: format Messaging/ACPI nodes; no chain-loading
			// path depends on their textual form.
			tokens = append(tokens, "")
		default:
			tokens = append(tokens, "?")
		}
	}

	return strings.Join(tokens, `\`)
}

// Synthesize returns a new device path chain equal to the argument
// chain (minus its terminator) with a Media/FilePath node for name
// appended, followed by a fresh End/EndEntire terminator.
func Synthesize(nodes []Node, name string) ([]byte, error) {
	pathName := encodeUTF16(name)

	filePath := Node{
		Type:    TypeMedia,
		SubType: SubTypeFilePath,
		Length:  uint16(headerSize + len(pathName)),
		Data:    pathName,
	}

	end := Node{
		Type:    TypeEnd,
		SubType: SubTypeEndEntire,
		Length:  headerSize,
	}

	var out []byte

	for _, n := range nodes {
		if n.IsEnd() {
			break
		}

		out = append(out, n.Bytes()...)
	}

	out = append(out, filePath.Bytes()...)
	out = append(out, end.Bytes()...)

	return out, nil
}

// HardDrive is the decoded payload of a Media/HardDrive node.
type HardDrive struct {
	PartitionNumber uint32
	PartitionStart  uint64
	PartitionSize   uint64
	SignatureType   uint8
	Signature       [16]byte
}

// ParseHardDrive decodes a Media/HardDrive node payload.
func ParseHardDrive(n Node) (hd HardDrive, err error) {
	if n.Type != TypeMedia || n.SubType != SubTypeHardDrive {
		return hd, fmt.Errorf("devicepath: not a hard drive node (%02x/%02x)", n.Type, n.SubType)
	}

	if len(n.Data) < 38 {
		return hd, ErrTruncated
	}

	hd.PartitionNumber = binary.LittleEndian.Uint32(n.Data[0:4])
	hd.PartitionStart = binary.LittleEndian.Uint64(n.Data[4:12])
	hd.PartitionSize = binary.LittleEndian.Uint64(n.Data[12:20])
	copy(hd.Signature[:], n.Data[20:36])
	hd.SignatureType = n.Data[37]

	return hd, nil
}

// FindHardDrive returns the first Media/HardDrive node in the chain
// whose SignatureType is SignatureTypeGPT. The returned Signature holds
// the partition-unique GUID in native EFI byte order, copied as stored
// in the node.
func FindHardDrive(nodes []Node) (hd HardDrive, ok bool) {
	for _, n := range nodes {
		if n.Type != TypeMedia || n.SubType != SubTypeHardDrive {
			continue
		}

		decoded, err := ParseHardDrive(n)

		if err != nil {
			continue
		}

		if decoded.SignatureType == SignatureTypeGPT {
			return decoded, true
		}
	}

	return HardDrive{}, false
}

func decodeUTF16(b []byte) string {
	u := make([]uint16, 0, len(b)/2)

	for i := 0; i+1 < len(b); i += 2 {
		v := binary.LittleEndian.Uint16(b[i : i+2])

		if v == 0 {
			break
		}

		u = append(u, v)
	}

	return string(utf16.Decode(u))
}

func encodeUTF16(s string) []byte {
	u := utf16.Encode([]rune(s))
	buf := make([]byte, 2*(len(u)+1))

	for i, v := range u {
		binary.LittleEndian.PutUint16(buf[2*i:2*i+2], v)
	}

	// trailing two bytes are already zero: the NUL terminator.

	return buf
}
