// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"unicode/utf16"
)

// toUTF16 encodes a Go string as a NUL-terminated UTF-16LE byte buffer, the
// format expected by UEFI string arguments.
func toUTF16(s string) []byte {
	u := utf16.Encode([]rune(s))
	buf := make([]byte, 2*(len(u)+1))

	for i, r := range u {
		binary.LittleEndian.PutUint16(buf[2*i:], r)
	}

	return buf
}

// fromUTF16 decodes a NUL-terminated UTF-16LE byte buffer to a Go string.
func fromUTF16(buf []byte) string {
	u := make([]uint16, 0, len(buf)/2)

	for i := 0; i+1 < len(buf); i += 2 {
		c := binary.LittleEndian.Uint16(buf[i:])

		if c == 0 {
			break
		}

		u = append(u, c)
	}

	return string(utf16.Decode(u))
}
