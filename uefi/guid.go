// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"github.com/opsboot/uefi-bootmenu/guid"
)

// GUID represents an EFI GUID (Globally Unique Identifier), used
// throughout the boot services and runtime services APIs to identify
// protocols, variables and configuration tables. It shares its wire
// layout with [guid.GUID].
type GUID guid.GUID

// ParseGUID parses a GUID in registry string format.
func ParseGUID(s string) (GUID, error) {
	g, err := guid.Parse(s)
	return GUID(g), err
}

// MustParseGUID is like ParseGUID but panics on error. It is intended
// for package level GUID declarations.
func MustParseGUID(s string) GUID {
	return GUID(guid.MustParse(s))
}

// String returns the registry format string representation of the GUID.
func (g GUID) String() string {
	return guid.GUID(g).String()
}

// ptrval returns the address of the GUID's backing bytes for use as a
// callService argument.
func (g *GUID) ptrval() uint64 {
	return ptrval(g)
}
