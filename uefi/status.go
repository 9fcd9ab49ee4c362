// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
)

// EFI_STATUS error bit, set on all failure codes.
const errorBit = uint64(1) << 63

// EFI_STATUS codes used by the services this package binds.
// https://uefi.org/specs/UEFI/2.10/Appendix_D_Status_Codes.html
const (
	EFI_SUCCESS uint64 = 0

	EFI_LOAD_ERROR           = errorBit | 1
	EFI_INVALID_PARAMETER    = errorBit | 2
	EFI_UNSUPPORTED          = errorBit | 3
	EFI_BAD_BUFFER_SIZE      = errorBit | 4
	EFI_BUFFER_TOO_SMALL     = errorBit | 5
	EFI_NOT_READY            = errorBit | 6
	EFI_DEVICE_ERROR         = errorBit | 7
	EFI_WRITE_PROTECTED      = errorBit | 8
	EFI_OUT_OF_RESOURCES     = errorBit | 9
	EFI_VOLUME_CORRUPTED     = errorBit | 10
	EFI_NOT_FOUND            = errorBit | 14
	EFI_ACCESS_DENIED        = errorBit | 15
	EFI_NO_MEDIA             = errorBit | 12
	EFI_ABORTED              = errorBit | 21
	EFI_SECURITY_VIOLATION   = errorBit | 26
	EFI_INCOMPATIBLE_VERSION = errorBit | 25
)

var statusNames = map[uint64]string{
	EFI_LOAD_ERROR:           "load error",
	EFI_INVALID_PARAMETER:    "invalid parameter",
	EFI_UNSUPPORTED:          "unsupported",
	EFI_BAD_BUFFER_SIZE:      "bad buffer size",
	EFI_BUFFER_TOO_SMALL:     "buffer too small",
	EFI_NOT_READY:            "not ready",
	EFI_DEVICE_ERROR:         "device error",
	EFI_WRITE_PROTECTED:      "write protected",
	EFI_OUT_OF_RESOURCES:     "out of resources",
	EFI_VOLUME_CORRUPTED:     "volume corrupted",
	EFI_NOT_FOUND:            "not found",
	EFI_ACCESS_DENIED:        "access denied",
	EFI_NO_MEDIA:             "no media",
	EFI_ABORTED:              "aborted",
	EFI_SECURITY_VIOLATION:   "security violation",
	EFI_INCOMPATIBLE_VERSION: "incompatible version",
}

// ErrEfiNotFound represents an EFI_NOT_FOUND status.
var ErrEfiNotFound = errors.New("uefi: not found")

// ErrAborted represents an EFI_ABORTED status.
var ErrAborted = errors.New("uefi: aborted")

var errNoConsole = errors.New("uefi: console not initialized")

// parseStatus converts a raw EFI_STATUS return value to a Go error,
// nil on EFI_SUCCESS.
func parseStatus(status uint64) error {
	if status == EFI_SUCCESS {
		return nil
	}

	if status&errorBit == 0 {
		// warning code, not a failure
		return nil
	}

	if status == EFI_NOT_FOUND {
		return ErrEfiNotFound
	}

	if status == EFI_ABORTED {
		return ErrAborted
	}

	if name, ok := statusNames[status]; ok {
		return fmt.Errorf("uefi: %s (%#x)", name, status)
	}

	return fmt.Errorf("uefi: status %#x", status)
}
