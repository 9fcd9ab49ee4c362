// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package diag formats the firmware diagnostic information behind the
// menu's optional debug entries: a dump of the discovered GPT root
// map ("Print roots") and a summary of the running firmware ("System
// information").
package diag

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/opsboot/uefi-bootmenu/gpt"
	"github.com/opsboot/uefi-bootmenu/guid"
	"github.com/opsboot/uefi-bootmenu/uefi"
)

// Roots formats a GuidNameMap as one "<guid>: <name>" line per entry,
// sorted by GUID for stable output.
func Roots(m gpt.NameMap) string {
	if len(m) == 0 {
		return "no GPT partitions discovered"
	}

	ids := make([]guid.GUID, 0, len(m))

	for id := range m {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var buf strings.Builder

	for _, id := range ids {
		fmt.Fprintf(&buf, "%s: %s\n", id.String(), m[id])
	}

	return buf.String()
}

// SystemInfo formats the firmware revision, service base addresses
// and configuration table GUIDs, followed by the AMD SEV-SNP
// configuration when one is found. The firmware vendor string is not
// printed.
func SystemInfo(svc *uefi.Services) (string, error) {
	var buf strings.Builder

	t := svc.SystemTable

	fmt.Fprintf(&buf, "Firmware Revision ..: %#x\n", t.FirmwareRevision)
	fmt.Fprintf(&buf, "Runtime Services ...: %#x\n", t.RuntimeServices)
	fmt.Fprintf(&buf, "Boot Services ......: %#x\n", t.BootServices)
	fmt.Fprintf(&buf, "Configuration Tables: %#x\n", t.ConfigurationTable)

	tables, err := t.ConfigurationTables()

	if err != nil {
		return buf.String(), nil
	}

	for _, ct := range tables {
		fmt.Fprintf(&buf, "  %s (%#x)\n", ct.GUID.String(), ct.VendorTable)
	}

	if snp, err := svc.GetSNPConfiguration(); err == nil {
		fmt.Fprintf(&buf, "AMD SEV-SNP ........: version %d, secrets page %#x\n",
			snp.Version, snp.SecretsPagePhysicalAddress)
	}

	return buf.String(), nil
}

// MemoryMap formats the EFI memory map, one descriptor per line.
func MemoryMap(boot *uefi.BootServices) (string, error) {
	m, err := boot.GetMemoryMap()

	if err != nil {
		return "", err
	}

	var buf strings.Builder

	fmt.Fprintf(&buf, "Type Start            End              Pages            Attributes\n")

	for _, desc := range m.Descriptors {
		fmt.Fprintf(&buf, "%02d   %016x %016x %016x %016x\n",
			desc.Type, desc.PhysicalStart, desc.PhysicalEnd()-1, desc.NumberOfPages, desc.Attribute)
	}

	return buf.String(), nil
}

// Uptime formats d using human-readable units.
func Uptime(d time.Duration) string {
	return durafmt.Parse(d).String()
}
