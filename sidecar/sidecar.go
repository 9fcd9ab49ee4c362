// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sidecar reads the companion configuration file that may
// accompany a discovered Linux kernel, carrying its command line
// arguments verbatim.
package sidecar

import (
	"io/fs"
	"strings"
)

// Config represents the parsed contents of a boot entry sidecar file.
type Config struct {
	// Options holds the kernel command line arguments, taken verbatim
	// from the sidecar file with a single trailing line ending
	// removed.
	Options string
}

// Load reads the sidecar file at path within fsys and returns its
// contents as Options, minus one trailing "\r\n" or "\n". The entire
// remaining content is used as-is: a sidecar file is not a key=value
// format, it is a command line.
func Load(fsys fs.FS, path string) (cfg Config, err error) {
	data, err := fs.ReadFile(fsys, path)

	if err != nil {
		return
	}

	s := string(data)

	switch {
	case strings.HasSuffix(s, "\r\n"):
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "\n"):
		s = s[:len(s)-1]
	}

	cfg.Options = s

	return
}
