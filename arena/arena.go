// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package arena implements a process-wide bump allocator over a single
// DMA region reserved from firmware pool memory. All session state
// discovered during boot menu operation (device paths, loader
// descriptions, GUID name maps) is allocated here and never freed: the
// process always ends in chain-load, reboot or shutdown.
package arena

import (
	"errors"
	"sync"

	"github.com/usbarmory/tamago/dma"
)

const align = 8

// Arena is a bump allocator backed by a single reserved DMA region. It
// is safe for the single-threaded, cooperative scheduling model of the
// boot menu (no preemption ever interrupts an allocation), the mutex
// exists only to catch accidental reentrancy during development.
type Arena struct {
	mu     sync.Mutex
	region *dma.Region
	base   uint
	buf    []byte
	off    int
}

// New reserves a DMA region of the given size and initializes an Arena
// over it. The region is never released.
func New(size int) (a *Arena, err error) {
	r, err := dma.NewRegion(0, size, true)

	if err != nil {
		return nil, err
	}

	base, buf := r.Reserve(size, align)

	return &Arena{
		region: r,
		base:   base,
		buf:    buf,
	}, nil
}

// Alloc returns a zeroed byte slice of the given size from the arena.
func (a *Arena) Alloc(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := size
	if pad := n % align; pad != 0 {
		n += align - pad
	}

	if a.off+n > len(a.buf) {
		return nil, errors.New("arena exhausted")
	}

	b := a.buf[a.off : a.off+size]
	a.off += n

	return b, nil
}

// Copy allocates space for len(p) bytes and copies p into it, returning
// the arena-owned copy.
func (a *Arena) Copy(p []byte) ([]byte, error) {
	b, err := a.Alloc(len(p))

	if err != nil {
		return nil, err
	}

	copy(b, p)

	return b, nil
}

// String allocates an arena-owned copy of s.
func (a *Arena) String(s string) (string, error) {
	b, err := a.Copy([]byte(s))

	if err != nil {
		return "", err
	}

	return string(b), nil
}

// Used returns the number of bytes allocated so far.
func (a *Arena) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.off
}

// Cap returns the total arena capacity in bytes.
func (a *Arena) Cap() int {
	return len(a.buf)
}
