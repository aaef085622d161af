// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

//go:build linux
// +build linux

package regs

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const DevMem = "/dev/mem"

// Mem is a File mapped from a physical address range.
type Mem struct {
	f    *os.File
	b    []byte
	base int64
}

// Map size bytes of the named memory device at the physical address base.
// The base must be page aligned.
func Map(name string, base int64, size int) (*Mem, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "regs")
	}
	b, err := unix.Mmap(int(f.Fd()), base, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "regs: mmap %#x", base)
	}
	return &Mem{f: f, b: b, base: base}, nil
}

func (m *Mem) word(off uint32) *uint32 {
	if off&3 != 0 || int(off)+4 > len(m.b) {
		panic(fmt.Errorf("regs: %#x+%#x: out of range", m.base, off))
	}
	return (*uint32)(unsafe.Pointer(&m.b[off]))
}

func (m *Mem) Read32(off uint32) uint32 { return atomic.LoadUint32(m.word(off)) }

func (m *Mem) Write32(off, v uint32) { atomic.StoreUint32(m.word(off), v) }

func (m *Mem) Close() error {
	err := unix.Munmap(m.b)
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	m.b = nil
	return err
}
