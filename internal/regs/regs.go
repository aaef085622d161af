// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regs provides 32-bit register access to memory mapped IP cores.
//
// Each core is a flat register File addressed by byte offset. On target the
// File is a Mem window on /dev/mem; in tests and the daemon's -sim mode it's
// a Sim.
package regs

// File is a flat register file addressed by byte offset.
type File interface {
	Read32(off uint32) uint32
	Write32(off, v uint32)
}

// Window is a File at Base within another File.
type Window struct {
	File
	Base uint32
}

func (w Window) Read32(off uint32) uint32 { return w.File.Read32(w.Base + off) }
func (w Window) Write32(off, v uint32)    { w.File.Write32(w.Base+off, v) }

// Set the mask bits of the register at off.
func Set(f File, off, mask uint32) { f.Write32(off, f.Read32(off)|mask) }

// Clear the mask bits of the register at off.
func Clear(f File, off, mask uint32) { f.Write32(off, f.Read32(off)&^mask) }

// IsSet returns true if all mask bits of the register at off are set.
func IsSet(f File, off, mask uint32) bool { return f.Read32(off)&mask == mask }

// Field replaces the mask bits of the register at off with v<<shift.
func Field(f File, off, mask uint32, shift uint, v uint32) {
	f.Write32(off, f.Read32(off)&^mask|(v<<shift)&mask)
}
