// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package core

import "github.com/platinasystems/dprepeater/internal/regs"

// Audio clock recovery block registers.
const (
	AcrEnable     = 0x00
	AcrMode       = 0x04
	AcrDiv        = 0x08
	AcrMAud       = 0x0C
	AcrNAud       = 0x10
	AcrFifoLevel  = 0x30
	AcrLimit      = 0x34
	AcrStep       = 0x38
	AcrWindow     = 0x3C
	AcrAveraging  = 0x40
	AcrModeStream = 0x0
	AcrModeNoLoop = 0x1
	AcrModeLoop   = 0x4
)

// Acr is the receive side audio clock recovery block.
type Acr struct {
	regs.File
}

// Init programs the loop filter defaults.
func (a Acr) Init() {
	a.Write32(AcrFifoLevel, 512)
	a.Write32(AcrLimit, 15)
	a.Write32(AcrStep, 3)
	a.Write32(AcrWindow, 8*384)
	a.Write32(AcrAveraging, 8)
	a.Write32(AcrMode, AcrModeNoLoop)
	a.Write32(AcrDiv, 0x40)
}

func (a Acr) Enable(on bool) {
	var v uint32
	if on {
		v = 1
	}
	a.Write32(AcrEnable, v)
}

func (a Acr) Enabled() bool { return a.Read32(AcrEnable)&1 != 0 }

// Program disables the block, loads M/N in streaming mode, and enables it.
func (a Acr) Program(maud, naud uint32) {
	a.Enable(false)
	a.Write32(AcrMAud, maud)
	a.Write32(AcrNAud, naud)
	a.Write32(AcrMode, AcrModeStream)
	a.Enable(true)
}

func (a Acr) SetMode(m uint32) { a.Write32(AcrMode, m) }

func (a Acr) Mode() uint32 { return a.Read32(AcrMode) }

// SetI2SDivider sets the serial clock divider from the master clock.
func (a Acr) SetI2SDivider(d uint32) { a.Write32(AcrDiv, d) }

// Clocking wizard registers.
const (
	ClkWizReset      = 0x000
	ClkWizStatus     = 0x004
	ClkWizResetValue = 0xA
	ClkWizStatusLock = 1 << 0
)

// ClkWiz is the video clocking wizard feeding the TX pixel path.
type ClkWiz struct {
	regs.File
}

func (c ClkWiz) Locked() bool { return c.Read32(ClkWizStatus)&ClkWizStatusLock != 0 }

func (c ClkWiz) Reset() { c.Write32(ClkWizReset, ClkWizResetValue) }
