// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

import (
	"github.com/platinasystems/dprepeater/internal/regs"
	"periph.io/x/conn/v3/physic"
)

// Transceiver control registers.
const (
	RefClkFreq    = 0x00C
	RefClkSel     = 0x010
	PllReset      = 0x014
	PllStatus     = 0x018
	TxInit        = 0x01C
	InitStatus    = 0x020
	LineRate      = 0x040
	ClkInit       = 0x044
	ClkInitStatus = 0x048
	TxDriver      = 0x070
)

const (
	PllResetCpll = 0x01
	PllResetQpll = 0x06

	PllLockCpll = 0x01
	PllLockQpll = 0x02

	InitPmaResetDone = 0x01
	InitResetDone    = 0x02

	ClkInitBusy = 0x01

	DriverSwingMask = 0x00f
	DriverPostMask  = 0x1f0
	DriverPostShift = 4
)

// Drive codes for DPCD levels 0 to 3.
var (
	SwingCodes = [4]uint32{0x4, 0x7, 0xa, 0xd}
	PostCodes  = [4]uint32{0x00, 0x0e, 0x14, 0x1a}
)

// Regs is a Driver on the transceiver control register file.
type Regs struct {
	File regs.File
	pll  PllKind
}

func (r *Regs) InitChannel(c Config) error {
	r.pll = c.Pll
	r.File.Write32(TxInit, 1)
	r.File.Write32(RefClkSel, c.RefSource)
	r.File.Write32(RefClkFreq, uint32(c.RefClock/physic.KiloHertz))
	r.File.Write32(LineRate, uint32(c.Rate))
	r.File.Write32(TxInit, 0)
	return nil
}

func (r *Regs) ClkInit(c Config) error {
	if r.File.Read32(ClkInitStatus)&ClkInitBusy != 0 {
		return ErrBusy
	}
	r.File.Write32(ClkInit, uint32(c.Pll)<<8|uint32(c.Rate))
	return nil
}

func (r *Regs) resetMask() uint32 {
	if r.pll == QPLL {
		return PllResetQpll
	}
	return PllResetCpll
}

func (r *Regs) ResetPll(assert bool) error {
	if assert {
		regs.Set(r.File, PllReset, r.resetMask())
	} else {
		regs.Clear(r.File, PllReset, r.resetMask())
	}
	return nil
}

func (r *Regs) PmaResetDone() (bool, error) {
	return regs.IsSet(r.File, InitStatus, InitPmaResetDone), nil
}

func (r *Regs) PllLocked() (bool, error) {
	lock := uint32(PllLockCpll)
	if r.pll == QPLL {
		lock = PllLockQpll
	}
	return regs.IsSet(r.File, PllStatus, lock), nil
}

func (r *Regs) ResetDone() (bool, error) {
	return regs.IsSet(r.File, InitStatus, InitResetDone), nil
}

func code(codes [4]uint32, level uint8) uint32 {
	if level == Off {
		return 0
	}
	if level > 3 {
		level = 3
	}
	return codes[level]
}

func (r *Regs) SetVoltageSwing(lane int, level uint8) error {
	regs.Field(r.File, TxDriver+4*uint32(lane), DriverSwingMask, 0,
		code(SwingCodes, level))
	return nil
}

func (r *Regs) SetPreemphasis(lane int, level uint8) error {
	regs.Field(r.File, TxDriver+4*uint32(lane), DriverPostMask,
		DriverPostShift, code(PostCodes, level))
	return nil
}

// Attach models the transceiver on s: a clock init completes the resets
// and locks both PLLs.
func Attach(s *regs.Sim) {
	s.OnWrite(ClkInit, func(uint32) {
		s.Set(PllStatus, PllLockCpll|PllLockQpll)
		s.Set(InitStatus, InitPmaResetDone|InitResetDone)
	})
}
