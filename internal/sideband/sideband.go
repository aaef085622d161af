// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sideband programs the jitter attenuating clock generator that
// makes the audio master clock from the recovered sample rate.
package sideband

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/platinasystems/i2c"
	"periph.io/x/conn/v3/physic"
)

// Clock is the sideband clock. An input of zero runs free from the
// crystal.
type Clock interface {
	SetClock(in, out physic.Frequency) error
}

// FreeRunOut is the output while no audio is recovered.
const FreeRunOut = 36864 * physic.KiloHertz

// Xtal is the crystal used when running free.
const Xtal = 114285 * physic.KiloHertz

// FreeRun returns c to the crystal.
func FreeRun(c Clock) error { return c.SetClock(0, FreeRunOut) }

// Bus is byte register access to the clock chip.
type Bus interface {
	ReadReg(reg uint8) (uint8, error)
	WriteReg(reg, v uint8) error
}

// I2cDev is a Bus on a Linux I2C adapter.
type I2cDev struct {
	Bus  int
	Addr int
}

func (d I2cDev) do(rw i2c.RW, reg uint8, data *i2c.SMBusData) error {
	var bus i2c.Bus
	if err := bus.Open(d.Bus); err != nil {
		return err
	}
	defer bus.Close()
	if err := bus.ForceSlaveAddress(d.Addr); err != nil {
		return err
	}
	return bus.Do(rw, reg, i2c.ByteData, data)
}

func (d I2cDev) ReadReg(reg uint8) (uint8, error) {
	var data i2c.SMBusData
	err := d.do(i2c.Read, reg, &data)
	return data[0], err
}

func (d I2cDev) WriteReg(reg, v uint8) error {
	var data i2c.SMBusData
	data[0] = v
	return d.do(i2c.Write, reg, &data)
}

// Clock generator registers
const (
	RegControl = 0
	RegCkSel   = 3
	RegN1HS    = 25
	RegNC1LS   = 31
	RegN2      = 40
	RegN31     = 43
	RegIcal    = 136
)

const (
	FreeRunEn = 1 << 6
	CkSelIn1  = 0 << 6
	CkSelIn2  = 1 << 6
	CkSelMask = 3 << 6
	IcalStart = 1 << 6
	HsShift   = 5
)

// Si is the clock generator on a Bus.
type Si struct {
	Bus Bus

	mu      sync.Mutex
	in, out physic.Frequency
	plan    Plan
}

// SetClock programs the dividers for in to out and recalibrates.
func (s *Si) SetClock(in, out physic.Frequency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := in
	if in == 0 {
		ref = Xtal
	}
	p, err := Solve(ref, out)
	if err != nil {
		return err
	}
	ctl, err := s.Bus.ReadReg(RegControl)
	if err != nil {
		return errors.Wrap(err, "sideband")
	}
	sel := uint8(CkSelIn1)
	if in == 0 {
		ctl |= FreeRunEn
		sel = CkSelIn2
	} else {
		ctl &^= FreeRunEn
	}
	nc1 := p.NC1LS - 1
	n2 := p.N2LS - 1
	n31 := p.N31 - 1
	for _, w := range []struct{ reg, v uint8 }{
		{RegControl, ctl},
		{RegCkSel, sel},
		{RegN1HS, uint8(p.N1HS-4) << HsShift},
		{RegNC1LS, uint8(nc1>>16) & 0xf},
		{RegNC1LS + 1, uint8(nc1 >> 8)},
		{RegNC1LS + 2, uint8(nc1)},
		{RegN2, uint8(p.N2HS-4)<<HsShift | uint8(n2>>16)&0xf},
		{RegN2 + 1, uint8(n2 >> 8)},
		{RegN2 + 2, uint8(n2)},
		{RegN31, uint8(n31>>16) & 0x7},
		{RegN31 + 1, uint8(n31 >> 8)},
		{RegN31 + 2, uint8(n31)},
		{RegIcal, IcalStart},
	} {
		if err = s.Bus.WriteReg(w.reg, w.v); err != nil {
			return errors.Wrapf(err, "sideband reg %d", w.reg)
		}
	}
	s.in, s.out, s.plan = in, out, p
	return nil
}

// Current returns the last programmed input, output and plan.
func (s *Si) Current() (in, out physic.Frequency, p Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in, s.out, s.plan
}

// Regs is a Bus held in memory.
type Regs struct {
	mu sync.Mutex
	r  [256]uint8
}

func (m *Regs) ReadReg(reg uint8) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.r[reg], nil
}

func (m *Regs) WriteReg(reg, v uint8) error {
	m.mu.Lock()
	m.r[reg] = v
	m.mu.Unlock()
	return nil
}
