// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package phy sequences the transceiver channel through a line rate change.
package phy

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/poll"
	"periph.io/x/conn/v3/physic"
)

// ErrBusy is returned by a Driver's ClkInit while the transceiver can't
// accept a new configuration.
var ErrBusy = errors.New("busy")

// ErrTimeout is the cause of any bounded wait that expired.
var ErrTimeout = poll.ErrTimeout

// Error names the sequencing step that failed.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string { return "phy " + e.Step + ": " + e.Err.Error() }

func (e *Error) Cause() error { return e.Err }

type PllKind int

const (
	CPLL PllKind = iota
	QPLL
)

func (k PllKind) String() string {
	switch k {
	case CPLL:
		return "cpll"
	case QPLL:
		return "qpll"
	}
	return fmt.Sprint("pll(", int(k), ")")
}

// Reference clock inputs of the transceiver quad.
const (
	RefClk0 = iota
	RefClk1
)

// Config is one transceiver channel setting.
type Config struct {
	Rate      dpcd.LinkRate
	Pll       PllKind
	RefClock  physic.Frequency
	RefSource uint32
}

// LineRate is the serial bit rate of each lane.
func (c Config) LineRate() physic.Frequency {
	return physic.Frequency(c.Rate) * 270 * physic.MegaHertz
}

func (c Config) String() string {
	return fmt.Sprint(c.Rate, " ", c.Pll, " ref ", c.RefClock)
}

// Table holds the supported channel settings. The CPLL can't reach 8.1.
var Table = []Config{
	{dpcd.Rate162, CPLL, 270 * physic.MegaHertz, RefClk0},
	{dpcd.Rate270, CPLL, 270 * physic.MegaHertz, RefClk0},
	{dpcd.Rate540, CPLL, 270 * physic.MegaHertz, RefClk0},
	{dpcd.Rate162, QPLL, 270 * physic.MegaHertz, RefClk1},
	{dpcd.Rate270, QPLL, 270 * physic.MegaHertz, RefClk1},
	{dpcd.Rate540, QPLL, 270 * physic.MegaHertz, RefClk1},
	{dpcd.Rate810, QPLL, 270 * physic.MegaHertz, RefClk1},
}

// Default is used when nothing in Table fits.
var Default = Table[0]

// Lookup finds the setting for rate on pll, then for rate on the QPLL,
// then gives Default.
func Lookup(rate dpcd.LinkRate, pll PllKind) Config {
	for _, c := range Table {
		if c.Rate == rate && c.Pll == pll {
			return c
		}
	}
	for _, c := range Table {
		if c.Rate == rate && c.Pll == QPLL {
			return c
		}
	}
	return Default
}

// Driver is the transceiver channel.
type Driver interface {
	InitChannel(Config) error
	// ClkInit returns ErrBusy until the channel takes the setting.
	ClkInit(Config) error
	ResetPll(assert bool) error
	PmaResetDone() (bool, error)
	PllLocked() (bool, error)
	ResetDone() (bool, error)
	// SetVoltageSwing and SetPreemphasis take a DPCD level, 0 to 3, or
	// Off.
	SetVoltageSwing(lane int, level uint8) error
	SetPreemphasis(lane int, level uint8) error
}

// Off is the drive level that turns the lane driver off.
const Off uint8 = 0xff

// Quiesce turns off swing and pre-emphasis on lanes.
func Quiesce(d Driver, lanes int) error {
	for i := 0; i < lanes; i++ {
		if err := d.SetVoltageSwing(i, Off); err != nil {
			return err
		}
		if err := d.SetPreemphasis(i, Off); err != nil {
			return err
		}
	}
	return nil
}
