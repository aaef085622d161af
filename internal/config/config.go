// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package config holds the daemon's configuration and parses it from the
// command line.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/acr"
	"github.com/platinasystems/dprepeater/internal/downshift"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/phy"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
)

// Layout places the cores in one mapped window. Core fields are offsets
// from Base.
type Layout struct {
	Base int64
	Size int

	Tx, Rx, Acr, ClkWiz, Phy, Writer, Reader, Gpio uint32

	// Frames is the physical address of the frame store.
	Frames uint32
}

var DefaultLayout = Layout{
	Base:   0xa0000000,
	Size:   0x80000,
	Tx:     0x00000,
	Rx:     0x10000,
	Acr:    0x20000,
	ClkWiz: 0x30000,
	Phy:    0x40000,
	Writer: 0x50000,
	Reader: 0x60000,
	Gpio:   0x70000,
	Frames: 0x70000000,
}

type Config struct {
	// Dev is the memory device mapped for the cores.
	Dev string
	Layout
	// Limit caps the sink capability.
	Limit dpcd.Capability
	Pll   phy.PllKind
	// I2cBus and I2cAddr locate the audio clock generator.
	I2cBus, I2cAddr int
	// Dtb, if set, is the device tree naming the audio GPIO lines;
	// otherwise they're bits of the AXI GPIO core.
	Dtb    string
	Policy acr.Policy
	Table  downshift.Table
	// VBlankWait is the RX vblank count that marks a settled stream.
	VBlankWait uint32
	// Tick is the control loop period.
	Tick  time.Duration
	Sim   bool
	Audio bool
}

func Default() Config {
	return Config{
		Dev:        "/dev/mem",
		Layout:     DefaultLayout,
		Limit:      dpcd.Capability{MaxRate: dpcd.Rate810, MaxLanes: 4},
		Pll:        phy.CPLL,
		I2cBus:     1,
		I2cAddr:    0x68,
		Policy:     acr.Wait,
		Table:      downshift.DefaultTable,
		VBlankWait: 20,
		Tick:       time.Millisecond,
		Audio:      true,
	}
}

// Usage lists the options Parse takes.
const Usage = `[-sim] [-no-audio] [-qpll] [-regs DEVICE] [-regs-base ADDR]
	[-rx-base OFFSET] [-tx-base OFFSET] [-max-rate GBPS] [-max-lanes N]
	[-i2c-bus N] [-i2c-addr ADDR] [-dtb FILE] [-infoframe wait|proceed]
	[-budget PIXELS-PER-SECOND] [-vblank N]`

// Parse returns the default Config modified by args, and any arguments
// left over.
func Parse(args []string) (Config, []string, error) {
	c := Default()
	flag, args := flags.New(args, "-sim", "-no-audio", "-qpll")
	parm, args := parms.New(args, "-regs", "-regs-base", "-rx-base",
		"-tx-base", "-max-rate", "-max-lanes", "-i2c-bus", "-i2c-addr",
		"-dtb", "-infoframe", "-budget", "-vblank")
	c.Sim = flag.ByName["-sim"]
	c.Audio = !flag.ByName["-no-audio"]
	if flag.ByName["-qpll"] {
		c.Pll = phy.QPLL
	}
	if s := parm.ByName["-regs"]; len(s) > 0 {
		c.Dev = s
	}
	if s := parm.ByName["-dtb"]; len(s) > 0 {
		c.Dtb = s
	}
	for _, x := range []struct {
		name string
		set  func(string) error
	}{
		{"-regs-base", func(s string) error {
			v, err := number(s, 64)
			c.Base = int64(v)
			return err
		}},
		{"-rx-base", func(s string) error {
			v, err := number(s, 32)
			c.Rx = uint32(v)
			return err
		}},
		{"-tx-base", func(s string) error {
			v, err := number(s, 32)
			c.Tx = uint32(v)
			return err
		}},
		{"-max-rate", func(s string) (err error) {
			c.Limit.MaxRate, err = dpcd.ParseRate(s)
			return
		}},
		{"-max-lanes", func(s string) (err error) {
			c.Limit.MaxLanes, err = dpcd.ParseLanes(s)
			return
		}},
		{"-i2c-bus", func(s string) (err error) {
			c.I2cBus, err = strconv.Atoi(s)
			return
		}},
		{"-i2c-addr", func(s string) error {
			v, err := number(s, 7)
			c.I2cAddr = int(v)
			return err
		}},
		{"-infoframe", func(s string) (err error) {
			c.Policy, err = acr.ParsePolicy(s)
			return
		}},
		{"-budget", func(s string) (err error) {
			c.Table.Budget, err = strconv.ParseUint(s, 0, 64)
			return
		}},
		{"-vblank", func(s string) error {
			v, err := strconv.ParseUint(s, 0, 32)
			c.VBlankWait = uint32(v)
			return err
		}},
	} {
		s := parm.ByName[x.name]
		if len(s) == 0 {
			continue
		}
		if err := x.set(s); err != nil {
			return c, args, errors.Wrap(err, x.name)
		}
	}
	if c.Base&0xfff != 0 {
		return c, args, errors.Errorf("-regs-base: %#x: not page aligned",
			c.Base)
	}
	for _, x := range []struct {
		name string
		off  uint32
	}{
		{"-rx-base", c.Rx},
		{"-tx-base", c.Tx},
	} {
		if x.off&3 != 0 || int64(x.off) >= int64(c.Size) {
			return c, args, errors.Errorf("%s: %#x: outside %#x window",
				x.name, x.off, c.Size)
		}
	}
	return c, args, nil
}

func number(s string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, bits)
}
