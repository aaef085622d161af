// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package board

import (
	"io"

	"github.com/platinasystems/dprepeater/internal/audpins"
	"github.com/platinasystems/dprepeater/internal/config"
	"github.com/platinasystems/dprepeater/internal/regs"
	"github.com/platinasystems/dprepeater/internal/sideband"
)

// Open maps the cores and opens the sideband clock and audio lines named
// by c. The Closer unmaps the cores.
func Open(c config.Config) (*Board, io.Closer, error) {
	m, err := regs.Map(c.Dev, c.Base, c.Size)
	if err != nil {
		return nil, nil, err
	}
	f := Windows(m, c.Layout)
	var lines audpins.Lines = audpins.Axi{File: f.Gpio}
	if len(c.Dtb) > 0 {
		s, err := audpins.Discover(c.Dtb)
		if err != nil {
			m.Close()
			return nil, nil, err
		}
		lines = s
	}
	clk := &sideband.Si{
		Bus: sideband.I2cDev{Bus: c.I2cBus, Addr: c.I2cAddr},
	}
	return New(f, c, clk, lines), m, nil
}
