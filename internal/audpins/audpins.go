// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package audpins drives the two audio control lines: the audio MMCM reset
// and the audio FIFO release.
package audpins

import "github.com/platinasystems/dprepeater/internal/regs"

type Lines interface {
	// PulseReset asserts then releases the audio MMCM reset.
	PulseReset() error
	// Fifo releases, or holds, the audio FIFO.
	Fifo(release bool) error
}

// AXI GPIO data register and its bits.
const (
	Data      = 0x0
	MmcmReset = 1 << 0
	FifoEn    = 1 << 1
)

// Axi is Lines on an AXI GPIO core.
type Axi struct {
	File regs.File
}

func (a Axi) PulseReset() error {
	regs.Set(a.File, Data, MmcmReset)
	regs.Clear(a.File, Data, MmcmReset)
	return nil
}

func (a Axi) Fifo(release bool) error {
	if release {
		regs.Set(a.File, Data, FifoEn)
	} else {
		regs.Clear(a.File, Data, FifoEn)
	}
	return nil
}
