// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package msa

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/fb"
	"github.com/platinasystems/dprepeater/internal/poll"
)

var (
	// ErrUnstable comes with the attributes read when they never
	// settled.
	ErrUnstable = errors.New("unstable stream")
	ErrLinkLost = errors.New("rx link lost")
)

// Detector reads the RX stream format and starts the frame-buffer writer.
type Detector struct {
	Rx     core.Rx
	Writer fb.Driver
	// LinkUp is probed while waiting; the wait ends when it's false.
	LinkUp func() bool
	Stable poll.Bound
}

func NewDetector(rx core.Rx, w fb.Driver, up func() bool) *Detector {
	return &Detector{
		Rx:     rx,
		Writer: w,
		LinkUp: up,
		Stable: poll.Bound{
			Timeout:  100 * time.Millisecond,
			Interval: time.Millisecond,
		},
	}
}

// Detect waits for nonzero active size, reads the rest of the attributes
// and starts the writer. Attributes that never settle are returned with
// ErrUnstable and the writer is left stopped.
func (d *Detector) Detect(ctx context.Context) (MSA, error) {
	var m MSA
	err := poll.Until(ctx, d.Stable, func() (bool, error) {
		if d.LinkUp != nil && !d.LinkUp() {
			return false, ErrLinkLost
		}
		m.HActive = int(d.Rx.Read32(core.RxMsaHRes))
		m.VActive = int(d.Rx.Read32(core.RxMsaVHeight))
		return m.HActive != 0 && m.VActive != 0, nil
	})
	d.read(&m)
	if err != nil {
		if errors.Cause(err) == poll.ErrTimeout {
			err = ErrUnstable
		}
		return m, err
	}
	d.Writer.Stop()
	if err = d.Writer.Configure(m.Stream()); err != nil {
		return m, errors.Wrap(err, "frame writer")
	}
	d.Writer.Start()
	return m, nil
}

func (d *Detector) read(m *MSA) {
	r := d.Rx
	m.HTotal = int(r.Read32(core.RxMsaHTotal))
	m.VTotal = int(r.Read32(core.RxMsaVTotal))
	m.HStart = int(r.Read32(core.RxMsaHStart))
	m.VStart = int(r.Read32(core.RxMsaVStart))
	m.HSyncWidth = int(r.Read32(core.RxMsaHSWidth))
	m.VSyncWidth = int(r.Read32(core.RxMsaVSWidth))
	m.HSyncPol = int(r.Read32(core.RxMsaHSPol))
	m.VSyncPol = int(r.Read32(core.RxMsaVSPol))
	m.Misc0 = r.Read32(core.RxMsaMisc0)
	m.Misc1 = r.Read32(core.RxMsaMisc1)
	m.VSC = m.Misc1&Misc1VSC != 0
	m.Color = ColorOf(m.Misc0)
	m.Bpc = BpcOf(m.Misc0)
	m.MVid = r.Read32(core.RxMsaMVid)
	m.NVid = r.Read32(core.RxMsaNVid)
	m.Rate, m.Lanes = r.Link()
	pclk := m.PixelKHz()
	m.FrameRate = FrameRate(pclk, m.HTotal, m.VTotal)
	m.PPC = PixelsPerClock(pclk, m.Lanes)
}

// ColorChanged re-reads Misc0 and Misc1 and reports whether the component
// format, the depth or the VSC flag differ from prev.
func (d *Detector) ColorChanged(prev MSA) bool {
	misc0 := d.Rx.Read32(core.RxMsaMisc0)
	misc1 := d.Rx.Read32(core.RxMsaMisc1)
	return ColorOf(misc0) != prev.Color || BpcOf(misc0) != prev.Bpc ||
		(misc1&Misc1VSC != 0) != prev.VSC
}
