// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package downshift decides the TX link and stream for an RX stream and a
// sink. Decide has no side effects.
package downshift

import (
	"fmt"

	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/msa"
)

// Kind is the substitution made.
type Kind int

const (
	// None passes the stream through.
	None Kind = iota
	// Quadrant sends the top left quarter of an 8K frame in the fixed
	// mode.
	Quadrant
	// FrameRate sends the stream cropped to the fixed mode at its rate.
	FrameRate
	// Rescale passes the stream at a lower link rate with M and N
	// recomputed.
	Rescale
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Quadrant:
		return "quadrant"
	case FrameRate:
		return "frame rate"
	case Rescale:
		return "rescale"
	}
	return fmt.Sprint("kind(", int(k), ")")
}

// Mode is a fixed substitution timing.
type Mode struct {
	HActive, VActive int
	HTotal, VTotal   int
	HStart, VStart   int
	HSync, VSync     int
	FrameRate        int
	PixelKHz         uint64
}

// Table holds the policy's limits.
type Table struct {
	// Budget is the largest frame rate × width × height sent to a sink
	// that can't run 8.1 Gbps.
	Budget uint64
	// Fixed is the mode substituted for streams over budget. Frames at
	// least twice its width and height send their top left quarter.
	Fixed Mode
	// Rate and Lanes carry the substituted mode.
	Rate  dpcd.LinkRate
	Lanes dpcd.LaneCount
}

var UHD30 = Mode{
	HActive:   3840,
	VActive:   2160,
	HTotal:    4400,
	VTotal:    2250,
	HStart:    384,
	VStart:    82,
	HSync:     88,
	VSync:     10,
	FrameRate: 30,
	PixelKHz:  297000,
}

var DefaultTable = Table{
	Budget: 4096 * 2160 * 60,
	Fixed:  UHD30,
	Rate:   dpcd.Rate540,
	Lanes:  4,
}

// Decision is what the TX should send.
type Decision struct {
	Kind  Kind
	Rate  dpcd.LinkRate
	Lanes dpcd.LaneCount
	// TX is the stream to program on the TX; its Rate and Lanes equal
	// the decision's.
	TX msa.MSA
}

func (d Decision) String() string {
	return fmt.Sprint(d.Kind, " ", d.Rate, "x", d.Lanes, " ", d.TX)
}

// Cropped reports whether the TX frame is a part of the RX frame, read
// with the RX line stride.
func (d Decision) Cropped() bool {
	return d.Kind == Quadrant || d.Kind == FrameRate
}

func (t Table) fixed(m msa.MSA, c dpcd.Capability, k Kind) Decision {
	d := Decision{
		Kind:  k,
		Rate:  dpcd.MinRate(t.Rate, c.MaxRate),
		Lanes: dpcd.MinLanes(t.Lanes, c.MaxLanes),
	}
	f := t.Fixed
	tx := m
	tx.HActive, tx.VActive = f.HActive, f.VActive
	tx.HTotal, tx.VTotal = f.HTotal, f.VTotal
	tx.HStart, tx.VStart = f.HStart, f.VStart
	tx.HSyncWidth, tx.VSyncWidth = f.HSync, f.VSync
	tx.FrameRate = f.FrameRate
	tx.Misc0 &^= msa.Misc0SyncClock
	tx.MVid = uint32(f.PixelKHz)
	tx.NVid = uint32(d.Rate.MHz() * 1000)
	tx.Rate, tx.Lanes = d.Rate, d.Lanes
	tx.PPC = msa.PixelsPerClock(f.PixelKHz, d.Lanes)
	d.TX = tx
	return d
}

// Decide picks the TX link and stream for RX stream m, received at
// rxRate, and sink capability c.
func Decide(m msa.MSA, c dpcd.Capability, rxRate dpcd.LinkRate,
	t Table) Decision {
	top := c.MaxRate
	if !c.Supports810() {
		if m.HActive >= 2*t.Fixed.HActive &&
			m.VActive >= 2*t.Fixed.VActive {
			return t.fixed(m, c, Quadrant)
		}
		load := uint64(m.FrameRate) * uint64(m.HActive) *
			uint64(m.VActive)
		if load > t.Budget {
			return t.fixed(m, c, FrameRate)
		}
		// 8.1 without the extended field isn't trusted
		top = dpcd.MinRate(top, dpcd.Rate540)
	}
	d := Decision{
		Kind:  None,
		Rate:  dpcd.MinRate(top, rxRate),
		Lanes: dpcd.MinLanes(c.MaxLanes, m.Lanes),
		TX:    m,
	}
	if d.Rate != rxRate && m.NVid != 0 {
		d.Kind = Rescale
		d.TX.MVid = uint32(rxRate.MHz() * 1000 * uint64(m.MVid) /
			uint64(m.NVid))
		d.TX.NVid = uint32(d.Rate.MHz() * 1000)
	}
	d.TX.Rate, d.TX.Lanes = d.Rate, d.Lanes
	return d
}
