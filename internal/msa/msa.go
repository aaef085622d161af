// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package msa detects the video format arriving on the RX link from its
// main stream attributes.
package msa

import (
	"fmt"

	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/fb"
)

type Color int

const (
	RGB Color = iota
	YCbCr422
	YCbCr444
	Unsupported
)

func (c Color) String() string {
	switch c {
	case RGB:
		return "RGB"
	case YCbCr422:
		return "YCbCr422"
	case YCbCr444:
		return "YCbCr444"
	}
	return "unsupported"
}

// Misc0 and Misc1 fields
const (
	Misc0SyncClock  = 1 << 0
	Misc0ColorMask  = 0x06
	Misc0ColorShift = 1
	Misc0BpcMask    = 0xe0
	Misc0BpcShift   = 5
	Misc1VSC        = 1 << 6
)

// MSA is the main stream attribute set of one link.
type MSA struct {
	HActive, VActive       int
	HTotal, VTotal         int
	HStart, VStart         int
	HSyncWidth, VSyncWidth int
	HSyncPol, VSyncPol     int
	FrameRate              int
	Bpc                    int
	Color                  Color
	Misc0, Misc1           uint32
	VSC                    bool
	MVid, NVid             uint32
	PPC                    int
	Rate                   dpcd.LinkRate
	Lanes                  dpcd.LaneCount
}

func (m MSA) String() string {
	return fmt.Sprintf("%dx%d@%d %v %dbpc %dppc link %vx%v", m.HActive,
		m.VActive, m.FrameRate, m.Color, m.Bpc, m.PPC, m.Rate, m.Lanes)
}

// ColorOf decodes the component format of Misc0.
func ColorOf(misc0 uint32) Color {
	switch (misc0 & Misc0ColorMask) >> Misc0ColorShift {
	case 0:
		return RGB
	case 1:
		return YCbCr422
	case 2:
		return YCbCr444
	}
	return Unsupported
}

// BpcOf decodes the bits per color of Misc0.
func BpcOf(misc0 uint32) int {
	switch (misc0 & Misc0BpcMask) >> Misc0BpcShift {
	case 0:
		return 6
	case 1:
		return 8
	case 2:
		return 10
	case 3:
		return 12
	case 4:
		return 16
	}
	return 8
}

// PixelKHz is the stream's pixel clock: link symbol clock × M / N.
func (m MSA) PixelKHz() uint64 {
	if m.NVid == 0 {
		return 0
	}
	return m.Rate.MHz() * 1000 * uint64(m.MVid) / uint64(m.NVid)
}

// Snaps maps a measured rate one off a canonical rate to that rate.
var Snaps = map[int]int{
	29:  30,
	31:  30,
	49:  50,
	51:  50,
	59:  60,
	61:  60,
	74:  75,
	76:  75,
	119: 120,
	121: 120,
}

// FrameRate is the pixel clock over the frame total, rounded up and
// snapped.
func FrameRate(pixelKHz uint64, htotal, vtotal int) int {
	tot := uint64(htotal) * uint64(vtotal)
	if tot == 0 {
		return 0
	}
	return Snap(int((pixelKHz*1000 + tot - 1) / tot))
}

// Snap returns the canonical rate for fr; other rates are unchanged.
func Snap(fr int) int {
	if c, found := Snaps[fr]; found {
		return c
	}
	return fr
}

// PixelsPerClock picks the video path width for a pixel clock and lanes.
func PixelsPerClock(pixelKHz uint64, lanes dpcd.LaneCount) int {
	switch {
	case pixelKHz > 540000 && lanes == 4:
		return 4
	case pixelKHz > 270000 && lanes != 1:
		return 2
	}
	return 1
}

// FormatOf is the frame-buffer format that stores the stream.
func FormatOf(c Color, bpc int) fb.Format {
	switch c {
	case YCbCr422:
		return fb.YUYV8
	case YCbCr444:
		if bpc > 8 {
			return fb.YUVX10
		}
		return fb.YUV8
	}
	if bpc > 8 {
		return fb.RGBX10
	}
	return fb.RGB8
}

// Stream is the frame-buffer configuration holding the whole frame.
func (m MSA) Stream() fb.Stream {
	f := FormatOf(m.Color, m.Bpc)
	return fb.Stream{
		Width:  m.HActive,
		Height: m.VActive,
		Stride: fb.Stride(m.HActive, f),
		Format: f,
		PPC:    m.PPC,
	}
}
