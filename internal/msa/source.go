// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package msa

import (
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/regs"
)

// Misc0Of encodes the component format and depth into Misc0.
func Misc0Of(c Color, bpc int) uint32 {
	var depth uint32
	switch bpc {
	case 6:
		depth = 0
	case 10:
		depth = 2
	case 12:
		depth = 3
	case 16:
		depth = 4
	default:
		depth = 1
	}
	return uint32(c)<<Misc0ColorShift&Misc0ColorMask |
		depth<<Misc0BpcShift
}

// Source loads m into the attribute and link registers of an RX core
// register file, as an upstream source training to it would.
func Source(f regs.File, m MSA) {
	for _, r := range []struct {
		off uint32
		v   int
	}{
		{core.RxMsaHRes, m.HActive},
		{core.RxMsaVHeight, m.VActive},
		{core.RxMsaHTotal, m.HTotal},
		{core.RxMsaVTotal, m.VTotal},
		{core.RxMsaHStart, m.HStart},
		{core.RxMsaVStart, m.VStart},
		{core.RxMsaHSWidth, m.HSyncWidth},
		{core.RxMsaVSWidth, m.VSyncWidth},
		{core.RxMsaHSPol, m.HSyncPol},
		{core.RxMsaVSPol, m.VSyncPol},
		{core.RxDpcdLinkBwSet, int(m.Rate)},
		{core.RxDpcdLaneCountSet, int(m.Lanes)},
	} {
		f.Write32(r.off, uint32(r.v))
	}
	f.Write32(core.RxMsaMisc0, m.Misc0)
	f.Write32(core.RxMsaMisc1, m.Misc1)
	f.Write32(core.RxMsaMVid, m.MVid)
	f.Write32(core.RxMsaNVid, m.NVid)
}

// FHD60 is 1920x1080 at 60 Hz, 8 bpc RGB, on 2.7 Gbps by 4 lanes.
var FHD60 = MSA{
	HActive:    1920,
	VActive:    1080,
	HTotal:     2200,
	VTotal:     1125,
	HStart:     192,
	VStart:     41,
	HSyncWidth: 44,
	VSyncWidth: 5,
	Misc0:      Misc0Of(RGB, 8),
	MVid:       148500,
	NVid:       270000,
	Rate:       dpcd.Rate270,
	Lanes:      4,
}

// Program loads m into the TX core's main stream attribute registers.
func Program(t core.Tx, m MSA) {
	for _, r := range []struct {
		off uint32
		v   int
	}{
		{core.TxMsaHRes, m.HActive},
		{core.TxMsaVRes, m.VActive},
		{core.TxMsaHTotal, m.HTotal},
		{core.TxMsaVTotal, m.VTotal},
		{core.TxMsaHStart, m.HStart},
		{core.TxMsaVStart, m.VStart},
		{core.TxMsaHSWidth, m.HSyncWidth},
		{core.TxMsaVSWidth, m.VSyncWidth},
		{core.TxMsaPolarity, m.HSyncPol | m.VSyncPol<<1},
		{core.TxUserPixelWide, m.PPC},
	} {
		t.Write32(r.off, uint32(r.v))
	}
	t.Write32(core.TxMsaMisc0, m.Misc0)
	t.Write32(core.TxMsaMisc1, m.Misc1)
	t.Write32(core.TxMsaMVid, m.MVid)
	t.Write32(core.TxMsaNVid, m.NVid)
}
