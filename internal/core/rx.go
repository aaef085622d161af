// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package core

import (
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/regs"
)

// Receive core registers.
const (
	RxLinkEnable       = 0x000
	RxAuxClkDivider    = 0x004
	RxLineReset        = 0x008
	RxDtgEnable        = 0x00C
	RxInterruptMask    = 0x014
	RxSoftReset        = 0x01C
	RxInterruptCause   = 0x040
	RxAudioControl     = 0x300
	RxAudioInfoData    = 0x304
	RxAudioMAud        = 0x324
	RxAudioNAud        = 0x328
	RxDpcdLinkBwSet    = 0x400
	RxDpcdLaneCountSet = 0x404
	RxDpcdLane01Status = 0x43C
	RxDpcdLane23Status = 0x440

	RxMsaHRes    = 0x500
	RxMsaHSPol   = 0x504
	RxMsaHSWidth = 0x508
	RxMsaHStart  = 0x50C
	RxMsaHTotal  = 0x510
	RxMsaVHeight = 0x514
	RxMsaVSPol   = 0x518
	RxMsaVSWidth = 0x51C
	RxMsaVStart  = 0x520
	RxMsaVTotal  = 0x524
	RxMsaMisc0   = 0x528
	RxMsaMisc1   = 0x52C
	RxMsaMVid    = 0x530
	RxMsaNVid    = 0x534
)

// RxInterruptCause and RxInterruptMask bits; a set mask bit disables the
// interrupt.
const (
	RxIntrVmChange     = 1 << 0
	RxIntrPowerState   = 1 << 1
	RxIntrNoVideo      = 1 << 2
	RxIntrVBlank       = 1 << 3
	RxIntrTrainingLost = 1 << 4
	RxIntrVideo        = 1 << 6
	RxIntrInfoPkt      = 1 << 8
	RxIntrExtPkt       = 1 << 9
	RxIntrTrainingDone = 1 << 14
	RxIntrBwChange     = 1 << 15
	RxIntrUnplug       = 1 << 31
	RxIntrMaskAll      = 0xFFFFFFFF

	RxSoftResetVideo = 0x80
	RxInfoFrameWords = 8
)

// Rx is the receive link-layer core.
type Rx struct {
	regs.File
}

// Cause returns and clears the pending interrupt causes.
func (r Rx) Cause() uint32 { return r.Read32(RxInterruptCause) }

// EnableInterrupts clears mask bits.
func (r Rx) EnableInterrupts(m uint32) {
	masks.Lock()
	defer masks.Unlock()
	regs.Clear(r.File, RxInterruptMask, m)
}

// DisableInterrupts sets mask bits.
func (r Rx) DisableInterrupts(m uint32) {
	masks.Lock()
	defer masks.Unlock()
	regs.Set(r.File, RxInterruptMask, m)
}

// Link returns the rate and lane count the source trained.
func (r Rx) Link() (dpcd.LinkRate, dpcd.LaneCount) {
	return dpcd.LinkRate(r.Read32(RxDpcdLinkBwSet) & 0x1F),
		dpcd.LaneCount(r.Read32(RxDpcdLaneCountSet) & dpcd.LaneCountMask)
}

func (r Rx) LaneStatus() dpcd.Status {
	return dpcd.Status{
		Lane01: uint8(r.Read32(RxDpcdLane01Status)),
		Lane23: uint8(r.Read32(RxDpcdLane23Status)),
	}
}

// RestartTiming resets the video line and cycles the timing generator.
func (r Rx) RestartTiming() {
	r.Write32(RxLineReset, 1)
	r.Write32(RxDtgEnable, 0)
	r.Write32(RxDtgEnable, 1)
}

func (r Rx) StopTiming() { r.Write32(RxDtgEnable, 0) }

// ResetVideo pulses the video soft reset.
func (r Rx) ResetVideo() {
	r.Write32(RxSoftReset, RxSoftResetVideo)
	r.Write32(RxSoftReset, 0)
}

// Audio enables or disables RX audio extraction.
func (r Rx) Audio(on bool) {
	var v uint32
	if on {
		v = 1
	}
	r.Write32(RxAudioControl, v)
}

// AudioMN returns the audio M and N values carried by the link.
func (r Rx) AudioMN() (maud, naud uint32) {
	return r.Read32(RxAudioMAud), r.Read32(RxAudioNAud)
}

// DrainInfoFrame reads the info frame buffer so the core raises the next
// info packet interrupt.
func (r Rx) DrainInfoFrame() (w [RxInfoFrameWords]uint32) {
	for i := range w {
		w[i] = r.Read32(RxAudioInfoData)
	}
	return
}
