// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package core maps the DisplayPort link-layer cores, the audio clock
// recovery block and the clocking wizard onto register files.
package core

import (
	"sync"

	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/regs"
)

// Transmit core registers.
const (
	TxLinkBwSet          = 0x000
	TxLaneCountSet       = 0x004
	TxEnhancedFrameEn    = 0x008
	TxTrainingPatternSet = 0x00C
	TxScramblingDisable  = 0x014
	TxSoftReset          = 0x01C
	TxEnable             = 0x080
	TxEnableMainStream   = 0x084
	TxAuxCmd             = 0x100
	TxAuxWriteFifo       = 0x104
	TxAuxAddress         = 0x108
	TxAuxClkDivider      = 0x10C
	TxInterruptSigState  = 0x130
	TxAuxReplyData       = 0x134
	TxAuxReplyCode       = 0x138
	TxInterruptStatus    = 0x140
	TxInterruptMask      = 0x144
	TxAuxReplyDataCount  = 0x148

	TxMsaHTotal     = 0x180
	TxMsaVTotal     = 0x184
	TxMsaPolarity   = 0x188
	TxMsaHSWidth    = 0x18C
	TxMsaVSWidth    = 0x190
	TxMsaHRes       = 0x194
	TxMsaVRes       = 0x198
	TxMsaHStart     = 0x19C
	TxMsaVStart     = 0x1A0
	TxMsaMisc0      = 0x1A4
	TxMsaMisc1      = 0x1A8
	TxMsaMVid       = 0x1AC
	TxMsaNVid       = 0x1B4
	TxUserPixelWide = 0x1B8

	TxAudioControl  = 0x300
	TxAudioChannels = 0x304
	TxAudioInfoData = 0x308
)

// TxInterruptSigState bits
const (
	SigHpdState          = 1 << 0
	SigRequestInProgress = 1 << 1
	SigReplyReceived     = 1 << 2
	SigReplyTimeout      = 1 << 3
)

// TxInterruptStatus and TxInterruptMask bits; a set mask bit disables
// the interrupt.
const (
	TxIntrHpdIrq    = 1 << 0
	TxIntrHpdEvent  = 1 << 1
	TxIntrReplyRecv = 1 << 2
	TxIntrReplyTmo  = 1 << 3
	TxIntrHpdPulse  = 1 << 4
	TxIntrExtPktTxd = 1 << 5
	TxIntrVsync     = 1 << 6
	TxIntrNoVideo   = 1 << 7
	TxIntrMaskAll   = 0xFFF
	TxIntrMaskNone  = 0
)

// AUX command and reply encoding.
const (
	TxAuxAddressOnly  = 1 << 12
	TxAuxCmdShift     = 8
	TxAuxMaxBurst     = 16
	TxAuxNativeWrite  = 0x8
	TxAuxNativeRead   = 0x9
	TxAuxI2CWrite     = 0x0
	TxAuxI2CRead      = 0x1
	TxAuxI2CWriteMot  = 0x4
	TxAuxI2CReadMot   = 0x5
	TxAuxReplyAck     = 0x0
	TxAuxReplyNack    = 0x1
	TxAuxReplyDefer   = 0x2
	TxAuxReplyI2CNack = 0x4
	TxAuxReplyI2CDef  = 0x8
)

// Tx is the transmit link-layer core.
type Tx struct {
	regs.File
}

// SinkPresent reports the HPD line level.
func (t Tx) SinkPresent() bool {
	return t.Read32(TxInterruptSigState)&SigHpdState != 0
}

func (t Tx) InterruptMask() uint32 { return t.Read32(TxInterruptMask) }

// masks serializes interrupt mask updates of the watcher and the loop.
var masks sync.Mutex

func (t Tx) SetInterruptMask(m uint32) {
	masks.Lock()
	defer masks.Unlock()
	t.Write32(TxInterruptMask, m)
}

// MaskInterrupts sets mask bits.
func (t Tx) MaskInterrupts(m uint32) {
	masks.Lock()
	defer masks.Unlock()
	regs.Set(t.File, TxInterruptMask, m)
}

// UnmaskInterrupts clears mask bits.
func (t Tx) UnmaskInterrupts(m uint32) {
	masks.Lock()
	defer masks.Unlock()
	regs.Clear(t.File, TxInterruptMask, m)
}

// Status returns and clears the pending interrupt status.
func (t Tx) Status() uint32 { return t.Read32(TxInterruptStatus) }

func (t Tx) Enable(on bool) {
	var v uint32
	if on {
		v = 1
	}
	t.Write32(TxEnable, v)
}

func (t Tx) Enabled() bool { return t.Read32(TxEnable)&1 != 0 }

// SetLink programs the core side of the link configuration.
func (t Tx) SetLink(rate dpcd.LinkRate, lanes dpcd.LaneCount) {
	t.Write32(TxLinkBwSet, uint32(rate))
	t.Write32(TxLaneCountSet, uint32(lanes))
	t.Write32(TxEnhancedFrameEn, 1)
}

// Link returns what SetLink last programmed.
func (t Tx) Link() (dpcd.LinkRate, dpcd.LaneCount) {
	return dpcd.LinkRate(t.Read32(TxLinkBwSet)),
		dpcd.LaneCount(t.Read32(TxLaneCountSet))
}

func (t Tx) SetPattern(p uint8) {
	t.Write32(TxTrainingPatternSet, uint32(p))
	var dis uint32
	if p != dpcd.PatternOff {
		dis = 1
	}
	t.Write32(TxScramblingDisable, dis)
}

// MainStream enables or disables the main stream.
func (t Tx) MainStream(on bool) {
	var v uint32
	if on {
		v = 1
	}
	t.Write32(TxEnableMainStream, v)
}

// Audio enables TX audio for channels; zero disables.
func (t Tx) Audio(channels uint32) {
	if channels == 0 {
		t.Write32(TxAudioControl, 0)
		return
	}
	t.Write32(TxAudioChannels, channels)
	t.Write32(TxAudioControl, 1)
}

func (t Tx) AudioOn() bool { return t.Read32(TxAudioControl)&1 != 0 }

// SendInfoFrame queues an audio info frame for transmission.
func (t Tx) SendInfoFrame(w [RxInfoFrameWords]uint32) {
	for _, v := range w {
		t.Write32(TxAudioInfoData, v)
	}
}
