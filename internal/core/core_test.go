// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package core

import (
	"reflect"
	"testing"
	"time"

	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/regs"
)

func TestAcrProgramOrder(t *testing.T) {
	s := regs.NewSim()
	Acr{s}.Program(1491, 32768)
	want := []regs.Access{
		{Off: AcrEnable, V: 0},
		{Off: AcrMAud, V: 1491},
		{Off: AcrNAud, V: 32768},
		{Off: AcrMode, V: AcrModeStream},
		{Off: AcrEnable, V: 1},
	}
	if got := s.Writes(); !reflect.DeepEqual(got, want) {
		t.Error("wrong:", got)
	}
}

func TestRxLink(t *testing.T) {
	s := regs.NewSim()
	s.Set(RxDpcdLinkBwSet, 0xE0|uint32(dpcd.Rate810))
	s.Set(RxDpcdLaneCountSet, 0x84)
	rate, lanes := Rx{s}.Link()
	if rate != dpcd.Rate810 || lanes != 4 {
		t.Error("wrong:", rate, lanes)
	}
}

func TestTxLink(t *testing.T) {
	s := regs.NewSim()
	tx := Tx{s}
	tx.SetLink(dpcd.Rate540, 2)
	if r, n := tx.Link(); r != dpcd.Rate540 || n != 2 {
		t.Error("wrong:", r, n)
	}
	if s.Read32(TxEnhancedFrameEn) != 1 {
		t.Error("enhanced framing off")
	}
	s.Set(TxInterruptSigState, SigHpdState)
	if !tx.SinkPresent() {
		t.Error("sink absent")
	}
}

func TestRxInterruptMask(t *testing.T) {
	s := regs.NewSim()
	rx := Rx{s}
	rx.DisableInterrupts(RxIntrVBlank | RxIntrNoVideo)
	rx.EnableInterrupts(RxIntrNoVideo)
	if v := s.Read32(RxInterruptMask); v != RxIntrVBlank {
		t.Errorf("wrong: %#x", v)
	}
}

func TestTxMaskUpdatesSerialize(t *testing.T) {
	s := regs.NewSim()
	tx := Tx{s}
	done := make(chan struct{})
	started := false
	s.OnRead(TxInterruptMask, func() uint32 {
		if !started {
			started = true
			go func() {
				tx.SetInterruptMask(TxIntrMaskAll)
				close(done)
			}()
			time.Sleep(20 * time.Millisecond)
		}
		return TxIntrMaskNone
	})
	tx.MaskInterrupts(TxIntrHpdPulse)
	<-done
	want := []uint32{TxIntrHpdPulse, TxIntrMaskAll}
	if w := s.WritesTo(TxInterruptMask); !reflect.DeepEqual(w, want) {
		t.Error("lost update:", w)
	}
}
