// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package train

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/dpaux"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/phy"
	"github.com/platinasystems/dprepeater/internal/poll"
	"github.com/platinasystems/dprepeater/internal/regs"
)

type rig struct {
	tr   *Trainer
	tx   *regs.Sim
	gt   *regs.Sim
	sink *aux.Mem
}

func newRig(c dpcd.Capability) *rig {
	r := &rig{
		tx:   regs.NewSim(),
		gt:   regs.NewSim(),
		sink: aux.NewSink(c, nil),
	}
	clk := regs.NewSim()
	clk.Set(core.ClkWizStatus, core.ClkWizStatusLock)
	r.tx.Set(core.TxInterruptSigState, core.SigHpdState)
	r.tr = New(core.Tx{File: r.tx}, r.sink, &phy.Regs{File: r.gt},
		core.ClkWiz{File: clk})
	r.tr.Timing = Timing{}
	r.tr.Lock = poll.Bound{Timeout: time.Millisecond}
	return r
}

var ctx = context.Background()

func TestTrain(t *testing.T) {
	r := newRig(dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4})
	res, err := r.tr.Train(ctx, dpcd.Rate540, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ok() || res.Rate != dpcd.Rate540 || res.Lanes != 4 {
		t.Error("wrong:", res)
	}
	if rate, lanes := r.tr.Tx.Link(); rate != dpcd.Rate540 || lanes != 4 {
		t.Error("core not programmed:", rate, lanes)
	}
	if v := r.sink.Get(dpcd.SetPower); v != dpcd.PowerD0 {
		t.Error("sink not woken:", v)
	}
	if v := r.sink.Get(dpcd.TrainingPatternSet); v != dpcd.PatternOff {
		t.Error("pattern left on:", v)
	}
	if m := r.tx.Read32(core.TxInterruptMask); m != core.TxIntrMaskNone {
		t.Errorf("interrupts still masked: %#x", m)
	}
	en := r.tx.WritesTo(core.TxEnable)
	if len(en) != 2 || en[0] != 0 || en[1] != 1 {
		t.Error("tx not reset:", en)
	}
}

func TestTrainTwoLanesIgnoresOthers(t *testing.T) {
	r := newRig(dpcd.Capability{MaxRate: dpcd.Rate270, MaxLanes: 2})
	res, err := r.tr.Train(ctx, dpcd.Rate270, 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Lane23 != 0 || !res.Ok() {
		t.Error("wrong:", res)
	}
}

func TestTrainFollowsAdjust(t *testing.T) {
	r := newRig(dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 1})
	// clock recovery reports failure once, asking for swing 2, pre 1
	r.sink.Set(dpcd.AdjustRequest01, 2|1<<2)
	reads := 0
	r.sink.Fail = func(op string, addr uint32) error {
		if op == "read" && addr == dpcd.Lane01Status {
			reads++
			switch reads {
			case 1:
				r.sink.Set(dpcd.Lane01Status, 0)
			case 2:
				r.sink.Set(dpcd.Lane01Status, dpcd.LaneCrDone)
			}
		}
		return nil
	}
	if _, err := r.tr.Train(ctx, dpcd.Rate540, 1); err != nil {
		t.Fatal(err)
	}
	if v := r.sink.Get(dpcd.TrainingLane0Set); v != dpcd.LaneSet(2, 1) {
		t.Errorf("wrong lane set: %#x", v)
	}
	drv := r.gt.Read32(phy.TxDriver)
	if drv&phy.DriverSwingMask != phy.SwingCodes[2] {
		t.Errorf("wrong swing: %#x", drv)
	}
}

func TestTrainLinkDown(t *testing.T) {
	r := newRig(dpcd.Capability{MaxRate: dpcd.Rate270, MaxLanes: 4})
	res, err := r.tr.Train(ctx, dpcd.Rate540, 4)
	if errors.Cause(err) != ErrLinkDown {
		t.Fatal("wrong:", err)
	}
	if res.Ok() {
		t.Error("failed result ok")
	}
	// one reset, two attempts
	if n := len(r.tx.WritesTo(core.TxLinkBwSet)); n != 2 {
		t.Error("wrong attempts:", n)
	}
	if m := r.tx.Read32(core.TxInterruptMask); m != core.TxIntrMaskNone {
		t.Errorf("interrupts still masked: %#x", m)
	}
}

func TestTrainAuxFailure(t *testing.T) {
	r := newRig(dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4})
	r.sink.Fail = func(op string, addr uint32) error {
		if op == "write" && addr == dpcd.LinkBwSet {
			return aux.ErrNoReply
		}
		return nil
	}
	_, err := r.tr.Train(ctx, dpcd.Rate540, 4)
	if errors.Cause(err) != ErrLinkDown {
		t.Fatal("wrong:", err)
	}
	if n := len(r.tx.WritesTo(core.TxLinkBwSet)); n != 2 {
		t.Error("wrong attempts:", n)
	}
	if m := r.tx.Read32(core.TxInterruptMask); m != core.TxIntrMaskNone {
		t.Errorf("interrupts still masked: %#x", m)
	}
}

func TestTrainSinkAbsent(t *testing.T) {
	r := newRig(dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4})
	r.tx.Set(core.TxInterruptSigState, 0)
	if _, err := r.tr.Train(ctx, dpcd.Rate540, 4); err != ErrSinkAbsent {
		t.Error("wrong:", err)
	}
	if m := r.tx.Read32(core.TxInterruptMask); m != core.TxIntrMaskNone {
		t.Errorf("interrupts still masked: %#x", m)
	}
}

func TestCheckStatus(t *testing.T) {
	r := newRig(dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 2})
	if _, err := r.tr.Train(ctx, dpcd.Rate540, 2); err != nil {
		t.Fatal(err)
	}
	if err := r.tr.CheckStatus(ctx, 2); err != nil {
		t.Error(err)
	}
	r.sink.Set(dpcd.LaneAlignStatus, 0)
	if err := r.tr.CheckStatus(ctx, 2); errors.Cause(err) != ErrLinkDown {
		t.Error("wrong:", err)
	}
}
