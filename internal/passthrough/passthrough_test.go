// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package passthrough

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/caps"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/downshift"
	"github.com/platinasystems/dprepeater/internal/dpaux"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/fb"
	"github.com/platinasystems/dprepeater/internal/msa"
	"github.com/platinasystems/dprepeater/internal/phy"
	"github.com/platinasystems/dprepeater/internal/poll"
	"github.com/platinasystems/dprepeater/internal/regs"
	"github.com/platinasystems/dprepeater/internal/train"
)

var ctx = context.Background()

type fakeAudio struct{ mutes int }

func (a *fakeAudio) Mute() { a.mutes++ }

// bwLog records every link BW written to the sink.
type bwLog struct {
	*aux.Mem
	bw []uint8
}

func (l *bwLog) Write(addr uint32, b []byte) error {
	if addr == dpcd.LinkBwSet && len(b) > 0 {
		l.bw = append(l.bw, b[0])
	}
	return l.Mem.Write(addr, b)
}

type rig struct {
	s              *Synchronizer
	rx, tx, wr, rd *regs.Sim
	sink           *bwLog
	audio          *fakeAudio
}

func newRig(c dpcd.Capability, m msa.MSA) *rig {
	r := &rig{
		rx:    regs.NewSim(),
		tx:    regs.NewSim(),
		wr:    regs.NewSim(),
		rd:    regs.NewSim(),
		sink:  &bwLog{Mem: aux.NewSink(c, nil)},
		audio: new(fakeAudio),
	}
	msa.Source(r.rx, m)
	r.tx.Set(core.TxInterruptSigState, core.SigHpdState)
	fb.Attach(r.wr)
	fb.Attach(r.rd)
	gt := regs.NewSim()
	phy.Attach(gt)
	clk := regs.NewSim()
	clk.Set(core.ClkWizStatus, core.ClkWizStatusLock)

	tx := core.Tx{File: r.tx}
	d := &phy.Regs{File: gt}
	det := msa.NewDetector(core.Rx{File: r.rx}, fb.NewRegs(r.wr, 0),
		func() bool { return true })
	det.Stable = poll.Bound{Timeout: time.Millisecond}
	seq := phy.NewSequencer(d, phy.CPLL)
	seq.Wait = poll.Bound{Timeout: time.Millisecond}
	t := train.New(tx, r.sink, d, core.ClkWiz{File: clk})
	t.Timing = train.Timing{}
	t.Lock = poll.Bound{Timeout: time.Millisecond}
	r.s = New(tx, r.sink, &caps.Store{Aux: r.sink}, det,
		fb.NewRegs(r.rd, 0x10000000), seq, t, r.audio)
	r.s.Settle = poll.Bound{}
	return r
}

func (r *rig) start(t *testing.T) {
	if _, err := r.s.Detect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.s.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}
}

var sink54 = dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4}

func TestReconcile(t *testing.T) {
	r := newRig(sink54, msa.FHD60)
	r.start(t)
	if st := r.s.State(); st != Streaming {
		t.Fatal("wrong:", st)
	}
	if d := r.s.Decision(); d.Kind != downshift.None ||
		d.Rate != dpcd.Rate270 || d.Lanes != 4 {
		t.Error("wrong decision:", d)
	}
	if bw := r.sink.bw; len(bw) < 2 || bw[0] != uint8(dpcd.Rate162) ||
		bw[len(bw)-1] != uint8(dpcd.Rate270) {
		t.Errorf("wrong link writes: %#x", bw)
	}
	if v := r.tx.Read32(core.TxMsaHRes); v != 1920 {
		t.Error("tx msa not programmed:", v)
	}
	if r.tx.Read32(core.TxEnableMainStream) != 1 {
		t.Error("main stream off")
	}
	if v := r.rd.Read32(fb.StrideR); v != 5760 {
		t.Error("wrong reader stride:", v)
	}
	if r.rd.Read32(fb.ApCtrl)&fb.ApAutoRestart == 0 {
		t.Error("reader stopped")
	}
	if rate, lanes, _ := r.s.Caps.Run(); rate != dpcd.Rate270 || lanes != 4 {
		t.Error("wrong run:", rate, lanes)
	}
}

// An 8K stream to a sink without 8.1 support goes out as the top left
// quadrant at 3840x2160@30 on 5.4 Gbps by 4 lanes.
func TestReconcileQuadrant(t *testing.T) {
	m := msa.FHD60
	m.HActive, m.VActive = 7680, 4320
	m.HTotal, m.VTotal = 7760, 4400
	m.Misc0 |= msa.Misc0SyncClock
	m.Rate = dpcd.Rate810
	r := newRig(sink54, m)
	r.start(t)
	d := r.s.Decision()
	if d.Kind != downshift.Quadrant || d.Rate != dpcd.Rate540 ||
		d.Lanes != 4 {
		t.Fatal("wrong:", d)
	}
	if v := r.tx.Read32(core.TxMsaHRes); v != 3840 {
		t.Error("wrong tx width:", v)
	}
	if v := r.tx.Read32(core.TxMsaMisc0); v&msa.Misc0SyncClock != 0 {
		t.Errorf("sync clock bit kept: %#x", v)
	}
	if v := r.rd.Read32(fb.Width); v != 3840 {
		t.Error("wrong reader width:", v)
	}
	if v := r.rd.Read32(fb.StrideR); v != 7680*3 {
		t.Error("reader not on rx stride:", v)
	}
}

func TestReconcileCannotStart(t *testing.T) {
	r := newRig(sink54, msa.FHD60)
	r.tx.Set(core.TxInterruptSigState, 0)
	r.s.Detect(ctx)
	err := r.s.Reconcile(ctx)
	if errors.Cause(err) != ErrCannotStart {
		t.Fatal("wrong:", err)
	}
	if st := r.s.State(); st != FormatKnown {
		t.Error("wrong state:", st)
	}
	if r.tx.Read32(core.TxEnableMainStream) != 0 || r.audio.mutes == 0 {
		t.Error("not muted")
	}
}

func TestReconcileNeedsFormat(t *testing.T) {
	r := newRig(sink54, msa.FHD60)
	if err := r.s.Reconcile(ctx); err == nil {
		t.Error("reconciled without a format")
	}
}

func TestPulseAfterBadStart(t *testing.T) {
	r := newRig(sink54, msa.FHD60)
	bad := true
	r.tx.OnWrite(core.TxEnableMainStream, func(v uint32) {
		if v == 1 && bad {
			bad = false
			r.sink.Set(dpcd.Lane01Status, 0)
		}
	})
	pulses := 0
	r.s.Pulse = func(context.Context) error {
		pulses++
		return nil
	}
	r.start(t)
	if pulses != 1 {
		t.Error("wrong pulses:", pulses)
	}
	if st := r.s.State(); st != Streaming {
		t.Error("wrong:", st)
	}
}

func TestCheckColor(t *testing.T) {
	r := newRig(sink54, msa.FHD60)
	r.start(t)
	up := func() bool { return true }
	if err := r.s.CheckColor(ctx, up); err != nil {
		t.Fatal(err)
	}
	r.rx.Write32(core.RxMsaMisc0, msa.Misc0Of(msa.YCbCr444, 8))
	if err := r.s.CheckColor(ctx, up); err != nil {
		t.Fatal(err)
	}
	if m := r.s.RX(); m.Color != msa.YCbCr444 {
		t.Error("format not re-read:", m)
	}
	if st := r.s.State(); st != Streaming {
		t.Error("wrong:", st)
	}
	if v := r.rd.Read32(fb.FormatR); v != uint32(fb.YUV8) {
		t.Error("wrong reader format:", v)
	}
}

func TestCheckColorLinkDrops(t *testing.T) {
	r := newRig(sink54, msa.FHD60)
	r.start(t)
	r.rx.Write32(core.RxMsaMisc1, msa.Misc1VSC)
	if err := r.s.CheckColor(ctx, func() bool { return false }); err != nil {
		t.Fatal(err)
	}
	if st := r.s.State(); st != AwaitingRxTraining {
		t.Error("wrong:", st)
	}
}

func TestRestore(t *testing.T) {
	r := newRig(sink54, msa.FHD60)
	r.start(t)
	d := r.s.Decision()
	r.tx.Write32(core.TxEnableMainStream, 0)
	r.s.Restore(train.Result{Rate: d.Rate, Lanes: d.Lanes})
	if r.tx.Read32(core.TxEnableMainStream) != 1 {
		t.Error("not restored")
	}
	r.s.Restore(train.Result{Rate: dpcd.Rate162, Lanes: 1})
	if st := r.s.State(); st != FormatKnown {
		t.Error("wrong:", st)
	}
}
