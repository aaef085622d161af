// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package board

import (
	"context"
	"testing"

	"github.com/platinasystems/dprepeater/internal/acr"
	"github.com/platinasystems/dprepeater/internal/config"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/hotplug"
	"github.com/platinasystems/dprepeater/internal/msa"
	"github.com/platinasystems/dprepeater/internal/passthrough"
	"github.com/platinasystems/dprepeater/internal/sideband"
	"periph.io/x/conn/v3/physic"
)

var ctx = context.Background()

func newBoard() (*Board, *Sim) {
	c := config.Default()
	c.Policy = acr.Proceed
	b, s := NewSim(c, DefaultSink)
	b.Fast()
	b.Start()
	return b, s
}

func (b *Board) tick(n int) {
	for i := 0; i < n; i++ {
		b.Watcher.Once()
		b.Loop.Tick(ctx)
	}
}

// streaming plugs the sink, trains the RX with 1080p60 and lets the
// stream settle.
func streaming(t *testing.T) (*Board, *Sim) {
	b, s := newBoard()
	s.Plug(true)
	b.tick(1)
	if st := b.Hotplug.State(); st != hotplug.Trained {
		t.Fatal("tx not trained:", st)
	}
	s.Source(msa.FHD60)
	b.tick(1)
	for i := uint32(0); i <= b.Loop.VBlankWait; i++ {
		s.RaiseRx(core.RxIntrVBlank)
		b.Watcher.Once()
	}
	b.tick(1)
	if st := b.Sync.State(); st != passthrough.Streaming {
		t.Fatal("not streaming:", st)
	}
	return b, s
}

func TestPassThrough(t *testing.T) {
	b, s := streaming(t)
	if m := b.Hotplug.Mode(); m.HActive != 1920 || m.VActive != 1080 {
		t.Error("wrong sink mode:", m)
	}
	if d := b.Sync.Decision(); d.Rate != dpcd.Rate270 || d.Lanes != 4 {
		t.Error("wrong decision:", d)
	}
	if v := s.Tx.Read32(core.TxMsaHRes); v != 1920 {
		t.Error("wrong tx width:", v)
	}
	if s.Tx.Read32(core.TxEnableMainStream) != 1 {
		t.Error("main stream off")
	}
	if b.Loop.Pending() {
		t.Error("restart still pending")
	}
}

func TestAudio(t *testing.T) {
	b, s := streaming(t)
	s.Audio(2982, 32768)
	b.tick(701)
	if b.Acr.State().Started {
		t.Fatal("started early")
	}
	b.tick(1)
	st := b.Acr.State()
	if !st.Started || st.LockedFs != acr.Fs48000 {
		t.Fatal("wrong:", st)
	}
	if !b.Tx.AudioOn() {
		t.Error("tx audio off")
	}
	if _, out, _ := b.Clock.(*sideband.Si).Current(); out != 512*48*physic.KiloHertz {
		t.Error("wrong master clock:", out)
	}
}

func TestDisconnectAndReconnect(t *testing.T) {
	b, s := streaming(t)
	s.Plug(false)
	b.tick(1)
	if st := b.Hotplug.State(); st != hotplug.Disconnected {
		t.Error("wrong:", st)
	}
	if st := b.Sync.State(); st != passthrough.FormatKnown {
		t.Error("wrong:", st)
	}
	if s.Tx.Read32(core.TxEnable) != 0 {
		t.Error("tx enabled")
	}
	if _, out, _ := b.Clock.(*sideband.Si).Current(); out != sideband.FreeRunOut {
		t.Error("clock not free running:", out)
	}
	s.Plug(true)
	b.tick(1)
	if st := b.Sync.State(); st != passthrough.Streaming {
		t.Error("not restarted:", st)
	}
}

func TestPulseRetrains(t *testing.T) {
	b, s := streaming(t)
	s.Sink.Set(dpcd.Lane23Status, 0)
	s.RaiseTx(core.TxIntrHpdPulse)
	b.tick(1)
	if st := b.Sync.State(); st != passthrough.Streaming {
		t.Error("wrong:", st)
	}
	if v := s.Sink.Get(dpcd.Lane23Status); v != 0x77 {
		t.Errorf("not retrained: %#x", v)
	}
	if b.Tx.InterruptMask()&core.TxIntrHpdPulse != 0 {
		t.Error("pulse left masked")
	}
}

func TestPulseDroppedWithoutStream(t *testing.T) {
	b, s := newBoard()
	s.Plug(true)
	b.tick(1)
	n := len(s.Tx.WritesTo(core.TxEnable))
	s.RaiseTx(core.TxIntrHpdPulse)
	b.tick(1)
	if m := len(s.Tx.WritesTo(core.TxEnable)); m != n {
		t.Error("retrained without a stream")
	}
	if b.Tx.InterruptMask()&core.TxIntrHpdPulse != 0 {
		t.Error("pulse left masked")
	}
}

func TestRxUnplug(t *testing.T) {
	b, s := streaming(t)
	s.RaiseRx(core.RxIntrUnplug)
	b.tick(1)
	if st := b.Sync.State(); st != passthrough.AwaitingRxTraining {
		t.Error("wrong:", st)
	}
	if s.Tx.Read32(core.TxEnableMainStream) != 0 {
		t.Error("main stream on")
	}
	if m := s.Acr.Read32(core.AcrMode); m != core.AcrModeStream {
		t.Error("wrong acr mode:", m)
	}
	// the RX comes back
	s.Source(msa.FHD60)
	b.tick(1)
	for i := uint32(0); i <= b.Loop.VBlankWait; i++ {
		s.RaiseRx(core.RxIntrVBlank)
		b.Watcher.Once()
	}
	b.tick(1)
	if st := b.Sync.State(); st != passthrough.Streaming {
		t.Error("not restarted:", st)
	}
}
