// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package msa

import (
	"context"
	"testing"
	"time"

	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/fb"
	"github.com/platinasystems/dprepeater/internal/poll"
	"github.com/platinasystems/dprepeater/internal/regs"
)

func TestSnap(t *testing.T) {
	for _, x := range []struct{ in, want int }{
		{23, 23}, {24, 24}, {25, 25}, {26, 26}, {29, 30}, {31, 30},
		{32, 32}, {48, 48}, {49, 50}, {51, 50}, {58, 58}, {59, 60}, {61, 60}, {62, 62},
		{74, 75}, {76, 75}, {77, 77}, {119, 120}, {121, 120}, {144, 144},
	} {
		if got := Snap(x.in); got != x.want {
			t.Error(x.in, "wrong:", got)
		}
	}
}

func TestFrameRate(t *testing.T) {
	// 59.94 rounds up to 60
	if fr := FrameRate(148352, 2200, 1125); fr != 60 {
		t.Error("wrong:", fr)
	}
	if fr := FrameRate(297000, 4400, 2250); fr != 30 {
		t.Error("wrong:", fr)
	}
	if fr := FrameRate(1000, 0, 0); fr != 0 {
		t.Error("wrong:", fr)
	}
}

func TestPixelsPerClock(t *testing.T) {
	for _, x := range []struct {
		khz   uint64
		lanes dpcd.LaneCount
		want  int
	}{
		{594000, 4, 4},
		{594000, 2, 2},
		{594000, 1, 1},
		{297000, 4, 2},
		{148500, 4, 1},
	} {
		if got := PixelsPerClock(x.khz, x.lanes); got != x.want {
			t.Error(x.khz, x.lanes, "wrong:", got)
		}
	}
}

func TestMisc0(t *testing.T) {
	for _, c := range []Color{RGB, YCbCr422, YCbCr444} {
		for _, bpc := range []int{6, 8, 10, 12, 16} {
			m := Misc0Of(c, bpc)
			if ColorOf(m) != c || BpcOf(m) != bpc {
				t.Error(c, bpc, "wrong:", ColorOf(m), BpcOf(m))
			}
		}
	}
	if c := ColorOf(0x06); c != Unsupported {
		t.Error("wrong:", c)
	}
}

type fakeWriter struct {
	st      fb.Stream
	running bool
}

func (w *fakeWriter) Configure(s fb.Stream) error        { w.st = s; return nil }
func (w *fakeWriter) Start()                             { w.running = true }
func (w *fakeWriter) Stop()                              { w.running = false }
func (w *fakeWriter) WaitIdle(ctx context.Context) error { return nil }

func TestDetect(t *testing.T) {
	s := regs.NewSim()
	Source(s, FHD60)
	w := new(fakeWriter)
	d := NewDetector(core.Rx{File: s}, w, func() bool { return true })
	m, err := d.Detect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m.FrameRate != 60 || m.PPC != 1 || m.Color != RGB || m.Bpc != 8 {
		t.Error("wrong:", m)
	}
	if m.Rate != dpcd.Rate270 || m.Lanes != 4 {
		t.Error("wrong link:", m.Rate, m.Lanes)
	}
	if !w.running || w.st.Stride != 5760 || w.st.Format != fb.RGB8 {
		t.Error("writer:", w.st)
	}
	if d.ColorChanged(m) {
		t.Error("color changed")
	}
	s.Write32(core.RxMsaMisc1, Misc1VSC)
	if !d.ColorChanged(m) {
		t.Error("vsc change missed")
	}
}

func TestDetectUnstable(t *testing.T) {
	s := regs.NewSim()
	Source(s, FHD60)
	s.Write32(core.RxMsaVHeight, 0)
	w := new(fakeWriter)
	d := NewDetector(core.Rx{File: s}, w, nil)
	d.Stable = poll.Bound{Timeout: time.Millisecond}
	m, err := d.Detect(context.Background())
	if err != ErrUnstable {
		t.Error("wrong:", err)
	}
	if m.HActive != 1920 || w.running {
		t.Error("wrong:", m, w.running)
	}
}

func TestDetectLinkLost(t *testing.T) {
	s := regs.NewSim()
	Source(s, FHD60)
	d := NewDetector(core.Rx{File: s}, new(fakeWriter),
		func() bool { return false })
	if _, err := d.Detect(context.Background()); err != ErrLinkLost {
		t.Error("wrong:", err)
	}
}

func TestProgram(t *testing.T) {
	s := regs.NewSim()
	m := FHD60
	m.PPC = 2
	m.HSyncPol, m.VSyncPol = 1, 1
	Program(core.Tx{File: s}, m)
	for off, want := range map[uint32]uint32{
		core.TxMsaHRes:       1920,
		core.TxMsaVTotal:     1125,
		core.TxMsaPolarity:   3,
		core.TxUserPixelWide: 2,
		core.TxMsaMVid:       148500,
		core.TxMsaNVid:       270000,
	} {
		if v := s.Read32(off); v != want {
			t.Errorf("%#x: wrong: %d", off, v)
		}
	}
}
