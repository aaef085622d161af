// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/poll"
	"github.com/platinasystems/dprepeater/internal/regs"
	"periph.io/x/conn/v3/physic"
)

func TestLookup(t *testing.T) {
	for _, x := range []struct {
		rate dpcd.LinkRate
		pll  PllKind
		want Config
	}{
		{dpcd.Rate270, CPLL, Table[1]},
		{dpcd.Rate810, QPLL, Table[6]},
		{dpcd.Rate810, CPLL, Table[6]},
		{0x07, CPLL, Default},
	} {
		if c := Lookup(x.rate, x.pll); c != x.want {
			t.Error(x.rate, x.pll, "wrong:", c)
		}
	}
}

func TestLineRate(t *testing.T) {
	c := Lookup(dpcd.Rate810, QPLL)
	if f := c.LineRate(); f != 8100*physic.MegaHertz {
		t.Error("wrong:", f)
	}
}

func newSeq() (*Sequencer, *regs.Sim) {
	s := regs.NewSim()
	Attach(s)
	q := NewSequencer(&Regs{File: s}, QPLL)
	q.Wait = poll.Bound{Timeout: time.Millisecond}
	q.ClkInitMin = time.Microsecond
	q.ClkInitMax = time.Microsecond
	return q, s
}

func TestConfigure(t *testing.T) {
	q, s := newSeq()
	if err := q.Configure(context.Background(), dpcd.Rate540); err != nil {
		t.Fatal(err)
	}
	if v := s.Read32(LineRate); v != uint32(dpcd.Rate540) {
		t.Error("wrong line rate:", v)
	}
	if v := s.Read32(RefClkFreq); v != 270000 {
		t.Error("wrong refclk:", v)
	}
	resets := s.WritesTo(PllReset)
	if len(resets) != 2 || resets[0] != PllResetQpll || resets[1] != 0 {
		t.Error("wrong resets:", resets)
	}
	if c := q.Current(); c.Rate != dpcd.Rate540 || c.Pll != QPLL {
		t.Error("wrong:", c)
	}
}

func TestConfigureBusyRetries(t *testing.T) {
	q, s := newSeq()
	busy := 3
	s.OnRead(ClkInitStatus, func() uint32 {
		if busy > 0 {
			busy--
			return ClkInitBusy
		}
		return 0
	})
	if err := q.Configure(context.Background(), dpcd.Rate270); err != nil {
		t.Fatal(err)
	}
	if busy != 0 {
		t.Error("busy not retried")
	}
}

func TestConfigureBusyCeiling(t *testing.T) {
	q, s := newSeq()
	q.ClkInitRetries = 4
	s.Set(ClkInitStatus, ClkInitBusy)
	err := q.Configure(context.Background(), dpcd.Rate270)
	e, ok := err.(*Error)
	if !ok || e.Step != "clock init" || errors.Cause(err) != ErrTimeout {
		t.Error("wrong:", err)
	}
}

func TestConfigureLockTimeout(t *testing.T) {
	s := regs.NewSim()
	q := NewSequencer(&Regs{File: s}, CPLL)
	q.Wait = poll.Bound{Timeout: time.Millisecond}
	s.Set(InitStatus, InitPmaResetDone)
	err := q.Configure(context.Background(), dpcd.Rate162)
	if e, ok := err.(*Error); !ok || e.Step != "pll lock" {
		t.Error("wrong:", err)
	}
	if errors.Cause(err) != ErrTimeout {
		t.Error("wrong cause:", err)
	}
}

func TestDriveLevels(t *testing.T) {
	s := regs.NewSim()
	r := &Regs{File: s}
	r.SetVoltageSwing(1, 2)
	r.SetPreemphasis(1, 1)
	if v := s.Read32(TxDriver + 4); v != 0xa|0x0e<<4 {
		t.Errorf("wrong: %#x", v)
	}
	Quiesce(r, 4)
	for i := uint32(0); i < 4; i++ {
		if v := s.Read32(TxDriver + 4*i); v != 0 {
			t.Errorf("lane %d: %#x", i, v)
		}
	}
}
