// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package board

import (
	"sync"

	"github.com/platinasystems/dprepeater/internal/audpins"
	"github.com/platinasystems/dprepeater/internal/config"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/dpaux"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/edid"
	"github.com/platinasystems/dprepeater/internal/fb"
	"github.com/platinasystems/dprepeater/internal/msa"
	"github.com/platinasystems/dprepeater/internal/phy"
	"github.com/platinasystems/dprepeater/internal/regs"
	"github.com/platinasystems/dprepeater/internal/sideband"
)

// Sim is simulated hardware: the cores, a sink on the TX link and a source
// on the RX link.
type Sim struct {
	Tx, Rx, Acr, ClkWiz, Phy, Writer, Reader, Gpio *regs.Sim

	Sink  *aux.Mem
	Clock *sideband.Regs

	mu     sync.Mutex
	txIntr uint32
	rxIntr uint32
}

// DefaultSink is a 5.4 Gbps by 4 lane sink preferring 1080p60.
var DefaultSink = dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4}

// NewSim returns a Board on simulated hardware with sink c unplugged.
func NewSim(cfg config.Config, c dpcd.Capability) (*Board, *Sim) {
	s := &Sim{
		Tx:     regs.NewSim(),
		Rx:     regs.NewSim(),
		Acr:    regs.NewSim(),
		ClkWiz: regs.NewSim(),
		Phy:    regs.NewSim(),
		Writer: regs.NewSim(),
		Reader: regs.NewSim(),
		Gpio:   regs.NewSim(),
		Sink:   aux.NewSink(c, edid.Make(edid.FHD60, 8, 0)),
		Clock:  new(sideband.Regs),
	}
	s.Sink.Attach(s.Tx)
	phy.Attach(s.Phy)
	fb.Attach(s.Writer)
	fb.Attach(s.Reader)
	s.ClkWiz.Set(core.ClkWizStatus, core.ClkWizStatusLock)
	// interrupt status clears on read
	s.Tx.OnRead(core.TxInterruptStatus, func() uint32 {
		s.mu.Lock()
		defer s.mu.Unlock()
		v := s.txIntr
		s.txIntr = 0
		return v
	})
	s.Rx.OnRead(core.RxInterruptCause, func() uint32 {
		s.mu.Lock()
		defer s.mu.Unlock()
		v := s.rxIntr
		s.rxIntr = 0
		return v
	})
	f := Files{
		Tx:     s.Tx,
		Rx:     s.Rx,
		Acr:    s.Acr,
		ClkWiz: s.ClkWiz,
		Phy:    s.Phy,
		Writer: s.Writer,
		Reader: s.Reader,
		Gpio:   s.Gpio,
	}
	clk := &sideband.Si{Bus: s.Clock}
	return New(f, cfg, clk, audpins.Axi{File: s.Gpio}), s
}

// RaiseTx latches TX interrupt status bits.
func (s *Sim) RaiseTx(bits uint32) {
	s.mu.Lock()
	s.txIntr |= bits
	s.mu.Unlock()
}

// RaiseRx latches RX interrupt cause bits.
func (s *Sim) RaiseRx(bits uint32) {
	s.mu.Lock()
	s.rxIntr |= bits
	s.mu.Unlock()
}

// Plug connects or disconnects the sink.
func (s *Sim) Plug(in bool) {
	sig := s.Tx.Read32(core.TxInterruptSigState)
	if in {
		sig |= core.SigHpdState
	} else {
		sig &^= core.SigHpdState
	}
	s.Tx.Set(core.TxInterruptSigState, sig)
	s.RaiseTx(core.TxIntrHpdEvent)
}

// Source trains the RX link with stream m.
func (s *Sim) Source(m msa.MSA) {
	msa.Source(s.Rx, m)
	s.RaiseRx(core.RxIntrTrainingDone)
}

// Audio sets the RX audio M and N.
func (s *Sim) Audio(maud, naud uint32) {
	s.Rx.Set(core.RxAudioMAud, maud)
	s.Rx.Set(core.RxAudioNAud, naud)
}
