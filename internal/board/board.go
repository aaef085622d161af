// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package board assembles the controller from the cores' register files,
// the sideband clock and the audio lines.
package board

import (
	"context"
	"time"

	"github.com/platinasystems/dprepeater/internal/acr"
	"github.com/platinasystems/dprepeater/internal/audpins"
	"github.com/platinasystems/dprepeater/internal/caps"
	"github.com/platinasystems/dprepeater/internal/config"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/dpaux"
	"github.com/platinasystems/dprepeater/internal/event"
	"github.com/platinasystems/dprepeater/internal/fb"
	"github.com/platinasystems/dprepeater/internal/hotplug"
	"github.com/platinasystems/dprepeater/internal/loop"
	"github.com/platinasystems/dprepeater/internal/msa"
	"github.com/platinasystems/dprepeater/internal/passthrough"
	"github.com/platinasystems/dprepeater/internal/phy"
	"github.com/platinasystems/dprepeater/internal/regs"
	"github.com/platinasystems/dprepeater/internal/sideband"
	"github.com/platinasystems/dprepeater/internal/train"
	"github.com/platinasystems/log"
)

// Files are the register files of the cores.
type Files struct {
	Tx, Rx, Acr, ClkWiz, Phy, Writer, Reader, Gpio regs.File
}

// Windows splits one mapped region into the cores of layout l.
func Windows(f regs.File, l config.Layout) Files {
	w := func(off uint32) regs.File { return regs.Window{File: f, Base: off} }
	return Files{
		Tx:     w(l.Tx),
		Rx:     w(l.Rx),
		Acr:    w(l.Acr),
		ClkWiz: w(l.ClkWiz),
		Phy:    w(l.Phy),
		Writer: w(l.Writer),
		Reader: w(l.Reader),
		Gpio:   w(l.Gpio),
	}
}

type Board struct {
	Config  config.Config
	Events  *event.Events
	Watcher *event.Watcher
	Tx      core.Tx
	Rx      core.Rx
	Aux     *aux.Tx
	Caps    *caps.Store
	Phy     *phy.Regs
	Seq     *phy.Sequencer
	Trainer *train.Trainer
	Hotplug *hotplug.Machine
	Sync    *passthrough.Synchronizer
	Acr     *acr.Controller
	Loop    *loop.Loop
	Clock   sideband.Clock
}

func New(f Files, c config.Config, clk sideband.Clock,
	lines audpins.Lines) *Board {
	b := &Board{
		Config: c,
		Events: new(event.Events),
		Tx:     core.Tx{File: f.Tx},
		Rx:     core.Rx{File: f.Rx},
		Phy:    &phy.Regs{File: f.Phy},
		Clock:  clk,
	}
	b.Watcher = &event.Watcher{Tx: b.Tx, Rx: b.Rx, Events: b.Events}
	b.Aux = aux.NewTx(b.Tx)
	b.Caps = &caps.Store{Aux: b.Aux, Limit: c.Limit}
	b.Seq = phy.NewSequencer(b.Phy, c.Pll)
	b.Trainer = train.New(b.Tx, b.Aux, b.Phy, core.ClkWiz{File: f.ClkWiz})
	b.Acr = acr.New(b.Rx, b.Tx, core.Acr{File: f.Acr}, clk, lines,
		b.Events)
	b.Acr.Policy = c.Policy
	b.Hotplug = hotplug.New(b.Tx, b.Aux, b.Caps, b.Trainer, b.Seq, b.Acr,
		b.Events)
	det := msa.NewDetector(b.Rx, fb.NewRegs(f.Writer, c.Frames),
		b.Events.RxLinkUp.Get)
	b.Sync = passthrough.New(b.Tx, b.Aux, b.Caps, det,
		fb.NewRegs(f.Reader, c.Frames), b.Seq, b.Trainer, b.Acr)
	b.Sync.Table = c.Table
	b.Sync.Pulse = b.Hotplug.Pulse
	b.Hotplug.OnRetrain = b.Sync.Restore
	b.Loop = &loop.Loop{
		Events:     b.Events,
		Tx:         b.Tx,
		Rx:         b.Rx,
		Hotplug:    b.Hotplug,
		Sync:       b.Sync,
		Acr:        b.Acr,
		VBlankWait: c.VBlankWait,
		Audio:      c.Audio,
	}
	return b
}

// Start brings the cores to their idle state and latches a sink that was
// already plugged.
func (b *Board) Start() {
	b.Tx.SetInterruptMask(core.TxIntrMaskNone)
	b.Rx.EnableInterrupts(core.RxIntrMaskAll)
	b.Acr.Init()
	if err := sideband.FreeRun(b.Clock); err != nil {
		log.Print("warning: sideband clock: ", err)
	}
	if b.Tx.SinkPresent() {
		b.Events.TxConnect.Set()
	}
}

// Run watches interrupts and runs the control loop until the context is
// done.
func (b *Board) Run(ctx context.Context) error {
	go b.Watcher.Watch(ctx, b.Config.Tick)
	return b.Loop.Run(ctx, b.Config.Tick)
}

// Fast drops every settle delay; for simulation.
func (b *Board) Fast() {
	b.Trainer.Timing = train.Timing{}
	b.Trainer.Lock.Timeout = time.Millisecond
	b.Seq.Wait.Timeout = time.Millisecond
	b.Sync.Settle.Timeout = 0
	b.Sync.Detector.Stable.Timeout = time.Millisecond
	b.Aux.Reply.Timeout = time.Millisecond
}
