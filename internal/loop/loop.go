// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package loop is the control loop. Each tick drains the event flags and
// runs, in this order, hot-plug handling, RX tracking and TX tracking.
package loop

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/acr"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/event"
	"github.com/platinasystems/dprepeater/internal/hotplug"
	"github.com/platinasystems/dprepeater/internal/msa"
	"github.com/platinasystems/dprepeater/internal/passthrough"
	"github.com/platinasystems/log"
)

type Loop struct {
	Events  *event.Events
	Tx      core.Tx
	Rx      core.Rx
	Hotplug *hotplug.Machine
	Sync    *passthrough.Synchronizer
	Acr     *acr.Controller
	// VBlankWait is the RX vblank count after which the stream is
	// taken as settled.
	VBlankWait uint32
	// Audio enables audio clock recovery.
	Audio bool

	// restart asks TX tracking to bring up the stream.
	restart bool

	mu    sync.Mutex
	calls []func()
}

// Do queues f to run on the loop at the start of the next tick. Other
// goroutines use it to read or change controller state.
func (l *Loop) Do(f func()) {
	l.mu.Lock()
	l.calls = append(l.calls, f)
	l.mu.Unlock()
}

func (l *Loop) drain() {
	l.mu.Lock()
	calls := l.calls
	l.calls = nil
	l.mu.Unlock()
	for _, f := range calls {
		f()
	}
}

// Run ticks every period until the context is done.
func (l *Loop) Run(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one pass. Component errors are logged; the loop carries on
// with the stream muted.
func (l *Loop) Tick(ctx context.Context) {
	l.drain()
	l.hotplug(ctx)
	l.rx(ctx)
	l.tx(ctx)
}

func (l *Loop) hotplug(ctx context.Context) {
	e := l.Events
	if e.TxDisconnect.Take() {
		log.Print("tx sink disconnected")
		l.Sync.Stop()
		l.Hotplug.Disconnect()
	}
	if !e.TxConnect.Take() {
		return
	}
	log.Print("tx sink connected")
	live := l.Sync.State() >= passthrough.FormatKnown
	if live {
		l.Sync.Stop()
		l.Acr.Reset()
		e.ResetAudioCounts()
	}
	if err := l.Hotplug.Connect(ctx); err != nil {
		log.Print("warning: tx connect: ", err)
	}
	if live {
		l.restart = true
	}
}

func (l *Loop) rx(ctx context.Context) {
	e := l.Events
	if e.RxUnplug.Take() {
		log.Print("rx unplugged")
		l.await()
		l.Acr.Unplug()
		l.restart = false
	}
	if e.RxTrainingLost.Take() {
		log.Print("rx training lost")
		l.await()
		l.Acr.Reset()
		l.restart = false
	}
	if e.RxBwChange.Take() {
		log.Print("rx bandwidth change")
		l.Acr.Reset()
	}
	if e.RxNoVideo.Take() {
		l.await()
		l.Tx.Enable(false)
		l.Acr.Reset()
		l.restart = false
	}
	if !e.RxLinkUp.Get() {
		if l.Sync.State() == passthrough.Idle {
			l.await()
		}
		return
	}
	if l.Sync.State() <= passthrough.AwaitingRxTraining &&
		e.RxVBlank.Load() > l.VBlankWait {
		l.detect(ctx)
	}
	if l.Sync.Streaming() {
		if err := l.Sync.CheckColor(ctx, e.RxLinkUp.Get); err != nil {
			log.Print("warning: rx color change: ", err)
		}
	}
	if l.Audio {
		l.Acr.Track(l.Sync.Streaming())
	}
}

// await drops the stream and counts vblanks again.
func (l *Loop) await() {
	l.Sync.Await()
	l.Rx.EnableInterrupts(core.RxIntrVBlank | core.RxIntrInfoPkt |
		core.RxIntrExtPkt)
}

// detect reads the settled RX stream and asks for the TX to follow.
func (l *Loop) detect(ctx context.Context) {
	e := l.Events
	e.RxVBlank.Reset()
	l.Acr.Rearm()
	e.ResetAudioCounts()
	_, err := l.Sync.Detect(ctx)
	if errors.Cause(err) == msa.ErrUnstable {
		log.Print("warning: rx ", err)
		return
	}
	if err != nil {
		log.Print("warning: rx detect: ", err)
		return
	}
	l.Rx.DisableInterrupts(core.RxIntrVBlank)
	l.Rx.EnableInterrupts(core.RxIntrNoVideo)
	l.restart = true
}

func (l *Loop) tx(ctx context.Context) {
	e := l.Events
	if e.TxNoVideo.Take() {
		l.Sync.Stop()
		l.Tx.Enable(false)
		l.Acr.Reset()
	}
	if l.restart && l.Hotplug.State() != hotplug.Disconnected &&
		l.Sync.State() == passthrough.FormatKnown {
		l.restart = false
		if err := l.Sync.Reconcile(ctx); err != nil {
			log.Print("warning: tx: ", err)
		}
	}
	if e.TxPulse.Take() {
		if e.RxLinkUp.Get() && l.Sync.Streaming() {
			if err := l.Hotplug.Pulse(ctx); err != nil {
				log.Print("warning: tx pulse: ", err)
			}
		} else {
			l.Tx.UnmaskInterrupts(core.TxIntrHpdPulse)
		}
	}
}

// Pending reports whether the TX is waiting to follow the RX stream.
func (l *Loop) Pending() bool { return l.restart }
