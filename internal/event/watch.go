// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package event

import (
	"context"
	"time"

	"github.com/platinasystems/dprepeater/internal/core"
)

// Watcher decodes the cores' interrupt status into Events. Its handlers
// are limited to latching state and interrupt mask updates, which core
// serializes with the loop's.
type Watcher struct {
	Tx     core.Tx
	Rx     core.Rx
	Events *Events
}

// Watch polls status every interval until the context is done.
func (w *Watcher) Watch(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Once()
		}
	}
}

// Once services one round of pending interrupts.
func (w *Watcher) Once() {
	if st := w.Tx.Status() &^ w.Tx.InterruptMask(); st != 0 {
		w.tx(st)
	}
	if c := w.Rx.Cause() &^ w.Rx.Read32(core.RxInterruptMask); c != 0 {
		w.rx(c)
	}
}

func (w *Watcher) tx(st uint32) {
	e := w.Events
	if st&core.TxIntrHpdEvent != 0 {
		if w.Tx.SinkPresent() {
			e.TxConnect.Set()
		} else {
			e.TxDisconnect.Set()
		}
	}
	if st&(core.TxIntrHpdPulse|core.TxIntrHpdIrq) != 0 {
		// some sinks pulse continuously; unmasked after handling
		w.Tx.MaskInterrupts(core.TxIntrHpdPulse)
		e.TxPulse.Set()
	}
	if st&core.TxIntrNoVideo != 0 {
		e.TxNoVideo.Set()
	}
}

func (w *Watcher) rx(c uint32) {
	e := w.Events
	if c&core.RxIntrTrainingDone != 0 {
		e.RxLinkUp.Set(true)
		e.RxVBlank.Reset()
	}
	if c&core.RxIntrVBlank != 0 {
		e.RxVBlank.Inc()
	}
	if c&core.RxIntrNoVideo != 0 {
		e.RxVBlank.Reset()
		e.ResetAudioCounts()
		w.Rx.EnableInterrupts(core.RxIntrVBlank | core.RxIntrInfoPkt |
			core.RxIntrExtPkt)
		w.Rx.DisableInterrupts(core.RxIntrNoVideo)
		e.RxNoVideo.Set()
	}
	if c&core.RxIntrTrainingLost != 0 {
		w.Tx.SetInterruptMask(core.TxIntrMaskAll)
		e.RxLinkUp.Set(false)
		e.RxVBlank.Reset()
		e.ResetAudioCounts()
		e.RxTrainingLost.Set()
	}
	if c&core.RxIntrBwChange != 0 {
		e.RxLinkUp.Set(false)
		e.RxVBlank.Reset()
		e.RxBwChange.Set()
		e.RxNoVideo.Set()
	}
	if c&core.RxIntrUnplug != 0 {
		w.Tx.SetInterruptMask(core.TxIntrMaskAll)
		e.RxLinkUp.Set(false)
		e.RxVBlank.Reset()
		e.ResetAudioCounts()
		e.RxUnplug.Set()
		e.RxNoVideo.Set()
	}
	if c&core.RxIntrInfoPkt != 0 {
		e.InfoFrames.Inc()
		e.Packets.Inc()
	}
	if c&core.RxIntrExtPkt != 0 {
		e.Packets.Inc()
	}
}
