// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package event carries interrupt state from the interrupt watcher to the
// control loop.
//
// The watcher only sets flags and bumps counters. The loop drains each flag
// with Take, which clears it before the loop acts, so an interrupt raised
// by that action is seen on the next tick rather than lost.
package event

import "sync/atomic"

// Flag is a one-bit latch.
type Flag struct{ v uint32 }

func (f *Flag) Set()       { atomic.StoreUint32(&f.v, 1) }
func (f *Flag) Clear()     { atomic.StoreUint32(&f.v, 0) }
func (f *Flag) Peek() bool { return atomic.LoadUint32(&f.v) != 0 }

// Take returns and clears the flag.
func (f *Flag) Take() bool { return atomic.SwapUint32(&f.v, 0) != 0 }

// Level is a boolean state such as link-up.
type Level struct{ v uint32 }

func (l *Level) Set(b bool) {
	var v uint32
	if b {
		v = 1
	}
	atomic.StoreUint32(&l.v, v)
}

func (l *Level) Get() bool { return atomic.LoadUint32(&l.v) != 0 }

// Counter counts interrupts between loop resets.
type Counter struct{ v uint32 }

func (c *Counter) Inc() uint32  { return atomic.AddUint32(&c.v, 1) }
func (c *Counter) Load() uint32 { return atomic.LoadUint32(&c.v) }
func (c *Counter) Reset()       { atomic.StoreUint32(&c.v, 0) }

// Events is everything the interrupt side reports.
type Events struct {
	TxConnect    Flag
	TxDisconnect Flag
	TxPulse      Flag
	TxNoVideo    Flag

	RxLinkUp       Level
	RxUnplug       Flag
	RxTrainingLost Flag
	RxNoVideo      Flag
	RxBwChange     Flag
	RxVBlank       Counter

	// InfoFrames counts audio info frames, Packets every info or
	// extension packet.
	InfoFrames Counter
	Packets    Counter
}

// ResetAudioCounts restarts info frame counting.
func (e *Events) ResetAudioCounts() {
	e.InfoFrames.Reset()
	e.Packets.Reset()
}
