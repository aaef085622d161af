// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package acr locks the audio path to the sample rate recovered from the RX
// link's audio M and N values.
package acr

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/audpins"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/event"
	"github.com/platinasystems/dprepeater/internal/sideband"
	"github.com/platinasystems/log"
	"periph.io/x/conn/v3/physic"
)

// Policy says whether audio waits for an info frame before starting.
type Policy int

const (
	Wait Policy = iota
	Proceed
)

func (p Policy) String() string {
	switch p {
	case Wait:
		return "wait"
	case Proceed:
		return "proceed"
	}
	return fmt.Sprint("policy(", int(p), ")")
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "wait":
		return Wait, nil
	case "proceed":
		return Proceed, nil
	}
	return Wait, errors.Errorf("%s: invalid info frame policy", s)
}

// Sample rates in Hz.
const (
	Fs32000 = 32000
	Fs44100 = 44100
	Fs48000 = 48000
)

// Classify maps an approximate rate in kHz to the sample rate it stands
// for, or zero.
func Classify(khz uint32) uint32 {
	switch {
	case khz >= 31 && khz <= 33:
		return Fs32000
	case khz >= 43 && khz <= 45:
		return Fs44100
	case khz >= 47 && khz <= 49:
		return Fs48000
	}
	return 0
}

// ApproxKHz is the sample rate measured from the audio M and N at a link
// rate code, truncated as the hardware's reference does.
func ApproxKHz(code, maud, naud uint32) uint32 {
	if naud == 0 {
		return 0
	}
	fs := uint64(code) * 270 * uint64(maud)
	fs = fs / uint64(naud) * 100
	fs = fs * 1000 / 512
	return uint32(fs / 1000)
}

// Config holds the controller's thresholds, in tracking iterations.
type Config struct {
	// StartDelay is how long a new lock settles before audio starts.
	StartDelay int
	// InfoFrames is the info frame count that makes audio available.
	InfoFrames uint32
	// InfoTimeout is the packet count after which audio starts without
	// an info frame.
	InfoTimeout uint32
	// Forward and Start are the debounce counts at which the info frame
	// is forwarded and audio started.
	Forward, Start int
	// Confirm is how many consecutive readings a new rate needs.
	Confirm int
	// Multiplier is the master clock in units of the sample rate.
	Multiplier uint32
	Policy     Policy
}

var DefaultConfig = Config{
	StartDelay:  500,
	InfoFrames:  10,
	InfoTimeout: 200,
	Forward:     50,
	Start:       200,
	Confirm:     3,
	Multiplier:  512,
	Policy:      Wait,
}

// State is what the controller reports.
type State struct {
	MAud, NAud uint32
	ApproxKHz  uint32
	// LockedFs is 0, 32000, 44100 or 48000.
	LockedFs uint32
	Settle   int
	Started  bool
	// Invalid latches the first out of band reading until a valid one.
	Invalid bool
}

// Controller is the ACR lock state machine. It's run only by the control
// loop.
type Controller struct {
	Rx     core.Rx
	Tx     core.Tx
	Acr    core.Acr
	Clock  sideband.Clock
	Lines  audpins.Lines
	Events *event.Events
	Config

	st        State
	candidate uint32
	seen      int
	filter    int
	clocked   bool
	timedOut  bool
}

func New(rx core.Rx, tx core.Tx, a core.Acr, clk sideband.Clock,
	l audpins.Lines, e *event.Events) *Controller {
	return &Controller{
		Rx:     rx,
		Tx:     tx,
		Acr:    a,
		Clock:  clk,
		Lines:  l,
		Events: e,
		Config: DefaultConfig,
	}
}

func (c *Controller) State() State { return c.st }

// SetPolicy changes the info frame policy at run time.
func (c *Controller) SetPolicy(p Policy) { c.Policy = p }

// Init programs the recovery block and leaves audio muted.
func (c *Controller) Init() {
	c.Acr.Init()
	c.Rx.Audio(true)
	if err := c.Lines.Fifo(false); err != nil {
		log.Print("acr: ", err)
	}
	c.st = State{}
	c.candidate, c.seen, c.filter = 0, 0, 0
	c.clocked, c.timedOut = false, false
}

// Track runs one iteration: measure, lock on a confirmed new rate, then
// start audio once everything has settled.
func (c *Controller) Track(streaming bool) {
	c.measure()
	if c.st.LockedFs != 0 && c.st.Settle < c.StartDelay {
		c.st.Settle++
	}
	c.startTx(streaming)
}

func (c *Controller) measure() {
	rate, _ := c.Rx.Link()
	maud, naud := c.Rx.AudioMN()
	khz := ApproxKHz(uint32(rate), maud, naud)
	c.st.MAud, c.st.NAud, c.st.ApproxKHz = maud, naud, khz
	fs := Classify(khz)
	if fs == 0 {
		c.candidate, c.seen = 0, 0
		if !c.st.Invalid {
			c.st.Invalid = true
			log.Print("acr: invalid sample rate ", khz, " kHz")
			c.Mute()
			c.st.LockedFs = 0
			c.st.Settle = 0
		}
		return
	}
	c.st.Invalid = false
	if fs == c.st.LockedFs {
		c.candidate, c.seen = 0, 0
		return
	}
	if fs != c.candidate {
		c.candidate, c.seen = fs, 0
	}
	if c.seen++; c.seen >= c.Confirm {
		c.commit(fs, maud, naud)
	}
}

// commit reprograms the recovery block and the audio master clock for fs.
func (c *Controller) commit(fs, maud, naud uint32) {
	if c.st.Started {
		c.Mute()
	}
	c.Acr.Program(maud, naud)
	f := physic.Frequency(fs) * physic.Hertz
	if err := c.Clock.SetClock(f, physic.Frequency(c.Multiplier)*f); err != nil {
		log.Print("acr: ", err)
		c.clocked = false
	} else {
		c.clocked = true
	}
	if err := c.Lines.PulseReset(); err != nil {
		log.Print("acr: ", err)
	}
	log.Print("acr: locked ", fs, " Hz")
	c.st.LockedFs = fs
	c.st.Settle = 0
	c.candidate, c.seen = 0, 0
	c.timedOut = false
	c.Events.ResetAudioCounts()
}

// infoReady is the info frame gate of the start condition.
func (c *Controller) infoReady() bool {
	if c.Policy == Proceed {
		return true
	}
	if c.Events.InfoFrames.Load() > c.InfoFrames {
		return true
	}
	if c.Events.Packets.Load() > c.InfoTimeout {
		if !c.timedOut {
			c.timedOut = true
			log.Print("acr: no audio info frame, starting anyway")
		}
		return true
	}
	return false
}

func (c *Controller) startTx(streaming bool) {
	if !streaming || !c.clocked || c.st.Started || c.st.LockedFs == 0 ||
		c.st.Settle != c.StartDelay || !c.infoReady() {
		c.filter = 0
		return
	}
	c.filter++
	if c.filter == c.Forward {
		c.Tx.SendInfoFrame(c.Rx.DrainInfoFrame())
	}
	if c.filter > c.Start {
		c.Acr.SetI2SDivider(c.Multiplier / 64)
		c.Acr.SetMode(core.AcrModeLoop)
		if err := c.Lines.Fifo(true); err != nil {
			log.Print("acr: ", err)
			c.filter = 0
			return
		}
		c.Tx.Audio(1)
		c.st.Started = true
		c.filter = 0
		log.Print("acr: audio started at ", c.st.LockedFs, " Hz")
	}
}

// Mute stops TX audio and holds the FIFO.
func (c *Controller) Mute() {
	c.Tx.Audio(0)
	if err := c.Lines.Fifo(false); err != nil {
		log.Print("acr: ", err)
	}
	c.st.Started = false
	c.filter = 0
}

// Reset mutes and forces full re-acquisition of the rate.
func (c *Controller) Reset() {
	c.Mute()
	c.st.LockedFs = 0
	c.st.Settle = 0
	c.st.Invalid = false
	c.candidate, c.seen = 0, 0
	c.timedOut = false
}

// Rearm cycles the recovery block after the RX stream restarts.
func (c *Controller) Rearm() {
	c.Reset()
	c.Acr.Enable(false)
	c.Acr.Enable(true)
}

// Unplug returns the audio path to its power on state with the sideband
// clock running free.
func (c *Controller) Unplug() {
	c.Reset()
	c.Acr.SetMode(core.AcrModeStream)
	if err := sideband.FreeRun(c.Clock); err != nil {
		log.Print("acr: ", err)
	}
	c.clocked = false
}
