// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package passthrough reconfigures the TX path to carry the stream arriving
// on the RX link.
package passthrough

import (
	"context"
	"fmt"
	"sync"
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
	"github.com/platinasystems/dprepeater/internal/train"
	"github.com/platinasystems/log"
)

var ErrCannotStart = errors.New("cannot start")

type State int

const (
	Idle State = iota
	AwaitingRxTraining
	FormatKnown
	Reconciling
	Streaming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingRxTraining:
		return "awaiting rx training"
	case FormatKnown:
		return "format known"
	case Reconciling:
		return "reconciling"
	case Streaming:
		return "streaming"
	}
	return fmt.Sprint("state(", int(s), ")")
}

// Audio is the audio path as seen by the synchronizer.
type Audio interface {
	Mute()
}

// WarmUp is the link rate written to the sink before the PHY moves.
const WarmUp = dpcd.Rate162

type Synchronizer struct {
	Tx       core.Tx
	Aux      aux.Channel
	Caps     *caps.Store
	Detector *msa.Detector
	// Reader feeds the TX from the frame buffer.
	Reader  fb.Driver
	Seq     *phy.Sequencer
	Trainer *train.Trainer
	Audio   Audio
	Table   downshift.Table
	// Settle is one pass of the delay after a color format change.
	Settle poll.Bound
	// Pulse, if set, is run once when the link fails its check right
	// after start.
	Pulse func(context.Context) error

	mu    sync.Mutex
	state State
	rx    msa.MSA
	dec   downshift.Decision
}

func New(tx core.Tx, c aux.Channel, s *caps.Store, d *msa.Detector,
	r fb.Driver, seq *phy.Sequencer, t *train.Trainer,
	a Audio) *Synchronizer {
	return &Synchronizer{
		Tx:       tx,
		Aux:      c,
		Caps:     s,
		Detector: d,
		Reader:   r,
		Seq:      seq,
		Trainer:  t,
		Audio:    a,
		Table:    downshift.DefaultTable,
		Settle:   poll.Bound{Timeout: 100 * time.Millisecond},
	}
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Streaming reports whether the TX carries the RX stream.
func (s *Synchronizer) Streaming() bool { return s.State() == Streaming }

// RX is the last detected RX stream.
func (s *Synchronizer) RX() msa.MSA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rx
}

// Decision is the TX configuration of the last reconcile.
func (s *Synchronizer) Decision() downshift.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dec
}

func (s *Synchronizer) set(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Await drops the stream and waits for the RX link to train again.
func (s *Synchronizer) Await() {
	s.stopTx()
	s.Detector.Writer.Stop()
	s.set(AwaitingRxTraining)
}

// Stop the TX stream, keeping the RX format.
func (s *Synchronizer) Stop() {
	s.stopTx()
	s.mu.Lock()
	if s.state == Streaming || s.state == Reconciling {
		s.state = FormatKnown
	}
	s.mu.Unlock()
}

func (s *Synchronizer) stopTx() {
	s.Audio.Mute()
	s.Reader.Stop()
	s.Tx.MainStream(false)
}

// Detect reads the RX stream format and starts the frame-buffer writer.
func (s *Synchronizer) Detect(ctx context.Context) (msa.MSA, error) {
	m, err := s.Detector.Detect(ctx)
	if err != nil {
		return m, err
	}
	log.Print("rx ", m)
	s.mu.Lock()
	s.rx, s.state = m, FormatKnown
	s.mu.Unlock()
	return m, nil
}

// Reconcile brings the TX up with the detected stream, downshifted to what
// the sink can take. A failed start is retried once.
func (s *Synchronizer) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	if s.state < FormatKnown {
		s.mu.Unlock()
		return errors.Errorf("reconcile: %v", s.state)
	}
	rx := s.rx
	s.state = Reconciling
	s.mu.Unlock()

	c, ok := s.Caps.Get()
	if !ok {
		c, _ = s.Caps.Refresh()
	}
	d := downshift.Decide(rx, c, rx.Rate, s.Table)
	if d.Kind != downshift.None {
		log.Print("tx ", d)
	}
	var err error
	for try := 0; try < 2; try++ {
		if err = s.start(ctx, rx, d); err == nil {
			break
		}
		log.Print("warning: tx start: ", err)
		if ctx.Err() != nil {
			break
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stopTx()
		s.state = FormatKnown
		return errors.Wrap(ErrCannotStart, err.Error())
	}
	s.dec, s.state = d, Streaming
	return nil
}

func (s *Synchronizer) start(ctx context.Context, rx msa.MSA,
	d downshift.Decision) error {
	s.stopTx()
	if err := s.Reader.WaitIdle(ctx); err != nil {
		log.Print("warning: frame reader: ", err)
	}
	if err := train.PowerCycle(ctx, s.Aux, s.Trainer.Timing); err != nil {
		return err
	}
	if err := aux.WriteByte(s.Aux, dpcd.LinkBwSet, uint8(WarmUp)); err != nil {
		return errors.Wrap(err, "warm up")
	}
	if err := s.Seq.Configure(ctx, d.Rate); err != nil {
		return err
	}
	r, err := s.Trainer.Train(ctx, d.Rate, d.Lanes)
	if err != nil {
		return err
	}
	s.Caps.SetRun(r.Rate, r.Lanes)
	if err = s.run(d, rx); err != nil {
		return err
	}
	// some sinks never pulse after a bad start
	if err = s.Trainer.CheckStatus(ctx, d.Lanes); err != nil && s.Pulse != nil {
		log.Print("warning: tx link after start: ", err)
		if err = s.Pulse(ctx); err != nil {
			log.Print("warning: tx link after start: ", err)
		} else if err = s.run(d, rx); err != nil {
			return err
		}
	}
	return nil
}

// run programs the TX stream and starts the frame reader.
func (s *Synchronizer) run(d downshift.Decision, rx msa.MSA) error {
	msa.Program(s.Tx, d.TX)
	st := d.TX.Stream()
	if d.Cropped() {
		// part of each RX line, read with the RX line stride
		st.Stride = rx.Stream().Stride
	}
	s.Reader.Stop()
	if err := s.Reader.Configure(st); err != nil {
		return errors.Wrap(err, "frame reader")
	}
	s.Reader.Start()
	s.Tx.MainStream(true)
	return nil
}

// Restore resumes the stream after the link was retrained under it.
func (s *Synchronizer) Restore(r train.Result) {
	s.mu.Lock()
	st, d, rx := s.state, s.dec, s.rx
	s.mu.Unlock()
	if st != Streaming {
		return
	}
	if r.Rate != d.Rate || r.Lanes != d.Lanes {
		log.Print("warning: retrained at ", r.Rate, "x", r.Lanes,
			", restarting")
		s.Stop()
		return
	}
	if err := s.run(d, rx); err != nil {
		log.Print("warning: restore: ", err)
		s.Stop()
	}
}

// CheckColor restarts the stream after a change of component format or
// VSC colorimetry. The restart waits out two settle passes and is skipped if
// the RX link drops meanwhile.
func (s *Synchronizer) CheckColor(ctx context.Context, up func() bool) error {
	s.mu.Lock()
	st, rx := s.state, s.rx
	s.mu.Unlock()
	if st != Streaming || !s.Detector.ColorChanged(rx) {
		return nil
	}
	log.Print("rx color format changed")
	s.Stop()
	if !poll.Passes(ctx, 2, s.Settle, up) {
		s.Await()
		return nil
	}
	if _, err := s.Detect(ctx); err != nil {
		return err
	}
	return s.Reconcile(ctx)
}
