// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package train trains the TX main link to a rate and lane count.
package train

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/dpaux"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/phy"
	"github.com/platinasystems/dprepeater/internal/poll"
)

var (
	ErrSinkAbsent = errors.New("sink absent")
	ErrLinkDown   = errors.New("link down")
)

// Result is the outcome of one training attempt.
type Result struct {
	Rate  dpcd.LinkRate
	Lanes dpcd.LaneCount
	dpcd.Status
}

// Ok compares only the bits of the active lanes.
func (r Result) Ok() bool { return r.Status.Done(r.Lanes) }

func (r Result) String() string {
	return fmt.Sprint(r.Rate, "x", r.Lanes, " ", r.Status)
}

// Timing holds the sink and core delays. The zero Timing doesn't wait.
type Timing struct {
	// PowerCycle waits before, between and after the two D0 writes.
	PowerPre, PowerWake, PowerSettle time.Duration
	// TxReset is the time the TX core is held disabled.
	TxReset time.Duration
	// Adjust is the pause before each lane status read while training.
	Adjust time.Duration
	// Check is the pause between CheckStatus attempts.
	Check time.Duration
}

var DefaultTiming = Timing{
	PowerPre:    4 * time.Millisecond,
	PowerWake:   50 * time.Millisecond,
	PowerSettle: 40 * time.Millisecond,
	TxReset:     100 * time.Millisecond,
	Adjust:      400 * time.Microsecond,
	Check:       time.Millisecond,
}

// PowerCycle wakes the sink with two D0 writes.
func PowerCycle(ctx context.Context, c aux.Channel, tm Timing) error {
	if err := poll.Sleep(ctx, tm.PowerPre); err != nil {
		return err
	}
	// the first write may only wake the AUX receiver
	aux.WriteByte(c, dpcd.SetPower, dpcd.PowerD0)
	if err := poll.Sleep(ctx, tm.PowerWake); err != nil {
		return err
	}
	if err := aux.WriteByte(c, dpcd.SetPower, dpcd.PowerD0); err != nil {
		return errors.Wrap(err, "sink power")
	}
	return poll.Sleep(ctx, tm.PowerSettle)
}

// Trainer runs link training through the TX core and the sink's DPCD.
type Trainer struct {
	Tx  core.Tx
	Aux aux.Channel
	Phy phy.Driver
	Clk core.ClkWiz

	Timing Timing
	// Lock bounds the wait for the TX clock.
	Lock poll.Bound
	// Loops limits each of the clock recovery and equalization phases.
	Loops int
	// Checks is the number of CheckStatus reads.
	Checks int
}

func New(tx core.Tx, c aux.Channel, d phy.Driver, clk core.ClkWiz) *Trainer {
	return &Trainer{
		Tx:     tx,
		Aux:    c,
		Phy:    d,
		Clk:    clk,
		Timing: DefaultTiming,
		Lock: poll.Bound{
			Timeout:  100 * time.Millisecond,
			Interval: time.Millisecond,
		},
		Loops:  5,
		Checks: 5,
	}
}

// Train masks the TX interrupts, wakes the sink, resets the TX core and
// trains at rate and lanes. A failed attempt is repeated once with the same
// pair. Failures of both attempts, AUX errors included, have cause
// ErrLinkDown. TX interrupts are unmasked on return.
func (t *Trainer) Train(ctx context.Context, rate dpcd.LinkRate,
	lanes dpcd.LaneCount) (Result, error) {
	r := Result{Rate: rate, Lanes: lanes}
	t.Tx.SetInterruptMask(core.TxIntrMaskAll)
	defer t.Tx.SetInterruptMask(core.TxIntrMaskNone)
	if !t.Tx.SinkPresent() {
		return r, ErrSinkAbsent
	}
	if err := PowerCycle(ctx, t.Aux, t.Timing); err != nil {
		if ctx.Err() != nil {
			return r, err
		}
		return r, errors.Wrap(ErrLinkDown, err.Error())
	}
	t.Tx.Enable(false)
	if err := poll.Sleep(ctx, t.Timing.TxReset); err != nil {
		return r, err
	}
	t.Tx.Enable(true)
	var err error
	for try := 0; try < 2; try++ {
		if r, err = t.attempt(ctx, rate, lanes); err == nil && r.Ok() {
			return r, nil
		}
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		if !t.Tx.SinkPresent() {
			return r, ErrSinkAbsent
		}
	}
	if err == nil {
		err = errors.Wrapf(ErrLinkDown, "%v", r)
	} else {
		err = errors.Wrap(ErrLinkDown, err.Error())
	}
	return r, err
}

func (t *Trainer) attempt(ctx context.Context, rate dpcd.LinkRate,
	lanes dpcd.LaneCount) (Result, error) {
	r := Result{Rate: rate, Lanes: lanes}
	t.Tx.SetLink(rate, lanes)
	err := t.Aux.Write(dpcd.LinkBwSet,
		[]byte{uint8(rate), uint8(lanes) | dpcd.EnhancedFrameEn})
	if err != nil {
		return r, err
	}
	var swing, pre [4]uint8
	if err = t.drive(lanes, swing, pre); err != nil {
		return r, err
	}
	ok, err := t.phase(ctx, dpcd.Pattern1, lanes, &swing, &pre,
		func(st dpcd.Status) bool { return st.ClockRecovered(lanes) })
	if err == nil && ok {
		_, err = t.phase(ctx, dpcd.Pattern2, lanes, &swing, &pre,
			func(st dpcd.Status) bool {
				return st.Equalized(lanes) && st.Aligned()
			})
	}
	t.Tx.SetPattern(dpcd.PatternOff)
	if werr := aux.WriteByte(t.Aux, dpcd.TrainingPatternSet,
		dpcd.PatternOff); err == nil {
		err = werr
	}
	if err != nil {
		return r, err
	}
	if err = poll.Until(ctx, t.Lock, func() (bool, error) {
		return t.Clk.Locked(), nil
	}); err != nil {
		return r, errors.Wrap(err, "tx clock")
	}
	r.Status, err = t.status()
	return r, err
}

// phase sends pattern p and follows the sink's adjust requests until done
// or the loop limit.
func (t *Trainer) phase(ctx context.Context, p uint8, lanes dpcd.LaneCount,
	swing, pre *[4]uint8, done func(dpcd.Status) bool) (bool, error) {
	t.Tx.SetPattern(p)
	err := aux.WriteByte(t.Aux, dpcd.TrainingPatternSet,
		p|dpcd.ScrambleDis)
	if err != nil {
		return false, err
	}
	for i := 0; i < t.Loops; i++ {
		if err = poll.Sleep(ctx, t.Timing.Adjust); err != nil {
			return false, err
		}
		st, err := t.status()
		if err != nil {
			return false, err
		}
		if done(st) {
			return true, nil
		}
		b, err := t.Aux.Read(dpcd.AdjustRequest01, 2)
		if err != nil {
			return false, err
		}
		req := [2]uint8{b[0], b[1]}
		for l := 0; l < int(lanes); l++ {
			swing[l], pre[l] = dpcd.Adjust(req, l)
		}
		if err = t.drive(lanes, *swing, *pre); err != nil {
			return false, err
		}
	}
	return false, nil
}

// drive sets the transmitter levels and tells the sink about them.
func (t *Trainer) drive(lanes dpcd.LaneCount, swing, pre [4]uint8) error {
	set := make([]byte, lanes)
	for l := range set {
		if err := t.Phy.SetVoltageSwing(l, swing[l]); err != nil {
			return err
		}
		if err := t.Phy.SetPreemphasis(l, pre[l]); err != nil {
			return err
		}
		set[l] = dpcd.LaneSet(swing[l], pre[l])
	}
	return t.Aux.Write(dpcd.TrainingLane0Set, set)
}

func (t *Trainer) status() (dpcd.Status, error) {
	b, err := t.Aux.Read(dpcd.Lane01Status, 3)
	if err != nil {
		return dpcd.Status{}, err
	}
	return dpcd.StatusOf(b), nil
}

// CheckStatus verifies a running link: clock recovery on the active lanes,
// then equalization and symbol lock, then interlane alignment, reading the
// sink up to Checks times.
func (t *Trainer) CheckStatus(ctx context.Context, lanes dpcd.LaneCount) error {
	var st dpcd.Status
	var err error
	for i := 0; i < t.Checks; i++ {
		if i > 0 {
			if err = poll.Sleep(ctx, t.Timing.Check); err != nil {
				return err
			}
		}
		if st, err = t.status(); err != nil {
			continue
		}
		if st.ClockRecovered(lanes) && st.Equalized(lanes) &&
			st.Aligned() {
			return nil
		}
	}
	if err != nil {
		return err
	}
	return errors.Wrapf(ErrLinkDown, "status %v", st)
}
