// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/poll"
	"github.com/platinasystems/log"
)

// Sequencer moves the channel to a new line rate.
type Sequencer struct {
	Driver Driver
	Pll    PllKind
	// Wait bounds each of the reset and lock waits.
	Wait poll.Bound
	// ClkInitRetries is the ceiling on busy clock init attempts, paced
	// from ClkInitMin doubling up to ClkInitMax.
	ClkInitRetries int
	ClkInitMin     time.Duration
	ClkInitMax     time.Duration

	cur Config
}

func NewSequencer(d Driver, pll PllKind) *Sequencer {
	return &Sequencer{
		Driver: d,
		Pll:    pll,
		Wait: poll.Bound{
			Timeout:  100 * time.Millisecond,
			Interval: time.Millisecond,
		},
		ClkInitRetries: 100,
		ClkInitMin:     100 * time.Microsecond,
		ClkInitMax:     10 * time.Millisecond,
	}
}

// Current returns the setting of the last successful Configure.
func (s *Sequencer) Current() Config { return s.cur }

// Configure programs the channel for rate and waits for it to come out of
// reset locked.
func (s *Sequencer) Configure(ctx context.Context, rate dpcd.LinkRate) error {
	c := Lookup(rate, s.Pll)
	if c.Rate != rate || c.Pll != s.Pll {
		log.Print("warning: phy ", rate, " on ", s.Pll, ": using ", c)
	}
	if err := s.Driver.InitChannel(c); err != nil {
		return &Error{"init channel", err}
	}
	if err := s.clkInit(ctx, c); err != nil {
		return err
	}
	if err := s.Driver.ResetPll(true); err != nil {
		return &Error{"pll reset", err}
	}
	if err := s.Driver.ResetPll(false); err != nil {
		return &Error{"pll reset", err}
	}
	for _, w := range []struct {
		step string
		done func() (bool, error)
	}{
		{"pma reset", s.Driver.PmaResetDone},
		{"pll lock", s.Driver.PllLocked},
		{"reset", s.Driver.ResetDone},
	} {
		if err := poll.Until(ctx, s.Wait, w.done); err != nil {
			return &Error{w.step, err}
		}
	}
	s.cur = c
	return nil
}

func (s *Sequencer) clkInit(ctx context.Context, c Config) error {
	min := s.ClkInitMin
	if min <= 0 {
		min = time.Microsecond
	}
	b := &backoff.Backoff{
		Min:    min,
		Max:    s.ClkInitMax,
		Factor: 2,
		Jitter: false,
	}
	for try := 0; ; try++ {
		err := s.Driver.ClkInit(c)
		if err == nil {
			return nil
		}
		if errors.Cause(err) != ErrBusy {
			return &Error{"clock init", err}
		}
		if try >= s.ClkInitRetries {
			return &Error{"clock init", ErrTimeout}
		}
		if err = poll.Sleep(ctx, b.Duration()); err != nil {
			return &Error{"clock init", err}
		}
	}
}
