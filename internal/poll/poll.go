// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package poll provides the bounded waits used for every hardware
// handshake. Nothing here blocks past its Bound.
package poll

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrTimeout = errors.New("timeout")

// Bound limits a wait by monotonic duration. Interval is the pause
// between probes; zero probes back to back.
type Bound struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Until probes cond until it's true, it returns an error, the Bound
// expires, or the context is done. cond is always probed at least once.
func Until(ctx context.Context, b Bound, cond func() (bool, error)) error {
	deadline := time.Now().Add(b.Timeout)
	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrTimeout
		}
		if err = Sleep(ctx, b.Interval); err != nil {
			return err
		}
	}
}

// Sleep for d unless the context is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Passes runs n bounded passes of f, returning early with false when f
// does. This is the settle delay used to reject transient glitches.
func Passes(ctx context.Context, n int, b Bound, f func() bool) bool {
	for i := 0; i < n; i++ {
		if !f() {
			return false
		}
		if Sleep(ctx, b.Timeout) != nil {
			return false
		}
	}
	return f()
}
