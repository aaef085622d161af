// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUntil(t *testing.T) {
	ctx := context.Background()
	n := 0
	err := Until(ctx, Bound{time.Second, 0}, func() (bool, error) {
		n++
		return n == 3, nil
	})
	if err != nil || n != 3 {
		t.Error("wrong:", n, err)
	}
}

func TestUntilTimeout(t *testing.T) {
	n := 0
	err := Until(context.Background(), Bound{0, 0}, func() (bool, error) {
		n++
		return false, nil
	})
	if err != ErrTimeout {
		t.Error("wrong:", err)
	}
	if n != 1 {
		t.Error("probed", n, "times")
	}
}

func TestUntilError(t *testing.T) {
	bad := errors.New("bad")
	err := Until(context.Background(), Bound{time.Second, 0},
		func() (bool, error) { return false, bad })
	if err != bad {
		t.Error("wrong:", err)
	}
}

func TestUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Until(ctx, Bound{time.Hour, time.Millisecond},
		func() (bool, error) { return false, nil })
	if err != context.Canceled {
		t.Error("wrong:", err)
	}
}

func TestPasses(t *testing.T) {
	ctx := context.Background()
	n := 0
	if !Passes(ctx, 2, Bound{}, func() bool { n++; return true }) {
		t.Error("aborted")
	}
	if n != 3 {
		t.Error("wrong:", n)
	}
	n = 0
	if Passes(ctx, 2, Bound{}, func() bool { n++; return n < 2 }) {
		t.Error("not aborted")
	}
}
