// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/poll"
	"github.com/platinasystems/dprepeater/internal/regs"
)

// Frame-buffer core registers.
const (
	ApCtrl  = 0x00
	Width   = 0x10
	Height  = 0x18
	StrideR = 0x20
	FormatR = 0x28
	Addr    = 0x30
)

// ApCtrl bits
const (
	ApStart       = 1 << 0
	ApDone        = 1 << 1
	ApIdle        = 1 << 2
	ApAutoRestart = 1 << 7
)

var ErrNotConfigured = errors.New("not configured")

// Regs is a Driver on a frame-buffer core's register file. Buf is the
// physical address of its frame store.
type Regs struct {
	File  regs.File
	Buf   uint32
	Idle  poll.Bound
	valid bool
}

func NewRegs(f regs.File, buf uint32) *Regs {
	return &Regs{
		File: f,
		Buf:  buf,
		Idle: poll.Bound{
			Timeout:  50 * time.Millisecond,
			Interval: time.Millisecond,
		},
	}
}

func (r *Regs) Configure(s Stream) error {
	if s.Width <= 0 || s.Height <= 0 || s.Stride < s.Width {
		return errors.Errorf("fb: invalid stream %v", s)
	}
	r.File.Write32(Width, uint32(s.Width))
	r.File.Write32(Height, uint32(s.Height))
	r.File.Write32(StrideR, uint32(s.Stride))
	r.File.Write32(FormatR, uint32(s.Format))
	r.File.Write32(Addr, r.Buf)
	r.valid = true
	return nil
}

// Start runs the core continuously; it does nothing before Configure.
func (r *Regs) Start() {
	if r.valid {
		r.File.Write32(ApCtrl, ApStart|ApAutoRestart)
	}
}

func (r *Regs) Stop() { r.File.Write32(ApCtrl, 0) }

// Running reports whether the core was started and not stopped.
func (r *Regs) Running() bool {
	return r.File.Read32(ApCtrl)&ApAutoRestart != 0
}

func (r *Regs) WaitIdle(ctx context.Context) error {
	return poll.Until(ctx, r.Idle, func() (bool, error) {
		return regs.IsSet(r.File, ApCtrl, ApIdle), nil
	})
}

// Attach models a core on s that goes idle when stopped.
func Attach(s *regs.Sim) {
	s.OnWrite(ApCtrl, func(v uint32) {
		if v&ApStart == 0 {
			s.Set(ApCtrl, v|ApIdle)
		}
	})
}
