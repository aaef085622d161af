// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package aux

import (
	"context"
	"time"

	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/poll"
)

// Tx runs AUX transactions through the transmit core's AUX engine.
type Tx struct {
	Core core.Tx
	// Reply bounds both the wait for an idle engine and for the reply.
	Reply poll.Bound
	// Retries after a defer or a reply timeout.
	Retries int
}

func NewTx(t core.Tx) *Tx {
	return &Tx{
		Core: t,
		Reply: poll.Bound{
			Timeout:  10 * time.Millisecond,
			Interval: 50 * time.Microsecond,
		},
		Retries: 7,
	}
}

func (a *Tx) Read(addr uint32, n int) ([]byte, error) {
	b := make([]byte, 0, n)
	for len(b) < n {
		m := n - len(b)
		if m > core.TxAuxMaxBurst {
			m = core.TxAuxMaxBurst
		}
		at := addr + uint32(len(b))
		p, err := a.xfer(core.TxAuxNativeRead, at, nil, m)
		if err != nil {
			return nil, &Error{"read", at, err}
		}
		b = append(b, p...)
	}
	return b, nil
}

func (a *Tx) Write(addr uint32, b []byte) error {
	for i := 0; i < len(b); i += core.TxAuxMaxBurst {
		j := i + core.TxAuxMaxBurst
		if j > len(b) {
			j = len(b)
		}
		at := addr + uint32(i)
		if _, err := a.xfer(core.TxAuxNativeWrite, at, b[i:j], 0); err != nil {
			return &Error{"write", at, err}
		}
	}
	return nil
}

func (a *Tx) I2CRead(dev, off uint8, n int) ([]byte, error) {
	at := uint32(dev)
	if _, err := a.xfer(core.TxAuxI2CWriteMot, at, []byte{off}, 0); err != nil {
		return nil, &Error{"i2c offset", at, err}
	}
	b := make([]byte, 0, n)
	for len(b) < n {
		m := n - len(b)
		if m > core.TxAuxMaxBurst {
			m = core.TxAuxMaxBurst
		}
		p, err := a.xfer(core.TxAuxI2CReadMot, at, nil, m)
		if err != nil {
			return nil, &Error{"i2c read", at, err}
		}
		b = append(b, p...)
	}
	// address only read without MOT is the stop condition
	if _, err := a.xfer(core.TxAuxI2CRead, at, nil, 0); err != nil {
		return nil, &Error{"i2c stop", at, err}
	}
	return b, nil
}

func (a *Tx) I2CWrite(dev uint8, b []byte) error {
	at := uint32(dev)
	if len(b) > core.TxAuxMaxBurst {
		return &Error{"i2c write", at, ErrShort}
	}
	if _, err := a.xfer(core.TxAuxI2CWriteMot, at, b, 0); err != nil {
		return &Error{"i2c write", at, err}
	}
	return nil
}

// xfer runs one transaction of at most TxAuxMaxBurst bytes. Writes send
// wr; reads return n bytes. Defers and reply timeouts are retried.
func (a *Tx) xfer(cmd uint32, addr uint32, wr []byte, n int) ([]byte, error) {
	ctx := context.Background()
	last := ErrNoReply
	for try := 0; try <= a.Retries; try++ {
		err := poll.Until(ctx, a.Reply, func() (bool, error) {
			sig := a.Core.Read32(core.TxInterruptSigState)
			return sig&core.SigRequestInProgress == 0, nil
		})
		if err != nil {
			return nil, ErrNoReply
		}
		a.Core.Write32(core.TxAuxAddress, addr)
		for _, v := range wr {
			a.Core.Write32(core.TxAuxWriteFifo, uint32(v))
		}
		length := n
		if wr != nil {
			length = len(wr)
		}
		v := cmd << core.TxAuxCmdShift
		if length == 0 {
			v |= core.TxAuxAddressOnly
		} else {
			v |= uint32(length - 1)
		}
		a.Core.Write32(core.TxAuxCmd, v)

		var sig uint32
		err = poll.Until(ctx, a.Reply, func() (bool, error) {
			sig = a.Core.Read32(core.TxInterruptSigState)
			return sig&(core.SigReplyReceived|core.SigReplyTimeout) != 0,
				nil
		})
		if err != nil || sig&core.SigReplyReceived == 0 {
			last = ErrNoReply
			continue
		}
		switch a.Core.Read32(core.TxAuxReplyCode) {
		case core.TxAuxReplyAck:
		case core.TxAuxReplyDefer, core.TxAuxReplyI2CDef:
			last = ErrDefer
			continue
		default:
			return nil, ErrNack
		}
		if wr != nil || n == 0 {
			return nil, nil
		}
		if cnt := a.Core.Read32(core.TxAuxReplyDataCount); int(cnt) < n {
			return nil, ErrShort
		}
		b := make([]byte, n)
		for i := range b {
			b[i] = uint8(a.Core.Read32(core.TxAuxReplyData))
		}
		return b, nil
	}
	return nil, last
}
