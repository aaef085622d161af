// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package aux provides AUX channel transactions to the sink: native DPCD
// reads and writes plus I2C-over-AUX for the EDID.
package aux

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoReply = errors.New("no reply")
	ErrNack    = errors.New("nack")
	ErrDefer   = errors.New("deferred")
	ErrShort   = errors.New("short reply")
)

// Channel is the AUX transaction primitive.
type Channel interface {
	Read(addr uint32, n int) ([]byte, error)
	Write(addr uint32, b []byte) error
	// I2CRead reads n bytes from offset off of the I2C device dev.
	I2CRead(dev, off uint8, n int) ([]byte, error)
	I2CWrite(dev uint8, b []byte) error
}

// Error records the DPCD or I2C address of a failed transaction.
type Error struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("aux %s %#x: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Cause() error { return e.Err }

// ReadByte reads one DPCD register.
func ReadByte(c Channel, addr uint32) (uint8, error) {
	b, err := c.Read(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteByte writes one DPCD register.
func WriteByte(c Channel, addr uint32, v uint8) error {
	return c.Write(addr, []byte{v})
}
