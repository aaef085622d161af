// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package edid reads the sink's EDID over I2C-over-AUX.
package edid

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/dpaux"
)

const (
	BlockSize = 128
	MaxBlocks = 4
	// ExtensionCount is the offset in block 0 of the extension count.
	ExtensionCount = 126
	// DTD is the offset in block 0 of the preferred timing descriptor.
	DTD = 54
	// Input is the offset of the video input definition.
	Input = 20
)

var (
	ErrChecksum = errors.New("bad checksum")
	ErrHeader   = errors.New("bad header")
)

var header = []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}

// Mode is a video mode summary.
type Mode struct {
	HActive, VActive int
	Refresh          int
	Bpc              int
}

// FailSafe is used when no EDID can be read.
var FailSafe = Mode{HActive: 640, VActive: 480, Refresh: 60, Bpc: 6}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d %dbpc", m.HActive, m.VActive, m.Refresh,
		m.Bpc)
}

// Read reads block 0 and its extensions, at most MaxBlocks in all. A
// checksum or transaction failure restarts the whole read, up to attempts
// times.
func Read(c aux.Channel, attempts int) ([]byte, error) {
	var err error
	for try := 0; try < attempts; try++ {
		var b []byte
		if b, err = read(c); err == nil {
			return b, nil
		}
	}
	return nil, err
}

func read(c aux.Channel) ([]byte, error) {
	b0, err := block(c, 0)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(b0[:len(header)], header) {
		return nil, ErrHeader
	}
	n := 1 + int(b0[ExtensionCount])
	if n > MaxBlocks {
		n = MaxBlocks
	}
	b := b0
	for i := 1; i < n; i++ {
		bi, err := block(c, i)
		if err != nil {
			return nil, err
		}
		b = append(b, bi...)
	}
	return b, nil
}

func block(c aux.Channel, i int) ([]byte, error) {
	seg := uint8(i / 2)
	off := uint8((i % 2) * BlockSize)
	if seg != 0 {
		if err := c.I2CWrite(aux.SegmentAddr, []byte{seg}); err != nil {
			return nil, err
		}
	}
	b, err := c.I2CRead(aux.EdidAddr, off, BlockSize)
	if err != nil {
		return nil, err
	}
	if Sum(b) != 0 {
		return nil, errors.Wrapf(ErrChecksum, "block %d", i)
	}
	return b, nil
}

// Sum is the byte sum of a block; valid blocks sum to zero.
func Sum(b []byte) uint8 {
	var s uint8
	for _, v := range b {
		s += v
	}
	return s
}

// Preferred decodes the preferred timing of block 0. An EDID too short or
// without a detailed timing gives FailSafe.
func Preferred(b []byte) Mode {
	t, ok := Detailed(b)
	if !ok {
		return FailSafe
	}
	m := Mode{
		HActive: t.HActive,
		VActive: t.VActive,
		Bpc:     bpc(b),
	}
	if tot := (t.HActive + t.HBlank) * (t.VActive + t.VBlank); tot > 0 {
		m.Refresh = (t.PixelKHz*1000 + tot/2) / tot
	}
	return m
}

func bpc(b []byte) int {
	in := b[Input]
	if in&0x80 == 0 || b[18] != 1 || b[19] < 4 {
		return 8
	}
	switch (in >> 4) & 0x7 {
	case 1:
		return 6
	case 2:
		return 8
	case 3:
		return 10
	case 4:
		return 12
	case 5:
		return 14
	case 6:
		return 16
	}
	return 8
}
