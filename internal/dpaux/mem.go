// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package aux

import (
	"sync"

	"github.com/platinasystems/dprepeater/internal/dpcd"
)

// I2C addresses of the E-DDC EDID and its segment pointer.
const (
	EdidAddr    = 0x50
	SegmentAddr = 0x30
)

// Mem is a sink held in memory: a DPCD image and an EDID. It answers
// training pattern writes by locking as many lanes as the sink has if the
// requested rate is one it supports. The daemon's -sim mode runs on it.
type Mem struct {
	mu   sync.Mutex
	dpcd map[uint32]uint8
	edid []byte
	seg  uint8
	cap  dpcd.Capability

	// Fail, if set, may fail any transaction by returning an error.
	Fail func(op string, addr uint32) error
	// Corrupt is the number of EDID blocks still to be read with a bad
	// checksum.
	Corrupt int
}

// NewSink returns a Mem advertising c with the given EDID.
func NewSink(c dpcd.Capability, edid []byte) *Mem {
	m := &Mem{
		dpcd: make(map[uint32]uint8),
		edid: edid,
		cap:  c,
	}
	m.dpcd[dpcd.Rev] = 0x14
	m.dpcd[dpcd.MaxLinkRate] = uint8(c.MaxRate)
	if c.Extended {
		m.dpcd[dpcd.TrainAuxRdInterval] = dpcd.ExtCapFieldPresent
		m.dpcd[dpcd.ExtMaxLinkRate] = uint8(c.MaxRate)
		if c.MaxRate == dpcd.Rate810 {
			m.dpcd[dpcd.MaxLinkRate] = uint8(dpcd.Rate540)
		}
	}
	m.dpcd[dpcd.MaxLaneCount] = uint8(c.MaxLanes) | dpcd.EnhancedFrameEn
	m.dpcd[dpcd.SinkCount] = 1
	return m
}

// Get returns the DPCD register at addr.
func (m *Mem) Get(addr uint32) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dpcd[addr]
}

// Set the DPCD register at addr as the sink would.
func (m *Mem) Set(addr uint32, v uint8) {
	m.mu.Lock()
	m.dpcd[addr] = v
	m.mu.Unlock()
}

// SetEDID replaces the sink's EDID.
func (m *Mem) SetEDID(b []byte) {
	m.mu.Lock()
	m.edid = b
	m.mu.Unlock()
}

func (m *Mem) fail(op string, addr uint32) error {
	if m.Fail == nil {
		return nil
	}
	if err := m.Fail(op, addr); err != nil {
		return &Error{op, addr, err}
	}
	return nil
}

func (m *Mem) Read(addr uint32, n int) ([]byte, error) {
	if err := m.fail("read", addr); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = m.dpcd[addr+uint32(i)]
	}
	return b, nil
}

func (m *Mem) Write(addr uint32, b []byte) error {
	if err := m.fail("write", addr); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range b {
		a := addr + uint32(i)
		m.dpcd[a] = v
		if a == dpcd.TrainingPatternSet {
			m.train(v & 3)
		}
	}
	return nil
}

// train sets lane status for the pattern just selected.
func (m *Mem) train(p uint8) {
	if p == dpcd.PatternOff {
		return
	}
	var lane uint8
	rate := dpcd.LinkRate(m.dpcd[dpcd.LinkBwSet])
	if rate.Valid() && rate <= m.cap.MaxRate {
		lane = dpcd.LaneCrDone
		if p == dpcd.Pattern2 {
			lane |= dpcd.LaneChannelEq | dpcd.LaneSymbolLocked
		}
	}
	n := dpcd.LaneCount(m.dpcd[dpcd.LaneCountSet] & dpcd.LaneCountMask)
	if n > m.cap.MaxLanes {
		n = m.cap.MaxLanes
	}
	var st [4]uint8
	for i := 0; i < int(n) && i < len(st); i++ {
		st[i] = lane
	}
	m.dpcd[dpcd.Lane01Status] = st[0] | st[1]<<4
	m.dpcd[dpcd.Lane23Status] = st[2] | st[3]<<4
	m.dpcd[dpcd.LaneAlignStatus] = 0
	if p == dpcd.Pattern2 && lane != 0 {
		m.dpcd[dpcd.LaneAlignStatus] = dpcd.InterlaneAlignDone
	}
}

func (m *Mem) I2CRead(dev, off uint8, n int) ([]byte, error) {
	return m.i2cRead(dev, off, n, true)
}

// i2cRead reads n EDID bytes at off within the current segment. The
// segment pointer resets at the stop condition.
func (m *Mem) i2cRead(dev, off uint8, n int, stop bool) ([]byte, error) {
	if err := m.fail("i2c read", uint32(dev)); err != nil {
		return nil, err
	}
	if dev != EdidAddr {
		return nil, &Error{"i2c read", uint32(dev), ErrNack}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	base := int(m.seg)*256 + int(off)
	if stop {
		m.seg = 0
	}
	b := make([]byte, n)
	for i := range b {
		j := base + i
		if j < len(m.edid) {
			b[i] = m.edid[j]
		}
		if j%128 == 127 && m.Corrupt > 0 {
			m.Corrupt--
			b[i] ^= 0xFF
		}
	}
	return b, nil
}

func (m *Mem) stop() {
	m.mu.Lock()
	m.seg = 0
	m.mu.Unlock()
}

func (m *Mem) I2CWrite(dev uint8, b []byte) error {
	if err := m.fail("i2c write", uint32(dev)); err != nil {
		return err
	}
	if dev != SegmentAddr || len(b) != 1 {
		return &Error{"i2c write", uint32(dev), ErrNack}
	}
	m.mu.Lock()
	m.seg = b[0]
	m.mu.Unlock()
	return nil
}
