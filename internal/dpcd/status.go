// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dpcd

import "fmt"

// Status holds the lane status bytes, 0x202 through 0x204.
type Status struct {
	Lane01, Lane23 uint8
	Align          uint8
}

// StatusOf decodes a read of three bytes at Lane01Status.
func StatusOf(b []byte) Status {
	var s Status
	if len(b) > 0 {
		s.Lane01 = b[0]
	}
	if len(b) > 1 {
		s.Lane23 = b[1]
	}
	if len(b) > 2 {
		s.Align = b[2]
	}
	return s
}

// masks returns the status nibble masks that matter for n lanes.
func masks(n LaneCount, bits uint8) (lane01, lane23 uint8) {
	both := bits | bits<<4
	switch n {
	case 4:
		return both, both
	case 2:
		return both, 0
	case 1:
		return bits, 0
	}
	return 0xff, 0xff
}

func (s Status) has(n LaneCount, bits uint8) bool {
	if !n.Valid() {
		return false
	}
	m01, m23 := masks(n, bits)
	return s.Lane01&m01 == m01 && s.Lane23&m23 == m23
}

// ClockRecovered for the active lanes.
func (s Status) ClockRecovered(n LaneCount) bool {
	return s.has(n, LaneCrDone)
}

// Equalized is channel equalization and symbol lock for the active lanes.
func (s Status) Equalized(n LaneCount) bool {
	return s.has(n, LaneChannelEq|LaneSymbolLocked)
}

func (s Status) Aligned() bool { return s.Align&InterlaneAlignDone != 0 }

// Done is true when the active lanes have recovered clock, equalized,
// locked symbols and the link is interlane aligned. Bits of unused lanes
// are ignored.
func (s Status) Done(n LaneCount) bool {
	return s.has(n, LaneCrDone|LaneChannelEq|LaneSymbolLocked) &&
		s.Aligned()
}

func (s Status) String() string {
	return fmt.Sprintf("%02x;%02x;%02x", s.Lane01, s.Lane23, s.Align)
}

// Adjust returns the swing and pre-emphasis levels requested for lane i
// from the AdjustRequest01 and AdjustRequest23 bytes.
func Adjust(req [2]uint8, i int) (swing, preemph uint8) {
	v := req[i/2] >> (4 * uint(i%2))
	return v & 0x3, (v >> 2) & 0x3
}

// LaneSet encodes TrainingLaneNSet for the given levels.
func LaneSet(swing, preemph uint8) uint8 {
	v := swing&0x3 | (preemph&0x3)<<3
	if swing >= MaxSwing {
		v |= SwingMaxHit
	}
	if preemph >= MaxPreemph {
		v |= PreMaxHit
	}
	return v
}
