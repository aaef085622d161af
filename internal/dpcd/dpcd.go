// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dpcd names the sink's DisplayPort configuration data registers
// and the link parameters carried in them.
package dpcd

import (
	"fmt"
	"strconv"
	"strings"
)

// Sink register addresses.
const (
	Rev                = 0x000
	MaxLinkRate        = 0x001
	MaxLaneCount       = 0x002
	TrainAuxRdInterval = 0x00E
	LinkBwSet          = 0x100
	LaneCountSet       = 0x101
	TrainingPatternSet = 0x102
	TrainingLane0Set   = 0x103
	SinkCount          = 0x200
	DeviceServiceIrq   = 0x201
	Lane01Status       = 0x202
	Lane23Status       = 0x203
	LaneAlignStatus    = 0x204
	AdjustRequest01    = 0x206
	AdjustRequest23    = 0x207
	SetPower           = 0x600
	ExtMaxLinkRate     = 0x2201
	DprxFeatureEnum    = 0x2210
)

const (
	// ExtCapFieldPresent in TrainAuxRdInterval
	ExtCapFieldPresent = 0x80
	// LaneCountMask for MaxLaneCount and LaneCountSet
	LaneCountMask   = 0x1F
	EnhancedFrameEn = 0x80
	// InterlaneAlignDone in LaneAlignStatus
	InterlaneAlignDone = 0x01
	// VscSdpColorimetry in DprxFeatureEnum
	VscSdpColorimetry = 0x08

	PowerD0 = 0x01
	PowerD3 = 0x02

	LaneCrDone       = 0x01
	LaneChannelEq    = 0x02
	LaneSymbolLocked = 0x04

	PatternOff  = 0x00
	Pattern1    = 0x01
	Pattern2    = 0x02
	ScrambleDis = 0x20

	MaxSwing    = 3
	MaxPreemph  = 3
	SwingMaxHit = 0x04
	PreMaxHit   = 0x20
)

// LinkRate is the link bandwidth code; the per-lane rate is code × 0.27 Gbps.
type LinkRate uint8

const (
	Rate162 LinkRate = 0x06
	Rate270 LinkRate = 0x0A
	Rate540 LinkRate = 0x14
	Rate810 LinkRate = 0x1E
)

var Rates = []LinkRate{Rate162, Rate270, Rate540, Rate810}

func (r LinkRate) Valid() bool {
	switch r {
	case Rate162, Rate270, Rate540, Rate810:
		return true
	}
	return false
}

// MHz is the link symbol clock.
func (r LinkRate) MHz() uint64 { return uint64(r) * 27 }

// Gbps is the per-lane bit rate.
func (r LinkRate) Gbps() float64 { return float64(r) * 0.27 }

func (r LinkRate) String() string {
	switch r {
	case Rate162:
		return "1.62"
	case Rate270:
		return "2.7"
	case Rate540:
		return "5.4"
	case Rate810:
		return "8.1"
	}
	return fmt.Sprintf("0x%02x", uint8(r))
}

// ParseRate accepts a Gbps string ("5.4") or a bandwidth code ("0x14").
func ParseRate(s string) (LinkRate, error) {
	for _, r := range Rates {
		if s == r.String() {
			return r, nil
		}
	}
	s = strings.TrimSuffix(strings.ToLower(s), "gbps")
	u, err := strconv.ParseUint(s, 0, 8)
	if err != nil || !LinkRate(u).Valid() {
		return 0, fmt.Errorf("%s: invalid link rate", s)
	}
	return LinkRate(u), nil
}

// MinRate returns the lower of two rates.
func MinRate(a, b LinkRate) LinkRate {
	if a < b {
		return a
	}
	return b
}

// LaneCount is the number of main link lanes.
type LaneCount uint8

func (n LaneCount) Valid() bool { return n == 1 || n == 2 || n == 4 }

func (n LaneCount) String() string { return strconv.Itoa(int(n)) }

// Mask has a bit set for each active lane.
func (n LaneCount) Mask() uint8 { return uint8(1)<<n - 1 }

func ParseLanes(s string) (LaneCount, error) {
	u, err := strconv.ParseUint(s, 0, 8)
	if err != nil || !LaneCount(u).Valid() {
		return 0, fmt.Errorf("%s: invalid lane count", s)
	}
	return LaneCount(u), nil
}

func MinLanes(a, b LaneCount) LaneCount {
	if a < b {
		return a
	}
	return b
}

// Capability is what the sink advertised on the last connect.
type Capability struct {
	MaxRate  LinkRate
	MaxLanes LaneCount
	Extended bool
}

// Supports810 is true only when the extended receiver capability field
// advertised 8.1 Gbps.
func (c Capability) Supports810() bool {
	return c.Extended && c.MaxRate == Rate810
}

func (c Capability) String() string {
	s := c.MaxRate.String() + "x" + c.MaxLanes.String()
	if c.Extended {
		s += " ext"
	}
	return s
}
