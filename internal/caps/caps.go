// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package caps keeps the sink's link capability, read once per connect, and
// the last link configuration that ran.
package caps

import (
	"sync"

	"github.com/platinasystems/dprepeater/internal/dpaux"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/log"
)

// FailSafe is assumed when the sink can't be read at all.
var FailSafe = dpcd.Capability{MaxRate: dpcd.Rate162, MaxLanes: 1}

type Store struct {
	Aux aux.Channel
	// Limit caps what the sink advertises; zero fields don't limit.
	Limit dpcd.Capability

	mu    sync.Mutex
	cap   dpcd.Capability
	vsc   bool
	valid bool
	rate  dpcd.LinkRate
	lanes dpcd.LaneCount
}

// Refresh reads the capability from the sink. An invalid rate or lane count
// is read once more, then replaced by the Limit. If the sink doesn't answer
// twice the FailSafe capability is kept and the read error is returned.
func (s *Store) Refresh() (dpcd.Capability, error) {
	s.mu.Lock()
	lim := s.Limit
	s.mu.Unlock()
	c, err := s.read(lim)
	if err != nil {
		log.Print("warning: sink capability: ", err, ", using ", FailSafe)
		c = FailSafe
	}
	vsc := false
	if err == nil {
		v, ferr := aux.ReadByte(s.Aux, dpcd.DprxFeatureEnum)
		vsc = ferr == nil && v&dpcd.VscSdpColorimetry != 0
	}
	s.mu.Lock()
	s.cap, s.vsc, s.valid = c, vsc, true
	s.mu.Unlock()
	return c, err
}

func (s *Store) readBase() ([]byte, error) {
	b, err := s.Aux.Read(dpcd.Rev, 3)
	if err != nil {
		b, err = s.Aux.Read(dpcd.Rev, 3)
	}
	return b, err
}

func (s *Store) read(lim dpcd.Capability) (dpcd.Capability, error) {
	var c dpcd.Capability
	b, err := s.readBase()
	if err != nil {
		return c, err
	}
	c.MaxRate = dpcd.LinkRate(b[1])
	c.MaxLanes = dpcd.LaneCount(b[2] & dpcd.LaneCountMask)
	if !c.MaxRate.Valid() || !c.MaxLanes.Valid() {
		if b, err = s.readBase(); err == nil {
			c.MaxRate = dpcd.LinkRate(b[1])
			c.MaxLanes = dpcd.LaneCount(b[2] & dpcd.LaneCountMask)
		}
	}
	if !c.MaxRate.Valid() {
		log.Print("warning: sink max rate ", c.MaxRate, " invalid")
		c.MaxRate = maxRate(lim)
	}
	if !c.MaxLanes.Valid() {
		log.Print("warning: sink max lanes ", c.MaxLanes, " invalid")
		c.MaxLanes = maxLanes(lim)
	}
	v, err := aux.ReadByte(s.Aux, dpcd.TrainAuxRdInterval)
	if err == nil && v&dpcd.ExtCapFieldPresent != 0 {
		v, err = aux.ReadByte(s.Aux, dpcd.ExtMaxLinkRate)
		if err == nil && dpcd.LinkRate(v) == dpcd.Rate810 {
			c.MaxRate = dpcd.Rate810
			c.Extended = true
		}
	}
	c.MaxRate = dpcd.MinRate(c.MaxRate, maxRate(lim))
	c.MaxLanes = dpcd.MinLanes(c.MaxLanes, maxLanes(lim))
	return c, nil
}

func maxRate(lim dpcd.Capability) dpcd.LinkRate {
	if lim.MaxRate.Valid() {
		return lim.MaxRate
	}
	return dpcd.Rate810
}

func maxLanes(lim dpcd.Capability) dpcd.LaneCount {
	if lim.MaxLanes.Valid() {
		return lim.MaxLanes
	}
	return 4
}

// SetLimit changes the configured maximum; it applies from the next
// Refresh.
func (s *Store) SetLimit(c dpcd.Capability) {
	s.mu.Lock()
	s.Limit = c
	s.mu.Unlock()
}

// Get returns the capability of the last Refresh.
func (s *Store) Get() (dpcd.Capability, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cap, s.valid
}

// VSC reports whether the sink accepts the VSC SDP colorimetry format.
func (s *Store) VSC() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vsc
}

// Clear forgets the capability and the run configuration.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cap, s.vsc, s.valid = dpcd.Capability{}, false, false
	s.rate, s.lanes = 0, 0
	s.mu.Unlock()
}

// SetRun records the link configuration the TX is running.
func (s *Store) SetRun(rate dpcd.LinkRate, lanes dpcd.LaneCount) {
	s.mu.Lock()
	s.rate, s.lanes = rate, lanes
	s.mu.Unlock()
}

// Run returns the link configuration that last ran, if any.
func (s *Store) Run() (dpcd.LinkRate, dpcd.LaneCount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate, s.lanes, s.rate.Valid() && s.lanes.Valid()
}
