// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package caps

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/dpaux"
	"github.com/platinasystems/dprepeater/internal/dpcd"
)

func TestRefresh(t *testing.T) {
	for _, x := range []struct {
		name string
		sink dpcd.Capability
		lim  dpcd.Capability
		want dpcd.Capability
	}{
		{
			name: "plain",
			sink: dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4},
			want: dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4},
		},
		{
			name: "extended",
			sink: dpcd.Capability{MaxRate: dpcd.Rate810, MaxLanes: 4,
				Extended: true},
			want: dpcd.Capability{MaxRate: dpcd.Rate810, MaxLanes: 4,
				Extended: true},
		},
		{
			name: "limited",
			sink: dpcd.Capability{MaxRate: dpcd.Rate810, MaxLanes: 4,
				Extended: true},
			lim: dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 2},
			want: dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 2,
				Extended: true},
		},
	} {
		s := &Store{Aux: aux.NewSink(x.sink, nil), Limit: x.lim}
		c, err := s.Refresh()
		if err != nil {
			t.Fatal(x.name, err)
		}
		if c != x.want {
			t.Error(x.name, "wrong:", c)
		}
		if c.Supports810() != (x.want.MaxRate == dpcd.Rate810) {
			t.Error(x.name, "wrong 8.1 support")
		}
	}
}

func TestRefreshInvalidUsesLimit(t *testing.T) {
	m := aux.NewSink(dpcd.Capability{MaxRate: dpcd.Rate270, MaxLanes: 2},
		nil)
	m.Set(dpcd.MaxLinkRate, 0x07)
	m.Set(dpcd.MaxLaneCount, 3)
	s := &Store{
		Aux:   m,
		Limit: dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4},
	}
	c, err := s.Refresh()
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxRate != dpcd.Rate540 || c.MaxLanes != 4 {
		t.Error("wrong:", c)
	}
}

func TestRefreshRereadsOnce(t *testing.T) {
	m := aux.NewSink(dpcd.Capability{MaxRate: dpcd.Rate270, MaxLanes: 2},
		nil)
	reads := 0
	m.Fail = func(op string, addr uint32) error {
		if op == "read" && addr == dpcd.Rev {
			reads++
			if reads == 1 {
				m.Set(dpcd.MaxLinkRate, 0)
			} else {
				m.Set(dpcd.MaxLinkRate, uint8(dpcd.Rate270))
			}
		}
		return nil
	}
	s := &Store{Aux: m}
	c, _ := s.Refresh()
	if c.MaxRate != dpcd.Rate270 || reads != 2 {
		t.Error("wrong:", c, reads)
	}
}

func TestRefreshFailSafe(t *testing.T) {
	m := aux.NewSink(dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4},
		nil)
	m.Fail = func(string, uint32) error { return aux.ErrNoReply }
	s := &Store{Aux: m}
	c, err := s.Refresh()
	if errors.Cause(err) != aux.ErrNoReply {
		t.Error("wrong error:", err)
	}
	if c != FailSafe {
		t.Error("wrong:", c)
	}
	if got, ok := s.Get(); !ok || got != FailSafe {
		t.Error("not kept:", got)
	}
}

func TestRunAndClear(t *testing.T) {
	m := aux.NewSink(dpcd.Capability{MaxRate: dpcd.Rate540, MaxLanes: 4},
		nil)
	m.Set(dpcd.DprxFeatureEnum, dpcd.VscSdpColorimetry)
	s := &Store{Aux: m}
	s.Refresh()
	if !s.VSC() {
		t.Error("vsc not read")
	}
	if _, _, ok := s.Run(); ok {
		t.Error("run before set")
	}
	s.SetRun(dpcd.Rate270, 2)
	if r, n, ok := s.Run(); !ok || r != dpcd.Rate270 || n != 2 {
		t.Error("wrong:", r, n)
	}
	s.Clear()
	if _, ok := s.Get(); ok {
		t.Error("not cleared")
	}
	if _, _, ok := s.Run(); ok {
		t.Error("run not cleared")
	}
}
