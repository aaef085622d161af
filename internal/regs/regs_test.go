// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regs

import (
	"reflect"
	"testing"
)

func TestWindow(t *testing.T) {
	s := NewSim()
	w := Window{s, 0x1000}
	w.Write32(4, 0xab)
	if v := s.Read32(0x1004); v != 0xab {
		t.Error("wrong:", v)
	}
	if v := w.Read32(4); v != 0xab {
		t.Error("wrong:", v)
	}
}

func TestSetClearField(t *testing.T) {
	s := NewSim()
	Set(s, 0, 0x5)
	Set(s, 0, 0x8)
	if v := s.Read32(0); v != 0xd {
		t.Error("wrong:", v)
	}
	Clear(s, 0, 0x4)
	if v := s.Read32(0); v != 0x9 {
		t.Error("wrong:", v)
	}
	if !IsSet(s, 0, 0x9) || IsSet(s, 0, 0x2) {
		t.Error("wrong IsSet")
	}
	Field(s, 0, 0xf0, 4, 0x3)
	if v := s.Read32(0); v != 0x39 {
		t.Errorf("wrong: %#x", v)
	}
}

func TestSimHooks(t *testing.T) {
	s := NewSim()
	s.OnWrite(0x10, func(v uint32) { s.Set(0x14, v+1) })
	fifo := []uint32{1, 2, 3}
	s.OnRead(0x18, func() uint32 {
		v := fifo[0]
		fifo = fifo[1:]
		return v
	})
	s.Write32(0x10, 7)
	if v := s.Read32(0x14); v != 8 {
		t.Error("wrong:", v)
	}
	var got []uint32
	for i := 0; i < 3; i++ {
		got = append(got, s.Read32(0x18))
	}
	if !reflect.DeepEqual(got, []uint32{1, 2, 3}) {
		t.Error("wrong:", got)
	}
	s.Write32(0x10, 9)
	if w := s.WritesTo(0x10); !reflect.DeepEqual(w, []uint32{7, 9}) {
		t.Error("wrong:", w)
	}
	if n := len(s.Writes()); n != 2 {
		t.Error("wrong:", n)
	}
	s.Forget()
	if n := len(s.Writes()); n != 0 {
		t.Error("wrong:", n)
	}
}
