// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regs

import "sync"

// Access is one logged register write.
type Access struct {
	Off, V uint32
}

// Sim is an in-memory File. Writes are logged and may trigger hooks that
// model the core's reaction; reads may be served by hooks for FIFO style
// registers.
type Sim struct {
	mu     sync.Mutex
	r      map[uint32]uint32
	onw    map[uint32]func(v uint32)
	onr    map[uint32]func() uint32
	writes []Access
}

func NewSim() *Sim {
	return &Sim{
		r:   make(map[uint32]uint32),
		onw: make(map[uint32]func(uint32)),
		onr: make(map[uint32]func() uint32),
	}
}

func (s *Sim) Read32(off uint32) uint32 {
	s.mu.Lock()
	h, v := s.onr[off], s.r[off]
	s.mu.Unlock()
	if h != nil {
		return h()
	}
	return v
}

func (s *Sim) Write32(off, v uint32) {
	s.mu.Lock()
	s.r[off] = v
	s.writes = append(s.writes, Access{off, v})
	h := s.onw[off]
	s.mu.Unlock()
	if h != nil {
		h(v)
	}
}

// Set a register as the hardware would, without logging or hooks.
func (s *Sim) Set(off, v uint32) {
	s.mu.Lock()
	s.r[off] = v
	s.mu.Unlock()
}

// OnWrite installs a hook run after each write to off.
func (s *Sim) OnWrite(off uint32, h func(v uint32)) {
	s.mu.Lock()
	s.onw[off] = h
	s.mu.Unlock()
}

// OnRead installs a hook that serves reads of off.
func (s *Sim) OnRead(off uint32, h func() uint32) {
	s.mu.Lock()
	s.onr[off] = h
	s.mu.Unlock()
}

// Writes returns a copy of the write log.
func (s *Sim) Writes() []Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Access(nil), s.writes...)
}

// WritesTo returns the values written to off, oldest first.
func (s *Sim) WritesTo(off uint32) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var vs []uint32
	for _, a := range s.writes {
		if a.Off == off {
			vs = append(vs, a.V)
		}
	}
	return vs
}

// Forget the write log.
func (s *Sim) Forget() {
	s.mu.Lock()
	s.writes = s.writes[:0]
	s.mu.Unlock()
}
