// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package status publishes the controller's state as dp.* fields of the
// redis default hash.
package status

import (
	"fmt"
	"sort"

	"github.com/garyburd/redigo/redis"
	"github.com/platinasystems/dprepeater/internal/board"
	"github.com/platinasystems/dprepeater/internal/passthrough"
)

// Publisher is satisfied by *publisher.Publisher.
type Publisher interface {
	Print(a ...interface{}) (int, error)
}

// Snapshot returns the dp.* fields of b. It must run on the control loop.
func Snapshot(b *board.Board) map[string]string {
	m := make(map[string]string)
	up := "down"
	if b.Events.RxLinkUp.Get() {
		up = "up"
	}
	m["dp.rx.link"] = up
	st := b.Sync.State()
	m["dp.sync.state"] = st.String()
	m["dp.rx.format"] = ""
	if st >= passthrough.FormatKnown {
		m["dp.rx.format"] = b.Sync.RX().String()
	}
	m["dp.tx.decision"] = ""
	if st == passthrough.Streaming {
		m["dp.tx.decision"] = b.Sync.Decision().String()
	}
	m["dp.tx.hotplug"] = b.Hotplug.State().String()
	m["dp.tx.mode"] = ""
	m["dp.tx.cap"] = ""
	m["dp.tx.run"] = ""
	if c, ok := b.Caps.Get(); ok {
		m["dp.tx.mode"] = b.Hotplug.Mode().String()
		m["dp.tx.cap"] = c.String()
	}
	if rate, lanes, ok := b.Caps.Run(); ok {
		m["dp.tx.run"] = fmt.Sprint(rate, "x", lanes)
	}
	m["dp.tx.max_rate"] = b.Caps.Limit.MaxRate.String()
	a := b.Acr.State()
	m["dp.acr.fs"] = fmt.Sprint(a.LockedFs)
	m["dp.acr.khz"] = fmt.Sprint(a.ApproxKHz)
	m["dp.acr.started"] = fmt.Sprint(a.Started)
	m["dp.acr.infoframe"] = b.Acr.Policy.String()
	return m
}

// Keys returns the fields of m in order.
func Keys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Status remembers what was last published.
type Status struct {
	Pub  Publisher
	last map[string]string
}

func New(pub Publisher) *Status {
	return &Status{Pub: pub, last: make(map[string]string)}
}

// Publish prints each field of m that changed since the last call and
// returns how many did.
func (s *Status) Publish(m map[string]string) (int, error) {
	n := 0
	for _, k := range Keys(m) {
		v := m[k]
		if old, found := s.last[k]; found && old == v {
			continue
		}
		if _, err := s.Pub.Print(k, ": ", v); err != nil {
			return n, err
		}
		s.last[k] = v
		n++
	}
	return n, nil
}

// Store writes every field of m to hash with one HMSET.
func Store(conn redis.Conn, hash string, m map[string]string) error {
	if len(m) == 0 {
		return nil
	}
	args := redis.Args{}.Add(hash)
	for _, k := range Keys(m) {
		args = args.Add(k, m[k])
	}
	_, err := conn.Do("HMSET", args...)
	return err
}
