// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package status

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/garyburd/redigo/redis"
	"github.com/platinasystems/dprepeater/internal/board"
	"github.com/platinasystems/dprepeater/internal/config"
)

type lines []string

func (l *lines) Print(a ...interface{}) (int, error) {
	s := fmt.Sprint(a...)
	*l = append(*l, s)
	return len(s), nil
}

type conn struct {
	redis.Conn
	cmd  string
	args []interface{}
}

func (c *conn) Do(cmd string, args ...interface{}) (interface{}, error) {
	c.cmd, c.args = cmd, args
	return "OK", nil
}

func TestSnapshotIdle(t *testing.T) {
	b, _ := board.NewSim(config.Default(), board.DefaultSink)
	b.Fast()
	b.Start()
	m := Snapshot(b)
	for k, want := range map[string]string{
		"dp.rx.link":       "down",
		"dp.sync.state":    "idle",
		"dp.rx.format":     "",
		"dp.tx.hotplug":    "disconnected",
		"dp.tx.run":        "",
		"dp.tx.max_rate":   "8.1",
		"dp.acr.fs":        "0",
		"dp.acr.started":   "false",
		"dp.acr.infoframe": "wait",
	} {
		if m[k] != want {
			t.Errorf("%s: wrong: %q", k, m[k])
		}
	}
}

func TestSnapshotConnected(t *testing.T) {
	b, s := board.NewSim(config.Default(), board.DefaultSink)
	b.Fast()
	b.Start()
	s.Plug(true)
	b.Watcher.Once()
	b.Loop.Tick(context.Background())
	m := Snapshot(b)
	if m["dp.tx.hotplug"] != "trained" {
		t.Error("wrong:", m["dp.tx.hotplug"])
	}
	if m["dp.tx.cap"] != "5.4x4" {
		t.Error("wrong cap:", m["dp.tx.cap"])
	}
	if m["dp.tx.run"] != "5.4x4" {
		t.Error("wrong run:", m["dp.tx.run"])
	}
	if m["dp.tx.mode"] != "1920x1080@60 8bpc" {
		t.Error("wrong mode:", m["dp.tx.mode"])
	}
}

func TestPublishChanges(t *testing.T) {
	var l lines
	s := New(&l)
	n, err := s.Publish(map[string]string{"dp.b": "1", "dp.a": "x"})
	if err != nil || n != 2 {
		t.Fatal(n, err)
	}
	if !reflect.DeepEqual([]string(l), []string{"dp.a: x", "dp.b: 1"}) {
		t.Error("wrong:", l)
	}
	l = nil
	n, _ = s.Publish(map[string]string{"dp.b": "2", "dp.a": "x"})
	if n != 1 || !reflect.DeepEqual([]string(l), []string{"dp.b: 2"}) {
		t.Error("wrong:", n, l)
	}
}

func TestPublishEmptyValue(t *testing.T) {
	var l lines
	s := New(&l)
	if n, _ := s.Publish(map[string]string{"dp.rx.format": ""}); n != 1 {
		t.Error("first empty value not published")
	}
	if n, _ := s.Publish(map[string]string{"dp.rx.format": ""}); n != 0 {
		t.Error("repeated:", l)
	}
}

func TestStore(t *testing.T) {
	c := new(conn)
	err := Store(c, "platina", map[string]string{
		"dp.sync.state": "idle",
		"dp.rx.link":    "down",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []interface{}{"platina", "dp.rx.link", "down",
		"dp.sync.state", "idle"}
	if c.cmd != "HMSET" || !reflect.DeepEqual(c.args, want) {
		t.Error("wrong:", c.cmd, c.args)
	}
	c = new(conn)
	if Store(c, "platina", nil); c.cmd != "" {
		t.Error("empty snapshot stored")
	}
}
