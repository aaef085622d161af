// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dpsyncd runs the DisplayPort repeater's control loop and
// publishes its state to redis.
package dpsyncd

import (
	"context"
	"io"
	"net/rpc"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/platinasystems/atsock"
	"github.com/platinasystems/dprepeater/goes/cmd"
	"github.com/platinasystems/dprepeater/goes/lang"
	"github.com/platinasystems/dprepeater/internal/acr"
	"github.com/platinasystems/dprepeater/internal/board"
	"github.com/platinasystems/dprepeater/internal/config"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/msa"
	"github.com/platinasystems/dprepeater/internal/status"
	"github.com/platinasystems/log"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"
	"github.com/platinasystems/redis/rpc/args"
	"github.com/platinasystems/redis/rpc/reply"
)

const Name = "dpsyncd"

// Fields that hset may change.
const (
	InfoFrame = "dp.acr.infoframe"
	MaxRate   = "dp.tx.max_rate"
)

// Every is the status publication period.
var Every = time.Second

type Command struct {
	Info
}

type Info struct {
	mutex  sync.Mutex
	rpc    *atsock.RpcServer
	pub    *publisher.Publisher
	stop   chan struct{}
	board  *board.Board
	status *status.Status
}

func (*Command) String() string { return Name }

func (*Command) Usage() string {
	return "dpsyncd " + config.Usage
}

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "DisplayPort link and stream synchronization daemon",
	}
}

func (*Command) Kind() cmd.Kind { return cmd.Daemon }

func (c *Command) Main(args ...string) error {
	cfg, args, err := config.Parse(args)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		return errors.Errorf("%v: unexpected", args)
	}
	if err = redis.IsReady(); err != nil {
		return err
	}

	stop := make(chan struct{})
	c.mutex.Lock()
	c.stop = stop
	c.mutex.Unlock()

	var closer io.Closer
	var sim *board.Sim
	if cfg.Sim {
		c.board, sim = board.NewSim(cfg, board.DefaultSink)
	} else {
		c.board, closer, err = board.Open(cfg)
		if err != nil {
			return err
		}
		defer closer.Close()
	}
	c.board.Start()

	if c.pub, err = publisher.New(); err != nil {
		return err
	}
	defer c.pub.Close()
	c.status = status.New(c.pub)

	if c.rpc, err = atsock.NewRpcServer(Name); err != nil {
		return err
	}
	defer c.rpc.Close()

	rpc.Register(&c.Info)
	err = redis.Assign(redis.DefaultHash+":dp.", Name, "Info")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()
	if sim != nil {
		go simulate(ctx, sim)
	}
	go c.publish(ctx)

	log.Print("daemon", "info", "started ", cfg.Limit, " ", cfg.Policy)
	err = c.board.Run(ctx)
	if errors.Cause(err) == context.Canceled {
		err = nil
	}
	return err
}

func (c *Command) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	return nil
}

// snapshot takes the status on the control loop.
func (i *Info) snapshot(ctx context.Context) (map[string]string, error) {
	ch := make(chan map[string]string, 1)
	i.board.Loop.Do(func() { ch <- status.Snapshot(i.board) })
	select {
	case m := <-ch:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *Info) publish(ctx context.Context) {
	m, err := i.snapshot(ctx)
	if err != nil {
		return
	}
	if conn, err := redis.Connect(); err == nil {
		if err = status.Store(conn, redis.DefaultHash, m); err != nil {
			log.Print("daemon", "warn", "status: ", err)
		}
		conn.Close()
	}
	limit := log.NewLimited(8)
	t := time.NewTicker(Every)
	defer t.Stop()
	for {
		if _, err = i.status.Publish(m); err != nil {
			limit.Print("daemon", "warn", "publish: ", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if m, err = i.snapshot(ctx); err != nil {
			return
		}
	}
}

func (i *Info) Hset(args args.Hset, reply *reply.Hset) error {
	err := i.set(args.Field, string(args.Value))
	if err == nil {
		*reply = 1
	}
	return err
}

// set validates the value here and applies it on the control loop.
func (i *Info) set(field, value string) error {
	b := i.board
	switch field {
	case InfoFrame:
		p, err := acr.ParsePolicy(value)
		if err != nil {
			return err
		}
		b.Loop.Do(func() {
			b.Acr.SetPolicy(p)
			log.Print("daemon", "info", "info frame policy ", p)
		})
	case MaxRate:
		r, err := dpcd.ParseRate(value)
		if err != nil {
			return err
		}
		b.Loop.Do(func() {
			lim := b.Caps.Limit
			lim.MaxRate = r
			b.Caps.SetLimit(lim)
			log.Print("daemon", "info", "max rate ", r)
		})
	default:
		return errors.Errorf("cannot hset: %s", field)
	}
	return nil
}

// simulate plugs the simulated sink, sources 1080p60 on the RX and raises
// its vblanks.
func simulate(ctx context.Context, s *board.Sim) {
	s.Plug(true)
	s.Source(msa.FHD60)
	t := time.NewTicker(16 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.RaiseRx(core.RxIntrVBlank)
		}
	}
}
