// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dpstatus prints the repeater status that dpsyncd publishes.
package dpstatus

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/platinasystems/dprepeater/goes/lang"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis"
)

const (
	Name   = "dpstatus"
	Prefix = "dp."
	Usage  = `
	dpstatus [-n] [-hash KEY] [FIELD]...`
	Man = `
DESCRIPTION
	Print the dp.* fields of the redis hash, all of them or those named.
	A FIELD may omit the "dp." prefix.

OPTIONS
	-n	print field names only
	-hash KEY
		read KEY instead of the default hash`
)

// Source is the redis hash reader.
type Source interface {
	Hkeys(key string) ([]string, error)
	Hget(key, field string) (string, error)
}

type server struct{}

func (server) Hkeys(key string) ([]string, error) {
	return redis.Hkeys(key)
}

func (server) Hget(key, field string) (string, error) {
	return redis.Hget(key, field)
}

type Command struct {
	// Source defaults to the local redis server.
	Source Source
	Stdout io.Writer
}

func (*Command) String() string { return Name }
func (*Command) Usage() string  { return Usage }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "print DisplayPort repeater status",
	}
}

func (*Command) Help(...string) string { return Usage + "\n" + Man }

func (c *Command) Main(args ...string) error {
	flag, args := flags.New(args, "-n")
	parm, args := parms.New(args, "-hash")
	src, w := c.Source, c.Stdout
	if src == nil {
		src = server{}
	}
	if w == nil {
		w = os.Stdout
	}
	key := parm.ByName["-hash"]
	keys, err := src.Hkeys(key)
	if err != nil {
		return err
	}
	fields, err := Select(keys, args)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if flag.ByName["-n"] {
			fmt.Fprintln(w, f)
			continue
		}
		v, err := src.Hget(key, f)
		if err != nil {
			return err
		}
		fmt.Fprint(w, f, ": ", v, "\n")
	}
	return nil
}

// Select returns, in order, the dp.* keys or those named.
func Select(keys, names []string) ([]string, error) {
	have := make(map[string]bool)
	var all []string
	for _, k := range keys {
		if strings.HasPrefix(k, Prefix) {
			have[k] = true
			all = append(all, k)
		}
	}
	sort.Strings(all)
	if len(names) == 0 {
		return all, nil
	}
	fields := make([]string, 0, len(names))
	for _, name := range names {
		if !strings.HasPrefix(name, Prefix) {
			name = Prefix + name
		}
		if !have[name] {
			return nil, fmt.Errorf("%s: not found", name)
		}
		fields = append(fields, name)
	}
	return fields, nil
}
