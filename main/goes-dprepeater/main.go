// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// This is the DisplayPort repeater's goes machine: the dpsyncd daemon and
// the dpstatus command.
package main

import (
	"github.com/platinasystems/dprepeater/cmd/dpstatus"
	"github.com/platinasystems/dprepeater/cmd/dpsyncd"
	"github.com/platinasystems/dprepeater/goes"
	"github.com/platinasystems/redis"
)

func Goes() goes.ByName {
	g := make(goes.ByName)
	g.Plot(new(dpsyncd.Command), new(dpstatus.Command))
	return g
}

func main() {
	if len(redis.DefaultHash) == 0 {
		redis.DefaultHash = "platina"
	}
	Goes().Main()
}
