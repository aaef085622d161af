// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package goes runs one of a set of commands by name, as a busybox style
// multi-call program.
package goes

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/platinasystems/dprepeater/goes/cmd"
	"github.com/platinasystems/log"
)

var (
	Exit = os.Exit

	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

type ByName map[string]cmd.Cmd

type closer interface {
	Close() error
}

type helper interface {
	Help(...string) string
}

// Plot commands on map.
func (byName ByName) Plot(cmds ...cmd.Cmd) {
	for _, v := range cmds {
		name := v.String()
		if _, found := byName[name]; found {
			panic(fmt.Errorf("%s: duplicate", name))
		}
		byName[name] = v
	}
}

func (byName ByName) Keys() []string {
	keys := make([]string, 0, len(byName))
	for k := range byName {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Main runs the command named by args[0], or by the program name if that's
// a command, or by os.Args when run without args. In the last case an error
// exits instead of returns.
//
//	COMMAND -apropos
//	COMMAND -usage
//	COMMAND -help [ARGS]...
//
// print the command's text instead.
func (byName ByName) Main(args ...string) (err error) {
	var isDaemon bool
	if len(args) == 0 {
		args = os.Args
		if len(args) == 0 {
			return
		}
		defer func() {
			if err != nil && err != io.EOF {
				fmt.Fprintf(Stderr, "%s: %v\n",
					filepath.Base(os.Args[0]), err)
				Exit(1)
			}
		}()
	}
	defer func() {
		if err == io.EOF {
			err = nil
		}
		if isDaemon && err != nil {
			log.Print("daemon", "err", err)
		}
	}()
	if byName.isCommand(filepath.Base(args[0])) {
		args[0] = filepath.Base(args[0])
	} else {
		args = args[1:]
	}
	if len(args) == 0 {
		return byName.apropos()
	}
	args = append([]string{}, args...)
	cmd.Swap(args)
	switch args[0] {
	case "apropos":
		return byName.apropos(args[1:]...)
	case "usage":
		return byName.usage(args[1:]...)
	case "help":
		return byName.help(args[1:]...)
	}
	v, found := byName[args[0]]
	if !found {
		return fmt.Errorf("%s: command not found", args[0])
	}
	isDaemon = cmd.WhatKind(v).IsDaemon()
	if isDaemon {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGTERM)
		defer signal.Stop(sig)
		go wait(v, sig)
	}
	err = v.Main(args[1:]...)
	if err != nil && !isDaemon {
		err = fmt.Errorf("%s: %v", args[0], err)
	}
	return
}

func (byName ByName) isCommand(name string) bool {
	if _, found := byName[name]; found {
		return true
	}
	_, found := cmd.Helpers[name]
	return found
}

func (byName ByName) lookup(names []string) ([]cmd.Cmd, error) {
	if len(names) == 0 {
		names = byName.Keys()
	}
	cmds := make([]cmd.Cmd, 0, len(names))
	for _, name := range names {
		v, found := byName[name]
		if !found {
			return nil, fmt.Errorf("%s: not found", name)
		}
		cmds = append(cmds, v)
	}
	return cmds, nil
}

func (byName ByName) apropos(names ...string) error {
	cmds, err := byName.lookup(names)
	if err != nil {
		return err
	}
	for _, v := range cmds {
		if cmd.WhatKind(v).IsHidden() && len(names) == 0 {
			continue
		}
		name := v.String()
		pad := 16 - len(name)
		if pad < 1 {
			pad = 1
		}
		fmt.Fprint(Stdout, name, strings.Repeat(" ", pad), v.Apropos(),
			"\n")
	}
	return nil
}

func (byName ByName) usage(names ...string) error {
	cmds, err := byName.lookup(names)
	if err != nil {
		return err
	}
	for _, v := range cmds {
		fmt.Fprintln(Stdout, Usage(v))
	}
	return nil
}

func (byName ByName) help(args ...string) error {
	if len(args) == 0 {
		return byName.apropos()
	}
	v, found := byName[args[0]]
	if !found {
		return fmt.Errorf("%s: not found", args[0])
	}
	if h, ok := v.(helper); ok {
		fmt.Fprintln(Stdout, h.Help(args[1:]...))
		return nil
	}
	fmt.Fprintln(Stdout, Usage(v))
	return nil
}

// Usage returns the command's usage text without its leading indentation.
func Usage(v cmd.Cmd) string {
	lines := strings.Split(strings.Trim(v.Usage(), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, "\t")
	}
	return "usage:\t" + strings.Join(lines, "\n\t")
}

func wait(v cmd.Cmd, ch chan os.Signal) {
	if _, ok := <-ch; !ok {
		return
	}
	if c, ok := v.(closer); ok {
		if err := c.Close(); err != nil {
			fmt.Fprintln(Stderr, err)
		}
	}
}
