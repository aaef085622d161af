// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package audpins

import (
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/gpio"
)

// Pin names in the device tree.
const (
	ResetPin = "AUDIO_MMCM_RST"
	FifoPin  = "AUDIO_FIFO_EN"
)

// Sysfs is Lines on Linux GPIO pins.
type Sysfs struct {
	Reset, Release gpio.Pin
}

func (s *Sysfs) PulseReset() error {
	if err := s.Reset.SetValue(true); err != nil {
		return err
	}
	return s.Reset.SetValue(false)
}

func (s *Sysfs) Fifo(release bool) error { return s.Release.SetValue(release) }

// Discover builds the pin map from the device tree blob and finds the
// audio lines.
func Discover(dtb string) (*Sysfs, error) {
	b, err := ioutil.ReadFile(dtb)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", dtb, err)
	}
	gpio.Aliases = make(gpio.GpioAliasMap)
	gpio.Pins = make(gpio.PinMap)
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	t.Parse(b)
	t.MatchNode("aliases", aliases)
	t.EachProperty("gpio-controller", "", controller)
	s := new(Sysfs)
	for _, p := range []struct {
		name string
		pin  *gpio.Pin
	}{
		{ResetPin, &s.Reset},
		{FifoPin, &s.Release},
	} {
		pin, found := gpio.Pins[p.name]
		if !found {
			return nil, fmt.Errorf("%s: %s not found", dtb, p.name)
		}
		*p.pin = pin
		if err = pin.SetDirection(); err != nil {
			return nil, fmt.Errorf("%s: %v", p.name, err)
		}
	}
	return s, nil
}

// aliases maps each gpio controller alias to its node name.
func aliases(n *fdt.Node) {
	for p, v := range n.Properties {
		if !strings.Contains(p, "gpio") {
			continue
		}
		path := strings.Split(string(v), "\x00")[0]
		gpio.Aliases[p] = path[strings.LastIndex(path, "/")+1:]
	}
}

// controller adds the described pins of a gpio controller node.
func controller(n *fdt.Node, name string, value string) {
	for bank, node := range gpio.Aliases {
		if node != n.Name {
			continue
		}
		for _, c := range n.Children {
			desc, mode := false, ""
			for p := range c.Properties {
				switch p {
				case "gpio-pin-desc":
					desc = true
				case "output-high", "output-low", "input":
					mode = p
				}
			}
			at := strings.Split(c.Name, "@")
			if !desc || mode == "" || len(at) != 2 {
				continue
			}
			i, _ := strconv.Atoi(at[1])
			gpio.Pins[at[0]] = gpio.GpioPinMode[mode] |
				gpio.GpioBankToBase[bank] | gpio.Pin(i)
		}
	}
}
