// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sideband

import (
	"fmt"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// Limits of the jitter attenuator's PLL.
const (
	DcoMin   = 4850 * physic.MegaHertz
	DcoMax   = 5670 * physic.MegaHertz
	PfdMin   = 2 * physic.KiloHertz
	PfdMax   = 2 * physic.MegaHertz
	HsMin    = 4
	HsMax    = 11
	LsMax    = 1 << 20
	N31Max   = 1 << 19
	ClockMax = 1400 * physic.MegaHertz
)

var ErrNoPlan = errors.New("no frequency plan")

// Plan is a divider setting:
//
//	out = in × N2HS × N2LS / (N31 × N1HS × NC1LS)
//
// with the DCO, in / N31 × N2HS × N2LS, and the phase detector, in / N31,
// inside their limits.
type Plan struct {
	N1HS, NC1LS uint32
	N2HS, N2LS  uint32
	N31         uint32
}

func (p Plan) String() string {
	return fmt.Sprintf("n1 %d×%d n2 %d×%d n31 %d", p.N1HS, p.NC1LS,
		p.N2HS, p.N2LS, p.N31)
}

func hz(f physic.Frequency) uint64 { return uint64(f / physic.Hertz) }

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Solve finds a Plan for an exact ratio of out to in. It prefers the
// largest output high speed divider, then the lowest DCO.
func Solve(in, out physic.Frequency) (Plan, error) {
	fin, fout := hz(in), hz(out)
	if fin == 0 || fout == 0 || out > ClockMax {
		return Plan{}, errors.Wrapf(ErrNoPlan, "%v to %v", in, out)
	}
	dmin, dmax := hz(DcoMin), hz(DcoMax)
	for n1hs := uint64(HsMax); n1hs >= HsMin; n1hs-- {
		// NC1LS is 1 or even
		ls := (dmin + fout*n1hs - 1) / (fout * n1hs)
		if ls > 1 && ls%2 != 0 {
			ls++
		}
		for ; ls <= LsMax; ls += 2 {
			dco := fout * n1hs * ls
			if dco > dmax {
				break
			}
			if p, ok := feedback(fin, dco); ok {
				p.N1HS, p.NC1LS = uint32(n1hs), uint32(ls)
				return p, nil
			}
			if ls == 1 {
				ls = 0
			}
		}
	}
	return Plan{}, errors.Wrapf(ErrNoPlan, "%v to %v", in, out)
}

// feedback finds N31 and N2 for a DCO of dco Hz from fin Hz.
func feedback(fin, dco uint64) (Plan, bool) {
	g := gcd(dco, fin)
	num, den := dco/g, fin/g
	pfdMin, pfdMax := hz(PfdMin), hz(PfdMax)
	for k := uint64(1); den*k <= N31Max; k++ {
		n31 := den * k
		pfd := fin / n31
		if pfd > pfdMax {
			continue
		}
		if pfd < pfdMin {
			break
		}
		n2 := num * k
		for hs := uint64(HsMax); hs >= HsMin; hs-- {
			if n2%hs != 0 {
				continue
			}
			if ls := n2 / hs; ls%2 == 0 && ls <= LsMax {
				return Plan{
					N2HS: uint32(hs),
					N2LS: uint32(ls),
					N31:  uint32(n31),
				}, true
			}
		}
	}
	return Plan{}, false
}

// Out computes the output of p for in.
func (p Plan) Out(in physic.Frequency) physic.Frequency {
	f := hz(in) * uint64(p.N2HS) * uint64(p.N2LS) /
		(uint64(p.N31) * uint64(p.N1HS) * uint64(p.NC1LS))
	return physic.Frequency(f) * physic.Hertz
}

// Dco computes the oscillator frequency of p for in.
func (p Plan) Dco(in physic.Frequency) physic.Frequency {
	f := hz(in) * uint64(p.N2HS) * uint64(p.N2LS) / uint64(p.N31)
	return physic.Frequency(f) * physic.Hertz
}
