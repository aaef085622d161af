// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package hotplug follows the sink through connect, disconnect and HPD
// pulses.
package hotplug

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/platinasystems/dprepeater/internal/caps"
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/dpaux"
	"github.com/platinasystems/dprepeater/internal/dpcd"
	"github.com/platinasystems/dprepeater/internal/edid"
	"github.com/platinasystems/dprepeater/internal/event"
	"github.com/platinasystems/dprepeater/internal/phy"
	"github.com/platinasystems/dprepeater/internal/train"
	"github.com/platinasystems/log"
)

// linkMask keeps the link BW and lane count fields of their DPCD bytes.
const linkMask = 0x1F

type State int

const (
	Disconnected State = iota
	Connected
	Trained
	TrainingFailed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Trained:
		return "trained"
	case TrainingFailed:
		return "training failed"
	}
	return fmt.Sprint("state(", int(s), ")")
}

// Audio is the audio path as seen by hot-plug.
type Audio interface {
	// Unplug mutes and returns the audio clocks to free-run.
	Unplug()
}

type Machine struct {
	Tx      core.Tx
	Aux     aux.Channel
	Caps    *caps.Store
	Trainer *train.Trainer
	Seq     *phy.Sequencer
	Phy     phy.Driver
	Audio   Audio
	Events  *event.Events
	// EdidAttempts is the number of whole EDID reads before fail-safe.
	EdidAttempts int
	// OnRetrain, if set, runs after a pulse retrained the link so the
	// stream can be restored.
	OnRetrain func(train.Result)

	mu     sync.Mutex
	state  State
	edid   []byte
	mode   edid.Mode
	result train.Result
	pulses *log.Limited
}

func New(tx core.Tx, c aux.Channel, s *caps.Store, t *train.Trainer,
	seq *phy.Sequencer, a Audio, e *event.Events) *Machine {
	return &Machine{
		Tx:           tx,
		Aux:          c,
		Caps:         s,
		Trainer:      t,
		Seq:          seq,
		Phy:          seq.Driver,
		Audio:        a,
		Events:       e,
		EdidAttempts: 2,
		pulses:       log.NewLimited(16),
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EDID returns the cached EDID; nil when fail-safe.
func (m *Machine) EDID() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.edid
}

// Mode is the sink's preferred mode, or edid.FailSafe.
func (m *Machine) Mode() edid.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Result is the last training outcome.
func (m *Machine) Result() train.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

func (m *Machine) set(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Connect wakes the sink, reads its EDID and capability and trains at the
// capability with the PHY moved to its rate.
func (m *Machine) Connect(ctx context.Context) error {
	m.set(Connected)
	if err := train.PowerCycle(ctx, m.Aux, m.Trainer.Timing); err != nil {
		log.Print("warning: sink wake: ", err)
	}
	b, err := edid.Read(m.Aux, m.EdidAttempts)
	mode := edid.FailSafe
	if err != nil {
		log.Print("warning: edid: ", err, ", using ", mode)
		b = nil
	} else {
		mode = edid.Preferred(b)
	}
	m.mu.Lock()
	m.edid, m.mode = b, mode
	m.mu.Unlock()
	c, _ := m.Caps.Refresh()
	log.Print("sink ", mode, " link ", c)
	return m.train(ctx, c.MaxRate, c.MaxLanes)
}

func (m *Machine) train(ctx context.Context, rate dpcd.LinkRate,
	lanes dpcd.LaneCount) error {
	if m.Seq.Current().Rate != rate {
		if err := m.Seq.Configure(ctx, rate); err != nil {
			m.set(TrainingFailed)
			return errors.Wrapf(err, "phy %v", rate)
		}
	}
	r, err := m.Trainer.Train(ctx, rate, lanes)
	m.mu.Lock()
	m.result = r
	if err != nil {
		m.state = TrainingFailed
	} else {
		m.state = Trained
	}
	m.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "train %v", r)
	}
	m.Caps.SetRun(rate, lanes)
	return nil
}

// Disconnect mutes, stops and quiesces the TX, and forgets the sink.
func (m *Machine) Disconnect() {
	m.Audio.Unplug()
	m.Tx.Audio(0)
	m.Tx.MainStream(false)
	m.Tx.Enable(false)
	if err := phy.Quiesce(m.Phy, 4); err != nil {
		log.Print("warning: phy quiesce: ", err)
	}
	m.Events.TxNoVideo.Set()
	m.Caps.Clear()
	m.mu.Lock()
	m.state = Disconnected
	m.edid, m.mode = nil, edid.Mode{}
	m.result = train.Result{}
	m.mu.Unlock()
}

// Pulse checks the link the sink reported trouble with and retrains it if
// any active lane lost lock. A corrupt link configuration readback is
// replaced by the configuration that last ran. The pulse interrupt is
// unmasked on return.
func (m *Machine) Pulse(ctx context.Context) error {
	defer m.unmaskPulse()
	set, err := m.Aux.Read(dpcd.LinkBwSet, 2)
	if err != nil {
		return errors.Wrap(err, "pulse")
	}
	b, err := m.Aux.Read(dpcd.Lane01Status, 3)
	if err != nil {
		return errors.Wrap(err, "pulse")
	}
	st := dpcd.StatusOf(b)
	st.Align &= dpcd.InterlaneAlignDone
	rate := dpcd.LinkRate(set[0] & linkMask)
	lanes := dpcd.LaneCount(set[1] & linkMask)
	if !rate.Valid() || !lanes.Valid() {
		r, l, ok := m.Caps.Run()
		if !ok {
			return errors.Errorf("pulse: link %#x %#x and no last run",
				set[0], set[1])
		}
		m.pulses.Print("warning: pulse: link ", rate, "x", lanes,
			" invalid, retrain ", r, "x", l)
		rate, lanes = r, l
	} else if st.Done(lanes) {
		return nil
	} else {
		m.pulses.Print("pulse: ", rate, "x", lanes, " status ", st,
			", retrain")
	}
	if err = m.train(ctx, rate, lanes); err != nil {
		return err
	}
	if m.OnRetrain != nil {
		m.OnRetrain(m.Result())
	}
	return nil
}

func (m *Machine) unmaskPulse() {
	m.Tx.UnmaskInterrupts(core.TxIntrHpdPulse)
}
