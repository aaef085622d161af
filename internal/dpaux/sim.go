// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package aux

import (
	"github.com/platinasystems/dprepeater/internal/core"
	"github.com/platinasystems/dprepeater/internal/regs"
)

// Attach makes the simulated transmit core s answer AUX requests from m,
// as the hardware would with m as its sink.
func (m *Mem) Attach(s *regs.Sim) {
	var fifo, reply []byte
	var off uint8
	s.OnWrite(core.TxAuxWriteFifo, func(v uint32) {
		fifo = append(fifo, uint8(v))
	})
	s.OnRead(core.TxAuxReplyData, func() uint32 {
		if len(reply) == 0 {
			return 0
		}
		v := reply[0]
		reply = reply[1:]
		return uint32(v)
	})
	s.OnWrite(core.TxAuxCmd, func(v uint32) {
		addr := s.Read32(core.TxAuxAddress)
		n := int(v&0xF) + 1
		if v&core.TxAuxAddressOnly != 0 {
			n = 0
		}
		wr := fifo
		fifo, reply = nil, nil
		var err error
		switch (v >> core.TxAuxCmdShift) & 0xF {
		case core.TxAuxNativeRead:
			reply, err = m.Read(addr, n)
		case core.TxAuxNativeWrite:
			err = m.Write(addr, wr)
		case core.TxAuxI2CWriteMot, core.TxAuxI2CWrite:
			switch {
			case len(wr) == 0:
			case uint8(addr) == EdidAddr:
				off = wr[0]
			default:
				err = m.I2CWrite(uint8(addr), wr)
			}
		case core.TxAuxI2CReadMot:
			reply, err = m.i2cRead(uint8(addr), off, n, false)
			off += uint8(n)
		case core.TxAuxI2CRead:
			if n > 0 {
				reply, err = m.i2cRead(uint8(addr), off, n, true)
			} else {
				m.stop()
			}
		}
		var code uint32 = core.TxAuxReplyAck
		if err != nil {
			code = core.TxAuxReplyNack
			reply = nil
		}
		s.Set(core.TxAuxReplyCode, code)
		s.Set(core.TxAuxReplyDataCount, uint32(len(reply)))
		sig := s.Read32(core.TxInterruptSigState) &^
			(core.SigRequestInProgress | core.SigReplyReceived |
				core.SigReplyTimeout)
		s.Set(core.TxInterruptSigState, sig|core.SigReplyReceived)
	})
}
