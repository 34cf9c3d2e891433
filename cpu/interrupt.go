/*
 * ia32core - Exception and interrupt delivery through the IDT
 *
 * Copyright 2026, ia32core contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package cpu

import (
	"github.com/openpcemu/ia32core/descriptor"
	"github.com/openpcemu/ia32core/util/debug"
)

// deliver runs the far-call protocol against the target of an
// interrupt/trap gate or, in real mode, against the four-byte
// real-mode IVT entry. Software INT, INTO, INT3, #DB/#BP traps and
// every architectural exception all funnel through here. retEIP is
// the return address to push/restore: callers raising an
// architectural exception pass the faulting instruction's start EIP,
// while software-trap callers (INT3/INT n/INTO) pass the EIP of the
// instruction following the trap.
func (c *CPU) deliver(vector uint8, hasCode bool, code uint32, retEIP uint32) *Fault {
	debug.Logf(c.Logger, debug.IRQ, "deliver vector=%02x code=%x eip=%08x", vector, code, retEIP)
	if !c.ProtectedMode() || c.V86Mode() {
		return c.deliverRealMode(vector, retEIP)
	}

	idtOff := uint32(vector) * 8
	if idtOff+7 > uint32(c.IDTRLimit) {
		return NewFaultCode(VecGP, uint32(vector)*8+2)
	}
	var raw [8]byte
	for i := range raw {
		b, err := c.readLinearByte(c.IDTRBase + idtOff + uint32(i))
		if err != nil {
			return err
		}
		raw[i] = b
	}
	gate := descriptor.Decode(raw)

	switch gate.Kind {
	case descriptor.KindTaskGate:
		tssSel := descriptor.Selector(gate.Selector)
		tss, err := c.readDescriptor(tssSel)
		if err != nil {
			return err
		}
		return c.TaskSwitch(tssSel, tss, true)

	case descriptor.KindInterruptGate16, descriptor.KindInterruptGate32,
		descriptor.KindTrapGate16, descriptor.KindTrapGate32:
		return c.deliverThroughGate(gate, hasCode, code, retEIP)

	default:
		return NewFaultCode(VecGP, uint32(vector)*8+2)
	}
}

func (c *CPU) deliverRealMode(vector uint8, retEIP uint32) *Fault {
	entry := uint32(vector) * 4
	offset, err := c.readLinearUint16(entry)
	if err != nil {
		return err
	}
	segment, err := c.readLinearUint16(entry + 2)
	if err != nil {
		return err
	}

	if err := c.Push16(uint16(c.EFlags)); err != nil {
		return err
	}
	if err := c.Push16(uint16(c.Seg[SegCS].Selector)); err != nil {
		return err
	}
	if err := c.Push16(uint16(retEIP)); err != nil {
		return err
	}

	c.SetFlag(FlagIF, false)
	c.SetFlag(FlagTF, false)
	c.SetFlag(FlagAC, false)

	c.Seg[SegCS] = Segment{
		Selector: descriptor.Selector(segment),
		Cache: descriptor.Descriptor{
			Kind: descriptor.KindCode, Present: true, Readable: true,
			Base: uint32(segment) << 4, Limit: 0xFFFF,
		},
		Valid: true,
	}
	c.EIP = uint32(offset)
	return nil
}

// deliverThroughGate implements the privilege-escalating (or same-ring)
// half of the call-gate protocol, specialized for interrupt delivery:
// flags are always pushed (unlike a plain CALL through a gate), and
// interrupt gates additionally clear IF.
func (c *CPU) deliverThroughGate(gate descriptor.Descriptor, hasCode bool, code uint32, retEIP uint32) *Fault {
	if !gate.Present {
		return NewFaultCode(VecNP, uint32(gate.Selector)&0xFFF8)
	}

	destSel := descriptor.Selector(gate.Selector)
	dest, err := c.readDescriptor(destSel)
	if err != nil {
		return err
	}
	if dest.Kind != descriptor.KindCode {
		return NewFaultCode(VecGP, uint32(destSel)&0xFFF8)
	}
	if !dest.Present {
		return NewFaultCode(VecNP, uint32(destSel)&0xFFF8)
	}

	cpl := c.CPL()
	gate32 := gate.Is32BitGate()
	newCPL := cpl
	if !dest.Conforming {
		newCPL = dest.DPL
	}
	if dest.DPL > cpl {
		return NewFaultCode(VecGP, uint32(destSel)&0xFFF8)
	}

	savedCS := c.Seg[SegCS].Selector
	savedEIP := retEIP
	savedFlags := c.EFlags

	if newCPL < cpl {
		newSS, newESP, terr := c.tssStackFor(newCPL)
		if terr != nil {
			return terr
		}
		savedSS := c.Seg[SegSS].Selector
		savedESP := c.stackPointer()

		if err := c.LoadSegment(SegSS, newSS, true); err != nil {
			return err
		}
		c.setStackPointer(newESP)

		if gate32 {
			if err := c.Push32(uint32(savedSS)); err != nil {
				return err
			}
			if err := c.Push32(savedESP); err != nil {
				return err
			}
		} else {
			if err := c.Push16(uint16(savedSS)); err != nil {
				return err
			}
			if err := c.Push16(uint16(savedESP)); err != nil {
				return err
			}
		}
	}

	push := func(v uint32) *Fault {
		if gate32 {
			return c.Push32(v)
		}
		return c.Push16(uint16(v))
	}
	if err := push(savedFlags); err != nil {
		return err
	}
	if err := push(uint32(savedCS)); err != nil {
		return err
	}
	if err := push(savedEIP); err != nil {
		return err
	}
	if hasCode {
		if err := push(code); err != nil {
			return err
		}
	}

	if err := c.markAccessed(destSel, dest); err != nil {
		return err
	}
	finalSel := descriptor.Selector((uint16(destSel) &^ 3) | uint16(newCPL))
	c.Seg[SegCS] = Segment{Selector: finalSel, Cache: dest, Valid: true}
	c.EIP = gate.Offset

	c.SetFlag(FlagTF, false)
	c.SetFlag(FlagNT, false)
	if gate.IsInterruptGate() {
		c.SetFlag(FlagIF, false)
	}
	return nil
}
