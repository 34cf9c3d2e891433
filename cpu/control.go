/*
 * ia32core - Control transfers: near/far jump, call, return, gates
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

import "github.com/openpcemu/ia32core/descriptor"

// JumpRelative8/16/32 implement the short/near JMP rel8/rel16/rel32
// forms: EIP (or IP, for the 16-bit form) advances by the sign-extended
// displacement, already past the instruction's own bytes (the caller
// has fetched the displacement via FetchByte/FetchWord/FetchDword
// before calling these).
func (c *CPU) JumpRelative8(disp int8) {
	c.EIP = c.EIP + uint32(int32(disp))
}

func (c *CPU) JumpRelative16(disp int16) {
	c.EIP = (c.EIP + uint32(int32(disp))) & 0xFFFF
}

func (c *CPU) JumpRelative32(disp int32) {
	c.EIP = c.EIP + uint32(disp)
}

// JumpNear sets EIP directly (near JMP/CALL r/m, and the target half of
// a near Jcc).
func (c *CPU) JumpNear(target uint32) {
	c.EIP = target
}

// FarJump implements JMP ptr16:16 / ptr16:32 (and completes a real-mode
// far CALL once FarCall has pushed the return address): load a new CS
// and set EIP. In protected mode a code-segment target gets the
// conforming/non-conforming privilege and type checks; a call-gate
// target is handed to callGateJump, and a task gate or TSS target to
// taskSwitchViaGate/TaskSwitch.
func (c *CPU) FarJump(selector uint16, offset uint32) *Fault {
	sel := descriptor.Selector(selector)

	if !c.ProtectedMode() || c.V86Mode() {
		c.Seg[SegCS] = Segment{
			Selector: sel,
			Cache: descriptor.Descriptor{
				Kind: descriptor.KindCode, Present: true, Readable: true,
				Base: uint32(sel) << 4, Limit: 0xFFFF,
			},
			Valid: true,
		}
		c.EIP = offset
		return nil
	}

	d, err := c.readDescriptor(sel)
	if err != nil {
		return err
	}

	switch {
	case d.Kind == descriptor.KindCode:
		cpl := c.CPL()
		rpl := sel.RPL()
		if d.Conforming {
			if d.DPL > cpl {
				return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
			}
		} else {
			if rpl > cpl || d.DPL != cpl {
				return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
			}
		}
		if !d.Present {
			return NewFaultCode(VecNP, uint32(sel)&0xFFF8)
		}
		if offset > d.EffectiveLimit() {
			return NewFaultCode(VecGP, 0)
		}
		if err := c.markAccessed(sel, d); err != nil {
			return err
		}
		newSel := descriptor.Selector((uint16(sel) &^ 3) | uint16(cpl))
		c.Seg[SegCS] = Segment{Selector: newSel, Cache: d, Valid: true}
		c.EIP = offset
		return nil

	case d.Kind == descriptor.KindCallGate16 || d.Kind == descriptor.KindCallGate32:
		return c.callGateJump(sel, d, false, 0)

	case d.Kind == descriptor.KindTaskGate:
		return c.taskSwitchViaGate(d, false)

	case d.IsTSS():
		return c.TaskSwitch(sel, d, false)

	default:
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
}

// FarCall pushes the return CS:EIP then performs a far jump (or gate
// dispatch via callGateJump/taskSwitchViaGate, which themselves handle
// the privilege-escalating stack switch when appropriate).
func (c *CPU) FarCall(selector uint16, offset uint32, opSize32 bool) *Fault {
	sel := descriptor.Selector(selector)

	if !c.ProtectedMode() || c.V86Mode() {
		if opSize32 {
			if err := c.Push32(uint32(c.Seg[SegCS].Selector)); err != nil {
				return err
			}
			if err := c.Push32(c.EIP); err != nil {
				return err
			}
		} else {
			if err := c.Push16(uint16(c.Seg[SegCS].Selector)); err != nil {
				return err
			}
			if err := c.Push16(uint16(c.EIP)); err != nil {
				return err
			}
		}
		return c.FarJump(selector, offset)
	}

	d, err := c.readDescriptor(sel)
	if err != nil {
		return err
	}

	switch {
	case d.Kind == descriptor.KindCode:
		cpl := c.CPL()
		rpl := sel.RPL()
		if d.Conforming {
			if d.DPL > cpl {
				return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
			}
		} else {
			if rpl > cpl || d.DPL != cpl {
				return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
			}
		}
		if !d.Present {
			return NewFaultCode(VecNP, uint32(sel)&0xFFF8)
		}
		savedCS := c.Seg[SegCS].Selector
		savedEIP := c.EIP
		if opSize32 {
			if err := c.Push32(uint32(savedCS)); err != nil {
				return err
			}
			if err := c.Push32(savedEIP); err != nil {
				return err
			}
		} else {
			if err := c.Push16(uint16(savedCS)); err != nil {
				return err
			}
			if err := c.Push16(uint16(savedEIP)); err != nil {
				return err
			}
		}
		if err := c.markAccessed(sel, d); err != nil {
			return err
		}
		newSel := descriptor.Selector((uint16(sel) &^ 3) | uint16(cpl))
		c.Seg[SegCS] = Segment{Selector: newSel, Cache: d, Valid: true}
		c.EIP = offset
		return nil

	case d.Kind == descriptor.KindCallGate16 || d.Kind == descriptor.KindCallGate32:
		return c.callGateJump(sel, d, true, returnSize(opSize32))

	case d.Kind == descriptor.KindTaskGate:
		return c.taskSwitchViaGate(d, true)

	case d.IsTSS():
		return c.TaskSwitch(sel, d, true)

	default:
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
}

func returnSize(opSize32 bool) uint8 {
	if opSize32 {
		return 4
	}
	return 2
}

// callGateJump dispatches through a call gate: validates the gate and
// its target code-segment descriptor. For a CALL (isCall) whose target
// runs at a numerically lower privilege level than CPL, it switches to
// that ring's own stack (read from the current TSS), pushes the outer
// SS:ESP and copies the gate's ParamCount parameters from the caller's
// stack; a CALL then pushes the return CS:EIP. A JMP through a gate
// neither switches stacks nor pushes anything.
func (c *CPU) callGateJump(gateSel descriptor.Selector, gate descriptor.Descriptor, isCall bool, retSize uint8) *Fault {
	cpl := c.CPL()
	rpl := gateSel.RPL()
	if gate.DPL < cpl || (isCall && rpl > gate.DPL) {
		return NewFaultCode(VecGP, uint32(gateSel)&0xFFF8)
	}
	if !gate.Present {
		return NewFaultCode(VecNP, uint32(gateSel)&0xFFF8)
	}

	destSel := descriptor.Selector(gate.Selector)
	if destSel.IsNull() {
		return NewFaultCode(VecGP, 0)
	}
	dest, err := c.readDescriptor(destSel)
	if err != nil {
		return err
	}
	if dest.Kind != descriptor.KindCode {
		return NewFaultCode(VecGP, uint32(destSel)&0xFFF8)
	}
	if dest.DPL > cpl {
		return NewFaultCode(VecGP, uint32(destSel)&0xFFF8)
	}
	if !dest.Present {
		return NewFaultCode(VecNP, uint32(destSel)&0xFFF8)
	}

	gate32 := gate.Is32BitGate()
	newCPL := cpl
	if !dest.Conforming {
		newCPL = dest.DPL
	}

	if isCall && newCPL < cpl {
		newSS, newESP, terr := c.tssStackFor(newCPL)
		if terr != nil {
			return terr
		}
		savedSS := c.Seg[SegSS].Selector
		savedSSBase := c.Seg[SegSS].Cache.Base
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

		n := gate.ParamCount
		for i := int(n) - 1; i >= 0; i-- {
			if gate32 {
				v, perr := c.readLinearUint32(savedSSBase + savedESP + uint32(i)*4)
				if perr != nil {
					return perr
				}
				if err := c.Push32(v); err != nil {
					return err
				}
			} else {
				v, perr := c.readLinearUint16(savedSSBase + savedESP + uint32(i)*2)
				if perr != nil {
					return perr
				}
				if err := c.Push16(v); err != nil {
					return err
				}
			}
		}
	}

	if isCall {
		savedCS := c.Seg[SegCS].Selector
		savedEIP := c.EIP
		if gate32 {
			if err := c.Push32(uint32(savedCS)); err != nil {
				return err
			}
			if err := c.Push32(savedEIP); err != nil {
				return err
			}
		} else {
			if err := c.Push16(uint16(savedCS)); err != nil {
				return err
			}
			if err := c.Push16(uint16(savedEIP)); err != nil {
				return err
			}
		}
	}

	if err := c.markAccessed(destSel, dest); err != nil {
		return err
	}
	finalSel := descriptor.Selector((uint16(destSel) &^ 3) | uint16(newCPL))
	c.Seg[SegCS] = Segment{Selector: finalSel, Cache: dest, Valid: true}
	c.EIP = gate.Offset
	return nil
}

// tssStackFor reads the SSn/ESPn pair for ring n out of the current
// TSS (used by callGateJump's privilege escalation).
func (c *CPU) tssStackFor(ring uint8) (descriptor.Selector, uint32, *Fault) {
	if !c.TR.Valid {
		return 0, 0, NewFaultCode(VecTS, 0)
	}
	base := c.TR.Cache.Base
	if c.TR.Cache.Is32BitTSS() {
		off := uint32(4) + uint32(ring)*8
		esp, err := c.readLinearUint32(base + off)
		if err != nil {
			return 0, 0, err
		}
		ss, err := c.readLinearUint16(base + off + 4)
		if err != nil {
			return 0, 0, err
		}
		return descriptor.Selector(ss), esp, nil
	}
	off := uint32(2) + uint32(ring)*4
	sp, err := c.readLinearUint16(base + off)
	if err != nil {
		return 0, 0, err
	}
	ss, err := c.readLinearUint16(base + off + 2)
	if err != nil {
		return 0, 0, err
	}
	return descriptor.Selector(ss), uint32(sp), nil
}

// taskSwitchViaGate resolves a task gate to its TSS and performs the
// switch.
func (c *CPU) taskSwitchViaGate(gate descriptor.Descriptor, isCall bool) *Fault {
	tssSel := descriptor.Selector(gate.Selector)
	tss, err := c.readDescriptor(tssSel)
	if err != nil {
		return err
	}
	if !tss.IsTSS() {
		return NewFaultCode(VecGP, uint32(tssSel)&0xFFF8)
	}
	return c.TaskSwitch(tssSel, tss, isCall)
}

// NearReturn implements near RET [imm16]: pops EIP (or IP) and
// discards imm bytes of arguments from the stack.
func (c *CPU) NearReturn(opSize32 bool, imm uint16) *Fault {
	if opSize32 {
		eip, err := c.Pop32()
		if err != nil {
			return err
		}
		c.EIP = eip
	} else {
		ip, err := c.Pop16()
		if err != nil {
			return err
		}
		c.EIP = uint32(ip)
	}
	if imm != 0 {
		c.setStackPointer(c.stackPointer() + uint32(imm))
	}
	return nil
}

// FarReturn implements far RET [imm16]. In protected mode this
// validates the popped CS against the caller's privilege and, when the
// popped CS's RPL is numerically greater than CPL (returning to an
// outer/less-privileged ring), also pops the caller's SS:ESP and
// clears any now-inaccessible data segment registers, mirroring a
// privilege-lowering far return.
func (c *CPU) FarReturn(opSize32 bool, imm uint16) *Fault {
	var eip uint32
	var csRaw uint16
	var err *Fault

	if opSize32 {
		eip, err = c.Pop32()
		if err != nil {
			return err
		}
		var cs32 uint32
		cs32, err = c.Pop32()
		if err != nil {
			return err
		}
		csRaw = uint16(cs32)
	} else {
		var ip uint16
		ip, err = c.Pop16()
		if err != nil {
			return err
		}
		eip = uint32(ip)
		csRaw, err = c.Pop16()
		if err != nil {
			return err
		}
	}

	if !c.ProtectedMode() || c.V86Mode() {
		if imm != 0 {
			c.setStackPointer(c.stackPointer() + uint32(imm))
		}
		return c.FarJump(csRaw, eip)
	}

	sel := descriptor.Selector(csRaw)
	d, derr := c.readDescriptor(sel)
	if derr != nil {
		return derr
	}
	if d.Kind != descriptor.KindCode {
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
	cpl := c.CPL()
	rpl := sel.RPL()
	if rpl < cpl {
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
	if d.Conforming {
		if d.DPL > rpl {
			return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
		}
	} else if d.DPL != rpl {
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
	if !d.Present {
		return NewFaultCode(VecNP, uint32(sel)&0xFFF8)
	}

	if err := c.markAccessed(sel, d); err != nil {
		return err
	}
	c.Seg[SegCS] = Segment{Selector: sel, Cache: d, Valid: true}
	c.EIP = eip
	if imm != 0 {
		c.setStackPointer(c.stackPointer() + uint32(imm))
	}

	if rpl > cpl {
		var newESP uint32
		var newSSRaw uint16
		if opSize32 {
			newESP, err = c.Pop32()
			if err != nil {
				return err
			}
			var ss32 uint32
			ss32, err = c.Pop32()
			if err != nil {
				return err
			}
			newSSRaw = uint16(ss32)
		} else {
			var sp uint16
			sp, err = c.Pop16()
			if err != nil {
				return err
			}
			newESP = uint32(sp)
			newSSRaw, err = c.Pop16()
			if err != nil {
				return err
			}
		}
		if err := c.LoadSegment(SegSS, descriptor.Selector(newSSRaw), true); err != nil {
			return err
		}
		c.setStackPointer(newESP)

		for _, seg := range []int{SegES, SegDS, SegFS, SegGS} {
			s := &c.Seg[seg]
			if s.Valid && s.Cache.Kind == descriptor.KindData && s.Cache.DPL < rpl {
				*s = Segment{}
			} else if s.Valid && s.Cache.Kind == descriptor.KindCode && !s.Cache.Conforming && s.Cache.DPL < rpl {
				*s = Segment{}
			}
		}
	}

	return nil
}

// Iret implements IRET/IRETD outside of a NT-flagged task return: pops
// EIP/CS/EFLAGS (and, crossing rings, SS:ESP exactly as FarReturn
// does), restoring EFLAGS wholesale except for reserved bits and,
// below CPL 0, IOPL/IF which only a sufficiently privileged CPL may
// change.
func (c *CPU) Iret(opSize32 bool) *Fault {
	if c.Flag(FlagNT) {
		return c.TaskReturn()
	}

	var eip, eflags uint32
	var csRaw uint16
	var err *Fault

	if opSize32 {
		eip, err = c.Pop32()
		if err != nil {
			return err
		}
		var cs32 uint32
		cs32, err = c.Pop32()
		if err != nil {
			return err
		}
		csRaw = uint16(cs32)
		eflags, err = c.Pop32()
		if err != nil {
			return err
		}
	} else {
		var ip uint16
		ip, err = c.Pop16()
		if err != nil {
			return err
		}
		eip = uint32(ip)
		csRaw, err = c.Pop16()
		if err != nil {
			return err
		}
		var fl uint16
		fl, err = c.Pop16()
		if err != nil {
			return err
		}
		eflags = uint32(fl)
	}

	if !c.ProtectedMode() || c.V86Mode() {
		c.EFlags = (c.EFlags &^ 0x00FCFFFF) | (eflags & 0x00FCFFFF) | flagsReserved1
		return c.FarJump(csRaw, eip)
	}

	cpl := c.CPL()
	sel := descriptor.Selector(csRaw)
	rpl := sel.RPL()
	if rpl < cpl {
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}

	d, derr := c.readDescriptor(sel)
	if derr != nil {
		return derr
	}
	if d.Kind != descriptor.KindCode {
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
	if !d.Present {
		return NewFaultCode(VecNP, uint32(sel)&0xFFF8)
	}

	preserveMask := uint32(0)
	if cpl > 0 {
		preserveMask |= FlagIOPLMask
	}
	if cpl > c.IOPL() {
		preserveMask |= FlagIF
	}
	newFlags := (c.EFlags & preserveMask) | (eflags &^ preserveMask) | flagsReserved1

	if err := c.markAccessed(sel, d); err != nil {
		return err
	}
	c.Seg[SegCS] = Segment{Selector: sel, Cache: d, Valid: true}
	c.EIP = eip
	c.EFlags = newFlags

	if rpl > cpl {
		var newESP uint32
		var newSSRaw uint16
		if opSize32 {
			newESP, err = c.Pop32()
			if err != nil {
				return err
			}
			var ss32 uint32
			ss32, err = c.Pop32()
			if err != nil {
				return err
			}
			newSSRaw = uint16(ss32)
		} else {
			var sp uint16
			sp, err = c.Pop16()
			if err != nil {
				return err
			}
			newESP = uint32(sp)
			newSSRaw, err = c.Pop16()
			if err != nil {
				return err
			}
		}
		if err := c.LoadSegment(SegSS, descriptor.Selector(newSSRaw), true); err != nil {
			return err
		}
		c.setStackPointer(newESP)
		for _, seg := range []int{SegES, SegDS, SegFS, SegGS} {
			s := &c.Seg[seg]
			if s.Valid && s.Cache.DPL < rpl {
				*s = Segment{}
			}
		}
	}

	return nil
}
