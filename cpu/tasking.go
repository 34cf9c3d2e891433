/*
 * ia32core - TSS-based task switching
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

// tss32 and tss16 are the two on-disk TSS layouts (byte offsets taken
// directly from the architecture's fixed TSS format).
const (
	tss32LinkOff  = 0x00
	tss32ESP0Off  = 0x04
	tss32SS0Off   = 0x08
	tss32EIPOff   = 0x20
	tss32EFlgOff  = 0x24
	tss32EAXOff   = 0x28
	tss32ECXOff   = 0x2C
	tss32EDXOff   = 0x30
	tss32EBXOff   = 0x34
	tss32ESPOff   = 0x38
	tss32EBPOff   = 0x3C
	tss32ESIOff   = 0x40
	tss32EDIOff   = 0x44
	tss32ESOff    = 0x48
	tss32CSOff    = 0x4C
	tss32SSOff    = 0x50
	tss32DSOff    = 0x54
	tss32FSOff    = 0x58
	tss32GSOff    = 0x5C
	tss32LDTOff   = 0x60
	tss32Size     = 0x68

	tss16LinkOff = 0x00
	tss16IPOff   = 0x0E
	tss16FlgOff  = 0x10
	tss16AXOff   = 0x12
	tss16CXOff   = 0x14
	tss16DXOff   = 0x16
	tss16BXOff   = 0x18
	tss16SPOff   = 0x1A
	tss16BPOff   = 0x1C
	tss16SIOff   = 0x1E
	tss16DIOff   = 0x20
	tss16ESOff   = 0x22
	tss16CSOff   = 0x24
	tss16SSOff   = 0x26
	tss16DSOff   = 0x28
	tss16LDTOff  = 0x2A
	tss16Size    = 0x2C
)

// saveCurrentTask writes this CPU's live register state back into the
// outgoing TSS at base.
func (c *CPU) saveCurrentTask(base uint32, is32 bool) *Fault {
	w32 := c.writeLinearUint32
	w16 := func(off uint32, v uint16) *Fault { return c.writeLinearUint16(off, v) }

	if is32 {
		for off, v := range map[uint32]uint32{
			tss32EIPOff: c.EIP,
			tss32EFlgOff: c.EFlags,
			tss32EAXOff: c.Regs[RegEAX], tss32ECXOff: c.Regs[RegECX],
			tss32EDXOff: c.Regs[RegEDX], tss32EBXOff: c.Regs[RegEBX],
			tss32ESPOff: c.Regs[RegESP], tss32EBPOff: c.Regs[RegEBP],
			tss32ESIOff: c.Regs[RegESI], tss32EDIOff: c.Regs[RegEDI],
		} {
			if err := w32(base+off, v); err != nil {
				return err
			}
		}
		segs := map[uint32]uint16{
			tss32ESOff: uint16(c.Seg[SegES].Selector), tss32CSOff: uint16(c.Seg[SegCS].Selector),
			tss32SSOff: uint16(c.Seg[SegSS].Selector), tss32DSOff: uint16(c.Seg[SegDS].Selector),
			tss32FSOff: uint16(c.Seg[SegFS].Selector), tss32GSOff: uint16(c.Seg[SegGS].Selector),
		}
		for off, v := range segs {
			if err := w16(base+off, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := w16(base+tss16IPOff, uint16(c.EIP)); err != nil {
		return err
	}
	if err := w16(base+tss16FlgOff, uint16(c.EFlags)); err != nil {
		return err
	}
	regs16 := map[uint32]uint16{
		tss16AXOff: c.ReadReg16(RegEAX), tss16CXOff: c.ReadReg16(RegECX),
		tss16DXOff: c.ReadReg16(RegEDX), tss16BXOff: c.ReadReg16(RegEBX),
		tss16SPOff: c.ReadReg16(RegESP), tss16BPOff: c.ReadReg16(RegEBP),
		tss16SIOff: c.ReadReg16(RegESI), tss16DIOff: c.ReadReg16(RegEDI),
		tss16ESOff: uint16(c.Seg[SegES].Selector), tss16CSOff: uint16(c.Seg[SegCS].Selector),
		tss16SSOff: uint16(c.Seg[SegSS].Selector), tss16DSOff: uint16(c.Seg[SegDS].Selector),
	}
	for off, v := range regs16 {
		if err := w16(base+off, v); err != nil {
			return err
		}
	}
	return nil
}

// loadIncomingTask reads register state out of the incoming TSS at
// base and installs it, loading all segment registers through the
// normal protected-mode validation path.
func (c *CPU) loadIncomingTask(base uint32, is32 bool) *Fault {
	if is32 {
		eip, err := c.readLinearUint32(base + tss32EIPOff)
		if err != nil {
			return err
		}
		eflags, err := c.readLinearUint32(base + tss32EFlgOff)
		if err != nil {
			return err
		}
		for _, r := range []struct {
			off uint32
			idx int
		}{
			{tss32EAXOff, RegEAX}, {tss32ECXOff, RegECX}, {tss32EDXOff, RegEDX}, {tss32EBXOff, RegEBX},
			{tss32ESPOff, RegESP}, {tss32EBPOff, RegEBP}, {tss32ESIOff, RegESI}, {tss32EDIOff, RegEDI},
		} {
			v, err := c.readLinearUint32(base + r.off)
			if err != nil {
				return err
			}
			c.Regs[r.idx] = v
		}
		ldtSel, err := c.readLinearUint16(base + tss32LDTOff)
		if err != nil {
			return err
		}
		c.EIP = eip
		c.EFlags = eflags | flagsReserved1
		if err := c.LoadLDTR(descriptor.Selector(ldtSel)); err != nil {
			return err
		}

		for _, s := range []struct {
			off uint32
			seg int
		}{
			{tss32SSOff, SegSS}, {tss32ESOff, SegES}, {tss32DSOff, SegDS},
			{tss32FSOff, SegFS}, {tss32GSOff, SegGS},
		} {
			sel, err := c.readLinearUint16(base + s.off)
			if err != nil {
				return err
			}
			if err := c.LoadSegment(s.seg, descriptor.Selector(sel), s.seg == SegSS); err != nil {
				return err
			}
		}
		csSel, err := c.readLinearUint16(base + tss32CSOff)
		if err != nil {
			return err
		}
		d, derr := c.readDescriptor(descriptor.Selector(csSel))
		if derr != nil {
			return derr
		}
		c.Seg[SegCS] = Segment{Selector: descriptor.Selector(csSel), Cache: d, Valid: true}
		return nil
	}

	ip, err := c.readLinearUint16(base + tss16IPOff)
	if err != nil {
		return err
	}
	flags, err := c.readLinearUint16(base + tss16FlgOff)
	if err != nil {
		return err
	}
	for _, r := range []struct {
		off uint32
		idx int
	}{
		{tss16AXOff, RegEAX}, {tss16CXOff, RegECX}, {tss16DXOff, RegEDX}, {tss16BXOff, RegEBX},
		{tss16SPOff, RegESP}, {tss16BPOff, RegEBP}, {tss16SIOff, RegESI}, {tss16DIOff, RegEDI},
	} {
		v, err := c.readLinearUint16(base + r.off)
		if err != nil {
			return err
		}
		c.WriteReg16(uint8(r.idx), v)
	}
	ldtSel, err := c.readLinearUint16(base + tss16LDTOff)
	if err != nil {
		return err
	}
	c.EIP = uint32(ip)
	c.EFlags = (c.EFlags &^ 0xFFFF) | uint32(flags) | flagsReserved1
	if err := c.LoadLDTR(descriptor.Selector(ldtSel)); err != nil {
		return err
	}

	for _, s := range []struct {
		off uint32
		seg int
	}{
		{tss16SSOff, SegSS}, {tss16ESOff, SegES}, {tss16DSOff, SegDS},
	} {
		sel, err := c.readLinearUint16(base + s.off)
		if err != nil {
			return err
		}
		if err := c.LoadSegment(s.seg, descriptor.Selector(sel), s.seg == SegSS); err != nil {
			return err
		}
	}
	csSel, err := c.readLinearUint16(base + tss16CSOff)
	if err != nil {
		return err
	}
	d, derr := c.readDescriptor(descriptor.Selector(csSel))
	if derr != nil {
		return derr
	}
	c.Seg[SegCS] = Segment{Selector: descriptor.Selector(csSel), Cache: d, Valid: true}
	return nil
}

// TaskSwitch performs a full task switch to tssSel/tss, as driven by a
// JMP/CALL through a task gate or TSS selector, or by INT delivered
// through a task gate. isCall/interrupt sources set NT in the new
// task and leave a backlink to the outgoing TSS, which stays busy; a
// JMP does not set NT and clears the outgoing TSS descriptor's busy
// bit instead.
func (c *CPU) TaskSwitch(tssSel descriptor.Selector, tss descriptor.Descriptor, isNestedCall bool) *Fault {
	if !tss.Present {
		return NewFaultCode(VecNP, uint32(tssSel)&0xFFF8)
	}
	debug.Logf(c.Logger, debug.TASK, "switch to tss sel=%04x base=%08x nested=%v", uint16(tssSel), tss.Base, isNestedCall)

	oldBase := uint32(0)
	oldIs32 := false
	oldSel := c.TR.Selector
	oldValid := c.TR.Valid
	if c.TR.Valid {
		oldBase = c.TR.Cache.Base
		oldIs32 = c.TR.Cache.Is32BitTSS()
		if err := c.saveCurrentTask(oldBase, oldIs32); err != nil {
			return err
		}
	}

	newIs32 := tss.Is32BitTSS()
	newBase := tss.Base

	if isNestedCall {
		linkOff := uint32(tss32LinkOff)
		if !newIs32 {
			linkOff = tss16LinkOff
		}
		if err := c.writeLinearUint16(newBase+linkOff, uint16(oldSel)); err != nil {
			return err
		}
	}

	if err := c.loadIncomingTask(newBase, newIs32); err != nil {
		return err
	}

	if err := c.setDescriptorBusy(tssSel, true); err != nil {
		return err
	}
	c.loadTRDirect(tssSel, tss)

	// A JMP/IRET source releases its own TSS; a CALL or an interrupt
	// through a task gate leaves the outgoing task busy so NT can chain
	// back to it.
	if !isNestedCall && oldValid {
		if err := c.setDescriptorBusy(oldSel, false); err != nil {
			return err
		}
	}

	c.SetFlag(FlagNT, isNestedCall)
	c.CR0 |= CR0TS

	return nil
}

// TaskReturn implements IRET when EFLAGS.NT is set: follows the
// current TSS's backlink selector to resume the task that made the
// nested call. The current (outgoing, nested) task's TSS descriptor is
// marked not busy, the resumed task's descriptor stays busy, and NT is
// clear in the resumed task.
func (c *CPU) TaskReturn() *Fault {
	if !c.TR.Valid {
		return NewFaultCode(VecTS, 0)
	}
	is32 := c.TR.Cache.Is32BitTSS()
	base := c.TR.Cache.Base

	linkOff := uint32(tss32LinkOff)
	if !is32 {
		linkOff = tss16LinkOff
	}
	backlink, err := c.readLinearUint16(base + linkOff)
	if err != nil {
		return err
	}

	if err := c.saveCurrentTask(base, is32); err != nil {
		return err
	}
	if err := c.setDescriptorBusy(c.TR.Selector, false); err != nil {
		return err
	}

	backSel := descriptor.Selector(backlink)
	backDesc, derr := c.readDescriptor(backSel)
	if derr != nil {
		return derr
	}
	if !backDesc.IsTSS() {
		return NewFaultCode(VecTS, uint32(backSel)&0xFFF8)
	}

	if err := c.loadIncomingTask(backDesc.Base, backDesc.Is32BitTSS()); err != nil {
		return err
	}
	c.loadTRDirect(backSel, backDesc)
	c.SetFlag(FlagNT, false)
	return nil
}
