/*
 * ia32core - Descriptor table access and segment-register loading
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

// tableBase returns the base and limit of whichever descriptor table
// sel selects (GDT or the current LDT).
func (c *CPU) tableBase(sel descriptor.Selector) (base uint32, limit uint16, fault *Fault) {
	if sel.TI() {
		if !c.LDTR.Valid || c.LDTR.Cache.Kind != descriptor.KindLDT {
			return 0, 0, NewFaultCode(VecGP, uint32(sel)&0xFFF8)
		}
		return c.LDTR.Cache.Base, uint16(c.LDTR.Cache.EffectiveLimit()), nil
	}
	return c.GDTRBase, c.GDTRLimit, nil
}

// readDescriptor loads and decodes the 8-byte entry sel refers to.
func (c *CPU) readDescriptor(sel descriptor.Selector) (descriptor.Descriptor, *Fault) {
	if sel.IsNull() {
		return descriptor.Descriptor{}, NewFaultCode(VecGP, 0)
	}
	base, limit, err := c.tableBase(sel)
	if err != nil {
		return descriptor.Descriptor{}, err
	}
	off := sel.TableOffset()
	if off+7 > uint32(limit) {
		return descriptor.Descriptor{}, NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
	var raw [8]byte
	for i := range raw {
		b, ferr := c.readLinearByte(base + off + uint32(i))
		if ferr != nil {
			return descriptor.Descriptor{}, ferr
		}
		raw[i] = b
	}
	return descriptor.Decode(raw), nil
}

// writeDescriptorByte writes a single byte back into a descriptor
// table entry (used to set the Accessed/Busy bits).
func (c *CPU) writeDescriptorByte(sel descriptor.Selector, byteOffset uint32, v uint8) *Fault {
	base, _, err := c.tableBase(sel)
	if err != nil {
		return err
	}
	return c.writeLinearByte(base+sel.TableOffset()+byteOffset, v)
}

// markAccessed sets the Accessed bit (byte 5, bit 0) of a code/data
// descriptor. Gates and system descriptors don't carry this bit.
func (c *CPU) markAccessed(sel descriptor.Selector, d descriptor.Descriptor) *Fault {
	if d.Accessed {
		return nil
	}
	base, _, err := c.tableBase(sel)
	if err != nil {
		return err
	}
	cur, ferr := c.readLinearByte(base + sel.TableOffset() + 5)
	if ferr != nil {
		return ferr
	}
	return c.writeLinearByte(base+sel.TableOffset()+5, cur|0x1)
}

// LoadSegment validates and loads sel into register seg, consulting
// privilege rules appropriate to the register (SS requires DPL==CPL
// and a writable data segment; CS is loaded only via control-transfer
// paths, never through this general entry point). isStack distinguishes
// data-segment loads (ES/DS/FS/GS) from stack loads (SS).
func (c *CPU) LoadSegment(seg int, sel descriptor.Selector, isStack bool) *Fault {
	if !c.ProtectedMode() || c.V86Mode() {
		c.Seg[seg] = Segment{
			Selector: sel,
			Cache:    descriptor.Descriptor{Kind: descriptor.KindData, Present: true, Writable: true, Base: uint32(sel) << 4, Limit: 0xFFFF},
			Valid:    true,
		}
		return nil
	}

	if sel.IsNull() {
		if isStack {
			return NewFaultCode(VecGP, 0)
		}
		c.Seg[seg] = Segment{Selector: 0, Valid: false}
		return nil
	}

	d, err := c.readDescriptor(sel)
	if err != nil {
		return err
	}
	rpl := sel.RPL()
	cpl := c.CPL()

	if isStack {
		if d.Kind != descriptor.KindData || !d.Writable {
			return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
		}
		if rpl != cpl || d.DPL != cpl {
			return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
		}
		if !d.Present {
			return NewFaultCode(VecSS, uint32(sel)&0xFFF8)
		}
	} else {
		if d.IsSystem() || d.IsGate() {
			return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
		}
		if d.Kind == descriptor.KindCode && !d.Conforming {
			if cpl > d.DPL || rpl > d.DPL {
				return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
			}
		} else if d.Kind == descriptor.KindData {
			if cpl > d.DPL || rpl > d.DPL {
				return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
			}
		}
		if !d.Present {
			return NewFaultCode(VecNP, uint32(sel)&0xFFF8)
		}
	}

	if err := c.markAccessed(sel, d); err != nil {
		return err
	}
	c.Seg[seg] = Segment{Selector: sel, Cache: d, Valid: true}
	debug.Logf(c.Logger, debug.DESC, "load seg=%d sel=%04x base=%08x limit=%x dpl=%d", seg, uint16(sel), d.Base, d.EffectiveLimit(), d.DPL)
	return nil
}

// LoadLDTR loads the LDTR from a GDT selector (LLDT).
func (c *CPU) LoadLDTR(sel descriptor.Selector) *Fault {
	if sel.IsNull() {
		c.LDTR = Segment{}
		return nil
	}
	if sel.TI() {
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
	d, err := c.readDescriptor(sel)
	if err != nil {
		return err
	}
	if d.Kind != descriptor.KindLDT {
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
	if !d.Present {
		return NewFaultCode(VecNP, uint32(sel)&0xFFF8)
	}
	c.LDTR = Segment{Selector: sel, Cache: d, Valid: true}
	return nil
}

// loadTRDirect loads TR from a GDT selector without marking the
// descriptor busy (used only during a task switch's own TR update;
// LTR goes through LoadTR below, which does set Busy).
func (c *CPU) loadTRDirect(sel descriptor.Selector, d descriptor.Descriptor) {
	c.TR = Segment{Selector: sel, Cache: d, Valid: true}
}

// LoadTR executes LTR: loads TR from a GDT selector referring to an
// available TSS descriptor, and marks that descriptor busy.
func (c *CPU) LoadTR(sel descriptor.Selector) *Fault {
	if sel.IsNull() || sel.TI() {
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
	d, err := c.readDescriptor(sel)
	if err != nil {
		return err
	}
	if !d.IsTSS() || d.Busy {
		return NewFaultCode(VecGP, uint32(sel)&0xFFF8)
	}
	if !d.Present {
		return NewFaultCode(VecNP, uint32(sel)&0xFFF8)
	}
	if err := c.setDescriptorBusy(sel, true); err != nil {
		return err
	}
	d.Busy = true
	c.loadTRDirect(sel, d)
	return nil
}

// setDescriptorBusy rewrites the Busy bit (byte 5, bit 1) of a TSS
// descriptor in its owning table.
func (c *CPU) setDescriptorBusy(sel descriptor.Selector, busy bool) *Fault {
	base, _, err := c.tableBase(sel)
	if err != nil {
		return err
	}
	off := sel.TableOffset() + 5
	cur, ferr := c.readLinearByte(base + off)
	if ferr != nil {
		return ferr
	}
	if busy {
		cur |= 0x2
	} else {
		cur &^= 0x2
	}
	return c.writeLinearByte(base+off, cur)
}
