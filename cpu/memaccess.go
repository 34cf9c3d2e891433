/*
 * ia32core - Segmented memory access pipeline
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

// linearAddress forms seg:offset into a 32-bit linear address,
// validating the access against the segment's cached descriptor when
// running with protection enabled. write distinguishes a store from a
// load for the writable-data and readable-code checks; the limit checks
// (expand-down included) are the same for both.
func (c *CPU) linearAddress(seg int, offset uint32, size uint32, write bool) (uint32, *Fault) {
	s := &c.Seg[seg]

	if c.ProtectedMode() && !c.V86Mode() {
		if !s.Valid {
			return 0, NewFaultCode(VecGP, 0)
		}
		if s.Cache.Kind == descriptor.KindData && s.Cache.ExpandDown {
			limit := s.Cache.EffectiveLimit()
			top := uint32(0xFFFF)
			if s.Cache.Big {
				top = 0xFFFFFFFF
			}
			if offset <= limit || offset+size-1 > top {
				return 0, NewFaultCode(VecGP, 0)
			}
		} else {
			limit := s.Cache.EffectiveLimit()
			if uint64(offset)+uint64(size)-1 > uint64(limit) {
				return 0, NewFaultCode(VecGP, 0)
			}
		}
		if write && s.Cache.Kind == descriptor.KindData && !s.Cache.Writable {
			return 0, NewFaultCode(VecGP, 0)
		}
		if s.Cache.Kind == descriptor.KindCode && !s.Cache.Readable && !write {
			return 0, NewFaultCode(VecGP, 0)
		}
	}

	return s.Cache.Base + offset, nil
}

func (c *CPU) translateAccess(linear uint32, write bool) (uint32, *Fault) {
	user := c.CPL() == 3
	return c.translateLinear(linear, write, user)
}

// readLinearByte/writeLinearByte bypass segment-limit checks (used for
// descriptor-table and TSS access, which address memory directly by
// linear/physical address) but still go through paging.
func (c *CPU) readLinearByte(linear uint32) (uint8, *Fault) {
	phys, err := c.translateAccess(linear, false)
	if err != nil {
		return 0, err
	}
	return c.Mem.ReadByte(phys), nil
}

func (c *CPU) writeLinearByte(linear uint32, v uint8) *Fault {
	phys, err := c.translateAccess(linear, true)
	if err != nil {
		return err
	}
	c.Mem.WriteByte(phys, v)
	return nil
}

func (c *CPU) readLinearUint16(linear uint32) (uint16, *Fault) {
	lo, err := c.readLinearByte(linear)
	if err != nil {
		return 0, err
	}
	hi, err := c.readLinearByte(linear + 1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func (c *CPU) readLinearUint32(linear uint32) (uint32, *Fault) {
	lo, err := c.readLinearUint16(linear)
	if err != nil {
		return 0, err
	}
	hi, err := c.readLinearUint16(linear + 2)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

func (c *CPU) writeLinearUint16(linear uint32, v uint16) *Fault {
	if err := c.writeLinearByte(linear, uint8(v)); err != nil {
		return err
	}
	return c.writeLinearByte(linear+1, uint8(v>>8))
}

func (c *CPU) writeLinearUint32(linear uint32, v uint32) *Fault {
	if err := c.writeLinearUint16(linear, uint16(v)); err != nil {
		return err
	}
	return c.writeLinearUint16(linear+2, uint16(v>>16))
}

// ReadByte reads one byte at seg:offset through the full pipeline:
// segment limit and type validation, paging translation, A20 masking
// and provider dispatch (the latter two inside memory.Memory).
func (c *CPU) ReadByte(seg int, offset uint32) (uint8, *Fault) {
	lin, err := c.linearAddress(seg, offset, 1, false)
	if err != nil {
		return 0, err
	}
	return c.readLinearByte(lin)
}

// WriteByte writes one byte at seg:offset through the full pipeline.
func (c *CPU) WriteByte(seg int, offset uint32, v uint8) *Fault {
	lin, err := c.linearAddress(seg, offset, 1, true)
	if err != nil {
		return err
	}
	return c.writeLinearByte(lin, v)
}

// ReadWord reads a little-endian 16-bit value at seg:offset.
func (c *CPU) ReadWord(seg int, offset uint32) (uint16, *Fault) {
	lin, err := c.linearAddress(seg, offset, 2, false)
	if err != nil {
		return 0, err
	}
	return c.readLinearUint16(lin)
}

// WriteWord writes a little-endian 16-bit value at seg:offset.
func (c *CPU) WriteWord(seg int, offset uint32, v uint16) *Fault {
	lin, err := c.linearAddress(seg, offset, 2, true)
	if err != nil {
		return err
	}
	return c.writeLinearUint16(lin, v)
}

// ReadDword reads a little-endian 32-bit value at seg:offset.
func (c *CPU) ReadDword(seg int, offset uint32) (uint32, *Fault) {
	lin, err := c.linearAddress(seg, offset, 4, false)
	if err != nil {
		return 0, err
	}
	return c.readLinearUint32(lin)
}

// WriteDword writes a little-endian 32-bit value at seg:offset.
func (c *CPU) WriteDword(seg int, offset uint32, v uint32) *Fault {
	lin, err := c.linearAddress(seg, offset, 4, true)
	if err != nil {
		return err
	}
	return c.writeLinearUint32(lin, v)
}

// FetchByte reads one instruction byte via CS:EIP, advancing EIP.
func (c *CPU) FetchByte() (uint8, *Fault) {
	b, err := c.ReadByte(SegCS, c.EIP)
	if err != nil {
		return 0, err
	}
	c.EIP++
	return b, nil
}

// FetchWord reads a little-endian 16-bit immediate/displacement from
// the instruction stream, advancing EIP by 2.
func (c *CPU) FetchWord() (uint16, *Fault) {
	lo, err := c.FetchByte()
	if err != nil {
		return 0, err
	}
	hi, err := c.FetchByte()
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// FetchDword reads a little-endian 32-bit immediate/displacement from
// the instruction stream, advancing EIP by 4.
func (c *CPU) FetchDword() (uint32, *Fault) {
	lo, err := c.FetchWord()
	if err != nil {
		return 0, err
	}
	hi, err := c.FetchWord()
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}
