/*
 * ia32core - Two-byte (0F-escape) instruction executors
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

// execGroup0F00 handles 0F 00: SLDT/STR/LLDT/LTR/VERR/VERW, selected
// by ModRM.Reg. VERR/VERW are not modeled (no dependent instruction in
// this target needs them); they report #UD.
func (c *CPU) execGroup0F00(ctx *decodeCtx) *Fault {
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	switch m.Reg {
	case 0: // SLDT
		return c.writeRMWidth(m, 16, uint32(c.LDTR.Selector))
	case 1: // STR
		return c.writeRMWidth(m, 16, uint32(c.TR.Selector))
	case 2: // LLDT
		v, rerr := c.readRMWidth(m, 16)
		if rerr != nil {
			return rerr
		}
		return c.LoadLDTR(descriptor.Selector(v))
	case 3: // LTR
		v, rerr := c.readRMWidth(m, 16)
		if rerr != nil {
			return rerr
		}
		return c.LoadTR(descriptor.Selector(v))
	default:
		return NewFault(VecUD)
	}
}

// execGroup0F01 handles 0F 01: SGDT/SIDT/LGDT/LIDT/SMSW/LMSW, selected
// by ModRM.Reg. The GDTR/IDTR forms always address a 6-byte memory
// operand (2-byte limit, 4-byte base) regardless of operand-size
// prefix.
func (c *CPU) execGroup0F01(ctx *decodeCtx) *Fault {
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	switch m.Reg {
	case 0: // SGDT
		if err := c.WriteWord(m.Seg, m.Offset, c.GDTRLimit); err != nil {
			return err
		}
		return c.WriteDword(m.Seg, m.Offset+2, c.GDTRBase)
	case 1: // SIDT
		if err := c.WriteWord(m.Seg, m.Offset, c.IDTRLimit); err != nil {
			return err
		}
		return c.WriteDword(m.Seg, m.Offset+2, c.IDTRBase)
	case 2: // LGDT
		limit, rerr := c.ReadWord(m.Seg, m.Offset)
		if rerr != nil {
			return rerr
		}
		base, rerr := c.ReadDword(m.Seg, m.Offset+2)
		if rerr != nil {
			return rerr
		}
		c.GDTRLimit, c.GDTRBase = limit, base
		return nil
	case 3: // LIDT
		limit, rerr := c.ReadWord(m.Seg, m.Offset)
		if rerr != nil {
			return rerr
		}
		base, rerr := c.ReadDword(m.Seg, m.Offset+2)
		if rerr != nil {
			return rerr
		}
		c.IDTRLimit, c.IDTRBase = limit, base
		return nil
	case 4: // SMSW
		return c.writeRMWidth(m, 16, c.CR0&0xFFFF)
	case 6: // LMSW
		v, rerr := c.readRMWidth(m, 16)
		if rerr != nil {
			return rerr
		}
		c.CR0 = (c.CR0 &^ 0xF) | (v & 0xF) | CR0ET
		return nil
	default:
		return NewFault(VecUD)
	}
}

// execMovCR/execMovDR handle 0F 20-23: MOV r32, CRn / MOV CRn, r32 and
// the DR equivalents. ModRM.RM always names a general register and the
// Mod field is not checked; a memory-form Mod still makes decodeModRM
// consume its SIB/displacement bytes.
func (c *CPU) execMovCR(opcode uint8, ctx *decodeCtx) *Fault {
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	toCR := opcode == 0x22
	crRef := func() *uint32 {
		switch m.Reg {
		case 0:
			return &c.CR0
		case 2:
			return &c.CR2
		case 3:
			return &c.CR3
		default:
			return &c.CR4
		}
	}()
	if toCR {
		*crRef = c.ReadReg32(m.RM)
		return nil
	}
	c.WriteReg32(m.RM, *crRef)
	return nil
}

func (c *CPU) execMovDR(opcode uint8, ctx *decodeCtx) *Fault {
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	toDR := opcode == 0x23
	if toDR {
		c.DR[m.Reg&7] = c.ReadReg32(m.RM)
		return nil
	}
	c.WriteReg32(m.RM, c.DR[m.Reg&7])
	return nil
}

// execClts handles 0F 06: clear CR0.TS.
func (c *CPU) execClts() {
	c.CR0 &^= CR0TS
}

// execMovzxMovsx handle 0F B6/B7 (zero-extend) and 0F BE/BF
// (sign-extend) loading an 8- or 16-bit r/m into a wider register.
func (c *CPU) execMovzxMovsx(opcode uint8, ctx *decodeCtx) *Fault {
	srcWidth := uint8(8)
	if opcode == 0xB7 || opcode == 0xBF {
		srcWidth = 16
	}
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	v, rerr := c.readRMWidth(m, srcWidth)
	if rerr != nil {
		return rerr
	}
	dstWidth := operandWidth(ctx)
	signExtend := opcode == 0xBE || opcode == 0xBF
	if signExtend {
		if srcWidth == 8 {
			v = uint32(int32(int8(v)))
		} else {
			v = uint32(int32(int16(v)))
		}
	}
	c.writeRegWidth(m.Reg, dstWidth, v&mask(dstWidth))
	return nil
}
