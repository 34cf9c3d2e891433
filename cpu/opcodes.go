/*
 * ia32core - Instruction executors
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

// aluBinOp applies one of the eight group-1 arithmetic/logic
// operations (the /reg or opcode/8 selector used by both the 00-3D
// range and the 80/81/83 immediate group) to a,b at the given width,
// storing flags as a side effect, and returns the result (CMP's result
// is computed but the caller discards it rather than writing it back).
func (c *CPU) aluBinOp(op uint8, a, b uint32, width uint8) uint32 {
	switch op {
	case 0:
		return c.Add(a, b, width)
	case 1:
		return c.Or(a, b, width)
	case 2:
		return c.Adc(a, b, width)
	case 3:
		return c.Sbb(a, b, width)
	case 4:
		return c.And(a, b, width)
	case 5:
		return c.Sub(a, b, width)
	case 6:
		return c.Xor(a, b, width)
	default: // 7: CMP
		return c.Sub(a, b, width)
	}
}

// execALUGroup handles the 00-3D range: forms /r (reg<->rm, opcode&7
// in {0,1,2,3}) and AL/eAX,imm (opcode&7 in {4,5}).
func (c *CPU) execALUGroup(opcode uint8, ctx *decodeCtx) *Fault {
	op := opcode >> 3
	form := opcode & 7
	width := uint8(8)
	if form&1 != 0 {
		width = operandWidth(ctx)
	}

	switch form {
	case 0, 1: // op rm, reg
		m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
		if err != nil {
			return err
		}
		a, err := c.readRMWidth(m, width)
		if err != nil {
			return err
		}
		b := c.readRegWidth(m.Reg, width)
		res := c.aluBinOp(op, a, b, width)
		if op != 7 {
			if err := c.writeRMWidth(m, width, res); err != nil {
				return err
			}
		}
		return nil

	case 2, 3: // op reg, rm
		m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
		if err != nil {
			return err
		}
		a := c.readRegWidth(m.Reg, width)
		b, err := c.readRMWidth(m, width)
		if err != nil {
			return err
		}
		res := c.aluBinOp(op, a, b, width)
		if op != 7 {
			c.writeRegWidth(m.Reg, width, res)
		}
		return nil

	default: // 4,5: op AL/eAX, imm
		imm, err := c.fetchImmWidth(width)
		if err != nil {
			return err
		}
		a := c.readRegWidth(RegEAX, width)
		res := c.aluBinOp(op, a, imm, width)
		if op != 7 {
			c.writeRegWidth(RegEAX, width, res)
		}
		return nil
	}
}

// execGroup1 handles 80/81/83: immediate ALU op against r/m, operation
// selected by ModRM.Reg.
func (c *CPU) execGroup1(opcode uint8, ctx *decodeCtx) *Fault {
	width := uint8(8)
	if opcode != 0x80 {
		width = operandWidth(ctx)
	}
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	var imm uint32
	if opcode == 0x83 {
		b, ferr := c.FetchByte()
		if ferr != nil {
			return ferr
		}
		imm = uint32(int32(int8(b)))
	} else {
		imm, err = c.fetchImmWidth(width)
		if err != nil {
			return err
		}
	}
	a, err := c.readRMWidth(m, width)
	if err != nil {
		return err
	}
	res := c.aluBinOp(m.Reg, a, imm, width)
	if m.Reg != 7 {
		return c.writeRMWidth(m, width, res)
	}
	return nil
}

// execGroup2 handles C0/C1/D0-D3: shift/rotate of r/m by an immediate,
// CL, or 1, operation selected by ModRM.Reg.
func (c *CPU) execGroup2(opcode uint8, ctx *decodeCtx) *Fault {
	width := uint8(8)
	if opcode == 0xC1 || opcode == 0xD1 || opcode == 0xD3 {
		width = operandWidth(ctx)
	}
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	var count uint8
	switch opcode {
	case 0xC0, 0xC1:
		b, ferr := c.FetchByte()
		if ferr != nil {
			return ferr
		}
		count = b
	case 0xD0, 0xD1:
		count = 1
	case 0xD2, 0xD3:
		count = c.ReadReg8(Reg8CL)
	}
	count &= 0x1F
	v, err := c.readRMWidth(m, width)
	if err != nil {
		return err
	}
	res := c.Shift(int(m.Reg), v, count, width)
	return c.writeRMWidth(m, width, res)
}

// execGroup3 handles F6/F7: TEST/NOT/NEG/MUL/IMUL/DIV/IDIV against
// r/m, selected by ModRM.Reg.
func (c *CPU) execGroup3(opcode uint8, ctx *decodeCtx) *Fault {
	width := uint8(8)
	if opcode == 0xF7 {
		width = operandWidth(ctx)
	}
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}

	switch m.Reg {
	case 0, 1: // TEST
		imm, ferr := c.fetchImmWidth(width)
		if ferr != nil {
			return ferr
		}
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		c.And(v, imm, width)
		return nil

	case 2: // NOT
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		return c.writeRMWidth(m, width, (^v)&mask(width))

	case 3: // NEG
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		return c.writeRMWidth(m, width, c.Neg(v, width))

	case 4: // MUL
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		a := c.readRegWidth(RegEAX, width)
		lo, hi := c.Mul(a, v, width)
		c.storeWideResult(width, lo, hi)
		return nil

	case 5: // IMUL
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		a := c.readRegWidth(RegEAX, width)
		lo, hi := c.Imul(a, v, width)
		c.storeWideResult(width, lo, hi)
		return nil

	case 6: // DIV
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		hi, lo := c.loadWideDividend(width)
		q, r, ok := c.Div(hi, lo, v, width)
		if !ok {
			return NewFault(VecDE)
		}
		c.storeDivResult(width, q, r)
		return nil

	default: // 7: IDIV
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		hi, lo := c.loadWideDividend(width)
		q, r, ok := c.Idiv(hi, lo, v, width)
		if !ok {
			return NewFault(VecDE)
		}
		c.storeDivResult(width, q, r)
		return nil
	}
}

// storeWideResult writes MUL/IMUL's double-width product back into the
// architecturally-defined register pair for the given operand width.
func (c *CPU) storeWideResult(width uint8, lo, hi uint32) {
	switch width {
	case 8:
		c.WriteReg16(RegEAX, uint16(lo)|uint16(hi)<<8)
	case 16:
		c.WriteReg16(RegEAX, uint16(lo))
		c.WriteReg16(RegEDX, uint16(hi))
	default:
		c.WriteReg32(RegEAX, lo)
		c.WriteReg32(RegEDX, hi)
	}
}

// loadWideDividend reads the architecturally-defined double-width
// dividend for DIV/IDIV at the given operand width.
func (c *CPU) loadWideDividend(width uint8) (hi, lo uint32) {
	switch width {
	case 8:
		ax := c.ReadReg16(RegEAX)
		return 0, uint32(ax)
	case 16:
		return uint32(c.ReadReg16(RegEDX)), uint32(c.ReadReg16(RegEAX))
	default:
		return c.ReadReg32(RegEDX), c.ReadReg32(RegEAX)
	}
}

func (c *CPU) storeDivResult(width uint8, quot, rem uint32) {
	switch width {
	case 8:
		c.WriteReg8(Reg8AL, uint8(quot))
		c.WriteReg8(Reg8AH, uint8(rem))
	case 16:
		c.WriteReg16(RegEAX, uint16(quot))
		c.WriteReg16(RegEDX, uint16(rem))
	default:
		c.WriteReg32(RegEAX, quot)
		c.WriteReg32(RegEDX, rem)
	}
}

// execMovRMReg handles 88/89 (MOV rm, reg) and 8A/8B (MOV reg, rm).
func (c *CPU) execMovRMReg(opcode uint8, ctx *decodeCtx) *Fault {
	width := uint8(8)
	if opcode&1 != 0 {
		width = operandWidth(ctx)
	}
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	if opcode&2 == 0 {
		v := c.readRegWidth(m.Reg, width)
		return c.writeRMWidth(m, width, v)
	}
	v, rerr := c.readRMWidth(m, width)
	if rerr != nil {
		return rerr
	}
	c.writeRegWidth(m.Reg, width, v)
	return nil
}

// execMovImm handles B0-BF (MOV reg, imm).
func (c *CPU) execMovImm(opcode uint8, ctx *decodeCtx) *Fault {
	reg := opcode & 7
	width := uint8(8)
	if opcode >= 0xB8 {
		width = operandWidth(ctx)
	}
	imm, err := c.fetchImmWidth(width)
	if err != nil {
		return err
	}
	c.writeRegWidth(reg, width, imm)
	return nil
}

// execMovRMImm handles C6/C7 (MOV rm, imm).
func (c *CPU) execMovRMImm(opcode uint8, ctx *decodeCtx) *Fault {
	width := uint8(8)
	if opcode == 0xC7 {
		width = operandWidth(ctx)
	}
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	imm, err := c.fetchImmWidth(width)
	if err != nil {
		return err
	}
	return c.writeRMWidth(m, width, imm)
}

// execMovSeg handles 8C (MOV rm, segreg) and 8E (MOV segreg, rm). The
// ModR/M reg field names a segment register 0-5 (ES,CS,SS,DS,FS,GS);
// the memory/register operand is always 16 bits wide.
func (c *CPU) execMovSeg(opcode uint8, ctx *decodeCtx) *Fault {
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	seg := int(m.Reg & 7)
	if seg > SegGS || (opcode == 0x8E && seg == SegCS) {
		return NewFault(VecUD)
	}
	if opcode == 0x8C {
		return c.writeRMWidth(m, 16, uint32(c.Seg[seg].Selector))
	}
	v, rerr := c.readRMWidth(m, 16)
	if rerr != nil {
		return rerr
	}
	return c.LoadSegment(seg, descriptor.Selector(v), seg == SegSS)
}

// execXchg handles 86/87 (XCHG rm, reg).
func (c *CPU) execXchg(opcode uint8, ctx *decodeCtx) *Fault {
	width := uint8(8)
	if opcode&1 != 0 {
		width = operandWidth(ctx)
	}
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	a, err := c.readRMWidth(m, width)
	if err != nil {
		return err
	}
	b := c.readRegWidth(m.Reg, width)
	if err := c.writeRMWidth(m, width, b); err != nil {
		return err
	}
	c.writeRegWidth(m.Reg, width, a)
	return nil
}

// execLea handles 8D (LEA reg, m): the effective address itself, not
// its contents, is loaded.
func (c *CPU) execLea(ctx *decodeCtx) *Fault {
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	c.writeRegWidth(m.Reg, operandWidth(ctx), m.Offset)
	return nil
}

// execIncDecReg handles 40-4F (INC/DEC reg16/32).
func (c *CPU) execIncDecReg(opcode uint8, ctx *decodeCtx) *Fault {
	width := operandWidth(ctx)
	reg := opcode & 7
	v := c.readRegWidth(reg, width)
	if opcode < 0x48 {
		c.writeRegWidth(reg, width, c.Inc(v, width))
	} else {
		c.writeRegWidth(reg, width, c.Dec(v, width))
	}
	return nil
}

// execGroupFE handles FE: INC/DEC rm8, selected by ModRM.Reg in {0,1}.
func (c *CPU) execGroupFE(ctx *decodeCtx) *Fault {
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	v, rerr := c.readRMWidth(m, 8)
	if rerr != nil {
		return rerr
	}
	if m.Reg == 0 {
		return c.writeRMWidth(m, 8, c.Inc(v, 8))
	}
	return c.writeRMWidth(m, 8, c.Dec(v, 8))
}

// execPushReg/execPopReg handle 50-57/58-5F.
func (c *CPU) execPushReg(opcode uint8, ctx *decodeCtx) *Fault {
	reg := opcode & 7
	if ctx.opSize32 {
		return c.Push32(c.ReadReg32(reg))
	}
	return c.Push16(c.ReadReg16(reg))
}

func (c *CPU) execPopReg(opcode uint8, ctx *decodeCtx) *Fault {
	reg := opcode & 7
	if ctx.opSize32 {
		v, err := c.Pop32()
		if err != nil {
			return err
		}
		c.WriteReg32(reg, v)
		return nil
	}
	v, err := c.Pop16()
	if err != nil {
		return err
	}
	c.WriteReg16(reg, v)
	return nil
}

func (c *CPU) execPushImm32(ctx *decodeCtx) *Fault {
	width := operandWidth(ctx)
	imm, err := c.fetchImmWidth(width)
	if err != nil {
		return err
	}
	if width == 32 {
		return c.Push32(imm)
	}
	return c.Push16(uint16(imm))
}

func (c *CPU) execPushImm8(ctx *decodeCtx) *Fault {
	b, err := c.FetchByte()
	if err != nil {
		return err
	}
	v := uint32(int32(int8(b)))
	if ctx.opSize32 {
		return c.Push32(v)
	}
	return c.Push16(uint16(v))
}

func (c *CPU) execPushfPopf(isPush bool, ctx *decodeCtx) *Fault {
	if isPush {
		if ctx.opSize32 {
			return c.Push32(c.EFlags &^ (FlagRF | FlagVM))
		}
		return c.Push16(uint16(c.EFlags))
	}
	if ctx.opSize32 {
		v, err := c.Pop32()
		if err != nil {
			return err
		}
		c.EFlags = (v &^ 0x00020000) | flagsReserved1
		return nil
	}
	v, err := c.Pop16()
	if err != nil {
		return err
	}
	c.EFlags = (c.EFlags &^ 0xFFFF) | uint32(v) | flagsReserved1
	return nil
}

// condTrue evaluates the sixteen Jcc conditions (opcode low nibble, or
// the 0F 80-8F low nibble, which share the same test).
func (c *CPU) condTrue(cc uint8) bool {
	switch cc & 0xF {
	case 0x0:
		return c.Flag(FlagOF)
	case 0x1:
		return !c.Flag(FlagOF)
	case 0x2:
		return c.Flag(FlagCF)
	case 0x3:
		return !c.Flag(FlagCF)
	case 0x4:
		return c.Flag(FlagZF)
	case 0x5:
		return !c.Flag(FlagZF)
	case 0x6:
		return c.Flag(FlagCF) || c.Flag(FlagZF)
	case 0x7:
		return !c.Flag(FlagCF) && !c.Flag(FlagZF)
	case 0x8:
		return c.Flag(FlagSF)
	case 0x9:
		return !c.Flag(FlagSF)
	case 0xA:
		return c.Flag(FlagPF)
	case 0xB:
		return !c.Flag(FlagPF)
	case 0xC:
		return c.Flag(FlagSF) != c.Flag(FlagOF)
	case 0xD:
		return c.Flag(FlagSF) == c.Flag(FlagOF)
	case 0xE:
		return c.Flag(FlagZF) || (c.Flag(FlagSF) != c.Flag(FlagOF))
	default: // 0xF
		return !c.Flag(FlagZF) && (c.Flag(FlagSF) == c.Flag(FlagOF))
	}
}

func (c *CPU) execJccShort(opcode uint8) *Fault {
	disp, err := c.FetchByte()
	if err != nil {
		return err
	}
	if c.condTrue(opcode) {
		c.JumpRelative8(int8(disp))
	}
	return nil
}

func (c *CPU) execJccNear(cc uint8, ctx *decodeCtx) *Fault {
	if ctx.opSize32 {
		disp, err := c.FetchDword()
		if err != nil {
			return err
		}
		if c.condTrue(cc) {
			c.JumpRelative32(int32(disp))
		}
		return nil
	}
	disp, err := c.FetchWord()
	if err != nil {
		return err
	}
	if c.condTrue(cc) {
		c.JumpRelative16(int16(disp))
	}
	return nil
}

// execLoop handles E0 (LOOPNE), E1 (LOOPE), E2 (LOOP) and E3 (JCXZ).
// The counter register is CX or ECX depending on the address-size
// attribute, per the architecture's documented coupling.
func (c *CPU) execLoop(opcode uint8, ctx *decodeCtx) *Fault {
	disp, err := c.FetchByte()
	if err != nil {
		return err
	}

	counter := func() uint32 {
		if ctx.addrSize32 {
			return c.ReadReg32(RegECX)
		}
		return uint32(c.ReadReg16(RegECX))
	}
	setCounter := func(v uint32) {
		if ctx.addrSize32 {
			c.WriteReg32(RegECX, v)
		} else {
			c.WriteReg16(RegECX, uint16(v))
		}
	}

	if opcode == 0xE3 {
		if counter() == 0 {
			c.JumpRelative8(int8(disp))
		}
		return nil
	}

	n := counter() - 1
	setCounter(n)
	take := n != 0
	switch opcode {
	case 0xE0: // LOOPNE/LOOPNZ
		take = take && !c.Flag(FlagZF)
	case 0xE1: // LOOPE/LOOPZ
		take = take && c.Flag(FlagZF)
	}
	if take {
		c.JumpRelative8(int8(disp))
	}
	return nil
}

func (c *CPU) execInOut(opcode uint8, ctx *decodeCtx) *Fault {
	width := uint8(8)
	if opcode&1 != 0 {
		width = operandWidth(ctx)
	}
	fromImm := opcode&0xF0 == 0xE0
	var port uint16
	if fromImm {
		b, err := c.FetchByte()
		if err != nil {
			return err
		}
		port = uint16(b)
	} else {
		port = c.ReadReg16(RegEDX)
	}

	isOut := opcode&2 != 0
	if !isOut {
		switch width {
		case 8:
			c.WriteReg8(Reg8AL, c.Ports.In(port))
		case 16:
			c.WriteReg16(RegEAX, c.Ports.In16(port))
		default:
			c.WriteReg32(RegEAX, c.Ports.In32(port))
		}
		return nil
	}
	switch width {
	case 8:
		c.Ports.Out(port, c.ReadReg8(Reg8AL))
	case 16:
		c.Ports.Out16(port, c.ReadReg16(RegEAX))
	default:
		c.Ports.Out32(port, c.ReadReg32(RegEAX))
	}
	return nil
}

func (c *CPU) execCallRel(ctx *decodeCtx) *Fault {
	if ctx.opSize32 {
		disp, err := c.FetchDword()
		if err != nil {
			return err
		}
		ret := c.EIP
		c.JumpRelative32(int32(disp))
		return c.Push32(ret)
	}
	disp, err := c.FetchWord()
	if err != nil {
		return err
	}
	ret := c.EIP
	c.JumpRelative16(int16(disp))
	return c.Push16(uint16(ret))
}

func (c *CPU) execJmpRel32(ctx *decodeCtx) *Fault {
	if ctx.opSize32 {
		disp, err := c.FetchDword()
		if err != nil {
			return err
		}
		c.JumpRelative32(int32(disp))
		return nil
	}
	disp, err := c.FetchWord()
	if err != nil {
		return err
	}
	c.JumpRelative16(int16(disp))
	return nil
}

func (c *CPU) execJmpRel8() *Fault {
	disp, err := c.FetchByte()
	if err != nil {
		return err
	}
	c.JumpRelative8(int8(disp))
	return nil
}

func (c *CPU) execRetNear(hasImm bool) *Fault {
	var imm uint16
	if hasImm {
		v, err := c.FetchWord()
		if err != nil {
			return err
		}
		imm = v
	}
	big := c.Seg[SegCS].Cache.Big
	return c.NearReturn(big, imm)
}

func (c *CPU) execFarRet(hasImm bool) *Fault {
	var imm uint16
	if hasImm {
		v, err := c.FetchWord()
		if err != nil {
			return err
		}
		imm = v
	}
	big := c.Seg[SegCS].Cache.Big
	return c.FarReturn(big, imm)
}

func (c *CPU) execFarJmpImm(ctx *decodeCtx) *Fault {
	var offset uint32
	var err *Fault
	if ctx.opSize32 {
		offset, err = c.FetchDword()
	} else {
		var w uint16
		w, err = c.FetchWord()
		offset = uint32(w)
	}
	if err != nil {
		return err
	}
	sel, err := c.FetchWord()
	if err != nil {
		return err
	}
	return c.FarJump(sel, offset)
}

func (c *CPU) execFarCallImm(ctx *decodeCtx) *Fault {
	var offset uint32
	var err *Fault
	if ctx.opSize32 {
		offset, err = c.FetchDword()
	} else {
		var w uint16
		w, err = c.FetchWord()
		offset = uint32(w)
	}
	if err != nil {
		return err
	}
	sel, err := c.FetchWord()
	if err != nil {
		return err
	}
	return c.FarCall(sel, offset, ctx.opSize32)
}

// execGroupFF handles FF: INC/DEC/CALL/CALLF/JMP/JMPF/PUSH rm,
// selected by ModRM.Reg.
func (c *CPU) execGroupFF(ctx *decodeCtx) *Fault {
	m, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride)
	if err != nil {
		return err
	}
	width := operandWidth(ctx)

	switch m.Reg {
	case 0: // INC
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		return c.writeRMWidth(m, width, c.Inc(v, width))

	case 1: // DEC
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		return c.writeRMWidth(m, width, c.Dec(v, width))

	case 2: // CALL near indirect
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		ret := c.EIP
		c.EIP = v
		if width == 32 {
			return c.Push32(ret)
		}
		return c.Push16(uint16(ret))

	case 3: // CALL far indirect
		offset, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		selOffset := m.Offset + uint32(width/8)
		sel, rerr := c.ReadWord(m.Seg, selOffset)
		if rerr != nil {
			return rerr
		}
		return c.FarCall(sel, offset, width == 32)

	case 4: // JMP near indirect
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		c.EIP = v
		return nil

	case 5: // JMP far indirect
		offset, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		selOffset := m.Offset + uint32(width/8)
		sel, rerr := c.ReadWord(m.Seg, selOffset)
		if rerr != nil {
			return rerr
		}
		return c.FarJump(sel, offset)

	default: // 6: PUSH rm
		v, rerr := c.readRMWidth(m, width)
		if rerr != nil {
			return rerr
		}
		if width == 32 {
			return c.Push32(v)
		}
		return c.Push16(uint16(v))
	}
}

// execInt3/execIntImm/execInto/execIret implement software interrupts
// and their return. Unlike an architectural exception, a software trap
// resumes at the instruction *after* itself, so these push c.EIP as it
// stands once the instruction (opcode plus any operand byte) has been
// fully fetched, not the start-of-instruction EIP used for faults.
func (c *CPU) execInt3() *Fault {
	return c.deliver(VecBP, false, 0, c.EIP)
}

func (c *CPU) execIntImm() *Fault {
	vec, err := c.FetchByte()
	if err != nil {
		return err
	}
	return c.deliver(vec, false, 0, c.EIP)
}

func (c *CPU) execInto() *Fault {
	if c.Flag(FlagOF) {
		return c.deliver(VecOF, false, 0, c.EIP)
	}
	return nil
}

func (c *CPU) execIret(ctx *decodeCtx) *Fault {
	return c.Iret(ctx.opSize32)
}

// execCwdCdq/execCbwCwde implement 98/99, sign-extending AL/AX into
// AX/EAX and AX/DX or EAX/EDX.
func (c *CPU) execCbwCwde(ctx *decodeCtx) {
	if ctx.opSize32 {
		ax := int16(c.ReadReg16(RegEAX))
		c.WriteReg32(RegEAX, uint32(int32(ax)))
		return
	}
	al := int8(c.ReadReg8(Reg8AL))
	c.WriteReg16(RegEAX, uint16(int16(al)))
}

func (c *CPU) execCwdCdq(ctx *decodeCtx) {
	if ctx.opSize32 {
		eax := int32(c.ReadReg32(RegEAX))
		if eax < 0 {
			c.WriteReg32(RegEDX, 0xFFFFFFFF)
		} else {
			c.WriteReg32(RegEDX, 0)
		}
		return
	}
	ax := int16(c.ReadReg16(RegEAX))
	if ax < 0 {
		c.WriteReg16(RegEDX, 0xFFFF)
	} else {
		c.WriteReg16(RegEDX, 0)
	}
}
