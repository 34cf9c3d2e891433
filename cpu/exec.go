/*
 * ia32core - Prefix handling, opcode dispatch tables, and the main loop
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

// RunState is the coarse run state of a CPU, polled by the main loop.
type RunState int

const (
	Alive RunState = iota
	Halted
	Dead
)

// decodeCtx carries the sticky prefix state accumulated while scanning
// an instruction's prefix bytes: segment override, operand-size and
// address-size toggles, and the LOCK/REPNE/REP bits. It is part of the
// instruction, not of the CPU, and is discarded at the next
// instruction boundary whether that instruction completes or faults.
type decodeCtx struct {
	segOverride    int
	hasSegOverride bool
	opSize32       bool
	addrSize32     bool
	lock           bool
	rep            bool
	repne          bool
}

func (c *CPU) newDecodeCtx() *decodeCtx {
	big := c.Seg[SegCS].Cache.Big
	return &decodeCtx{opSize32: big, addrSize32: big}
}

// opHandler is the uniform shape every opcode-table entry takes: given
// the CPU, the accumulated prefix state, the opcode byte that selected
// this entry, and the EIP the instruction started at (Step delivers any
// fault the handler returns with that EIP as the return address),
// execute the instruction.
type opHandler func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault

var opcodeTable [256]opHandler
var opcodeTable0F [256]opHandler

func unimplemented(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault {
	return NewFault(VecUD)
}

func init() {
	for i := range opcodeTable {
		opcodeTable[i] = unimplemented
	}
	for i := range opcodeTable0F {
		opcodeTable0F[i] = unimplemented
	}

	// ALU group: ADD/OR/ADC/SBB/AND/SUB/XOR/CMP, each spanning eight
	// opcodes (/r x4, AL/eAX,imm x2, plus the two segment push/pop
	// opcodes this range doesn't use for every operation).
	for op := uint8(0); op < 8; op++ {
		base := op * 8
		for form := uint8(0); form < 6; form++ {
			opcodeTable[base+form] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault {
				return c.execALUGroup(opcode, ctx)
			}
		}
	}

	opcodeTable[0x80] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execGroup1(opcode, ctx) }
	opcodeTable[0x81] = opcodeTable[0x80]
	opcodeTable[0x83] = opcodeTable[0x80]

	opcodeTable[0x88] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execMovRMReg(opcode, ctx) }
	opcodeTable[0x89] = opcodeTable[0x88]
	opcodeTable[0x8A] = opcodeTable[0x88]
	opcodeTable[0x8B] = opcodeTable[0x88]
	opcodeTable[0x8C] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execMovSeg(opcode, ctx) }
	opcodeTable[0x8E] = opcodeTable[0x8C]
	opcodeTable[0x8D] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execLea(ctx) }
	opcodeTable[0xC6] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execMovRMImm(opcode, ctx) }
	opcodeTable[0xC7] = opcodeTable[0xC6]
	for r := uint8(0); r < 8; r++ {
		opcodeTable[0xB0+r] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execMovImm(opcode, ctx) }
		opcodeTable[0xB8+r] = opcodeTable[0xB0+r]
	}

	opcodeTable[0x86] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execXchg(opcode, ctx) }
	opcodeTable[0x87] = opcodeTable[0x86]

	for r := uint8(0); r < 8; r++ {
		opcodeTable[0x40+r] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execIncDecReg(opcode, ctx) }
		opcodeTable[0x48+r] = opcodeTable[0x40+r]
		opcodeTable[0x50+r] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execPushReg(opcode, ctx) }
		opcodeTable[0x58+r] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execPopReg(opcode, ctx) }
	}
	opcodeTable[0xFE] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execGroupFE(ctx) }
	opcodeTable[0xFF] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execGroupFF(ctx) }

	opcodeTable[0x68] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execPushImm32(ctx) }
	opcodeTable[0x6A] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execPushImm8(ctx) }
	opcodeTable[0x9C] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execPushfPopf(true, ctx) }
	opcodeTable[0x9D] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execPushfPopf(false, ctx) }

	for cc := uint8(0); cc < 0x10; cc++ {
		opcodeTable[0x70+cc] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execJccShort(opcode) }
		opcodeTable0F[0x80+cc] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault {
			return c.execJccNear(opcode, ctx)
		}
	}
	for cc := uint8(0xE0); cc <= 0xE3; cc++ {
		opcodeTable[cc] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execLoop(opcode, ctx) }
	}

	opcodeTable[0xEB] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execJmpRel8() }
	opcodeTable[0xE9] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execJmpRel32(ctx) }
	opcodeTable[0xE8] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execCallRel(ctx) }
	opcodeTable[0xC3] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execRetNear(false) }
	opcodeTable[0xC2] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execRetNear(true) }
	opcodeTable[0xCB] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execFarRet(false) }
	opcodeTable[0xCA] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execFarRet(true) }
	opcodeTable[0xEA] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execFarJmpImm(ctx) }
	opcodeTable[0x9A] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execFarCallImm(ctx) }

	opcodeTable[0xCC] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execInt3() }
	opcodeTable[0xCD] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execIntImm() }
	opcodeTable[0xCE] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execInto() }
	opcodeTable[0xCF] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execIret(ctx) }

	opcodeTable[0xF4] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.Halted = true; return nil }
	opcodeTable[0xFA] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.SetFlag(FlagIF, false); return nil }
	opcodeTable[0xFB] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.SetFlag(FlagIF, true); return nil }
	opcodeTable[0xF8] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.SetFlag(FlagCF, false); return nil }
	opcodeTable[0xF9] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.SetFlag(FlagCF, true); return nil }
	opcodeTable[0xF5] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.SetFlag(FlagCF, !c.Flag(FlagCF)); return nil }
	opcodeTable[0xFC] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.SetFlag(FlagDF, false); return nil }
	opcodeTable[0xFD] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.SetFlag(FlagDF, true); return nil }
	opcodeTable[0x90] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return nil }

	for op := uint8(0xE4); op <= 0xE7; op++ {
		opcodeTable[op] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execInOut(opcode, ctx) }
	}
	for op := uint8(0xEC); op <= 0xEF; op++ {
		opcodeTable[op] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execInOut(opcode, ctx) }
	}

	for op := uint8(0xC0); op <= 0xC1; op++ {
		opcodeTable[op] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execGroup2(opcode, ctx) }
	}
	for op := uint8(0xD0); op <= 0xD3; op++ {
		opcodeTable[op] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execGroup2(opcode, ctx) }
	}
	opcodeTable[0xF6] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execGroup3(opcode, ctx) }
	opcodeTable[0xF7] = opcodeTable[0xF6]

	opcodeTable[0x98] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.execCbwCwde(ctx); return nil }
	opcodeTable[0x99] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.execCwdCdq(ctx); return nil }

	opcodeTable[0x37] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.AdjustAAA(); return nil }
	opcodeTable[0x3F] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.AdjustAAS(); return nil }
	opcodeTable[0x27] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.AdjustDAA(); return nil }
	opcodeTable[0x2F] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.AdjustDAS(); return nil }
	opcodeTable[0xD4] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault {
		base, err := c.FetchByte()
		if err != nil {
			return err
		}
		return c.AdjustAAM(base)
	}
	opcodeTable[0xD5] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault {
		base, err := c.FetchByte()
		if err != nil {
			return err
		}
		c.AdjustAAD(base)
		return nil
	}

	// FPU escape opcodes D8-DF: the ModR/M operand bytes are consumed and
	// the instruction is logged; no floating-point state is modeled.
	for op := uint8(0xD8); op <= 0xDF; op++ {
		opcodeTable[op] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault {
			if _, err := c.decodeModRM(ctx.addrSize32, ctx.segOverride, ctx.hasSegOverride); err != nil {
				return err
			}
			if c.Logger != nil {
				c.Logger.Debug("fpu opcode ignored", "opcode", opcode, "eip", startEIP)
			}
			return nil
		}
	}

	// 0F two-byte escape: system/control instructions.
	opcodeTable0F[0x00] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execGroup0F00(ctx) }
	opcodeTable0F[0x01] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { return c.execGroup0F01(ctx) }
	opcodeTable0F[0x06] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault { c.execClts(); return nil }
	for op := uint8(0x20); op <= 0x23; op++ {
		opcodeTable0F[op] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault {
			if opcode&1 == 0 {
				return c.execMovCR(opcode, ctx)
			}
			return c.execMovDR(opcode, ctx)
		}
	}
	for _, op := range []uint8{0xB6, 0xB7, 0xBE, 0xBF} {
		opcodeTable0F[op] = func(c *CPU, ctx *decodeCtx, opcode uint8, startEIP uint32) *Fault {
			return c.execMovzxMovsx(opcode, ctx)
		}
	}
}

// Step decodes and executes one instruction, including any prefix
// bytes. A fault raised while fetching or executing the instruction is
// delivered through deliver with the instruction's start EIP as the
// return address (the offending-IP invariant); Step returns nil once
// delivery succeeds and returns only a *Fault that delivery itself
// raised. Step itself never advances past a
// faulting instruction's effects beyond what the executor already did,
// since the executor is responsible for leaving state consistent up to
// the point of the fault. Software traps (INT3/INT n/INTO) are not
// routed through startEIP at all -- they resume at the next
// instruction, not the trapping one, and push their own return EIP
// directly (see execInt3/execIntImm/execInto in opcodes.go).
func (c *CPU) Step() *Fault {
	startEIP := c.EIP
	ctx := c.newDecodeCtx()
	fail := func(err *Fault) *Fault {
		if err.HasCR2 {
			c.CR2 = err.CR2
		}
		return c.deliver(err.Vector, err.HasCode, err.Code, startEIP)
	}

	var opcode uint8
	for {
		b, err := c.FetchByte()
		if err != nil {
			return fail(err)
		}
		switch b {
		case 0x26:
			ctx.segOverride, ctx.hasSegOverride = SegES, true
		case 0x2E:
			ctx.segOverride, ctx.hasSegOverride = SegCS, true
		case 0x36:
			ctx.segOverride, ctx.hasSegOverride = SegSS, true
		case 0x3E:
			ctx.segOverride, ctx.hasSegOverride = SegDS, true
		case 0x64:
			ctx.segOverride, ctx.hasSegOverride = SegFS, true
		case 0x65:
			ctx.segOverride, ctx.hasSegOverride = SegGS, true
		case 0x66:
			ctx.opSize32 = !ctx.opSize32
		case 0x67:
			ctx.addrSize32 = !ctx.addrSize32
		case 0xF0:
			ctx.lock = true
		case 0xF2:
			ctx.repne = true
		case 0xF3:
			ctx.rep = true
		default:
			opcode = b
			goto decoded
		}
	}
decoded:

	var handler opHandler
	if opcode == 0x0F {
		second, err := c.FetchByte()
		if err != nil {
			return fail(err)
		}
		handler = opcodeTable0F[second]
		opcode = second
	} else {
		handler = opcodeTable[opcode]
	}

	if err := handler(c, ctx, opcode, startEIP); err != nil {
		return fail(err)
	}
	return nil
}

// RunUntilHaltOrFault drives the main loop described for the CPU's
// {Alive, Halted, Dead} states: Alive runs instructions until a fault
// escapes Step's own IDT-vectored handling (meaning exception delivery
// itself faulted — a double/triple fault), HLT flips to Halted, and
// the halted loop is left to the caller's IRQ/reboot polling since it
// owns the scheduling clock. It returns whenever the CPU leaves Alive.
func (c *CPU) RunUntilHaltOrFault(maxInstructions int) (RunState, *Fault) {
	for i := 0; i < maxInstructions; i++ {
		if c.Halted {
			return Halted, nil
		}
		if c.PIC != nil && c.Flag(FlagIF) && c.PIC.HasPendingIRQ() {
			vec := c.PIC.ServiceIRQ()
			if err := c.deliver(vec, false, 0, c.EIP); err != nil {
				return Dead, err
			}
			continue
		}
		if err := c.Step(); err != nil {
			return Dead, err
		}
	}
	return Alive, nil
}
