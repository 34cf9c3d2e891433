/*
 * ia32core - Width-generic register/operand access helpers
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

// readRMWidth/writeRMWidth replace the repeated 8/16/32 macro
// expansions of a hand-written decoder with one parameterised helper,
// dispatching to the matching RM*/SetRM* accessor.
func (c *CPU) readRMWidth(m ModRM, width uint8) (uint32, *Fault) {
	switch width {
	case 8:
		v, err := c.RMByte(m)
		return uint32(v), err
	case 16:
		v, err := c.RMWord(m)
		return uint32(v), err
	default:
		return c.RMDword(m)
	}
}

func (c *CPU) writeRMWidth(m ModRM, width uint8, v uint32) *Fault {
	switch width {
	case 8:
		return c.SetRMByte(m, uint8(v))
	case 16:
		return c.SetRMWord(m, uint16(v))
	default:
		return c.SetRMDword(m, v)
	}
}

func (c *CPU) readRegWidth(r uint8, width uint8) uint32 {
	switch width {
	case 8:
		return uint32(c.ReadReg8(r))
	case 16:
		return uint32(c.ReadReg16(r))
	default:
		return c.ReadReg32(r)
	}
}

func (c *CPU) writeRegWidth(r uint8, width uint8, v uint32) {
	switch width {
	case 8:
		c.WriteReg8(r, uint8(v))
	case 16:
		c.WriteReg16(r, uint16(v))
	default:
		c.WriteReg32(r, v)
	}
}

// operandWidth resolves the effective operand size of a non-byte
// opcode: 32 or 16 depending on the segment's default plus any
// 66-prefix toggle captured in ctx. Byte opcodes use width 8 without
// calling it.
func operandWidth(ctx *decodeCtx) uint8 {
	if ctx.opSize32 {
		return 32
	}
	return 16
}

// fetchImmWidth reads an immediate of the given operand width from the
// instruction stream (byte immediates are still read as a single byte
// by callers that need sign/zero-extension semantics distinct from a
// full-width immediate; this helper covers the common full-width case).
func (c *CPU) fetchImmWidth(width uint8) (uint32, *Fault) {
	switch width {
	case 8:
		v, err := c.FetchByte()
		return uint32(v), err
	case 16:
		v, err := c.FetchWord()
		return uint32(v), err
	default:
		return c.FetchDword()
	}
}
