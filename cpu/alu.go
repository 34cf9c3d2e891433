/*
 * ia32core - ALU flag computation, BCD adjusts, shift/rotate group
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

// parityTable8 holds precomputed PF (even parity of the low byte) for
// every possible byte result.
var parityTable8 [256]bool

func init() {
	for i := range parityTable8 {
		bits := 0
		for v := i; v != 0; v >>= 1 {
			bits += v & 1
		}
		parityTable8[i] = bits%2 == 0
	}
}

func signBit(v uint32, width uint8) bool {
	return v&(1<<(width-1)) != 0
}

func mask(width uint8) uint32 {
	return (uint32(1) << width) - 1
}

// setArithFlags updates CF/PF/AF/ZF/SF/OF in EFlags from an add/sub
// result. carry is the CF value the caller computed: the carry or
// borrow out of the operation, including the incoming CF for ADC/SBB.
func (c *CPU) setArithFlags(a, b, result uint32, width uint8, isSub bool, carry bool) {
	m := mask(width)
	res := result & m
	c.SetFlag(FlagCF, carry)
	c.SetFlag(FlagPF, parityTable8[uint8(res)])
	c.SetFlag(FlagZF, res == 0)
	c.SetFlag(FlagSF, signBit(res, width))

	aSign := signBit(a&m, width)
	bSign := signBit(b&m, width)
	rSign := signBit(res, width)
	if isSub {
		c.SetFlag(FlagOF, aSign != bSign && rSign != aSign)
	} else {
		c.SetFlag(FlagOF, aSign == bSign && rSign != aSign)
	}

	af := (a ^ b ^ result) & 0x10
	c.SetFlag(FlagAF, af != 0)
}

// Add computes a+b at the given bit width, sets flags, and returns the
// masked result.
func (c *CPU) Add(a, b uint32, width uint8) uint32 {
	m := mask(width)
	full := uint64(a&m) + uint64(b&m)
	result := uint32(full) & m
	c.setArithFlags(a, b, result, width, false, full > uint64(m))
	return result
}

// Adc computes a+b+CF at the given bit width.
func (c *CPU) Adc(a, b uint32, width uint8) uint32 {
	cf := uint64(0)
	if c.Flag(FlagCF) {
		cf = 1
	}
	m := mask(width)
	full := uint64(a&m) + uint64(b&m) + cf
	result := uint32(full) & m
	c.setArithFlags(a, b, result, width, false, full > uint64(m))
	return result
}

// Sub computes a-b at the given bit width.
func (c *CPU) Sub(a, b uint32, width uint8) uint32 {
	m := mask(width)
	result := (a - b) & m
	c.setArithFlags(a, b, result, width, true, (a&m) < (b&m))
	return result
}

// Sbb computes a-b-CF at the given bit width.
func (c *CPU) Sbb(a, b uint32, width uint8) uint32 {
	cf := uint32(0)
	if c.Flag(FlagCF) {
		cf = 1
	}
	m := mask(width)
	borrow := (a & m) < (b&m)+cf || (b&m)+cf > m
	result := (a - b - cf) & m
	c.setArithFlags(a, b, result, width, true, borrow)
	return result
}

// logicFlags updates PF/ZF/SF from a logic-op result and clears CF/OF
// per the architecture's AND/OR/XOR/TEST convention; AF is left as is.
func (c *CPU) logicFlags(result uint32, width uint8) {
	m := mask(width)
	res := result & m
	c.SetFlag(FlagCF, false)
	c.SetFlag(FlagOF, false)
	c.SetFlag(FlagPF, parityTable8[uint8(res)])
	c.SetFlag(FlagZF, res == 0)
	c.SetFlag(FlagSF, signBit(res, width))
}

// And/Or/Xor compute the named logic op, set flags, and return the
// masked result.
func (c *CPU) And(a, b uint32, width uint8) uint32 {
	r := (a & b) & mask(width)
	c.logicFlags(r, width)
	return r
}

func (c *CPU) Or(a, b uint32, width uint8) uint32 {
	r := (a | b) & mask(width)
	c.logicFlags(r, width)
	return r
}

func (c *CPU) Xor(a, b uint32, width uint8) uint32 {
	r := (a ^ b) & mask(width)
	c.logicFlags(r, width)
	return r
}

// Inc/Dec update all arithmetic flags except CF, which they leave
// untouched (the one documented quirk of INC/DEC versus ADD/SUB).
func (c *CPU) Inc(a uint32, width uint8) uint32 {
	savedCF := c.Flag(FlagCF)
	r := c.Add(a, 1, width)
	c.SetFlag(FlagCF, savedCF)
	return r
}

func (c *CPU) Dec(a uint32, width uint8) uint32 {
	savedCF := c.Flag(FlagCF)
	r := c.Sub(a, 1, width)
	c.SetFlag(FlagCF, savedCF)
	return r
}

// Neg computes 0-a, with CF cleared only when a == 0.
func (c *CPU) Neg(a uint32, width uint8) uint32 {
	r := c.Sub(0, a, width)
	c.SetFlag(FlagCF, a&mask(width) != 0)
	return r
}

// Mul performs unsigned multiply; CF and OF are set iff the upper half
// of the double-width result is nonzero.
func (c *CPU) Mul(a, b uint32, width uint8) (lo uint32, hi uint32) {
	full := uint64(a&mask(width)) * uint64(b&mask(width))
	lo = uint32(full) & mask(width)
	hi = uint32(full>>width) & mask(width)
	overflow := hi != 0
	c.SetFlag(FlagCF, overflow)
	c.SetFlag(FlagOF, overflow)
	return lo, hi
}

// Imul performs signed multiply; CF/OF are set iff the result does not
// fit in the low half, sign-extended.
func (c *CPU) Imul(a, b uint32, width uint8) (lo uint32, hi uint32) {
	sa := signExtend(a, width)
	sb := signExtend(b, width)
	full := sa * sb
	lo = uint32(full) & mask(width)
	hi = uint32(full>>width) & mask(width)
	signExtended := int64(int32(lo)) // compares low half sign-extended to full
	if width == 8 {
		signExtended = int64(int8(lo))
	} else if width == 16 {
		signExtended = int64(int16(lo))
	}
	overflow := full != signExtended
	c.SetFlag(FlagCF, overflow)
	c.SetFlag(FlagOF, overflow)
	return lo, hi
}

func signExtend(v uint32, width uint8) int64 {
	m := mask(width)
	v &= m
	if signBit(v, width) {
		return int64(v) - int64(m) - 1
	}
	return int64(v)
}

// Div performs unsigned divide of a (double-width dividend given as
// hi:lo) by b. Returns ok=false for divide-by-zero or quotient
// overflow, which the caller turns into #DE.
func (c *CPU) Div(hi, lo uint32, b uint32, width uint8) (quot, rem uint32, ok bool) {
	if b == 0 {
		return 0, 0, false
	}
	dividend := (uint64(hi) << width) | uint64(lo)
	q := dividend / uint64(b)
	r := dividend % uint64(b)
	if q > uint64(mask(width)) {
		return 0, 0, false
	}
	return uint32(q), uint32(r), true
}

// Idiv performs signed divide analogous to Div.
func (c *CPU) Idiv(hi, lo uint32, b uint32, width uint8) (quot, rem uint32, ok bool) {
	if b == 0 {
		return 0, 0, false
	}
	raw := (uint64(hi) << width) | uint64(lo)
	shift := 64 - 2*uint(width)
	dividend := int64(raw<<shift) >> shift
	divisor := int64(signExtend(b, width))
	q := dividend / divisor
	r := dividend % divisor
	m := int64(mask(width))
	if q > m/2 || q < -(m/2)-1 {
		return 0, 0, false
	}
	return uint32(q) & mask(width), uint32(r) & mask(width), true
}

// Shift-group slash values (the /reg field selects the operation for
// opcodes C0/C1/D0-D3).
const (
	ShiftROL = 0
	ShiftROR = 1
	ShiftRCL = 2
	ShiftRCR = 3
	ShiftSHL = 4 // SAL and SHL share this slash value
	ShiftSHR = 5
	ShiftSAR = 7
)

// Shift applies one of the group-2 shift/rotate operations for
// `count` (already masked to 0-31 by the caller, for every operand
// width) and sets CF/OF (defined
// only when count==1) plus, for SHL/SHR/SAR, the standard result
// flags.
func (c *CPU) Shift(op int, v uint32, count uint8, width uint8) uint32 {
	if count == 0 {
		return v & mask(width)
	}
	m := mask(width)
	v &= m
	var result uint32
	var cf bool

	switch op {
	case ShiftROL:
		n := count % width
		result = ((v << n) | (v >> (width - n))) & m
		cf = result&1 != 0
		c.SetFlag(FlagCF, cf)
		if count == 1 {
			c.SetFlag(FlagOF, signBit(result, width) != (cf))
		}
		return result

	case ShiftROR:
		n := count % width
		result = ((v >> n) | (v << (width - n))) & m
		cf = signBit(result, width)
		c.SetFlag(FlagCF, cf)
		if count == 1 {
			top2 := (result >> (width - 2)) & 0x3
			c.SetFlag(FlagOF, top2 == 0x1 || top2 == 0x2)
		}
		return result

	case ShiftRCL:
		carryIn := uint32(0)
		if c.Flag(FlagCF) {
			carryIn = 1
		}
		wide := (uint64(v) << 1) | uint64(carryIn)
		for i := uint8(1); i < count; i++ {
			topBit := (wide >> width) & 1
			wide = ((wide << 1) | topBit) & ((uint64(1) << (width + 1)) - 1)
		}
		cf = (wide>>width)&1 != 0
		result = uint32(wide) & m
		c.SetFlag(FlagCF, cf)
		if count == 1 {
			c.SetFlag(FlagOF, signBit(result, width) != cf)
		}
		return result

	case ShiftRCR:
		carryIn := uint64(0)
		if c.Flag(FlagCF) {
			carryIn = 1
		}
		wide := uint64(v) | (carryIn << width)
		for i := uint8(0); i < count; i++ {
			bottomBit := wide & 1
			wide = (wide >> 1) | (bottomBit << width)
		}
		cf = (wide>>width)&1 != 0
		result = uint32(wide) & m
		c.SetFlag(FlagCF, cf)
		if count == 1 {
			top2 := (result >> (width - 2)) & 0x3
			c.SetFlag(FlagOF, top2 == 0x1 || top2 == 0x2)
		}
		return result

	case ShiftSHL:
		result = (v << count) & m
		if count <= width {
			cf = (v<<(count-1))&(1<<(width-1)) != 0
		}
		c.logicFlags(result, width)
		c.SetFlag(FlagCF, cf)
		if count == 1 {
			c.SetFlag(FlagOF, signBit(result, width) != cf)
		}
		return result

	case ShiftSHR:
		cf = (v>>(count-1))&1 != 0
		result = (v >> count) & m
		c.logicFlags(result, width)
		c.SetFlag(FlagCF, cf)
		if count == 1 {
			c.SetFlag(FlagOF, signBit(v, width))
		}
		return result

	case ShiftSAR:
		signed := signExtend(v, width)
		cf = (v>>(count-1))&1 != 0
		result = uint32(signed>>count) & m
		c.logicFlags(result, width)
		c.SetFlag(FlagCF, cf)
		if count == 1 {
			c.SetFlag(FlagOF, false)
		}
		return result
	}
	return v
}

// AAA/AAS/DAA/DAS/AAM/AAD: BCD adjustment instructions. All operate on
// AL (and AH for AAM/AAD); a 16-bit widened intermediate is used so
// the adjustment's real carry-out is observable before truncation.

func (c *CPU) AdjustAAA() {
	al := c.ReadReg8(Reg8AL)
	if al&0xF > 9 || c.Flag(FlagAF) {
		wide := uint16(al) + 6
		c.WriteReg8(Reg8AL, uint8(wide)&0xF)
		ah := c.ReadReg8(Reg8AH)
		c.WriteReg8(Reg8AH, ah+1)
		c.SetFlag(FlagAF, true)
		c.SetFlag(FlagCF, true)
	} else {
		c.WriteReg8(Reg8AL, al&0xF)
		c.SetFlag(FlagAF, false)
		c.SetFlag(FlagCF, false)
	}
}

func (c *CPU) AdjustAAS() {
	al := c.ReadReg8(Reg8AL)
	if al&0xF > 9 || c.Flag(FlagAF) {
		wide := int16(al) - 6
		c.WriteReg8(Reg8AL, uint8(wide)&0xF)
		ah := c.ReadReg8(Reg8AH)
		c.WriteReg8(Reg8AH, ah-1)
		c.SetFlag(FlagAF, true)
		c.SetFlag(FlagCF, true)
	} else {
		c.WriteReg8(Reg8AL, al&0xF)
		c.SetFlag(FlagAF, false)
		c.SetFlag(FlagCF, false)
	}
}

func (c *CPU) AdjustDAA() {
	al := c.ReadReg8(Reg8AL)
	oldAL := al
	oldCF := c.Flag(FlagCF)
	newCF := false

	wide := uint16(al)
	if al&0xF > 9 || c.Flag(FlagAF) {
		wide += 6
		c.SetFlag(FlagAF, true)
	} else {
		c.SetFlag(FlagAF, false)
	}
	if wide > 0xFF {
		newCF = true
	}
	if oldAL > 0x99 || oldCF {
		wide += 0x60
		newCF = true
	}
	al = uint8(wide)
	c.SetFlag(FlagCF, newCF)
	c.SetFlag(FlagPF, parityTable8[al])
	c.SetFlag(FlagZF, al == 0)
	c.SetFlag(FlagSF, al&0x80 != 0)
	c.WriteReg8(Reg8AL, al)
}

func (c *CPU) AdjustDAS() {
	al := c.ReadReg8(Reg8AL)
	oldAL := al
	oldCF := c.Flag(FlagCF)
	newCF := false

	wide := int16(al)
	if al&0xF > 9 || c.Flag(FlagAF) {
		wide -= 6
		c.SetFlag(FlagAF, true)
	} else {
		c.SetFlag(FlagAF, false)
	}
	if wide < 0 {
		newCF = true
	}
	if oldAL > 0x99 || oldCF {
		wide -= 0x60
		newCF = true
	}
	al = uint8(wide)
	c.SetFlag(FlagCF, newCF)
	c.SetFlag(FlagPF, parityTable8[al])
	c.SetFlag(FlagZF, al == 0)
	c.SetFlag(FlagSF, al&0x80 != 0)
	c.WriteReg8(Reg8AL, al)
}

// AdjustAAM divides AL by base (normally 10), storing the quotient in
// AH and the remainder in AL. Returns a #DE fault if base is zero.
func (c *CPU) AdjustAAM(base uint8) *Fault {
	if base == 0 {
		return NewFault(VecDE)
	}
	al := c.ReadReg8(Reg8AL)
	c.WriteReg8(Reg8AH, al/base)
	al = al % base
	c.WriteReg8(Reg8AL, al)
	c.SetFlag(FlagPF, parityTable8[al])
	c.SetFlag(FlagZF, al == 0)
	c.SetFlag(FlagSF, al&0x80 != 0)
	return nil
}

// AdjustAAD combines AH and AL into AL before a divide (AL = AH*base + AL; AH = 0).
func (c *CPU) AdjustAAD(base uint8) {
	al := c.ReadReg8(Reg8AL)
	ah := c.ReadReg8(Reg8AH)
	result := ah*base + al
	c.WriteReg8(Reg8AL, result)
	c.WriteReg8(Reg8AH, 0)
	c.SetFlag(FlagPF, parityTable8[result])
	c.SetFlag(FlagZF, result == 0)
	c.SetFlag(FlagSF, result&0x80 != 0)
}
