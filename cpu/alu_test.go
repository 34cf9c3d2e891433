/*
 * ia32core - ALU, shift/rotate, and BCD adjust tests
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

import "testing"

func TestAddSubRoundTrip(t *testing.T) {
	c := &CPU{}
	sum := c.Add(0x1234, 0x0010, 16)
	back := c.Sub(sum, 0x0010, 16)
	if back != 0x1234 {
		t.Errorf("Sub(Add(a,b),b) = %#x, want %#x", back, 0x1234)
	}
}

func TestAddOverflow(t *testing.T) {
	c := &CPU{}
	// 0x7FFF + 1 overflows a signed 16-bit add.
	c.Add(0x7FFF, 1, 16)
	if !c.Flag(FlagOF) {
		t.Error("OF not set on signed overflow")
	}
	if c.Flag(FlagCF) {
		t.Error("CF unexpectedly set")
	}
}

func TestAddCarry(t *testing.T) {
	c := &CPU{}
	c.Add(0xFFFF, 1, 16)
	if !c.Flag(FlagCF) {
		t.Error("CF not set on unsigned carry out")
	}
	if !c.Flag(FlagZF) {
		t.Error("ZF not set when result wraps to zero")
	}
}

func TestCmpSelfIsZeroNoCarryNoOverflow(t *testing.T) {
	c := &CPU{}
	c.Sub(0x55, 0x55, 8)
	if !c.Flag(FlagZF) || c.Flag(FlagCF) || c.Flag(FlagOF) || c.Flag(FlagSF) {
		t.Errorf("CMP(a,a) flags wrong: ZF=%v CF=%v OF=%v SF=%v",
			c.Flag(FlagZF), c.Flag(FlagCF), c.Flag(FlagOF), c.Flag(FlagSF))
	}
}

func TestParityLaw(t *testing.T) {
	c := &CPU{}
	c.Add(0x03, 0, 8) // 0x03 = 0b11, even parity
	if !c.Flag(FlagPF) {
		t.Error("PF should be set for a result with even parity")
	}
	c.Add(0x01, 0, 8) // 0x01, odd parity
	if c.Flag(FlagPF) {
		t.Error("PF should be clear for a result with odd parity")
	}
}

func TestIncDecPreserveCF(t *testing.T) {
	c := &CPU{}
	c.SetFlag(FlagCF, true)
	c.Inc(1, 8)
	if !c.Flag(FlagCF) {
		t.Error("INC must not clear CF")
	}
	c.SetFlag(FlagCF, false)
	c.Dec(1, 8)
	if c.Flag(FlagCF) {
		t.Error("DEC must not set CF")
	}
}

func TestNegInvolutionExceptMinSigned(t *testing.T) {
	c := &CPU{}
	v := uint32(0x12)
	if got := c.Neg(c.Neg(v, 8), 8); got != v {
		t.Errorf("Neg(Neg(v)) = %#x, want %#x", got, v)
	}
	// 0x80 (INT8_MIN) negates to itself, with CF still set.
	got := c.Neg(0x80, 8)
	if got != 0x80 {
		t.Errorf("Neg(0x80) = %#x, want 0x80 (no representable positive)", got)
	}
	if !c.Flag(FlagCF) {
		t.Error("Neg of a nonzero operand must set CF")
	}
}

func TestNotInvolution(t *testing.T) {
	c := &CPU{}
	v := uint32(0x3C)
	notOnce := c.Xor(v, mask(8), 8)
	notTwice := c.Xor(notOnce, mask(8), 8)
	if notTwice != v {
		t.Errorf("double complement = %#x, want %#x", notTwice, v)
	}
}

func TestDivByZero(t *testing.T) {
	c := &CPU{}
	if _, _, ok := c.Div(0, 10, 0, 8); ok {
		t.Error("Div by zero must report ok=false")
	}
}

func TestDivBasic(t *testing.T) {
	c := &CPU{}
	quot, rem, ok := c.Div(0, 17, 5, 8)
	if !ok || quot != 3 || rem != 2 {
		t.Errorf("Div(17,5) = quot=%d rem=%d ok=%v, want 3 2 true", quot, rem, ok)
	}
}

func TestIdivSigned(t *testing.T) {
	c := &CPU{}
	// -17 / 5 = -3 remainder -2, all within an 8-bit half.
	quot, rem, ok := c.Idiv(0xFFFFFFFF, 0xEF, 5, 8)
	if !ok {
		t.Fatal("Idiv(-17,5) unexpectedly overflowed")
	}
	if int8(quot) != -3 || int8(rem) != -2 {
		t.Errorf("Idiv(-17,5) = quot=%d rem=%d, want -3 -2", int8(quot), int8(rem))
	}
}

func TestShiftRotateCarryOut(t *testing.T) {
	c := &CPU{}
	r := c.Shift(ShiftROL, 0x81, 1, 8)
	if r != 0x03 {
		t.Errorf("ROL(0x81,1) = %#x, want 0x03", r)
	}
	if !c.Flag(FlagCF) {
		t.Error("CF should carry the bit rotated out of the top")
	}
}

func TestShiftCountZeroIsNoop(t *testing.T) {
	c := &CPU{}
	c.SetFlag(FlagCF, true)
	r := c.Shift(ShiftSHL, 0x5A, 0, 8)
	if r != 0x5A {
		t.Errorf("shift by 0 changed the operand: %#x", r)
	}
	if !c.Flag(FlagCF) {
		t.Error("shift by 0 must leave flags untouched")
	}
}

func TestAAMDivideByZero(t *testing.T) {
	c := &CPU{}
	if err := c.AdjustAAM(0); err == nil || err.Vector != VecDE {
		t.Fatalf("AdjustAAM(0) = %v, want #DE", err)
	}
}

func TestAAMRoundTrip(t *testing.T) {
	c := &CPU{}
	c.WriteReg8(Reg8AL, 93)
	if err := c.AdjustAAM(10); err != nil {
		t.Fatalf("AdjustAAM(10) faulted: %v", err)
	}
	if c.ReadReg8(Reg8AH) != 9 || c.ReadReg8(Reg8AL) != 3 {
		t.Errorf("AAM(93) = AH=%d AL=%d, want 9 3", c.ReadReg8(Reg8AH), c.ReadReg8(Reg8AL))
	}
	c.AdjustAAD(10)
	if c.ReadReg8(Reg8AL) != 93 || c.ReadReg8(Reg8AH) != 0 {
		t.Errorf("AAD after AAM(93) = AL=%d AH=%d, want 93 0", c.ReadReg8(Reg8AL), c.ReadReg8(Reg8AH))
	}
}

func TestDAAWrapsAndSetsCarry(t *testing.T) {
	c := &CPU{}
	// 0x9A decimal-adjusted must wrap to 0x00 with CF/AF both set.
	c.WriteReg8(Reg8AL, 0x9A)
	c.AdjustDAA()
	if c.ReadReg8(Reg8AL) != 0x00 {
		t.Errorf("DAA(0x9A) = %#x, want 0x00", c.ReadReg8(Reg8AL))
	}
	if !c.Flag(FlagCF) || !c.Flag(FlagAF) {
		t.Error("DAA(0x9A) must set both CF and AF")
	}
}
