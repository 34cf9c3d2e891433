/*
 * ia32core - ModR/M and SIB decode tests
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

// placeCode writes the instruction stream at CS:0, using the CS base
// the CPU currently holds (newTestCPU rebases CS to linear 0).
func placeCode(c *CPU, code []byte) {
	for i, b := range code {
		c.Mem.WriteByte(c.Seg[SegCS].Cache.Base+uint32(i), b)
	}
}

func TestDecodeModRMRegisterForm(t *testing.T) {
	c := newTestCPU(t)
	// mod=11 reg=000(AX) rm=011(BX) -> register-direct, no memory operand.
	placeCode(c, []byte{0xC3 /* mod3 reg0 rm3 */})
	m, err := c.decodeModRM(false, SegDS, false)
	if err != nil {
		t.Fatalf("decodeModRM faulted: %v", err)
	}
	if !m.IsReg || m.Mod != 3 || m.Reg != 0 || m.RM != 3 {
		t.Errorf("decoded %+v, want IsReg mod=3 reg=0 rm=3", m)
	}
}

func TestDecodeModRM16BitBXSIDisp8(t *testing.T) {
	c := newTestCPU(t)
	c.WriteReg16(RegEBX, 0x0100)
	c.WriteReg16(RegESI, 0x0010)
	// mod=01 reg=000 rm=000 ([BX+SI]+disp8), disp8 = -0x10.
	placeCode(c, []byte{0x40, 0xF0})
	m, err := c.decodeModRM(false, SegDS, false)
	if err != nil {
		t.Fatalf("decodeModRM faulted: %v", err)
	}
	if m.IsReg {
		t.Fatal("expected a memory operand, got register form")
	}
	if m.Seg != SegDS {
		t.Errorf("default segment = %d, want DS", m.Seg)
	}
	if m.Offset != 0x0100 {
		t.Errorf("offset = %#x, want 0x100 (BX+SI-0x10)", m.Offset)
	}
}

func TestDecodeModRM16BitBPDefaultsToSS(t *testing.T) {
	c := newTestCPU(t)
	c.WriteReg16(RegEBP, 0x2000)
	// mod=00 reg=000 rm=110 ([BP]) with mod==0 means disp16-only, NOT [BP];
	// use mod=01 rm=110 instead, which is [BP]+disp8.
	placeCode(c, []byte{0x46, 0x05})
	m, err := c.decodeModRM(false, SegDS, false)
	if err != nil {
		t.Fatalf("decodeModRM faulted: %v", err)
	}
	if m.Seg != SegSS {
		t.Errorf("[BP]+disp8 must default to SS, got seg %d", m.Seg)
	}
	if m.Offset != 0x2005 {
		t.Errorf("offset = %#x, want 0x2005", m.Offset)
	}
}

func TestDecodeModRM16BitDisp16Only(t *testing.T) {
	c := newTestCPU(t)
	// mod=00 reg=000 rm=110, followed by a disp16 of 0x1234.
	placeCode(c, []byte{0x06, 0x34, 0x12})
	m, err := c.decodeModRM(false, SegDS, false)
	if err != nil {
		t.Fatalf("decodeModRM faulted: %v", err)
	}
	if m.Seg != SegDS {
		t.Errorf("disp16-only form defaults to DS, got %d", m.Seg)
	}
	if m.Offset != 0x1234 {
		t.Errorf("offset = %#x, want 0x1234", m.Offset)
	}
}

func TestDecodeModRMSegmentOverridePrefix(t *testing.T) {
	c := newTestCPU(t)
	placeCode(c, []byte{0x06, 0x00, 0x00})
	m, err := c.decodeModRM(false, SegES, true)
	if err != nil {
		t.Fatalf("decodeModRM faulted: %v", err)
	}
	if m.Seg != SegES {
		t.Errorf("segment override ignored: got seg %d, want ES", m.Seg)
	}
}

func TestDecodeModRM32BitSIBDisp32Base(t *testing.T) {
	c := newTestCPU(t)
	c.WriteReg32(RegEAX, 0x10)
	// mod=00 reg=000 rm=100(SIB follows); SIB scale=0 index=100(none) base=101 ->
	// base field 5 with mod==0 means disp32 with no base register at all.
	placeCode(c, []byte{0x04, 0x25, 0x78, 0x56, 0x34, 0x12})
	m, err := c.decodeModRM(true, SegDS, false)
	if err != nil {
		t.Fatalf("decodeModRM faulted: %v", err)
	}
	if m.Offset != 0x12345678 {
		t.Errorf("offset = %#x, want 0x12345678", m.Offset)
	}
}

func TestDecodeModRM32BitSIBWithBaseAndIndex(t *testing.T) {
	c := newTestCPU(t)
	c.WriteReg32(RegEAX, 0x1000) // base
	c.WriteReg32(RegEBX, 0x0004) // index
	// mod=01 reg=000 rm=100(SIB); SIB scale=2(x4) index=011(EBX) base=000(EAX); disp8=0x08.
	placeCode(c, []byte{0x44, 0x98, 0x08})
	m, err := c.decodeModRM(true, SegDS, false)
	if err != nil {
		t.Fatalf("decodeModRM faulted: %v", err)
	}
	want := uint32(0x1000) + uint32(0x0004)<<2 + 0x08
	if m.Offset != want {
		t.Errorf("offset = %#x, want %#x", m.Offset, want)
	}
}

func TestDecodeModRM32BitEBPRM5DefaultsToSS(t *testing.T) {
	c := newTestCPU(t)
	// mod=01 reg=000 rm=101: [EBP]+disp8. mod==0/rm==5 would instead mean
	// disp32-only with no base register at all.
	c.WriteReg32(RegEBP, 0x3000)
	placeCode(c, []byte{0x45, 0x04})
	m, err := c.decodeModRM(true, SegDS, false)
	if err != nil {
		t.Fatalf("decodeModRM faulted: %v", err)
	}
	if m.Seg != SegSS {
		t.Errorf("[EBP]+disp8 must default to SS, got seg %d", m.Seg)
	}
	if m.Offset != 0x3004 {
		t.Errorf("offset = %#x, want 0x3004", m.Offset)
	}
}

func TestRMByteSetRMByteRoundTripThroughMemory(t *testing.T) {
	c := newTestCPU(t)
	m := ModRM{Seg: SegDS, Offset: 0x500}
	if err := c.SetRMByte(m, 0xAB); err != nil {
		t.Fatalf("SetRMByte faulted: %v", err)
	}
	v, err := c.RMByte(m)
	if err != nil {
		t.Fatalf("RMByte faulted: %v", err)
	}
	if v != 0xAB {
		t.Errorf("round trip = %#x, want 0xab", v)
	}
}

func TestRMWordRegisterForm(t *testing.T) {
	c := newTestCPU(t)
	c.WriteReg16(RegECX, 0x9999)
	m := ModRM{IsReg: true, RM: RegECX}
	v, err := c.RMWord(m)
	if err != nil {
		t.Fatalf("RMWord faulted: %v", err)
	}
	if v != 0x9999 {
		t.Errorf("RMWord(register CX) = %#x, want 0x9999", v)
	}
}
