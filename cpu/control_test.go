/*
 * ia32core - Control-transfer tests: near/far call/return, privilege checks
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
	"testing"

	"github.com/openpcemu/ia32core/descriptor"
)

func TestNearCallRetRoundTrip(t *testing.T) {
	c := newTestCPU(t)
	// CALL rel16 (E8 02 00) at EIP=0 is 3 bytes, so EIP=3 right after the
	// fetch; disp=2 lands at EIP=5, where RET (C3) pops straight back to
	// the return address (3) pushed by CALL.
	placeCode(c, []byte{0xE8, 0x02, 0x00, 0x90, 0x90, 0xC3})
	if err := c.Step(); err != nil { // CALL
		t.Fatalf("CALL faulted: %v", err)
	}
	if c.EIP != 5 {
		t.Fatalf("EIP after CALL = %#x, want 5", c.EIP)
	}
	if err := c.Step(); err != nil { // RET
		t.Fatalf("RET faulted: %v", err)
	}
	if c.EIP != 3 {
		t.Errorf("EIP after RET = %#x, want 3 (the instruction after CALL)", c.EIP)
	}
}

func TestFarCallFarReturnRealMode(t *testing.T) {
	c := newTestCPU(t)
	savedCS := c.Seg[SegCS].Selector
	savedEIP := c.EIP

	if err := c.FarCall(0x0200, 0x0010, false); err != nil {
		t.Fatalf("FarCall faulted: %v", err)
	}
	if c.Seg[SegCS].Selector != 0x0200 || c.EIP != 0x0010 {
		t.Fatalf("after FarCall CS:EIP = %04x:%04x, want 0200:0010",
			uint16(c.Seg[SegCS].Selector), c.EIP)
	}

	if err := c.FarReturn(false, 0); err != nil {
		t.Fatalf("FarReturn faulted: %v", err)
	}
	if c.Seg[SegCS].Selector != savedCS || c.EIP != savedEIP {
		t.Errorf("after FarReturn CS:EIP = %04x:%08x, want %04x:%08x",
			uint16(c.Seg[SegCS].Selector), c.EIP, uint16(savedCS), savedEIP)
	}
}

// gdtCodeDescriptor builds one 8-byte code-segment GDT entry, matching
// the raw field layout descriptor.Decode expects.
func gdtCodeDescriptor(base, limit uint32, dpl uint8, conforming bool) [8]byte {
	var raw [8]byte
	raw[0] = byte(limit)
	raw[1] = byte(limit >> 8)
	raw[2] = byte(base)
	raw[3] = byte(base >> 8)
	raw[4] = byte(base >> 16)
	access := uint8(0x80) | (dpl << 5) | 0x10 | 0x8 | 0x2 // present, S=1, code, readable
	if conforming {
		access |= 0x4
	}
	raw[5] = access
	raw[6] = 0x40 // Big=1 (32-bit default operand size), no granularity
	raw[7] = byte(base >> 24)
	return raw
}

func writeGDTEntry(c *CPU, index int, entry [8]byte) {
	for i, b := range entry {
		c.Mem.WriteByte(c.GDTRBase+uint32(index*8+i), b)
	}
}

func newProtectedTestCPU(t *testing.T, cpl uint8) *CPU {
	t.Helper()
	c := newTestCPU(t)
	c.GDTRBase = 0x8000
	c.GDTRLimit = 0xFFF
	// Selector 0x08: ring-0 non-conforming code, base 0x1000.
	writeGDTEntry(c, 1, gdtCodeDescriptor(0x1000, 0xFFFF, 0, false))
	// Selector 0x18: ring-3 non-conforming code, base 0x2000.
	writeGDTEntry(c, 3, gdtCodeDescriptor(0x2000, 0xFFFF, 3, false))
	// Selector 0x20: ring-0 conforming code, base 0x3000.
	writeGDTEntry(c, 4, gdtCodeDescriptor(0x3000, 0xFFFF, 0, true))

	c.CR0 |= CR0PE
	c.Seg[SegCS] = Segment{
		Selector: descriptor.Selector(0x08 | uint16(cpl)),
		Cache:    descriptor.Decode(gdtCodeDescriptor(0x1000, 0xFFFF, cpl, false)),
		Valid:    true,
	}
	return c
}

func TestFarJumpProtectedModeSameRingSucceeds(t *testing.T) {
	c := newProtectedTestCPU(t, 0)
	if err := c.FarJump(0x08, 0x0040); err != nil {
		t.Fatalf("same-ring far jump faulted: %v", err)
	}
	if c.EIP != 0x0040 {
		t.Errorf("EIP = %#x, want 0x40", c.EIP)
	}
	if c.CPL() != 0 {
		t.Errorf("CPL = %d, want 0", c.CPL())
	}
}

func TestFarJumpNonConformingRequiresMatchingDPL(t *testing.T) {
	c := newProtectedTestCPU(t, 0)
	// Selector 0x18 is a ring-3 non-conforming segment; jumping from CPL 0
	// with RPL 0 requires DPL==CPL, which fails here (DPL=3 != CPL=0).
	if err := c.FarJump(0x18, 0); err == nil {
		t.Fatal("expected #GP jumping to a non-conforming segment of mismatched DPL")
	} else if err.Vector != VecGP {
		t.Errorf("vector = %#x, want #GP", err.Vector)
	}
}

func TestFarJumpConformingAllowsLowerOrEqualDPL(t *testing.T) {
	c := newProtectedTestCPU(t, 3)
	// Selector 0x20 is a ring-0 conforming segment: conforming code may be
	// entered from any numerically-higher (less privileged) CPL, without
	// a privilege change -- CPL stays 3.
	if err := c.FarJump(0x20, 0x0008); err != nil {
		t.Fatalf("conforming far jump faulted: %v", err)
	}
	if c.EIP != 0x0008 {
		t.Errorf("EIP = %#x, want 8", c.EIP)
	}
	if c.CPL() != 3 {
		t.Errorf("CPL after entering a conforming segment = %d, want unchanged 3", c.CPL())
	}
}
