/*
 * ia32core - Instruction-level execution tests
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
	"io"
	"log/slog"
	"testing"

	"github.com/openpcemu/ia32core/device"
	"github.com/openpcemu/ia32core/memory"
)

// newTestCPU builds a real-mode CPU over a megabyte of flat memory, with
// the stack pointer set well clear of the code area so PUSH/CALL/INT
// scenarios don't need to reason about SP wraparound.
func newTestCPU(t *testing.T) *CPU {
	t.Helper()
	mem := memory.New(1024 * 1024)
	ports := device.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(mem, ports, logger)
	// Rebase CS/SS at 0 so code and stack both sit at low, easy-to-reason-about
	// linear addresses instead of the power-on FFFF0000 reset vector base.
	c.Seg[SegCS].Cache.Base = 0
	c.Seg[SegCS].Selector = 0
	c.Seg[SegSS].Cache.Base = 0
	c.WriteReg16(RegESP, 0x4000)
	c.EIP = 0
	return c
}

func TestStepAddImm16SetsOverflow(t *testing.T) {
	c := newTestCPU(t)
	c.WriteReg16(RegEAX, 0x7FFF)
	// 05 iw: ADD eAX, imm16 (operand size 16 in real mode by default).
	placeCode(c, []byte{0x05, 0x01, 0x00})
	if err := c.Step(); err != nil {
		t.Fatalf("Step faulted: %v", err)
	}
	if c.ReadReg16(RegEAX) != 0x8000 {
		t.Errorf("AX = %#x, want 0x8000", c.ReadReg16(RegEAX))
	}
	if !c.Flag(FlagOF) {
		t.Error("OF not set on signed overflow")
	}
	if c.Flag(FlagCF) {
		t.Error("CF unexpectedly set")
	}
}

func TestStepDivByZeroDeliversRealModeFault(t *testing.T) {
	c := newTestCPU(t)
	c.WriteReg16(RegEAX, 0x0005)
	c.WriteReg8(Reg8CL, 0)
	// Run from 0100:0000 (linear 0x1000) so the code does not sit on the
	// vector 0 IVT entry at linear 0.
	c.Seg[SegCS].Selector = 0x0100
	c.Seg[SegCS].Cache.Base = 0x1000
	// F6 /6 with rm=CL (mod=11 reg=110 rm=001): DIV CL, dividend AX.
	placeCode(c, []byte{0xF6, 0xF1})
	// Point the #DE (vector 0) real-mode IVT entry at 0050:0020.
	c.Mem.WriteUint16(0x0000, 0x0020)
	c.Mem.WriteUint16(0x0002, 0x0050)

	if err := c.Step(); err != nil {
		t.Fatalf("Step returned an undelivered fault: %v", err)
	}
	if c.Seg[SegCS].Selector != 0x0050 || c.EIP != 0x0020 {
		t.Errorf("after #DE delivery CS:EIP = %04x:%04x, want 0050:0020",
			uint16(c.Seg[SegCS].Selector), c.EIP)
	}
	if c.Flag(FlagIF) {
		t.Error("IF must be cleared on interrupt/exception delivery in real mode")
	}
}

func TestStepLoopRunsExactlyThreeTimes(t *testing.T) {
	c := newTestCPU(t)
	c.WriteReg16(RegECX, 3)
	// Loop body: INC AX (40); LOOP back to the INC (E2 FD, rel8 = -3).
	placeCode(c, []byte{0x40, 0xE2, 0xFD})
	for i := 0; i < 6; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("Step %d faulted: %v", i, err)
		}
	}
	if c.ReadReg16(RegEAX) != 3 {
		t.Errorf("AX = %d after the loop, want 3 (one INC per iteration)", c.ReadReg16(RegEAX))
	}
	if c.ReadReg16(RegECX) != 0 {
		t.Errorf("CX = %d after the loop, want 0", c.ReadReg16(RegECX))
	}
}

func TestStepInt3TrapsThroughRealModeIVT(t *testing.T) {
	c := newTestCPU(t)
	placeCode(c, []byte{0xCC})
	c.Mem.WriteUint16(VecBP*4, 0x0100)
	c.Mem.WriteUint16(VecBP*4+2, 0x0060)

	if err := c.Step(); err != nil {
		t.Fatalf("Step returned an undelivered fault: %v", err)
	}
	if c.Seg[SegCS].Selector != 0x0060 || c.EIP != 0x0100 {
		t.Errorf("after INT3 delivery CS:EIP = %04x:%04x, want 0060:0100",
			uint16(c.Seg[SegCS].Selector), c.EIP)
	}
	sp := c.stackPointer()
	savedIP, err := c.ReadWord(SegSS, sp)
	if err != nil {
		t.Fatalf("reading saved IP off the stack faulted: %v", err)
	}
	if savedIP != 1 {
		t.Errorf("saved return IP = %#x, want 1 (the instruction after the 1-byte INT3)", savedIP)
	}
}

func TestStepHaltSetsHaltedState(t *testing.T) {
	c := newTestCPU(t)
	placeCode(c, []byte{0xF4})
	if err := c.Step(); err != nil {
		t.Fatalf("Step faulted: %v", err)
	}
	if !c.Halted {
		t.Error("HLT must set Halted")
	}
}

func TestRunUntilHaltOrFaultStopsAtHlt(t *testing.T) {
	c := newTestCPU(t)
	c.WriteReg16(RegEAX, 0)
	placeCode(c, []byte{0x40, 0x40, 0xF4, 0x40}) // INC AX; INC AX; HLT; INC AX (unreached)
	state, err := c.RunUntilHaltOrFault(100)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if state != Halted {
		t.Errorf("state = %v, want Halted", state)
	}
	if c.ReadReg16(RegEAX) != 2 {
		t.Errorf("AX = %d, want 2 (HLT must stop before the trailing INC)", c.ReadReg16(RegEAX))
	}
}

func TestPagingDisabledIsLinearPassthrough(t *testing.T) {
	c := newTestCPU(t)
	if err := c.WriteByte(SegDS, 0x1234, 0x42); err != nil {
		t.Fatalf("WriteByte faulted with paging disabled: %v", err)
	}
	if got := c.Mem.ReadByte(0x1234); got != 0x42 {
		t.Errorf("physical memory at 0x1234 = %#x, want 0x42 (paging off must be a passthrough)", got)
	}
}

func TestPageFaultNotPresentSetsCR2AndErrorCode(t *testing.T) {
	c := newTestCPU(t)
	c.CR0 |= CR0PE | CR0PG
	c.Seg[SegDS].Cache.Big = true
	c.Seg[SegDS].Cache.Limit = 0xFFFFFFFF

	const pageDirBase = 0x2000
	c.CR3 = pageDirBase
	// PDE 0 not present: every bit clear satisfies that on its own.
	c.Mem.WriteUint32(pageDirBase, 0)

	err := c.WriteByte(SegDS, 0x3000, 0xAA)
	if err == nil {
		t.Fatal("write through a not-present page directory entry must fault")
	}
	if err.Vector != VecPF {
		t.Errorf("vector = %#x, want #PF", err.Vector)
	}
	if !err.HasCR2 || err.CR2 != 0x3000 {
		t.Errorf("CR2 = %#x (HasCR2=%v), want 0x3000/true", err.CR2, err.HasCR2)
	}
	// code bit 0 (present) clear, bit 1 (write) set.
	if err.Code&1 != 0 {
		t.Error("error code P bit should be 0 for a not-present fault")
	}
	if err.Code&2 == 0 {
		t.Error("error code W bit should be 1 for a write fault")
	}
}
