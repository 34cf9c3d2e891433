/*
 * ia32core - CPU register file, flags, and fault model
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

// Package cpu implements the instruction-set core: register and
// segment state, descriptor-cached addressing, paging, the ALU, the
// instruction decoder and dispatch tables, control transfers
// (near/far/gate/task), and the main execution loop. Every
// architectural exception is returned as a *Fault value rather than
// raised as a panic, so callers can unwind cleanly to the instruction
// boundary dispatcher.
package cpu

import (
	"log/slog"

	"github.com/openpcemu/ia32core/descriptor"
	"github.com/openpcemu/ia32core/device"
	"github.com/openpcemu/ia32core/memory"
)

// General-purpose register indices, ModR/M-compatible ordering.
const (
	RegEAX = 0
	RegECX = 1
	RegEDX = 2
	RegEBX = 3
	RegESP = 4
	RegEBP = 5
	RegESI = 6
	RegEDI = 7
)

// Segment register indices.
const (
	SegES = 0
	SegCS = 1
	SegSS = 2
	SegDS = 3
	SegFS = 4
	SegGS = 5
)

// EFLAGS bit positions.
const (
	FlagCF uint32 = 1 << 0
	FlagPF uint32 = 1 << 2
	FlagAF uint32 = 1 << 4
	FlagZF uint32 = 1 << 6
	FlagSF uint32 = 1 << 7
	FlagTF uint32 = 1 << 8
	FlagIF uint32 = 1 << 9
	FlagDF uint32 = 1 << 10
	FlagOF uint32 = 1 << 11
	FlagIOPLShift       = 12
	FlagIOPLMask uint32 = 3 << FlagIOPLShift
	FlagNT       uint32 = 1 << 14
	FlagRF       uint32 = 1 << 16
	FlagVM       uint32 = 1 << 17
	FlagAC       uint32 = 1 << 18

	flagsReserved1 uint32 = 1 << 1 // always reads 1
)

// CR0 bit positions.
const (
	CR0PE uint32 = 1 << 0 // protection enable
	CR0MP uint32 = 1 << 1
	CR0EM uint32 = 1 << 2
	CR0TS uint32 = 1 << 3
	CR0ET uint32 = 1 << 4
	CR0WP uint32 = 1 << 16 // write protect: enforce read-only pages against supervisor writes
	CR0PG uint32 = 1 << 31 // paging enable
)

// Exception vectors used when constructing a Fault.
const (
	VecDE  = 0x00 // divide error
	VecDB  = 0x01 // debug
	VecNMI = 0x02
	VecBP  = 0x03
	VecOF  = 0x04
	VecBR  = 0x05 // BOUND range exceeded
	VecUD  = 0x06 // invalid opcode
	VecNM  = 0x07 // device not available (FPU)
	VecDF  = 0x08 // double fault
	VecTS  = 0x0A // invalid TSS
	VecNP  = 0x0B // segment not present
	VecSS  = 0x0C // stack fault
	VecGP  = 0x0D // general protection
	VecPF  = 0x0E // page fault
)

// Fault is the tagged-result error value every layer of the core
// returns instead of panicking: an architectural exception destined
// for delivery at the next instruction boundary.
type Fault struct {
	Vector    uint8
	HasCode   bool
	Code      uint32
	CR2       uint32 // valid only when Vector == VecPF
	HasCR2    bool
}

func (f *Fault) Error() string {
	return "cpu fault vector " + hexByte(f.Vector)
}

func hexByte(b uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

// NewFault builds a Fault carrying no error code (e.g. #UD, #BR, #DE).
func NewFault(vector uint8) *Fault {
	return &Fault{Vector: vector}
}

// NewFaultCode builds a Fault carrying a 32-bit error code, as pushed
// onto the stack for #TS/#NP/#SS/#GP/#PF/#DF.
func NewFaultCode(vector uint8, code uint32) *Fault {
	return &Fault{Vector: vector, HasCode: true, Code: code}
}

// NewPageFault builds a #PF carrying the faulting linear address in CR2.
func NewPageFault(code uint32, cr2 uint32) *Fault {
	return &Fault{Vector: VecPF, HasCode: true, Code: code, CR2: cr2, HasCR2: true}
}

// Segment is the visible selector plus the descriptor cache loaded
// from it; protected-mode checks consult the cache, not the GDT/LDT,
// once a selector has been loaded (matching real silicon's hidden
// descriptor cache).
type Segment struct {
	Selector descriptor.Selector
	Cache    descriptor.Descriptor
	Valid    bool // false once a null selector is loaded (or the register is cleared) in protected mode
}

// CPU is one processor core: registers, segment/descriptor state,
// control/debug registers, and the collaborators it talks to. Multiple
// CPUs can coexist since nothing here is a package-level global.
type CPU struct {
	Regs [8]uint32 // EAX..EDI, see Reg* constants
	EIP  uint32
	EFlags uint32

	Seg [6]Segment // ES,CS,SS,DS,FS,GS

	GDTRBase  uint32
	GDTRLimit uint16
	IDTRBase  uint32
	IDTRLimit uint16
	LDTR      Segment // selector + cache for the LDT itself
	TR        Segment // selector + cache for the current TSS

	CR0 uint32
	CR2 uint32
	CR3 uint32
	CR4 uint32

	DR [8]uint32

	Halted bool

	Mem    *memory.Memory
	Ports  *device.Registry
	PIC    device.PIC
	Logger *slog.Logger

	pendingTrap bool // single-step (#DB) queued for after this instruction
}

// New creates a CPU wired to the given memory and port-I/O registry.
// Reset is applied immediately, leaving the CPU in real mode with
// CS:EIP = F000:00000000.
func New(mem *memory.Memory, ports *device.Registry, logger *slog.Logger) *CPU {
	c := &CPU{Mem: mem, Ports: ports, Logger: logger}
	c.Reset()
	return c
}

// Reset restores power-on state: real mode, CS selector F000 with its
// cached base at FFFF0000 and EIP 0, flat unrestricted data/stack
// segments, paging and protection disabled.
func (c *CPU) Reset() {
	c.Regs = [8]uint32{}
	c.EIP = 0x0000
	c.EFlags = flagsReserved1
	c.CR0 = CR0ET
	c.CR2 = 0
	c.CR3 = 0
	c.CR4 = 0
	c.Halted = false
	c.pendingTrap = false

	real := descriptor.Descriptor{
		Kind: descriptor.KindData, Present: true, Writable: true,
		Base: 0, Limit: 0xFFFF,
	}
	for i := range c.Seg {
		c.Seg[i] = Segment{Selector: 0, Cache: real, Valid: true}
	}
	// CS keeps the power-on cached base FFFF0000 rather than selector<<4,
	// so the first fetch after reset is from linear FFFF0000.
	c.Seg[SegCS].Cache.Base = 0xFFFF0000
	c.Seg[SegCS].Selector = 0xF000

	c.GDTRBase, c.GDTRLimit = 0, 0xFFFF
	c.IDTRBase, c.IDTRLimit = 0, 0x3FF
	c.LDTR = Segment{}
	c.TR = Segment{}
}

// ProtectedMode reports whether CR0.PE is set.
func (c *CPU) ProtectedMode() bool { return c.CR0&CR0PE != 0 }

// PagingEnabled reports whether CR0.PG is set (meaningful only in
// protected mode).
func (c *CPU) PagingEnabled() bool { return c.CR0&CR0PG != 0 }

// V86Mode reports whether EFLAGS.VM is set; only possible in
// protected mode.
func (c *CPU) V86Mode() bool { return c.EFlags&FlagVM != 0 }

// CPL returns the current privilege level: the RPL of CS in protected
// mode, or 0 (and meaningless, since there is no privilege check) in
// real mode.
func (c *CPU) CPL() uint8 {
	if !c.ProtectedMode() {
		return 0
	}
	return c.Seg[SegCS].Selector.RPL()
}

// IOPL returns the I/O privilege level from EFLAGS.
func (c *CPU) IOPL() uint8 {
	return uint8((c.EFlags & FlagIOPLMask) >> FlagIOPLShift)
}

// SetFlag sets or clears the bits in mask within EFLAGS.
func (c *CPU) SetFlag(mask uint32, set bool) {
	if set {
		c.EFlags |= mask
	} else {
		c.EFlags &^= mask
	}
}

// Flag reports whether every bit in mask is set in EFLAGS.
func (c *CPU) Flag(mask uint32) bool {
	return c.EFlags&mask == mask
}

// reg8 classification for 8-bit register operand decoding (AL..BH in
// the low nibble order used by ModR/M reg/rm fields).
const (
	Reg8AL = 0
	Reg8CL = 1
	Reg8DL = 2
	Reg8BL = 3
	Reg8AH = 4
	Reg8CH = 5
	Reg8DH = 6
	Reg8BH = 7
)

// ReadReg8 reads one of the eight legacy 8-bit register views.
func (c *CPU) ReadReg8(r uint8) uint8 {
	full := c.Regs[r&3]
	if r&4 != 0 {
		return uint8(full >> 8)
	}
	return uint8(full)
}

// WriteReg8 writes one of the eight legacy 8-bit register views.
func (c *CPU) WriteReg8(r uint8, v uint8) {
	idx := r & 3
	if r&4 != 0 {
		c.Regs[idx] = (c.Regs[idx] &^ 0xFF00) | uint32(v)<<8
	} else {
		c.Regs[idx] = (c.Regs[idx] &^ 0xFF) | uint32(v)
	}
}

// ReadReg16 reads the low 16 bits of a general register.
func (c *CPU) ReadReg16(r uint8) uint16 { return uint16(c.Regs[r&7]) }

// WriteReg16 writes the low 16 bits of a general register, leaving
// the upper 16 bits unmodified (matching real silicon).
func (c *CPU) WriteReg16(r uint8, v uint16) {
	idx := r & 7
	c.Regs[idx] = (c.Regs[idx] &^ 0xFFFF) | uint32(v)
}

// ReadReg32 reads a full 32-bit general register.
func (c *CPU) ReadReg32(r uint8) uint32 { return c.Regs[r&7] }

// WriteReg32 writes a full 32-bit general register.
func (c *CPU) WriteReg32(r uint8, v uint32) { c.Regs[r&7] = v }
