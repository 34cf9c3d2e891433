/*
 * ia32core - GDT/LDT/IDT descriptor and selector decoding
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

// Package descriptor decodes the 8-byte GDT/LDT/IDT entries used by
// protected-mode addressing: segment, code, LDT, TSS, call-gate,
// task-gate, interrupt-gate and trap-gate variants, plus 16-bit selector
// field extraction.
package descriptor

// Kind classifies a decoded descriptor.
type Kind uint8

const (
	KindNull Kind = iota
	KindData
	KindCode
	KindLDT
	KindTSSAvail16
	KindTSSBusy16
	KindTSSAvail32
	KindTSSBusy32
	KindCallGate16
	KindCallGate32
	KindTaskGate
	KindInterruptGate16
	KindInterruptGate32
	KindTrapGate16
	KindTrapGate32
	KindReserved
)

// System-descriptor type-nibble values (Intel encoding).
const (
	sysLDT         = 0x2
	sysTSS16Avail  = 0x1
	sysTSS16Busy   = 0x3
	sysCallGate16  = 0x4
	sysTaskGate    = 0x5
	sysIntGate16   = 0x6
	sysTrapGate16  = 0x7
	sysTSS32Avail  = 0x9
	sysTSS32Busy   = 0xB
	sysCallGate32  = 0xC
	sysIntGate32   = 0xE
	sysTrapGate32  = 0xF
)

// Descriptor is the decoded form of any GDT/LDT/IDT entry. Not every
// field applies to every Kind; see the accessor helpers below.
type Descriptor struct {
	Kind Kind

	// Segment descriptor fields (KindData, KindCode).
	Base        uint32
	Limit       uint32 // raw 20-bit limit, pre-granularity
	Granularity bool   // G bit: limit is in 4KiB pages when set
	Big         bool   // D/B bit: 32-bit default operand/stack size
	Present     bool
	DPL         uint8
	Accessed    bool

	// Data-segment-only.
	Writable   bool
	ExpandDown bool

	// Code-segment-only.
	Conforming bool
	Readable   bool

	// System-descriptor fields (TSS/LDT): Base/Limit/Present/DPL above
	// are reused; Busy flags a TSS descriptor in use.
	Busy bool

	// Gate fields (call/task/interrupt/trap gates).
	Selector   uint16
	Offset     uint32
	ParamCount uint8
}

// IsNull reports a null (all-zero) descriptor.
func (d Descriptor) IsNull() bool { return d.Kind == KindNull }

// IsSystem reports whether this is a system-segment descriptor (LDT or
// TSS), as opposed to a code/data segment or a gate.
func (d Descriptor) IsSystem() bool {
	switch d.Kind {
	case KindLDT, KindTSSAvail16, KindTSSBusy16, KindTSSAvail32, KindTSSBusy32:
		return true
	default:
		return false
	}
}

// IsGate reports whether this is a call/task/interrupt/trap gate.
func (d Descriptor) IsGate() bool {
	switch d.Kind {
	case KindCallGate16, KindCallGate32, KindTaskGate, KindInterruptGate16,
		KindInterruptGate32, KindTrapGate16, KindTrapGate32:
		return true
	default:
		return false
	}
}

// IsTSS reports a TSS descriptor of either width, busy or available.
func (d Descriptor) IsTSS() bool {
	switch d.Kind {
	case KindTSSAvail16, KindTSSBusy16, KindTSSAvail32, KindTSSBusy32:
		return true
	default:
		return false
	}
}

// Is32BitTSS reports whether a TSS descriptor uses the 32-bit TSS
// layout; meaningless for other kinds.
func (d Descriptor) Is32BitTSS() bool {
	return d.Kind == KindTSSAvail32 || d.Kind == KindTSSBusy32
}

// IsCallGate32 reports a 32-bit call gate (push width is 32-bit);
// IsCallGate16 the 16-bit equivalent.
func (d Descriptor) IsCallGate32() bool { return d.Kind == KindCallGate32 }
func (d Descriptor) IsCallGate16() bool { return d.Kind == KindCallGate16 }
func (d Descriptor) IsCallGate() bool   { return d.IsCallGate32() || d.IsCallGate16() }

// IsInterruptOrTrapGate reports any of the four IDT gate kinds.
func (d Descriptor) IsInterruptOrTrapGate() bool {
	switch d.Kind {
	case KindInterruptGate16, KindInterruptGate32, KindTrapGate16, KindTrapGate32:
		return true
	default:
		return false
	}
}

// IsInterruptGate reports whether delivery through this gate clears IF.
func (d Descriptor) IsInterruptGate() bool {
	return d.Kind == KindInterruptGate16 || d.Kind == KindInterruptGate32
}

// Is32BitGate reports whether a call/interrupt/trap gate pushes 32-bit
// values (as opposed to 16-bit).
func (d Descriptor) Is32BitGate() bool {
	switch d.Kind {
	case KindCallGate32, KindInterruptGate32, KindTrapGate32:
		return true
	default:
		return false
	}
}

// EffectiveLimit returns the byte limit, expanding page granularity.
func (d Descriptor) EffectiveLimit() uint32 {
	if !d.Granularity {
		return d.Limit
	}
	return (d.Limit << 12) | 0xFFF
}

// Decode parses 8 raw descriptor-table bytes (little-endian, as stored
// in memory) into a Descriptor.
func Decode(raw [8]byte) Descriptor {
	access := raw[5]
	present := access&0x80 != 0
	dpl := (access >> 5) & 3
	isCodeData := access&0x10 != 0
	typeNibble := access & 0xF

	if !isCodeData {
		return decodeSystem(raw, typeNibble, present, dpl)
	}
	return decodeCodeData(raw, typeNibble, present, dpl)
}

func decodeCodeData(raw [8]byte, typeNibble uint8, present bool, dpl uint8) Descriptor {
	limit := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[6]&0xF)<<16
	base := uint32(raw[2]) | uint32(raw[3])<<8 | uint32(raw[4])<<16 | uint32(raw[7])<<24
	granularity := raw[6]&0x80 != 0
	big := raw[6]&0x40 != 0
	accessed := typeNibble&0x1 != 0

	d := Descriptor{
		Base: base, Limit: limit, Granularity: granularity, Big: big,
		Present: present, DPL: dpl, Accessed: accessed,
	}
	if typeNibble&0x8 != 0 {
		d.Kind = KindCode
		d.Conforming = typeNibble&0x4 != 0
		d.Readable = typeNibble&0x2 != 0
	} else {
		d.Kind = KindData
		d.ExpandDown = typeNibble&0x4 != 0
		d.Writable = typeNibble&0x2 != 0
	}
	return d
}

func decodeSystem(raw [8]byte, typeNibble uint8, present bool, dpl uint8) Descriptor {
	switch typeNibble {
	case sysLDT, sysTSS16Avail, sysTSS16Busy, sysTSS32Avail, sysTSS32Busy:
		limit := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[6]&0xF)<<16
		base := uint32(raw[2]) | uint32(raw[3])<<8 | uint32(raw[4])<<16 | uint32(raw[7])<<24
		granularity := raw[6]&0x80 != 0
		d := Descriptor{Base: base, Limit: limit, Granularity: granularity, Present: present, DPL: dpl}
		switch typeNibble {
		case sysLDT:
			d.Kind = KindLDT
		case sysTSS16Avail:
			d.Kind = KindTSSAvail16
		case sysTSS16Busy:
			d.Kind = KindTSSBusy16
			d.Busy = true
		case sysTSS32Avail:
			d.Kind = KindTSSAvail32
		case sysTSS32Busy:
			d.Kind = KindTSSBusy32
			d.Busy = true
		}
		return d

	case sysCallGate16, sysCallGate32, sysTaskGate, sysIntGate16, sysIntGate32, sysTrapGate16, sysTrapGate32:
		offsetLo := uint32(raw[0]) | uint32(raw[1])<<8
		selector := uint16(raw[2]) | uint16(raw[3])<<8
		paramCount := raw[4] & 0x1F
		offsetHi := uint32(raw[6]) | uint32(raw[7])<<8
		d := Descriptor{
			Present: present, DPL: dpl, Selector: selector, ParamCount: paramCount,
		}
		switch typeNibble {
		case sysCallGate16:
			d.Kind = KindCallGate16
			d.Offset = offsetLo
		case sysCallGate32:
			d.Kind = KindCallGate32
			d.Offset = offsetLo | offsetHi<<16
		case sysTaskGate:
			d.Kind = KindTaskGate
		case sysIntGate16:
			d.Kind = KindInterruptGate16
			d.Offset = offsetLo
		case sysIntGate32:
			d.Kind = KindInterruptGate32
			d.Offset = offsetLo | offsetHi<<16
		case sysTrapGate16:
			d.Kind = KindTrapGate16
			d.Offset = offsetLo
		case sysTrapGate32:
			d.Kind = KindTrapGate32
			d.Offset = offsetLo | offsetHi<<16
		}
		return d

	default:
		return Descriptor{Kind: KindReserved, Present: present, DPL: dpl}
	}
}

// Selector decomposes a 16-bit segment selector.
type Selector uint16

// Index is the 13-bit table index.
func (s Selector) Index() uint16 { return uint16(s) >> 3 }

// TI is the table-indicator bit: true selects the LDT, false the GDT.
func (s Selector) TI() bool { return s&4 != 0 }

// RPL is the requested privilege level (low 2 bits).
func (s Selector) RPL() uint8 { return uint8(s) & 3 }

// IsNull reports a null selector (index 0 in the GDT).
func (s Selector) IsNull() bool { return s.Index() == 0 && !s.TI() }

// TableOffset returns the byte offset of this selector's entry within
// whichever table TI() selects.
func (s Selector) TableOffset() uint32 { return uint32(s.Index()) * 8 }
