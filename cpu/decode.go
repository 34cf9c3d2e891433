/*
 * ia32core - ModR/M and SIB operand decoding
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

// ModRM holds a decoded ModR/M (+ optional SIB + displacement) byte
// sequence. Reg is always a plain register index (the reg field, or
// the /digit extension-opcode field for group instructions). When
// IsReg is true, RM is also a plain register index and no memory
// operand exists; otherwise EffAddr is a segment:offset pair ready for
// the memory-access pipeline.
type ModRM struct {
	Mod     uint8
	Reg     uint8
	RM      uint8
	IsReg   bool
	Seg     int    // segment to use for the memory operand (may be overridden by a prefix)
	Offset  uint32 // effective address offset within Seg, valid when !IsReg
}

// addr32 reports whether the instruction uses 32-bit addressing
// (address-size attribute), independent of operand size.
func (c *CPU) decodeModRM(addr32 bool, segOverride int, hasOverride bool) (ModRM, *Fault) {
	raw, err := c.FetchByte()
	if err != nil {
		return ModRM{}, err
	}
	m := ModRM{
		Mod: raw >> 6,
		Reg: (raw >> 3) & 7,
		RM:  raw & 7,
	}
	if m.Mod == 3 {
		m.IsReg = true
		return m, nil
	}

	defaultSeg := SegDS
	var offset uint32

	if addr32 {
		if m.RM == 4 {
			sibByte, ferr := c.FetchByte()
			if ferr != nil {
				return ModRM{}, ferr
			}
			scale := sibByte >> 6
			index := (sibByte >> 3) & 7
			base := sibByte & 7

			var baseVal uint32
			if base == 5 && m.Mod == 0 {
				d, ferr := c.FetchDword()
				if ferr != nil {
					return ModRM{}, ferr
				}
				baseVal = d
			} else {
				baseVal = c.ReadReg32(base)
				if base == RegESP || base == RegEBP {
					defaultSeg = SegSS
				}
			}
			var indexVal uint32
			if index != 4 {
				indexVal = c.ReadReg32(index) << scale
			}
			offset = baseVal + indexVal
		} else if m.RM == 5 && m.Mod == 0 {
			d, ferr := c.FetchDword()
			if ferr != nil {
				return ModRM{}, ferr
			}
			offset = d
		} else {
			offset = c.ReadReg32(m.RM)
			if m.RM == RegESP || m.RM == RegEBP {
				defaultSeg = SegSS
			}
		}

		switch m.Mod {
		case 1:
			d, ferr := c.FetchByte()
			if ferr != nil {
				return ModRM{}, ferr
			}
			offset += uint32(int32(int8(d)))
		case 2:
			d, ferr := c.FetchDword()
			if ferr != nil {
				return ModRM{}, ferr
			}
			offset += d
		}
	} else {
		switch m.RM {
		case 0:
			offset = uint32(c.ReadReg16(RegEBX)) + uint32(c.ReadReg16(RegESI))
		case 1:
			offset = uint32(c.ReadReg16(RegEBX)) + uint32(c.ReadReg16(RegEDI))
		case 2:
			offset = uint32(c.ReadReg16(RegEBP)) + uint32(c.ReadReg16(RegESI))
			defaultSeg = SegSS
		case 3:
			offset = uint32(c.ReadReg16(RegEBP)) + uint32(c.ReadReg16(RegEDI))
			defaultSeg = SegSS
		case 4:
			offset = uint32(c.ReadReg16(RegESI))
		case 5:
			offset = uint32(c.ReadReg16(RegEDI))
		case 6:
			if m.Mod == 0 {
				d, ferr := c.FetchWord()
				if ferr != nil {
					return ModRM{}, ferr
				}
				offset = uint32(d)
			} else {
				offset = uint32(c.ReadReg16(RegEBP))
				defaultSeg = SegSS
			}
		case 7:
			offset = uint32(c.ReadReg16(RegEBX))
		}
		offset &= 0xFFFF

		switch m.Mod {
		case 1:
			d, ferr := c.FetchByte()
			if ferr != nil {
				return ModRM{}, ferr
			}
			offset = (offset + uint32(int32(int8(d)))) & 0xFFFF
		case 2:
			d, ferr := c.FetchWord()
			if ferr != nil {
				return ModRM{}, ferr
			}
			offset = (offset + uint32(d)) & 0xFFFF
		}
	}

	m.Seg = defaultSeg
	if hasOverride {
		m.Seg = segOverride
	}
	m.Offset = offset
	return m, nil
}

// RMByte/RMWord/RMDword load the memory-or-register operand described
// by m, given that it was decoded for the matching operand width.
func (c *CPU) RMByte(m ModRM) (uint8, *Fault) {
	if m.IsReg {
		return c.ReadReg8(m.RM), nil
	}
	return c.ReadByte(m.Seg, m.Offset)
}

func (c *CPU) RMWord(m ModRM) (uint16, *Fault) {
	if m.IsReg {
		return c.ReadReg16(m.RM), nil
	}
	return c.ReadWord(m.Seg, m.Offset)
}

func (c *CPU) RMDword(m ModRM) (uint32, *Fault) {
	if m.IsReg {
		return c.ReadReg32(m.RM), nil
	}
	return c.ReadDword(m.Seg, m.Offset)
}

func (c *CPU) SetRMByte(m ModRM, v uint8) *Fault {
	if m.IsReg {
		c.WriteReg8(m.RM, v)
		return nil
	}
	return c.WriteByte(m.Seg, m.Offset, v)
}

func (c *CPU) SetRMWord(m ModRM, v uint16) *Fault {
	if m.IsReg {
		c.WriteReg16(m.RM, v)
		return nil
	}
	return c.WriteWord(m.Seg, m.Offset, v)
}

func (c *CPU) SetRMDword(m ModRM, v uint32) *Fault {
	if m.IsReg {
		c.WriteReg32(m.RM, v)
		return nil
	}
	return c.WriteDword(m.Seg, m.Offset, v)
}
