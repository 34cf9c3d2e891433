/*
 * ia32core - Stack push/pop helpers
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

// stackPointer reads ESP or SP depending on the stack segment's
// default operand size (the B/D bit of SS's cached descriptor).
func (c *CPU) stackPointer() uint32 {
	if c.Seg[SegSS].Cache.Big {
		return c.ReadReg32(RegESP)
	}
	return uint32(c.ReadReg16(RegESP))
}

func (c *CPU) setStackPointer(v uint32) {
	if c.Seg[SegSS].Cache.Big {
		c.WriteReg32(RegESP, v)
	} else {
		c.WriteReg16(RegESP, uint16(v))
	}
}

// Push16 pushes a 16-bit value, decrementing (E)SP by 2.
func (c *CPU) Push16(v uint16) *Fault {
	sp := c.stackPointer() - 2
	if err := c.WriteWord(SegSS, sp, v); err != nil {
		return err
	}
	c.setStackPointer(sp)
	return nil
}

// Push32 pushes a 32-bit value, decrementing (E)SP by 4.
func (c *CPU) Push32(v uint32) *Fault {
	sp := c.stackPointer() - 4
	if err := c.WriteDword(SegSS, sp, v); err != nil {
		return err
	}
	c.setStackPointer(sp)
	return nil
}

// Pop16 pops a 16-bit value, incrementing (E)SP by 2.
func (c *CPU) Pop16() (uint16, *Fault) {
	sp := c.stackPointer()
	v, err := c.ReadWord(SegSS, sp)
	if err != nil {
		return 0, err
	}
	c.setStackPointer(sp + 2)
	return v, nil
}

// Pop32 pops a 32-bit value, incrementing (E)SP by 4.
func (c *CPU) Pop32() (uint32, *Fault) {
	sp := c.stackPointer()
	v, err := c.ReadDword(SegSS, sp)
	if err != nil {
		return 0, err
	}
	c.setStackPointer(sp + 4)
	return v, nil
}
