/*
 * ia32core - Two-level paging (PDE/PTE walk, A/D bits, #PF synthesis)
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

import "github.com/openpcemu/ia32core/util/debug"

// Page-fault error-code bits (pushed alongside vector 14).
const (
	pfPresent uint32 = 1 << 0 // 0: not-present, 1: protection violation
	pfWrite   uint32 = 1 << 1 // 0: read, 1: write
	pfUser    uint32 = 1 << 2 // 0: supervisor, 1: user
)

const (
	pteEntrySize  = 4
	entriesPerTbl = 1024
	pageSize      = 4096
)

// translateLinear converts a linear address to a physical address
// through the two-level page table rooted at CR3, when paging is
// enabled; otherwise it is the identity function. write/user
// classify the access for permission checking and the #PF error code.
func (c *CPU) translateLinear(linear uint32, write bool, user bool) (uint32, *Fault) {
	if !c.PagingEnabled() {
		return linear, nil
	}

	dirIndex := linear >> 22
	tblIndex := (linear >> 12) & 0x3FF
	pageOff := linear & 0xFFF

	dirAddr := (c.CR3 &^ 0xFFF) + dirIndex*pteEntrySize
	pde, err := c.readPhysicalUint32(dirAddr)
	if err != nil {
		return 0, err
	}
	if pde&1 == 0 {
		return 0, c.pageFault(linear, false, write, user)
	}
	if user && pde&(1<<2) == 0 {
		return 0, c.pageFault(linear, true, write, user)
	}
	if write && pde&(1<<1) == 0 && (user || c.CR0&CR0WP != 0) {
		return 0, c.pageFault(linear, true, write, user)
	}
	if pde&(1<<5) == 0 {
		if err := c.writePhysicalUint32(dirAddr, pde|(1<<5)); err != nil {
			return 0, err
		}
	}

	tblAddr := (pde &^ 0xFFF) + tblIndex*pteEntrySize
	pte, err := c.readPhysicalUint32(tblAddr)
	if err != nil {
		return 0, err
	}
	if pte&1 == 0 {
		return 0, c.pageFault(linear, false, write, user)
	}
	if user && pte&(1<<2) == 0 {
		return 0, c.pageFault(linear, true, write, user)
	}
	if write && pte&(1<<1) == 0 && (user || c.CR0&CR0WP != 0) {
		return 0, c.pageFault(linear, true, write, user)
	}

	update := pte
	if pte&(1<<5) == 0 {
		update |= 1 << 5 // accessed
	}
	if write && pte&(1<<6) == 0 {
		update |= 1 << 6 // dirty
	}
	if update != pte {
		if err := c.writePhysicalUint32(tblAddr, update); err != nil {
			return 0, err
		}
	}

	return (pte &^ 0xFFF) | pageOff, nil
}

func pfCode(present, write, user bool) uint32 {
	var code uint32
	if present {
		code |= pfPresent
	}
	if write {
		code |= pfWrite
	}
	if user {
		code |= pfUser
	}
	return code
}

// pageFault builds a #PF, tracing it under the PAGING subsystem before
// returning it to the caller.
func (c *CPU) pageFault(linear uint32, present, write, user bool) *Fault {
	code := pfCode(present, write, user)
	debug.Logf(c.Logger, debug.PAGING, "#PF linear=%08x code=%x cr3=%08x", linear, code, c.CR3)
	return NewPageFault(code, linear)
}

func (c *CPU) readPhysicalUint32(addr uint32) (uint32, *Fault) {
	return c.Mem.ReadUint32(addr), nil
}

func (c *CPU) writePhysicalUint32(addr uint32, v uint32) *Fault {
	c.Mem.WriteUint32(addr, v)
	return nil
}
