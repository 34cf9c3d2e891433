/*
 * ia32core - Physical memory and memory-mapped device providers
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

// Package memory implements the emulated physical address space: a flat
// host-backed byte array, the A20 gate, and a sparse table of
// memory-mapped device providers covering the low megabyte.
package memory

const (
	// DefaultSize is the default physical memory size, in bytes.
	DefaultSize = 8 * 1024 * 1024

	// BlockSize is the granularity of the memory-provider map. Only the
	// first 1MiB is partitioned this way; RAM above it is always the
	// backing array.
	BlockSize = 16 * 1024

	lowMeg     = 1024 * 1024
	lowBlocks  = lowMeg / BlockSize
	a20Bit     = 1 << 20
	textWinLo  = 0xB8000
	textWinLen = 0x8000
)

// Provider is a memory-mapped device: ROM, VGA RAM, or any other region
// that must intercept reads/writes instead of hitting the backing array.
// Ranges registered by distinct providers must never overlap.
type Provider interface {
	Base() uint32
	Size() uint32
	ReadByte(addr uint32) uint8
	WriteByte(addr uint32, v uint8)
	// DirectReadPointer optionally exposes a stable slice backing this
	// provider's range for fast reads. Returns nil if unsupported.
	DirectReadPointer() []byte
}

// ScreenNotifier is called whenever a write lands in the text-mode
// window around 0xB8000, so a video front end can redraw without
// polling. Memory itself has no notion of a screen; this is an
// injected collaborator kept deliberately minimal.
type ScreenNotifier interface {
	NotifyWrite(addr uint32, length uint32)
}

// Memory is the emulated physical address space.
type Memory struct {
	bytes   []byte
	size    uint32
	a20Mask uint32 // ANDed with addr bit 20; 0 disables the line (wraps), a20Bit enables it.

	blocks   [lowBlocks]Provider // one slot per 16KiB block in the first MiB
	notifier ScreenNotifier
}

// New allocates a physical memory of the given size in bytes. Size is
// clamped to be at least one block; it is not rounded to a multiple of
// BlockSize.
func New(size uint32) *Memory {
	if size < BlockSize {
		size = BlockSize
	}
	return &Memory{
		bytes:   make([]byte, size),
		size:    size,
		a20Mask: a20Bit,
	}
}

// Size returns the physical memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.size
}

// SetA20 enables or disables the A20 address line. Disabling it makes
// address bit 20 behave as if it were always 0 (legacy wraparound).
func (m *Memory) SetA20(enabled bool) {
	if enabled {
		m.a20Mask = a20Bit
	} else {
		m.a20Mask = 0
	}
}

// SetScreenNotifier installs the collaborator notified on writes to the
// text-mode window. Pass nil to disable notification.
func (m *Memory) SetScreenNotifier(n ScreenNotifier) {
	m.notifier = n
}

// RegisterProvider claims the 16KiB-aligned blocks spanned by
// [base, base+size) for p. Returns false if any block in the range is
// already owned, leaving the map unmodified.
func (m *Memory) RegisterProvider(p Provider) bool {
	base := p.Base()
	end := base + p.Size()
	if end > lowMeg {
		end = lowMeg
	}
	first := base / BlockSize
	last := (end - 1) / BlockSize
	for b := first; b <= last; b++ {
		if m.blocks[b] != nil {
			return false
		}
	}
	for b := first; b <= last; b++ {
		m.blocks[b] = p
	}
	return true
}

// UnregisterProvider releases every block owned by p.
func (m *Memory) UnregisterProvider(p Provider) {
	for i, owner := range m.blocks {
		if owner == p {
			m.blocks[i] = nil
		}
	}
}

func (m *Memory) maskA20(addr uint32) uint32 {
	return (addr & ^uint32(a20Bit)) | (addr & m.a20Mask)
}

func (m *Memory) providerFor(addr uint32) Provider {
	if addr >= lowMeg {
		return nil
	}
	return m.blocks[addr/BlockSize]
}

// ReadByte reads one physical byte, routing through a provider if the
// address falls in its range.
func (m *Memory) ReadByte(addr uint32) uint8 {
	addr = m.maskA20(addr)
	if p := m.providerFor(addr); p != nil {
		return p.ReadByte(addr)
	}
	if addr >= m.size {
		return 0xff
	}
	return m.bytes[addr]
}

// WriteByte writes one physical byte, routing through a provider if the
// address falls in its range, and notifies the screen if the address is
// inside the text-mode window.
func (m *Memory) WriteByte(addr uint32, v uint8) {
	addr = m.maskA20(addr)
	if p := m.providerFor(addr); p != nil {
		p.WriteByte(addr, v)
	} else if addr < m.size {
		m.bytes[addr] = v
	}
	if m.notifier != nil && addr >= textWinLo && addr < textWinLo+textWinLen {
		m.notifier.NotifyWrite(addr, 1)
	}
}

// ReadBytes reads length bytes starting at addr, decomposed byte by
// byte through the provider layer. There is no alignment fault; callers
// needing multi-byte little-endian values use ReadUint16/ReadUint32.
func (m *Memory) ReadBytes(addr uint32, length uint32) []byte {
	out := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		out[i] = m.ReadByte(addr + i)
	}
	return out
}

// WriteBytes writes data starting at addr, byte by byte.
func (m *Memory) WriteBytes(addr uint32, data []byte) {
	for i, b := range data {
		m.WriteByte(addr+uint32(i), b)
	}
	if m.notifier != nil && addr >= textWinLo && addr < textWinLo+textWinLen {
		m.notifier.NotifyWrite(addr, uint32(len(data)))
	}
}

// ReadUint16 reads a little-endian 16-bit value.
func (m *Memory) ReadUint16(addr uint32) uint16 {
	lo := m.ReadByte(addr)
	hi := m.ReadByte(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// WriteUint16 writes a little-endian 16-bit value.
func (m *Memory) WriteUint16(addr uint32, v uint16) {
	m.WriteByte(addr, uint8(v))
	m.WriteByte(addr+1, uint8(v>>8))
}

// ReadUint32 reads a little-endian 32-bit value.
func (m *Memory) ReadUint32(addr uint32) uint32 {
	lo := m.ReadUint16(addr)
	hi := m.ReadUint16(addr + 2)
	return uint32(lo) | uint32(hi)<<16
}

// WriteUint32 writes a little-endian 32-bit value.
func (m *Memory) WriteUint32(addr uint32, v uint32) {
	m.WriteUint16(addr, uint16(v))
	m.WriteUint16(addr+2, uint16(v>>16))
}

// LoadBlob copies raw bytes into physical memory starting at addr,
// bypassing providers (used for ROM/initial-image loading before any
// provider claims that range).
func (m *Memory) LoadBlob(addr uint32, data []byte) {
	for i, b := range data {
		a := addr + uint32(i)
		if a < m.size {
			m.bytes[a] = b
		}
	}
}
