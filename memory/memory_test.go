package memory

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

import "testing"

func TestReadWriteByte(t *testing.T) {
	m := New(64 * 1024)
	for i := range uint32(256) {
		m.WriteByte(i, uint8(i))
	}
	for i := range uint32(256) {
		if got := m.ReadByte(i); got != uint8(i) {
			t.Errorf("ReadByte(%d) = %#x, want %#x", i, got, uint8(i))
		}
	}
}

func TestReadWriteUint32LittleEndian(t *testing.T) {
	m := New(64 * 1024)
	m.WriteUint32(0x100, 0x04030201)
	want := []byte{0x01, 0x02, 0x03, 0x04}
	got := m.ReadBytes(0x100, 4)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
	if v := m.ReadUint32(0x100); v != 0x04030201 {
		t.Errorf("ReadUint32 = %#x, want %#x", v, 0x04030201)
	}
}

func TestA20Wraparound(t *testing.T) {
	m := New(2 * 1024 * 1024)
	m.SetA20(false)
	m.WriteByte(0x000abc, 0x42)
	if got := m.ReadByte(0x100abc); got != 0x42 {
		t.Errorf("with A20 masked, 0x100abc should alias 0x000abc, got %#x", got)
	}
	m.SetA20(true)
	m.WriteByte(0x100abc, 0x99)
	if got := m.ReadByte(0x000abc); got == 0x99 {
		t.Errorf("with A20 enabled, 0x100abc must not alias 0x000abc")
	}
}

type fakeProvider struct {
	base uint32
	size uint32
	data []byte
}

func (p *fakeProvider) Base() uint32 { return p.base }
func (p *fakeProvider) Size() uint32 { return p.size }

func (p *fakeProvider) ReadByte(addr uint32) uint8 {
	return p.data[addr-p.base]
}

func (p *fakeProvider) WriteByte(addr uint32, v uint8) {
	p.data[addr-p.base] = v
}

func (p *fakeProvider) DirectReadPointer() []byte { return p.data }

func TestProviderRoutesAccess(t *testing.T) {
	m := New(1024 * 1024)
	p := &fakeProvider{base: 0xC0000, size: BlockSize, data: make([]byte, BlockSize)}
	if !m.RegisterProvider(p) {
		t.Fatal("RegisterProvider failed on empty range")
	}
	m.WriteByte(0xC0000, 0xAB)
	if p.data[0] != 0xAB {
		t.Errorf("write did not reach provider")
	}
	if got := m.ReadByte(0xC0000); got != 0xAB {
		t.Errorf("ReadByte = %#x, want 0xAB", got)
	}
}

func TestProviderOverlapRejected(t *testing.T) {
	m := New(1024 * 1024)
	p1 := &fakeProvider{base: 0xC0000, size: BlockSize, data: make([]byte, BlockSize)}
	p2 := &fakeProvider{base: 0xC0000, size: BlockSize, data: make([]byte, BlockSize)}
	if !m.RegisterProvider(p1) {
		t.Fatal("first RegisterProvider should succeed")
	}
	if m.RegisterProvider(p2) {
		t.Error("overlapping RegisterProvider should fail")
	}
}

func TestScreenNotifierFiresInTextWindow(t *testing.T) {
	m := New(1024 * 1024)
	var notified bool
	m.SetScreenNotifier(notifierFunc(func(addr uint32, length uint32) { notified = true }))
	m.WriteByte(0xB8000, 'A')
	if !notified {
		t.Error("write to text window did not notify screen")
	}
	notified = false
	m.WriteByte(0x1000, 'A')
	if notified {
		t.Error("write outside text window should not notify screen")
	}
}

type notifierFunc func(addr uint32, length uint32)

func (f notifierFunc) NotifyWrite(addr uint32, length uint32) { f(addr, length) }
