package descriptor

import "testing"

func buildCodeSeg(base, limit uint32, dpl uint8, conforming, readable, big, gran bool) [8]byte {
	var raw [8]byte
	raw[0] = byte(limit)
	raw[1] = byte(limit >> 8)
	raw[2] = byte(base)
	raw[3] = byte(base >> 8)
	raw[4] = byte(base >> 16)
	access := uint8(0x80) | (dpl << 5) | 0x10 | 0x8 // present, S=1, Executable
	if conforming {
		access |= 0x4
	}
	if readable {
		access |= 0x2
	}
	raw[5] = access
	b6 := byte(limit>>16) & 0xF
	if big {
		b6 |= 0x40
	}
	if gran {
		b6 |= 0x80
	}
	raw[6] = b6
	raw[7] = byte(base >> 24)
	return raw
}

func TestDecodeCodeSegment(t *testing.T) {
	raw := buildCodeSeg(0x00100000, 0xFFFF, 3, false, true, true, true)
	d := Decode(raw)
	if d.Kind != KindCode {
		t.Fatalf("Kind = %v, want KindCode", d.Kind)
	}
	if d.Base != 0x00100000 {
		t.Errorf("Base = %#x, want %#x", d.Base, 0x00100000)
	}
	if d.DPL != 3 {
		t.Errorf("DPL = %d, want 3", d.DPL)
	}
	if !d.Present || !d.Big || !d.Granularity || !d.Readable || d.Conforming {
		t.Errorf("flags decoded incorrectly: %+v", d)
	}
	if got := d.EffectiveLimit(); got != (0xFFFF<<12 | 0xFFF) {
		t.Errorf("EffectiveLimit = %#x, want %#x", got, 0xFFFF<<12|0xFFF)
	}
}

func TestDecodeDataSegmentWritable(t *testing.T) {
	var raw [8]byte
	raw[5] = 0x80 | 0x10 | 0x2 // present, S=1, data, writable
	d := Decode(raw)
	if d.Kind != KindData || !d.Writable || d.ExpandDown {
		t.Errorf("decoded = %+v", d)
	}
}

func TestDecodeCallGate32(t *testing.T) {
	var raw [8]byte
	raw[0] = 0x34
	raw[1] = 0x12 // offset low = 0x1234
	raw[2] = 0x08
	raw[3] = 0x00 // selector = 0x0008
	raw[4] = 0x00 // param count
	raw[5] = 0x80 | (2 << 5) | 0xC
	raw[6] = 0x78
	raw[7] = 0x56 // offset high = 0x5678
	d := Decode(raw)
	if d.Kind != KindCallGate32 {
		t.Fatalf("Kind = %v, want KindCallGate32", d.Kind)
	}
	if d.Selector != 0x0008 || d.Offset != 0x56781234 || d.DPL != 2 {
		t.Errorf("decoded = %+v", d)
	}
	if !d.IsGate() || !d.Is32BitGate() || !d.IsCallGate32() {
		t.Errorf("classification helpers wrong for %+v", d)
	}
}

func TestDecodeTSS32Busy(t *testing.T) {
	var raw [8]byte
	raw[5] = 0x80 | 0xB // present, S=0, type=TSS32 busy
	d := Decode(raw)
	if d.Kind != KindTSSBusy32 || !d.Busy || !d.IsTSS() || !d.Is32BitTSS() {
		t.Errorf("decoded = %+v", d)
	}
}

func TestSelectorFields(t *testing.T) {
	s := Selector(0x001B) // index 3, TI=0, RPL=3
	if s.Index() != 3 || s.TI() || s.RPL() != 3 {
		t.Errorf("Index=%d TI=%v RPL=%d", s.Index(), s.TI(), s.RPL())
	}
	s2 := Selector(0x0004) // index 0, TI=1 (LDT), RPL=0
	if !s2.TI() || s2.Index() != 0 {
		t.Errorf("Index=%d TI=%v", s2.Index(), s2.TI())
	}
	null := Selector(0)
	if !null.IsNull() {
		t.Error("selector 0 should be null")
	}
}
