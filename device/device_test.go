package device

import "testing"

func TestUnboundPortReadsFF(t *testing.T) {
	r := NewRegistry()
	if got := r.In(0x3F8); got != 0xFF {
		t.Errorf("In(unbound) = %#x, want 0xFF", got)
	}
}

func TestRegisterRoundTrip(t *testing.T) {
	r := NewRegistry()
	var stored uint8
	r.Register(0x60,
		func(port uint16) uint8 { return stored },
		func(port uint16, v uint8) { stored = v })
	r.Out(0x60, 0x42)
	if got := r.In(0x60); got != 0x42 {
		t.Errorf("In(0x60) = %#x, want 0x42", got)
	}
}

func TestUnregisterRevertsToUnbound(t *testing.T) {
	r := NewRegistry()
	r.Register(0x60, func(port uint16) uint8 { return 7 }, nil)
	r.Unregister(0x60)
	if got := r.In(0x60); got != 0xFF {
		t.Errorf("In(0x60) after Unregister = %#x, want 0xFF", got)
	}
}

func TestUnboundLogger(t *testing.T) {
	r := NewRegistry()
	var gotPort uint16
	var gotWrite bool
	called := false
	r.SetUnboundLogger(func(port uint16, write bool) {
		called = true
		gotPort = port
		gotWrite = write
	})
	r.Out(0x1F0, 0x55)
	if !called || gotPort != 0x1F0 || !gotWrite {
		t.Errorf("unbound logger not invoked correctly: called=%v port=%#x write=%v", called, gotPort, gotWrite)
	}
}

func TestIn16Out16LittleEndian(t *testing.T) {
	r := NewRegistry()
	mem := make(map[uint16]uint8)
	for _, p := range []uint16{0x200, 0x201} {
		p := p
		r.Register(p, func(port uint16) uint8 { return mem[port] }, func(port uint16, v uint8) { mem[port] = v })
	}
	r.Out16(0x200, 0xBEEF)
	if mem[0x200] != 0xEF || mem[0x201] != 0xBE {
		t.Fatalf("Out16 wrote %#x/%#x, want EF/BE", mem[0x200], mem[0x201])
	}
	if got := r.In16(0x200); got != 0xBEEF {
		t.Errorf("In16 = %#x, want 0xBEEF", got)
	}
}

func TestIn32Out32LittleEndian(t *testing.T) {
	r := NewRegistry()
	mem := make(map[uint16]uint8)
	for _, p := range []uint16{0x300, 0x301, 0x302, 0x303} {
		p := p
		r.Register(p, func(port uint16) uint8 { return mem[port] }, func(port uint16, v uint8) { mem[port] = v })
	}
	r.Out32(0x300, 0xDEADBEEF)
	if got := r.In32(0x300); got != 0xDEADBEEF {
		t.Errorf("In32 = %#x, want 0xDEADBEEF", got)
	}
}

type fakePIC struct {
	pending bool
	vector  uint8
}

func (p *fakePIC) HasPendingIRQ() bool { return p.pending }
func (p *fakePIC) ServiceIRQ() uint8   { p.pending = false; return p.vector }

func TestPICInterfaceSatisfiedByFake(t *testing.T) {
	var p PIC = &fakePIC{pending: true, vector: 0x20}
	if !p.HasPendingIRQ() {
		t.Fatal("expected pending IRQ")
	}
	if v := p.ServiceIRQ(); v != 0x20 {
		t.Errorf("ServiceIRQ = %#x, want 0x20", v)
	}
	if p.HasPendingIRQ() {
		t.Error("IRQ should be cleared after service")
	}
}
