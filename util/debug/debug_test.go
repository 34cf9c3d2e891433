package debug

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseMaskNames(t *testing.T) {
	mask, err := ParseMask("cpu, io")
	if err != nil {
		t.Fatalf("ParseMask error: %v", err)
	}
	if mask != CPU|IO {
		t.Errorf("mask = %#x, want %#x", mask, CPU|IO)
	}
}

func TestParseMaskAll(t *testing.T) {
	mask, err := ParseMask("all")
	if err != nil {
		t.Fatalf("ParseMask error: %v", err)
	}
	want := CPU | PAGING | DESC | IO | IRQ | TASK
	if mask != want {
		t.Errorf("mask = %#x, want %#x", mask, want)
	}
}

func TestParseMaskUnknown(t *testing.T) {
	if _, err := ParseMask("bogus"); err == nil {
		t.Error("expected error for unknown subsystem name")
	}
}

func TestLogfGatedByMask(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	SetMask(0)
	Logf(logger, CPU, "fetch at %04x", 0x1000)
	if buf.Len() != 0 {
		t.Fatalf("expected no output with mask disabled, got %q", buf.String())
	}

	SetMask(CPU)
	Logf(logger, CPU, "fetch at %04x", 0x1000)
	if !strings.Contains(buf.String(), "fetch at 1000") {
		t.Errorf("expected trace message, got %q", buf.String())
	}
	SetMask(0)
}
