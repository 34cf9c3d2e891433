package loader

import (
	"os"
	"path/filepath"
	"testing"
)

type fakeTarget struct {
	size uint32
	data map[uint32]byte
}

func newFakeTarget(size uint32) *fakeTarget {
	return &fakeTarget{size: size, data: make(map[uint32]byte)}
}

func (f *fakeTarget) Size() uint32 { return f.size }

func (f *fakeTarget) LoadBlob(addr uint32, data []byte) {
	for i, b := range data {
		f.data[addr+uint32(i)] = b
	}
}

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeTemp(t, []byte{0xEA, 0x00, 0x00, 0x00, 0xF0})
	dst := newFakeTarget(0x100000)
	n, err := LoadFile(dst, 0xF0000, path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
	if dst.data[0xF0000] != 0xEA {
		t.Errorf("byte at load address = %#x, want 0xEA", dst.data[0xF0000])
	}
}

func TestLoadFileTooLarge(t *testing.T) {
	path := writeTemp(t, make([]byte, 16))
	dst := newFakeTarget(10)
	if _, err := LoadFile(dst, 0, path); err != ErrTooLarge {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestLoadFileTrimmedTruncates(t *testing.T) {
	path := writeTemp(t, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	dst := newFakeTarget(1000)
	n, err := LoadFileTrimmed(dst, 996, path)
	if err != nil {
		t.Fatalf("LoadFileTrimmed: %v", err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4 (truncated to fit)", n)
	}
}

func TestLoadFileTrimmedPastEnd(t *testing.T) {
	path := writeTemp(t, []byte{1})
	dst := newFakeTarget(10)
	if _, err := LoadFileTrimmed(dst, 10, path); err != ErrTooLarge {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	dst := newFakeTarget(10)
	if _, err := LoadFile(dst, 0, filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("expected error loading missing file")
	}
}
