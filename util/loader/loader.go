/*
 * ia32core - Flat binary image loader
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

// Package loader reads flat host files into the emulated physical
// address space: BIOS/option-ROM images at reset time, and the
// segment:offset-addressed preload entries named in a configuration
// file. Unlike a removable medium there is no format to detect and no
// position to track once the read completes.
package loader

import (
	"errors"
	"io"
	"os"
)

// ErrTooLarge is returned when a file would not fit at its load
// address within the destination's capacity.
var ErrTooLarge = errors.New("loader: image larger than destination")

// Target receives loaded bytes at an absolute physical address.
// memory.Memory satisfies this.
type Target interface {
	LoadBlob(addr uint32, data []byte)
	Size() uint32
}

// LoadFile reads the entire contents of path and copies it into dst
// starting at addr. It returns the number of bytes loaded.
func LoadFile(dst Target, addr uint32, path string) (int, error) {
	data, err := readAll(path)
	if err != nil {
		return 0, err
	}
	if uint64(addr)+uint64(len(data)) > uint64(dst.Size()) {
		return 0, ErrTooLarge
	}
	dst.LoadBlob(addr, data)
	return len(data), nil
}

// LoadFileTrimmed behaves like LoadFile but silently truncates data
// that would run past the end of dst instead of failing; it returns
// the number of bytes actually loaded. This matches how a boot ROM
// image is placed at the top of the address space regardless of the
// exact configured memory size.
func LoadFileTrimmed(dst Target, addr uint32, path string) (int, error) {
	data, err := readAll(path)
	if err != nil {
		return 0, err
	}
	capacity := dst.Size()
	if addr >= capacity {
		return 0, ErrTooLarge
	}
	if room := capacity - addr; uint64(len(data)) > uint64(room) {
		data = data[:room]
	}
	dst.LoadBlob(addr, data)
	return len(data), nil
}

func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return data, nil
}
