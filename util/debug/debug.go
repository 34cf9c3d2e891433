/*
 * ia32core - Per-subsystem debug trace flags
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

// Package debug holds the subsystem trace flags that gate verbose
// cpu-core logging. A single process-wide mask selects which
// subsystems emit trace output; callers test their bit before
// formatting a message so disabled traces cost nothing but the test.
package debug

import (
	"fmt"
	"log/slog"
	"strings"
)

// Subsystem trace flags, combined into a single mask via --trace.
const (
	CPU uint32 = 1 << iota
	PAGING
	DESC
	IO
	IRQ
	TASK
)

var names = map[string]uint32{
	"cpu":    CPU,
	"paging": PAGING,
	"desc":   DESC,
	"io":     IO,
	"irq":    IRQ,
	"task":   TASK,
}

var enabled uint32

// SetMask replaces the active trace mask.
func SetMask(mask uint32) { enabled = mask }

// Mask returns the active trace mask.
func Mask() uint32 { return enabled }

// Enabled reports whether flag is set in the active mask.
func Enabled(flag uint32) bool { return enabled&flag != 0 }

// ParseMask turns a comma-separated list of subsystem names (cpu,
// paging, desc, io, irq, task) into a mask. An unknown name is an
// error; "all" sets every flag.
func ParseMask(csv string) (uint32, error) {
	var mask uint32
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(strings.ToLower(tok))
		if tok == "" {
			continue
		}
		if tok == "all" {
			for _, bit := range names {
				mask |= bit
			}
			continue
		}
		bit, ok := names[tok]
		if !ok {
			return 0, fmt.Errorf("unknown debug subsystem %q", tok)
		}
		mask |= bit
	}
	return mask, nil
}

// Logf writes a formatted trace line through logger at Debug level if
// flag is enabled in the active mask; otherwise it does nothing.
func Logf(logger *slog.Logger, flag uint32, format string, a ...interface{}) {
	if enabled&flag == 0 {
		return
	}
	logger.Debug(fmt.Sprintf(format, a...))
}
