/*
 * ia32core - Core goroutine-loop tests
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

package core

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/openpcemu/ia32core/cpu"
	"github.com/openpcemu/ia32core/device"
	"github.com/openpcemu/ia32core/memory"
)

func newTestCore(t *testing.T, code []byte) (*Core, *cpu.CPU) {
	t.Helper()
	mem := memory.New(64 * 1024)
	ports := device.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := cpu.New(mem, ports, logger)
	c.Seg[cpu.SegCS].Cache.Base = 0
	c.Seg[cpu.SegCS].Selector = 0
	c.Seg[cpu.SegSS].Cache.Base = 0
	c.WriteReg16(cpu.RegESP, 0x1000)
	c.EIP = 0
	for i, b := range code {
		mem.WriteByte(uint32(i), b)
	}
	return New(c, logger), c
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestCoreRunExecutesOnlyWhileRunning(t *testing.T) {
	// INC AX (40); JMP $-3 (EB FD): a tight spin loop that counts steps.
	co, c := newTestCore(t, []byte{0x40, 0xEB, 0xFD})
	go co.Run()
	defer co.Stop()

	if c.ReadReg16(cpu.RegEAX) != 0 {
		t.Fatal("CPU must not advance before EnterMainLoop is posted")
	}

	co.Post(Packet{Kind: EnterMainLoop})
	waitFor(t, time.Second, func() bool { return c.ReadReg16(cpu.RegEAX) > 0 })

	co.Post(Packet{Kind: ExitMainLoop})
	waitFor(t, time.Second, func() bool { return !co.running })

	stopped := c.ReadReg16(cpu.RegEAX)
	time.Sleep(20 * time.Millisecond)
	if c.ReadReg16(cpu.RegEAX) != stopped {
		t.Error("CPU kept advancing after ExitMainLoop")
	}
}

func TestCoreRunHaltsCleanly(t *testing.T) {
	co, c := newTestCore(t, []byte{0xF4}) // HLT
	go co.Run()
	defer co.Stop()

	co.Post(Packet{Kind: EnterMainLoop})
	waitFor(t, time.Second, func() bool { return c.Halted })
}

func TestCoreHardRebootResetsCPU(t *testing.T) {
	co, c := newTestCore(t, []byte{0x40, 0xEB, 0xFD})
	go co.Run()
	defer co.Stop()

	co.Post(Packet{Kind: EnterMainLoop})
	waitFor(t, time.Second, func() bool { return c.ReadReg16(cpu.RegEAX) > 0 })

	co.Post(Packet{Kind: HardReboot})
	waitFor(t, time.Second, func() bool { return !co.running })

	if c.EIP != 0 || c.ReadReg16(cpu.RegEAX) != 0 {
		t.Errorf("HardReboot must leave the CPU at its power-on state, got EIP=%#x AX=%#x", c.EIP, c.ReadReg16(cpu.RegEAX))
	}
}
