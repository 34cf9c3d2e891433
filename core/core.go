/*
 * ia32core - Goroutine-driven main loop wrapper around the CPU core
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

// Package core drives a single CPU's main loop on its own goroutine:
// one emulator thread runs Alive/Halted, polling a small control queue
// at the top of each pass instead of being reentered from outside.
package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/openpcemu/ia32core/cpu"
)

// PacketKind enumerates the control messages a caller may queue.
type PacketKind int

const (
	EnterMainLoop PacketKind = iota
	ExitMainLoop
	HardReboot
)

// Packet is one queued control message.
type Packet struct {
	Kind PacketKind
}

// haltPollInterval is how often the halted loop checks for a pending
// IRQ or queued control packet.
const haltPollInterval = 500 * time.Microsecond

// instructionsPerSlice bounds how many instructions RunUntilHaltOrFault
// executes before Core re-checks its control queue, so ExitMainLoop
// and HardReboot are never starved by a tight guest loop.
const instructionsPerSlice = 4096

// Core owns one CPU's goroutine and the channel used to drive it.
type Core struct {
	cpu     *cpu.CPU
	control chan Packet
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
	logger  *slog.Logger
}

// New creates a Core around an already-constructed CPU.
func New(c *cpu.CPU, logger *slog.Logger) *Core {
	return &Core{
		cpu:     c,
		control: make(chan Packet, 16),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Post queues a control packet for the next time Run polls its queue.
func (co *Core) Post(p Packet) {
	select {
	case co.control <- p:
	default:
		co.logger.Warn("control queue full, dropping packet", "kind", p.Kind)
	}
}

// Run is the goroutine body: the main fetch/execute loop, generalized
// to also watch the control queue and a shutdown channel.
func (co *Core) Run() {
	co.wg.Add(1)
	defer co.wg.Done()

	for {
		select {
		case <-co.done:
			co.logger.Info("core loop exiting")
			return
		case p := <-co.control:
			co.handlePacket(p)
			continue
		default:
		}

		if !co.running {
			time.Sleep(haltPollInterval)
			continue
		}

		state, fault := co.cpu.RunUntilHaltOrFault(instructionsPerSlice)
		switch state {
		case cpu.Dead:
			co.logger.Error("cpu halted on unrecoverable fault", "vector", fault.Vector)
			co.running = false
		case cpu.Halted:
			co.runHalted()
		case cpu.Alive:
			// slice budget exhausted; loop back and re-check the queue
		}
	}
}

// runHalted implements the halted loop: poll IRQs and the control
// queue, sleeping briefly each iteration, until an IRQ with IF=1
// wakes the CPU or a control packet stops it.
func (co *Core) runHalted() {
	for co.cpu.Halted {
		select {
		case <-co.done:
			return
		case p := <-co.control:
			co.handlePacket(p)
			if !co.running {
				return
			}
		default:
		}
		if co.cpu.PIC != nil && co.cpu.Flag(cpu.FlagIF) && co.cpu.PIC.HasPendingIRQ() {
			co.cpu.Halted = false
			return
		}
		time.Sleep(haltPollInterval)
	}
}

func (co *Core) handlePacket(p Packet) {
	switch p.Kind {
	case EnterMainLoop:
		co.running = true
	case ExitMainLoop:
		co.running = false
	case HardReboot:
		co.cpu.Reset()
		co.running = false
	}
}

// Stop signals Run to return and waits (up to one second) for it to
// do so.
func (co *Core) Stop() {
	close(co.done)
	finished := make(chan struct{})
	go func() {
		co.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		co.logger.Warn("timed out waiting for core loop to stop")
	}
}
