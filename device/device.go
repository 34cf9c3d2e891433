/*
 * ia32core - Port I/O registry and device/PIC interfaces
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

// Package device holds the interfaces the CPU core uses to talk to
// external collaborators: the 16-bit port-I/O registry and the PIC
// interrupt-delivery contract. Concrete devices (floppy, VGA, PIC
// hardware model) live outside this core; this package only defines the
// seam.
package device

// PortReader returns the byte currently present at port.
type PortReader func(port uint16) uint8

// PortWriter accepts a byte written to port.
type PortWriter func(port uint16, v uint8)

type portEntry struct {
	read  PortReader
	write PortWriter
}

// Registry maps each of the 65536 byte-wide I/O ports to at most one
// {reader, writer} pair. Unregistered ports read 0xFF and drop writes.
type Registry struct {
	ports      map[uint16]portEntry
	logUnbound bool
	onUnbound  func(port uint16, write bool)
}

// NewRegistry returns an empty port registry.
func NewRegistry() *Registry {
	return &Registry{ports: make(map[uint16]portEntry)}
}

// SetUnboundLogger installs a callback invoked whenever an access hits a
// port with no registered handler. Pass nil to disable.
func (r *Registry) SetUnboundLogger(fn func(port uint16, write bool)) {
	r.onUnbound = fn
	r.logUnbound = fn != nil
}

// Register binds reader/writer to a single port. Either may be nil to
// leave that direction unhandled (reads as 0xFF / writes dropped).
// A second Register call for the same port replaces the first.
func (r *Registry) Register(port uint16, reader PortReader, writer PortWriter) {
	r.ports[port] = portEntry{read: reader, write: writer}
}

// Unregister removes any handler bound to port.
func (r *Registry) Unregister(port uint16) {
	delete(r.ports, port)
}

// In reads one byte from port.
func (r *Registry) In(port uint16) uint8 {
	e, ok := r.ports[port]
	if !ok || e.read == nil {
		if r.logUnbound {
			r.onUnbound(port, false)
		}
		return 0xFF
	}
	return e.read(port)
}

// Out writes one byte to port.
func (r *Registry) Out(port uint16, v uint8) {
	e, ok := r.ports[port]
	if !ok || e.write == nil {
		if r.logUnbound {
			r.onUnbound(port, true)
		}
		return
	}
	e.write(port, v)
}

// In16 reads a little-endian 16-bit value from two consecutive ports.
func (r *Registry) In16(port uint16) uint16 {
	lo := r.In(port)
	hi := r.In(port + 1)
	return uint16(lo) | uint16(hi)<<8
}

// Out16 writes a little-endian 16-bit value to two consecutive ports.
func (r *Registry) Out16(port uint16, v uint16) {
	r.Out(port, uint8(v))
	r.Out(port+1, uint8(v>>8))
}

// In32 reads a little-endian 32-bit value from four consecutive ports.
func (r *Registry) In32(port uint16) uint32 {
	lo := r.In16(port)
	hi := r.In16(port + 2)
	return uint32(lo) | uint32(hi)<<16
}

// Out32 writes a little-endian 32-bit value to four consecutive ports.
func (r *Registry) Out32(port uint16, v uint32) {
	r.Out16(port, uint16(v))
	r.Out16(port+2, uint16(v>>16))
}

// PIC is the interrupt controller seam. Devices raise IRQs into a PIC
// model that lives outside this core; the main loop only ever polls
// HasPendingIRQ and asks for the vector via ServiceIRQ between
// instructions.
type PIC interface {
	HasPendingIRQ() bool
	ServiceIRQ() uint8 // returns the interrupt vector to deliver
}
