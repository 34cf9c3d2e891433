/*
 * ia32core - Configuration file parser
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

/* Configuration file format:
 *
 * '#' begins a comment, rest of line is ignored.
 * Blank lines are ignored.
 *
 * <line> := <memory> | <load> | <disk> | <floppy> | <start>
 * <memory>  := 'MEMORY' <whitespace> <number>
 * <load>    := 'LOAD' <whitespace> <seg> ':' <offset> <whitespace> <path>
 * <disk>    := 'DISK' <whitespace> <index> <whitespace> <path> <whitespace> <number>
 * <floppy>  := 'FLOPPY' <whitespace> <index> <whitespace> <type> <whitespace> <path>
 * <start>   := 'START' <whitespace> <seg> ':' <offset>
 * <path>    := <string> | '"' *(<letter> | <whitespace>) '"'
 * <seg>, <offset>, <index> are hexadecimal; <number> is decimal KiB.
 * <type> is one of the canonical floppy geometry tags (see FloppyGeometries).
 *
 * Any command name not in the list above is an error; this keeps a typo
 * in a config file from silently doing nothing.
 */

// Package configparser reads the emulator's startup configuration: the
// physical memory size, ROM/image preload mappings, fixed-disk and
// floppy image bindings, and an optional initial CS:EIP override.
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// Preload binds a host file's contents to a segment:offset physical
// load address, applied before the CPU starts executing.
type Preload struct {
	Segment uint16
	Offset  uint32
	Path    string
}

// Disk describes one fixed-disk image binding.
type Disk struct {
	Index   int
	Path    string
	SizeKiB uint32
}

// Floppy describes one floppy image binding. Cylinders/Heads/SectorsPerTrack
// are filled in from FloppyGeometries by the Type tag.
type Floppy struct {
	Index           int
	Type            string
	Path            string
	Cylinders       int
	Heads           int
	SectorsPerTrack int
}

// FloppyGeometries maps the canonical media-size tags accepted in a
// FLOPPY line to their CHS geometry.
var FloppyGeometries = map[string]struct {
	Cylinders       int
	Heads           int
	SectorsPerTrack int
}{
	"160kB": {40, 1, 8},
	"320kB": {40, 2, 8},
	"360kB": {40, 2, 9},
	"720kB": {80, 2, 9},
	"1.2M":  {80, 2, 15},
	"1.44M": {80, 2, 18},
}

// Config is the parsed result of one configuration file.
type Config struct {
	MemoryKiB  uint32
	Preloads   []Preload
	Disks      []Disk
	Floppies   []Floppy
	HasStart   bool
	StartCS    uint16
	StartEIP   uint32
}

// Current option line being parsed.
type optionLine struct {
	line string
	pos  int
}

var errUnknownCommand = errors.New("unknown configuration command")

// LoadConfigFile reads and parses the configuration file at name.
func LoadConfigFile(name string) (*Config, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &Config{}
	reader := bufio.NewReader(file)
	lineNumber := 0
	for {
		raw, readErr := reader.ReadString('\n')
		lineNumber++
		if len(raw) == 0 && readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, readErr
		}
		line := &optionLine{line: raw}
		if err := line.parseLine(cfg); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, readErr
		}
	}
	return cfg, nil
}

func (line *optionLine) parseLine(cfg *Config) error {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}

	cmd, err := line.getWord()
	if err != nil {
		return err
	}
	cmd = strings.ToUpper(cmd)

	switch cmd {
	case "MEMORY":
		kib, err := line.getDecimal()
		if err != nil {
			return fmt.Errorf("MEMORY: %w", err)
		}
		cfg.MemoryKiB = kib

	case "LOAD":
		seg, off, err := line.getSegOff()
		if err != nil {
			return fmt.Errorf("LOAD: %w", err)
		}
		line.skipSpace()
		path, ok := line.parseQuoteString()
		if !ok || path == "" {
			return errors.New("LOAD: missing path")
		}
		cfg.Preloads = append(cfg.Preloads, Preload{Segment: seg, Offset: off, Path: path})

	case "DISK":
		idx, err := line.getHex()
		if err != nil {
			return fmt.Errorf("DISK: %w", err)
		}
		line.skipSpace()
		path, ok := line.parseQuoteString()
		if !ok || path == "" {
			return errors.New("DISK: missing path")
		}
		line.skipSpace()
		kib, err := line.getDecimal()
		if err != nil {
			return fmt.Errorf("DISK: %w", err)
		}
		cfg.Disks = append(cfg.Disks, Disk{Index: int(idx), Path: path, SizeKiB: kib})

	case "FLOPPY":
		idx, err := line.getHex()
		if err != nil {
			return fmt.Errorf("FLOPPY: %w", err)
		}
		line.skipSpace()
		typeTag, err := line.getWord()
		if err != nil || typeTag == "" {
			return errors.New("FLOPPY: missing type")
		}
		geom, ok := FloppyGeometries[typeTag]
		if !ok {
			return fmt.Errorf("FLOPPY: unknown media type %q", typeTag)
		}
		line.skipSpace()
		path, ok := line.parseQuoteString()
		if !ok || path == "" {
			return errors.New("FLOPPY: missing path")
		}
		cfg.Floppies = append(cfg.Floppies, Floppy{
			Index: int(idx), Type: typeTag, Path: path,
			Cylinders: geom.Cylinders, Heads: geom.Heads, SectorsPerTrack: geom.SectorsPerTrack,
		})

	case "START":
		seg, off, err := line.getSegOff()
		if err != nil {
			return fmt.Errorf("START: %w", err)
		}
		cfg.HasStart = true
		cfg.StartCS = seg
		cfg.StartEIP = off

	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, cmd)
	}

	line.skipSpace()
	if !line.isEOL() {
		return fmt.Errorf("unexpected trailing data after %s", cmd)
	}
	return nil
}

func (line *optionLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

func (line *optionLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

func (line *optionLine) getPeek() byte {
	if line.pos >= len(line.line) {
		return 0
	}
	return line.line[line.pos]
}

// getWord reads a run of letters/digits/dots (enough for command names
// and floppy type tags like "1.44M").
func (line *optionLine) getWord() (string, error) {
	line.skipSpace()
	start := line.pos
	for !line.isEOL() {
		by := line.line[line.pos]
		if unicode.IsLetter(rune(by)) || unicode.IsDigit(rune(by)) || by == '.' {
			line.pos++
			continue
		}
		break
	}
	if line.pos == start {
		return "", errors.New("expected a word")
	}
	return line.line[start:line.pos], nil
}

func (line *optionLine) getHex() (uint64, error) {
	line.skipSpace()
	start := line.pos
	for !line.isEOL() && isHexDigit(line.line[line.pos]) {
		line.pos++
	}
	if line.pos == start {
		return 0, errors.New("expected a hexadecimal value")
	}
	return strconv.ParseUint(line.line[start:line.pos], 16, 32)
}

func (line *optionLine) getDecimal() (uint32, error) {
	line.skipSpace()
	start := line.pos
	for !line.isEOL() && unicode.IsDigit(rune(line.line[line.pos])) {
		line.pos++
	}
	if line.pos == start {
		return 0, errors.New("expected a decimal value")
	}
	v, err := strconv.ParseUint(line.line[start:line.pos], 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// getSegOff parses "<hex>:<hex>" (segment:offset).
func (line *optionLine) getSegOff() (uint16, uint32, error) {
	line.skipSpace()
	seg, err := line.getHex()
	if err != nil {
		return 0, 0, err
	}
	if line.getPeek() != ':' {
		return 0, 0, errors.New("expected ':' in segment:offset")
	}
	line.pos++
	off, err := line.getHex()
	if err != nil {
		return 0, 0, err
	}
	return uint16(seg), uint32(off), nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// parseQuoteString reads either a bare whitespace-delimited token or a
// double-quoted string (allowing embedded spaces), stopping at end of
// line or the next unquoted whitespace.
func (line *optionLine) parseQuoteString() (string, bool) {
	line.skipSpace()
	if line.isEOL() {
		return "", false
	}
	if line.line[line.pos] == '"' {
		line.pos++
		start := line.pos
		for line.pos < len(line.line) && line.line[line.pos] != '"' {
			line.pos++
		}
		if line.pos >= len(line.line) {
			return "", false
		}
		value := line.line[start:line.pos]
		line.pos++ // consume closing quote
		return value, true
	}

	start := line.pos
	for !line.isEOL() && !unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
	return line.line[start:line.pos], true
}
