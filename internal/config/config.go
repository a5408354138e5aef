/*
 * GA144 - ROM table and boot-node map text loader.
 *
 * Copyright 2026, GA144 emulator contributors
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

// Package config loads the two text files cmd/ga144 accepts alongside a
// compiled program: a named table of boot-ROM images, and a boot-node
// coordinate list. Both use the same line-oriented, '#'-comment format
// the rest of this implementation's ambient stack favors.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/greenarrays/ga144/internal/node"
)

// ROMTable holds one or more named 64-word boot-ROM images, keyed by the
// name a CompiledProgram's ROMVariant field refers to.
type ROMTable struct {
	Images  map[string][node.ROMSize]uint32
	Default string
}

// Resolve returns the image named by variant, or the table's default
// image when variant is empty.
func (t ROMTable) Resolve(variant string) ([node.ROMSize]uint32, error) {
	name := variant
	if name == "" {
		name = t.Default
	}
	img, ok := t.Images[name]
	if !ok {
		return [node.ROMSize]uint32{}, fmt.Errorf("config: unknown ROM variant %q", name)
	}
	return img, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

// ParseROMTable reads a sequence of:
//
//	rom <name>
//	<addr> <word>
//	...
//	end
//
// sections, one per named image, plus an optional "default <name>"
// directive naming the image Resolve falls back to.
func ParseROMTable(r io.Reader) (ROMTable, error) {
	table := ROMTable{Images: map[string][node.ROMSize]uint32{}}

	var (
		lineNumber int
		section    string
		img        [node.ROMSize]uint32
		inSection  bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "rom":
			if inSection {
				return ROMTable{}, fmt.Errorf("config: line %d: rom %q starts before %q ends", lineNumber, fields[1], section)
			}
			if len(fields) != 2 {
				return ROMTable{}, fmt.Errorf("config: line %d: rom directive requires exactly one name", lineNumber)
			}
			section, img, inSection = fields[1], [node.ROMSize]uint32{}, true

		case "end":
			if !inSection {
				return ROMTable{}, fmt.Errorf("config: line %d: end without a matching rom", lineNumber)
			}
			table.Images[section] = img
			if table.Default == "" {
				table.Default = section
			}
			inSection = false

		case "default":
			if len(fields) != 2 {
				return ROMTable{}, fmt.Errorf("config: line %d: default directive requires exactly one name", lineNumber)
			}
			table.Default = fields[1]

		default:
			if !inSection {
				return ROMTable{}, fmt.Errorf("config: line %d: %q outside of a rom section", lineNumber, fields[0])
			}
			if len(fields) != 2 {
				return ROMTable{}, fmt.Errorf("config: line %d: expected \"<addr> <word>\"", lineNumber)
			}
			addr, err := strconv.ParseUint(fields[0], 0, 8)
			if err != nil {
				return ROMTable{}, fmt.Errorf("config: line %d: bad address %q: %w", lineNumber, fields[0], err)
			}
			if addr >= node.ROMSize {
				return ROMTable{}, fmt.Errorf("config: line %d: address %d is outside the %d-word ROM", lineNumber, addr, node.ROMSize)
			}
			value, err := strconv.ParseUint(fields[1], 0, 32)
			if err != nil {
				return ROMTable{}, fmt.Errorf("config: line %d: bad word %q: %w", lineNumber, fields[1], err)
			}
			img[addr] = uint32(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return ROMTable{}, err
	}
	if inSection {
		return ROMTable{}, fmt.Errorf("config: rom section %q is missing its end", section)
	}
	return table, nil
}

// LoadROMTableFile opens name and parses it as a ROMTable.
func LoadROMTableFile(name string) (ROMTable, error) {
	f, err := os.Open(name)
	if err != nil {
		return ROMTable{}, err
	}
	defer f.Close()
	return ParseROMTable(f)
}

// ParseBootMap reads a sequence of "boot <coord>" directives, one per
// line, returning the coordinates in the order they appear.
func ParseBootMap(r io.Reader) ([]uint16, error) {
	var coords []uint16
	lineNumber := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[0] != "boot" {
			return nil, fmt.Errorf("config: line %d: expected \"boot <coord>\"", lineNumber)
		}
		coord, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("config: line %d: bad coordinate %q: %w", lineNumber, fields[1], err)
		}
		coords = append(coords, uint16(coord))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return coords, nil
}

// LoadBootMapFile opens name and parses it as a boot-node map.
func LoadBootMapFile(name string) ([]uint16, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseBootMap(f)
}
