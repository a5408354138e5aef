/*
 * GA144 - Disassembler: inverse of the instruction word codec.
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

// Package disassemble turns a node's RAM/ROM image back into text, one
// pipe-separated line per word, resolving jump/call targets and
// substituting symbolic names for literals that are recognizable port
// addresses.
package disassemble

import (
	"fmt"
	"strings"

	"github.com/greenarrays/ga144/internal/port"
	"github.com/greenarrays/ga144/internal/word"
)

// portNames maps a handful of well-known port addresses to the names an
// arrayForth programmer would recognize, for symbolic literal display.
var portNames = map[uint32]string{
	port.AddrIO:    "io",
	port.AddrRight: "right",
	port.AddrLeft:  "left",
	port.AddrUp:    "up",
	port.AddrDown:  "down",
	port.AddrRDLU:  "io3",
}

// Line is one disassembled word: either a packed instruction (Slots
// holds up to four mnemonics, pipe-joined by String) or, when the
// previous word ended in @p/!p, a literal value (Literal non-nil).
type Line struct {
	Addr    uint32
	Slots   []string
	Literal *uint32
}

// String renders the line the way the assembler would accept it back.
func (l Line) String() string {
	if l.Literal != nil {
		if name, ok := portNames[*l.Literal]; ok {
			return name
		}
		return fmt.Sprintf("%d", *l.Literal)
	}
	return strings.Join(l.Slots, "|")
}

// Disassemble decodes a contiguous run of words starting at base,
// honoring @p/!p's "next word is a literal" rule so literal words are
// not mis-decoded as instructions.
func Disassemble(words []uint32, base uint32) []Line {
	out := make([]Line, 0, len(words))
	literalNext := false

	for i, w := range words {
		addr := base + uint32(i)
		if literalNext {
			v := w & word.WordMask
			out = append(out, Line{Addr: addr, Literal: &v})
			literalNext = false
			continue
		}

		slots := word.Disassemble(w ^ word.Mask)
		nextP := addr + 1
		texts := make([]string, 0, 4)
		for si := 0; si < 4; si++ {
			s := slots[si]
			texts = append(texts, slotText(si, s, nextP))
			if si < 3 && (word.NeedsAddress(s.Op) || word.Terminates(s.Op)) {
				if word.Terminates(s.Op) {
					literalNext = true
				}
				break
			}
		}
		out = append(out, Line{Addr: addr, Slots: texts})
	}
	return out
}

// slotText formats one decoded slot, resolving jump/call/next/if/-if
// targets against the word's post-fetch program counter (the word's own
// address plus one) per the slot's preserved-PC mask.
func slotText(slotIndex int, s word.Slot, nextP uint32) string {
	mnem := word.Mnemonic[s.Op]
	if !word.NeedsAddress(s.Op) {
		return mnem
	}
	switch s.Op {
	case word.OpJump, word.OpCall, word.OpNext, word.OpIf, word.OpMinusIf:
		target := word.BranchTarget(slotIndex, nextP, s.Addr)
		return fmt.Sprintf("%s %d", mnem, target)
	default: // ret, ex, unext: the address field is decoded but unused
		return mnem
	}
}
