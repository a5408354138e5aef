/*
 * GA144 - Two-pass assembler.
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

// Package assemble implements the GA144 assembler: source text is
// tokenized, then scanned once, greedily packing opcodes into the four
// slots of each word (honoring per-slot address widths and the @p/!p
// literal-word rule) and recording labels as they are defined; branches
// to labels not yet defined are patched when their node section ends.
package assemble

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/greenarrays/ga144/internal/loader"
	"github.com/greenarrays/ga144/internal/port"
	"github.com/greenarrays/ga144/internal/word"
)

// Diagnostic mirrors loader.Diagnostic; kept as a distinct type so this
// package does not force every caller to import loader just to build one.
type Diagnostic = loader.Diagnostic

// portNames lets source text spell a neighbor-port literal by name
// instead of its raw address, the mirror image of disassemble's
// symbolic substitution.
var portNames = map[string]uint32{
	"io": port.AddrIO, "right": port.AddrRight, "left": port.AddrLeft,
	"up": port.AddrUp, "down": port.AddrDown, "io3": port.AddrRDLU,
}

// token is one lexical unit of source text, with its source position
// for diagnostics.
type token struct {
	text      string
	line, col int
}

// lex splits source into whitespace-separated tokens, stripping "\"
// line comments, and records each token's 1-based line and column.
func lex(source string) []token {
	var toks []token
	lines := strings.Split(source, "\n")
	for li, raw := range lines {
		line := raw
		if idx := strings.Index(line, "\\"); idx >= 0 {
			line = line[:idx]
		}
		col := 0
		for col < len(line) {
			for col < len(line) && isSpace(line[col]) {
				col++
			}
			if col >= len(line) {
				break
			}
			start := col
			for col < len(line) && !isSpace(line[col]) {
				col++
			}
			toks = append(toks, token{text: line[start:col], line: li + 1, col: start + 1})
		}
	}
	return toks
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' }

// forwardPatch records an unresolved if/while branch's slot, waiting
// for a matching then/end to supply its target address.
type forwardPatch struct {
	kind     string // "if" or "while"
	wordAddr uint32
}

// loopMark records a begin/for loop's entry address.
type loopMark struct {
	kind string // "begin" or "for"
	addr uint32
}

// pendingBranch is a jump/call/next whose label operand had not yet
// been defined when it was encountered; resolved once its node's
// source has been fully scanned.
type pendingBranch struct {
	tok    token
	op     word.Opcode
	label  string
	wordAt uint32
}

// builder assembles one node's source into a CompiledNode.
type builder struct {
	coord uint16
	mem   [64]*uint32
	cur   uint32 // next word address to fill
	slots      [4]word.Slot
	filled     int
	terminated bool

	entry, a, b, io *uint32
	stack           []uint32

	loops   []loopMark
	patches []forwardPatch

	errs []Diagnostic
}

func newBuilder(coord uint16) *builder {
	return &builder{coord: coord}
}

func (b *builder) errorf(t token, format string, args ...interface{}) {
	b.errs = append(b.errs, Diagnostic{Line: t.line, Col: t.col, Message: fmt.Sprintf(format, args...)})
}

// flush assembles whatever slots have been filled so far into a word,
// XORs it as an instruction word, stores it, and advances the cursor.
func (b *builder) flush() {
	if b.filled == 0 && !b.terminated {
		return
	}
	full := [4]word.Slot{word.EmptySlot, word.EmptySlot, word.EmptySlot, word.EmptySlot}
	copy(full[:], b.slots[:b.filled])
	w, err := word.Assemble(full)
	if err == nil {
		w ^= word.Mask
		v := w
		if b.cur < 64 {
			b.mem[b.cur] = &v
		}
	}
	b.cur++
	b.filled = 0
	b.terminated = false
	b.slots = [4]word.Slot{}
}

// legalSlot3 reports whether op is one of the eight opcodes slot 3's
// 3-bit field can represent (the even-valued opcodes 0-14); the
// hardware has no room there for the other 24.
func legalSlot3(op word.Opcode) bool {
	return op%2 == 0 && op <= 14
}

// place adds a non-addressed opcode slot, flushing and starting a new
// word first if the current word already terminated or is full, or if
// the only slot left (3) cannot represent this opcode.
func (b *builder) place(s word.Slot) (wordAddr uint32, slotIndex int) {
	if b.terminated || b.filled >= 4 {
		b.flush()
	}
	if b.filled == 3 && !legalSlot3(s.Op) {
		b.flush()
	}
	wordAddr = b.cur
	slotIndex = b.filled
	b.slots[b.filled] = s
	b.filled++
	if word.NeedsAddress(s.Op) || word.Terminates(s.Op) {
		b.terminated = true
	}
	if b.terminated || b.filled >= 4 {
		b.flush()
	}
	return wordAddr, slotIndex
}

// placeBranch places a needs-address opcode whose target is already
// known (a backward reference), choosing whether it fits the current
// slot's address width and falling back to a fresh word's wide slot 0
// otherwise.
func (b *builder) placeBranch(t token, op word.Opcode, target uint32) {
	if b.terminated || b.filled >= 4 {
		b.flush()
	}
	if b.filled == 3 && !legalSlot3(op) {
		b.flush()
	}
	slotIndex := b.filled
	if b.fitsHere(slotIndex, target) {
		b.slots[b.filled] = word.Slot{Op: op, Addr: target & slotMask(slotIndex)}
		b.filled++
		b.terminated = true
		b.flush()
		return
	}
	// Doesn't fit at the current slot position: start a fresh word and
	// use its widest slot.
	b.flush()
	if b.fitsHere(0, target) {
		b.slots[0] = word.Slot{Op: op, Addr: target & slotMask(0)}
		b.filled = 1
		b.terminated = true
		b.flush()
		return
	}
	b.errorf(t, "address %d unreachable from word %d (preserved PC bits differ)", target, b.cur)
	b.slots[0] = word.Slot{Op: op, Addr: 0}
	b.filled = 1
	b.terminated = true
	b.flush()
}

// placeForwardBranch places an if/while opcode whose target is not yet
// known, always in a fresh word's slot 0 (the widest field, so the
// eventual patch is guaranteed to fit whatever the later target turns
// out to be within this node's address space).
func (b *builder) placeForwardBranch(op word.Opcode) uint32 {
	b.flush()
	wordAddr := b.cur
	b.slots[0] = word.Slot{Op: op, Addr: 0}
	b.filled = 1
	b.terminated = true
	b.flush()
	return wordAddr
}

// patch re-resolves an already-flushed word's slot-0 address field now
// that its target is known, by re-assembling and re-XORing it.
func (b *builder) patch(t token, wordAddr uint32, op word.Opcode, target uint32) {
	if wordAddr >= 64 {
		return
	}
	if !fitsAt(wordAddr, 0, target) {
		b.errorf(t, "branch target %d unreachable from word %d", target, wordAddr)
		return
	}
	full := [4]word.Slot{{Op: op, Addr: target & slotMask(0)}, word.EmptySlot, word.EmptySlot, word.EmptySlot}
	w, err := word.Assemble(full)
	if err != nil {
		b.errorf(t, "%v", err)
		return
	}
	w ^= word.Mask
	b.mem[wordAddr] = &w
}

func slotMask(i int) uint32 {
	switch i {
	case 0:
		return 0x3FF
	case 1:
		return 0xFF
	case 2:
		return 0x7
	default:
		return 0
	}
}

// fitsHere reports whether target is reachable from a branch placed at
// slotIndex of the word about to be fetched at b.cur: the preserved
// high bits of the post-fetch PC (b.cur+1) must already equal target's.
func (b *builder) fitsHere(slotIndex int, target uint32) bool {
	return fitsAt(b.cur, slotIndex, target)
}

// fitsAt is fitsHere generalized to an arbitrary word address, used by
// patch to re-check a branch that was emitted earlier at wordAddr.
func fitsAt(wordAddr uint32, slotIndex int, target uint32) bool {
	p := wordAddr + 1
	addr := target & slotMask(slotIndex)
	return word.BranchTarget(slotIndex, p, addr) == target
}

// placeLiteral stores a raw 18-bit data word (no XOR) at the next
// address; used for the word following an @p/!p.
func (b *builder) placeLiteral(v uint32) {
	v &= word.WordMask
	if b.cur < 64 {
		b.mem[b.cur] = &v
	}
	b.cur++
}

// Assemble compiles source text into a CompiledProgram, one
// CompiledNode per "node N" section. Diagnostics are collected, never
// fatal: a malformed line is skipped and assembly continues.
func Assemble(source string) loader.CompiledProgram {
	toks := lex(source)
	var prog loader.CompiledProgram

	var cur *builder
	labels := map[string]uint32{} // label name -> word address, this node only
	var deferred []pendingBranch

	finishNode := func() {
		if cur == nil {
			return
		}
		for _, pb := range deferred {
			target, ok := labels[pb.label]
			if !ok {
				cur.errorf(pb.tok, "undefined label %q", pb.label)
				continue
			}
			cur.patch(pb.tok, pb.wordAt, pb.op, target)
		}
		deferred = nil
		cur.flush()
		node := loader.CompiledNode{Coord: cur.coord, Mem: cur.mem, Len: 64, P: cur.entry, A: cur.a, B: cur.b, IO: cur.io, Stack: cur.stack}
		prog.Nodes = append(prog.Nodes, node)
		prog.Errors = append(prog.Errors, cur.errs...)
		cur = nil
		labels = map[string]uint32{}
	}

	i := 0
	for i < len(toks) {
		t := toks[i]
		switch t.text {
		case "node":
			finishNode()
			i++
			if i >= len(toks) {
				prog.Errors = append(prog.Errors, Diagnostic{Line: t.line, Col: t.col, Message: "node: missing coordinate"})
				continue
			}
			n, err := strconv.Atoi(toks[i].text)
			if err != nil {
				prog.Errors = append(prog.Errors, Diagnostic{Line: toks[i].line, Col: toks[i].col, Message: "node: invalid coordinate " + toks[i].text})
				i++
				continue
			}
			cur = newBuilder(uint16(n))
			i++
			continue
		case "org":
			i++
			if cur == nil || i >= len(toks) {
				continue
			}
			n, err := strconv.Atoi(toks[i].text)
			if err != nil {
				cur.errorf(toks[i], "org: invalid address %q", toks[i].text)
				i++
				continue
			}
			cur.flush()
			cur.cur = uint32(n)
			i++
			continue
		case "entry":
			i++
			if cur == nil || i >= len(toks) {
				continue
			}
			n, err := strconv.Atoi(toks[i].text)
			if err != nil {
				cur.errorf(toks[i], "entry: invalid address %q", toks[i].text)
				i++
				continue
			}
			v := uint32(n)
			cur.entry = &v
			i++
			continue
		case "seta", "setb", "setio":
			kind := t.text
			i++
			if cur == nil || i >= len(toks) {
				continue
			}
			n, ok := parseLiteral(toks[i].text)
			if !ok {
				cur.errorf(toks[i], "%s: invalid value %q", kind, toks[i].text)
				i++
				continue
			}
			v := n
			switch kind {
			case "seta":
				cur.a = &v
			case "setb":
				cur.b = &v
			case "setio":
				cur.io = &v
			}
			i++
			continue
		case "stack":
			i++
			for cur != nil && i < len(toks) {
				n, ok := parseLiteral(toks[i].text)
				if !ok {
					break
				}
				cur.stack = append(cur.stack, n)
				i++
			}
			continue
		case "warm":
			if cur != nil {
				cur.placeBranch(t, word.OpCall, 0x0A9)
			}
			i++
			continue
		case "for":
			if cur != nil {
				cur.place(word.Slot{Op: word.OpPush})
				cur.flush()
				cur.loops = append(cur.loops, loopMark{kind: "for", addr: cur.cur})
			}
			i++
			continue
		case "next":
			if cur != nil {
				if len(cur.loops) == 0 || cur.loops[len(cur.loops)-1].kind != "for" {
					cur.errorf(t, "next without matching for")
				} else {
					m := cur.loops[len(cur.loops)-1]
					cur.loops = cur.loops[:len(cur.loops)-1]
					cur.placeBranch(t, word.OpNext, m.addr)
				}
			}
			i++
			continue
		case "begin":
			if cur != nil {
				cur.flush()
				cur.loops = append(cur.loops, loopMark{kind: "begin", addr: cur.cur})
			}
			i++
			continue
		case "until":
			if cur != nil {
				if len(cur.loops) == 0 || cur.loops[len(cur.loops)-1].kind != "begin" {
					cur.errorf(t, "until without matching begin")
				} else {
					m := cur.loops[len(cur.loops)-1]
					cur.loops = cur.loops[:len(cur.loops)-1]
					cur.placeBranch(t, word.OpMinusIf, m.addr)
				}
			}
			i++
			continue
		case "while":
			if cur != nil {
				if len(cur.loops) == 0 || cur.loops[len(cur.loops)-1].kind != "begin" {
					cur.errorf(t, "while without matching begin")
				} else {
					wordAt := cur.placeForwardBranch(word.OpIf)
					cur.patches = append(cur.patches, forwardPatch{kind: "while", wordAddr: wordAt})
				}
			}
			i++
			continue
		case "end":
			if cur != nil {
				if len(cur.patches) == 0 || cur.patches[len(cur.patches)-1].kind != "while" ||
					len(cur.loops) == 0 || cur.loops[len(cur.loops)-1].kind != "begin" {
					cur.errorf(t, "end without matching begin/while")
				} else {
					patch := cur.patches[len(cur.patches)-1]
					cur.patches = cur.patches[:len(cur.patches)-1]
					loopStart := cur.loops[len(cur.loops)-1]
					cur.loops = cur.loops[:len(cur.loops)-1]
					cur.placeBranch(t, word.OpJump, loopStart.addr)
					cur.patch(t, patch.wordAddr, word.OpIf, cur.cur)
				}
			}
			i++
			continue
		case "if":
			if cur != nil {
				wordAt := cur.placeForwardBranch(word.OpIf)
				cur.patches = append(cur.patches, forwardPatch{kind: "if", wordAddr: wordAt})
			}
			i++
			continue
		case "-if":
			// Takes a label or numeric target like jump and call; the
			// begin/until sugar above covers the common loop case.
			i++
			if cur != nil && i < len(toks) {
				resolveBranchOperand(cur, toks[i], word.OpMinusIf, labels, &deferred)
				i++
			}
			continue
		case "then":
			if cur != nil {
				if len(cur.patches) == 0 || cur.patches[len(cur.patches)-1].kind != "if" {
					cur.errorf(t, "then without matching if")
				} else {
					patch := cur.patches[len(cur.patches)-1]
					cur.patches = cur.patches[:len(cur.patches)-1]
					cur.flush()
					cur.patch(t, patch.wordAddr, word.OpIf, cur.cur)
				}
			}
			i++
			continue
		}

		if strings.HasSuffix(t.text, ":") && len(t.text) > 1 {
			if cur != nil {
				cur.flush()
				labels[t.text[:len(t.text)-1]] = cur.cur
			}
			i++
			continue
		}

		if op, ok := word.Lookup(t.text); ok && cur != nil {
			switch op {
			case word.OpJump, word.OpCall, word.OpNext:
				i++
				if i >= len(toks) {
					cur.errorf(t, "%s: missing target operand", t.text)
					continue
				}
				resolveBranchOperand(cur, toks[i], op, labels, &deferred)
				i++
				continue
			case word.OpFetchP, word.OpStoreP:
				cur.place(word.Slot{Op: op})
				i++
				if i >= len(toks) {
					cur.errorf(t, "%s: missing literal operand", t.text)
					continue
				}
				v, ok := parseLiteral(toks[i].text)
				if !ok {
					cur.errorf(toks[i], "invalid literal %q", toks[i].text)
				} else {
					cur.placeLiteral(v)
				}
				i++
				continue
			default:
				cur.place(word.Slot{Op: op})
				i++
				continue
			}
		}

		if cur != nil {
			cur.errorf(t, "unrecognized token %q", t.text)
		} else {
			prog.Errors = append(prog.Errors, Diagnostic{Line: t.line, Col: t.col, Message: fmt.Sprintf("token %q outside any node section", t.text)})
		}
		i++
	}
	finishNode()
	return prog
}

// resolveBranchOperand places a jump/call/-if opcode whose operand is
// either a label (possibly still forward) or a bare numeric address.
// A "next" token never reaches it: it always closes a for loop.
func resolveBranchOperand(b *builder, t token, op word.Opcode, labels map[string]uint32, deferred *[]pendingBranch) {
	if n, ok := parseLiteral(t.text); ok {
		b.placeBranch(t, op, n)
		return
	}
	if target, ok := labels[t.text]; ok {
		b.placeBranch(t, op, target)
		return
	}
	// Forward reference: reserve a fresh word now, patch it once the
	// whole node has been scanned and every label is known.
	wordAt := b.placeForwardBranch(op)
	*deferred = append(*deferred, pendingBranch{tok: t, op: op, label: t.text, wordAt: wordAt})
}

// parseLiteral accepts a decimal integer, a 0x-prefixed hex integer, or
// a symbolic port name.
func parseLiteral(s string) (uint32, bool) {
	if v, ok := portNames[s]; ok {
		return v, true
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, false
		}
		return uint32(n), true
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n < 0 {
		return 0, false
	}
	return uint32(n), true
}
