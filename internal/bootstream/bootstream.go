/*
 * GA144 - Serial boot-stream builder: path walking, per-node boot
 * payloads, and the wire-level byte encoding driven into a boot node's
 * pin17.
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

// Package bootstream builds the serial byte stream that loads a compiled
// program into the mesh without direct RAM injection: a single universal
// loader routine baked into every node's boot ROM, a per-node payload
// (relay loop, register descriptors, own code) relayed hop by hop along
// a fixed path starting at node 708, and the 18-bit-word <-> 3-byte wire
// encoding the chip drives into the entry node's pin17.
package bootstream

import (
	"fmt"

	"github.com/greenarrays/ga144/internal/loader"
	"github.com/greenarrays/ga144/internal/port"
	"github.com/greenarrays/ga144/internal/word"
)

// Magic identifies a boot stream's header word.
const Magic uint32 = 0xAE

// AddrBootSerial is a chip-level address, not a real neighbor port: the
// entry node's B is pointed at it before driving its pin17, so the
// loader ROM's @b reads pull reconstructed words from the live stream
// instead of the plain IO register. internal/chip resolves it specially;
// it lives here because only the boot-stream protocol gives it meaning.
const AddrBootSerial uint32 = 0x1C5

// EntryNode is the mesh coordinate spec.md's canonical boot path starts
// from; the only node whose serial pin an external driver wires up.
const EntryNode uint16 = 708

// path1Steps is the canonical boot-path direction sequence (spec.md
// §4.7.1), expressed in this package's own compass convention rather
// than spec prose's (which conflicts with port.Dir's row/col sense):
// East x9, North x7, West x17, three times (South x1, East x16, South
// x1, West x16), then South x1, East x7. Starting at node 708 this
// visits every one of the mesh's 144 cells exactly once, ending at 707.
func path1Steps() []port.Dir {
	var steps []port.Dir
	rep := func(d port.Dir, n int) {
		for i := 0; i < n; i++ {
			steps = append(steps, d)
		}
	}
	rep(port.East, 9)
	rep(port.North, 7)
	rep(port.West, 17)
	for i := 0; i < 3; i++ {
		rep(port.South, 1)
		rep(port.East, 16)
		rep(port.South, 1)
		rep(port.West, 16)
	}
	rep(port.South, 1)
	rep(port.East, 7)
	return steps
}

// Path1 walks the canonical path from node 708 and returns every
// coordinate it visits, in order, up to and including the last one
// present in nodes; earlier coordinates are kept even where nodes lacks
// them (spec.md §4.7.1: an implementation boots only as far down
// the path as it has targets for).
func Path1(nodes map[uint16]bool) []uint16 {
	coord := EntryNode
	full := []uint16{coord}
	for _, d := range path1Steps() {
		next, ok := port.Neighbor(coord, d)
		if !ok {
			break
		}
		coord = next
		full = append(full, coord)
	}
	last := -1
	for i, c := range full {
		if nodes[c] {
			last = i
		}
	}
	if last < 0 {
		return nil
	}
	return full[:last+1]
}

// asmWord packs slots into a word and XORs it into the "wire" form RAM
// and ROM store instruction words in (the same convention node.Refetch
// un-masks on fetch). Only valid for genuine instruction words; literal
// words (the data a @p/!p reads or writes) are stored unmasked instead,
// via the literal helper below.
func asmWord(slots ...word.Slot) uint32 {
	var full [4]word.Slot
	for i := range full {
		full[i] = word.EmptySlot
	}
	copy(full[:], slots)
	w, err := word.Assemble(full)
	if err != nil {
		panic(fmt.Sprintf("bootstream: assembling a fixed instruction word: %v", err))
	}
	return w ^ word.Mask
}

func literal(v uint32) uint32 { return v & word.WordMask }

// regWrite describes one step of a register-descriptor chain: push a
// literal via @p, then let op consume it off the data stack.
type regWrite struct {
	lit uint32
	op  word.Opcode
}

// regChain packs a sequence of @p-fed register writes into safely
// terminated words. Every opcode that packs into slots 0-2 without
// itself ending decode (a!, b!, !b, push, and so on) must still be
// followed by something that does, or the hardware falls through to
// slot 3's default field, which disassembles as ";" — an unintended
// return. regChain exploits the one terminator @p always gives for
// free: each write's consuming op shares a word with the next write's
// @p, whose own completion ends that word cleanly. A trailing @p 0
// absorbs the final op the same way; the pushed 0 is simply left on
// the data stack, harmless since nothing below it is read here.
func regChain(writes []regWrite) []uint32 {
	if len(writes) == 0 {
		return nil
	}
	out := []uint32{asmWord(word.Slot{Op: word.OpFetchP}), literal(writes[0].lit)}
	for i, w := range writes {
		next := uint32(0)
		if i+1 < len(writes) {
			next = writes[i+1].lit
		}
		out = append(out,
			asmWord(word.Slot{Op: w.op}, word.Slot{Op: word.OpFetchP}),
			literal(next),
		)
	}
	return out
}

// LoaderROMWords is the four-word routine every node's boot ROM carries
// at the boot entry address (chip.BootEntryP, 0xAA): read a count-1
// literal and then count words from whatever address B names,
// storing them into RAM from address 0; read one more word naming where
// within that freshly-loaded block execution should continue; and jump
// there via a register-indirect ex (P,R = R,P).
//
// A node reaches this entry two ways: driven there directly because its
// pin17 is wired to an external device (B pre-set to AddrBootSerial), or
// woken from its post-reset multiport listen once a neighbor starts
// relaying to it (B pre-set to port.AddrRDLU); the read that wakes it
// already delivers the count-1 word, so it enters at the first word's
// push rather than its @b. Either way B already names the right read
// source by the time this routine runs.
//
// The middle word opens with a drop that discards the throwaway literal
// the first word's trailing @p pushed (@p always needs a following
// action to hand off to; there is no bare "read a count, do nothing
// else" encoding). The same drop then rides along on every further pass
// of the unext loop it shares a word with — harmless, since nothing
// below the data stack's top is live at that depth in this routine.
//
// This is this implementation's own design, not a transcription of real
// GA144 boot-ROM microcode: no reference implementation for that exists
// in this repository's source material. See DESIGN.md.
func LoaderROMWords() [4]uint32 {
	return [4]uint32{
		asmWord(word.Slot{Op: word.OpFetchB}, word.Slot{Op: word.OpPush}, word.Slot{Op: word.OpFetchP}),
		literal(0),
		asmWord(word.Slot{Op: word.OpDrop}, word.Slot{Op: word.OpFetchB}, word.Slot{Op: word.OpStorePlus}, word.Slot{Op: word.OpUnext, Addr: 0}),
		asmWord(word.Slot{Op: word.OpFetchB}, word.Slot{Op: word.OpPush}, word.Slot{Op: word.OpEx}),
	}
}

// EncodeWord packs an 18-bit value into the three-byte inverted wire
// encoding spec.md §4.7.4 describes: the low two bits ride in byte 0
// alongside a fixed sync pattern, the next eight in byte 1, the top
// eight in byte 2, every byte inverted.
func EncodeWord(v uint32) [3]byte {
	v &= word.WordMask
	b0 := byte(((v<<6)&0xC0)|0x2D) ^ 0xFF
	b1 := byte((v>>2)&0xFF) ^ 0xFF
	b2 := byte((v>>10)&0xFF) ^ 0xFF
	return [3]byte{b0, b1, b2}
}

// DecodeWord is EncodeWord's inverse.
func DecodeWord(b0, b1, b2 byte) uint32 {
	r0 := b0 ^ 0xFF
	r1 := b1 ^ 0xFF
	r2 := b2 ^ 0xFF
	v := uint32(r0>>6)&0x3 | uint32(r1)<<2 | uint32(r2)<<10
	return v & word.WordMask
}

// EncodeWords packs a whole word sequence into its byte-stream form.
func EncodeWords(words []uint32) []byte {
	out := make([]byte, 0, 3*len(words))
	for _, w := range words {
		b := EncodeWord(w)
		out = append(out, b[0], b[1], b[2])
	}
	return out
}

// DecodeWords is EncodeWords' inverse; trailing bytes that don't fill a
// whole 3-byte group are dropped.
func DecodeWords(stream []byte) []uint32 {
	words := make([]uint32, 0, len(stream)/3)
	for i := 0; i+2 < len(stream); i += 3 {
		words = append(words, DecodeWord(stream[i], stream[i+1], stream[i+2]))
	}
	return words
}

// BootStream is a built boot payload: Words is the full word sequence
// (a 3-word header followed by the body), for introspection and
// round-trip tests. Bytes is the body alone, already encoded — what
// actually gets driven into the entry node's pin17; the header is
// host-side metadata the chip's own loader ROM never reads.
type BootStream struct {
	Words []uint32
	Bytes []byte
	Path  []uint16
}

// hopPlan holds one boot-path node's payload before the cross-hop relay
// lengths (which depend on every later hop) are known.
type hopPlan struct {
	coord       uint16
	startP      uint32
	ownCode     []uint32
	descriptors []uint32
	hasPump     bool
	headerLen   int // port-pump (0 or 7) + len(descriptors) + 1 (the jump)
	fragLen     int // len(ownCode) + headerLen
}

func planHop(cn loader.CompiledNode, hasPump bool) hopPlan {
	code := make([]uint32, cn.Len)
	for i := 0; i < cn.Len; i++ {
		if cn.Mem[i] != nil {
			code[i] = *cn.Mem[i]
		} else {
			code[i] = asmWord()
		}
	}

	// A and IO are written first since IO borrows B as a scratch pointer
	// to port.AddrIO; B's own descriptor (if any) runs last so the
	// node's final B register ends up as the caller's requested value
	// rather than being left pointing at the IO register.
	var writes []regWrite
	if cn.A != nil {
		writes = append(writes, regWrite{*cn.A, word.OpAStore})
	}
	if cn.IO != nil {
		writes = append(writes,
			regWrite{port.AddrIO, word.OpBStore},
			regWrite{*cn.IO, word.OpStoreB},
		)
	}
	if cn.B != nil {
		writes = append(writes, regWrite{*cn.B, word.OpBStore})
	}
	desc := regChain(writes)
	for _, v := range cn.Stack {
		// @p's completion pushes the literal it reads straight onto the
		// data stack; no further opcode is needed to load it, and @p
		// alone in a word always terminates decode on its own.
		desc = append(desc, asmWord(word.Slot{Op: word.OpFetchP}), literal(v))
	}

	pumpLen := 0
	if hasPump {
		pumpLen = 7 // regChain of 2 writes (6 words) + the relay loop word
	}
	headerLen := pumpLen + len(desc) + 1

	startP := uint32(0)
	if cn.P != nil {
		startP = *cn.P
	}

	return hopPlan{
		coord:       cn.Coord,
		startP:      startP,
		ownCode:     code,
		descriptors: desc,
		hasPump:     hasPump,
		headerLen:   headerLen,
		fragLen:     len(code) + headerLen,
	}
}

// buildFragment emits one hop's final RAM image: its own compiled code
// first (so its internally-assembled branch addresses, computed assuming
// RAM address 0 is the program's own origin, stay valid unmodified),
// then the port pump (if any), register descriptors, and the jump that
// hands off to the code now sitting at address 0.
func buildFragment(p hopPlan, forwardAddr uint32, relayLen int) []uint32 {
	frag := make([]uint32, 0, p.fragLen)
	frag = append(frag, p.ownCode...)

	if p.hasPump {
		frag = append(frag, regChain([]regWrite{
			{forwardAddr, word.OpAStore},
			{uint32(relayLen - 1), word.OpPush},
		})...)
		frag = append(frag, asmWord(word.Slot{Op: word.OpFetchB}, word.Slot{Op: word.OpStore}, word.Slot{Op: word.OpUnext, Addr: 0}))
	}

	frag = append(frag, p.descriptors...)
	frag = append(frag, asmWord(word.Slot{Op: word.OpJump, Addr: p.startP & 0x3FF}))
	return frag
}

// Build lays out program along the canonical boot path and produces the
// stream to drive into the entry node's pin17.
//
// Each hop's transmitted prefix is [count-1][fragment words][headerStart]:
// the loader ROM reads count words into RAM from address 0 (fragment's
// own code plus its port pump/descriptors/jump) then a further word,
// headerStart (= len(ownCode)), naming where execution should actually
// begin — the port pump if this hop relays onward, otherwise straight
// into descriptors/jump. A hop's port pump, once running, simply forwards
// the next relayLen words of the stream untouched to its downstream
// neighbor: every later hop's own wrapped prefix, back to back.
func Build(program loader.CompiledProgram) (BootStream, error) {
	byCoord := make(map[uint16]loader.CompiledNode, len(program.Nodes))
	present := make(map[uint16]bool, len(program.Nodes))
	for _, cn := range program.Nodes {
		byCoord[cn.Coord] = cn
		present[cn.Coord] = true
	}

	path := Path1(present)
	if len(path) == 0 {
		return BootStream{}, fmt.Errorf("bootstream: no compiled node lies on the boot path from node %d", EntryNode)
	}

	plans := make([]hopPlan, len(path))
	for i, coord := range path {
		cn, ok := byCoord[coord]
		if !ok {
			return BootStream{}, fmt.Errorf("bootstream: node %d is on the boot path but has no compiled program", coord)
		}
		plans[i] = planHop(cn, i < len(path)-1)
	}

	wrapped := make([]int, len(plans))
	for i, p := range plans {
		wrapped[i] = p.fragLen + 2 // count-1 word + headerStart word
	}
	suffix := make([]int, len(plans)+1)
	for i := len(plans) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] + wrapped[i]
	}

	var body []uint32
	for i, p := range plans {
		relayLen := suffix[i+1]
		var forwardAddr uint32
		if p.hasPump {
			d, ok := port.DirectionBetween(p.coord, path[i+1])
			if !ok {
				return BootStream{}, fmt.Errorf("bootstream: path nodes %d and %d are not mesh neighbors", p.coord, path[i+1])
			}
			forwardAddr = port.DirAddr(p.coord, d)
		}

		frag := buildFragment(p, forwardAddr, relayLen)
		body = append(body, uint32(len(frag)-1))
		body = append(body, frag...)
		body = append(body, uint32(len(p.ownCode)))
	}

	var firstAddr uint32
	if len(path) > 1 {
		d, ok := port.DirectionBetween(path[0], path[1])
		if !ok {
			return BootStream{}, fmt.Errorf("bootstream: entry node %d and %d are not mesh neighbors", path[0], path[1])
		}
		firstAddr = port.DirAddr(path[0], d)
	}

	words := make([]uint32, 0, 3+len(body))
	words = append(words, Magic, firstAddr, uint32(len(body)))
	words = append(words, body...)

	return BootStream{
		Words: words,
		Bytes: EncodeWords(body),
		Path:  path,
	}, nil
}

// DecodeHeader reads back the 3-word header Build prefixes its Words
// with, for round-trip tests; it has no bearing on what actually gets
// driven into the chip (see BootStream.Bytes).
func DecodeHeader(words []uint32) (magic, firstAddr uint32, bodyLen int, ok bool) {
	if len(words) < 3 || words[0] != Magic {
		return 0, 0, 0, false
	}
	return words[0], words[1], int(words[2]), true
}
