/*
 * GA144 - Instruction word codec.
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

// Package word implements the GA144 F18A instruction word codec: packing
// and unpacking up to four opcodes into an 18-bit word, honoring the
// per-slot address field widths.
package word

import (
	"errors"
	"fmt"
)

// Errors returned by Assemble.
var (
	ErrInvalidOpcode  = errors.New("word: invalid opcode")
	ErrAddressTooWide = errors.New("word: address too wide for slot")
)

const (
	// Mask is XOR-ed into instruction words when they are fetched from
	// or stored to memory. The all-empty word encodes to this value.
	Mask uint32 = 0x15555

	// ResetPattern is the value RAM is filled with on reset; it decodes
	// (after XOR) to "call 0x0AA", the warm entry vector.
	ResetPattern uint32 = 0x134A9

	// WordMask keeps a value to 18 bits.
	WordMask uint32 = 0x3FFFF
)

// Opcode identifies one of the 32 F18A opcodes by its table index.
type Opcode uint8

// The 32 F18A opcodes, indexed as the hardware decodes them.
const (
	OpRet     Opcode = 0
	OpEx      Opcode = 1
	OpJump    Opcode = 2
	OpCall    Opcode = 3
	OpUnext   Opcode = 4
	OpNext    Opcode = 5
	OpIf      Opcode = 6
	OpMinusIf Opcode = 7
	OpFetchP  Opcode = 8
	OpFetchPlus Opcode = 9
	OpFetchB  Opcode = 10
	OpFetch   Opcode = 11
	OpStoreP  Opcode = 12
	OpStorePlus Opcode = 13
	OpStoreB  Opcode = 14
	OpStore   Opcode = 15
	OpMulStep Opcode = 16
	OpShl2    Opcode = 17
	OpShr2    Opcode = 18
	OpNot     Opcode = 19
	OpPlus    Opcode = 20
	OpAnd     Opcode = 21
	OpOr      Opcode = 22
	OpDrop    Opcode = 23
	OpDup     Opcode = 24
	OpPop     Opcode = 25
	OpOver    Opcode = 26
	OpA       Opcode = 27
	OpNop     Opcode = 28
	OpPush    Opcode = 29
	OpBStore  Opcode = 30
	OpAStore  Opcode = 31
)

// Mnemonic is the canonical assembler/disassembler text for each opcode.
var Mnemonic = map[Opcode]string{
	OpRet: ";", OpEx: "ex", OpJump: "jump", OpCall: "call",
	OpUnext: "unext", OpNext: "next", OpIf: "if", OpMinusIf: "-if",
	OpFetchP: "@p", OpFetchPlus: "@+", OpFetchB: "@b", OpFetch: "@",
	OpStoreP: "!p", OpStorePlus: "!+", OpStoreB: "!b", OpStore: "!",
	OpMulStep: "+*", OpShl2: "2*", OpShr2: "2/", OpNot: "-",
	OpPlus: "+", OpAnd: "and", OpOr: "or",
	OpDrop: "drop", OpDup: "dup", OpPop: "pop", OpOver: "over",
	OpA: "a", OpNop: ".", OpPush: "push", OpBStore: "b!", OpAStore: "a!",
}

// mnemonicToOp is the reverse of Mnemonic, built at init.
var mnemonicToOp = func() map[string]Opcode {
	m := make(map[string]Opcode, len(Mnemonic))
	for op, name := range Mnemonic {
		m[name] = op
	}
	return m
}()

// Lookup resolves a mnemonic to its opcode.
func Lookup(mnemonic string) (Opcode, bool) {
	op, ok := mnemonicToOp[mnemonic]
	return op, ok
}

// NeedsAddress reports whether the opcode consumes an address field when
// packed into slot 0, 1 or 2.
func NeedsAddress(op Opcode) bool {
	switch op {
	case OpRet, OpEx, OpJump, OpCall, OpUnext, OpNext, OpIf, OpMinusIf:
		return true
	default:
		return false
	}
}

// Terminates reports whether the opcode ends decoding of the current word:
// the next fetched word is a literal rather than a packed instruction.
func Terminates(op Opcode) bool {
	return op == OpFetchP || op == OpStoreP
}

// Slot-field widths and bit positions.
const (
	slot0Shift = 13
	slot1Shift = 8
	slot2Shift = 3

	slot0AddrMask uint32 = 0x3FF // 10 bits
	slot1AddrMask uint32 = 0xFF  // 8 bits
	slot2AddrMask uint32 = 0x7   // 3 bits

	opField5 uint32 = 0x1F // 5-bit opcode field (slots 0-2)
	opField3 uint32 = 0x7  // 3-bit opcode field (slot 3)
)

// Per-slot preserved-PC masks used when a jump/call's short address
// replaces only the low bits of the post-fetch program counter.
const (
	PreservedMaskSlot0 uint32 = 0x3FC00
	PreservedMaskSlot1 uint32 = 0x3FE00
	PreservedMaskSlot2 uint32 = 0x3FEF8
)

// ExtendedArithBit is bit 9 of a slot-0/1 jump/call short address; when
// set it engages the (otherwise unmodeled) extended-arithmetic flag.
const ExtendedArithBit uint32 = 0x0200

// Slot describes the content of a single instruction slot: an opcode,
// optionally with an address, or Empty for "." (nop-fill).
type Slot struct {
	Empty bool
	Op    Opcode
	Addr  uint32 // valid only when NeedsAddress(Op)
}

// EmptySlot is the "." filler slot.
var EmptySlot = Slot{Empty: true, Op: OpNop}

// SlotAddrWidth returns the address field width, in bits, for slot index i
// (0-2). Slot 3 is not addressable and returns 0.
func SlotAddrWidth(i int) int {
	switch i {
	case 0:
		return 10
	case 1:
		return 8
	case 2:
		return 3
	default:
		return 0
	}
}

// Assemble packs up to four slots into an 18-bit instruction word. Slots
// after an address-bearing or terminating opcode are ignored, per the
// hardware's own decode-termination rule; callers may still pass values
// there (e.g. EmptySlot) for symmetry with Disassemble.
func Assemble(slots [4]Slot) (uint32, error) {
	var word uint32

	op0 := opcodeOf(slots[0])
	word |= uint32(op0) << slot0Shift
	if !slots[0].Empty && terminatesDecode(slots[0]) {
		if NeedsAddress(op0) {
			addr, err := maskAddress(op0, 0, slots[0].Addr)
			if err != nil {
				return 0, err
			}
			word |= addr
		}
		return word, nil
	}

	op1 := opcodeOf(slots[1])
	word |= uint32(op1) << slot1Shift
	if !slots[1].Empty && terminatesDecode(slots[1]) {
		if NeedsAddress(op1) {
			addr, err := maskAddress(op1, 1, slots[1].Addr)
			if err != nil {
				return 0, err
			}
			word |= addr
		}
		return word, nil
	}

	op2 := opcodeOf(slots[2])
	word |= uint32(op2) << slot2Shift
	if !slots[2].Empty && terminatesDecode(slots[2]) {
		if NeedsAddress(op2) {
			addr, err := maskAddress(op2, 2, slots[2].Addr)
			if err != nil {
				return 0, err
			}
			word |= addr
		}
		return word, nil
	}

	// Slot 3's field is only 3 bits wide, selecting among the 8 even-valued
	// opcodes 0-14; an empty slot 3 packs as field 0, which disassembles
	// back to OpRet (the hardware has no distinct "nop" encoding here).
	if !slots[3].Empty {
		op3 := slots[3].Op
		if op3%2 != 0 || op3 > 14 {
			return 0, fmt.Errorf("%w: %s cannot occupy slot 3", ErrInvalidOpcode, Mnemonic[op3])
		}
		word |= (uint32(op3) >> 1) & opField3
	}

	return word, nil
}

func opcodeOf(s Slot) Opcode {
	if s.Empty {
		return OpNop
	}
	return s.Op
}

// terminatesDecode reports whether packing this slot ends the word: either
// it needs an address (later slots are unused) or it is a @p/!p-class op.
func terminatesDecode(s Slot) bool {
	return NeedsAddress(s.Op) || Terminates(s.Op)
}

func maskAddress(op Opcode, slotIndex int, addr uint32) (uint32, error) {
	var mask uint32
	switch slotIndex {
	case 0:
		mask = slot0AddrMask
	case 1:
		mask = slot1AddrMask
	case 2:
		mask = slot2AddrMask
	default:
		return 0, fmt.Errorf("%w: slot %d cannot carry an address", ErrInvalidOpcode, slotIndex)
	}
	if addr&^mask != 0 {
		return 0, fmt.Errorf("%w: address 0x%x exceeds slot %d width", ErrAddressTooWide, addr, slotIndex)
	}
	return addr & mask, nil
}

// Disassemble unpacks an 18-bit instruction word into its (up to four)
// slots. Slots that were unused because an earlier slot terminated decode
// are still reported, with whatever bits happened to occupy their field;
// callers that need to know decode actually stopped should consult
// NeedsAddress/Terminates on the earlier slot themselves.
func Disassemble(wordVal uint32) [4]Slot {
	wordVal &= WordMask

	op0 := Opcode((wordVal >> slot0Shift) & opField5)
	op1 := Opcode((wordVal >> slot1Shift) & opField5)
	op2 := Opcode((wordVal >> slot2Shift) & opField5)
	op3 := Opcode((wordVal & opField3) << 1)

	slots := [4]Slot{
		{Op: op0}, {Op: op1}, {Op: op2}, {Op: op3},
	}

	if NeedsAddress(op0) {
		slots[0].Addr = wordVal & slot0AddrMask
	}
	if NeedsAddress(op1) {
		slots[1].Addr = wordVal & slot1AddrMask
	}
	if NeedsAddress(op2) {
		slots[2].Addr = wordVal & slot2AddrMask
	}
	return slots
}

// BranchTarget applies the preserved-PC mask for slot i (0-2) to compute
// the effective jump/call target given the post-fetch program counter p
// and the short address field addr.
func BranchTarget(slotIndex int, p, addr uint32) uint32 {
	var preserved uint32
	switch slotIndex {
	case 0:
		preserved = PreservedMaskSlot0
	case 1:
		preserved = PreservedMaskSlot1
	default:
		preserved = PreservedMaskSlot2
	}
	return (p & preserved) | addr
}
