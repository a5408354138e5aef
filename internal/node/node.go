/*
 * GA144 - F18A single-core fetch/decode/execute engine.
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

// Package node implements a single F18A core: its register file, its 64
// words of RAM and 64 words of ROM, and the fetch/decode/execute step for
// the 32-opcode instruction set. A node knows nothing about its neighbors;
// port/IO addresses are resolved by the caller through the MemAccess
// interface, which the chip orchestrator implements.
package node

import (
	"github.com/greenarrays/ga144/internal/stack"
	"github.com/greenarrays/ga144/internal/word"
)

// State is one of the four states a node can be in.
type State uint8

const (
	Running State = iota
	BlockedRead
	BlockedWrite
	Suspended
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case BlockedRead:
		return "blocked_read"
	case BlockedWrite:
		return "blocked_write"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Address-space layout constants, all within the 9-bit (0-0x1FF) space
// addressable by P, A and B.
const (
	RAMSize    = 64
	ROMSize    = 64
	IOBit      = 0x100
	ROMBit     = 0x080
	AddrMask9  = 0x1FF
	FlagBit9   = 0x200 // extended-arithmetic flag, preserved across increments
	AddrMask10 = 0x3FF

	// DefaultB is the B register's reset value: the IO port address.
	DefaultB uint32 = 0x15D
)

// MemAccess resolves any access to an address with bit 8 set (the IO/port
// region). Implemented by the chip orchestrator, which owns the port
// fabric and can see every node's IO register. completed=false means the
// node must block and retry the identical access on a later step.
type MemAccess interface {
	Access(coord uint16, addr uint32, isWrite bool, value uint32, isRetry bool) (result uint32, completed bool)
}

// pendingAccess remembers an in-flight IO/port operation across blocked
// retries so the instruction is not re-evaluated from scratch.
type pendingAccess struct {
	addr    uint32
	isWrite bool
	value   uint32 // value to write; unused for reads
	src     regSrc // which register supplied addr, for the post-increment

	// synthetic marks a pending access ForceBlockedRead installed rather
	// than one a real decoded instruction issued. There is no packed
	// slot behind it to resume into, so completing it does not go
	// through finishAccess at all: it pushes the result, switches B to
	// wakeB (the address the node should treat as its read source from
	// now on) and refetches, landing P at the loader ROM entry. Decode
	// resumes at slot 1 of that word: the read that woke the node has
	// already delivered the word the entry's opening @b would read.
	synthetic bool
	wakeB     uint32
}

type regSrc uint8

const (
	srcNone regSrc = iota
	srcP
	srcA
	srcB
)

// Node is one F18A core.
type Node struct {
	Coord uint16

	P    uint32
	I    uint32
	Slot int
	A    uint32
	B    uint32
	T    uint32
	S    uint32
	R    uint32
	IO   uint32

	D   stack.Stack
	Rst stack.Stack

	RAM [RAMSize]uint32
	ROM [ROMSize]uint32

	State       State
	BlockedPort uint32 // address being retried, valid when State != Running

	ExtendedArith bool // bit 9 of a decoded jump/call short address; unused otherwise

	// Pin17 is non-nil on the handful of boot nodes that expose the
	// async boot ROM's serial pin in IO bit 17 (see node 708 in spec).
	Pin17 *bool

	// IOWriteMask limits which IO register bits a write actually
	// changes, modeling per-node pin capability. Default: all bits.
	IOWriteMask uint32
	// IOIdleBits are OR-ed into IO reads, modeling undriven default levels.
	IOIdleBits uint32

	LastOpcode    word.Opcode // observability only, per SPEC_FULL.md
	LastFetchAddr uint32      // address Refetch last loaded I from; used by breakpoints
	StepCount     uint64      // instruction count; does not advance while blocked

	pending pendingAccess
}

// NewNode returns a node with registers at their reset defaults. It does
// not perform the initial fetch; callers (the chip orchestrator) do that
// uniformly across all 144 nodes after setting P.
func NewNode(coord uint16) *Node {
	n := &Node{
		Coord:       coord,
		B:           DefaultB,
		IOWriteMask: word.WordMask,
	}
	n.Reset()
	return n
}

// ForceBlockedRead installs a pending read on addr without going through
// the normal decode/execute path. The chip orchestrator uses this once,
// immediately after reset, to put every non-boot node into blocked_read
// on the four-way multiport per spec.md §3.3 — a state no ordinary
// instruction decode produces, since the node has not executed anything
// yet. wakeB is the value B takes on the moment this access completes,
// so the loader ROM the node wakes into reads from the right source.
func (n *Node) ForceBlockedRead(addr uint32, wakeB uint32) {
	n.pending = pendingAccess{addr: addr, isWrite: false, src: srcNone, synthetic: true, wakeB: wakeB}
	n.State = BlockedRead
	n.BlockedPort = addr
}

// Reset restores registers, memory and stacks to their post-reset values.
// P is left at 0 here; the chip orchestrator sets it to the boot or warm
// entry vector and performs the initial fetch.
func (n *Node) Reset() {
	n.P = 0
	n.I = 0
	n.Slot = 0
	n.A = 0
	n.B = DefaultB
	n.T = word.Mask
	n.S = word.Mask
	n.R = word.Mask
	n.IO = word.Mask
	n.D = stack.New(word.Mask)
	n.Rst = stack.New(word.Mask)
	for i := range n.RAM {
		n.RAM[i] = word.ResetPattern
	}
	n.State = Running
	n.BlockedPort = 0
	n.ExtendedArith = false
	n.StepCount = 0
	n.pending = pendingAccess{}
}

// Refetch loads I from mem[P], applying the instruction XOR mask, and
// advances P and resets the slot index. Exported so the orchestrator can
// perform the post-reset "warm up" fetch described in spec.md §4.4.
func (n *Node) Refetch() {
	raw, isIO := n.memRead(n.P)
	if isIO {
		raw = n.IO
	}
	n.I = raw ^ word.Mask
	n.LastFetchAddr = n.P
	n.P = incrAddr10(n.P)
	n.Slot = 0
}

// PushData pushes v onto the data stack, as the loader does when
// populating a node's initial stack contents.
func (n *Node) PushData(v uint32) { n.pushD(v) }

// PopData pops the data stack.
func (n *Node) PopData() uint32 { return n.popD() }

func incrCore9(v uint32) uint32 {
	flag := v & FlagBit9
	a := v & AddrMask9
	switch {
	case a&IOBit != 0:
		return flag | a
	case a&ROMBit != 0:
		return flag | ROMBit | ((a + 1) & 0x7F)
	default:
		return flag | ((a + 1) & 0x7F)
	}
}

// incrAddr10 applies the RAM/ROM/IO increment rule to a 10-bit register
// (P), preserving the extended-arithmetic flag at bit 9.
func incrAddr10(v uint32) uint32 {
	return incrCore9(v & AddrMask10)
}

// incrAddr18 applies the same increment rule to the low 9 bits (plus
// flag) of an 18-bit register (A), preserving its untouched high bits.
func incrAddr18(v uint32) uint32 {
	return (v &^ AddrMask10) | incrCore9(v&AddrMask10)
}

// memRead reads RAM or ROM directly; isIO reports that the address falls
// in the IO/port region and must be resolved by the caller instead.
func (n *Node) memRead(addr uint32) (value uint32, isIO bool) {
	a := addr & AddrMask9
	switch {
	case a&IOBit != 0:
		return 0, true
	case a&ROMBit != 0:
		return n.ROM[a&0x3F], false
	default:
		return n.RAM[a&0x3F], false
	}
}

// memWrite writes RAM directly (ROM is read-only and silently ignores
// writes); isIO reports the address must be resolved by the caller.
func (n *Node) memWrite(addr, value uint32) (isIO bool) {
	a := addr & AddrMask9
	switch {
	case a&IOBit != 0:
		return true
	case a&ROMBit != 0:
		return false
	default:
		n.RAM[a&0x3F] = value & word.WordMask
		return false
	}
}

// ReadIO returns the node's IO register as observed through a read,
// mixing in idle bits and (when wired) the live serial pin level.
func (n *Node) ReadIO() uint32 {
	v := (n.IO | n.IOIdleBits) & word.WordMask
	if n.Pin17 != nil {
		v &^= 1 << 17
		if *n.Pin17 {
			v |= 1 << 17
		}
	}
	return v
}

// WriteIO updates the node's IO register, masking to the bits this node's
// pins can actually drive.
func (n *Node) WriteIO(value uint32) {
	n.IO = (n.IO &^ n.IOWriteMask) | (value & n.IOWriteMask)
}

func (n *Node) pushD(v uint32) {
	n.D.Push(n.S)
	n.S = n.T
	n.T = v
}

func (n *Node) popD() uint32 {
	v := n.T
	n.T = n.S
	n.S = n.D.Pop()
	return v
}

func (n *Node) pushR(v uint32) {
	n.Rst.Push(n.R)
	n.R = v
}

func (n *Node) popR() uint32 {
	v := n.R
	n.R = n.Rst.Pop()
	return v
}

// advance moves to the next slot, refetching when slot 4 is reached.
func (n *Node) advance() {
	n.Slot++
	if n.Slot >= 4 {
		n.Refetch()
	}
}

func addrMaskFor(src regSrc, n *Node) uint32 {
	switch src {
	case srcP:
		return n.P
	case srcA:
		return n.A
	case srcB:
		return n.B
	default:
		return 0
	}
}

func (n *Node) postIncrement(src regSrc) {
	switch src {
	case srcP:
		n.P = incrAddr10(n.P)
	case srcA:
		n.A = incrAddr18(n.A)
	}
}

// Step executes exactly one slot of the current instruction (or, if the
// node is blocked on a port/IO operation, attempts to complete that
// operation). It returns true if the node made forward progress this
// call (its local StepCount advanced).
func (n *Node) Step(mem MemAccess) bool {
	if n.State == Suspended {
		return false
	}
	if n.State == BlockedRead || n.State == BlockedWrite {
		return n.retryPending(mem)
	}

	op := n.decodeCurrentSlot()
	n.LastOpcode = op
	return n.execute(op, mem)
}

func (n *Node) decodeCurrentSlot() word.Opcode {
	slots := word.Disassemble(n.I)
	return slots[n.Slot].Op
}

func (n *Node) currentAddr() uint32 {
	slots := word.Disassemble(n.I)
	return slots[n.Slot].Addr
}

// retryPending re-attempts a previously-blocked IO/port access. On
// success it finishes the instruction (pop/push + increment + advance);
// on failure the node stays blocked and StepCount does not move.
func (n *Node) retryPending(mem MemAccess) bool {
	result, completed := mem.Access(n.Coord, n.pending.addr, n.pending.isWrite, n.pending.value, true)
	if !completed {
		return false
	}
	if n.pending.synthetic {
		n.pushD(result)
		n.B = n.pending.wakeB
		n.Refetch()
		n.Slot = 1
	} else {
		n.finishAccess(n.pending.isWrite, n.pending.src, result)
	}
	n.State = Running
	n.StepCount++
	return true
}

// finishAccess completes a memory/IO operation that just produced result
// (ignored for writes, whose data-stack pop already happened when the
// write was issued): push for reads, post-increment, and either re-fetch
// (for the @p/!p pair, which occupy a word alone and leave nothing live
// in its later slots) or advance to the next packed slot.
func (n *Node) finishAccess(isWrite bool, src regSrc, result uint32) {
	if !isWrite {
		n.pushD(result)
	}
	n.postIncrement(src)
	if src == srcP {
		n.Refetch()
	} else {
		n.advance()
	}
}

// beginAccess performs (or parks) one memory/IO operation. A write pops
// its value off the data stack immediately, win or block: the instruction
// has committed to consuming T whether or not the port accepts it yet.
func (n *Node) beginAccess(src regSrc, isWrite bool, mem MemAccess) bool {
	addr := addrMaskFor(src, n)
	var value uint32
	if isWrite {
		value = n.popD()
	}

	raw, isIO := func() (uint32, bool) {
		if isWrite {
			isIO := n.memWrite(addr, value)
			return 0, isIO
		}
		v, isIO := n.memRead(addr)
		return v, isIO
	}()

	if !isIO {
		n.finishAccess(isWrite, src, raw)
		n.StepCount++
		return true
	}

	result, completed := mem.Access(n.Coord, addr, isWrite, value, false)
	if !completed {
		n.pending = pendingAccess{addr: addr, isWrite: isWrite, value: value, src: src}
		if isWrite {
			n.State = BlockedWrite
		} else {
			n.State = BlockedRead
		}
		n.BlockedPort = addr
		return false
	}
	n.finishAccess(isWrite, src, result)
	n.StepCount++
	return true
}

// execute dispatches a single decoded opcode. mem is used only by the
// eight memory/IO opcodes.
func (n *Node) execute(op word.Opcode, mem MemAccess) bool {
	switch op {
	case word.OpRet:
		n.P = n.popR()
		n.Refetch()
	case word.OpEx:
		n.P, n.R = n.R, n.P
		n.Refetch()
	case word.OpJump:
		n.branch(n.currentAddr())
		n.Refetch()
	case word.OpCall:
		addr := n.currentAddr()
		n.pushR(n.P)
		n.branch(addr)
		n.Refetch()
	case word.OpUnext:
		if n.R > 0 {
			n.R--
			n.Slot = 0
		} else {
			n.R = n.Rst.Pop()
			n.Refetch()
		}
	case word.OpNext:
		if n.R > 0 {
			n.R--
			n.branch(n.currentAddr())
			n.Refetch()
		} else {
			n.R = n.Rst.Pop()
			n.Refetch()
		}
	case word.OpIf:
		if n.T == 0 {
			n.branch(n.currentAddr())
			n.Refetch()
		} else {
			n.advance()
		}
	case word.OpMinusIf:
		if n.T&(1<<17) == 0 {
			n.branch(n.currentAddr())
			n.Refetch()
		} else {
			n.advance()
		}
	case word.OpFetchP:
		return n.beginAccess(srcP, false, mem)
	case word.OpFetchPlus:
		return n.beginAccess(srcA, false, mem)
	case word.OpFetchB:
		return n.beginAccess(srcB, false, mem)
	case word.OpFetch:
		return n.beginAccess(srcA, false, mem)
	case word.OpStoreP:
		return n.beginAccess(srcP, true, mem)
	case word.OpStorePlus:
		return n.beginAccess(srcA, true, mem)
	case word.OpStoreB:
		return n.beginAccess(srcB, true, mem)
	case word.OpStore:
		return n.beginAccess(srcA, true, mem)
	case word.OpMulStep:
		n.mulStep()
		n.advance()
	case word.OpShl2:
		n.T = (n.T << 1) & word.WordMask
		n.advance()
	case word.OpShr2:
		sign := n.T & (1 << 17)
		n.T = (n.T >> 1) | sign
		n.advance()
	case word.OpNot:
		n.T = (^n.T) & word.WordMask
		n.advance()
	case word.OpPlus:
		n.T = (n.T + n.S) & word.WordMask
		n.S = n.D.Pop()
		n.advance()
	case word.OpAnd:
		n.T &= n.S
		n.S = n.D.Pop()
		n.advance()
	case word.OpOr:
		n.T ^= n.S
		n.S = n.D.Pop()
		n.advance()
	case word.OpDrop:
		n.T = n.S
		n.S = n.D.Pop()
		n.advance()
	case word.OpDup:
		n.pushD(n.T)
		n.advance()
	case word.OpPop:
		v := n.popR()
		n.pushD(v)
		n.advance()
	case word.OpOver:
		n.pushD(n.S)
		n.advance()
	case word.OpA:
		n.pushD(n.A)
		n.advance()
	case word.OpNop:
		n.advance()
	case word.OpPush:
		v := n.popD()
		n.pushR(v)
		n.advance()
	case word.OpBStore:
		n.B = n.popD() & AddrMask9
		n.advance()
	case word.OpAStore:
		n.A = n.popD() & word.WordMask
		n.advance()
	default:
		n.advance()
	}
	n.StepCount++
	return true
}

// branch applies the short address, preserving the post-fetch PC's high
// bits per the slot's mask, and records (without acting on) bit 9.
func (n *Node) branch(addr uint32) {
	if addr&word.ExtendedArithBit != 0 && n.Slot <= 1 {
		n.ExtendedArith = true
	}
	n.P = word.BranchTarget(n.Slot, n.P, addr)
}

// mulStep performs one signed multiply-step: conditionally add S into T,
// then shift the {T,A} pair right by one bit.
func (n *Node) mulStep() {
	t := n.T
	if n.A&1 != 0 {
		t = (n.T + n.S) & 0x7FFFF
	}
	combined := (uint64(t) << 18) | uint64(n.A&word.WordMask)
	combined >>= 1
	n.T = uint32((combined >> 18) & uint64(word.WordMask))
	n.A = uint32(combined & uint64(word.WordMask))
}
