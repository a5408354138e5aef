package node

import (
	"testing"

	"github.com/greenarrays/ga144/internal/word"
)

// noPortAccess simulates a MemAccess that never resolves IO addresses,
// used by tests that only exercise RAM/ROM and ALU/stack opcodes.
type noPortAccess struct{}

func (noPortAccess) Access(coord uint16, addr uint32, isWrite bool, value uint32, isRetry bool) (uint32, bool) {
	return 0, false
}

func wordAt(slots ...word.Slot) uint32 {
	var full [4]word.Slot
	for i := range full {
		full[i] = word.EmptySlot
	}
	copy(full[:], slots)
	w, err := word.Assemble(full)
	if err != nil {
		panic(err)
	}
	return w ^ word.Mask
}

func TestNodeResetFillsDecodeToCallAA(t *testing.T) {
	n := NewNode(0)
	slots := word.Disassemble(n.RAM[0] ^ word.Mask)
	if slots[0].Op != word.OpCall || slots[0].Addr != 0xAA {
		t.Fatalf("reset RAM does not decode to call 0xAA: got op=%d addr=0x%x", slots[0].Op, slots[0].Addr)
	}
}

func TestDupPushesCopyAndShiftsStack(t *testing.T) {
	n := NewNode(0)
	n.T = 7
	n.S = 9
	n.RAM[0] = wordAt(word.Slot{Op: word.OpDup}, word.Slot{Op: word.OpDup}, word.Slot{Op: word.OpDup})
	n.Refetch()

	n.Step(noPortAccess{})
	if n.T != 7 || n.S != 7 {
		t.Fatalf("after dup: T=%d S=%d, want T=7 S=7", n.T, n.S)
	}
}

func TestDropPopsStack(t *testing.T) {
	n := NewNode(0)
	n.T, n.S = 1, 2
	n.D.Push(3)
	n.RAM[0] = wordAt(word.Slot{Op: word.OpDrop}, word.Slot{Op: word.OpDrop})
	n.Refetch()
	n.Step(noPortAccess{})
	if n.T != 2 {
		t.Fatalf("after drop: T=%d, want 2", n.T)
	}
}

func TestPlusAddsAndConsumesS(t *testing.T) {
	n := NewNode(0)
	n.T, n.S = 5, 10
	n.RAM[0] = wordAt(word.Slot{Op: word.OpPlus}, word.Slot{Op: word.OpNop}, word.Slot{Op: word.OpNop})
	n.Refetch()
	n.Step(noPortAccess{})
	if n.T != 15 {
		t.Fatalf("T=%d, want 15", n.T)
	}
}

func TestJumpSetsPCPreservingHighBits(t *testing.T) {
	n := NewNode(0)
	n.RAM[0] = wordAt(word.Slot{Op: word.OpJump, Addr: 0x055})
	n.Refetch()
	postFetchP := n.P
	want := word.BranchTarget(0, postFetchP, 0x055)
	n.Step(noPortAccess{})
	// The jump refetches from its target, which leaves P one past it.
	if n.P != want+1 {
		t.Fatalf("P=0x%x, want 0x%x", n.P, want+1)
	}
}

func TestCallPushesReturnAddress(t *testing.T) {
	n := NewNode(0)
	n.RAM[0] = wordAt(word.Slot{Op: word.OpCall, Addr: 0x010})
	n.Refetch()
	postFetchP := n.P
	n.Step(noPortAccess{})
	if n.R != postFetchP {
		t.Fatalf("R=0x%x, want post-fetch P 0x%x", n.R, postFetchP)
	}
}

func TestRetPopsReturnStack(t *testing.T) {
	n := NewNode(0)
	n.pushR(0x123)
	n.RAM[0] = wordAt(word.Slot{Op: word.OpRet})
	n.Refetch()
	n.Step(noPortAccess{})
	if n.P&AddrMask10 != 0x123 {
		t.Fatalf("P=0x%x, want 0x123", n.P&AddrMask10)
	}
}

func TestUnextLoopsThenFallsThrough(t *testing.T) {
	n := NewNode(0)
	n.R = 1
	n.RAM[0] = wordAt(word.Slot{Op: word.OpUnext})
	n.Refetch()

	n.Step(noPortAccess{}) // R=1>0: R-- , stays on slot 0
	if n.R != 0 || n.Slot != 0 {
		t.Fatalf("after first unext: R=%d slot=%d, want R=0 slot=0", n.R, n.Slot)
	}
	n.Step(noPortAccess{}) // R==0: pop R, refetch
	if n.Slot != 0 {
		t.Fatalf("after second unext: slot=%d, want 0 (refetched)", n.Slot)
	}
}

func TestIfDoesNotPopT(t *testing.T) {
	n := NewNode(0)
	n.T = 0
	n.RAM[0] = wordAt(word.Slot{Op: word.OpIf, Addr: 0x020})
	n.Refetch()
	before := n.T
	n.Step(noPortAccess{})
	if n.T != before {
		t.Fatalf("if must not pop T: T changed from %d to %d", before, n.T)
	}
}

func TestBlockedReadRetriesIdenticalAccess(t *testing.T) {
	n := NewNode(0)
	n.A = 0x1D5 // RIGHT port address
	n.RAM[0] = wordAt(word.Slot{Op: word.OpFetch})
	n.Refetch()

	calls := 0
	blocked := fakeAccess{resolve: func(coord uint16, addr uint32, isWrite bool, value uint32, isRetry bool) (uint32, bool) {
		calls++
		if calls < 3 {
			return 0, false
		}
		return 0x42, true
	}}

	if n.Step(blocked) {
		t.Fatalf("expected first step to block")
	}
	if n.State != BlockedRead {
		t.Fatalf("state=%v, want BlockedRead", n.State)
	}
	n.Step(blocked)
	if !n.Step(blocked) {
		t.Fatalf("expected third attempt to complete")
	}
	if n.T != 0x42 {
		t.Fatalf("T=0x%x, want 0x42", n.T)
	}
	if n.State != Running {
		t.Fatalf("state=%v, want Running", n.State)
	}
}

type fakeAccess struct {
	resolve func(coord uint16, addr uint32, isWrite bool, value uint32, isRetry bool) (uint32, bool)
}

func (f fakeAccess) Access(coord uint16, addr uint32, isWrite bool, value uint32, isRetry bool) (uint32, bool) {
	return f.resolve(coord, addr, isWrite, value, isRetry)
}

func TestAtPReadsAsPlainDataNoXOR(t *testing.T) {
	n := NewNode(0)
	n.RAM[0] = wordAt(word.Slot{Op: word.OpFetchP})
	n.RAM[1] = 0x3ABCD & word.WordMask
	n.Refetch()
	n.Step(noPortAccess{})
	if n.T != n.RAM[1] {
		t.Fatalf("T=0x%x, want literal 0x%x unmodified by XOR", n.T, n.RAM[1])
	}
}

// @p can never share a word with anything after it (word.Terminates), so
// the slot following it is never a real opcode. Completing it must refetch
// from the (now past-the-literal) P rather than decode that leftover slot
// field as if it were packed instruction.
func TestAtPRefetchesInsteadOfDecodingTrailingSlot(t *testing.T) {
	n := NewNode(0)
	n.pushR(0x3FF) // garbage return address; only touched if OpRet fires wrongly
	n.RAM[0] = wordAt(word.Slot{Op: word.OpFetchP})
	n.RAM[1] = 7
	n.RAM[2] = wordAt(word.Slot{Op: word.OpDup})
	n.Refetch()
	n.Step(noPortAccess{})
	if n.Slot != 0 {
		t.Fatalf("slot=%d, want 0 (refetched word 2)", n.Slot)
	}
	if n.P&AddrMask10 != 3 {
		t.Fatalf("P=0x%x, want 3 (past the literal)", n.P&AddrMask10)
	}
	n.Step(noPortAccess{})
	if n.T != n.S {
		t.Fatalf("expected word 2's dup to run; T=%d S=%d", n.T, n.S)
	}
}

// A store pops its operand off the data stack as soon as it issues, even
// if the port blocks: the instruction has committed to consuming T.
func TestStoreToBlockedPortPopsImmediately(t *testing.T) {
	n := NewNode(0)
	n.A = 0x1D5 // RIGHT port address
	n.T, n.S = 0x42, 0x99
	n.RAM[0] = wordAt(word.Slot{Op: word.OpStore})
	n.Refetch()

	blocked := fakeAccess{resolve: func(coord uint16, addr uint32, isWrite bool, value uint32, isRetry bool) (uint32, bool) {
		return 0, false
	}}
	if n.Step(blocked) {
		t.Fatalf("expected store to block")
	}
	if n.State != BlockedWrite {
		t.Fatalf("state=%v, want BlockedWrite", n.State)
	}
	if n.T != 0x99 {
		t.Fatalf("T=0x%x, want 0x99 (popped at issue time, before the port accepted it)", n.T)
	}
}
