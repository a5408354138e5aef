package assemble

import (
	"testing"

	"github.com/greenarrays/ga144/internal/word"
)

func wordAt(t *testing.T, slots ...word.Slot) uint32 {
	t.Helper()
	var full [4]word.Slot
	for i := range full {
		full[i] = word.EmptySlot
	}
	copy(full[:], slots)
	w, err := word.Assemble(full)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return w ^ word.Mask
}

func TestAssembleSimpleWordPacksFourSlots(t *testing.T) {
	// The 4th slot's 3-bit field only represents the eight even-valued
	// opcodes 0-14, so a word only reaches four packed ops when the
	// fourth one is drawn from that reduced set (here ";" / OpRet).
	prog := Assemble("node 100\n dup dup drop ;\n")
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	if len(prog.Nodes) != 1 || prog.Nodes[0].Coord != 100 {
		t.Fatalf("expected one node at 100, got %+v", prog.Nodes)
	}
	want := wordAt(t, word.Slot{Op: word.OpDup}, word.Slot{Op: word.OpDup}, word.Slot{Op: word.OpDrop}, word.Slot{Op: word.OpRet})
	got := prog.Nodes[0].Mem[0]
	if got == nil || *got != want {
		t.Fatalf("word 0 = %v, want 0x%x", got, want)
	}
}

func TestAssembleOverflowingSlot3OpStartsNewWord(t *testing.T) {
	// "+" cannot occupy slot 3 (it is not one of the eight even-valued
	// opcodes that field can represent), so it spills into a new word.
	prog := Assemble("node 100\n dup dup drop +\n")
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	word0 := wordAt(t, word.Slot{Op: word.OpDup}, word.Slot{Op: word.OpDup}, word.Slot{Op: word.OpDrop})
	if prog.Nodes[0].Mem[0] == nil || *prog.Nodes[0].Mem[0] != word0 {
		t.Fatalf("word 0 = %v, want 0x%x", prog.Nodes[0].Mem[0], word0)
	}
	word1 := wordAt(t, word.Slot{Op: word.OpPlus})
	if prog.Nodes[0].Mem[1] == nil || *prog.Nodes[0].Mem[1] != word1 {
		t.Fatalf("word 1 = %v, want 0x%x", prog.Nodes[0].Mem[1], word1)
	}
}

func TestAssembleRetPadsTrailingSlots(t *testing.T) {
	prog := Assemble("node 100\n dup ;\n")
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	want := wordAt(t, word.Slot{Op: word.OpDup}, word.Slot{Op: word.OpRet})
	got := prog.Nodes[0].Mem[0]
	if got == nil || *got != want {
		t.Fatalf("word 0 = %v, want 0x%x", got, want)
	}
}

func TestAssembleAtPConsumesFollowingWordAsLiteral(t *testing.T) {
	prog := Assemble("node 100\n @p 42\n")
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	if prog.Nodes[0].Mem[1] == nil || *prog.Nodes[0].Mem[1] != 42 {
		t.Fatalf("literal word = %v, want 42", prog.Nodes[0].Mem[1])
	}
}

func TestAssembleAtPAcceptsSymbolicPortLiteral(t *testing.T) {
	prog := Assemble("node 100\n @p right\n")
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	if prog.Nodes[0].Mem[1] == nil || *prog.Nodes[0].Mem[1] != 0x1D5 {
		t.Fatalf("literal word = %v, want 0x1d5 (right)", prog.Nodes[0].Mem[1])
	}
}

func TestAssembleForwardJumpResolvesToLabel(t *testing.T) {
	prog := Assemble("node 100\n jump skip\n dup dup dup\n skip: drop\n")
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	// "jump skip" occupies word 0 alone (a forward reference always
	// takes slot 0 of a fresh word); "dup dup dup" packs into word 1;
	// "skip:" realigns to a fresh word, so drop lands at word 2.
	if prog.Nodes[0].Mem[0] == nil {
		t.Fatalf("expected word 0 to hold the jump")
	}
	raw := *prog.Nodes[0].Mem[0] ^ word.Mask
	slots := word.Disassemble(raw)
	if slots[0].Op != word.OpJump {
		t.Fatalf("slot0 = %v, want OpJump", slots[0].Op)
	}
	target := word.BranchTarget(0, 1, slots[0].Addr)
	if target != 2 {
		t.Fatalf("jump target = %d, want 2 (the skip label)", target)
	}
}

func TestAssembleIfThenPatchesForwardBranch(t *testing.T) {
	prog := Assemble("node 100\n dup if drop then dup\n")
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	if prog.Nodes[0].Mem[1] == nil {
		t.Fatalf("expected the if word to be emitted")
	}
	raw := *prog.Nodes[0].Mem[1] ^ word.Mask
	slots := word.Disassemble(raw)
	if slots[0].Op != word.OpIf {
		t.Fatalf("slot0 op = %v, want OpIf", slots[0].Op)
	}
	target := word.BranchTarget(0, 2, slots[0].Addr)
	if target != 3 {
		t.Fatalf("if target = %d, want 3 (the word right after the if's body)", target)
	}
}

func TestAssembleBeginUntilLoopsBackward(t *testing.T) {
	prog := Assemble("node 100\n begin dup until\n")
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	// dup and until (-if) both fit in word 0: the loop is a single word
	// that re-fetches itself.
	if prog.Nodes[0].Mem[0] == nil {
		t.Fatalf("expected word 0 to hold dup+until")
	}
	raw := *prog.Nodes[0].Mem[0] ^ word.Mask
	slots := word.Disassemble(raw)
	if slots[0].Op != word.OpDup {
		t.Fatalf("slot0 = %v, want OpDup", slots[0].Op)
	}
	if slots[1].Op != word.OpMinusIf {
		t.Fatalf("slot1 = %v, want OpMinusIf", slots[1].Op)
	}
	target := word.BranchTarget(1, 1, slots[1].Addr)
	if target != 0 {
		t.Fatalf("until target = %d, want 0 (the begin mark)", target)
	}
}

func TestAssembleUndefinedLabelIsDiagnosed(t *testing.T) {
	prog := Assemble("node 100\n jump nowhere\n")
	if len(prog.Errors) == 0 {
		t.Fatalf("expected an undefined-label diagnostic")
	}
}

func TestAssembleMultipleNodesProduceSeparateLabelScopes(t *testing.T) {
	prog := Assemble("node 100\n loop: dup jump loop\n node 101\n loop: drop jump loop\n")
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", prog.Errors)
	}
	if len(prog.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(prog.Nodes))
	}
}
