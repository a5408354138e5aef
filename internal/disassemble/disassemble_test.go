package disassemble

import (
	"strings"
	"testing"

	"github.com/greenarrays/ga144/internal/port"
	"github.com/greenarrays/ga144/internal/word"
)

func assembleXORed(t *testing.T, slots ...word.Slot) uint32 {
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

func TestDisassembleJumpResolvesTarget(t *testing.T) {
	w := assembleXORed(t, word.Slot{Op: word.OpJump, Addr: 0x055})
	lines := Disassemble([]uint32{w}, 0x10)

	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	want := word.BranchTarget(0, 0x11, 0x055)
	text := lines[0].String()
	if !strings.Contains(text, "jump") {
		t.Fatalf("text %q missing jump mnemonic", text)
	}
	if !strings.Contains(text, itoa(want)) {
		t.Fatalf("text %q does not contain resolved target %d", text, want)
	}
}

func TestDisassembleAtPMarksFollowingWordLiteral(t *testing.T) {
	lit := uint32(0x3ABCD) & word.WordMask
	w := assembleXORed(t, word.Slot{Op: word.OpFetchP})
	lines := Disassemble([]uint32{w, lit}, 0)

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[1].Literal == nil {
		t.Fatalf("second line should be a literal")
	}
	if *lines[1].Literal != lit {
		t.Fatalf("literal = 0x%x, want 0x%x", *lines[1].Literal, lit)
	}
}

func TestDisassembleSubstitutesSymbolicPortName(t *testing.T) {
	w := assembleXORed(t, word.Slot{Op: word.OpFetchP})
	lines := Disassemble([]uint32{w, port.AddrRight}, 0)

	if got := lines[1].String(); got != "right" {
		t.Fatalf("literal text = %q, want %q", got, "right")
	}
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	digits := []byte{}
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}
