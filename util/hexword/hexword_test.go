package hexword

import "testing"

func TestWordFormatsFiveDigits(t *testing.T) {
	if got := Word(0x3FFFF); got != "3FFFF" {
		t.Errorf("Word(0x3FFFF) = %q, want 3FFFF", got)
	}
	if got := Word(0); got != "00000" {
		t.Errorf("Word(0) = %q, want 00000", got)
	}
	if got := Word(0x15555); got != "15555" {
		t.Errorf("Word(0x15555) = %q, want 15555", got)
	}
}

func TestAddrFormatsThreeDigits(t *testing.T) {
	if got := Addr(0x1FF); got != "1FF" {
		t.Errorf("Addr(0x1FF) = %q, want 1FF", got)
	}
	if got := Addr(0); got != "000" {
		t.Errorf("Addr(0) = %q, want 000", got)
	}
}

func TestDumpWordsProducesOneLinePerWord(t *testing.T) {
	got := DumpWords(0x80, []uint32{0x134A9, 0x15555})
	want := "080: 134A9\n081: 15555\n"
	if got != want {
		t.Errorf("DumpWords = %q, want %q", got, want)
	}
}
