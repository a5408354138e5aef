package console

import "testing"

func TestMatchListUniqueAbbreviation(t *testing.T) {
	match := matchList("st")
	if len(match) != 1 || match[0].name != "step" {
		t.Fatalf("matchList(st) = %v, want exactly [step]", match)
	}
}

func TestMatchListExactName(t *testing.T) {
	match := matchList("clear")
	if len(match) != 1 || match[0].name != "clear" {
		t.Fatalf("matchList(clear) = %v, want exactly [clear]", match)
	}
}

func TestMatchListTooShortAbbreviation(t *testing.T) {
	// "break" requires at least 3 characters; 2 is still ambiguous with
	// nothing in particular, but below the table's own minimum, so it
	// must not match at all (same rule the teacher's parser used to
	// force unambiguous commands).
	if match := matchList("br"); len(match) != 0 {
		t.Fatalf("matchList(br) = %v, want none (below break's min of 3)", match)
	}
}

func TestMatchListNoMatch(t *testing.T) {
	if match := matchList("xyz"); match != nil {
		t.Fatalf("matchList(xyz) = %v, want nil", match)
	}
}

func TestCmdLineArgsSplitsOnWhitespace(t *testing.T) {
	line := cmdLine{line: "break 708  12"}
	line.getWord() // consume "break"
	got := line.args()
	want := []string{"708", "12"}
	if len(got) != len(want) {
		t.Fatalf("args() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("args()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCompleteCmdListsMatches(t *testing.T) {
	if got := CompleteCmd("st"); len(got) != 1 || got[0] != "step" {
		t.Fatalf("CompleteCmd(st) = %v, want [step]", got)
	}
	if got := CompleteCmd("s"); len(got) != 0 {
		t.Fatalf("CompleteCmd(s) = %v, want none (below step/show's min of 2)", got)
	}
}

func TestParseCoordAndAddr(t *testing.T) {
	coord, err := ParseCoord("708")
	if err != nil || coord != 708 {
		t.Fatalf("ParseCoord(708) = %d, %v", coord, err)
	}
	addr, err := ParseAddr("0x1F")
	if err != nil || addr != 0x1F {
		t.Fatalf("ParseAddr(0x1F) = %d, %v", addr, err)
	}
}
