package thermal

import (
	"math/rand"
	"testing"

	"github.com/greenarrays/ga144/internal/word"
)

func TestMemoryOpsCostMoreEnergyThanSimpleOps(t *testing.T) {
	if EnergyPJ[word.OpFetch] <= EnergyPJ[word.OpDup] {
		t.Fatalf("EnergyPJ[fetch]=%v should exceed EnergyPJ[dup]=%v",
			EnergyPJ[word.OpFetch], EnergyPJ[word.OpDup])
	}
}

func TestControlFlowOpsCostMoreTimeThanSimpleOps(t *testing.T) {
	if BaseNS[word.OpCall] <= BaseNS[word.OpDup] {
		t.Fatalf("BaseNS[call]=%v should exceed BaseNS[dup]=%v",
			BaseNS[word.OpCall], BaseNS[word.OpDup])
	}
}

func TestCoolDecaysTowardZero(t *testing.T) {
	got := Cool(100, 1000, 500)
	if got <= 0 || got >= 100 {
		t.Fatalf("Cool(100, 1000, 500) = %v, want strictly between 0 and 100", got)
	}
}

func TestCoolWithZeroTauIsZero(t *testing.T) {
	if got := Cool(100, 10, 0); got != 0 {
		t.Fatalf("Cool with tau=0 = %v, want 0", got)
	}
}

func TestJitterNextIsDeterministicFromSeed(t *testing.T) {
	a := NewJitter(42)
	b := NewJitter(42)
	for i := 0; i < 5; i++ {
		if av, bv := a.Next(), b.Next(); av != bv {
			t.Fatalf("step %d: a=%d b=%d, want equal for same seed", i, av, bv)
		}
	}
}

func TestJitterZeroSeedAvoidsFixedPoint(t *testing.T) {
	j := NewJitter(0)
	if j.state == 0 {
		t.Fatalf("NewJitter(0) left state at the xorshift32 fixed point")
	}
	if j.Next() == 0 {
		t.Fatalf("Next() from a zero-avoided seed produced zero")
	}
}

func TestReseedNeverLeavesZeroState(t *testing.T) {
	j := NewJitter(7)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if s := j.Reseed(r, 50); s == 0 {
			t.Fatalf("Reseed produced zero state at iteration %d", i)
		}
	}
}
