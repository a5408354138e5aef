/*
 * GA144 - Per-opcode energy/time table and thermal jitter model.
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

// Package thermal models the illustrative per-opcode energy cost this
// emulator attaches to each F18A instruction, and the jittered reseed a
// node's local noise generator goes through on a recurring schedule.
// None of the constants here claim hardware accuracy; exact timing
// fidelity is out of scope.
package thermal

import (
	"math"
	"math/rand"

	"github.com/greenarrays/ga144/internal/word"
)

// EnergyPJ and BaseNS are illustrative relative weights, not measured
// silicon figures: memory-referencing opcodes (fetch/store family) and
// the multiply step cost more energy than other opcodes, and jump, call,
// ex, ret, next, unext and the multiply step take more time.
var (
	EnergyPJ [32]float64
	BaseNS   [32]float64
)

func init() {
	for op := 0; op < 32; op++ {
		EnergyPJ[op] = 1.0
		BaseNS[op] = 1.0
	}
	memoryOps := []word.Opcode{word.OpFetchP, word.OpFetchPlus, word.OpFetchB, word.OpFetch,
		word.OpStoreP, word.OpStorePlus, word.OpStoreB, word.OpStore}
	for _, op := range memoryOps {
		EnergyPJ[op] = 1.8
	}
	controlOps := []word.Opcode{word.OpJump, word.OpCall, word.OpEx, word.OpRet, word.OpNext, word.OpUnext}
	for _, op := range controlOps {
		BaseNS[op] = 1.4
	}
	EnergyPJ[word.OpMulStep] = 2.2
	BaseNS[word.OpMulStep] = 1.6
}

// Cool applies an exponential decay of energy e over elapsed ns
// nanoseconds with time-constant tauNS, the textbook RC cooling law.
func Cool(e, elapsedNS, tauNS float64) float64 {
	if tauNS <= 0 {
		return 0
	}
	return e * math.Exp(-elapsedNS/tauNS)
}

// Jitter is a per-node noise generator: a small xorshift32 state reseeded
// periodically from Gaussian-distributed thermal noise, so that two
// nodes executing identical code still diverge in their simulated
// timing the way independently-clocked asynchronous silicon would.
type Jitter struct {
	state uint32
}

// NewJitter seeds state directly; a zero seed is replaced with 1, since
// xorshift32 has a fixed point at zero.
func NewJitter(seed uint32) *Jitter {
	if seed == 0 {
		seed = 1
	}
	return &Jitter{state: seed}
}

// State returns the generator's current value without advancing it.
func (j *Jitter) State() uint32 {
	return j.state
}

// Next returns the generator's next 32-bit value and advances its state.
func (j *Jitter) Next() uint32 {
	x := j.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	j.state = x
	return x
}

// Reseed folds a Gaussian sample (mean 0, stddev sigma) derived from r
// into the generator's state, simulating a periodic thermal-noise
// resync. It returns the new state for callers that want to observe it.
func (j *Jitter) Reseed(r *rand.Rand, sigma float64) uint32 {
	sample := r.NormFloat64() * sigma
	folded := uint32(int64(math.Round(sample*1000))) ^ j.Next()
	if folded == 0 {
		folded = 1
	}
	j.state = folded
	return j.state
}
