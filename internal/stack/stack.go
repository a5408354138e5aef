/*
 * GA144 - Circular 8-deep stack.
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

// Package stack implements the F18A's 8-deep circular data/return stacks.
// Neither overflow nor underflow is detected: both wrap silently, matching
// the hardware.
package stack

// Depth is the number of slots below the visible top-of-stack register.
const Depth = 8

// Stack is a ring of Depth words, addressed by a wrapping cursor.
type Stack struct {
	data [Depth]uint32
	pos  int
}

// New returns a stack with every slot filled with v, as chip reset does.
func New(v uint32) Stack {
	var s Stack
	s.Fill(v)
	return s
}

// Fill sets every slot to v and resets the cursor.
func (s *Stack) Fill(v uint32) {
	for i := range s.data {
		s.data[i] = v
	}
	s.pos = 0
}

// Push advances the cursor and stores v, overwriting the slot 8 pushes ago.
func (s *Stack) Push(v uint32) {
	s.pos = (s.pos + 1) % Depth
	s.data[s.pos] = v
}

// Pop returns the current top slot and retreats the cursor.
func (s *Stack) Pop() uint32 {
	v := s.data[s.pos]
	s.pos = (s.pos - 1 + Depth) % Depth
	return v
}

// Top returns the current top slot without moving the cursor.
func (s *Stack) Top() uint32 {
	return s.data[s.pos]
}

// SetTop overwrites the current top slot without moving the cursor.
func (s *Stack) SetTop(v uint32) {
	s.data[s.pos] = v
}

// Snapshot returns the eight slots starting at the current top, in pop
// order (index 0 is Top()).
func (s *Stack) Snapshot() [Depth]uint32 {
	var out [Depth]uint32
	p := s.pos
	for i := range out {
		out[i] = s.data[p]
		p = (p - 1 + Depth) % Depth
	}
	return out
}
