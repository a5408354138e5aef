/*
 * GA144 - CompiledProgram shapes.
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

// Package loader defines the CompiledProgram/CompiledNode shapes a
// compiler (out of scope for this repository) hands to the chip. The
// chip package consumes them (Load, LoadViaBootStream); there is no
// decoder that recovers a program from a boot stream.
package loader

// CompiledNode is one node's share of a compiled program. Mem entries are
// nil where the compiler left that RAM word untouched; the pointer
// fields mirror that "present or not" shape for the register file.
type CompiledNode struct {
	Coord uint16
	Mem   [64]*uint32
	Len   int
	P     *uint32
	A     *uint32
	B     *uint32
	IO    *uint32
	Stack []uint32
}

// Diagnostic is a compiler or loader error/warning, in the same shape
// the assembler reports.
type Diagnostic struct {
	Line    int
	Col     int
	Message string
}

// CompiledProgram is the value an out-of-scope compiler produces and the
// chip consumes via Load or a boot stream.
type CompiledProgram struct {
	Nodes    []CompiledNode
	Errors   []Diagnostic
	Warnings []Diagnostic

	// Name and ROMVariant are cosmetic/selection metadata, not part of
	// spec.md's CompiledProgram shape; see SPEC_FULL.md §3.
	Name       string
	ROMVariant string
}
