/*
 * GA144 - Convert words and node addresses to hex strings.
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

// Package hexword formats GA144 words and node addresses as fixed-width
// hex digit strings, for the disassembler's address column and the
// console's register/memory dumps.
package hexword

import "strings"

var hexMap = "0123456789ABCDEF"

// FormatWord writes each 18-bit word as 5 hex digits, space-separated.
func FormatWord(str *strings.Builder, words []uint32) {
	for _, w := range words {
		shift := 16
		for range 5 {
			str.WriteByte(hexMap[(w>>shift)&0xf])
			shift -= 4
		}
		str.WriteByte(' ')
	}
}

// FormatAddr writes each 9-bit node address as 3 hex digits,
// space-separated.
func FormatAddr(str *strings.Builder, addrs []uint32) {
	for _, a := range addrs {
		shift := 8
		for range 3 {
			str.WriteByte(hexMap[(a>>shift)&0xf])
			shift -= 4
		}
		str.WriteByte(' ')
	}
}

// FormatBytes writes a boot stream's raw bytes as two hex digits each.
func FormatBytes(str *strings.Builder, space bool, data []byte) {
	for _, b := range data {
		str.WriteByte(hexMap[(b>>4)&0xf])
		str.WriteByte(hexMap[b&0xf])
		if space {
			str.WriteByte(' ')
		}
	}
}

// Word returns FormatWord's output for a single word, with the
// trailing space trimmed.
func Word(w uint32) string {
	var b strings.Builder
	FormatWord(&b, []uint32{w})
	return strings.TrimSpace(b.String())
}

// Addr returns FormatAddr's output for a single address, with the
// trailing space trimmed.
func Addr(a uint32) string {
	var b strings.Builder
	FormatAddr(&b, []uint32{a})
	return strings.TrimSpace(b.String())
}

// DumpWords renders a contiguous run of node memory as one "addr: word"
// line per entry, base being the address of words[0].
func DumpWords(base uint32, words []uint32) string {
	var b strings.Builder
	for i, w := range words {
		b.WriteString(Addr(base + uint32(i)))
		b.WriteString(": ")
		b.WriteString(Word(w))
		b.WriteByte('\n')
	}
	return b.String()
}
