/*
 * GA144 - Serial pin driver: byte to timed bit-interval expansion.
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

// Package serialpin expands boot-stream bytes into the timed high/low
// segments that drive one node's pin17 during an async serial boot. It
// does not open any real serial device; the segments are consumed by the
// chip orchestrator's step loop.
package serialpin

// BootBaudPeriod is the default bit period in step units, per spec.md §6.3.
const BootBaudPeriod = 723

// Bit is one timed pin segment: Value for Duration steps.
type Bit struct {
	Value    bool
	Duration int
}

// ExpandBytes converts a boot-stream byte sequence into the full bit
// sequence: an idle gap, then for each byte a start bit (low), 8 data
// bits LSB-first, and a stop bit (high).
func ExpandBytes(data []byte) []Bit {
	return ExpandBytesWithPeriod(data, BootBaudPeriod)
}

// ExpandBytesWithPeriod is ExpandBytes with an explicit bit period, for
// callers driving at a non-default baud.
func ExpandBytesWithPeriod(data []byte, period int) []Bit {
	if len(data) == 0 {
		return nil
	}
	bits := make([]Bit, 0, 1+10*len(data))
	bits = append(bits, Bit{Value: false, Duration: period * 10})
	for _, b := range data {
		bits = append(bits, Bit{Value: false, Duration: period}) // start
		for i := 0; i < 8; i++ {
			bits = append(bits, Bit{Value: (b>>uint(i))&1 != 0, Duration: period})
		}
		bits = append(bits, Bit{Value: true, Duration: period}) // stop
	}
	return bits
}
