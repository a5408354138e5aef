/*
 * GA144 - Port fabric: neighbor rendezvous over the 8x18 mesh.
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

// Package port implements the GA144 mesh's neighbor-to-neighbor rendezvous
// fabric: the pending reader/writer bookkeeping behind @/!/@b/!b accesses
// to a neighbor port address, and the parity rule that maps a node's
// RIGHT/LEFT/UP/DOWN port registers onto its four geometric neighbors.
package port

const (
	Rows = 8
	Cols = 18

	// Port addresses, as they appear in the low 9 bits of A/B/P.
	AddrIO    uint32 = 0x15D
	AddrRight uint32 = 0x1D5
	AddrLeft  uint32 = 0x175
	AddrUp    uint32 = 0x145
	AddrDown  uint32 = 0x115
	AddrRDLU  uint32 = 0x1A5 // multiport: all four directions at once
)

// Local identifies one of a node's four directional port registers. The
// register's geometric meaning (which neighbor it reaches) depends on the
// node's own row/column parity; see localPortForDir.
type Local uint8

const (
	LocalR Local = 1 << iota
	LocalL
	LocalD
	LocalU
)

func (l Local) has(bit Local) bool { return l&bit != 0 }

// groupFor maps a port address to the set of local registers it spans.
// Addresses with no entry (including AddrIO) are not neighbor ports at
// all; callers should treat them as a plain IO register access instead.
var groupFor = map[uint32]Local{
	AddrRight: LocalR,
	AddrLeft:  LocalL,
	AddrUp:    LocalU,
	AddrDown:  LocalD,
	AddrRDLU:  LocalR | LocalL | LocalU | LocalD,
}

// Group reports whether addr names a neighbor port, and if so which local
// registers it spans.
func Group(addr uint32) (Local, bool) {
	g, ok := groupFor[addr]
	return g, ok
}

// Dir is a geometric compass direction: it names a node's neighbor
// (Neighbor, DirAddr, DirectionBetween) and fixes the priority order in
// which a multiport's member directions are tried.
type Dir uint8

const (
	North Dir = iota
	East
	South
	West
)

// priority is the fixed wakeup order for multiport groups: N, E, S, W.
var priority = [4]Dir{North, East, South, West}

// Coord packs a (row, col) pair the way node addresses do: row*100+col.
func Coord(row, col int) uint16 { return uint16(row*100 + col) }

func rowCol(coord uint16) (row, col int) {
	return int(coord) / 100, int(coord) % 100
}

// RowCol exports rowCol for callers (the chip orchestrator) that need to
// turn a coordinate into an array index using the same convention.
func RowCol(coord uint16) (row, col int) { return rowCol(coord) }

// localPortForDir returns which local register, at the node sitting at
// coord, reaches the neighbor in geometric direction d. This is the
// parity rule from spec.md §3.4: alternating columns/rows swap which
// named register faces which geometric neighbor, so that both endpoints
// of any edge name the same physical port.
func localPortForDir(coord uint16, d Dir) Local {
	row, col := rowCol(coord)
	switch d {
	case East:
		if col%2 == 0 {
			return LocalR
		}
		return LocalL
	case West:
		if col%2 == 0 {
			return LocalL
		}
		return LocalR
	case South:
		if row%2 == 0 {
			return LocalU
		}
		return LocalD
	default: // North
		if row%2 == 0 {
			return LocalD
		}
		return LocalU
	}
}

// localAddrFor maps a Local register bit back to its address constant,
// the reverse of groupFor for the four single-direction bits.
func localAddrFor(l Local) uint32 {
	switch l {
	case LocalR:
		return AddrRight
	case LocalL:
		return AddrLeft
	case LocalU:
		return AddrUp
	default:
		return AddrDown
	}
}

// DirAddr returns the port address, as seen from the node at coord, that
// reaches the neighbor in geometric direction d. The boot-stream builder
// uses this to address a node's own port registers by compass direction
// while walking the boot path, without duplicating the parity rule.
func DirAddr(coord uint16, d Dir) uint32 {
	return localAddrFor(localPortForDir(coord, d))
}

// Neighbor returns the coordinate reached from coord in direction d, and
// false if that direction runs off the edge of the mesh.
func Neighbor(coord uint16, d Dir) (uint16, bool) {
	row, col := rowCol(coord)
	switch d {
	case North:
		row--
	case South:
		row++
	case East:
		col++
	case West:
		col--
	}
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return 0, false
	}
	return Coord(row, col), true
}

// DirectionBetween reports the compass direction that reaches b from a,
// if they are mesh neighbors. Used by the boot-stream builder to turn a
// path (a list of coordinates) into the port addresses each hop must
// write to and read from.
func DirectionBetween(a, b uint16) (Dir, bool) {
	for _, d := range []Dir{North, East, South, West} {
		if n, ok := Neighbor(a, d); ok && n == b {
			return d, true
		}
	}
	return 0, false
}

type kind uint8

const (
	empty kind = iota
	pendingReader
	pendingWriter
	delivered
)

type cell struct {
	kind  kind
	value uint32
	group Local // full group this entry was posted under, for group-wide clearing
}

func nodeIndex(coord uint16) int {
	row, col := rowCol(coord)
	return row*Cols + col
}

func localIndex(l Local) int {
	switch l {
	case LocalR:
		return 0
	case LocalL:
		return 1
	case LocalU:
		return 2
	default:
		return 3
	}
}

// Fabric holds the pending-transfer table for every node's four
// directional ports. The zero value is ready to use.
type Fabric struct {
	table [Rows * Cols][4]cell
}

func (f *Fabric) cellAt(coord uint16, l Local) *cell {
	return &f.table[nodeIndex(coord)][localIndex(l)]
}

func eachLocal(group Local) []Local {
	var out []Local
	for _, l := range []Local{LocalR, LocalL, LocalU, LocalD} {
		if group.has(l) {
			out = append(out, l)
		}
	}
	return out
}

// clearGroup empties every port the entry at coord/l was posted under.
func (f *Fabric) clearGroup(coord uint16, l Local) {
	g := f.cellAt(coord, l).group
	for _, m := range eachLocal(g) {
		*f.cellAt(coord, m) = cell{}
	}
}

// Reset clears all pending state, as chip reset does.
func (f *Fabric) Reset() {
	for i := range f.table {
		f.table[i] = [4]cell{}
	}
}

// Access attempts to complete (or park) a read or write on addr, issued
// by the node at coord. isRetry must be true only when this is a repeat
// call for an operation the node previously parked on (the fabric cannot
// otherwise distinguish "just parked, nothing to do yet" from "a fresh
// attempt that happens to find an empty table"). completed=false means
// the caller must block (if fresh) or stay blocked (if a retry) and call
// again later with isRetry=true. ok=false means addr is not a neighbor
// port at all (e.g. AddrIO, or any address with no port mapping); the
// caller should fall back to treating it as the local IO register.
func (f *Fabric) Access(coord uint16, addr uint32, isWrite bool, value uint32, isRetry bool) (result uint32, completed bool, ok bool) {
	group, ok := Group(addr)
	if !ok {
		return 0, false, false
	}

	if isRetry {
		rep := eachLocal(group)[0]
		self := f.cellAt(coord, rep)
		if isWrite {
			if self.kind == empty {
				return 0, true, true
			}
			return 0, false, true
		}
		if self.kind == delivered {
			v := self.value
			f.clearGroup(coord, rep)
			return v, true, true
		}
		return 0, false, true
	}

	if isWrite {
		return f.attemptWrite(coord, group, value)
	}
	return f.attemptRead(coord, group)
}

func (f *Fabric) attemptWrite(coord uint16, group Local, value uint32) (uint32, bool, bool) {
	for _, d := range priority {
		lp := localPortForDir(coord, d)
		if !group.has(lp) {
			continue
		}
		neighbor, exists := Neighbor(coord, d)
		if !exists {
			continue
		}
		nc := f.cellAt(neighbor, lp)
		if nc.kind == pendingReader {
			readerGroup := nc.group
			rep := eachLocal(readerGroup)[0]
			for _, m := range eachLocal(readerGroup) {
				*f.cellAt(neighbor, m) = cell{}
			}
			*f.cellAt(neighbor, rep) = cell{kind: delivered, value: value, group: readerGroup}
			return 0, true, true
		}
	}
	f.park(coord, group, pendingWriter, value)
	return 0, false, true
}

func (f *Fabric) attemptRead(coord uint16, group Local) (uint32, bool, bool) {
	for _, d := range priority {
		lp := localPortForDir(coord, d)
		if !group.has(lp) {
			continue
		}
		neighbor, exists := Neighbor(coord, d)
		if !exists {
			continue
		}
		nc := f.cellAt(neighbor, lp)
		if nc.kind == pendingWriter {
			v := nc.value
			f.clearGroup(neighbor, lp)
			return v, true, true
		}
	}
	f.park(coord, group, pendingReader, 0)
	return 0, false, true
}

func (f *Fabric) park(coord uint16, group Local, k kind, value uint32) {
	for _, l := range eachLocal(group) {
		*f.cellAt(coord, l) = cell{kind: k, value: value, group: group}
	}
}

// Peek reports, without mutating any table state, whether a retry of the
// given access would complete right now. Used by the chip orchestrator
// to detect quiescence without disturbing a parked node.
func (f *Fabric) Peek(coord uint16, addr uint32, isWrite bool) bool {
	group, ok := Group(addr)
	if !ok {
		return true
	}
	rep := eachLocal(group)[0]
	c := f.cellAt(coord, rep)
	if isWrite {
		return c.kind == empty
	}
	return c.kind == delivered
}

// Pending reports the current state of the port addr as seen from coord,
// for snapshot/debugging purposes: "reader", "writer", "delivered" or
// "" (empty).
func (f *Fabric) Pending(coord uint16, addr uint32) string {
	group, ok := Group(addr)
	if !ok {
		return ""
	}
	c := f.cellAt(coord, eachLocal(group)[0])
	switch c.kind {
	case pendingReader:
		return "reader"
	case pendingWriter:
		return "writer"
	case delivered:
		return "delivered"
	default:
		return ""
	}
}
