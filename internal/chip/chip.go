/*
 * GA144 - Chip orchestrator: 144 cores, the port fabric, and the tick loop.
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

// Package chip owns all 144 F18A cores, the port fabric connecting them,
// and the synchronous step loop that drives them. It is the only thing
// in this module that implements node.MemAccess: a node's own package
// has no notion of its neighbors or of the plain IO register.
package chip

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/greenarrays/ga144/internal/bootstream"
	"github.com/greenarrays/ga144/internal/loader"
	"github.com/greenarrays/ga144/internal/node"
	"github.com/greenarrays/ga144/internal/port"
	"github.com/greenarrays/ga144/internal/schedule"
	"github.com/greenarrays/ga144/internal/serialpin"
	"github.com/greenarrays/ga144/internal/thermal"
	"github.com/greenarrays/ga144/internal/word"
	"github.com/greenarrays/ga144/util/logger"
)

// IOWriteRingSize bounds the tagged-IO-write history kept for external
// collaborators (e.g. a VGA model) per §4.3.1.
const IOWriteRingSize = 256

// BootEntryP and WarmEntryP are the post-reset program counters for boot
// and non-boot nodes respectively, per §4.4.
const (
	BootEntryP = 0x0AA
	WarmEntryP = 0x0A9
)

// DefaultBootNodes is the standard reset vector map's boot-node set.
// Written as plain decimal: 008 is not a valid Go literal and 017 would
// parse as octal 15, so they are spelled 8/17.
var DefaultBootNodes = []uint16{708, 8, 100, 17, 300, 200}

// IOWriteEntry is one recorded tagged IO write.
type IOWriteEntry struct {
	Coord uint16
	Value uint32
}

// NodeSnapshot is an immutable view of one core at the moment it was taken.
type NodeSnapshot struct {
	Coord     uint16
	P, A, B   uint32
	T, S, R   uint32
	IO        uint32
	D, Rst    [8]uint32
	RAM, ROM  [node.RAMSize]uint32
	State     string
	StepCount uint64
}

// ChipSnapshot is an immutable view of the whole chip.
type ChipSnapshot struct {
	Nodes      []NodeSnapshot
	TotalSteps uint64
	IOWrites   []IOWriteEntry
}

// Chip is the top-level emulator object: 144 nodes in row-major order
// (so that array index order already matches the coordinate order §4.3's
// determinism rule requires), the shared port fabric, and the
// bookkeeping the orchestrator API needs.
type Chip struct {
	Name  string
	nodes [port.Rows * port.Cols]*node.Node
	fab   port.Fabric

	bootNodes map[uint16]bool
	romTable  map[uint16][node.ROMSize]uint32

	totalSteps uint64

	ioWrites    [IOWriteRingSize]IOWriteEntry
	ioWritePos  int
	ioWriteSeen int
	observers   []func(coord uint16, value uint32)

	breakpoints map[uint16]map[uint32]bool

	// bootSerial tracks, per node currently being driven through
	// LoadViaBootStream, the words reconstructed from its external
	// serial stream and how much boot-baud time has elapsed for it.
	bootSerial map[uint16]*bootSerialState

	// sched drives one recurring reseed entry per node, advanced by one
	// tick alongside every Step; jitter holds each node's local noise
	// generator and thermalRand the shared source its reseeds draw from.
	sched       schedule.Scheduler
	jitter      map[uint16]*thermal.Jitter
	thermalRand *rand.Rand

	log *slog.Logger
}

// ThermalReseedPeriod is how many steps elapse between a node's jitter
// generator being refreshed from simulated thermal noise.
const ThermalReseedPeriod = 10_000

// ThermalJitterSigma is the standard deviation (in the same illustrative
// units as thermal.Jitter.Reseed) of the Gaussian noise each reseed
// folds in.
const ThermalJitterSigma = 50.0

// bootSerialState lets a node's AddrBootSerial reads pull reconstructed
// 18-bit words out of the byte stream being driven into its pin17,
// paced the same way the bit-level encoding in serialpin would arrive.
// Values are decoded algebraically from the stream bytes (the inverse of
// bootstream.EncodeWord) rather than by resampling bit transitions;
// tick only gates *when* each word becomes available.
type bootSerialState struct {
	words []uint32
	tick  int
	pos   int
}

// bootSerialReadyAt returns the tick at which word index i has fully
// arrived: the initial idle gap, then i+1 words at 30 bit-periods each
// (start + 8 data + stop, per byte, 3 bytes per word).
func bootSerialReadyAt(i int) int {
	period := serialpin.BootBaudPeriod
	return 10*period + (i+1)*30*period
}

// New returns a chip with all 144 nodes allocated and the default
// boot-node set installed. Reset must be called before stepping.
func New(name string) *Chip {
	c := &Chip{
		Name:        name,
		bootNodes:   make(map[uint16]bool),
		breakpoints: make(map[uint16]map[uint32]bool),
		bootSerial:  make(map[uint16]*bootSerialState),
		jitter:      make(map[uint16]*thermal.Jitter),
		thermalRand: rand.New(rand.NewSource(1)),
		log:         slog.New(logger.NewHandler(os.Stderr, nil, boolPtr(false))),
	}
	for row := 0; row < port.Rows; row++ {
		for col := 0; col < port.Cols; col++ {
			coord := port.Coord(row, col)
			c.nodes[row*port.Cols+col] = node.NewNode(coord)
		}
	}
	for _, coord := range DefaultBootNodes {
		c.bootNodes[coord] = true
	}
	return c
}

func boolPtr(b bool) *bool { return &b }

// installLoaderROM writes the boot-stream loader routine
// (bootstream.LoaderROMWords) at the fixed boot-entry ROM address
// (chip.BootEntryP). It always runs after any caller-supplied ROM image,
// since the loader is intrinsic hardware a custom ROM cannot remove.
func installLoaderROM(n *node.Node) {
	words := bootstream.LoaderROMWords()
	base := BootEntryP & 0x3F
	for i, w := range words {
		n.ROM[base+i] = w
	}
}

func (c *Chip) indexOf(coord uint16) (int, bool) {
	row, col := port.RowCol(coord)
	if row < 0 || row >= port.Rows || col < 0 || col >= port.Cols {
		return 0, false
	}
	return row*port.Cols + col, true
}

func (c *Chip) nodeAt(coord uint16) *node.Node {
	idx, ok := c.indexOf(coord)
	if !ok {
		return nil
	}
	return c.nodes[idx]
}

// SetROMData installs the ROM image for the given coordinates, consumed
// on the next Reset.
func (c *Chip) SetROMData(table map[uint16][node.ROMSize]uint32) {
	c.romTable = table
}

// SetBootNodes overrides the default boot-node set.
func (c *Chip) SetBootNodes(coords []uint16) {
	c.bootNodes = make(map[uint16]bool, len(coords))
	for _, coord := range coords {
		c.bootNodes[coord] = true
	}
}

// Reset restores every node to its canonical post-reset state, loads any
// configured ROM, sets each node's P to its boot or warm entry vector,
// performs the initial fetch, and parks every non-boot node in
// blocked_read on the four-way multiport, per §4.4.
func (c *Chip) Reset() {
	c.fab.Reset()
	c.totalSteps = 0
	c.ioWritePos = 0
	c.ioWriteSeen = 0
	for i := range c.ioWrites {
		c.ioWrites[i] = IOWriteEntry{}
	}

	c.sched = schedule.Scheduler{}
	for coord := range c.jitter {
		delete(c.jitter, coord)
	}
	for _, n := range c.nodes {
		coord := n.Coord
		c.jitter[coord] = thermal.NewJitter(uint32(coord) + 1)
		c.sched.Register(ThermalReseedPeriod, func() {
			c.jitter[coord].Reseed(c.thermalRand, ThermalJitterSigma)
		})
	}

	for _, n := range c.nodes {
		n.Reset()
		if rom, ok := c.romTable[n.Coord]; ok {
			n.ROM = rom
		}
		installLoaderROM(n)
		if c.bootNodes[n.Coord] {
			n.P = BootEntryP
		} else {
			n.P = WarmEntryP
		}
		n.Refetch()
		if !c.bootNodes[n.Coord] {
			n.ForceBlockedRead(port.AddrRDLU, port.AddrRDLU)
			c.fab.Access(n.Coord, port.AddrRDLU, false, 0, false)
		}
	}
	c.log.Info("chip reset", "name", c.Name, "nodes", len(c.nodes))
}

// Step advances every node by one slot (or one blocked-port retry), in
// increasing coordinate order, and increments the total step counter
// once. It returns true if a registered breakpoint was hit by a node
// that performed a fresh instruction fetch this step.
func (c *Chip) Step() bool {
	hit := false
	for _, n := range c.nodes {
		progressed := n.Step(c)
		if progressed && n.Slot == 0 {
			if bps, ok := c.breakpoints[n.Coord]; ok && bps[n.LastFetchAddr] {
				hit = true
			}
		}
	}
	c.totalSteps++
	c.sched.Advance(1)
	return hit
}

// ThermalSeed returns the current state of coord's local jitter
// generator, the value its periodic thermal-noise reseed last produced.
func (c *Chip) ThermalSeed(coord uint16) (uint32, bool) {
	j, ok := c.jitter[coord]
	if !ok {
		return 0, false
	}
	return j.State(), true
}

// StepN runs up to n back-to-back steps, stopping early if a breakpoint
// is hit. executed is the number of steps actually taken.
func (c *Chip) StepN(n int) (executed int, hitBreakpoint bool) {
	for i := 0; i < n; i++ {
		if c.Step() {
			return i + 1, true
		}
		executed = i + 1
	}
	return executed, false
}

// StepUntilDone steps until the chip is quiescent (every node blocked or
// suspended with no pending handshake possible) or budget steps have
// elapsed. It returns whether the chip reached quiescence.
func (c *Chip) StepUntilDone(budget int) bool {
	if c.isQuiescent() {
		return true
	}
	for i := 0; i < budget; i++ {
		c.Step()
		if c.isQuiescent() {
			return true
		}
	}
	return false
}

// StepWithSerialBits drives bootCoord's pin17 from bits while stepping,
// for up to budget steps, stopping early at quiescence. A bit stays
// asserted for its full duration; once the sequence is exhausted the pin
// idles low, per §4.4/§4.7.5.
func (c *Chip) StepWithSerialBits(bootCoord uint16, bits []serialpin.Bit, budget int) bool {
	n := c.nodeAt(bootCoord)
	if n == nil {
		return false
	}
	level := false
	n.Pin17 = &level

	idx := 0
	remaining := 0
	for i := 0; i < budget; i++ {
		if remaining == 0 {
			if idx < len(bits) {
				level = bits[idx].Value
				remaining = bits[idx].Duration
				idx++
			} else {
				level = false
			}
		}
		if st := c.bootSerial[bootCoord]; st != nil {
			st.tick++
		}
		c.Step()
		if remaining > 0 {
			remaining--
		}
		if c.isQuiescent() {
			return true
		}
	}
	return c.isQuiescent()
}

// isQuiescent reports whether every node is either suspended or blocked
// with no handshake currently available to it, without mutating any
// pending-access state.
func (c *Chip) isQuiescent() bool {
	for _, n := range c.nodes {
		switch n.State {
		case node.Running:
			return false
		case node.BlockedRead:
			if c.fab.Peek(n.Coord, n.BlockedPort, false) {
				return false
			}
		case node.BlockedWrite:
			if c.fab.Peek(n.Coord, n.BlockedPort, true) {
				return false
			}
		}
	}
	return true
}

// ActiveCount returns the number of nodes that are running or could make
// progress on their next step (a blocked node whose handshake is ready).
func (c *Chip) ActiveCount() int {
	count := 0
	for _, n := range c.nodes {
		switch n.State {
		case node.Running:
			count++
		case node.BlockedRead:
			if c.fab.Peek(n.Coord, n.BlockedPort, false) {
				count++
			}
		case node.BlockedWrite:
			if c.fab.Peek(n.Coord, n.BlockedPort, true) {
				count++
			}
		}
	}
	return count
}

// TotalSteps returns the chip's monotonically increasing step counter.
func (c *Chip) TotalSteps() uint64 { return c.totalSteps }

// Load injects a compiled program directly into RAM and registers,
// bypassing the serial boot path entirely.
func (c *Chip) Load(program loader.CompiledProgram) error {
	for _, cn := range program.Nodes {
		n := c.nodeAt(cn.Coord)
		if n == nil {
			return fmt.Errorf("chip: load: node %d is not on the mesh", cn.Coord)
		}
		for i, v := range cn.Mem {
			if v != nil {
				n.RAM[i] = *v & word.WordMask
			}
		}
		if cn.A != nil {
			n.A = *cn.A & word.WordMask
		}
		if cn.B != nil {
			n.B = *cn.B & node.AddrMask9
		}
		if cn.IO != nil {
			n.IO = *cn.IO & word.WordMask
		}
		for _, v := range cn.Stack {
			n.PushData(v)
		}
		if cn.P != nil {
			n.P = *cn.P & node.AddrMask10
			n.Refetch()
		}
	}
	return nil
}

// LoadViaBootStream expands stream and drives it into bootCoord's pin17,
// stepping until quiescence or budget is exhausted. bootCoord's B is set
// to bootstream.AddrBootSerial first, so its loader ROM's @b reads pull
// words reconstructed from this same stream instead of its plain IO
// register.
func (c *Chip) LoadViaBootStream(bootCoord uint16, stream []byte, budget int) bool {
	if n := c.nodeAt(bootCoord); n != nil {
		n.B = bootstream.AddrBootSerial
	}
	c.bootSerial[bootCoord] = &bootSerialState{words: bootstream.DecodeWords(stream)}
	defer delete(c.bootSerial, bootCoord)

	bits := serialpin.ExpandBytes(stream)
	return c.StepWithSerialBits(bootCoord, bits, budget)
}

// SnapshotNode returns an immutable view of one node, or false if coord
// is not on the mesh.
func (c *Chip) SnapshotNode(coord uint16) (NodeSnapshot, bool) {
	n := c.nodeAt(coord)
	if n == nil {
		return NodeSnapshot{}, false
	}
	return snapshotOf(n), true
}

func snapshotOf(n *node.Node) NodeSnapshot {
	return NodeSnapshot{
		Coord:     n.Coord,
		P:         n.P,
		A:         n.A,
		B:         n.B,
		T:         n.T,
		S:         n.S,
		R:         n.R,
		IO:        n.ReadIO(),
		D:         n.D.Snapshot(),
		Rst:       n.Rst.Snapshot(),
		RAM:       n.RAM,
		ROM:       n.ROM,
		State:     n.State.String(),
		StepCount: n.StepCount,
	}
}

// SnapshotChip returns an immutable view of all 144 nodes plus the
// chip-wide step counter and IO-write history.
func (c *Chip) SnapshotChip() ChipSnapshot {
	snap := ChipSnapshot{
		Nodes:      make([]NodeSnapshot, len(c.nodes)),
		TotalSteps: c.totalSteps,
		IOWrites:   c.ioWriteHistory(),
	}
	for i, n := range c.nodes {
		snap.Nodes[i] = snapshotOf(n)
	}
	return snap
}

func (c *Chip) ioWriteHistory() []IOWriteEntry {
	n := c.ioWriteSeen
	if n > IOWriteRingSize {
		n = IOWriteRingSize
	}
	out := make([]IOWriteEntry, n)
	start := (c.ioWritePos - n + IOWriteRingSize) % IOWriteRingSize
	for i := 0; i < n; i++ {
		out[i] = c.ioWrites[(start+i)%IOWriteRingSize]
	}
	return out
}

func (c *Chip) recordIOWrite(coord uint16, value uint32) {
	c.ioWrites[c.ioWritePos] = IOWriteEntry{Coord: coord, Value: value}
	c.ioWritePos = (c.ioWritePos + 1) % IOWriteRingSize
	c.ioWriteSeen++
}

// RegisterIOObserver registers fn to be called whenever a write reaches a
// node's plain IO register (not a neighbor port), per §4.3.1's external
// collaborator interface (e.g. a VGA model).
func (c *Chip) RegisterIOObserver(fn func(coord uint16, value uint32)) {
	c.observers = append(c.observers, fn)
}

// SetBreakpoint arms a breakpoint at addr on the node at coord.
func (c *Chip) SetBreakpoint(coord uint16, addr uint32) {
	if c.breakpoints[coord] == nil {
		c.breakpoints[coord] = make(map[uint32]bool)
	}
	c.breakpoints[coord][addr] = true
}

// ClearBreakpoint disarms a previously set breakpoint.
func (c *Chip) ClearBreakpoint(coord uint16, addr uint32) {
	if bps, ok := c.breakpoints[coord]; ok {
		delete(bps, addr)
	}
}

// Access implements node.MemAccess: it resolves neighbor-port addresses
// through the shared fabric and everything else as the node's own plain
// IO register, recording tagged writes and notifying observers.
func (c *Chip) Access(coord uint16, addr uint32, isWrite bool, value uint32, isRetry bool) (result uint32, completed bool) {
	if addr&node.AddrMask9 == bootstream.AddrBootSerial {
		if isWrite {
			return 0, false
		}
		return c.accessBootSerial(coord)
	}
	if res, comp, ok := c.fab.Access(coord, addr, isWrite, value, isRetry); ok {
		return res, comp
	}

	n := c.nodeAt(coord)
	if n == nil {
		return 0, true
	}
	if isWrite {
		n.WriteIO(value)
		c.recordIOWrite(coord, value)
		for _, ob := range c.observers {
			ob(coord, value)
		}
		return 0, true
	}
	return n.ReadIO(), true
}

// accessBootSerial resolves a read against bootstream.AddrBootSerial: the
// next word reconstructed from the byte stream being driven into this
// node's pin17, once enough boot-baud time has elapsed for it to have
// "arrived". Only reads are meaningful here; writes never complete.
func (c *Chip) accessBootSerial(coord uint16) (uint32, bool) {
	st := c.bootSerial[coord]
	if st == nil || st.pos >= len(st.words) {
		return 0, false
	}
	if st.tick < bootSerialReadyAt(st.pos) {
		return 0, false
	}
	v := st.words[st.pos]
	st.pos++
	return v, true
}
