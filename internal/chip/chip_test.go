package chip

import (
	"testing"

	"github.com/greenarrays/ga144/internal/node"
	"github.com/greenarrays/ga144/internal/port"
	"github.com/greenarrays/ga144/internal/word"
)

func wordAt(slots ...word.Slot) uint32 {
	var full [4]word.Slot
	for i := range full {
		full[i] = word.EmptySlot
	}
	copy(full[:], slots)
	w, err := word.Assemble(full)
	if err != nil {
		panic(err)
	}
	return w ^ word.Mask
}

func TestResetSetsBootAndWarmEntryPoints(t *testing.T) {
	c := New("t")
	c.Reset()

	boot := c.nodeAt(708)
	if boot.P != incrAfter(BootEntryP) {
		t.Fatalf("boot node P after initial fetch = 0x%x, want 0x%x", boot.P, incrAfter(BootEntryP))
	}
	if boot.State != node.Running {
		t.Fatalf("boot node state = %v, want Running", boot.State)
	}

	warm := c.nodeAt(304)
	if warm.State != node.BlockedRead {
		t.Fatalf("non-boot node state = %v, want BlockedRead", warm.State)
	}
	if warm.BlockedPort != port.AddrRDLU {
		t.Fatalf("non-boot node blocked port = 0x%x, want 0x%x", warm.BlockedPort, port.AddrRDLU)
	}
}

// incrAfter mirrors the P++ a single Refetch performs from an address
// that does not wrap (such as BootEntryP, in ROM), for asserting against
// the post-reset fetch.
func incrAfter(p uint32) uint32 { return p + 1 }

func TestResetIsDeterministic(t *testing.T) {
	a := New("a")
	b := New("b")
	a.Reset()
	b.Reset()

	snapA := a.SnapshotChip()
	snapB := b.SnapshotChip()
	if len(snapA.Nodes) != len(snapB.Nodes) {
		t.Fatalf("node count differs: %d vs %d", len(snapA.Nodes), len(snapB.Nodes))
	}
	for i := range snapA.Nodes {
		if snapA.Nodes[i] != snapB.Nodes[i] {
			t.Fatalf("node %d differs between two freshly reset chips", i)
		}
	}
}

func TestStepOnAllBlockedChipIsNoOp(t *testing.T) {
	c := New("t")
	c.Reset()
	// Force every node to a halt regardless of what its freshly reset ROM
	// would otherwise do, to isolate the property under test: a step on a
	// chip with nothing runnable only moves the chip-wide counter.
	for _, n := range c.nodes {
		n.State = node.Suspended
	}
	before := c.SnapshotChip()
	stepsBefore := c.TotalSteps()

	c.Step()

	after := c.SnapshotChip()
	if c.TotalSteps() != stepsBefore+1 {
		t.Fatalf("total steps = %d, want %d", c.TotalSteps(), stepsBefore+1)
	}
	for i := range before.Nodes {
		if before.Nodes[i].StepCount != after.Nodes[i].StepCount {
			t.Fatalf("node %d step counter advanced on an all-blocked chip: %d -> %d",
				before.Nodes[i].Coord, before.Nodes[i].StepCount, after.Nodes[i].StepCount)
		}
	}
}

// TestPortRendezvousWriteThenRead is seed test 4: node 304 writes 0x42 to
// its RIGHT neighbor (305); within three ticks node 305's T must equal
// 0x42.
func TestPortRendezvousWriteThenRead(t *testing.T) {
	c := New("t")
	c.Reset()
	// Reset parks every non-boot node on a multiport read; clear those
	// listens so the two hand-started nodes below begin with no port state.
	c.fab.Reset()

	writer := c.nodeAt(304)
	writer.State = node.Running
	writer.A = port.AddrRight
	writer.PushData(0x42)
	writer.RAM[0] = wordAt(word.Slot{Op: word.OpStore})
	writer.P = 0
	writer.Refetch()

	reader := c.nodeAt(305)
	reader.State = node.Running
	// Both ends of the 304-305 edge address it as RIGHT: at reader's odd
	// column, the register facing back west (toward 304) is also LocalR,
	// per the parity rule in internal/port.
	reader.A = port.AddrRight
	reader.RAM[0] = wordAt(word.Slot{Op: word.OpFetch})
	reader.P = 0
	reader.Refetch()

	for i := 0; i < 3; i++ {
		c.Step()
		if reader.T == 0x42 {
			return
		}
	}
	t.Fatalf("reader.T = 0x%x after 3 ticks, want 0x42", reader.T)
}

// TestBlockingOnAbsentNeighbor is seed test 5: a leftmost-column node
// reading from its LEFT neighbor has no peer and must stay blocked_read
// indefinitely, with its step counter frozen.
func TestBlockingOnAbsentNeighbor(t *testing.T) {
	c := New("t")
	c.Reset()

	n := c.nodeAt(400)
	n.State = node.Running
	n.A = port.AddrLeft
	n.RAM[0] = wordAt(word.Slot{Op: word.OpFetch})
	n.P = 0
	n.Refetch()

	for i := 0; i < 200; i++ {
		c.Step()
	}
	if n.State != node.BlockedRead {
		t.Fatalf("state = %v, want BlockedRead", n.State)
	}
	stepCount := n.StepCount
	for i := 0; i < 50; i++ {
		c.Step()
	}
	if n.StepCount != stepCount {
		t.Fatalf("step counter advanced while permanently blocked: %d -> %d", stepCount, n.StepCount)
	}
}

func TestBreakpointShortCircuitsStepN(t *testing.T) {
	c := New("t")
	c.Reset()

	n := c.nodeAt(304)
	n.State = node.Running
	// Word 0 ends in a jump to word 1: an empty slot 3 would decode as a
	// return instead of falling through.
	n.RAM[0] = wordAt(word.Slot{Op: word.OpNop}, word.Slot{Op: word.OpNop}, word.Slot{Op: word.OpJump, Addr: 1})
	n.RAM[1] = wordAt(word.Slot{Op: word.OpNop})
	n.P = 0
	n.Refetch()

	c.SetBreakpoint(304, 1)
	executed, hit := c.StepN(10)
	if !hit {
		t.Fatalf("expected breakpoint to be hit within 10 steps")
	}
	if executed == 0 || executed > 10 {
		t.Fatalf("executed = %d, want in [1,10]", executed)
	}
}

func TestTaggedIOWritesAreRecorded(t *testing.T) {
	c := New("t")
	c.Reset()

	var seen []uint32
	c.RegisterIOObserver(func(coord uint16, value uint32) {
		seen = append(seen, value)
	})

	result, completed := c.Access(304, port.AddrIO, true, 0x7, false)
	if !completed || result != 0 {
		t.Fatalf("plain IO write must complete immediately, got completed=%v result=0x%x", completed, result)
	}
	if len(seen) != 1 || seen[0] != 0x7 {
		t.Fatalf("observer saw %v, want [0x7]", seen)
	}
	hist := c.SnapshotChip().IOWrites
	if len(hist) != 1 || hist[0].Coord != 304 || hist[0].Value != 0x7 {
		t.Fatalf("IO write ring = %+v, want one entry for coord 304 value 0x7", hist)
	}
}

func TestThermalSeedReseedsOnSchedule(t *testing.T) {
	c := New("t")
	c.Reset()

	before, ok := c.ThermalSeed(708)
	if !ok {
		t.Fatalf("expected node 708 to have a jitter generator after Reset")
	}

	for i := 0; i < ThermalReseedPeriod; i++ {
		c.Step()
	}

	after, ok := c.ThermalSeed(708)
	if !ok {
		t.Fatalf("expected node 708 to still have a jitter generator")
	}
	if after == before {
		t.Fatalf("ThermalSeed did not change after a full reseed period")
	}
}

func TestThermalSeedUnknownNode(t *testing.T) {
	c := New("t")
	c.Reset()
	if _, ok := c.ThermalSeed(999); ok {
		t.Fatalf("ThermalSeed(999) should report ok=false for an off-mesh coordinate")
	}
}
