/*
 * GA144 - "run" subcommand: loads a program onto a simulated chip and
 * hands control to the interactive console.
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

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greenarrays/ga144/internal/bootstream"
	"github.com/greenarrays/ga144/internal/chip"
	"github.com/greenarrays/ga144/internal/config"
	"github.com/greenarrays/ga144/internal/console"
	"github.com/greenarrays/ga144/internal/node"
	"github.com/greenarrays/ga144/util/hexword"
)

func runCmd() *cobra.Command {
	var (
		romFile       string
		bootMapFile   string
		budget        int
		viaBootStream bool
	)

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Assemble, load, and interactively run a program on a simulated chip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := readProgram(args[0])
			if err != nil {
				return err
			}

			c := chip.New(args[0])
			bootNodes := chip.DefaultBootNodes

			if bootMapFile != "" {
				bootNodes, err = config.LoadBootMapFile(bootMapFile)
				if err != nil {
					return fmt.Errorf("run: %w", err)
				}
			}
			c.SetBootNodes(bootNodes)

			if romFile != "" {
				table, err := config.LoadROMTableFile(romFile)
				if err != nil {
					return fmt.Errorf("run: %w", err)
				}
				romData := make(map[uint16][node.ROMSize]uint32, len(program.Nodes))
				for _, n := range program.Nodes {
					img, err := table.Resolve(program.ROMVariant)
					if err != nil {
						return fmt.Errorf("run: node %d: %w", n.Coord, err)
					}
					romData[n.Coord] = img
				}
				c.SetROMData(romData)
			}

			c.Reset()

			if viaBootStream {
				stream, err := bootstream.Build(program)
				if err != nil {
					return fmt.Errorf("run: %w", err)
				}
				if len(stream.Path) == 0 {
					return fmt.Errorf("run: boot stream has no entry node")
				}
				if !c.LoadViaBootStream(stream.Path[0], stream.Bytes, budget) {
					log.Warn("run: boot stream did not reach quiescence within budget", "budget", budget)
				}
			} else if err := c.Load(program); err != nil {
				return fmt.Errorf("run: %w", err)
			}

			pkts := make(chan console.Packet)
			go driveChip(c, pkts)

			sess := console.NewSession(pkts, log)
			return sess.Run("ga144> ")
		},
	}

	cmd.Flags().StringVar(&romFile, "rom", "", "ROM table file (named boot-ROM images)")
	cmd.Flags().StringVar(&bootMapFile, "bootmap", "", "boot-node map file")
	cmd.Flags().IntVar(&budget, "budget", 1_000_000, "step budget for boot-stream loading")
	cmd.Flags().BoolVar(&viaBootStream, "boot-stream", false, "load through the serial boot-stream path instead of direct injection")
	return cmd
}

// driveChip is the sole goroutine permitted to touch c, per chip.Chip's
// single-owner contract; every console command arrives as a Packet and
// is answered before the next one is read, the same hand-off shape the
// teacher used for its master.Packet channel.
func driveChip(c *chip.Chip, in <-chan console.Packet) {
	for pkt := range in {
		switch pkt.Op {
		case console.OpStep:
			n := 1
			if len(pkt.Args) > 0 {
				if v, err := strconv.Atoi(pkt.Args[0]); err == nil {
					n = v
				}
			}
			executed, hit := c.StepN(n)
			pkt.Reply <- console.Reply{Text: fmt.Sprintf("executed %d step(s), breakpoint hit=%v, total steps=%d", executed, hit, c.TotalSteps())}

		case console.OpRun:
			budget := 1_000_000
			if len(pkt.Args) > 0 {
				if v, err := strconv.Atoi(pkt.Args[0]); err == nil {
					budget = v
				}
			}
			done := c.StepUntilDone(budget)
			pkt.Reply <- console.Reply{Text: fmt.Sprintf("quiescent=%v, total steps=%d", done, c.TotalSteps())}

		case console.OpShow:
			pkt.Reply <- console.Reply{Text: showSnapshot(c, pkt.Args)}

		case console.OpBreak:
			coord, addr, err := parseCoordAddr(pkt.Args)
			if err != nil {
				pkt.Reply <- console.Reply{Err: err}
				continue
			}
			c.SetBreakpoint(coord, addr)
			pkt.Reply <- console.Reply{Text: fmt.Sprintf("breakpoint set at node %d address %s", coord, hexword.Addr(addr))}

		case console.OpClearBreak:
			coord, addr, err := parseCoordAddr(pkt.Args)
			if err != nil {
				pkt.Reply <- console.Reply{Err: err}
				continue
			}
			c.ClearBreakpoint(coord, addr)
			pkt.Reply <- console.Reply{Text: fmt.Sprintf("breakpoint cleared at node %d address %s", coord, hexword.Addr(addr))}

		case console.OpBoot:
			pkt.Reply <- console.Reply{Text: "the program was already loaded at startup; use step or run to continue execution"}

		case console.OpQuit:
			pkt.Reply <- console.Reply{Text: "shutting down"}
			return
		}
	}
}

func parseCoordAddr(args []string) (coord uint16, addr uint32, err error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected a node coordinate and an address")
	}
	coord, err = console.ParseCoord(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad node coordinate %q: %w", args[0], err)
	}
	addr, err = console.ParseAddr(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad address %q: %w", args[1], err)
	}
	return coord, addr, nil
}

func showSnapshot(c *chip.Chip, args []string) string {
	if len(args) == 0 {
		snap := c.SnapshotChip()
		return fmt.Sprintf("total steps=%d, active nodes=%d/%d", snap.TotalSteps, c.ActiveCount(), len(snap.Nodes))
	}
	coord, err := console.ParseCoord(args[0])
	if err != nil {
		return "bad node coordinate: " + err.Error()
	}
	snap, ok := c.SnapshotNode(coord)
	if !ok {
		return fmt.Sprintf("node %d is not on the mesh", coord)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "node %d: state=%s P=%s A=%s B=%s T=%s S=%s steps=%d",
		snap.Coord, snap.State, hexword.Addr(snap.P), hexword.Word(snap.A),
		hexword.Word(snap.B), hexword.Word(snap.T), hexword.Word(snap.S), snap.StepCount)
	return b.String()
}
