/*
 * GA144 - Command-line front end.
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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/greenarrays/ga144/internal/assemble"
	"github.com/greenarrays/ga144/internal/disassemble"
	"github.com/greenarrays/ga144/internal/loader"
	"github.com/greenarrays/ga144/util/hexword"
	"github.com/greenarrays/ga144/util/logger"
)

var log *slog.Logger

func boolPtr(b bool) *bool { return &b }

func main() {
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	log = slog.New(logger.NewHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel}, boolPtr(false)))
	slog.SetDefault(log)

	var debug bool
	root := &cobra.Command{
		Use:   "ga144",
		Short: "GA144 F18A mesh emulator, assembler, and boot-loader",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				programLevel.Set(slog.LevelDebug)
			}
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(asmCmd(), disasmCmd(), runCmd())

	// cmd/ga144 is the only place in this repository that calls
	// os.Exit; every package under internal/ reports failure through
	// a returned error instead.
	if err := root.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func readProgram(path string) (loader.CompiledProgram, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return loader.CompiledProgram{}, fmt.Errorf("reading %s: %w", path, err)
	}
	program := assemble.Assemble(string(source))
	for _, d := range program.Warnings {
		log.Warn(fmt.Sprintf("%s:%d:%d: %s", path, d.Line, d.Col, d.Message))
	}
	for _, d := range program.Errors {
		log.Error(fmt.Sprintf("%s:%d:%d: %s", path, d.Line, d.Col, d.Message))
	}
	if len(program.Errors) > 0 {
		return program, fmt.Errorf("%s: %d diagnostic error(s)", path, len(program.Errors))
	}
	return program, nil
}

func asmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "asm <source>",
		Short: "Assemble a source file and report per-node diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := readProgram(args[0])
			if err != nil {
				return err
			}
			for _, n := range program.Nodes {
				fmt.Printf("node %d: %d word(s) compiled\n", n.Coord, compiledWordCount(n))
			}
			return nil
		},
	}
}

func compiledWordCount(n loader.CompiledNode) int {
	count := 0
	for _, v := range n.Mem {
		if v != nil {
			count++
		}
	}
	return count
}

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <source>",
		Short: "Assemble a source file, then print the disassembly of each node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := readProgram(args[0])
			if err != nil {
				return err
			}
			for _, n := range program.Nodes {
				fmt.Printf("; node %d\n", n.Coord)
				words := make([]uint32, n.Len)
				for i := 0; i < n.Len; i++ {
					if n.Mem[i] != nil {
						words[i] = *n.Mem[i]
					}
				}
				for _, l := range disassemble.Disassemble(words, 0) {
					fmt.Printf("%s  %s\n", hexword.Addr(l.Addr), l.String())
				}
			}
			return nil
		},
	}
}
