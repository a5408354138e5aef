/*
 * GA144 - Console command table.
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

package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// cmd is one recognized command: name is matched by unique abbreviation
// down to min characters, mirroring how the teacher's command parser
// let "co" resolve to "continue".
type cmd struct {
	name    string
	min     int
	process func(*Session, *cmdLine) (bool, error)
}

var cmdList = []cmd{
	{name: "step", min: 2, process: step},
	{name: "run", min: 2, process: run},
	{name: "show", min: 2, process: show},
	{name: "break", min: 3, process: setBreak},
	{name: "clear", min: 3, process: clearBreak},
	{name: "boot", min: 2, process: boot},
	{name: "quit", min: 1, process: quit},
}

// cmdLine is the command text being parsed, with a cursor position.
type cmdLine struct {
	line string
	pos  int
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && l.line[l.pos] == ' ' {
		l.pos++
	}
}

func (l *cmdLine) isEOL() bool {
	return l.pos >= len(l.line)
}

// getWord returns the next whitespace-delimited token, advancing past
// it, or "" at end of line.
func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.line) && l.line[l.pos] != ' ' {
		l.pos++
	}
	return l.line[start:l.pos]
}

// args returns every remaining whitespace-separated token.
func (l *cmdLine) args() []string {
	l.skipSpace()
	if l.isEOL() {
		return nil
	}
	return strings.Fields(l.line[l.pos:])
}

// matchCommand reports whether command is an abbreviation of m.name at
// least m.min characters long.
func matchCommand(m cmd, command string) bool {
	if len(command) < m.min || len(command) > len(m.name) {
		return false
	}
	return m.name[:len(command)] == command
}

func matchList(command string) []cmd {
	if command == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, command) {
			match = append(match, m)
		}
	}
	return match
}

// process parses one command line and dispatches it, returning whether
// the session should end.
func (s *Session) process(commandLine string) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord()
	if name == "" {
		return false, nil
	}

	match := matchList(name)
	switch len(match) {
	case 0:
		return false, errors.New("command not found: " + name)
	case 1:
		return match[0].process(s, &line)
	default:
		return false, errors.New("ambiguous command: " + name)
	}
}

// CompleteCmd returns the command names matching the line typed so far,
// for the console's tab completer.
func CompleteCmd(commandLine string) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord()
	match := matchList(name)
	out := make([]string, len(match))
	for i, m := range match {
		out[i] = m.name
	}
	return out
}

func step(s *Session, line *cmdLine) (bool, error) {
	n := "1"
	if a := line.args(); len(a) > 0 {
		n = a[0]
	}
	return false, s.request(OpStep, []string{n})
}

func run(s *Session, line *cmdLine) (bool, error) {
	return false, s.request(OpRun, line.args())
}

func show(s *Session, line *cmdLine) (bool, error) {
	return false, s.request(OpShow, line.args())
}

func setBreak(s *Session, line *cmdLine) (bool, error) {
	args := line.args()
	if len(args) != 2 {
		return false, fmt.Errorf("break requires a node coordinate and an address")
	}
	return false, s.request(OpBreak, args)
}

func clearBreak(s *Session, line *cmdLine) (bool, error) {
	args := line.args()
	if len(args) != 2 {
		return false, fmt.Errorf("clear requires a node coordinate and an address")
	}
	return false, s.request(OpClearBreak, args)
}

func boot(s *Session, line *cmdLine) (bool, error) {
	return false, s.request(OpBoot, line.args())
}

func quit(s *Session, _ *cmdLine) (bool, error) {
	_ = s.request(OpQuit, nil)
	return true, nil
}

// ParseCoord and ParseAddr are small helpers the chip-driving goroutine
// uses to decode Packet.Args; kept here so both sides of the channel
// agree on the argument grammar.
func ParseCoord(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	return uint16(v), err
}

func ParseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}
