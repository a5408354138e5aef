/*
 * GA144 - Interactive console session.
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

// Package console reads commands from an interactive line editor and
// turns them into Packets sent over a channel to whatever goroutine
// owns a chip.Chip, the same hand-off shape the teacher's command
// reader used for its master.Packet channel: the console never touches
// the chip directly, since chip.Chip is safe from only one goroutine.
package console

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/peterh/liner"
)

// Op identifies what a Packet is asking the chip-owning goroutine to do.
type Op int

const (
	OpStep Op = iota
	OpRun
	OpShow
	OpBreak
	OpClearBreak
	OpBoot
	OpQuit
)

// Packet is one parsed console command, addressed to the chip-owning
// goroutine. Reply is always non-nil and buffered so the sender never
// blocks delivering its answer.
type Packet struct {
	Op    Op
	Args  []string
	Reply chan Reply
}

// Reply is a Packet's answer: Text is printed verbatim if non-empty,
// Err is reported to the console user and never terminates the session.
type Reply struct {
	Text string
	Err  error
}

// Session drives one interactive console reading from stdin and
// dispatching parsed commands over send.
type Session struct {
	send chan<- Packet
	log  *slog.Logger
}

// NewSession returns a Session that posts Packets to send.
func NewSession(send chan<- Packet, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{send: send, log: log}
}

// Run reads lines from stdin with tab completion over the command
// table until the user quits, types Ctrl-D, or aborts with Ctrl-C.
func (s *Session) Run(prompt string) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string {
		return CompleteCmd(l)
	})

	for {
		command, err := line.Prompt(prompt)
		if err == nil {
			line.AppendHistory(command)
			quit, procErr := s.process(command)
			if procErr != nil {
				fmt.Fprintln(os.Stderr, "error: "+procErr.Error())
			}
			if quit {
				return nil
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		return fmt.Errorf("console: reading input: %w", err)
	}
}

// request sends a Packet built from op/args and waits for its reply,
// printing Text (if any) before returning the reply's error.
func (s *Session) request(op Op, args []string) error {
	reply := make(chan Reply, 1)
	s.send <- Packet{Op: op, Args: args, Reply: reply}
	r := <-reply
	if r.Text != "" {
		fmt.Println(r.Text)
	}
	return r.Err
}
