/*
 * GA144 - Generalized recurring event queue.
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

// Package schedule is a step-counted recurring event queue: entries fire
// every period ticks of whatever clock the caller advances. It is the
// same relative-delta linked-list technique a one-shot event list uses,
// except a fired entry is reinserted at its full period instead of being
// dropped, since the chip has no notion of real time to resume from.
package schedule

// Callback is invoked, with no arguments, when a scheduled entry fires.
type Callback func()

// entry is one registered recurring callback. time is stored relative to
// the entry before it in the list, so Advance only ever has to touch the
// head to find out how much of everyone's countdown has elapsed.
type entry struct {
	period     int
	time       int
	cb         Callback
	prev, next *entry
}

// Handle is an opaque reference to a registered entry, usable with Cancel.
type Handle = *entry

// Scheduler is a list of recurring callbacks ordered by time-to-fire.
type Scheduler struct {
	head, tail *entry
}

// Register adds a callback that fires every period ticks, starting
// period ticks from now. period must be positive.
func (s *Scheduler) Register(period int, cb Callback) Handle {
	e := &entry{period: period, time: period, cb: cb}
	s.insert(e)
	return e
}

// Cancel removes e from the schedule. Canceling an entry that is not
// currently registered (already canceled, or never returned by this
// Scheduler) is a no-op.
func (s *Scheduler) Cancel(e Handle) {
	for cur := s.head; cur != nil; cur = cur.next {
		if cur == e {
			s.remove(e)
			return
		}
	}
}

// Advance moves the clock forward by ticks, firing (and immediately
// re-arming at its full period) every entry whose countdown reaches
// zero. Entries fire in increasing time-to-fire order; an entry's
// callback may itself call Register, whose new entry is not visited by
// the Advance call that spawned it.
func (s *Scheduler) Advance(ticks int) {
	if s.head == nil || ticks <= 0 {
		return
	}
	s.head.time -= ticks
	for s.head != nil && s.head.time <= 0 {
		e := s.head
		s.remove(e)
		e.cb()
		e.time = e.period
		s.insert(e)
	}
}

// insert places e into the list in relative-delta order, stealing time
// from whichever entry it now precedes.
func (s *Scheduler) insert(e *entry) {
	cur := s.head
	for cur != nil {
		if e.time <= cur.time {
			cur.time -= e.time
			e.prev = cur.prev
			e.next = cur
			cur.prev = e
			if e.prev != nil {
				e.prev.next = e
			} else {
				s.head = e
			}
			return
		}
		e.time -= cur.time
		cur = cur.next
	}
	e.prev = s.tail
	e.next = nil
	if s.tail != nil {
		s.tail.next = e
	} else {
		s.head = e
	}
	s.tail = e
}

// remove unlinks e, handing its remaining countdown to whatever now
// follows it so the list's total delay is preserved.
func (s *Scheduler) remove(e *entry) {
	if e.next != nil {
		e.next.time += e.time
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	e.prev, e.next = nil, nil
}
