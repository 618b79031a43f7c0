// Copyright 2014 Chris Monson <shiblon@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package meta

import (
	"fmt"
	"strings"
	"sync"
)

// counter is one (head, tail) pair for one conflict class. tail counts
// issued tasks in that mode, head counts released ones.
type counter struct {
	head uint32
	tail uint32
}

// waiter is a task argument that was issued while its mode still had
// outstanding conflicts. It is kept in the counter's mode-local waiter
// list (rather than threaded through a generation list, per the "ticket
// counters don't need an explicit generation list" framing of the
// original scheme) so that DelTask can find and wake it once the
// conflicting tail/head gap closes.
type waiter struct {
	mode   AccessMode
	need   map[AccessMode]uint32 // conflicting-mode tail values observed at issue
	wake   WakeFunc
	woken  bool
}

// Ticket implements the counter-based scheme T of spec §4.2: a (head,tail)
// pair per conflict class, with a task's tag recording the conflicting
// tails it must see drained. Grounded on the index-bookkeeping discipline
// of the teacher's heap-backed queues (taskstore/pqueue.go), generalized
// from slice positions to per-mode counters.
type Ticket struct {
	mu       sync.Mutex
	counters [numModes]counter
	waiters  []*waiter

	commuMu    sync.Mutex
	commuHeld  bool
}

// NewTicket returns a fresh Ticket scheme for one live object.
func NewTicket() *Ticket {
	return &Ticket{}
}

func (t *Ticket) drained(mode AccessMode) bool {
	for _, c := range conflicts[mode] {
		if t.counters[c].tail != t.counters[c].head {
			return false
		}
	}
	return true
}

// MatchGroup reports readiness without mutating any counters.
func (t *Ticket) MatchGroup(mode AccessMode) bool {
	if mode == True {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drained(mode)
}

// AddTask bumps the tail for mode and, if any conflicting mode has not yet
// drained to the tails observed here, registers a waiter that DelTask will
// wake later.
func (t *Ticket) AddTask(mode AccessMode, wake WakeFunc) (Tag, bool) {
	if mode == True {
		return &waiter{mode: mode, woken: true}, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters[mode].tail++

	need := make(map[AccessMode]uint32, len(conflicts[mode]))
	ready := true
	for _, c := range conflicts[mode] {
		tail := t.counters[c].tail
		if c == mode {
			// Don't count the increment we just performed against ourselves.
			tail--
		}
		if tail != t.counters[c].head {
			ready = false
		}
		need[c] = tail
	}

	w := &waiter{mode: mode, need: need}
	if ready {
		w.woken = true
		return w, true
	}
	t.waiters = append(t.waiters, w)
	w.wake = wake
	return w, false
}

// DelTask increments head[mode] and wakes any waiters whose conflicting
// tails have now fully drained.
func (t *Ticket) DelTask(tag Tag) {
	w, ok := tag.(*waiter)
	if !ok || w.mode == True {
		return
	}

	t.mu.Lock()
	t.counters[w.mode].head++

	var toWake []*waiter
	remaining := t.waiters[:0]
	for _, other := range t.waiters {
		if other.woken {
			continue
		}
		if t.allDrained(other.need) {
			other.woken = true
			toWake = append(toWake, other)
			continue
		}
		remaining = append(remaining, other)
	}
	t.waiters = remaining
	t.mu.Unlock()

	for _, other := range toWake {
		other.wake()
	}
}

func (t *Ticket) allDrained(need map[AccessMode]uint32) bool {
	for c, tail := range need {
		if t.counters[c].head != tail {
			return false
		}
	}
	return true
}

func (t *Ticket) HasReaders() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters[Read].tail != t.counters[Read].head
}

func (t *Ticket) HasWriters() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters[Write].tail != t.counters[Write].head
}

func (t *Ticket) CommutativeTryAcquire() bool {
	t.commuMu.Lock()
	defer t.commuMu.Unlock()
	if t.commuHeld {
		return false
	}
	t.commuHeld = true
	return true
}

func (t *Ticket) CommutativeRelease() {
	t.commuMu.Lock()
	defer t.commuMu.Unlock()
	if !t.commuHeld {
		panic("meta: commutative release without a matching acquire")
	}
	t.commuHeld = false
}

func (t *Ticket) Dump() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket{")
	for m := AccessMode(0); m < numModes; m++ {
		fmt.Fprintf(&b, " %s=(head=%d,tail=%d)", m, t.counters[m].head, t.counters[m].tail)
	}
	fmt.Fprintf(&b, " waiters=%d commuHeld=%v}", len(t.waiters), t.commuHeld)
	return b.String()
}
