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

// groupKind classifies a generation's membership, per spec §3 "Generation /
// group": all-readers, single writer, all-commutatives, or all-reductions,
// plus a single queue pop for hyperqueue metadata.
type groupKind int

const (
	kindNone groupKind = iota
	kindReaders
	kindWriter
	kindCommutative
	kindReduction
	kindQueuePop
)

func kindFor(mode AccessMode) groupKind {
	switch mode {
	case Read:
		return kindReaders
	case Write:
		return kindWriter
	case Commutative:
		return kindCommutative
	case ReductionMode:
		return kindReduction
	case QueuePop:
		return kindQueuePop
	default:
		return kindNone
	}
}

// generation is one node of the object's doubly-linked generation list. It
// is intrusive: the list pointers live inside the node, no separate
// allocator is involved, matching the intrusive-list guidance of §9.
type generation struct {
	prev, next *generation
	kind       groupKind
	pending    int // tasks not yet released from this generation
	tasks      []*genTag
}

// genTag is the per-argument tag for the generational scheme: it points
// back at the generation it was registered in, so DelTask can find and
// shrink that generation without a side table.
type genTag struct {
	gen  *generation
	mode AccessMode
	wake WakeFunc
	woken bool
}

// Generational implements scheme G: an explicit doubly-linked list of
// generations. A new generation opens when the incoming mode doesn't match
// the current group's kind, or the current group is non-empty and is a
// writer or queue-pop group (a writer or a pop never shares its generation
// with anything else). True and QueuePush arguments are never tracked.
// Grounded on the index-tracking discipline of taskstore/tqueue.go,
// generalized from heap slots to list nodes.
type Generational struct {
	mu      sync.Mutex
	current *generation
	oldest  *generation
	numGens int

	commuMu   sync.Mutex
	commuHeld bool
}

func NewGenerational() *Generational {
	return &Generational{}
}

// MatchGroup reports whether mode could join the current generation (or
// open a fresh, immediately-runnable one) without waiting.
func (g *Generational) MatchGroup(mode AccessMode) bool {
	if mode == True || mode == QueuePush {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return true
	}
	return g.current.kind == kindFor(mode) && g.current.kind != kindWriter && g.current.kind != kindQueuePop
}

func (g *Generational) AddTask(mode AccessMode, wake WakeFunc) (Tag, bool) {
	if mode == True || mode == QueuePush {
		return &genTag{mode: mode, woken: true}, true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	k := kindFor(mode)
	needsNewGen := g.current == nil || g.current.kind != k || g.current.kind == kindWriter || g.current.kind == kindQueuePop
	if needsNewGen {
		gen := &generation{kind: k, prev: g.current}
		if g.current != nil {
			g.current.next = gen
		} else {
			g.oldest = gen
		}
		g.current = gen
		g.numGens++
	}

	gen := g.current
	ready := gen.prev == nil // only the oldest generation may run
	tag := &genTag{gen: gen, mode: mode}
	gen.pending++
	gen.tasks = append(gen.tasks, tag)
	if ready {
		tag.woken = true
		return tag, true
	}
	tag.wake = wake
	return tag, false
}

func (g *Generational) DelTask(tag Tag) {
	t, ok := tag.(*genTag)
	if !ok || t.gen == nil {
		return
	}

	g.mu.Lock()
	gen := t.gen
	gen.pending--
	if gen.pending > 0 {
		g.mu.Unlock()
		return
	}

	// Generation emptied: unlink it and wake every task of the next
	// generation, since it may now be the oldest.
	next := gen.next
	if gen.prev != nil {
		gen.prev.next = next
	} else {
		g.oldest = next
	}
	if next != nil {
		next.prev = gen.prev
	} else if g.current == gen {
		g.current = gen.prev
	}
	g.numGens--

	var toWake []*genTag
	if next != nil && next.prev == nil {
		for _, nt := range next.tasks {
			if !nt.woken {
				nt.woken = true
				toWake = append(toWake, nt)
			}
		}
	}
	g.mu.Unlock()

	for _, nt := range toWake {
		nt.wake()
	}
}

func (g *Generational) HasReaders() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for gen := g.oldest; gen != nil; gen = gen.next {
		if gen.kind == kindReaders && gen.pending > 0 {
			return true
		}
	}
	return false
}

func (g *Generational) HasWriters() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for gen := g.oldest; gen != nil; gen = gen.next {
		if gen.kind == kindWriter && gen.pending > 0 {
			return true
		}
	}
	return false
}

func (g *Generational) CommutativeTryAcquire() bool {
	g.commuMu.Lock()
	defer g.commuMu.Unlock()
	if g.commuHeld {
		return false
	}
	g.commuHeld = true
	return true
}

func (g *Generational) CommutativeRelease() {
	g.commuMu.Lock()
	defer g.commuMu.Unlock()
	if !g.commuHeld {
		panic("meta: commutative release without a matching acquire")
	}
	g.commuHeld = false
}

func (g *Generational) Dump() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "Generational{numGens=%d gens=[", g.numGens)
	for gen := g.oldest; gen != nil; gen = gen.next {
		fmt.Fprintf(&b, "{kind=%d pending=%d} ", gen.kind, gen.pending)
	}
	fmt.Fprintf(&b, "] commuHeld=%v}", g.commuHeld)
	return b.String()
}
