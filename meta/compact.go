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
	"sync"
	"sync/atomic"
)

// Compact implements scheme C: only an "oldest" and a "youngest" generation
// are tracked explicitly, plus a count of how many generations are
// currently active. This is correct and cheap so long as the graph stays
// shallow (sustained pipeline parallelism); every operation takes both the
// oldest and youngest locks.
//
// The source's open question (§9) about whether num_gens<=2 is a reliable
// fast-path predicate is resolved here as documented in DESIGN.md: both
// locks are always taken together, whatever numGens is, and numGens itself
// is read and written only under oldestMu+youngestMu held together, so
// there is no window where a reader can observe a stale numGens and skip a
// lock it needed.
type Compact struct {
	oldestMu, youngestMu sync.Mutex
	oldest, youngest      *generation
	numGens                atomic.Int32

	commuMu   sync.Mutex
	commuHeld bool
}

func NewCompact() *Compact {
	return &Compact{}
}

// lockBoth takes oldestMu before youngestMu, per the lock-ordering rule of
// §5 ("oldest before youngest"), and returns the unlock function.
func (c *Compact) lockBoth() func() {
	c.oldestMu.Lock()
	c.youngestMu.Lock()
	return func() {
		c.youngestMu.Unlock()
		c.oldestMu.Unlock()
	}
}

func (c *Compact) MatchGroup(mode AccessMode) bool {
	if mode == True || mode == QueuePush {
		return true
	}
	unlock := c.lockBoth()
	defer unlock()
	cur := c.currentLocked()
	return cur == nil || (cur.kind == kindFor(mode) && cur.kind != kindWriter && cur.kind != kindQueuePop)
}

func (c *Compact) currentLocked() *generation {
	if c.youngest != nil {
		return c.youngest
	}
	return c.oldest
}

func (c *Compact) AddTask(mode AccessMode, wake WakeFunc) (Tag, bool) {
	if mode == True || mode == QueuePush {
		return &genTag{mode: mode, woken: true}, true
	}

	unlock := c.lockBoth()
	defer unlock()

	k := kindFor(mode)
	cur := c.currentLocked()
	needsNewGen := cur == nil || cur.kind != k || cur.kind == kindWriter || cur.kind == kindQueuePop
	if needsNewGen {
		gen := &generation{kind: k, prev: cur}
		if cur != nil {
			cur.next = gen
		}
		if c.oldest == nil {
			c.oldest = gen
		}
		c.youngest = gen
		c.numGens.Add(1)
		cur = gen
	}

	ready := cur.prev == nil
	tag := &genTag{gen: cur, mode: mode}
	cur.pending++
	cur.tasks = append(cur.tasks, tag)
	if ready {
		tag.woken = true
		return tag, true
	}
	tag.wake = wake
	return tag, false
}

func (c *Compact) DelTask(tag Tag) {
	t, ok := tag.(*genTag)
	if !ok || t.gen == nil {
		return
	}

	unlock := c.lockBoth()
	gen := t.gen
	gen.pending--
	if gen.pending > 0 {
		unlock()
		return
	}

	next := gen.next
	if gen.prev != nil {
		gen.prev.next = next
	} else {
		c.oldest = next
	}
	if next != nil {
		next.prev = gen.prev
	} else {
		// gen was the youngest; the object now has no generations, or
		// gen.prev (impossible here since gen.prev==nil implies gen was
		// oldest too, handled by the oldest==next branch above).
		c.youngest = gen.prev
	}
	c.numGens.Add(-1)

	var toWake []*genTag
	if next != nil && next.prev == nil {
		for _, nt := range next.tasks {
			if !nt.woken {
				nt.woken = true
				toWake = append(toWake, nt)
			}
		}
	}
	unlock()

	for _, nt := range toWake {
		nt.wake()
	}
}

func (c *Compact) HasReaders() bool {
	unlock := c.lockBoth()
	defer unlock()
	for gen := c.oldest; gen != nil; gen = gen.next {
		if gen.kind == kindReaders && gen.pending > 0 {
			return true
		}
	}
	return false
}

func (c *Compact) HasWriters() bool {
	unlock := c.lockBoth()
	defer unlock()
	for gen := c.oldest; gen != nil; gen = gen.next {
		if gen.kind == kindWriter && gen.pending > 0 {
			return true
		}
	}
	return false
}

func (c *Compact) CommutativeTryAcquire() bool {
	c.commuMu.Lock()
	defer c.commuMu.Unlock()
	if c.commuHeld {
		return false
	}
	c.commuHeld = true
	return true
}

func (c *Compact) CommutativeRelease() {
	c.commuMu.Lock()
	defer c.commuMu.Unlock()
	if !c.commuHeld {
		panic("meta: commutative release without a matching acquire")
	}
	c.commuHeld = false
}

func (c *Compact) Dump() string {
	unlock := c.lockBoth()
	defer unlock()
	return fmt.Sprintf("Compact{numGens=%d commuHeld=%v}", c.numGens.Load(), c.commuHeld)
}
