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

package swan

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/hvdieren/swan-sub000/meta"
	"golang.org/x/sync/singleflight"
)

// Monoid describes a reduction<M> argument's combine operation (spec
// §4.5): an identity element, an associative Reduce, and a tag choosing
// between the cheap (serial) and expensive (parallel tree) finalizers.
type Monoid[T any] struct {
	Identity  T
	Reduce    func(dst, src T) T
	Expensive bool
}

// reductionSlot is one worker's private accumulator for a reduction
// episode. init tracks whether the slot has been touched since the last
// finalize, so an empty episode correctly performs no work (spec §8
// "Empty reduction episode... still leaves the map in uninit state").
type reductionSlot[T any] struct {
	mu    sync.Mutex
	inUse bool
	init  bool
	value T
}

// ReductionMap holds one private slot per worker thread for one version,
// per spec §4.5. Finalization is collapsed through golang.org/x/sync/singleflight
// keyed by an episode counter, so concurrent finalize attempts from sibling
// release paths run the combine exactly once (invariant 6) — reusing the
// teacher module's own x/sync dependency rather than hand-rolling a
// dedupe-by-mutex scheme.
type ReductionMap[T any] struct {
	monoid Monoid[T]
	slots  []*reductionSlot[T]

	mu      sync.Mutex
	episode int
	group   singleflight.Group
}

func newReductionMap[T any](m Monoid[T], numWorkers int) *ReductionMap[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	slots := make([]*reductionSlot[T], numWorkers)
	for i := range slots {
		slots[i] = &reductionSlot[T]{}
	}
	return &ReductionMap[T]{monoid: m, slots: slots}
}

// privatize reserves a private slot for a new reduction task, preferring
// the calling worker's own slot and falling back to scanning for any free
// slot (spec §4.5 "On issue, the task picks the local thread's slot if
// free, else scans for any free slot").
func (rm *ReductionMap[T]) privatize(worker int) *reductionSlot[T] {
	idx := worker % len(rm.slots)
	if s := rm.slots[idx]; s.tryLock() {
		return s
	}
	for _, s := range rm.slots {
		if s.tryLock() {
			return s
		}
	}
	// Every slot is held: degrade to waiting on the preferred one, which
	// serializes this task behind whichever task currently owns it. This
	// cannot deadlock: slots are only ever held for a single task's
	// lifetime, released at Reduction.Release.
	s := rm.slots[idx]
	for !s.tryLock() {
		runtime.Gosched()
	}
	return s
}

func (s *reductionSlot[T]) tryLock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse {
		return false
	}
	s.inUse = true
	return true
}

func (s *reductionSlot[T]) release(identity T) {
	s.mu.Lock()
	s.inUse = false
	s.mu.Unlock()
	_ = identity
}

// finalize merges every touched slot into master, exactly once for the
// current episode, then opens a fresh episode.
func (rm *ReductionMap[T]) finalize(master *Version[T]) {
	rm.mu.Lock()
	ep := rm.episode
	rm.mu.Unlock()

	rm.group.Do(strconv.Itoa(ep), func() (interface{}, error) {
		rm.doFinalize(master)
		rm.mu.Lock()
		rm.episode++
		rm.mu.Unlock()
		return nil, nil
	})
}

func (rm *ReductionMap[T]) doFinalize(master *Version[T]) {
	type touchedSlot struct {
		slot *reductionSlot[T]
		val  T
	}
	var touched []touchedSlot
	for _, s := range rm.slots {
		s.mu.Lock()
		if s.init {
			touched = append(touched, touchedSlot{s, s.value})
		}
		s.mu.Unlock()
	}
	if len(touched) == 0 {
		return // empty episode: no finalizer invocation
	}

	var combined T
	if rm.monoid.Expensive {
		vals := make([]T, len(touched))
		for i, ts := range touched {
			vals[i] = ts.val
		}
		combined = treeReduce(rm.monoid, vals)
	} else {
		combined = touched[0].val
		for _, ts := range touched[1:] {
			combined = rm.monoid.Reduce(combined, ts.val)
		}
	}

	master.Set(rm.monoid.Reduce(master.Get(), combined))

	for _, ts := range touched {
		ts.slot.mu.Lock()
		ts.slot.value = rm.monoid.Identity
		ts.slot.init = false
		ts.slot.mu.Unlock()
	}
}

// treeReduce implements the expensive finalizer's binary tree of
// reduce_pair_task calls (spec §4.5) as a goroutine fan-out over the
// touched slots' values, synchronized with a WaitGroup.
func treeReduce[T any](m Monoid[T], vals []T) T {
	if len(vals) == 1 {
		return vals[0]
	}
	mid := len(vals) / 2
	var left, right T
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); left = treeReduce(m, vals[:mid]) }()
	go func() { defer wg.Done(); right = treeReduce(m, vals[mid:]) }()
	wg.Wait()
	return m.Reduce(left, right)
}

// Reduction declares a reduction<M> argument: tasks touching the same
// object in this mode run against private per-worker slots and never
// conflict with each other; the combined result becomes visible only once
// ReductionMap.finalize runs, triggered by the next non-reduction access.
type Reduction[T any] struct {
	ver  *Version[T]
	tag  meta.Tag
	rm   *ReductionMap[T]
	slot *reductionSlot[T]
}

// NewReduction declares reduction access to obj using monoid m. worker is
// the issuing worker's index, used to prefer that worker's own slot;
// numWorkers sizes the slot pool on first use and is ignored thereafter.
// The slot pool belongs to obj's current version, not obj itself, so a
// rename between this episode and the next starts the next one with
// every slot back at the monoid's identity.
func NewReduction[T any](o *Object[T], m Monoid[T], numWorkers, worker int) *Reduction[T] {
	assertInvariant(o.reductionOn, "reduction on an object with reductions disabled", o.Current().meta)
	v := o.Current()
	v.AddRef()
	rm := v.reductionMapFor(m, numWorkers)
	return &Reduction[T]{ver: v, rm: rm, slot: rm.privatize(worker)}
}

// Get/Set read and write this task's private slot, Get initializing it
// to the monoid's identity on first touch.
func (a *Reduction[T]) Get() T {
	if !a.slot.init {
		a.slot.value = a.rm.monoid.Identity
		a.slot.init = true
	}
	return a.slot.value
}

func (a *Reduction[T]) Set(v T) {
	a.slot.value = v
	a.slot.init = true
}

func (a *Reduction[T]) Mode() meta.AccessMode { return meta.ReductionMode }
func (a *Reduction[T]) Meta() meta.ObjectMeta { return a.ver.meta }
func (a *Reduction[T]) TryAcquire() bool      { return true }
func (a *Reduction[T]) Rollback()             {}

func (a *Reduction[T]) Issue(t *Task) {
	t.Incoming.Add(1)
	tag, ready := a.ver.meta.AddTask(meta.ReductionMode, wakeOn(t))
	a.tag = tag
	if ready {
		wakeOn(t)()
	}
}

func (a *Reduction[T]) Release() {
	a.ver.meta.DelTask(a.tag)
	a.slot.release(a.rm.monoid.Identity)
	a.ver.Release()
}
