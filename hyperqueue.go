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
	"sync"
	"sync/atomic"

	"github.com/hvdieren/swan-sub000/meta"
)

type segState int32

const (
	segProducing segState = iota
	segFull
	segConsumed
)

// segment is one fixed-capacity slot of a hyperqueue's ring (spec §4.6):
// only the producer writes to it and only the consumer reads from it, so
// wpos/rpos need no synchronization of their own; state is the only field
// touched from both sides, hence atomic.
type segment[T any] struct {
	state atomic.Int32
	items []T
	wpos  int
	rpos  int
}

func newSegment[T any](cap int) *segment[T] {
	s := &segment[T]{items: make([]T, cap)}
	s.state.Store(int32(segProducing))
	return s
}

func (s *segment[T]) push(v T) bool {
	if s.wpos >= len(s.items) {
		return false
	}
	s.items[s.wpos] = v
	s.wpos++
	if s.wpos == len(s.items) {
		s.state.Store(int32(segFull))
	}
	return true
}

func (s *segment[T]) pop() (T, bool) {
	var zero T
	if s.rpos >= s.wpos {
		return zero, false
	}
	v := s.items[s.rpos]
	s.rpos++
	return v, true
}

func (s *segment[T]) reset() {
	s.wpos, s.rpos = 0, 0
	s.state.Store(int32(segProducing))
}

// Queue is a hyperqueue handle (queue_t<T> in spec §6): a segmented FIFO
// with split producer/consumer access, gated by the configured metadata
// scheme's queue-pop ordering (scheme T by default) so pops (and the interleaving of pop with a future push-then-pop)
// serialize while pushes never wait on anything (spec §4.6, §5 "no ordering
// guaranteed between tasks that share only pushdep arguments").
type Queue[T any] struct {
	mu      sync.Mutex
	ring    []*segment[T]
	prodIdx int
	consIdx int

	meta meta.ObjectMeta

	tail uint64
	head uint64
}

// NewQueue creates a hyperqueue with segCap items per segment and
// numSegments ring slots recycled as the consumer drains them. Both default
// to reasonable sizes when given as zero.
func NewQueue[T any](segCap, numSegments int, opts ...Option) *Queue[T] {
	if segCap < 1 {
		segCap = 256
	}
	if numSegments < 2 {
		numSegments = 4
	}
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	ring := make([]*segment[T], numSegments)
	for i := range ring {
		ring[i] = newSegment[T](segCap)
	}
	return &Queue[T]{ring: ring, meta: newMetaForScheme(cfg.scheme)}
}

// push appends v to the producing segment, rotating to the next ring slot
// when full: a slot never written yet is taken as is, and one the consumer
// has fully drained is recycled first. A
// ring with no recyclable slot yet busy-waits by yielding the processor,
// per spec §9's "busy-wait on segment capacity... the waiting thread
// yields (by stealing)" — this goroutine has no task-graph handle to steal
// from directly, so it yields to the Go scheduler instead, which lets any
// other runnable goroutine (including a worker's steal loop) make progress.
func (q *Queue[T]) push(v T) {
	for {
		q.mu.Lock()
		seg := q.ring[q.prodIdx]
		if seg.push(v) {
			q.tail++
			q.mu.Unlock()
			return
		}
		next := (q.prodIdx + 1) % len(q.ring)
		nseg := q.ring[next]
		st := segState(nseg.state.Load())
		if st == segConsumed || (st == segProducing && nseg.wpos == 0) {
			nseg.reset()
			q.prodIdx = next
			q.mu.Unlock()
			continue
		}
		q.mu.Unlock()
		runtime.Gosched()
	}
}

// pop removes the oldest unconsumed item, advancing past fully-drained
// segments, and reports false once it reaches a segment the producer
// hasn't finished writing (the queue is transiently empty, not closed;
// there is no end-of-stream signal at this layer).
func (q *Queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		seg := q.ring[q.consIdx]
		if v, ok := seg.pop(); ok {
			q.head++
			return v, true
		}
		if segState(seg.state.Load()) == segProducing {
			var zero T
			return zero, false
		}
		seg.state.Store(int32(segConsumed))
		q.consIdx = (q.consIdx + 1) % len(q.ring)
		if q.consIdx == q.prodIdx && segState(q.ring[q.consIdx].state.Load()) == segProducing && q.ring[q.consIdx].wpos == 0 {
			var zero T
			return zero, false
		}
	}
}

// Pushdep declares producer access to a hyperqueue (pushdep<T> in spec
// §6). It never conflicts with anything, including another Pushdep: the
// conflict table's empty entry for QueuePush (meta/scheme.go) means Issue
// is a pure no-op, always immediately ready.
type Pushdep[T any] struct {
	q *Queue[T]
}

// NewPushdep declares push access to q.
func NewPushdep[T any](q *Queue[T]) *Pushdep[T] { return &Pushdep[T]{q: q} }

// Push enqueues v, busy-waiting if every ring segment is currently full.
func (a *Pushdep[T]) Push(v T) { a.q.push(v) }

func (a *Pushdep[T]) Mode() meta.AccessMode { return meta.QueuePush }
func (a *Pushdep[T]) Meta() meta.ObjectMeta { return a.q.meta }
func (a *Pushdep[T]) TryAcquire() bool      { return true }
func (a *Pushdep[T]) Rollback()             {}
func (a *Pushdep[T]) Issue(t *Task)         {}
func (a *Pushdep[T]) Release()              {}

// Popdep declares consumer access to a hyperqueue (popdep<T> in spec §6).
// QueuePop conflicts with itself (meta/scheme.go), so concurrent poppers
// on the same queue serialize: only one Popdep task runs against a queue
// at a time, in the order their arguments were issued.
type Popdep[T any] struct {
	q   *Queue[T]
	tag meta.Tag
}

// NewPopdep declares pop access to q.
func NewPopdep[T any](q *Queue[T]) *Popdep[T] { return &Popdep[T]{q: q} }

// Pop removes and returns the oldest unconsumed item; ok is false if the
// producer has not yet written anything past the current read position.
func (a *Popdep[T]) Pop() (T, bool) { return a.q.pop() }

func (a *Popdep[T]) Mode() meta.AccessMode { return meta.QueuePop }
func (a *Popdep[T]) Meta() meta.ObjectMeta { return a.q.meta }
func (a *Popdep[T]) TryAcquire() bool      { return true }
func (a *Popdep[T]) Rollback()             {}

func (a *Popdep[T]) Issue(t *Task) {
	t.Incoming.Add(1)
	tag, ready := a.q.meta.AddTask(meta.QueuePop, wakeOn(t))
	a.tag = tag
	if ready {
		wakeOn(t)()
	}
}

func (a *Popdep[T]) Release() {
	a.q.meta.DelTask(a.tag)
}
