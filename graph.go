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
	"sync"
	"sync/atomic"
)

// numBuckets fixes the ready list's bucket count (spec §4.4's chosen
// fixed-size variant over a growable one; see DESIGN.md).
const numBuckets = 2048

// bucket is one depth-hashed slot of the ready list: a small slice-backed
// FIFO behind its own mutex (spec §4.4), so unrelated depths never
// contend.
type bucket struct {
	mu    sync.Mutex
	items []*Task
}

// Graph is the per-worker taskgraph and its ready list (spec §4.4):
// AddReady files a task into the bucket its depth hashes to; GetReady and
// GetReadyAfter pull the next runnable task, preferring to continue near a
// given depth so a worker naturally follows one branch of the graph before
// wandering to another (depth-biased locality, referenced by Task.Depth in
// task.go).
type Graph struct {
	buckets [numBuckets]bucket
	size    atomic.Int64
}

// newGraph creates an empty ready list.
func newGraph() *Graph {
	return &Graph{}
}

func bucketIndex(depth int) int {
	if depth < 0 {
		depth = -depth
	}
	return depth % numBuckets
}

// AddReady files t into the ready list once every argument has cleared
// (walker.go's issueTask calls this). Safe to call from any goroutine.
func (g *Graph) AddReady(t *Task) {
	idx := bucketIndex(t.Depth)
	b := &g.buckets[idx]
	b.mu.Lock()
	b.items = append(b.items, t)
	b.mu.Unlock()
	g.size.Add(1)
}

// GetReady pops any ready task, scanning from bucket 0.
func (g *Graph) GetReady() (*Task, bool) {
	return g.GetReadyAfter(-1)
}

// GetReadyAfter pops a ready task, scanning starting from prevDepth's
// bucket (wrapping around the full ring) so a worker that just finished a
// task at prevDepth tends to pick up sibling or child work next, rather
// than jumping to an unrelated part of the graph. prevDepth < 0 starts the
// scan at bucket 0, used both for an idle worker's first pop and for a
// thief stealing from another worker's Graph.
func (g *Graph) GetReadyAfter(prevDepth int) (*Task, bool) {
	if g.size.Load() == 0 {
		return nil, false
	}
	start := 0
	if prevDepth >= 0 {
		start = bucketIndex(prevDepth)
	}
	for i := 0; i < numBuckets; i++ {
		idx := (start + i) % numBuckets
		b := &g.buckets[idx]
		if t, ok := b.popReady(); ok {
			g.size.Add(-1)
			return t, true
		}
	}
	return nil, false
}

// popReady scans this bucket's FIFO in order for the first task whose
// commutative acquire (if any) succeeds, per spec §4.4: "an atomic pop of a
// task whose commutative acquire succeeds; otherwise skip and try the
// next." Tasks it skips stay in the bucket, in place, for a later pop
// attempt once whatever currently holds their commutative mutex releases
// it — only the winning task is removed.
func (b *bucket) popReady() (*Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, t := range b.items {
		if t.tryAcquire() {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return t, true
		}
	}
	return nil, false
}

// Len reports the ready list's approximate current size, for diagnostics
// and tests.
func (g *Graph) Len() int {
	return int(g.size.Load())
}
