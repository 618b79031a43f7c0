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
	"testing"
)

func TestGraphFIFOWithinABucket(t *testing.T) {
	g := newGraph()
	t1 := newTask(g, 3, func() {}, nil)
	t2 := newTask(g, 3, func() {}, nil)
	t3 := newTask(g, 3, func() {}, nil)

	g.AddReady(t1)
	g.AddReady(t2)
	g.AddReady(t3)

	for _, want := range []*Task{t1, t2, t3} {
		got, ok := g.GetReady()
		if !ok || got != want {
			t.Fatalf("GetReady() = (%p, %v), want (%p, true)", got, ok, want)
		}
	}
	if _, ok := g.GetReady(); ok {
		t.Error("GetReady() on a drained graph should report false")
	}
}

func TestGraphEmptyReturnsFalse(t *testing.T) {
	g := newGraph()
	if _, ok := g.GetReady(); ok {
		t.Error("GetReady() on an empty graph should report false")
	}
	if _, ok := g.GetReadyAfter(5); ok {
		t.Error("GetReadyAfter() on an empty graph should report false")
	}
}

func TestGraphLenTracksAddAndGet(t *testing.T) {
	g := newGraph()
	if g.Len() != 0 {
		t.Fatalf("Len() on a fresh graph = %d, want 0", g.Len())
	}
	g.AddReady(newTask(g, 0, func() {}, nil))
	g.AddReady(newTask(g, 1, func() {}, nil))
	if got := g.Len(); got != 2 {
		t.Errorf("Len() after 2 adds = %d, want 2", got)
	}
	g.GetReady()
	if got := g.Len(); got != 1 {
		t.Errorf("Len() after 1 get = %d, want 1", got)
	}
}

func TestGraphNegativeDepthHashesSameAsPositive(t *testing.T) {
	g := newGraph()
	task := newTask(g, -7, func() {}, nil)
	g.AddReady(task)
	// bucketIndex folds negative depths to their absolute value, so a task
	// filed at depth -7 must be found scanning from depth 7.
	got, ok := g.GetReadyAfter(7)
	if !ok || got != task {
		t.Fatalf("GetReadyAfter(7) = (%p, %v), want the task filed at depth -7", got, ok)
	}
}

func TestGraphConcurrentAddAndGetAccountForEveryTask(t *testing.T) {
	const n = 2000
	g := newGraph()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.AddReady(newTask(g, i%8, func() {}, nil))
		}()
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := g.GetReady(); !ok {
			break
		}
		count++
	}
	if count != n {
		t.Errorf("drained %d tasks, want %d", count, n)
	}
}
