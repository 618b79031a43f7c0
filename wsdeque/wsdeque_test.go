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

package wsdeque

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPushPopLIFO(t *testing.T) {
	d := New[int](16)
	for i := 0; i < 5; i++ {
		if !d.Push(i) {
			t.Fatalf("Push(%d) failed, deque should have room", i)
		}
	}
	var got []int
	for {
		v, ok := d.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	want := []int{4, 3, 2, 1, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Pop order mismatch (-want +got):\n%s", diff)
	}
	if _, ok := d.Pop(); ok {
		t.Error("Pop() on an empty deque should report false")
	}
}

func TestPushFailsAtCapacity(t *testing.T) {
	d := New[int](4)
	for i := 0; i < 4; i++ {
		if !d.Push(i) {
			t.Fatalf("Push(%d) should succeed within capacity", i)
		}
	}
	if d.Push(4) {
		t.Error("Push beyond capacity should fail")
	}
}

func TestStealFIFO(t *testing.T) {
	d := New[int](16)
	for i := 0; i < 5; i++ {
		d.Push(i)
	}
	// Steal takes from the top (oldest pushed), opposite end from Pop.
	v, ok := d.Steal()
	if !ok || v != 0 {
		t.Fatalf("Steal() = (%d, %v), want (0, true)", v, ok)
	}
}

func TestStealOnEmptyFails(t *testing.T) {
	d := New[int](16)
	if _, ok := d.Steal(); ok {
		t.Error("Steal() on an empty deque should report false")
	}
}

func TestConcurrentStealersSeeEachItemOnce(t *testing.T) {
	const n = 2000
	d := New[int](n + 1)
	for i := 0; i < n; i++ {
		d.Push(i)
	}

	seen := make([]int32, n)
	var mu sync.Mutex
	var dup bool
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := d.Steal()
				if !ok {
					return
				}
				mu.Lock()
				seen[v]++
				if seen[v] > 1 {
					dup = true
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if dup {
		t.Error("some item was stolen by more than one goroutine")
	}
	for i, ok := d.Pop(); ok; i, ok = d.Pop() {
		mu.Lock()
		seen[i]++
		if seen[i] > 1 {
			dup = true
		}
		mu.Unlock()
	}
	if dup {
		t.Error("owner Pop raced with a steal on the same item")
	}
	for i, count := range seen {
		if count != 1 {
			t.Errorf("item %d seen %d times, want exactly 1", i, count)
		}
	}
}

func TestLenTracksPushAndPop(t *testing.T) {
	d := New[int](16)
	if d.Len() != 0 {
		t.Fatalf("Len() on an empty deque = %d, want 0", d.Len())
	}
	d.Push(1)
	d.Push(2)
	if got := d.Len(); got != 2 {
		t.Errorf("Len() after 2 pushes = %d, want 2", got)
	}
	d.Pop()
	if got := d.Len(); got != 1 {
		t.Errorf("Len() after 1 pop = %d, want 1", got)
	}
}
