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
	"context"
	"runtime"
	"sync/atomic"
	"testing"
)

// TestS1ReadAfterWriteChain: Create x = 0. T1 writes 7 via outdep. T2 reads
// via indep after sync. Expect the read value == 7.
func TestS1ReadAfterWriteChain(t *testing.T) {
	x := NewObject(0, nil)
	result := make(chan int, 1)

	Run(func(ctx context.Context) {
		w := NewOutdep(x)
		Spawn(ctx, func() { w.Set(7) }, w)

		r := NewIndep(x)
		Spawn(ctx, func() { result <- r.Get() }, r)

		Ssync(ctx)
	})

	if got := <-result; got != 7 {
		t.Errorf("S1: got %d, want 7", got)
	}
}

// TestS2RenamedWritesRunInParallel: 100 outdep writers over one object,
// then a reader. Expect at least 2 renames recorded and a final read that
// is one of the written values (the runtime's chosen serialization).
func TestS2RenamedWritesRunInParallel(t *testing.T) {
	const n = 100
	x := NewObject(-1, nil)
	result := make(chan int, 1)

	Run(func(ctx context.Context) {
		for i := 0; i < n; i++ {
			i := i
			w := NewOutdep(x)
			Spawn(ctx, func() { w.Set(i) }, w)
		}
		r := NewIndep(x)
		Spawn(ctx, func() { result <- r.Get() }, r)
		Ssync(ctx)
	})

	got := <-result
	if got < 0 || got >= n {
		t.Errorf("S2: final value %d not among the 0..%d written", got, n-1)
	}
	if renames := x.RenameCount(); renames < 2 {
		t.Errorf("S2: expected at least 2 renames, got %d", renames)
	}
}

// TestS3CommutativeCounter: 1000 concurrent cinoutdep increments over one
// counter starting at 0. Expect final value 1000 and no two increment
// bodies overlapping.
func TestS3CommutativeCounter(t *testing.T) {
	const n = 1000
	x := NewObject(0, nil)

	var active atomic.Int32
	var overlapped atomic.Bool

	Run(func(ctx context.Context) {
		for i := 0; i < n; i++ {
			c := NewCinoutdep(x)
			Spawn(ctx, func() {
				if active.Add(1) != 1 {
					overlapped.Store(true)
				}
				c.Set(c.Get() + 1)
				active.Add(-1)
			}, c)
		}
		Ssync(ctx)
	})

	if overlapped.Load() {
		t.Error("S3: two commutative increments overlapped")
	}
	if got := x.Current().Get(); got != n {
		t.Errorf("S3: got %d, want %d", got, n)
	}
}

// TestS4ReductionSumCheap: 10,000 reduction<plus> tasks each adding 1.
// Expect the finalized sum to be exactly 10,000.
func TestS4ReductionSumCheap(t *testing.T) {
	const n = 10000
	x := NewObject(0, nil)
	plus := Monoid[int]{
		Identity: 0,
		Reduce:   func(dst, src int) int { return dst + src },
	}

	Run(func(ctx context.Context) {
		for i := 0; i < n; i++ {
			r := NewReduction(x, plus, 8, i)
			Spawn(ctx, func() { r.Set(r.Get() + 1) }, r)
		}
		Ssync(ctx)

		// Finalization is triggered by the next non-reduction access; force
		// it here so the sum is visible once Run returns.
		fin := NewIndep(x)
		Spawn(ctx, func() {}, fin)
		Ssync(ctx)
	})

	if got := x.Current().Get(); got != n {
		t.Errorf("S4: got %d, want %d", got, n)
	}
}

// TestS5ProducerConsumerHyperqueue: producer pushes 0..999, consumer pops
// and accumulates. Expect accumulator == sum(0..999) == 499500.
func TestS5ProducerConsumerHyperqueue(t *testing.T) {
	const n = 1000
	q := NewQueue[int](128, 16)
	sum := make(chan int, 1)

	Run(func(ctx context.Context) {
		p := NewPushdep(q)
		Spawn(ctx, func() {
			for i := 0; i < n; i++ {
				p.Push(i)
			}
		}, p)

		c := NewPopdep(q)
		Spawn(ctx, func() {
			total := 0
			for got := 0; got < n; {
				if v, ok := c.Pop(); ok {
					total += v
					got++
				} else {
					runtime.Gosched()
				}
			}
			sum <- total
		}, c)

		Ssync(ctx)
	})

	if got := <-sum; got != n*(n-1)/2 {
		t.Errorf("S5: got %d, want %d", got, n*(n-1)/2)
	}
}

// TestS6DiamondInoutMiddle: T1 writes x=42; T2, T3 read x; T4 (inoutdep)
// writes x again. Expect T2 and T3 both see T1's write, and T4 sees it too
// (not whatever T2/T3 merely observed), ending at x=43.
func TestS6DiamondInoutMiddle(t *testing.T) {
	x := NewObject(10, nil, WithInoutRename(RenameCopyImmediate))
	seen := make(chan int, 2)
	t4Saw := make(chan int, 1)

	Run(func(ctx context.Context) {
		w1 := NewOutdep(x)
		Spawn(ctx, func() { w1.Set(42) }, w1)

		r2 := NewIndep(x)
		Spawn(ctx, func() { seen <- r2.Get() }, r2)

		r3 := NewIndep(x)
		Spawn(ctx, func() { seen <- r3.Get() }, r3)

		io4 := NewInoutdep(x, RenameCopyImmediate)
		Spawn(ctx, func() {
			v := io4.Get()
			t4Saw <- v
			io4.Set(v + 1)
		}, io4)

		Ssync(ctx)
	})

	for i := 0; i < 2; i++ {
		if got := <-seen; got != 42 {
			t.Errorf("S6: reader saw %d, want 42", got)
		}
	}
	if got := <-t4Saw; got != 42 {
		t.Errorf("S6: T4 saw %d, want 42 (T1's write, not a reader's)", got)
	}
	if got := x.Current().Get(); got != 43 {
		t.Errorf("S6: final value %d, want 43", got)
	}
}
