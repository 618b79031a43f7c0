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

import "testing"

func TestIniReadyTrueOnUncontendedArgs(t *testing.T) {
	x := NewObject(0, nil)
	r := NewIndep(x)
	if !iniReady([]Arg{r}) {
		t.Error("a lone read on a fresh object should peek ready")
	}
	r.Release()
}

func TestIniReadyFalseWhenWriterOutstanding(t *testing.T) {
	x := NewObject(0, nil)
	w := NewOutdep(x)
	g := newGraph()
	wt := newTask(g, 0, func() {}, []Arg{w})
	issueTask(wt)

	r := NewIndep(x) // borrows the renamed version w writes, which still has an outstanding writer
	if iniReady([]Arg{r}) {
		t.Error("a read should not peek ready while a writer holds the version")
	}
	r.Release()
	w.Release()
}

func TestIniReadyRollsBackCommutativeAcquireOnFailure(t *testing.T) {
	x := NewObject(0, nil)
	c1 := NewCinoutdep(x)
	c2 := NewCinoutdep(x)

	// Both declare commutative access to the same object: iniReady's peek
	// over [c1, c2] acquires c1's mutex speculatively, then fails on c2
	// (the same mutex, already held), and must roll c1 back in reverse
	// order rather than leaving it speculatively held.
	if iniReady([]Arg{c1, c2}) {
		t.Error("two commutative peeks over the same object should not both be ready")
	}
	if !c1.TryAcquire() {
		t.Error("c1's speculative acquire should have been rolled back by the failed peek")
	}
	c1.Rollback()
	c1.Release()
	c2.Release()
}
