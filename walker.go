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

import "github.com/hvdieren/swan-sub000/meta"

// Arg is the type-directed access-mode contract every argument wrapper
// (Indep, Outdep, Inoutdep, Cinoutdep, Reduction, Truedep, Pushdep, Popdep)
// satisfies. This is the Go rendition of the source's C++ template/SFINAE
// dispatch (§9 Design Notes): a closed set of eight cases resolved at
// compile time through ordinary interface satisfaction, rather than
// generated per-instantiation code.
type Arg interface {
	// Mode returns the conflict class used by the per-object metadata
	// scheme; Outdep and Inoutdep both report meta.Write.
	Mode() meta.AccessMode

	// Meta returns the per-object metadata scheme this argument's object
	// is backed by.
	Meta() meta.ObjectMeta

	// TryAcquire takes any exclusive resource this argument needs for the
	// task to actually run (only Cinoutdep has one: the commutative
	// mutex). Arguments with no such resource (Read, Write, True,
	// Reduction, Push, Pop) always succeed with no side effect. Called two
	// ways: speculatively by iniReady's peek (immediately rolled back
	// either way), and for real by Graph's bucket scan and Pool.next
	// before a worker is handed a task to run — there, a successful
	// acquire is held until Task.run's matching Rollback call, which is
	// what actually enforces invariant 4's "at most one task holding the
	// commutative mutex at a time" on the real scheduling path.
	TryAcquire() bool

	// Rollback undoes a TryAcquire. Called only on arguments that already
	// succeeded, in reverse declaration order: once by iniReady's peek (on
	// every argument, success or failure, since the peek never holds
	// anything), once by Task.tryAcquire if a later argument's acquire
	// fails, and once by Task.run after the task body finishes.
	Rollback()

	// Issue registers this argument with its object's metadata scheme. It
	// owns any t.Incoming bookkeeping its registration needs: for each
	// wake point it registers, it must call t.Incoming.Add(1) first and
	// arrange for exactly one matching decrement (immediately, if already
	// ready, or from the scheme's WakeFunc otherwise). Most access modes
	// need exactly one wake point; Inoutdep under delayed-copy renaming
	// needs two (drain of the old version, then the write on the new
	// one).
	Issue(t *Task)

	// Release retires this argument from its object's metadata at task
	// completion.
	Release()
}

// iniReady is the walker's ini_ready fast path: a non-mutating peek at
// whether every argument could run immediately. Arguments are visited in
// declaration order; on the first failure, every earlier successful
// TryAcquire is rolled back in reverse order, per spec §4.3's MUST.
func iniReady(args []Arg) bool {
	acquired := 0
	ok := true
	for _, a := range args {
		if !a.Meta().MatchGroup(a.Mode()) {
			ok = false
			break
		}
		if !a.TryAcquire() {
			ok = false
			break
		}
		acquired++
	}
	if !ok {
		for i := acquired - 1; i >= 0; i-- {
			args[i].Rollback()
		}
		return false
	}
	// The peek only speculatively acquired exclusive resources to confirm
	// readiness; Issue (below) re-derives tags from scratch via AddTask,
	// so release the peek's holds before the real issue path runs.
	for i := acquired - 1; i >= 0; i-- {
		args[i].Rollback()
	}
	return true
}

// issueTask registers every argument of t with its object's metadata,
// visiting arguments in declaration order (§4.3's MUST). A guard count of
// 1 is held on Incoming for the duration of the loop so that no argument
// resolving synchronously can cause the task to look ready before every
// argument has been issued; the guard is released once the loop completes.
// If the task is then fully ready, it is handed to the graph.
func issueTask(t *Task) {
	t.Incoming.Store(1)
	for _, a := range t.Args {
		a.Issue(t)
	}
	if t.Incoming.Add(-1) == 0 {
		t.graph.AddReady(t)
	}
}

// wakeOn returns the WakeFunc an Arg.Issue should register with its
// scheme: decrement the task's incoming count, and hand it to the graph
// once every argument has drained.
func wakeOn(t *Task) meta.WakeFunc {
	return func() {
		if t.Incoming.Add(-1) == 0 {
			t.graph.AddReady(t)
		}
	}
}
