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

// Indep declares read access to a versioned object (indep<T> in spec §6).
type Indep[T any] struct {
	ver *Version[T]
	tag meta.Tag
}

// NewIndep borrows the object's current version for a read.
func NewIndep[T any](o *Object[T]) *Indep[T] {
	v := o.Current()
	v.AddRef()
	return &Indep[T]{ver: v}
}

// Get reads the borrowed version's value.
func (a *Indep[T]) Get() T { return a.ver.Get() }

func (a *Indep[T]) Mode() meta.AccessMode { return meta.Read }
func (a *Indep[T]) Meta() meta.ObjectMeta { return a.ver.meta }
func (a *Indep[T]) TryAcquire() bool      { return true }
func (a *Indep[T]) Rollback()             {}

// Issue registers the read and wraps the wake callback with the reduction
// finalizer: Read conflicts with ReductionMode (meta/scheme.go), so by the
// time this callback fires, any outstanding reduction episode on the
// object has fully drained and must be combined before this task runs.
func (a *Indep[T]) Issue(t *Task) {
	t.Incoming.Add(1)
	wake := func() {
		a.ver.finalizeReductions()
		wakeOn(t)()
	}
	tag, ready := a.ver.meta.AddTask(meta.Read, wake)
	a.tag = tag
	if ready {
		wake()
	}
}

func (a *Indep[T]) Release() {
	a.ver.meta.DelTask(a.tag)
	a.ver.Release()
}

// Outdep declares write-only access (outdep<T>). Because it never needs to
// observe the prior value, it always renames: the object is swung to a
// fresh version when the argument is constructed (NewOutdep), so this
// write can proceed without waiting
// on any outstanding readers/writers of the old one (spec §4.1(b), the
// S2 "renamed writes run in parallel" scenario).
type Outdep[T any] struct {
	obj *Object[T]
	ver *Version[T]
	tag meta.Tag
}

// NewOutdep renames obj and targets the fresh version.
func NewOutdep[T any](o *Object[T]) *Outdep[T] {
	old := o.Current()
	fresh := old.Rename(o.destroy) // releases the object's own ref on old
	fresh.AddRef()                 // this argument's ref, dropped by Release
	return &Outdep[T]{obj: o, ver: fresh}
}

// Set writes into the fresh version.
func (a *Outdep[T]) Set(v T) { a.ver.Set(v) }

func (a *Outdep[T]) Mode() meta.AccessMode { return meta.Write }
func (a *Outdep[T]) Meta() meta.ObjectMeta { return a.ver.meta }
func (a *Outdep[T]) TryAcquire() bool      { return true }
func (a *Outdep[T]) Rollback()             {}

func (a *Outdep[T]) Issue(t *Task) {
	// No finalizeReductions call here: Issue registers against the fresh,
	// just-renamed version's own (brand new) metadata, which by
	// construction has no reduction participants yet — the old
	// generation's pending episode, if any, is simply discarded along
	// with the rest of its value, matching outdep's write-only contract.
	t.Incoming.Add(1)
	tag, ready := a.ver.meta.AddTask(meta.Write, wakeOn(t))
	a.tag = tag
	if ready {
		wakeOn(t)()
	}
}

func (a *Outdep[T]) Release() {
	a.ver.meta.DelTask(a.tag)
	a.ver.Release()
}

// Inoutdep declares read-write access (inoutdep<T>): the task needs the
// prior value and produces a new one. Behavior is governed by the owning
// Object's RenameMode (config.go): RenameOff serializes on the existing
// version like any writer; the two renaming modes swing the object to a
// fresh version (as Outdep does) but still gate the task's own readiness
// on the prior version's writers draining, since it needs their result.
type Inoutdep[T any] struct {
	old     *Version[T]
	ver     *Version[T] // the version this task writes (== old when RenameOff)
	renamed bool
	mode    RenameMode
	oldTag  meta.Tag
	tag     meta.Tag
}

// NewInoutdepDefault borrows obj for read-write access using the rename
// mode obj was configured with (WithInoutRename), rather than an explicit
// per-call override.
func NewInoutdepDefault[T any](o *Object[T]) *Inoutdep[T] {
	return NewInoutdep(o, o.InoutRenameMode())
}

// NewInoutdep borrows (and possibly renames) obj for read-write access.
// mode selects the rename behavior for this particular task, overriding
// obj's configured default; use NewInoutdepDefault to honor that default.
func NewInoutdep[T any](o *Object[T], mode RenameMode) *Inoutdep[T] {
	old := o.Current()
	old.AddRef()

	if mode == RenameOff {
		return &Inoutdep[T]{old: old, ver: old, renamed: false, mode: mode}
	}

	fresh := old.Rename(o.destroy) // releases the object's own ref on old
	fresh.AddRef()                 // this argument's ref, dropped by Release
	return &Inoutdep[T]{old: old, ver: fresh, renamed: true, mode: mode}
}

// Get reads the prior value (old version, pre-rename if renaming).
func (a *Inoutdep[T]) Get() T { return a.old.Get() }

// Set writes the new value into whichever version this task owns.
func (a *Inoutdep[T]) Set(v T) { a.ver.Set(v) }

func (a *Inoutdep[T]) Mode() meta.AccessMode { return meta.Write }
func (a *Inoutdep[T]) Meta() meta.ObjectMeta { return a.ver.meta }
func (a *Inoutdep[T]) TryAcquire() bool      { return true }
func (a *Inoutdep[T]) Rollback()             {}

func (a *Inoutdep[T]) Issue(t *Task) {
	t.Incoming.Add(1)
	old := a.old

	if a.renamed && a.mode == RenameCopyImmediate {
		// "Copy immediately" means on the issuing thread, not deferred to a
		// task: block here until the prior generation's writers drain, then
		// copy synchronously, so the fresh version is fully populated
		// before Issue returns. This differs from RenameCopyDelayed only in
		// who performs the copy and when; both still gate on the same
		// old-generation Read registration.
		drained := make(chan struct{})
		oldTag, ready := old.meta.AddTask(meta.Read, func() { close(drained) })
		a.oldTag = oldTag
		if ready {
			close(drained)
		}
		<-drained
		old.finalizeReductions()
		a.ver.Set(old.Get())
		t.Incoming.Add(-1)
	} else {
		// Always wait for the prior version's writers to drain: this task
		// needs to observe their result before running, whether or not it
		// ends up writing a renamed version. Without a rename it writes
		// old in place, so it registers there as a writer and also waits
		// for old's readers. Under RenameCopyDelayed the
		// copy piggybacks on this same wake point, so it runs exactly when
		// the old generation drains — on whatever goroutine releases the
		// last conflicting task — rather than blocking the issuing thread.
		wake := func() {
			old.finalizeReductions()
			wakeOn(t)()
		}
		if a.renamed && a.mode == RenameCopyDelayed {
			fresh := a.ver
			wake = func() {
				old.finalizeReductions()
				fresh.Set(old.Get())
				wakeOn(t)()
			}
		}
		oldMode := meta.Read
		if !a.renamed {
			oldMode = meta.Write
		}
		oldTag, ready := old.meta.AddTask(oldMode, wake)
		a.oldTag = oldTag
		if ready {
			wake()
		}
	}

	if !a.renamed {
		return
	}

	// The fresh version is brand new, so this registration is always
	// immediately ready; it exists so later writers on the fresh version
	// correctly queue up behind this one.
	t.Incoming.Add(1)
	tag, ready2 := a.ver.meta.AddTask(meta.Write, wakeOn(t))
	a.tag = tag
	if ready2 {
		wakeOn(t)()
	}
}

func (a *Inoutdep[T]) Release() {
	if a.renamed {
		a.ver.meta.DelTask(a.tag)
		a.ver.Release()
	}
	a.old.meta.DelTask(a.oldTag)
	a.old.Release()
}

// Cinoutdep declares commutative read-write access (cinoutdep<T>): tasks
// over the same object may run in any order, but never overlap (invariant
// 4's single commutative-mutex holder).
type Cinoutdep[T any] struct {
	ver      *Version[T]
	tag      meta.Tag
	acquired bool
}

// NewCinoutdep borrows the current version for commutative access. It
// panics if the object's Config disabled commutativity (WithCommutativity
// (false)): declaring cinoutdep over such an object is a programming
// error, not a runtime condition to degrade gracefully from.
func NewCinoutdep[T any](o *Object[T]) *Cinoutdep[T] {
	assertInvariant(o.commutativityOn, "cinoutdep on an object with commutativity disabled", o.Current().meta)
	v := o.Current()
	v.AddRef()
	return &Cinoutdep[T]{ver: v}
}

// Get/Set operate on the shared version; the commutative mutex held for
// the task's duration makes this safe despite no rename.
func (a *Cinoutdep[T]) Get() T     { return a.ver.Get() }
func (a *Cinoutdep[T]) Set(v T)    { a.ver.Set(v) }

func (a *Cinoutdep[T]) Mode() meta.AccessMode { return meta.Commutative }
func (a *Cinoutdep[T]) Meta() meta.ObjectMeta { return a.ver.meta }

func (a *Cinoutdep[T]) TryAcquire() bool {
	if a.ver.meta.CommutativeTryAcquire() {
		a.acquired = true
		return true
	}
	return false
}

func (a *Cinoutdep[T]) Rollback() {
	if a.acquired {
		a.ver.meta.CommutativeRelease()
		a.acquired = false
	}
}

func (a *Cinoutdep[T]) Issue(t *Task) {
	t.Incoming.Add(1)
	wake := func() {
		a.ver.finalizeReductions()
		wakeOn(t)()
	}
	tag, ready := a.ver.meta.AddTask(meta.Commutative, wake)
	a.tag = tag
	if ready {
		wake()
	}
}

func (a *Cinoutdep[T]) Release() {
	a.ver.meta.DelTask(a.tag)
	a.ver.Release()
}

// Truedep declares a whole-task ordering dependency with no data-conflict
// semantics (truedep<T>): it never blocks anything and is always ready.
type Truedep[T any] struct {
	ver *Version[T]
}

// NewTruedep borrows the current version with no-op access semantics.
func NewTruedep[T any](o *Object[T]) *Truedep[T] {
	v := o.Current()
	v.AddRef()
	return &Truedep[T]{ver: v}
}

func (a *Truedep[T]) Get() T { return a.ver.Get() }

func (a *Truedep[T]) Mode() meta.AccessMode { return meta.True }
func (a *Truedep[T]) Meta() meta.ObjectMeta { return a.ver.meta }
func (a *Truedep[T]) TryAcquire() bool      { return true }
func (a *Truedep[T]) Rollback()             {}
func (a *Truedep[T]) Issue(t *Task)         {}
func (a *Truedep[T]) Release()              { a.ver.Release() }
