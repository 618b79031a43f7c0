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

	"github.com/hvdieren/swan-sub000/meta"
)

// Version wraps one payload plus the per-object dependency metadata that
// governs it, per spec §3. A version with a non-nil owner may be renamed:
// the owning object is swung to a freshly created version, and the old one
// lives on only as long as some task still references it (invariant 1's
// refcount equality).
type Version[T any] struct {
	refs  atomic.Int32
	pay   *payload[T]
	meta  meta.ObjectMeta
	owner *Object[T] // nil for an unversioned version; never renames

	size int

	redMu sync.Mutex
	red   *ReductionMap[T] // lazily created by this version's first Reduction argument
}

// newVersion creates a version with refcount 1 and a freshly constructed
// payload, backed by the given metadata scheme.
func newVersion[T any](v T, destroy func(T), m meta.ObjectMeta, owner *Object[T]) *Version[T] {
	ver := &Version[T]{
		pay:   newPayload(v, destroy),
		meta:  m,
		owner: owner,
	}
	ver.refs.Store(1)
	return ver
}

func newUnversioned[T any](v T, destroy func(T), m meta.ObjectMeta) *Version[T] {
	ver := &Version[T]{
		pay:  newUnversionedPayload(v, destroy),
		meta: m,
	}
	ver.refs.Store(1)
	return ver
}

// AddRef increments the version's refcount; pairs with Release.
func (v *Version[T]) AddRef() {
	n := v.refs.Add(1)
	assertInvariant(n > 1, "version refcount: AddRef after reaching zero", v.meta)
}

// Release decrements the version's refcount, releasing its payload at zero.
func (v *Version[T]) Release() {
	n := v.refs.Add(-1)
	assertInvariant(n >= 0, "version refcount: unpaired Release", v.meta)
	if n == 0 {
		v.pay.delRef()
	}
}

// IsVersionable reports whether this version may be renamed (owner-backed,
// not the unversioned variant). See spec §4.1 invariant (c).
func (v *Version[T]) IsVersionable() bool {
	return v.owner != nil
}

// Rename allocates a fresh version of the same owner, carrying forward a
// zero value (the writer that requested the rename will overwrite it),
// releases the owning object's reference on the old version (the object
// no longer points at it), and returns the new one, whose single starting
// reference belongs to the object. New tasks spawned after Rename see the new version; tasks already
// issued against the old one keep it (program-order preservation, §5).
func (v *Version[T]) Rename(destroy func(T)) *Version[T] {
	assertInvariant(v.IsVersionable(), "Rename on a non-versionable version", v.meta)
	var zero T
	fresh := newVersion(zero, destroy, v.owner.newMeta(), v.owner)
	fresh.size = v.size
	v.owner.swap(fresh)
	v.Release()
	return fresh
}

// CopyTo copies the source's current value into dst: the destination
// receives a snapshot of the source's current data, and its own payload
// keeps its own identity. Inoutdep's renaming modes (config.go) copy with
// Set(old.Get()) directly and do not call CopyTo.
func (v *Version[T]) CopyTo(dst *Version[T]) {
	dst.pay.data = v.pay.data
}

// Get reads the version's current payload value.
func (v *Version[T]) Get() T {
	return v.pay.data
}

// Set overwrites the version's current payload value.
func (v *Version[T]) Set(val T) {
	v.pay.data = val
}

// Meta returns the per-object metadata scheme backing this version's
// generation bookkeeping.
func (v *Version[T]) Meta() meta.ObjectMeta {
	return v.meta
}

// reductionMapFor returns this version's reduction slot pool, creating it
// on first use. numWorkers sizes the pool; later callers with a different
// count are ignored, since every reduction argument over one version
// shares a single pool. Scoped to the version rather than the object (spec
// §3's "Version... optional reduction map", §4.5's "per version, a
// reduction map holds one private slot per worker thread"): a rename
// starts the next generation with a fresh, empty map rather than carrying
// forward whatever the prior generation's episode left in its slots.
func (v *Version[T]) reductionMapFor(m Monoid[T], numWorkers int) *ReductionMap[T] {
	v.redMu.Lock()
	defer v.redMu.Unlock()
	if v.red == nil {
		v.red = newReductionMap(m, numWorkers)
	}
	return v.red
}

// finalizeReductions runs this version's pending reduction episode's
// finalizer, if any reduction arguments have ever been declared over it.
// Called by every non-reduction argument's wake path (spec §4.5), once the
// metadata scheme has confirmed the reduction generation has drained.
func (v *Version[T]) finalizeReductions() {
	v.redMu.Lock()
	rm := v.red
	v.redMu.Unlock()
	if rm == nil {
		return
	}
	rm.finalize(v)
}
