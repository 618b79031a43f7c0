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
	"sync/atomic"

	"github.com/hvdieren/swan-sub000/meta"
)

// Object is the user-visible, value-typed handle onto a versioned object
// (spec §3's "Object handle"). It holds the atomic pointer to the current
// version so that readers never observe a torn rename, and remembers which
// metadata scheme backs freshly created versions (e.g. after Rename).
type Object[T any] struct {
	scheme          SchemeKind
	destroy         func(T)
	cur             atomic.Pointer[Version[T]]
	commutativityOn bool
	reductionOn     bool
	inoutRename     RenameMode
	renames         atomic.Int64
}

// NewObject creates a versioned object_t<T> with the given initial value.
// destroy may be nil when T needs no cleanup beyond ordinary GC.
func NewObject[T any](initial T, destroy func(T), opts ...Option) *Object[T] {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	obj := &Object[T]{
		scheme:          cfg.scheme,
		destroy:         destroy,
		commutativityOn: cfg.commutativityOn,
		reductionOn:     cfg.reductionOn,
		inoutRename:     cfg.inoutRename,
	}
	obj.cur.Store(newVersion(initial, destroy, newMetaForScheme(cfg.scheme), obj))
	return obj
}

// Current returns the object's current version.
func (o *Object[T]) Current() *Version[T] {
	return o.cur.Load()
}

// newMeta builds a fresh metadata scheme instance of the same kind this
// object was created with, used by Version.Rename.
func (o *Object[T]) newMeta() meta.ObjectMeta {
	return newMetaForScheme(o.scheme)
}

// swap installs a freshly renamed version as current. Only Rename calls
// this, and only on the object that owns the version being replaced.
func (o *Object[T]) swap(v *Version[T]) {
	o.cur.Store(v)
	o.renames.Add(1)
}

// RenameCount reports how many times this object has been renamed, as an
// instrumentation hook for tests that need to observe version churn
// without reaching into scheme internals.
func (o *Object[T]) RenameCount() int64 {
	return o.renames.Load()
}

// InoutRenameMode reports the OBJECT_INOUT_RENAME behavior this object was
// configured with (WithInoutRename), for callers building an Inoutdep
// argument that wants the object's default rather than a one-off override.
func (o *Object[T]) InoutRenameMode() RenameMode {
	return o.inoutRename
}

// Unversioned is a fixed-identity object that never renames (spec §4.1
// "unversioned variant").
type Unversioned[T any] struct {
	ver *Version[T]
}

// NewUnversioned creates an object with a fixed identity.
func NewUnversioned[T any](initial T, destroy func(T), opts ...Option) *Unversioned[T] {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Unversioned[T]{ver: newUnversioned(initial, destroy, newMetaForScheme(cfg.scheme))}
}

// Current returns the object's single, permanent version.
func (u *Unversioned[T]) Current() *Version[T] {
	return u.ver
}
