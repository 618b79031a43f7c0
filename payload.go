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

import "sync/atomic"

// payload is the reference-counted user data of one version, per spec §3.
// A payload created with refcount 1 belongs to the version that created it;
// add/del mirror nested task scopes sharing (and releasing) the same data
// without copying.
type payload[T any] struct {
	data    T
	refs    atomic.Int32
	destroy func(T)

	// keepAlive marks an unversioned payload: del never reaches zero, so
	// its destructor never fires (§4.1 unversioned variant).
	keepAlive bool
}

func newPayload[T any](v T, destroy func(T)) *payload[T] {
	p := &payload[T]{data: v, destroy: destroy}
	p.refs.Store(1)
	return p
}

func newUnversionedPayload[T any](v T, destroy func(T)) *payload[T] {
	p := &payload[T]{data: v, destroy: destroy, keepAlive: true}
	p.refs.Store(2) // never reaches zero via ordinary del calls
	return p
}

func (p *payload[T]) addRef() {
	if p.refs.Add(1) == 1 {
		panic("swan: addRef on a payload that already reached zero refs")
	}
}

func (p *payload[T]) delRef() {
	if p.keepAlive {
		return
	}
	n := p.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n == 0:
		if p.destroy != nil {
			p.destroy(p.data)
		}
	default:
		panic("swan: payload refcount went negative; unpaired delRef")
	}
}
