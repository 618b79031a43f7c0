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

// Package meta implements the per-object dependency metadata schemes that
// decide when a task over a shared object may run. Four interchangeable
// schemes are provided (Ticket, VectorTicket, Generational, Compact); all satisfy
// ObjectMeta so the argument walker never needs to know which one backs a
// given object.
package meta

import "fmt"

// AccessMode is the conflict class of an access-mode wrapper. Outdep and
// Inoutdep both resolve to Write for conflict purposes; the distinction
// between "write-only" and "read-then-write" only matters for renaming
// decisions made above this package.
type AccessMode int

const (
	Read AccessMode = iota
	Write
	Commutative
	ReductionMode
	True
	QueuePush
	QueuePop
	numModes
)

func (m AccessMode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	case Commutative:
		return "commutative"
	case ReductionMode:
		return "reduction"
	case True:
		return "true"
	case QueuePush:
		return "queue-push"
	case QueuePop:
		return "queue-pop"
	default:
		return fmt.Sprintf("AccessMode(%d)", int(m))
	}
}

// conflicts[m] lists the modes that must have fully drained (all prior
// tasks released) before a task declared in mode m may run. See spec §4.2.
var conflicts = [numModes][]AccessMode{
	Read:          {Write, Commutative, ReductionMode},
	Write:         {Read, Write, Commutative, ReductionMode},
	Commutative:   {Read, Write, ReductionMode},
	ReductionMode: {Read, Write, Commutative},
	True:          {},
	QueuePush:     {},
	QueuePop:      {QueuePop},
}

// Tag is an opaque per-argument handle returned by AddTask and consumed by
// DelTask. Its concrete type is scheme-specific; callers must never inspect
// it, only round-trip it.
type Tag interface{}

// WakeFunc is invoked by a scheme at most once, when a task it deferred
// becomes free to run in its declared mode. It must be safe to call from
// any goroutine, including from inside another task's DelTask.
type WakeFunc func()

// ObjectMeta is the contract every per-object dependency-metadata scheme
// must satisfy. One instance exists per live object (or per queue, for the
// hyperqueue's pop/push ordering).
type ObjectMeta interface {
	// MatchGroup reports whether a fresh task in mode m could run right now,
	// without registering it. It never mutates scheme state. Used by the
	// walker's ini_ready fast path.
	MatchGroup(mode AccessMode) bool

	// AddTask registers a task argument in the given mode. If the argument
	// is immediately runnable, ready is true and wake is never called. If
	// not, ready is false and wake will be invoked exactly once, from some
	// future DelTask, once the conflicting generation has fully drained.
	AddTask(mode AccessMode, wake WakeFunc) (tag Tag, ready bool)

	// DelTask retires a previously-added task argument. It must be paired
	// with the AddTask call that produced tag, exactly once.
	DelTask(tag Tag)

	// HasReaders / HasWriters answer renaming-profitability queries: is it
	// worth swinging the object to a fresh version so a writer can proceed
	// without waiting on outstanding readers?
	HasReaders() bool
	HasWriters() bool

	// CommutativeTryAcquire / CommutativeRelease implement the commutative
	// mutex: at most one task may hold it at a time (invariant 4).
	CommutativeTryAcquire() bool
	CommutativeRelease()

	// Dump renders enough of the scheme's internal state to diagnose a
	// misused object at an assertion site (§7).
	Dump() string
}

// Conflicts exposes the conflict table for schemes and tests that need it
// without duplicating the table.
func Conflicts(mode AccessMode) []AccessMode {
	return conflicts[mode]
}
