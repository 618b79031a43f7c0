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

package meta

import (
	"fmt"
	"sync"
)

// cacheLinePad is sized so that the tail lanes and head lanes of
// VectorTicket land on separate cache lines, matching the "two 4-lane
// integer vectors aligned on separate cache lines" layout of spec §4.2.
// Go has no portable SIMD intrinsic reachable from this corpus (no example
// repo imports one), so the "single vector compare" is an unrolled
// four-element loop over the lanes below rather than an actual SIMD
// instruction — see DESIGN.md.
type cacheLinePad [56]byte

// VectorTicket is the vectorized variant of Ticket: it only tracks the four
// "primary" conflict classes (Read, Write, Commutative, ReductionMode) as
// tightly packed lanes; True/QueuePush/QueuePop fall back to the scalar
// Ticket counters they'd need anyway (a vector compare buys nothing for
// classes with 0 or 1 conflicting modes).
type VectorTicket struct {
	mu sync.Mutex

	tailLanes [4]uint32
	_         cacheLinePad
	headLanes [4]uint32
	_         cacheLinePad

	vecWaiters []*vecWaiter

	fallback Ticket // backs True/QueuePush/QueuePop bookkeeping
}

// lane order within tailLanes/headLanes.
const (
	laneRead = iota
	laneWrite
	laneCommutative
	laneReduction
)

var modeToLane = map[AccessMode]int{
	Read:          laneRead,
	Write:         laneWrite,
	Commutative:   laneCommutative,
	ReductionMode: laneReduction,
}

func NewVectorTicket() *VectorTicket {
	return &VectorTicket{}
}

func (v *VectorTicket) isVectorMode(mode AccessMode) bool {
	_, ok := modeToLane[mode]
	return ok
}

// readyMask compares all four lanes in one unrolled pass and returns, for
// the conflict set of mode, whether every lane is drained.
func (v *VectorTicket) readyMask(mode AccessMode) bool {
	var cmp [4]bool
	for i := 0; i < 4; i++ {
		cmp[i] = v.tailLanes[i] == v.headLanes[i]
	}
	for _, c := range conflicts[mode] {
		lane, ok := modeToLane[c]
		if !ok {
			continue // QueuePush/QueuePop never conflict with the vectorized classes
		}
		if !cmp[lane] {
			return false
		}
	}
	return true
}

func (v *VectorTicket) MatchGroup(mode AccessMode) bool {
	if mode == True {
		return true
	}
	if !v.isVectorMode(mode) {
		return v.fallback.MatchGroup(mode)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.readyMask(mode)
}

func (v *VectorTicket) AddTask(mode AccessMode, wake WakeFunc) (Tag, bool) {
	if !v.isVectorMode(mode) {
		return v.fallback.AddTask(mode, wake)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	lane := modeToLane[mode]
	v.tailLanes[lane]++

	need := make(map[int]uint32, len(conflicts[mode]))
	ready := true
	for _, c := range conflicts[mode] {
		cl, ok := modeToLane[c]
		if !ok {
			continue
		}
		tail := v.tailLanes[cl]
		if cl == lane {
			tail--
		}
		if tail != v.headLanes[cl] {
			ready = false
		}
		need[cl] = tail
	}

	w := &vecWaiter{lane: lane, need: need}
	if ready {
		w.woken = true
		return w, true
	}
	w.wake = wake
	v.vecWaiters = append(v.vecWaiters, w)
	return w, false
}

type vecWaiter struct {
	lane  int
	need  map[int]uint32
	wake  WakeFunc
	woken bool
}

func (v *VectorTicket) DelTask(tag Tag) {
	vw, ok := tag.(*vecWaiter)
	if !ok {
		v.fallback.DelTask(tag)
		return
	}

	v.mu.Lock()
	v.headLanes[vw.lane]++

	var toWake []*vecWaiter
	remaining := v.vecWaiters[:0]
	for _, other := range v.vecWaiters {
		if other.woken {
			continue
		}
		drained := true
		for lane, tail := range other.need {
			if v.headLanes[lane] != tail {
				drained = false
				break
			}
		}
		if drained {
			other.woken = true
			toWake = append(toWake, other)
			continue
		}
		remaining = append(remaining, other)
	}
	v.vecWaiters = remaining
	v.mu.Unlock()

	for _, other := range toWake {
		other.wake()
	}
}

func (v *VectorTicket) HasReaders() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tailLanes[laneRead] != v.headLanes[laneRead]
}

func (v *VectorTicket) HasWriters() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tailLanes[laneWrite] != v.headLanes[laneWrite]
}

func (v *VectorTicket) CommutativeTryAcquire() bool { return v.fallback.CommutativeTryAcquire() }
func (v *VectorTicket) CommutativeRelease()         { v.fallback.CommutativeRelease() }

func (v *VectorTicket) Dump() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fmt.Sprintf("VectorTicket{tails=%v heads=%v waiters=%d fallback=%s}",
		v.tailLanes, v.headLanes, len(v.vecWaiters), v.fallback.Dump())
}
