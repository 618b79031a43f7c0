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

import "testing"

// schemes enumerates every ObjectMeta implementation so the contract tests
// below run identically against all four (spec §4.2: "interchangeable
// schemes").
func schemes() map[string]func() ObjectMeta {
	return map[string]func() ObjectMeta{
		"Ticket":       func() ObjectMeta { return NewTicket() },
		"Generational": func() ObjectMeta { return NewGenerational() },
		"Compact":      func() ObjectMeta { return NewCompact() },
		"VectorTicket": func() ObjectMeta { return NewVectorTicket() },
	}
}

func TestFreshObjectIsImmediatelyReady(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			for mode := AccessMode(0); mode < numModes; mode++ {
				if !m.MatchGroup(mode) {
					t.Errorf("MatchGroup(%s) on a fresh object = false, want true", mode)
				}
			}
		})
	}
}

func TestReadersDoNotConflictWithEachOther(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			tag1, ready1 := m.AddTask(Read, func() { t.Error("reader 1 should never wake") })
			if !ready1 {
				t.Fatal("first reader should be immediately ready")
			}
			tag2, ready2 := m.AddTask(Read, func() { t.Error("reader 2 should never wake") })
			if !ready2 {
				t.Fatal("second concurrent reader should be immediately ready, readers don't conflict")
			}
			m.DelTask(tag1)
			m.DelTask(tag2)
		})
	}
}

func TestWriterWaitsForReaderToDrain(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			readTag, readReady := m.AddTask(Read, nil)
			if !readReady {
				t.Fatal("first reader should be immediately ready")
			}

			woken := false
			writeTag, writeReady := m.AddTask(Write, func() { woken = true })
			if writeReady {
				t.Fatal("writer should not be ready while a reader is outstanding")
			}

			m.DelTask(readTag)
			if !woken {
				t.Error("writer should have woken once the reader drained")
			}
			m.DelTask(writeTag)
		})
	}
}

func TestWritersSerialize(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			w1, ready1 := m.AddTask(Write, nil)
			if !ready1 {
				t.Fatal("first writer on a fresh object should be immediately ready")
			}

			woken := false
			w2, ready2 := m.AddTask(Write, func() { woken = true })
			if ready2 {
				t.Fatal("second writer should wait behind the first")
			}

			m.DelTask(w1)
			if !woken {
				t.Error("second writer should have woken once the first released")
			}
			m.DelTask(w2)
		})
	}
}

func TestQueuePopSerializesWithItself(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			p1, ready1 := m.AddTask(QueuePop, nil)
			if !ready1 {
				t.Fatal("first pop should be immediately ready")
			}
			woken := false
			p2, ready2 := m.AddTask(QueuePop, func() { woken = true })
			if ready2 {
				t.Fatal("second concurrent pop should wait, QueuePop conflicts with itself")
			}
			m.DelTask(p1)
			if !woken {
				t.Error("second pop should have woken once the first released")
			}
			m.DelTask(p2)
		})
	}
}

func TestQueuePushNeverWaits(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			for i := 0; i < 5; i++ {
				_, ready := m.AddTask(QueuePush, nil)
				if !ready {
					t.Fatalf("push %d should never wait, QueuePush conflicts with nothing", i)
				}
			}
		})
	}
}

func TestTrueModeIsAlwaysReadyAndUntracked(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			w1, _ := m.AddTask(Write, nil)
			tag, ready := m.AddTask(True, func() { t.Error("True should never register a wake") })
			if !ready {
				t.Error("True should be ready even while a writer is outstanding")
			}
			m.DelTask(tag)
			m.DelTask(w1)
		})
	}
}

func TestCommutativeMutexIsExclusive(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			if !m.CommutativeTryAcquire() {
				t.Fatal("first acquire should succeed on a fresh object")
			}
			if m.CommutativeTryAcquire() {
				t.Fatal("second acquire should fail while the first is held")
			}
			m.CommutativeRelease()
			if !m.CommutativeTryAcquire() {
				t.Error("acquire should succeed again after release")
			}
			m.CommutativeRelease()
		})
	}
}

func TestHasReadersHasWriters(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			if m.HasReaders() || m.HasWriters() {
				t.Fatal("fresh object should report no readers or writers")
			}
			rtag, _ := m.AddTask(Read, nil)
			if !m.HasReaders() {
				t.Error("HasReaders should be true with an outstanding reader")
			}
			m.DelTask(rtag)
			if m.HasReaders() {
				t.Error("HasReaders should be false once the reader released")
			}
		})
	}
}

func TestDumpIsNonEmpty(t *testing.T) {
	for name, newScheme := range schemes() {
		t.Run(name, func(t *testing.T) {
			m := newScheme()
			if m.Dump() == "" {
				t.Error("Dump should render some state even for a fresh object")
			}
		})
	}
}
