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

func TestVersionGetSet(t *testing.T) {
	x := NewObject(1, nil)
	v := x.Current()
	if got := v.Get(); got != 1 {
		t.Fatalf("Get() = %d, want 1", got)
	}
	v.Set(2)
	if got := v.Get(); got != 2 {
		t.Errorf("Get() after Set(2) = %d, want 2", got)
	}
}

func TestRenameSwingsCurrentAndPreservesOld(t *testing.T) {
	x := NewObject(10, nil)
	old := x.Current()
	old.AddRef()

	fresh := old.Rename(nil)
	if x.Current() != fresh {
		t.Fatal("Rename should swing the object's Current() to the fresh version")
	}
	if old.Get() != 10 {
		t.Error("the old version's value should be untouched by Rename")
	}
	old.Release()
}

func TestRenameOnNonVersionablePanics(t *testing.T) {
	u := NewUnversioned(5, nil)
	defer func() {
		if recover() == nil {
			t.Error("Rename on an unversioned version should panic")
		}
	}()
	u.Current().Rename(nil)
}

func TestReleaseUnpairedPanics(t *testing.T) {
	x := NewObject(0, nil)
	v := x.Current()
	defer func() {
		if recover() == nil {
			t.Error("an extra unpaired Release should panic")
		}
	}()
	v.Release() // drops the object's own starting ref to zero
	v.Release() // one too many
}

func TestCopyToSnapshotsSourceValue(t *testing.T) {
	x := NewObject(100, nil)
	src := x.Current()
	src.AddRef() // Rename unconditionally releases one ref on its receiver
	dst := src.Rename(nil)
	src.CopyTo(dst)
	if got := dst.Get(); got != 100 {
		t.Errorf("CopyTo should have copied the source's value, got %d", got)
	}
	src.Release()
}
