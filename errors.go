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
	"fmt"

	"github.com/hvdieren/swan-sub000/meta"
)

// Fault represents a fatal violation of one of this module's invariants
// (spec §7): a misused object whose metadata scheme has been driven into
// an inconsistent state. Fault is panicked, never returned, matching §7's
// "fatal assertion... not recoverable" — but it carries structured fields
// so a test can recover() and inspect Invariant rather than string-match a
// panic message.
type Fault struct {
	Invariant string
	Dump      string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("swan: invariant %q violated: %s", f.Invariant, f.Dump)
}

// assertInvariant panics with a Fault if ok is false, attaching m's dump so
// the failure is diagnosable without a debugger attached.
func assertInvariant(ok bool, invariant string, m meta.ObjectMeta) {
	if ok {
		return
	}
	dump := "<nil metadata>"
	if m != nil {
		dump = m.Dump()
	}
	panic(&Fault{Invariant: invariant, Dump: dump})
}
