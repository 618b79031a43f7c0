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
	"log/slog"
	"os"

	"github.com/hvdieren/swan-sub000/meta"
)

// SchemeKind selects which per-object dependency-metadata implementation
// newly created objects use. Go has no preprocessor, so the source's
// build-time scheme selector (§6) becomes a runtime Config value, set once
// at startup via WithScheme and left alone afterward.
type SchemeKind int

const (
	SchemeTicket SchemeKind = iota
	SchemeVectorTicket
	SchemeGenerational
	SchemeCompact
)

// RenameMode mirrors OBJECT_INOUT_RENAME ∈ {0,1,2}: whether an inout
// argument renames its object at all, and if so, whether the prior value
// is copied into the fresh version immediately or via a delayed copy task.
type RenameMode int

const (
	// RenameOff never renames inout arguments; they serialize on the
	// existing version like any other writer.
	RenameOff RenameMode = iota
	// RenameCopyImmediate renames eagerly and copies the prior value into
	// the new version synchronously, in the issuing thread.
	RenameCopyImmediate
	// RenameCopyDelayed renames eagerly but defers the copy until the
	// prior version's conflicting writers have drained: it runs inside
	// the task's wake callback, on whichever goroutine releases the last
	// of them, so the issuing thread never blocks on the copy. This is the Open Question
	// resolution recorded in DESIGN.md for the source's ambiguous
	// commented-out delayed-copy branch: OBJECT_INOUT_RENAME==2 means
	// delayed, not "off".
	RenameCopyDelayed
)

// Config carries the module's build-time configuration flags (§6) as a
// runtime value built with functional options, following the
// functional-options idiom of the pack's mvcc-map example
// (mvcc/options.go: WithGCInterval, WithLogger, ...).
type Config struct {
	scheme             SchemeKind
	commutativityOn    bool
	reductionOn        bool
	inoutRename        RenameMode
	storedAnnotations  bool
	logger             *slog.Logger
	numWorkers         int
}

// Option configures a Config; see the With* constructors below.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		scheme:            SchemeTicket,
		commutativityOn:   true,
		reductionOn:       true,
		inoutRename:       RenameCopyDelayed,
		storedAnnotations: false,
		logger:            slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		numWorkers:        4,
	}
}

// WithScheme selects the per-object metadata implementation.
func WithScheme(k SchemeKind) Option { return func(c *Config) { c.scheme = k } }

// WithCommutativity toggles OBJECT_COMMUTATIVITY.
func WithCommutativity(on bool) Option { return func(c *Config) { c.commutativityOn = on } }

// WithReduction toggles OBJECT_REDUCTION.
func WithReduction(on bool) Option { return func(c *Config) { c.reductionOn = on } }

// WithInoutRename selects OBJECT_INOUT_RENAME's behavior.
func WithInoutRename(m RenameMode) Option { return func(c *Config) { c.inoutRename = m } }

// WithStoredAnnotations records the STORED_ANNOTATIONS setting in the
// Config. The walker does not read it: it always resolves access mode
// through each Arg's Mode method, and no tag byte is stored on the task
// record.
func WithStoredAnnotations(on bool) Option { return func(c *Config) { c.storedAnnotations = on } }

// WithLogger installs a custom *slog.Logger in the Config, following
// mvcc/options.go's WithLogger idiom. No component of the module logs
// through it.
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.logger = l } }

// WithWorkers records a worker count in the Config. Run and the default
// pool always size their Pool from the default Config (4 workers) and do
// not read this value.
func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.numWorkers = n
		}
	}
}

func newMetaForScheme(k SchemeKind) meta.ObjectMeta {
	switch k {
	case SchemeVectorTicket:
		return meta.NewVectorTicket()
	case SchemeGenerational:
		return meta.NewGenerational()
	case SchemeCompact:
		return meta.NewCompact()
	default:
		return meta.NewTicket()
	}
}
