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

// Command demo builds a small task graph over one shared counter: a wave
// of writers renames the object out from under any readers, and a
// reduction tallies a running sum before a final read prints the result.
package main

import (
	"context"
	"log/slog"
	"os"

	swan "github.com/hvdieren/swan-sub000"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	counter := swan.NewObject(0, nil)
	plus := swan.Monoid[int]{
		Identity: 0,
		Reduce:   func(dst, src int) int { return dst + src },
	}

	swan.Run(func(ctx context.Context) {
		for i := 0; i < 8; i++ {
			w := swan.NewOutdep(counter)
			swan.Spawn(ctx, func() { w.Set(i) }, w)
		}
		logger.Info("writers spawned", "count", 8)

		for i := 0; i < 100; i++ {
			r := swan.NewReduction(counter, plus, 4, i)
			swan.Spawn(ctx, func() { r.Set(r.Get() + 1) }, r)
		}
		logger.Info("reduction tasks spawned", "count", 100)

		final := swan.NewIndep(counter)
		swan.Spawn(ctx, func() {
			logger.Info("final value observed", "value", final.Get())
		}, final)

		swan.Ssync(ctx)
	})

	logger.Info("run complete", "renames", counter.RenameCount())
}
