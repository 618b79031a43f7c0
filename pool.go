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
	"context"
	"runtime"
	"sync"

	"github.com/hvdieren/swan-sub000/wsdeque"
	"golang.org/x/sync/errgroup"
)

// localCap bounds each worker's fast-path LIFO scratch deque (wsdeque); a
// worker overflows into its shared, depth-bucketed Graph once this many
// tasks are queued locally.
const localCap = 256

// worker is one pool thread's private state: a Graph (the depth-bucketed
// ready list other workers may steal from) and a wsdeque.Deque fast path
// for tasks it just made ready itself, favoring cache-local LIFO reuse
// (spec §5's scheduling model: "pop a ready task from its local graph, or
// steal from another worker's graph").
type worker struct {
	id    int
	graph *Graph
	local *wsdeque.Deque[*Task]
}

func (w *worker) enqueue(t *Task) {
	if !w.local.Push(t) {
		w.graph.AddReady(t)
	}
}

// Pool is the runtime's worker-pool collaborator (spec §6: "Worker pool
// (collaborator, not core)"). It owns one Graph + local deque pair per
// worker; GetReady/GetReadyAfter are exposed directly on each worker's
// Graph so an external scheduler could stand in for the steal loop below
// without touching the dependency-tracking core.
type Pool struct {
	workers []*worker
}

// NewPool creates a pool of n worker slots (Graph + local deque pairs). It
// does not itself spawn goroutines; Run below drives the goroutines via an
// errgroup, following nursery.Run's structured-concurrency shape.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{workers: make([]*worker, n)}
	for i := range p.workers {
		p.workers[i] = &worker{id: i, graph: newGraph(), local: wsdeque.New[*Task](localCap)}
	}
	return p
}

func (p *Pool) pick(seed int) *worker {
	if seed < 0 {
		seed = -seed
	}
	return p.workers[seed%len(p.workers)]
}

// next pulls the next task for worker w to run: its own local deque first,
// then its own Graph, then a steal attempt against every other worker in
// round-robin order starting just past w.
//
// w.local and a victim's local are wsdeque.Deque instances: a LIFO/FIFO
// fast path with no notion of Arg access modes, so a task popped or stolen
// from one has not had its commutative acquire (if any) checked the way
// Graph.GetReady/GetReadyAfter already check it for everything routed
// through a bucket. next runs that same check here before handing such a
// task back; one that loses the race is demoted into w's own Graph, where
// it rejoins the scan-and-skip ready list instead of being lost.
func (p *Pool) next(w *worker, prevDepth int) (*Task, bool) {
	if t, ok := w.local.Pop(); ok {
		if t.tryAcquire() {
			return t, true
		}
		w.graph.AddReady(t)
	}
	if t, ok := w.graph.GetReadyAfter(prevDepth); ok {
		return t, true
	}
	n := len(p.workers)
	for i := 1; i < n; i++ {
		victim := p.workers[(w.id+i)%n]
		if t, ok := victim.local.Steal(); ok {
			if t.tryAcquire() {
				return t, true
			}
			w.graph.AddReady(t)
			continue
		}
		if t, ok := victim.graph.GetReady(); ok {
			return t, true
		}
	}
	return nil, false
}

// taskCtx is the per-goroutine scheduling context threaded through
// context.Context: which task is currently executing (for depth and
// pending-child bookkeeping) and which worker/pool is driving it (so Spawn
// can enqueue locally and Ssync can steal-and-run while it waits, per spec
// §5: "Workers waiting at a sync continue to execute other ready tasks").
type taskCtx struct {
	pool   *Pool
	worker *worker
	task   *Task // nil at the true root, before Run's task record exists
}

type taskCtxKeyType struct{}

var taskCtxKey taskCtxKeyType

func fromContext(ctx context.Context) taskCtx {
	if tc, ok := ctx.Value(taskCtxKey).(taskCtx); ok {
		return tc
	}
	return taskCtx{pool: pool()}
}

func withTask(ctx context.Context, tc taskCtx) context.Context {
	return context.WithValue(ctx, taskCtxKey, tc)
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

func pool() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool(defaultConfig().numWorkers)
	})
	return defaultPool
}

// spawn is the shared implementation behind Spawn/Call/LeafCall: build a
// task parented under ctx's current task (if any), wire its completion to
// decrement the parent's pending count, issue it through the walker, and
// file it with the scheduler if it becomes ready immediately.
func spawn(ctx context.Context, fn func(), args []Arg) {
	tc := fromContext(ctx)
	depth := 0
	var parent *Task
	if tc.task != nil {
		parent = tc.task
		depth = parent.Depth + 1
		parent.pending.Add(1)
	}

	var g *Graph
	if tc.worker != nil {
		g = tc.worker.graph
	} else {
		g = tc.pool.pick(depth).graph
	}

	t := newTask(g, depth, fn, args)
	if parent != nil {
		t.onDone = func() { parent.pending.Add(-1) }
	}

	issueTask(t)
	if t.Incoming.Load() != 0 {
		return // still waiting on some argument; its wake path will file it
	}
	if tc.worker != nil {
		tc.worker.enqueue(t)
	} else {
		tc.pool.pick(depth).enqueue(t)
	}
}

// Spawn declares a new task (spec §6's spawn): fn runs once every arg has
// cleared its access-mode wait, asynchronously with respect to the caller.
// ctx must carry the calling task's scheduling context, as provided to the
// function passed to Run.
func Spawn(ctx context.Context, fn func(), args ...Arg) { spawn(ctx, fn, args) }

// Call behaves like Spawn; the source's call/leaf_call distinction from
// spawn is a scheduling hint about whether the task spawns further
// children, not a different dependency semantics (spec §9), so both route
// through the same path here.
func Call(ctx context.Context, fn func(), args ...Arg) { spawn(ctx, fn, args) }

// LeafCall declares a task known not to spawn further children itself.
func LeafCall(ctx context.Context, fn func(), args ...Arg) { spawn(ctx, fn, args) }

// Run executes fn as the root task of a fresh pool, blocking until fn and
// everything it transitively spawns has completed (spec §6's top-level
// entry point). fn receives a context.Context it must pass to any Spawn/
// Call/LeafCall/Ssync it performs.
func Run(fn func(context.Context), args ...Arg) {
	p := NewPool(defaultConfig().numWorkers)
	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)

	done := make(chan struct{})
	root := newTask(p.workers[0].graph, 0, func() {}, args)
	root.onDone = func() { close(done) }

	rootCtx := withTask(gctx, taskCtx{pool: p, worker: p.workers[0], task: root})
	root.Fn = func() {
		fn(rootCtx)
		Ssync(rootCtx)
	}

	issueTask(root)
	if root.Incoming.Load() == 0 {
		p.workers[0].enqueue(root)
	}

	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			runWorker(gctx, p, w)
			return nil
		})
	}

	<-done
	cancel()
	_ = g.Wait()
}

// runWorker drains w's queues and steals from its siblings until ctx is
// cancelled, yielding the processor between empty sweeps rather than
// busy-spinning continuously.
func runWorker(ctx context.Context, p *Pool, w *worker) {
	prevDepth := -1
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		t, ok := p.next(w, prevDepth)
		if !ok {
			runtime.Gosched()
			continue
		}
		prevDepth = t.Depth
		t.run()
	}
}

// Ssync blocks the calling task until every task it has directly spawned
// has completed (spec §6's sync). The calling goroutine does not idle: per
// spec §5 ("workers waiting at a sync continue to execute other ready
// tasks"), it keeps popping and running other ready work from the pool
// in the meantime, recursing into this same loop for any nested syncs
// those tasks perform.
func Ssync(ctx context.Context) {
	tc := fromContext(ctx)
	if tc.task == nil || tc.worker == nil {
		return
	}
	for tc.task.pending.Load() > 0 {
		t, ok := tc.pool.next(tc.worker, tc.task.Depth)
		if !ok {
			runtime.Gosched()
			continue
		}
		t.run()
	}
}
