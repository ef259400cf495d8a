// Package pool implements the shell's bounded worker pool: a fixed
// concurrency ceiling, panic-safe task execution, and a future handle
// per submitted task.
//
// Grounded on include/thread_pool.h's templated submit()/std::future
// contract, built atop github.com/sourcegraph/conc/pool for the
// goroutine-limiting and panic-recovery plumbing rather than a
// hand-rolled channel-and-goroutine pool.
package pool

import (
	"context"
	"sync"

	concpool "github.com/sourcegraph/conc/pool"

	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/value"
)

// Task is a unit of work submitted to the pool. It receives the
// context passed to Submit and returns a Value or an error.
type Task func(ctx context.Context) (value.Value, error)

// Future is the handle returned by Submit. Get blocks until the task
// completes or ctx is cancelled, whichever comes first.
type Future struct {
	done   chan struct{}
	result value.Value
	err    error
}

// Get waits for the task to complete and returns its result. If ctx
// is cancelled before completion, Get returns a KindCancelled error
// without waiting for the task itself to finish.
func (f *Future) Get(ctx context.Context) (value.Value, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return value.Null(), nexuserr.Wrap(nexuserr.KindCancelled, ctx.Err(), "future cancelled before completion")
	}
}

// Done reports whether the task has completed, without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Pool is a fixed-size worker pool. The zero value is not usable;
// construct with New.
type Pool struct {
	mu       sync.Mutex
	cp       *concpool.ContextPool
	size     int
	active   int
	queued   int
	submitCt int
}

// New constructs a Pool with size worker goroutines. size <= 0 means
// unbounded, matching conc/pool's default when WithMaxGoroutines is
// never called.
func New(size int) *Pool {
	base := concpool.New()
	if size > 0 {
		base = base.WithMaxGoroutines(size)
	}
	return &Pool{cp: base.WithContext(context.Background()), size: size}
}

// Submit schedules task to run on the pool and returns a Future for
// its result. Once the goroutine ceiling is hit, Submit blocks until
// conc's pool can hand task to a worker; it never waits for task
// itself to finish.
func (p *Pool) Submit(ctx context.Context, task Task) *Future {
	fut := &Future{done: make(chan struct{})}

	p.mu.Lock()
	p.submitCt++
	p.queued++
	p.mu.Unlock()

	p.cp.Go(func(context.Context) error {
		p.mu.Lock()
		p.queued--
		p.active++
		p.mu.Unlock()

		defer func() {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
		}()

		result, err := runRecovered(ctx, task)
		fut.result, fut.err = result, err
		close(fut.done)
		return nil
	})

	return fut
}

// runRecovered executes task, converting a panic into a KindInternal
// error rather than letting it cross the pool's goroutine boundary;
// conc already recovers panics for the pool's own bookkeeping, this
// additionally gives the caller a typed error instead of conc's bare
// re-panic-on-Wait behaviour.
func runRecovered(ctx context.Context, task Task) (v value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v = value.Null()
			err = nexuserr.Newf(nexuserr.KindInternal, "task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// ThreadCount returns the configured concurrency ceiling, or 0 if
// unbounded. Grounded on thread_pool.h's get_thread_count.
func (p *Pool) ThreadCount() int {
	return p.size
}

// QueueSize returns the number of tasks submitted but not yet
// started. Grounded on thread_pool.h's get_queue_size.
func (p *Pool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queued
}

// ActiveTasks returns the number of tasks currently executing.
// Grounded on thread_pool.h's get_active_tasks.
func (p *Pool) ActiveTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Shutdown waits for all submitted tasks to complete. Grounded on
// thread_pool.h's shutdown.
func (p *Pool) Shutdown() error {
	return p.cp.Wait()
}
