// Package async runs best-effort background work on a bounded goroutine pool.
package async

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"circle/internal/middleware"

	"github.com/panjf2000/ants/v2"
)

// ErrNotInitialized is returned by Submit on a nil pool.
var ErrNotInitialized = errors.New("async pool not initialized")

// DefaultTaskTimeout bounds a task started with Go when no timeout is given.
const DefaultTaskTimeout = 30 * time.Second

// Pool wraps an ants pool in non-blocking mode: when every worker is busy,
// Submit fails immediately instead of queueing.
type Pool struct {
	pool *ants.Pool
}

// New creates a pool with size workers.
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = 64
	}
	p, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(10*time.Second),
		ants.WithPanicHandler(func(v any) {
			middleware.Logger.Error("async task panic",
				"panic", v,
				"stack", string(debug.Stack()),
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Pool{pool: p}, nil
}

// Submit queues task. It returns ants.ErrPoolOverload when the pool is saturated.
func (p *Pool) Submit(task func()) error {
	if p == nil || p.pool == nil {
		return ErrNotInitialized
	}
	return p.pool.Submit(task)
}

// Go runs task with a context detached from the caller's cancellation but keeping its values,
// so request-scoped logging fields survive after the response is written.
func (p *Pool) Go(ctx context.Context, timeout time.Duration, task func(ctx context.Context)) error {
	if task == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	err := p.Submit(func() {
		defer cancel()
		task(runCtx)
	})
	if err != nil {
		cancel()
	}
	return err
}

// Running reports the number of busy workers.
func (p *Pool) Running() int {
	if p == nil || p.pool == nil {
		return 0
	}
	return p.pool.Running()
}

// Release waits up to timeout for in-flight tasks and frees the workers.
func (p *Pool) Release(timeout time.Duration) error {
	if p == nil || p.pool == nil {
		return nil
	}
	if timeout <= 0 {
		p.pool.Release()
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}
