// Package workerpool implements a uniform pool/executor contract: a
// Pooled implementation backed by golang.org/x/sync/errgroup for bounded
// fan-out, and an Inline degenerate implementation that runs every task
// synchronously for single-worker or single-threaded operation.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool is the uniform contract both implementations satisfy.
type Pool interface {
	// Go schedules fn. Pooled may run it concurrently with other
	// scheduled tasks (bounded by the pool's size); Inline runs it
	// synchronously before returning.
	Go(fn func() error)
	// Wait blocks until every scheduled task has finished, returning nil
	// or an *AggregateError wrapping every error observed.
	Wait() error
	// Context is cancelled once the first task fails, so long-running
	// tasks can check ctx.Err() and bail out early.
	Context() context.Context
}

// DefaultSize returns the worker count used when the caller does not
// override it: the number of available CPUs.
func DefaultSize() int {
	return runtime.NumCPU()
}

// New returns a Pooled instance when n > 1, otherwise an Inline instance.
func New(ctx context.Context, n int) Pool {
	if n > 1 {
		return NewPooled(ctx, n)
	}
	return NewInline(ctx)
}

// Pooled runs tasks across n goroutines using an errgroup, collecting
// every error (not just the first) into an AggregateError.
type Pooled struct {
	eg   *errgroup.Group
	ctx  context.Context
	mu   sync.Mutex
	errs []error
}

// NewPooled constructs a Pooled instance bounded to n concurrent tasks.
func NewPooled(parent context.Context, n int) *Pooled {
	eg, ctx := errgroup.WithContext(parent)
	if n < 1 {
		n = 1
	}
	eg.SetLimit(n)
	return &Pooled{eg: eg, ctx: ctx}
}

func (p *Pooled) Go(fn func() error) {
	p.eg.Go(func() error {
		err := fn()
		if err != nil {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
		return err
	})
}

func (p *Pooled) Wait() error {
	// errgroup's own return value only carries the first error and
	// cancels p.ctx for us; we surface the full collected list.
	p.eg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) == 0 {
		return nil
	}
	return &AggregateError{Errs: append([]error(nil), p.errs...)}
}

func (p *Pooled) Context() context.Context { return p.ctx }

// Inline runs every task synchronously, in Go() itself, and stops
// scheduling further work once a task has failed (mirroring
// DummyExecutor.submit, which sets the future's exception immediately).
type Inline struct {
	ctx    context.Context
	cancel context.CancelFunc
	errs   []error
}

// NewInline constructs a degenerate single-threaded pool.
func NewInline(parent context.Context) *Inline {
	ctx, cancel := context.WithCancel(parent)
	return &Inline{ctx: ctx, cancel: cancel}
}

func (p *Inline) Go(fn func() error) {
	if p.ctx.Err() != nil {
		return
	}
	if err := fn(); err != nil {
		p.errs = append(p.errs, err)
		p.cancel()
	}
}

func (p *Inline) Wait() error {
	if len(p.errs) == 0 {
		return nil
	}
	return &AggregateError{Errs: append([]error(nil), p.errs...)}
}

func (p *Inline) Context() context.Context { return p.ctx }
