// Package tasks runs best-effort background work with bounded retries.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

// DefaultBuffer is the queue capacity used when Options.Buffer is not set.
// Submit never blocks, so an unbuffered queue would reject most work.
const DefaultBuffer = 64

// Func is one attempt of a task. Returning backoff.Permanent(err) stops retries.
type Func func(ctx context.Context) error

// Result describes a finished task. Err is nil on success.
type Result struct {
	Name     string
	Attempts int
	Err      error
	Elapsed  time.Duration
}

// Observer is called once per finished task from the worker goroutine.
type Observer func(Result)

type Options struct {
	Workers         int
	Buffer          int
	MaxAttempts     int
	AttemptTimeout  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Observers       []Observer
}

type job struct {
	name string
	fn   Func
}

type Queue struct {
	opts   Options
	jobs   chan job
	mu     sync.RWMutex
	closed bool
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the worker pool. Zero option values fall back to defaults.
func New(opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 10 * time.Second
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	q := &Queue{
		opts:   opts,
		jobs:   make(chan job, opts.Buffer),
		group:  g,
		ctx:    gctx,
		cancel: cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			for j := range q.jobs {
				q.run(j)
			}
			return nil
		})
	}
	return q
}

// Submit enqueues fn without blocking.
func (q *Queue) Submit(name string, fn Func) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job{name: name, fn: fn}:
		return nil
	default:
		return fmt.Errorf("submit %s: %w", name, ErrQueueFull)
	}
}

// Close stops intake and waits for queued tasks to finish. When ctx expires
// first, in-flight attempts are cancelled and ctx.Err() is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- q.group.Wait() }()

	select {
	case err := <-done:
		q.cancel()
		return err
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) run(j job) {
	start := time.Now()
	attempts := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.opts.InitialInterval
	b.MaxInterval = q.opts.MaxInterval

	_, err := backoff.Retry(q.ctx, func() (struct{}, error) {
		attempts++
		actx, cancel := context.WithTimeout(q.ctx, q.opts.AttemptTimeout)
		defer cancel()
		return struct{}{}, j.fn(actx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(q.opts.MaxAttempts)),
	)

	res := Result{Name: j.name, Attempts: attempts, Err: err, Elapsed: time.Since(start)}
	if err != nil {
		slog.Error("task failed", "task", j.name, "attempts", attempts, "err", err)
	} else {
		slog.Debug("task done", "task", j.name, "attempts", attempts)
	}
	for _, obs := range q.opts.Observers {
		obs(res)
	}
}
