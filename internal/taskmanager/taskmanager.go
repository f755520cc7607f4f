// Package taskmanager is the async task manager (component D): it fans
// out one logical task per carrier, applies a per-task timeout+retry
// wrapper, and gathers results while tolerating individual failures.
//
// Grounded on the teacher's manager.go CheckHealth concurrent
// fan-out-with-WaitGroup idiom, generalized from a fixed service list to
// an arbitrary named set of adapter tasks. errgroup.WithContext is
// deliberately NOT used here: its first-error-cancels-the-group semantics
// is exactly the failure isolation spec.md forbids.
package taskmanager

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"schedulep2p/pkg/logger"
)

// Result is one task's outcome. Value is nil and Err is true when every
// retry attempt was exhausted; the manager never propagates the
// underlying error, per spec.md §4.D: "the task yields none and the
// manager sets its error flag."
type Result[T any] struct {
	Name  string
	Value T
	OK    bool
	Err   bool
}

// Options configures the per-task timeout/retry wrapper.
type Options struct {
	// DefaultTimeout is the per-attempt timeout before growth is applied.
	DefaultTimeout time.Duration
	// MaxRetries is the retry budget after the first attempt.
	MaxRetries int
	// TimeoutGrowth is added to the per-attempt timeout on each retry.
	TimeoutGrowth time.Duration
	// RetrySleep is the constant backoff between attempts.
	RetrySleep time.Duration
}

// DefaultOptions mirrors spec.md §4.D's defaults.
func DefaultOptions() Options {
	return Options{
		DefaultTimeout: 30 * time.Second,
		MaxRetries:     3,
		TimeoutGrowth:  3 * time.Second,
		RetrySleep:     1 * time.Second,
	}
}

// retryable marks a transport failure (timeout, connect, read error) as
// worth retrying; any other error is treated as non-retryable and the
// task fails on the first attempt (spec.md §7: server/client HTTP errors
// are not retried at the adapter layer, only transport failures are).
type retryable struct{ cause error }

func (r retryable) Error() string { return r.cause.Error() }
func (r retryable) Unwrap() error { return r.cause }

// Retryable wraps err so the task manager's retry loop treats it as a
// transport failure worth retrying.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryable{cause: err}
}

// Group is one request's scoped set of named concurrent tasks — owned by
// one request, never shared (spec.md §5).
type Group[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	mu      sync.Mutex
	results []Result[T]
	wg      sync.WaitGroup
}

// NewGroup creates a Group scoped to ctx. Cancelling ctx cancels every
// outstanding task.
func NewGroup[T any](ctx context.Context, opts Options) *Group[T] {
	gctx, cancel := context.WithCancel(ctx)
	return &Group[T]{ctx: gctx, cancel: cancel, opts: opts}
}

// Go schedules a named task. fn is invoked with a per-attempt context
// whose deadline grows by opts.TimeoutGrowth on each retry.
func (g *Group[T]) Go(name string, fn func(ctx context.Context) (T, error)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		value, ok, failed := g.run(name, fn)
		g.mu.Lock()
		g.results = append(g.results, Result[T]{Name: name, Value: value, OK: ok, Err: failed})
		g.mu.Unlock()
	}()
}

func (g *Group[T]) run(name string, fn func(ctx context.Context) (T, error)) (value T, ok bool, failed bool) {
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(g.opts.MaxRetries), retry.NewConstant(g.opts.RetrySleep))

	err := retry.Do(g.ctx, backoff, func(ctx context.Context) error {
		timeout := g.opts.DefaultTimeout + time.Duration(attempt)*g.opts.TimeoutGrowth
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		attempt++

		v, err := fn(attemptCtx)
		if err == nil {
			value, ok = v, true
			return nil
		}

		var r retryable
		if errors.As(err, &r) {
			logger.Log.Warn("carrier task attempt failed, retrying", "task", name, "attempt", attempt, "error", r.cause)
			return retry.RetryableError(r.cause)
		}
		// Non-retryable failure (e.g. upstream 4xx/5xx handled already at
		// the facade layer): fail this task immediately, no further attempts.
		return err
	})

	if err != nil && !ok {
		logger.Log.Warn("carrier task failed after retries", "task", name, "attempts", attempt, "error", err)
		failed = true
	}
	return value, ok, failed
}

// Wait blocks until every scheduled task has returned (or been
// cancelled), then returns a lazy iterator over the non-failed,
// successful results only — the "lazy iterator over non-exception,
// non-none results" of spec.md §4.D.
func (g *Group[T]) Wait() iter.Seq[Result[T]] {
	g.wg.Wait()
	return func(yield func(Result[T]) bool) {
		g.mu.Lock()
		results := append([]Result[T](nil), g.results...)
		g.mu.Unlock()
		for _, r := range results {
			if !r.OK {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// AllResults returns every task's result, including failed ones, for
// callers (the aggregator) that need the error flag to decide whether to
// write the response to cache (spec.md §4.F step 8).
func (g *Group[T]) AllResults() []Result[T] {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Result[T](nil), g.results...)
}

// Cancel cancels every outstanding task in the group.
func (g *Group[T]) Cancel() {
	g.cancel()
}
