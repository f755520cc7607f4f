package taskmanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"schedulep2p/pkg/logger"
)

func init() {
	logger.Init("error")
}

func fastOpts() Options {
	return Options{
		DefaultTimeout: 50 * time.Millisecond,
		MaxRetries:     2,
		TimeoutGrowth:  10 * time.Millisecond,
		RetrySleep:     1 * time.Millisecond,
	}
}

func TestGroup_SuccessfulTasksAllEmit(t *testing.T) {
	g := NewGroup[int](context.Background(), fastOpts())

	g.Go("a", func(ctx context.Context) (int, error) { return 1, nil })
	g.Go("b", func(ctx context.Context) (int, error) { return 2, nil })

	var sum int
	for r := range g.Wait() {
		sum += r.Value
	}
	if sum != 3 {
		t.Fatalf("sum = %d, want 3", sum)
	}
}

func TestGroup_FailureIsolatesFromSiblings(t *testing.T) {
	g := NewGroup[int](context.Background(), fastOpts())

	g.Go("failing", func(ctx context.Context) (int, error) {
		return 0, errors.New("permanent failure")
	})
	g.Go("ok", func(ctx context.Context) (int, error) { return 42, nil })

	var got []int
	for r := range g.Wait() {
		got = append(got, r.Value)
	}
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("expected only the surviving sibling's result, got %v", got)
	}

	all := g.AllResults()
	if len(all) != 2 {
		t.Fatalf("AllResults() should include the failed task, got %d entries", len(all))
	}
}

func TestGroup_RetryableErrorEventuallyExhausts(t *testing.T) {
	g := NewGroup[int](context.Background(), fastOpts())

	attempts := 0
	g.Go("timeout-task", func(ctx context.Context) (int, error) {
		attempts++
		return 0, Retryable(errors.New("read timeout"))
	})

	results := g.AllResults()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.OK {
		t.Fatal("expected the task to fail after exhausting retries")
	}
	if !r.Err {
		t.Fatal("expected the error flag to be set")
	}
	if attempts < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestGroup_NonRetryableErrorFailsImmediately(t *testing.T) {
	g := NewGroup[int](context.Background(), fastOpts())

	attempts := 0
	g.Go("client-error", func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("404 not found")
	})

	g.AllResults()
	if attempts != 1 {
		t.Fatalf("non-retryable errors should not be retried, got %d attempts", attempts)
	}
}

func TestGroup_CancelStopsOutstandingTasks(t *testing.T) {
	g := NewGroup[int](context.Background(), Options{
		DefaultTimeout: time.Second,
		MaxRetries:     3,
		TimeoutGrowth:  time.Second,
		RetrySleep:     time.Millisecond,
	})

	started := make(chan struct{})
	g.Go("long", func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	<-started
	g.Cancel()

	results := g.AllResults()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].OK {
		t.Fatal("expected the cancelled task to not succeed")
	}
}
