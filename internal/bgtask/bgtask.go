// Package bgtask is the Go analogue of FastAPI's BackgroundTasks: a tiny
// fire-and-forget goroutine runner that a graceful shutdown can still
// drain before the process exits.
package bgtask

import (
	"sync"

	"schedulep2p/pkg/logger"
)

// Runner tracks outstanding background work so Wait can block until it
// has all completed.
type Runner struct {
	wg sync.WaitGroup
}

// New returns a ready-to-use Runner.
func New() *Runner {
	return &Runner{}
}

// Go runs fn in its own goroutine, recovering and logging any panic so a
// background cache write can never take the process down.
func (r *Runner) Go(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Log.Error("background task panicked", "recovered", rec)
			}
		}()
		fn()
	}()
}

// Wait blocks until every task started via Go has returned. Used by
// cmd/schedule-aggregator after the server stops to drain pending cache
// writes.
func (r *Runner) Wait() {
	r.wg.Wait()
}
