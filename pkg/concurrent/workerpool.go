// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package concurrent holds the concurrency primitives shared by the service layer.
package concurrent

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/linuxfoundation/lfx-v2-meeting-session-service/internal/logging"
)

// WorkerPool bounds the number of goroutines used to run a batch of jobs. The
// service dispatches post-commit event publication and room teardown through it.
type WorkerPool struct {
	workerCount int
	inflight    sync.WaitGroup
}

// NewWorkerPool creates a worker pool with the given concurrency limit.
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// RunAll executes every function regardless of failures and returns the
// non-nil errors, in no particular order.
func (wp *WorkerPool) RunAll(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	collect := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				collect(err)
				return nil
			}
			if err := fn(); err != nil {
				collect(err)
			}
			// never fail the group, every job must get its turn
			return nil
		})
	}

	_ = g.Wait()
	return errs
}

// Dispatch runs the functions in the background through RunAll and logs the
// failures. The context handed to the functions is detached from ctx's
// cancellation so that work started by a finished request still completes.
func (wp *WorkerPool) Dispatch(ctx context.Context, label string, functions ...func(ctx context.Context) error) {
	if len(functions) == 0 {
		return
	}

	detached := context.WithoutCancel(ctx)
	jobs := make([]func() error, 0, len(functions))
	for _, fn := range functions {
		jobs = append(jobs, func() error { return fn(detached) })
	}

	wp.inflight.Add(1)
	go func() {
		defer wp.inflight.Done()
		for _, err := range wp.RunAll(detached, jobs...) {
			slog.WarnContext(detached, "background job failed", "job", label, logging.ErrKey, err)
		}
	}()
}

// Wait blocks until every dispatched batch has finished.
func (wp *WorkerPool) Wait() {
	wp.inflight.Wait()
}
