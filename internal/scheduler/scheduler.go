// Package scheduler dispatches pending render jobs for one pass through a
// bounded worker pool, guarded by the run's completion cache so every
// artifact renders at most once process-wide.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/detsumm/internal/cache"
	"github.com/vk/detsumm/internal/ctxlog"
)

// Job is one renderable unit. *plot.Plot satisfies it; tests use fakes.
type Job interface {
	// OutputFile returns the job's unique artifact identifier.
	OutputFile() string
	// ConcurrencySafe reports whether the job may render in a worker.
	ConcurrencySafe() bool
	// Render produces the artifact. A failure never aborts sibling jobs.
	Render(ctx context.Context) error
}

// Stats reports what one Run dispatched, for logging and tests.
type Stats struct {
	Rendered int // render invocations, successful or not
	Skipped  int // jobs dropped because their artifact was already claimed
	Workers  int // worker goroutines started
}

// Run renders the given jobs at most once per artifact identifier and returns
// only after every invocation has completed.
//
// Concurrency-unsafe jobs render in the calling goroutine, keeping their
// original relative order. Concurrency-safe jobs are enqueued and drained by
// up to workerBudget workers; with a budget of zero, or a single enqueued
// job, they render in the calling goroutine instead. The whole batch is
// enqueued before any worker starts, so workers drain non-blockingly and exit
// on empty.
//
// Per-job render failures are collected and returned joined after the pool
// drains; whether a partial report is fatal is the caller's decision.
func Run(ctx context.Context, jobs []Job, workerBudget int, done *cache.Completion) (Stats, error) {
	logger := ctxlog.FromContext(ctx)
	var stats Stats

	// Drop jobs whose artifact a previous pass already claimed, then move
	// safe jobs ahead of unsafe ones, stably.
	pending := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if done.Contains(j.OutputFile()) {
			stats.Skipped++
			continue
		}
		pending = append(pending, j)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].ConcurrencySafe() && !pending[j].ConcurrencySafe()
	})

	var (
		mu       sync.Mutex
		failures []error
	)
	invoke := func(j Job) {
		mu.Lock()
		stats.Rendered++
		mu.Unlock()
		if err := j.Render(ctx); err != nil {
			logger.Error("Render failed.", "artifact", j.OutputFile(), "error", err)
			mu.Lock()
			failures = append(failures, fmt.Errorf("render %s: %w", j.OutputFile(), err))
			mu.Unlock()
		}
	}

	queue := make(chan Job, len(pending))
	enqueued := 0
	for _, j := range pending {
		// Claim the artifact before dispatch so a duplicate discovered
		// mid-batch is skipped whatever its dispatch path.
		if !done.Add(j.OutputFile()) {
			stats.Skipped++
			continue
		}
		if j.ConcurrencySafe() && workerBudget > 0 {
			queue <- j
			enqueued++
			continue
		}
		invoke(j)
	}
	close(queue)

	switch {
	case enqueued == 1:
		// Not worth a goroutine for a single job.
		invoke(<-queue)
	case enqueued > 1:
		workers := enqueued
		if workerBudget < workers {
			workers = workerBudget
		}
		stats.Workers = workers
		logger.Debug("Starting render workers.", "workers", workers, "enqueued", enqueued)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				drain(queue, invoke)
			}()
		}
		wg.Wait()
	}

	return stats, errors.Join(failures...)
}

// drain renders queued jobs until the queue is empty, then returns. The full
// batch is enqueued before any worker starts, so a non-blocking receive is
// enough: there are no late producers to wait on.
func drain(queue chan Job, invoke func(Job)) {
	for {
		select {
		case j, ok := <-queue:
			if !ok {
				return
			}
			invoke(j)
		default:
			return
		}
	}
}
