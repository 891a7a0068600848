// Package workerpool runs a batch of independent command executions under a
// bounded concurrency cap, isolating each command's failure from its
// siblings and reporting every run's outcome in a per-task Result.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Result is one unit of work's outcome. Index preserves the caller's
// original ordering so results can be matched back to inputs regardless of
// completion order.
type Result struct {
	Index int
	Err   error
}

// Task is one unit of work submitted to Execute.
type Task func(ctx context.Context) error

// Execute runs tasks under a concurrency cap of `concurrency` (or
// sequentially, one at a time, when overrideSequential is true — the
// dry-run / remote-dispatch escape hatch). A task's error is captured in its
// Result and does not cancel or block its siblings. A cancelled ctx shows up
// as the Err of each task that had not started; Execute's own error is
// always nil.
func Execute(ctx context.Context, tasks []Task, concurrency int, overrideSequential bool) ([]Result, error) {
	if overrideSequential {
		concurrency = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(tasks))
	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, task := range tasks {
		i, task := i, task
		if err := sem.Acquire(gctx, 1); err != nil {
			results[i] = Result{Index: i, Err: err}
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = Result{Index: i, Err: task(gctx)}
			return nil
		})
	}

	// g.Wait only ever returns non-nil from a task that returned an error,
	// and tasks here always return nil (their error is captured in Result),
	// so the only real failure mode is the semaphore acquisition above.
	_ = g.Wait()
	return results, nil
}

// Failures filters results down to the ones that errored.
func Failures(results []Result) []Result {
	failed := make([]Result, 0)
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
