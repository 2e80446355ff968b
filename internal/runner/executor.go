package runner

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/semaphore"

	"certify/internal/logger"
	"certify/internal/openssl"
)

// Executor runs plans step by step. Only one plan runs at a time; a step that does
// not complete stops the plan and later steps are reported as not run.
type Executor struct {
	runner Runner
	sem    *semaphore.Weighted
	log    logger.Logger
}

func NewExecutor(r Runner, log logger.Logger) *Executor {
	if log == nil {
		log = &logger.NilLogger{}
	}
	return &Executor{runner: r, sem: semaphore.NewWeighted(1), log: log}
}

// Execute runs plan and returns one result per step, in order.
func (e *Executor) Execute(ctx context.Context, plan *openssl.Plan) []Result {
	results := make([]Result, 0, len(plan.Steps))

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return skipFrom(results, plan, 0, StatusCancelled, err)
	}
	defer e.sem.Release(1)

	cleanup, err := materialize(plan.Scratch)
	defer cleanup()
	if err != nil {
		e.log.Error("plan %s: %v", plan.ID, err)
		return skipFrom(results, plan, 0, StatusFailed, err)
	}

	for i, step := range plan.Steps {
		e.log.Debug("plan %s step %d/%d: %s", plan.ID, i+1, len(plan.Steps), step.CommandLine())

		res := e.runner.Run(ctx, step)
		res.Step = i
		results = append(results, res)

		e.log.Debug("plan %s step %d %s (exit %d, %s)", plan.ID, i+1, res.Status, res.ExitCode, res.Duration)
		if !res.Succeeded() {
			return skipFrom(results, plan, i+1, StatusNotRun, nil)
		}
	}
	return results
}

// skipFrom synthesizes results for steps that were never started. The first one
// gets status and err; the rest are not run.
func skipFrom(results []Result, plan *openssl.Plan, from int, status Status, err error) []Result {
	for i := from; i < len(plan.Steps); i++ {
		step := plan.Steps[i]
		res := Result{
			Step:        i,
			Label:       step.Label,
			CommandLine: step.CommandLine(),
			Status:      StatusNotRun,
			ExitCode:    -1,
		}
		if i == from && status != StatusNotRun {
			res.Status = status
			res.Err = err
		}
		results = append(results, res)
	}
	return results
}

// materialize writes scratch files with owner-only permissions. The returned
// cleanup removes whatever was written and is safe to call on error.
func materialize(files []openssl.ScratchFile) (func(), error) {
	var written []string
	cleanup := func() {
		for _, path := range written {
			_ = os.Remove(path)
		}
	}
	for _, f := range files {
		if err := os.WriteFile(f.Path, f.Content, 0o600); err != nil {
			return cleanup, fmt.Errorf("failed to write scratch file: %w", err)
		}
		written = append(written, f.Path)
	}
	return cleanup, nil
}

// Run is a plan executing off the caller's goroutine.
type Run struct {
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	results []Result
}

// Start executes plan in a new goroutine. Cancel on the returned Run, or the
// parent ctx, terminates the running step.
func (e *Executor) Start(ctx context.Context, plan *openssl.Plan) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		defer cancel()
		r.results = e.Execute(ctx, plan)
	}()
	return r
}

func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancel requests termination. It is safe to call more than once and after the
// run finished.
func (r *Run) Cancel() {
	r.once.Do(r.cancel)
}

// Wait blocks until the run finishes and returns its results.
func (r *Run) Wait() []Result {
	<-r.done
	return r.results
}
