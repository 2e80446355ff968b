package runner

import (
	"errors"
	"time"
)

// Status is the state a step ended in.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusNotRun    Status = "not-run"
	StatusCancelled Status = "cancelled"
)

// ErrTimeout marks a step killed because it exceeded the per-step timeout.
var ErrTimeout = errors.New("step timed out")

// Result is the immutable record of one plan step.
type Result struct {
	Step        int
	Label       string
	CommandLine string
	Status      Status
	ExitCode    int
	Stdout      string
	Stderr      string
	Duration    time.Duration
	// Started is false when no process was spawned for the step.
	Started bool
	// Err is set when the process could not be started or was killed.
	Err error
}

// Succeeded reports whether the step ran and exited 0.
func (r Result) Succeeded() bool {
	return r.Status == StatusCompleted && r.ExitCode == 0
}

// Executed reports whether a process was started for the step.
func (r Result) Executed() bool {
	return r.Started
}
