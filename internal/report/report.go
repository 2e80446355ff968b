package report

import (
	"fmt"
	"strings"

	"certify/internal/runner"
)

// MaxExcerptLines bounds the stderr excerpt carried by a failure.
const MaxExcerptLines = 20

// Kind is the classified outcome of a plan.
type Kind string

const (
	Success   Kind = "success"
	Failure   Kind = "failure"
	Cancelled Kind = "cancelled"
)

// Outcome is the caller-facing summary of a plan execution.
type Outcome struct {
	Kind Kind
	// Step is the index of the first failed step; -1 otherwise.
	Step int
	// Label of the failed step.
	Label string
	// Stderr is the tail of the failed step's stderr.
	Stderr string
	// ExitCode of the failed step, -1 if it never started.
	ExitCode int
	Cause    error
}

// Classify reduces step results to a single outcome. Cancellation wins over
// failure; an empty result list is a success.
func Classify(results []runner.Result) Outcome {
	for _, r := range results {
		if r.Status == runner.StatusCancelled {
			return Outcome{Kind: Cancelled, Step: r.Step, Label: r.Label, ExitCode: r.ExitCode}
		}
	}
	for _, r := range results {
		if !r.Succeeded() {
			return Outcome{
				Kind:     Failure,
				Step:     r.Step,
				Label:    r.Label,
				Stderr:   Excerpt(r.Stderr, MaxExcerptLines),
				ExitCode: r.ExitCode,
				Cause:    r.Err,
			}
		}
	}
	return Outcome{Kind: Success, Step: -1, ExitCode: 0}
}

func (o Outcome) String() string {
	switch o.Kind {
	case Failure:
		return fmt.Sprintf("failed at step %d (%s)", o.Step+1, o.Label)
	case Cancelled:
		return "cancelled"
	default:
		return "success"
	}
}

// Err returns an *ExecutionError for failures and nil otherwise.
func (o Outcome) Err() error {
	if o.Kind != Failure {
		return nil
	}
	return &ExecutionError{Step: o.Step, Label: o.Label, ExitCode: o.ExitCode, Stderr: o.Stderr, Cause: o.Cause}
}

// ExecutionError is a step that ran and did not exit 0, or could not be started.
type ExecutionError struct {
	Step     int
	Label    string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("step %d (%s) failed", e.Step+1, e.Label)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if last := lastLine(e.Stderr); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Excerpt returns the last n non-empty-trailing lines of s.
func Excerpt(s string, n int) string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
