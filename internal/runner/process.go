package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"certify/internal/cert"
	"certify/internal/openssl"
)

// Runner runs a single invocation to completion and reports its result.
type Runner interface {
	Run(ctx context.Context, inv openssl.Invocation) Result
}

// ProcessRunner spawns each invocation as an isolated child process.
type ProcessRunner struct {
	// Timeout bounds a single step; zero means no bound.
	Timeout time.Duration
	// Env replaces the child environment when non-nil.
	Env []string
	// WaitDelay bounds how long Wait blocks on output after the child is killed.
	WaitDelay time.Duration
}

func NewProcessRunner(timeout time.Duration) *ProcessRunner {
	return &ProcessRunner{Timeout: timeout, WaitDelay: 2 * time.Second}
}

func (p *ProcessRunner) Run(ctx context.Context, inv openssl.Invocation) Result {
	res := Result{Label: inv.Label, CommandLine: inv.CommandLine(), ExitCode: -1}

	if err := ctx.Err(); err != nil {
		res.Status = StatusCancelled
		res.Err = err
		return res
	}

	stepCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(stepCtx, inv.Path, inv.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error { return cmd.Process.Kill() }
	cmd.WaitDelay = p.WaitDelay
	if p.Env != nil {
		cmd.Env = p.Env
	}

	var input *secretInput
	if len(inv.Stdin) > 0 {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			res.Status = StatusFailed
			res.Err = fmt.Errorf("failed to open stdin: %w", err)
			return res
		}
		input = newSecretInput(pipe, inv.Stdin)
		defer input.Close()
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("failed to start %s: %w", inv.Path, err)
		return res
	}
	res.Started = true

	if input != nil {
		input.Feed()
	}

	waitErr := cmd.Wait()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	res.Status, res.Err = stepStatus(ctx.Err(), stepCtx.Err(), waitErr, p.Timeout)
	return res
}

// stepStatus classifies a finished step. A clean exit stands even when the
// context was cancelled after the child had already exited.
func stepStatus(ctxErr, stepErr, waitErr error, timeout time.Duration) (Status, error) {
	switch {
	case waitErr == nil:
		return StatusCompleted, nil
	case ctxErr != nil:
		return StatusCancelled, ctxErr
	case stepErr != nil:
		return StatusFailed, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return StatusFailed, nil
	}
	return StatusFailed, waitErr
}

// secretInput is the scoped stdin channel for passphrases. Each secret is written
// as one line; every buffer is zeroed and the pipe closed on all exit paths.
type secretInput struct {
	w       io.WriteCloser
	secrets []cert.Secret
	closed  bool
}

func newSecretInput(w io.WriteCloser, secrets []cert.Secret) *secretInput {
	return &secretInput{w: w, secrets: secrets}
}

// Feed writes all secrets and closes the pipe. Write errors are ignored: a child
// that exits early closes its end and its own exit status tells the story.
func (s *secretInput) Feed() {
	defer s.Close()
	for _, secret := range s.secrets {
		line := append(secret.Bytes(), '\n')
		_, err := s.w.Write(line)
		clear(line)
		if err != nil {
			return
		}
	}
}

func (s *secretInput) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.secrets = nil
	_ = s.w.Close()
}
