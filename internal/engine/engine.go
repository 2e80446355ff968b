// Package engine wires the model, command builder, executor and reporter for a
// caller. It owns toolkit detection and the one-plan-at-a-time rule.
package engine

import (
	"context"
	"sync"
	"time"

	"certify/internal/cert"
	"certify/internal/logger"
	"certify/internal/openssl"
	"certify/internal/report"
	"certify/internal/runner"
)

type Options struct {
	// Binary is the toolkit name or path; empty means "openssl" on the search path.
	Binary       string
	Dialect      string
	LegacyPKCS12 bool
	// Timeout bounds each step; zero disables it.
	Timeout    time.Duration
	ScratchDir string
	Logger     logger.Logger
	// Toolkit skips detection when set.
	Toolkit *openssl.Toolkit
	// Runner replaces the process runner, mostly for tests.
	Runner runner.Runner
}

type Engine struct {
	opts     Options
	log      logger.Logger
	executor *runner.Executor

	detectMu  sync.Mutex
	resolved  bool
	toolkit   *openssl.Toolkit
	detectErr error
}

func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = &logger.NilLogger{}
	}
	r := opts.Runner
	if r == nil {
		r = runner.NewProcessRunner(opts.Timeout)
	}
	return &Engine{opts: opts, log: log, executor: runner.NewExecutor(r, log)}
}

// Toolkit detects the toolkit on first use. A detected toolkit and a not-found
// error are cached for the engine's lifetime; any other failure only fails the
// current call and detection is retried next time.
func (e *Engine) Toolkit(ctx context.Context) (*openssl.Toolkit, error) {
	e.detectMu.Lock()
	defer e.detectMu.Unlock()

	if e.resolved {
		return e.toolkit, e.detectErr
	}
	if e.opts.Toolkit != nil {
		e.toolkit, e.resolved = e.opts.Toolkit, true
		return e.toolkit, nil
	}

	tk, err := openssl.Detect(ctx, e.opts.Binary, openssl.DetectOptions{
		Dialect:      e.opts.Dialect,
		LegacyPKCS12: e.opts.LegacyPKCS12,
	})
	switch {
	case err == nil:
		e.toolkit, e.resolved = tk, true
		e.log.Debug("using %s (%s, dialect %s)", tk.Path, tk.Version, tk.Dialect.Name())
	case openssl.IsNotFound(err):
		e.detectErr, e.resolved = err, true
		e.log.Error("toolkit detection failed: %v", err)
	default:
		e.log.Warning("toolkit detection failed: %v", err)
	}
	return tk, err
}

func (e *Engine) builder(ctx context.Context) (*openssl.Builder, error) {
	tk, err := e.Toolkit(ctx)
	if err != nil {
		return nil, err
	}
	b := openssl.NewBuilder(tk)
	if e.opts.ScratchDir != "" {
		b.WithScratchDir(e.opts.ScratchDir)
	}
	return b, nil
}

// Preview renders the config for the session as it currently stands.
func (e *Engine) Preview(s *cert.Session) string {
	return s.Render()
}

// PlanCSR validates the session and builds its plan. Invalid sessions fail before
// the toolkit is even looked up.
func (e *Engine) PlanCSR(ctx context.Context, s *cert.Session, out cert.CSROutputs) (*openssl.Plan, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	b, err := e.builder(ctx)
	if err != nil {
		return nil, err
	}
	return b.BuildCSR(s.Render(), out, s.Key)
}

func (e *Engine) PlanConversion(ctx context.Context, job *cert.ConversionJob) (*openssl.Plan, error) {
	b, err := e.builder(ctx)
	if err != nil {
		return nil, err
	}
	return b.BuildConversion(job)
}

// Execution is a finished plan with its classified outcome.
type Execution struct {
	Plan    *openssl.Plan
	Results []runner.Result
	Outcome report.Outcome
}

// Log renders the execution log.
func (x *Execution) Log(opts report.LogOptions) string {
	return report.Log(x.Results, opts)
}

// Err is the outcome's error: nil for success and cancellation.
func (x *Execution) Err() error {
	return x.Outcome.Err()
}

// Execute runs plan and blocks until it finishes or ctx is cancelled.
func (e *Engine) Execute(ctx context.Context, plan *openssl.Plan) *Execution {
	e.log.Info("plan %s: %s (%d steps)", plan.ID, plan.Operation, len(plan.Steps))
	results := e.executor.Execute(ctx, plan)
	return e.finish(plan, results)
}

// Start runs plan in the background. Use Wait on the returned handle to obtain
// the Execution.
func (e *Engine) Start(ctx context.Context, plan *openssl.Plan) *Handle {
	e.log.Info("plan %s: %s (%d steps)", plan.ID, plan.Operation, len(plan.Steps))
	return &Handle{Run: e.executor.Start(ctx, plan), plan: plan, engine: e}
}

// Handle is a plan running in the background.
type Handle struct {
	*runner.Run
	plan   *openssl.Plan
	engine *Engine
}

func (h *Handle) Wait() *Execution {
	return h.engine.finish(h.plan, h.Run.Wait())
}

func (e *Engine) finish(plan *openssl.Plan, results []runner.Result) *Execution {
	x := &Execution{Plan: plan, Results: results, Outcome: report.Classify(results)}
	switch x.Outcome.Kind {
	case report.Failure:
		e.log.Warning("plan %s: %v", plan.ID, x.Outcome.Err())
	default:
		e.log.Info("plan %s: %s", plan.ID, x.Outcome)
	}
	return x
}

// GenerateCSR plans and runs key and CSR generation for the session.
func (e *Engine) GenerateCSR(ctx context.Context, s *cert.Session, out cert.CSROutputs) (*Execution, error) {
	plan, err := e.PlanCSR(ctx, s, out)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan), nil
}

// Convert plans and runs a conversion job.
func (e *Engine) Convert(ctx context.Context, job *cert.ConversionJob) (*Execution, error) {
	plan, err := e.PlanConversion(ctx, job)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan), nil
}
