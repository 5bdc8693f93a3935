// internal/runner/runner.go

// Package runner orchestrates full runs: parse the step lines, acquire a
// browser page, execute the plan strictly in order, and fold the step
// results into a RunReport. A run always yields a report, including when the
// context is cancelled mid-way; the report is then truncated at the step
// that never ran.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/executor"
	"github.com/failcase/repro-cli/internal/steps"
)

// PageProvider acquires a page for the duration of one run. The release
// func must always be called; it is safe to call more than once.
type PageProvider interface {
	NewPage(ctx context.Context) (schemas.PageDriver, func(), error)
}

// RunRequest describes one run: the raw step lines, the page to start on,
// and whether the caller is reproducing or verifying.
type RunRequest struct {
	Steps []string
	URL   string
	Mode  schemas.RunMode
}

// Runner executes RunRequests. One Runner serves any number of sequential or
// concurrent runs; per-run state lives on the stack of Run.
type Runner struct {
	pages       PageProvider
	exec        *executor.Executor
	concurrency int64
	logger      *zap.Logger
}

// New returns a Runner. concurrency caps how many Batch runs may hold a
// browser page at once; values below one are raised to one.
func New(pages PageProvider, exec *executor.Executor, concurrency int, logger *zap.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		pages:       pages,
		exec:        exec,
		concurrency: int64(concurrency),
		logger:      logger.Named("runner"),
	}
}

// Run executes one request and returns its report. Steps run strictly in
// input order; the first failure halts the run in both modes and sets
// HaltedAt. The browser page is scoped to this call and released before Run
// returns.
func (r *Runner) Run(ctx context.Context, req RunRequest) *schemas.RunReport {
	report := &schemas.RunReport{
		RunID:     uuid.NewString(),
		Mode:      req.Mode,
		TargetURL: req.URL,
		StartedAt: time.Now(),
	}
	defer func() {
		report.Elapsed = time.Since(report.StartedAt)
	}()

	logger := r.logger.With(
		zap.String("run_id", report.RunID),
		zap.String("mode", string(req.Mode)),
	)

	plan := r.buildPlan(req)
	logger.Info("Starting run",
		zap.String("url", req.URL),
		zap.Int("steps", len(plan)),
	)

	page, release, err := r.pages.NewPage(ctx)
	if err != nil {
		logger.Error("No browser page available", zap.Error(err))
		return r.abortedReport(report, plan, err)
	}
	defer release()

	for i, action := range plan {
		if ctx.Err() != nil {
			halted := i
			report.HaltedAt = &halted
			logger.Warn("Run cancelled", zap.Int("at_step", i))
			break
		}

		result := r.exec.Execute(ctx, report.RunID, i, action, page)
		report.Steps = append(report.Steps, result)

		if result.Failed() {
			halted := i
			report.HaltedAt = &halted
			logger.Warn("Step failed, halting run",
				zap.Int("step", i),
				zap.String("action", action.String()),
				zap.String("error_kind", string(result.ErrorKind)),
				zap.String("message", result.Message),
			)
			break
		}
	}

	report.PageErrors = page.PageErrors()
	report.Overall = overallOutcome(report, len(plan))

	if ctx.Err() == nil {
		if title, err := page.Title(ctx); err == nil {
			logger.Debug("Final page state", zap.String("title", title))
		}
	}

	logger.Info("Run finished",
		zap.String("overall", string(report.Overall)),
		zap.Int("steps_executed", len(report.Steps)),
		zap.Duration("elapsed", time.Since(report.StartedAt)),
	)
	return report
}

// Batch runs the requests concurrently, at most r.concurrency at a time.
// The returned slice is index-aligned with requests and every entry is a
// complete report, even for runs that were cancelled before starting.
func (r *Runner) Batch(ctx context.Context, requests []RunRequest) []*schemas.RunReport {
	reports := make([]*schemas.RunReport, len(requests))
	sem := semaphore.NewWeighted(r.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		g.Go(func() error {
			// Acquire only fails when the context is gone; Run then yields
			// the truncated report without touching the browser.
			if err := sem.Acquire(gctx, 1); err == nil {
				defer sem.Release(1)
			}
			reports[i] = r.Run(gctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// buildPlan parses the step lines and prepends the implicit initial
// navigation unless the first step already navigates somewhere.
func (r *Runner) buildPlan(req RunRequest) []schemas.Action {
	actions := steps.ParseAll(req.Steps)

	if req.URL == "" {
		return actions
	}
	if len(actions) > 0 && actions[0].Kind == schemas.ActionNavigate {
		return actions
	}

	plan := make([]schemas.Action, 0, len(actions)+1)
	plan = append(plan, schemas.Action{Kind: schemas.ActionNavigate, URL: req.URL})
	return append(plan, actions...)
}

// abortedReport shapes the report for a run whose browser page never came
// up: the first planned action is recorded as a navigation failure so the
// report stays self-describing.
func (r *Runner) abortedReport(report *schemas.RunReport, plan []schemas.Action, err error) *schemas.RunReport {
	first := schemas.Action{Kind: schemas.ActionNavigate, URL: report.TargetURL}
	if len(plan) > 0 {
		first = plan[0]
	}
	report.Steps = []schemas.StepResult{{
		Index:     0,
		Action:    first,
		Outcome:   schemas.OutcomeFailure,
		ErrorKind: schemas.ErrNavigation,
		Message:   fmt.Sprintf("browser page unavailable: %v", err),
	}}
	halted := 0
	report.HaltedAt = &halted
	report.Overall = schemas.OutcomeFailure
	return report
}

// overallOutcome is Success only when every planned step executed and
// succeeded.
func overallOutcome(report *schemas.RunReport, planned int) schemas.Outcome {
	if report.HaltedAt != nil || len(report.Steps) != planned {
		return schemas.OutcomeFailure
	}
	for _, s := range report.Steps {
		if s.Failed() {
			return schemas.OutcomeFailure
		}
	}
	return schemas.OutcomeSuccess
}
