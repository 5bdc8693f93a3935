// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/artifacts"
	"github.com/failcase/repro-cli/internal/browser"
	"github.com/failcase/repro-cli/internal/bugstore"
	"github.com/failcase/repro-cli/internal/config"
	"github.com/failcase/repro-cli/internal/executor"
	"github.com/failcase/repro-cli/internal/reporting"
	"github.com/failcase/repro-cli/internal/runner"
)

// pageProvider adapts the concrete browser manager to the runner's
// page-acquisition contract.
type pageProvider struct {
	mgr *browser.Manager
}

func (p pageProvider) NewPage(ctx context.Context) (schemas.PageDriver, func(), error) {
	return p.mgr.NewPage(ctx)
}

// addRunFlags installs the flags reproduce and verify share.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "Target URL to open before the first step (overrides the bug record)")
	cmd.Flags().String("steps-file", "", "Read step lines from a file instead of the bug store")
	cmd.Flags().StringP("format", "f", "text", "Report format: text, json or junit")
	cmd.Flags().StringP("output", "o", "", "Report output path (default stdout)")
	cmd.Flags().Bool("update-status", false, "Update the bug status in the store after a green run")
}

// runSession wires every component a run command needs. Close releases them
// in reverse dependency order.
type runSession struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     schemas.BugStore
	manager   *browser.Manager
	runner    *runner.Runner
	summarize reporting.Summarizer
}

func newRunSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runSession, error) {
	store, err := bugstore.New(ctx, cfg.BugStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bug store: %w", err)
	}

	fsStore, err := artifacts.NewFSStore(cfg.Artifacts.Dir, logger)
	if err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	manager := browser.NewManager(cfg.Browser, cfg.Timeouts.Schemas(), logger)
	exec := executor.New(fsStore, cfg.Timeouts.Schemas(), logger)

	return &runSession{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		manager:   manager,
		runner:    runner.New(pageProvider{mgr: manager}, exec, cfg.Browser.Concurrency, logger),
		summarize: reporting.NewSummarizer(ctx, cfg.Summary, logger),
	}, nil
}

// Close shuts the session down. It takes its own context because the
// command context is usually already cancelled when shutdown runs.
func (s *runSession) Close(ctx context.Context) {
	s.manager.Close()
	if err := s.store.Close(ctx); err != nil {
		s.logger.Warn("Error closing bug store", zap.Error(err))
	}
}

// runSteps is the body of reproduce and verify: assemble the requests from
// bug IDs or a steps file, run them, write the reports, and feed the
// results back into the bug store.
func (a *app) runSteps(cmd *cobra.Command, args []string, mode schemas.RunMode) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	urlFlag, _ := flags.GetString("url")
	stepsFile, _ := flags.GetString("steps-file")
	format, _ := flags.GetString("format")
	output, _ := flags.GetString("output")
	updateStatus, _ := flags.GetBool("update-status")

	if len(args) == 0 && stepsFile == "" {
		return fmt.Errorf("give at least one bug ID or --steps-file")
	}
	if len(args) > 0 && stepsFile != "" {
		return fmt.Errorf("bug IDs and --steps-file are mutually exclusive")
	}

	// Everything that can fail cheaply fails here, before the browser
	// allocator or a store connection comes up.
	var stepLines []string
	if stepsFile != "" {
		var err error
		if stepLines, err = readStepsFile(stepsFile); err != nil {
			return err
		}
	}

	reporter, err := reporting.New(format, output)
	if err != nil {
		return err
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			a.logger.Error("Failed to close reporter", zap.Error(err))
		}
	}()

	session, err := newRunSession(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer session.Close(context.Background())

	var requests []runner.RunRequest
	var bugs []*schemas.Bug

	if stepsFile != "" {
		requests = append(requests, runner.RunRequest{Steps: stepLines, URL: urlFlag, Mode: mode})
		bugs = append(bugs, nil)
	} else {
		for _, id := range args {
			bug, err := session.store.GetBug(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load bug %s: %w", id, err)
			}
			target := bug.TargetURL
			if urlFlag != "" {
				target = urlFlag
			}
			requests = append(requests, runner.RunRequest{Steps: bug.Steps, URL: target, Mode: mode})
			bugs = append(bugs, bug)
		}
	}

	var reports []*schemas.RunReport
	if len(requests) == 1 {
		reports = []*schemas.RunReport{session.runner.Run(ctx, requests[0])}
	} else {
		reports = session.runner.Batch(ctx, requests)
	}

	failures := 0
	for i, report := range reports {
		if err := reporter.Write(report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if report.Failed() {
			failures++
		}
		if bugs[i] != nil {
			session.recordRun(ctx, bugs[i], report, updateStatus, mode)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d runs failed", failures, len(reports))
	}
	return nil
}

// recordRun pushes a finished run back into the bug store. Store failures
// are logged, not fatal: the report has already been written.
func (s *runSession) recordRun(ctx context.Context, bug *schemas.Bug, report *schemas.RunReport, updateStatus bool, mode schemas.RunMode) {
	log := s.logger.With(zap.String("bug_id", bug.ID), zap.String("run_id", report.RunID))

	if err := s.store.AttachReport(ctx, bug.ID, report); err != nil {
		log.Warn("Failed to attach run report to bug", zap.Error(err))
	}

	if !updateStatus || report.Failed() {
		return
	}

	status := schemas.StatusInProgress
	if mode == schemas.ModeVerify {
		status = schemas.StatusVerified
	}
	note := s.summarize.Summarize(ctx, report)
	if err := s.store.UpdateStatus(ctx, bug.ID, status, note); err != nil {
		log.Warn("Failed to update bug status", zap.Error(err))
		return
	}
	log.Info("Bug status updated", zap.String("status", string(status)))
}

// runQueuedBug reproduces one bug dequeued by watch mode. The full report
// lands in the bug store; the terminal gets the outcome log line.
func (s *runSession) runQueuedBug(ctx context.Context, bugID string, mode schemas.RunMode, updateStatus bool) error {
	bug, err := s.store.GetBug(ctx, bugID)
	if err != nil {
		return fmt.Errorf("failed to load bug %s: %w", bugID, err)
	}

	report := s.runner.Run(ctx, runner.RunRequest{Steps: bug.Steps, URL: bug.TargetURL, Mode: mode})
	s.logger.Info("Queued run finished",
		zap.String("bug_id", bugID),
		zap.String("run_id", report.RunID),
		zap.String("overall", string(report.Overall)))

	s.recordRun(ctx, bug, report, updateStatus, mode)
	return nil
}

// readStepsFile loads raw step lines, dropping blank ones. Numbering
// prefixes stay; the parser strips them itself.
func readStepsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps file: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("steps file %s has no steps", path)
	}
	return lines, nil
}
