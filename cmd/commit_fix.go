// -- cmd/commit_fix.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/bugstore"
	"github.com/failcase/repro-cli/internal/config"
	"github.com/failcase/repro-cli/internal/reporting"
	"github.com/failcase/repro-cli/internal/vcs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newCommitFixCmd creates and configures the `commit-fix` command.
func newCommitFixCmd(a *app) *cobra.Command {
	commitFixCmd := &cobra.Command{
		Use:   "commit-fix <bug-id>",
		Short: "Commit the working tree to a fix branch and open a pull request",
		Long: `Commit-fix takes whatever edits sit in the configured repository's
working tree, commits them to fix/<bug-id>-<slug>, pushes the branch, and
opens a pull request against the base branch. The bug moves to "Fixed" with
the pull request URL recorded as its note.

The pull request body is rendered from the bug record; pass --report with a
JSON run report to use that run's summary instead.`,
		Example: `  repro-cli commit-fix BUG-123
  repro-cli commit-fix BUG-123 --repo ~/src/app --report run.json`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind the flag to its viper key so the command-line value
			// overrides the config file with the right precedence.
			return a.v.BindPFlag("vcs.repo_path", cmd.Flags().Lookup("repo"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			bugID := args[0]
			reportPath, _ := cmd.Flags().GetString("report")

			// Re-unmarshal so the --repo override lands in the config.
			cfg, err := config.NewConfigFromViper(a.v)
			if err != nil {
				return err
			}
			if err := cfg.VCS.Validate(); err != nil {
				return err
			}

			store, err := bugstore.New(ctx, cfg.BugStore, a.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize bug store: %w", err)
			}
			defer func() {
				if err := store.Close(context.Background()); err != nil {
					a.logger.Warn("Error closing bug store", zap.Error(err))
				}
			}()

			bug, err := store.GetBug(ctx, bugID)
			if err != nil {
				return fmt.Errorf("failed to load bug %s: %w", bugID, err)
			}

			body := fixBody(bug)
			if reportPath != "" {
				report, err := readReport(reportPath)
				if err != nil {
					return err
				}
				body = reporting.NewSummarizer(ctx, cfg.Summary, a.logger).Summarize(ctx, report)
			}

			publisher := vcs.NewPublisher(cfg.VCS, a.logger)
			prURL, err := publisher.CommitFix(ctx, vcs.FixRequest{
				BugID:   bug.ID,
				Title:   bug.Title,
				Summary: body,
			})
			if err != nil {
				return err
			}

			note := fmt.Sprintf("Fix submitted: %s", prURL)
			if err := store.UpdateStatus(ctx, bug.ID, schemas.StatusFixed, note); err != nil {
				a.logger.Warn("Pull request opened but status update failed",
					zap.String("bug_id", bug.ID), zap.Error(err))
			}

			fmt.Fprintln(cmd.OutOrStdout(), prURL)
			return nil
		},
	}

	commitFixCmd.Flags().String("repo", "", "Repository to commit from (defaults to vcs.repo_path)")
	commitFixCmd.Flags().String("report", "", "JSON run report whose summary becomes the pull request body")
	return commitFixCmd
}

// fixBody renders a pull request body from the bug record alone.
func fixBody(bug *schemas.Bug) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fixes %s: %s\n", bug.ID, bug.Title)
	if bug.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", bug.Description)
	}
	if len(bug.Steps) > 0 {
		b.WriteString("\nSteps to reproduce:\n")
		for i, step := range bug.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	if bug.Expected != "" {
		fmt.Fprintf(&b, "\nExpected: %s\n", bug.Expected)
	}
	if bug.Actual != "" {
		fmt.Fprintf(&b, "Actual: %s\n", bug.Actual)
	}
	return b.String()
}

// readReport loads a previously written JSON run report. Files holding
// several concatenated reports yield the first one.
func readReport(path string) (*schemas.RunReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}
	defer f.Close()

	var report schemas.RunReport
	if err := json.NewDecoder(f).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode run report %s: %w", path, err)
	}
	return &report, nil
}
