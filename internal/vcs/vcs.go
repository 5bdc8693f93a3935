// internal/vcs/vcs.go

// Package vcs publishes bug fixes. It takes whatever edits sit in the
// configured repository's working tree, commits them to a fix branch, pushes
// the branch, and opens a pull request whose body is the rendered run
// summary. It never looks inside the engine; the summary string is its whole
// view of a run.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v58/github"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/internal/config"
)

// FixRequest names the bug a local fix addresses and carries the rendered
// run summary for the pull request body.
type FixRequest struct {
	BugID   string
	Title   string
	Summary string
}

// pullRequester is the slice of the GitHub API the publisher uses.
// *github.PullRequestsService satisfies it; tests substitute a fake.
type pullRequester interface {
	Create(ctx context.Context, owner, repo string, pull *github.NewPullRequest) (*github.PullRequest, *github.Response, error)
}

// Publisher commits and pushes fix branches and opens pull requests for
// them.
type Publisher struct {
	cfg config.VCSConfig
	prs pullRequester
	log *zap.Logger
}

// NewPublisher wires a GitHub client from config. The token authenticates
// both the branch push and the pull request creation.
func NewPublisher(cfg config.VCSConfig, logger *zap.Logger) *Publisher {
	client := github.NewClient(nil)
	if cfg.GitHub.Token != "" {
		client = client.WithAuthToken(cfg.GitHub.Token)
	}
	return &Publisher{
		cfg: cfg,
		prs: client.PullRequests,
		log: logger.Named("vcs"),
	}
}

// CommitFix stages all working tree changes, commits them to
// fix/<bug-id>-<slug>, pushes the branch to the configured remote, and opens
// a pull request against the base branch. It returns the pull request URL.
func (p *Publisher) CommitFix(ctx context.Context, req FixRequest) (string, error) {
	branch := FixBranch(req.BugID, req.Title)

	if err := p.commitAndPush(ctx, req, branch); err != nil {
		return "", err
	}

	title := fmt.Sprintf("Fix %s: %s", req.BugID, req.Title)
	pr, _, err := p.prs.Create(ctx, p.cfg.GitHub.Owner, p.cfg.GitHub.Repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(branch),
		Base:  github.String(p.cfg.BaseBranch),
		Body:  github.String(req.Summary),
	})
	if err != nil {
		return "", fmt.Errorf("failed to open pull request for %s: %w", branch, err)
	}

	p.log.Info("Pull request opened",
		zap.String("bug_id", req.BugID),
		zap.String("branch", branch),
		zap.String("url", pr.GetHTMLURL()))
	return pr.GetHTMLURL(), nil
}

func (p *Publisher) commitAndPush(ctx context.Context, req FixRequest, branch string) error {
	repo, err := git.PlainOpen(p.cfg.RepoPath)
	if err != nil {
		return fmt.Errorf("failed to open repository %s: %w", p.cfg.RepoPath, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}

	// Re-running a fix lands on the existing branch instead of failing.
	ref := plumbing.NewBranchReferenceName(branch)
	_, refErr := repo.Reference(ref, true)
	create := errors.Is(refErr, plumbing.ErrReferenceNotFound)
	if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Create: create, Keep: true}); err != nil {
		return fmt.Errorf("failed to check out %s: %w", branch, err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("failed to read worktree status: %w", err)
	}
	if status.IsClean() {
		return fmt.Errorf("nothing to commit in %s", p.cfg.RepoPath)
	}

	msg := fmt.Sprintf("Fix %s: %s", req.BugID, req.Title)
	commit, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.cfg.AuthorName,
			Email: p.cfg.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit fix: %w", err)
	}
	p.log.Info("Fix committed",
		zap.String("branch", branch),
		zap.String("commit", commit.String()))

	push := &git.PushOptions{
		RemoteName: p.cfg.Remote,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)),
		},
	}
	if p.cfg.GitHub.Token != "" {
		// GitHub ignores the username when the password is a token.
		push.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: p.cfg.GitHub.Token}
	}
	if err := repo.PushContext(ctx, push); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push %s: %w", branch, err)
	}
	return nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// FixBranch derives the branch name for a bug fix, for example
// fix/bug-7-login-button-does-nothing. Slugs are capped so pathological
// titles cannot produce unusable refs.
func FixBranch(bugID, title string) string {
	id := slug(bugID)
	if id == "" {
		id = "bug"
	}
	s := slug(title)
	const maxSlug = 40
	if len(s) > maxSlug {
		s = strings.Trim(s[:maxSlug], "-")
	}
	if s == "" {
		return "fix/" + id
	}
	return fmt.Sprintf("fix/%s-%s", id, s)
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
