// internal/runner/runner_test.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/executor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePage is a minimal in-memory PageDriver. Elements registered with show
// exist and are visible; everything else is absent.
type fakePage struct {
	mu       sync.Mutex
	matches  map[string]int
	visible  map[string]bool
	text     string
	navErr   error
	pageErrs []string
	navs     int
}

func newFakePage() *fakePage {
	return &fakePage{
		matches: make(map[string]int),
		visible: make(map[string]bool),
	}
}

func (f *fakePage) show(keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		f.matches[k] = 1
		f.visible[k] = true
	}
}

func key(c schemas.LocatorCandidate) string {
	return string(c.Strategy) + "|" + c.Value
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	f.navs++
	f.mu.Unlock()
	return f.navErr
}

func (f *fakePage) Find(ctx context.Context, c schemas.LocatorCandidate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[key(c)], nil
}

func (f *fakePage) WaitVisible(ctx context.Context, c schemas.LocatorCandidate) error {
	f.mu.Lock()
	vis := f.visible[key(c)]
	f.mu.Unlock()
	if vis {
		return nil
	}
	return fmt.Errorf("wait for visibility timed out: %w", context.DeadlineExceeded)
}

func (f *fakePage) Click(ctx context.Context, c schemas.LocatorCandidate) error          { return nil }
func (f *fakePage) Hover(ctx context.Context, c schemas.LocatorCandidate) error          { return nil }
func (f *fakePage) Fill(ctx context.Context, c schemas.LocatorCandidate, t string) error { return nil }
func (f *fakePage) SelectOption(ctx context.Context, c schemas.LocatorCandidate, o string) error {
	return nil
}
func (f *fakePage) ScrollIntoView(ctx context.Context, c schemas.LocatorCandidate) error { return nil }
func (f *fakePage) ScrollEdge(ctx context.Context, e schemas.ScrollEdge) error           { return nil }

func (f *fakePage) VisibleText(ctx context.Context) (string, error) { return f.text, nil }
func (f *fakePage) Title(ctx context.Context) (string, error)       { return "fake page", nil }
func (f *fakePage) Screenshot(ctx context.Context) ([]byte, error)  { return []byte("png"), nil }

func (f *fakePage) PageErrors() []string { return f.pageErrs }

func (f *fakePage) navigations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.navs
}

// fakeProvider serves the same page to every run and tracks how many runs
// hold a page at once.
type fakeProvider struct {
	mu        sync.Mutex
	page      *fakePage
	err       error
	active    int
	maxActive int
	releases  int
}

func (p *fakeProvider) NewPage(ctx context.Context) (schemas.PageDriver, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, nil, p.err
	}
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}

	page := p.page
	if page == nil {
		page = newFakePage()
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.active--
			p.releases++
		})
	}
	return page, release, nil
}

func (p *fakeProvider) stats() (maxActive, releases int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive, p.releases
}

type fakeArtifacts struct{ mu sync.Mutex }

func (f *fakeArtifacts) SaveScreenshot(runID string, stepIndex int, label string, png []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("%s/step-%02d-%s.png", runID, stepIndex, label), nil
}

func newTestRunner(p PageProvider, concurrency int) *Runner {
	timeouts := schemas.Timeouts{
		Navigation: time.Second,
		Step:       time.Second,
		WaitFor:    100 * time.Millisecond,
		Element:    50 * time.Millisecond,
	}
	exec := executor.New(&fakeArtifacts{}, timeouts, zap.NewNop())
	return New(p, exec, concurrency, zap.NewNop())
}

func TestRunHaltsOnFirstFailure(t *testing.T) {
	page := newFakePage()
	page.pageErrs = []string{"console.error: boom"}
	provider := &fakeProvider{page: page}
	r := newTestRunner(provider, 1)

	report := r.Run(context.Background(), RunRequest{
		Steps: []string{
			"Go to https://app.test/login",
			"Click the 'Login' button",
			"Click #next",
		},
		URL:  "https://app.test/login",
		Mode: schemas.ModeReproduce,
	})

	require.NotNil(t, report)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, schemas.ModeReproduce, report.Mode)

	// Step A succeeded, step B failed, step C never ran.
	require.Len(t, report.Steps, 2)
	assert.Equal(t, schemas.OutcomeSuccess, report.Steps[0].Outcome)
	assert.Equal(t, schemas.OutcomeFailure, report.Steps[1].Outcome)
	assert.Equal(t, schemas.ErrElementNotFound, report.Steps[1].ErrorKind)

	require.NotNil(t, report.HaltedAt)
	assert.Equal(t, 1, *report.HaltedAt)
	assert.Equal(t, schemas.OutcomeFailure, report.Overall)

	failed := report.FailedStep()
	require.NotNil(t, failed)
	assert.Equal(t, 1, failed.Index)

	assert.Equal(t, []string{"console.error: boom"}, report.PageErrors)

	_, releases := provider.stats()
	assert.Equal(t, 1, releases, "the page must be released exactly once")
}

func TestRunImplicitNavigate(t *testing.T) {
	t.Run("prepended when first step is not a navigate", func(t *testing.T) {
		page := newFakePage()
		page.show("css|#go")
		r := newTestRunner(&fakeProvider{page: page}, 1)

		report := r.Run(context.Background(), RunRequest{
			Steps: []string{"Click #go"},
			URL:   "https://app.test",
			Mode:  schemas.ModeReproduce,
		})

		require.Len(t, report.Steps, 2)
		assert.Equal(t, schemas.ActionNavigate, report.Steps[0].Action.Kind)
		assert.Equal(t, "https://app.test", report.Steps[0].Action.URL)
		assert.Equal(t, schemas.ActionClick, report.Steps[1].Action.Kind)
		assert.Equal(t, schemas.OutcomeSuccess, report.Overall)
		assert.Nil(t, report.HaltedAt)
		assert.Equal(t, 1, page.navigations())
	})

	t.Run("skipped when first step navigates", func(t *testing.T) {
		page := newFakePage()
		r := newTestRunner(&fakeProvider{page: page}, 1)

		report := r.Run(context.Background(), RunRequest{
			Steps: []string{"Open https://other.test"},
			URL:   "https://app.test",
			Mode:  schemas.ModeReproduce,
		})

		require.Len(t, report.Steps, 1)
		assert.Equal(t, "https://other.test", report.Steps[0].Action.URL)
		assert.Equal(t, 1, page.navigations())
	})

	t.Run("skipped without a url", func(t *testing.T) {
		page := newFakePage()
		page.show("css|#go")
		r := newTestRunner(&fakeProvider{page: page}, 1)

		report := r.Run(context.Background(), RunRequest{
			Steps: []string{"Click #go"},
			Mode:  schemas.ModeReproduce,
		})

		require.Len(t, report.Steps, 1)
		assert.Equal(t, schemas.ActionClick, report.Steps[0].Action.Kind)
		assert.Equal(t, 0, page.navigations())
	})
}

func TestRunVerifyConjunction(t *testing.T) {
	steps := []string{
		"Navigate to https://app.test",
		"Verify 'Welcome' is visible",
		"Click #done",
	}

	t.Run("all green", func(t *testing.T) {
		page := newFakePage()
		page.show("exact-text|Welcome", "css|#done")
		r := newTestRunner(&fakeProvider{page: page}, 1)

		report := r.Run(context.Background(), RunRequest{Steps: steps, URL: "https://app.test", Mode: schemas.ModeVerify})

		assert.Equal(t, schemas.OutcomeSuccess, report.Overall)
		assert.Len(t, report.Steps, 3)
		assert.Nil(t, report.HaltedAt)
	})

	t.Run("one failure invalidates the claim", func(t *testing.T) {
		page := newFakePage()
		page.show("css|#done") // welcome text absent
		r := newTestRunner(&fakeProvider{page: page}, 1)

		report := r.Run(context.Background(), RunRequest{Steps: steps, URL: "https://app.test", Mode: schemas.ModeVerify})

		assert.Equal(t, schemas.OutcomeFailure, report.Overall)
		require.Len(t, report.Steps, 2, "report is truncated at the failed verify")
		assert.Equal(t, schemas.ErrAssertion, report.Steps[1].ErrorKind)
		require.NotNil(t, report.HaltedAt)
		assert.Equal(t, 1, *report.HaltedAt)
	})
}

func TestRunScenario(t *testing.T) {
	steps := []string{
		"Navigate to https://example.com",
		"Click the 'Login' button",
		"Type 'user' into username field",
		"Click #submit-btn",
		"Verify 'Welcome' is visible",
	}

	t.Run("green path", func(t *testing.T) {
		page := newFakePage()
		page.show("exact-text|Login", "aria-label|username", "css|#submit-btn", "exact-text|Welcome")
		r := newTestRunner(&fakeProvider{page: page}, 1)

		report := r.Run(context.Background(), RunRequest{Steps: steps, URL: "https://example.com", Mode: schemas.ModeReproduce})

		assert.Equal(t, schemas.OutcomeSuccess, report.Overall)
		require.Len(t, report.Steps, 5, "the explicit first navigate suppresses the implicit one")
		assert.Nil(t, report.HaltedAt)
		assert.Equal(t, 1, page.navigations())
		for _, s := range report.Steps {
			assert.NotEmpty(t, s.ScreenshotRef, "step %d has no screenshot", s.Index)
		}
	})

	t.Run("missing welcome text halts at the verify", func(t *testing.T) {
		page := newFakePage()
		page.show("exact-text|Login", "aria-label|username", "css|#submit-btn")
		r := newTestRunner(&fakeProvider{page: page}, 1)

		report := r.Run(context.Background(), RunRequest{Steps: steps, URL: "https://example.com", Mode: schemas.ModeReproduce})

		assert.Equal(t, schemas.OutcomeFailure, report.Overall)
		require.Len(t, report.Steps, 5)
		assert.Equal(t, schemas.ErrAssertion, report.Steps[4].ErrorKind)
		assert.NotEmpty(t, report.Steps[4].ScreenshotRef)
		require.NotNil(t, report.HaltedAt)
		assert.Equal(t, 4, *report.HaltedAt)
	})
}

func TestRunCancellation(t *testing.T) {
	t.Run("cancelled before the first step", func(t *testing.T) {
		provider := &fakeProvider{page: newFakePage()}
		r := newTestRunner(provider, 1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report := r.Run(ctx, RunRequest{
			Steps: []string{"Go to https://app.test"},
			URL:   "https://app.test",
			Mode:  schemas.ModeReproduce,
		})

		require.NotNil(t, report, "cancellation still yields a report")
		assert.Empty(t, report.Steps)
		require.NotNil(t, report.HaltedAt)
		assert.Equal(t, 0, *report.HaltedAt)
		assert.Equal(t, schemas.OutcomeFailure, report.Overall)

		_, releases := provider.stats()
		assert.Equal(t, 1, releases)
	})

	t.Run("cancelled mid-run truncates the report", func(t *testing.T) {
		provider := &fakeProvider{page: newFakePage()}
		r := newTestRunner(provider, 1)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		timer := time.AfterFunc(50*time.Millisecond, cancel)
		defer timer.Stop()

		report := r.Run(ctx, RunRequest{
			Steps: []string{
				"Go to https://app.test",
				"Wait 30 seconds",
				"Click #never",
			},
			URL:  "https://app.test",
			Mode: schemas.ModeReproduce,
		})

		assert.Equal(t, schemas.OutcomeFailure, report.Overall)
		require.Len(t, report.Steps, 2, "the wait was cut short, the click never ran")
		assert.Equal(t, schemas.ErrTimeout, report.Steps[1].ErrorKind)
		assert.Less(t, report.Elapsed, 10*time.Second)
	})
}

func TestRunBrowserUnavailable(t *testing.T) {
	provider := &fakeProvider{err: errors.New("exec: chrome not found")}
	r := newTestRunner(provider, 1)

	report := r.Run(context.Background(), RunRequest{
		Steps: []string{"Click #go"},
		URL:   "https://app.test",
		Mode:  schemas.ModeReproduce,
	})

	require.NotNil(t, report)
	assert.Equal(t, schemas.OutcomeFailure, report.Overall)
	require.Len(t, report.Steps, 1)
	assert.Equal(t, schemas.ErrNavigation, report.Steps[0].ErrorKind)
	assert.Contains(t, report.Steps[0].Message, "browser page unavailable")
	require.NotNil(t, report.HaltedAt)
	assert.Equal(t, 0, *report.HaltedAt)
}

func TestBatch(t *testing.T) {
	page := newFakePage()
	provider := &fakeProvider{page: page}
	r := newTestRunner(provider, 2)

	requests := make([]RunRequest, 4)
	for i := range requests {
		requests[i] = RunRequest{
			Steps: []string{"Go to https://app.test", "Wait 100 milliseconds"},
			URL:   "https://app.test",
			Mode:  schemas.ModeVerify,
		}
	}

	reports := r.Batch(context.Background(), requests)

	require.Len(t, reports, 4)
	seen := make(map[string]bool)
	for _, report := range reports {
		require.NotNil(t, report)
		assert.Equal(t, schemas.OutcomeSuccess, report.Overall)
		assert.Len(t, report.Steps, 2)
		assert.False(t, seen[report.RunID], "run ids must be unique")
		seen[report.RunID] = true
	}

	maxActive, releases := provider.stats()
	assert.LessOrEqual(t, maxActive, 2, "no more than the cap may hold a page")
	assert.Equal(t, 4, releases)
}

func TestBatchCancelled(t *testing.T) {
	provider := &fakeProvider{page: newFakePage()}
	r := newTestRunner(provider, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := r.Batch(ctx, []RunRequest{
		{Steps: []string{"Go to https://app.test"}, URL: "https://app.test"},
		{Steps: []string{"Go to https://app.test"}, URL: "https://app.test"},
	})

	require.Len(t, reports, 2)
	for _, report := range reports {
		require.NotNil(t, report, "cancelled batch entries still yield reports")
		assert.Equal(t, schemas.OutcomeFailure, report.Overall)
	}
}
