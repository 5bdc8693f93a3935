// internal/executor/executor.go

// Package executor runs single typed actions against a live page and turns
// every outcome, good or bad, into a StepResult. Failures are values on the
// result, never errors returned to the caller: a step that cannot run still
// yields a classified result with a screenshot of the page as it was.
package executor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/locator"
)

const (
	defaultStepTimeout = 60 * time.Second

	// screenshotBound caps the evidence capture that follows every step. It
	// runs on its own budget so a step that burned its deadline still gets
	// its screenshot.
	screenshotBound = 10 * time.Second

	// waitPoll is the re-check interval for "wait for X" steps.
	waitPoll = 250 * time.Millisecond
)

var (
	quotedRe = regexp.MustCompile(`["']([^"']+)["']`)

	// negationRe flags assertions that claim absence. It is matched against
	// the assertion with quoted literals removed, so quoted page text never
	// flips the polarity.
	negationRe = regexp.MustCompile(`\b(?:not|no longer|hidden|invisible|disappear(?:ed|s)?|gone)\b`)

	// contentRe flags assertions about an element's text rather than its
	// bare visibility.
	contentRe = regexp.MustCompile(`\b(?:contains?|says?|shows?|reads?|text)\b`)
)

// Executor executes one action at a time against a PageDriver. It holds no
// per-run state; the same instance serves any number of concurrent runs.
type Executor struct {
	artifacts schemas.ArtifactStore
	timeouts  schemas.Timeouts
	logger    *zap.Logger
}

// New returns an Executor that stores step screenshots in artifacts and
// bounds its waits with the given timeouts.
func New(artifacts schemas.ArtifactStore, timeouts schemas.Timeouts, logger *zap.Logger) *Executor {
	return &Executor{
		artifacts: artifacts,
		timeouts:  timeouts,
		logger:    logger.Named("executor"),
	}
}

// Execute runs one action and returns its result. The action performs at
// most one page interaction, and the result always carries a screenshot
// reference when the page could produce one, on success and on failure
// alike. Execute never returns an error: everything that goes wrong is
// classified onto the StepResult.
func (e *Executor) Execute(ctx context.Context, runID string, index int, action schemas.Action, page schemas.PageDriver) schemas.StepResult {
	start := time.Now()
	result := schemas.StepResult{
		Index:   index,
		Action:  action,
		Outcome: schemas.OutcomeSuccess,
	}

	e.logger.Debug("Executing step",
		zap.String("run_id", runID),
		zap.Int("index", index),
		zap.String("action", action.String()),
	)

	bound := e.stepBound()
	// An explicit pause is honored at its literal length even past the step
	// bound; the bound then only covers the work around the sleep.
	if action.Kind == schemas.ActionWaitSeconds && action.Duration >= bound {
		bound = action.Duration + time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	if err := e.perform(stepCtx, action, page); err != nil {
		result.Outcome = schemas.OutcomeFailure
		result.ErrorKind = classify(action, err)
		result.Message = err.Error()
		e.logger.Debug("Step failed",
			zap.String("run_id", runID),
			zap.Int("index", index),
			zap.String("error_kind", string(result.ErrorKind)),
			zap.Error(err),
		)
	}

	e.captureScreenshot(ctx, runID, index, action, page, &result)

	result.Elapsed = time.Since(start)
	return result
}

// perform dispatches on the action kind. The switch is exhaustive over the
// closed kind set; anything else is a parse-level failure, not a panic.
func (e *Executor) perform(ctx context.Context, action schemas.Action, page schemas.PageDriver) error {
	switch action.Kind {
	case schemas.ActionNavigate:
		return page.Navigate(ctx, action.URL)

	case schemas.ActionClick:
		return e.withTarget(ctx, action.Target, page, page.Click)

	case schemas.ActionType:
		return e.withTarget(ctx, action.Target, page, func(ctx context.Context, c schemas.LocatorCandidate) error {
			return page.Fill(ctx, c, action.Text)
		})

	case schemas.ActionSelect:
		return e.withTarget(ctx, action.Target, page, func(ctx context.Context, c schemas.LocatorCandidate) error {
			return page.SelectOption(ctx, c, action.Option)
		})

	case schemas.ActionHover:
		return e.withTarget(ctx, action.Target, page, page.Hover)

	case schemas.ActionScroll:
		if action.Edge != schemas.ScrollNone {
			return page.ScrollEdge(ctx, action.Edge)
		}
		return e.withTarget(ctx, action.Target, page, page.ScrollIntoView)

	case schemas.ActionWaitSeconds:
		return sleepFor(ctx, action.Duration)

	case schemas.ActionWaitFor:
		return e.waitFor(ctx, action.Target, page)

	case schemas.ActionVerify:
		return e.verify(ctx, action, page)

	case schemas.ActionUnrecognized:
		return failf(schemas.ErrParse, "no rule matched step %q", action.Raw)

	default:
		return failf(schemas.ErrParse, "unsupported action kind %q", action.Kind)
	}
}

// withTarget resolves the target description and tries candidates in order.
// A candidate that matches nothing, or whose match never becomes visible
// within the per-element wait, is a miss and the next one is tried. The
// first visible match is acted on exactly once; an error from the act itself
// ends the step rather than retrying, so the page sees at most one
// interaction.
func (e *Executor) withTarget(ctx context.Context, target string, page schemas.PageDriver, act func(context.Context, schemas.LocatorCandidate) error) error {
	candidates := locator.Resolve(target)
	if len(candidates) == 0 {
		return failf(schemas.ErrElementNotFound, "no locator candidates for %q", target)
	}

	for _, c := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := page.Find(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			e.logger.Debug("Candidate probe failed",
				zap.String("strategy", string(c.Strategy)),
				zap.String("value", c.Value),
				zap.Error(err),
			)
			continue
		}
		if n == 0 {
			continue
		}
		if n > 1 {
			e.logger.Debug("Multiple elements match, acting on the first",
				zap.String("strategy", string(c.Strategy)),
				zap.String("value", c.Value),
				zap.Int("matches", n),
			)
		}

		if err := page.WaitVisible(ctx, c); err != nil {
			if ctx.Err() != nil {
				return err
			}
			continue
		}

		return act(ctx, c)
	}

	return failf(schemas.ErrElementNotFound, "no element on the page matches %q", target)
}

// waitFor polls for the target until some candidate is visible or the wait
// budget runs out.
func (e *Executor) waitFor(ctx context.Context, target string, page schemas.PageDriver) error {
	candidates := locator.Resolve(target)
	if len(candidates) == 0 {
		return failf(schemas.ErrElementNotFound, "no locator candidates for %q", target)
	}

	bound := e.timeouts.WaitFor
	if bound <= 0 {
		bound = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	for {
		for _, c := range candidates {
			if waitCtx.Err() != nil {
				break
			}
			n, err := page.Find(waitCtx, c)
			if err != nil || n == 0 {
				continue
			}
			if page.WaitVisible(waitCtx, c) == nil {
				return nil
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return failf(schemas.ErrTimeout, "%q did not become visible within %s", target, bound)
		case <-time.After(waitPoll):
		}
	}
}

// verify checks the assertion against the live page. With a target the check
// is about that element: visible, not visible when the assertion is negated,
// and additionally carrying the quoted text for content-phrased assertions.
// Without a target the assertion itself is a page-text substring check.
func (e *Executor) verify(ctx context.Context, action schemas.Action, page schemas.PageDriver) error {
	if action.Target == "" {
		return e.verifyPageText(ctx, action.Assertion, page)
	}

	negated := assertionNegated(action.Assertion)

	visible, err := e.probeVisible(ctx, action.Target, page)
	if err != nil {
		return err
	}

	if negated {
		if visible {
			return failf(schemas.ErrAssertion, "%q is still visible", action.Target)
		}
		return nil
	}

	if !visible {
		return failf(schemas.ErrAssertion, "%q is not visible on the page", action.Target)
	}

	// Content-phrased assertion: the visible element must come with the
	// quoted text somewhere on the rendered page.
	quoted := firstQuoted(action.Assertion)
	if quoted != "" && contentRe.MatchString(strings.ToLower(action.Assertion)) {
		found, err := e.pageContains(ctx, quoted, page)
		if err != nil {
			return err
		}
		if !found {
			return failf(schemas.ErrAssertion, "page text does not contain %q", quoted)
		}
	}
	return nil
}

// verifyPageText is the target-free form: a case-insensitive substring check
// of the asserted text against the page.
func (e *Executor) verifyPageText(ctx context.Context, assertion string, page schemas.PageDriver) error {
	needle := firstQuoted(assertion)
	if needle == "" {
		needle = strings.TrimSpace(assertion)
	}
	if needle == "" {
		return failf(schemas.ErrAssertion, "empty assertion")
	}

	found, err := e.pageContains(ctx, needle, page)
	if err != nil {
		return err
	}

	if assertionNegated(assertion) {
		if found {
			return failf(schemas.ErrAssertion, "page text still contains %q", needle)
		}
		return nil
	}
	if !found {
		return failf(schemas.ErrAssertion, "page text does not contain %q", needle)
	}
	return nil
}

// probeVisible reports whether any candidate for the target has a visible
// match right now. Candidates that exist but stay invisible consume the
// per-element wait and count as not visible.
func (e *Executor) probeVisible(ctx context.Context, target string, page schemas.PageDriver) (bool, error) {
	for _, c := range locator.Resolve(target) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		n, err := page.Find(ctx, c)
		if err != nil || n == 0 {
			continue
		}
		if page.WaitVisible(ctx, c) == nil {
			return true, nil
		}
	}
	return false, ctx.Err()
}

func (e *Executor) pageContains(ctx context.Context, needle string, page schemas.PageDriver) (bool, error) {
	text, err := page.VisibleText(ctx)
	if err != nil {
		return false, fmt.Errorf("reading page text: %w", err)
	}
	return strings.Contains(normalize(text), normalize(needle)), nil
}

// captureScreenshot attaches the post-step evidence shot. Capture runs on
// its own budget, detached from the step deadline, so a timed-out step still
// produces its screenshot. A capture failure is logged and leaves the
// result's outcome untouched.
func (e *Executor) captureScreenshot(ctx context.Context, runID string, index int, action schemas.Action, page schemas.PageDriver, result *schemas.StepResult) {
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotBound)
	defer cancel()

	png, err := page.Screenshot(shotCtx)
	if err != nil {
		e.logger.Warn("Screenshot capture failed",
			zap.String("run_id", runID),
			zap.Int("index", index),
			zap.Error(err),
		)
		return
	}

	ref, err := e.artifacts.SaveScreenshot(runID, index, screenshotLabel(action.Kind), png)
	if err != nil {
		e.logger.Warn("Screenshot save failed",
			zap.String("run_id", runID),
			zap.Int("index", index),
			zap.Error(err),
		)
		return
	}
	result.ScreenshotRef = ref
}

func (e *Executor) stepBound() time.Duration {
	if e.timeouts.Step > 0 {
		return e.timeouts.Step
	}
	return defaultStepTimeout
}

// screenshotLabel names the artifact after the action kind: "click",
// "wait-for", "verify".
func screenshotLabel(kind schemas.ActionKind) string {
	return strings.ToLower(strings.ReplaceAll(string(kind), "_", "-"))
}

// sleepFor pauses for the literal duration of a WaitSeconds step.
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// assertionNegated reports whether the assertion claims absence. Quoted
// literals are removed first so asserted page text like 'Not Found' does not
// read as a negation.
func assertionNegated(assertion string) bool {
	unquoted := quotedRe.ReplaceAllString(assertion, " ")
	return negationRe.MatchString(strings.ToLower(unquoted))
}

func firstQuoted(s string) string {
	if m := quotedRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// normalize lowers and collapses whitespace so substring checks do not
// depend on page layout.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// failure is a step error that already knows its report classification.
type failure struct {
	kind schemas.ErrorKind
	msg  string
}

func (f *failure) Error() string { return f.msg }

func failf(kind schemas.ErrorKind, format string, args ...any) *failure {
	return &failure{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// classify maps a step error onto the report taxonomy. Errors that carry
// their own kind win; deadline and cancellation errors become timeouts; the
// rest default by what the action was doing.
func classify(action schemas.Action, err error) schemas.ErrorKind {
	var f *failure
	if errors.As(err, &f) {
		return f.kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return schemas.ErrTimeout
	}
	switch action.Kind {
	case schemas.ActionNavigate:
		return schemas.ErrNavigation
	case schemas.ActionVerify:
		return schemas.ErrAssertion
	default:
		return schemas.ErrElementNotFound
	}
}
