// internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/api/schemas"
)

// Session drives a single browser tab. It implements schemas.PageDriver.
// All element-addressed operations act on the first match in document order;
// every page-observing call is bounded by the configured timeouts and by the
// caller's context, whichever expires first.
type Session struct {
	id       string
	ctx      context.Context
	timeouts schemas.Timeouts
	logger   *zap.Logger

	mu         sync.Mutex
	pageErrors []string
}

var _ schemas.PageDriver = (*Session)(nil)

func newSession(tabCtx context.Context, timeouts schemas.Timeouts, logger *zap.Logger) *Session {
	s := &Session{
		id:       uuid.NewString(),
		ctx:      tabCtx,
		timeouts: timeouts,
	}
	s.logger = logger.With(zap.String("session_id", s.id))
	s.listenPageEvents()
	return s
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// listenPageEvents records console errors and uncaught exceptions for the
// lifetime of the tab. The callback runs on chromedp's event goroutine, so
// the slice is mutex-guarded.
func (s *Session) listenPageEvents() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			if e.Type != runtime.APITypeError {
				return
			}
			s.recordPageError("console.error: " + consoleArgsText(e.Args))
		case *runtime.EventExceptionThrown:
			if e.ExceptionDetails == nil {
				return
			}
			// The description usually carries the most useful info,
			// including the stack trace.
			text := e.ExceptionDetails.Text
			if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
				text = e.ExceptionDetails.Exception.Description
			}
			s.recordPageError("uncaught exception: " + text)
		}
	})
}

func (s *Session) recordPageError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageErrors = append(s.pageErrors, msg)
}

// PageErrors returns a copy of the errors observed so far.
func (s *Session) PageErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pageErrors) == 0 {
		return nil
	}
	out := make([]string, len(s.pageErrors))
	copy(out, s.pageErrors)
	return out
}

// consoleArgsText renders console call arguments the way devtools would.
func consoleArgsText(args []*runtime.RemoteObject) string {
	var sb strings.Builder
	for i, arg := range args {
		if i > 0 {
			sb.WriteString(" ")
		}
		var val interface{}
		if arg.Value != nil && json.Unmarshal(arg.Value, &val) == nil {
			fmt.Fprintf(&sb, "%v", val)
		} else if arg.Description != "" {
			sb.WriteString(arg.Description)
		} else {
			fmt.Fprintf(&sb, "[%s]", arg.Type)
		}
	}
	return sb.String()
}

// Navigate loads the URL and waits for the document body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.timeouts.Navigation
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded && opCtx.Err() == nil {
			return fmt.Errorf("navigation to %s timed out after %s: %w", url, navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Find reports how many elements currently match the candidate. It never
// waits for elements to appear.
func (s *Session) Find(ctx context.Context, c schemas.LocatorCandidate) (int, error) {
	q, err := lowerCandidate(c)
	if err != nil {
		return 0, err
	}

	var nodes []*cdp.Node
	err = s.run(ctx, s.elementTimeout(), "find",
		chromedp.Nodes(q.query, &nodes, q.countOptions()...))
	if err != nil {
		return 0, err
	}
	if len(nodes) > 1 {
		s.logger.Debug("Locator matched multiple elements, first will be used",
			zap.String("query", q.query),
			zap.Int("matches", len(nodes)),
		)
	}
	return len(nodes), nil
}

// WaitVisible blocks until a match is visible, the per-element timeout
// elapses, or ctx is done.
func (s *Session) WaitVisible(ctx context.Context, c schemas.LocatorCandidate) error {
	q, err := lowerCandidate(c)
	if err != nil {
		return err
	}
	return s.run(ctx, s.elementTimeout(), "wait for visibility",
		chromedp.WaitVisible(q.query, q.actOptions()...))
}

// Click scrolls the first match into view, waits for it to be visible and
// clicks it.
func (s *Session) Click(ctx context.Context, c schemas.LocatorCandidate) error {
	q, err := lowerCandidate(c)
	if err != nil {
		return err
	}
	opts := q.actOptions()
	return s.run(ctx, s.elementTimeout(), "click", chromedp.Tasks{
		chromedp.ScrollIntoView(q.query, opts...),
		chromedp.WaitVisible(q.query, opts...),
		chromedp.Click(q.query, opts...),
	})
}

// Hover moves the mouse to the center of the first match. Hover has no CDP
// primitive; the session scrolls the element into view, reads its content
// quads and dispatches a raw mouse-moved event at the center.
func (s *Session) Hover(ctx context.Context, c schemas.LocatorCandidate) error {
	q, err := lowerCandidate(c)
	if err != nil {
		return err
	}
	opts := q.actOptions()
	hover := chromedp.QueryAfter(q.query, func(qctx context.Context, execCtx runtime.ExecutionContextID, nodes ...*cdp.Node) error {
		if len(nodes) == 0 {
			return fmt.Errorf("no element to hover")
		}
		// Content quads are viewport coordinates, which is what the input
		// domain expects.
		quads, err := dom.GetContentQuads().WithNodeID(nodes[0].NodeID).Do(qctx)
		if err != nil {
			return fmt.Errorf("element has no geometry: %w", err)
		}
		if len(quads) == 0 || len(quads[0]) < 8 {
			return fmt.Errorf("element has no geometric representation")
		}
		quad := quads[0]
		x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
		y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(qctx)
	}, append(opts, chromedp.NodeVisible)...)

	return s.run(ctx, s.elementTimeout(), "hover", chromedp.Tasks{
		chromedp.ScrollIntoView(q.query, opts...),
		hover,
	})
}

// Fill clears the first matching input and types text into it with real key
// events, so framework listeners fire as they would for a user.
func (s *Session) Fill(ctx context.Context, c schemas.LocatorCandidate, text string) error {
	q, err := lowerCandidate(c)
	if err != nil {
		return err
	}
	opts := q.actOptions()
	return s.run(ctx, s.elementTimeout(), "fill", chromedp.Tasks{
		chromedp.ScrollIntoView(q.query, opts...),
		chromedp.WaitVisible(q.query, opts...),
		chromedp.Clear(q.query, opts...),
		chromedp.SendKeys(q.query, text, opts...),
	})
}

// selectOptionJS picks the option whose label or text equals the wanted
// string (exact first, then case-insensitive), sets it as the select's value
// and fires the events frameworks listen for. Returns false when no option
// matches.
const selectOptionJS = `function(label) {
	const want = label.trim();
	const opts = Array.from(this.options || []);
	let match = opts.find(o => o.label.trim() === want || o.text.trim() === want);
	if (!match) {
		const lower = want.toLowerCase();
		match = opts.find(o => o.label.trim().toLowerCase() === lower || o.text.trim().toLowerCase() === lower);
	}
	if (!match) { return false; }
	this.value = match.value;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

// SelectOption chooses the option with the given visible label on the first
// matching select element.
func (s *Session) SelectOption(ctx context.Context, c schemas.LocatorCandidate, option string) error {
	q, err := lowerCandidate(c)
	if err != nil {
		return err
	}
	opts := q.actOptions()
	pick := chromedp.QueryAfter(q.query, func(qctx context.Context, execCtx runtime.ExecutionContextID, nodes ...*cdp.Node) error {
		if len(nodes) == 0 {
			return fmt.Errorf("no select element matched")
		}
		obj, err := dom.ResolveNode().WithNodeID(nodes[0].NodeID).Do(qctx)
		if err != nil {
			return fmt.Errorf("failed to resolve select element: %w", err)
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(qctx)
		}()

		arg, err := json.Marshal(option)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(selectOptionJS).
			WithObjectID(obj.ObjectID).
			WithArguments([]*runtime.CallArgument{{Value: arg}}).
			WithReturnByValue(true).
			Do(qctx)
		if err != nil {
			return fmt.Errorf("failed to select option: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("failed to select option: %s", exc.Text)
		}
		var found bool
		if res != nil && res.Value != nil {
			_ = json.Unmarshal(res.Value, &found)
		}
		if !found {
			return fmt.Errorf("no option labeled %q", option)
		}
		return nil
	}, append(opts, chromedp.NodeVisible)...)

	return s.run(ctx, s.elementTimeout(), "select option", chromedp.Tasks{
		chromedp.ScrollIntoView(q.query, opts...),
		pick,
	})
}

// ScrollIntoView scrolls the first match into the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, c schemas.LocatorCandidate) error {
	q, err := lowerCandidate(c)
	if err != nil {
		return err
	}
	return s.run(ctx, s.elementTimeout(), "scroll into view",
		chromedp.ScrollIntoView(q.query, q.actOptions()...))
}

// ScrollEdge scrolls the window to the top or bottom of the document.
func (s *Session) ScrollEdge(ctx context.Context, edge schemas.ScrollEdge) error {
	var script string
	switch edge {
	case schemas.ScrollTop:
		script = `window.scrollTo({top: 0, left: 0, behavior: "auto"});`
	case schemas.ScrollBottom:
		script = `window.scrollTo({top: document.body.scrollHeight, left: 0, behavior: "auto"});`
	default:
		return fmt.Errorf("unknown scroll edge %q", edge)
	}
	return s.run(ctx, s.elementTimeout(), "scroll", chromedp.Evaluate(script, nil))
}

// VisibleText returns the rendered text of the page body. innerText honors
// CSS visibility, unlike textContent. Documents that render no innerText
// (XML viewers, pages mid-load) fall back to extracting text from the raw
// HTML instead.
func (s *Session) VisibleText(ctx context.Context) (string, error) {
	var text string
	err := s.run(ctx, s.elementTimeout(), "read page text",
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	var raw string
	if err := s.run(ctx, s.elementTimeout(), "read page html",
		chromedp.OuterHTML("html", &raw, chromedp.ByQuery)); err != nil {
		return text, nil
	}
	return extractText(raw), nil
}

// Title returns the current document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, s.elementTimeout(), "read title", chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.elementTimeout(), "screenshot", chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Session) elementTimeout() time.Duration {
	if s.timeouts.Element > 0 {
		return s.timeouts.Element
	}
	return 5 * time.Second
}

// run executes chromedp actions bounded by the session lifetime, the
// caller's context and the given timeout.
func (s *Session) run(ctx context.Context, bound time.Duration, op string, actions ...chromedp.Action) error {
	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	runCtx := opCtx
	cancel := context.CancelFunc(func() {})
	if bound > 0 {
		runCtx, cancel = context.WithTimeout(opCtx, bound)
	}
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if runCtx.Err() == context.DeadlineExceeded && opCtx.Err() == nil {
			return fmt.Errorf("%s timed out after %s: %w", op, bound, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("%s canceled: %w", op, opCtx.Err())
		}
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return nil
}
