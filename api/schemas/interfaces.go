// api/schemas/interfaces.go
package schemas

import (
	"context"
	"time"
)

// -- Component Contracts --

// PageDriver is the browser capability set the executor drives. The engine
// is polymorphic over any implementation; the production driver lives in
// internal/browser, tests substitute an in-memory fake.
//
// Element-addressed methods take a LocatorCandidate and act on the first
// match. Find never waits: it reports how many elements currently match.
// Methods that observe the page (WaitVisible, Navigate) are bounded by the
// deadline on ctx.
type PageDriver interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// Find reports how many elements currently match the candidate.
	Find(ctx context.Context, c LocatorCandidate) (int, error)
	// WaitVisible blocks until a match is visible or ctx expires.
	WaitVisible(ctx context.Context, c LocatorCandidate) error

	Click(ctx context.Context, c LocatorCandidate) error
	Hover(ctx context.Context, c LocatorCandidate) error
	Fill(ctx context.Context, c LocatorCandidate, text string) error
	SelectOption(ctx context.Context, c LocatorCandidate, option string) error
	ScrollIntoView(ctx context.Context, c LocatorCandidate) error
	ScrollEdge(ctx context.Context, edge ScrollEdge) error

	// VisibleText returns the rendered text content of the page.
	VisibleText(ctx context.Context) (string, error)
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// PageErrors returns console errors and uncaught exceptions observed so
	// far. Implementations without event capture return nil.
	PageErrors() []string
}

// ArtifactStore persists run artifacts and hands back opaque references.
// The engine never reads artifacts back; references go into StepResults for
// the caller to surface.
type ArtifactStore interface {
	SaveScreenshot(runID string, stepIndex int, label string, png []byte) (string, error)
}

// BugStore supplies step sequences for tracked bugs and accepts status and
// report updates after a run. The engine itself never talks to a store; the
// CLI layer wires the two together.
type BugStore interface {
	GetBug(ctx context.Context, id string) (*Bug, error)
	UpdateStatus(ctx context.Context, id string, status BugStatus, note string) error
	AttachReport(ctx context.Context, id string, report *RunReport) error
	Close(ctx context.Context) error
}

// Timeouts are the bounded waits applied to page-observing operations.
// Every wait the engine performs is capped by one of these.
type Timeouts struct {
	// Navigation caps page loads.
	Navigation time.Duration
	// Step caps one full step, parse to screenshot.
	Step time.Duration
	// WaitFor caps explicit "wait for X" polling.
	WaitFor time.Duration
	// Element caps the per-candidate visibility wait during resolution.
	Element time.Duration
}
