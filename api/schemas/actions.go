// api/schemas/actions.go
package schemas

import (
	"fmt"
	"time"
)

// -- Action Schemas --

// ActionKind identifies the operation a parsed step performs.
type ActionKind string

const (
	ActionNavigate     ActionKind = "NAVIGATE"
	ActionClick        ActionKind = "CLICK"
	ActionType         ActionKind = "TYPE"
	ActionSelect       ActionKind = "SELECT"
	ActionHover        ActionKind = "HOVER"
	ActionScroll       ActionKind = "SCROLL"
	ActionWaitFor      ActionKind = "WAIT_FOR"
	ActionWaitSeconds  ActionKind = "WAIT_SECONDS"
	ActionVerify       ActionKind = "VERIFY"
	ActionUnrecognized ActionKind = "UNRECOGNIZED"
)

// ScrollEdge names a whole-page scroll destination. Empty means the scroll
// targets an element description instead.
type ScrollEdge string

const (
	ScrollNone   ScrollEdge = ""
	ScrollTop    ScrollEdge = "TOP"
	ScrollBottom ScrollEdge = "BOTTOM"
)

// Action is the typed form of one free-text step. Kind selects the variant;
// each variant reads only the fields it owns. Raw always carries the original
// input line so a failure can be reported against the exact text the user
// wrote.
type Action struct {
	Kind ActionKind `json:"kind"`

	// URL is the navigation destination (ActionNavigate).
	URL string `json:"url,omitempty"`
	// Text is the literal input to type (ActionType).
	Text string `json:"text,omitempty"`
	// Option is the option label or value to pick (ActionSelect).
	Option string `json:"option,omitempty"`
	// Target is the free-text element description. It is never resolved at
	// parse time; resolution happens at execution so failures attach to a
	// concrete step and screenshot.
	Target string `json:"target,omitempty"`
	// Edge is the whole-page scroll destination (ActionScroll).
	Edge ScrollEdge `json:"edge,omitempty"`
	// Duration is the literal pause length (ActionWaitSeconds).
	Duration time.Duration `json:"duration,omitempty"`
	// Assertion is the raw claim to check (ActionVerify).
	Assertion string `json:"assertion,omitempty"`

	Raw string `json:"raw"`
}

// String renders a compact human-readable form used in logs and report
// test-case names.
func (a Action) String() string {
	switch a.Kind {
	case ActionNavigate:
		return fmt.Sprintf("navigate %s", a.URL)
	case ActionClick:
		return fmt.Sprintf("click %q", a.Target)
	case ActionType:
		return fmt.Sprintf("type %q into %q", a.Text, a.Target)
	case ActionSelect:
		return fmt.Sprintf("select %q from %q", a.Option, a.Target)
	case ActionHover:
		return fmt.Sprintf("hover %q", a.Target)
	case ActionScroll:
		if a.Edge != ScrollNone {
			return fmt.Sprintf("scroll to %s", a.Edge)
		}
		return fmt.Sprintf("scroll to %q", a.Target)
	case ActionWaitFor:
		return fmt.Sprintf("wait for %q", a.Target)
	case ActionWaitSeconds:
		return fmt.Sprintf("wait %s", a.Duration)
	case ActionVerify:
		return fmt.Sprintf("verify %q", a.Assertion)
	case ActionUnrecognized:
		return fmt.Sprintf("unrecognized %q", a.Raw)
	default:
		return string(a.Kind)
	}
}
