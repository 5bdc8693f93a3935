// api/schemas/report.go
package schemas

import "time"

// -- Run Report Schemas --

// RunMode distinguishes the caller's intent. Both modes share the same halt
// policy; the mode is recorded so downstream consumers (bug store updates,
// report summaries) can interpret the outcome.
type RunMode string

const (
	ModeReproduce RunMode = "REPRODUCE"
	ModeVerify    RunMode = "VERIFY"
)

// Outcome is the result of one step or of a whole run.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// ErrorKind classifies a step failure. Failures are values on the
// StepResult, never process-level faults.
type ErrorKind string

const (
	// ErrParse marks a line no parse rule matched.
	ErrParse ErrorKind = "PARSE_ERROR"
	// ErrElementNotFound marks a target whose locator candidates all
	// resolved to zero visible elements.
	ErrElementNotFound ErrorKind = "ELEMENT_NOT_FOUND"
	// ErrTimeout marks a bounded wait that exceeded its deadline.
	ErrTimeout ErrorKind = "TIMEOUT"
	// ErrNavigation marks a transport-level failure reaching a URL.
	ErrNavigation ErrorKind = "NAVIGATION_ERROR"
	// ErrAssertion marks a Verify condition that did not hold.
	ErrAssertion ErrorKind = "ASSERTION_FAILED"
)

// StepResult is the immutable outcome record for one executed action. It is
// owned by the RunReport that contains it and never mutated after creation.
type StepResult struct {
	Index         int           `json:"index"`
	Action        Action        `json:"action"`
	Outcome       Outcome       `json:"outcome"`
	ErrorKind     ErrorKind     `json:"error_kind,omitempty"`
	Message       string        `json:"message,omitempty"`
	ScreenshotRef string        `json:"screenshot_ref,omitempty"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Failed reports whether the step ended in failure.
func (s StepResult) Failed() bool {
	return s.Outcome == OutcomeFailure
}

// RunReport is the ordered collection of step results for one run. It is
// created fresh per run, has no identity beyond the call that produced it,
// and is never mutated after the run completes. Persisting any part of it is
// the caller's concern.
type RunReport struct {
	RunID     string        `json:"run_id"`
	Mode      RunMode       `json:"mode"`
	TargetURL string        `json:"target_url"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`

	Steps   []StepResult `json:"steps"`
	Overall Outcome      `json:"overall"`
	// HaltedAt is the index of the step that stopped the run, nil when every
	// step executed.
	HaltedAt *int `json:"halted_at,omitempty"`

	// PageErrors collects console errors and uncaught exceptions observed on
	// the page during the run. Diagnostic only; never affects Overall.
	PageErrors []string `json:"page_errors,omitempty"`
}

// Failed reports whether the run ended in failure.
func (r *RunReport) Failed() bool {
	return r.Overall == OutcomeFailure
}

// FailedStep returns the first failing step, or nil for a green run.
func (r *RunReport) FailedStep() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Failed() {
			return &r.Steps[i]
		}
	}
	return nil
}
