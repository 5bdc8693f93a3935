// api/schemas/bugs.go
package schemas

import (
	"fmt"
	"strings"
)

// -- Bug Record Schemas --

// BugStatus is the lifecycle state of a tracked bug.
type BugStatus string

const (
	StatusOpen       BugStatus = "Open"
	StatusInProgress BugStatus = "In Progress"
	StatusFixed      BugStatus = "Fixed"
	StatusVerified   BugStatus = "Verified"
	StatusClosed     BugStatus = "Closed"
)

// AllBugStatuses lists the valid lifecycle states in order.
var AllBugStatuses = []BugStatus{
	StatusOpen, StatusInProgress, StatusFixed, StatusVerified, StatusClosed,
}

// ParseBugStatus maps free-form user input onto a canonical status,
// tolerating case and the underscore/hyphen spellings of "In Progress".
func ParseBugStatus(s string) (BugStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	for _, st := range AllBugStatuses {
		if norm == strings.ToLower(string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown bug status %q", s)
}

// Bug is one record from the bug store. Steps are the ordered raw step
// lines; the engine parses them at run time. The store backend is
// responsible for splitting whatever cell or column format it keeps them in.
type Bug struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Steps       []string  `json:"steps"`
	TargetURL   string    `json:"target_url"`
	Expected    string    `json:"expected,omitempty"`
	Actual      string    `json:"actual,omitempty"`
	Status      BugStatus `json:"status"`
	Priority    string    `json:"priority,omitempty"`
}
