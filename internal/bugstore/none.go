// internal/bugstore/none.go
package bugstore

import (
	"context"
	"fmt"

	"github.com/failcase/repro-cli/api/schemas"
)

// disabled is the no-backend store. Lookups and updates fail with ErrNoStore
// so the CLI can tell the user to either configure a backend or pass steps
// directly.
type disabled struct{}

// NewDisabled returns the store used when bugstore.type is "none".
func NewDisabled() schemas.BugStore { return disabled{} }

func (disabled) GetBug(_ context.Context, id string) (*schemas.Bug, error) {
	return nil, fmt.Errorf("bug %q: %w", id, ErrNoStore)
}

func (disabled) UpdateStatus(_ context.Context, id string, _ schemas.BugStatus, _ string) error {
	return fmt.Errorf("updating bug %q: %w", id, ErrNoStore)
}

func (disabled) AttachReport(_ context.Context, id string, _ *schemas.RunReport) error {
	return fmt.Errorf("attaching report to bug %q: %w", id, ErrNoStore)
}

func (disabled) Close(context.Context) error { return nil }
