// internal/artifacts/store.go
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// labelSanitizer collapses anything outside [a-z0-9-] so labels are safe as
// file name components on every platform.
var labelSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)

// FSStore persists run artifacts under a root directory on the local
// filesystem. Layout: <root>/<run-id>/step-03-click.png. The refs it hands
// back are slash-separated paths relative to the root, so reports stay
// portable when the artifact tree is archived or served elsewhere.
//
// The store only ever creates files. Cleanup is left to the operator.
type FSStore struct {
	root   string
	logger *zap.Logger
}

// NewFSStore creates a filesystem artifact store rooted at dir.
func NewFSStore(dir string, logger *zap.Logger) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &FSStore{
		root:   dir,
		logger: logger.Named("artifacts"),
	}, nil
}

// SaveScreenshot writes a PNG captured for one step and returns its ref.
func (s *FSStore) SaveScreenshot(runID string, stepIndex int, label string, png []byte) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run ID must not be empty")
	}

	runDir := filepath.Join(s.root, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory %s: %w", runDir, err)
	}

	name := fmt.Sprintf("step-%02d-%s.png", stepIndex, sanitizeLabel(label))
	if err := os.WriteFile(filepath.Join(runDir, name), png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot %s: %w", name, err)
	}

	ref := runID + "/" + name
	s.logger.Debug("Saved screenshot",
		zap.String("ref", ref),
		zap.Int("bytes", len(png)),
	)
	return ref, nil
}

// Root returns the directory the store writes under.
func (s *FSStore) Root() string {
	return s.root
}

func sanitizeLabel(label string) string {
	cleaned := labelSanitizer.ReplaceAllString(strings.ToLower(label), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return "step"
	}
	return cleaned
}
