// File: cmd/run_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/failcase/repro-cli/api/schemas"
)

func TestReadStepsFile(t *testing.T) {
	t.Run("should keep non-blank lines in order", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "steps.txt")
		content := "1. Go to https://app.test/login\n\n2. Click the \"Login\" button\n   \n3. Expect the text \"Welcome\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		lines, err := readStepsFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"1. Go to https://app.test/login",
			"2. Click the \"Login\" button",
			"3. Expect the text \"Welcome\"",
		}, lines)
	})

	t.Run("should reject a file with only blank lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "steps.txt")
		require.NoError(t, os.WriteFile(path, []byte("\n  \n\t\n"), 0644))

		_, err := readStepsFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no steps")
	})

	t.Run("should report a missing file", func(t *testing.T) {
		_, err := readStepsFile(filepath.Join(t.TempDir(), "missing.txt"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read steps file")
	})
}

func TestParseRunMode(t *testing.T) {
	testCases := []struct {
		input   string
		want    schemas.RunMode
		wantErr bool
	}{
		{"reproduce", schemas.ModeReproduce, false},
		{"verify", schemas.ModeVerify, false},
		{"VERIFY", schemas.ModeVerify, false},
		{"  Reproduce  ", schemas.ModeReproduce, false},
		{"replay", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			mode, err := parseRunMode(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown mode")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, mode)
		})
	}
}

func TestFixBody(t *testing.T) {
	t.Run("should render the full bug record", func(t *testing.T) {
		bug := &schemas.Bug{
			ID:          "BUG-9",
			Title:       "Cart total wrong",
			Description: "Totals ignore the discount row.",
			Steps: []string{
				"Go to https://shop.test/cart",
				"Click the \"Apply discount\" button",
			},
			Expected: "Total drops by 10%",
			Actual:   "Total unchanged",
		}

		want := `Fixes BUG-9: Cart total wrong

Totals ignore the discount row.

Steps to reproduce:
1. Go to https://shop.test/cart
2. Click the "Apply discount" button

Expected: Total drops by 10%
Actual: Total unchanged
`
		assert.Equal(t, want, fixBody(bug))
	})

	t.Run("should skip the sections the record lacks", func(t *testing.T) {
		bug := &schemas.Bug{ID: "BUG-2", Title: "Blank page"}
		assert.Equal(t, "Fixes BUG-2: Blank page\n", fixBody(bug))
	})
}

func TestReadReport(t *testing.T) {
	t.Run("should decode a written report", func(t *testing.T) {
		report := &schemas.RunReport{
			RunID:   "run-41",
			Mode:    schemas.ModeVerify,
			Overall: schemas.OutcomeSuccess,
		}
		data, err := json.Marshal(report)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "report.json")
		require.NoError(t, os.WriteFile(path, data, 0644))

		got, err := readReport(path)
		require.NoError(t, err)
		assert.Equal(t, "run-41", got.RunID)
		assert.Equal(t, schemas.ModeVerify, got.Mode)
		assert.Equal(t, schemas.OutcomeSuccess, got.Overall)
	})

	t.Run("should report a missing file", func(t *testing.T) {
		_, err := readReport(filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read run report")
	})

	t.Run("should report malformed JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := readReport(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode run report")
	})
}
