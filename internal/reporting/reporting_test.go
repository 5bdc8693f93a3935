// internal/reporting/reporting_test.go
package reporting

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/failcase/repro-cli/api/schemas"
)

func intPtr(i int) *int { return &i }

// fixtureReport is a halted verify run: one green step, one failed click.
func fixtureReport() *schemas.RunReport {
	return &schemas.RunReport{
		RunID:      "run-9",
		Mode:       schemas.ModeVerify,
		TargetURL:  "https://app.test/login",
		StartedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Elapsed:    6 * time.Second,
		Overall:    schemas.OutcomeFailure,
		HaltedAt:   intPtr(1),
		PageErrors: []string{"TypeError: submit is not a function"},
		Steps: []schemas.StepResult{
			{
				Index: 0,
				Action: schemas.Action{
					Kind: schemas.ActionNavigate,
					URL:  "https://app.test/login",
					Raw:  "Go to https://app.test/login",
				},
				Outcome:       schemas.OutcomeSuccess,
				ScreenshotRef: "run-9/step-00-navigate.png",
				Elapsed:       412 * time.Millisecond,
			},
			{
				Index: 1,
				Action: schemas.Action{
					Kind:   schemas.ActionClick,
					Target: "Login button",
					Raw:    "Click the Login button",
				},
				Outcome:       schemas.OutcomeFailure,
				ErrorKind:     schemas.ErrElementNotFound,
				Message:       `no element matched "Login button"`,
				ScreenshotRef: "run-9/step-01-click.png",
				Elapsed:       5100 * time.Millisecond,
			},
		},
	}
}

func TestNewReporter(t *testing.T) {
	t.Run("should write json to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.json")
		r, err := New("json", path)
		require.NoError(t, err)
		require.NoError(t, r.Write(fixtureReport()))
		require.NoError(t, r.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"run_id": "run-9"`)
	})

	t.Run("should write the text summary to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.txt")
		r, err := New("text", path)
		require.NoError(t, err)
		require.NoError(t, r.Write(fixtureReport()))
		require.NoError(t, r.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "FAIL step 2")
	})

	t.Run("should reject unknown formats", func(t *testing.T) {
		_, err := New("yaml", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported output format")
	})

	t.Run("should not touch the output file on a bad format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.out")
		_, err := New("yaml", path)
		require.Error(t, err)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "a rejected format must not leave an empty file")
	})

	t.Run("stdout close is a no-op", func(t *testing.T) {
		r, err := New("text", "stdout")
		require.NoError(t, err)
		assert.NoError(t, r.Close())
		assert.NoError(t, r.Close())
	})
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(&nopWriteCloser{&buf})

	fixture := fixtureReport()
	require.NoError(t, r.Write(fixture))
	require.NoError(t, r.Close())

	out := buf.String()
	assert.Contains(t, out, "  \"run_id\": \"run-9\"", "output should be indented")

	var got schemas.RunReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, fixture.RunID, got.RunID)
	assert.Equal(t, fixture.Mode, got.Mode)
	assert.Equal(t, fixture.Overall, got.Overall)
	assert.Equal(t, fixture.HaltedAt, got.HaltedAt)
	assert.Equal(t, fixture.Steps, got.Steps)
	assert.Equal(t, fixture.PageErrors, got.PageErrors)
}

func TestJUnitReporter(t *testing.T) {
	t.Run("should render one suite per run and one case per step", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewJUnitReporter(&nopWriteCloser{&buf})
		require.NoError(t, r.Write(fixtureReport()))
		require.NoError(t, r.Close())

		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromBytes(buf.Bytes()))

		suite := doc.FindElement("//testsuite")
		require.NotNil(t, suite)
		assert.Equal(t, "repro-cli.verify.run-9", suite.SelectAttrValue("name", ""))
		assert.Equal(t, "2", suite.SelectAttrValue("tests", ""))
		assert.Equal(t, "1", suite.SelectAttrValue("failures", ""))
		assert.Equal(t, "6.000", suite.SelectAttrValue("time", ""))
		assert.Equal(t, "2026-03-14T09:30:00", suite.SelectAttrValue("timestamp", ""))

		cases := doc.FindElements("//testcase")
		require.Len(t, cases, 2)
		assert.Equal(t, "step 1: navigate https://app.test/login", cases[0].SelectAttrValue("name", ""))
		assert.Equal(t, "repro-cli.verify", cases[0].SelectAttrValue("classname", ""))
		assert.Nil(t, cases[0].FindElement("failure"))

		failure := cases[1].FindElement("failure")
		require.NotNil(t, failure)
		assert.Equal(t, "ELEMENT_NOT_FOUND", failure.SelectAttrValue("type", ""))
		assert.Equal(t, `no element matched "Login button"`, failure.SelectAttrValue("message", ""))
		assert.Equal(t, "screenshot: run-9/step-01-click.png", failure.Text())

		syserr := doc.FindElement("//system-err")
		require.NotNil(t, syserr)
		assert.Contains(t, syserr.Text(), "TypeError: submit is not a function")
	})

	t.Run("should accumulate suites across writes", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewJUnitReporter(&nopWriteCloser{&buf})

		first := fixtureReport()
		second := fixtureReport()
		second.RunID = "run-10"
		require.NoError(t, r.Write(first))
		require.NoError(t, r.Write(second))
		require.NoError(t, r.Close())

		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
		suites := doc.FindElements("//testsuite")
		require.Len(t, suites, 2)
		assert.Equal(t, "repro-cli.verify.run-9", suites[0].SelectAttrValue("name", ""))
		assert.Equal(t, "repro-cli.verify.run-10", suites[1].SelectAttrValue("name", ""))
	})
}

func TestSummary(t *testing.T) {
	t.Run("halted failure run", func(t *testing.T) {
		want := `verify run-9 against https://app.test/login: FAILURE (1/2 steps passed, halted at step 2)
  PASS step 1: navigate https://app.test/login (412ms)
  FAIL step 2: click "Login button" [ELEMENT_NOT_FOUND] no element matched "Login button" (5.1s)
       screenshot: run-9/step-01-click.png
page errors:
  - TypeError: submit is not a function
`
		assert.Equal(t, want, Summary(fixtureReport()))
	})

	t.Run("green run without a target url", func(t *testing.T) {
		report := &schemas.RunReport{
			RunID:   "run-3",
			Mode:    schemas.ModeReproduce,
			Overall: schemas.OutcomeSuccess,
			Steps: []schemas.StepResult{
				{
					Index: 0,
					Action: schemas.Action{
						Kind: schemas.ActionNavigate,
						URL:  "https://app.test",
						Raw:  "Go to https://app.test",
					},
					Outcome: schemas.OutcomeSuccess,
					Elapsed: 300 * time.Millisecond,
				},
				{
					Index: 1,
					Action: schemas.Action{
						Kind:      schemas.ActionVerify,
						Assertion: "the page contains 'Welcome'",
						Raw:       "Verify the page contains 'Welcome'",
					},
					Outcome: schemas.OutcomeSuccess,
					Elapsed: 120 * time.Millisecond,
				},
			},
		}

		want := `reproduce run-3: SUCCESS (2/2 steps passed)
  PASS step 1: navigate https://app.test (300ms)
  PASS step 2: verify "the page contains 'Welcome'" (120ms)
`
		assert.Equal(t, want, Summary(report))
	})
}
