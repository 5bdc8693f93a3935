// internal/reporting/junit.go
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/failcase/repro-cli/api/schemas"
)

// JUnitReporter renders runs as JUnit-style XML so CI systems display a run
// like a test suite: one testsuite per run, one testcase per executed step.
// Suites accumulate across Write calls and the document is flushed on Close,
// since JUnit XML must be a single document.
type JUnitReporter struct {
	w      io.WriteCloser
	doc    *etree.Document
	suites *etree.Element
}

// NewJUnitReporter takes ownership of the writer.
func NewJUnitReporter(w io.WriteCloser) *JUnitReporter {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return &JUnitReporter{
		w:      w,
		doc:    doc,
		suites: doc.CreateElement("testsuites"),
	}
}

func (r *JUnitReporter) Write(report *schemas.RunReport) error {
	mode := strings.ToLower(string(report.Mode))
	failures := 0
	for _, step := range report.Steps {
		if step.Failed() {
			failures++
		}
	}

	suite := r.suites.CreateElement("testsuite")
	suite.CreateAttr("name", fmt.Sprintf("repro-cli.%s.%s", mode, report.RunID))
	suite.CreateAttr("tests", strconv.Itoa(len(report.Steps)))
	suite.CreateAttr("failures", strconv.Itoa(failures))
	suite.CreateAttr("time", fmt.Sprintf("%.3f", report.Elapsed.Seconds()))
	if !report.StartedAt.IsZero() {
		suite.CreateAttr("timestamp", report.StartedAt.UTC().Format("2006-01-02T15:04:05"))
	}

	for _, step := range report.Steps {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", fmt.Sprintf("step %d: %s", step.Index+1, step.Action.String()))
		tc.CreateAttr("classname", "repro-cli."+mode)
		tc.CreateAttr("time", fmt.Sprintf("%.3f", step.Elapsed.Seconds()))

		if step.Failed() {
			failure := tc.CreateElement("failure")
			failure.CreateAttr("type", string(step.ErrorKind))
			failure.CreateAttr("message", step.Message)
			if step.ScreenshotRef != "" {
				failure.SetText("screenshot: " + step.ScreenshotRef)
			}
		}
	}

	if len(report.PageErrors) > 0 {
		suite.CreateElement("system-err").SetText(strings.Join(report.PageErrors, "\n"))
	}
	return nil
}

func (r *JUnitReporter) Close() error {
	r.doc.Indent(2)
	if _, err := r.doc.WriteTo(r.w); err != nil {
		r.w.Close()
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return r.w.Close()
}
