// internal/reporting/text.go
package reporting

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/failcase/repro-cli/api/schemas"
)

// The summary is rendered from a precomputed view so the template itself
// stays free of logic. Its output is stable for a given report; bug-store
// notes and PR bodies depend on that.
const summaryText = `{{.Mode}} {{.RunID}}{{if .Target}} against {{.Target}}{{end}}: {{.Overall}} ({{.Passed}}/{{.Total}} steps passed{{.HaltNote}})
{{- range .Steps}}
  {{.Status}} step {{.Num}}: {{.Desc}}{{.Failure}} ({{.Elapsed}})
{{- if .Screenshot}}
       screenshot: {{.Screenshot}}
{{- end}}
{{- end}}
{{- if .PageErrors}}
page errors:
{{- range .PageErrors}}
  - {{.}}
{{- end}}
{{- end}}
`

var summaryTemplate = template.Must(template.New("summary").Parse(summaryText))

type summaryStep struct {
	Status     string
	Num        int
	Desc       string
	Failure    string
	Screenshot string
	Elapsed    string
}

type summaryView struct {
	Mode       string
	RunID      string
	Target     string
	Overall    string
	Passed     int
	Total      int
	HaltNote   string
	Steps      []summaryStep
	PageErrors []string
}

// Summary renders the deterministic text form of a run report.
func Summary(report *schemas.RunReport) string {
	view := summaryView{
		Mode:       strings.ToLower(string(report.Mode)),
		RunID:      report.RunID,
		Target:     report.TargetURL,
		Overall:    string(report.Overall),
		Total:      len(report.Steps),
		PageErrors: report.PageErrors,
	}
	if report.HaltedAt != nil {
		view.HaltNote = fmt.Sprintf(", halted at step %d", *report.HaltedAt+1)
	}

	for _, step := range report.Steps {
		s := summaryStep{
			Status:  "PASS",
			Num:     step.Index + 1,
			Desc:    step.Action.String(),
			Elapsed: step.Elapsed.Round(time.Millisecond).String(),
		}
		if step.Failed() {
			s.Status = "FAIL"
			s.Failure = fmt.Sprintf(" [%s] %s", step.ErrorKind, step.Message)
			s.Screenshot = step.ScreenshotRef
		} else {
			view.Passed++
		}
		view.Steps = append(view.Steps, s)
	}

	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, view); err != nil {
		// The template is static; reaching this is a programming error.
		return fmt.Sprintf("%s %s: %s (summary render failed: %v)",
			view.Mode, view.RunID, view.Overall, err)
	}
	return buf.String()
}

// TextReporter writes the text summary of each report.
type TextReporter struct {
	w io.WriteCloser
}

// NewTextReporter takes ownership of the writer.
func NewTextReporter(w io.WriteCloser) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) Write(report *schemas.RunReport) error {
	_, err := io.WriteString(r.w, Summary(report))
	return err
}

func (r *TextReporter) Close() error {
	return r.w.Close()
}
