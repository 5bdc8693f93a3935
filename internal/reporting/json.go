// internal/reporting/json.go
package reporting

import (
	"io"

	"github.com/failcase/repro-cli/api/schemas"
)

// JSONReporter streams each report as one indented JSON document. The output
// is the canonical machine-readable form of a run.
type JSONReporter struct {
	w io.WriteCloser
}

// NewJSONReporter takes ownership of the writer.
func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{w: w}
}

func (r *JSONReporter) Write(report *schemas.RunReport) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func (r *JSONReporter) Close() error {
	return r.w.Close()
}
