// internal/reporting/reporting.go

// Package reporting turns run reports into consumable output: canonical
// JSON, JUnit-style XML for CI, and a deterministic text summary that also
// serves as bug-store note and pull request body. A Summarizer variant can
// draft the summary with Gemini, falling back to the template on any error.
package reporting

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/failcase/repro-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter writes run reports to an output. Write may be called once per
// run; Close finalizes the report and releases the underlying writer.
type Reporter interface {
	Write(report *schemas.RunReport) error
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format. An empty outputPath or
// "stdout" writes to standard output, which is never closed. The format is
// checked before the output file is touched, so a bad format leaves no
// truncated file behind.
func New(format, outputPath string) (Reporter, error) {
	var build func(io.WriteCloser) Reporter
	switch format {
	case "json":
		build = func(w io.WriteCloser) Reporter { return NewJSONReporter(w) }
	case "junit":
		build = func(w io.WriteCloser) Reporter { return NewJUnitReporter(w) }
	case "text":
		build = func(w io.WriteCloser) Reporter { return NewTextReporter(w) }
	default:
		return nil, fmt.Errorf("unsupported output format %q (want json, junit or text)", format)
	}

	if outputPath == "" || outputPath == "stdout" {
		return build(&nopWriteCloser{os.Stdout}), nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	return build(f), nil
}
