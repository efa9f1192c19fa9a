// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/authflow/internal/flow"
)

// Reporter writes run results to an output.
type Reporter interface {
	// Write records the outcome of one run.
	Write(res flow.Result) error
	// Close finalizes the report and closes any underlying file.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format ("text" or "json") writing to
// outputPath. An empty path or "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	if format != "json" && format != "text" {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == "text" {
		console := NewConsole(writer)
		if !isStdOut {
			console.DisableColor()
		}
		return &textReporter{console: console, closer: writer}, nil
	}
	return &JSONReporter{w: writer}, nil
}

type textReporter struct {
	console *Console
	closer  io.Closer
}

func (r *textReporter) Write(res flow.Result) error {
	r.console.Report(res)
	return nil
}

func (r *textReporter) Close() error { return r.closer.Close() }

// Document is the JSON form of a run result.
type Document struct {
	Status       string   `json:"status"`
	State        string   `json:"state"`
	Code         string   `json:"code,omitempty"`
	Error        string   `json:"error,omitempty"`
	Diagnostic   string   `json:"diagnostic,omitempty"`
	ReleaseError string   `json:"release_error,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	Steps        []string `json:"steps"`
	DurationMS   int64    `json:"duration_ms"`
	FinishedAt   string   `json:"finished_at"`
}

// JSONReporter writes one JSON document per run.
type JSONReporter struct {
	w   io.WriteCloser
	now func() time.Time
}

// NewDocument converts res into its JSON form.
func NewDocument(res flow.Result, finishedAt time.Time) Document {
	doc := Document{
		Status:     "failed",
		State:      res.State.String(),
		Code:       string(res.Code()),
		Diagnostic: res.Diagnostic,
		Username:   res.Identity.Username,
		Email:      res.Identity.Email,
		Steps:      make([]string, len(res.Steps)),
		DurationMS: res.Duration.Milliseconds(),
		FinishedAt: finishedAt.UTC().Format(time.RFC3339),
	}
	if res.Passed() {
		doc.Status = "passed"
	}
	if res.Err != nil {
		doc.Error = res.Err.Error()
	}
	if res.ReleaseErr != nil {
		doc.ReleaseError = res.ReleaseErr.Error()
	}
	for i, s := range res.Steps {
		doc.Steps[i] = s.String()
	}
	return doc
}

func (r *JSONReporter) Write(res flow.Result) error {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(res, now())); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}
	return nil
}

func (r *JSONReporter) Close() error { return r.w.Close() }
