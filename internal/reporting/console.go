// Package reporting renders the outcome of a run for a human reader.
package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/xkilldash9x/authflow/internal/flow"
)

// Console writes a run summary to an output stream.
type Console struct {
	out io.Writer
	// Verbose adds the trail of states the run went through.
	Verbose bool

	pass *color.Color
	fail *color.Color
	warn *color.Color
	dim  *color.Color
}

// NewConsole creates a console reporter writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:  out,
		pass: color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow),
		dim:  color.New(color.Faint),
	}
}

// DisableColor turns off colour output regardless of the terminal.
func (c *Console) DisableColor() {
	for _, col := range []*color.Color{c.pass, c.fail, c.warn, c.dim} {
		col.DisableColor()
	}
}

// Report prints the summary for res.
func (c *Console) Report(res flow.Result) {
	fmt.Fprintln(c.out)
	if res.Passed() {
		c.pass.Fprintln(c.out, "All tests passed!")
	} else {
		c.fail.Fprintf(c.out, "Test Failed: %v\n", res.Err)
	}

	if res.Identity.Username != "" {
		fmt.Fprintf(c.out, "  user:     %s <%s>\n", res.Identity.Username, res.Identity.Email)
	}
	fmt.Fprintf(c.out, "  duration: %s\n", res.Duration.Round(time.Millisecond))

	if !res.Passed() {
		if code := res.Code(); code != "" {
			fmt.Fprintf(c.out, "  code:     %s\n", code)
		}
		if res.Diagnostic != "" {
			fmt.Fprintf(c.out, "  page:     %q\n", res.Diagnostic)
		}
	}
	if res.ReleaseErr != nil {
		c.warn.Fprintf(c.out, "  warning:  %v\n", res.ReleaseErr)
	}

	if c.Verbose {
		fmt.Fprintf(c.out, "  states:   %s\n", trail(res.Steps))
	}
	if res.Err != nil {
		c.dim.Fprintf(c.out, "\n%+v\n", res.Err)
	}
}

func trail(steps []flow.State) string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.String()
	}
	return strings.Join(names, " -> ")
}
