package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Report is one reportable outcome of running a pipeline over a function:
// either an *Error or a successful completion. The driver accumulates one
// Report per function it runs the pipeline over.
type Report struct {
	Function string `json:"function"`
	Pass     string `json:"pass"`
	Kind     string `json:"kind"`
	Message  string `json:"message,omitempty"`
}

// ReportFromError builds a Report describing err, or a clean-completion
// Report when err is nil.
func ReportFromError(function, pass string, err error) Report {
	if err == nil {
		return Report{Function: function, Pass: pass, Kind: "ok"}
	}
	var e *Error
	if ok := errorsAs(err, &e); ok {
		return Report{Function: function, Pass: pass, Kind: e.Kind.String(), Message: e.Message}
	}
	return Report{Function: function, Pass: pass, Kind: "error", Message: err.Error()}
}

func errorsAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Reporter renders a batch of Reports either as a colored table (matching
// the teacher's fatih/color-based diagnostic style) or as JSON.
type Reporter struct {
	out  io.Writer
	json bool
}

// NewReporter builds a Reporter writing to out. When asJSON is true,
// Render emits a single JSON array instead of a table.
func NewReporter(out io.Writer, asJSON bool) *Reporter {
	return &Reporter{out: out, json: asJSON}
}

// Render writes reports to the Reporter's output and returns the process
// exit code the driver should use: 0 if every report is "ok" or "yield",
// nonzero otherwise.
func (r *Reporter) Render(reports []Report) int {
	if r.json {
		return r.renderJSON(reports)
	}
	return r.renderTable(reports)
}

func (r *Reporter) renderJSON(reports []Report) int {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(reports)
	return exitCode(reports)
}

func (r *Reporter) renderTable(reports []Report) int {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "%-24s %-16s %-10s %s\n", bold("FUNCTION"), bold("PASS"), bold("RESULT"), bold("DETAIL"))
	fmt.Fprintln(r.out, strings.Repeat("-", 72))
	for _, rep := range reports {
		var resultColor func(a ...interface{}) string
		switch rep.Kind {
		case "ok":
			resultColor = color.New(color.FgGreen).SprintFunc()
		case "yield":
			resultColor = color.New(color.FgYellow).SprintFunc()
		default:
			resultColor = color.New(color.FgRed, color.Bold).SprintFunc()
		}
		fmt.Fprintf(r.out, "%-24s %-16s %-10s %s\n", rep.Function, rep.Pass, resultColor(rep.Kind), rep.Message)
	}
	return exitCode(reports)
}

func exitCode(reports []Report) int {
	for _, rep := range reports {
		if rep.Kind != "ok" && rep.Kind != "yield" {
			return 1
		}
	}
	return 0
}
