package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"gopkg.in/yaml.v3"
)

// TAPFormatter writes TAP version 13 with a YAML diagnostic block for every
// failed case.
type TAPFormatter struct {
	opts Options
}

func NewTAPFormatter(opts Options) *TAPFormatter {
	return &TAPFormatter{opts: opts}
}

func (f *TAPFormatter) Name() string { return "tap" }

type tapDiagnostic struct {
	Message  string   `yaml:"message,omitempty"`
	Severity string   `yaml:"severity"`
	Request  string   `yaml:"request,omitempty"`
	Status   int      `yaml:"status,omitempty"`
	Failures []string `yaml:"failures,omitempty"`
}

func (f *TAPFormatter) Report(result *runner.RunResult) error {
	w, closeFn, err := fileOrWriter(f.opts.Dir, "report.tap", f.opts.writer())
	if err != nil {
		return err
	}
	defer closeFn()
	return f.encode(w, result)
}

func (f *TAPFormatter) encode(w io.Writer, result *runner.RunResult) error {
	records := result.Ordered()
	fmt.Fprintf(w, "TAP version 13\n")
	fmt.Fprintf(w, "1..%d\n", len(records))

	for i, rec := range records {
		n := i + 1
		switch {
		case rec.Skipped:
			reason := rec.SkipReason
			if reason == "" {
				reason = "not run"
			}
			fmt.Fprintf(w, "ok %d - %s # SKIP %s\n", n, title(rec), reason)
		case rec.Success:
			fmt.Fprintf(w, "ok %d - %s\n", n, title(rec))
		default:
			fmt.Fprintf(w, "not ok %d - %s\n", n, title(rec))
			if err := writeDiagnostic(w, rec); err != nil {
				return err
			}
		}
	}

	if result.Status == runner.StatusCancelled || result.Status == runner.StatusAborted {
		fmt.Fprintf(w, "Bail out! %s\n", result.Status)
	}
	return nil
}

func writeDiagnostic(w io.Writer, rec *runner.Record) error {
	diag := tapDiagnostic{
		Severity: "fail",
		Request:  requestLine(rec),
		Status:   statusCode(rec),
	}
	if isAssertionFailure(rec.Error) {
		diag.Failures = failures(rec)
	} else {
		diag.Severity = "error"
		if rec.Error != nil {
			diag.Message = rec.Error.Error()
		}
	}

	data, err := yaml.Marshal(diag)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  ---\n")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintf(w, "  ...\n")
	return nil
}
