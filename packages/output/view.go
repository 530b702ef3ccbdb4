package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

func joinPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

func title(rec *runner.Record) string {
	if rec.Name == "" || rec.Name == rec.CaseID {
		return rec.CaseID
	}
	return rec.CaseID + ": " + rec.Name
}

func status(rec *runner.Record) string {
	switch {
	case rec.Skipped:
		return "skipped"
	case rec.Success:
		return "passed"
	default:
		return "failed"
	}
}

// failures lists why a record failed: its error, then each failed assertion.
func failures(rec *runner.Record) []string {
	var out []string
	if _, ok := rec.Error.(*runner.AssertionFailure); rec.Error != nil && !ok {
		out = append(out, rec.Error.Error())
	}
	for _, a := range rec.Assertions {
		if a.Passed {
			continue
		}
		line := fmt.Sprintf("%s %s: expected %s, got %s", a.Subject, a.Operator,
			formatValue(a.Expected, 100), formatValue(a.Actual, 100))
		if a.Message != "" {
			line += " (" + a.Message + ")"
		}
		out = append(out, line)
	}
	return out
}

func statusCode(rec *runner.Record) int {
	if rec.Response == nil {
		return 0
	}
	return rec.Response.StatusCode
}

func requestLine(rec *runner.Record) string {
	if rec.Request == nil {
		return ""
	}
	target := rec.Request.Path
	if rec.Response != nil && rec.Response.URL != "" {
		target = rec.Response.URL
	}
	return strings.TrimSpace(rec.Request.Method + " " + target)
}

// isAssertionFailure reports a response that arrived but did not satisfy
// the case, as opposed to a request that could not be made.
// Wrapped errors are not unwrapped: a dependency failure stays an error even
// when the dependency itself failed an assertion.
func isAssertionFailure(err error) bool {
	switch err.(type) {
	case *runner.AssertionFailure, *runner.UnexpectedStatusError:
		return true
	}
	return false
}
