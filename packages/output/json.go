package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string      `json:"runId"`
	Suite    string      `json:"suite,omitempty"`
	Status   string      `json:"status"`
	Error    string      `json:"error,omitempty"`
	Summary  JSONSummary `json:"summary"`
	Batches  [][]string  `json:"batches"`
	Cases    []JSONCase  `json:"cases"`
	Stats    Stats       `json:"stats"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type JSONCase struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	Module       string          `json:"module,omitempty"`
	Status       string          `json:"status"`
	SkipReason   string          `json:"skipReason,omitempty"`
	AsDependency bool            `json:"asDependency,omitempty"`
	Duration     float64         `json:"duration"`
	Error        string          `json:"error,omitempty"`
	Request      *JSONRequest    `json:"request,omitempty"`
	Response     *JSONResponse   `json:"response,omitempty"`
	Assertions   []JSONAssertion `json:"assertions,omitempty"`
	Extracted    map[string]any  `json:"extracted,omitempty"`
}

type JSONRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Body    any               `json:"body,omitempty"`
}

type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	URL        string            `json:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
	Duration   float64           `json:"duration"`
	Attempts   int               `json:"attempts,omitempty"`
}

type JSONAssertion struct {
	Type     string `json:"type"`
	Subject  string `json:"subject"`
	Operator string `json:"operator,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter writes report.json into Dir, or to Writer when Dir is empty.
type JSONFormatter struct {
	opts Options
	now  func() time.Time
}

func NewJSONFormatter(opts Options) *JSONFormatter {
	return &JSONFormatter{opts: opts, now: time.Now}
}

func (f *JSONFormatter) Name() string { return "json" }

func (f *JSONFormatter) Report(result *runner.RunResult) error {
	w, closeFn, err := fileOrWriter(f.opts.Dir, "report.json", f.opts.writer())
	if err != nil {
		return err
	}
	defer closeFn()
	return f.encode(w, result)
}

func (f *JSONFormatter) encode(w io.Writer, result *runner.RunResult) error {
	out := JSONOutput{
		RunID:  result.ID,
		Suite:  f.opts.SuiteName,
		Status: string(result.Status),
		Summary: JSONSummary{
			Total:   len(result.Records),
			Passed:  result.Passed,
			Failed:  result.Failed,
			Skipped: result.Skipped,
		},
		Batches:  make([][]string, 0, len(result.Batches)),
		Cases:    make([]JSONCase, 0, len(result.Records)),
		Stats:    ComputeStats(result),
		Duration: float64(result.Duration.Milliseconds()),
		Time:     f.now().Format(time.RFC3339),
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	for _, b := range result.Batches {
		out.Batches = append(out.Batches, []string(b))
	}
	for _, rec := range result.Ordered() {
		out.Cases = append(out.Cases, jsonCase(rec))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func jsonCase(rec *runner.Record) JSONCase {
	c := JSONCase{
		ID:           rec.CaseID,
		Name:         rec.Name,
		Module:       rec.Module,
		Status:       status(rec),
		SkipReason:   rec.SkipReason,
		AsDependency: rec.AsDependency,
		Duration:     float64(rec.Duration.Milliseconds()),
		Extracted:    rec.ExtractedVars,
	}
	if rec.Error != nil {
		c.Error = rec.Error.Error()
	}
	if rec.Request != nil {
		c.Request = &JSONRequest{
			Method:  rec.Request.Method,
			Path:    rec.Request.Path,
			Headers: rec.Request.Headers,
			Params:  rec.Request.Params,
			Body:    rec.Request.Body,
		}
	}
	if rec.Response != nil {
		c.Response = &JSONResponse{
			StatusCode: rec.Response.StatusCode,
			URL:        rec.Response.URL,
			Headers:    rec.Response.Headers,
			Body:       rec.Response.BodyString(),
			Duration:   float64(rec.Response.Duration.Milliseconds()),
			Attempts:   rec.Response.Attempts,
		}
	}
	for _, a := range rec.Assertions {
		c.Assertions = append(c.Assertions, JSONAssertion{
			Type:     string(a.Kind),
			Subject:  a.Subject,
			Operator: a.Operator,
			Expected: a.Expected,
			Actual:   a.Actual,
			Passed:   a.Passed,
			Message:  a.Message,
		})
	}
	return c
}
