package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// maxHTMLBody caps how much of a response body the report embeds.
const maxHTMLBody = 4096

// HTMLOutput is the data the report template renders.
type HTMLOutput struct {
	RunID          string
	Suite          string
	Status         string
	Error          string
	Summary        JSONSummary
	Batches        []HTMLBatch
	Cases          []HTMLCase
	Latency        Latency
	Duration       float64
	Time           string
	PassedPercent  float64
	FailedPercent  float64
	SkippedPercent float64
}

type HTMLBatch struct {
	Number int
	IDs    []string
}

type HTMLCase struct {
	ID           string
	Title        string
	Module       string
	Status       string
	SkipReason   string
	AsDependency bool
	Batch        int
	Duration     float64
	Error        string
	Request      string
	RequestBody  string
	StatusCode   int
	ResponseBody string
	Attempts     int
	Assertions   []HTMLAssertion
	Extracted    []HTMLVar
}

type HTMLAssertion struct {
	Kind     string
	Subject  string
	Operator string
	Expected string
	Actual   string
	Passed   bool
	Message  string
}

type HTMLVar struct {
	Name  string
	Value string
}

// HTMLFormatter writes a self-contained report.html into Dir.
type HTMLFormatter struct {
	opts Options
	now  func() time.Time
}

func NewHTMLFormatter(opts Options) *HTMLFormatter {
	return &HTMLFormatter{opts: opts, now: time.Now}
}

func (f *HTMLFormatter) Name() string { return "html" }

// ReportPath is where Report writes.
func (f *HTMLFormatter) ReportPath() string {
	return filepath.Join(f.opts.dir(), "report.html")
}

func (f *HTMLFormatter) Report(result *runner.RunResult) error {
	if err := os.MkdirAll(f.opts.dir(), 0o755); err != nil {
		return err
	}
	file, err := os.Create(f.ReportPath())
	if err != nil {
		return err
	}
	if err := f.render(file, result); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (f *HTMLFormatter) render(w io.Writer, result *runner.RunResult) error {
	out := HTMLOutput{
		RunID:  result.ID,
		Suite:  f.opts.SuiteName,
		Status: string(result.Status),
		Summary: JSONSummary{
			Total:   len(result.Records),
			Passed:  result.Passed,
			Failed:  result.Failed,
			Skipped: result.Skipped,
		},
		Latency:  ComputeStats(result).Latency,
		Duration: float64(result.Duration.Milliseconds()),
		Time:     f.now().Format("2006-01-02 15:04:05"),
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	if total := out.Summary.Total; total > 0 {
		out.PassedPercent = float64(out.Summary.Passed) / float64(total) * 100
		out.FailedPercent = float64(out.Summary.Failed) / float64(total) * 100
		out.SkippedPercent = float64(out.Summary.Skipped) / float64(total) * 100
	}

	batchOf := make(map[string]int)
	for i, b := range result.Batches {
		out.Batches = append(out.Batches, HTMLBatch{Number: i + 1, IDs: b})
		for _, id := range b {
			batchOf[id] = i + 1
		}
	}
	for _, rec := range result.Ordered() {
		c := htmlCase(rec)
		c.Batch = batchOf[rec.CaseID]
		out.Cases = append(out.Cases, c)
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"ms": func(d time.Duration) string { return fmt.Sprintf("%.1f", float64(d.Microseconds())/1000) },
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}
	return tmpl.Execute(w, out)
}

func htmlCase(rec *runner.Record) HTMLCase {
	c := HTMLCase{
		ID:           rec.CaseID,
		Title:        title(rec),
		Module:       rec.Module,
		Status:       status(rec),
		SkipReason:   rec.SkipReason,
		AsDependency: rec.AsDependency,
		Duration:     float64(rec.Duration.Milliseconds()),
		Request:      requestLine(rec),
	}
	if rec.Error != nil {
		c.Error = rec.Error.Error()
	}
	if rec.Request != nil && rec.Request.Body != nil {
		c.RequestBody = prettyJSON(rec.Request.Body)
	}
	if rec.Response != nil {
		c.StatusCode = rec.Response.StatusCode
		c.Attempts = rec.Response.Attempts
		c.ResponseBody = truncateBody(rec.Response.Body)
	}
	for _, a := range rec.Assertions {
		c.Assertions = append(c.Assertions, HTMLAssertion{
			Kind:     string(a.Kind),
			Subject:  a.Subject,
			Operator: a.Operator,
			Expected: formatValue(a.Expected, 200),
			Actual:   formatValue(a.Actual, 200),
			Passed:   a.Passed,
			Message:  a.Message,
		})
	}
	for name, v := range rec.ExtractedVars {
		c.Extracted = append(c.Extracted, HTMLVar{Name: name, Value: formatValue(v, 200)})
	}
	slices.SortFunc(c.Extracted, func(a, b HTMLVar) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return c
}

func prettyJSON(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncateBody(body []byte) string {
	if len(body) > maxHTMLBody {
		return string(body[:maxHTMLBody]) + "\n... (truncated)"
	}
	return string(body)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>hitchain Report{{if .Suite}} - {{.Suite}}{{end}}</title>
    <style>
        :root {
            --bg-primary: #1a1a2e;
            --bg-secondary: #16213e;
            --text-primary: #eee;
            --text-secondary: #aaa;
            --success: #00d26a;
            --error: #ff4757;
            --warning: #ffa502;
            --info: #54a0ff;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            margin: 0;
            padding: 2rem;
        }
        .container { max-width: 1100px; margin: 0 auto; }
        h1 { margin-bottom: 0.25rem; }
        .meta { color: var(--text-secondary); margin-bottom: 1.5rem; }
        .summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(120px, 1fr)); gap: 1rem; margin-bottom: 1rem; }
        .card { background: var(--bg-secondary); padding: 1rem; border-radius: 8px; text-align: center; }
        .card .value { font-size: 1.5rem; font-weight: bold; }
        .bar { display: flex; height: 8px; border-radius: 4px; overflow: hidden; margin-bottom: 2rem; background: var(--bg-secondary); }
        .bar .passed { background: var(--success); }
        .bar .failed { background: var(--error); }
        .bar .skipped { background: var(--warning); }
        .passed { color: var(--success); }
        .failed { color: var(--error); }
        .skipped { color: var(--warning); }
        .aborted, .cancelled { color: var(--error); }
        .error { background: rgba(255, 71, 87, 0.1); border: 1px solid var(--error); padding: 1rem; border-radius: 8px; margin-bottom: 1rem; }
        .batches { margin-bottom: 2rem; }
        .batch { background: var(--bg-secondary); padding: 0.5rem 1rem; border-radius: 8px; margin-bottom: 0.5rem; }
        details.case { background: var(--bg-secondary); border-radius: 8px; margin-bottom: 0.5rem; padding: 0.5rem 1rem; }
        details.case summary { cursor: pointer; }
        .tag { font-size: 0.8rem; color: var(--info); margin-left: 0.5rem; }
        table { width: 100%; border-collapse: collapse; margin: 0.5rem 0; }
        th, td { padding: 0.4rem 0.75rem; text-align: left; vertical-align: top; }
        th { background: #0f3460; }
        tr:not(:last-child) { border-bottom: 1px solid #2d3748; }
        pre { background: #0f1a30; padding: 0.75rem; border-radius: 6px; overflow-x: auto; white-space: pre-wrap; }
    </style>
</head>
<body>
    <div class="container">
        <h1>hitchain Report{{if .Suite}}: {{.Suite}}{{end}}</h1>
        <div class="meta">Run {{.RunID}} · {{.Time}} · {{printf "%.0f" .Duration}}ms · <span class="{{.Status}}">{{.Status}}</span></div>
        {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
        <div class="summary">
            <div class="card"><div class="value">{{.Summary.Total}}</div><div>Total</div></div>
            <div class="card passed"><div class="value">{{.Summary.Passed}}</div><div>Passed</div></div>
            <div class="card failed"><div class="value">{{.Summary.Failed}}</div><div>Failed</div></div>
            <div class="card skipped"><div class="value">{{.Summary.Skipped}}</div><div>Skipped</div></div>
            <div class="card"><div class="value">{{len .Batches}}</div><div>Batches</div></div>
            {{if .Latency.Count}}<div class="card"><div class="value">{{ms .Latency.P95}}</div><div>p95 ms</div></div>{{end}}
        </div>
        <div class="bar">
            <div class="passed" style="width: {{printf "%.1f" .PassedPercent}}%"></div>
            <div class="failed" style="width: {{printf "%.1f" .FailedPercent}}%"></div>
            <div class="skipped" style="width: {{printf "%.1f" .SkippedPercent}}%"></div>
        </div>

        {{if .Batches}}
        <h2>Batches</h2>
        <div class="batches">
            {{range .Batches}}<div class="batch">Batch {{.Number}}: {{range $i, $id := .IDs}}{{if $i}}, {{end}}{{$id}}{{end}}</div>
            {{end}}
        </div>
        {{end}}

        <h2>Cases</h2>
        {{range .Cases}}
        <details class="case" id="case-{{.ID}}"{{if eq .Status "failed"}} open{{end}}>
            <summary>
                <span class="{{.Status}}">{{.Status}}</span> {{.Title}}
                {{if .Module}}<span class="tag">{{.Module}}</span>{{end}}
                {{if .Batch}}<span class="tag">batch {{.Batch}}</span>{{end}}
                {{if .AsDependency}}<span class="tag">dependency</span>{{end}}
                <span class="tag">{{printf "%.0f" .Duration}}ms</span>
            </summary>
            {{if .SkipReason}}<p class="skipped">Skipped: {{.SkipReason}}</p>{{end}}
            {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
            {{if .Request}}<p><strong>{{.Request}}</strong>{{if .StatusCode}} → {{.StatusCode}}{{end}}{{if gt .Attempts 1}} ({{.Attempts}} attempts){{end}}</p>{{end}}
            {{if .Assertions}}
            <table>
                <thead><tr><th></th><th>Rule</th><th>Subject</th><th>Expected</th><th>Actual</th></tr></thead>
                <tbody>
                {{range .Assertions}}
                <tr>
                    <td class="{{if .Passed}}passed{{else}}failed{{end}}">{{if .Passed}}✓{{else}}✗{{end}}</td>
                    <td>{{.Kind}}</td>
                    <td>{{.Subject}} {{.Operator}}</td>
                    <td>{{.Expected}}</td>
                    <td>{{.Actual}}{{if .Message}} ({{.Message}}){{end}}</td>
                </tr>
                {{end}}
                </tbody>
            </table>
            {{end}}
            {{if .Extracted}}
            <table>
                <thead><tr><th>Extracted variable</th><th>Value</th></tr></thead>
                <tbody>
                {{range .Extracted}}<tr><td>{{.Name}}</td><td>{{.Value}}</td></tr>
                {{end}}
                </tbody>
            </table>
            {{end}}
            {{if .RequestBody}}<p>Request body</p><pre>{{.RequestBody}}</pre>{{end}}
            {{if .ResponseBody}}<p>Response body</p><pre>{{.ResponseBody}}</pre>{{end}}
        </details>
        {{end}}
    </div>
</body>
</html>`
