package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/google/uuid"
)

const (
	allureStageFinished = "finished"
	allureStatusBroken  = "broken"
)

// AllureResult is one <uuid>-result.json file of an allure-results directory.
type AllureResult struct {
	UUID        string             `json:"uuid"`
	TestCaseID  string             `json:"testCaseId"`
	HistoryID   string             `json:"historyId"`
	Name        string             `json:"name"`
	FullName    string             `json:"fullName"`
	Status      string             `json:"status"`
	Stage       string             `json:"stage"`
	StatusInfo  *AllureStatusInfo  `json:"statusDetails,omitempty"`
	Start       int64              `json:"start"`
	Stop        int64              `json:"stop"`
	Labels      []AllureLabel      `json:"labels"`
	Parameters  []AllureParameter  `json:"parameters,omitempty"`
	Steps       []AllureStep       `json:"steps,omitempty"`
	Attachments []AllureAttachment `json:"attachments,omitempty"`
}

type AllureStatusInfo struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

type AllureStep struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Stage  string `json:"stage"`
}

type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type AllureParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

var allureSeverity = map[string]string{
	"P0": "blocker",
	"P1": "critical",
	"P2": "normal",
	"P3": "minor",
}

// AllureWriter fills <Dir>/allure-results. Result, container and attachment
// files of an earlier run are removed first unless Options.KeepResults is
// set; allure would otherwise show them as retries of the current cases.
type AllureWriter struct {
	opts  Options
	newID func() string
}

func NewAllureWriter(opts Options) *AllureWriter {
	return &AllureWriter{opts: opts, newID: uuid.NewString}
}

func (w *AllureWriter) Name() string { return "allure" }

func (w *AllureWriter) ResultsDir() string {
	return filepath.Join(w.opts.dir(), "allure-results")
}

func (w *AllureWriter) Report(result *runner.RunResult) error {
	dir := w.ResultsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if !w.opts.KeepResults {
		if err := cleanAllureResults(dir); err != nil {
			return fmt.Errorf("clearing %s: %w", dir, err)
		}
	}

	for _, rec := range result.Ordered() {
		if err := w.writeRecord(dir, rec); err != nil {
			return fmt.Errorf("allure result for %s: %w", rec.CaseID, err)
		}
	}
	return w.writeEnvironment(dir, result)
}

var allureResultPatterns = []string{
	"*-result.json",
	"*-container.json",
	"*-attachment.*",
	"environment.properties",
}

// cleanAllureResults removes the files allure reads from dir. Anything else,
// such as a history directory copied in by CI, is kept.
func cleanAllureResults(dir string) error {
	for _, pattern := range allureResultPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return err
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

func (w *AllureWriter) writeRecord(dir string, rec *runner.Record) error {
	start := rec.StartedAt.UnixMilli()
	res := AllureResult{
		UUID:       w.newID(),
		TestCaseID: rec.CaseID,
		HistoryID:  rec.CaseID,
		Name:       title(rec),
		FullName:   strings.TrimPrefix(rec.Module+"."+rec.CaseID, "."),
		Status:     status(rec),
		Stage:      allureStageFinished,
		Start:      start,
		Stop:       start + rec.Duration.Milliseconds(),
		Labels:     allureLabels(rec),
	}
	if rec.Failed() && !isAssertionFailure(rec.Error) {
		res.Status = allureStatusBroken
	}
	if msgs := failures(rec); len(msgs) > 0 {
		res.StatusInfo = &AllureStatusInfo{Message: msgs[0], Trace: strings.Join(msgs, "\n")}
	}
	if rec.Skipped && rec.SkipReason != "" {
		res.StatusInfo = &AllureStatusInfo{Message: rec.SkipReason}
	}
	if line := requestLine(rec); line != "" {
		res.Steps = append(res.Steps, AllureStep{Name: line, Status: res.Status, Stage: allureStageFinished})
	}
	for _, a := range rec.Assertions {
		st := "passed"
		if !a.Passed {
			st = "failed"
		}
		res.Steps = append(res.Steps, AllureStep{
			Name:   strings.TrimSpace(fmt.Sprintf("assert %s %s %s", a.Subject, a.Operator, formatValue(a.Expected, 60))),
			Status: st,
			Stage:  allureStageFinished,
		})
	}

	if rec.Request != nil {
		for k, v := range rec.Request.Params {
			res.Parameters = append(res.Parameters, AllureParameter{Name: k, Value: v})
		}
		slices.SortFunc(res.Parameters, func(a, b AllureParameter) int { return strings.Compare(a.Name, b.Name) })
		if err := w.attach(dir, &res, "Request", rec.Request); err != nil {
			return err
		}
	}
	if rec.Response != nil {
		if err := w.attachRaw(dir, &res, "Response", rec.Response.Body, rec.Response.IsJSON()); err != nil {
			return err
		}
	}
	if len(rec.ExtractedVars) > 0 {
		if err := w.attach(dir, &res, "Extracted Variables", rec.ExtractedVars); err != nil {
			return err
		}
	}

	return writeJSONFile(filepath.Join(dir, res.UUID+"-result.json"), res)
}

func allureLabels(rec *runner.Record) []AllureLabel {
	labels := []AllureLabel{{Name: "framework", Value: "hitchain"}}
	if rec.Module != "" {
		labels = append(labels,
			AllureLabel{Name: "story", Value: rec.Module},
			AllureLabel{Name: "suite", Value: rec.Module})
	}
	if sev, ok := allureSeverity[rec.Priority]; ok {
		labels = append(labels, AllureLabel{Name: "severity", Value: sev})
	}
	for _, tag := range rec.Tags {
		labels = append(labels, AllureLabel{Name: "tag", Value: tag})
	}
	if rec.AsDependency {
		labels = append(labels, AllureLabel{Name: "tag", Value: "dependency"})
	}
	return labels
}

func (w *AllureWriter) attach(dir string, res *AllureResult, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return w.attachRaw(dir, res, name, data, true)
}

func (w *AllureWriter) attachRaw(dir string, res *AllureResult, name string, data []byte, isJSON bool) error {
	ext, mime := "txt", "text/plain"
	if isJSON {
		ext, mime = "json", "application/json"
	}
	source := fmt.Sprintf("%s-attachment.%s", w.newID(), ext)
	if err := os.WriteFile(filepath.Join(dir, source), data, 0o644); err != nil {
		return err
	}
	res.Attachments = append(res.Attachments, AllureAttachment{Name: name, Source: source, Type: mime})
	return nil
}

func (w *AllureWriter) writeEnvironment(dir string, result *runner.RunResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run.id=%s\n", result.ID)
	fmt.Fprintf(&b, "run.status=%s\n", result.Status)
	if w.opts.SuiteName != "" {
		fmt.Fprintf(&b, "suite=%s\n", w.opts.SuiteName)
	}
	fmt.Fprintf(&b, "batches=%d\n", len(result.Batches))
	return os.WriteFile(filepath.Join(dir, "environment.properties"), []byte(b.String()), 0o644)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
