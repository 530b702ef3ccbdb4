package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet   = "Results"
	summarySheet   = "Summary"
	failedColor    = "#FFC7CE"
	skippedColor   = "#FFEB9C"
	slowCaseCutoff = 2 * time.Second
)

var workbookHeaders = []string{
	"Case ID", "Name", "Module", "Priority", "Status", "Request",
	"Status Code", "Duration (ms)", "Dependency Run", "Failures",
}

// WorkbookWriter saves report.xlsx with a results sheet and a summary sheet.
// Failed rows are red, skipped and slow rows yellow.
type WorkbookWriter struct {
	opts Options
}

func NewWorkbookWriter(opts Options) *WorkbookWriter {
	return &WorkbookWriter{opts: opts}
}

func (w *WorkbookWriter) Name() string { return "xlsx" }

func (w *WorkbookWriter) Path() string {
	return filepath.Join(w.opts.dir(), "report.xlsx")
}

func (w *WorkbookWriter) Report(result *runner.RunResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	failedStyle, err := fillStyle(f, failedColor)
	if err != nil {
		return err
	}
	warnStyle, err := fillStyle(f, skippedColor)
	if err != nil {
		return err
	}

	for i, h := range workbookHeaders {
		if err := setCell(f, resultsSheet, i+1, 1, h); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(resultsSheet, "A", "J", 18)

	for i, rec := range result.Ordered() {
		row := i + 2
		cells := []any{
			rec.CaseID,
			rec.Name,
			rec.Module,
			rec.Priority,
			status(rec),
			requestLine(rec),
			statusCode(rec),
			rec.Duration.Milliseconds(),
			rec.AsDependency,
			strings.Join(failures(rec), "\n"),
		}
		for col, v := range cells {
			if err := setCell(f, resultsSheet, col+1, row, v); err != nil {
				return err
			}
		}

		style := 0
		switch {
		case rec.Failed():
			style = failedStyle
		case rec.Skipped || rec.Duration > slowCaseCutoff:
			style = warnStyle
		}
		if style != 0 {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(cells), row)
			if err := f.SetCellStyle(resultsSheet, first, last, style); err != nil {
				return err
			}
		}
	}

	if err := w.writeSummary(f, result); err != nil {
		return err
	}
	return f.SaveAs(w.Path())
}

func (w *WorkbookWriter) writeSummary(f *excelize.File, result *runner.RunResult) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	lat := ComputeStats(result).Latency
	rows := [][]any{
		{"Run ID", result.ID},
		{"Suite", w.opts.SuiteName},
		{"Status", string(result.Status)},
		{"Total", len(result.Records)},
		{"Passed", result.Passed},
		{"Failed", result.Failed},
		{"Skipped", result.Skipped},
		{"Batches", len(result.Batches)},
		{"Duration (ms)", result.Duration.Milliseconds()},
		{"p50 (ms)", lat.P50.Milliseconds()},
		{"p95 (ms)", lat.P95.Milliseconds()},
		{"p99 (ms)", lat.P99.Milliseconds()},
	}
	for i, row := range rows {
		for col, v := range row {
			if err := setCell(f, summarySheet, col+1, i+1, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}

func fillStyle(f *excelize.File, color string) (int, error) {
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
	})
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	return style, nil
}
