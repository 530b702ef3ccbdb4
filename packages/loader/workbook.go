package loader

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is read when it exists; otherwise the first sheet is used.
const DefaultSheet = "Sheet1"

// LoadWorkbook reads cases from an .xlsx file. The first row names the
// columns; every following row with a test_case_id is one case.
func LoadWorkbook(path, sheet string) (*cases.Suite, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = pickSheet(f.GetSheetList())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}

	suite := &cases.Suite{
		Name:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Files: []string{path},
	}
	if len(rows) == 0 {
		return suite, nil
	}

	columns := headerIndex(rows[0])
	if _, ok := columns["test_case_id"]; !ok {
		return nil, &LoadError{File: path, Row: 1, Err: fmt.Errorf("missing test_case_id column")}
	}

	for i, row := range rows[1:] {
		rowNum := i + 2
		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if cell("test_case_id") == "" {
			continue
		}

		doc, err := rowDocument(cell, columns)
		if err != nil {
			return nil, &LoadError{File: path, Row: rowNum, CaseID: cell("test_case_id"), Err: err}
		}
		tc, err := doc.ToCase(path)
		if err != nil {
			return nil, &LoadError{File: path, Row: rowNum, CaseID: doc.ID, Err: err}
		}
		suite.Cases = append(suite.Cases, tc)
	}
	return suite, nil
}

func pickSheet(sheets []string) string {
	for _, s := range sheets {
		if s == DefaultSheet {
			return s
		}
	}
	if len(sheets) > 0 {
		return sheets[0]
	}
	return DefaultSheet
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	return idx
}

func rowDocument(cell func(string) string, columns map[string]int) (*CaseDocument, error) {
	doc := &CaseDocument{
		ID:          cell("test_case_id"),
		Name:        cell("name"),
		Description: cell("description"),
		Module:      cell("module"),
		Tags:        SplitList(cell("tags")),
		Priority:    cell("priority"),
		Method:      cell("method"),
		Path:        cell("path"),
		DependsOn:   cell("pre_condition_tc"),
	}

	if err := jsonCell(cell("headers"), "headers", &doc.Headers); err != nil {
		return nil, err
	}
	if err := jsonCell(cell("params"), "params", &doc.Params); err != nil {
		return nil, err
	}
	if err := jsonCell(cell("extract_vars"), "extract_vars", &doc.ExtractVars); err != nil {
		return nil, err
	}

	var rawAsserts []map[string]any
	if err := jsonCell(cell("asserts"), "asserts", &rawAsserts); err != nil {
		return nil, err
	}
	rules, err := assertions.CompileAll(rawAsserts)
	if err != nil {
		return nil, err
	}
	doc.Asserts = rules

	if body := cell("body"); body != "" {
		var parsed any
		if err := json.Unmarshal([]byte(body), &parsed); err == nil {
			doc.Body = parsed
		} else {
			doc.Body = body
		}
	}

	ttl, err := ParseTTL(cell("extract_ttl"))
	if err != nil {
		return nil, err
	}
	doc.ExtractTTL = TTL(ttl)

	// A workbook with an is_run column treats a blank cell as disabled.
	if _, ok := columns["is_run"]; ok {
		run := parseBool(cell("is_run"))
		doc.IsRun = &run
	}
	return doc, nil
}

func jsonCell(text, column string, dst any) error {
	if text == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", column, err)
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on", "x":
		return true
	default:
		return false
	}
}
