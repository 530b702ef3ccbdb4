package loader

import (
	"errors"
	"fmt"
)

var ErrUnsupportedFormat = errors.New("unsupported suite format")

// LoadError locates a problem inside a suite file. Row is the spreadsheet
// row (1-based) and is zero for YAML and JSON sources.
type LoadError struct {
	File   string
	Row    int
	CaseID string
	Err    error
}

func (e *LoadError) Error() string {
	loc := e.File
	if e.Row > 0 {
		loc = fmt.Sprintf("%s: row %d", loc, e.Row)
	}
	if e.CaseID != "" {
		loc = fmt.Sprintf("%s: case %s", loc, e.CaseID)
	}
	return loc + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
