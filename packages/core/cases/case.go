package cases

import (
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
)

type Priority string

const (
	P0 Priority = "P0"
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
)

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case "", P0, P1, P2, P3:
		return p, nil
	default:
		return "", fmt.Errorf("invalid priority %q (expected P0-P3)", s)
	}
}

type TestCase struct {
	ID          string
	Name        string
	Module      string
	Description string
	Tags        []string
	Priority    Priority

	Method  string
	Path    string
	Headers map[string]any
	Params  map[string]any
	Body    any

	// ExtractVars maps a variable name to a response expression.
	ExtractVars map[string]string
	// ExtractTTL is how long extracted values live; zero defers to the run.
	ExtractTTL time.Duration
	Asserts    []assertions.Rule

	DependsOn string
	Runnable  bool

	// Source is the file the case was loaded from.
	Source string
}

func (tc *TestCase) HasDependency() bool {
	return tc.DependsOn != ""
}

// Title is the name shown in reports.
func (tc *TestCase) Title() string {
	if tc.Name == "" {
		return tc.ID
	}
	return tc.Name
}

func (tc *TestCase) HasTag(tag string) bool {
	for _, t := range tc.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Suite is the ordered case list of one or more source files.
type Suite struct {
	Name      string
	Files     []string
	BaseURL   string
	Variables map[string]any
	Cases     []*TestCase
}

func (s *Suite) Case(id string) (*TestCase, bool) {
	for _, tc := range s.Cases {
		if tc.ID == id {
			return tc, true
		}
	}
	return nil, false
}

// Merge appends other's cases and fills unset suite-level fields from it.
func (s *Suite) Merge(other *Suite) {
	if other == nil {
		return
	}
	if s.Name == "" {
		s.Name = other.Name
	}
	if s.BaseURL == "" {
		s.BaseURL = other.BaseURL
	}
	if len(other.Variables) > 0 && s.Variables == nil {
		s.Variables = make(map[string]any)
	}
	for k, v := range other.Variables {
		if _, ok := s.Variables[k]; !ok {
			s.Variables[k] = v
		}
	}
	s.Files = append(s.Files, other.Files...)
	s.Cases = append(s.Cases, other.Cases...)
}
