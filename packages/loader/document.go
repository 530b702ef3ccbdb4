package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"gopkg.in/yaml.v3"
)

// SuiteDocument is the on-disk form of a YAML or JSON suite.
type SuiteDocument struct {
	Name      string         `yaml:"name,omitempty" json:"name,omitempty"`
	BaseURL   string         `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Variables map[string]any `yaml:"variables,omitempty" json:"variables,omitempty"`
	TestCases []CaseDocument `yaml:"test_cases" json:"test_cases"`
}

type CaseDocument struct {
	ID          string            `yaml:"test_case_id" json:"test_case_id"`
	Name        string            `yaml:"name,omitempty" json:"name,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Module      string            `yaml:"module,omitempty" json:"module,omitempty"`
	Tags        StringList        `yaml:"tags,omitempty" json:"tags,omitempty"`
	Priority    string            `yaml:"priority,omitempty" json:"priority,omitempty"`
	Method      string            `yaml:"method,omitempty" json:"method,omitempty"`
	Path        string            `yaml:"path" json:"path"`
	Headers     map[string]any    `yaml:"headers,omitempty" json:"headers,omitempty"`
	Params      map[string]any    `yaml:"params,omitempty" json:"params,omitempty"`
	Body        any               `yaml:"body,omitempty" json:"body,omitempty"`
	ExtractVars map[string]string `yaml:"extract_vars,omitempty" json:"extract_vars,omitempty"`
	ExtractTTL  TTL               `yaml:"extract_ttl,omitempty" json:"extract_ttl,omitempty"`
	Asserts     []assertions.Rule `yaml:"asserts,omitempty" json:"asserts,omitempty"`
	DependsOn   string            `yaml:"pre_condition_tc,omitempty" json:"pre_condition_tc,omitempty"`
	IsRun       *bool             `yaml:"is_run,omitempty" json:"is_run,omitempty"`
}

// StringList accepts either a YAML list or a comma separated string.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = SplitList(node.Value)
		return nil
	}
	var items []string
	if err := node.Decode(&items); err != nil {
		return err
	}
	*l = items
	return nil
}

// SplitList splits a comma separated cell, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TTL is a variable lifetime written as seconds (30) or a duration ("5m").
type TTL time.Duration

func (t *TTL) UnmarshalYAML(node *yaml.Node) error {
	d, err := ParseTTL(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = TTL(d)
	return nil
}

func (t TTL) MarshalYAML() (any, error) {
	return time.Duration(t).String(), nil
}

func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("extract_ttl must not be negative")
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid extract_ttl %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("extract_ttl must not be negative")
	}
	return d, nil
}

// ToCase converts the document into an immutable test case.
func (d *CaseDocument) ToCase(source string) (*cases.TestCase, error) {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return nil, fmt.Errorf("test_case_id is required")
	}

	priority, err := cases.ParsePriority(d.Priority)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(d.Method))
	if method == "" {
		method = "GET"
	}

	runnable := true
	if d.IsRun != nil {
		runnable = *d.IsRun
	}

	return &cases.TestCase{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Module:      d.Module,
		Tags:        []string(d.Tags),
		Priority:    priority,
		Method:      method,
		Path:        d.Path,
		Headers:     d.Headers,
		Params:      d.Params,
		Body:        d.Body,
		ExtractVars: d.ExtractVars,
		ExtractTTL:  time.Duration(d.ExtractTTL),
		Asserts:     d.Asserts,
		DependsOn:   strings.TrimSpace(d.DependsOn),
		Runnable:    runnable,
		Source:      source,
	}, nil
}
