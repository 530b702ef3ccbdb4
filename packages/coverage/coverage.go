// Package coverage reports which operations of an OpenAPI document are
// exercised by a suite's cases.
package coverage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// Report is the outcome of an analysis.
type Report struct {
	Title            string                `json:"title,omitempty"`
	TotalEndpoints   int                   `json:"totalEndpoints"`
	CoveredEndpoints int                   `json:"coveredEndpoints"`
	CoveragePercent  float64               `json:"coveragePercent"`
	ByTag            map[string]*TagReport `json:"byTag,omitempty"`
	Endpoints        []EndpointStatus      `json:"endpoints"`
	Unmatched        []Request             `json:"unmatched,omitempty"`
}

type TagReport struct {
	Tag              string  `json:"tag"`
	TotalEndpoints   int     `json:"totalEndpoints"`
	CoveredEndpoints int     `json:"coveredEndpoints"`
	CoveragePercent  float64 `json:"coveragePercent"`
}

// EndpointStatus is the coverage of a single operation. CaseIDs lists the
// cases that hit it, in the order they were seen.
type EndpointStatus struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	OperationID string   `json:"operationId,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Covered     bool     `json:"covered"`
	CaseIDs     []string `json:"caseIds,omitempty"`
}

type Endpoint struct {
	Method      string
	Path        string
	OperationID string
	Tags        []string

	pattern *regexp.Regexp
}

// Request is one request a case sends (or would send).
type Request struct {
	CaseID string `json:"caseId,omitempty"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

type Analyzer struct {
	title     string
	endpoints []Endpoint
	basePaths []string
}

var (
	paramPattern       = regexp.MustCompile(`\{[^}]+\}`)
	placeholderPattern = regexp.MustCompile(`\$\{[^}]*\}`)
)

// placeholderSegment stands in for an unresolved ${...} while matching; it
// never contains a slash so it matches exactly one path parameter.
const placeholderSegment = "_"

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// LoadOpenAPI reads the document at a file path or http(s) URL.
func (a *Analyzer) LoadOpenAPI(ctx context.Context, location string) error {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true

	var (
		doc *openapi3.T
		err error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		u, perr := url.Parse(location)
		if perr != nil {
			return fmt.Errorf("invalid spec URL: %w", perr)
		}
		doc, err = loader.LoadFromURI(u)
	} else {
		doc, err = loader.LoadFromFile(location)
	}
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return a.Load(doc)
}

// Load registers every operation of doc.
func (a *Analyzer) Load(doc *openapi3.T) error {
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return fmt.Errorf("no paths found in OpenAPI spec")
	}
	if doc.Info != nil {
		a.title = doc.Info.Title
	}

	for _, server := range doc.Servers {
		u, err := url.Parse(server.URL)
		if err != nil {
			continue
		}
		if p := strings.TrimRight(u.Path, "/"); p != "" {
			a.basePaths = append(a.basePaths, p)
		}
	}

	for _, path := range doc.Paths.InMatchingOrder() {
		ops := doc.Paths.Value(path).Operations()
		methods := make([]string, 0, len(ops))
		for method := range ops {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		for _, method := range methods {
			op := ops[method]
			a.endpoints = append(a.endpoints, Endpoint{
				Method:      strings.ToUpper(method),
				Path:        path,
				OperationID: op.OperationID,
				Tags:        op.Tags,
				pattern:     compilePath(path),
			})
		}
	}
	return nil
}

func compilePath(path string) *regexp.Regexp {
	parts := paramPattern.Split(path, -1)
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("^" + strings.Join(parts, `[^/]+`) + "/?$")
}

// FromSuite lists the requests the given cases declare. Paths keep their
// placeholders; they match any single path parameter.
func FromSuite(suite *cases.Suite, ids []string) []Request {
	var reqs []Request
	add := func(tc *cases.TestCase) {
		reqs = append(reqs, Request{CaseID: tc.ID, Method: tc.Method, Path: tc.Path})
	}
	if len(ids) == 0 {
		for _, tc := range suite.Cases {
			add(tc)
		}
		return reqs
	}
	for _, id := range ids {
		if tc, ok := suite.Case(id); ok {
			add(tc)
		}
	}
	return reqs
}

// FromRun lists the requests a run actually sent, in execution order.
func FromRun(result *runner.RunResult) []Request {
	var reqs []Request
	for _, id := range result.Order {
		rec, ok := result.Records[id]
		if !ok || rec.Request == nil {
			continue
		}
		reqs = append(reqs, Request{CaseID: id, Method: rec.Request.Method, Path: rec.Request.Path})
	}
	return reqs
}

// Analyze matches requests to operations. A request counts for the first
// operation it matches; requests matching none end up in Report.Unmatched.
func (a *Analyzer) Analyze(requests []Request) *Report {
	report := &Report{
		Title:          a.title,
		TotalEndpoints: len(a.endpoints),
		ByTag:          make(map[string]*TagReport),
		Endpoints:      make([]EndpointStatus, 0, len(a.endpoints)),
	}

	hits := make(map[int][]string)
	for _, req := range requests {
		idx := a.match(req)
		if idx < 0 {
			report.Unmatched = append(report.Unmatched, req)
			continue
		}
		hits[idx] = append(hits[idx], req.CaseID)
	}

	for i, ep := range a.endpoints {
		status := EndpointStatus{
			Method:      ep.Method,
			Path:        ep.Path,
			OperationID: ep.OperationID,
			Tags:        ep.Tags,
			CaseIDs:     hits[i],
			Covered:     len(hits[i]) > 0,
		}
		report.Endpoints = append(report.Endpoints, status)
		if status.Covered {
			report.CoveredEndpoints++
		}

		for _, tag := range ep.Tags {
			tr, ok := report.ByTag[tag]
			if !ok {
				tr = &TagReport{Tag: tag}
				report.ByTag[tag] = tr
			}
			tr.TotalEndpoints++
			if status.Covered {
				tr.CoveredEndpoints++
			}
		}
	}

	report.CoveragePercent = percent(report.CoveredEndpoints, report.TotalEndpoints)
	for _, tr := range report.ByTag {
		tr.CoveragePercent = percent(tr.CoveredEndpoints, tr.TotalEndpoints)
	}

	sort.SliceStable(report.Endpoints, func(i, j int) bool {
		if report.Endpoints[i].Path != report.Endpoints[j].Path {
			return report.Endpoints[i].Path < report.Endpoints[j].Path
		}
		return report.Endpoints[i].Method < report.Endpoints[j].Method
	})
	return report
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func (a *Analyzer) match(req Request) int {
	method := strings.ToUpper(req.Method)
	for _, path := range a.candidates(normalizePath(req.Path)) {
		for i, ep := range a.endpoints {
			if ep.Method == method && ep.pattern.MatchString(path) {
				return i
			}
		}
	}
	return -1
}

// candidates returns path followed by path with each server base path
// stripped, so "/v1/pets" matches "/pets" under a "/v1" server.
func (a *Analyzer) candidates(path string) []string {
	out := []string{path}
	for _, base := range a.basePaths {
		if rest, ok := strings.CutPrefix(path, base); ok && (rest == "" || rest[0] == '/') {
			if rest == "" {
				rest = "/"
			}
			out = append(out, rest)
		}
	}
	return out
}

// normalizePath reduces a case path to its URL path: scheme, host, a leading
// base URL placeholder, query string and fragment are removed.
func normalizePath(raw string) string {
	p := raw
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		if j := strings.Index(p, "/"); j >= 0 {
			p = p[j:]
		} else {
			p = "/"
		}
	} else if strings.HasPrefix(p, "${") {
		if end := strings.Index(p, "}"); end >= 0 && strings.HasPrefix(p[end+1:], "/") {
			p = p[end+1:]
		}
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return placeholderPattern.ReplaceAllString(p, placeholderSegment)
}

// FormatConsole renders the report for a terminal.
func (r *Report) FormatConsole() string {
	var sb strings.Builder

	sb.WriteString("\nAPI Coverage Report\n")
	sb.WriteString("===================\n")
	if r.Title != "" {
		sb.WriteString(r.Title + "\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Total Endpoints:   %d\n", r.TotalEndpoints)
	fmt.Fprintf(&sb, "Covered Endpoints: %d\n", r.CoveredEndpoints)
	fmt.Fprintf(&sb, "Coverage:          %.1f%%\n\n", r.CoveragePercent)

	if len(r.ByTag) > 0 {
		sb.WriteString("Coverage by Tag:\n")
		tags := make([]string, 0, len(r.ByTag))
		for tag := range r.ByTag {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			tr := r.ByTag[tag]
			fmt.Fprintf(&sb, "  %s: %d/%d (%.1f%%)\n", tag, tr.CoveredEndpoints, tr.TotalEndpoints, tr.CoveragePercent)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Endpoint Details:\n")
	for _, ep := range r.Endpoints {
		mark := "[ ]"
		if ep.Covered {
			mark = "[x]"
		}
		fmt.Fprintf(&sb, "  %s %s %s", mark, ep.Method, ep.Path)
		if len(ep.CaseIDs) > 0 {
			fmt.Fprintf(&sb, "  <- %s", strings.Join(ep.CaseIDs, ", "))
		}
		sb.WriteString("\n")
	}

	if len(r.Unmatched) > 0 {
		sb.WriteString("\nRequests matching no operation:\n")
		for _, req := range r.Unmatched {
			fmt.Fprintf(&sb, "  %s %s (%s)\n", req.Method, req.Path, req.CaseID)
		}
	}

	return sb.String()
}

func (r *Report) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
