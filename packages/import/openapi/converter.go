// Package openapi converts OpenAPI 3 documents into hitchain suites.
package openapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/loader"
	"github.com/getkin/kin-openapi/openapi3"
)

// Converter converts OpenAPI specs to suite documents
type Converter struct {
	baseURL       string
	includeTags   []string
	excludeTags   []string
	includeOnly   []string // specific operation IDs
	generateTests bool
	chain         bool
	logger        *slog.Logger
}

// Option is a functional option for Converter
type Option func(*Converter)

// WithBaseURL sets a custom base URL, overriding the one from spec
func WithBaseURL(url string) Option {
	return func(c *Converter) {
		c.baseURL = url
	}
}

// WithTags filters operations by tags
func WithTags(tags []string) Option {
	return func(c *Converter) {
		c.includeTags = tags
	}
}

// WithExcludeTags excludes operations with these tags
func WithExcludeTags(tags []string) Option {
	return func(c *Converter) {
		c.excludeTags = tags
	}
}

// WithOperations filters to specific operation IDs
func WithOperations(ops []string) Option {
	return func(c *Converter) {
		c.includeOnly = ops
	}
}

// WithTests generates status and content-type assertions from responses
func WithTests(generate bool) Option {
	return func(c *Converter) {
		c.generateTests = generate
	}
}

// WithChaining links item operations such as GET /pets/{petId} to the POST
// on their collection, which then extracts the id from its response.
func WithChaining(enabled bool) Option {
	return func(c *Converter) {
		c.chain = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		generateTests: true,
		chain:         true,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertFile loads an OpenAPI document from a file path or http(s) URL.
func (c *Converter) ConvertFile(ctx context.Context, path string) (*loader.SuiteDocument, error) {
	l := openapi3.NewLoader()
	l.IsExternalRefsAllowed = true
	l.Context = ctx

	var doc *openapi3.T
	var err error
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		var u *url.URL
		u, err = url.Parse(path)
		if err == nil {
			doc, err = l.LoadFromURI(u)
		}
	} else {
		doc, err = l.LoadFromFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return c.Convert(ctx, doc)
}

// ConvertToFile converts specPath and writes the suite as YAML.
func (c *Converter) ConvertToFile(ctx context.Context, specPath, outputPath string) (*loader.SuiteDocument, error) {
	doc, err := c.ConvertFile(ctx, specPath)
	if err != nil {
		return nil, err
	}
	if err := loader.WriteYAML(outputPath, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type operation struct {
	path   string
	method string
	op     *openapi3.Operation
	shared openapi3.Parameters
}

func (c *Converter) Convert(ctx context.Context, doc *openapi3.T) (*loader.SuiteDocument, error) {
	if err := doc.Validate(ctx); err != nil {
		// Many published specs have minor validation issues; convert anyway.
		c.logger.Warn("OpenAPI spec validation", "error", err)
	}

	suite := &loader.SuiteDocument{BaseURL: c.baseURL}
	if suite.BaseURL == "" {
		suite.BaseURL = c.getBaseURL(doc)
	}
	if doc.Info != nil {
		suite.Name = doc.Info.Title
	}

	ops := c.operations(doc)
	used := make(map[string]int)
	ids := make([]string, len(ops))
	for i, o := range ops {
		ids[i] = uniqueID(used, caseID(o))
	}

	creators := make(map[string]int)
	if c.chain {
		for i, o := range ops {
			if o.method == "POST" && !strings.HasSuffix(o.path, "}") {
				if _, seen := creators[o.path]; !seen {
					creators[o.path] = i
				}
			}
		}
	}

	suite.TestCases = make([]loader.CaseDocument, len(ops))
	for i, o := range ops {
		tc, err := c.convertOperation(ids[i], o)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", o.method, o.path, err)
		}
		suite.TestCases[i] = tc
	}

	if c.chain {
		for i, o := range ops {
			parent, param, ok := itemParent(o.path)
			if !ok {
				continue
			}
			ci, ok := creators[parent]
			if !ok || ci == i {
				continue
			}
			suite.TestCases[i].DependsOn = ids[ci]
			creator := &suite.TestCases[ci]
			if creator.ExtractVars == nil {
				creator.ExtractVars = make(map[string]string)
			}
			creator.ExtractVars[param] = "$.id"
		}
	}
	return suite, nil
}

func (c *Converter) operations(doc *openapi3.T) []operation {
	if doc.Paths == nil {
		return nil
	}
	paths := doc.Paths.InMatchingOrder()
	slices.Sort(paths)

	var out []operation
	for _, path := range paths {
		item := doc.Paths.Value(path)
		if item == nil {
			continue
		}
		for _, m := range []struct {
			method string
			op     *openapi3.Operation
		}{
			{"POST", item.Post},
			{"GET", item.Get},
			{"PUT", item.Put},
			{"PATCH", item.Patch},
			{"DELETE", item.Delete},
			{"HEAD", item.Head},
			{"OPTIONS", item.Options},
		} {
			if m.op == nil || !c.shouldInclude(m.op) {
				continue
			}
			out = append(out, operation{path: path, method: m.method, op: m.op, shared: item.Parameters})
		}
	}
	return out
}

func (c *Converter) getBaseURL(doc *openapi3.T) string {
	if len(doc.Servers) > 0 && doc.Servers[0].URL != "" {
		return doc.Servers[0].URL
	}
	return "http://localhost:3000"
}

func (c *Converter) shouldInclude(op *openapi3.Operation) bool {
	if len(c.includeOnly) > 0 && !slices.Contains(c.includeOnly, op.OperationID) {
		return false
	}
	if len(c.includeTags) > 0 && !slices.ContainsFunc(op.Tags, func(t string) bool {
		return slices.Contains(c.includeTags, t)
	}) {
		return false
	}
	for _, tag := range op.Tags {
		if slices.Contains(c.excludeTags, tag) {
			return false
		}
	}
	return true
}

func (c *Converter) convertOperation(id string, o operation) (loader.CaseDocument, error) {
	tc := loader.CaseDocument{
		ID:     id,
		Name:   o.op.Summary,
		Method: o.method,
		Path:   convertPathParams(o.path),
		Tags:   o.op.Tags,
	}
	if len(o.op.Tags) > 0 {
		tc.Module = o.op.Tags[0]
	}
	if o.op.Description != "" {
		tc.Description = strings.TrimSpace(o.op.Description)
	}

	params := append(slices.Clone(o.shared), o.op.Parameters...)
	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := ref.Value
		switch p.In {
		case "query":
			if tc.Params == nil {
				tc.Params = make(map[string]any)
			}
			tc.Params[p.Name] = paramExample(p)
		case "header":
			if tc.Headers == nil {
				tc.Headers = make(map[string]any)
			}
			tc.Headers[p.Name] = paramExample(p)
		}
	}

	if rb := o.op.RequestBody; rb != nil && rb.Value != nil {
		contentType, body := requestBody(rb.Value)
		if contentType != "" {
			if tc.Headers == nil {
				tc.Headers = make(map[string]any)
			}
			tc.Headers["Content-Type"] = contentType
			tc.Body = body
		}
	}

	if c.generateTests {
		rules, err := generateAssertions(o.op)
		if err != nil {
			return tc, err
		}
		tc.Asserts = rules
	}
	return tc, nil
}

func caseID(o operation) string {
	if o.op.OperationID != "" {
		return sanitizeName(o.op.OperationID)
	}
	return strings.ToLower(o.method) + sanitizeName(toTitle(strings.NewReplacer("{", "", "}", "").Replace(o.path)))
}

func uniqueID(used map[string]int, id string) string {
	used[id]++
	if n := used[id]; n > 1 {
		return id + "_" + strconv.Itoa(n)
	}
	return id
}

// itemParent splits /pets/{petId} into /pets and petId.
func itemParent(path string) (string, string, bool) {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "", "", false
	}
	last := path[i+1:]
	if !strings.HasPrefix(last, "{") || !strings.HasSuffix(last, "}") {
		return "", "", false
	}
	return path[:i], last[1 : len(last)-1], true
}

// convertPathParams turns {param} into ${param} placeholders.
func convertPathParams(path string) string {
	var b strings.Builder
	for _, r := range path {
		if r == '{' {
			b.WriteString("${")
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func paramExample(p *openapi3.Parameter) any {
	if p.Example != nil {
		return p.Example
	}
	if p.Schema != nil && p.Schema.Value != nil {
		if v := exampleValue(p.Schema.Value, 0); v != nil {
			return v
		}
	}
	return "${" + p.Name + "}"
}

func requestBody(rb *openapi3.RequestBody) (string, any) {
	for _, ct := range sortedKeys(rb.Content) {
		if mt := rb.Content[ct]; strings.Contains(ct, "json") && mt.Schema != nil {
			return "application/json", exampleValue(mt.Schema.Value, 0)
		}
	}
	for _, ct := range sortedKeys(rb.Content) {
		if mt := rb.Content[ct]; strings.Contains(ct, "form") && mt.Schema != nil {
			return "application/x-www-form-urlencoded", exampleValue(mt.Schema.Value, 0)
		}
	}
	return "", nil
}

const maxSchemaDepth = 5

// exampleValue builds a sample value from a schema, preferring declared
// examples. Nesting deeper than maxSchemaDepth is cut off.
func exampleValue(schema *openapi3.Schema, depth int) any {
	if schema == nil || depth > maxSchemaDepth {
		return nil
	}
	if schema.Example != nil {
		return schema.Example
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	types := schema.Type.Slice()
	if len(types) == 0 {
		if len(schema.Properties) > 0 {
			types = []string{"object"}
		} else {
			return nil
		}
	}

	switch types[0] {
	case "object":
		obj := make(map[string]any, len(schema.Properties))
		for _, name := range sortedKeys(schema.Properties) {
			if ref := schema.Properties[name]; ref != nil {
				obj[name] = exampleValue(ref.Value, depth+1)
			}
		}
		return obj
	case "array":
		if schema.Items != nil && schema.Items.Value != nil {
			return []any{exampleValue(schema.Items.Value, depth+1)}
		}
		return []any{}
	case "string":
		switch schema.Format {
		case "date":
			return "${date()}"
		case "date-time":
			return "${now()}"
		case "email":
			return "${randomEmail()}"
		case "uuid":
			return "${uuid()}"
		}
		return "example"
	case "integer":
		if schema.Min != nil {
			return int64(*schema.Min)
		}
		return 1
	case "number":
		if schema.Min != nil {
			return *schema.Min
		}
		return 1.0
	case "boolean":
		return true
	default:
		return nil
	}
}

func generateAssertions(op *openapi3.Operation) ([]assertions.Rule, error) {
	code := 200
	jsonBody := false
	if op.Responses != nil {
		for _, key := range sortedKeys(op.Responses.Map()) {
			ref := op.Responses.Value(key)
			if !strings.HasPrefix(key, "2") || ref == nil || ref.Value == nil {
				continue
			}
			if n, err := strconv.Atoi(key); err == nil {
				code = n
			}
			for ct := range ref.Value.Content {
				if strings.Contains(ct, "json") {
					jsonBody = true
				}
			}
			break
		}
	}

	raws := []map[string]any{{"type": "status_code", "value": float64(code)}}
	if jsonBody {
		raws = append(raws, map[string]any{
			"type": "header", "name": "Content-Type", "op": "contains", "value": "application/json",
		})
	}
	return assertions.CompileAll(raws)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sanitizeName(name string) string {
	result := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
	for strings.Contains(result, "__") {
		result = strings.ReplaceAll(result, "__", "_")
	}
	return strings.Trim(result, "_")
}

func toTitle(s string) string {
	var result strings.Builder
	capitalizeNext := true
	for _, r := range s {
		if r == '/' || r == '-' || r == '_' || r == ' ' {
			capitalizeNext = true
			continue
		}
		if capitalizeNext && r >= 'a' && r <= 'z' {
			result.WriteRune(r - 32)
		} else {
			result.WriteRune(r)
		}
		capitalizeNext = false
	}
	return result.String()
}
