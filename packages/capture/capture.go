package capture

import (
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/tidwall/gjson"
)

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// Extractor evaluates extraction expressions against a response. It is
// stateless and safe for concurrent use.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract resolves expr against resp. Supported forms:
//
//	$.data.items[0].id   JSON path with optional "$." prefix
//	data.items.0.id      gjson path
//	header:X-Request-Id  response header
//	status               status code
//	duration             elapsed milliseconds
//	body                 whole body (parsed JSON when possible)
func (e *Extractor) Extract(resp *http.Response, expr string) (any, bool) {
	if resp == nil {
		return nil, false
	}
	expr = strings.TrimSpace(expr)

	switch {
	case expr == "status":
		return resp.StatusCode, true
	case expr == "duration":
		return resp.DurationMs(), true
	case strings.HasPrefix(expr, "header:"):
		return extractFromHeader(resp, strings.TrimSpace(strings.TrimPrefix(expr, "header:")))
	case expr == "body" || expr == "$":
		return extractFromBody(resp, "")
	default:
		return extractFromBody(resp, NormalizePath(expr))
	}
}

// NormalizePath turns a JSONPath-style expression into gjson syntax,
// e.g. "$.items[0].tags[1]" becomes "items.0.tags.1".
func NormalizePath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(path, ".")
}

func extractFromBody(resp *http.Response, path string) (any, bool) {
	if !resp.IsJSON() || !gjson.ValidBytes(resp.Body) {
		if path == "" {
			return resp.BodyString(), true
		}
		return nil, false
	}

	body := gjson.ParseBytes(resp.Body)
	if path == "" {
		return body.Value(), true
	}

	result := body.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func extractFromHeader(resp *http.Response, name string) (any, bool) {
	value := resp.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractAll evaluates every expression in exprs and returns the values that
// resolved, plus the names that did not.
func ExtractAll(resp *http.Response, exprs map[string]string) (map[string]any, []string) {
	e := NewExtractor()
	results := make(map[string]any, len(exprs))
	var missing []string

	for name, expr := range exprs {
		if value, ok := e.Extract(resp, expr); ok {
			results[name] = value
		} else {
			missing = append(missing, name)
		}
	}

	return results, missing
}
