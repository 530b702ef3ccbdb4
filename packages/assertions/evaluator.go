package assertions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

type Result struct {
	Kind     Kind   `json:"type"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Subject  string `json:"subject"`
	Operator string `json:"operator,omitempty"`
}

// Outcome is the verdict for a whole rule list. Passed is the logical AND of
// every detail.
type Outcome struct {
	Passed  bool      `json:"passed"`
	Details []*Result `json:"details"`
}

func (o *Outcome) Failed() []*Result {
	var failed []*Result
	for _, r := range o.Details {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Evaluator checks compiled rules against a response. It holds no state and
// is safe for concurrent use.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

type target struct {
	response *http.Response
	bodyJSON gjson.Result
	isJSON   bool
}

func newTarget(resp *http.Response) *target {
	t := &target{response: resp}
	if resp.IsJSON() && gjson.ValidBytes(resp.Body) {
		t.bodyJSON = gjson.ParseBytes(resp.Body)
		t.isJSON = true
	}
	return t
}

func (e *Evaluator) Evaluate(resp *http.Response, rules []Rule) *Outcome {
	out := &Outcome{Passed: true, Details: make([]*Result, 0, len(rules))}
	t := newTarget(resp)
	for _, r := range rules {
		res := t.evaluate(r)
		out.Details = append(out.Details, res)
		if !res.Passed {
			out.Passed = false
		}
	}
	return out
}

func (t *target) evaluate(r Rule) *Result {
	result := &Result{
		Kind:     r.Kind,
		Subject:  r.Subject(),
		Operator: string(r.Operator),
		Expected: r.Expected,
	}

	switch r.Kind {
	case KindStatusCode:
		result.Actual = t.response.StatusCode
		result.Passed, result.Message = compare(result.Actual, r)
	case KindJSONPath:
		if !t.isJSON {
			result.Message = "response body is not JSON"
			return result
		}
		actual, found := t.jsonPath(r.Expr)
		result.Actual = actual
		if !found && r.Operator != OpNotExists && r.Operator != OpExists {
			result.Message = fmt.Sprintf("path %s not found", r.Expr)
			return result
		}
		result.Passed, result.Message = compare(actual, r)
	case KindTextContains:
		body := t.response.BodyString()
		result.Actual = truncate(body, 200)
		result.Passed = strings.Contains(body, r.Expected.(string))
		if !result.Passed {
			result.Message = fmt.Sprintf("response text does not contain '%v'", r.Expected)
		}
	case KindHeader:
		v := t.response.Header(r.Expr)
		var actual any
		if v != "" {
			actual = v
		}
		result.Actual = actual
		result.Passed, result.Message = compare(actual, r)
	case KindResponseTime:
		result.Actual = t.response.DurationMs()
		result.Passed, result.Message = compare(result.Actual, r)
	case KindJSONSchema:
		result.Expected = "schema"
		result.Passed, result.Message = t.validateSchema(r)
	case KindContainsJSON:
		if !t.isJSON {
			result.Message = "response body is not JSON"
			return result
		}
		actual := t.bodyJSON.Value()
		if r.Expr != "" {
			actual, _ = t.jsonPath(r.Expr)
		}
		result.Passed, result.Message = containsJSON(actual, r.Expected)
	default:
		result.Message = fmt.Sprintf("unknown assertion type %q", r.Kind)
	}
	return result
}

func (t *target) jsonPath(expr string) (any, bool) {
	path := capture.NormalizePath(expr)
	if path == "" {
		return t.bodyJSON.Value(), true
	}
	res := t.bodyJSON.Get(path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

func (t *target) validateSchema(r Rule) (bool, string) {
	if !t.isJSON {
		return false, "response body is not JSON"
	}

	doc := gojsonschema.NewBytesLoader(t.response.Body)
	if r.Expr != "" {
		actual, _ := t.jsonPath(r.Expr)
		doc = gojsonschema.NewGoLoader(actual)
	}

	res, err := r.schema.Validate(doc)
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}
	if res.Valid() {
		return true, ""
	}

	var errs []string
	for _, desc := range res.Errors() {
		errs = append(errs, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(errs, "; "))
}

func compare(actual any, r Rule) (bool, string) {
	expected := r.Expected
	switch r.Operator {
	case OpEquals:
		return equals(actual, expected)
	case OpNotEquals:
		if ok, _ := equals(actual, expected); ok {
			return false, fmt.Sprintf("expected not to equal %v", expected)
		}
		return true, ""
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		return compareNumeric(actual, expected, string(r.Operator))
	case OpContains:
		return contains(actual, expected)
	case OpNotContains:
		if ok, _ := contains(actual, expected); ok {
			return false, fmt.Sprintf("expected not to contain %v", expected)
		}
		return true, ""
	case OpStartsWith:
		if strings.HasPrefix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
	case OpEndsWith:
		if strings.HasSuffix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
	case OpMatches:
		if r.pattern != nil && r.pattern.MatchString(fmt.Sprintf("%v", actual)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected '%v' to match /%v/", actual, expected)
	case OpExists:
		if actual == nil {
			return false, "expected to exist"
		}
		return true, ""
	case OpNotExists:
		if actual != nil {
			return false, "expected not to exist"
		}
		return true, ""
	case OpIn:
		return in(actual, expected)
	case OpLength:
		return length(actual, expected)
	case OpType:
		return typeCheck(actual, expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", r.Operator)
	}
}

func equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if isScalar(actual) && isScalar(expected) && fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func contains(actual, expected any) (bool, string) {
	if arr, ok := actual.([]any); ok {
		for _, item := range arr {
			if passed, _ := equals(item, expected); passed {
				return true, ""
			}
		}
		return false, fmt.Sprintf("expected array to include %v", expected)
	}

	if strings.Contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func in(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}

	for _, item := range arr {
		if passed, _ := equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return -1
	}
}

func length(actual, expected any) (bool, string) {
	expectedLen, ok := toFloat64(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := computeLength(actual)
	if actualLen == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}

	if float64(actualLen) == expectedLen {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %v, got %d", expected, actualLen)
}

func typeCheck(actual, expected any) (bool, string) {
	expectedType := fmt.Sprintf("%v", expected)
	var actualType string

	switch actual.(type) {
	case nil:
		actualType = "null"
	case bool:
		actualType = "boolean"
	case float64, float32, int, int64, int32:
		actualType = "number"
	case string:
		actualType = "string"
	case []any:
		actualType = "array"
	case map[string]any:
		actualType = "object"
	default:
		actualType = reflect.TypeOf(actual).String()
	}

	if actualType == expectedType {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, actualType)
}

// containsJSON reports whether every key of expected is present in actual
// with an equal value. Nested objects are matched partially as well; arrays
// and scalars must be equal.
func containsJSON(actual, expected any) (bool, string) {
	type pair struct {
		path     string
		actual   any
		expected any
	}

	stack := []pair{{path: "$", actual: actual, expected: expected}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		want, isObject := p.expected.(map[string]any)
		if !isObject {
			if ok, _ := equals(p.actual, p.expected); !ok {
				return false, fmt.Sprintf("%s: expected %s, got %s", p.path, compact(p.expected), compact(p.actual))
			}
			continue
		}

		got, ok := p.actual.(map[string]any)
		if !ok {
			return false, fmt.Sprintf("%s: expected an object, got %T", p.path, p.actual)
		}
		for k, v := range want {
			child, present := got[k]
			if !present {
				return false, fmt.Sprintf("%s.%s: missing", p.path, k)
			}
			stack = append(stack, pair{path: p.path + "." + k, actual: child, expected: v})
		}
	}
	return true, ""
}

func isScalar(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return false
	default:
		return true
	}
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
