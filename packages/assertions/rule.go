package assertions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindStatusCode   Kind = "status_code"
	KindJSONPath     Kind = "json_path"
	KindTextContains Kind = "text_contains"
	KindHeader       Kind = "header"
	KindResponseTime Kind = "response_time"
	KindJSONSchema   Kind = "json_schema"
	KindContainsJSON Kind = "contains_json"
)

type Operator string

const (
	OpEquals      Operator = "=="
	OpNotEquals   Operator = "!="
	OpGreater     Operator = ">"
	OpGreaterEq   Operator = ">="
	OpLess        Operator = "<"
	OpLessEq      Operator = "<="
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpMatches     Operator = "matches"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
	OpIn          Operator = "in"
	OpLength      Operator = "length"
	OpType        Operator = "type"
)

var operatorAliases = map[string]Operator{
	"":           OpEquals,
	"eq":         OpEquals,
	"equals":     OpEquals,
	"ne":         OpNotEquals,
	"not_equals": OpNotEquals,
	"gt":         OpGreater,
	"gte":        OpGreaterEq,
	"lt":         OpLess,
	"lte":        OpLessEq,
}

var knownOperators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true, OpGreater: true, OpGreaterEq: true,
	OpLess: true, OpLessEq: true, OpContains: true, OpNotContains: true,
	OpStartsWith: true, OpEndsWith: true, OpMatches: true, OpExists: true,
	OpNotExists: true, OpIn: true, OpLength: true, OpType: true,
}

func parseOperator(s string) (Operator, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if op, ok := operatorAliases[s]; ok {
		return op, nil
	}
	op := Operator(s)
	if !knownOperators[op] {
		return "", fmt.Errorf("unknown operator %q", s)
	}
	return op, nil
}

func (op Operator) needsValue() bool {
	return op != OpExists && op != OpNotExists
}

// Rule is a single compiled assertion. Build rules with Compile or by
// unmarshalling YAML/JSON; the zero value has no kind and always fails.
type Rule struct {
	Kind     Kind
	Expr     string
	Operator Operator
	Expected any

	raw     map[string]any
	schema  *gojsonschema.Schema
	pattern *regexp.Regexp
}

// Compile validates a raw rule definition such as
//
//	{"type": "json_path", "expr": "$.code", "value": 0}
//
// Unknown types and operators are rejected here, never at run time.
func Compile(raw map[string]any) (Rule, error) {
	kindStr, _ := raw["type"].(string)
	r := Rule{Kind: Kind(kindStr), raw: raw}

	r.Expected, _ = firstOf(raw, "value", "expected")
	if expr, ok := firstOf(raw, "expr", "path", "name"); ok {
		r.Expr = fmt.Sprintf("%v", expr)
	}
	opStr, _ := raw["op"].(string)
	if opStr == "" {
		opStr, _ = raw["operator"].(string)
	}

	op, err := parseOperator(opStr)
	if err != nil {
		return Rule{}, fmt.Errorf("%s rule: %w", kindStr, err)
	}
	r.Operator = op
	_, hasValue := firstOf(raw, "value", "expected")

	switch r.Kind {
	case KindStatusCode:
		if !hasValue {
			return Rule{}, fmt.Errorf("status_code rule: value is required")
		}
		if _, isList := r.Expected.([]any); isList && opStr == "" {
			r.Operator = OpIn
		}
	case KindJSONPath:
		if r.Expr == "" {
			return Rule{}, fmt.Errorf("json_path rule: expr is required")
		}
		if r.Operator.needsValue() && !hasValue {
			return Rule{}, fmt.Errorf("json_path rule %q: value is required", r.Expr)
		}
	case KindTextContains:
		if _, ok := r.Expected.(string); !ok {
			return Rule{}, fmt.Errorf("text_contains rule: value must be a string")
		}
	case KindHeader:
		if r.Expr == "" {
			return Rule{}, fmt.Errorf("header rule: name is required")
		}
		if r.Operator.needsValue() && !hasValue {
			return Rule{}, fmt.Errorf("header rule %q: value is required", r.Expr)
		}
	case KindResponseTime:
		if _, ok := toFloat64(r.Expected); !ok {
			return Rule{}, fmt.Errorf("response_time rule: value must be a number of milliseconds")
		}
		if opStr == "" {
			r.Operator = OpLessEq
		}
	case KindJSONSchema:
		schema, ok := raw["schema"]
		if !ok {
			schema = r.Expected
		}
		if schema == nil {
			return Rule{}, fmt.Errorf("json_schema rule: schema is required")
		}
		r.Expected = schema
		var loader gojsonschema.JSONLoader
		if s, isString := schema.(string); isString {
			loader = gojsonschema.NewStringLoader(s)
		} else {
			loader = gojsonschema.NewGoLoader(schema)
		}
		r.schema, err = gojsonschema.NewSchema(loader)
		if err != nil {
			return Rule{}, fmt.Errorf("json_schema rule: %w", err)
		}
	case KindContainsJSON:
		switch r.Expected.(type) {
		case map[string]any, []any:
		default:
			return Rule{}, fmt.Errorf("contains_json rule: value must be an object or array")
		}
	case "":
		return Rule{}, fmt.Errorf("assertion rule is missing a type")
	default:
		return Rule{}, fmt.Errorf("unknown assertion type %q", r.Kind)
	}

	if r.Operator == OpMatches {
		pattern := strings.Trim(fmt.Sprintf("%v", r.Expected), "/")
		r.pattern, err = regexp.Compile(pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("%s rule: invalid regex pattern: %w", r.Kind, err)
		}
	}

	return r, nil
}

// CompileAll compiles every definition and reports the index of the first
// invalid one.
func CompileAll(raws []map[string]any) ([]Rule, error) {
	rules := make([]Rule, 0, len(raws))
	for i, raw := range raws {
		r, err := Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("assert[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func firstOf(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// Subject describes what the rule inspects, for reports.
func (r Rule) Subject() string {
	switch r.Kind {
	case KindStatusCode:
		return "status"
	case KindHeader:
		return "header " + r.Expr
	case KindResponseTime:
		return "duration"
	case KindTextContains, KindContainsJSON:
		return "body"
	default:
		if r.Expr != "" {
			return r.Expr
		}
		return "body"
	}
}

// Raw returns the definition the rule was compiled from.
func (r Rule) Raw() map[string]any {
	return r.raw
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.raw)
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	compiled, err := Compile(raw)
	if err != nil {
		return err
	}
	*r = compiled
	return nil
}

func (r Rule) MarshalYAML() (any, error) {
	return r.raw, nil
}

func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	compiled, err := Compile(normalizeYAML(raw).(map[string]any))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*r = compiled
	return nil
}

// normalizeYAML converts yaml.v3 integers to float64 so rules loaded from
// YAML compare the same way as rules loaded from JSON.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			val[k] = normalizeYAML(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = normalizeYAML(child)
		}
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}
