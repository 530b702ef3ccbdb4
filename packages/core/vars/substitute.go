package vars

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// A token is ${name} or ${fn(args)} with nothing around the name. Anything
// else between ${ and }, such as "${ name }" or "${a.b}", is left as literal
// text.
var (
	placeholderPattern = regexp.MustCompile(`\$\{(\w+(?:\([^)}]*\))?)\}`)
	identPattern       = regexp.MustCompile(`^\w+$`)
)

// Substitute replaces every ${name} token with the string form of the stored
// value and every ${fn(args)} token with the builtin result. Tokens that
// cannot be resolved stay in place and are reported through the WarnFunc.
func (s *Store) Substitute(text string) string {
	if !strings.Contains(text, "${") {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := match[2 : len(match)-1]

		if identPattern.MatchString(expr) {
			if v, ok := s.Get(expr); ok {
				return Stringify(v)
			}
			s.warnf("unresolved placeholder", "name", expr)
			return match
		}

		if s.funcs != nil {
			if v, ok := s.funcs.Call(expr); ok {
				return Stringify(v)
			}
		}
		s.warnf("unresolved placeholder", "name", expr)
		return match
	})
}

// Missing lists the placeholder names in text that have no live value.
func (s *Store) Missing(text string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		expr := m[1]
		if seen[expr] {
			continue
		}
		seen[expr] = true

		if identPattern.MatchString(expr) {
			if _, ok := s.Get(expr); ok {
				continue
			}
		} else if s.funcs != nil {
			if _, ok := s.funcs.Call(expr); ok {
				continue
			}
		}
		missing = append(missing, expr)
	}
	return missing
}

// Stringify renders a stored value the way it is spliced into request data.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return fmt.Sprintf("%.0f", val)
		}
		return fmt.Sprintf("%v", val)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}
