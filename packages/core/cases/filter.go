package cases

import (
	"slices"
	"strings"
)

// Filter narrows the runnable cases of a suite. Empty fields match
// everything; non-empty fields must all match.
type Filter struct {
	CaseIDs    []string
	Module     string
	Keyword    string
	Tags       []string
	Priorities []Priority
	// IncludeDisabled selects cases whose is_run flag is false.
	IncludeDisabled bool
}

func (f Filter) IsEmpty() bool {
	return len(f.CaseIDs) == 0 && f.Module == "" && f.Keyword == "" &&
		len(f.Tags) == 0 && len(f.Priorities) == 0
}

func (f Filter) Match(tc *TestCase) bool {
	if !tc.Runnable && !f.IncludeDisabled {
		return false
	}
	if len(f.CaseIDs) > 0 && !slices.Contains(f.CaseIDs, tc.ID) {
		return false
	}
	if f.Module != "" && !strings.EqualFold(f.Module, tc.Module) {
		return false
	}
	if f.Keyword != "" && !matchesKeyword(tc, f.Keyword) {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(tc, f.Tags) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, tc.Priority) {
		return false
	}
	return true
}

// Select returns the ids of matching cases in declaration order.
func Select(all []*TestCase, f Filter) []string {
	var ids []string
	for _, tc := range all {
		if f.Match(tc) {
			ids = append(ids, tc.ID)
		}
	}
	return ids
}

// matchesKeyword treats a keyword containing '*' as a glob over the id and
// name. Anything else is a case-insensitive substring match.
func matchesKeyword(tc *TestCase, keyword string) bool {
	if strings.Contains(keyword, "*") {
		return MatchesPattern(tc.ID, keyword) || MatchesPattern(tc.Name, keyword)
	}
	kw := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(tc.ID), kw) ||
		strings.Contains(strings.ToLower(tc.Name), kw)
}

// MatchesPattern supports a leading and/or trailing '*' wildcard.
func MatchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	if pattern == "*" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}

	if pattern[0] == '*' {
		return strings.HasSuffix(name, pattern[1:])
	}

	if pattern[len(pattern)-1] == '*' {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}

	return name == pattern
}

func hasAnyTag(tc *TestCase, filters []string) bool {
	for _, filter := range filters {
		if tc.HasTag(filter) {
			return true
		}
	}
	return false
}
