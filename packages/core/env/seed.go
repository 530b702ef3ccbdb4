package env

import (
	"fmt"
	"os"
	"strings"
)

// VarPrefix marks process environment variables that seed the store.
// HITCHAIN_VAR_token=abc becomes the variable "token".
const VarPrefix = "HITCHAIN_VAR_"

// Sources are the places initial variables come from. Later fields win:
// suite < environment < dotenv < process < overrides.
type Sources struct {
	Suite       map[string]any
	Environment map[string]any
	DotEnv      map[string]string
	Process     map[string]string
	Overrides   map[string]string
}

// Merge flattens the sources into one map.
func (s Sources) Merge() map[string]any {
	result := make(map[string]any, len(s.Suite)+len(s.Environment)+len(s.DotEnv)+len(s.Process)+len(s.Overrides))
	for _, src := range []map[string]any{s.Suite, s.Environment} {
		for k, v := range src {
			result[k] = v
		}
	}
	for _, src := range []map[string]string{s.DotEnv, s.Process, s.Overrides} {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// FromProcess returns the variables set in the process environment under
// prefix, with the prefix stripped.
func FromProcess(prefix string) map[string]string {
	return fromEnviron(os.Environ(), prefix)
}

func fromEnviron(environ []string, prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range environ {
		key, value, ok := strings.Cut(e, "=")
		if !ok || !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
			continue
		}
		result[key[len(prefix):]] = value
	}
	return result
}

// ParseAssignments parses name=value pairs such as repeated --var flags.
func ParseAssignments(pairs []string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q (expected name=value)", p)
		}
		result[key] = value
	}
	return result, nil
}
