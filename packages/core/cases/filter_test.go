package cases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCases() []*TestCase {
	return []*TestCase{
		{ID: "login_001", Name: "Login ok", Module: "auth", Tags: []string{"smoke"}, Priority: P0, Runnable: true},
		{ID: "login_002", Name: "Login bad password", Module: "auth", Tags: []string{"negative"}, Priority: P1, Runnable: true},
		{ID: "user_001", Name: "Create user", Module: "users", Tags: []string{"smoke", "crud"}, Priority: P1, Runnable: true},
		{ID: "user_002", Name: "Delete user", Module: "users", Priority: P2, Runnable: false},
	}
}

func TestSelect(t *testing.T) {
	all := sampleCases()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter skips disabled", Filter{}, []string{"login_001", "login_002", "user_001"}},
		{"include disabled", Filter{IncludeDisabled: true}, []string{"login_001", "login_002", "user_001", "user_002"}},
		{"by id", Filter{CaseIDs: []string{"user_001"}}, []string{"user_001"}},
		{"by module", Filter{Module: "AUTH"}, []string{"login_001", "login_002"}},
		{"keyword substring on name", Filter{Keyword: "password"}, []string{"login_002"}},
		{"keyword glob on id", Filter{Keyword: "user_*"}, []string{"user_001"}},
		{"tags any", Filter{Tags: []string{"crud", "negative"}}, []string{"login_002", "user_001"}},
		{"priority", Filter{Priorities: []Priority{P0}}, []string{"login_001"}},
		{"combined", Filter{Module: "users", Tags: []string{"smoke"}}, []string{"user_001"}},
		{"no match", Filter{Module: "billing"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(all, tt.filter))
		})
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"anything", "", true},
		{"anything", "*", true},
		{"create_user", "create*", true},
		{"create_user", "*user", true},
		{"create_user", "*eat*", true},
		{"create_user", "delete*", false},
		{"create_user", "create_user", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesPattern(tt.name, tt.pattern), "%s vs %s", tt.name, tt.pattern)
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" p2 ")
	require.NoError(t, err)
	assert.Equal(t, P2, p)

	_, err = ParsePriority("high")
	assert.Error(t, err)
}

func TestSuite_Merge(t *testing.T) {
	a := &Suite{Files: []string{"a.yaml"}, Cases: sampleCases()[:1]}
	b := &Suite{Name: "b", BaseURL: "http://b", Files: []string{"b.yaml"}, Variables: map[string]any{"x": 1}, Cases: sampleCases()[1:2]}

	a.Merge(b)
	assert.Equal(t, "b", a.Name)
	assert.Equal(t, "http://b", a.BaseURL)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, a.Files)
	assert.Len(t, a.Cases, 2)
	assert.Equal(t, 1, a.Variables["x"])

	tc, ok := a.Case("login_002")
	require.True(t, ok)
	assert.Equal(t, "Login bad password", tc.Title())
}
