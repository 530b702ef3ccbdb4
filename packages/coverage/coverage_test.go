package coverage

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

const usersSpec = `
openapi: 3.0.3
info:
  title: Users API
  version: 1.0.0
servers:
  - url: https://api.example.com/v1
paths:
  /users:
    get:
      operationId: listUsers
      tags: [users]
      responses:
        "200": {description: ok}
    post:
      operationId: createUser
      tags: [users]
      responses:
        "201": {description: created}
  /users/me:
    get:
      operationId: currentUser
      tags: [users]
      responses:
        "200": {description: ok}
  /users/{id}:
    get:
      operationId: getUser
      tags: [users]
      responses:
        "200": {description: ok}
    delete:
      operationId: deleteUser
      tags: [users, admin]
      responses:
        "204": {description: gone}
  /users/{id}/posts/{postId}:
    get:
      operationId: getPost
      tags: [posts]
      responses:
        "200": {description: ok}
`

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	doc, err := openapi3.NewLoader().LoadFromData([]byte(usersSpec))
	require.NoError(t, err)

	a := NewAnalyzer()
	require.NoError(t, a.Load(doc))
	return a
}

func status(t *testing.T, r *Report, method, path string) EndpointStatus {
	t.Helper()
	for _, ep := range r.Endpoints {
		if ep.Method == method && ep.Path == path {
			return ep
		}
	}
	t.Fatalf("endpoint %s %s not in report", method, path)
	return EndpointStatus{}
}

func TestAnalyze_BasicCoverage(t *testing.T) {
	a := newAnalyzer(t)

	report := a.Analyze([]Request{
		{CaseID: "list", Method: "GET", Path: "/users"},
		{CaseID: "create", Method: "post", Path: "/users"},
	})

	assert.Equal(t, "Users API", report.Title)
	assert.Equal(t, 6, report.TotalEndpoints)
	assert.Equal(t, 2, report.CoveredEndpoints)
	assert.InDelta(t, 33.3, report.CoveragePercent, 0.1)
	assert.Equal(t, []string{"create"}, status(t, report, "POST", "/users").CaseIDs)
	assert.False(t, status(t, report, "DELETE", "/users/{id}").Covered)
}

func TestAnalyze_Placeholders(t *testing.T) {
	a := newAnalyzer(t)

	report := a.Analyze([]Request{
		{CaseID: "show", Method: "GET", Path: "/users/${userId}"},
		{CaseID: "post", Method: "GET", Path: "${baseUrl}/users/${userId}/posts/${postId}?expand=1"},
		{CaseID: "drop", Method: "DELETE", Path: "https://api.example.com/v1/users/42"},
	})

	assert.Equal(t, []string{"show"}, status(t, report, "GET", "/users/{id}").CaseIDs)
	assert.Equal(t, []string{"post"}, status(t, report, "GET", "/users/{id}/posts/{postId}").CaseIDs)
	assert.Equal(t, []string{"drop"}, status(t, report, "DELETE", "/users/{id}").CaseIDs)
	assert.Empty(t, report.Unmatched)
}

func TestAnalyze_LiteralPathWinsOverTemplate(t *testing.T) {
	a := newAnalyzer(t)

	report := a.Analyze([]Request{{CaseID: "me", Method: "GET", Path: "/users/me"}})

	assert.True(t, status(t, report, "GET", "/users/me").Covered)
	assert.False(t, status(t, report, "GET", "/users/{id}").Covered)
}

func TestAnalyze_Unmatched(t *testing.T) {
	a := newAnalyzer(t)

	report := a.Analyze([]Request{
		{CaseID: "health", Method: "GET", Path: "/healthz"},
		{CaseID: "put", Method: "PUT", Path: "/users/1"},
	})

	assert.Zero(t, report.CoveredEndpoints)
	require.Len(t, report.Unmatched, 2)
	assert.Equal(t, "health", report.Unmatched[0].CaseID)
}

func TestAnalyze_TagCoverage(t *testing.T) {
	a := newAnalyzer(t)

	report := a.Analyze([]Request{
		{CaseID: "a", Method: "GET", Path: "/users"},
		{CaseID: "b", Method: "GET", Path: "/users"},
	})

	require.Contains(t, report.ByTag, "users")
	assert.Equal(t, 5, report.ByTag["users"].TotalEndpoints)
	assert.Equal(t, 1, report.ByTag["users"].CoveredEndpoints)
	assert.Equal(t, 0, report.ByTag["posts"].CoveredEndpoints)
	assert.Equal(t, []string{"a", "b"}, status(t, report, "GET", "/users").CaseIDs)
}

func TestLoad_NoPaths(t *testing.T) {
	doc, err := openapi3.NewLoader().LoadFromData([]byte("openapi: 3.0.3\ninfo: {title: x, version: '1'}\npaths: {}\n"))
	require.NoError(t, err)

	assert.Error(t, NewAnalyzer().Load(doc))
}

func TestLoadOpenAPI_MissingFile(t *testing.T) {
	err := NewAnalyzer().LoadOpenAPI(context.Background(), "testdata/missing.yaml")
	assert.Error(t, err)
}

func TestFromSuite(t *testing.T) {
	suite := &cases.Suite{Cases: []*cases.TestCase{
		{ID: "a", Method: "GET", Path: "/users"},
		{ID: "b", Method: "POST", Path: "/users"},
	}}

	assert.Len(t, FromSuite(suite, nil), 2)

	only := FromSuite(suite, []string{"b", "unknown"})
	require.Len(t, only, 1)
	assert.Equal(t, Request{CaseID: "b", Method: "POST", Path: "/users"}, only[0])
}

func TestFromRun(t *testing.T) {
	result := &runner.RunResult{
		Order: []string{"create", "skipped", "show"},
		Records: map[string]*runner.Record{
			"create":  {CaseID: "create", Request: http.NewRequest("post", "/users")},
			"skipped": {CaseID: "skipped", Skipped: true},
			"show":    {CaseID: "show", Request: http.NewRequest("GET", "/users/7")},
		},
	}

	reqs := FromRun(result)
	require.Len(t, reqs, 2)
	assert.Equal(t, "POST", reqs[0].Method)
	assert.Equal(t, "/users/7", reqs[1].Path)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/users", "/users"},
		{"users/${id}", "/users/_"},
		{"${baseUrl}/users?x=1", "/users"},
		{"http://localhost:8080", "/"},
		{"https://h/v1/a#frag", "/v1/a"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.in))
		})
	}
}

func TestReport_Format(t *testing.T) {
	report := newAnalyzer(t).Analyze([]Request{
		{CaseID: "list", Method: "GET", Path: "/users"},
		{CaseID: "x", Method: "GET", Path: "/nope"},
	})

	console := report.FormatConsole()
	assert.Contains(t, console, "[x] GET /users  <- list")
	assert.Contains(t, console, "[ ] GET /users/{id}")
	assert.Contains(t, console, "GET /nope (x)")

	js, err := report.FormatJSON()
	require.NoError(t, err)
	assert.Contains(t, js, `"coveredEndpoints": 1`)
	assert.Contains(t, js, `"caseIds": [`)
}
