package capture

import (
	"sort"
	"testing"

	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: 201,
		Headers:    map[string]string{"Content-Type": "application/json", "Location": "/users/9"},
		Body:       []byte(body),
	}
}

func TestExtractor_Extract(t *testing.T) {
	resp := jsonResponse(`{"data": {"token": "abc", "items": [{"id": 1}, {"id": 2}]}, "ok": true}`)
	e := NewExtractor()

	tests := []struct {
		expr string
		want any
	}{
		{"$.data.token", "abc"},
		{"data.token", "abc"},
		{"$.data.items[1].id", float64(2)},
		{"data.items.0.id", float64(1)},
		{"$.ok", true},
		{"header:location", "/users/9"},
		{"status", 201},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok := e.Extract(resp, tt.expr)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_Missing(t *testing.T) {
	e := NewExtractor()
	resp := jsonResponse(`{"a": 1}`)

	_, ok := e.Extract(resp, "$.b")
	assert.False(t, ok)

	_, ok = e.Extract(resp, "header:X-Nope")
	assert.False(t, ok)

	_, ok = e.Extract(nil, "$.a")
	assert.False(t, ok)
}

func TestExtractor_NonJSONBody(t *testing.T) {
	e := NewExtractor()
	resp := &http.Response{Headers: map[string]string{"Content-Type": "text/plain"}, Body: []byte("pong")}

	v, ok := e.Extract(resp, "body")
	require.True(t, ok)
	assert.Equal(t, "pong", v)

	_, ok = e.Extract(resp, "$.a")
	assert.False(t, ok)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "items.0.tags.1", NormalizePath("$.items[0].tags[1]"))
	assert.Equal(t, "0.id", NormalizePath("[0].id"))
	assert.Equal(t, "a.b", NormalizePath("a.b"))
}

func TestExtractAll(t *testing.T) {
	resp := jsonResponse(`{"id": 7}`)
	got, missing := ExtractAll(resp, map[string]string{"user_id": "$.id", "name": "$.name", "code": "status"})

	assert.Equal(t, map[string]any{"user_id": float64(7), "code": 201}, got)
	sort.Strings(missing)
	assert.Equal(t, []string{"name"}, missing)
}
