package vars

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name  string
		input string
		vars  map[string]any
		want  string
	}{
		{
			name:  "no placeholders",
			input: "/users",
			want:  "/users",
		},
		{
			name:  "single placeholder",
			input: "/users/${user_id}",
			vars:  map[string]any{"user_id": "42"},
			want:  "/users/42",
		},
		{
			name:  "unresolved stays literal",
			input: "Bearer ${token}",
			want:  "Bearer ${token}",
		},
		{
			name:  "mixed",
			input: "${a}-${b}",
			vars:  map[string]any{"a": "x"},
			want:  "x-${b}",
		},
		{
			name:  "whole float",
			input: "${n}",
			vars:  map[string]any{"n": float64(12)},
			want:  "12",
		},
		{
			name:  "fractional float",
			input: "${n}",
			vars:  map[string]any{"n": 1.5},
			want:  "1.5",
		},
		{
			name:  "map is json",
			input: "${obj}",
			vars:  map[string]any{"obj": map[string]any{"a": float64(1)}},
			want:  `{"a":1}`,
		},
		{
			name:  "bool",
			input: "${flag}",
			vars:  map[string]any{"flag": true},
			want:  "true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.SetAll(tt.vars)
			assert.Equal(t, tt.want, s.Substitute(tt.input))
		})
	}
}

func TestSubstitute_Functions(t *testing.T) {
	s := NewStore()

	got := s.Substitute("${randomString(8)}")
	assert.Len(t, got, 8)

	got = s.Substitute(`${base64("user:pass")}`)
	assert.Equal(t, "dXNlcjpwYXNz", got)

	assert.Equal(t, "${unknownFn()}", s.Substitute("${unknownFn()}"))
}

func TestSubstitute_Warns(t *testing.T) {
	var warned []string
	s := NewStore(WithWarnFunc(func(msg string, args ...any) {
		warned = append(warned, args[1].(string))
	}))

	s.Substitute("${missing} and ${a.b} and ${ spaced }")
	assert.Equal(t, []string{"missing"}, warned)
}

func TestSubstitute_StrictTokens(t *testing.T) {
	s := NewStore()
	s.Set("token", "abc", 0)

	assert.Equal(t, "Bearer ${ token }", s.Substitute("Bearer ${ token }"))
	assert.Equal(t, "${token }|abc", s.Substitute("${token }|${token}"))
	assert.Equal(t, "${to-ken}", s.Substitute("${to-ken}"))
	assert.Nil(t, s.Missing("${ token } ${ other }"))
	assert.Equal(t, []string{"other"}, s.Missing("${token} ${other}"))
}

func TestMissing(t *testing.T) {
	s := NewStore()
	s.Set("have", "x", 0)

	assert.Equal(t, []string{"need"}, s.Missing("${have}/${need}/${need}/${uuid()}"))
	assert.Nil(t, s.Missing("plain"))
}

func TestPrepareData(t *testing.T) {
	s := NewStore()
	s.Set("id", "7", 0)

	in := map[string]any{
		"user": "${id}",
		"list": []any{"${id}", 3, map[string]any{"deep": "${id}"}},
		"tags": []string{"t-${id}"},
		"hdr":  map[string]string{"X-${id}": "${id}"},
		"miss": "${nope}",
		"num":  float64(1),
	}

	out := s.PrepareData(in)
	require.IsType(t, map[string]any{}, out)

	assert.Equal(t, map[string]any{
		"user": "7",
		"list": []any{"7", 3, map[string]any{"deep": "7"}},
		"tags": []string{"t-7"},
		"hdr":  map[string]string{"X-${id}": "7"},
		"miss": "${nope}",
		"num":  float64(1),
	}, out)

	// input is left untouched
	assert.Equal(t, "${id}", in["user"])
	assert.Equal(t, "${id}", in["list"].([]any)[0])
}

func TestPrepareData_KeysVerbatim(t *testing.T) {
	s := NewStore()
	s.Set("a", "x", 0)

	out := s.PrepareData(map[string]any{
		"${a}": "from-template",
		"x":    "literal",
		"hdr":  map[string]string{"${a}": "1", "x": "${a}"},
	})

	assert.Equal(t, map[string]any{
		"${a}": "from-template",
		"x":    "literal",
		"hdr":  map[string]string{"${a}": "1", "x": "x"},
	}, out)
}

func TestPrepareData_DeepNesting(t *testing.T) {
	s := NewStore()
	s.Set("x", "ok", 0)

	var root any = "${x}"
	for i := 0; i < 100000; i++ {
		root = []any{root}
	}

	out := s.PrepareData(root)
	for i := 0; i < 100000; i++ {
		out = out.([]any)[0]
	}
	assert.Equal(t, "ok", out)
}

func TestPrepareData_Scalars(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.PrepareData(nil))
	assert.Equal(t, 5, s.PrepareData(5))
	assert.Equal(t, strings.Repeat("a", 3), s.PrepareData("aaa"))
	assert.Nil(t, s.PrepareMap(nil))
}
