package openapi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/loader"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstore = `
openapi: 3.0.3
info:
  title: Petstore
  version: 1.0.0
servers:
  - url: https://pets.example.com/v1
paths:
  /pets:
    get:
      operationId: listPets
      summary: List pets
      tags: [pets]
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
            minimum: 5
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  type: object
    post:
      operationId: createPet
      summary: Create a pet
      tags: [pets, write]
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                name:
                  type: string
                tag:
                  type: string
                  example: dog
      responses:
        "201":
          description: created
          content:
            application/json:
              schema:
                type: object
  /pets/{petId}:
    get:
      operationId: show-pet
      summary: Show a pet
      tags: [pets]
      parameters:
        - name: petId
          in: path
          required: true
          schema:
            type: string
            format: uuid
        - name: X-Trace
          in: header
          schema:
            type: string
            example: abc
      responses:
        "200":
          description: ok
  /admin/stats:
    get:
      operationId: adminStats
      tags: [admin]
      responses:
        "204":
          description: empty
`

func loadDoc(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := openapi3.NewLoader().LoadFromData([]byte(petstore))
	require.NoError(t, err)
	return doc
}

func byID(suite *loader.SuiteDocument) map[string]loader.CaseDocument {
	out := make(map[string]loader.CaseDocument, len(suite.TestCases))
	for _, tc := range suite.TestCases {
		out[tc.ID] = tc
	}
	return out
}

func TestConvert(t *testing.T) {
	suite, err := NewConverter().Convert(context.Background(), loadDoc(t))
	require.NoError(t, err)

	assert.Equal(t, "Petstore", suite.Name)
	assert.Equal(t, "https://pets.example.com/v1", suite.BaseURL)
	require.Len(t, suite.TestCases, 4)

	cases := byID(suite)

	list := cases["listPets"]
	assert.Equal(t, "GET", list.Method)
	assert.Equal(t, "/pets", list.Path)
	assert.Equal(t, "pets", list.Module)
	assert.Equal(t, int64(5), list.Params["limit"])
	require.Len(t, list.Asserts, 2)
	assert.Equal(t, assertions.KindStatusCode, list.Asserts[0].Kind)
	assert.Equal(t, float64(200), list.Asserts[0].Expected)
	assert.Equal(t, assertions.KindHeader, list.Asserts[1].Kind)

	create := cases["createPet"]
	assert.Equal(t, "POST", create.Method)
	assert.Equal(t, []string{"pets", "write"}, []string(create.Tags))
	assert.Equal(t, "application/json", create.Headers["Content-Type"])
	assert.Equal(t, map[string]any{"name": "example", "tag": "dog"}, create.Body)
	assert.Equal(t, float64(201), create.Asserts[0].Expected)
	assert.Equal(t, map[string]string{"petId": "$.id"}, create.ExtractVars)

	show := cases["show_pet"]
	assert.Equal(t, "/pets/${petId}", show.Path)
	assert.Equal(t, "abc", show.Headers["X-Trace"])
	assert.Equal(t, "createPet", show.DependsOn)
	require.Len(t, show.Asserts, 1)

	stats := cases["adminStats"]
	assert.Empty(t, stats.DependsOn)
	assert.Equal(t, float64(204), stats.Asserts[0].Expected)
}

func TestConvertFilters(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want []string
	}{
		{
			name: "include tags",
			opts: []Option{WithTags([]string{"admin"})},
			want: []string{"adminStats"},
		},
		{
			name: "exclude tags",
			opts: []Option{WithExcludeTags([]string{"write", "admin"})},
			want: []string{"listPets", "show_pet"},
		},
		{
			name: "operations",
			opts: []Option{WithOperations([]string{"createPet"})},
			want: []string{"createPet"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suite, err := NewConverter(tt.opts...).Convert(context.Background(), loadDoc(t))
			require.NoError(t, err)

			var ids []string
			for _, tc := range suite.TestCases {
				ids = append(ids, tc.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestConvertWithoutChainingOrTests(t *testing.T) {
	conv := NewConverter(WithChaining(false), WithTests(false), WithBaseURL("http://localhost:9000"))
	suite, err := conv.Convert(context.Background(), loadDoc(t))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", suite.BaseURL)
	for _, tc := range suite.TestCases {
		assert.Empty(t, tc.DependsOn, tc.ID)
		assert.Empty(t, tc.ExtractVars, tc.ID)
		assert.Empty(t, tc.Asserts, tc.ID)
	}
}

func TestConvertToFileLoadsBack(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(petstore), 0o644))

	out := filepath.Join(dir, "suites", "petstore.yaml")
	_, err := NewConverter().ConvertToFile(context.Background(), specPath, out)
	require.NoError(t, err)

	suite, err := loader.LoadFile(out)
	require.NoError(t, err)
	assert.Len(t, suite.Cases, 4)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "/users/${id}/posts/${postId}", convertPathParams("/users/{id}/posts/{postId}"))
	assert.Equal(t, "get_user_by_id", sanitizeName("get-user--by id"))
	assert.Equal(t, "UsersId", toTitle("/users/id"))

	parent, param, ok := itemParent("/pets/{petId}")
	assert.True(t, ok)
	assert.Equal(t, "/pets", parent)
	assert.Equal(t, "petId", param)

	_, _, ok = itemParent("/pets")
	assert.False(t, ok)

	used := map[string]int{}
	assert.Equal(t, "op", uniqueID(used, "op"))
	assert.Equal(t, "op_2", uniqueID(used, "op"))
}
