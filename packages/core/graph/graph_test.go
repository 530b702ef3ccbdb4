package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tc(id, dependsOn string) *cases.TestCase {
	return &cases.TestCase{ID: id, DependsOn: dependsOn, Runnable: true}
}

func TestBuild_Edges(t *testing.T) {
	g, err := Build([]*cases.TestCase{tc("A", ""), tc("B", "A"), tc("C", "A"), tc("D", "B")})
	require.NoError(t, err)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{"B", "C"}, g.Dependents("A"))
	assert.Equal(t, []string{"D"}, g.Dependents("B"))
	assert.Empty(t, g.Dependents("D"))
	assert.Equal(t, []string{"B", "A"}, g.Chain("D"))
	assert.Equal(t, []string{"A", "B", "C", "D"}, g.IDs())

	c, ok := g.Case("C")
	require.True(t, ok)
	assert.Equal(t, "A", c.DependsOn)
}

func TestBuild_MissingDependency(t *testing.T) {
	_, err := Build([]*cases.TestCase{tc("A", ""), tc("D", "Z")})

	var missing *MissingDependencyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "D", missing.CaseID)
	assert.Equal(t, "Z", missing.DependsOn)
	assert.Contains(t, err.Error(), `"D"`)
	assert.Contains(t, err.Error(), `"Z"`)
}

func TestBuild_MutualDependency(t *testing.T) {
	_, err := Build([]*cases.TestCase{tc("A", "B"), tc("B", "A")})

	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Subset(t, []string{"A", "B"}, cycle.Cycle)
	assert.Equal(t, cycle.Cycle[0], cycle.Cycle[len(cycle.Cycle)-1])
}

func TestBuild_SelfDependency(t *testing.T) {
	_, err := Build([]*cases.TestCase{tc("A", "A")})

	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"A", "A"}, cycle.Cycle)
}

func TestBuild_LongCycleBehindValidPrefix(t *testing.T) {
	_, err := Build([]*cases.TestCase{
		tc("root", ""),
		tc("x", "root"),
		tc("c1", "c3"),
		tc("c2", "c1"),
		tc("c3", "c2"),
	})

	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, cycle.Cycle[:3])
	assert.NotContains(t, cycle.Cycle, "root")

	// each element depends on the next one
	byID := map[string]string{"c1": "c3", "c2": "c1", "c3": "c2"}
	for i := 0; i < len(cycle.Cycle)-1; i++ {
		assert.Equal(t, cycle.Cycle[i+1], byID[cycle.Cycle[i]])
	}
}

func TestBuild_DuplicateAndEmptyIDs(t *testing.T) {
	_, err := Build([]*cases.TestCase{tc("A", ""), tc("A", "")})
	var dup *DuplicateCaseError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "A", dup.CaseID)

	_, err = Build([]*cases.TestCase{tc("", "")})
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestBuild_DeepChain(t *testing.T) {
	const n = 50000
	list := make([]*cases.TestCase, n)
	list[0] = tc("c0", "")
	for i := 1; i < n; i++ {
		list[i] = tc(fmt.Sprintf("c%d", i), fmt.Sprintf("c%d", i-1))
	}

	g, err := Build(list)
	require.NoError(t, err)
	assert.Len(t, g.Chain(fmt.Sprintf("c%d", n-1)), n-1)
}
