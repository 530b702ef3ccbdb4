package schedule

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, pairs ...string) *graph.Graph {
	t.Helper()
	var list []*cases.TestCase
	for i := 0; i < len(pairs); i += 2 {
		list = append(list, &cases.TestCase{ID: pairs[i], DependsOn: pairs[i+1], Runnable: true})
	}
	g, err := graph.Build(list)
	require.NoError(t, err)
	return g
}

func TestPlan_Chain(t *testing.T) {
	g := build(t, "A", "", "B", "A", "C", "B")

	batches, err := Plan(g, g.IDs())
	require.NoError(t, err)
	assert.Equal(t, []Batch{{"A"}, {"B"}, {"C"}}, batches)
}

func TestPlan_DeclarationOrderTies(t *testing.T) {
	g := build(t, "login", "", "health", "", "profile", "login", "orders", "login", "logout", "profile")

	batches, err := Plan(g, g.IDs())
	require.NoError(t, err)
	assert.Equal(t, []Batch{
		{"login", "health"},
		{"profile", "orders"},
		{"logout"},
	}, batches)
}

func TestPlan_DependencyDeclaredLater(t *testing.T) {
	g := build(t, "child", "parent", "parent", "")

	batches, err := Plan(g, g.IDs())
	require.NoError(t, err)
	assert.Equal(t, []Batch{{"parent"}, {"child"}}, batches)
}

func TestPlan_UnselectedAncestor(t *testing.T) {
	// B is disabled: C is ordered after A, and B runs on demand.
	g := build(t, "A", "", "B", "A", "C", "B", "D", "")

	batches, err := Plan(g, []string{"A", "C", "D"})
	require.NoError(t, err)
	assert.Equal(t, []Batch{{"A", "D"}, {"C"}}, batches)

	batches, err = Plan(g, []string{"C", "D"})
	require.NoError(t, err)
	assert.Equal(t, []Batch{{"C", "D"}}, batches)
}

func TestPlan_EmptyAndUnknown(t *testing.T) {
	g := build(t, "A", "")

	batches, err := Plan(g, nil)
	require.NoError(t, err)
	assert.Empty(t, batches)

	_, err = Plan(g, []string{"Z"})
	assert.Error(t, err)
}

func TestPlan_RandomForestsAreTopological(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(40)
		ids := rng.Perm(n)
		var list []*cases.TestCase
		for i, v := range ids {
			dep := ""
			if i > 0 && rng.Intn(3) > 0 {
				dep = fmt.Sprintf("c%d", ids[rng.Intn(i)])
			}
			list = append(list, &cases.TestCase{ID: fmt.Sprintf("c%d", v), DependsOn: dep})
		}
		// shuffle declaration order so dependencies may appear later
		rng.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })

		g, err := graph.Build(list)
		require.NoError(t, err)

		var selected []string
		for _, id := range g.IDs() {
			if rng.Intn(4) > 0 {
				selected = append(selected, id)
			}
		}

		batches, err := Plan(g, selected)
		require.NoError(t, err)
		assert.Equal(t, len(selected), Count(batches))

		batchOf := make(map[string]int)
		for i, b := range batches {
			require.NotEmpty(t, b)
			for _, id := range b {
				_, dup := batchOf[id]
				require.False(t, dup, "case %s scheduled twice", id)
				batchOf[id] = i
			}
		}

		isSelected := make(map[string]bool)
		for _, id := range selected {
			isSelected[id] = true
		}
		for _, id := range selected {
			if p := EffectivePredecessor(g, id, isSelected); p != "" {
				assert.Less(t, batchOf[p], batchOf[id], "%s must run after %s", id, p)
			}
		}
	}
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Flatten([]Batch{{"a", "b"}, {"c"}}))
	assert.Nil(t, Flatten(nil))
}
