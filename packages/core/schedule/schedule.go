package schedule

import (
	"fmt"
	"slices"

	"github.com/abdul-hamid-achik/hitchain/packages/core/graph"
)

// Batch is a set of case ids that may run concurrently, in declaration order.
type Batch []string

// Plan orders the selected ids topologically (level order, ties broken by
// declaration order) and walks that order greedily into batches.
func Plan(g *graph.Graph, selected []string) ([]Batch, error) {
	position := make(map[string]int, g.Len())
	for i, id := range g.IDs() {
		position[id] = i
	}

	isSelected := make(map[string]bool, len(selected))
	for _, id := range selected {
		if _, ok := position[id]; !ok {
			return nil, fmt.Errorf("selected case %q is not in the graph", id)
		}
		isSelected[id] = true
	}

	pred := make(map[string]string, len(isSelected))
	children := make(map[string][]string)
	var level []string
	for id := range isSelected {
		p := EffectivePredecessor(g, id, isSelected)
		pred[id] = p
		if p == "" {
			level = append(level, id)
		} else {
			children[p] = append(children[p], id)
		}
	}

	byPosition := func(a, b string) int { return position[a] - position[b] }

	order := make([]string, 0, len(isSelected))
	for len(level) > 0 {
		slices.SortFunc(level, byPosition)
		order = append(order, level...)

		var next []string
		for _, id := range level {
			next = append(next, children[id]...)
		}
		level = next
	}

	if len(order) != len(isSelected) {
		// unreachable for a graph that passed Build
		return nil, fmt.Errorf("dependency cycle among selected cases")
	}

	return partition(order, pred)
}

// partition seals the current batch whenever the next case depends on a case
// that is not yet closed.
func partition(order []string, pred map[string]string) ([]Batch, error) {
	var batches []Batch
	closed := make(map[string]bool, len(order))
	var current Batch

	seal := func() {
		if len(current) == 0 {
			return
		}
		for _, id := range current {
			closed[id] = true
		}
		batches = append(batches, current)
		current = nil
	}

	for _, id := range order {
		p := pred[id]
		if p != "" && !closed[p] {
			seal()
			if !closed[p] {
				return nil, fmt.Errorf("case %q scheduled before its dependency %q", id, p)
			}
		}
		current = append(current, id)
	}
	seal()

	return batches, nil
}

// EffectivePredecessor returns the nearest ancestor of id that is selected,
// or "" when no ancestor is.
func EffectivePredecessor(g *graph.Graph, id string, selected map[string]bool) string {
	for _, ancestor := range g.Chain(id) {
		if selected[ancestor] {
			return ancestor
		}
	}
	return ""
}

// Flatten concatenates batches into a single topological order.
func Flatten(batches []Batch) []string {
	var out []string
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

// Count returns the total number of ids across batches.
func Count(batches []Batch) int {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	return n
}
