package graph

import (
	"slices"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
)

// Graph is read-only after Build.
type Graph struct {
	order      []string
	cases      map[string]*cases.TestCase
	dependents map[string][]string
}

// Build validates the case list and returns its graph. Validation runs in
// this order: ids, dependency references, cycles.
func Build(list []*cases.TestCase) (*Graph, error) {
	g := &Graph{
		order:      make([]string, 0, len(list)),
		cases:      make(map[string]*cases.TestCase, len(list)),
		dependents: make(map[string][]string),
	}

	for _, tc := range list {
		if tc.ID == "" {
			return nil, ErrEmptyID
		}
		if _, dup := g.cases[tc.ID]; dup {
			return nil, &DuplicateCaseError{CaseID: tc.ID}
		}
		g.cases[tc.ID] = tc
		g.order = append(g.order, tc.ID)
	}

	for _, id := range g.order {
		tc := g.cases[id]
		if !tc.HasDependency() {
			continue
		}
		if _, ok := g.cases[tc.DependsOn]; !ok {
			return nil, &MissingDependencyError{CaseID: tc.ID, DependsOn: tc.DependsOn}
		}
		g.dependents[tc.DependsOn] = append(g.dependents[tc.DependsOn], tc.ID)
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CircularDependencyError{Cycle: cycle}
	}

	return g, nil
}

const (
	white = iota
	gray
	black
)

type frame struct {
	id   string
	next int
}

// findCycle runs an iterative three-colour DFS over the forward edges. A gray
// successor closes a cycle, which is read back from the traversal stack.
func (g *Graph) findCycle() []string {
	color := make(map[string]int, len(g.order))

	for _, root := range g.order {
		if color[root] != white {
			continue
		}

		stack := []frame{{id: root}}
		color[root] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succ := g.dependents[top.id]

			if top.next >= len(succ) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}

			child := succ[top.next]
			top.next++

			switch color[child] {
			case white:
				color[child] = gray
				stack = append(stack, frame{id: child})
			case gray:
				return cycleFrom(stack, child)
			}
		}
	}
	return nil
}

// cycleFrom returns the path from the top of the stack back to start, which
// is dependsOn order, closed with its first element.
func cycleFrom(stack []frame, start string) []string {
	var path []string
	for i := len(stack) - 1; i >= 0; i-- {
		path = append(path, stack[i].id)
		if stack[i].id == start {
			break
		}
	}
	return append(path, path[0])
}

func (g *Graph) Case(id string) (*cases.TestCase, bool) {
	tc, ok := g.cases[id]
	return tc, ok
}

// Cases returns every case in declaration order.
func (g *Graph) Cases() []*cases.TestCase {
	out := make([]*cases.TestCase, len(g.order))
	for i, id := range g.order {
		out[i] = g.cases[id]
	}
	return out
}

// IDs returns every case id in declaration order.
func (g *Graph) IDs() []string {
	return slices.Clone(g.order)
}

// Dependents returns the cases that declare id as their dependency, in
// declaration order.
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.dependents[id])
}

// Chain returns id's ancestors, nearest first.
func (g *Graph) Chain(id string) []string {
	var chain []string
	tc := g.cases[id]
	for tc != nil && tc.HasDependency() {
		chain = append(chain, tc.DependsOn)
		tc = g.cases[tc.DependsOn]
	}
	return chain
}

func (g *Graph) Len() int {
	return len(g.order)
}
