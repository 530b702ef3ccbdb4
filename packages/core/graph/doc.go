// Package graph builds the dependency graph of a case list and rejects
// invalid inputs before anything runs.
//
// Each case has at most one predecessor. The graph stores forward edges
// (dependency to dependents). Build fails on empty or duplicate ids, on a
// reference to an unknown case, and on a cycle.
package graph
