package graph

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyID = errors.New("test case has an empty id")

type DuplicateCaseError struct {
	CaseID string
}

func (e *DuplicateCaseError) Error() string {
	return fmt.Sprintf("duplicate test case id %q", e.CaseID)
}

type MissingDependencyError struct {
	CaseID    string
	DependsOn string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("test case %q depends on unknown case %q", e.CaseID, e.DependsOn)
}

// CircularDependencyError lists the cycle in dependency order, starting and
// ending with the same id.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " -> "))
}
