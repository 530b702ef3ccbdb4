package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
)

var (
	ErrNoTransport = errors.New("no transport configured")
	ErrNotLoaded   = errors.New("runner has no loaded cases")
)

// DependencyFailedError marks a case that was not sent because its
// dependency did not succeed.
type DependencyFailedError struct {
	CaseID       string
	DependencyID string
	Cause        error
}

func (e *DependencyFailedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("dependency %q of case %q failed", e.DependencyID, e.CaseID)
	}
	return fmt.Sprintf("dependency %q of case %q failed: %v", e.DependencyID, e.CaseID, e.Cause)
}

func (e *DependencyFailedError) Unwrap() error {
	return e.Cause
}

type TransportError struct {
	CaseID string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("case %q: request failed: %v", e.CaseID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type AssertionFailure struct {
	CaseID string
	Failed []*assertions.Result
}

func (e *AssertionFailure) Error() string {
	msgs := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		msg := r.Message
		if msg == "" {
			msg = "failed"
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", r.Subject, msg))
	}
	return fmt.Sprintf("case %q: %d assertion(s) failed: %s", e.CaseID, len(e.Failed), strings.Join(msgs, "; "))
}

// UnexpectedStatusError is the failure of a case without assertion rules
// whose response was not 2xx.
type UnexpectedStatusError struct {
	CaseID     string
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("case %q: unexpected status %d", e.CaseID, e.StatusCode)
}
