// Package notify posts run summaries to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when cases fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every case passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first
	// passing run after one
	NotifyRecovery NotifyOn = "recovery"
)

func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	case "":
		return NotifyFailure, nil
	default:
		return "", fmt.Errorf("unknown notify-on value %q (expected always, failure, success or recovery)", s)
	}
}

// maxFailedCases caps how many failures a message lists.
const maxFailedCases = 10

// RunSummary is what a notification says about a run.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Suite       string        `json:"suite,omitempty"`
	Environment string        `json:"environment,omitempty"`
	Status      runner.Status `json:"status"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Batches     int           `json:"batches"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	FailedCases []FailedCase  `json:"failed_cases,omitempty"`
	// MoreFailed counts failures left out of FailedCases.
	MoreFailed int  `json:"more_failed,omitempty"`
	IsRecovery bool `json:"is_recovery,omitempty"`
}

type FailedCase struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Module string `json:"module,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Summarize condenses result into a RunSummary.
func Summarize(result *runner.RunResult, suite, environment string) *RunSummary {
	s := &RunSummary{
		RunID:       result.ID,
		Suite:       suite,
		Environment: environment,
		Status:      result.Status,
		Total:       len(result.Records),
		Passed:      result.Passed,
		Failed:      result.Failed,
		Skipped:     result.Skipped,
		Batches:     len(result.Batches),
		Duration:    result.Duration,
	}
	if result.Err != nil {
		s.Error = result.Err.Error()
	}
	for _, rec := range result.Ordered() {
		if !rec.Failed() {
			continue
		}
		if len(s.FailedCases) == maxFailedCases {
			s.MoreFailed++
			continue
		}
		fc := FailedCase{ID: rec.CaseID, Name: rec.Name, Module: rec.Module}
		if rec.Error != nil {
			fc.Error = rec.Error.Error()
		}
		s.FailedCases = append(s.FailedCases, fc)
	}
	return s
}

// Succeeded reports a run that finished with no failures.
func (s *RunSummary) Succeeded() bool {
	return s.Status == runner.StatusPassed
}

func (s *RunSummary) headline() string {
	switch {
	case s.Status == runner.StatusAborted:
		return "Run aborted"
	case s.Status == runner.StatusCancelled:
		return "Run cancelled"
	case s.Failed > 0:
		return fmt.Sprintf("%d case(s) failed", s.Failed)
	case s.IsRecovery:
		return "Cases recovered!"
	default:
		return "All cases passed!"
	}
}

// Notifier is the interface for notification services
type Notifier interface {
	Notify(ctx context.Context, summary *RunSummary) error
	Name() string
}

// Manager applies the NotifyOn policy. It remembers the previous outcome, so
// recovery notices work across watch re-runs.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn

	mu        sync.Mutex
	lastState bool
}

func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// Notify sends summary to every notifier when the policy asks for it.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	m.mu.Lock()
	success := summary.Succeeded()
	recovered := !m.lastState && success
	m.lastState = success
	m.mu.Unlock()

	var send bool
	switch m.notifyOn {
	case NotifyAlways:
		send = true
	case NotifyFailure:
		send = !success
	case NotifySuccess:
		send = success
	case NotifyRecovery:
		send = !success || recovered
	}
	if !send {
		return nil
	}
	summary.IsRecovery = recovered

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
