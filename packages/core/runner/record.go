package runner

import (
	"slices"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/core/schedule"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// Record is the single outcome of one case in one run. It is written once
// and read-only afterwards.
type Record struct {
	CaseID     string
	Name       string
	Module     string
	Priority   string
	Tags       []string
	Success    bool
	Skipped    bool
	SkipReason string
	// AsDependency is set when the case first ran while resolving a dependent.
	AsDependency bool

	Request    *http.Request
	Response   *http.Response
	Assertions []*assertions.Result
	Error      error

	// Duration covers this case's own work only. Time spent resolving its
	// dependency belongs to the dependency's record.
	Duration      time.Duration
	ExtractedVars map[string]any
	StartedAt     time.Time
}

// Failed reports a case that ran, or tried to, and did not succeed.
func (r *Record) Failed() bool {
	return !r.Success && !r.Skipped
}

type Status string

const (
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
	StatusCancelled Status = "cancelled"
)

type RunResult struct {
	ID      string
	Status  Status
	Records map[string]*Record
	Batches []schedule.Batch
	// Order is the planned execution order. Dependencies executed on demand
	// appear in Records but not here.
	Order     []string
	Passed    int
	Failed    int
	Skipped   int
	StartedAt time.Time
	Duration  time.Duration
	// Err is the fatal error of an aborted run, or the context error of a
	// cancelled one.
	Err error
}

// Ordered returns the records in planned order followed by on-demand
// dependencies in id order.
func (r *RunResult) Ordered() []*Record {
	out := make([]*Record, 0, len(r.Records))
	seen := make(map[string]bool, len(r.Order))
	for _, id := range r.Order {
		if rec, ok := r.Records[id]; ok {
			out = append(out, rec)
			seen[id] = true
		}
	}
	var extra []string
	for id := range r.Records {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	for _, id := range extra {
		out = append(out, r.Records[id])
	}
	return out
}

func (r *RunResult) tally() {
	r.Passed, r.Failed, r.Skipped = 0, 0, 0
	for _, rec := range r.Records {
		switch {
		case rec.Skipped:
			r.Skipped++
		case rec.Success:
			r.Passed++
		default:
			r.Failed++
		}
	}
}
