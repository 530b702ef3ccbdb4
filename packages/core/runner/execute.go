package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/vars"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
)

// Execute runs the case with the given id, or returns its record if it has
// already run in this run. asDependency marks an invocation made while
// resolving a dependent; a record first produced that way is still stored,
// so later top-level calls are cache hits.
//
// Each id is executed at most once: concurrent calls for the same id share a
// single execution.
func (r *Runner) Execute(ctx context.Context, id string, asDependency bool) (*Record, error) {
	r.mu.RLock()
	g, m := r.graph, r.memo
	r.mu.RUnlock()

	if g == nil {
		return nil, ErrNotLoaded
	}
	tc, ok := g.Case(id)
	if !ok {
		return nil, fmt.Errorf("unknown test case %q", id)
	}

	if rec, ok := m.load(id); ok {
		return rec, nil
	}

	v, _, _ := m.flight.Do(id, func() (any, error) {
		if rec, ok := m.load(id); ok {
			return rec, nil
		}

		rec := r.runCase(ctx, tc, asDependency)
		stored, fresh := m.store(rec)
		if fresh {
			r.logResult(stored)
			r.notify(stored)
		}
		return stored, nil
	})
	return v.(*Record), nil
}

func (r *Runner) runCase(ctx context.Context, tc *cases.TestCase, asDependency bool) *Record {
	rec := &Record{
		CaseID:        tc.ID,
		Name:          tc.Title(),
		Module:        tc.Module,
		Priority:      string(tc.Priority),
		Tags:          tc.Tags,
		AsDependency:  asDependency,
		ExtractedVars: make(map[string]any),
	}

	if tc.HasDependency() {
		r.logger.Debug("resolving dependency", "case", tc.ID, "depends_on", tc.DependsOn)
		dep, err := r.Execute(ctx, tc.DependsOn, true)
		if err != nil {
			rec.StartedAt = time.Now()
			rec.Error = &DependencyFailedError{CaseID: tc.ID, DependencyID: tc.DependsOn, Cause: err}
			return rec
		}
		if !dep.Success {
			rec.StartedAt = time.Now()
			cause := dep.Error
			if cause == nil && dep.Skipped {
				cause = fmt.Errorf("skipped: %s", dep.SkipReason)
			}
			rec.Error = &DependencyFailedError{CaseID: tc.ID, DependencyID: dep.CaseID, Cause: cause}
			return rec
		}
	}

	rec.StartedAt = time.Now()
	start := rec.StartedAt
	defer func() {
		rec.Duration = time.Since(start)
	}()

	req := r.prepare(tc)
	rec.Request = req

	if r.transport == nil {
		rec.Error = &TransportError{CaseID: tc.ID, Err: ErrNoTransport}
		return rec
	}

	resp, err := r.transport.Do(ctx, req)
	if err != nil {
		rec.Error = &TransportError{CaseID: tc.ID, Err: err}
		return rec
	}
	rec.Response = resp

	if len(tc.ExtractVars) > 0 {
		r.extract(tc, resp, rec)
	}

	if len(tc.Asserts) == 0 {
		rec.Success = resp.IsSuccess()
		if !rec.Success {
			rec.Error = &UnexpectedStatusError{CaseID: tc.ID, StatusCode: resp.StatusCode}
		}
		return rec
	}

	outcome := r.evaluator.Evaluate(resp, tc.Asserts)
	rec.Assertions = outcome.Details
	rec.Success = outcome.Passed
	if !outcome.Passed {
		rec.Error = &AssertionFailure{CaseID: tc.ID, Failed: outcome.Failed()}
	}
	return rec
}

// prepare resolves placeholders into a request. The case itself is not
// modified.
func (r *Runner) prepare(tc *cases.TestCase) *http.Request {
	method := tc.Method
	if method == "" {
		method = "GET"
	}
	req := http.NewRequest(method, r.store.Substitute(tc.Path))

	for k, v := range r.store.PrepareMap(tc.Headers) {
		req.SetHeader(k, vars.Stringify(v))
	}
	for k, v := range r.store.PrepareMap(tc.Params) {
		req.SetParam(k, vars.Stringify(v))
	}
	if tc.Body != nil {
		req.SetBody(r.store.PrepareData(tc.Body))
	}
	return req
}

func (r *Runner) extract(tc *cases.TestCase, resp *http.Response, rec *Record) {
	ttl := tc.ExtractTTL
	if ttl <= 0 {
		ttl = r.config.VariableTTL
	}

	for name, expr := range tc.ExtractVars {
		value, ok := r.extractor.Extract(resp, expr)
		if !ok {
			r.logger.Warn("extraction found no value", "case", tc.ID, "var", name, "expr", expr)
			continue
		}
		r.store.Set(name, value, ttl)
		rec.ExtractedVars[name] = value
		r.logger.Debug("extracted variable", "case", tc.ID, "var", name)
	}
}

func (r *Runner) logResult(rec *Record) {
	attrs := []any{"case", rec.CaseID, "duration", rec.Duration}
	if rec.AsDependency {
		attrs = append(attrs, "as_dependency", true)
	}
	switch {
	case rec.Skipped:
		r.logger.Info("case skipped", append(attrs, "reason", rec.SkipReason)...)
	case rec.Success:
		r.logger.Info("case passed", attrs...)
	default:
		r.logger.Info("case failed", append(attrs, "error", rec.Error)...)
	}
}
