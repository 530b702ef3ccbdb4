package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/capture"
	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/graph"
	"github.com/abdul-hamid-achik/hitchain/packages/core/schedule"
	"github.com/abdul-hamid-achik/hitchain/packages/core/vars"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the default number of cases run at once within a batch
	DefaultConcurrency = 5
)

// Transport sends one prepared request.
type Transport interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Extractor resolves an extraction expression against a response.
type Extractor interface {
	Extract(resp *http.Response, expr string) (any, bool)
}

// Evaluator checks assertion rules against a response.
type Evaluator interface {
	Evaluate(resp *http.Response, rules []assertions.Rule) *assertions.Outcome
}

// Sink receives each record once it is stored. CaseFinished may be called
// from several goroutines at once.
type Sink interface {
	CaseFinished(rec *Record)
}

type Config struct {
	Concurrency int
	FailFast    bool
	// MaxFailures stops scheduling batches once this many cases failed.
	MaxFailures int
	// VariableTTL applies to extracted values of cases without their own TTL.
	VariableTTL time.Duration
	Filter      cases.Filter
	WaitFor     *WaitFor
}

func (c *Config) concurrency() int {
	if c.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Concurrency
}

// Runner executes one run at a time. Load (or Run) resets its memo table;
// the variable store is kept so callers can seed it beforehand.
type Runner struct {
	config    *Config
	transport Transport
	store     *vars.Store
	extractor Extractor
	evaluator Evaluator
	sinks     []Sink
	logger    *slog.Logger

	mu    sync.RWMutex
	graph *graph.Graph
	memo  *memo
}

type Option func(*Runner)

func WithTransport(t Transport) Option {
	return func(r *Runner) {
		r.transport = t
	}
}

func WithStore(s *vars.Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

func WithExtractor(e Extractor) Option {
	return func(r *Runner) {
		r.extractor = e
	}
}

func WithEvaluator(e Evaluator) Option {
	return func(r *Runner) {
		r.evaluator = e
	}
}

func WithSink(s ...Sink) Option {
	return func(r *Runner) {
		r.sinks = append(r.sinks, s...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		config: cfg,
		memo:   newMemo(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.store == nil {
		r.store = vars.NewStore(vars.WithWarnFunc(r.logger.Warn))
	}
	if r.extractor == nil {
		r.extractor = capture.NewExtractor()
	}
	if r.evaluator == nil {
		r.evaluator = assertions.NewEvaluator()
	}

	return r
}

func (r *Runner) Store() *vars.Store {
	return r.store
}

// DuplicateWrites counts rejected second writes to the record table. It is
// zero in every correct run.
func (r *Runner) DuplicateWrites() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.memo.rejected.Load()
}

// Plan is a validated, batched run that has not executed yet.
type Plan struct {
	Graph    *graph.Graph
	Selected []string
	Batches  []schedule.Batch
}

func (p *Plan) Order() []string {
	return schedule.Flatten(p.Batches)
}

// Load validates list, selects cases with the configured filter and plans
// batches. On success the runner is ready for Execute or RunPlan.
func (r *Runner) Load(list []*cases.TestCase) (*Plan, error) {
	g, err := graph.Build(list)
	if err != nil {
		return nil, err
	}

	selected := cases.Select(g.Cases(), r.config.Filter)
	batches, err := schedule.Plan(g, selected)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.graph = g
	r.memo = newMemo()
	r.mu.Unlock()

	return &Plan{Graph: g, Selected: selected, Batches: batches}, nil
}

// Run loads list and executes it. Validation errors abort the run before any
// request is sent; the returned result then has no records.
func (r *Runner) Run(ctx context.Context, list []*cases.TestCase) *RunResult {
	start := time.Now()
	plan, err := r.Load(list)
	if err != nil {
		r.logger.Error("run aborted", "error", err)
		return &RunResult{
			ID:        uuid.NewString(),
			Status:    StatusAborted,
			Records:   map[string]*Record{},
			StartedAt: start,
			Duration:  time.Since(start),
			Err:       err,
		}
	}
	return r.RunPlan(ctx, plan)
}

// RunPlan executes batches strictly in sequence. All cases of a batch run on
// a pool bounded by Config.Concurrency and the next batch starts only after
// every one of them has finished.
func (r *Runner) RunPlan(ctx context.Context, plan *Plan) *RunResult {
	result := &RunResult{
		ID:        uuid.NewString(),
		Batches:   plan.Batches,
		Order:     plan.Order(),
		StartedAt: time.Now(),
	}
	defer func() {
		result.Duration = time.Since(result.StartedAt)
	}()

	if r.config.WaitFor != nil {
		if err := r.waitForService(ctx, r.config.WaitFor); err != nil {
			r.logger.Error("run aborted", "error", err)
			result.Status = StatusAborted
			result.Records = map[string]*Record{}
			result.Err = err
			return result
		}
	}

	r.logger.Info("run started", "run_id", result.ID, "cases", len(result.Order), "batches", len(plan.Batches))

	stopReason := ""
	failures := 0
	for i, batch := range plan.Batches {
		if stopReason == "" && ctx.Err() != nil {
			stopReason = "run cancelled"
		}
		if stopReason != "" {
			r.skipAll(batch, stopReason)
			continue
		}

		batchStart := time.Now()
		r.logger.Debug("batch started", "batch", i+1, "cases", len(batch))
		failed := r.runBatch(ctx, batch)
		failures += failed
		r.logger.Debug("batch finished", "batch", i+1, "failed", failed, "duration", time.Since(batchStart))

		switch {
		case failed > 0 && r.config.FailFast:
			stopReason = fmt.Sprintf("fail-fast: batch %d had failures", i+1)
		case r.config.MaxFailures > 0 && failures >= r.config.MaxFailures:
			stopReason = fmt.Sprintf("max failures reached (%d)", r.config.MaxFailures)
		}
	}

	r.mu.RLock()
	result.Records = r.memo.snapshot()
	r.mu.RUnlock()
	result.tally()

	switch {
	case ctx.Err() != nil:
		result.Status = StatusCancelled
		result.Err = ctx.Err()
	case result.Failed > 0:
		result.Status = StatusFailed
	default:
		result.Status = StatusPassed
	}

	r.logger.Info("run finished", "run_id", result.ID, "status", result.Status,
		"passed", result.Passed, "failed", result.Failed, "skipped", result.Skipped)
	return result
}

// runBatch returns the number of batch cases that failed.
func (r *Runner) runBatch(ctx context.Context, batch schedule.Batch) int {
	var g errgroup.Group
	g.SetLimit(r.config.concurrency())

	records := make([]*Record, len(batch))
	for i, id := range batch {
		g.Go(func() error {
			if ctx.Err() != nil {
				records[i] = r.skip(id, "run cancelled")
				return nil
			}
			rec, err := r.Execute(ctx, id, false)
			if err != nil {
				// only possible for ids outside the plan
				r.logger.Error("execute", "case", id, "error", err)
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, rec := range records {
		if rec != nil && rec.Failed() {
			failed++
		}
	}
	return failed
}

func (r *Runner) skipAll(batch schedule.Batch, reason string) {
	for _, id := range batch {
		r.skip(id, reason)
	}
}

func (r *Runner) skip(id, reason string) *Record {
	rec := &Record{CaseID: id, Skipped: true, SkipReason: reason, StartedAt: time.Now()}
	if tc, ok := r.caseByID(id); ok {
		rec.Name = tc.Title()
		rec.Module = tc.Module
		rec.Priority = string(tc.Priority)
		rec.Tags = tc.Tags
	}
	stored, ok := r.currentMemo().store(rec)
	if ok {
		r.notify(stored)
	}
	return stored
}

func (r *Runner) notify(rec *Record) {
	for _, s := range r.sinks {
		s.CaseFinished(rec)
	}
}

func (r *Runner) currentMemo() *memo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.memo
}

func (r *Runner) caseByID(id string) (*cases.TestCase, bool) {
	r.mu.RLock()
	g := r.graph
	r.mu.RUnlock()
	if g == nil {
		return nil, false
	}
	return g.Case(id)
}
