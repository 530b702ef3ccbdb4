package runner

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/assertions"
	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/graph"
	"github.com/abdul-hamid-achik/hitchain/packages/core/schedule"
	"github.com/abdul-hamid-achik/hitchain/packages/core/vars"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers by request path and records what it was sent.
type fakeTransport struct {
	mu        sync.Mutex
	calls     map[string]int
	requests  []*http.Request
	responses map[string]*http.Response
	errs      map[string]error
	delay     time.Duration
	inflight  atomic.Int32
	maxActive atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		calls:     make(map[string]int),
		responses: make(map[string]*http.Response),
		errs:      make(map[string]error),
	}
}

func (f *fakeTransport) respond(path string, status int, body string) {
	f.responses[path] = &http.Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func (f *fakeTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[req.Path]++
	f.requests = append(f.requests, req)
	resp, hasResp := f.responses[req.Path]
	err := f.errs[req.Path]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !hasResp {
		return &http.Response{StatusCode: 200, Headers: map[string]string{"Content-Type": "application/json"}, Body: []byte(`{}`)}, nil
	}
	return resp, nil
}

func (f *fakeTransport) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeTransport) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type recordingSink struct {
	mu      sync.Mutex
	records []*Record
}

func (s *recordingSink) CaseFinished(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func newCase(id, dependsOn string) *cases.TestCase {
	return &cases.TestCase{ID: id, Method: "GET", Path: "/" + id, DependsOn: dependsOn, Runnable: true}
}

func statusRule(t *testing.T, code int) []assertions.Rule {
	t.Helper()
	r, err := assertions.Compile(map[string]any{"type": "status_code", "value": float64(code)})
	require.NoError(t, err)
	return []assertions.Rule{r}
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.Store())
		assert.Equal(t, DefaultConcurrency, r.config.concurrency())
	})

	t.Run("with injected store", func(t *testing.T) {
		store := vars.NewStore()
		r := NewRunner(&Config{Concurrency: 10}, WithStore(store))
		assert.Same(t, store, r.Store())
		assert.Equal(t, 10, r.config.concurrency())
	})
}

func TestRun_ChainBatchesAndVariables(t *testing.T) {
	ft := newFakeTransport()
	ft.respond("/login", 200, `{"data": {"token": "t-123"}}`)
	ft.respond("/profile", 200, `{"id": 42}`)

	login := newCase("login", "")
	login.ExtractVars = map[string]string{"token": "$.data.token"}
	profile := newCase("profile", "login")
	profile.Headers = map[string]any{"Authorization": "Bearer ${token}"}
	profile.ExtractVars = map[string]string{"user_id": "$.id"}
	orders := newCase("orders", "profile")
	orders.Params = map[string]any{"user": "${user_id}"}

	r := NewRunner(&Config{}, WithTransport(ft))
	result := r.Run(context.Background(), []*cases.TestCase{login, profile, orders})

	require.NoError(t, result.Err)
	assert.Equal(t, StatusPassed, result.Status)
	assert.Equal(t, []schedule.Batch{{"login"}, {"profile"}, {"orders"}}, result.Batches)
	assert.Equal(t, 3, result.Passed)
	assert.NotEmpty(t, result.ID)

	assert.Equal(t, "Bearer t-123", result.Records["profile"].Request.Headers["Authorization"])
	assert.Equal(t, "42", result.Records["orders"].Request.Params["user"])
	assert.Equal(t, map[string]any{"token": "t-123"}, result.Records["login"].ExtractedVars)

	// the case definition is untouched
	assert.Equal(t, "Bearer ${token}", profile.Headers["Authorization"])
	assert.Zero(t, r.DuplicateWrites())
}

func TestRun_DependencyFailureSuppressesDependentsOnly(t *testing.T) {
	ft := newFakeTransport()
	ft.errs["/X"] = errors.New("connection refused")

	r := NewRunner(&Config{}, WithTransport(ft))
	result := r.Run(context.Background(), []*cases.TestCase{
		newCase("X", ""),
		newCase("Z", ""),
		newCase("Y", "X"),
	})

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, []schedule.Batch{{"X", "Z"}, {"Y"}}, result.Batches)

	var transportErr *TransportError
	require.True(t, errors.As(result.Records["X"].Error, &transportErr))
	assert.Equal(t, "X", transportErr.CaseID)

	assert.True(t, result.Records["Z"].Success)

	var depErr *DependencyFailedError
	require.True(t, errors.As(result.Records["Y"].Error, &depErr))
	assert.Equal(t, "Y", depErr.CaseID)
	assert.Equal(t, "X", depErr.DependencyID)
	assert.Contains(t, result.Records["Y"].Error.Error(), `"X"`)
	assert.Equal(t, 0, ft.callCount("/Y"), "dependent request must not be sent")

	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
}

func TestRun_AssertionFailure(t *testing.T) {
	ft := newFakeTransport()
	ft.respond("/A", 404, `{}`)

	a := newCase("A", "")
	a.Asserts = statusRule(t, 200)

	r := NewRunner(&Config{}, WithTransport(ft))
	result := r.Run(context.Background(), []*cases.TestCase{a})

	var failure *AssertionFailure
	require.True(t, errors.As(result.Records["A"].Error, &failure))
	require.Len(t, failure.Failed, 1)
	assert.Equal(t, "status", failure.Failed[0].Subject)
	assert.Len(t, result.Records["A"].Assertions, 1)
}

func TestRun_NoRulesMeans2xx(t *testing.T) {
	ft := newFakeTransport()
	ft.respond("/bad", 500, `{}`)

	r := NewRunner(&Config{}, WithTransport(ft))
	result := r.Run(context.Background(), []*cases.TestCase{newCase("ok", ""), newCase("bad", "")})

	assert.True(t, result.Records["ok"].Success)
	assert.False(t, result.Records["bad"].Success)
	var statusErr *UnexpectedStatusError
	assert.True(t, errors.As(result.Records["bad"].Error, &statusErr))
}

func TestRun_CycleAbortsBeforeExecution(t *testing.T) {
	ft := newFakeTransport()
	sink := &recordingSink{}

	r := NewRunner(&Config{}, WithTransport(ft), WithSink(sink))
	result := r.Run(context.Background(), []*cases.TestCase{newCase("A", "B"), newCase("B", "A")})

	assert.Equal(t, StatusAborted, result.Status)
	var cycle *graph.CircularDependencyError
	require.True(t, errors.As(result.Err, &cycle))
	assert.Empty(t, result.Records)
	assert.Zero(t, ft.totalCalls())
	assert.Empty(t, sink.records)
}

func TestRun_MissingDependencyAborts(t *testing.T) {
	r := NewRunner(&Config{}, WithTransport(newFakeTransport()))
	result := r.Run(context.Background(), []*cases.TestCase{newCase("D", "Z")})

	assert.Equal(t, StatusAborted, result.Status)
	var missing *graph.MissingDependencyError
	require.True(t, errors.As(result.Err, &missing))
	assert.Equal(t, "D", missing.CaseID)
	assert.Equal(t, "Z", missing.DependsOn)
}

func TestExecute_Idempotent(t *testing.T) {
	ft := newFakeTransport()
	r := NewRunner(&Config{}, WithTransport(ft))
	_, err := r.Load([]*cases.TestCase{newCase("A", ""), newCase("B", "A")})
	require.NoError(t, err)

	first, err := r.Execute(context.Background(), "A", true)
	require.NoError(t, err)
	second, err := r.Execute(context.Background(), "A", false)
	require.NoError(t, err)
	third, err := r.Execute(context.Background(), "A", false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, third)
	assert.True(t, first.AsDependency)
	assert.Equal(t, 1, ft.callCount("/A"))
	assert.Zero(t, r.DuplicateWrites())

	_, err = r.Execute(context.Background(), "nope", false)
	assert.Error(t, err)
}

func TestExecute_BeforeLoad(t *testing.T) {
	r := NewRunner(nil)
	_, err := r.Execute(context.Background(), "A", false)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestRun_SharedUnselectedDependencyRunsOnce(t *testing.T) {
	ft := newFakeTransport()
	ft.delay = 20 * time.Millisecond

	setup := newCase("setup", "")
	setup.Runnable = false
	var list []*cases.TestCase
	list = append(list, setup)
	for i := 0; i < 10; i++ {
		list = append(list, newCase(fmt.Sprintf("c%d", i), "setup"))
	}

	r := NewRunner(&Config{Concurrency: 10}, WithTransport(ft))
	result := r.Run(context.Background(), list)

	assert.Equal(t, StatusPassed, result.Status)
	require.Len(t, result.Batches, 1)
	assert.Len(t, result.Batches[0], 10)
	assert.Equal(t, 1, ft.callCount("/setup"))
	assert.True(t, result.Records["setup"].AsDependency)
	assert.Len(t, result.Records, 11)
	assert.NotContains(t, result.Order, "setup")
	assert.Zero(t, r.DuplicateWrites())
}

func TestRun_ConcurrencyLimit(t *testing.T) {
	ft := newFakeTransport()
	ft.delay = 10 * time.Millisecond

	var list []*cases.TestCase
	for i := 0; i < 12; i++ {
		list = append(list, newCase(fmt.Sprintf("c%d", i), ""))
	}

	r := NewRunner(&Config{Concurrency: 3}, WithTransport(ft))
	result := r.Run(context.Background(), list)

	assert.Equal(t, 12, result.Passed)
	assert.LessOrEqual(t, ft.maxActive.Load(), int32(3))
}

func TestRun_BatchBarrier(t *testing.T) {
	ft := newFakeTransport()
	ft.delay = 5 * time.Millisecond
	sink := &recordingSink{}

	list := []*cases.TestCase{newCase("a1", ""), newCase("a2", ""), newCase("a3", ""), newCase("b1", "a1"), newCase("b2", "a3")}
	r := NewRunner(&Config{Concurrency: 4}, WithTransport(ft), WithSink(sink))
	result := r.Run(context.Background(), list)
	require.Equal(t, StatusPassed, result.Status)

	var lastFirstBatch time.Time
	for _, id := range result.Batches[0] {
		rec := result.Records[id]
		end := rec.StartedAt.Add(rec.Duration)
		if end.After(lastFirstBatch) {
			lastFirstBatch = end
		}
	}
	for _, id := range result.Batches[1] {
		assert.False(t, result.Records[id].StartedAt.Before(lastFirstBatch), "%s started before batch 1 finished", id)
	}
	assert.Len(t, sink.records, 5)
}

func TestRun_FailFast(t *testing.T) {
	ft := newFakeTransport()
	ft.respond("/A", 500, `{}`)

	r := NewRunner(&Config{FailFast: true}, WithTransport(ft))
	result := r.Run(context.Background(), []*cases.TestCase{
		newCase("A", ""),
		newCase("B", ""),
		newCase("C", "B"),
		newCase("D", "C"),
	})

	assert.Equal(t, StatusFailed, result.Status)
	assert.True(t, result.Records["B"].Success, "siblings in the failing batch still run")
	assert.True(t, result.Records["C"].Skipped)
	assert.Contains(t, result.Records["C"].SkipReason, "fail-fast")
	assert.True(t, result.Records["D"].Skipped)
	assert.Equal(t, 0, ft.callCount("/C"))
	assert.Equal(t, 2, result.Skipped)
}

func TestRun_MaxFailures(t *testing.T) {
	ft := newFakeTransport()
	ft.respond("/A", 500, `{}`)
	ft.respond("/B", 500, `{}`)

	r := NewRunner(&Config{MaxFailures: 2}, WithTransport(ft))
	result := r.Run(context.Background(), []*cases.TestCase{
		newCase("A", ""), newCase("B", ""), newCase("C", "B"),
	})

	assert.True(t, result.Records["C"].Skipped)
	assert.Contains(t, result.Records["C"].SkipReason, "max failures")
}

func TestRun_Cancelled(t *testing.T) {
	ft := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(&Config{}, WithTransport(ft))
	result := r.Run(ctx, []*cases.TestCase{newCase("A", ""), newCase("B", "A")})

	assert.Equal(t, StatusCancelled, result.Status)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.True(t, result.Records["A"].Skipped)
	assert.True(t, result.Records["B"].Skipped)
	assert.Zero(t, ft.totalCalls())
}

func TestRun_Filter(t *testing.T) {
	ft := newFakeTransport()
	a := newCase("A", "")
	b := newCase("B", "A")
	b.Module = "orders"
	c := newCase("C", "")

	r := NewRunner(&Config{Filter: cases.Filter{Module: "orders"}}, WithTransport(ft))
	result := r.Run(context.Background(), []*cases.TestCase{a, b, c})

	assert.Equal(t, []string{"B"}, result.Order)
	assert.True(t, result.Records["A"].AsDependency)
	assert.NotContains(t, result.Records, "C")
}

func TestRun_ExtractTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	store := vars.NewStore(vars.WithClock(clock))

	ft := newFakeTransport()
	ft.respond("/A", 200, `{"v": "x"}`)
	a := newCase("A", "")
	a.ExtractVars = map[string]string{"short": "$.v"}
	a.ExtractTTL = time.Second
	b := newCase("B", "")
	b.ExtractVars = map[string]string{"default": "status"}

	r := NewRunner(&Config{VariableTTL: time.Minute}, WithTransport(ft), WithStore(store))
	r.Run(context.Background(), []*cases.TestCase{a, b})

	mu.Lock()
	now = now.Add(2 * time.Second)
	mu.Unlock()

	_, ok := store.Get("short")
	assert.False(t, ok)
	v, ok := store.Get("default")
	require.True(t, ok)
	assert.Equal(t, 200, v)
}

func TestRun_DependencyDurationIsNotCounted(t *testing.T) {
	ft := newFakeTransport()
	ft.delay = 30 * time.Millisecond

	setup := newCase("setup", "")
	setup.Runnable = false

	r := NewRunner(&Config{}, WithTransport(ft))
	result := r.Run(context.Background(), []*cases.TestCase{setup, newCase("A", "setup")})

	a := result.Records["A"]
	s := result.Records["setup"]
	assert.False(t, a.StartedAt.Before(s.StartedAt.Add(s.Duration)), "timer starts after the dependency finished")
}

func TestRun_WaitFor(t *testing.T) {
	ft := newFakeTransport()
	ft.respond("/health", 503, `{}`)

	r := NewRunner(&Config{WaitFor: &WaitFor{URL: "/health", Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond}}, WithTransport(ft))
	result := r.Run(context.Background(), []*cases.TestCase{newCase("A", "")})

	assert.Equal(t, StatusAborted, result.Status)
	assert.Contains(t, result.Err.Error(), "got status 503")
	assert.Zero(t, ft.callCount("/A"))
}

func TestRun_WithHTTPServer(t *testing.T) {
	server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/users":
			w.WriteHeader(stdhttp.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 7}`))
		case "/users/7":
			_, _ = w.Write([]byte(`{"id": 7, "name": "ada"}`))
		default:
			w.WriteHeader(stdhttp.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := http.NewClient(http.WithBaseURL(server.URL))
	require.NoError(t, err)

	create := &cases.TestCase{ID: "create", Method: "POST", Path: "/users", Body: map[string]any{"name": "ada"},
		ExtractVars: map[string]string{"user_id": "$.id"}, Asserts: statusRule(t, 201), Runnable: true}
	get := &cases.TestCase{ID: "get", Method: "GET", Path: "/users/${user_id}", DependsOn: "create",
		Asserts: statusRule(t, 200), Runnable: true}

	r := NewRunner(&Config{}, WithTransport(client))
	result := r.Run(context.Background(), []*cases.TestCase{create, get})

	require.Equal(t, StatusPassed, result.Status, "%v", result.Records["get"].Error)
	assert.Equal(t, float64(7), result.Records["create"].ExtractedVars["user_id"])
	assert.Contains(t, result.Records["get"].Response.BodyString(), "ada")
}

func TestRunResult_Ordered(t *testing.T) {
	res := &RunResult{
		Order: []string{"b", "a"},
		Records: map[string]*Record{
			"a": {CaseID: "a"}, "b": {CaseID: "b"}, "z": {CaseID: "z"}, "y": {CaseID: "y"},
		},
	}
	var ids []string
	for _, r := range res.Ordered() {
		ids = append(ids, r.CaseID)
	}
	assert.Equal(t, []string{"b", "a", "y", "z"}, ids)
}

func TestExecute_ConcurrentCallersShareOneExecution(t *testing.T) {
	ft := newFakeTransport()
	ft.delay = 10 * time.Millisecond

	r := NewRunner(&Config{}, WithTransport(ft))
	_, err := r.Load([]*cases.TestCase{newCase("A", "")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	recs := make([]*Record, 50)
	for i := range recs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := r.Execute(context.Background(), "A", i%2 == 0)
			assert.NoError(t, err)
			recs[i] = rec
		}(i)
	}
	wg.Wait()

	for _, rec := range recs {
		assert.Same(t, recs[0], rec)
	}
	assert.Equal(t, 1, ft.callCount("/A"))
	assert.Zero(t, r.DuplicateWrites())
}

func TestMemo_StoreIsWriteOnce(t *testing.T) {
	m := newMemo()
	first := &Record{CaseID: "A", Success: true}

	stored, ok := m.store(first)
	assert.True(t, ok)
	assert.Same(t, first, stored)

	stored, ok = m.store(&Record{CaseID: "A"})
	assert.False(t, ok)
	assert.Same(t, first, stored)
	assert.Equal(t, int64(1), m.rejected.Load())
}
