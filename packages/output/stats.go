package output

import (
	"slices"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

// Latencies are recorded in microseconds between 1us and 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Latency summarizes the response times of the cases that reached a server.
type Latency struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

type ModuleStats struct {
	Module  string  `json:"module"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Skipped int     `json:"skipped"`
	Latency Latency `json:"latency"`
}

type Stats struct {
	Latency Latency       `json:"latency"`
	Modules []ModuleStats `json:"modules,omitempty"`
}

type histogram struct {
	h *hdrhistogram.Histogram
}

func newHistogram() *histogram {
	return &histogram{h: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)}
}

func (h *histogram) record(d time.Duration) {
	us := min(max(d.Microseconds(), minLatencyUs), maxLatencyUs)
	_ = h.h.RecordValue(us)
}

func (h *histogram) latency() Latency {
	if h.h.TotalCount() == 0 {
		return Latency{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return Latency{
		Count: h.h.TotalCount(),
		Min:   us(h.h.Min()),
		Mean:  us(int64(h.h.Mean())),
		P50:   us(h.h.ValueAtQuantile(50)),
		P95:   us(h.h.ValueAtQuantile(95)),
		P99:   us(h.h.ValueAtQuantile(99)),
		Max:   us(h.h.Max()),
	}
}

// ComputeStats aggregates response latencies over the whole run and per
// module. Records without a response do not contribute latency.
func ComputeStats(result *runner.RunResult) Stats {
	all := newHistogram()
	byModule := make(map[string]*histogram)
	counts := make(map[string]*ModuleStats)

	for _, rec := range result.Records {
		module := rec.Module
		if module == "" {
			module = "default"
		}
		ms, ok := counts[module]
		if !ok {
			ms = &ModuleStats{Module: module}
			counts[module] = ms
			byModule[module] = newHistogram()
		}
		switch status(rec) {
		case "passed":
			ms.Passed++
		case "failed":
			ms.Failed++
		default:
			ms.Skipped++
		}
		if rec.Response != nil {
			all.record(rec.Response.Duration)
			byModule[module].record(rec.Response.Duration)
		}
	}

	stats := Stats{Latency: all.latency()}
	for name, ms := range counts {
		ms.Latency = byModule[name].latency()
		stats.Modules = append(stats.Modules, *ms)
	}
	slices.SortFunc(stats.Modules, func(a, b ModuleStats) int {
		switch {
		case a.Module < b.Module:
			return -1
		case a.Module > b.Module:
			return 1
		}
		return 0
	})
	return stats
}
