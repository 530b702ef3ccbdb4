package runner

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// memo is the write-once case id to Record table of a run. Concurrent
// resolution of the same id is collapsed by the singleflight group, and
// store refuses to overwrite an existing record.
type memo struct {
	mu       sync.Mutex
	records  map[string]*Record
	flight   singleflight.Group
	rejected atomic.Int64
}

func newMemo() *memo {
	return &memo{records: make(map[string]*Record)}
}

func (m *memo) load(id string) (*Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok
}

// store saves rec unless a record for the same id exists. It returns the
// record that is now stored and whether it was rec.
func (m *memo) store(rec *Record) (*Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[rec.CaseID]; ok {
		m.rejected.Add(1)
		return existing, false
	}
	m.records[rec.CaseID] = rec
	return rec, true
}

func (m *memo) snapshot() map[string]*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Record, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out
}
