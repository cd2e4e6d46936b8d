// Package metrics keeps the ingest counters and evaluates alert thresholds over them.
package metrics

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"

	"trackcanon/internal/shared"
)

// Metrics is the persisted counter set.
type Metrics struct {
	Processed int            `json:"processed"`
	Accepted  int            `json:"accepted"`
	Queued    int            `json:"queued"`
	Skipped   int            `json:"skipped"`
	Errors    int            `json:"errors"`
	ByReason  map[string]int `json:"byReason"`
}

// SkipRate is skipped/processed, or 0 when nothing was processed.
func (m Metrics) SkipRate() float64 {
	if m.Processed == 0 {
		return 0
	}
	return float64(m.Skipped) / float64(m.Processed)
}

func (m Metrics) clone() Metrics {
	c := m
	c.ByReason = maps.Clone(m.ByReason)
	if c.ByReason == nil {
		c.ByReason = map[string]int{}
	}
	return c
}

// Recorder owns the counters and rewrites metrics.json after every increment.
// An empty path keeps the counters in memory only.
type Recorder struct {
	path string
	mu   sync.Mutex
	m    Metrics
}

// NewRecorder returns a zeroed recorder persisting to path.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path, m: Metrics{ByReason: map[string]int{}}}
}

// OpenRecorder resumes the counters stored at path. A missing file starts from zero.
func OpenRecorder(path string) (*Recorder, error) {
	r := NewRecorder(path)
	var m Metrics
	if err := shared.ReadJSONFile(path, &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	r.m = m.clone()
	return r, nil
}

// IncProcessed counts one row that finished the pipeline.
func (r *Recorder) IncProcessed() error { return r.update(func(m *Metrics) { m.Processed++ }) }

// IncAccepted counts one record in the accept tier.
func (r *Recorder) IncAccepted() error { return r.update(func(m *Metrics) { m.Accepted++ }) }

// IncQueued counts one record in the queue tier.
func (r *Recorder) IncQueued() error { return r.update(func(m *Metrics) { m.Queued++ }) }

// IncSkipped counts one skipped record under reason.
func (r *Recorder) IncSkipped(reason string) error {
	return r.update(func(m *Metrics) {
		m.Skipped++
		m.ByReason[reason]++
	})
}

// IncError counts one row whose processing failed.
func (r *Recorder) IncError() error { return r.update(func(m *Metrics) { m.Errors++ }) }

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m.clone()
}

// Save persists the current counters.
func (r *Recorder) Save() error {
	return r.update(func(*Metrics) {})
}

// Path returns where the counters are persisted.
func (r *Recorder) Path() string {
	return r.path
}

func (r *Recorder) update(fn func(*Metrics)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.m)
	if r.path == "" {
		return nil
	}
	return shared.WriteJSONFile(r.path, r.m)
}
