// Package sink delivers stamped records to their destinations: the
// structured log stream, an optional Redis list, or memory for tests.
package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/gravito-framework/helioscope-go/pkg/types"
)

// Sink accepts one record at a time. Records arrive in emission order and
// Emit is never called concurrently by the runner.
type Sink interface {
	Emit(ctx context.Context, rec types.Record) error
}

// Multi fans a record out to several sinks. Every sink sees the record even
// when an earlier one fails.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks, skipping nil entries.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Emit(ctx context.Context, rec types.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of combined sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Recorder keeps every record in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []types.Record
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Emit(_ context.Context, rec types.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []types.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Record, len(r.records))
	copy(out, r.records)
	return out
}

// ByProbe returns the recorded records emitted by the named probe.
func (r *Recorder) ByProbe(name string) []types.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Record
	for _, rec := range r.records {
		if rec.Probe == name {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

// Ensure sinks implement Sink
var (
	_ Sink = (*Multi)(nil)
	_ Sink = (*Recorder)(nil)
)
