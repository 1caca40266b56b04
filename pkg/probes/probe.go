// Package probes provides the probe capability, the registry that orders
// probes, and the snapshot they all read from.
package probes

import (
	"fmt"
	"sync"

	"github.com/gravito-framework/helioscope-go/pkg/types"
)

// Probe derives metric records from a snapshot. Implementations must not
// mutate the snapshot or keep state between calls.
type Probe interface {
	Name() string
	Run(snap *Snapshot) ([]types.Record, error)
}

// ProbeError reports that a single probe could not complete. The runner
// logs it and moves on to the next probe.
type ProbeError struct {
	Probe string
	Err   error
}

func (e *ProbeError) Error() string {
	return "probe " + e.Probe + ": " + e.Err.Error()
}

func (e *ProbeError) Unwrap() error { return e.Err }

// SnapshotError reports that no snapshot could be taken at all.
type SnapshotError struct {
	Err error
}

func (e *SnapshotError) Error() string {
	return "snapshot: " + e.Err.Error()
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// Registry holds probes in registration order, keyed by unique name.
type Registry struct {
	mu     sync.RWMutex
	order  []Probe
	byName map[string]Probe
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Probe)}
}

// DefaultRegistry returns the built-in probes in canonical order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range []Probe{
		NewStaticInfoProbe(),
		NewCPUProbe(),
		NewMemoryProbe(),
		NewDiskProbe(),
		NewNetworkProbe(),
		NewTemperatureProbe(),
		NewForksProbe(),
	} {
		r.MustRegister(p)
	}
	return r
}

// Register appends p. Names must be unique.
func (r *Registry) Register(p Probe) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("probe has no name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("probe %q already registered", name)
	}
	r.byName[name] = p
	r.order = append(r.order, p)
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(p Probe) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Lookup returns the probe registered under name.
func (r *Registry) Lookup(name string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// Probes returns a copy of the registered probes in order.
func (r *Registry) Probes() []Probe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Probe, len(r.order))
	copy(out, r.order)
	return out
}
