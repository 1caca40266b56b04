// Package agent provides the Helioscope runner: one snapshot per cycle,
// every enabled probe in canonical order, records forwarded to a sink.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gravito-framework/helioscope-go/pkg/config"
	"github.com/gravito-framework/helioscope-go/pkg/probes"
	"github.com/gravito-framework/helioscope-go/pkg/sink"
	"github.com/gravito-framework/helioscope-go/pkg/types"
)

// Runner executes collection cycles.
type Runner struct {
	config   *config.Config
	logger   *zap.Logger
	source   probes.Source
	registry *probes.Registry
	sink     sink.Sink
	metrics  *Metrics
	clock    func() time.Time
	interval time.Duration

	// State
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// Option is a functional option for configuring the Runner
type Option func(*Runner)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSource sets where snapshots come from
func WithSource(source probes.Source) Option {
	return func(r *Runner) {
		r.source = source
	}
}

// WithRegistry replaces the built-in probe set
func WithRegistry(registry *probes.Registry) Option {
	return func(r *Runner) {
		r.registry = registry
	}
}

// WithSink sets where records go
func WithSink(s sink.Sink) Option {
	return func(r *Runner) {
		r.sink = s
	}
}

// WithClock sets the time source used to stamp records
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithMetrics shares an existing Metrics bundle
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithInterval overrides the configured watch-mode period
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		r.interval = d
	}
}

// New creates a Runner. Collaborators not supplied as options default to
// the gopsutil source, the built-in probes and a ZapSink.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		config:   cfg,
		logger:   zap.NewNop(),
		clock:    time.Now,
		interval: cfg.Interval(),
	}

	// Apply options
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.source == nil {
		r.source = probes.NewGopsutilSource(r.logger)
	}
	if r.registry == nil {
		r.registry = probes.DefaultRegistry()
	}
	if r.sink == nil {
		r.sink = sink.NewZapSink(r.logger)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(prometheus.NewRegistry())
	}

	return r, nil
}

// Metrics returns the runner's collectors.
func (r *Runner) Metrics() *Metrics { return r.metrics }

// RunOnce performs one cycle. Only a failed snapshot is returned as an
// error; probe and sink failures are logged and counted.
func (r *Runner) RunOnce(ctx context.Context) error {
	started := time.Now()
	logger := r.logger.With(zap.String("cycle_id", uuid.NewString()))

	defer func() {
		r.metrics.CycleDuration.Observe(time.Since(started).Seconds())
		r.writeTextfile(logger)
	}()

	snap, err := r.source.Refresh(ctx)
	if err == nil && snap == nil {
		err = errors.New("source returned no snapshot")
	}
	if err != nil {
		r.metrics.SnapshotErrors.Inc()
		var snapErr *probes.SnapshotError
		if !errors.As(err, &snapErr) {
			err = &probes.SnapshotError{Err: err}
		}
		return err
	}

	var ran, failed int
	for _, p := range r.registry.Probes() {
		name := p.Name()
		if !r.config.Probes.Enabled(name) {
			continue
		}

		logger.Info("Starting probe", zap.String("probe", name))
		r.metrics.ProbeRuns.WithLabelValues(name).Inc()
		ran++

		records, err := invoke(p, snap)
		if err != nil {
			r.metrics.ProbeFailures.WithLabelValues(name).Inc()
			failed++
			logger.Warn("Probe failed", zap.String("probe", name), zap.Error(err))
			continue
		}

		r.forward(ctx, logger, name, records)
	}

	logger.Debug("Cycle complete",
		zap.Int("probes", ran),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

// invoke runs p, turning a panic into a ProbeError.
func invoke(p probes.Probe, snap *probes.Snapshot) (records []types.Record, err error) {
	defer func() {
		if v := recover(); v != nil {
			records = nil
			err = &probes.ProbeError{Probe: p.Name(), Err: fmt.Errorf("panic: %v", v)}
		}
	}()

	records, err = p.Run(snap)
	if err != nil {
		var probeErr *probes.ProbeError
		if !errors.As(err, &probeErr) {
			err = &probes.ProbeError{Probe: p.Name(), Err: err}
		}
		return nil, err
	}
	return records, nil
}

func (r *Runner) forward(ctx context.Context, logger *zap.Logger, name string, records []types.Record) {
	now := r.clock().UTC()
	for _, rec := range records {
		rec = rec.Stamp(name, now)
		if rec.Message == "" {
			rec.Message = name
		}

		if err := r.sink.Emit(ctx, rec); err != nil {
			r.metrics.SinkErrors.Inc()
			logger.Warn("Failed to emit record", zap.String("probe", name), zap.Error(err))
			continue
		}
		r.metrics.RecordsEmitted.WithLabelValues(name).Inc()
	}
}

func (r *Runner) writeTextfile(logger *zap.Logger) {
	path := r.config.MetricsTextfile
	if path == "" {
		return
	}
	if err := r.metrics.WriteTextfile(path); err != nil {
		logger.Warn("Metrics export failed", zap.String("path", path), zap.Error(err))
	}
}

// Run executes a cycle immediately and then once per interval until ctx is
// done or Stop is called. A non-positive interval runs a single cycle and
// returns its error. In watch mode a failed snapshot only skips that cycle.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("runner already running")
	}
	r.running = true
	r.stopChan = make(chan struct{})
	stop := r.stopChan
	r.wg.Add(1)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		r.wg.Done()
	}()

	if r.interval <= 0 {
		return r.RunOnce(ctx)
	}

	r.logger.Info("Helioscope runner started",
		zap.String("node_id", r.config.NodeID),
		zap.Duration("interval", r.interval),
	)

	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("Collection cycle failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			r.logger.Info("Helioscope runner stopped")
			return nil
		case <-ctx.Done():
			r.logger.Info("Helioscope runner stopped", zap.String("reason", ctx.Err().Error()))
			return nil
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("Collection cycle failed", zap.Error(err))
			}
		}
	}
}

// Stop ends a running watch loop and waits for the in-flight cycle.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
