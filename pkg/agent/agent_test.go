package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gravito-framework/helioscope-go/pkg/config"
	"github.com/gravito-framework/helioscope-go/pkg/probes"
	"github.com/gravito-framework/helioscope-go/pkg/sink"
	"github.com/gravito-framework/helioscope-go/pkg/types"
)

const gib = 1 << 30

func eightCoreSnapshot(load float64, usedMem uint64) probes.Snapshot {
	cores := make([]probes.CoreReading, 8)
	for i := range cores {
		cores[i] = probes.CoreReading{Name: "cpu", FrequencyMHz: 2800, Usage: load}
	}
	return probes.Snapshot{
		Host:   &probes.HostInfo{Hostname: "node-a", Platform: "debian", OSVersion: "12"},
		Cores:  cores,
		Memory: probes.MemoryReading{TotalBytes: 16 * gib, UsedBytes: usedMem},
		Sensors: []probes.SensorReading{
			{Label: "acpitz", Celsius: 40},
		},
	}
}

func configWith(flags map[string]bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Probes = config.NewProbeConfig(flags)
	return cfg
}

// stubProbe counts invocations and returns canned output.
type stubProbe struct {
	name    string
	records []types.Record
	err     error
	panics  bool
	calls   atomic.Int32
}

func (s *stubProbe) Name() string { return s.name }

func (s *stubProbe) Run(*probes.Snapshot) ([]types.Record, error) {
	s.calls.Add(1)
	if s.panics {
		panic("sensor table corrupted")
	}
	return s.records, s.err
}

type failingSink struct{}

func (failingSink) Emit(context.Context, types.Record) error { return errors.New("sink closed") }

func newRunner(t *testing.T, cfg *config.Config, opts ...Option) *Runner {
	t.Helper()
	r, err := New(cfg, opts...)
	require.NoError(t, err)
	return r
}

func probeOrder(records []types.Record) []string {
	var order []string
	for _, rec := range records {
		if len(order) == 0 || order[len(order)-1] != rec.Probe {
			order = append(order, rec.Probe)
		}
	}
	return order
}

func TestNew(t *testing.T) {
	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LogLevel = "loud"
		_, err := New(cfg)
		var cfgErr *config.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("rejects nil config", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		r := newRunner(t, config.DefaultConfig())
		assert.NotNil(t, r.source)
		assert.NotNil(t, r.sink)
		assert.NotNil(t, r.Metrics())
		assert.Len(t, r.registry.Probes(), len(types.KnownProbes))
	})
}

func TestRunOnceInvokesEnabledProbesInOrder(t *testing.T) {
	rec := sink.NewRecorder()
	cfg := configWith(map[string]bool{
		"temperature": true,
		"memory":      true,
		"static_info": true,
		"cpu":         false,
	})
	snap := eightCoreSnapshot(0.5, 8*gib)
	r := newRunner(t, cfg, WithSource(&probes.StaticSource{Snapshot: snap}), WithSink(rec))

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, []string{"static_info", "memory", "temperature"}, probeOrder(rec.Records()))
	assert.Empty(t, rec.ByProbe("cpu"))
}

func TestRunOnceScenario(t *testing.T) {
	cfg, err := config.Parse([]byte(`
		[probes.sysinfo]
		cpu = true
		memory = true
		temperature = false
	`))
	require.NoError(t, err)

	rec := sink.NewRecorder()
	r := newRunner(t, cfg,
		WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.5, 8*gib)}),
		WithSink(rec),
	)
	require.NoError(t, r.RunOnce(context.Background()))

	cpu := rec.ByProbe("cpu")
	require.Len(t, cpu, 9)
	cores, _ := cpu[0].Fields.Get("cores")
	assert.Equal(t, int64(8), cores.Int())
	for _, core := range cpu[1:] {
		pct, _ := core.Fields.Get("usage_percent")
		assert.Equal(t, "50.0", pct.Str())
	}

	mem := rec.ByProbe("memory")
	require.Len(t, mem, 2)
	pct, ok := mem[0].Fields.Get("memory_usage_percent")
	require.True(t, ok)
	assert.Equal(t, "50.0", pct.Str())

	assert.Empty(t, rec.ByProbe("temperature"))
}

func TestUnknownProbeNeverInvoked(t *testing.T) {
	cfg, err := config.Parse([]byte(`
		[probes.sysinfo]
		gpu_monitor = true
		memory = true
	`))
	require.NoError(t, err)

	gpu := &stubProbe{name: "gpu_monitor", records: []types.Record{types.NewRecord("GPU")}}
	registry := probes.DefaultRegistry()
	registry.MustRegister(gpu)

	rec := sink.NewRecorder()
	r := newRunner(t, cfg,
		WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.1, gib)}),
		WithRegistry(registry),
		WithSink(rec),
	)
	require.NoError(t, r.RunOnce(context.Background()))

	assert.Equal(t, int32(0), gpu.calls.Load())
	assert.Equal(t, []string{"memory"}, probeOrder(rec.Records()))
}

func TestProbeFailureIsIsolated(t *testing.T) {
	tests := []struct {
		name  string
		probe *stubProbe
	}{
		{"plain error", &stubProbe{name: "cpu", err: errors.New("no cores")}},
		{"probe error", &stubProbe{name: "cpu", err: &probes.ProbeError{Probe: "cpu", Err: errors.New("no cores")}}},
		{"panic", &stubProbe{name: "cpu", panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			registry := probes.NewRegistry()
			registry.MustRegister(probes.NewStaticInfoProbe())
			registry.MustRegister(tt.probe)
			registry.MustRegister(probes.NewMemoryProbe())

			rec := sink.NewRecorder()
			r := newRunner(t, configWith(map[string]bool{"static_info": true, "cpu": true, "memory": true}),
				WithLogger(zap.New(core)),
				WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.5, 8*gib)}),
				WithRegistry(registry),
				WithSink(rec),
			)

			require.NoError(t, r.RunOnce(context.Background()))

			warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
			require.Len(t, warnings, 1)
			assert.Equal(t, "Probe failed", warnings[0].Message)
			assert.Equal(t, "cpu", warnings[0].ContextMap()["probe"])

			assert.Equal(t, []string{"static_info", "memory"}, probeOrder(rec.Records()))
			assert.Equal(t, int32(1), tt.probe.calls.Load())
		})
	}
}

func TestStartMarkerLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newRunner(t, configWith(map[string]bool{"cpu": true, "memory": true}),
		WithLogger(zap.New(core)),
		WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.5, 8*gib)}),
		WithSink(sink.NewRecorder()),
	)
	require.NoError(t, r.RunOnce(context.Background()))

	starts := logs.FilterMessage("Starting probe").All()
	require.Len(t, starts, 2)
	assert.Equal(t, "cpu", starts[0].ContextMap()["probe"])
	assert.Equal(t, "memory", starts[1].ContextMap()["probe"])
	assert.Equal(t, starts[0].ContextMap()["cycle_id"], starts[1].ContextMap()["cycle_id"])
}

func TestSnapshotError(t *testing.T) {
	tests := []struct {
		name   string
		source probes.Source
	}{
		{"source error", &probes.StaticSource{Err: errors.New("sysinfo refresh failed")}},
		{"typed error", &probes.StaticSource{Err: &probes.SnapshotError{Err: errors.New("no /proc")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu := &stubProbe{name: "cpu"}
			registry := probes.NewRegistry()
			registry.MustRegister(cpu)

			rec := sink.NewRecorder()
			r := newRunner(t, configWith(map[string]bool{"cpu": true}),
				WithSource(tt.source),
				WithRegistry(registry),
				WithSink(rec),
			)

			err := r.RunOnce(context.Background())
			var snapErr *probes.SnapshotError
			require.ErrorAs(t, err, &snapErr)
			assert.Equal(t, int32(0), cpu.calls.Load())
			assert.Equal(t, 0, rec.Len())
		})
	}

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r := newRunner(t, configWith(map[string]bool{"cpu": true}),
			WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.5, gib)}),
			WithSink(sink.NewRecorder()),
		)
		err := r.RunOnce(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRecordsStampedInUTC(t *testing.T) {
	local := time.Date(2026, 7, 1, 14, 0, 0, 0, time.FixedZone("JST", 9*3600))

	rec := sink.NewRecorder()
	r := newRunner(t, configWith(map[string]bool{"memory": true}),
		WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.5, gib)}),
		WithSink(rec),
		WithClock(func() time.Time { return local }),
	)
	require.NoError(t, r.RunOnce(context.Background()))

	require.NotZero(t, rec.Len())
	for _, got := range rec.Records() {
		assert.Equal(t, time.UTC, got.Timestamp.Location())
		assert.True(t, local.Equal(got.Timestamp))
		assert.Equal(t, "memory", got.Probe)
		assert.NotEmpty(t, got.Message)
	}
}

func TestEmptyMessageGetsDefault(t *testing.T) {
	registry := probes.NewRegistry()
	registry.MustRegister(&stubProbe{name: "disk", records: []types.Record{{Fields: types.Fields{types.Int("disk_count", 0)}}}})

	rec := sink.NewRecorder()
	r := newRunner(t, configWith(map[string]bool{"disk": true}),
		WithSource(&probes.StaticSource{}),
		WithRegistry(registry),
		WithSink(rec),
	)
	require.NoError(t, r.RunOnce(context.Background()))

	require.Equal(t, 1, rec.Len())
	got := rec.Records()[0]
	assert.Equal(t, "disk", got.Message)
	assert.Equal(t, types.LevelInfo, got.Level)
}

func TestCyclesAreStructurallyIdentical(t *testing.T) {
	all := map[string]bool{}
	for _, kp := range types.KnownProbes {
		all[kp.Name] = true
	}

	shape := func(snap probes.Snapshot) [][]string {
		rec := sink.NewRecorder()
		r := newRunner(t, configWith(all), WithSource(&probes.StaticSource{Snapshot: snap}), WithSink(rec))
		require.NoError(t, r.RunOnce(context.Background()))

		var out [][]string
		for _, got := range rec.Records() {
			out = append(out, append([]string{got.Probe, got.Message}, got.Fields.Keys()...))
		}
		return out
	}

	first := shape(eightCoreSnapshot(0.25, 4*gib))
	second := shape(eightCoreSnapshot(0.75, 12*gib))
	assert.Equal(t, first, second)
}

func TestSinkErrorsAreCounted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helioscope.prom")
	cfg := configWith(map[string]bool{"memory": true, "cpu": true})
	cfg.MetricsTextfile = path

	core, logs := observer.New(zapcore.WarnLevel)
	r := newRunner(t, cfg,
		WithLogger(zap.New(core)),
		WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.5, 8*gib)}),
		WithSink(failingSink{}),
	)
	require.NoError(t, r.RunOnce(context.Background()))

	assert.Equal(t, 11, logs.FilterMessage("Failed to emit record").Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "helioscope_sink_errors_total 11")
	assert.Contains(t, text, `helioscope_probe_runs_total{probe="cpu"} 1`)
	assert.Contains(t, text, `helioscope_probe_runs_total{probe="memory"} 1`)
	assert.Contains(t, text, "helioscope_cycle_duration_seconds_count 1")
	assert.NotContains(t, text, `helioscope_records_emitted_total{probe="memory"}`)
}

func TestMetricsTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helioscope.prom")
	cfg := configWith(map[string]bool{"cpu": true, "memory": true})
	cfg.MetricsTextfile = path

	registry := probes.NewRegistry()
	registry.MustRegister(&stubProbe{name: "cpu", err: errors.New("boom")})
	registry.MustRegister(probes.NewMemoryProbe())

	r := newRunner(t, cfg,
		WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.5, 8*gib)}),
		WithRegistry(registry),
		WithSink(sink.NewRecorder()),
	)
	require.NoError(t, r.RunOnce(context.Background()))
	require.NoError(t, r.RunOnce(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `helioscope_probe_failures_total{probe="cpu"} 2`)
	assert.Contains(t, text, `helioscope_records_emitted_total{probe="memory"} 4`)
	assert.Contains(t, text, "helioscope_cycle_duration_seconds_count 2")
}

func TestRunSingleCycle(t *testing.T) {
	cfg := configWith(map[string]bool{"memory": true})
	cfg.CollectionIntervalSecs = 0

	rec := sink.NewRecorder()
	r := newRunner(t, cfg, WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.5, gib)}), WithSink(rec))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, rec.Len())

	t.Run("returns snapshot error", func(t *testing.T) {
		r := newRunner(t, cfg, WithSource(&probes.StaticSource{Err: errors.New("down")}), WithSink(rec))
		var snapErr *probes.SnapshotError
		assert.ErrorAs(t, r.Run(context.Background()), &snapErr)
	})
}

func TestRunWatchMode(t *testing.T) {
	newWatcher := func(rec *sink.Recorder) *Runner {
		return newRunner(t, configWith(map[string]bool{"memory": true}),
			WithSource(&probes.StaticSource{Snapshot: eightCoreSnapshot(0.5, gib)}),
			WithSink(rec),
			WithInterval(10*time.Millisecond),
		)
	}

	t.Run("stop", func(t *testing.T) {
		rec := sink.NewRecorder()
		r := newWatcher(rec)

		done := make(chan error, 1)
		go func() { done <- r.Run(context.Background()) }()

		assert.Eventually(t, func() bool { return rec.Len() >= 6 }, 2*time.Second, 5*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, r.Stop(ctx))
		assert.NoError(t, <-done)

		assert.NoError(t, r.Stop(ctx), "second stop is a no-op")
	})

	t.Run("context cancel", func(t *testing.T) {
		rec := sink.NewRecorder()
		r := newWatcher(rec)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- r.Run(ctx) }()

		assert.Eventually(t, func() bool { return rec.Len() >= 2 }, 2*time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("runner did not stop after cancel")
		}
	})

	t.Run("already running", func(t *testing.T) {
		rec := sink.NewRecorder()
		r := newWatcher(rec)

		done := make(chan error, 1)
		go func() { done <- r.Run(context.Background()) }()
		assert.Eventually(t, func() bool { return rec.Len() >= 2 }, 2*time.Second, 5*time.Millisecond)

		assert.Error(t, r.Run(context.Background()))

		require.NoError(t, r.Stop(context.Background()))
		assert.NoError(t, <-done)
	})

	t.Run("snapshot failure keeps watching", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		r := newRunner(t, configWith(map[string]bool{"memory": true}),
			WithLogger(zap.New(core)),
			WithSource(&probes.StaticSource{Err: errors.New("refresh failed")}),
			WithSink(sink.NewRecorder()),
			WithInterval(10*time.Millisecond),
		)

		done := make(chan error, 1)
		go func() { done <- r.Run(context.Background()) }()
		assert.Eventually(t, func() bool {
			return logs.FilterMessage("Collection cycle failed").Len() >= 2
		}, 2*time.Second, 5*time.Millisecond)

		require.NoError(t, r.Stop(context.Background()))
		assert.NoError(t, <-done)
	})
}
