package probes

import (
	"errors"
	"math"

	"github.com/gravito-framework/helioscope-go/pkg/types"
)

// CPUProbe emits a summary record followed by one record per core.
type CPUProbe struct{}

func NewCPUProbe() *CPUProbe { return &CPUProbe{} }

func (p *CPUProbe) Name() string { return types.ProbeCPU }

func (p *CPUProbe) Run(snap *Snapshot) ([]types.Record, error) {
	cores := snap.Cores
	if len(cores) == 0 {
		return nil, &ProbeError{Probe: p.Name(), Err: errors.New("no CPU cores reported")}
	}

	var freqSum uint64
	for _, c := range cores {
		freqSum += c.FrequencyMHz
	}

	records := make([]types.Record, 0, len(cores)+1)
	records = append(records, types.NewRecord("CPU summary",
		types.Int("cores", int64(len(cores))),
		types.Uint("average_frequency_mhz", freqSum/uint64(len(cores))),
	))

	for idx, c := range cores {
		records = append(records, types.NewRecord("CPU core",
			types.Int("core", int64(idx)),
			types.String("name", c.Name),
			types.Uint("frequency_mhz", c.FrequencyMHz),
			types.Percent("usage_percent", corePercent(c.Usage)),
		))
	}
	return records, nil
}

// corePercent scales a usage fraction to 0-100. Backends occasionally report
// slightly out-of-range samples, so the result is clamped.
func corePercent(fraction float64) float64 {
	pct := fraction * 100.0
	switch {
	case math.IsNaN(pct) || pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// Ensure CPUProbe implements Probe
var _ Probe = (*CPUProbe)(nil)
