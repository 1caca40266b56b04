package probes

import (
	"strconv"

	"github.com/gravito-framework/helioscope-go/pkg/types"
)

// TemperatureProbe emits a sensor count followed by one record per sensor.
type TemperatureProbe struct{}

func NewTemperatureProbe() *TemperatureProbe { return &TemperatureProbe{} }

func (p *TemperatureProbe) Name() string { return types.ProbeTemperature }

func (p *TemperatureProbe) Run(snap *Snapshot) ([]types.Record, error) {
	records := make([]types.Record, 0, len(snap.Sensors)+1)
	records = append(records, types.NewRecord("Detected temperature sensors",
		types.Int("sensor_count", int64(len(snap.Sensors))),
	))

	for _, s := range snap.Sensors {
		fields := types.Fields{
			types.String("label", s.Label),
			types.Float("temperature_celsius", s.Celsius),
		}
		if s.Max != nil {
			fields = append(fields, types.String("max_celsius", formatCelsius(*s.Max)))
		}
		// No threshold, no flag.
		if s.Critical != nil {
			fields = append(fields,
				types.String("critical_celsius", formatCelsius(*s.Critical)),
				types.Bool("above_critical", s.Celsius >= *s.Critical),
			)
		}
		records = append(records, types.NewRecord("Temperature sensor", fields...))
	}
	return records, nil
}

func formatCelsius(c float64) string {
	return strconv.FormatFloat(c, 'f', 1, 64)
}

// Ensure TemperatureProbe implements Probe
var _ Probe = (*TemperatureProbe)(nil)
