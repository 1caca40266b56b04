package probes

import "github.com/gravito-framework/helioscope-go/pkg/types"

// ForksProbe reports the cumulative fork counter from /proc/stat. The value
// only ever grows; rates are derived downstream.
type ForksProbe struct{}

func NewForksProbe() *ForksProbe { return &ForksProbe{} }

func (p *ForksProbe) Name() string { return types.ProbeForks }

func (p *ForksProbe) Run(snap *Snapshot) ([]types.Record, error) {
	if snap.ForksTotal == nil {
		return []types.Record{
			types.NewRecord("Fork counter unavailable on this platform",
				types.Bool("supported", false),
			),
		}, nil
	}

	return []types.Record{
		types.NewRecord("Fork count",
			types.Bool("supported", true),
			types.Uint("forks_total", *snap.ForksTotal),
		),
	}, nil
}

// Ensure ForksProbe implements Probe
var _ Probe = (*ForksProbe)(nil)
