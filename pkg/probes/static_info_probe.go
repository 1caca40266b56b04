package probes

import (
	"errors"

	"github.com/gravito-framework/helioscope-go/pkg/types"
)

// StaticInfoProbe reports host identity verbatim from the snapshot.
type StaticInfoProbe struct{}

func NewStaticInfoProbe() *StaticInfoProbe { return &StaticInfoProbe{} }

func (p *StaticInfoProbe) Name() string { return types.ProbeStaticInfo }

func (p *StaticInfoProbe) Run(snap *Snapshot) ([]types.Record, error) {
	h := snap.Host
	if h == nil {
		return nil, &ProbeError{Probe: p.Name(), Err: errors.New("host info unavailable")}
	}

	return []types.Record{
		types.NewRecord("System info",
			types.String("hostname", h.Hostname),
			types.String("os", h.Platform),
			types.String("os_version", h.OSVersion),
			types.String("platform_family", h.PlatformFamily),
			types.String("kernel_version", h.KernelVersion),
			types.String("kernel_arch", h.KernelArch),
			types.Uint("uptime_secs", h.UptimeSecs),
		),
	}, nil
}

// Ensure StaticInfoProbe implements Probe
var _ Probe = (*StaticInfoProbe)(nil)
