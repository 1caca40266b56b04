package probes

import "github.com/gravito-framework/helioscope-go/pkg/types"

// NetworkProbe emits an interface count followed by the cumulative counters
// of each interface. Rates are left to the consumer.
type NetworkProbe struct{}

func NewNetworkProbe() *NetworkProbe { return &NetworkProbe{} }

func (p *NetworkProbe) Name() string { return types.ProbeNetwork }

func (p *NetworkProbe) Run(snap *Snapshot) ([]types.Record, error) {
	records := make([]types.Record, 0, len(snap.NICs)+1)
	records = append(records, types.NewRecord("Detected network interfaces",
		types.Int("interface_count", int64(len(snap.NICs))),
	))

	for _, n := range snap.NICs {
		records = append(records, types.NewRecord("Network interface",
			types.String("interface", n.Name),
			types.Uint("bytes_received", n.BytesReceived),
			types.Uint("bytes_sent", n.BytesSent),
			types.Uint("packets_received", n.PacketsReceived),
			types.Uint("packets_sent", n.PacketsSent),
		))
	}
	return records, nil
}

// Ensure NetworkProbe implements Probe
var _ Probe = (*NetworkProbe)(nil)
