package probes

import "github.com/gravito-framework/helioscope-go/pkg/types"

// MemoryProbe emits one record for physical memory and one for swap.
type MemoryProbe struct{}

func NewMemoryProbe() *MemoryProbe { return &MemoryProbe{} }

func (p *MemoryProbe) Name() string { return types.ProbeMemory }

func (p *MemoryProbe) Run(snap *Snapshot) ([]types.Record, error) {
	mem, swap := snap.Memory, snap.Swap

	return []types.Record{
		types.NewRecord("Memory usage",
			types.Uint("total_memory_bytes", mem.TotalBytes),
			types.Uint("used_memory_bytes", mem.UsedBytes),
			types.Percent("memory_usage_percent", types.UsagePercent(mem.UsedBytes, mem.TotalBytes)),
		),
		// total is 0 when swap is disabled; UsagePercent reports 0.0 then
		types.NewRecord("Swap usage",
			types.Uint("total_swap_bytes", swap.TotalBytes),
			types.Uint("used_swap_bytes", swap.UsedBytes),
			types.Percent("swap_usage_percent", types.UsagePercent(swap.UsedBytes, swap.TotalBytes)),
		),
	}, nil
}

// Ensure MemoryProbe implements Probe
var _ Probe = (*MemoryProbe)(nil)
