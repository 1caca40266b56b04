package probes

import "github.com/gravito-framework/helioscope-go/pkg/types"

// DiskProbe emits a disk count followed by one record of raw capacity
// counters per mounted filesystem.
type DiskProbe struct{}

func NewDiskProbe() *DiskProbe { return &DiskProbe{} }

func (p *DiskProbe) Name() string { return types.ProbeDisk }

func (p *DiskProbe) Run(snap *Snapshot) ([]types.Record, error) {
	records := make([]types.Record, 0, len(snap.Disks)+1)
	records = append(records, types.NewRecord("Detected disks",
		types.Int("disk_count", int64(len(snap.Disks))),
	))

	for _, d := range snap.Disks {
		records = append(records, types.NewRecord("Disk",
			types.String("name", d.Name),
			types.String("mount_point", d.MountPoint),
			types.String("file_system", d.FileSystem),
			types.Uint("total_bytes", d.TotalBytes),
			types.Uint("available_bytes", d.AvailableBytes),
		))
	}
	return records, nil
}

// Ensure DiskProbe implements Probe
var _ Probe = (*DiskProbe)(nil)
