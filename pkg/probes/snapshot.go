package probes

import (
	"context"
	"time"
)

// Source acquires a fresh Snapshot. Refresh is the only blocking step of a
// cycle; probes never read the OS themselves.
type Source interface {
	Refresh(ctx context.Context) (*Snapshot, error)
}

// Snapshot is one point-in-time read of host state. It is shared read-only
// by every probe in a cycle.
type Snapshot struct {
	TakenAt time.Time `json:"takenAt"`

	Host    *HostInfo       `json:"host,omitempty"`
	Cores   []CoreReading   `json:"cores"`
	Memory  MemoryReading   `json:"memory"`
	Swap    MemoryReading   `json:"swap"`
	Sensors []SensorReading `json:"sensors"`
	Disks   []DiskReading   `json:"disks"`
	NICs    []NICReading    `json:"nics"`

	// Cumulative processes created since boot. Nil when /proc/stat is
	// unavailable.
	ForksTotal *uint64 `json:"forksTotal,omitempty"`
}

// HostInfo is system identity metadata.
type HostInfo struct {
	Hostname       string `json:"hostname"`
	OS             string `json:"os"`
	Platform       string `json:"platform"`
	PlatformFamily string `json:"platformFamily"`
	OSVersion      string `json:"osVersion"`
	KernelVersion  string `json:"kernelVersion"`
	KernelArch     string `json:"kernelArch"`
	UptimeSecs     uint64 `json:"uptimeSecs"`
}

// CoreReading is one logical CPU.
type CoreReading struct {
	Name         string  `json:"name"`
	FrequencyMHz uint64  `json:"frequencyMhz"`
	Usage        float64 `json:"usage"` // fraction, 0..1
}

// MemoryReading is a total/used pair in bytes.
type MemoryReading struct {
	TotalBytes uint64 `json:"totalBytes"`
	UsedBytes  uint64 `json:"usedBytes"`
}

// SensorReading is one temperature sensor. Max and Critical are nil when the
// backend does not report them.
type SensorReading struct {
	Label    string   `json:"label"`
	Celsius  float64  `json:"celsius"`
	Max      *float64 `json:"max,omitempty"`
	Critical *float64 `json:"critical,omitempty"`
}

// DiskReading is one mounted filesystem.
type DiskReading struct {
	Name           string `json:"name"`
	MountPoint     string `json:"mountPoint"`
	FileSystem     string `json:"fileSystem"`
	TotalBytes     uint64 `json:"totalBytes"`
	AvailableBytes uint64 `json:"availableBytes"`
}

// NICReading holds cumulative counters for one network interface.
type NICReading struct {
	Name            string `json:"name"`
	BytesReceived   uint64 `json:"bytesReceived"`
	BytesSent       uint64 `json:"bytesSent"`
	PacketsReceived uint64 `json:"packetsReceived"`
	PacketsSent     uint64 `json:"packetsSent"`
}

// StaticSource returns the same snapshot on every Refresh, restamped with
// the current time. Tests and replay tooling use it.
type StaticSource struct {
	Snapshot Snapshot
	Err      error
}

func (s *StaticSource) Refresh(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SnapshotError{Err: err}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	snap := s.Snapshot
	snap.TakenAt = time.Now().UTC()
	return &snap, nil
}
