package probes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/procfs"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"
)

// DefaultCPUSampleInterval is how long per-core usage is measured over.
const DefaultCPUSampleInterval = 200 * time.Millisecond

// GopsutilSource implements Source using gopsutil, plus procfs for the
// fork counter.
type GopsutilSource struct {
	// CPUSampleInterval bounds the one blocking read in Refresh.
	CPUSampleInterval time.Duration
	// ProcRoot is the procfs mount point (default /proc).
	ProcRoot string

	logger *zap.Logger
}

// NewGopsutilSource creates a source with default sampling.
func NewGopsutilSource(logger *zap.Logger) *GopsutilSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GopsutilSource{
		CPUSampleInterval: DefaultCPUSampleInterval,
		ProcRoot:          procfs.DefaultMountPoint,
		logger:            logger,
	}
}

type category struct {
	name string
	read func(ctx context.Context, snap *Snapshot) error
}

// Refresh reads every category once. A failing category leaves its part of
// the snapshot empty; only a cancelled context or a total failure is fatal.
func (s *GopsutilSource) Refresh(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SnapshotError{Err: err}
	}

	snap := &Snapshot{TakenAt: time.Now().UTC()}

	categories := []category{
		{"host", s.readHost},
		{"cpu", s.readCPU},
		{"memory", s.readMemory},
		{"swap", s.readSwap},
		{"sensors", s.readSensors},
		{"disks", s.readDisks},
		{"network", s.readNICs},
		{"forks", s.readForks},
	}

	var errs []error
	for _, c := range categories {
		if err := c.read(ctx, snap); err != nil {
			s.logger.Debug("Snapshot category unavailable", zap.String("category", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &SnapshotError{Err: err}
	}
	if len(errs) == len(categories) {
		return nil, &SnapshotError{Err: errors.Join(errs...)}
	}
	return snap, nil
}

func (s *GopsutilSource) readHost(ctx context.Context, snap *Snapshot) error {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return err
	}

	h := &HostInfo{
		Hostname:       info.Hostname,
		OS:             info.OS,
		Platform:       info.Platform,
		PlatformFamily: info.PlatformFamily,
		OSVersion:      info.PlatformVersion,
		KernelVersion:  info.KernelVersion,
		KernelArch:     info.KernelArch,
		UptimeSecs:     info.Uptime,
	}
	if h.Hostname == "" {
		h.Hostname, _ = os.Hostname()
	}
	if h.OS == "" {
		h.OS = runtime.GOOS
	}
	if h.Platform == "" {
		h.Platform = h.OS
	}
	snap.Host = h
	return nil
}

func (s *GopsutilSource) readCPU(ctx context.Context, snap *Snapshot) error {
	interval := s.CPUSampleInterval
	if interval <= 0 {
		interval = DefaultCPUSampleInterval
	}

	percents, err := cpu.PercentWithContext(ctx, interval, true)
	if err != nil {
		return err
	}

	// Frequency is best-effort; cores still report usage without it.
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		s.logger.Debug("CPU frequency unavailable", zap.Error(err))
	}

	snap.Cores = coreReadings(percents, infos)
	return nil
}

// coreReadings pairs per-core usage with per-core frequency. Platforms that
// report one info entry per package get that frequency on every core.
func coreReadings(percents []float64, infos []cpu.InfoStat) []CoreReading {
	cores := make([]CoreReading, len(percents))
	for i, pct := range percents {
		var mhz float64
		switch {
		case i < len(infos):
			mhz = infos[i].Mhz
		case len(infos) > 0:
			mhz = infos[0].Mhz
		}
		if mhz < 0 {
			mhz = 0
		}
		cores[i] = CoreReading{
			Name:         fmt.Sprintf("cpu%d", i),
			FrequencyMHz: uint64(mhz + 0.5),
			Usage:        pct / 100.0,
		}
	}
	return cores
}

func (s *GopsutilSource) readMemory(ctx context.Context, snap *Snapshot) error {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return err
	}
	snap.Memory = MemoryReading{TotalBytes: v.Total, UsedBytes: v.Used}
	return nil
}

func (s *GopsutilSource) readSwap(ctx context.Context, snap *Snapshot) error {
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return err
	}
	snap.Swap = MemoryReading{TotalBytes: sw.Total, UsedBytes: sw.Used}
	return nil
}

func (s *GopsutilSource) readSensors(ctx context.Context, snap *Snapshot) error {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	// gopsutil returns partial results alongside warnings
	if err != nil && len(temps) == 0 {
		return err
	}
	snap.Sensors = sensorReadings(temps)
	return nil
}

// sensorReadings converts gopsutil readings. A non-positive threshold means
// the backend had none.
func sensorReadings(temps []host.TemperatureStat) []SensorReading {
	sensors := make([]SensorReading, 0, len(temps))
	for _, t := range temps {
		r := SensorReading{Label: t.SensorKey, Celsius: t.Temperature}
		if t.High > 0 {
			high := t.High
			r.Max = &high
		}
		if t.Critical > 0 {
			crit := t.Critical
			r.Critical = &crit
		}
		sensors = append(sensors, r)
	}
	return sensors
}

func (s *GopsutilSource) readDisks(ctx context.Context, snap *Snapshot) error {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return err
	}

	disks := make([]DiskReading, 0, len(parts))
	for _, p := range parts {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			s.logger.Debug("Disk usage unavailable", zap.String("mount", p.Mountpoint), zap.Error(err))
			continue
		}
		disks = append(disks, DiskReading{
			Name:           p.Device,
			MountPoint:     p.Mountpoint,
			FileSystem:     p.Fstype,
			TotalBytes:     usage.Total,
			AvailableBytes: usage.Free,
		})
	}
	snap.Disks = disks
	return nil
}

func (s *GopsutilSource) readNICs(ctx context.Context, snap *Snapshot) error {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return err
	}

	nics := make([]NICReading, 0, len(counters))
	for _, c := range counters {
		nics = append(nics, NICReading{
			Name:            c.Name,
			BytesReceived:   c.BytesRecv,
			BytesSent:       c.BytesSent,
			PacketsReceived: c.PacketsRecv,
			PacketsSent:     c.PacketsSent,
		})
	}
	snap.NICs = nics
	return nil
}

func (s *GopsutilSource) readForks(_ context.Context, snap *Snapshot) error {
	root := s.ProcRoot
	if root == "" {
		root = procfs.DefaultMountPoint
	}

	fs, err := procfs.NewFS(root)
	if err != nil {
		return err
	}
	stat, err := fs.Stat()
	if err != nil {
		return err
	}

	forks := stat.ProcessCreated
	snap.ForksTotal = &forks
	return nil
}

// Ensure GopsutilSource implements Source
var _ Source = (*GopsutilSource)(nil)
