package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cattleherd/internal/types"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// DefaultSettleDelay is the minimum spacing between the two CPU samples a
// utilization reading needs. The first sample after process start is
// meaningless on its own.
const DefaultSettleDelay = 200 * time.Millisecond

// Engine samples live host state. Exactly one refresh is in flight at a
// time; concurrent snapshot calls serialize on the internal lock and never
// observe a partially refreshed state.
type Engine struct {
	mu     sync.Mutex
	settle time.Duration
	logger *zap.Logger
}

// NewEngine creates a snapshot engine with the given settling delay
func NewEngine(settle time.Duration, logger *zap.Logger) *Engine {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Engine{
		settle: settle,
		logger: logger,
	}
}

// Initial produces the once-per-session connect report. The caller fills in
// the device ID; everything else is read from the live host. Blocks for the
// settling delay.
func (e *Engine) Initial(ctx context.Context) (*types.InitialConnectReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.cpuUtilization(ctx); err != nil {
		return nil, err
	}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: host info: %v", types.ErrSnapshotUnavailable, err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: memory: %v", types.ErrSnapshotUnavailable, err)
	}

	diskTotal, _, err := e.diskBytes(ctx)
	if err != nil {
		return nil, err
	}

	cpuCount, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%w: cpu count: %v", types.ErrSnapshotUnavailable, err)
	}

	var brand, name string
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		brand = infos[0].ModelName
		name = infos[0].VendorID
	}

	return &types.InitialConnectReport{
		Hostname:         info.Hostname,
		OSName:           info.OS,
		OSVersion:        info.PlatformVersion,
		OSVersionLong:    fmt.Sprintf("%s %s (%s %s)", info.Platform, info.PlatformVersion, info.OS, info.KernelVersion),
		TotalMemoryBytes: vm.Total,
		TotalDiskBytes:   diskTotal,
		CPUCount:         cpuCount,
		CPUBrand:         brand,
		CPUName:          name,
		UptimeSeconds:    info.Uptime,
	}, nil
}

// Update produces one periodic report. Blocks for the settling delay while
// the two CPU samples are taken.
func (e *Engine) Update(ctx context.Context) (*types.PeriodicUpdateReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cpuPct, err := e.cpuUtilization(ctx)
	if err != nil {
		return nil, err
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: memory: %v", types.ErrSnapshotUnavailable, err)
	}

	_, diskFree, err := e.diskBytes(ctx)
	if err != nil {
		return nil, err
	}

	count, topName, topUser, err := e.topProcess(ctx)
	if err != nil {
		return nil, err
	}

	return &types.PeriodicUpdateReport{
		CPUUtilization:       cpuPct,
		AvailableMemoryBytes: vm.Available,
		AvailableDiskBytes:   diskFree,
		ProcessCount:         count,
		TopProcessName:       topName,
		TopProcessUser:       topUser,
	}, nil
}

// cpuUtilization takes two time-separated samples and returns the delta
// percentage, clamped to [0, 100]. The settling wait honors cancellation.
func (e *Engine) cpuUtilization(ctx context.Context) (float64, error) {
	if _, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		return 0, fmt.Errorf("%w: cpu sample: %v", types.ErrSnapshotUnavailable, err)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(e.settle):
	}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("%w: cpu sample: %v", types.ErrSnapshotUnavailable, err)
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("%w: cpu sample returned no data", types.ErrSnapshotUnavailable)
	}
	return clampPercent(percents[0]), nil
}

// diskBytes sums capacity and free space across all mounted partitions
func (e *Engine) diskBytes(ctx context.Context) (total uint64, free uint64, err error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: disk partitions: %v", types.ErrSnapshotUnavailable, err)
	}

	for _, part := range parts {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			// Pseudo and unreadable mounts are skipped, not fatal
			continue
		}
		total += usage.Total
		free += usage.Free
	}
	return total, free, nil
}

// topProcess scans the live process table for the single process with the
// highest instantaneous CPU usage. Owner resolution failures fall back to
// "unknown" rather than failing the snapshot.
func (e *Engine) topProcess(ctx context.Context) (count int, name string, user string, err error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, "", "", fmt.Errorf("%w: process table: %v", types.ErrSnapshotUnavailable, err)
	}

	samples := make([]procSample, 0, len(procs))
	for _, p := range procs {
		pct, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			// Processes exiting mid-scan are expected
			continue
		}
		samples = append(samples, procSample{proc: p, cpu: pct})
	}

	top, ok := selectTop(samples)
	if !ok {
		return len(samples), "unknown", "unknown", nil
	}

	name, user = "unknown", "unknown"
	if n, err := top.proc.NameWithContext(ctx); err == nil {
		name = n
	} else {
		e.logger.Warn("Top process vanished before name resolution",
			zap.Int32("pid", top.proc.Pid),
			zap.Error(fmt.Errorf("%w: %v", types.ErrProcessLookupFailed, err)))
	}
	if u, err := top.proc.UsernameWithContext(ctx); err == nil {
		user = u
	} else {
		e.logger.Warn("Top process owner lookup failed",
			zap.Int32("pid", top.proc.Pid),
			zap.Error(fmt.Errorf("%w: %v", types.ErrProcessLookupFailed, err)))
	}

	return len(samples), name, user, nil
}

// procSample is one row of the scanned process table
type procSample struct {
	proc *process.Process
	cpu  float64
}

// selectTop returns the sample with the highest CPU usage. Ties keep the
// first-encountered row, reproducibly across repeated calls on an unchanged
// table.
func selectTop(samples []procSample) (procSample, bool) {
	if len(samples) == 0 {
		return procSample{}, false
	}
	top := samples[0]
	for _, s := range samples[1:] {
		if s.cpu > top.cpu {
			top = s
		}
	}
	return top, true
}

// clampPercent bounds a percentage reading to [0, 100]
func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
