package metrics

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is the host resource snapshot exposed alongside the ingest
// pipeline's own health in /healthz: load and memory pressure explain a
// degraded pipeline that no per-request metric would show on its own.
type HostStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemUsedPct float64 `json:"memory_used_percent"`
	Load1      float64 `json:"load1"`
	Load5      float64 `json:"load5"`
	Load15     float64 `json:"load15"`
}

// CollectHostStats reads a point-in-time host resource snapshot. Any
// individual reading that fails (e.g. load averages on a platform without
// them) is left at its zero value rather than failing the whole call.
func CollectHostStats() HostStats {
	var stats HostStats

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemUsedPct = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		stats.Load1 = avg.Load1
		stats.Load5 = avg.Load5
		stats.Load15 = avg.Load15
	}

	return stats
}
