// Package hostvitals samples host CPU/memory/load via gopsutil and
// surfaces them alongside the formal energy model — an ambient
// operational signal, never a substitute for it (SPEC_FULL.md §3).
package hostvitals

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one point-in-time host resource reading.
type Snapshot struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemPercent  float64 `json:"mem_percent"`
	Load1       float64 `json:"load1"`
	Load5       float64 `json:"load5"`
	Load15      float64 `json:"load15"`
}

// Sample takes a snapshot. Individual collector failures degrade that
// field to zero rather than failing the whole sample — the `vitals`
// command must never block on a host sampling quirk.
func Sample() Snapshot {
	var snap Snapshot

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		snap.CPUPercent = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemPercent = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		snap.Load1 = avg.Load1
		snap.Load5 = avg.Load5
		snap.Load15 = avg.Load15
	}
	return snap
}
