//go:build !linux

package perf

import (
	"runtime"
	"time"
)

// SystemMemory approximates host memory on platforms without a cheap
// system-wide syscall (darwin, windows): it reports the Go process's own
// footprint against an assumed total, which is enough to drive the cache's
// relative pressure tiers even if the absolute numbers are approximate.
func SystemMemory() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	const assumedTotalMB = 4096
	sysMB := m.Sys / (1024 * 1024)
	usedMB := sysMB
	availableMB := assumedTotalMB - usedMB
	if usedMB > assumedTotalMB {
		availableMB = assumedTotalMB / 2
	}

	return MemorySnapshot{
		Timestamp:   time.Now(),
		TotalMB:     assumedTotalMB,
		AvailableMB: availableMB,
		UsedMB:      usedMB,
		FreeMB:      availableMB,
	}
}
