// Package perf tracks the wall-clock cost of decoding frames and the host's
// memory pressure. The frame cache's window-sizing policy depends on the
// memory signal only; decode timing is reported, never acted on.
package perf

import (
	"log"
	"runtime"
	"time"
)

// MemorySnapshot is a point-in-time read of system and Go-runtime memory.
type MemorySnapshot struct {
	Timestamp   time.Time
	TotalMB     uint64
	AvailableMB uint64
	UsedMB      uint64
	FreeMB      uint64
}

// GoMemoryStats summarizes the Go runtime's own heap usage, independent of
// the host's total memory.
type GoMemoryStats struct {
	AllocMB      uint64
	TotalAllocMB uint64
	SysMB        uint64
	NumGC        uint32
}

// GoMemory retrieves current Go runtime memory statistics.
func GoMemory() GoMemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return GoMemoryStats{
		AllocMB:      m.Alloc / (1024 * 1024),
		TotalAllocMB: m.TotalAlloc / (1024 * 1024),
		SysMB:        m.Sys / (1024 * 1024),
		NumGC:        m.NumGC,
	}
}

// AvailableMemoryMB returns the host's currently available memory in MB.
func AvailableMemoryMB() uint64 {
	return SystemMemory().AvailableMB
}

// PressureLevel categorizes how constrained available memory currently is.
// The cache's High tier (§4.B) is entered whenever this reaches PressureHigh
// or above, independent of the image's own size-based tier.
type PressureLevel int

const (
	PressureNone PressureLevel = iota
	PressureLow
	PressureMedium
	PressureHigh
	PressureCritical
)

func (p PressureLevel) String() string {
	switch p {
	case PressureNone:
		return "none"
	case PressureLow:
		return "low"
	case PressureMedium:
		return "medium"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// CurrentPressure classifies the host's current memory pressure from its
// available memory.
func CurrentPressure() PressureLevel {
	available := AvailableMemoryMB()

	switch {
	case available < 100:
		return PressureCritical
	case available < 200:
		return PressureHigh
	case available < 400:
		return PressureMedium
	case available < 800:
		return PressureLow
	default:
		return PressureNone
	}
}

// LogSnapshot writes a one-line memory summary via the standard logger,
// useful when diagnosing why the cache downgraded its window.
func LogSnapshot() {
	sys := SystemMemory()
	goMem := GoMemory()
	pressure := CurrentPressure()

	log.Printf("perf: memory system[total=%dMB avail=%dMB used=%dMB free=%dMB] go[alloc=%dMB sys=%dMB gc=%d] pressure=%s",
		sys.TotalMB, sys.AvailableMB, sys.UsedMB, sys.FreeMB,
		goMem.AllocMB, goMem.SysMB, goMem.NumGC,
		pressure)
}
