package perf

import (
	"sync"
	"time"
)

// RollingAverage maintains a rolling average of durations over a fixed
// sample window, used to smooth per-frame decode timing before it drives
// any decision.
type RollingAverage struct {
	samples    []time.Duration
	maxSamples int
	sum        time.Duration
	index      int
	filled     bool
	mu         sync.RWMutex
}

// NewRollingAverage creates a rolling average tracker over windowSize
// samples.
func NewRollingAverage(windowSize int) *RollingAverage {
	return &RollingAverage{
		samples:    make([]time.Duration, windowSize),
		maxSamples: windowSize,
	}
}

// Add records a new sample.
func (r *RollingAverage) Add(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filled {
		r.sum -= r.samples[r.index]
	}
	r.samples[r.index] = d
	r.sum += d

	r.index++
	if r.index >= r.maxSamples {
		r.index = 0
		r.filled = true
	}
}

// Average returns the current rolling average, or 0 if no samples have
// been recorded yet.
func (r *RollingAverage) Average() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.index
	if r.filled {
		count = r.maxSamples
	}
	if count == 0 {
		return 0
	}
	return r.sum / time.Duration(count)
}

// Reset clears all recorded samples.
func (r *RollingAverage) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sum = 0
	r.index = 0
	r.filled = false
	r.samples = make([]time.Duration, r.maxSamples)
}

// DecodeMonitor tracks how long frame decodes are taking and reports it
// through GetReport. The predraw slowdown factor (§4.B.1) is derived
// separately, by PredrawMonitor.
type DecodeMonitor struct {
	decodeTimes   *RollingAverage
	droppedWaits  int
	totalRequests int
	startTime     time.Time
	mu            sync.RWMutex
}

// Report is a snapshot of decode performance.
type Report struct {
	AvgDecodeMs   float64
	DropRate      float64
	TotalRequests int
	DroppedWaits  int
	UptimeSeconds int64
}

// NewDecodeMonitor creates a monitor averaging over windowSize decodes.
func NewDecodeMonitor(windowSize int) *DecodeMonitor {
	return &DecodeMonitor{
		decodeTimes: NewRollingAverage(windowSize),
		startTime:   time.Now(),
	}
}

// RecordDecode records the wall-clock time a single frame decode took.
func (d *DecodeMonitor) RecordDecode(dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.decodeTimes.Add(dur)
	d.totalRequests++
}

// RecordWait records that the playback engine had to enter the Waiting
// state because the requested frame was still a miss.
func (d *DecodeMonitor) RecordWait() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.droppedWaits++
	d.totalRequests++
}

// GetReport returns the current aggregated metrics.
func (d *DecodeMonitor) GetReport() Report {
	d.mu.RLock()
	defer d.mu.RUnlock()

	avg := d.decodeTimes.Average()

	dropRate := 0.0
	if d.totalRequests > 0 {
		dropRate = float64(d.droppedWaits) / float64(d.totalRequests) * 100.0
	}

	return Report{
		AvgDecodeMs:   float64(avg.Microseconds()) / 1000.0,
		DropRate:      dropRate,
		TotalRequests: d.totalRequests,
		DroppedWaits:  d.droppedWaits,
		UptimeSeconds: int64(time.Since(d.startTime).Seconds()),
	}
}

// Reset clears all recorded metrics.
func (d *DecodeMonitor) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.decodeTimes.Reset()
	d.droppedWaits = 0
	d.totalRequests = 0
	d.startTime = time.Now()
}
