package perf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRollingAverage_AveragesOverWindow(t *testing.T) {
	r := NewRollingAverage(3)
	assert.Equal(t, time.Duration(0), r.Average(), "an empty window averages to zero, not NaN or a panic")

	r.Add(10 * time.Millisecond)
	r.Add(20 * time.Millisecond)
	assert.Equal(t, 15*time.Millisecond, r.Average())

	r.Add(30 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, r.Average())
}

func TestRollingAverage_EvictsOldestOnceWindowFills(t *testing.T) {
	r := NewRollingAverage(2)
	r.Add(10 * time.Millisecond)
	r.Add(20 * time.Millisecond)
	// Window is full; this overwrites the 10ms sample, not the 20ms one.
	r.Add(40 * time.Millisecond)

	assert.Equal(t, 30*time.Millisecond, r.Average())
}

func TestRollingAverage_ResetClearsSamples(t *testing.T) {
	r := NewRollingAverage(4)
	r.Add(50 * time.Millisecond)
	r.Reset()
	assert.Equal(t, time.Duration(0), r.Average())
}

func TestDecodeMonitor_ReportsDropRate(t *testing.T) {
	d := NewDecodeMonitor(10)
	d.RecordDecode(5 * time.Millisecond)
	d.RecordDecode(15 * time.Millisecond)
	d.RecordWait()

	report := d.GetReport()
	assert.Equal(t, 3, report.TotalRequests)
	assert.Equal(t, 1, report.DroppedWaits)
	assert.InDelta(t, 33.33, report.DropRate, 0.1)
	assert.InDelta(t, 10.0, report.AvgDecodeMs, 0.5)
}

func TestDecodeMonitor_Reset(t *testing.T) {
	d := NewDecodeMonitor(10)
	d.RecordDecode(5 * time.Millisecond)
	d.RecordWait()
	d.Reset()

	report := d.GetReport()
	assert.Zero(t, report.TotalRequests)
	assert.Zero(t, report.DroppedWaits)
}
