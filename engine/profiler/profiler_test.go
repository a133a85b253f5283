package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickReportsPerInterval(t *testing.T) {
	p := NewProfiler(time.Second)
	var reports []Report
	p.OnReport(func(r Report) { reports = append(reports, r) })

	start := p.lastTime
	assert.False(t, p.tickAt(start.Add(300*time.Millisecond), Sample{Drawn: 10, Culled: 2, Uploaded: 1, Cost: time.Millisecond}))
	assert.False(t, p.tickAt(start.Add(600*time.Millisecond), Sample{Drawn: 20, Culled: 4, Cost: 3 * time.Millisecond}))
	assert.True(t, p.tickAt(start.Add(1000*time.Millisecond), Sample{Drawn: 30, Culled: 0, Uploaded: 2, Cost: 2 * time.Millisecond}))

	require.Len(t, reports, 1)
	r := reports[0]
	assert.InDelta(t, 3, r.FPS, 1e-9)
	assert.InDelta(t, 20, r.AvgDrawn, 1e-9)
	assert.InDelta(t, 2, r.AvgCulled, 1e-9)
	assert.Equal(t, 3, r.Uploaded)
	assert.Equal(t, 2*time.Millisecond, r.AvgCost)
	assert.Equal(t, 3*time.Millisecond, r.MaxCost)

	assert.False(t, p.tickAt(start.Add(1500*time.Millisecond), Sample{}), "the interval restarts after a report")
}

func TestDefaultInterval(t *testing.T) {
	assert.Equal(t, time.Second, NewProfiler(0).interval)
}
