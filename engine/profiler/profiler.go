package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/chromaviz/common"
)

// Sample is what one frame contributes to the profile.
type Sample struct {
	// Drawn is the number of objects that recorded a draw.
	Drawn int
	// Culled is the number of objects skipped by frustum culling.
	Culled int
	// Uploaded is the number of allocations written to the GPU before the frame.
	Uploaded int
	// Cost is the CPU time spent preparing and recording the frame.
	Cost time.Duration
}

// Report is the aggregate of one profiling interval.
type Report struct {
	FPS         float64
	AvgDrawn    float64
	AvgCulled   float64
	Uploaded    int
	AvgCost     time.Duration
	MaxCost     time.Duration
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	MaxPause    time.Duration
}

// Profiler aggregates frame samples and runtime memory statistics and logs a report at a fixed interval.
type Profiler struct {
	frames         int
	drawn          int
	culled         int
	uploaded       int
	cost           time.Duration
	maxCost        time.Duration
	lastTime       time.Time
	interval       time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	onReport       func(Report)
}

// NewProfiler creates a profiler reporting once per interval.
//
// Parameters:
//   - interval: the reporting interval, one second if not positive
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{lastTime: time.Now(), interval: interval}
}

// OnReport registers a function receiving every report in addition to the log line.
//
// Parameters:
//   - fn: the callback, or nil
func (p *Profiler) OnReport(fn func(Report)) {
	p.onReport = fn
}

// Tick records one frame. When the interval has elapsed it logs a report at Info level and resets.
//
// Parameters:
//   - s: the frame sample
//
// Returns:
//   - bool: true if a report was emitted this tick
func (p *Profiler) Tick(s Sample) bool {
	return p.tickAt(time.Now(), s)
}

func (p *Profiler) tickAt(now time.Time, s Sample) bool {
	p.frames++
	p.drawn += s.Drawn
	p.culled += s.Culled
	p.uploaded += s.Uploaded
	p.cost += s.Cost
	p.maxCost = max(p.maxCost, s.Cost)

	elapsed := now.Sub(p.lastTime)
	if elapsed < p.interval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	n := float64(p.frames)
	r := Report{
		FPS:         n / elapsed.Seconds(),
		AvgDrawn:    float64(p.drawn) / n,
		AvgCulled:   float64(p.culled) / n,
		Uploaded:    p.uploaded,
		AvgCost:     p.cost / time.Duration(p.frames),
		MaxCost:     p.maxCost,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}
	// PauseNs is a ring of the last 256 pauses.
	start := p.lastGCCount
	if r.GCCount-start > 256 {
		start = r.GCCount - 256
	}
	for i := start; i < r.GCCount; i++ {
		r.MaxPause = max(r.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
	}

	common.Logger().Info("frame profile",
		"fps", r.FPS,
		"drawn", r.AvgDrawn,
		"culled", r.AvgCulled,
		"uploaded", r.Uploaded,
		"avg_cost", r.AvgCost,
		"max_cost", r.MaxCost,
		"heap_mb", r.HeapMB,
		"alloc_rate_mb", r.AllocRateMB,
		"gc", r.GCCount,
		"max_pause", r.MaxPause,
	)
	if p.onReport != nil {
		p.onReport(r)
	}

	p.frames, p.drawn, p.culled, p.uploaded = 0, 0, 0, 0
	p.cost, p.maxCost = 0, 0
	p.lastTime = now
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
