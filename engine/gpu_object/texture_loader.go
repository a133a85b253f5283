package gpu_object

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/lucasb-eyer/go-colorful"
)

// TextureLoader runs expensive texture preparation (image decoding, distance grid sampling) on a worker
// pool and hands the results back to the main thread through Host.Post. Objects keep drawing nothing
// until the posted result is applied, so a frame may safely render while a load is in flight.
type TextureLoader struct {
	host    Host
	pool    worker.DynamicWorkerPool
	workers int

	mu      *sync.Mutex
	nextID  int
	pending *sync.WaitGroup
	stopped bool
}

// NewTextureLoader creates a loader posting its results to host.
//
// Parameters:
//   - host: the host whose main-thread queue receives the results
//   - opts: builder options
//
// Returns:
//   - *TextureLoader: the loader
func NewTextureLoader(host Host, opts ...TextureLoaderBuilderOption) *TextureLoader {
	if host == nil {
		panic("gpu_object: NewTextureLoader requires a non-nil Host")
	}
	l := &TextureLoader{
		host:    host,
		workers: max(runtime.NumCPU()/2, 1),
		mu:      &sync.Mutex{},
		pending: &sync.WaitGroup{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.pool = worker.NewDynamicWorkerPool(l.workers, 64, 1*time.Second)
	return l
}

// Go runs work on the pool. If it succeeds the returned apply function is posted to the main thread;
// failures are logged and dropped.
//
// Parameters:
//   - label: a debug label for logging
//   - work: the background work, returning the main-thread continuation
func (l *TextureLoader) Go(label string, work func() (func(), error)) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		common.Logger().Warn("texture load after stop", "label", label)
		return
	}
	l.nextID++
	id := l.nextID
	l.pending.Add(1)
	l.mu.Unlock()

	l.pool.SubmitTask(worker.Task{
		ID:      id,
		Payload: label,
		Do: func() (any, error) {
			defer l.pending.Done()
			apply, err := work()
			if err != nil {
				common.Logger().Warn("texture load failed", "label", label, "error", err)
				return nil, err
			}
			if apply != nil {
				l.host.Post(apply)
			}
			return nil, nil
		},
	})
}

// LoadImage decodes an image in the background and calls apply with the RGBA8 texels on the main thread.
//
// Parameters:
//   - src: the encoded image
//   - apply: receives the decoded texels
func (l *TextureLoader) LoadImage(src common.ImageSource, apply func(common.TextureStagingData)) {
	l.Go(common.Coalesce(src.Path, "embedded image"), func() (func(), error) {
		data, err := src.Decode()
		if err != nil {
			return nil, err
		}
		return func() { apply(data) }, nil
	})
}

// Wait blocks until every submitted background job has finished and posted its result. The posted
// functions still run at the host's next flush.
func (l *TextureLoader) Wait() {
	l.pending.Wait()
}

// Stop waits for outstanding work and stops the pool. Later loads are ignored.
func (l *TextureLoader) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.mu.Unlock()

	l.pending.Wait()
	l.pool.Stop()
}

// DefaultColormap returns a 256x1 RGBA8 gradient blended in HCL from deep blue to yellow. It is used by
// volumes until a colormap image is loaded.
func DefaultColormap() common.TextureStagingData {
	stops := []colorful.Color{
		colorful.Color{R: 0.267, G: 0.005, B: 0.329},
		colorful.Color{R: 0.128, G: 0.567, B: 0.551},
		colorful.Color{R: 0.993, G: 0.906, B: 0.144},
	}
	const width = 256
	pixels := make([]byte, 0, width*4)
	for i := 0; i < width; i++ {
		t := float64(i) / (width - 1) * float64(len(stops)-1)
		seg := min(int(t), len(stops)-2)
		c := stops[seg].BlendHcl(stops[seg+1], t-float64(seg)).Clamped()
		r, g, b := c.RGB255()
		pixels = append(pixels, r, g, b, 255)
	}
	return common.TextureStagingData{Pixels: pixels, Width: width, Height: 1, Depth: 1, BytesPerTexel: 4}
}
