package cluster

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/chromaviz/common"
)

// ClusterFunc computes a clustering of a point sequence.
type ClusterFunc func(points []common.Vec3f, levels int) (Clustering, error)

// Poster queues functions onto the main thread. scene.Scene satisfies it.
type Poster interface {
	Post(fn func())
}

// Result is the outcome of one background clustering job.
type Result struct {
	Job      int
	Clusters Clustering
	Err      error
}

// Worker computes clusterings off the main thread and delivers each result through a Poster, so a
// Composite can be updated with SetClusters from the callback without locking.
type Worker struct {
	poster Poster
	fn     ClusterFunc
	pool   worker.DynamicWorkerPool

	mu      *sync.Mutex
	nextJob int
	pending *sync.WaitGroup
	stopped bool
}

// NewWorker creates a worker with one background goroutine.
//
// Parameters:
//   - poster: receives the result callbacks
//   - fn: the clustering function, DivisiveClustering if nil
//
// Returns:
//   - *Worker: the worker
func NewWorker(poster Poster, fn ClusterFunc) *Worker {
	if poster == nil {
		panic("cluster: NewWorker requires a non-nil Poster")
	}
	if fn == nil {
		fn = DivisiveClustering
	}
	return &Worker{
		poster:  poster,
		fn:      fn,
		pool:    worker.NewDynamicWorkerPool(1, 8, 5*time.Second),
		mu:      &sync.Mutex{},
		pending: &sync.WaitGroup{},
	}
}

// Submit clusters a copy of points in the background. done runs on the main thread with the result.
//
// Parameters:
//   - points: the point sequence
//   - levels: the number of levels to build
//   - done: receives the result
//
// Returns:
//   - int: the job number, 0 if the worker is stopped
func (w *Worker) Submit(points []common.Vec3f, levels int, done func(Result)) int {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		common.Logger().Warn("clustering submitted after stop")
		return 0
	}
	w.nextJob++
	job := w.nextJob
	w.pending.Add(1)
	w.mu.Unlock()

	points = append([]common.Vec3f(nil), points...)
	w.pool.SubmitTask(worker.Task{
		ID:      job,
		Payload: levels,
		Do: func() (res any, err error) {
			defer w.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("cluster: clustering job %d panicked: %v", job, r)
					common.Logger().Error("clustering failed", "job", job, "error", err)
					w.poster.Post(func() { done(Result{Job: job, Err: err}) })
				}
			}()
			start := time.Now()
			clusters, err := w.fn(points, levels)
			if err != nil {
				common.Logger().Warn("clustering failed", "job", job, "error", err)
			} else {
				common.Logger().Debug("clustering done", "job", job, "levels", len(clusters), "elapsed", time.Since(start))
			}
			w.poster.Post(func() { done(Result{Job: job, Clusters: clusters, Err: err}) })
			return nil, err
		},
	})
	return job
}

// Wait blocks until every submitted job has posted its result.
func (w *Worker) Wait() {
	w.pending.Wait()
}

// Stop waits for outstanding jobs and stops the pool. Later submissions are ignored.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	w.pending.Wait()
	w.pool.Stop()
}
