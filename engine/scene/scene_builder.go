package scene

import (
	"github.com/Carmen-Shannon/chromaviz/engine/allocator"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/pipeline"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithCapacity sets the initial size of the properties buffer in bytes. The scene grows it on demand.
//
// Parameters:
//   - capacity: the initial capacity in bytes
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCapacity(capacity uint64) SceneBuilderOption {
	return func(s *scene) {
		s.allocOpts = append(s.allocOpts, allocator.WithCapacity(capacity))
	}
}

// WithAlignment sets the offset alignment of object allocations. It must match the device's minimum
// storage buffer offset alignment, 256 bytes on most WebGPU adapters.
//
// Parameters:
//   - alignment: the alignment in bytes, a power of two of at least 4
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAlignment(alignment uint64) SceneBuilderOption {
	return func(s *scene) {
		s.allocOpts = append(s.allocOpts, allocator.WithAlignment(alignment))
	}
}

// WithPipelines supplies the pipeline cache objects look their bind group layouts up in. Several scenes
// and passes on one device can share a cache this way. The scene does not release a supplied cache.
//
// Parameters:
//   - cache: a cache holding the object pipelines
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPipelines(cache pipeline.Cache) SceneBuilderOption {
	return func(s *scene) {
		s.pipelines = cache
		s.ownsPipelines = false
	}
}

// WithPickWorkers sets the number of worker goroutines evaluating ray intersections of large scenes.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of pick workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPickWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.pickWorkers = n
	}
}
