package viewer

import (
	"time"

	"github.com/Carmen-Shannon/chromaviz/engine/camera"
	"github.com/Carmen-Shannon/chromaviz/engine/pass"
	"github.com/Carmen-Shannon/chromaviz/engine/scene"
)

// ViewerBuilderOption is a functional option for configuring a Viewer.
// Use the With* functions to create options.
type ViewerBuilderOption func(v *viewer)

// WithProfiling enables or disables the periodic frame profile logged at Info level.
//
// Parameters:
//   - enabled: if true, frames are profiled
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithProfiling(enabled bool) ViewerBuilderOption {
	return func(v *viewer) {
		v.profilingEnabled = enabled
	}
}

// WithRenderFrameLimit caps the frame rate of Run. Pass 0 to uncap it, the default.
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) ViewerBuilderOption {
	return func(v *viewer) {
		if fps <= 0 {
			v.frameLimit = 0
			return
		}
		v.frameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithCamera sets the camera frames are rendered with. Defaults to a camera with a smooth controller.
// The viewer releases it.
//
// Parameters:
//   - c: the camera
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithCamera(c camera.Camera) ViewerBuilderOption {
	return func(v *viewer) {
		v.camera = c
	}
}

// WithSceneOptions forwards options to the scene, such as its initial capacity.
//
// Parameters:
//   - options: the scene options
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithSceneOptions(options ...scene.SceneBuilderOption) ViewerBuilderOption {
	return func(v *viewer) {
		v.sceneOptions = append(v.sceneOptions, options...)
	}
}

// WithPassOptions forwards options to the parametric pass, such as culling.
//
// Parameters:
//   - options: the pass options
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithPassOptions(options ...pass.ParametricPassBuilderOption) ViewerBuilderOption {
	return func(v *viewer) {
		v.passOptions = append(v.passOptions, options...)
	}
}

// WithValidation toggles WGSL validation of the object pipelines. It is on by default.
//
// Parameters:
//   - enabled: false to skip validation
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithValidation(enabled bool) ViewerBuilderOption {
	return func(v *viewer) {
		v.validation = enabled
	}
}

// WithClusterLevels sets how many levels a reclustering builds.
//
// Parameters:
//   - levels: the number of levels, at least 1
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithClusterLevels(levels int) ViewerBuilderOption {
	return func(v *viewer) {
		v.levels = max(levels, 1)
	}
}
