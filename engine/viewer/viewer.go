// Package viewer wires a device, a scene, a camera and the parametric pass into an interactive frame loop
// around a cluster composite.
package viewer

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/camera"
	"github.com/Carmen-Shannon/chromaviz/engine/cluster"
	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
	"github.com/Carmen-Shannon/chromaviz/engine/pass"
	"github.com/Carmen-Shannon/chromaviz/engine/profiler"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/chromaviz/engine/scene"
	"github.com/Carmen-Shannon/chromaviz/engine/window"
)

// Viewer is the interactive frame loop. Every method must be called from the thread that owns the
// device; Run makes that the window thread.
type Viewer interface {
	// Device returns the device frames are rendered on.
	Device() renderer.Device

	// Scene returns the scene every object is registered in.
	Scene() scene.Scene

	// Camera returns the camera frames are rendered with.
	Camera() camera.Camera

	// Pass returns the pass recording the scene.
	Pass() pass.ParametricPass

	// Composite returns the cluster tree, nil until one is set.
	Composite() cluster.Composite

	// SetComposite replaces the cluster tree, releasing the previous one, and frames the camera on it.
	//
	// Parameters:
	//   - c: the new tree, or nil
	SetComposite(c cluster.Composite)

	// Selected returns the picked node, cluster.NoNode if nothing is picked.
	Selected() cluster.NodeID

	// Select picks a node, highlighting it and clearing every other highlight.
	//
	// Parameters:
	//   - id: the node, or cluster.NoNode to clear the selection
	Select(id cluster.NodeID)

	// SetTickCallback registers a function called at the start of every frame, before the scene flushes.
	//
	// Parameters:
	//   - callback: function receiving the frame delta in seconds, or nil
	SetTickCallback(callback func(dt float32))

	// Frame flushes the scene, advances the camera and records one frame.
	//
	// Parameters:
	//   - dt: the time since the previous frame in seconds
	//
	// Returns:
	//   - pass.Stats: what the pass drew
	//   - error: the joined flush, frame and pass errors
	Frame(dt float32) (pass.Stats, error)

	// Resize adapts the device surface and the camera viewport to a new framebuffer size.
	//
	// Parameters:
	//   - width: the width in pixels
	//   - height: the height in pixels
	Resize(width, height int)

	// HandleKey applies a key binding.
	//
	// Parameters:
	//   - key: the key
	//   - action: press, repeat or release
	HandleKey(key common.Key, action common.KeyAction)

	// HandleMouseButton starts or ends a drag, picking on a click without movement.
	//
	// Parameters:
	//   - button: the button
	//   - action: press or release
	//   - x, y: the cursor position in pixels
	HandleMouseButton(button common.MouseButton, action common.KeyAction, x, y float32)

	// HandleMouseMove rotates the camera while the left button drags and pans while the right button
	// or shift with the left button drags.
	//
	// Parameters:
	//   - x, y: the cursor position in pixels
	HandleMouseMove(x, y float32)

	// HandleScroll zooms the camera.
	//
	// Parameters:
	//   - delta: the wheel delta, positive when scrolling up
	HandleScroll(delta float32)

	// Run attaches the input callbacks to a window and renders until it closes.
	//
	// Parameters:
	//   - w: the window whose surface the device presents to
	Run(w window.Window)

	// Quit makes Run return after the current frame. Safe to call multiple times.
	Quit()

	// Release releases the tree, the worker, the camera, the scene and the pipelines. The device stays
	// with its owner.
	Release()
}

type viewer struct {
	device    renderer.Device
	pipelines pipeline.Cache
	scene     scene.Scene
	camera    camera.Camera
	pass      pass.ParametricPass
	composite cluster.Composite
	worker    *cluster.Worker
	levels    int

	sceneOptions []scene.SceneBuilderOption
	passOptions  []pass.ParametricPassBuilderOption
	validation   bool

	profiler         *profiler.Profiler
	profilingEnabled bool
	frameLimit       time.Duration
	tick             func(dt float32)

	selected cluster.NodeID
	input    inputState
	quit     bool
}

var _ Viewer = &viewer{}

// NewViewer creates the pipelines, the scene, the camera and the pass on a device.
//
// Parameters:
//   - device: the device to render on
//   - options: functional options to configure the viewer
//
// Returns:
//   - Viewer: the viewer
//   - error: an error if the pipelines or the scene could not be created
func NewViewer(device renderer.Device, options ...ViewerBuilderOption) (Viewer, error) {
	if device == nil {
		panic("viewer: NewViewer requires a non-nil Device")
	}
	v := &viewer{
		device:     device,
		levels:     8,
		validation: true,
		profiler:   profiler.NewProfiler(time.Second),
		selected:   cluster.NoNode,
	}
	for _, opt := range options {
		opt(v)
	}

	v.pipelines = pipeline.NewCache(device, pipeline.WithValidation(v.validation))
	if err := v.pipelines.Register(gpu_object.Pipelines()...); err != nil {
		v.pipelines.Release()
		return nil, fmt.Errorf("viewer: %w", err)
	}
	s, err := scene.NewScene("viewer", device, append([]scene.SceneBuilderOption{scene.WithPipelines(v.pipelines)}, v.sceneOptions...)...)
	if err != nil {
		v.pipelines.Release()
		return nil, fmt.Errorf("viewer: %w", err)
	}
	v.scene = s
	if v.camera == nil {
		v.camera = camera.NewCamera(camera.WithController(camera.NewSmoothController()))
	}
	v.camera.SetViewport(device.Size())
	v.pass = pass.NewParametricPass(device, v.pipelines, v.passOptions...)
	v.worker = cluster.NewWorker(s, nil)
	common.Logger().Info("viewer created", "backend", device.Backend().String())
	return v, nil
}

func (v *viewer) Device() renderer.Device {
	return v.device
}

func (v *viewer) Scene() scene.Scene {
	return v.scene
}

func (v *viewer) Camera() camera.Camera {
	return v.camera
}

func (v *viewer) Pass() pass.ParametricPass {
	return v.pass
}

func (v *viewer) Composite() cluster.Composite {
	return v.composite
}

func (v *viewer) SetComposite(c cluster.Composite) {
	if v.composite != nil && v.composite != c {
		v.composite.Release()
	}
	v.composite = c
	v.selected = cluster.NoNode
	v.frameAll()
}

func (v *viewer) Selected() cluster.NodeID {
	return v.selected
}

func (v *viewer) Select(id cluster.NodeID) {
	if v.composite == nil {
		return
	}
	v.composite.ClearHighlights()
	v.selected = id
	if id != cluster.NoNode {
		v.composite.SetHighlighted(id, true)
	}
}

func (v *viewer) SetTickCallback(callback func(dt float32)) {
	v.tick = callback
}

func (v *viewer) Frame(dt float32) (pass.Stats, error) {
	start := time.Now()
	if v.tick != nil {
		v.tick(dt)
	}

	var errs []error
	flush, err := v.scene.Flush()
	if err != nil {
		errs = append(errs, err)
	}
	v.camera.Update(dt)

	var stats pass.Stats
	rp, err := v.device.BeginFrame()
	if err != nil {
		return stats, errors.Join(append(errs, fmt.Errorf("viewer: begin frame: %w", err))...)
	}
	stats, err = v.pass.Render(rp, v.camera, v.scene.Objects())
	if err != nil {
		errs = append(errs, err)
	}
	if err := v.device.EndFrame(); err != nil {
		errs = append(errs, fmt.Errorf("viewer: end frame: %w", err))
	}

	if v.profilingEnabled {
		v.profiler.Tick(profiler.Sample{
			Drawn:    stats.Drawn,
			Culled:   stats.Culled,
			Uploaded: flush.Uploaded,
			Cost:     time.Since(start),
		})
	}
	return stats, errors.Join(errs...)
}

func (v *viewer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	v.device.Resize(width, height)
	v.camera.SetViewport(width, height)
}

func (v *viewer) Run(w window.Window) {
	w.SetResizeCallback(v.Resize)
	w.SetKeyCallback(v.HandleKey)
	w.SetMouseButtonCallback(v.HandleMouseButton)
	w.SetMouseMoveCallback(v.HandleMouseMove)
	w.SetScrollCallback(v.HandleScroll)
	v.Resize(w.Width(), w.Height())

	last := time.Now()
	w.SetUpdateCallback(func() {
		if v.quit {
			_ = w.Close()
			return
		}
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		if _, err := v.Frame(dt); err != nil {
			common.Logger().Warn("frame failed", "error", err)
		}
		if v.frameLimit > 0 {
			if remaining := v.frameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	})
	w.ProcessMessages()
}

func (v *viewer) Quit() {
	v.quit = true
}

func (v *viewer) Release() {
	v.worker.Stop()
	if v.composite != nil {
		v.composite.Release()
		v.composite = nil
	}
	v.camera.Release()
	v.scene.Release()
	v.pipelines.Release()
}

// frameAll points the camera at every visible object.
func (v *viewer) frameAll() {
	box := common.EmptyBoundingBox()
	for _, o := range v.scene.Objects() {
		if !o.Hidden() {
			box.Extend(o.BoundingBox())
		}
	}
	if box.IsEmpty() {
		return
	}
	if c := v.camera.Controller(); c != nil {
		c.Frame(box, v.camera.Fov())
	}
}
