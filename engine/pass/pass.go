// Package pass records the parametric objects of a frame into a render pass.
package pass

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/camera"
	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/pipeline"
)

// CameraGroup is the bind group index of the camera uniform in every object pipeline.
const CameraGroup = 0

// Stats counts what one Render call did with the objects it was given.
type Stats struct {
	Objects   int
	Hidden    int
	NotReady  int
	Culled    int
	Drawn     int
	Pipelines int
}

// ParametricPass draws parametric objects with the pipeline matching each object's concrete type.
type ParametricPass interface {
	// Label returns the debug label of the pass.
	Label() string

	// Culling reports whether objects outside the view frustum are skipped.
	Culling() bool

	// SetCulling enables or disables frustum culling.
	//
	// Parameters:
	//   - enabled: true to skip objects whose bounding box lies outside the frustum
	SetCulling(enabled bool)

	// Render records the objects into an open render pass.
	// Opaque objects are drawn first, grouped by pipeline in the order their type first appears.
	// Transparent objects follow, sorted back to front by the distance of their bounding box center.
	// Objects that are hidden or not ready are skipped.
	//
	// Parameters:
	//   - rp: the render pass of the current frame
	//   - cam: the camera providing the group 0 uniform
	//   - objects: the objects to draw, usually Scene.Objects()
	//
	// Returns:
	//   - Stats: counts of drawn and skipped objects
	//   - error: the joined errors of missing pipelines and camera preparation
	Render(rp renderer.RenderPass, cam camera.Camera, objects []gpu_object.GPUObject) (Stats, error)
}

type parametricPass struct {
	label     string
	device    renderer.Device
	pipelines pipeline.Cache
	culling   bool
}

var _ ParametricPass = &parametricPass{}

// NewParametricPass creates a pass drawing with the pipelines of a cache.
//
// Parameters:
//   - device: the device the camera uniform is created on
//   - pipelines: the cache holding a pipeline per object PipelineKey
//   - options: functional options to configure the pass
//
// Returns:
//   - ParametricPass: the pass
func NewParametricPass(device renderer.Device, pipelines pipeline.Cache, options ...ParametricPassBuilderOption) ParametricPass {
	if device == nil || pipelines == nil {
		panic("pass: NewParametricPass requires a device and a pipeline cache")
	}
	p := &parametricPass{
		label:     "Parametric",
		device:    device,
		pipelines: pipelines,
		culling:   true,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *parametricPass) Label() string {
	return p.label
}

func (p *parametricPass) Culling() bool {
	return p.culling
}

func (p *parametricPass) SetCulling(enabled bool) {
	p.culling = enabled
}

// batch is a run of objects drawn with one pipeline.
type batch struct {
	key     string
	objects []gpu_object.GPUObject
}

func (p *parametricPass) Render(rp renderer.RenderPass, cam camera.Camera, objects []gpu_object.GPUObject) (Stats, error) {
	stats := Stats{Objects: len(objects)}
	if cam == nil {
		return stats, errors.New("pass: Render requires a camera")
	}

	var frustum common.Frustum
	if p.culling {
		frustum = cam.Frustum()
	}

	var opaque []*batch
	byKey := make(map[string]*batch)
	var transparent []gpu_object.GPUObject
	for _, o := range objects {
		switch {
		case o.Hidden():
			stats.Hidden++
			continue
		case !o.Ready():
			stats.NotReady++
			continue
		}
		if p.culling {
			if box := o.BoundingBox(); !box.IsEmpty() && !frustum.IntersectsBox(box) {
				stats.Culled++
				continue
			}
		}
		if o.Transparent() {
			transparent = append(transparent, o)
			continue
		}
		b, ok := byKey[o.PipelineKey()]
		if !ok {
			b = &batch{key: o.PipelineKey()}
			byKey[b.key] = b
			opaque = append(opaque, b)
		}
		b.objects = append(b.objects, o)
	}

	eye := cam.Position()
	sort.SliceStable(transparent, func(i, j int) bool {
		return transparent[i].BoundingBox().Center.Distance(eye) > transparent[j].BoundingBox().Center.Distance(eye)
	})
	batches := opaque
	for _, o := range transparent {
		if n := len(batches); n > len(opaque) && batches[n-1].key == o.PipelineKey() {
			batches[n-1].objects = append(batches[n-1].objects, o)
			continue
		}
		batches = append(batches, &batch{key: o.PipelineKey(), objects: []gpu_object.GPUObject{o}})
	}

	var errs []error
	cameraReady := false
	for _, b := range batches {
		pl, err := p.pipelines.Pipeline(b.key)
		if err != nil {
			errs = append(errs, fmt.Errorf("pass %s: %w", p.label, err))
			continue
		}
		if !cameraReady {
			if err := cam.Prepare(p.device, pl.BindGroupLayout(CameraGroup)); err != nil {
				errs = append(errs, fmt.Errorf("pass %s: %w", p.label, err))
				break
			}
			cameraReady = true
		}
		rp.SetPipeline(pl.RenderPipeline())
		rp.SetBindGroup(CameraGroup, cam.BindGroup(), nil)
		stats.Pipelines++
		for _, o := range b.objects {
			if o.Record(rp) {
				stats.Drawn++
			}
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		common.Logger().Warn("parametric pass incomplete", "pass", p.label, "drawn", stats.Drawn, "err", err)
	}
	return stats, err
}
