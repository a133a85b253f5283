package pipeline

import (
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	// key is the unique identifier for this pipeline, the type name of the objects it draws
	key string

	// desc collects the builder options and is handed to the device on compilation
	desc renderer.RenderPipelineDescriptor

	// renderPipeline is nil until the pipeline is compiled by a Cache
	renderPipeline renderer.RenderPipeline

	// spirvSize is the size of the validated SPIR-V module, zero if validation was skipped
	spirvSize int
}

// Pipeline describes a render pipeline for one object type. The WGSL program it carries is opaque: the
// engine only relies on the bind group layouts it declares, which fix the byte layout each object writes.
type Pipeline interface {
	// Key returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	Key() string

	// Descriptor returns the pipeline description.
	//
	// Returns:
	//   - renderer.RenderPipelineDescriptor: the description the pipeline is compiled from
	Descriptor() renderer.RenderPipelineDescriptor

	// RenderPipeline returns the compiled GPU pipeline, or nil before compilation.
	//
	// Returns:
	//   - renderer.RenderPipeline: the compiled pipeline or nil
	RenderPipeline() renderer.RenderPipeline

	// BindGroupLayout returns the compiled layout for a bind group index.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - renderer.BindGroupLayout: the layout, or nil if not compiled or not declared
	BindGroupLayout(group int) renderer.BindGroupLayout

	// Compiled reports whether the pipeline is ready for drawing.
	Compiled() bool

	// SPIRVSize returns the size of the validated SPIR-V module, zero if validation was skipped.
	SPIRVSize() int

	// Release releases the compiled GPU pipeline.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a render pipeline description. Depth testing and writing are enabled by default,
// blending is off and triangles are not culled.
//
// Parameters:
//   - key: the unique key, usually the type name of the drawn object
//   - opts: builder options
//
// Returns:
//   - Pipeline: the uncompiled pipeline
func NewPipeline(key string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		key: key,
		desc: renderer.RenderPipelineDescriptor{
			Label:         key,
			VertexEntry:   "vs_main",
			FragmentEntry: "fs_main",
			Topology:      renderer.TopologyTriangleList,
			CullMode:      renderer.CullModeNone,
			Blend:         renderer.BlendModeOpaque,
			DepthTest:     true,
			DepthWrite:    true,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Key() string {
	return p.key
}

func (p *pipeline) Descriptor() renderer.RenderPipelineDescriptor {
	return p.desc
}

func (p *pipeline) RenderPipeline() renderer.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) BindGroupLayout(group int) renderer.BindGroupLayout {
	if p.renderPipeline == nil {
		return nil
	}
	return p.renderPipeline.BindGroupLayout(group)
}

func (p *pipeline) Compiled() bool {
	return p.renderPipeline != nil
}

func (p *pipeline) SPIRVSize() int {
	return p.spirvSize
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
}
