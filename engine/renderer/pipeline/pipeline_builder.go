package pipeline

import "github.com/Carmen-Shannon/chromaviz/engine/renderer"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithSource sets the WGSL module holding both entry points.
//
// Parameters:
//   - wgsl: the shader source
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shader source for this pipeline
func WithSource(wgsl string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.desc.Source = wgsl
	}
}

// WithEntryPoints overrides the default vs_main/fs_main entry point names.
//
// Parameters:
//   - vertex: the vertex entry point
//   - fragment: the fragment entry point
//
// Returns:
//   - PipelineBuilderOption: a function that sets the entry points for this pipeline
func WithEntryPoints(vertex, fragment string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.desc.VertexEntry = vertex
		p.desc.FragmentEntry = fragment
	}
}

// WithBindGroupLayouts sets the bind group layouts in group order.
//
// Parameters:
//   - layouts: one descriptor per bind group index
//
// Returns:
//   - PipelineBuilderOption: a function that sets the layouts for this pipeline
func WithBindGroupLayouts(layouts ...renderer.BindGroupLayoutDescriptor) PipelineBuilderOption {
	return func(p *pipeline) {
		p.desc.BindGroupLayouts = layouts
	}
}

// WithVertexBuffers sets the vertex buffer layouts for pipelines that do not pull vertices from storage.
//
// Parameters:
//   - layouts: one layout per vertex buffer slot
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex buffer layouts for this pipeline
func WithVertexBuffers(layouts ...renderer.VertexBufferLayout) PipelineBuilderOption {
	return func(p *pipeline) {
		p.desc.VertexBuffers = layouts
	}
}

// WithTopology sets the primitive topology.
//
// Parameters:
//   - t: the topology
//
// Returns:
//   - PipelineBuilderOption: a function that sets the topology for this pipeline
func WithTopology(t renderer.PrimitiveTopology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.desc.Topology = t
	}
}

// WithCullMode sets the face culling mode.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode for this pipeline
func WithCullMode(mode renderer.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.desc.CullMode = mode
	}
}

// WithBlendEnabled switches between opaque output and alpha blending. Transparent objects draw with an
// alpha-blended pipeline that does not write depth.
//
// Parameters:
//   - enabled: true for alpha blending
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend mode for this pipeline
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		if enabled {
			p.desc.Blend = renderer.BlendModeAlpha
		} else {
			p.desc.Blend = renderer.BlendModeOpaque
		}
	}
}

// WithDepthTestEnabled sets whether depth testing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth testing should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth test enabled state for this pipeline
func WithDepthTestEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.desc.DepthTest = enabled
	}
}

// WithDepthWriteEnabled sets whether depth writing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth writes should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth write enabled state for this pipeline
func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.desc.DepthWrite = enabled
	}
}
