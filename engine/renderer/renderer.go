package renderer

import "errors"

// ErrReleased is returned when a released resource is used.
var ErrReleased = errors.New("renderer: resource released")

// ErrNoFrame is returned when frame commands are issued outside BeginFrame/EndFrame.
var ErrNoFrame = errors.New("renderer: no frame in progress")

// Buffer is a GPU buffer handle.
type Buffer interface {
	// Label returns the debug label given at creation.
	Label() string

	// Size returns the buffer size in bytes.
	Size() uint64

	// Usage returns the usage flags given at creation.
	Usage() BufferUsage

	// Released reports whether Release has been called.
	Released() bool

	// Release frees the GPU memory. Further writes fail with ErrReleased.
	Release()
}

// Texture is a GPU texture handle.
type Texture interface {
	Label() string
	Descriptor() TextureDescriptor
	Release()
}

// Sampler is a GPU sampler handle.
type Sampler interface {
	Release()
}

// BindGroupLayout is a GPU bind group layout handle.
type BindGroupLayout interface {
	Descriptor() BindGroupLayoutDescriptor
	Release()
}

// BindGroup is a GPU bind group handle. It captures the buffers, offsets and textures it was created with,
// so it must be recreated whenever any of them moves.
type BindGroup interface {
	Label() string
	Entries() []BindGroupEntry
	Release()
}

// RenderPipeline is a compiled GPU render pipeline.
type RenderPipeline interface {
	Label() string

	// BindGroupLayout returns the layout the pipeline expects at the given group index, or nil.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - BindGroupLayout: the layout or nil if the group is not used
	BindGroupLayout(group int) BindGroupLayout

	Release()
}

// RenderPass records draw commands for the frame in progress. Commands are executed in issue order once
// the frame is submitted.
type RenderPass interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(group uint32, bg BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, b Buffer, offset, size uint64)
	SetIndexBuffer(b Buffer, format IndexFormat, offset, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
}

// Device abstracts the GPU. All methods are called from the render thread.
//
// The WebGPU implementation lives in the wgpu_backend package. NewHeadlessDevice provides an in-memory
// implementation that keeps byte-accurate buffer contents and records every draw.
type Device interface {
	// Backend returns the backend type implementing this device.
	Backend() RendererBackendType

	// CreateBuffer allocates a GPU buffer.
	//
	// Parameters:
	//   - label: debug label
	//   - size: size in bytes, rounded up to a multiple of 4
	//   - usage: usage flags
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an error if the device could not allocate it
	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)

	// WriteBuffers schedules the given writes on the queue in order. Writes become visible to draws
	// submitted after this call.
	//
	// Parameters:
	//   - writes: the writes to schedule
	//
	// Returns:
	//   - error: ErrReleased if a target buffer was released, or an out-of-range error
	WriteBuffers(writes []BufferWrite) error

	// CreateTexture allocates a 2D or 3D texture.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// WriteTexture uploads the full contents of a texture.
	WriteTexture(tex Texture, data []byte) error

	// CreateSampler creates a sampler.
	CreateSampler(desc SamplerDescriptor) (Sampler, error)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc BindGroupLayoutDescriptor) (BindGroupLayout, error)

	// CreateBindGroup creates a bind group binding concrete resources to a layout.
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)

	// CreateRenderPipeline compiles a render pipeline.
	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)

	// Resize reconfigures the presentation surface.
	Resize(width, height int)

	// Size returns the current surface size in pixels.
	Size() (width, height int)

	// BeginFrame acquires the next surface image and opens the main render pass.
	//
	// Returns:
	//   - RenderPass: the pass to record into
	//   - error: an error if a frame is already in progress or the surface is unavailable
	BeginFrame() (RenderPass, error)

	// EndFrame closes the pass, submits the recorded commands and presents.
	EndFrame() error

	// Release destroys the device and every resource still attached to it.
	Release()
}
