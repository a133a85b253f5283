package renderer

// BufferUsage is a bit set describing how a GPU buffer may be used.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// Has reports whether every flag in f is set.
func (u BufferUsage) Has(f BufferUsage) bool {
	return u&f == f
}

// ShaderStage is a bit set of pipeline stages a binding is visible to.
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute
)

// BindingType identifies the kind of resource a bind group layout entry expects.
type BindingType int

const (
	BindingTypeUniform BindingType = iota
	BindingTypeStorage
	BindingTypeReadOnlyStorage
	BindingTypeTexture2D
	BindingTypeTexture3D
	BindingTypeSampler
)

// IsBuffer reports whether the binding expects a buffer range.
func (t BindingType) IsBuffer() bool {
	return t == BindingTypeUniform || t == BindingTypeStorage || t == BindingTypeReadOnlyStorage
}

func (t BindingType) String() string {
	switch t {
	case BindingTypeUniform:
		return "uniform"
	case BindingTypeStorage:
		return "storage"
	case BindingTypeReadOnlyStorage:
		return "read-only storage"
	case BindingTypeTexture2D:
		return "texture_2d"
	case BindingTypeTexture3D:
		return "texture_3d"
	case BindingTypeSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// TextureFormat is the texel format of a texture.
type TextureFormat int

const (
	TextureFormatRGBA8Unorm TextureFormat = iota
	TextureFormatR32Float
	TextureFormatR8Unorm
)

// BytesPerTexel returns the size of one texel.
func (f TextureFormat) BytesPerTexel() uint32 {
	switch f {
	case TextureFormatR8Unorm:
		return 1
	default:
		return 4
	}
}

// TextureDimension is the dimensionality of a texture.
type TextureDimension int

const (
	TextureDimension2D TextureDimension = iota
	TextureDimension3D
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label     string
	Width     uint32
	Height    uint32
	Depth     uint32
	Format    TextureFormat
	Dimension TextureDimension
}

// ByteSize returns the number of bytes a full upload of the texture carries.
func (d TextureDescriptor) ByteSize() uint64 {
	return uint64(d.Width) * uint64(d.Height) * uint64(max(d.Depth, 1)) * uint64(d.Format.BytesPerTexel())
}

// AddressMode controls sampling outside the [0, 1] range.
type AddressMode int

const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
)

// FilterMode selects texel filtering.
type FilterMode int

const (
	FilterModeLinear FilterMode = iota
	FilterModeNearest
)

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label       string
	AddressMode AddressMode
	Filter      FilterMode
}

// BindGroupLayoutEntry describes one binding slot of a bind group layout.
type BindGroupLayoutEntry struct {
	Binding          uint32
	Visibility       ShaderStage
	Type             BindingType
	MinBindingSize   uint64
	HasDynamicOffset bool
}

// BindGroupLayoutDescriptor describes a bind group layout.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry binds one resource to a binding slot. Exactly one of Buffer, Texture or Sampler is set.
// Size zero binds the rest of the buffer from Offset.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	Size    uint64
	Texture Texture
	Sampler Sampler
}

// BindGroupDescriptor describes a bind group to create.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// PrimitiveTopology selects how vertices are assembled.
type PrimitiveTopology int

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyTriangleStrip
	TopologyLineList
)

// CullMode selects which faces are discarded.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeBack
	CullModeFront
)

// BlendMode selects the color blend state.
type BlendMode int

const (
	BlendModeOpaque BlendMode = iota
	BlendModeAlpha
)

// VertexFormat is the format of a vertex attribute.
type VertexFormat int

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
)

// VertexAttribute describes one attribute within a vertex buffer.
type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

// VertexBufferLayout describes the layout of one vertex buffer slot.
type VertexBufferLayout struct {
	ArrayStride uint64
	PerInstance bool
	Attributes  []VertexAttribute
}

// RenderPipelineDescriptor describes a render pipeline. Source is a WGSL module holding both entry points.
type RenderPipelineDescriptor struct {
	Label            string
	Source           string
	VertexEntry      string
	FragmentEntry    string
	BindGroupLayouts []BindGroupLayoutDescriptor
	VertexBuffers    []VertexBufferLayout
	Topology         PrimitiveTopology
	CullMode         CullMode
	Blend            BlendMode
	DepthTest        bool
	DepthWrite       bool
}

// IndexFormat is the element type of an index buffer.
type IndexFormat int

const (
	IndexFormatUint32 IndexFormat = iota
	IndexFormatUint16
)

// BufferWrite describes a single GPU buffer write at a byte offset.
type BufferWrite struct {
	Buffer Buffer
	Offset uint64
	Data   []byte
}
