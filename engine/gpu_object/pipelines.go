package gpu_object

import (
	_ "embed"
	"strings"

	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/pipeline"
)

// CameraUniformSize is the size of the camera uniform bound at group 0.
const CameraUniformSize = 160

// CubeVertexCount is the number of vertices drawn per impostor cube.
const CubeVertexCount = 36

var (
	//go:embed assets/sphere_program.wgsl
	sphereProgram string

	//go:embed assets/rounded_cone_program.wgsl
	roundedConeProgram string

	//go:embed assets/rounded_cone_instanced_program.wgsl
	roundedConeInstancedProgram string

	//go:embed assets/spline_program.wgsl
	splineProgram string

	//go:embed assets/sdf_grid_program.wgsl
	sdfGridProgram string

	//go:embed assets/volume_program.wgsl
	volumeProgram string

	//go:embed assets/mesh_program.wgsl
	meshProgram string

	//go:embed assets/ray_program.wgsl
	rayProgram string
)

// Program returns the WGSL module drawing objects of a kind: the shared prelude, the canonical struct
// definition and the entry points.
//
// Parameters:
//   - k: the object kind
//
// Returns:
//   - string: the module source, empty for an unknown kind
func Program(k Kind) string {
	var parts []string
	switch k {
	case KindSphere:
		parts = []string{GPUSphereSource, sphereProgram}
	case KindRoundedCone:
		parts = []string{GPURoundedConeSource, roundedConeProgram}
	case KindRoundedConeInstanced:
		parts = []string{GPURoundedConeInstanceSource, roundedConeInstancedProgram}
	case KindSpline:
		parts = []string{GPUSplineSegmentSource, splineProgram}
	case KindSignedDistanceGrid:
		parts = []string{GPUSignedDistanceGridSource, sdfGridProgram}
	case KindVolume, KindDynamicVolume:
		parts = []string{GPUVolumeUnitSource, volumeProgram}
	case KindMesh:
		parts = []string{GPUMeshSource, meshProgram}
	case KindRay:
		parts = []string{GPURaySource, rayProgram}
	default:
		return ""
	}
	return CommonSource + "\n" + strings.Join(parts, "\n")
}

// CameraLayout returns the layout of bind group 0, shared by every object pipeline.
func CameraLayout() renderer.BindGroupLayoutDescriptor {
	return renderer.BindGroupLayoutDescriptor{
		Label: "camera",
		Entries: []renderer.BindGroupLayoutEntry{{
			Binding:        0,
			Visibility:     renderer.ShaderStageVertex | renderer.ShaderStageFragment,
			Type:           renderer.BindingTypeUniform,
			MinBindingSize: CameraUniformSize,
		}},
	}
}

// ObjectLayout returns the layout of the per-object bind group of a kind.
//
// Parameters:
//   - k: the object kind
//
// Returns:
//   - renderer.BindGroupLayoutDescriptor: the layout
func ObjectLayout(k Kind) renderer.BindGroupLayoutDescriptor {
	vf := renderer.ShaderStageVertex | renderer.ShaderStageFragment
	props := func(size uint64) renderer.BindGroupLayoutEntry {
		return renderer.BindGroupLayoutEntry{Binding: 0, Visibility: vf, Type: renderer.BindingTypeReadOnlyStorage, MinBindingSize: size}
	}

	desc := renderer.BindGroupLayoutDescriptor{Label: k.String()}
	switch k {
	case KindSphere:
		desc.Entries = append(desc.Entries, props(SphereSize))
	case KindRoundedCone:
		desc.Entries = append(desc.Entries, props(RoundedConeSize))
	case KindRoundedConeInstanced:
		desc.Entries = append(desc.Entries, props(RoundedConeInstanceSize))
	case KindSpline:
		desc.Entries = append(desc.Entries, props(SplineSegmentSize))
	case KindSignedDistanceGrid:
		desc.Entries = append(desc.Entries,
			props(SignedDistanceGridSize),
			renderer.BindGroupLayoutEntry{Binding: 1, Visibility: renderer.ShaderStageFragment, Type: renderer.BindingTypeTexture3D},
		)
	case KindVolume, KindDynamicVolume:
		desc.Entries = append(desc.Entries,
			props(VolumeUnitSize),
			renderer.BindGroupLayoutEntry{Binding: 1, Visibility: renderer.ShaderStageFragment, Type: renderer.BindingTypeReadOnlyStorage, MinBindingSize: VolumePointSize},
			renderer.BindGroupLayoutEntry{Binding: 2, Visibility: renderer.ShaderStageFragment, Type: renderer.BindingTypeTexture2D},
			renderer.BindGroupLayoutEntry{Binding: 3, Visibility: renderer.ShaderStageFragment, Type: renderer.BindingTypeSampler},
		)
	case KindMesh:
		desc.Entries = append(desc.Entries, props(MeshSize))
	case KindRay:
		desc.Entries = append(desc.Entries, props(RaySize))
	}
	return desc
}

// NewObjectPipeline describes the pipeline drawing objects of a kind. The transparent variant blends with
// alpha and leaves the depth buffer untouched.
//
// Parameters:
//   - k: the object kind
//   - transparent: whether to build the alpha blended variant
//
// Returns:
//   - pipeline.Pipeline: the uncompiled pipeline, keyed by PipelineKey(k, transparent)
func NewObjectPipeline(k Kind, transparent bool) pipeline.Pipeline {
	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithSource(Program(k)),
		pipeline.WithBindGroupLayouts(CameraLayout(), ObjectLayout(k)),
		pipeline.WithBlendEnabled(transparent),
		pipeline.WithDepthWriteEnabled(!transparent),
	}
	if k == KindMesh {
		opts = append(opts,
			pipeline.WithVertexBuffers(renderer.VertexBufferLayout{
				ArrayStride: MeshVertexSize,
				Attributes: []renderer.VertexAttribute{
					{Format: renderer.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: renderer.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				},
			}),
		)
	}
	return pipeline.NewPipeline(PipelineKey(k, transparent), opts...)
}

// Pipelines returns the opaque and transparent pipelines of every kind, ready to be registered with a
// pipeline.Cache.
func Pipelines() []pipeline.Pipeline {
	out := make([]pipeline.Pipeline, 0, 2*len(Kinds))
	for _, k := range Kinds {
		out = append(out, NewObjectPipeline(k, false), NewObjectPipeline(k, true))
	}
	return out
}
