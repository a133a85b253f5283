package gpu_object

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/chromaviz/common"
)

// ObjectGroup is the bind group index of per-object resources. Group 0 holds the camera uniform.
const ObjectGroup = 1

// Byte sizes of the packed property structs. They are part of the contract with the GPU programs.
const (
	SphereSize                  = 128
	RoundedConeSize             = 128
	RoundedConeInstanceSize     = 64
	SplineSegmentSize           = 48
	SignedDistanceGridSize      = 176
	VolumeUnitSize              = 192
	RaySize                     = 128
	MeshSize                    = 80
	MeshVertexSize              = 24
	VolumePointSize             = 16
	SplineFlagHidden     uint32 = 1
)

// CommonSource declares the camera uniform at group 0 and helpers shared by every object program.
//
//go:embed assets/common.wgsl
var CommonSource string

// layoutWriter writes little-endian scalars at byte offsets of a destination slice.
type layoutWriter []byte

func (w layoutWriter) f32(off int, v float32) {
	binary.LittleEndian.PutUint32(w[off:off+4], math.Float32bits(v))
}

func (w layoutWriter) u32(off int, v uint32) {
	binary.LittleEndian.PutUint32(w[off:off+4], v)
}

func (w layoutWriter) vec3(off int, v [3]float32) {
	for i := 0; i < 3; i++ {
		w.f32(off+4*i, v[i])
	}
}

func (w layoutWriter) vec4(off int, v [4]float32) {
	for i := 0; i < 4; i++ {
		w.f32(off+4*i, v[i])
	}
}

func (w layoutWriter) mat4(off int, m common.Mat4) {
	for i := 0; i < 16; i++ {
		w.f32(off+4*i, m[i])
	}
}

func (w layoutWriter) zero(off, n int) {
	clear(w[off : off+n])
}

// GPUSphereSource is the canonical WGSL definition of the Sphere struct.
// Matches GPUSphere layout exactly (128 bytes).
//
//go:embed assets/sphere.wgsl
var GPUSphereSource string

// GPUSphere is the packed representation of a Sphere.
type GPUSphere struct {
	Model       common.Mat4 // offset   0: unit cube onto the bounding box
	Center      [3]float32  // offset  64
	Radius      float32     // offset  76
	Color       [4]float32  // offset  80
	BorderColor [4]float32  // offset  96
	BorderRatio float32     // offset 112: fraction of the silhouette drawn in BorderColor
	_pad        [3]float32  // offset 116
}

// Size returns the size of the GPUSphere struct in bytes.
func (g *GPUSphere) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto serializes the struct into the first 128 bytes of buf.
func (g *GPUSphere) MarshalInto(buf []byte) {
	w := layoutWriter(buf)
	w.mat4(0, g.Model)
	w.vec3(64, g.Center)
	w.f32(76, g.Radius)
	w.vec4(80, g.Color)
	w.vec4(96, g.BorderColor)
	w.f32(112, g.BorderRatio)
	w.zero(116, 12)
}

// GPURoundedConeSource is the canonical WGSL definition of the RoundedCone struct.
// Matches GPURoundedCone layout exactly (128 bytes).
//
//go:embed assets/rounded_cone.wgsl
var GPURoundedConeSource string

// GPURoundedCone is the packed representation of a RoundedCone.
type GPURoundedCone struct {
	Model       common.Mat4 // offset   0
	Start       [3]float32  // offset  64
	StartRadius float32     // offset  76
	End         [3]float32  // offset  80
	EndRadius   float32     // offset  92
	StartColor  [4]float32  // offset  96
	EndColor    [4]float32  // offset 112
}

// Size returns the size of the GPURoundedCone struct in bytes.
func (g *GPURoundedCone) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto serializes the struct into the first 128 bytes of buf.
func (g *GPURoundedCone) MarshalInto(buf []byte) {
	w := layoutWriter(buf)
	w.mat4(0, g.Model)
	w.vec3(64, g.Start)
	w.f32(76, g.StartRadius)
	w.vec3(80, g.End)
	w.f32(92, g.EndRadius)
	w.vec4(96, g.StartColor)
	w.vec4(112, g.EndColor)
}

// GPURoundedConeInstanceSource is the canonical WGSL definition of the RoundedConeInstance struct.
// Matches GPURoundedConeInstance layout exactly (64 bytes per instance).
//
//go:embed assets/rounded_cone_instanced.wgsl
var GPURoundedConeInstanceSource string

// GPURoundedConeInstance is one element of the RoundedConeInstanced storage array.
type GPURoundedConeInstance struct {
	Start       [3]float32 // offset  0
	StartRadius float32    // offset 12
	End         [3]float32 // offset 16
	EndRadius   float32    // offset 28
	StartColor  [4]float32 // offset 32
	EndColor    [4]float32 // offset 48
}

// Size returns the size of the GPURoundedConeInstance struct in bytes.
func (g *GPURoundedConeInstance) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto serializes the struct into the first 64 bytes of buf.
func (g *GPURoundedConeInstance) MarshalInto(buf []byte) {
	w := layoutWriter(buf)
	w.vec3(0, g.Start)
	w.f32(12, g.StartRadius)
	w.vec3(16, g.End)
	w.f32(28, g.EndRadius)
	w.vec4(32, g.StartColor)
	w.vec4(48, g.EndColor)
}

// GPUSplineSegmentSource is the canonical WGSL definition of the SplineSegment struct.
// Matches GPUSplineSegment layout exactly (48 bytes per segment).
//
//go:embed assets/spline.wgsl
var GPUSplineSegmentSource string

// GPUSplineSegment is one quadratic Bezier segment of a Spline.
type GPUSplineSegment struct {
	P0     [3]float32 // offset  0
	Radius float32    // offset 12
	P1     [3]float32 // offset 16
	Color  uint32     // offset 28: packed RGBA8
	P2     [3]float32 // offset 32
	Flags  uint32     // offset 44: SplineFlagHidden
}

// Size returns the size of the GPUSplineSegment struct in bytes.
func (g *GPUSplineSegment) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto serializes the struct into the first 48 bytes of buf.
func (g *GPUSplineSegment) MarshalInto(buf []byte) {
	w := layoutWriter(buf)
	w.vec3(0, g.P0)
	w.f32(12, g.Radius)
	w.vec3(16, g.P1)
	w.u32(28, g.Color)
	w.vec3(32, g.P2)
	w.u32(44, g.Flags)
}

// GPUSignedDistanceGridSource is the canonical WGSL definition of the SignedDistanceGrid struct.
// Matches GPUSignedDistanceGrid layout exactly (176 bytes).
//
//go:embed assets/sdf_grid.wgsl
var GPUSignedDistanceGridSource string

// GPUSignedDistanceGrid is the packed representation of a SignedDistanceGrid. The distances themselves
// live in an R32Float 3D texture bound next to it.
type GPUSignedDistanceGrid struct {
	Model        common.Mat4 // offset   0: unit cube onto the grid box
	Inverse      common.Mat4 // offset  64
	Color        [4]float32  // offset 128
	Resolution   uint32      // offset 144
	CapsuleCount uint32      // offset 148
	Radius       float32     // offset 152: local units
	Smoothness   float32     // offset 156: local units
	Tolerance    float32     // offset 160
	_pad         [3]float32  // offset 164
}

// Size returns the size of the GPUSignedDistanceGrid struct in bytes.
func (g *GPUSignedDistanceGrid) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto serializes the struct into the first 176 bytes of buf.
func (g *GPUSignedDistanceGrid) MarshalInto(buf []byte) {
	w := layoutWriter(buf)
	w.mat4(0, g.Model)
	w.mat4(64, g.Inverse)
	w.vec4(128, g.Color)
	w.u32(144, g.Resolution)
	w.u32(148, g.CapsuleCount)
	w.f32(152, g.Radius)
	w.f32(156, g.Smoothness)
	w.f32(160, g.Tolerance)
	w.zero(164, 12)
}

// GPUVolumeUnitSource is the canonical WGSL definition of the VolumeUnit struct.
// Matches GPUVolumeUnit layout exactly (192 bytes per unit).
//
//go:embed assets/volume.wgsl
var GPUVolumeUnitSource string

// GPUVolumeUnit is one unit of a Volume or DynamicVolume: a smooth union of capsules through the points
// [From, To] of the shared points buffer.
type GPUVolumeUnit struct {
	Model         common.Mat4 // offset   0
	Inverse       common.Mat4 // offset  64
	Color         [4]float32  // offset 128
	Radius        float32     // offset 144
	Smoothness    float32     // offset 148
	Tolerance     float32     // offset 152
	InstanceIndex uint32      // offset 156
	BoxMin        [3]float32  // offset 160
	From          uint32      // offset 172
	BoxMax        [3]float32  // offset 176
	To            uint32      // offset 188: inclusive
}

// Size returns the size of the GPUVolumeUnit struct in bytes.
func (g *GPUVolumeUnit) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto serializes the struct into the first 192 bytes of buf.
func (g *GPUVolumeUnit) MarshalInto(buf []byte) {
	w := layoutWriter(buf)
	w.mat4(0, g.Model)
	w.mat4(64, g.Inverse)
	w.vec4(128, g.Color)
	w.f32(144, g.Radius)
	w.f32(148, g.Smoothness)
	w.f32(152, g.Tolerance)
	w.u32(156, g.InstanceIndex)
	w.vec3(160, g.BoxMin)
	w.u32(172, g.From)
	w.vec3(176, g.BoxMax)
	w.u32(188, g.To)
}

// GPURaySource is the canonical WGSL definition of the Ray struct.
// Matches GPURay layout exactly (128 bytes).
//
//go:embed assets/ray.wgsl
var GPURaySource string

// GPURay is the packed representation of a Ray object.
type GPURay struct {
	Model     common.Mat4 // offset   0
	Origin    [3]float32  // offset  64
	MinT      float32     // offset  76
	Direction [3]float32  // offset  80
	MaxT      float32     // offset  92: clamped to the drawn length
	Color     [4]float32  // offset  96
	Thickness float32     // offset 112
	_pad      [3]float32  // offset 116
}

// Size returns the size of the GPURay struct in bytes.
func (g *GPURay) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto serializes the struct into the first 128 bytes of buf.
func (g *GPURay) MarshalInto(buf []byte) {
	w := layoutWriter(buf)
	w.mat4(0, g.Model)
	w.vec3(64, g.Origin)
	w.f32(76, g.MinT)
	w.vec3(80, g.Direction)
	w.f32(92, g.MaxT)
	w.vec4(96, g.Color)
	w.f32(112, g.Thickness)
	w.zero(116, 12)
}

// GPUMeshSource is the canonical WGSL definition of the Mesh struct.
// Matches GPUMesh layout exactly (80 bytes).
//
//go:embed assets/mesh.wgsl
var GPUMeshSource string

// GPUMesh holds the per-object properties of a Mesh. Geometry lives in vertex and index buffers.
type GPUMesh struct {
	Model common.Mat4 // offset  0
	Color [4]float32  // offset 64
}

// Size returns the size of the GPUMesh struct in bytes.
func (g *GPUMesh) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto serializes the struct into the first 80 bytes of buf.
func (g *GPUMesh) MarshalInto(buf []byte) {
	w := layoutWriter(buf)
	w.mat4(0, g.Model)
	w.vec4(64, g.Color)
}

// MeshVertex is one interleaved vertex of a Mesh vertex buffer (24 bytes).
type MeshVertex struct {
	Position [3]float32 // offset  0, location 0
	Normal   [3]float32 // offset 12, location 1
}
