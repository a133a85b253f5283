package gpu_object

import (
	"math"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// DefaultRayLength is the drawn length of rays with an unbounded interval.
const DefaultRayLength = 100

// Ray draws a ray as a thin capsule, typically the last picking ray. Rays are never picked themselves.
type Ray struct {
	base
	ray       raycast.Ray
	length    float32
	color     Color
	thickness float32
}

var _ GPUObject = &Ray{}

// NewRay creates a ray object along +Z from the origin and reserves its allocation.
//
// Parameters:
//   - host: the host providing the device and allocations
//   - label: a debug label, defaults to the type name
//
// Returns:
//   - *Ray: the ray object
//   - error: an error if no allocation could be made
func NewRay(host Host, label string) (*Ray, error) {
	r := &Ray{
		ray:       raycast.NewRay(common.Vec3d{}, common.Vec3d{0, 0, 1}),
		length:    DefaultRayLength,
		color:     Color{1, 1, 0, 1},
		thickness: 0.01,
	}
	r.init(host, r, KindRay, label)
	if err := r.allocate(RaySize); err != nil {
		return nil, err
	}
	return r, nil
}

// SetRay sets the drawn ray. The segment ends at MaxT, or after length if MaxT is unbounded.
func (r *Ray) SetRay(ray raycast.Ray, length float32) {
	r.ray = ray
	r.length = length
	r.markDirty()
}

func (r *Ray) Ray() raycast.Ray {
	return r.ray
}

func (r *Ray) SetColor(c Color) {
	r.color = c
	r.markDirty()
}

func (r *Ray) SetThickness(thickness float32) {
	r.thickness = thickness
	r.markDirty()
}

// segment returns the drawn interval of the ray.
func (r *Ray) segment() (float64, float64) {
	minT := r.ray.MinT
	if math.IsInf(minT, 0) || math.IsNaN(minT) {
		minT = 0
	}
	maxT := r.ray.MaxT
	if math.IsInf(maxT, 0) || math.IsNaN(maxT) || maxT-minT > float64(r.length) {
		maxT = minT + float64(r.length)
	}
	return minT, maxT
}

func (r *Ray) ByteSize() uint64 {
	return RaySize
}

func (r *Ray) BoundingBox() common.BoundingBox {
	if !r.ray.Valid() {
		return common.EmptyBoundingBox()
	}
	minT, maxT := r.segment()
	a := common.ToF32(r.ray.At(minT))
	b := common.ToF32(r.ray.At(maxT))
	return common.PointsBoundingBox([]common.Vec3f{a, b}, r.thickness)
}

func (r *Ray) ToBuffer(buf []byte) {
	minT, maxT := r.segment()
	g := GPURay{
		Origin:    common.ToF32(r.ray.Origin),
		MinT:      float32(minT),
		Direction: common.ToF32(r.ray.Direction),
		MaxT:      float32(maxT),
		Color:     r.color,
		Thickness: r.thickness,
	}
	if box := r.BoundingBox(); !box.IsEmpty() {
		g.Model = common.BoxMatrix(box)
	}
	g.MarshalInto(buf)
}

func (r *Ray) RayIntersection(raycast.Ray) *raycast.Intersection {
	return nil
}

func (r *Ray) Prepare(device renderer.Device) error {
	return r.prepareBindings(device)
}

func (r *Ray) Ready() bool {
	return r.ready() && r.ray.Valid()
}

func (r *Ray) Record(pass renderer.RenderPass) bool {
	if !r.Ready() || !r.bind(pass) {
		return false
	}
	pass.Draw(CubeVertexCount, 1, 0, 0)
	return true
}

func (r *Ray) Release() {
	r.release()
}
