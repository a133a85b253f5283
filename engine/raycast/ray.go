// Package raycast holds the CPU side of picking: rays, intersection results and closed-form ray/primitive
// tests evaluated in float64.
//
// The primitive tests follow the same algebra as the GPU programs that draw the primitives, so a pick
// lands on what is visible. Internally they return Miss (-1) for no hit, matching the shader convention;
// the public result of a query is a nil *Intersection.
package raycast

import (
	"math"

	"github.com/Carmen-Shannon/chromaviz/common"
)

// Miss is the parameter returned by primitive tests when the ray does not hit.
const Miss = -1.0

// Ray is a half-line with a valid parameter interval. Direction is unit length for rays built with
// NewRay, so parameters are world distances.
type Ray struct {
	Origin    common.Vec3d
	Direction common.Vec3d
	MinT      float64
	MaxT      float64
}

// NewRay creates a ray with a normalized direction covering [0, +Inf).
//
// Parameters:
//   - origin: the ray origin
//   - direction: the ray direction, normalized here
//
// Returns:
//   - Ray: the ray
func NewRay(origin, direction common.Vec3d) Ray {
	return Ray{
		Origin:    origin,
		Direction: direction.Normalize(),
		MinT:      0,
		MaxT:      math.Inf(1),
	}
}

// NewRayF32 creates a ray from float32 vectors.
func NewRayF32(origin, direction common.Vec3f) Ray {
	return NewRay(common.ToF64(origin), common.ToF64(direction))
}

// WithRange returns a copy of the ray limited to [minT, maxT].
func (r Ray) WithRange(minT, maxT float64) Ray {
	r.MinT = minT
	r.MaxT = maxT
	return r
}

// At returns the point at parameter t.
func (r Ray) At(t float64) common.Vec3d {
	return r.Origin.Add(r.Direction.Scale(t))
}

// Valid reports whether the ray can be intersected: a finite origin, a finite non-zero direction and a
// non-empty interval.
func (r Ray) Valid() bool {
	return r.Origin.IsFinite() && r.Direction.IsFinite() && r.Direction.LengthSquared() > 1e-24 &&
		!math.IsNaN(r.MinT) && !math.IsNaN(r.MaxT) && r.MinT <= r.MaxT
}

// Contains reports whether t lies within the ray's interval.
func (r Ray) Contains(t float64) bool {
	return t >= r.MinT && t <= r.MaxT && !math.IsNaN(t)
}

// Transform maps the ray through a matrix. The direction is not renormalized so parameters keep their
// meaning across frames.
//
// Parameters:
//   - m: the transform, usually an inverse model matrix
//
// Returns:
//   - Ray: the transformed ray
func (r Ray) Transform(m common.Mat4) Ray {
	o := m.TransformPoint(common.ToF32(r.Origin))
	d := m.TransformDirection(common.ToF32(r.Direction))
	return Ray{Origin: common.ToF64(o), Direction: common.ToF64(d), MinT: r.MinT, MaxT: r.MaxT}
}

// Intersection is the nearest hit of a ray query. Object is the picked object and Bin identifies the hit
// sub-element: the instance, curve segment or cone end.
type Intersection struct {
	T      float64
	Object any
	Bin    int
}

// Nearest returns whichever of a and b is closer, treating nil as no hit.
func Nearest(a, b *Intersection) *Intersection {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.T < a.T:
		return b
	default:
		return a
	}
}

// hit converts a primitive parameter into a public result, rejecting misses and out-of-range values.
func hit(r Ray, t float64, bin int) *Intersection {
	if t == Miss || !r.Contains(t) {
		return nil
	}
	return &Intersection{T: t, Bin: bin}
}
