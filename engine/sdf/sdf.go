// Package sdf is the signed distance kernel shared by the volumetric objects.
//
// The functions are generic over the float type: float32 builds the distance grids uploaded as 3D
// textures, float64 drives host-side picking. Both paths evaluate the same smooth union of capsules, so
// the picked surface is the drawn surface.
package sdf

import (
	"math"

	"github.com/Carmen-Shannon/chromaviz/common"
)

// Field is a signed distance function: negative inside, positive outside.
type Field[T common.Float] func(p common.Vec3[T]) T

// Capsule is a segment with a radius.
type Capsule[T common.Float] struct {
	A      common.Vec3[T]
	B      common.Vec3[T]
	Radius T
}

// CapsuleDistance returns the signed distance from p to a capsule.
//
// Parameters:
//   - p: the sample point
//   - a, b: the segment end points
//   - r: the capsule radius
//
// Returns:
//   - T: the signed distance
func CapsuleDistance[T common.Float](p, a, b common.Vec3[T], r T) T {
	pa := p.Sub(a)
	ba := b.Sub(a)
	den := ba.Dot(ba)
	var h T
	if den > 0 {
		h = clamp(pa.Dot(ba)/den, 0, 1)
	}
	return pa.Sub(ba.Scale(h)).Length() - r
}

// SmoothMin blends two distances with a polynomial smooth minimum of width k. With k <= 0 it is min.
func SmoothMin[T common.Float](a, b, k T) T {
	if k <= 0 {
		return min(a, b)
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	h := max(k-d, 0) / k
	return min(a, b) - h*h*k*0.25
}

// CapsuleChain builds the capsules joining consecutive points.
//
// Parameters:
//   - points: the polyline
//   - radius: the radius of every capsule
//
// Returns:
//   - []Capsule[T]: len(points)-1 capsules, or one degenerate capsule for a single point
func CapsuleChain[T common.Float](points []common.Vec3[T], radius T) []Capsule[T] {
	switch len(points) {
	case 0:
		return nil
	case 1:
		return []Capsule[T]{{A: points[0], B: points[0], Radius: radius}}
	}
	out := make([]Capsule[T], 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		out = append(out, Capsule[T]{A: points[i-1], B: points[i], Radius: radius})
	}
	return out
}

// SmoothUnion returns the field of the smooth union of capsules. An empty set is infinitely far away.
//
// Parameters:
//   - capsules: the capsules
//   - smoothness: the blend width passed to SmoothMin
//
// Returns:
//   - Field[T]: the combined field
func SmoothUnion[T common.Float](capsules []Capsule[T], smoothness T) Field[T] {
	return func(p common.Vec3[T]) T {
		d := T(math.Inf(1))
		for i, c := range capsules {
			cd := CapsuleDistance(p, c.A, c.B, c.Radius)
			if i == 0 {
				d = cd
				continue
			}
			d = SmoothMin(d, cd, smoothness)
		}
		return d
	}
}

// Sphere returns the field of a sphere.
func Sphere[T common.Float](center common.Vec3[T], radius T) Field[T] {
	return func(p common.Vec3[T]) T {
		return p.Distance(center) - radius
	}
}

// Convert adapts a field of one precision to another.
func Convert[From, To common.Float](f Field[From]) Field[To] {
	return func(p common.Vec3[To]) To {
		return To(f(common.Vec3[From]{From(p[0]), From(p[1]), From(p[2])}))
	}
}

func clamp[T common.Float](x, lo, hi T) T {
	return max(lo, min(x, hi))
}
