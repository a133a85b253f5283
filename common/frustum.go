package common

import "github.com/chewxy/math32"

// Plane is the set of points p with Normal·p + Distance = 0.
type Plane struct {
	Normal   Vec3f
	Distance float32
}

// Frustum holds the six planes of a view frustum, oriented so the positive half-space is inside.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// FrustumFromViewProjection extracts normalized frustum planes from a view-projection matrix
// using the Gribb/Hartmann method, adapted to the WebGPU [0, 1] depth range.
//
// Parameters:
//   - vp: the combined projection * view matrix
//
// Returns:
//   - Frustum: the extracted frustum
func FrustumFromViewProjection(vp Mat4) Frustum {
	row := func(r int) [4]float32 {
		return [4]float32{vp[r], vp[4+r], vp[8+r], vp[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	combine := func(a [4]float32, b [4]float32, sign float32) Plane {
		return Plane{
			Normal:   Vec3f{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2]},
			Distance: a[3] + sign*b[3],
		}
	}

	var f Frustum
	f.Planes[FrustumLeft] = combine(r3, r0, 1)
	f.Planes[FrustumRight] = combine(r3, r0, -1)
	f.Planes[FrustumBottom] = combine(r3, r1, 1)
	f.Planes[FrustumTop] = combine(r3, r1, -1)
	f.Planes[FrustumNear] = Plane{Normal: Vec3f{r2[0], r2[1], r2[2]}, Distance: r2[3]}
	f.Planes[FrustumFar] = combine(r3, r2, -1)

	for i := range f.Planes {
		l := f.Planes[i].Normal.Length()
		if l > 0 {
			f.Planes[i].Normal = f.Planes[i].Normal.Scale(1 / l)
			f.Planes[i].Distance /= l
		}
	}
	return f
}

// IntersectsBox reports whether any part of the box lies inside the frustum.
// Empty boxes are treated as always visible so objects without bounds are never culled.
func (f Frustum) IntersectsBox(b BoundingBox) bool {
	if b.IsEmpty() {
		return true
	}
	for _, p := range f.Planes {
		// positive vertex: the corner furthest along the plane normal
		var pv Vec3f
		for i := 0; i < 3; i++ {
			if p.Normal[i] >= 0 {
				pv[i] = b.Max[i]
			} else {
				pv[i] = b.Min[i]
			}
		}
		if p.Normal.Dot(pv)+p.Distance < 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether a sphere is at least partially inside the frustum.
func (f Frustum) IntersectsSphere(center Vec3f, radius float32) bool {
	for _, p := range f.Planes {
		if p.Normal.Dot(center)+p.Distance < -math32.Abs(radius) {
			return false
		}
	}
	return true
}
