package raycast

import (
	"math"

	"github.com/Carmen-Shannon/chromaviz/common"
)

// Sphere returns the nearest parameter in the ray's interval at which it hits a sphere, or Miss.
//
// Parameters:
//   - r: the ray
//   - center: the sphere center
//   - radius: the sphere radius
//
// Returns:
//   - float64: the hit parameter or Miss
func Sphere(r Ray, center common.Vec3d, radius float64) float64 {
	if !r.Valid() || radius <= 0 {
		return Miss
	}
	oc := r.Origin.Sub(center)

	a := r.Direction.Dot(r.Direction)
	halfB := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return Miss
	}
	sqrtD := math.Sqrt(discriminant)

	root := (-halfB - sqrtD) / a
	if !r.Contains(root) {
		root = (-halfB + sqrtD) / a
		if !r.Contains(root) {
			return Miss
		}
	}
	return root
}

// IntersectSphere is Sphere wrapped into an Intersection.
func IntersectSphere(r Ray, center common.Vec3d, radius float64) *Intersection {
	return hit(r, Sphere(r, center, radius), 0)
}

// RoundedCone intersects a cone capped by spheres of radius ra at a and rb at b. The body is tested first
// through the quadratic of the tangent cone, then both caps; the smallest parameter in range wins. The bin
// is 0 when the hit point is nearer to a and 1 when it is nearer to b.
//
// Only the entering surface is reported, as in the object shaders. A ray starting inside the body finds
// no body hit and falls back to the caps, so picking rays are expected to start outside the shape.
//
// Parameters:
//   - r: the ray
//   - a: the start point
//   - b: the end point
//   - ra: the start radius
//   - rb: the end radius
//
// Returns:
//   - float64: the hit parameter or Miss
//   - int: the nearer end
func RoundedCone(r Ray, a, b common.Vec3d, ra, rb float64) (float64, int) {
	if !r.Valid() || ra < 0 || rb < 0 {
		return Miss, 0
	}
	ba := b.Sub(a)
	rr := ra - rb
	m0 := ba.Dot(ba)
	d2 := m0 - rr*rr
	if d2 <= 1e-12 {
		// one end sphere swallows the other
		if ra >= rb {
			return Sphere(r, a, ra), 0
		}
		return Sphere(r, b, rb), 1
	}

	// the body quadratic assumes a unit direction
	dirLen := r.Direction.Length()
	rd := r.Direction.Scale(1 / dirLen)
	scaled := r.WithRange(r.MinT*dirLen, r.MaxT*dirLen)

	oa := r.Origin.Sub(a)
	ob := r.Origin.Sub(b)
	m1 := ba.Dot(oa)
	m2 := ba.Dot(rd)
	m3 := rd.Dot(oa)
	m5 := oa.Dot(oa)
	m6 := ob.Dot(rd)
	m7 := ob.Dot(ob)

	k2 := d2 - m2*m2
	k1 := d2*m3 - m1*m2 + m2*rr*ra
	k0 := d2*m5 - m1*m1 + m1*rr*ra*2 - m0*ra*ra
	h := k1*k1 - k0*k2
	if h < 0 {
		return Miss, 0
	}

	best := math.Inf(1)
	if math.Abs(k2) > 1e-12 {
		// entry root only
		t := (-math.Sqrt(h) - k1) / k2
		y := m1 - ra*rr + t*m2
		if y > 0 && y < d2 && scaled.Contains(t) {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		// caps
		h1 := m3*m3 - m5 + ra*ra
		h2 := m6*m6 - m7 + rb*rb
		for _, c := range [][2]float64{{h1, m3}, {h2, m6}} {
			if c[0] < 0 {
				continue
			}
			sq := math.Sqrt(c[0])
			for _, t := range [2]float64{-c[1] - sq, -c[1] + sq} {
				if scaled.Contains(t) && t < best {
					best = t
					break
				}
			}
		}
	}
	if math.IsInf(best, 1) {
		return Miss, 0
	}

	p := r.Origin.Add(rd.Scale(best))
	bin := 0
	if p.Distance(b) < p.Distance(a) {
		bin = 1
	}
	return best / dirLen, bin
}

// IntersectRoundedCone is RoundedCone wrapped into an Intersection.
func IntersectRoundedCone(r Ray, a, b common.Vec3d, ra, rb float64) *Intersection {
	t, bin := RoundedCone(r, a, b, ra, rb)
	return hit(r, t, bin)
}

// Triangle intersects a triangle with the Möller-Trumbore algorithm. Both faces are hit.
//
// Parameters:
//   - r: the ray
//   - v0, v1, v2: the vertices
//
// Returns:
//   - float64: the hit parameter or Miss
//   - float64: barycentric u
//   - float64: barycentric v
func Triangle(r Ray, v0, v1, v2 common.Vec3d) (float64, float64, float64) {
	const epsilon = 1e-12
	if !r.Valid() {
		return Miss, 0, 0
	}
	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)

	h := r.Direction.Cross(edge2)
	a := edge1.Dot(h)
	if a > -epsilon && a < epsilon {
		return Miss, 0, 0
	}
	f := 1 / a
	s := r.Origin.Sub(v0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return Miss, 0, 0
	}
	q := s.Cross(edge1)
	v := f * r.Direction.Dot(q)
	if v < 0 || u+v > 1 {
		return Miss, 0, 0
	}
	t := f * edge2.Dot(q)
	if !r.Contains(t) {
		return Miss, 0, 0
	}
	return t, u, v
}

// Box intersects an axis-aligned box with the slab method.
//
// Parameters:
//   - r: the ray
//   - lo: the minimum corner
//   - hi: the maximum corner
//
// Returns:
//   - float64: the entry parameter, clamped to MinT when the origin is inside
//   - float64: the exit parameter, clamped to MaxT
//   - bool: false if the ray misses the box within its interval
func Box(r Ray, lo, hi common.Vec3d) (float64, float64, bool) {
	if !r.Valid() {
		return Miss, Miss, false
	}
	tNear, tFar := r.MinT, r.MaxT
	for axis := 0; axis < 3; axis++ {
		o, d := r.Origin[axis], r.Direction[axis]
		if math.Abs(d) < 1e-300 {
			if o < lo[axis] || o > hi[axis] {
				return Miss, Miss, false
			}
			continue
		}
		inv := 1 / d
		t0 := (lo[axis] - o) * inv
		t1 := (hi[axis] - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tNear = math.Max(tNear, t0)
		tFar = math.Min(tFar, t1)
		if tNear > tFar {
			return Miss, Miss, false
		}
	}
	return tNear, tFar, true
}

// UnitBox intersects the [-1, 1]³ box that volumetric objects march through in local space.
func UnitBox(r Ray) (float64, float64, bool) {
	return Box(r, common.Vec3d{-1, -1, -1}, common.Vec3d{1, 1, 1})
}
