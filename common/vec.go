package common

import "math"

// Float is the set of floating point types the vector and SDF math is generic over.
// float32 mirrors GPU storage, float64 is used for host-side intersection math.
type Float interface {
	~float32 | ~float64
}

// Vec3 is a generic 3-component vector stored as a plain array so it can be copied
// into GPU structs without conversion.
type Vec3[T Float] [3]T

// Vec3f is the float32 vector used by GPU-facing property structs.
type Vec3f = Vec3[float32]

// Vec3d is the float64 vector used by host-side intersection math.
type Vec3d = Vec3[float64]

func (v Vec3[T]) X() T { return v[0] }
func (v Vec3[T]) Y() T { return v[1] }
func (v Vec3[T]) Z() T { return v[2] }

func (v Vec3[T]) Add(o Vec3[T]) Vec3[T] {
	return Vec3[T]{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vec3[T]) Sub(o Vec3[T]) Vec3[T] {
	return Vec3[T]{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vec3[T]) Scale(s T) Vec3[T] {
	return Vec3[T]{v[0] * s, v[1] * s, v[2] * s}
}

// Mul is the component-wise product.
func (v Vec3[T]) Mul(o Vec3[T]) Vec3[T] {
	return Vec3[T]{v[0] * o[0], v[1] * o[1], v[2] * o[2]}
}

func (v Vec3[T]) Dot(o Vec3[T]) T {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vec3[T]) Cross(o Vec3[T]) Vec3[T] {
	return Vec3[T]{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vec3[T]) LengthSquared() T {
	return v.Dot(v)
}

func (v Vec3[T]) Length() T {
	return T(math.Sqrt(float64(v.Dot(v))))
}

// Normalize returns the unit vector in the direction of v, or the zero vector if v has no length.
func (v Vec3[T]) Normalize() Vec3[T] {
	l := v.Length()
	if l == 0 {
		return Vec3[T]{}
	}
	return v.Scale(1 / l)
}

// Distance returns the euclidean distance between v and o.
func (v Vec3[T]) Distance(o Vec3[T]) T {
	return v.Sub(o).Length()
}

func (v Vec3[T]) Min(o Vec3[T]) Vec3[T] {
	return Vec3[T]{min(v[0], o[0]), min(v[1], o[1]), min(v[2], o[2])}
}

func (v Vec3[T]) Max(o Vec3[T]) Vec3[T] {
	return Vec3[T]{max(v[0], o[0]), max(v[1], o[1]), max(v[2], o[2])}
}

// Abs returns the component-wise absolute value.
func (v Vec3[T]) Abs() Vec3[T] {
	out := v
	for i := range out {
		if out[i] < 0 {
			out[i] = -out[i]
		}
	}
	return out
}

// Lerp linearly interpolates between v and o.
func (v Vec3[T]) Lerp(o Vec3[T], t T) Vec3[T] {
	return v.Add(o.Sub(v).Scale(t))
}

// IsFinite reports whether every component is a finite number.
func (v Vec3[T]) IsFinite() bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// ToF64 widens a vector to float64.
func ToF64[T Float](v Vec3[T]) Vec3d {
	return Vec3d{float64(v[0]), float64(v[1]), float64(v[2])}
}

// ToF32 narrows a vector to float32.
func ToF32[T Float](v Vec3[T]) Vec3f {
	return Vec3f{float32(v[0]), float32(v[1]), float32(v[2])}
}

// Centroid returns the arithmetic mean of the points, or the zero vector for an empty slice.
func Centroid[T Float](points []Vec3[T]) Vec3[T] {
	var sum Vec3[T]
	if len(points) == 0 {
		return sum
	}
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / T(len(points)))
}
