package sdf

import "github.com/Carmen-Shannon/chromaviz/common"

const (
	// DefaultMaxSteps bounds both marchers.
	DefaultMaxSteps = 256

	// DefaultFixedSteps is the number of samples the fixed-step marcher takes across the unit box.
	DefaultFixedSteps = 128
)

// Hit is the result of a march.
type Hit[T common.Float] struct {
	T     T
	Steps int
	Found bool
}

// SphereTrace marches along origin + t*dir over [tMin, tMax], advancing by the sampled distance, and stops
// when |f| <= tolerance. dir does not need to be normalized but the field must be a true distance bound
// in the units of t, so callers pass unit directions for exact stepping.
//
// Parameters:
//   - f: the field
//   - origin: the ray origin
//   - dir: the ray direction
//   - tMin, tMax: the parameter interval, usually the box entry and exit
//   - tolerance: the surface threshold
//   - maxSteps: the step limit
//
// Returns:
//   - Hit[T]: the surface parameter when Found
func SphereTrace[T common.Float](f Field[T], origin, dir common.Vec3[T], tMin, tMax, tolerance T, maxSteps int) Hit[T] {
	scale := dir.Length()
	if scale == 0 || tMin > tMax {
		return Hit[T]{}
	}
	t := tMin
	for step := 0; step < maxSteps; step++ {
		d := f(origin.Add(dir.Scale(t)))
		if abs(d) <= tolerance {
			return Hit[T]{T: t, Steps: step + 1, Found: true}
		}
		if d < 0 {
			// started inside, walk out through the surface with the same step rule
			d = -d
		}
		t += d / scale
		if t > tMax {
			return Hit[T]{Steps: step + 1}
		}
	}
	return Hit[T]{Steps: maxSteps}
}

// MarchFixed samples the field at evenly spaced parameters over [tMin, tMax] and reports the first sample
// with |f| <= tolerance, or refines the first sign change by bisection.
//
// Parameters:
//   - f: the field
//   - origin: the ray origin
//   - dir: the ray direction
//   - tMin, tMax: the parameter interval
//   - tolerance: the surface threshold
//   - steps: the number of intervals
//
// Returns:
//   - Hit[T]: the surface parameter when Found
func MarchFixed[T common.Float](f Field[T], origin, dir common.Vec3[T], tMin, tMax, tolerance T, steps int) Hit[T] {
	if steps <= 0 || tMin > tMax {
		return Hit[T]{}
	}
	at := func(t T) T { return f(origin.Add(dir.Scale(t))) }

	dt := (tMax - tMin) / T(steps)
	prevT, prev := tMin, at(tMin)
	if abs(prev) <= tolerance {
		return Hit[T]{T: tMin, Steps: 1, Found: true}
	}
	for step := 1; step <= steps; step++ {
		t := tMin + dt*T(step)
		d := at(t)
		if abs(d) <= tolerance {
			return Hit[T]{T: t, Steps: step + 1, Found: true}
		}
		if (d < 0) != (prev < 0) {
			lo, hi, dlo := prevT, t, prev
			for i := 0; i < 16; i++ {
				mid := (lo + hi) / 2
				dm := at(mid)
				if abs(dm) <= tolerance {
					return Hit[T]{T: mid, Steps: step + 1, Found: true}
				}
				if (dm < 0) == (dlo < 0) {
					lo, dlo = mid, dm
				} else {
					hi = mid
				}
			}
			return Hit[T]{T: (lo + hi) / 2, Steps: step + 1, Found: true}
		}
		prevT, prev = t, d
	}
	return Hit[T]{Steps: steps + 1}
}

// Gradient estimates the field normal by central differences.
func Gradient[T common.Float](f Field[T], p common.Vec3[T], h T) common.Vec3[T] {
	var g common.Vec3[T]
	for axis := 0; axis < 3; axis++ {
		lo, hi := p, p
		lo[axis] -= h
		hi[axis] += h
		g[axis] = f(hi) - f(lo)
	}
	return g.Normalize()
}

func abs[T common.Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}
