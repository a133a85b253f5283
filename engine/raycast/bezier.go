package raycast

import (
	"math"

	"github.com/Carmen-Shannon/chromaviz/common"
)

const (
	// BezierMaxIterations bounds the root finder of QuadraticBezier.
	BezierMaxIterations = 32

	// BezierTolerance is the curve parameter step below which the root finder stops.
	BezierTolerance = 0.05
)

// BezierRoot is the outcome of one run of the curve parameter root finder.
type BezierRoot struct {
	CurveT     float64
	Iterations int
	Converged  bool
}

// bezierFrame holds a quadratic Bezier expressed in a frame where the ray runs along +z from the origin.
type bezierFrame struct {
	p0, p1, p2 common.Vec3d
}

func newBezierFrame(r Ray, p0, p1, p2 common.Vec3d) bezierFrame {
	dir := r.Direction.Normalize()
	up := common.Vec3d{0, 1, 0}
	if math.Abs(dir[1]) > 0.9 {
		up = common.Vec3d{1, 0, 0}
	}
	u := up.Cross(dir).Normalize()
	v := dir.Cross(u)
	local := func(p common.Vec3d) common.Vec3d {
		q := p.Sub(r.Origin)
		return common.Vec3d{q.Dot(u), q.Dot(v), q.Dot(dir)}
	}
	return bezierFrame{p0: local(p0), p1: local(p1), p2: local(p2)}
}

func (f bezierFrame) point(t float64) common.Vec3d {
	s := 1 - t
	return f.p0.Scale(s * s).Add(f.p1.Scale(2 * s * t)).Add(f.p2.Scale(t * t))
}

func (f bezierFrame) derivative(t float64) common.Vec3d {
	return f.p1.Sub(f.p0).Scale(2 * (1 - t)).Add(f.p2.Sub(f.p1).Scale(2 * t))
}

func (f bezierFrame) secondDerivative() common.Vec3d {
	return f.p2.Sub(f.p1.Scale(2)).Add(f.p0).Scale(2)
}

// slope is the derivative of the squared distance between the curve and the ray axis, halved. Its roots
// are the curve parameters closest to the ray.
func (f bezierFrame) slope(t float64) (float64, float64) {
	c, d, dd := f.point(t), f.derivative(t), f.secondDerivative()
	g := c[0]*d[0] + c[1]*d[1]
	dg := d[0]*d[0] + d[1]*d[1] + c[0]*dd[0] + c[1]*dd[1]
	return g, dg
}

// solve runs Newton iterations from start, falling back to regula falsi (or bisection when the bracket
// holds no sign change) whenever a step leaves the current bracket.
func (f bezierFrame) solve(start float64) BezierRoot {
	lo, hi := 0.0, 1.0
	glo, _ := f.slope(lo)
	ghi, _ := f.slope(hi)

	t := start
	for i := 0; i < BezierMaxIterations; i++ {
		g, dg := f.slope(t)
		if g == 0 {
			return BezierRoot{CurveT: t, Iterations: i + 1, Converged: true}
		}

		next := math.NaN()
		if dg != 0 {
			next = t - g/dg
		}
		if math.IsNaN(next) || next <= lo || next >= hi {
			if glo*ghi < 0 {
				next = (lo*ghi - hi*glo) / (ghi - glo)
			} else {
				next = (lo + hi) / 2
			}
		}

		if (g < 0) == (glo < 0) {
			lo, glo = t, g
		} else {
			hi, ghi = t, g
		}

		dt := next - t
		t = next
		if math.Abs(dt) < BezierTolerance {
			return BezierRoot{CurveT: t, Iterations: i + 1, Converged: true}
		}
	}
	return BezierRoot{CurveT: t, Iterations: BezierMaxIterations, Converged: false}
}

// SolveQuadraticBezier finds the curve parameters closest to the ray, starting once from each end of the
// curve so that both branches of a bent curve are visited.
//
// Parameters:
//   - r: the ray
//   - p0, p1, p2: the control points
//
// Returns:
//   - [2]BezierRoot: the runs started at t=0 and t=1
func SolveQuadraticBezier(r Ray, p0, p1, p2 common.Vec3d) [2]BezierRoot {
	f := newBezierFrame(r, p0, p1, p2)
	return [2]BezierRoot{f.solve(0), f.solve(1)}
}

// QuadraticBezier intersects a tube of constant radius swept along a quadratic Bezier curve. Candidate
// curve parameters are the converged roots from both ends plus the two end points; the hit is the front
// of the tube cross section at the candidate closest to the ray origin.
//
// Parameters:
//   - r: the ray
//   - p0, p1, p2: the control points
//   - radius: the tube radius
//
// Returns:
//   - float64: the hit parameter or Miss
//   - float64: the curve parameter of the hit
func QuadraticBezier(r Ray, p0, p1, p2 common.Vec3d, radius float64) (float64, float64) {
	if !r.Valid() || radius <= 0 {
		return Miss, 0
	}
	f := newBezierFrame(r, p0, p1, p2)
	scale := r.Direction.Length()

	candidates := []float64{0, 1}
	for _, start := range []float64{0, 1} {
		root := f.solve(start)
		if root.Converged {
			candidates = append(candidates, math.Min(math.Max(root.CurveT, 0), 1))
		}
	}

	best, bestCurve := math.Inf(1), 0.0
	r2 := radius * radius
	for _, ct := range candidates {
		c := f.point(ct)
		d2 := c[0]*c[0] + c[1]*c[1]
		if d2 > r2 {
			continue
		}
		t := (c[2] - math.Sqrt(r2-d2)) / scale
		if !r.Contains(t) {
			t = (c[2] + math.Sqrt(r2-d2)) / scale
			if !r.Contains(t) {
				continue
			}
		}
		if t < best {
			best, bestCurve = t, ct
		}
	}
	if math.IsInf(best, 1) {
		return Miss, 0
	}
	return best, bestCurve
}
