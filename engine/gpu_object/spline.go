package gpu_object

import (
	"fmt"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// SplineSegment is one quadratic Bezier tube segment.
type SplineSegment struct {
	P0, P1, P2 common.Vec3f
	Radius     float32
	Color      Color
	Hidden     bool
}

// BoundingBox returns the box around the control points grown by the radius. The curve stays within the
// hull of its control points.
func (s SplineSegment) BoundingBox() common.BoundingBox {
	return common.PointsBoundingBox([]common.Vec3f{s.P0, s.P1, s.P2}, s.Radius)
}

// QuadraticSegments turns a polyline into a smooth chain of quadratic segments. Every inner point becomes a
// control point; segments meet at the midpoints between consecutive points, so the chain is C1 continuous
// and passes through the first and last point.
//
// Parameters:
//   - points: the polyline
//   - radius: the tube radius of every segment
//   - color: the color of every segment
//
// Returns:
//   - []SplineSegment: len(points)-2 segments, one straight segment for two points, none for fewer
func QuadraticSegments(points []common.Vec3f, radius float32, color Color) []SplineSegment {
	switch len(points) {
	case 0, 1:
		return nil
	case 2:
		mid := points[0].Lerp(points[1], 0.5)
		return []SplineSegment{{P0: points[0], P1: mid, P2: points[1], Radius: radius, Color: color}}
	}
	n := len(points)
	out := make([]SplineSegment, 0, n-2)
	for i := 1; i < n-1; i++ {
		start := points[i-1].Lerp(points[i], 0.5)
		if i == 1 {
			start = points[0]
		}
		end := points[i].Lerp(points[i+1], 0.5)
		if i == n-2 {
			end = points[n-1]
		}
		out = append(out, SplineSegment{P0: start, P1: points[i], P2: end, Radius: radius, Color: color})
	}
	return out
}

// Spline is a chain of quadratic Bezier tubes, one instance per segment. The bin of a hit is the segment
// index.
type Spline struct {
	base
	segments []SplineSegment
}

var _ GPUObject = &Spline{}

// NewSpline creates a spline with the given segments and reserves 48 bytes per segment.
//
// Parameters:
//   - host: the host providing the device and allocations
//   - segments: the initial segments, copied
//   - label: a debug label, defaults to the type name
//
// Returns:
//   - *Spline: the spline
//   - error: an error if no allocation could be made
func NewSpline(host Host, segments []SplineSegment, label string) (*Spline, error) {
	s := &Spline{}
	s.init(host, s, KindSpline, label)
	if err := s.SetSegments(segments); err != nil {
		return nil, err
	}
	return s, nil
}

// SetSegments replaces every segment, recreating the allocation when the count changes.
func (s *Spline) SetSegments(segments []SplineSegment) error {
	if err := s.allocate(uint64(max(len(segments), 1)) * SplineSegmentSize); err != nil {
		return err
	}
	s.segments = append(s.segments[:0:0], segments...)
	s.markDirty()
	return nil
}

func (s *Spline) Segments() []SplineSegment {
	return s.segments
}

func (s *Spline) Segment(i int) SplineSegment {
	return s.segments[i]
}

func (s *Spline) SetSegment(i int, seg SplineSegment) error {
	if i < 0 || i >= len(s.segments) {
		return fmt.Errorf("%s: segment %d out of range [0, %d)", s.label, i, len(s.segments))
	}
	s.segments[i] = seg
	s.markDirty()
	return nil
}

// SetColor recolors every segment.
func (s *Spline) SetColor(c Color) {
	for i := range s.segments {
		s.segments[i].Color = c
	}
	s.markDirty()
}

// SetSegmentHidden hides or shows a single segment without changing the segment count.
func (s *Spline) SetSegmentHidden(i int, hidden bool) {
	s.segments[i].Hidden = hidden
	s.markDirty()
}

func (s *Spline) ByteSize() uint64 {
	return uint64(max(len(s.segments), 1)) * SplineSegmentSize
}

func (s *Spline) BoundingBox() common.BoundingBox {
	b := common.EmptyBoundingBox()
	for _, seg := range s.segments {
		if !seg.Hidden {
			b.Extend(seg.BoundingBox())
		}
	}
	return b
}

func (s *Spline) ToBuffer(buf []byte) {
	clear(buf[:s.ByteSize()])
	for i, seg := range s.segments {
		g := GPUSplineSegment{
			P0:     seg.P0,
			Radius: seg.Radius,
			P1:     seg.P1,
			Color:  seg.Color.Packed(),
			P2:     seg.P2,
		}
		if seg.Hidden {
			g.Flags |= SplineFlagHidden
		}
		g.MarshalInto(buf[i*SplineSegmentSize:])
	}
}

func (s *Spline) RayIntersection(r raycast.Ray) *raycast.Intersection {
	var best *raycast.Intersection
	for i, seg := range s.segments {
		if seg.Hidden {
			continue
		}
		t, _ := raycast.QuadraticBezier(r, common.ToF64(seg.P0), common.ToF64(seg.P1), common.ToF64(seg.P2), float64(seg.Radius))
		best = raycast.Nearest(best, s.hit(r, t, i))
	}
	return best
}

func (s *Spline) Prepare(device renderer.Device) error {
	return s.prepareBindings(device)
}

func (s *Spline) Ready() bool {
	return s.ready()
}

func (s *Spline) Record(pass renderer.RenderPass) bool {
	if len(s.segments) == 0 || !s.bind(pass) {
		return false
	}
	pass.Draw(CubeVertexCount, uint32(len(s.segments)), 0, 0)
	return true
}

func (s *Spline) Release() {
	s.release()
}
