package gpu_object

import (
	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// SphereProperties are the CPU-side properties of a Sphere.
type SphereProperties struct {
	Center      common.Vec3f
	Radius      float32
	Color       Color
	BorderColor Color
	BorderRatio float32
}

// Sphere is a ray-cast sphere impostor with an optional silhouette border.
type Sphere struct {
	base
	props SphereProperties
}

var _ GPUObject = &Sphere{}

// NewSphere creates a unit sphere at the origin and reserves its allocation.
//
// Parameters:
//   - host: the host providing the device and allocations
//   - label: a debug label, defaults to the type name
//
// Returns:
//   - *Sphere: the sphere
//   - error: an error if no allocation could be made
func NewSphere(host Host, label string) (*Sphere, error) {
	s := &Sphere{props: SphereProperties{Radius: 1, Color: White, BorderColor: Black}}
	s.init(host, s, KindSphere, label)
	if err := s.allocate(SphereSize); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sphere) Properties() SphereProperties {
	return s.props
}

func (s *Sphere) SetProperties(p SphereProperties) {
	s.props = p
	s.markDirty()
}

func (s *Sphere) SetCenter(c common.Vec3f) {
	s.props.Center = c
	s.markDirty()
}

func (s *Sphere) SetRadius(r float32) {
	s.props.Radius = r
	s.markDirty()
}

func (s *Sphere) SetColor(c Color) {
	s.props.Color = c
	s.markDirty()
}

func (s *Sphere) SetBorder(c Color, ratio float32) {
	s.props.BorderColor = c
	s.props.BorderRatio = ratio
	s.markDirty()
}

func (s *Sphere) ByteSize() uint64 {
	return SphereSize
}

func (s *Sphere) BoundingBox() common.BoundingBox {
	return common.SphereBoundingBox(s.props.Center, s.props.Radius)
}

func (s *Sphere) ToBuffer(buf []byte) {
	g := GPUSphere{
		Model:       common.BoxMatrix(s.BoundingBox()),
		Center:      s.props.Center,
		Radius:      s.props.Radius,
		Color:       s.props.Color,
		BorderColor: s.props.BorderColor,
		BorderRatio: s.props.BorderRatio,
	}
	g.MarshalInto(buf)
}

func (s *Sphere) RayIntersection(r raycast.Ray) *raycast.Intersection {
	t := raycast.Sphere(r, common.ToF64(s.props.Center), float64(s.props.Radius))
	return s.hit(r, t, 0)
}

func (s *Sphere) Prepare(device renderer.Device) error {
	return s.prepareBindings(device)
}

func (s *Sphere) Ready() bool {
	return s.ready()
}

func (s *Sphere) Record(pass renderer.RenderPass) bool {
	if !s.bind(pass) {
		return false
	}
	pass.Draw(CubeVertexCount, 1, 0, 0)
	return true
}

func (s *Sphere) Release() {
	s.release()
}
