package gpu_object

import (
	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// RoundedConeProperties describe a cone between two spheres of possibly different radii.
type RoundedConeProperties struct {
	Start       common.Vec3f
	End         common.Vec3f
	StartRadius float32
	EndRadius   float32
	StartColor  Color
	EndColor    Color
}

// BoundingBox returns the box enclosing both end spheres.
func (p RoundedConeProperties) BoundingBox() common.BoundingBox {
	b := common.SphereBoundingBox(p.Start, p.StartRadius)
	b.Extend(common.SphereBoundingBox(p.End, p.EndRadius))
	return b
}

func (p RoundedConeProperties) intersect(r raycast.Ray) (float64, int) {
	return raycast.RoundedCone(r, common.ToF64(p.Start), common.ToF64(p.End), float64(p.StartRadius), float64(p.EndRadius))
}

// RoundedCone is a single ray-cast rounded cone. Cluster connectors are drawn with it.
type RoundedCone struct {
	base
	props RoundedConeProperties
}

var _ GPUObject = &RoundedCone{}

// NewRoundedCone creates a degenerate cone at the origin and reserves its allocation.
//
// Parameters:
//   - host: the host providing the device and allocations
//   - label: a debug label, defaults to the type name
//
// Returns:
//   - *RoundedCone: the cone
//   - error: an error if no allocation could be made
func NewRoundedCone(host Host, label string) (*RoundedCone, error) {
	c := &RoundedCone{props: RoundedConeProperties{StartRadius: 0.1, EndRadius: 0.1, StartColor: White, EndColor: White}}
	c.init(host, c, KindRoundedCone, label)
	if err := c.allocate(RoundedConeSize); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RoundedCone) Properties() RoundedConeProperties {
	return c.props
}

func (c *RoundedCone) SetProperties(p RoundedConeProperties) {
	c.props = p
	c.markDirty()
}

func (c *RoundedCone) SetEnds(start, end common.Vec3f) {
	c.props.Start = start
	c.props.End = end
	c.markDirty()
}

func (c *RoundedCone) SetRadii(start, end float32) {
	c.props.StartRadius = start
	c.props.EndRadius = end
	c.markDirty()
}

func (c *RoundedCone) SetColors(start, end Color) {
	c.props.StartColor = start
	c.props.EndColor = end
	c.markDirty()
}

func (c *RoundedCone) ByteSize() uint64 {
	return RoundedConeSize
}

func (c *RoundedCone) BoundingBox() common.BoundingBox {
	return c.props.BoundingBox()
}

func (c *RoundedCone) ToBuffer(buf []byte) {
	g := GPURoundedCone{
		Model:       common.BoxMatrix(c.BoundingBox()),
		Start:       c.props.Start,
		StartRadius: c.props.StartRadius,
		End:         c.props.End,
		EndRadius:   c.props.EndRadius,
		StartColor:  c.props.StartColor,
		EndColor:    c.props.EndColor,
	}
	g.MarshalInto(buf)
}

func (c *RoundedCone) RayIntersection(r raycast.Ray) *raycast.Intersection {
	t, bin := c.props.intersect(r)
	return c.hit(r, t, bin)
}

func (c *RoundedCone) Prepare(device renderer.Device) error {
	return c.prepareBindings(device)
}

func (c *RoundedCone) Ready() bool {
	return c.ready()
}

func (c *RoundedCone) Record(pass renderer.RenderPass) bool {
	if !c.bind(pass) {
		return false
	}
	pass.Draw(CubeVertexCount, 1, 0, 0)
	return true
}

func (c *RoundedCone) Release() {
	c.release()
}
