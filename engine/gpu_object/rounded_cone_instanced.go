package gpu_object

import (
	"fmt"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
)

// RoundedConeInstanced draws many rounded cones with one instanced draw. The bin of a hit is the instance
// index.
type RoundedConeInstanced struct {
	base
	instances []RoundedConeProperties
}

var _ GPUObject = &RoundedConeInstanced{}

// NewRoundedConeInstanced creates count default cones and reserves 64 bytes per instance.
//
// Parameters:
//   - host: the host providing the device and allocations
//   - count: the number of instances
//   - label: a debug label, defaults to the type name
//
// Returns:
//   - *RoundedConeInstanced: the object
//   - error: an error if no allocation could be made
func NewRoundedConeInstanced(host Host, count int, label string) (*RoundedConeInstanced, error) {
	c := &RoundedConeInstanced{}
	c.init(host, c, KindRoundedConeInstanced, label)
	if err := c.Resize(count); err != nil {
		return nil, err
	}
	return c, nil
}

// Resize changes the instance count. Existing instances are kept, new ones are zero sized. The allocation
// is recreated whenever the count changes.
func (c *RoundedConeInstanced) Resize(count int) error {
	if count < 0 {
		return fmt.Errorf("%s: negative instance count %d", c.label, count)
	}
	if err := c.allocate(uint64(max(count, 1)) * RoundedConeInstanceSize); err != nil {
		return err
	}
	next := make([]RoundedConeProperties, count)
	copy(next, c.instances)
	c.instances = next
	c.markDirty()
	return nil
}

func (c *RoundedConeInstanced) Count() int {
	return len(c.instances)
}

// Instance returns the properties of instance i, the zero value if there is no such instance.
func (c *RoundedConeInstanced) Instance(i int) RoundedConeProperties {
	if i < 0 || i >= len(c.instances) {
		return RoundedConeProperties{}
	}
	return c.instances[i]
}

// SetInstance replaces instance i. An index outside the instances is ignored and reported as false.
func (c *RoundedConeInstanced) SetInstance(i int, p RoundedConeProperties) bool {
	if i < 0 || i >= len(c.instances) {
		common.Logger().Debug("cone instance ignored, no such instance", "label", c.label, "instance", i, "count", len(c.instances))
		return false
	}
	c.instances[i] = p
	c.markDirty()
	return true
}

// SetInstances replaces every instance, resizing if the count differs.
func (c *RoundedConeInstanced) SetInstances(instances []RoundedConeProperties) error {
	if len(instances) != len(c.instances) {
		if err := c.Resize(len(instances)); err != nil {
			return err
		}
	}
	copy(c.instances, instances)
	c.markDirty()
	return nil
}

func (c *RoundedConeInstanced) ByteSize() uint64 {
	return uint64(max(len(c.instances), 1)) * RoundedConeInstanceSize
}

func (c *RoundedConeInstanced) BoundingBox() common.BoundingBox {
	b := common.EmptyBoundingBox()
	for _, p := range c.instances {
		b.Extend(p.BoundingBox())
	}
	return b
}

func (c *RoundedConeInstanced) ToBuffer(buf []byte) {
	clear(buf[:c.ByteSize()])
	for i, p := range c.instances {
		g := GPURoundedConeInstance{
			Start:       p.Start,
			StartRadius: p.StartRadius,
			End:         p.End,
			EndRadius:   p.EndRadius,
			StartColor:  p.StartColor,
			EndColor:    p.EndColor,
		}
		g.MarshalInto(buf[i*RoundedConeInstanceSize:])
	}
}

func (c *RoundedConeInstanced) RayIntersection(r raycast.Ray) *raycast.Intersection {
	var best *raycast.Intersection
	for i, p := range c.instances {
		t, _ := p.intersect(r)
		best = raycast.Nearest(best, c.hit(r, t, i))
	}
	return best
}

func (c *RoundedConeInstanced) Prepare(device renderer.Device) error {
	return c.prepareBindings(device)
}

func (c *RoundedConeInstanced) Ready() bool {
	return c.ready()
}

func (c *RoundedConeInstanced) Record(pass renderer.RenderPass) bool {
	if len(c.instances) == 0 || !c.bind(pass) {
		return false
	}
	pass.Draw(CubeVertexCount, uint32(len(c.instances)), 0, 0)
	return true
}

func (c *RoundedConeInstanced) Release() {
	c.release()
}
