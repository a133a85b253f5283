package gpu_object

import (
	"fmt"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/sdf"
	"github.com/chewxy/math32"
)

// VolumeUnit is one blob of a volume: the smooth union of capsules through a polyline, in world units.
type VolumeUnit struct {
	Points     []common.Vec3f
	Radius     float32
	Smoothness float32
	Color      Color
	// Tolerance is the surface threshold in world units. Zero selects one percent of the radius.
	Tolerance float32
}

func (u VolumeUnit) tolerance() float32 {
	if u.Tolerance > 0 {
		return u.Tolerance
	}
	return math32.Max(0.01*u.Radius, 1e-5)
}

func (u VolumeUnit) field() sdf.Field[float64] {
	points := make([]common.Vec3d, len(u.Points))
	for i, p := range u.Points {
		points[i] = common.ToF64(p)
	}
	return sdf.SmoothUnion(sdf.CapsuleChain(points, float64(u.Radius)), float64(u.Smoothness))
}

// volumeCore is the state shared by Volume and DynamicVolume: the unit array in the properties allocation,
// a points buffer owned by the object and the colormap the surface is tinted with.
type volumeCore struct {
	base
	units  []VolumeUnit
	frames []localFrame

	points      renderer.Buffer
	pointsDirty bool

	colormap        *common.TextureStagingData
	colormapTexture renderer.Texture
	sampler         renderer.Sampler
}

// setUnits replaces every unit. A change of count recreates the allocation and the points buffer.
func (v *volumeCore) setUnits(units []VolumeUnit) error {
	if err := v.allocate(uint64(max(len(units), 1)) * VolumeUnitSize); err != nil {
		return err
	}
	v.units = make([]VolumeUnit, len(units))
	v.frames = make([]localFrame, len(units))
	for i, u := range units {
		u.Points = append([]common.Vec3f(nil), u.Points...)
		v.units[i] = u
		v.frames[i] = newLocalFrame(u.Points, u.Radius+u.Smoothness)
	}
	v.pointsDirty = true
	v.markDirty()
	return nil
}

// pointCount returns the number of vec4 entries in the points buffer. Units without points reserve one
// placeholder so every unit has a valid [from, to] range.
func (v *volumeCore) pointCount() int {
	n := 0
	for _, u := range v.units {
		n += max(len(u.Points), 1)
	}
	return max(n, 1)
}

func (v *volumeCore) pointBytes() []byte {
	out := make([]byte, 0, v.pointCount()*VolumePointSize)
	w := func(p common.Vec3f) {
		var b [VolumePointSize]byte
		layoutWriter(b[:]).vec3(0, p)
		out = append(out, b[:]...)
	}
	for i, u := range v.units {
		if len(u.Points) == 0 {
			w(v.frames[i].center)
			continue
		}
		for _, p := range u.Points {
			w(p)
		}
	}
	if len(out) == 0 {
		w(common.Vec3f{})
	}
	return out
}

// SetColormap stages a colormap image. It is uploaded on the next Prepare.
func (v *volumeCore) SetColormap(data common.TextureStagingData) {
	v.colormap = &data
}

// LoadColormap decodes an image in the background and stages it as the colormap once decoded.
func (v *volumeCore) LoadColormap(l *TextureLoader, src common.ImageSource) {
	l.LoadImage(src, v.SetColormap)
}

func (v *volumeCore) BoundingBox() common.BoundingBox {
	b := common.EmptyBoundingBox()
	for i, u := range v.units {
		if len(u.Points) > 0 {
			b.Extend(v.frames[i].box())
		}
	}
	return b
}

func (v *volumeCore) ByteSize() uint64 {
	return uint64(max(len(v.units), 1)) * VolumeUnitSize
}

func (v *volumeCore) ToBuffer(buf []byte) {
	clear(buf[:v.ByteSize()])
	offset := uint32(0)
	for i, u := range v.units {
		f := v.frames[i]
		box := f.box()
		count := uint32(max(len(u.Points), 1))
		g := GPUVolumeUnit{
			Model:         f.model(),
			Inverse:       f.inverse(),
			Color:         u.Color,
			Radius:        u.Radius,
			Smoothness:    u.Smoothness,
			Tolerance:     u.tolerance(),
			InstanceIndex: uint32(i),
			BoxMin:        box.Min,
			From:          offset,
			BoxMax:        box.Max,
			To:            offset + count - 1,
		}
		if len(u.Points) == 0 {
			g.Radius = 0
		}
		g.MarshalInto(buf[i*VolumeUnitSize:])
		offset += count
	}
}

func (v *volumeCore) RayIntersection(r raycast.Ray) *raycast.Intersection {
	if !r.Valid() {
		return nil
	}
	var best *raycast.Intersection
	for i, u := range v.units {
		if len(u.Points) == 0 {
			continue
		}
		t0, t1, ok := raycast.UnitBox(r.Transform(v.frames[i].inverse()))
		if !ok {
			continue
		}
		// an affine map keeps ray parameters, so the local box span applies to the world ray
		h := sdf.MarchFixed(u.field(), r.Origin, r.Direction, t0, t1, float64(u.tolerance()), sdf.DefaultFixedSteps)
		if h.Found {
			best = raycast.Nearest(best, v.hit(r, h.T, i))
		}
	}
	return best
}

func (v *volumeCore) Prepare(device renderer.Device) error {
	if v.released {
		return nil
	}
	if err := v.preparePoints(device); err != nil {
		return err
	}
	if err := v.prepareColormap(device); err != nil {
		return err
	}
	return v.prepareBindings(device)
}

func (v *volumeCore) preparePoints(device renderer.Device) error {
	if !v.pointsDirty {
		return nil
	}
	data := v.pointBytes()
	if v.points == nil || v.points.Size() != uint64(len(data)) {
		if v.points != nil {
			v.points.Release()
		}
		buf, err := device.CreateBuffer(v.label+" Points", uint64(len(data)), renderer.BufferUsageStorage|renderer.BufferUsageCopyDst)
		if err != nil {
			v.points = nil
			return fmt.Errorf("%s: %w", v.label, err)
		}
		v.points = buf
		v.bindings.SetBuffer(1, buf, 0, 0)
	}
	if err := device.WriteBuffers([]renderer.BufferWrite{{Buffer: v.points, Data: data}}); err != nil {
		return fmt.Errorf("%s: %w", v.label, err)
	}
	v.pointsDirty = false
	return nil
}

func (v *volumeCore) prepareColormap(device renderer.Device) error {
	if v.sampler == nil {
		s, err := device.CreateSampler(renderer.SamplerDescriptor{
			Label:       v.label + " Colormap Sampler",
			AddressMode: renderer.AddressModeClampToEdge,
			Filter:      renderer.FilterModeLinear,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", v.label, err)
		}
		v.sampler = s
		v.bindings.SetSampler(3, s)
	}
	if v.colormap == nil {
		return nil
	}
	data := *v.colormap
	if v.colormapTexture != nil {
		desc := v.colormapTexture.Descriptor()
		if desc.Width != data.Width || desc.Height != data.Height {
			v.colormapTexture.Release()
			v.colormapTexture = nil
		}
	}
	if v.colormapTexture == nil {
		tex, err := device.CreateTexture(renderer.TextureDescriptor{
			Label:     v.label + " Colormap",
			Width:     data.Width,
			Height:    data.Height,
			Depth:     1,
			Format:    renderer.TextureFormatRGBA8Unorm,
			Dimension: renderer.TextureDimension2D,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", v.label, err)
		}
		v.colormapTexture = tex
		v.bindings.SetTexture(2, tex)
	}
	if err := device.WriteTexture(v.colormapTexture, data.Pixels); err != nil {
		return fmt.Errorf("%s: %w", v.label, err)
	}
	v.colormap = nil
	return nil
}

func (v *volumeCore) Ready() bool {
	return v.ready() && v.points != nil && v.colormapTexture != nil && len(v.units) > 0
}

func (v *volumeCore) Record(pass renderer.RenderPass) bool {
	if !v.Ready() || !v.bind(pass) {
		return false
	}
	pass.Draw(CubeVertexCount, uint32(len(v.units)), 0, 0)
	return true
}

func (v *volumeCore) Release() {
	if v.points != nil {
		v.points.Release()
		v.points = nil
	}
	if v.colormapTexture != nil {
		v.colormapTexture.Release()
		v.colormapTexture = nil
	}
	v.sampler = nil
	v.release()
}

// Volume draws a fixed set of units with one instanced draw. The bin of a hit is the unit index.
type Volume struct {
	volumeCore
}

var _ GPUObject = &Volume{}

// NewVolume creates a volume and reserves 192 bytes per unit.
//
// Parameters:
//   - host: the host providing the device and allocations
//   - units: the initial units, copied
//   - label: a debug label, defaults to the type name
//
// Returns:
//   - *Volume: the volume
//   - error: an error if no allocation could be made
func NewVolume(host Host, units []VolumeUnit, label string) (*Volume, error) {
	v := &Volume{}
	v.init(host, v, KindVolume, label)
	if err := v.setUnits(units); err != nil {
		return nil, err
	}
	return v, nil
}

// SetUnits replaces every unit, recreating the allocation and points buffer if the count changes.
func (v *Volume) SetUnits(units []VolumeUnit) error {
	return v.setUnits(units)
}

func (v *Volume) Units() []VolumeUnit {
	return v.units
}

// SetUnitColor recolors one unit without touching the points buffer. An index outside the units is
// ignored and reported as false.
func (v *Volume) SetUnitColor(i int, c Color) bool {
	if i < 0 || i >= len(v.units) {
		common.Logger().Debug("volume unit color ignored, no such unit", "label", v.label, "unit", i, "units", len(v.units))
		return false
	}
	v.units[i].Color = c
	v.markDirty()
	return true
}
