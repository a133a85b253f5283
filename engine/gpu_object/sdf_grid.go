package gpu_object

import (
	"fmt"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/sdf"
	"github.com/chewxy/math32"
)

const (
	// DefaultGridResolution is the voxel count per axis of a new SignedDistanceGrid.
	DefaultGridResolution = 64

	// DefaultSurfaceTolerance is the distance below which marching stops, in local box units.
	DefaultSurfaceTolerance = 0.002
)

// SignedDistanceGridProperties describe a smooth union of capsules through a polyline.
type SignedDistanceGridProperties struct {
	Points     []common.Vec3f
	Radius     float32
	Smoothness float32
	Color      Color
	Resolution int
	Tolerance  float32
}

// localFrame is the cubic box a distance field is evaluated in. World positions map to [-1, 1]^3 with a
// uniform scale so distances scale by the same factor.
type localFrame struct {
	center common.Vec3f
	half   float32
}

func newLocalFrame(points []common.Vec3f, margin float32) localFrame {
	b := common.PointsBoundingBox(points, margin)
	if b.IsEmpty() {
		return localFrame{half: 1}
	}
	// a little slack keeps the surface off the box faces
	return localFrame{center: b.Center, half: math32.Max(b.LongestSide()*0.5*1.05, 1e-6)}
}

func (f localFrame) model() common.Mat4 {
	return common.TranslationScale(f.center, common.Vec3f{f.half, f.half, f.half})
}

func (f localFrame) inverse() common.Mat4 {
	inv := 1 / f.half
	return common.TranslationScale(f.center.Scale(-inv), common.Vec3f{inv, inv, inv})
}

func (f localFrame) toLocal(p common.Vec3f) common.Vec3f {
	return p.Sub(f.center).Scale(1 / f.half)
}

func (f localFrame) box() common.BoundingBox {
	h := common.Vec3f{f.half, f.half, f.half}
	return common.NewBoundingBox(f.center.Sub(h), f.center.Add(h))
}

// capsuleField returns the smooth union field of a polyline in local coordinates.
func capsuleField[T common.Float](frame localFrame, points []common.Vec3f, radius, smoothness float32) sdf.Field[T] {
	local := make([]common.Vec3[T], len(points))
	for i, p := range points {
		lp := frame.toLocal(p)
		local[i] = common.Vec3[T]{T(lp[0]), T(lp[1]), T(lp[2])}
	}
	return sdf.SmoothUnion(sdf.CapsuleChain(local, T(radius/frame.half)), T(smoothness/frame.half))
}

// SignedDistanceGrid draws a smooth union of capsules sampled into a 3D distance texture and ray
// marched on the GPU. Picking marches the analytic field the texture was built from.
type SignedDistanceGrid struct {
	base
	props SignedDistanceGridProperties
	frame localFrame

	grid       sdf.Grid
	gridDirty  bool
	building   bool
	generation uint64

	texture      renderer.Texture
	textureStale bool
}

var _ GPUObject = &SignedDistanceGrid{}

// NewSignedDistanceGrid creates an empty grid and reserves its allocation.
//
// Parameters:
//   - host: the host providing the device and allocations
//   - label: a debug label, defaults to the type name
//
// Returns:
//   - *SignedDistanceGrid: the grid
//   - error: an error if no allocation could be made
func NewSignedDistanceGrid(host Host, label string) (*SignedDistanceGrid, error) {
	g := &SignedDistanceGrid{props: SignedDistanceGridProperties{
		Radius:     0.05,
		Color:      White,
		Resolution: DefaultGridResolution,
		Tolerance:  DefaultSurfaceTolerance,
	}}
	g.init(host, g, KindSignedDistanceGrid, label)
	if err := g.allocate(SignedDistanceGridSize); err != nil {
		return nil, err
	}
	g.frame = localFrame{half: 1}
	return g, nil
}

func (g *SignedDistanceGrid) Properties() SignedDistanceGridProperties {
	return g.props
}

// SetProperties replaces the properties. Geometry changes schedule a rebuild of the distance texture.
func (g *SignedDistanceGrid) SetProperties(p SignedDistanceGridProperties) error {
	if p.Resolution <= 0 {
		return fmt.Errorf("%s: invalid resolution %d", g.label, p.Resolution)
	}
	p.Points = append([]common.Vec3f(nil), p.Points...)
	g.props = p
	g.frame = newLocalFrame(p.Points, p.Radius+p.Smoothness)
	g.invalidateGrid()
	g.markDirty()
	return nil
}

// SetPoints replaces the polyline and schedules a rebuild of the distance texture.
func (g *SignedDistanceGrid) SetPoints(points []common.Vec3f) {
	p := g.props
	p.Points = points
	_ = g.SetProperties(p)
}

func (g *SignedDistanceGrid) SetColor(c Color) {
	g.props.Color = c
	g.markDirty()
}

func (g *SignedDistanceGrid) invalidateGrid() {
	g.gridDirty = true
	g.generation++
}

// Grid returns the sampled distances currently on the GPU.
func (g *SignedDistanceGrid) Grid() sdf.Grid {
	return g.grid
}

// BuildAsync samples the distance grid on the loader's pool. The result is installed on the main thread
// unless the geometry changed in the meantime.
func (g *SignedDistanceGrid) BuildAsync(l *TextureLoader) {
	if !g.gridDirty || g.building {
		return
	}
	g.building = true
	gen := g.generation
	field := capsuleField[float32](g.frame, g.props.Points, g.props.Radius, g.props.Smoothness)
	res := g.props.Resolution
	l.Go(g.label, func() (func(), error) {
		grid := sdf.BuildGrid(field, res)
		return func() {
			g.building = false
			if gen == g.generation && !g.released {
				g.grid = grid
				g.gridDirty = false
				g.markTextureStale()
			}
		}, nil
	})
}

// markTextureStale forces an upload of the current grid on the next Prepare.
func (g *SignedDistanceGrid) markTextureStale() {
	if g.texture != nil && g.texture.Descriptor().Width != uint32(g.grid.Resolution) {
		g.texture.Release()
		g.texture = nil
	}
	g.textureStale = true
}

func (g *SignedDistanceGrid) ByteSize() uint64 {
	return SignedDistanceGridSize
}

func (g *SignedDistanceGrid) BoundingBox() common.BoundingBox {
	if len(g.props.Points) == 0 {
		return common.EmptyBoundingBox()
	}
	return g.frame.box()
}

func (g *SignedDistanceGrid) ToBuffer(buf []byte) {
	capsules := max(len(g.props.Points)-1, 0)
	if len(g.props.Points) == 1 {
		capsules = 1
	}
	gpu := GPUSignedDistanceGrid{
		Model:        g.frame.model(),
		Inverse:      g.frame.inverse(),
		Color:        g.props.Color,
		Resolution:   uint32(g.props.Resolution),
		CapsuleCount: uint32(capsules),
		Radius:       g.props.Radius / g.frame.half,
		Smoothness:   g.props.Smoothness / g.frame.half,
		Tolerance:    g.props.Tolerance,
	}
	gpu.MarshalInto(buf)
}

func (g *SignedDistanceGrid) RayIntersection(r raycast.Ray) *raycast.Intersection {
	if len(g.props.Points) == 0 || !r.Valid() {
		return nil
	}
	local := r.Transform(g.frame.inverse())
	t0, t1, ok := raycast.UnitBox(local)
	if !ok {
		return nil
	}
	field := capsuleField[float64](g.frame, g.props.Points, g.props.Radius, g.props.Smoothness)
	h := sdf.SphereTrace(field, local.Origin, local.Direction, t0, t1, float64(g.props.Tolerance), sdf.DefaultMaxSteps)
	if !h.Found {
		return nil
	}
	return g.hit(r, h.T, 0)
}

func (g *SignedDistanceGrid) Prepare(device renderer.Device) error {
	if g.released {
		return nil
	}
	if g.gridDirty && !g.building {
		field := capsuleField[float32](g.frame, g.props.Points, g.props.Radius, g.props.Smoothness)
		g.grid = sdf.BuildGrid(field, g.props.Resolution)
		g.gridDirty = false
		g.markTextureStale()
	}
	if g.textureStale && g.grid.Resolution > 0 {
		if g.texture == nil {
			n := uint32(g.grid.Resolution)
			tex, err := device.CreateTexture(renderer.TextureDescriptor{
				Label:     g.label + " Distances",
				Width:     n,
				Height:    n,
				Depth:     n,
				Format:    renderer.TextureFormatR32Float,
				Dimension: renderer.TextureDimension3D,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", g.label, err)
			}
			g.texture = tex
			g.bindings.SetTexture(1, tex)
		}
		if err := device.WriteTexture(g.texture, g.grid.Bytes()); err != nil {
			return fmt.Errorf("%s: %w", g.label, err)
		}
		g.textureStale = false
	}
	return g.prepareBindings(device)
}

func (g *SignedDistanceGrid) Ready() bool {
	return g.ready() && g.texture != nil && len(g.props.Points) > 0
}

func (g *SignedDistanceGrid) Record(pass renderer.RenderPass) bool {
	if !g.Ready() || !g.bind(pass) {
		return false
	}
	pass.Draw(CubeVertexCount, 1, 0, 0)
	return true
}

func (g *SignedDistanceGrid) Release() {
	if g.texture != nil {
		g.texture.Release()
		g.texture = nil
	}
	g.release()
}
