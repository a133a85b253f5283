package cluster

import (
	"fmt"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/scene"
	"github.com/chewxy/math32"
)

// VisualisationType names the ways a leaf can draw its cluster.
type VisualisationType int

const (
	VisSphere VisualisationType = iota
	VisPathline
	VisSpheres
	VisPCA
	VisHedgehog
	VisSignedDistance
	VisVolume
	visTypeCount
)

func (t VisualisationType) String() string {
	switch t {
	case VisSphere:
		return "Sphere"
	case VisPathline:
		return "Pathline"
	case VisSpheres:
		return "Spheres"
	case VisPCA:
		return "PCA"
	case VisHedgehog:
		return "Hedgehog"
	case VisSignedDistance:
		return "SignedDistance"
	case VisVolume:
		return "Volume"
	default:
		return fmt.Sprintf("VisualisationType(%d)", int(t))
	}
}

// Next returns the type after t, wrapping around. Viewers use it to cycle through the types.
func (t VisualisationType) Next() VisualisationType {
	return (t + 1) % visTypeCount
}

// Constructor builds the visualisation of a leaf.
//
// Parameters:
//   - c: the composite the leaf belongs to
//   - id: the leaf
//
// Returns:
//   - Visualisation: the visualisation, with its scene objects registered
//   - error: an error if a scene object could not be created
type Constructor func(c Composite, id NodeID) (Visualisation, error)

// ConstructorOf returns the constructor of a visualisation type, nil for unknown types.
func ConstructorOf(t VisualisationType) Constructor {
	switch t {
	case VisSphere:
		return NewSphereVisualisation
	case VisPathline:
		return NewPathlineVisualisation
	case VisSpheres:
		return NewSpheresVisualisation
	case VisPCA:
		return NewPCAVisualisation
	case VisHedgehog:
		return NewHedgehogVisualisation
	case VisSignedDistance:
		return NewSignedDistanceVisualisation
	case VisVolume:
		return NewVolumeVisualisation
	default:
		return nil
	}
}

// ParseVisualisationType resolves a type name as printed by String.
//
// Parameters:
//   - name: the type name
//
// Returns:
//   - VisualisationType: the type
//   - error: an error if the name is unknown
func ParseVisualisationType(name string) (VisualisationType, error) {
	for t := VisSphere; t < visTypeCount; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("cluster: unknown visualisation type %q", name)
}

// Visualisation draws one leaf cluster with scene objects it owns.
type Visualisation interface {
	// Type returns the visualisation type.
	Type() VisualisationType

	// Constructor returns the constructor this visualisation was built with, used to rebuild leaves
	// after a split or merge the same way.
	Constructor() Constructor

	// Center returns the world space center the visualisation is drawn around.
	Center() common.Vec3f

	// Radius returns the approximate world space extent around Center.
	Radius() float32

	// SetColor recolors every owned object.
	//
	// Parameters:
	//   - c: the new color
	SetColor(c gpu_object.Color)

	// SetHidden hides or shows every owned object.
	//
	// Parameters:
	//   - hidden: the new state
	SetHidden(hidden bool)

	// Update rebuilds the geometry from the leaf's current points.
	//
	// Returns:
	//   - error: an error if an owned object could not be resized
	Update() error

	// EventUpdate is called after another part of the tree changed. Visualisations depending on other
	// leaves refresh themselves here.
	//
	// Returns:
	//   - error: an error if an owned object could not be resized
	EventUpdate() error

	// RayIntersection returns the nearest hit of r on any visible owned object.
	//
	// Parameters:
	//   - r: the world space ray
	//
	// Returns:
	//   - *raycast.Intersection: the hit, or nil
	RayIntersection(r raycast.Ray) *raycast.Intersection

	// Objects returns the owned scene objects.
	Objects() []gpu_object.GPUObject

	// Release removes every owned object from the scene.
	Release()
}

// visBase tracks the objects a visualisation registered in the scene.
type visBase struct {
	comp    Composite
	id      NodeID
	typ     VisualisationType
	ctor    Constructor
	objects []gpu_object.GPUObject
	ids     []scene.ObjectID
}

func (b *visBase) Type() VisualisationType {
	return b.typ
}

func (b *visBase) Constructor() Constructor {
	if b.ctor != nil {
		return b.ctor
	}
	return ConstructorOf(b.typ)
}

// bindConstructor records the constructor the composite built this visualisation with, which may wrap
// the built-in one of its type.
func (b *visBase) bindConstructor(ctor Constructor) {
	b.ctor = ctor
}

func (b *visBase) Center() common.Vec3f {
	return b.comp.Center(b.id)
}

func (b *visBase) SetHidden(hidden bool) {
	for _, obj := range b.objects {
		obj.SetHidden(hidden)
	}
}

func (b *visBase) EventUpdate() error {
	return nil
}

func (b *visBase) RayIntersection(r raycast.Ray) *raycast.Intersection {
	var best *raycast.Intersection
	for _, obj := range b.objects {
		if obj.Hidden() {
			continue
		}
		best = raycast.Nearest(best, obj.RayIntersection(r))
	}
	return best
}

func (b *visBase) Objects() []gpu_object.GPUObject {
	return append([]gpu_object.GPUObject(nil), b.objects...)
}

func (b *visBase) Release() {
	for _, id := range b.ids {
		b.comp.Scene().RemoveObjectByID(id)
	}
	b.objects, b.ids = nil, nil
}

func (b *visBase) label(name string) string {
	return fmt.Sprintf("Cluster %d %s", b.id, name)
}

// addObject registers an object created by ctor and takes ownership of it.
func addObject[T gpu_object.GPUObject](b *visBase, ctor func(gpu_object.Host) (T, error)) (T, error) {
	obj, id, err := scene.Add(b.comp.Scene(), ctor)
	if err != nil {
		return obj, err
	}
	b.objects = append(b.objects, obj)
	b.ids = append(b.ids, id)
	return obj, nil
}

// newVisualisation runs init on a fresh base and releases whatever it registered on failure.
func newVisualisation[V Visualisation](c Composite, id NodeID, typ VisualisationType, v V, b *visBase, init func() error) (Visualisation, error) {
	*b = visBase{comp: c, id: id, typ: typ}
	if err := init(); err != nil {
		b.Release()
		return nil, fmt.Errorf("%s visualisation: %w", typ, err)
	}
	return v, nil
}

// gyrationRadius returns the root mean square distance of points to center.
func gyrationRadius(points []common.Vec3f, center common.Vec3f) float32 {
	if len(points) == 0 {
		return 0
	}
	var sum float32
	for _, p := range points {
		sum += p.Sub(center).LengthSquared()
	}
	return math32.Sqrt(sum / float32(len(points)))
}

// SphereVisualisation draws a cluster as one sphere at its centroid with its radius of gyration.
type SphereVisualisation struct {
	visBase
	sphere *gpu_object.Sphere
}

// NewSphereVisualisation is the Constructor of VisSphere.
func NewSphereVisualisation(c Composite, id NodeID) (Visualisation, error) {
	v := &SphereVisualisation{}
	return newVisualisation(c, id, VisSphere, v, &v.visBase, func() error {
		var err error
		v.sphere, err = addObject(&v.visBase, func(h gpu_object.Host) (*gpu_object.Sphere, error) {
			return gpu_object.NewSphere(h, v.label("Sphere"))
		})
		if err != nil {
			return err
		}
		v.sphere.SetColor(c.Color(id))
		return v.Update()
	})
}

func (v *SphereVisualisation) Radius() float32 {
	return v.sphere.Properties().Radius
}

func (v *SphereVisualisation) SetColor(c gpu_object.Color) {
	v.sphere.SetColor(c)
}

func (v *SphereVisualisation) Update() error {
	center := v.comp.Center(v.id)
	v.sphere.SetCenter(center)
	v.sphere.SetRadius(math32.Max(gyrationRadius(v.comp.LeafPoints(v.id), center), v.comp.Style().MinRadius))
	return nil
}

// PathlineVisualisation draws a cluster as a smooth tube through its points.
type PathlineVisualisation struct {
	visBase
	spline *gpu_object.Spline
	radius float32
}

// NewPathlineVisualisation is the Constructor of VisPathline.
func NewPathlineVisualisation(c Composite, id NodeID) (Visualisation, error) {
	v := &PathlineVisualisation{}
	return newVisualisation(c, id, VisPathline, v, &v.visBase, func() error {
		var err error
		v.spline, err = addObject(&v.visBase, func(h gpu_object.Host) (*gpu_object.Spline, error) {
			return gpu_object.NewSpline(h, v.segments(), v.label("Pathline"))
		})
		return err
	})
}

// segments builds the tube through the leaf points. A single point becomes a zero length segment so the
// leaf stays visible and pickable.
func (v *PathlineVisualisation) segments() []gpu_object.SplineSegment {
	points := v.comp.LeafPoints(v.id)
	if len(points) == 1 {
		points = []common.Vec3f{points[0], points[0]}
	}
	v.radius = v.comp.Style().PathlineRadius
	return gpu_object.QuadraticSegments(points, v.radius, v.comp.Color(v.id))
}

func (v *PathlineVisualisation) Radius() float32 {
	return math32.Max(gyrationRadius(v.comp.LeafPoints(v.id), v.Center()), v.radius)
}

func (v *PathlineVisualisation) SetColor(c gpu_object.Color) {
	v.spline.SetColor(c)
}

func (v *PathlineVisualisation) Update() error {
	return v.spline.SetSegments(v.segments())
}

// SpheresVisualisation draws a sphere at every point of a cluster with one instanced draw.
type SpheresVisualisation struct {
	visBase
	spheres *gpu_object.RoundedConeInstanced
	color   gpu_object.Color
}

// NewSpheresVisualisation is the Constructor of VisSpheres.
func NewSpheresVisualisation(c Composite, id NodeID) (Visualisation, error) {
	v := &SpheresVisualisation{color: c.Color(id)}
	return newVisualisation(c, id, VisSpheres, v, &v.visBase, func() error {
		var err error
		v.spheres, err = addObject(&v.visBase, func(h gpu_object.Host) (*gpu_object.RoundedConeInstanced, error) {
			return gpu_object.NewRoundedConeInstanced(h, 0, v.label("Spheres"))
		})
		if err != nil {
			return err
		}
		return v.Update()
	})
}

func (v *SpheresVisualisation) Radius() float32 {
	return gyrationRadius(v.comp.LeafPoints(v.id), v.Center()) + v.comp.Style().PointRadius
}

func (v *SpheresVisualisation) SetColor(c gpu_object.Color) {
	v.color = c
	for i := 0; i < v.spheres.Count(); i++ {
		p := v.spheres.Instance(i)
		p.StartColor, p.EndColor = c, c
		v.spheres.SetInstance(i, p)
	}
}

func (v *SpheresVisualisation) Update() error {
	points := v.comp.LeafPoints(v.id)
	r := v.comp.Style().PointRadius
	instances := make([]gpu_object.RoundedConeProperties, len(points))
	for i, p := range points {
		instances[i] = gpu_object.RoundedConeProperties{
			Start: p, End: p,
			StartRadius: r, EndRadius: r,
			StartColor: v.color, EndColor: v.color,
		}
	}
	return v.spheres.SetInstances(instances)
}

// PCAVisualisation draws a cluster as a rounded cone along its principal axis. The cone spans the
// projections of the points onto the axis, points from the first towards the last point and tapers
// to half its radius.
type PCAVisualisation struct {
	visBase
	cone *gpu_object.RoundedCone
}

// NewPCAVisualisation is the Constructor of VisPCA.
func NewPCAVisualisation(c Composite, id NodeID) (Visualisation, error) {
	v := &PCAVisualisation{}
	return newVisualisation(c, id, VisPCA, v, &v.visBase, func() error {
		var err error
		v.cone, err = addObject(&v.visBase, func(h gpu_object.Host) (*gpu_object.RoundedCone, error) {
			return gpu_object.NewRoundedCone(h, v.label("PCA"))
		})
		if err != nil {
			return err
		}
		color := c.Color(id)
		v.cone.SetColors(color, color)
		return v.Update()
	})
}

func (v *PCAVisualisation) Radius() float32 {
	p := v.cone.Properties()
	return p.End.Sub(p.Start).Length()/2 + p.StartRadius
}

func (v *PCAVisualisation) SetColor(c gpu_object.Color) {
	v.cone.SetColors(c, c)
}

func (v *PCAVisualisation) Update() error {
	points := v.comp.LeafPoints(v.id)
	center := common.Centroid(points)
	minRadius := v.comp.Style().MinRadius
	axis := principalAxis(points, center)
	if len(points) > 1 && points[len(points)-1].Sub(points[0]).Dot(axis) < 0 {
		axis = axis.Scale(-1)
	}

	lo, hi := float32(0), float32(0)
	var perp float32
	for _, p := range points {
		d := p.Sub(center)
		t := d.Dot(axis)
		lo, hi = math32.Min(lo, t), math32.Max(hi, t)
		perp += d.Sub(axis.Scale(t)).LengthSquared()
	}
	radius := minRadius
	if len(points) > 0 {
		radius = math32.Max(math32.Sqrt(perp/float32(len(points))), minRadius)
	}
	v.cone.SetEnds(center.Add(axis.Scale(lo)), center.Add(axis.Scale(hi)))
	v.cone.SetRadii(radius, radius/2)
	return nil
}

// principalAxis returns the unit eigenvector of the largest eigenvalue of the covariance of points, found
// by power iteration. Degenerate inputs return the x axis.
func principalAxis(points []common.Vec3f, center common.Vec3f) common.Vec3f {
	var cov [3][3]float64
	for _, p := range points {
		d := common.ToF64(p.Sub(center))
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				cov[i][j] += d[i] * d[j]
			}
		}
	}
	v := common.Vec3d{1, 1, 1}.Normalize()
	for iter := 0; iter < 64; iter++ {
		next := common.Vec3d{
			cov[0][0]*v[0] + cov[0][1]*v[1] + cov[0][2]*v[2],
			cov[1][0]*v[0] + cov[1][1]*v[1] + cov[1][2]*v[2],
			cov[2][0]*v[0] + cov[2][1]*v[1] + cov[2][2]*v[2],
		}
		l := next.Length()
		if l < 1e-12 {
			return common.Vec3f{1, 0, 0}
		}
		next = next.Scale(1 / l)
		if next.Sub(v).LengthSquared() < 1e-14 {
			v = next
			break
		}
		v = next
	}
	return common.ToF32(v)
}

// HedgehogVisualisation draws a cluster as a core sphere with a spike towards every other leaf, so the
// spatial relation to the rest of the tree stays readable when zoomed in.
type HedgehogVisualisation struct {
	visBase
	core   *gpu_object.Sphere
	spikes *gpu_object.RoundedConeInstanced
	color  gpu_object.Color
}

// NewHedgehogVisualisation is the Constructor of VisHedgehog.
func NewHedgehogVisualisation(c Composite, id NodeID) (Visualisation, error) {
	v := &HedgehogVisualisation{color: c.Color(id)}
	return newVisualisation(c, id, VisHedgehog, v, &v.visBase, func() error {
		var err error
		v.core, err = addObject(&v.visBase, func(h gpu_object.Host) (*gpu_object.Sphere, error) {
			return gpu_object.NewSphere(h, v.label("Hedgehog Core"))
		})
		if err != nil {
			return err
		}
		v.spikes, err = addObject(&v.visBase, func(h gpu_object.Host) (*gpu_object.RoundedConeInstanced, error) {
			return gpu_object.NewRoundedConeInstanced(h, 0, v.label("Hedgehog Spikes"))
		})
		if err != nil {
			return err
		}
		v.core.SetColor(v.color)
		return v.Update()
	})
}

func (v *HedgehogVisualisation) Radius() float32 {
	return v.core.Properties().Radius * (1 + v.comp.Style().HedgehogLength)
}

func (v *HedgehogVisualisation) SetColor(c gpu_object.Color) {
	v.color = c
	v.core.SetColor(c)
	for i := 0; i < v.spikes.Count(); i++ {
		p := v.spikes.Instance(i)
		p.StartColor, p.EndColor = c, c
		v.spikes.SetInstance(i, p)
	}
}

func (v *HedgehogVisualisation) Update() error {
	style := v.comp.Style()
	center := v.comp.Center(v.id)
	core := math32.Max(gyrationRadius(v.comp.LeafPoints(v.id), center)/2, style.MinRadius)
	v.core.SetCenter(center)
	v.core.SetRadius(core)

	var spikes []gpu_object.RoundedConeProperties
	for _, other := range v.comp.Leaves() {
		if other == v.id {
			continue
		}
		dir := v.comp.Center(other).Sub(center)
		if dir.LengthSquared() == 0 {
			continue
		}
		dir = dir.Normalize()
		spikes = append(spikes, gpu_object.RoundedConeProperties{
			Start:       center,
			End:         center.Add(dir.Scale(core * (1 + style.HedgehogLength))),
			StartRadius: core / 4,
			EndRadius:   core / 16,
			StartColor:  v.color,
			EndColor:    v.color,
		})
	}
	return v.spikes.SetInstances(spikes)
}

// EventUpdate redirects the spikes, which point at the other leaves.
func (v *HedgehogVisualisation) EventUpdate() error {
	return v.Update()
}

// SignedDistanceVisualisation draws a cluster as the smooth union of capsules through its points,
// sampled into a distance texture. Grids are built on the composite's texture loader when one is set.
type SignedDistanceVisualisation struct {
	visBase
	grid *gpu_object.SignedDistanceGrid
}

// NewSignedDistanceVisualisation is the Constructor of VisSignedDistance.
func NewSignedDistanceVisualisation(c Composite, id NodeID) (Visualisation, error) {
	v := &SignedDistanceVisualisation{}
	return newVisualisation(c, id, VisSignedDistance, v, &v.visBase, func() error {
		var err error
		v.grid, err = addObject(&v.visBase, func(h gpu_object.Host) (*gpu_object.SignedDistanceGrid, error) {
			return gpu_object.NewSignedDistanceGrid(h, v.label("Signed Distance"))
		})
		if err != nil {
			return err
		}
		return v.Update()
	})
}

func (v *SignedDistanceVisualisation) Radius() float32 {
	return v.grid.BoundingBox().LongestSide() / 2
}

func (v *SignedDistanceVisualisation) SetColor(c gpu_object.Color) {
	v.grid.SetColor(c)
}

func (v *SignedDistanceVisualisation) Update() error {
	style := v.comp.Style()
	err := v.grid.SetProperties(gpu_object.SignedDistanceGridProperties{
		Points:     v.comp.LeafPoints(v.id),
		Radius:     style.SurfaceRadius,
		Smoothness: style.Smoothness,
		Color:      v.comp.Color(v.id),
		Resolution: style.GridResolution,
		Tolerance:  gpu_object.DefaultSurfaceTolerance,
	})
	if err != nil {
		return err
	}
	if l := v.comp.TextureLoader(); l != nil {
		v.grid.BuildAsync(l)
	}
	return nil
}

// VolumeVisualisation draws a cluster as a ray marched density volume colored through a colormap.
type VolumeVisualisation struct {
	visBase
	volume *gpu_object.Volume
}

// NewVolumeVisualisation is the Constructor of VisVolume.
func NewVolumeVisualisation(c Composite, id NodeID) (Visualisation, error) {
	v := &VolumeVisualisation{}
	return newVisualisation(c, id, VisVolume, v, &v.visBase, func() error {
		var err error
		v.volume, err = addObject(&v.visBase, func(h gpu_object.Host) (*gpu_object.Volume, error) {
			return gpu_object.NewVolume(h, []gpu_object.VolumeUnit{v.unit()}, v.label("Volume"))
		})
		if err != nil {
			return err
		}
		v.volume.SetColormap(gpu_object.DefaultColormap())
		return nil
	})
}

func (v *VolumeVisualisation) unit() gpu_object.VolumeUnit {
	style := v.comp.Style()
	return gpu_object.VolumeUnit{
		Points:     v.comp.LeafPoints(v.id),
		Radius:     style.SurfaceRadius,
		Smoothness: style.Smoothness,
		Color:      v.comp.Color(v.id),
	}
}

func (v *VolumeVisualisation) Radius() float32 {
	return v.volume.BoundingBox().LongestSide() / 2
}

func (v *VolumeVisualisation) SetColor(c gpu_object.Color) {
	v.volume.SetUnitColor(0, c)
}

func (v *VolumeVisualisation) Update() error {
	return v.volume.SetUnits([]gpu_object.VolumeUnit{v.unit()})
}
