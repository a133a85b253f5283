// Package gpu_object implements the GPU-backed objects a Scene draws and picks: parametric primitives
// (spheres, rounded cones, splines), signed distance grids, volumes, meshes and rays.
//
// Every object owns one allocation of packed properties in the scene's buffer. Setters only touch the
// CPU-side properties and raise the dirty flags; the scene later serializes dirty objects with ToBuffer,
// uploads their ranges and clears the flags. Recording a draw is a silent no-op while an object is hidden
// or any GPU resource it needs (allocation, bind group, texture) is missing.
package gpu_object

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/allocator"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/pipeline"
)

// ErrReleased is returned by mutators of released objects.
var ErrReleased = errors.New("gpu_object: object released")

// Kind tags the concrete object type. It selects the pipeline an object is drawn with.
type Kind int

const (
	KindSphere Kind = iota
	KindRoundedCone
	KindRoundedConeInstanced
	KindSpline
	KindSignedDistanceGrid
	KindVolume
	KindDynamicVolume
	KindMesh
	KindRay
)

// Kinds lists every object kind.
var Kinds = []Kind{
	KindSphere, KindRoundedCone, KindRoundedConeInstanced, KindSpline, KindSignedDistanceGrid,
	KindVolume, KindDynamicVolume, KindMesh, KindRay,
}

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "Sphere"
	case KindRoundedCone:
		return "RoundedCone"
	case KindRoundedConeInstanced:
		return "RoundedConeInstanced"
	case KindSpline:
		return "Spline"
	case KindSignedDistanceGrid:
		return "SignedDistanceGrid"
	case KindVolume:
		return "Volume"
	case KindDynamicVolume:
		return "DynamicVolume"
	case KindMesh:
		return "Mesh"
	case KindRay:
		return "Ray"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// PipelineKey returns the pipeline cache key for a kind. Transparent objects use an alpha blended variant.
func PipelineKey(k Kind, transparent bool) string {
	if transparent {
		return k.String() + "Transparent"
	}
	return k.String()
}

// State is the lifecycle stage of an object.
type State int

const (
	StateConstructed State = iota
	StateAllocated
	StatePopulated
	StateDirty
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "Constructed"
	case StateAllocated:
		return "Allocated"
	case StatePopulated:
		return "Populated"
	case StateDirty:
		return "Dirty"
	case StateDeleted:
		return "Deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Host provides the GPU services objects are created against. Scenes implement it; the allocation calls
// let the host apply its growth policy and track which object owns which allocation.
type Host interface {
	// Device returns the device GPU resources are created on.
	//
	// Returns:
	//   - renderer.Device: the device
	Device() renderer.Device

	// Pipelines returns the pipeline cache used to look up bind group layouts.
	//
	// Returns:
	//   - pipeline.Cache: the cache
	Pipelines() pipeline.Cache

	// Allocate reserves a properties range for owner. Whenever the range is later replaced the host calls
	// owner.OnAllocationMoved with the replacement.
	//
	// Parameters:
	//   - owner: the requesting object
	//   - size: the size in bytes
	//
	// Returns:
	//   - *allocator.Allocation: the allocation
	//   - error: an error if no memory could be found even after growing
	Allocate(owner Allocated, size uint64) (*allocator.Allocation, error)

	// Deallocate returns a range to the host. Invalid allocations are ignored.
	//
	// Parameters:
	//   - a: the allocation
	Deallocate(a *allocator.Allocation)

	// Post queues fn to run on the main thread during the next flush. It is safe to call from any goroutine.
	//
	// Parameters:
	//   - fn: the function to run
	Post(fn func())
}

// Object is the capability every GPU object has.
type Object interface {
	// Kind returns the concrete type tag.
	Kind() Kind

	// TypeName returns the name of the concrete type.
	TypeName() string

	// PipelineKey returns the key of the pipeline the object is drawn with.
	PipelineKey() string

	// Label returns the debug label.
	Label() string

	// BoundingBox returns the world space box enclosing the object.
	//
	// Returns:
	//   - common.BoundingBox: the box, empty if the object holds no geometry
	BoundingBox() common.BoundingBox

	// Hidden reports whether the object is skipped by passes and picking.
	Hidden() bool

	// SetHidden hides or shows the object.
	SetHidden(hidden bool)

	// Transparent reports whether the object is drawn with alpha blending.
	Transparent() bool

	// SetTransparent switches between the opaque and the alpha blended pipeline.
	SetTransparent(transparent bool)

	// State returns the lifecycle stage.
	State() State

	// Release frees the allocation and every GPU resource. Released objects are never drawn.
	Release()
}

// Allocated is the capability of objects holding a properties allocation.
type Allocated interface {
	Object

	// Allocation returns the current allocation, or nil.
	Allocation() *allocator.Allocation

	// ByteSize returns the size of the serialized properties.
	ByteSize() uint64

	// ToBuffer serializes the properties into buf using the layout of the object's GPU program.
	//
	// Parameters:
	//   - buf: the destination, at least ByteSize bytes long
	ToBuffer(buf []byte)

	// OnAllocationMoved points the object at a replacement allocation and stages its bind group for
	// rebuilding. It must be called whenever the allocation is replaced.
	//
	// Parameters:
	//   - a: the replacement allocation
	OnAllocationMoved(a *allocator.Allocation)

	// DirtyCPU reports whether the properties changed since the last ToBuffer.
	DirtyCPU() bool

	// DirtyGPU reports whether the CPU mirror changed since the last upload.
	DirtyGPU() bool

	// ClearDirtyCPU is called after the properties were serialized.
	ClearDirtyCPU()

	// ClearDirtyGPU is called after the mirror was uploaded.
	ClearDirtyGPU()
}

// Intersector is the capability of objects that can be picked.
type Intersector interface {
	Object

	// RayIntersection returns the nearest hit of r within its interval.
	//
	// Parameters:
	//   - r: the world space ray
	//
	// Returns:
	//   - *raycast.Intersection: the hit with Object set to the receiver, or nil
	RayIntersection(r raycast.Ray) *raycast.Intersection
}

// Recorder is the capability of objects that issue draw calls.
type Recorder interface {
	Object

	// Prepare creates or refreshes the GPU resources the object draws with: its bind group and any
	// textures or vertex data staged since the last frame. Missing pipelines or pending textures are not
	// an error; the object simply stays not ready.
	//
	// Parameters:
	//   - device: the device to create resources on
	//
	// Returns:
	//   - error: an error if the device rejected a resource
	Prepare(device renderer.Device) error

	// Ready reports whether Record would issue a draw.
	Ready() bool

	// Record issues the draw calls of the object into a pass whose pipeline is already set to the
	// object's PipelineKey. It is a no-op if the object is hidden or not ready.
	//
	// Parameters:
	//   - pass: the render pass
	//
	// Returns:
	//   - bool: true if a draw was recorded
	Record(pass renderer.RenderPass) bool
}

// GPUObject is the full capability set of the objects in this package.
type GPUObject interface {
	Allocated
	Intersector
	Recorder
}

// base is the state shared by every object.
type base struct {
	host  Host
	owner Allocated
	kind  Kind
	label string

	alloc    *allocator.Allocation
	bindings bind_group_provider.BindGroupProvider

	dirtyCPU    bool
	dirtyGPU    bool
	populated   bool
	hidden      bool
	transparent bool
	released    bool
}

func (b *base) init(host Host, owner Allocated, kind Kind, label string) {
	if host == nil {
		panic("gpu_object: objects require a non-nil Host")
	}
	b.host = host
	b.owner = owner
	b.kind = kind
	b.label = common.Coalesce(label, kind.String())
	b.bindings = bind_group_provider.NewBindGroupProvider(b.label)
	b.dirtyCPU = true
	b.dirtyGPU = true
}

func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) TypeName() string {
	return b.kind.String()
}

func (b *base) PipelineKey() string {
	return PipelineKey(b.kind, b.transparent)
}

func (b *base) Label() string {
	return b.label
}

func (b *base) Hidden() bool {
	return b.hidden
}

func (b *base) SetHidden(hidden bool) {
	b.hidden = hidden
}

func (b *base) Transparent() bool {
	return b.transparent
}

func (b *base) SetTransparent(transparent bool) {
	b.transparent = transparent
}

func (b *base) State() State {
	switch {
	case b.released:
		return StateDeleted
	case !b.alloc.Valid():
		return StateConstructed
	case !b.populated:
		return StateAllocated
	case b.dirtyCPU || b.dirtyGPU:
		return StateDirty
	default:
		return StatePopulated
	}
}

func (b *base) Allocation() *allocator.Allocation {
	return b.alloc
}

func (b *base) DirtyCPU() bool {
	return b.dirtyCPU
}

func (b *base) DirtyGPU() bool {
	return b.dirtyGPU
}

func (b *base) ClearDirtyCPU() {
	b.dirtyCPU = false
}

func (b *base) ClearDirtyGPU() {
	if b.dirtyCPU {
		// the mirror is stale, the next flush uploads again
		return
	}
	b.dirtyGPU = false
	b.populated = true
}

func (b *base) markDirty() {
	b.dirtyCPU = true
	b.dirtyGPU = true
}

func (b *base) OnAllocationMoved(a *allocator.Allocation) {
	b.alloc = a
	b.bindings.SetBuffer(0, a.Buffer(), a.Offset(), a.Size())
}

// allocate replaces the allocation with one of size bytes. The old range is returned first so a
// shrinking or same-sized request can reuse it.
func (b *base) allocate(size uint64) error {
	if b.released {
		return ErrReleased
	}
	if b.alloc.Valid() && b.alloc.Size() == size {
		return nil
	}
	if b.alloc.Valid() {
		b.host.Deallocate(b.alloc)
		b.alloc = nil
	}
	a, err := b.host.Allocate(b.owner, size)
	if err != nil {
		return fmt.Errorf("%s %q: %w", b.kind, b.label, err)
	}
	b.OnAllocationMoved(a)
	b.markDirty()
	b.populated = false
	return nil
}

// layout returns the object bind group layout of the object's pipeline, or nil if it is not registered.
func (b *base) layout() renderer.BindGroupLayout {
	cache := b.host.Pipelines()
	if cache == nil {
		return nil
	}
	p, err := cache.Pipeline(b.PipelineKey())
	if err != nil {
		return nil
	}
	return p.BindGroupLayout(ObjectGroup)
}

func (b *base) prepareBindings(device renderer.Device) error {
	if b.released || !b.alloc.Valid() {
		return nil
	}
	layout := b.layout()
	if layout == nil {
		return nil
	}
	_, err := b.bindings.Rebuild(device, layout)
	return err
}

func (b *base) ready() bool {
	return !b.released && b.alloc.Valid() && b.bindings.Ready()
}

// bind sets the object bind group if the object may be drawn.
func (b *base) bind(pass renderer.RenderPass) bool {
	if b.hidden || !b.ready() {
		return false
	}
	pass.SetBindGroup(ObjectGroup, b.bindings.BindGroup(), nil)
	return true
}

func (b *base) release() {
	if b.released {
		return
	}
	if b.alloc.Valid() {
		b.host.Deallocate(b.alloc)
	}
	b.alloc = nil
	b.bindings.Release()
	b.released = true
	b.dirtyCPU = false
	b.dirtyGPU = false
}

func (b *base) hit(r raycast.Ray, t float64, bin int) *raycast.Intersection {
	if t == raycast.Miss || !r.Contains(t) {
		return nil
	}
	return &raycast.Intersection{T: t, Object: b.owner, Bin: bin}
}
