package scene

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/allocator"
	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/pipeline"
)

// ErrUnsupportedKind is returned when an object kind cannot be created through the requested call.
var ErrUnsupportedKind = errors.New("scene: unsupported object kind")

// ObjectID identifies an object within a scene. IDs start at 1 and are never reused by the same scene;
// the zero ID never names an object.
type ObjectID uint64

// pickParallelThreshold is the object count below which picking runs on the calling goroutine.
const pickParallelThreshold = 16

// FlushStats summarizes the work done by one Flush.
type FlushStats struct {
	// Posted is the number of main-thread functions drained from the Post queue.
	Posted int
	// Serialized is the number of CPU-dirty objects written into their allocation.
	Serialized int
	// Uploaded is the number of allocations uploaded to the GPU.
	Uploaded int
	// Ready is the number of objects that would record a draw after the flush.
	Ready int
}

// Scene is the registry of GPU objects. It owns the properties allocator objects reserve their ranges
// from, hands out object IDs and keeps the insertion order passes draw in. A Scene is the gpu_object.Host
// of every object it creates: it grows the allocator when it runs out of memory and hands relocated
// ranges back to their owners.
//
// All mutation happens on the main thread. Post is the only method safe to call from other goroutines.
type Scene interface {
	gpu_object.Host

	// Name returns the scene's identifier.
	Name() string

	// Allocator returns the allocator holding every object's properties.
	//
	// Returns:
	//   - allocator.Allocator: the allocator
	Allocator() allocator.Allocator

	// AddObject creates an object of the given kind with default properties and registers it. Instanced
	// kinds start without instances. Dynamic volumes are created with AddDynamicVolume.
	//
	// Parameters:
	//   - kind: the object kind
	//
	// Returns:
	//   - gpu_object.GPUObject: the new object
	//   - ObjectID: the assigned ID
	//   - error: ErrUnsupportedKind, or an allocation error
	AddObject(kind gpu_object.Kind) (gpu_object.GPUObject, ObjectID, error)

	// AddObjectInstanced creates an instanced object with count zero-initialized instances: rounded cones,
	// spline segments or volume units.
	//
	// Parameters:
	//   - kind: one of KindRoundedConeInstanced, KindSpline or KindVolume
	//   - count: the instance count
	//
	// Returns:
	//   - gpu_object.GPUObject: the new object
	//   - ObjectID: the assigned ID
	//   - error: ErrUnsupportedKind, or an allocation error
	AddObjectInstanced(kind gpu_object.Kind, count int) (gpu_object.GPUObject, ObjectID, error)

	// AddDynamicVolume creates an empty dynamic volume and registers it.
	//
	// Returns:
	//   - *gpu_object.DynamicVolume: the volume
	//   - ObjectID: the assigned ID
	//   - error: an allocation error
	AddDynamicVolume() (*gpu_object.DynamicVolume, ObjectID, error)

	// Register adds an object created against this scene and assigns it an ID. Registering the same
	// object twice returns its existing ID.
	//
	// Parameters:
	//   - obj: the object, created with this scene as its host
	//
	// Returns:
	//   - ObjectID: the assigned ID
	Register(obj gpu_object.GPUObject) ObjectID

	// Object returns the object with the given ID, or nil.
	Object(id ObjectID) gpu_object.GPUObject

	// IDOf returns the ID of a registered object.
	//
	// Parameters:
	//   - obj: the object
	//
	// Returns:
	//   - ObjectID: the ID
	//   - bool: false if the object is not registered
	IDOf(obj gpu_object.Object) (ObjectID, bool)

	// RemoveObjectByID releases and unregisters an object. Unknown IDs, the zero ID and IDs of dynamic
	// volumes are ignored.
	//
	// Parameters:
	//   - id: the object ID
	RemoveObjectByID(id ObjectID)

	// RemoveDynamicVolumeByID releases and unregisters a dynamic volume. Unknown IDs and IDs of other
	// objects are ignored.
	//
	// Parameters:
	//   - id: the volume ID
	RemoveDynamicVolumeByID(id ObjectID)

	// Objects returns the registered objects in insertion order.
	//
	// Returns:
	//   - []gpu_object.GPUObject: a copy of the object list
	Objects() []gpu_object.GPUObject

	// Count returns the number of registered objects.
	Count() int

	// Flush runs the posted main-thread functions, serializes CPU-dirty objects into their allocations,
	// uploads every GPU-dirty allocation with a single buffer write and prepares the objects' GPU
	// resources. Afterwards no object is dirty unless it was mutated by a failing Prepare.
	//
	// Returns:
	//   - FlushStats: counters of the work done
	//   - error: the joined Prepare and upload errors
	Flush() (FlushStats, error)

	// Compact slides every live allocation to the front of the buffer and notifies the moved owners.
	//
	// Returns:
	//   - error: an error if the compacted ranges could not be uploaded
	Compact() error

	// RayIntersection returns the nearest hit of r over every visible object.
	//
	// Parameters:
	//   - r: the world space ray
	//
	// Returns:
	//   - *raycast.Intersection: the nearest hit, or nil
	RayIntersection(r raycast.Ray) *raycast.Intersection

	// Clear releases and unregisters every object. IDs keep increasing.
	Clear()

	// Release clears the scene and frees the allocator, the worker pool and an owned pipeline cache.
	Release()
}

type entry struct {
	obj     gpu_object.GPUObject
	dynamic bool
}

type scene struct {
	mu *sync.RWMutex

	name   string
	device renderer.Device

	alloc         allocator.Allocator
	allocOpts     []allocator.AllocatorBuilderOption
	pipelines     pipeline.Cache
	ownsPipelines bool

	objects map[ObjectID]entry
	order   []ObjectID
	nextID  ObjectID
	owners  map[uint64]gpu_object.Allocated

	postMu *sync.Mutex
	posted []func()

	pickPool    worker.DynamicWorkerPool
	pickWorkers int
}

var _ Scene = &scene{}

// NewScene creates a scene on a device. Unless WithPipelines supplies a cache, the scene creates one and
// registers the pipelines of every object kind; a pipeline the device rejects is logged and its objects
// stay undrawn.
//
// Parameters:
//   - name: the name of the scene
//   - device: the device (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
//   - error: an error if the allocator buffer could not be created
func NewScene(name string, device renderer.Device, options ...SceneBuilderOption) (Scene, error) {
	if device == nil {
		panic("scene: NewScene requires a non-nil Device")
	}

	s := &scene{
		mu:          &sync.RWMutex{},
		name:        common.Coalesce(name, "Scene"),
		device:      device,
		objects:     make(map[ObjectID]entry),
		nextID:      1,
		owners:      make(map[uint64]gpu_object.Allocated),
		postMu:      &sync.Mutex{},
		pickWorkers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}

	alloc, err := allocator.NewAllocator(device, append([]allocator.AllocatorBuilderOption{allocator.WithLabel(s.name + " Objects")}, s.allocOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", s.name, err)
	}
	s.alloc = alloc

	if s.pipelines == nil {
		s.pipelines = pipeline.NewCache(device)
		s.ownsPipelines = true
		for _, p := range gpu_object.Pipelines() {
			if err := s.pipelines.Register(p); err != nil {
				common.Logger().Warn("pipeline unavailable", "scene", s.name, "key", p.Key(), "error", err)
			}
		}
	}

	// Queue size of 256 covers typical object counts; larger scenes block briefly on submission.
	s.pickPool = worker.NewDynamicWorkerPool(s.pickWorkers, 256, 1*time.Second)
	return s, nil
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Device() renderer.Device {
	return s.device
}

func (s *scene) Pipelines() pipeline.Cache {
	return s.pipelines
}

func (s *scene) Allocator() allocator.Allocator {
	return s.alloc
}

func (s *scene) Allocate(owner gpu_object.Allocated, size uint64) (*allocator.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.alloc.Allocate(size)
	if errors.Is(err, allocator.ErrOutOfMemory) {
		capacity := s.alloc.Capacity()
		relocs, gerr := s.alloc.Grow(max(2*capacity, capacity+size))
		if gerr != nil {
			return nil, fmt.Errorf("scene %q: %w", s.name, gerr)
		}
		s.relocate(relocs)
		a, err = s.alloc.Allocate(size)
	}
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", s.name, err)
	}
	s.owners[a.ID()] = owner
	return a, nil
}

func (s *scene) Deallocate(a *allocator.Allocation) {
	if !a.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.owners, a.ID())
	if err := s.alloc.Deallocate(a); err != nil {
		common.Logger().Warn("deallocate failed", "scene", s.name, "error", err)
	}
}

// relocate hands replacement allocations to their owners. Callers hold s.mu.
func (s *scene) relocate(relocs []allocator.Relocation) {
	for _, r := range relocs {
		owner, ok := s.owners[r.Old.ID()]
		delete(s.owners, r.Old.ID())
		if !ok {
			continue
		}
		s.owners[r.New.ID()] = owner
		owner.OnAllocationMoved(r.New)
	}
	if len(relocs) > 0 {
		common.Logger().Debug("allocations relocated", "scene", s.name, "count", len(relocs))
	}
}

func (s *scene) Post(fn func()) {
	if fn == nil {
		return
	}
	s.postMu.Lock()
	defer s.postMu.Unlock()
	s.posted = append(s.posted, fn)
}

func (s *scene) AddObject(kind gpu_object.Kind) (gpu_object.GPUObject, ObjectID, error) {
	var (
		obj gpu_object.GPUObject
		err error
	)
	switch kind {
	case gpu_object.KindSphere:
		obj, err = gpu_object.NewSphere(s, "")
	case gpu_object.KindRoundedCone:
		obj, err = gpu_object.NewRoundedCone(s, "")
	case gpu_object.KindSignedDistanceGrid:
		obj, err = gpu_object.NewSignedDistanceGrid(s, "")
	case gpu_object.KindMesh:
		obj, err = gpu_object.NewMesh(s, nil, nil, "")
	case gpu_object.KindRay:
		obj, err = gpu_object.NewRay(s, "")
	case gpu_object.KindRoundedConeInstanced, gpu_object.KindSpline, gpu_object.KindVolume:
		return s.AddObjectInstanced(kind, 0)
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	if err != nil {
		return nil, 0, err
	}
	return obj, s.Register(obj), nil
}

func (s *scene) AddObjectInstanced(kind gpu_object.Kind, count int) (gpu_object.GPUObject, ObjectID, error) {
	if count < 0 {
		return nil, 0, fmt.Errorf("scene %q: negative instance count %d", s.name, count)
	}
	var (
		obj gpu_object.GPUObject
		err error
	)
	switch kind {
	case gpu_object.KindRoundedConeInstanced:
		obj, err = gpu_object.NewRoundedConeInstanced(s, count, "")
	case gpu_object.KindSpline:
		obj, err = gpu_object.NewSpline(s, make([]gpu_object.SplineSegment, count), "")
	case gpu_object.KindVolume:
		obj, err = gpu_object.NewVolume(s, make([]gpu_object.VolumeUnit, count), "")
	default:
		return nil, 0, fmt.Errorf("%w: %s is not instanced", ErrUnsupportedKind, kind)
	}
	if err != nil {
		return nil, 0, err
	}
	return obj, s.Register(obj), nil
}

func (s *scene) AddDynamicVolume() (*gpu_object.DynamicVolume, ObjectID, error) {
	v, err := gpu_object.NewDynamicVolume(s, "")
	if err != nil {
		return nil, 0, err
	}
	return v, s.register(v, true), nil
}

func (s *scene) Register(obj gpu_object.GPUObject) ObjectID {
	_, dynamic := obj.(*gpu_object.DynamicVolume)
	return s.register(obj, dynamic)
}

func (s *scene) register(obj gpu_object.GPUObject, dynamic bool) ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if s.objects[id].obj == obj {
			return id
		}
	}
	id := s.nextID
	s.nextID++
	s.objects[id] = entry{obj: obj, dynamic: dynamic}
	s.order = append(s.order, id)
	common.Logger().Debug("object added", "scene", s.name, "id", id, "type", obj.TypeName(), "label", obj.Label())
	return id
}

func (s *scene) Object(id ObjectID) gpu_object.GPUObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[id].obj
}

func (s *scene) IDOf(obj gpu_object.Object) (ObjectID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if gpu_object.Object(s.objects[id].obj) == obj {
			return id, true
		}
	}
	return 0, false
}

func (s *scene) RemoveObjectByID(id ObjectID) {
	s.remove(id, false)
}

func (s *scene) RemoveDynamicVolumeByID(id ObjectID) {
	s.remove(id, true)
}

func (s *scene) remove(id ObjectID, dynamic bool) {
	s.mu.Lock()
	e, ok := s.objects[id]
	if !ok || e.dynamic != dynamic {
		s.mu.Unlock()
		common.Logger().Debug("remove of unknown object ignored", "scene", s.name, "id", id, "dynamic_volume", dynamic)
		return
	}
	delete(s.objects, id)
	s.order = slices.DeleteFunc(s.order, func(o ObjectID) bool { return o == id })
	s.mu.Unlock()

	// Release deallocates through the host, so it runs without the lock held.
	e.obj.Release()
	common.Logger().Debug("object removed", "scene", s.name, "id", id, "type", e.obj.TypeName())
}

func (s *scene) Objects() []gpu_object.GPUObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gpu_object.GPUObject, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.objects[id].obj)
	}
	return out
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *scene) drain() int {
	s.postMu.Lock()
	posted := s.posted
	s.posted = nil
	s.postMu.Unlock()

	for _, fn := range posted {
		fn()
	}
	return len(posted)
}

func (s *scene) Flush() (FlushStats, error) {
	var stats FlushStats
	stats.Posted = s.drain()

	objects := s.Objects()

	// Phase 1: refresh the CPU mirror of every CPU-dirty object.
	for _, o := range objects {
		if !o.DirtyCPU() || !o.Allocation().Valid() {
			continue
		}
		o.ToBuffer(o.Allocation().CPU())
		o.ClearDirtyCPU()
		stats.Serialized++
	}

	// Phase 2: one coalesced upload for every GPU-dirty allocation.
	var errs []error
	dirty := make([]gpu_object.GPUObject, 0, len(objects))
	allocs := make([]*allocator.Allocation, 0, len(objects))
	for _, o := range objects {
		if o.DirtyGPU() && o.Allocation().Valid() {
			dirty = append(dirty, o)
			allocs = append(allocs, o.Allocation())
		}
	}
	if err := s.alloc.Upload(allocs...); err != nil {
		errs = append(errs, fmt.Errorf("scene %q: upload: %w", s.name, err))
	} else {
		for _, o := range dirty {
			o.ClearDirtyGPU()
		}
		stats.Uploaded = len(allocs)
	}

	// Phase 3: bind groups, textures and vertex data.
	for _, o := range objects {
		if err := o.Prepare(s.device); err != nil {
			errs = append(errs, err)
			continue
		}
		if o.Ready() && !o.Hidden() {
			stats.Ready++
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		common.Logger().Warn("scene flush incomplete", "scene", s.name, "error", err)
	}
	return stats, err
}

func (s *scene) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	relocs, err := s.alloc.Compact()
	s.relocate(relocs)
	if err != nil {
		return fmt.Errorf("scene %q: compact: %w", s.name, err)
	}
	return nil
}

func (s *scene) RayIntersection(r raycast.Ray) *raycast.Intersection {
	if !r.Valid() {
		return nil
	}
	objects := slices.DeleteFunc(s.Objects(), func(o gpu_object.GPUObject) bool { return o.Hidden() })
	if len(objects) < pickParallelThreshold {
		var best *raycast.Intersection
		for _, o := range objects {
			best = raycast.Nearest(best, o.RayIntersection(r))
		}
		return best
	}

	// One task per object; each task owns its result slot. A WaitGroup is the barrier since the pool's own
	// Wait blocks until idle workers exit.
	results := make([]*raycast.Intersection, len(objects))
	var wg sync.WaitGroup
	for i, o := range objects {
		wg.Add(1)
		s.pickPool.SubmitTask(worker.Task{
			ID:      i,
			Payload: o.Label(),
			Do: func() (any, error) {
				defer wg.Done()
				results[i] = o.RayIntersection(r)
				return nil, nil
			},
		})
	}
	wg.Wait()

	var best *raycast.Intersection
	for _, hit := range results {
		best = raycast.Nearest(best, hit)
	}
	return best
}

func (s *scene) Clear() {
	s.mu.Lock()
	objects := make([]gpu_object.GPUObject, 0, len(s.order))
	for _, id := range s.order {
		objects = append(objects, s.objects[id].obj)
	}
	s.objects = make(map[ObjectID]entry)
	s.order = nil
	s.mu.Unlock()

	for _, o := range objects {
		o.Release()
	}
	common.Logger().Debug("scene cleared", "scene", s.name, "released", len(objects))
}

func (s *scene) Release() {
	s.Clear()
	s.pickPool.Stop()
	s.alloc.Release()
	if s.ownsPipelines {
		s.pipelines.Release()
	}
}

// Add constructs a typed object against s and registers it.
//
// Parameters:
//   - s: the scene
//   - ctor: the constructor, called with s as the host
//
// Returns:
//   - T: the object
//   - ObjectID: the assigned ID
//   - error: the constructor's error
func Add[T gpu_object.GPUObject](s Scene, ctor func(gpu_object.Host) (T, error)) (T, ObjectID, error) {
	obj, err := ctor(s)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	return obj, s.Register(obj), nil
}
