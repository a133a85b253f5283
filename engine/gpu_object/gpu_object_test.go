package gpu_object

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/allocator"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHost is a minimal Host: a fixed-size allocator without a growth policy and a main-thread queue.
type testHost struct {
	device    *renderer.HeadlessDevice
	alloc     allocator.Allocator
	pipelines pipeline.Cache
	owners    map[uint64]Allocated

	mu     sync.Mutex
	queued []func()
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()
	d := renderer.NewHeadlessDevice()
	a, err := allocator.NewAllocator(d, allocator.WithLabel("objects"), allocator.WithCapacity(64*1024))
	require.NoError(t, err)
	cache := pipeline.NewCache(d, pipeline.WithValidation(false))
	require.NoError(t, cache.Register(Pipelines()...))
	return &testHost{device: d, alloc: a, pipelines: cache, owners: make(map[uint64]Allocated)}
}

func (h *testHost) Device() renderer.Device { return h.device }

func (h *testHost) Pipelines() pipeline.Cache { return h.pipelines }

func (h *testHost) Deallocate(a *allocator.Allocation) {
	if a.Valid() {
		delete(h.owners, a.ID())
		_ = h.alloc.Deallocate(a)
	}
}

func (h *testHost) Allocate(owner Allocated, size uint64) (*allocator.Allocation, error) {
	a, err := h.alloc.Allocate(size)
	if err != nil {
		return nil, err
	}
	h.owners[a.ID()] = owner
	return a, nil
}

func (h *testHost) Post(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queued = append(h.queued, fn)
}

func (h *testHost) drain() {
	h.mu.Lock()
	queued := h.queued
	h.queued = nil
	h.mu.Unlock()
	for _, fn := range queued {
		fn()
	}
}

// relocate hands every relocated allocation to its owner.
func (h *testHost) relocate(relocs []allocator.Relocation) {
	for _, r := range relocs {
		owner := h.owners[r.Old.ID()]
		delete(h.owners, r.Old.ID())
		h.owners[r.New.ID()] = owner
		owner.OnAllocationMoved(r.New)
	}
}

// flush serializes, uploads and prepares objects the way a scene does every frame.
func (h *testHost) flush(t *testing.T, objects ...GPUObject) {
	t.Helper()
	h.drain()
	for _, o := range objects {
		if o.DirtyCPU() {
			o.ToBuffer(o.Allocation().CPU())
			o.ClearDirtyCPU()
		}
		if o.DirtyGPU() {
			require.NoError(t, h.alloc.Upload(o.Allocation()))
			o.ClearDirtyGPU()
		}
		require.NoError(t, o.Prepare(h.device))
	}
}

// record draws objects in one frame and returns how many recorded a draw.
func (h *testHost) record(t *testing.T, objects ...GPUObject) int {
	t.Helper()
	pass, err := h.device.BeginFrame()
	require.NoError(t, err)
	n := 0
	for _, o := range objects {
		p, err := h.pipelines.Pipeline(o.PipelineKey())
		require.NoError(t, err)
		pass.SetPipeline(p.RenderPipeline())
		if o.Record(pass) {
			n++
		}
	}
	require.NoError(t, h.device.EndFrame())
	return n
}

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func u32At(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off:])
}

func vec3At(buf []byte, off int) [3]float32 {
	return [3]float32{f32At(buf, off), f32At(buf, off+4), f32At(buf, off+8)}
}

func vec4At(buf []byte, off int) [4]float32 {
	return [4]float32{f32At(buf, off), f32At(buf, off+4), f32At(buf, off+8), f32At(buf, off+12)}
}

func mat4At(buf []byte, off int) common.Mat4 {
	var m common.Mat4
	for i := range m {
		m[i] = f32At(buf, off+4*i)
	}
	return m
}

func TestLayoutSizes(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		size int
		want int
	}{
		{"Sphere", KindSphere, (&GPUSphere{}).Size(), SphereSize},
		{"RoundedCone", KindRoundedCone, (&GPURoundedCone{}).Size(), RoundedConeSize},
		{"RoundedConeInstance", KindRoundedConeInstanced, (&GPURoundedConeInstance{}).Size(), RoundedConeInstanceSize},
		{"SplineSegment", KindSpline, (&GPUSplineSegment{}).Size(), SplineSegmentSize},
		{"SignedDistanceGrid", KindSignedDistanceGrid, (&GPUSignedDistanceGrid{}).Size(), SignedDistanceGridSize},
		{"VolumeUnit", KindVolume, (&GPUVolumeUnit{}).Size(), VolumeUnitSize},
		{"Ray", KindRay, (&GPURay{}).Size(), RaySize},
		{"Mesh", KindMesh, (&GPUMesh{}).Size(), MeshSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.size)

			wgsl, ok := shader.Reflect(Program(tt.kind)).StructSize(tt.name)
			require.True(t, ok, "the program declares the struct")
			assert.Equal(t, uint64(tt.want), wgsl, "the packed struct matches the WGSL layout")
		})
	}

	camera, ok := shader.Reflect(CommonSource).StructSize("Camera")
	require.True(t, ok)
	assert.Equal(t, uint64(CameraUniformSize), camera)
}

func TestPipelinesMatchPrograms(t *testing.T) {
	for _, p := range Pipelines() {
		t.Run(p.Key(), func(t *testing.T) {
			desc := p.Descriptor()
			assert.NoError(t, shader.Reflect(desc.Source).Check(desc))
		})
	}
}

func TestToBufferOffsets(t *testing.T) {
	h := newTestHost(t)

	t.Run("Sphere", func(t *testing.T) {
		s, err := NewSphere(h, "")
		require.NoError(t, err)
		s.SetProperties(SphereProperties{
			Center:      common.Vec3f{1, 2, 3},
			Radius:      0.5,
			Color:       Color{0.1, 0.2, 0.3, 1},
			BorderColor: Black,
			BorderRatio: 0.25,
		})
		buf := make([]byte, SphereSize)
		s.ToBuffer(buf)
		assert.Equal(t, float32(1), f32At(buf, 64))
		assert.Equal(t, float32(3), f32At(buf, 72))
		assert.Equal(t, float32(0.5), f32At(buf, 76))
		assert.Equal(t, float32(0.2), f32At(buf, 84))
		assert.Equal(t, float32(1), f32At(buf, 108))
		assert.Equal(t, float32(0.25), f32At(buf, 112))
		// the model matrix scales the unit cube onto the bounding box
		assert.Equal(t, float32(0.5), f32At(buf, 0))
		assert.Equal(t, float32(1), f32At(buf, 48))
	})

	t.Run("RoundedCone", func(t *testing.T) {
		c, err := NewRoundedCone(h, "")
		require.NoError(t, err)
		c.SetEnds(common.Vec3f{0, 0, 0}, common.Vec3f{0, 4, 0})
		c.SetRadii(1, 0.5)
		c.SetColors(White, Color{0, 0, 1, 1})
		buf := make([]byte, RoundedConeSize)
		c.ToBuffer(buf)
		assert.Equal(t, float32(1), f32At(buf, 76))
		assert.Equal(t, float32(4), f32At(buf, 84))
		assert.Equal(t, float32(0.5), f32At(buf, 92))
		assert.Equal(t, float32(1), f32At(buf, 96))
		assert.Equal(t, float32(1), f32At(buf, 120))
	})

	t.Run("Spline", func(t *testing.T) {
		segs := []SplineSegment{
			{P0: common.Vec3f{0, 0, 0}, P1: common.Vec3f{1, 1, 0}, P2: common.Vec3f{2, 0, 0}, Radius: 0.1, Color: Color{1, 0, 0, 1}},
			{P0: common.Vec3f{2, 0, 0}, P1: common.Vec3f{3, -1, 0}, P2: common.Vec3f{4, 0, 0}, Radius: 0.2, Color: Color{0, 1, 0, 1}, Hidden: true},
		}
		s, err := NewSpline(h, segs, "")
		require.NoError(t, err)
		assert.Equal(t, uint64(2*SplineSegmentSize), s.Allocation().Size())
		buf := make([]byte, 2*SplineSegmentSize)
		s.ToBuffer(buf)
		assert.Equal(t, float32(0.1), f32At(buf, 12))
		assert.Equal(t, float32(1), f32At(buf, 16))
		assert.Equal(t, Color{1, 0, 0, 1}.Packed(), u32At(buf, 28))
		assert.Equal(t, float32(2), f32At(buf, 32))
		assert.Equal(t, uint32(0), u32At(buf, 44))
		assert.Equal(t, float32(0.2), f32At(buf, SplineSegmentSize+12))
		assert.Equal(t, SplineFlagHidden, u32At(buf, SplineSegmentSize+44))
	})

	t.Run("Volume", func(t *testing.T) {
		v, err := NewVolume(h, []VolumeUnit{
			{Points: []common.Vec3f{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}, Radius: 0.3, Color: White},
			{Points: nil, Radius: 0.3},
			{Points: []common.Vec3f{{0, 2, 0}, {0, 3, 0}}, Radius: 0.3, Smoothness: 0.1},
		}, "")
		require.NoError(t, err)
		buf := make([]byte, 3*VolumeUnitSize)
		v.ToBuffer(buf)

		ranges := [][2]uint32{{0, 2}, {3, 3}, {4, 5}}
		for i, want := range ranges {
			unit := buf[i*VolumeUnitSize:]
			assert.Equal(t, uint32(i), u32At(unit, 156), "instance index of unit %d", i)
			assert.Equal(t, want[0], u32At(unit, 172), "from of unit %d", i)
			assert.Equal(t, want[1], u32At(unit, 188), "to of unit %d", i)
		}
		assert.Equal(t, float32(0.3), f32At(buf, 144))
		assert.Equal(t, float32(0), f32At(buf[VolumeUnitSize:], 144), "empty units have no radius")
		assert.Equal(t, float32(0.1), f32At(buf[2*VolumeUnitSize:], 148))
		assert.Len(t, v.pointBytes(), 6*VolumePointSize)
	})

	t.Run("RoundedConeInstanced", func(t *testing.T) {
		c, err := NewRoundedConeInstanced(h, 2, "")
		require.NoError(t, err)
		c.SetInstance(1, RoundedConeProperties{
			Start:       common.Vec3f{1, 2, 3},
			End:         common.Vec3f{4, 5, 6},
			StartRadius: 0.25,
			EndRadius:   0.75,
			StartColor:  Color{0.1, 0.2, 0.3, 0.4},
			EndColor:    Color{0.5, 0.6, 0.7, 0.8},
		})
		buf := make([]byte, 2*RoundedConeInstanceSize)
		for i := range buf {
			buf[i] = 0xff
		}
		c.ToBuffer(buf)

		assert.Equal(t, make([]byte, RoundedConeInstanceSize), buf[:RoundedConeInstanceSize], "unset instances are zeroed")
		inst := buf[RoundedConeInstanceSize:]
		assert.Equal(t, [3]float32{1, 2, 3}, vec3At(inst, 0))
		assert.Equal(t, float32(0.25), f32At(inst, 12))
		assert.Equal(t, [3]float32{4, 5, 6}, vec3At(inst, 16))
		assert.Equal(t, float32(0.75), f32At(inst, 28))
		assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 0.4}, vec4At(inst, 32))
		assert.Equal(t, [4]float32{0.5, 0.6, 0.7, 0.8}, vec4At(inst, 48))
	})

	t.Run("SignedDistanceGrid", func(t *testing.T) {
		g, err := NewSignedDistanceGrid(h, "")
		require.NoError(t, err)
		require.NoError(t, g.SetProperties(SignedDistanceGridProperties{
			Points:     []common.Vec3f{{0, 0, 0}, {2, 0, 0}, {4, 0, 0}},
			Radius:     0.2,
			Smoothness: 0.1,
			Color:      Color{0.1, 0.2, 0.3, 0.4},
			Resolution: 32,
			Tolerance:  0.003,
		}))
		buf := make([]byte, SignedDistanceGridSize)
		for i := range buf {
			buf[i] = 0xff
		}
		g.ToBuffer(buf)

		half := g.frame.half
		assert.Equal(t, g.frame.model(), mat4At(buf, 0))
		assert.Equal(t, g.frame.inverse(), mat4At(buf, 64))
		assert.Equal(t, half, f32At(buf, 0), "the model scales the unit cube by the half extent")
		assert.InDelta(t, 2, f32At(buf, 48), 1e-6, "and centers it on the points")
		assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 0.4}, vec4At(buf, 128))
		assert.Equal(t, uint32(32), u32At(buf, 144))
		assert.Equal(t, uint32(2), u32At(buf, 148), "one capsule per polyline edge")
		assert.Equal(t, float32(0.2)/half, f32At(buf, 152), "radius in local units")
		assert.Equal(t, float32(0.1)/half, f32At(buf, 156), "smoothness in local units")
		assert.Equal(t, float32(0.003), f32At(buf, 160))
		assert.Equal(t, make([]byte, 12), buf[164:176], "padding is zeroed")
	})

	t.Run("Mesh", func(t *testing.T) {
		m, err := NewMesh(h, []MeshVertex{
			{Position: [3]float32{0, 0, 0}},
			{Position: [3]float32{1, 0, 0}},
			{Position: [3]float32{0, 1, 0}},
		}, []uint32{0, 1, 2}, "")
		require.NoError(t, err)
		model := common.TranslationScale(common.Vec3f{1, 2, 3}, common.Vec3f{2, 2, 2})
		require.NoError(t, m.SetTransform(model))
		m.SetColor(Color{0.1, 0.2, 0.3, 0.4})
		buf := make([]byte, MeshSize)
		m.ToBuffer(buf)

		assert.Equal(t, model, mat4At(buf, 0))
		assert.Equal(t, float32(3), f32At(buf, 56), "translation lives in the last column")
		assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 0.4}, vec4At(buf, 64))
	})

	t.Run("Ray", func(t *testing.T) {
		r, err := NewRay(h, "")
		require.NoError(t, err)
		r.SetRay(raycast.NewRay(common.Vec3d{0, 0, -5}, common.Vec3d{0, 0, 2}), 10)
		buf := make([]byte, RaySize)
		r.ToBuffer(buf)
		assert.Equal(t, float32(-5), f32At(buf, 72))
		assert.Equal(t, float32(0), f32At(buf, 76))
		assert.Equal(t, float32(1), f32At(buf, 88))
		assert.Equal(t, float32(10), f32At(buf, 92), "unbounded rays are cut at the drawn length")
	})
}

func TestOutOfRangeIndicesAreIgnored(t *testing.T) {
	h := newTestHost(t)

	v, err := NewVolume(h, []VolumeUnit{{Points: []common.Vec3f{{0, 0, 0}, {1, 0, 0}}, Radius: 0.2, Color: White}}, "")
	require.NoError(t, err)
	cones, err := NewRoundedConeInstanced(h, 1, "")
	require.NoError(t, err)

	for _, obj := range []GPUObject{v, cones} {
		obj.ClearDirtyCPU()
		obj.ClearDirtyGPU()
	}
	tests := []struct {
		name string
		set  func() bool
		obj  GPUObject
	}{
		{"volume negative", func() bool { return v.SetUnitColor(-1, Black) }, v},
		{"volume past end", func() bool { return v.SetUnitColor(1, Black) }, v},
		{"cone negative", func() bool { return cones.SetInstance(-1, RoundedConeProperties{}) }, cones},
		{"cone past end", func() bool { return cones.SetInstance(1, RoundedConeProperties{}) }, cones},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() { assert.False(t, tt.set()) })
			assert.False(t, tt.obj.DirtyCPU(), "ignored writes leave the object clean")
		})
	}
	assert.Equal(t, RoundedConeProperties{}, cones.Instance(7))
	assert.Equal(t, White, v.Units()[0].Color)

	assert.True(t, v.SetUnitColor(0, Black))
	assert.Equal(t, Black, v.Units()[0].Color)
	assert.True(t, v.DirtyCPU())
	assert.True(t, cones.SetInstance(0, RoundedConeProperties{StartRadius: 1}))
	assert.Equal(t, float32(1), cones.Instance(0).StartRadius)
	assert.True(t, cones.DirtyCPU())
}

func TestSphereRayIntersection(t *testing.T) {
	h := newTestHost(t)
	s, err := NewSphere(h, "")
	require.NoError(t, err)
	s.SetCenter(common.Vec3f{0, 0, 0})
	s.SetRadius(1)

	tests := []struct {
		name  string
		ray   raycast.Ray
		hit   bool
		wantT float64
	}{
		{"through center", raycast.NewRay(common.Vec3d{0, 0, -5}, common.Vec3d{0, 0, 1}), true, 4},
		{"offset beyond radius", raycast.NewRay(common.Vec3d{1.5, 0, -5}, common.Vec3d{0, 0, 1}), false, 0},
		{"pointing away", raycast.NewRay(common.Vec3d{0, 0, -5}, common.Vec3d{0, 0, -1}), false, 0},
		{"degenerate direction", raycast.Ray{Origin: common.Vec3d{0, 0, -5}, MaxT: math.Inf(1)}, false, 0},
		{"interval too short", raycast.NewRay(common.Vec3d{0, 0, -5}, common.Vec3d{0, 0, 1}).WithRange(0, 3), false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit := s.RayIntersection(tt.ray)
			if !tt.hit {
				assert.Nil(t, hit)
				return
			}
			require.NotNil(t, hit)
			assert.InDelta(t, tt.wantT, hit.T, 1e-9)
			assert.Same(t, s, hit.Object)
		})
	}
}

func TestInstancedAndSplineBins(t *testing.T) {
	h := newTestHost(t)

	cones, err := NewRoundedConeInstanced(h, 0, "")
	require.NoError(t, err)
	require.NoError(t, cones.SetInstances([]RoundedConeProperties{
		{Start: common.Vec3f{-3, 0, 0}, End: common.Vec3f{-3, 2, 0}, StartRadius: 0.5, EndRadius: 0.5},
		{Start: common.Vec3f{3, 0, 0}, End: common.Vec3f{3, 2, 0}, StartRadius: 0.5, EndRadius: 0.5},
		{Start: common.Vec3f{3, 0, 5}, End: common.Vec3f{3, 2, 5}, StartRadius: 0.5, EndRadius: 0.5},
	}))
	assert.Equal(t, uint64(3*RoundedConeInstanceSize), cones.Allocation().Size())

	hit := cones.RayIntersection(raycast.NewRay(common.Vec3d{3, 1, -5}, common.Vec3d{0, 0, 1}))
	require.NotNil(t, hit)
	assert.Equal(t, 1, hit.Bin, "the nearest of the two instances on the ray")
	assert.InDelta(t, 4.5, hit.T, 1e-6)

	points := []common.Vec3f{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}}
	spline, err := NewSpline(h, QuadraticSegments(points, 0.2, White), "")
	require.NoError(t, err)

	down := func(x float64) raycast.Ray {
		return raycast.NewRay(common.Vec3d{x, 5, 0}, common.Vec3d{0, -1, 0})
	}
	hit = spline.RayIntersection(down(3.2))
	require.NotNil(t, hit)
	assert.Equal(t, 2, hit.Bin)
	assert.InDelta(t, 4.8, hit.T, 0.05)

	spline.SetSegmentHidden(2, true)
	assert.Nil(t, spline.RayIntersection(down(3.2)), "hidden segments are not picked")
	assert.NotNil(t, spline.RayIntersection(down(0.5)))
}

func TestQuadraticSegments(t *testing.T) {
	p := func(x float32) common.Vec3f { return common.Vec3f{x, 0, 0} }
	tests := []struct {
		name   string
		points []common.Vec3f
		want   []SplineSegment
	}{
		{"empty", nil, nil},
		{"single point", []common.Vec3f{p(0)}, nil},
		{"two points", []common.Vec3f{p(0), p(2)}, []SplineSegment{{P0: p(0), P1: p(1), P2: p(2)}}},
		{"three points", []common.Vec3f{p(0), p(1), p(2)}, []SplineSegment{{P0: p(0), P1: p(1), P2: p(2)}}},
		{"four points", []common.Vec3f{p(0), p(1), p(2), p(3)}, []SplineSegment{
			{P0: p(0), P1: p(1), P2: p(1.5)},
			{P0: p(1.5), P1: p(2), P2: p(3)},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuadraticSegments(tt.points, 0, Color{}))
		})
	}

	segs := QuadraticSegments([]common.Vec3f{p(0), p(1), p(2), p(3), p(4)}, 1, White)
	for i := 1; i < len(segs); i++ {
		assert.Equal(t, segs[i-1].P2, segs[i].P0, "segments %d and %d meet", i-1, i)
	}
}

func TestDirtyFlagsAndState(t *testing.T) {
	h := newTestHost(t)
	s, err := NewSphere(h, "")
	require.NoError(t, err)

	assert.Equal(t, StateAllocated, s.State())
	assert.True(t, s.DirtyCPU())
	assert.True(t, s.DirtyGPU())

	h.flush(t, s)
	assert.False(t, s.DirtyCPU())
	assert.False(t, s.DirtyGPU())
	assert.Equal(t, StatePopulated, s.State())
	assert.Equal(t, s.Allocation().CPU(), h.device.BufferData(h.alloc.Buffer())[s.Allocation().Offset():s.Allocation().Offset()+SphereSize])

	s.SetRadius(2)
	assert.Equal(t, StateDirty, s.State())

	// a GPU clear without a CPU refresh keeps the upload pending
	s.ClearDirtyGPU()
	assert.True(t, s.DirtyGPU())

	h.flush(t, s)
	assert.Equal(t, float32(2), f32At(h.device.BufferData(h.alloc.Buffer()), int(s.Allocation().Offset())+76))

	s.Release()
	assert.Equal(t, StateDeleted, s.State())
	assert.Nil(t, s.Allocation())
	assert.Zero(t, h.alloc.Stats().Live)
}

func TestRecordIsNoOpUntilReady(t *testing.T) {
	h := newTestHost(t)

	s, err := NewSphere(h, "")
	require.NoError(t, err)
	assert.Zero(t, h.record(t, s), "no bind group before the first prepare")

	h.flush(t, s)
	assert.Equal(t, 1, h.record(t, s))
	assert.Equal(t, 1, h.device.DrawCount())

	s.SetHidden(true)
	assert.Zero(t, h.record(t, s))
	s.SetHidden(false)

	s.SetTransparent(true)
	assert.Equal(t, "SphereTransparent", s.PipelineKey())
	h.flush(t, s)
	assert.Equal(t, 1, h.record(t, s), "the bind group follows the transparent layout")

	v, err := NewVolume(h, []VolumeUnit{
		{Points: []common.Vec3f{{0, 0, 0}, {1, 0, 0}}, Radius: 0.2},
		{Points: []common.Vec3f{{0, 1, 0}, {1, 1, 0}}, Radius: 0.2},
	}, "")
	require.NoError(t, err)
	h.flush(t, v)
	assert.False(t, v.Ready())
	assert.Zero(t, h.record(t, v), "volumes wait for their colormap")

	v.SetColormap(DefaultColormap())
	h.flush(t, v)
	require.True(t, v.Ready())
	assert.Equal(t, 1, h.record(t, v))
	cmds := h.device.Commands()
	last := cmds[len(cmds)-1]
	assert.Equal(t, renderer.OpDraw, last.Op)
	assert.Equal(t, uint32(CubeVertexCount), last.Count)
	assert.Equal(t, uint32(2), last.Instances)

	g, err := NewSignedDistanceGrid(h, "")
	require.NoError(t, err)
	h.flush(t, g)
	assert.Zero(t, h.record(t, g), "grids without points have no texture")

	require.NoError(t, g.SetProperties(SignedDistanceGridProperties{
		Points:     []common.Vec3f{{-1, 0, 0}, {1, 0, 0}},
		Radius:     0.2,
		Color:      White,
		Resolution: 8,
		Tolerance:  DefaultSurfaceTolerance,
	}))
	h.flush(t, g)
	assert.Equal(t, 1, h.record(t, g))
	assert.Len(t, h.device.TextureData(g.texture), 8*8*8*4)

	r, err := NewRay(h, "")
	require.NoError(t, err)
	h.flush(t, r)
	assert.Equal(t, 1, h.record(t, r))
	assert.Nil(t, r.RayIntersection(raycast.NewRay(common.Vec3d{0, 0, 1}, common.Vec3d{1, 0, 0})))
}

func TestAllocationMovedRebindsBindGroup(t *testing.T) {
	h := newTestHost(t)

	a, err := NewSphere(h, "a")
	require.NoError(t, err)
	b, err := NewSphere(h, "b")
	require.NoError(t, err)
	h.flush(t, a, b)
	require.Equal(t, 2, h.record(t, a, b))

	a.Release()
	relocs, err := h.alloc.Compact()
	require.NoError(t, err)
	h.relocate(relocs)
	assert.Equal(t, uint64(0), b.Allocation().Offset())
	assert.False(t, b.Ready(), "the bind group is stale until the next prepare")

	relocs, err = h.alloc.Grow(2 * h.alloc.Capacity())
	require.NoError(t, err)
	h.relocate(relocs)
	b.SetColor(Color{1, 0, 0, 1})
	h.flush(t, b)
	assert.Equal(t, 1, h.record(t, b), "no stale buffer reference after growing")
	assert.Equal(t, float32(1), f32At(h.device.BufferData(h.alloc.Buffer()), int(b.Allocation().Offset())+80))
}

func TestVolumeAndGridPicking(t *testing.T) {
	h := newTestHost(t)

	v, err := NewVolume(h, []VolumeUnit{
		{Points: []common.Vec3f{{-1, 0, 0}, {1, 0, 0}}, Radius: 0.25},
		{Points: []common.Vec3f{{-1, 0, 3}, {1, 0, 3}}, Radius: 0.25},
	}, "")
	require.NoError(t, err)

	hit := v.RayIntersection(raycast.NewRay(common.Vec3d{0, 5, 3}, common.Vec3d{0, -1, 0}))
	require.NotNil(t, hit)
	assert.Equal(t, 1, hit.Bin)
	assert.InDelta(t, 4.75, hit.T, 0.05)
	assert.Nil(t, v.RayIntersection(raycast.NewRay(common.Vec3d{0, 5, 1.5}, common.Vec3d{0, -1, 0})))

	g, err := NewSignedDistanceGrid(h, "")
	require.NoError(t, err)
	require.NoError(t, g.SetProperties(SignedDistanceGridProperties{
		Points:     []common.Vec3f{{-1, 0, 0}, {1, 0, 0}},
		Radius:     0.2,
		Resolution: 16,
		Tolerance:  DefaultSurfaceTolerance,
	}))
	hit = g.RayIntersection(raycast.NewRay(common.Vec3d{0, 0, -3}, common.Vec3d{0, 0, 1}))
	require.NotNil(t, hit)
	assert.InDelta(t, 2.8, hit.T, 0.01)
	assert.Nil(t, g.RayIntersection(raycast.NewRay(common.Vec3d{0, 1, -3}, common.Vec3d{0, 0, 1})))

	assert.Error(t, g.SetProperties(SignedDistanceGridProperties{Resolution: 0}))
}

func TestDynamicVolume(t *testing.T) {
	h := newTestHost(t)
	v, err := NewDynamicVolume(h, "")
	require.NoError(t, err)
	assert.Zero(t, v.Len())

	unit := func(z float32) VolumeUnit {
		return VolumeUnit{Points: []common.Vec3f{{-1, 0, z}, {1, 0, z}}, Radius: 0.25}
	}
	var ids []UnitID
	for _, z := range []float32{0, 3, 6} {
		id, err := v.AddUnit(unit(z))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []UnitID{1, 2, 3}, ids)
	assert.Equal(t, uint64(3*VolumeUnitSize), v.Allocation().Size())

	removed, err := v.RemoveUnit(2)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []UnitID{1, 3}, v.UnitIDs())
	assert.Equal(t, uint64(2*VolumeUnitSize), v.Allocation().Size())

	removed, err = v.RemoveUnit(2)
	require.NoError(t, err)
	assert.False(t, removed, "unknown units are ignored")
	assert.Error(t, v.UpdateUnit(42, unit(0)))

	hit := v.RayIntersection(raycast.NewRay(common.Vec3d{0, 5, 6}, common.Vec3d{0, -1, 0}))
	require.NotNil(t, hit)
	id, ok := v.UnitAt(hit.Bin)
	require.True(t, ok)
	assert.Equal(t, UnitID(3), id)

	require.NoError(t, v.UpdateUnit(3, unit(9)))
	assert.Nil(t, v.RayIntersection(raycast.NewRay(common.Vec3d{0, 5, 6}, common.Vec3d{0, -1, 0})))

	id, err = v.AddUnit(unit(12))
	require.NoError(t, err)
	assert.Equal(t, UnitID(4), id, "IDs are not reused")

	v.SetColormap(DefaultColormap())
	h.flush(t, v)
	assert.Equal(t, 1, h.record(t, v))

	v.Release()
	_, err = v.AddUnit(unit(0))
	assert.ErrorIs(t, err, ErrReleased)
}

func TestMesh(t *testing.T) {
	h := newTestHost(t)

	_, err := NewMesh(h, []MeshVertex{{}}, []uint32{0, 0}, "")
	assert.Error(t, err, "index count must be a multiple of three")
	_, err = NewMesh(h, []MeshVertex{{}}, []uint32{0, 0, 3}, "")
	assert.Error(t, err, "indices must reference vertices")

	quad := []MeshVertex{
		{Position: [3]float32{-1, -1, 0}, Normal: [3]float32{0, 0, -1}},
		{Position: [3]float32{1, -1, 0}, Normal: [3]float32{0, 0, -1}},
		{Position: [3]float32{1, 1, 0}, Normal: [3]float32{0, 0, -1}},
		{Position: [3]float32{-1, 1, 0}, Normal: [3]float32{0, 0, -1}},
	}
	m, err := NewMesh(h, quad, []uint32{0, 1, 2, 0, 2, 3}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, m.TriangleCount())
	require.NoError(t, m.SetTransform(common.Translation(common.Vec3f{0, 0, 2})))
	assert.Error(t, m.SetTransform(common.Mat4{}))

	hit := m.RayIntersection(raycast.NewRay(common.Vec3d{-0.5, 0.5, -3}, common.Vec3d{0, 0, 1}))
	require.NotNil(t, hit)
	assert.Equal(t, 1, hit.Bin)
	assert.InDelta(t, 5, hit.T, 1e-6)

	box := m.BoundingBox()
	assert.Equal(t, common.Vec3f{-1, -1, 2}, box.Min)
	assert.Equal(t, common.Vec3f{1, 1, 2}, box.Max)

	h.flush(t, m)
	assert.Equal(t, 1, h.record(t, m))
	cmds := h.device.Commands()
	last := cmds[len(cmds)-1]
	assert.Equal(t, renderer.OpDrawIndexed, last.Op)
	assert.Equal(t, uint32(6), last.Count)

	buffers := h.device.LiveBuffers()
	m.Release()
	assert.Equal(t, buffers-2, h.device.LiveBuffers())
}

func TestTextureLoaderPostsResults(t *testing.T) {
	h := newTestHost(t)
	loader := NewTextureLoader(h, WithLoaderWorkers(2))
	defer loader.Stop()

	g, err := NewSignedDistanceGrid(h, "")
	require.NoError(t, err)
	require.NoError(t, g.SetProperties(SignedDistanceGridProperties{
		Points:     []common.Vec3f{{0, 0, 0}, {1, 1, 1}},
		Radius:     0.1,
		Resolution: 12,
		Tolerance:  DefaultSurfaceTolerance,
	}))
	g.BuildAsync(loader)
	loader.Wait()
	assert.Zero(t, g.Grid().Resolution, "results are applied on the main thread only")

	h.drain()
	assert.Equal(t, 12, g.Grid().Resolution)
	assert.Len(t, g.Grid().Values, 12*12*12)

	// a stale build is dropped when the geometry changed meanwhile
	g.SetPoints([]common.Vec3f{{0, 0, 0}, {2, 0, 0}})
	g.BuildAsync(loader)
	g.SetPoints([]common.Vec3f{{0, 0, 0}, {3, 0, 0}})
	loader.Wait()
	h.drain()
	assert.True(t, g.gridDirty)

	v, err := NewVolume(h, []VolumeUnit{{Points: []common.Vec3f{{0, 0, 0}}, Radius: 0.5}}, "")
	require.NoError(t, err)
	v.LoadColormap(loader, common.ImageSource{Data: []byte("not an image")})
	loader.Wait()
	h.drain()
	assert.Nil(t, v.colormap, "failed decodes leave the volume without a colormap")
}

func TestColor(t *testing.T) {
	c := Color{1, 0.5, 0, 1}
	assert.Equal(t, uint32(0xff0080ff), c.Packed())
	back := UnpackColor(c.Packed())
	assert.InDelta(t, 0.5, back[1], 1.0/255)
	assert.Equal(t, float32(0.25), c.WithAlpha(0.25)[3])

	cm := DefaultColormap()
	assert.Equal(t, uint32(256), cm.Width)
	assert.Len(t, cm.Pixels, 256*4)
}
