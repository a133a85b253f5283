package sdf

import (
	"testing"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapsuleDistance(t *testing.T) {
	a, b := common.Vec3d{0, 0, 0}, common.Vec3d{2, 0, 0}
	tests := []struct {
		name string
		p    common.Vec3d
		want float64
	}{
		{name: "beside the segment", p: common.Vec3d{1, 1, 0}, want: 0.5},
		{name: "beyond the end", p: common.Vec3d{4, 0, 0}, want: 1.5},
		{name: "before the start", p: common.Vec3d{-1, 0, 0}, want: 0.5},
		{name: "on the axis", p: common.Vec3d{1, 0, 0}, want: -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CapsuleDistance(tt.p, a, b, 0.5), 1e-12)
		})
	}

	// a zero length capsule is a sphere
	assert.InDelta(t, 1.0, CapsuleDistance(common.Vec3d{0, 2, 0}, a, a, 1), 1e-12)
}

func TestSmoothMin(t *testing.T) {
	assert.Equal(t, 1.0, SmoothMin(1.0, 3.0, 0))
	assert.Equal(t, 1.0, SmoothMin(1.0, 3.0, 0.5), "far apart distances are not blended")
	assert.InDelta(t, 1-0.25*0.5, SmoothMin(1.0, 1.0, 0.5), 1e-12)
	assert.LessOrEqual(t, SmoothMin(1.0, 1.2, 0.5), 1.0)
}

func TestSmoothUnionPrecisionsAgree(t *testing.T) {
	points := []common.Vec3d{{-0.5, 0, 0}, {0, 0.3, 0}, {0.5, 0, 0}}
	f64 := SmoothUnion(CapsuleChain(points, 0.1), 0.05)

	points32 := make([]common.Vec3f, len(points))
	for i, p := range points {
		points32[i] = common.ToF32(p)
	}
	f32 := SmoothUnion(CapsuleChain(points32, float32(0.1)), float32(0.05))

	for _, p := range []common.Vec3d{{0, 0, 0}, {0.2, 0.5, -0.1}, {-0.9, 0.9, 0.9}, {0.5, 0, 0}} {
		assert.InDelta(t, f64(p), float64(f32(common.ToF32(p))), 1e-6)
	}

	assert.Len(t, CapsuleChain(points, 0.1), 2)
	assert.Len(t, CapsuleChain(points[:1], 0.1), 1)
	assert.Nil(t, CapsuleChain[float64](nil, 0.1))
	assert.Greater(t, SmoothUnion[float64](nil, 0.1)(common.Vec3d{}), 1e300)
}

func TestSphereTraceAndMarchFixed(t *testing.T) {
	f := Sphere(common.Vec3d{0, 0, 0}, 0.5)
	origin, dir := common.Vec3d{0, 0, -3}, common.Vec3d{0, 0, 1}

	hit := SphereTrace(f, origin, dir, 0, 10, 1e-4, DefaultMaxSteps)
	require.True(t, hit.Found)
	assert.InDelta(t, 2.5, hit.T, 1e-4)

	fixed := MarchFixed(f, origin, dir, 2, 4, 1e-4, DefaultFixedSteps)
	require.True(t, fixed.Found)
	assert.InDelta(t, 2.5, fixed.T, 1e-3)

	// interval ends before the surface
	assert.False(t, SphereTrace(f, origin, dir, 0, 2, 1e-4, DefaultMaxSteps).Found)
	assert.False(t, MarchFixed(f, origin, dir, 0, 2, 1e-4, DefaultFixedSteps).Found)

	miss := common.Vec3d{1, 0, -3}
	assert.False(t, SphereTrace(f, miss, dir, 0, 10, 1e-4, DefaultMaxSteps).Found)
	assert.False(t, MarchFixed(f, miss, dir, 0, 10, 1e-4, DefaultFixedSteps).Found)

	// a scaled direction keeps parameters in units of dir
	half := SphereTrace(f, origin, common.Vec3d{0, 0, 2}, 0, 10, 1e-4, DefaultMaxSteps)
	require.True(t, half.Found)
	assert.InDelta(t, 1.25, half.T, 1e-4)

	assert.False(t, SphereTrace(f, origin, common.Vec3d{}, 0, 10, 1e-4, DefaultMaxSteps).Found)
}

func TestGridMatchesField(t *testing.T) {
	f := Sphere(common.Vec3f{0, 0, 0}, 0.6)
	g := BuildGrid(f, 16)
	require.Len(t, g.Values, 16*16*16)

	assert.InDelta(t, f(g.VoxelCenter(3, 7, 11)), g.At(3, 7, 11), 1e-6)
	for _, p := range []common.Vec3f{{0, 0, 0}, {0.3, -0.2, 0.1}, {0.55, 0, 0}} {
		// a sphere field is linear enough that trilinear interpolation stays within a voxel
		assert.InDelta(t, f(p), g.Sample(p), 2.0/16)
	}

	lo, hi := g.Range()
	assert.Less(t, lo, float32(-0.45))
	assert.Greater(t, hi, float32(1))
	assert.Len(t, g.Bytes(), 4*len(g.Values))
	assert.Equal(t, Grid{}, BuildGrid(f, 0))
}
