package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCamera(mode Mode) (Camera, CameraController) {
	ctrl := NewCameraController(
		WithMode(mode),
		WithRadius(10),
		WithElevation(0),
	)
	return NewCamera(WithController(ctrl), WithViewport(800, 600), WithClip(0.1, 100)), ctrl
}

// distanceToRay is the distance of p from the line carrying r.
func distanceToRay(r raycast.Ray, p common.Vec3d) float64 {
	v := p.Sub(r.Origin)
	return v.Sub(r.Direction.Scale(v.Dot(r.Direction))).Length()
}

func TestUniformLayout(t *testing.T) {
	g := GPUCamera{
		ViewProj: common.Identity4(),
		Position: [4]float32{1, 2, 3, 1},
		Viewport: [4]float32{800, 600, 1.0 / 800, 1.0 / 600},
	}
	assert.Equal(t, UniformSize, g.Size())
	assert.Equal(t, gpu_object.CameraUniformSize, UniformSize, "the camera uniform must match the object layout")

	buf := g.Marshal()
	require.Len(t, buf, UniformSize)
	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(1), f32(0))
	assert.Equal(t, float32(2), f32(132))
	assert.Equal(t, float32(600), f32(148))
}

func TestScreenRay(t *testing.T) {
	cam, _ := newTestCamera(ModeOrbit)
	assert.InDelta(t, 10, cam.Position().Z(), 1e-4)

	center := cam.ScreenRay(400, 300, 800, 600)
	require.True(t, center.Valid())
	assert.InDelta(t, 0, center.Direction.X(), 1e-4)
	assert.InDelta(t, 0, center.Direction.Y(), 1e-4)
	assert.InDelta(t, -1, center.Direction.Z(), 1e-4)
	assert.Less(t, distanceToRay(center, common.Vec3d{}), 1e-3, "the center ray passes through the target")

	corner := cam.ScreenRay(0, 0, 800, 600)
	assert.Less(t, corner.Direction.X(), 0.0, "top left points left")
	assert.Greater(t, corner.Direction.Y(), 0.0, "top left points up")

	tests := []struct {
		name  string
		point common.Vec3f
	}{
		{"off axis", common.Vec3f{2, 1, -3}},
		{"near the camera", common.Vec3f{-0.5, 0.2, 8}},
		{"far away", common.Vec3f{10, -5, -60}},
	}
	vp := cam.ViewProjectionMatrix()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ndc := vp.TransformPoint(tt.point)
			x := (ndc[0] + 1) / 2 * 800
			y := (1 - ndc[1]) / 2 * 600
			r := cam.ScreenRay(x, y, 800, 600)
			assert.Less(t, distanceToRay(r, common.ToF64(tt.point)), 1e-2)
		})
	}

	assert.False(t, cam.ScreenRay(0, 0, 0, 600).Valid(), "an empty viewport gives no ray")
}

func TestPickThroughScreenRay(t *testing.T) {
	cam, _ := newTestCamera(ModeOrbit)
	r := cam.ScreenRay(400, 300, 800, 600)
	hit := raycast.Sphere(r, common.Vec3d{}, 1)
	assert.InDelta(t, 9-0.1, hit, 1e-3, "the ray starts on the near plane")
}

func TestOrbitControllerAppliesImmediately(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(10), WithRadiusBounds(1, 50), WithElevationBounds(-1, 1))

	ctrl.SetRadius(100)
	assert.Equal(t, float32(50), ctrl.Radius(), "radius is clamped")
	ctrl.SetElevation(2)
	assert.Equal(t, float32(1), ctrl.Elevation(), "elevation is clamped")

	ctrl.SetRadius(10)
	ctrl.Zoom(1)
	assert.Less(t, ctrl.Radius(), float32(10), "positive zoom moves closer")
	assert.True(t, ctrl.Settled())
	assert.True(t, ctrl.Update(0.016), "the first update reports the jump")
	assert.False(t, ctrl.Update(0.016))

	ctrl.SetTarget(common.Vec3f{1, 2, 3})
	assert.Equal(t, common.Vec3f{1, 2, 3}, ctrl.Target())
	assert.InDelta(t, ctrl.Radius(), ctrl.Position().Distance(ctrl.Target()), 1e-4)
}

func TestSmoothControllerEasesToGoal(t *testing.T) {
	ctrl := NewSmoothController(WithRadius(10), WithDamping(10))
	ctrl.SetRadius(20)
	assert.Equal(t, float32(10), ctrl.Radius(), "the view does not jump")
	assert.False(t, ctrl.Settled())

	require.True(t, ctrl.Update(0.05))
	first := ctrl.Radius()
	assert.Greater(t, first, float32(10))
	assert.Less(t, first, float32(20))

	for i := 0; i < 200 && !ctrl.Settled(); i++ {
		ctrl.Update(0.05)
	}
	assert.True(t, ctrl.Settled())
	assert.Equal(t, float32(20), ctrl.Radius())
	assert.False(t, ctrl.Update(0.05), "a settled controller does not move")

	ctrl.SetAzimuth(1)
	ctrl.SetMode(ModeOrbit)
	assert.Equal(t, float32(1), ctrl.Azimuth(), "switching to orbit snaps to the goal")
}

func TestRotateAndPan(t *testing.T) {
	ctrl := NewOrbitController(WithRadius(10), WithElevation(0), WithMouseSensitivity(0.01), WithPanSpeed(0.01))

	ctrl.Rotate(100, 0)
	assert.InDelta(t, -1, ctrl.Azimuth(), 1e-6)
	ctrl.Rotate(0, 50)
	assert.InDelta(t, 0.5, ctrl.Elevation(), 1e-6)

	ctrl.SetAzimuth(0)
	ctrl.SetElevation(0)
	ctrl.Pan(-10, 0)
	assert.InDelta(t, 1, ctrl.Target().X(), 1e-5, "dragging left moves the target right")
	assert.InDelta(t, 0, ctrl.Target().Y(), 1e-5)
	ctrl.Pan(0, 10)
	assert.InDelta(t, 1, ctrl.Target().Y(), 1e-5)
}

func TestFrame(t *testing.T) {
	ctrl := NewOrbitController()
	box := common.NewBoundingBox(common.Vec3f{2, 2, 2}, common.Vec3f{4, 4, 4})
	ctrl.Frame(box, math.Pi/2)
	assert.Equal(t, common.Vec3f{3, 3, 3}, ctrl.Target())
	assert.InDelta(t, math.Sqrt(3)/math.Sin(math.Pi/4), ctrl.Radius(), 1e-4)

	ctrl.Frame(common.EmptyBoundingBox(), math.Pi/2)
	assert.Equal(t, common.Vec3f{3, 3, 3}, ctrl.Target(), "empty boxes are ignored")
}

func TestCameraUpdateFollowsController(t *testing.T) {
	cam, ctrl := newTestCamera(ModeSmooth)
	before := cam.ViewProjectionMatrix()
	assert.False(t, cam.Update(0.016))

	ctrl.SetAzimuth(math.Pi / 2)
	assert.True(t, cam.Update(0.016))
	assert.NotEqual(t, before, cam.ViewProjectionMatrix())
	assert.Equal(t, ctrl.Position(), cam.Position())

	cam.SetViewport(0, 0)
	w, h := cam.Viewport()
	assert.Equal(t, 800, w, "zero sizes are ignored")
	assert.Equal(t, 600, h)
	assert.InDelta(t, 800.0/600.0, cam.Aspect(), 1e-6)
}

func TestFrustumFollowsView(t *testing.T) {
	cam, _ := newTestCamera(ModeOrbit)
	f := cam.Frustum()
	assert.True(t, f.IntersectsSphere(common.Vec3f{}, 1))
	assert.False(t, f.IntersectsSphere(common.Vec3f{0, 0, 20}, 1), "behind the camera")
	assert.False(t, f.IntersectsSphere(common.Vec3f{0, 0, -200}, 1), "beyond the far plane")
}

func TestPrepareUploadsUniform(t *testing.T) {
	d := renderer.NewHeadlessDevice()
	layout, err := d.CreateBindGroupLayout(gpu_object.CameraLayout())
	require.NoError(t, err)

	cam, ctrl := newTestCamera(ModeOrbit)
	assert.Nil(t, cam.BindGroup())
	require.NoError(t, cam.Prepare(d, layout))
	require.NotNil(t, cam.BindGroup())

	entry, ok := cam.BindGroupProvider().Entry(0)
	require.True(t, ok)
	want := cam.Uniform()
	assert.Equal(t, want.Marshal(), d.BufferData(entry.Buffer))

	ctrl.SetRadius(5)
	cam.Update(0.016)
	require.NoError(t, cam.Prepare(d, layout))
	want = cam.Uniform()
	assert.Equal(t, want.Marshal(), d.BufferData(entry.Buffer), "a moved camera uploads its uniform again")

	cam.Release()
	assert.Nil(t, cam.BindGroup())
	assert.Zero(t, d.LiveBuffers())
}
