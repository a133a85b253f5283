package viewer

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/camera"
	"github.com/Carmen-Shannon/chromaviz/engine/cluster"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// line returns n points along the x axis, one unit apart, in two timesteps shifted along y.
func line(n int) [][]common.Vec3f {
	out := make([][]common.Vec3f, 2)
	for t := range out {
		for i := 0; i < n; i++ {
			out[t] = append(out[t], common.Vec3f{float32(i) - float32(n-1)/2, float32(t), 0})
		}
	}
	return out
}

func newTestViewer(t *testing.T) (*renderer.HeadlessDevice, Viewer) {
	t.Helper()
	d := renderer.NewHeadlessDevice()
	d.Resize(800, 600)
	v, err := NewViewer(d,
		WithValidation(false),
		WithCamera(camera.NewCamera(camera.WithController(camera.NewOrbitController()))),
		WithClusterLevels(4),
	)
	require.NoError(t, err)
	t.Cleanup(v.Release)

	points := line(16)
	clusters, err := cluster.DivisiveClustering(points[0], 4)
	require.NoError(t, err)
	c, err := cluster.NewComposite(v.Scene(), clusters, points)
	require.NoError(t, err)
	v.SetComposite(c)
	_, err = v.Frame(0.016)
	require.NoError(t, err)
	return d, v
}

// pixel projects a world position to window coordinates.
func pixel(v Viewer, p common.Vec3f) (float32, float32) {
	w, h := v.Camera().Viewport()
	ndc := v.Camera().ViewProjectionMatrix().TransformPoint(p)
	return (ndc.X() + 1) / 2 * float32(w), (1 - ndc.Y()) / 2 * float32(h)
}

func click(v Viewer, x, y float32) {
	v.HandleMouseButton(common.MouseButtonLeft, common.ActionPress, x, y)
	v.HandleMouseButton(common.MouseButtonLeft, common.ActionRelease, x, y)
}

func press(v Viewer, key common.Key) {
	v.HandleKey(key, common.ActionPress)
	v.HandleKey(key, common.ActionRelease)
}

func TestFrameRendersComposite(t *testing.T) {
	d, v := newTestViewer(t)
	assert.Equal(t, 1, d.Frames())

	stats, err := v.Frame(0.016)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Drawn, "one leaf is drawn")
	assert.Zero(t, stats.Culled, "the camera is framed on the tree")
	assert.Equal(t, 2, d.Frames())
}

func TestClickSplitMerge(t *testing.T) {
	_, v := newTestViewer(t)
	c := v.Composite()

	click(v, pixel(v, c.Center(0)))
	require.Equal(t, cluster.NodeID(0), v.Selected())
	assert.True(t, c.Highlighted(0))

	press(v, common.KeyS)
	leaves := c.Leaves()
	require.Len(t, leaves, 2)
	assert.Equal(t, cluster.NoNode, v.Selected(), "splitting clears the selection")
	_, err := v.Frame(0.016)
	require.NoError(t, err)

	click(v, pixel(v, c.Center(leaves[1])))
	require.Equal(t, leaves[1], v.Selected())
	assert.False(t, c.Highlighted(leaves[0]))

	press(v, common.KeyM)
	assert.Equal(t, []cluster.NodeID{0}, c.Leaves())
	assert.Equal(t, cluster.NodeID(0), v.Selected(), "merging selects the parent")

	click(v, 1, 1)
	assert.Equal(t, cluster.NoNode, v.Selected(), "clicking the background clears the selection")
}

func TestDragRotatesWithoutPicking(t *testing.T) {
	_, v := newTestViewer(t)
	ctrl := v.Camera().Controller()
	azimuth := ctrl.Azimuth()
	x, y := pixel(v, v.Composite().Center(0))

	v.HandleMouseButton(common.MouseButtonLeft, common.ActionPress, x, y)
	v.HandleMouseMove(x+40, y)
	v.HandleMouseButton(common.MouseButtonLeft, common.ActionRelease, x+40, y)
	assert.NotEqual(t, azimuth, ctrl.Azimuth())
	assert.Equal(t, cluster.NoNode, v.Selected())

	target := ctrl.Target()
	v.HandleMouseButton(common.MouseButtonRight, common.ActionPress, x, y)
	v.HandleMouseMove(x, y+40)
	v.HandleMouseButton(common.MouseButtonRight, common.ActionRelease, x, y+40)
	assert.NotEqual(t, target, ctrl.Target(), "right drags pan")

	radius := ctrl.Radius()
	v.HandleScroll(1)
	assert.Less(t, ctrl.Radius(), radius)
}

func TestKeys(t *testing.T) {
	_, v := newTestViewer(t)
	c := v.Composite()

	press(v, common.KeyV)
	assert.Equal(t, cluster.VisPathline, c.Visualisation(0).Type())

	v.HandleKey(common.KeyRight, common.ActionPress)
	v.HandleKey(common.KeyRight, common.ActionRepeat)
	assert.Equal(t, 1, c.Timestep(), "timesteps stop at the last one")
	v.HandleKey(common.KeyLeft, common.ActionPress)
	assert.Equal(t, 0, c.Timestep())

	v.Select(0)
	press(v, common.KeyH)
	for _, o := range c.Visualisation(0).Objects() {
		assert.True(t, o.Hidden())
	}
	press(v, common.KeyH)
	for _, o := range c.Visualisation(0).Objects() {
		assert.False(t, o.Hidden())
	}
}

func TestReclusterSwapsClustering(t *testing.T) {
	_, v := newTestViewer(t)
	c := v.Composite()
	_, err := c.Split(0)
	require.NoError(t, err)
	require.Len(t, c.Leaves(), 2)

	press(v, common.KeyR)
	deadline := time.Now().Add(5 * time.Second)
	for len(c.Leaves()) != 1 && time.Now().Before(deadline) {
		_, err := v.Frame(0.016)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, []cluster.NodeID{0}, c.Leaves(), "the new clustering replaces the tree from its coarsest level")
	assert.Len(t, c.Clusters(), 4)
}

func TestResize(t *testing.T) {
	d, v := newTestViewer(t)
	v.Resize(1024, 512)
	w, h := d.Size()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 512, h)
	cw, ch := v.Camera().Viewport()
	assert.Equal(t, 1024, cw)
	assert.Equal(t, 512, ch)

	v.Resize(0, 0)
	w, _ = d.Size()
	assert.Equal(t, 1024, w, "minimised windows keep the last size")
}
