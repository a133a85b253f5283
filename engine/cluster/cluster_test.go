package cluster

import (
	"testing"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/chromaviz/engine/scene"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groups returns four groups of three points centered at x = 0, 10, 20 and 30, shifted by dy.
func groups(dy float32) []common.Vec3f {
	var out []common.Vec3f
	for g := 0; g < 4; g++ {
		for _, d := range []float32{-0.5, 0, 0.5} {
			out = append(out, common.Vec3f{float32(g)*10 + d, dy, 0})
		}
	}
	return out
}

func newTestScene(t *testing.T) scene.Scene {
	t.Helper()
	d := renderer.NewHeadlessDevice()
	cache := pipeline.NewCache(d, pipeline.WithValidation(false))
	require.NoError(t, cache.Register(gpu_object.Pipelines()...))
	s, err := scene.NewScene("cluster", d, scene.WithPipelines(cache), scene.WithPickWorkers(1))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Release()
		cache.Release()
	})
	return s
}

func newTestComposite(t *testing.T, opts ...CompositeBuilderOption) (scene.Scene, Composite) {
	t.Helper()
	s := newTestScene(t)
	points := [][]common.Vec3f{groups(0), groups(100)}
	clusters, err := DivisiveClustering(points[0], 4)
	require.NoError(t, err)
	c, err := NewComposite(s, clusters, points, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return s, c
}

func TestDivisiveClustering(t *testing.T) {
	clusters, err := DivisiveClustering(groups(0), 4)
	require.NoError(t, err)
	require.NoError(t, clusters.Validate())
	require.Len(t, clusters, 4)

	ranges := func(level []ClusterNode) [][2]uint32 {
		var out [][2]uint32
		for _, n := range level {
			out = append(out, [2]uint32{n.From, n.To})
		}
		return out
	}
	assert.Equal(t, [][2]uint32{{0, 11}}, ranges(clusters[0]))
	assert.Equal(t, [][2]uint32{{0, 5}, {6, 11}}, ranges(clusters[1]), "the widest cluster splits between the middle groups")
	assert.Equal(t, [][2]uint32{{0, 2}, {3, 5}, {6, 11}}, ranges(clusters[2]))
	assert.Equal(t, [][2]uint32{{0, 2}, {3, 5}, {6, 8}, {9, 11}}, ranges(clusters[3]))

	assert.Equal(t, []int{0, 1}, clusters[0][0].Children)
	assert.Equal(t, []int{2}, clusters[1][1].Children, "unsplit clusters carry over as a single child")
	for k, level := range clusters {
		for i, n := range level {
			assert.Equal(t, k, n.K)
			assert.Equal(t, i, n.I)
			assert.True(t, n.Visible)
		}
	}

	_, err = DivisiveClustering(nil, 3)
	assert.ErrorIs(t, err, ErrNoClusters)

	few, err := DivisiveClustering(groups(0)[:2], 10)
	require.NoError(t, err)
	assert.Len(t, few, 2, "levels are capped by the number of points")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		clusters Clustering
		wantErr  bool
	}{
		{"empty", nil, true},
		{"empty level", Clustering{{}}, true},
		{"missing child", Clustering{{{From: 0, To: 3, Children: []int{0, 1}}}, {{K: 1, From: 0, To: 3}}}, true},
		{"child beyond last level", Clustering{{{From: 0, To: 3, Children: []int{0}}}}, true},
		{"inverted range", Clustering{{{From: 3, To: 1}}}, true},
		{"mislabelled level", Clustering{{{From: 0, To: 3, Children: []int{0, 1}}}, {{From: 0, To: 1}, {K: 1, I: 1, From: 2, To: 3}}}, true},
		{"mislabelled index", Clustering{{{From: 0, To: 3, Children: []int{0, 1}}}, {{K: 1, From: 0, To: 1}, {K: 1, From: 2, To: 3}}}, true},
		{"child outside parent", Clustering{{{From: 0, To: 3, Children: []int{0, 1}}, {I: 1, From: 4, To: 5}}, {{K: 1, From: 0, To: 1}, {K: 1, I: 1, From: 2, To: 5}}}, true},
		{"valid", Clustering{{{From: 0, To: 3, Children: []int{0, 1}}}, {{K: 1, From: 0, To: 1}, {K: 1, I: 1, From: 2, To: 3}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.clusters.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.ErrorIs(t, Clustering(nil).Validate(), ErrNoClusters)
}

func TestSplitStaysInsideParent(t *testing.T) {
	s := newTestScene(t)
	points := [][]common.Vec3f{groups(0)}
	// root [0, 11] -> [0, 5] [6, 11]; [0, 5] carries over once, then splits into [0, 2] [3, 5]
	clusters := Clustering{
		{{K: 0, I: 0, From: 0, To: 11, Children: []int{0, 1}, Visible: true}},
		{{K: 1, I: 0, From: 0, To: 5, Children: []int{0}, Visible: true}, {K: 1, I: 1, From: 6, To: 11, Children: []int{1}, Visible: true}},
		{{K: 2, I: 0, From: 0, To: 5, Children: []int{0, 1}, Visible: true}, {K: 2, I: 1, From: 6, To: 11, Visible: true}},
		{{K: 3, I: 0, From: 0, To: 2, Visible: true}, {K: 3, I: 1, From: 3, To: 5, Visible: true}},
	}

	unlabelled := make(Clustering, len(clusters))
	for k, level := range clusters {
		unlabelled[k] = append([]ClusterNode(nil), level...)
		for i := range unlabelled[k] {
			unlabelled[k][i].K, unlabelled[k][i].I = 0, 0
		}
	}
	_, err := NewComposite(s, unlabelled, points)
	require.Error(t, err, "nodes must carry their own level and index")

	c, err := NewComposite(s, clusters, points)
	require.NoError(t, err)
	defer c.Release()

	children, err := c.Split(0)
	require.NoError(t, err)
	require.Len(t, children, 2)

	grandchildren, err := c.Split(children[0])
	require.NoError(t, err)
	require.Len(t, grandchildren, 2, "the single-child level is skipped")
	parent, _ := c.Node(children[0])
	for _, id := range grandchildren {
		n, ok := c.Node(id)
		require.True(t, ok)
		assert.Equal(t, 3, n.K)
		assert.GreaterOrEqual(t, n.From, parent.From)
		assert.LessOrEqual(t, n.To, parent.To)
	}

	none, err := c.Split(children[1])
	require.NoError(t, err)
	assert.Nil(t, none, "a chain of single children ending in a leaf cannot split")
}

func TestSplitAndMerge(t *testing.T) {
	s, c := newTestComposite(t)
	assert.Equal(t, []NodeID{0}, c.Roots())
	assert.Equal(t, []NodeID{0}, c.Leaves())
	assert.Empty(t, c.Connectors())
	assert.Len(t, s.Objects(), 1)

	children, err := c.Split(0)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{1, 2}, children)
	assert.False(t, c.IsLeaf(0))
	assert.Nil(t, c.Visualisation(0), "inner nodes draw nothing")
	assert.Equal(t, [][2]NodeID{{1, 2}}, c.Connectors())
	assert.Len(t, s.Objects(), 3, "two leaves and one connector")

	// node 2 covers a cluster whose only child is split one level further down
	children, err = c.Split(2)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{3, 4}, children)
	n, ok := c.Node(3)
	require.True(t, ok)
	assert.Equal(t, 3, n.K)
	assert.Equal(t, [2]uint32{6, 8}, [2]uint32{n.From, n.To})
	assert.Equal(t, [][2]NodeID{{1, 3}, {3, 4}}, c.Connectors(), "the incoming connector moves to the first child")

	children, err = c.Split(1)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{5, 6}, children)
	assert.Equal(t, []NodeID{5, 6, 3, 4}, c.Leaves())
	assert.Equal(t, [][2]NodeID{{5, 6}, {6, 3}, {3, 4}}, c.Connectors(), "the outgoing connector moves to the last child")
	assert.Equal(t, NodeID(1), c.Parent(5))
	assert.Equal(t, []NodeID{5, 6}, c.Children(1))

	children, err = c.Split(3)
	require.NoError(t, err)
	assert.Nil(t, children, "leaves of the finest level cannot split")
	children, err = c.Split(2)
	require.NoError(t, err)
	assert.Nil(t, children, "inner nodes cannot split")

	parent, err := c.Merge(4)
	require.NoError(t, err)
	assert.Equal(t, NodeID(2), parent)
	assert.Equal(t, []NodeID{5, 6, 2}, c.Leaves())
	assert.Equal(t, [][2]NodeID{{5, 6}, {6, 2}}, c.Connectors())
	_, ok = c.Node(4)
	assert.False(t, ok, "merged nodes are dropped")

	parent, err = c.Merge(6)
	require.NoError(t, err)
	assert.Equal(t, NodeID(1), parent)
	parent, err = c.Merge(2)
	require.NoError(t, err)
	assert.Equal(t, NodeID(0), parent)
	assert.Equal(t, []NodeID{0}, c.Leaves())
	assert.Empty(t, c.Connectors())
	assert.Len(t, s.Objects(), 1)

	parent, err = c.Merge(0)
	require.NoError(t, err)
	assert.Equal(t, NoNode, parent, "top-level leaves cannot merge")
}

func TestMergeUndoesSplit(t *testing.T) {
	_, c := newTestComposite(t, WithVisualisation(NewPathlineVisualisation))
	_, err := c.Split(0)
	require.NoError(t, err)
	impl := c.(*composite)

	cone := impl.connectors[impl.nodes[1].out].cone
	before := cone.Properties()
	beforeType := c.Visualisation(2).Type()

	children, err := c.Split(2)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, child := range children {
		assert.Equal(t, VisPathline, c.Visualisation(child).Type(), "children inherit the visualisation type")
	}
	assert.Equal(t, c.Center(children[0]), cone.Properties().End, "the connector follows the first child")

	parent, err := c.Merge(children[0])
	require.NoError(t, err)
	assert.Equal(t, NodeID(2), parent)
	assert.Equal(t, beforeType, c.Visualisation(2).Type())
	assert.Equal(t, before, cone.Properties())
	assert.Equal(t, [][2]NodeID{{1, 2}}, c.Connectors())
}

func TestMergeKeepsMergedLeafType(t *testing.T) {
	_, c := newTestComposite(t)
	children, err := c.Split(0)
	require.NoError(t, err)
	require.NoError(t, c.SetLeafVisualisation(children[1], NewPCAVisualisation))
	assert.Equal(t, VisSphere, c.Visualisation(children[0]).Type())

	parent, err := c.Merge(children[1])
	require.NoError(t, err)
	assert.Equal(t, VisPCA, c.Visualisation(parent).Type())
}

func TestCustomConstructorSurvivesSplitAndMerge(t *testing.T) {
	_, c := newTestComposite(t)
	built := 0
	tinted := func(comp Composite, id NodeID) (Visualisation, error) {
		built++
		vis, err := NewSphereVisualisation(comp, id)
		if err != nil {
			return nil, err
		}
		vis.SetColor(gpu_object.Color{1, 0, 1, 1})
		return vis, nil
	}
	require.NoError(t, c.SetVisualisation(tinted))
	require.Equal(t, 1, built)

	children, err := c.Split(0)
	require.NoError(t, err)
	assert.Equal(t, 3, built, "both children are built with the leaf's constructor")

	_, err = c.Merge(children[0])
	require.NoError(t, err)
	assert.Equal(t, 4, built, "the merged parent is built with the leaf's constructor")

	require.NoError(t, c.SetClusters(c.Clusters()))
	assert.Equal(t, 5, built, "reclustering keeps the constructor of the first leaf")

	built = 0
	extra, err := c.Visualisation(c.Leaves()[0]).Constructor()(c, c.Leaves()[0])
	require.NoError(t, err)
	extra.Release()
	assert.Equal(t, 1, built, "Constructor reports the constructor the leaf was built with")
}

func TestConnectorGeometry(t *testing.T) {
	_, c := newTestComposite(t)
	_, err := c.Split(0)
	require.NoError(t, err)
	impl := c.(*composite)
	cn := impl.connectors[impl.nodes[1].out]
	p := cn.cone.Properties()

	assert.Equal(t, c.Center(1), p.Start)
	assert.Equal(t, c.Center(2), p.End)
	assert.InDelta(t, 5, p.Start.X(), 1e-5)
	assert.InDelta(t, 25, p.End.X(), 1e-5)
	assert.Equal(t, DefaultStyle().ConnectorRadius, p.StartRadius)
	assert.Equal(t, c.Color(1), p.StartColor)
	assert.Equal(t, c.Color(2), p.EndColor)
	assert.False(t, cn.cone.Hidden())
}

func TestHiddenClusters(t *testing.T) {
	s := newTestScene(t)
	points := groups(0)
	clusters := Clustering{
		{{K: 0, I: 0, From: 0, To: 11, Children: []int{0, 1}, Visible: true}},
		{{K: 1, I: 0, From: 0, To: 5, Visible: true}, {K: 1, I: 1, From: 6, To: 11, Visible: false}},
	}
	c, err := NewComposite(s, clusters, [][]common.Vec3f{points})
	require.NoError(t, err)
	defer c.Release()

	_, err = c.Split(0)
	require.NoError(t, err)
	for _, obj := range c.Visualisation(2).Objects() {
		assert.True(t, obj.Hidden())
	}
	impl := c.(*composite)
	assert.True(t, impl.connectors[impl.nodes[1].out].cone.Hidden(), "connectors to hidden clusters are hidden")

	id, hit := c.Pick(raycast.NewRayF32(common.Vec3f{25, 0, 50}, common.Vec3f{0, 0, -1}))
	assert.Equal(t, NoNode, id, "hidden clusters are not pickable")
	assert.Nil(t, hit)
}

func TestHedgehogFollowsOtherLeaves(t *testing.T) {
	_, c := newTestComposite(t, WithVisualisation(NewHedgehogVisualisation))
	spikes := func(id NodeID) int {
		return c.Visualisation(id).(*HedgehogVisualisation).spikes.Count()
	}
	assert.Equal(t, 0, spikes(0))

	_, err := c.Split(0)
	require.NoError(t, err)
	assert.Equal(t, 1, spikes(1))
	assert.Equal(t, 1, spikes(2))

	_, err = c.Split(2)
	require.NoError(t, err)
	assert.Equal(t, 2, spikes(1), "untouched leaves refresh after a split")

	_, err = c.Merge(3)
	require.NoError(t, err)
	assert.Equal(t, 1, spikes(1), "untouched leaves refresh after a merge")
}

func TestHighlight(t *testing.T) {
	_, c := newTestComposite(t)
	children, err := c.Split(0)
	require.NoError(t, err)
	palette := DefaultPalette()
	base := palette.Color(1, 0)
	sphereColor := func(id NodeID) gpu_object.Color {
		return c.Visualisation(id).(*SphereVisualisation).sphere.Properties().Color
	}
	assert.Equal(t, base, c.Color(children[0]))
	assert.Equal(t, base, sphereColor(children[0]))

	c.SetHighlighted(0, true)
	assert.True(t, c.Highlighted(children[0]), "highlighting is inherited")
	assert.Equal(t, palette.Highlight(base), c.Color(children[0]))
	assert.Equal(t, palette.Highlight(base), sphereColor(children[0]))

	c.ClearHighlights()
	assert.False(t, c.Highlighted(children[0]))
	assert.Equal(t, base, sphereColor(children[0]))

	c.SetHighlighted(children[1], true)
	assert.False(t, c.Highlighted(children[0]))
	assert.True(t, c.Highlighted(children[1]))
}

func TestColorOverride(t *testing.T) {
	s := newTestScene(t)
	red := gpu_object.Color{1, 0, 0, 1}
	clusters := Clustering{{{From: 0, To: 11, Color: red, Visible: true}}}
	c, err := NewComposite(s, clusters, [][]common.Vec3f{groups(0)})
	require.NoError(t, err)
	defer c.Release()
	assert.Equal(t, red, c.Color(0))
}

func TestPick(t *testing.T) {
	_, c := newTestComposite(t)
	_, err := c.Split(0)
	require.NoError(t, err)

	id, hit := c.Pick(raycast.NewRayF32(common.Vec3f{25, 0, 50}, common.Vec3f{0, 0, -1}))
	assert.Equal(t, NodeID(2), id)
	require.NotNil(t, hit)
	r := c.Visualisation(2).Radius()
	assert.InDelta(t, 50-r, hit.T, 1e-3)

	id, hit = c.Pick(raycast.NewRayF32(common.Vec3f{100, 100, 50}, common.Vec3f{0, 0, -1}))
	assert.Equal(t, NoNode, id)
	assert.Nil(t, hit)
}

func TestTimestep(t *testing.T) {
	_, c := newTestComposite(t)
	assert.Equal(t, 2, c.Timesteps())
	assert.InDelta(t, 0, c.Center(0).Y(), 1e-5)

	require.NoError(t, c.SetTimestep(1))
	assert.Equal(t, 1, c.Timestep())
	assert.InDelta(t, 100, c.Center(0).Y(), 1e-4)
	sphere := c.Visualisation(0).(*SphereVisualisation).sphere
	assert.InDelta(t, 100, sphere.Properties().Center.Y(), 1e-4)

	require.NoError(t, c.SetTimestep(7))
	assert.Equal(t, 1, c.Timestep(), "timesteps are clamped")

	require.NoError(t, c.SetPoints([][]common.Vec3f{groups(-5)}))
	assert.Equal(t, 0, c.Timestep())
	assert.InDelta(t, -5, sphere.Properties().Center.Y(), 1e-4)
}

func TestSetClusters(t *testing.T) {
	s, c := newTestComposite(t, WithVisualisation(NewSpheresVisualisation))
	_, err := c.Split(0)
	require.NoError(t, err)

	assert.Error(t, c.SetClusters(nil))
	assert.Equal(t, []NodeID{1, 2}, c.Leaves(), "invalid clusterings leave the tree untouched")

	flat := Clustering{{{From: 0, To: 5, Visible: true}, {I: 1, From: 6, To: 11, Visible: true}}}
	require.NoError(t, c.SetClusters(flat))
	assert.Equal(t, []NodeID{0, 1}, c.Roots())
	assert.Equal(t, [][2]NodeID{{0, 1}}, c.Connectors())
	assert.Equal(t, VisSpheres, c.Visualisation(0).Type(), "the current type is kept")
	assert.Len(t, s.Objects(), 3)
}

func TestVisualisationTypes(t *testing.T) {
	for typ := VisSphere; typ < visTypeCount; typ++ {
		t.Run(typ.String(), func(t *testing.T) {
			_, c := newTestComposite(t)
			_, err := c.Split(0)
			require.NoError(t, err)
			require.NoError(t, c.SetVisualisation(ConstructorOf(typ)))

			for _, id := range c.Leaves() {
				v := c.Visualisation(id)
				require.NotNil(t, v)
				assert.Equal(t, typ, v.Type())
				assert.NotEmpty(t, v.Objects())
				assert.Greater(t, v.Radius(), float32(0))
				assert.InDelta(t, c.Center(id).X(), v.Center().X(), 1e-5)
			}

			children, err := c.Split(2)
			require.NoError(t, err)
			assert.Equal(t, typ, c.Visualisation(children[0]).Type())

			parsed, err := ParseVisualisationType(typ.String())
			require.NoError(t, err)
			assert.Equal(t, typ, parsed)
		})
	}
	assert.Equal(t, VisSphere, VisVolume.Next())
	_, err := ParseVisualisationType("Teapot")
	assert.Error(t, err)
}

func TestSpheresVisualisation(t *testing.T) {
	_, c := newTestComposite(t, WithVisualisation(NewSpheresVisualisation))
	v := c.Visualisation(0).(*SpheresVisualisation)
	require.Equal(t, 12, v.spheres.Count())
	first := v.spheres.Instance(0)
	assert.Equal(t, first.Start, first.End)
	assert.Equal(t, DefaultStyle().PointRadius, first.StartRadius)

	children, err := c.Split(0)
	require.NoError(t, err)
	assert.Equal(t, 6, c.Visualisation(children[0]).(*SpheresVisualisation).spheres.Count())
}

func TestPCAVisualisation(t *testing.T) {
	_, c := newTestComposite(t, WithVisualisation(NewPCAVisualisation))
	p := c.Visualisation(0).(*PCAVisualisation).cone.Properties()
	assert.InDelta(t, -0.5, p.Start.X(), 1e-3, "the cone starts at the first point's projection")
	assert.InDelta(t, 30.5, p.End.X(), 1e-3)
	assert.InDelta(t, p.StartRadius/2, p.EndRadius, 1e-6)

	axis := principalAxis([]common.Vec3f{{0, 0, 0}, {1, 1, 0}, {2, 2, 0}, {3, 3, 0}}, common.Vec3f{1.5, 1.5, 0})
	assert.InDelta(t, 1/math32.Sqrt2, math32.Abs(axis.X()), 1e-5)
	assert.InDelta(t, 1/math32.Sqrt2, math32.Abs(axis.Y()), 1e-5)
	assert.InDelta(t, 0, axis.Z(), 1e-5)

	// spread of 4 along z against 1 along x: the axis is z
	axis = principalAxis([]common.Vec3f{{-1, 0, 0}, {1, 0, 0}, {0, 0, -4}, {0, 0, 4}}, common.Vec3f{})
	assert.InDelta(t, 1, math32.Abs(axis.Z()), 1e-4)
	assert.InDelta(t, 0, axis.X(), 1e-3)
	assert.Equal(t, common.Vec3f{1, 0, 0}, principalAxis(nil, common.Vec3f{}))
}

func TestPalette(t *testing.T) {
	p := DefaultPalette()
	seen := map[gpu_object.Color]bool{}
	for i := 0; i < 8; i++ {
		c := p.Color(0, i)
		assert.Equal(t, float32(1), c[3])
		assert.False(t, seen[c], "colors of neighbouring indices differ")
		seen[c] = true
	}
	base := p.Color(0, 0).WithAlpha(0.5)
	h := p.Highlight(base)
	assert.Equal(t, float32(0.5), h[3])
	_, _, lb := base.Colorful().Hcl()
	_, _, lh := h.Colorful().Hcl()
	assert.Greater(t, lh, lb, "highlights are lighter")
}

func TestWorker(t *testing.T) {
	s := newTestScene(t)
	w := NewWorker(s, nil)
	defer w.Stop()

	var got []Result
	job := w.Submit(groups(0), 3, func(r Result) { got = append(got, r) })
	assert.Equal(t, 1, job)
	failed := w.Submit(nil, 3, func(r Result) { got = append(got, r) })
	w.Wait()
	assert.Empty(t, got, "results are delivered on the main thread")

	_, err := s.Flush()
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		switch r.Job {
		case job:
			require.NoError(t, r.Err)
			assert.Len(t, r.Clusters, 3)
		case failed:
			assert.ErrorIs(t, r.Err, ErrNoClusters)
		default:
			t.Fatalf("unexpected job %d", r.Job)
		}
	}

	w.Stop()
	assert.Zero(t, w.Submit(groups(0), 2, func(Result) {}))
}
