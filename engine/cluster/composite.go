package cluster

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
	"github.com/Carmen-Shannon/chromaviz/engine/raycast"
	"github.com/Carmen-Shannon/chromaviz/engine/scene"
)

// NodeID identifies a node of a Composite. IDs index the node arena and are never reused.
type NodeID int

// NoNode is returned where no node applies, such as the parent of a top-level node or a missed pick.
const NoNode NodeID = -1

// noConnector marks an unlinked connector end of a node.
const noConnector = -1

// Style holds the sizes visualisations are built with. Lengths are in world units.
type Style struct {
	// ConnectorRadius is the radius of connector cones between adjacent leaves.
	ConnectorRadius float32
	// PathlineRadius is the tube radius of pathlines.
	PathlineRadius float32
	// PointRadius is the sphere radius of the Spheres visualisation.
	PointRadius float32
	// MinRadius bounds the radius of sphere and cone visualisations of tiny clusters from below.
	MinRadius float32
	// HedgehogLength scales hedgehog spikes relative to the cluster radius.
	HedgehogLength float32
	// SurfaceRadius is the capsule radius of distance field and volume visualisations.
	SurfaceRadius float32
	// Smoothness is the smooth union blend width of distance field and volume visualisations.
	Smoothness float32
	// GridResolution is the voxel count per axis of distance field visualisations.
	GridResolution int
}

// DefaultStyle returns the style used when a composite is created without one.
func DefaultStyle() Style {
	return Style{
		ConnectorRadius: 0.02,
		PathlineRadius:  0.03,
		PointRadius:     0.04,
		MinRadius:       0.05,
		HedgehogLength:  1.5,
		SurfaceRadius:   0.08,
		Smoothness:      0.05,
		GridResolution:  gpu_object.DefaultGridResolution,
	}
}

type node struct {
	cluster     ClusterNode
	parent      NodeID
	children    []NodeID
	vis         Visualisation
	in          int
	out         int
	highlighted bool
}

type connector struct {
	from, to NodeID
	cone     *gpu_object.RoundedCone
	objectID scene.ObjectID
}

// Composite is the cluster visualisation tree. Every node wraps one cluster; a leaf draws its cluster
// with a Visualisation, an inner node draws nothing and owns the leaves its cluster was split into.
// Adjacent leaves in traversal order are linked by connectors drawn as rounded cones.
//
// A Composite is not safe for concurrent use; mutate it from the thread that flushes its scene.
type Composite interface {
	// Scene returns the scene the visualisations are created in.
	Scene() scene.Scene

	// Style returns the sizes visualisations are built with.
	Style() Style

	// TextureLoader returns the loader distance grids are built on, nil to build them synchronously.
	TextureLoader() *gpu_object.TextureLoader

	// Clusters returns the clustering the tree mirrors.
	Clusters() Clustering

	// SetClusters replaces the clustering wholesale. The tree is rebuilt from the coarsest level, every
	// leaf using the visualisation type of the current first leaf.
	//
	// Parameters:
	//   - clusters: the new clustering
	//
	// Returns:
	//   - error: ErrNoClusters or a validation error, in which case the tree is unchanged
	SetClusters(clusters Clustering) error

	// Points returns the point positions of the current timestep.
	Points() []common.Vec3f

	// SetPoints replaces the per-timestep point positions wholesale and refreshes every leaf.
	//
	// Parameters:
	//   - points: the positions, one slice per timestep
	//
	// Returns:
	//   - error: the joined errors of visualisations that could not be rebuilt
	SetPoints(points [][]common.Vec3f) error

	// Timesteps returns the number of timesteps.
	Timesteps() int

	// Timestep returns the current timestep.
	Timestep() int

	// SetTimestep switches the timestep and refreshes every leaf.
	//
	// Parameters:
	//   - t: the timestep, clamped to the available range
	//
	// Returns:
	//   - error: the joined errors of visualisations that could not be rebuilt
	SetTimestep(t int) error

	// Roots returns the top-level nodes, one per cluster of the coarsest level.
	Roots() []NodeID

	// Leaves returns the leaves in traversal order.
	Leaves() []NodeID

	// Node returns the cluster of a node.
	//
	// Parameters:
	//   - id: the node
	//
	// Returns:
	//   - ClusterNode: the cluster the node wraps
	//   - bool: false if the node does not exist
	Node(id NodeID) (ClusterNode, bool)

	// IsLeaf reports whether id is a live leaf.
	IsLeaf(id NodeID) bool

	// Parent returns the parent of a node, NoNode for top-level or unknown nodes.
	Parent(id NodeID) NodeID

	// Children returns the children of a node in order, nil for leaves.
	Children(id NodeID) []NodeID

	// Visualisation returns the visualisation of a leaf, nil for inner or unknown nodes.
	Visualisation(id NodeID) Visualisation

	// LeafPoints returns the points of the current timestep covered by a node's cluster.
	LeafPoints(id NodeID) []common.Vec3f

	// Center returns the centroid of the points covered by a node's cluster.
	Center(id NodeID) common.Vec3f

	// Color returns the color a node is drawn with, taking highlighting into account.
	Color(id NodeID) gpu_object.Color

	// Split replaces a leaf by the leaves of its cluster's next finer level with more than one child.
	// The children use the leaf's visualisation type. Splitting anything but a splittable leaf is a no-op.
	//
	// Parameters:
	//   - id: the leaf to split
	//
	// Returns:
	//   - []NodeID: the new leaves, nil if nothing was split
	//   - error: the joined errors of visualisations or connectors that could not be created
	Split(id NodeID) ([]NodeID, error)

	// Merge collapses the whole subtree of a leaf's parent back into the parent, which becomes a leaf
	// drawn with the merged leaf's visualisation type. Merging a top-level leaf is a no-op.
	//
	// Parameters:
	//   - id: a leaf under the parent to collapse
	//
	// Returns:
	//   - NodeID: the parent that became a leaf, NoNode if nothing was merged
	//   - error: an error if the parent's visualisation could not be created
	Merge(id NodeID) (NodeID, error)

	// SetVisualisation rebuilds every leaf with a new visualisation type.
	//
	// Parameters:
	//   - ctor: the constructor of the new visualisation
	//
	// Returns:
	//   - error: the joined errors of leaves that could not be rebuilt
	SetVisualisation(ctor Constructor) error

	// SetLeafVisualisation rebuilds one leaf with a new visualisation type.
	//
	// Parameters:
	//   - id: the leaf
	//   - ctor: the constructor of the new visualisation
	//
	// Returns:
	//   - error: an error if the visualisation could not be created
	SetLeafVisualisation(id NodeID, ctor Constructor) error

	// SetHighlighted highlights a node. Every leaf below a highlighted node is drawn highlighted.
	//
	// Parameters:
	//   - id: the node
	//   - highlighted: the new state
	SetHighlighted(id NodeID, highlighted bool)

	// Highlighted reports whether a node or one of its ancestors is highlighted.
	Highlighted(id NodeID) bool

	// ClearHighlights removes every highlight.
	ClearHighlights()

	// Pick returns the leaf whose visualisation a ray hits first.
	//
	// Parameters:
	//   - r: the picking ray
	//
	// Returns:
	//   - NodeID: the hit leaf, NoNode on a miss
	//   - *raycast.Intersection: the hit, nil on a miss
	Pick(r raycast.Ray) (NodeID, *raycast.Intersection)

	// Connectors returns the linked leaf pairs in traversal order.
	Connectors() [][2]NodeID

	// Release removes every visualisation and connector from the scene.
	Release()
}

type composite struct {
	scene    scene.Scene
	clusters Clustering
	points   [][]common.Vec3f
	timestep int
	palette  Palette
	style    Style
	loader   *gpu_object.TextureLoader
	ctor     Constructor
	connect  bool

	nodes      []*node
	roots      []NodeID
	connectors []*connector
}

var _ Composite = &composite{}

// NewComposite creates a tree with one leaf per cluster of the coarsest level.
//
// Parameters:
//   - s: the scene visualisations and connectors are created in
//   - clusters: the clustering to mirror
//   - points: the point positions, one slice per timestep
//   - options: functional options to configure the tree
//
// Returns:
//   - Composite: the tree
//   - error: ErrNoClusters, a validation error or the error of a visualisation that could not be created
func NewComposite(s scene.Scene, clusters Clustering, points [][]common.Vec3f, options ...CompositeBuilderOption) (Composite, error) {
	if s == nil {
		panic("cluster: NewComposite requires a non-nil Scene")
	}
	if err := clusters.Validate(); err != nil {
		return nil, err
	}
	c := &composite{
		scene:    s,
		clusters: clusters,
		points:   points,
		palette:  DefaultPalette(),
		style:    DefaultStyle(),
		ctor:     NewSphereVisualisation,
		connect:  true,
	}
	for _, option := range options {
		option(c)
	}
	if err := c.build(c.ctor); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

// build creates the top-level leaves and the connectors between them.
func (c *composite) build(ctor Constructor) error {
	c.nodes = nil
	c.roots = nil
	c.connectors = nil
	for _, n := range c.clusters[0] {
		c.roots = append(c.roots, c.newNode(n, NoNode))
	}
	var errs []error
	for _, id := range c.roots {
		if err := c.attach(id, ctor); err != nil {
			errs = append(errs, err)
		}
	}
	for i := 0; i+1 < len(c.roots); i++ {
		if err := c.link(c.roots[i], c.roots[i+1]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *composite) newNode(n ClusterNode, parent NodeID) NodeID {
	id := NodeID(len(c.nodes))
	c.nodes = append(c.nodes, &node{cluster: n, parent: parent, in: noConnector, out: noConnector})
	return id
}

func (c *composite) get(id NodeID) *node {
	if id < 0 || int(id) >= len(c.nodes) {
		return nil
	}
	return c.nodes[id]
}

func (c *composite) leaf(id NodeID) *node {
	if n := c.get(id); n != nil && len(n.children) == 0 {
		return n
	}
	return nil
}

// attach builds the visualisation of a leaf. A failed leaf keeps a nil visualisation and draws nothing.
func (c *composite) attach(id NodeID, ctor Constructor) error {
	n := c.nodes[id]
	vis, err := ctor(c, id)
	if err != nil {
		return fmt.Errorf("cluster: leaf %d: %w", id, err)
	}
	if b, ok := vis.(interface{ bindConstructor(Constructor) }); ok {
		b.bindConstructor(ctor)
	}
	n.vis = vis
	vis.SetHidden(!n.cluster.Visible)
	return nil
}

func (c *composite) detach(n *node) {
	if n.vis != nil {
		n.vis.Release()
		n.vis = nil
	}
}

// link creates the connector from leaf a to leaf b.
func (c *composite) link(a, b NodeID) error {
	if !c.connect {
		return nil
	}
	cone, objectID, err := scene.Add(c.scene, func(h gpu_object.Host) (*gpu_object.RoundedCone, error) {
		return gpu_object.NewRoundedCone(h, "Cluster Connector")
	})
	if err != nil {
		return fmt.Errorf("cluster: connector %d-%d: %w", a, b, err)
	}
	idx := len(c.connectors)
	c.connectors = append(c.connectors, &connector{from: a, to: b, cone: cone, objectID: objectID})
	c.nodes[a].out = idx
	c.nodes[b].in = idx
	c.updateConnector(idx)
	return nil
}

func (c *composite) unlink(idx int) {
	if idx == noConnector || c.connectors[idx] == nil {
		return
	}
	cn := c.connectors[idx]
	c.scene.RemoveObjectByID(cn.objectID)
	c.connectors[idx] = nil
}

// updateConnector moves a connector to the current centers and colors of its leaves.
func (c *composite) updateConnector(idx int) {
	if idx == noConnector || c.connectors[idx] == nil {
		return
	}
	cn := c.connectors[idx]
	from, to := c.nodes[cn.from], c.nodes[cn.to]
	cn.cone.SetProperties(gpu_object.RoundedConeProperties{
		Start:       c.Center(cn.from),
		End:         c.Center(cn.to),
		StartRadius: c.style.ConnectorRadius,
		EndRadius:   c.style.ConnectorRadius,
		StartColor:  c.Color(cn.from),
		EndColor:    c.Color(cn.to),
	})
	cn.cone.SetHidden(!from.cluster.Visible || !to.cluster.Visible)
}

func (c *composite) updateConnectorsOf(n *node) {
	c.updateConnector(n.in)
	c.updateConnector(n.out)
}

// notify lets every leaf outside skip react to a changed tree.
func (c *composite) notify(skip map[NodeID]bool) error {
	var errs []error
	for _, id := range c.Leaves() {
		if skip[id] {
			continue
		}
		if vis := c.nodes[id].vis; vis != nil {
			if err := vis.EventUpdate(); err != nil {
				errs = append(errs, fmt.Errorf("cluster: leaf %d: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *composite) Scene() scene.Scene {
	return c.scene
}

func (c *composite) Style() Style {
	return c.style
}

func (c *composite) TextureLoader() *gpu_object.TextureLoader {
	return c.loader
}

func (c *composite) Clusters() Clustering {
	return c.clusters
}

func (c *composite) SetClusters(clusters Clustering) error {
	if err := clusters.Validate(); err != nil {
		return err
	}
	ctor := c.ctor
	if leaves := c.Leaves(); len(leaves) > 0 {
		if vis := c.nodes[leaves[0]].vis; vis != nil {
			ctor = vis.Constructor()
		}
	}
	c.Release()
	c.clusters = clusters
	return c.build(ctor)
}

func (c *composite) Points() []common.Vec3f {
	if c.timestep >= len(c.points) {
		return nil
	}
	return c.points[c.timestep]
}

func (c *composite) SetPoints(points [][]common.Vec3f) error {
	c.points = points
	c.timestep = max(min(c.timestep, len(points)-1), 0)
	return c.refresh()
}

func (c *composite) Timesteps() int {
	return len(c.points)
}

func (c *composite) Timestep() int {
	return c.timestep
}

func (c *composite) SetTimestep(t int) error {
	t = max(min(t, len(c.points)-1), 0)
	if t == c.timestep {
		return nil
	}
	c.timestep = t
	return c.refresh()
}

// refresh rebuilds every leaf from the current points and moves every connector.
func (c *composite) refresh() error {
	var errs []error
	for _, id := range c.Leaves() {
		if vis := c.nodes[id].vis; vis != nil {
			if err := vis.Update(); err != nil {
				errs = append(errs, fmt.Errorf("cluster: leaf %d: %w", id, err))
			}
		}
	}
	for i := range c.connectors {
		c.updateConnector(i)
	}
	return errors.Join(errs...)
}

func (c *composite) Roots() []NodeID {
	return append([]NodeID(nil), c.roots...)
}

func (c *composite) Leaves() []NodeID {
	var out []NodeID
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := c.nodes[id]
		if len(n.children) == 0 {
			out = append(out, id)
			return
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	for _, id := range c.roots {
		walk(id)
	}
	return out
}

func (c *composite) Node(id NodeID) (ClusterNode, bool) {
	n := c.get(id)
	if n == nil {
		return ClusterNode{}, false
	}
	return n.cluster, true
}

func (c *composite) IsLeaf(id NodeID) bool {
	return c.leaf(id) != nil
}

func (c *composite) Parent(id NodeID) NodeID {
	if n := c.get(id); n != nil {
		return n.parent
	}
	return NoNode
}

func (c *composite) Children(id NodeID) []NodeID {
	if n := c.get(id); n != nil && len(n.children) > 0 {
		return append([]NodeID(nil), n.children...)
	}
	return nil
}

func (c *composite) Visualisation(id NodeID) Visualisation {
	if n := c.leaf(id); n != nil {
		return n.vis
	}
	return nil
}

func (c *composite) LeafPoints(id NodeID) []common.Vec3f {
	n := c.get(id)
	points := c.Points()
	if n == nil || len(points) == 0 {
		return nil
	}
	from := min(int(n.cluster.From), len(points))
	to := min(int(n.cluster.To)+1, len(points))
	return points[from:to]
}

func (c *composite) Center(id NodeID) common.Vec3f {
	return common.Centroid(c.LeafPoints(id))
}

func (c *composite) Color(id NodeID) gpu_object.Color {
	n := c.get(id)
	if n == nil {
		return gpu_object.White
	}
	color := n.cluster.Color
	if color[3] == 0 {
		color = c.palette.Color(n.cluster.K, n.cluster.I)
	}
	if c.Highlighted(id) {
		return c.palette.Highlight(color)
	}
	return color
}

func (c *composite) Split(id NodeID) ([]NodeID, error) {
	n := c.leaf(id)
	if n == nil {
		common.Logger().Debug("cluster split ignored, not a leaf", "node", id)
		return nil, nil
	}
	target, level, ok := c.clusters.splitTarget(n.cluster.K, n.cluster.I)
	if !ok {
		common.Logger().Debug("cluster split ignored, no finer level", "node", id, "k", n.cluster.K, "i", n.cluster.I)
		return nil, nil
	}
	ctor := c.ctor
	if n.vis != nil {
		ctor = n.vis.Constructor()
	}
	c.detach(n)

	children := make([]NodeID, len(target.Children))
	for j, ci := range target.Children {
		children[j] = c.newNode(c.clusters[level+1][ci], id)
	}
	n.children = children

	first, last := c.nodes[children[0]], c.nodes[children[len(children)-1]]
	first.in, last.out = n.in, n.out
	if n.in != noConnector {
		c.connectors[n.in].to = children[0]
	}
	if n.out != noConnector {
		c.connectors[n.out].from = children[len(children)-1]
	}
	n.in, n.out = noConnector, noConnector

	var errs []error
	skip := make(map[NodeID]bool, len(children))
	for _, child := range children {
		skip[child] = true
		if err := c.attach(child, ctor); err != nil {
			errs = append(errs, err)
		}
	}
	for j := 0; j+1 < len(children); j++ {
		if err := c.link(children[j], children[j+1]); err != nil {
			errs = append(errs, err)
		}
	}
	c.updateConnectorsOf(first)
	c.updateConnectorsOf(last)
	if err := c.notify(skip); err != nil {
		errs = append(errs, err)
	}
	common.Logger().Debug("cluster split", "node", id, "children", len(children))
	return children, errors.Join(errs...)
}

func (c *composite) Merge(id NodeID) (NodeID, error) {
	n := c.leaf(id)
	if n == nil || n.parent == NoNode {
		common.Logger().Debug("cluster merge ignored", "node", id)
		return NoNode, nil
	}
	parentID := n.parent
	parent := c.nodes[parentID]
	ctor := c.ctor
	if n.vis != nil {
		ctor = n.vis.Constructor()
	}

	leaves := c.leavesUnder(parentID)
	in := c.nodes[leaves[0]].in
	out := c.nodes[leaves[len(leaves)-1]].out
	for _, l := range leaves[:len(leaves)-1] {
		c.unlink(c.nodes[l].out)
	}
	for _, child := range parent.children {
		c.releaseSubtree(child)
	}
	parent.children = nil

	parent.in, parent.out = in, out
	if in != noConnector {
		c.connectors[in].to = parentID
	}
	if out != noConnector {
		c.connectors[out].from = parentID
	}

	var errs []error
	if err := c.attach(parentID, ctor); err != nil {
		errs = append(errs, err)
	}
	c.updateConnectorsOf(parent)
	if err := c.notify(map[NodeID]bool{parentID: true}); err != nil {
		errs = append(errs, err)
	}
	common.Logger().Debug("cluster merge", "node", parentID, "leaves", len(leaves))
	return parentID, errors.Join(errs...)
}

// leavesUnder returns the leaves below id in traversal order.
func (c *composite) leavesUnder(id NodeID) []NodeID {
	n := c.nodes[id]
	if len(n.children) == 0 {
		return []NodeID{id}
	}
	var out []NodeID
	for _, child := range n.children {
		out = append(out, c.leavesUnder(child)...)
	}
	return out
}

// releaseSubtree releases the visualisations below id and drops the nodes from the arena.
func (c *composite) releaseSubtree(id NodeID) {
	n := c.nodes[id]
	for _, child := range n.children {
		c.releaseSubtree(child)
	}
	c.detach(n)
	c.nodes[id] = nil
}

func (c *composite) SetVisualisation(ctor Constructor) error {
	c.ctor = ctor
	var errs []error
	for _, id := range c.Leaves() {
		if err := c.SetLeafVisualisation(id, ctor); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *composite) SetLeafVisualisation(id NodeID, ctor Constructor) error {
	n := c.leaf(id)
	if n == nil {
		return nil
	}
	c.detach(n)
	return c.attach(id, ctor)
}

func (c *composite) SetHighlighted(id NodeID, highlighted bool) {
	n := c.get(id)
	if n == nil || n.highlighted == highlighted {
		return
	}
	n.highlighted = highlighted
	c.recolor(id)
}

// recolor pushes the current colors to every leaf below id and its connectors.
func (c *composite) recolor(id NodeID) {
	for _, l := range c.leavesUnder(id) {
		n := c.nodes[l]
		if n.vis != nil {
			n.vis.SetColor(c.Color(l))
		}
		c.updateConnectorsOf(n)
	}
}

func (c *composite) Highlighted(id NodeID) bool {
	for n := c.get(id); n != nil; n = c.get(n.parent) {
		if n.highlighted {
			return true
		}
	}
	return false
}

func (c *composite) ClearHighlights() {
	for id, n := range c.nodes {
		if n != nil && n.highlighted {
			c.SetHighlighted(NodeID(id), false)
		}
	}
}

func (c *composite) Pick(r raycast.Ray) (NodeID, *raycast.Intersection) {
	picked, best := NoNode, (*raycast.Intersection)(nil)
	for _, id := range c.Leaves() {
		n := c.nodes[id]
		if n.vis == nil || !n.cluster.Visible {
			continue
		}
		if hit := n.vis.RayIntersection(r); raycast.Nearest(best, hit) != best {
			picked, best = id, hit
		}
	}
	return picked, best
}

func (c *composite) Connectors() [][2]NodeID {
	var out [][2]NodeID
	for _, id := range c.Leaves() {
		if idx := c.nodes[id].out; idx != noConnector && c.connectors[idx] != nil {
			cn := c.connectors[idx]
			out = append(out, [2]NodeID{cn.from, cn.to})
		}
	}
	return out
}

func (c *composite) Release() {
	for _, n := range c.nodes {
		if n != nil {
			c.detach(n)
		}
	}
	for i := range c.connectors {
		c.unlink(i)
	}
}
