// Package cluster keeps a hierarchical clustering of a point sequence in sync with GPU visualisations.
//
// A Composite mirrors a slice of a dendrogram: every leaf draws one cluster with a pluggable
// Visualisation, adjacent leaves are linked by connectors, and leaves can be split into their finer
// clusters or merged back into their parent at runtime.
package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/gpu_object"
)

// ErrNoClusters is returned when a clustering has no levels or its coarsest level is empty.
var ErrNoClusters = errors.New("cluster: clustering has no clusters")

// ClusterNode is one cluster of a clustering level. It covers the contiguous point range [From, To],
// both ends inclusive. Children index the clusters of the next finer level that partition the range.
type ClusterNode struct {
	K        int
	I        int
	From     uint32
	To       uint32
	Children []int
	// Color overrides the palette color when its alpha is non-zero.
	Color   gpu_object.Color
	Visible bool
}

// Len returns the number of points in the cluster.
func (n ClusterNode) Len() int {
	if n.To < n.From {
		return 0
	}
	return int(n.To-n.From) + 1
}

// Clustering holds the levels of a hierarchical clustering, coarsest first. Level k+1 refines level k.
type Clustering [][]ClusterNode

// Validate checks that the clustering is non-empty, that every node is labelled with its own level and
// index, and that every child index points into the next level inside its parent's range.
//
// Returns:
//   - error: ErrNoClusters or a description of the first broken reference
func (c Clustering) Validate() error {
	if len(c) == 0 || len(c[0]) == 0 {
		return ErrNoClusters
	}
	for k, level := range c {
		for i, n := range level {
			if n.K != k || n.I != i {
				return fmt.Errorf("cluster: node (%d, %d) is labelled (%d, %d)", k, i, n.K, n.I)
			}
			if n.To < n.From {
				return fmt.Errorf("cluster: node (%d, %d) has an empty range [%d, %d]", k, i, n.From, n.To)
			}
			for _, child := range n.Children {
				if k+1 >= len(c) || child < 0 || child >= len(c[k+1]) {
					return fmt.Errorf("cluster: node (%d, %d) references missing child %d", k, i, child)
				}
				if ch := c[k+1][child]; ch.From < n.From || ch.To > n.To {
					return fmt.Errorf("cluster: child %d [%d, %d] of node (%d, %d) leaves its range [%d, %d]",
						child, ch.From, ch.To, k, i, n.From, n.To)
				}
			}
		}
	}
	return nil
}

// node returns the cluster at (k, i) or false if it does not exist.
func (c Clustering) node(k, i int) (ClusterNode, bool) {
	if k < 0 || k >= len(c) || i < 0 || i >= len(c[k]) {
		return ClusterNode{}, false
	}
	return c[k][i], true
}

// splitTarget returns the cluster whose children a split of (k, i) creates and its level. Chains of
// single children cover the same range, so they are skipped to the first descendant with several children.
func (c Clustering) splitTarget(k, i int) (ClusterNode, int, bool) {
	n, ok := c.node(k, i)
	for ok && len(n.Children) == 1 {
		k++
		n, ok = c.node(k, n.Children[0])
	}
	if !ok || len(n.Children) < 2 || k+1 >= len(c) {
		return ClusterNode{}, 0, false
	}
	return n, k, true
}

// DivisiveClustering builds a contiguous hierarchical clustering of a point sequence. Level 0 holds one
// cluster with every point. Each next level splits the cluster with the largest spread in two at the
// index that minimizes the summed squared distances of both halves to their centroids, and carries
// every other cluster over as a single child.
//
// Parameters:
//   - points: the point sequence, usually one timestep of a polymer
//   - levels: the number of levels to build, at most len(points)
//
// Returns:
//   - Clustering: the clustering
//   - error: ErrNoClusters when there is nothing to cluster
func DivisiveClustering(points []common.Vec3f, levels int) (Clustering, error) {
	if len(points) == 0 || levels < 1 {
		return nil, ErrNoClusters
	}
	levels = min(levels, len(points))
	prefix := newPrefixSums(points)

	out := Clustering{{{K: 0, I: 0, From: 0, To: uint32(len(points) - 1), Visible: true}}}
	for k := 1; k < levels; k++ {
		prev := out[k-1]
		worst, worstCost := -1, -1.0
		for i, n := range prev {
			if n.Len() < 2 {
				continue
			}
			if cost := prefix.cost(int(n.From), int(n.To)); cost > worstCost {
				worst, worstCost = i, cost
			}
		}
		if worst < 0 {
			break
		}

		next := make([]ClusterNode, 0, len(prev)+1)
		for i := range prev {
			n := &prev[i]
			if i != worst {
				n.Children = []int{len(next)}
				next = append(next, ClusterNode{K: k, I: len(next), From: n.From, To: n.To, Visible: true})
				continue
			}
			at := prefix.bestSplit(int(n.From), int(n.To))
			n.Children = []int{len(next), len(next) + 1}
			next = append(next,
				ClusterNode{K: k, I: len(next), From: n.From, To: uint32(at), Visible: true},
				ClusterNode{K: k, I: len(next) + 1, From: uint32(at + 1), To: n.To, Visible: true},
			)
		}
		out = append(out, next)
	}
	return out, nil
}

// prefixSums answers range variance queries in constant time.
type prefixSums struct {
	sum   []common.Vec3d
	sumSq []float64
}

func newPrefixSums(points []common.Vec3f) prefixSums {
	p := prefixSums{
		sum:   make([]common.Vec3d, len(points)+1),
		sumSq: make([]float64, len(points)+1),
	}
	for i, pt := range points {
		d := common.ToF64(pt)
		p.sum[i+1] = p.sum[i].Add(d)
		p.sumSq[i+1] = p.sumSq[i] + d.Dot(d)
	}
	return p
}

// cost returns the summed squared distance of points [from, to] to their centroid.
func (p prefixSums) cost(from, to int) float64 {
	n := float64(to - from + 1)
	s := p.sum[to+1].Sub(p.sum[from])
	return math.Max(p.sumSq[to+1]-p.sumSq[from]-s.Dot(s)/n, 0)
}

// bestSplit returns the last index of the left half of the cheapest two-way split of [from, to].
func (p prefixSums) bestSplit(from, to int) int {
	best, bestCost := from, math.Inf(1)
	for at := from; at < to; at++ {
		if c := p.cost(from, at) + p.cost(at+1, to); c < bestCost {
			best, bestCost = at, c
		}
	}
	return best
}
