// Package clustering implements hierarchical density-based cluster discovery
// over the projected vectors. No cluster count is specified in advance:
// points in regions below the density threshold come back as noise, and the
// hierarchy supports two extraction policies — "leaf" for the finest stable
// clusters and "eom" (excess of mass) for the clusters that persist longest.
package clustering

import (
	"fmt"
	"math"
	"sort"

	"pulse/internal/core"
	"pulse/internal/logger"
)

// Policy selects how flat clusters are extracted from the hierarchy.
type Policy string

const (
	// PolicyLeaf extracts the leaves of the condensed tree: more, smaller clusters.
	PolicyLeaf Policy = "leaf"
	// PolicyEOM extracts clusters maximizing total stability: fewer, more stable clusters.
	PolicyEOM Policy = "eom"
)

// Options configures the clusterer.
type Options struct {
	MinClusterSize int
	MinSamples     int
	Policy         Policy
}

// lambda is inverse distance; identical points would make it infinite.
func toLambda(dist float64) float64 {
	if dist < 1e-10 {
		dist = 1e-10
	}
	return 1 / dist
}

// pointFall records a point leaving a condensed cluster as density increases.
type pointFall struct {
	point  int
	lambda float64
}

// condensedCluster is one node of the condensed hierarchy. Children and
// parents are arena indices.
type condensedCluster struct {
	parent    int
	birth     float64
	children  []int
	falls     []pointFall
	size      int // total points under this cluster
	stability float64

	// salvageThreshold is nonzero only on a root selected by salvageRoot;
	// falls below it stay noise.
	salvageThreshold float64
}

// Assign clusters the points and returns one label per point: a dense
// 0-based cluster id in discovery (first member) order, or core.NoiseID.
func Assign(points [][]float64, opts Options) ([]int, error) {
	n := len(points)
	if opts.MinClusterSize < 2 {
		return nil, fmt.Errorf("min cluster size must be at least 2, got %d", opts.MinClusterSize)
	}
	if opts.Policy != PolicyLeaf && opts.Policy != PolicyEOM {
		return nil, fmt.Errorf("unknown extraction policy %q", opts.Policy)
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = core.NoiseID
	}
	if n < opts.MinClusterSize {
		return labels, nil
	}

	dists := euclideanMatrix(points)
	cores := coreDistances(dists, opts.MinSamples)
	mst := minimumSpanningTree(dists, cores)
	arena := buildDendrogram(n, mst)
	tree := condense(arena, n, opts.MinClusterSize)

	selected := extract(tree, opts.Policy, opts.MinClusterSize)
	assignLabels(tree, selected, labels)

	logger.Get().Debug().
		Int("points", n).
		Int("condensed_clusters", len(tree)).
		Int("selected", len(selected)).
		Msg("density clustering complete")
	return labels, nil
}

// condense walks the dendrogram top-down. A split where both sides hold at
// least minClusterSize points creates two child clusters; a smaller side
// simply falls out of the current cluster at that density level.
func condense(arena []dendroNode, n, minClusterSize int) []condensedCluster {
	root := len(arena) - 1
	tree := []condensedCluster{{parent: -1, birth: 0}}

	type frame struct {
		node    int
		cluster int
	}
	stack := []frame{{node: root, cluster: 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := arena[f.node]
		if node.left < 0 { // leaf reached while walking inside a cluster
			continue
		}
		lam := toLambda(node.dist)
		leftSize, rightSize := arena[node.left].size, arena[node.right].size

		switch {
		case leftSize >= minClusterSize && rightSize >= minClusterSize:
			for _, child := range []int{node.left, node.right} {
				id := len(tree)
				tree = append(tree, condensedCluster{parent: f.cluster, birth: lam})
				tree[f.cluster].children = append(tree[f.cluster].children, id)
				stack = append(stack, frame{node: child, cluster: id})
			}
		case leftSize >= minClusterSize:
			dropLeaves(arena, node.right, lam, &tree[f.cluster])
			stack = append(stack, frame{node: node.left, cluster: f.cluster})
		case rightSize >= minClusterSize:
			dropLeaves(arena, node.left, lam, &tree[f.cluster])
			stack = append(stack, frame{node: node.right, cluster: f.cluster})
		default:
			// Cluster disperses: every remaining point leaves here.
			dropLeaves(arena, node.left, lam, &tree[f.cluster])
			dropLeaves(arena, node.right, lam, &tree[f.cluster])
		}
	}

	computeSizes(tree, 0)
	computeStability(tree)
	return tree
}

// dropLeaves records every point under the subtree as falling out of the
// cluster at the given density level.
func dropLeaves(arena []dendroNode, node int, lam float64, cluster *condensedCluster) {
	stack := []int{node}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if arena[idx].left < 0 {
			cluster.falls = append(cluster.falls, pointFall{point: idx, lambda: lam})
			continue
		}
		stack = append(stack, arena[idx].left, arena[idx].right)
	}
}

func computeSizes(tree []condensedCluster, id int) int {
	size := len(tree[id].falls)
	for _, child := range tree[id].children {
		size += computeSizes(tree, child)
	}
	tree[id].size = size
	return size
}

// computeStability sums, per cluster, how long each point persisted past the
// cluster's birth: falls contribute (lambda_fall - birth), child clusters
// contribute their size times (child birth - birth).
func computeStability(tree []condensedCluster) {
	for id := range tree {
		c := &tree[id]
		for _, fall := range c.falls {
			c.stability += fall.lambda - c.birth
		}
		for _, child := range c.children {
			c.stability += float64(tree[child].size) * (tree[child].birth - c.birth)
		}
	}
}

// extract selects a flat antichain of clusters from the condensed tree.
func extract(tree []condensedCluster, policy Policy, minClusterSize int) map[int]bool {
	if len(tree) == 1 {
		// No split survived min-cluster-size: try to salvage a single
		// stable core from the root's fall profile.
		return salvageRoot(tree, minClusterSize)
	}

	switch policy {
	case PolicyLeaf:
		selected := make(map[int]bool)
		for id := 1; id < len(tree); id++ {
			if len(tree[id].children) == 0 {
				selected[id] = true
			}
		}
		return selected
	default:
		return extractEOM(tree)
	}
}

// extractEOM walks children before parents (children always have larger
// arena indices): a cluster is kept when its own stability exceeds the total
// stability of its selected descendants. The root never competes — selecting
// it would undo the clustering.
func extractEOM(tree []condensedCluster) map[int]bool {
	selected := make(map[int]bool)
	score := make([]float64, len(tree))

	for id := len(tree) - 1; id >= 1; id-- {
		c := tree[id]
		if len(c.children) == 0 {
			selected[id] = true
			score[id] = c.stability
			continue
		}

		var childSum float64
		for _, child := range c.children {
			childSum += score[child]
		}
		if c.stability > childSum {
			selected[id] = true
			deselectDescendants(tree, id, selected)
			score[id] = c.stability
		} else {
			score[id] = childSum
		}
	}
	return selected
}

func deselectDescendants(tree []condensedCluster, id int, selected map[int]bool) {
	for _, child := range tree[id].children {
		delete(selected, child)
		deselectDescendants(tree, child, selected)
	}
}

// salvageRoot handles the degenerate condensed tree with no real splits.
// If the root's fall densities show a clear bimodal gap — a loose fringe
// leaving early and a tight core persisting to high density — the core is a
// genuine cluster and the fringe is noise. Without such a gap the batch has
// no density structure and everything is noise.
func salvageRoot(tree []condensedCluster, minClusterSize int) map[int]bool {
	falls := tree[0].falls
	if len(falls) < 2 || len(falls) < minClusterSize {
		return nil
	}

	lambdas := make([]float64, len(falls))
	for i, f := range falls {
		lambdas[i] = f.lambda
	}
	sort.Float64s(lambdas)

	// Largest multiplicative gap between consecutive fall densities. Only
	// gaps leaving at least minClusterSize points on the dense side count:
	// a near-duplicate pair inside the core must not outbid the real
	// core/fringe boundary.
	gapIndex, gapRatio := -1, 1.0
	for i := 0; i+1 < len(lambdas); i++ {
		if lambdas[i] <= 0 {
			continue
		}
		if len(lambdas)-(i+1) < minClusterSize {
			break
		}
		ratio := lambdas[i+1] / lambdas[i]
		if ratio > gapRatio {
			gapRatio = ratio
			gapIndex = i
		}
	}

	// Require an order of structure, and let selection-time filtering keep
	// only the persisting core.
	const minGapRatio = 2.0
	if gapIndex < 0 || gapRatio < minGapRatio {
		return nil
	}

	threshold := math.Sqrt(lambdas[gapIndex] * lambdas[gapIndex+1])
	tree[0].salvageThreshold = threshold
	return map[int]bool{0: true}
}

// assignLabels maps every point to the selected cluster it fell under (the
// nearest selected ancestor of its fall cluster), or noise. Cluster ids are
// densified 0-based in order of first member appearance.
func assignLabels(tree []condensedCluster, selected map[int]bool, labels []int) {
	if len(selected) == 0 {
		return
	}

	// Fall lists are per cluster; resolve each cluster to its nearest
	// selected ancestor once.
	resolved := make([]int, len(tree))
	for id := range tree {
		resolved[id] = -1
		for cur := id; cur != -1; cur = tree[cur].parent {
			if selected[cur] {
				resolved[id] = cur
				break
			}
		}
	}

	assignment := make(map[int]int) // point -> condensed cluster id
	for id := range tree {
		target := resolved[id]
		if target < 0 {
			continue
		}
		threshold := tree[target].salvageThreshold
		for _, fall := range tree[id].falls {
			if threshold > 0 && fall.lambda < threshold {
				continue // fringe below the salvage gap stays noise
			}
			assignment[fall.point] = target
		}
	}

	// Densify ids in first-member order.
	next := 0
	dense := make(map[int]int)
	for point := 0; point < len(labels); point++ {
		cluster, ok := assignment[point]
		if !ok {
			continue
		}
		id, ok := dense[cluster]
		if !ok {
			id = next
			dense[cluster] = id
			next++
		}
		labels[point] = id
	}
}
