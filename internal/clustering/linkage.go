package clustering

import (
	"math"
	"sort"
)

// mstEdge is one edge of the minimum spanning tree over the
// mutual-reachability graph.
type mstEdge struct {
	a, b   int
	weight float64
}

// coreDistances returns, for each point, the distance to its minSamples-th
// nearest neighbor. This is the density estimate: a small core distance
// means a dense neighborhood.
func coreDistances(dists [][]float64, minSamples int) []float64 {
	n := len(dists)
	core := make([]float64, n)
	k := minSamples
	if k > n-1 {
		k = n - 1
	}
	if k < 1 {
		k = 1
	}

	buf := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		buf = buf[:0]
		for j := 0; j < n; j++ {
			if j != i {
				buf = append(buf, dists[i][j])
			}
		}
		sort.Float64s(buf)
		core[i] = buf[k-1]
	}
	return core
}

// mutualReachability is max(core_a, core_b, d(a,b)); it flattens distances
// inside sparse regions so low-density points cannot chain clusters together.
func mutualReachability(dists [][]float64, core []float64, a, b int) float64 {
	d := dists[a][b]
	if core[a] > d {
		d = core[a]
	}
	if core[b] > d {
		d = core[b]
	}
	return d
}

// minimumSpanningTree runs Prim's algorithm over the implicit complete
// mutual-reachability graph. Edges come back sorted ascending by weight,
// ties broken by endpoint indices for determinism.
func minimumSpanningTree(dists [][]float64, core []float64) []mstEdge {
	n := len(dists)
	inTree := make([]bool, n)
	bestDist := make([]float64, n)
	bestFrom := make([]int, n)
	for i := range bestDist {
		bestDist[i] = math.Inf(1)
		bestFrom[i] = -1
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true

	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			w := mutualReachability(dists, core, current, j)
			if w < bestDist[j] {
				bestDist[j] = w
				bestFrom[j] = current
			}
			if next == -1 || bestDist[j] < bestDist[next] ||
				(bestDist[j] == bestDist[next] && j < next) {
				next = j
			}
		}
		edges = append(edges, mstEdge{a: bestFrom[next], b: next, weight: bestDist[next]})
		inTree[next] = true
		current = next
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].weight != edges[j].weight {
			return edges[i].weight < edges[j].weight
		}
		if edges[i].a != edges[j].a {
			return edges[i].a < edges[j].a
		}
		return edges[i].b < edges[j].b
	})
	return edges
}

// dendroNode is one node of the single-linkage hierarchy arena. The first n
// entries are leaves (left/right = -1); each merge appends a node whose
// children are referenced by index, never by pointer.
type dendroNode struct {
	left, right int
	dist        float64
	size        int
}

// unionFind with path compression; used only while building the dendrogram.
type unionFind struct {
	parent []int
	root   []int // arena index of the subtree root for each set
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{parent: make([]int, n), root: make([]int, n)}
	for i := range u.parent {
		u.parent[i] = i
		u.root[i] = i
	}
	return u
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// buildDendrogram processes MST edges ascending, merging components into an
// arena of nodes. Returns the arena; the last node is the hierarchy root.
func buildDendrogram(n int, edges []mstEdge) []dendroNode {
	arena := make([]dendroNode, n, 2*n-1)
	for i := 0; i < n; i++ {
		arena[i] = dendroNode{left: -1, right: -1, size: 1}
	}

	uf := newUnionFind(n)
	for _, e := range edges {
		ra, rb := uf.find(e.a), uf.find(e.b)
		if ra == rb {
			continue
		}
		na, nb := uf.root[ra], uf.root[rb]
		arena = append(arena, dendroNode{
			left:  na,
			right: nb,
			dist:  e.weight,
			size:  arena[na].size + arena[nb].size,
		})
		uf.parent[rb] = ra
		uf.root[ra] = len(arena) - 1
	}
	return arena
}

// euclideanMatrix precomputes pairwise distances.
func euclideanMatrix(points [][]float64) [][]float64 {
	n := len(points)
	dists := make([][]float64, n)
	for i := range dists {
		dists[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var sum float64
			for d := range points[i] {
				diff := points[i][d] - points[j][d]
				sum += diff * diff
			}
			dist := math.Sqrt(sum)
			dists[i][j] = dist
			dists[j][i] = dist
		}
	}
	return dists
}
