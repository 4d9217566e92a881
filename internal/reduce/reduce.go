// Package reduce projects high-dimensional fused vectors into a small space
// where density estimation is meaningful. Distances concentrate as
// dimensionality grows, so the clusterer needs a projection that preserves
// local neighborhood structure rather than global variance; this is a
// neighbor-graph layout in the UMAP family, deterministic for a fixed seed.
package reduce

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"pulse/internal/core"
	"pulse/internal/logger"
)

// ErrInsufficientData signals a batch too small to estimate a manifold;
// the caller skips clustering entirely rather than consuming degenerate output.
var ErrInsufficientData = errors.New("insufficient data for projection")

// Curve parameters of the low-dimensional similarity kernel
// 1/(1 + a*d^(2b)), fit for min_dist=0, spread=1.
const (
	curveA = 1.929
	curveB = 0.7915
)

// Options configures the projection.
type Options struct {
	TargetDims int   // Output width
	Neighbors  int   // Local neighborhood size (clamped to n-1)
	Epochs     int   // SGD epochs over the neighbor graph
	Seed       int64 // RNG seed; fixed seed means identical output
}

// DefaultOptions returns the standard projection parameters.
func DefaultOptions(targetDims int, seed int64) Options {
	return Options{TargetDims: targetDims, Neighbors: 15, Epochs: 200, Seed: seed}
}

// MinRecords is the smallest batch the projection accepts for a target width.
func MinRecords(targetDims int) int {
	return 3 * targetDims
}

// Project reduces the fused vectors to opts.TargetDims dimensions,
// order-preserving and one-to-one. Vectors already at or below the target
// width pass through unchanged.
func Project(fused []core.FusedVector, opts Options) ([]core.ProjectedVector, error) {
	n := len(fused)
	if n < MinRecords(opts.TargetDims) {
		return nil, fmt.Errorf("%w: %d records, need at least %d", ErrInsufficientData, n, MinRecords(opts.TargetDims))
	}

	inputDim := len(fused[0].Combined)
	if inputDim <= opts.TargetDims {
		out := make([]core.ProjectedVector, n)
		for i, f := range fused {
			values := make([]float64, len(f.Combined))
			copy(values, f.Combined)
			out[i] = core.ProjectedVector{RecordID: f.RecordID, Values: values}
		}
		return out, nil
	}

	k := opts.Neighbors
	if k > n-1 {
		k = n - 1
	}
	if k < 2 {
		k = 2
	}

	logger.Get().Info().
		Int("records", n).
		Int("from", inputDim).
		Int("to", opts.TargetDims).
		Int("neighbors", k).
		Msg("projecting fused vectors")

	graph := buildFuzzyGraph(fused, k)
	embedding := layout(graph, n, opts)

	out := make([]core.ProjectedVector, n)
	for i, f := range fused {
		out[i] = core.ProjectedVector{RecordID: f.RecordID, Values: embedding[i]}
	}
	return out, nil
}

// edge is one weighted link of the symmetrized neighbor graph.
type edge struct {
	from, to int
	weight   float64
}

// buildFuzzyGraph computes exact k nearest neighbors under cosine distance,
// converts distances to local fuzzy membership weights, and symmetrizes with
// the probabilistic t-conorm w_ij + w_ji - w_ij*w_ji.
func buildFuzzyGraph(fused []core.FusedVector, k int) []edge {
	n := len(fused)
	neighborLists := make([][]int, n)
	weightLists := make([][]float64, n)
	directed := make(map[[2]int]float64, n*k)

	for i := 0; i < n; i++ {
		neighbors, dists := nearestNeighbors(fused, i, k)

		// rho: distance to the closest neighbor; sigma: local scale solved so
		// the total membership matches log2(k).
		rho := dists[0]
		sigma := solveSigma(dists, rho, math.Log2(float64(k)))

		weights := make([]float64, k)
		for j := range neighbors {
			d := dists[j] - rho
			if d < 0 {
				d = 0
			}
			w := 1.0
			if sigma > 0 {
				w = math.Exp(-d / sigma)
			}
			weights[j] = w
			directed[[2]int{i, neighbors[j]}] = w
		}
		neighborLists[i] = neighbors
		weightLists[i] = weights
	}

	// Symmetrize in deterministic order: by source index, then neighbor rank.
	seen := make(map[[2]int]bool, n*k)
	edges := make([]edge, 0, n*k)
	for i := 0; i < n; i++ {
		for j, nb := range neighborLists[i] {
			key := [2]int{i, nb}
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			w := weightLists[i][j]
			reverse := directed[[2]int{nb, i}]
			combined := w + reverse - w*reverse
			if combined > 0 {
				edges = append(edges, edge{from: key[0], to: key[1], weight: combined})
			}
		}
	}
	return edges
}

// nearestNeighbors finds the k nearest points to index i by cosine distance,
// ties broken by index for determinism.
func nearestNeighbors(fused []core.FusedVector, i, k int) ([]int, []float64) {
	n := len(fused)
	type candidate struct {
		index int
		dist  float64
	}
	candidates := make([]candidate, 0, n-1)
	for j := 0; j < n; j++ {
		if j == i {
			continue
		}
		candidates = append(candidates, candidate{index: j, dist: CosineDistance(fused[i].Combined, fused[j].Combined)})
	}

	// Partial selection sort; k is small.
	for sel := 0; sel < k; sel++ {
		best := sel
		for j := sel + 1; j < len(candidates); j++ {
			if candidates[j].dist < candidates[best].dist ||
				(candidates[j].dist == candidates[best].dist && candidates[j].index < candidates[best].index) {
				best = j
			}
		}
		candidates[sel], candidates[best] = candidates[best], candidates[sel]
	}

	indices := make([]int, k)
	dists := make([]float64, k)
	for j := 0; j < k; j++ {
		indices[j] = candidates[j].index
		dists[j] = candidates[j].dist
	}
	return indices, dists
}

// solveSigma binary-searches the local bandwidth so that the summed fuzzy
// membership of the neighborhood equals the target.
func solveSigma(dists []float64, rho, target float64) float64 {
	lo, hi := 1e-10, 1000.0
	sigma := 1.0
	for iter := 0; iter < 64; iter++ {
		sigma = (lo + hi) / 2
		var sum float64
		for _, d := range dists {
			adj := d - rho
			if adj < 0 {
				adj = 0
			}
			sum += math.Exp(-adj / sigma)
		}
		if math.Abs(sum-target) < 1e-5 {
			break
		}
		if sum > target {
			hi = sigma
		} else {
			lo = sigma
		}
	}
	return sigma
}

// layout runs negative-sampling SGD over the edge set: connected points
// attract, sampled non-neighbors repel.
func layout(edges []edge, n int, opts Options) [][]float64 {
	rng := rand.New(rand.NewSource(opts.Seed))
	dims := opts.TargetDims

	embedding := make([][]float64, n)
	for i := range embedding {
		embedding[i] = make([]float64, dims)
		for d := range embedding[i] {
			embedding[i][d] = rng.Float64()*20 - 10
		}
	}

	var maxWeight float64
	for _, e := range edges {
		if e.weight > maxWeight {
			maxWeight = e.weight
		}
	}
	if maxWeight == 0 {
		return embedding
	}

	const negativeSamples = 5
	epochs := opts.Epochs
	if epochs < 1 {
		epochs = 1
	}

	for epoch := 0; epoch < epochs; epoch++ {
		alpha := 1.0 - float64(epoch)/float64(epochs)

		for _, e := range edges {
			// Sample edges proportionally to weight.
			if rng.Float64() > e.weight/maxWeight {
				continue
			}

			attract(embedding[e.from], embedding[e.to], alpha)
			for s := 0; s < negativeSamples; s++ {
				other := rng.Intn(n)
				if other == e.from || other == e.to {
					continue
				}
				repel(embedding[e.from], embedding[other], alpha)
			}
		}
	}
	return embedding
}

func attract(a, b []float64, alpha float64) {
	d2 := squaredDistance(a, b)
	if d2 <= 0 {
		return
	}
	grad := (-2 * curveA * curveB * math.Pow(d2, curveB-1)) / (1 + curveA*math.Pow(d2, curveB))
	applyGradient(a, b, grad, alpha)
}

func repel(a, b []float64, alpha float64) {
	d2 := squaredDistance(a, b)
	grad := (2 * curveB) / ((0.001 + d2) * (1 + curveA*math.Pow(d2, curveB)))
	applyGradient(a, b, grad, alpha)
}

func applyGradient(a, b []float64, grad, alpha float64) {
	for d := range a {
		delta := clip(grad*(a[d]-b[d])) * alpha
		a[d] += delta
		b[d] -= delta
	}
}

func clip(x float64) float64 {
	if x > 4 {
		return 4
	}
	if x < -4 {
		return -4
	}
	return x
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// CosineDistance is 1 - cosine similarity, clamped to [0, 2].
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return 1.0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 1.0
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}
