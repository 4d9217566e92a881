// Package quality scores a clustering outcome and applies the acceptance
// gate. A failed gate never aborts the run; the verdict travels in the
// manifest and consumers decide what to do with degraded clusters.
package quality

import (
	"math"

	"pulse/internal/core"
)

// Thresholds is the configurable pass condition.
type Thresholds struct {
	MinCohesion float64 // mean silhouette must exceed this
	MaxNoise    float64 // noise fraction must stay below this
}

// Evaluate computes the cohesion score and noise fraction for one run.
// labels[i] is the cluster id of projected[i], core.NoiseID for noise.
// Noise points count toward the noise fraction but are excluded from the
// silhouette, both as subjects and as neighbors.
func Evaluate(projected []core.ProjectedVector, labels []int, th Thresholds) core.QualityReport {
	n := len(labels)
	report := core.QualityReport{}
	if n == 0 {
		return report
	}

	noise := 0
	clusters := map[int]bool{}
	for _, label := range labels {
		if label == core.NoiseID {
			noise++
			continue
		}
		clusters[label] = true
	}
	report.NoiseFraction = float64(noise) / float64(n)
	report.ClusterCount = len(clusters)

	// Silhouette needs at least two clusters to measure separation.
	// Fewer is a valid outcome scored as zero cohesion.
	if len(clusters) >= 2 {
		report.CohesionScore = meanSilhouette(projected, labels)
	}

	report.Pass = report.CohesionScore > th.MinCohesion && report.NoiseFraction < th.MaxNoise
	return report
}

// meanSilhouette averages the per-point silhouette over non-noise points.
func meanSilhouette(projected []core.ProjectedVector, labels []int) float64 {
	dists := distanceMatrix(projected)

	sum, count := 0.0, 0
	for i, label := range labels {
		if label == core.NoiseID {
			continue
		}
		sum += silhouette(i, labels, dists)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// silhouette scores one point in [-1, 1]: positive when it sits closer to
// its own cluster than to the nearest other cluster.
func silhouette(i int, labels []int, dists [][]float64) float64 {
	a := meanIntraDistance(i, labels, dists)
	b := minInterDistance(i, labels, dists)

	switch {
	case a < b:
		return 1 - a/b
	case a > b:
		return b/a - 1
	default:
		return 0
	}
}

// meanIntraDistance is the mean distance from point i to the other members
// of its cluster. A singleton scores 0.
func meanIntraDistance(i int, labels []int, dists [][]float64) float64 {
	sum, count := 0.0, 0
	for j, label := range labels {
		if j == i || label != labels[i] {
			continue
		}
		sum += dists[i][j]
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// minInterDistance is the smallest mean distance from point i to any other
// cluster. Noise points are not a cluster and never attract.
func minInterDistance(i int, labels []int, dists [][]float64) float64 {
	sums := map[int]float64{}
	counts := map[int]int{}
	for j, label := range labels {
		if label == core.NoiseID || label == labels[i] {
			continue
		}
		sums[label] += dists[i][j]
		counts[label]++
	}

	min := math.MaxFloat64
	for label, count := range counts {
		if mean := sums[label] / float64(count); mean < min {
			min = mean
		}
	}
	if min == math.MaxFloat64 {
		return 1
	}
	return min
}

// distanceMatrix is the symmetric pairwise Euclidean distance matrix over
// the projected points.
func distanceMatrix(projected []core.ProjectedVector) [][]float64 {
	n := len(projected)
	dists := make([][]float64, n)
	for i := range dists {
		dists[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var sum float64
			for d := range projected[i].Values {
				diff := projected[i].Values[d] - projected[j].Values[d]
				sum += diff * diff
			}
			dist := math.Sqrt(sum)
			dists[i][j] = dist
			dists[j][i] = dist
		}
	}
	return dists
}
