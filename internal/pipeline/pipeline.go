// Package pipeline runs the full clustering sequence: preprocess, embed,
// fuse, project, cluster, label, gate, extract highlights, write
// artifacts. Stage order is fixed; only the dense-embedding fan out runs
// concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pulse/internal/clustering"
	"pulse/internal/config"
	"pulse/internal/core"
	"pulse/internal/highlight"
	"pulse/internal/label"
	"pulse/internal/llm"
	"pulse/internal/logger"
	"pulse/internal/manifest"
	"pulse/internal/preprocess"
	"pulse/internal/quality"
	"pulse/internal/reduce"
	"pulse/internal/vectorize"
)

// Pipeline wires the stages together for one or more runs.
type Pipeline struct {
	cfg      *config.Config
	embedder llm.Embedder
}

// New builds a pipeline. The embedder is injected so runs can be tested
// without network access.
func New(cfg *config.Config, embedder llm.Embedder) *Pipeline {
	return &Pipeline{cfg: cfg, embedder: embedder}
}

// Run clusters one batch and writes all artifacts. dropped is the count
// of malformed records the loader discarded; it is carried into the
// manifest for traceability.
//
// Embedding failure aborts the run with no artifacts written. Every other
// degraded outcome (too few records, failed quality gate) completes with
// a warning in the manifest.
func (p *Pipeline) Run(ctx context.Context, records []core.Record, dropped int) (core.Manifest, error) {
	log := logger.Get()
	started := time.Now()

	header := core.Manifest{
		RunID:          uuid.NewString(),
		StartedAt:      started,
		TotalRecords:   len(records),
		DroppedRecords: dropped,
		Params:         p.params(),
	}
	if dropped > 0 {
		header.Warnings = append(header.Warnings, fmt.Sprintf("%d malformed records dropped by the loader", dropped))
	}

	if len(records) == 0 {
		log.Warn().Msg("empty input batch, writing empty manifest")
		return p.write(header, nil, nil, nil, nil, nil)
	}

	log.Info().Int("records", len(records)).Msg("preprocessing")
	cleaned := preprocess.CleanBatch(records)
	cleanedByID := make(map[string]core.CleanedRecord, len(cleaned))
	texts := make([]string, len(cleaned))
	for i, c := range cleaned {
		cleanedByID[c.RecordID] = c
		texts[i] = c.Text
	}

	log.Info().Int("workers", p.cfg.Gemini.Workers).Str("model", p.embedder.Model()).Msg("embedding")
	dense, err := llm.EmbedBatch(ctx, p.embedder, texts, p.cfg.Gemini.Workers)
	if err != nil {
		return core.Manifest{}, fmt.Errorf("dense embedding: %w", err)
	}

	fused, vocab, err := vectorize.FuseBatch(cleaned, dense, p.cfg.Clustering.SparseWeight, vectorize.DefaultVocabularyOptions())
	if err != nil {
		return core.Manifest{}, fmt.Errorf("fusing vectors: %w", err)
	}
	log.Info().Int("vocabulary", vocab.Size()).Float64("lambda", p.cfg.Clustering.SparseWeight).Msg("fused hybrid vectors")

	labels, projected, err := p.assign(fused, &header)
	if err != nil {
		return core.Manifest{}, err
	}

	clusters, noise := partition(records, labels)
	clusters = label.Enrich(clusters, cleanedByID, label.DefaultOptions())
	log.Info().Int("clusters", len(clusters)).Int("noise", len(noise)).Msg("clustered")

	header.Quality = quality.Evaluate(projected, labels, quality.Thresholds{
		MinCohesion: p.cfg.Quality.CohesionThreshold,
		MaxNoise:    p.cfg.Quality.NoiseThreshold,
	})
	if !header.Quality.Pass {
		header.Warnings = append(header.Warnings, fmt.Sprintf(
			"quality gate failed: cohesion %.3f, noise fraction %.3f",
			header.Quality.CohesionScore, header.Quality.NoiseFraction))
		log.Warn().
			Float64("cohesion", header.Quality.CohesionScore).
			Float64("noise_fraction", header.Quality.NoiseFraction).
			Msg("quality gate failed")
	}

	highlights := highlight.Extract(noise, highlight.Options{
		Metric:    p.cfg.Highlights.Metric,
		Threshold: p.cfg.Highlights.ViralThreshold,
	})

	return p.write(header, records, cleanedByID, clusters, noise, highlights)
}

// assign projects the fused vectors and runs density clustering. A batch
// smaller than the minimum cluster size degrades to an all-noise labeling
// with a warning; a batch merely below the projection floor skips the
// reduction and clusters the fused vectors in their native space.
func (p *Pipeline) assign(fused []core.FusedVector, header *core.Manifest) ([]int, []core.ProjectedVector, error) {
	if len(fused) < p.cfg.Clustering.MinClusterSize {
		header.Warnings = append(header.Warnings, fmt.Sprintf(
			"batch of %d records is below the minimum cluster size of %d, all records treated as noise",
			len(fused), p.cfg.Clustering.MinClusterSize))
		labels := make([]int, len(fused))
		for i := range labels {
			labels[i] = core.NoiseID
		}
		return labels, nil, nil
	}

	projected, err := reduce.Project(fused, reduce.DefaultOptions(p.cfg.Clustering.TargetDimensions, p.cfg.Clustering.Seed))
	if errors.Is(err, reduce.ErrInsufficientData) {
		logger.Get().Info().
			Int("records", len(fused)).
			Int("floor", reduce.MinRecords(p.cfg.Clustering.TargetDimensions)).
			Msg("batch below the projection floor, clustering fused vectors directly")
		projected = make([]core.ProjectedVector, len(fused))
		for i, f := range fused {
			values := make([]float64, len(f.Combined))
			copy(values, f.Combined)
			projected[i] = core.ProjectedVector{RecordID: f.RecordID, Values: values}
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("projecting vectors: %w", err)
	}

	points := make([][]float64, len(projected))
	for i, pv := range projected {
		points[i] = pv.Values
	}
	labels, err := clustering.Assign(points, clustering.Options{
		MinClusterSize: p.cfg.Clustering.MinClusterSize,
		MinSamples:     p.cfg.Clustering.MinSamples,
		Policy:         clustering.Policy(p.cfg.Clustering.SelectionPolicy),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clustering: %w", err)
	}
	return labels, projected, nil
}

// partition splits the batch by assignment: every record lands in exactly
// one cluster or in the noise slice, both in batch order. Cluster ids are
// dense, so clusters index by id.
func partition(records []core.Record, labels []int) ([]core.Cluster, []core.Record) {
	var clusters []core.Cluster
	var noise []core.Record

	for i, id := range labels {
		if id == core.NoiseID {
			noise = append(noise, records[i])
			continue
		}
		for id >= len(clusters) {
			clusters = append(clusters, core.Cluster{ID: len(clusters)})
		}
		clusters[id].MemberIDs = append(clusters[id].MemberIDs, records[i].ID)
	}
	return clusters, noise
}

func (p *Pipeline) write(header core.Manifest, records []core.Record, cleaned map[string]core.CleanedRecord, clusters []core.Cluster, noise []core.Record, highlights []core.Highlight) (core.Manifest, error) {
	header.FinishedAt = time.Now()

	m, err := manifest.Write(manifest.Input{
		Manifest:   header,
		Records:    records,
		Cleaned:    cleaned,
		Clusters:   clusters,
		Noise:      noise,
		Highlights: highlights,
	}, manifest.Options{
		Dir:               p.cfg.Output.Directory,
		Host:              p.cfg.Output.Host,
		Metric:            p.cfg.Highlights.Metric,
		ViralThreshold:    p.cfg.Highlights.ViralThreshold,
		NotableThreshold:  1000,
		MaxMembersPerFile: p.cfg.Output.MaxMembersPerFile,
		MaxNotableNoise:   50,
		MaxTopHighlights:  20,
	})
	if err != nil {
		return core.Manifest{}, fmt.Errorf("writing artifacts: %w", err)
	}
	return m, nil
}

func (p *Pipeline) params() core.RunParams {
	return core.RunParams{
		SparseWeight:     p.cfg.Clustering.SparseWeight,
		TargetDimensions: p.cfg.Clustering.TargetDimensions,
		MinClusterSize:   p.cfg.Clustering.MinClusterSize,
		MinSamples:       p.cfg.Clustering.MinSamples,
		SelectionPolicy:  p.cfg.Clustering.SelectionPolicy,
		ViralThreshold:   p.cfg.Highlights.ViralThreshold,
		ViralMetric:      p.cfg.Highlights.Metric,
		Seed:             p.cfg.Clustering.Seed,
		EmbeddingModel:   p.embedder.Model(),
	}
}
