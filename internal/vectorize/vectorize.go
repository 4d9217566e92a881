// Package vectorize builds the hybrid record representation: a dense
// semantic embedding concatenated with a weighted sparse TF-IDF vector.
// The sparse component anchors clusters in exact lexical overlap so that
// embeddings cannot group text on writing style alone.
package vectorize

import (
	"fmt"
	"math"
	"strings"

	"pulse/internal/core"
	"pulse/internal/logger"
)

// zeroNormEpsilon flags combined vectors with effectively no signal.
const zeroNormEpsilon = 1e-9

// SparseText builds the document the lexical vocabulary is fit on:
// normalized text plus entities and hashtags repeated for weight.
func SparseText(cleaned core.CleanedRecord) string {
	parts := []string{cleaned.Text}
	for i := 0; i < 2; i++ {
		parts = append(parts, cleaned.Entities...)
		parts = append(parts, cleaned.Hashtags...)
	}
	return strings.Join(parts, " ")
}

// FuseBatch combines dense embeddings with a freshly-fit sparse vocabulary:
// combined = [dense ; lambda * sparse], L2-normalized. lambda = 0 degenerates
// to pure semantic clustering; large lambda approaches keyword clustering.
// Zero-norm vectors are flagged, not excluded; downstream density estimation
// treats them as natural noise candidates.
func FuseBatch(cleaned []core.CleanedRecord, dense [][]float64, lambda float64, opts VocabularyOptions) ([]core.FusedVector, *Vocabulary, error) {
	if len(cleaned) != len(dense) {
		return nil, nil, fmt.Errorf("cleaned/dense length mismatch: %d vs %d", len(cleaned), len(dense))
	}

	docs := make([]string, len(cleaned))
	for i, c := range cleaned {
		docs[i] = SparseText(c)
	}
	vocab := BuildVocabulary(docs, opts)

	log := logger.Get()
	log.Info().
		Int("records", len(cleaned)).
		Int("vocabulary", vocab.Size()).
		Float64("lambda", lambda).
		Msg("fusing dense and sparse vectors")

	fused := make([]core.FusedVector, len(cleaned))
	zeroNorm := 0
	for i, c := range cleaned {
		sparse := vocab.Vector(docs[i])
		combined := make([]float64, 0, len(dense[i])+len(sparse))
		combined = append(combined, dense[i]...)
		for _, x := range sparse {
			combined = append(combined, lambda*x)
		}

		flagged := l2Norm(combined) < zeroNormEpsilon
		if flagged {
			zeroNorm++
		} else {
			normalize(combined)
		}

		fused[i] = core.FusedVector{
			RecordID: c.RecordID,
			Dense:    dense[i],
			Sparse:   sparse,
			Combined: combined,
			ZeroNorm: flagged,
		}
	}

	if zeroNorm > 0 {
		log.Warn().Int("count", zeroNorm).Msg("records with near-zero fused vectors")
	}
	return fused, vocab, nil
}

func l2Norm(vec []float64) float64 {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	return math.Sqrt(sum)
}
