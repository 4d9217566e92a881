package core

import "time"

// NoiseID is the sentinel cluster id for records in low-density regions.
const NoiseID = -1

// Record represents one post fetched from the timeline. Records arrive
// deduplicated with unique ids; identity is the id.
type Record struct {
	ID        string    `json:"id"`         // Unique post id
	Text      string    `json:"text"`       // Raw post text (may be empty)
	CreatedAt time.Time `json:"created_at"` // Publication timestamp
	Author    string    `json:"author"`     // Author screen name
	Followers int64     `json:"followers"`  // Author follower count at fetch time
	Verified  bool      `json:"verified"`   // Author verification flag
	Likes     int64     `json:"likes"`      // Like count
	Reshares  int64     `json:"reshares"`   // Repost count
	Replies   int64     `json:"replies"`    // Reply count
	Views     int64     `json:"views"`      // View count (0 if unavailable upstream)
	IsReshare bool      `json:"is_reshare"` // Whether the post is a repost
	IsQuote   bool      `json:"is_quote"`   // Whether the post quotes another post
}

// Engagement returns the value of the named engagement metric.
// Unknown metric names fall back to likes.
func (r Record) Engagement(metric string) int64 {
	switch metric {
	case "reshares":
		return r.Reshares
	case "replies":
		return r.Replies
	case "views":
		return r.Views
	default:
		return r.Likes
	}
}

// CleanedRecord is the preprocessed form of a Record, recomputed each run.
type CleanedRecord struct {
	RecordID string   `json:"record_id"` // Back-reference to the source Record
	Text     string   `json:"text"`      // Normalized text (URLs stripped, mentions generalized)
	Hashtags []string `json:"hashtags"`  // Hashtags found in the raw text, in order
	Cashtags []string `json:"cashtags"`  // Cashtags ($BTC style), in order
	Mentions []string `json:"mentions"`  // Mentioned handles, in order
	Entities []string `json:"entities"`  // Capitalized spans plus hashtags and cashtags, deduplicated
}

// FusedVector is the hybrid representation of one record: a dense semantic
// embedding concatenated with a weighted sparse lexical vector.
type FusedVector struct {
	RecordID string    `json:"record_id"`
	Dense    []float64 `json:"dense"`     // Fixed-width embedding
	Sparse   []float64 `json:"sparse"`    // TF-IDF vector over the run vocabulary
	Combined []float64 `json:"combined"`  // [dense ; lambda * sparse], L2-normalized
	ZeroNorm bool      `json:"zero_norm"` // Combined vector had near-zero norm before normalization
}

// ProjectedVector is the low-dimensional projection used for density
// estimation. It exists only for the duration of a run.
type ProjectedVector struct {
	RecordID string
	Values   []float64
}

// Cluster groups records that share a topic. Created by the clusterer,
// enriched with a label and terms by the labeler, read-only afterwards.
type Cluster struct {
	ID        int      `json:"id"`         // Dense 0-based id, discovery order
	Label     string   `json:"label"`      // Short human-readable label
	TopTerms  []string `json:"top_terms"`  // Representative terms, relevance-then-diversity order
	MemberIDs []string `json:"member_ids"` // Record ids in batch order
}

// Size returns the member count.
func (c Cluster) Size() int { return len(c.MemberIDs) }

// Highlight is a noise record promoted for high engagement. Mutually
// exclusive with cluster membership.
type Highlight struct {
	RecordID string `json:"record_id"`
	Author   string `json:"author"`
	Metric   int64  `json:"metric"` // Value of the configured engagement metric
	Text     string `json:"text"`   // Raw text prefix for the manifest summary
}

// QualityReport carries the per-run clustering quality verdict.
type QualityReport struct {
	CohesionScore float64 `json:"cohesion_score"` // Mean silhouette over non-noise points, [-1,1]
	NoiseFraction float64 `json:"noise_fraction"` // Noise records / all records, [0,1]
	ClusterCount  int     `json:"cluster_count"`
	Pass          bool    `json:"pass"`
}

// EngagementTier buckets a like count into a coarse engagement level.
func EngagementTier(likes int64) string {
	switch {
	case likes >= 50000:
		return "viral"
	case likes >= 10000:
		return "high"
	case likes >= 1000:
		return "medium"
	default:
		return "low"
	}
}

// RunParams is the configuration snapshot recorded in the Manifest.
type RunParams struct {
	SparseWeight     float64 `json:"sparse_weight"`
	TargetDimensions int     `json:"target_dimensions"`
	MinClusterSize   int     `json:"min_cluster_size"`
	MinSamples       int     `json:"min_samples"`
	SelectionPolicy  string  `json:"selection_policy"`
	ViralThreshold   int64   `json:"viral_threshold"`
	ViralMetric      string  `json:"viral_metric"`
	Seed             int64   `json:"seed"`
	EmbeddingModel   string  `json:"embedding_model"`
}

// ClusterSummary is the per-cluster entry in the Manifest.
type ClusterSummary struct {
	ID               int            `json:"id"`
	Label            string         `json:"label"`
	Size             int            `json:"size"`
	TopTerms         []string       `json:"top_terms"`
	MemberIDs        []string       `json:"member_ids"`
	File             string         `json:"file"`
	PrioritizedCount int            `json:"prioritized_count"`
	EngagementTiers  map[string]int `json:"engagement_tiers"`
	TopRecord        *RecordSummary `json:"top_record,omitempty"`
}

// RecordSummary is a short traceable reference to a record.
type RecordSummary struct {
	RecordID string `json:"record_id"`
	Author   string `json:"author"`
	Metric   int64  `json:"metric"`
	Text     string `json:"text"`
}

// HighlightSummary aggregates the viral highlight output in the Manifest.
type HighlightSummary struct {
	Count     int         `json:"count"`
	Threshold int64       `json:"threshold"`
	Metric    string      `json:"metric"`
	File      string      `json:"file,omitempty"`
	Top       []Highlight `json:"top"` // At most 20, metric-descending
}

// Manifest is the write-once machine-readable output of a run.
type Manifest struct {
	RunID          string           `json:"run_id"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
	TotalRecords   int              `json:"total_records"`
	Clustered      int              `json:"clustered_records"`
	NoiseRecords   int              `json:"noise_records"`
	DroppedRecords int              `json:"dropped_records"` // Malformed inputs dropped by the loader
	ClusterCount   int              `json:"cluster_count"`
	Params         RunParams        `json:"params"`
	Quality        QualityReport    `json:"quality"`
	Clusters       []ClusterSummary `json:"clusters"`
	Highlights     HighlightSummary `json:"highlights"`
	Warnings       []string         `json:"warnings,omitempty"`
}
