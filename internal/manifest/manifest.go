// Package manifest serializes a run's results: one text file per cluster
// for downstream summarization, a viral-highlights file, a notable-noise
// file, and a machine-readable manifest.json tying it all together.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"pulse/internal/core"
)

// Options controls where and how artifacts are written.
type Options struct {
	Dir               string // output directory, created if missing
	Host              string // canonical link host, e.g. "x.com"
	Metric            string // engagement metric for ordering and display
	ViralThreshold    int64  // members at or above lead their cluster file
	NotableThreshold  int64  // noise records at or above land in noise_notable.txt
	MaxMembersPerFile int    // cap on members written per cluster file
	MaxNotableNoise   int    // cap on noise_notable.txt entries
	MaxTopHighlights  int    // cap on highlight entries embedded in manifest.json
}

// DefaultOptions returns the production write configuration.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:               dir,
		Host:              "x.com",
		Metric:            "likes",
		ViralThreshold:    5000,
		NotableThreshold:  1000,
		MaxMembersPerFile: 100,
		MaxNotableNoise:   50,
		MaxTopHighlights:  20,
	}
}

// Input is everything a finished run hands to the writer.
type Input struct {
	Manifest   core.Manifest // header fields filled by the pipeline
	Records    []core.Record
	Cleaned    map[string]core.CleanedRecord
	Clusters   []core.Cluster
	Noise      []core.Record // noise partition, batch order
	Highlights []core.Highlight
}

var slugStrip = regexp.MustCompile(`[^\w\s-]`)

// Write emits all artifacts under opts.Dir and returns the completed
// manifest. The cluster and highlight files are written first;
// manifest.json goes last, atomically, so a manifest on disk always
// describes files that exist.
func Write(in Input, opts Options) (core.Manifest, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return core.Manifest{}, fmt.Errorf("creating output dir: %w", err)
	}

	byID := make(map[string]core.Record, len(in.Records))
	for _, rec := range in.Records {
		byID[rec.ID] = rec
	}

	m := in.Manifest
	m.ClusterCount = len(in.Clusters)
	m.NoiseRecords = len(in.Noise)
	m.Clusters = make([]core.ClusterSummary, 0, len(in.Clusters))

	for _, cluster := range in.Clusters {
		summary, err := writeClusterFile(cluster, byID, in.Cleaned, opts)
		if err != nil {
			return core.Manifest{}, err
		}
		m.Clustered += summary.Size
		m.Clusters = append(m.Clusters, summary)
	}

	highlightFile, err := writeHighlightsFile(in.Highlights, opts)
	if err != nil {
		return core.Manifest{}, err
	}
	m.Highlights = summarizeHighlights(in.Highlights, highlightFile, opts)

	if err := writeNotableNoise(in.Noise, in.Cleaned, opts); err != nil {
		return core.Manifest{}, err
	}

	if err := writeJSON(filepath.Join(opts.Dir, "manifest.json"), m); err != nil {
		return core.Manifest{}, err
	}
	return m, nil
}

// writeClusterFile renders one cluster's prioritized members to
// cluster_NN_<slug>.txt and returns its manifest summary.
func writeClusterFile(cluster core.Cluster, byID map[string]core.Record, cleaned map[string]core.CleanedRecord, opts Options) (core.ClusterSummary, error) {
	members := make([]core.Record, 0, cluster.Size())
	for _, id := range cluster.MemberIDs {
		if rec, ok := byID[id]; ok {
			members = append(members, rec)
		}
	}
	bySortedMetric := sortedByMetric(members, opts.Metric)
	prioritized := prioritize(bySortedMetric, opts.Metric, opts.ViralThreshold, opts.MaxMembersPerFile)

	filename := fmt.Sprintf("cluster_%02d_%s.txt", cluster.ID, slug(cluster.Label))

	var b strings.Builder
	fmt.Fprintf(&b, "# Cluster %d: %s\n", cluster.ID, cluster.Label)
	fmt.Fprintf(&b, "# Record count: %d\n\n", cluster.Size())
	b.WriteString("Summarize the key narratives, stories, and sentiment in these posts.\n")
	b.WriteString("Include specific examples with @handles and post IDs for sourcing.\n\n---\n\n")
	writeMembers(&b, prioritized, cleaned, opts)

	if err := os.WriteFile(filepath.Join(opts.Dir, filename), []byte(b.String()), 0o644); err != nil {
		return core.ClusterSummary{}, fmt.Errorf("writing cluster file: %w", err)
	}

	tiers := map[string]int{}
	for _, rec := range members {
		tiers[core.EngagementTier(rec.Likes)]++
	}

	summary := core.ClusterSummary{
		ID:               cluster.ID,
		Label:            cluster.Label,
		Size:             cluster.Size(),
		TopTerms:         cluster.TopTerms,
		MemberIDs:        cluster.MemberIDs,
		File:             filename,
		PrioritizedCount: len(prioritized),
		EngagementTiers:  tiers,
	}
	if len(bySortedMetric) > 0 {
		top := bySortedMetric[0]
		summary.TopRecord = &core.RecordSummary{
			RecordID: top.ID,
			Author:   top.Author,
			Metric:   top.Engagement(opts.Metric),
			Text:     truncate(flatten(top.Text), 100),
		}
	}
	return summary, nil
}

// prioritize orders members for the cluster file: viral-grade records
// first by metric descending, then a diversity sample spread evenly over
// the metric-sorted remainder, capped at max. Input must already be
// metric-sorted descending.
func prioritize(sorted []core.Record, metric string, viralThreshold int64, max int) []core.Record {
	if max <= 0 || len(sorted) <= max {
		return sorted
	}

	split := 0
	for split < len(sorted) && sorted[split].Engagement(metric) >= viralThreshold {
		split++
	}
	if split >= max {
		return sorted[:max]
	}

	out := append([]core.Record(nil), sorted[:split]...)
	rest := sorted[split:]
	remaining := max - split
	step := (len(rest) + remaining - 1) / remaining
	for i := 0; i < len(rest) && len(out) < max; i += step {
		out = append(out, rest[i])
	}
	return out
}

func writeHighlightsFile(highlights []core.Highlight, opts Options) (string, error) {
	if len(highlights) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("# Viral Highlights\n")
	b.WriteString("# High-engagement posts that didn't fit into topic clusters\n")
	fmt.Fprintf(&b, "# Post count: %d\n\n", len(highlights))
	b.WriteString("These are standalone viral posts - unique content that resonated but doesn't\n")
	b.WriteString("belong to a trending topic or narrative. Worth including in the digest.\n\n---\n\n")

	for i, h := range highlights {
		fmt.Fprintf(&b, "[%d] @%s (%d %s)\n", i+1, h.Author, h.Metric, opts.Metric)
		fmt.Fprintf(&b, "ID: %s\n", h.RecordID)
		fmt.Fprintf(&b, "Text: %s\n\n", truncate(flatten(h.Text), 500))
	}

	filename := "viral_highlights.txt"
	if err := os.WriteFile(filepath.Join(opts.Dir, filename), []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing highlights file: %w", err)
	}
	return filename, nil
}

func summarizeHighlights(highlights []core.Highlight, file string, opts Options) core.HighlightSummary {
	top := highlights
	if len(top) > opts.MaxTopHighlights {
		top = top[:opts.MaxTopHighlights]
	}
	return core.HighlightSummary{
		Count:     len(highlights),
		Threshold: opts.ViralThreshold,
		Metric:    opts.Metric,
		File:      file,
		Top:       top,
	}
}

// writeNotableNoise saves the above-notable-threshold slice of the noise
// partition, capped, for manual review. Nothing is written when no noise
// record qualifies.
func writeNotableNoise(noise []core.Record, cleaned map[string]core.CleanedRecord, opts Options) error {
	notable := make([]core.Record, 0)
	for _, rec := range noise {
		if rec.Engagement(opts.Metric) >= opts.NotableThreshold {
			notable = append(notable, rec)
		}
	}
	if len(notable) == 0 {
		return nil
	}
	notable = sortedByMetric(notable, opts.Metric)
	if len(notable) > opts.MaxNotableNoise {
		notable = notable[:opts.MaxNotableNoise]
	}

	var b strings.Builder
	b.WriteString("# Uncategorized (noise)\n")
	fmt.Fprintf(&b, "# Record count: %d\n\n---\n\n", len(notable))
	writeMembers(&b, notable, cleaned, opts)

	if err := os.WriteFile(filepath.Join(opts.Dir, "noise_notable.txt"), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing noise file: %w", err)
	}
	return nil
}

// writeMembers renders record lines: handle, metric, id, canonical URL,
// cleaned text.
func writeMembers(b *strings.Builder, records []core.Record, cleaned map[string]core.CleanedRecord, opts Options) {
	for i, rec := range records {
		text := rec.Text
		if c, ok := cleaned[rec.ID]; ok {
			text = c.Text
		}
		fmt.Fprintf(b, "[%d] @%s (%d %s)\n", i+1, rec.Author, rec.Engagement(opts.Metric), opts.Metric)
		fmt.Fprintf(b, "ID: %s\n", rec.ID)
		fmt.Fprintf(b, "URL: https://%s/%s/status/%s\n", opts.Host, rec.Author, rec.ID)
		fmt.Fprintf(b, "Text: %s\n\n", truncate(flatten(text), 500))
	}
}

// writeJSON writes v indented to path via a temp file and rename, so a
// crash mid-write never leaves a truncated manifest behind.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing manifest: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// sortedByMetric returns a copy sorted metric-descending, id-ascending on
// ties.
func sortedByMetric(records []core.Record, metric string) []core.Record {
	out := append([]core.Record(nil), records...)
	sort.Slice(out, func(a, b int) bool {
		av, bv := out[a].Engagement(metric), out[b].Engagement(metric)
		if av != bv {
			return av > bv
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// slug makes a label safe for a filename: punctuation stripped, spaces
// underscored, at most 40 runes.
func slug(label string) string {
	s := slugStrip.ReplaceAllString(label, "")
	s = strings.ReplaceAll(s, " ", "_")
	return truncate(s, 40)
}

func flatten(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
