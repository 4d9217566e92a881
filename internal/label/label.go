// Package label derives short human-readable labels and representative
// terms for clusters. Scoring is cluster-contrastive: a term is weighted
// by its frequency inside the cluster and discounted by how many other
// clusters also use it, so labels describe what sets a cluster apart.
package label

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"pulse/internal/core"
	"pulse/internal/vectorize"
)

// Options controls term selection.
type Options struct {
	// CandidateTerms is the size of the scored candidate pool per cluster.
	CandidateTerms int
	// TopTerms is how many diverse terms survive selection.
	TopTerms int
	// Diversity balances relevance against redundancy in [0,1]:
	// 1 is pure relevance, 0 is pure diversity.
	Diversity float64
	// StrongEntityRatio is the member-coverage fraction above which the
	// most common entity takes over the label.
	StrongEntityRatio float64
}

// DefaultOptions returns the selection parameters used in production runs.
func DefaultOptions() Options {
	return Options{
		CandidateTerms:    10,
		TopTerms:          5,
		Diversity:         0.5,
		StrongEntityRatio: 0.3,
	}
}

// scoredTerm pairs a candidate term with its contrastive score. order is
// the first-occurrence rank within the cluster document and breaks ties.
type scoredTerm struct {
	term  string
	score float64
	order int
}

// Enrich fills in Label and TopTerms for every cluster. Membership is
// never modified. cleaned maps record id to its preprocessed form;
// members without an entry contribute nothing to the label.
func Enrich(clusters []core.Cluster, cleaned map[string]core.CleanedRecord, opts Options) []core.Cluster {
	if len(clusters) == 0 {
		return clusters
	}

	// Per-cluster term frequencies and the cross-cluster document
	// frequency drive the contrastive score.
	freqs := make([]map[string]int, len(clusters))
	orders := make([]map[string]int, len(clusters))
	totals := make([]int, len(clusters))
	clusterDF := map[string]int{}

	for i, c := range clusters {
		freqs[i] = map[string]int{}
		orders[i] = map[string]int{}
		add := func(term string) {
			if freqs[i][term] == 0 {
				orders[i][term] = len(orders[i])
			}
			freqs[i][term]++
			totals[i]++
		}
		for _, id := range c.MemberIDs {
			rec, ok := cleaned[id]
			if !ok {
				continue
			}
			for _, term := range vectorize.Terms(rec.Text) {
				add(term)
			}
			// Tags and entities are strong label signals: they weigh in on
			// top of the text terms, so a tagged word outranks an equally
			// frequent plain one.
			for _, tag := range rec.Hashtags {
				add(strings.ToLower(tag))
			}
			for _, entity := range rec.Entities {
				add(strings.ToLower(entity))
			}
		}
		for term := range freqs[i] {
			clusterDF[term]++
		}
	}

	k := float64(len(clusters))
	enriched := make([]core.Cluster, len(clusters))
	for i, c := range clusters {
		candidates := scoreTerms(freqs[i], orders[i], totals[i], clusterDF, k, opts.CandidateTerms)
		diverse := selectDiverse(candidates, opts.TopTerms, opts.Diversity)

		c.TopTerms = make([]string, len(diverse))
		for j, st := range diverse {
			c.TopTerms[j] = st.term
		}
		c.Label = buildLabel(c, diverse, cleaned, opts.StrongEntityRatio)
		enriched[i] = c
	}
	return enriched
}

// scoreTerms ranks a cluster's terms by tf · log(1 + k/df) and keeps the
// top limit. Ties break toward the term seen earlier in the cluster.
func scoreTerms(freq, order map[string]int, total int, clusterDF map[string]int, k float64, limit int) []scoredTerm {
	if total == 0 {
		return nil
	}
	scored := make([]scoredTerm, 0, len(freq))
	for term, count := range freq {
		tf := float64(count) / float64(total)
		idf := math.Log(1 + k/float64(clusterDF[term]))
		scored = append(scored, scoredTerm{term: term, score: tf * idf, order: order[term]})
	}
	sort.Slice(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].order < scored[b].order
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// selectDiverse applies maximal-marginal-relevance over the ranked
// candidates: each pick maximizes diversity*relevance minus the strongest
// word overlap with anything already selected.
func selectDiverse(candidates []scoredTerm, topK int, diversity float64) []scoredTerm {
	if len(candidates) == 0 {
		return nil
	}
	selected := make([]scoredTerm, 0, topK)
	remaining := append([]scoredTerm(nil), candidates...)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		if len(selected) > 0 {
			bestScore := math.Inf(-1)
			for idx, cand := range remaining {
				maxSim := 0.0
				for _, s := range selected {
					if sim := wordOverlap(cand.term, s.term); sim > maxSim {
						maxSim = sim
					}
				}
				score := diversity*cand.score - (1-diversity)*maxSim
				if score > bestScore {
					bestScore = score
					bestIdx = idx
				}
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// wordOverlap measures similarity between two terms as shared words over
// the larger word set.
func wordOverlap(a, b string) float64 {
	aw := strings.Fields(strings.ToLower(a))
	bw := strings.Fields(strings.ToLower(b))
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	set := make(map[string]bool, len(aw))
	for _, w := range aw {
		set[w] = true
	}
	shared := 0
	for _, w := range bw {
		if set[w] {
			shared++
		}
	}
	larger := len(aw)
	if len(bw) > larger {
		larger = len(bw)
	}
	return float64(shared) / float64(larger)
}

// buildLabel renders the final label. A "strong" entity (one covering more
// than ratio of the members) headlines it; otherwise the label joins the
// top selected terms.
func buildLabel(c core.Cluster, terms []scoredTerm, cleaned map[string]core.CleanedRecord, ratio float64) string {
	if entity := strongEntity(c, cleaned, ratio); entity != "" && len(terms) > 0 {
		return fmt.Sprintf("%s: %s", entity, terms[0].term)
	}
	if len(terms) == 0 {
		return fmt.Sprintf("cluster_%d", c.ID)
	}
	n := 3
	if len(terms) < n {
		n = len(terms)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = terms[i].term
	}
	return strings.Join(parts, " / ")
}

// strongEntity returns the most common entity among the cluster's members
// when it appears in more than ratio of them, otherwise "".
func strongEntity(c core.Cluster, cleaned map[string]core.CleanedRecord, ratio float64) string {
	if c.Size() == 0 {
		return ""
	}
	counts := map[string]int{}
	order := map[string]int{}
	for _, id := range c.MemberIDs {
		rec, ok := cleaned[id]
		if !ok {
			continue
		}
		for _, e := range rec.Entities {
			if counts[e] == 0 {
				order[e] = len(order)
			}
			counts[e]++
		}
	}
	top, topCount := "", 0
	for e, count := range counts {
		if count > topCount || (count == topCount && top != "" && order[e] < order[top]) {
			top, topCount = e, count
		}
	}
	if top == "" || float64(topCount)/float64(c.Size()) <= ratio {
		return ""
	}
	return top
}
