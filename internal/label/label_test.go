package label

import (
	"strings"
	"testing"

	"pulse/internal/core"
)

func cleanedFixture() map[string]core.CleanedRecord {
	return map[string]core.CleanedRecord{
		"a1": {RecordID: "a1", Text: "bitcoin rally continues as bitcoin price climbs"},
		"a2": {RecordID: "a2", Text: "bitcoin price breaks resistance, traders celebrate"},
		"a3": {RecordID: "a3", Text: "massive bitcoin rally across exchanges"},
		"b1": {RecordID: "b1", Text: "new language model benchmark released today"},
		"b2": {RecordID: "b2", Text: "benchmark results show model gains"},
		"b3": {RecordID: "b3", Text: "open model tops the benchmark leaderboard"},
	}
}

func TestEnrichPicksContrastiveTerms(t *testing.T) {
	clusters := []core.Cluster{
		{ID: 0, MemberIDs: []string{"a1", "a2", "a3"}},
		{ID: 1, MemberIDs: []string{"b1", "b2", "b3"}},
	}

	got := Enrich(clusters, cleanedFixture(), DefaultOptions())

	if len(got) != 2 {
		t.Fatalf("Enrich() returned %d clusters, want 2", len(got))
	}
	if !containsTerm(got[0].TopTerms, "bitcoin") {
		t.Errorf("cluster 0 terms %v missing dominant term", got[0].TopTerms)
	}
	if !containsTerm(got[1].TopTerms, "benchmark") && !containsTerm(got[1].TopTerms, "model") {
		t.Errorf("cluster 1 terms %v missing dominant term", got[1].TopTerms)
	}
	if containsTerm(got[0].TopTerms, "benchmark") {
		t.Errorf("cluster 0 terms %v leaked from the other cluster", got[0].TopTerms)
	}
	for _, c := range got {
		if c.Label == "" {
			t.Errorf("cluster %d: empty label", c.ID)
		}
	}
}

func TestEnrichPreservesMembership(t *testing.T) {
	clusters := []core.Cluster{{ID: 0, MemberIDs: []string{"a1", "a2", "a3"}}}
	got := Enrich(clusters, cleanedFixture(), DefaultOptions())
	if len(got[0].MemberIDs) != 3 || got[0].MemberIDs[0] != "a1" {
		t.Errorf("membership changed: %v", got[0].MemberIDs)
	}
}

func TestEnrichStrongEntityHeadlinesLabel(t *testing.T) {
	cleaned := map[string]core.CleanedRecord{
		"p1": {RecordID: "p1", Text: "openai ships a new reasoning system", Entities: []string{"OpenAI"}},
		"p2": {RecordID: "p2", Text: "openai reasoning system impresses early testers", Entities: []string{"OpenAI"}},
		"p3": {RecordID: "p3", Text: "the reasoning system rollout begins"},
	}
	clusters := []core.Cluster{{ID: 0, MemberIDs: []string{"p1", "p2", "p3"}}}

	got := Enrich(clusters, cleaned, DefaultOptions())

	if !strings.HasPrefix(got[0].Label, "OpenAI: ") {
		t.Errorf("label %q, want strong-entity prefix", got[0].Label)
	}
}

func TestEnrichTagSignalsOutrankPlainWords(t *testing.T) {
	// A tagged word and an entity phrase weigh in on top of the text
	// terms, so each outranks the cluster's equally frequent plain words.
	cleaned := map[string]core.CleanedRecord{
		"g1": {RecordID: "g1", Text: "panel efficiency gains solar", Hashtags: []string{"solar"}, Entities: []string{"solar"}},
		"g2": {RecordID: "g2", Text: "rooftop installs surging solar", Hashtags: []string{"solar"}, Entities: []string{"solar"}},
		"g3": {RecordID: "g3", Text: "grid payback shrinking solar", Hashtags: []string{"solar"}, Entities: []string{"solar"}},
		"m1": {RecordID: "m1", Text: "mayor office says budget approved", Entities: []string{"Mayor Office"}},
		"m2": {RecordID: "m2", Text: "mayor office delays budget vote", Entities: []string{"Mayor Office"}},
		"m3": {RecordID: "m3", Text: "mayor office schedules budget hearing", Entities: []string{"Mayor Office"}},
	}
	clusters := []core.Cluster{
		{ID: 0, MemberIDs: []string{"g1", "g2", "g3"}},
		{ID: 1, MemberIDs: []string{"m1", "m2", "m3"}},
	}

	got := Enrich(clusters, cleaned, DefaultOptions())

	if len(got[0].TopTerms) == 0 || got[0].TopTerms[0] != "solar" {
		t.Errorf("cluster 0 terms %v, want the tagged word first", got[0].TopTerms)
	}
	if !containsTerm(got[1].TopTerms, "mayor office") {
		t.Errorf("cluster 1 terms %v, want the entity phrase as a candidate", got[1].TopTerms)
	}
}

func TestEnrichWeakEntityFallsBackToTerms(t *testing.T) {
	cleaned := map[string]core.CleanedRecord{
		"p1": {RecordID: "p1", Text: "rainfall warnings issued across the coast", Entities: []string{"Coast Guard"}},
		"p2": {RecordID: "p2", Text: "rainfall totals breaking seasonal records"},
		"p3": {RecordID: "p3", Text: "flooding follows record rainfall"},
		"p4": {RecordID: "p4", Text: "rainfall expected through the weekend"},
	}
	// 1/4 coverage is below the strong-entity bar.
	clusters := []core.Cluster{{ID: 0, MemberIDs: []string{"p1", "p2", "p3", "p4"}}}

	got := Enrich(clusters, cleaned, DefaultOptions())

	if strings.Contains(got[0].Label, ":") {
		t.Errorf("label %q used entity form for a weak entity", got[0].Label)
	}
	if !strings.Contains(got[0].Label, "rainfall") {
		t.Errorf("label %q missing dominant term", got[0].Label)
	}
}

func TestEnrichEmptyTextGetsFallbackLabel(t *testing.T) {
	cleaned := map[string]core.CleanedRecord{
		"x1": {RecordID: "x1", Text: ""},
		"x2": {RecordID: "x2", Text: ""},
	}
	clusters := []core.Cluster{{ID: 7, MemberIDs: []string{"x1", "x2"}}}

	got := Enrich(clusters, cleaned, DefaultOptions())

	if got[0].Label != "cluster_7" {
		t.Errorf("label %q, want fallback cluster_7", got[0].Label)
	}
	if len(got[0].TopTerms) != 0 {
		t.Errorf("terms %v, want none", got[0].TopTerms)
	}
}

func TestEnrichDeterministic(t *testing.T) {
	clusters := []core.Cluster{
		{ID: 0, MemberIDs: []string{"a1", "a2", "a3"}},
		{ID: 1, MemberIDs: []string{"b1", "b2", "b3"}},
	}
	cleaned := cleanedFixture()

	first := Enrich(clusters, cleaned, DefaultOptions())
	second := Enrich(clusters, cleaned, DefaultOptions())

	for i := range first {
		if first[i].Label != second[i].Label {
			t.Fatalf("cluster %d label differs: %q vs %q", i, first[i].Label, second[i].Label)
		}
		if strings.Join(first[i].TopTerms, "|") != strings.Join(second[i].TopTerms, "|") {
			t.Fatalf("cluster %d terms differ: %v vs %v", i, first[i].TopTerms, second[i].TopTerms)
		}
	}
}

func TestSelectDiverseAvoidsRedundantTerms(t *testing.T) {
	candidates := []scoredTerm{
		{term: "bitcoin rally", score: 0.9, order: 0},
		{term: "bitcoin", score: 0.85, order: 1},
		{term: "rally", score: 0.8, order: 2},
		{term: "exchange volume", score: 0.4, order: 3},
	}

	got := selectDiverse(candidates, 2, 0.5)

	if len(got) != 2 {
		t.Fatalf("selected %d terms, want 2", len(got))
	}
	if got[0].term != "bitcoin rally" {
		t.Errorf("first pick %q, want highest-scored candidate", got[0].term)
	}
	// "bitcoin" and "rally" both fully overlap the first pick; the
	// distinct lower-scored term should win the second slot.
	if got[1].term != "exchange volume" {
		t.Errorf("second pick %q, want the diverse candidate", got[1].term)
	}
}

func TestWordOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"bitcoin rally", "bitcoin", 0.5},
		{"bitcoin", "bitcoin", 1},
		{"bitcoin rally", "model benchmark", 0},
		{"", "bitcoin", 0},
	}
	for _, tt := range tests {
		if got := wordOverlap(tt.a, tt.b); got != tt.want {
			t.Errorf("wordOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func containsTerm(terms []string, want string) bool {
	for _, t := range terms {
		if t == want || strings.Contains(t, want) {
			return true
		}
	}
	return false
}
