package vectorize

import (
	"math"
	"sort"
	"strings"
)

// Vocabulary is a per-run TF-IDF vocabulary over unigrams and bigrams.
// It is built fresh for every batch and never persisted.
type Vocabulary struct {
	Terms   []string       // Term for each feature index
	Index   map[string]int // Term -> feature index
	idf     []float64
	docs    int
}

// VocabularyOptions bound the vocabulary the way the lexical stage needs:
// rare terms carry no clustering signal, near-universal terms separate
// nothing, and the feature count is capped to keep fused vectors tractable.
type VocabularyOptions struct {
	MinDocFreq  int     // Drop terms in fewer documents
	MaxDocRatio float64 // Drop terms in more than this fraction of documents
	MaxFeatures int     // Keep only the most frequent terms
}

// DefaultVocabularyOptions returns the standard bounds for a run.
func DefaultVocabularyOptions() VocabularyOptions {
	return VocabularyOptions{MinDocFreq: 2, MaxDocRatio: 0.8, MaxFeatures: 5000}
}

// BuildVocabulary fits a vocabulary over the documents.
func BuildVocabulary(docs []string, opts VocabularyOptions) *Vocabulary {
	n := len(docs)
	docFreq := make(map[string]int)
	corpusFreq := make(map[string]int)

	for _, doc := range docs {
		terms := Terms(doc)
		seen := make(map[string]bool, len(terms))
		for _, term := range terms {
			corpusFreq[term]++
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}

	maxDF := n
	if opts.MaxDocRatio > 0 {
		maxDF = int(opts.MaxDocRatio * float64(n))
		if maxDF < 1 {
			maxDF = 1
		}
	}

	var kept []string
	for term, df := range docFreq {
		if df < opts.MinDocFreq || df > maxDF {
			continue
		}
		kept = append(kept, term)
	}

	// Feature cap keeps the most frequent terms; alphabetical tie-break for
	// run-to-run determinism.
	sort.Slice(kept, func(i, j int) bool {
		if corpusFreq[kept[i]] != corpusFreq[kept[j]] {
			return corpusFreq[kept[i]] > corpusFreq[kept[j]]
		}
		return kept[i] < kept[j]
	})
	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		kept = kept[:opts.MaxFeatures]
	}
	sort.Strings(kept)

	vocab := &Vocabulary{
		Terms: kept,
		Index: make(map[string]int, len(kept)),
		idf:   make([]float64, len(kept)),
		docs:  n,
	}
	for i, term := range kept {
		vocab.Index[term] = i
		// Smoothed IDF, never zero.
		vocab.idf[i] = math.Log(float64(1+n)/float64(1+docFreq[term])) + 1
	}
	return vocab
}

// Size returns the feature count.
func (v *Vocabulary) Size() int { return len(v.Terms) }

// Vector computes the L2-normalized TF-IDF vector for one document.
func (v *Vocabulary) Vector(doc string) []float64 {
	vec := make([]float64, len(v.Terms))
	for _, term := range Terms(doc) {
		if i, ok := v.Index[term]; ok {
			vec[i] += v.idf[i]
		}
	}
	normalize(vec)
	return vec
}

// Terms tokenizes a document into stopword-filtered unigrams and bigrams.
func Terms(doc string) []string {
	tokens := Tokenize(doc)
	terms := make([]string, 0, 2*len(tokens))
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

// Tokenize lowercases and splits a document into word tokens, dropping
// stopwords and single-character tokens.
func Tokenize(doc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if len(f) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func normalize(vec []float64) {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
