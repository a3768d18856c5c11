package text

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/risknetlabs/risknet/internal/domain"
)

// NoiseKeyword is the fixed marker returned for the noise label.
const NoiseKeyword = "unclustered"

// VectorizerConfig bounds the TF-IDF vocabulary.
type VectorizerConfig struct {
	MaxFeatures int     // vocabulary cap, selected by corpus term frequency
	MinDF       int     // minimum document frequency (absolute)
	MaxDF       float64 // maximum document frequency (proportion of corpus)
}

// DefaultVectorizerConfig mirrors the documented defaults.
func DefaultVectorizerConfig() VectorizerConfig {
	return VectorizerConfig{MaxFeatures: 1000, MinDF: 1, MaxDF: 0.95}
}

// Vectorizer is a unigram+bigram TF-IDF model with stopword removal. It is
// fit per request over the whole corpus so term rarity reflects the corpus;
// a Vectorizer must not be shared across concurrent requests mid-fit.
type Vectorizer struct {
	cfg   VectorizerConfig
	terms []string       // vocabulary, index-aligned with weight columns
	index map[string]int // term -> column
	idf   []float64
}

// NewVectorizer creates an unfitted TF-IDF model.
func NewVectorizer(cfg VectorizerConfig) *Vectorizer {
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = 1000
	}
	if cfg.MinDF <= 0 {
		cfg.MinDF = 1
	}
	if cfg.MaxDF <= 0 || cfg.MaxDF > 1 {
		cfg.MaxDF = 0.95
	}
	return &Vectorizer{cfg: cfg}
}

// tokenize lowercases and splits on non-alphanumeric runs, keeping tokens of
// at least two characters with stopwords removed.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// ngrams returns unigrams plus adjacent bigrams.
func ngrams(tokens []string) []string {
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// Fit builds the vocabulary and IDF weights, then returns the row-normalized
// TF-IDF matrix for the corpus.
func (v *Vectorizer) Fit(texts []string) [][]float64 {
	n := len(texts)
	docTerms := make([]map[string]int, n)
	df := make(map[string]int)
	tf := make(map[string]int)
	for i, t := range texts {
		counts := make(map[string]int)
		for _, term := range ngrams(tokenize(t)) {
			counts[term]++
			tf[term]++
		}
		for term := range counts {
			df[term]++
		}
		docTerms[i] = counts
	}

	maxDF := int(math.Floor(v.cfg.MaxDF * float64(n)))
	if maxDF < 1 {
		maxDF = 1
	}
	candidates := make([]string, 0, len(df))
	for term, d := range df {
		if d < v.cfg.MinDF || d > maxDF {
			continue
		}
		candidates = append(candidates, term)
	}
	// Cap the vocabulary by corpus term frequency, ties broken alphabetically
	// so the fitted model is deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if tf[candidates[i]] != tf[candidates[j]] {
			return tf[candidates[i]] > tf[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})
	if len(candidates) > v.cfg.MaxFeatures {
		candidates = candidates[:v.cfg.MaxFeatures]
	}
	sort.Strings(candidates)

	v.terms = candidates
	v.index = make(map[string]int, len(candidates))
	for i, term := range candidates {
		v.index[term] = i
	}
	v.idf = make([]float64, len(candidates))
	for i, term := range candidates {
		// Smoothed IDF, never zero.
		v.idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	rows := make([][]float64, n)
	for i, counts := range docTerms {
		row := make([]float64, len(v.terms))
		for term, c := range counts {
			if col, ok := v.index[term]; ok {
				row[col] = float64(c) * v.idf[col]
			}
		}
		normalizeRow(row)
		rows[i] = row
	}
	return rows
}

// Terms returns the fitted vocabulary.
func (v *Vectorizer) Terms() []string { return v.terms }

func normalizeRow(row []float64) {
	var sum float64
	for _, x := range row {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range row {
		row[i] *= inv
	}
}

// ClusterKeywords fits the vectorizer over all texts and returns the top-N
// terms per cluster label, ranked by the mean TF-IDF weight of the cluster's
// members with lexicographic tie-breaking. The noise label always maps to
// exactly [NoiseKeyword], independent of content.
func ClusterKeywords(v *Vectorizer, texts []string, labels []int, topN int) map[int][]string {
	rows := v.Fit(texts)
	terms := v.Terms()

	members := make(map[int][]int)
	for i, label := range labels {
		members[label] = append(members[label], i)
	}

	keywords := make(map[int][]string, len(members))
	for label, idxs := range members {
		if label == domain.NoiseLabel {
			keywords[label] = []string{NoiseKeyword}
			continue
		}
		mean := make([]float64, len(terms))
		for _, i := range idxs {
			for col, w := range rows[i] {
				mean[col] += w
			}
		}
		for col := range mean {
			mean[col] /= float64(len(idxs))
		}

		order := make([]int, len(terms))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			if mean[order[a]] != mean[order[b]] {
				return mean[order[a]] > mean[order[b]]
			}
			return terms[order[a]] < terms[order[b]]
		})

		top := make([]string, 0, topN)
		for _, col := range order {
			if len(top) == topN || mean[col] == 0 {
				break
			}
			top = append(top, terms[col])
		}
		keywords[label] = top
	}
	return keywords
}
