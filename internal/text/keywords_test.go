package text

import (
	"reflect"
	"testing"

	"github.com/risknetlabs/risknet/internal/domain"
)

func TestClusterKeywords_NoiseLabelIsFixed(t *testing.T) {
	texts := []string{"server outage downtime", "server outage incident"}
	labels := []int{domain.NoiseLabel, domain.NoiseLabel}

	kw := ClusterKeywords(NewVectorizer(DefaultVectorizerConfig()), texts, labels, 5)
	got := kw[domain.NoiseLabel]
	if !reflect.DeepEqual(got, []string{NoiseKeyword}) {
		t.Fatalf("noise keywords = %v, want [%s]", got, NoiseKeyword)
	}
}

func TestClusterKeywords_RanksClusterTerms(t *testing.T) {
	texts := []string{
		"database failure corrupt storage",
		"database failure disk storage",
		"staff turnover hiring freeze",
		"staff turnover hiring delays",
	}
	labels := []int{0, 0, 1, 1}

	kw := ClusterKeywords(NewVectorizer(DefaultVectorizerConfig()), texts, labels, 3)

	if len(kw[0]) != 3 {
		t.Fatalf("cluster 0 keywords = %v, want 3 terms", kw[0])
	}
	if !contains(kw[0], "database") && !contains(kw[0], "failure") {
		t.Errorf("cluster 0 keywords %v missing dominant terms", kw[0])
	}
	if !contains(kw[1], "staff") && !contains(kw[1], "turnover") {
		t.Errorf("cluster 1 keywords %v missing dominant terms", kw[1])
	}
	for _, term := range kw[0] {
		if term == "staff" || term == "turnover" {
			t.Errorf("cluster 0 keywords %v leaked cluster 1 terms", kw[0])
		}
	}
}

func TestClusterKeywords_Deterministic(t *testing.T) {
	texts := []string{"alpha beta", "alpha beta", "gamma delta", "gamma delta"}
	labels := []int{0, 0, 1, 1}

	first := ClusterKeywords(NewVectorizer(DefaultVectorizerConfig()), texts, labels, 4)
	for range 5 {
		again := ClusterKeywords(NewVectorizer(DefaultVectorizerConfig()), texts, labels, 4)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("keywords not deterministic: %v vs %v", first, again)
		}
	}
}

func TestVectorizer_BigramsAndStopwords(t *testing.T) {
	v := NewVectorizer(DefaultVectorizerConfig())
	v.Fit([]string{"the supply chain is at risk", "supply chain delays"})

	terms := v.Terms()
	if contains(terms, "the") || contains(terms, "is") || contains(terms, "at") {
		t.Errorf("vocabulary %v contains stopwords", terms)
	}
	if !contains(terms, "supply chain") {
		t.Errorf("vocabulary %v missing bigram 'supply chain'", terms)
	}
}

func TestVectorizer_MaxFeaturesCap(t *testing.T) {
	v := NewVectorizer(VectorizerConfig{MaxFeatures: 2, MinDF: 1, MaxDF: 1})
	v.Fit([]string{"apple apple banana", "apple cherry cherry"})
	if len(v.Terms()) != 2 {
		t.Fatalf("vocabulary size = %d, want 2", len(v.Terms()))
	}
	// "apple" appears 3 times total and must survive the cap.
	if !contains(v.Terms(), "apple") {
		t.Errorf("vocabulary %v dropped the most frequent term", v.Terms())
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
