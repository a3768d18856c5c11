package analysis

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/cluster"
	"github.com/risknetlabs/risknet/internal/domain"
	"github.com/risknetlabs/risknet/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterAnalysisMetrics()
	os.Exit(m.Run())
}

// fakeEmbedder assigns a fixed unit vector per keyword found in the text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		for word, vec := range f.vectors {
			if strings.Contains(t, word) {
				out[i] = vec
				break
			}
		}
		if out[i] == nil {
			out[i] = []float32{0, 0, 0, 0, 0, 1}
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 6 }

type fakeClusterer struct {
	res cluster.Result
	err error
}

func (f *fakeClusterer) Cluster(emb [][]float32, _ domain.ClusteringParams) (cluster.Result, error) {
	if f.err != nil {
		return cluster.Result{}, f.err
	}
	res := f.res
	if len(res.Labels) != len(emb) {
		res.Labels = make([]int, len(emb))
		res.Confidences = make([]float64, len(emb))
	}
	return res, nil
}

// sixRisks: two tight pairs plus two unrelated records.
func sixRisks() []domain.RiskRecord {
	return []domain.RiskRecord{
		{ID: "r1", Title: "budget overrun", Description: "costs exceed the project baseline"},
		{ID: "r2", Title: "budget shortfall", Description: "funding gap against the baseline"},
		{ID: "r3", Title: "supplier delay", Description: "critical parts arrive late"},
		{ID: "r4", Title: "supplier failure", Description: "vendor misses delivery windows"},
		{ID: "r5", Title: "regulatory change", Description: "new compliance rules mid project"},
		{ID: "r6", Title: "staff turnover", Description: "key engineers leaving the team"},
	}
}

func sixVectors() map[string][]float32 {
	return map[string][]float32{
		"budget":     {1, 0, 0, 0, 0, 0},
		"supplier":   {0, 1, 0, 0, 0, 0},
		"regulatory": {0, 0, 1, 0, 0, 0},
		"staff":      {0, 0, 0, 1, 0, 0},
	}
}

func twoPairResult() cluster.Result {
	return cluster.Result{
		Labels:      []int{0, 0, 1, 1, domain.NoiseLabel, domain.NoiseLabel},
		Confidences: []float64{1, 1, 1, 1, 0, 0},
		NumClusters: 2,
		Method:      "hdbscan",
	}
}

func testService(emb Embedder, cl Clusterer) *Service {
	return New(emb, cl, zap.NewNop())
}

func TestAnalyze_EmptyInput(t *testing.T) {
	svc := testService(&fakeEmbedder{}, &fakeClusterer{})
	resp, err := svc.Analyze(context.Background(), domain.AnalysisRequest{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if resp.Nodes == nil || resp.Edges == nil || resp.Clusters == nil || resp.Metadata == nil {
		t.Fatalf("empty input must return empty non-nil collections: %+v", resp)
	}
	if len(resp.Nodes) != 0 || len(resp.Edges) != 0 || len(resp.Clusters) != 0 {
		t.Fatalf("expected empty response, got %+v", resp)
	}
}

func TestAnalyze_AllBlankTexts(t *testing.T) {
	svc := testService(&fakeEmbedder{}, &fakeClusterer{})
	req := domain.AnalysisRequest{Risks: []domain.RiskRecord{
		{ID: "r1", Title: "n/a", Description: "nan"},
		{ID: "r2", Title: "  ", Description: "none"},
	}}
	_, err := svc.Analyze(context.Background(), req)
	if !errors.Is(err, domain.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestAnalyze_InvalidParams(t *testing.T) {
	svc := testService(&fakeEmbedder{}, &fakeClusterer{})
	req := domain.AnalysisRequest{
		Risks:      sixRisks(),
		Similarity: domain.SimilarityParams{Threshold: 1.5, MaxEdgesPerNode: 5},
	}
	_, err := svc.Analyze(context.Background(), req)
	if !errors.Is(err, domain.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

func TestAnalyze_EmbedderFailureWrapped(t *testing.T) {
	svc := testService(&fakeEmbedder{err: errors.New("rate limited")}, &fakeClusterer{})
	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Risks: sixRisks()})
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestAnalyze_GraphAssembly(t *testing.T) {
	svc := testService(&fakeEmbedder{vectors: sixVectors()}, &fakeClusterer{res: twoPairResult()})
	resp, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Risks: sixRisks()})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(resp.Nodes) != 6 {
		t.Fatalf("got %d nodes, want 6", len(resp.Nodes))
	}
	for i, n := range resp.Nodes {
		if n.Cluster != twoPairResult().Labels[i] {
			t.Errorf("node %s cluster = %d, want %d", n.ID, n.Cluster, twoPairResult().Labels[i])
		}
	}

	var sim, membership int
	memberTargets := map[string]string{}
	for _, e := range resp.Edges {
		switch e.EdgeType {
		case domain.EdgeTypeSimilarity:
			sim++
			if e.Weight < 0.99 {
				t.Errorf("similarity edge %s-%s weight %g, want ~1", e.Source, e.Target, e.Weight)
			}
		case domain.EdgeTypeMembership:
			membership++
			if e.Weight != 0.3 {
				t.Errorf("membership edge weight = %g, want 0.3", e.Weight)
			}
			memberTargets[e.Target] = e.Source
		default:
			t.Errorf("unknown edge type %q", e.EdgeType)
		}
	}
	// Identical vectors within each pair, orthogonal across pairs.
	if sim != 2 {
		t.Errorf("got %d similarity edges, want 2", sim)
	}
	// One membership edge per clustered node, none for noise.
	if membership != 4 {
		t.Errorf("got %d membership edges, want 4", membership)
	}
	if memberTargets["r1"] != "cluster_0" || memberTargets["r3"] != "cluster_1" {
		t.Errorf("membership sources wrong: %v", memberTargets)
	}
	if _, ok := memberTargets["r5"]; ok {
		t.Error("noise node r5 must not have a membership edge")
	}
}

func TestAnalyze_ClusterSummaries(t *testing.T) {
	svc := testService(&fakeEmbedder{vectors: sixVectors()}, &fakeClusterer{res: twoPairResult()})
	resp, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Risks: sixRisks()})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(resp.Clusters) != 3 {
		t.Fatalf("got %d cluster summaries, want 3 (noise + 2)", len(resp.Clusters))
	}
	if resp.Clusters[0].ID != domain.NoiseLabel || resp.Clusters[0].Label != "Unclustered" {
		t.Errorf("noise summary first with fixed label, got %+v", resp.Clusters[0])
	}
	if resp.Clusters[0].Size != 2 {
		t.Errorf("noise size = %d, want 2", resp.Clusters[0].Size)
	}
	for _, c := range resp.Clusters[1:] {
		if c.Size != 2 {
			t.Errorf("cluster %d size = %d, want 2", c.ID, c.Size)
		}
		if c.Label == "" || c.Label == "Unclustered" {
			t.Errorf("cluster %d has no display label", c.ID)
		}
		if len(c.Keywords) == 0 {
			t.Errorf("cluster %d has no keywords", c.ID)
		}
	}
	if !strings.Contains(resp.Clusters[1].Label, "budget") {
		t.Errorf("cluster 0 label %q should feature its dominant term", resp.Clusters[1].Label)
	}
}

func TestAnalyze_MetadataKeys(t *testing.T) {
	svc := testService(&fakeEmbedder{vectors: sixVectors()}, &fakeClusterer{res: twoPairResult()})
	resp, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Risks: sixRisks()})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if resp.Metadata["analysis_id"] == "" {
		t.Error("missing analysis_id")
	}
	if resp.Metadata["embedding_dim"] != 6 {
		t.Errorf("embedding_dim = %v, want 6", resp.Metadata["embedding_dim"])
	}
	if resp.Metadata["clustering_method"] != "hdbscan" {
		t.Errorf("clustering_method = %v", resp.Metadata["clustering_method"])
	}
	if resp.Metadata["n_noise_points"] != 2 {
		t.Errorf("n_noise_points = %v, want 2", resp.Metadata["n_noise_points"])
	}
	if _, ok := resp.Metadata["degradations"]; ok {
		t.Error("degradations key present without any degradation")
	}
}

func TestAnalyze_DegradationsSurfaced(t *testing.T) {
	res := twoPairResult()
	res.Method = "kmeans"
	res.Degradations = []string{"hdbscan produced no clusters, substituted kmeans"}
	svc := testService(&fakeEmbedder{vectors: sixVectors()}, &fakeClusterer{res: res})

	resp, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Risks: sixRisks()})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	degs, ok := resp.Metadata["degradations"].([]string)
	if !ok || len(degs) != 1 {
		t.Fatalf("degradations not surfaced: %v", resp.Metadata["degradations"])
	}
}

func TestAnalyze_BlankRecordGetsZeroVector(t *testing.T) {
	risks := sixRisks()
	risks[5] = domain.RiskRecord{ID: "r6", Title: "n/a", Description: "nan"}
	res := twoPairResult()
	svc := testService(&fakeEmbedder{vectors: sixVectors()}, &fakeClusterer{res: res})

	resp, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Risks: risks})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	// The blank record stays index-aligned and present in the output.
	if len(resp.Nodes) != 6 || resp.Nodes[5].ID != "r6" {
		t.Fatalf("blank record lost: %+v", resp.Nodes)
	}
	for _, e := range resp.Edges {
		if e.EdgeType == domain.EdgeTypeSimilarity && (e.Source == "r6" || e.Target == "r6") {
			t.Errorf("zero vector must not produce similarity edges: %+v", e)
		}
	}
}

func TestSimilarityMatrix(t *testing.T) {
	svc := testService(&fakeEmbedder{vectors: sixVectors()}, &fakeClusterer{})
	ids, matrix, err := svc.SimilarityMatrix(context.Background(), sixRisks()[:4])
	if err != nil {
		t.Fatalf("SimilarityMatrix failed: %v", err)
	}
	if len(ids) != 4 || len(matrix) != 4 {
		t.Fatalf("unexpected shape: %d ids, %d rows", len(ids), len(matrix))
	}
	if matrix[0][1] < 0.99 {
		t.Errorf("r1-r2 similarity = %g, want ~1", matrix[0][1])
	}
	if matrix[0][2] > 0.01 {
		t.Errorf("r1-r3 similarity = %g, want ~0", matrix[0][2])
	}

	ids, matrix, err = svc.SimilarityMatrix(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty matrix failed: %v", err)
	}
	if len(ids) != 0 || len(matrix) != 0 {
		t.Errorf("expected empty result, got %v %v", ids, matrix)
	}
}
