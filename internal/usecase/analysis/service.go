// Package analysis orchestrates the full risk-network pipeline: text
// canonicalization, embedding, similarity-graph construction, clustering,
// keyword extraction, and layout, assembled into one response.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/cluster"
	"github.com/risknetlabs/risknet/internal/domain"
	"github.com/risknetlabs/risknet/internal/layout"
	"github.com/risknetlabs/risknet/internal/metrics"
	"github.com/risknetlabs/risknet/internal/similarity"
	"github.com/risknetlabs/risknet/internal/text"
)

const (
	keywordsPerCluster   = 4
	displayKeywords      = 3
	membershipEdgeWeight = 0.3
	noiseDisplayLabel    = "Unclustered"
)

// Service runs the analysis pipeline. The embedder handle is process-wide;
// everything else is request-scoped, so the service is safe for concurrent
// use.
type Service struct {
	embedder  Embedder
	clusterer Clusterer
	logger    *zap.Logger
}

// New creates an analysis service.
func New(embedder Embedder, clusterer Clusterer, logger *zap.Logger) *Service {
	return &Service{embedder: embedder, clusterer: clusterer, logger: logger}
}

// Analyze runs the full pipeline. An empty record list returns an empty
// response without error; a corpus where every record canonicalizes to empty
// text is a validation failure. Any stage failure past its single documented
// fallback aborts the whole request.
func (s *Service) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResponse, error) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return domain.AnalysisResponse{}, err
	}

	n := len(req.Risks)
	if n == 0 {
		return domain.AnalysisResponse{
			Nodes:    []domain.Node{},
			Edges:    []domain.Edge{},
			Clusters: []domain.ClusterSummary{},
			Metadata: map[string]any{},
		}, nil
	}

	runID := uuid.NewString()
	log := s.logger.With(zap.String("analysis_id", runID), zap.Int("risks", n))
	log.Info("starting analysis")

	texts := text.CombineAll(req.Risks)
	embeddings, err := s.embed(ctx, texts)
	if err != nil {
		return domain.AnalysisResponse{}, err
	}

	// Similarity edges and clustering only read the embeddings; run them
	// concurrently.
	var (
		wg         sync.WaitGroup
		edges      []similarity.Edge
		clusterRes clusterResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		edges = similarity.BuildEdges(embeddings, req.Similarity)
		metrics.ObserveStage("similarity", time.Since(start))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		res, cerr := s.clusterer.Cluster(embeddings, req.Clustering)
		metrics.ObserveStage("clustering", time.Since(start))
		clusterRes = clusterResult{res: res, err: cerr}
	}()
	wg.Wait()
	if clusterRes.err != nil {
		return domain.AnalysisResponse{}, clusterRes.err
	}
	res := clusterRes.res
	log.Info("clustering complete",
		zap.String("method", res.Method),
		zap.Int("clusters", res.NumClusters),
		zap.Int("similarity_edges", len(edges)),
	)
	for _, d := range res.Degradations {
		metrics.IncDegradation("clustering")
		log.Warn("analysis degradation", zap.String("detail", d))
	}

	keywords := text.ClusterKeywords(
		text.NewVectorizer(text.DefaultVectorizerConfig()), texts, res.Labels, keywordsPerCluster,
	)

	start := time.Now()
	nodeIDs := make([]string, n)
	for i, r := range req.Risks {
		nodeIDs[i] = r.ID
	}
	layoutEdges := make([]layout.WeightedEdge, len(edges))
	for i, e := range edges {
		layoutEdges[i] = layout.WeightedEdge{
			Source: req.Risks[e.I].ID,
			Target: req.Risks[e.J].ID,
			Weight: e.Weight,
		}
	}
	layoutRes := layout.NewEngine(req.Layout, s.logger).Compute(nodeIDs, layoutEdges, res.Labels)
	metrics.ObserveStage("layout", time.Since(start))

	resp := s.assemble(req, edges, res, keywords, layoutRes)
	resp.Metadata = map[string]any{
		"analysis_id":       runID,
		"embedding_dim":     s.embedder.Dimensions(),
		"clustering_method": res.Method,
		"n_noise_points":    noiseCount(res.Labels),
	}
	if len(res.Degradations) > 0 {
		resp.Metadata["degradations"] = res.Degradations
	}

	log.Info("analysis complete",
		zap.Int("nodes", len(resp.Nodes)),
		zap.Int("edges", len(resp.Edges)),
		zap.Int("clusters", len(resp.Clusters)),
	)
	return resp, nil
}

type clusterResult struct {
	res cluster.Result
	err error
}

// SimilarityMatrix returns record ids with the full dense cosine matrix, for
// debugging and advanced analysis.
func (s *Service) SimilarityMatrix(ctx context.Context, risks []domain.RiskRecord) ([]string, [][]float64, error) {
	if len(risks) == 0 {
		return []string{}, [][]float64{}, nil
	}
	texts := text.CombineAll(risks)
	embeddings, err := s.embed(ctx, texts)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, len(risks))
	for i, r := range risks {
		ids[i] = r.ID
	}
	return ids, similarity.Matrix(embeddings), nil
}

// embed canonicalized texts. Blank texts never reach the provider; they come
// back as zero vectors, index-aligned with the input.
func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	validIdx := make([]int, 0, len(texts))
	valid := make([]string, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) != "" {
			validIdx = append(validIdx, i)
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil, domain.ErrEmptyCorpus
	}

	start := time.Now()
	rows, err := s.embedder.Embed(ctx, valid)
	metrics.ObserveStage("embedding", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, err)
	}
	if len(rows) != len(valid) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingProvider, len(rows), len(valid))
	}

	dim := len(rows[0])
	full := make([][]float32, len(texts))
	for i := range full {
		full[i] = make([]float32, dim)
	}
	for k, i := range validIdx {
		full[i] = rows[k]
	}
	return full, nil
}

// assemble builds the response graph: annotated nodes, similarity plus
// membership edges, and cluster summaries with display labels.
func (s *Service) assemble(
	req domain.AnalysisRequest,
	simEdges []similarity.Edge,
	res cluster.Result,
	keywords map[int][]string,
	layoutRes layout.Result,
) domain.AnalysisResponse {
	centerFallback := layout.Point{X: layout.CanvasWidth / 2, Y: layout.CanvasHeight / 2}

	edges := make([]domain.Edge, 0, len(simEdges)+len(req.Risks))
	for _, e := range simEdges {
		edges = append(edges, domain.Edge{
			Source:   req.Risks[e.I].ID,
			Target:   req.Risks[e.J].ID,
			Weight:   e.Weight,
			EdgeType: domain.EdgeTypeSimilarity,
		})
	}

	counts := make(map[int]int)
	for _, label := range res.Labels {
		counts[label]++
	}
	labelsSorted := make([]int, 0, len(counts))
	for label := range counts {
		labelsSorted = append(labelsSorted, label)
	}
	sort.Ints(labelsSorted)

	clusters := make([]domain.ClusterSummary, 0, len(labelsSorted))
	for _, label := range labelsSorted {
		kw := keywords[label]
		display := noiseDisplayLabel
		if label != domain.NoiseLabel {
			if len(kw) > 0 {
				display = strings.Join(kw[:min(displayKeywords, len(kw))], " / ")
			} else {
				display = fmt.Sprintf("Cluster %d", label+1)
			}
		}
		pos, ok := layoutRes.ClusterPositions[label]
		if !ok {
			pos = centerFallback
		}
		clusters = append(clusters, domain.ClusterSummary{
			ID:       label,
			Label:    display,
			Keywords: kw,
			Size:     counts[label],
			X:        pos.X,
			Y:        pos.Y,
		})
	}

	nodes := make([]domain.Node, 0, len(req.Risks))
	for i, r := range req.Risks {
		pos, ok := layoutRes.Positions[r.ID]
		if !ok {
			pos = centerFallback
		}
		nodes = append(nodes, domain.Node{
			RiskRecord: r,
			Cluster:    res.Labels[i],
			X:          pos.X,
			Y:          pos.Y,
		})
	}

	// One synthesized membership edge per clustered node.
	for _, node := range nodes {
		if node.Cluster == domain.NoiseLabel {
			continue
		}
		edges = append(edges, domain.Edge{
			Source:   fmt.Sprintf("cluster_%d", node.Cluster),
			Target:   node.ID,
			Weight:   membershipEdgeWeight,
			EdgeType: domain.EdgeTypeMembership,
		})
	}

	return domain.AnalysisResponse{Nodes: nodes, Edges: edges, Clusters: clusters}
}

func noiseCount(labels []int) int {
	var c int
	for _, l := range labels {
		if l == domain.NoiseLabel {
			c++
		}
	}
	return c
}
