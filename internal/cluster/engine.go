// Package cluster groups embeddings into labeled clusters with automatic
// method fallback: density clustering first, centroid clustering when the
// density result is unusable.
package cluster

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/domain"
)

// Method names reported in analysis metadata.
const (
	MethodDensity  = "hdbscan"
	MethodCentroid = "kmeans"
	MethodSingle   = "single"
)

// randomSeed fixes every stochastic step so a request is reproducible.
const randomSeed = 42

const (
	reduceThresholdDims = 50
	reduceTargetDims    = 15
	reduceMinSamples    = 5
	reduceNeighbors     = 15
)

// Result is the cluster engine output: one label and confidence per input
// row, the non-noise cluster count, the method that actually produced the
// labels, and any degradations substituted along the way.
type Result struct {
	Labels       []int
	Confidences  []float64
	NumClusters  int
	Method       string
	Degradations []string
}

// Engine runs the clustering strategy chain. Safe for concurrent use; all
// per-request state lives in the call.
type Engine struct {
	reducer domain.Reducer
	logger  *zap.Logger
}

// NewEngine creates a cluster engine.
func NewEngine(reducer domain.Reducer, logger *zap.Logger) *Engine {
	return &Engine{reducer: reducer, logger: logger}
}

// Cluster assigns every embedding row a cluster label and confidence.
//
// Strategy order: density clustering, then centroid clustering when density
// yields fewer than 2 clusters or leaves more than half the points as noise,
// when it fails outright, or when the caller requested centroid clustering
// explicitly. At most one substitution happens per request; if the fallback
// also fails the whole request fails.
func (e *Engine) Cluster(embeddings [][]float32, params domain.ClusteringParams) (Result, error) {
	n := len(embeddings)
	if n == 0 {
		return Result{Method: MethodSingle}, nil
	}

	if n < 3 {
		labels := make([]int, n)
		confs := make([]float64, n)
		for i := range confs {
			confs[i] = 1
		}
		return Result{Labels: labels, Confidences: confs, NumClusters: 1, Method: MethodSingle}, nil
	}

	minClusterSize := params.MinClusterSize
	if n < 2*minClusterSize {
		minClusterSize = max(2, n/2)
	}
	minSamples := params.MinSamples
	if minSamples == 0 || n < 2*params.MinClusterSize {
		minSamples = minClusterSize
	}

	points := toFloat64(embeddings)

	explicitCentroid := params.Method == MethodCentroid || (params.Method != MethodDensity && params.K > 0)
	if explicitCentroid {
		res, err := kmeansCluster(points, params.K, randomSeed)
		if err != nil {
			return Result{}, fmt.Errorf("%w: centroid clustering: %w", domain.ErrAnalysisFailed, err)
		}
		return Result{
			Labels: res.labels, Confidences: res.probs,
			NumClusters: res.k, Method: MethodCentroid,
		}, nil
	}

	var degradations []string
	reduced, note := e.reduceForClustering(embeddings, n)
	if note != "" {
		degradations = append(degradations, note)
	}

	dres, err := runDensity(reduced, minClusterSize, minSamples, params.ClusterSelectionEpsilon, params.Metric)
	if err == nil && dres.numClusters >= 2 && noiseCount(dres.labels)*2 <= n {
		return Result{
			Labels: dres.labels, Confidences: dres.probs,
			NumClusters: dres.numClusters, Method: MethodDensity,
			Degradations: degradations,
		}, nil
	}

	if err != nil {
		e.logger.Warn("density clustering failed, falling back to centroid clustering", zap.Error(err))
		degradations = append(degradations, "density clustering failed: "+err.Error())
	} else {
		e.logger.Warn("density clustering rejected, falling back to centroid clustering",
			zap.Int("clusters", dres.numClusters),
			zap.Int("noise", noiseCount(dres.labels)),
			zap.Int("n", n),
		)
		degradations = append(degradations, fmt.Sprintf(
			"density clustering rejected (%d clusters, %d noise of %d)",
			dres.numClusters, noiseCount(dres.labels), n,
		))
	}

	kres, err := kmeansCluster(points, params.K, randomSeed)
	if err != nil {
		return Result{}, fmt.Errorf("%w: centroid fallback: %w", domain.ErrAnalysisFailed, err)
	}
	return Result{
		Labels: kres.labels, Confidences: kres.probs,
		NumClusters: kres.k, Method: MethodCentroid,
		Degradations: degradations,
	}, nil
}

// reduceForClustering projects high-dimensional embeddings before density
// clustering. Reduction is skipped below reduceMinSamples rows where it is
// unstable; on reducer failure the original matrix is kept and the
// degradation reported.
func (e *Engine) reduceForClustering(embeddings [][]float32, n int) ([][]float32, string) {
	d := len(embeddings[0])
	if d <= reduceThresholdDims || n < reduceMinSamples {
		return embeddings, ""
	}
	target := max(2, min(reduceTargetDims, n-2))
	neighbors := max(2, min(reduceNeighbors, n-1))

	reduced, err := e.reducer.Reduce(embeddings, target, neighbors, "cosine", randomSeed)
	if err != nil {
		e.logger.Warn("dimensionality reduction failed, clustering original matrix", zap.Error(err))
		return embeddings, "dimensionality reduction failed: " + err.Error()
	}
	return reduced, ""
}

// runDensity isolates the density stage so a numeric panic becomes an error
// the strategy chain can substitute for.
func runDensity(points [][]float32, minClusterSize, minSamples int, epsilon float64, metric string) (res densityResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("density clustering panicked: %v", r)
		}
	}()
	return hdbscan(toFloat64(points), minClusterSize, minSamples, epsilon, metric)
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
