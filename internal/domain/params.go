package domain

import "fmt"

// NoiseLabel marks a record left out of every cluster.
const NoiseLabel = -1

// ClusteringParams controls the cluster engine.
type ClusteringParams struct {
	MinClusterSize          int     `json:"min_cluster_size"`
	MinSamples              int     `json:"min_samples,omitempty"` // 0 = MinClusterSize
	ClusterSelectionEpsilon float64 `json:"cluster_selection_epsilon"`
	Metric                  string  `json:"metric,omitempty"` // euclidean (default) or cosine
	Method                  string  `json:"method,omitempty"` // "", "hdbscan", "kmeans"
	K                       int     `json:"k,omitempty"`      // fixed k for kmeans, 0 = auto
}

// SimilarityParams controls similarity edge construction.
type SimilarityParams struct {
	Threshold       float64 `json:"threshold"`
	MaxEdgesPerNode int     `json:"max_edges_per_node"`
}

// LayoutParams controls the force-directed layout solver.
type LayoutParams struct {
	Iterations   int     `json:"iterations"`
	Gravity      float64 `json:"gravity"`
	ScalingRatio float64 `json:"scaling_ratio"`
}

// DefaultClusteringParams mirrors the documented defaults.
func DefaultClusteringParams() ClusteringParams {
	return ClusteringParams{MinClusterSize: 3, Metric: "euclidean"}
}

// DefaultSimilarityParams mirrors the documented defaults.
func DefaultSimilarityParams() SimilarityParams {
	return SimilarityParams{Threshold: 0.4, MaxEdgesPerNode: 5}
}

// DefaultLayoutParams mirrors the documented defaults.
func DefaultLayoutParams() LayoutParams {
	return LayoutParams{Iterations: 100, Gravity: 1.0, ScalingRatio: 2.0}
}

// Validate checks parameter ranges.
func (p ClusteringParams) Validate() error {
	if p.MinClusterSize < 2 || p.MinClusterSize > 50 {
		return fmt.Errorf("%w: min_cluster_size %d not in [2,50]", ErrInvalidParams, p.MinClusterSize)
	}
	if p.MinSamples < 0 {
		return fmt.Errorf("%w: min_samples %d is negative", ErrInvalidParams, p.MinSamples)
	}
	if p.ClusterSelectionEpsilon < 0 {
		return fmt.Errorf("%w: cluster_selection_epsilon %g is negative", ErrInvalidParams, p.ClusterSelectionEpsilon)
	}
	switch p.Metric {
	case "", "euclidean", "cosine":
	default:
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidParams, p.Metric)
	}
	switch p.Method {
	case "", "auto", "hdbscan", "kmeans":
	default:
		return fmt.Errorf("%w: unknown clustering method %q", ErrInvalidParams, p.Method)
	}
	return nil
}

// Validate checks parameter ranges.
func (p SimilarityParams) Validate() error {
	if p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("%w: threshold %g not in [0,1]", ErrInvalidParams, p.Threshold)
	}
	if p.MaxEdgesPerNode < 1 || p.MaxEdgesPerNode > 20 {
		return fmt.Errorf("%w: max_edges_per_node %d not in [1,20]", ErrInvalidParams, p.MaxEdgesPerNode)
	}
	return nil
}

// Validate checks parameter ranges.
func (p LayoutParams) Validate() error {
	if p.Iterations < 10 || p.Iterations > 500 {
		return fmt.Errorf("%w: iterations %d not in [10,500]", ErrInvalidParams, p.Iterations)
	}
	if p.Gravity < 0.1 || p.Gravity > 10 {
		return fmt.Errorf("%w: gravity %g not in [0.1,10]", ErrInvalidParams, p.Gravity)
	}
	if p.ScalingRatio < 0.1 || p.ScalingRatio > 10 {
		return fmt.Errorf("%w: scaling_ratio %g not in [0.1,10]", ErrInvalidParams, p.ScalingRatio)
	}
	return nil
}
