package analysis

import (
	"context"

	"github.com/risknetlabs/risknet/internal/cluster"
	"github.com/risknetlabs/risknet/internal/domain"
)

// Embedder turns canonical texts into unit-norm vectors, index-aligned.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Clusterer assigns cluster labels and confidences to embedding rows.
type Clusterer interface {
	Cluster(embeddings [][]float32, params domain.ClusteringParams) (cluster.Result, error)
}
