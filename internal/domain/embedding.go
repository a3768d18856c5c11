package domain

import "context"

// Embedder turns texts into unit-norm vectors of fixed dimensionality.
// Rows are index-aligned with the input texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Reducer projects a high-dimensional matrix to targetDims dimensions.
// neighborCount and metric parameterize nonlinear implementations; seed fixes
// any internal randomness. On error the caller keeps the original matrix.
type Reducer interface {
	Reduce(matrix [][]float32, targetDims, neighborCount int, metric string, seed int64) ([][]float32, error)
}
