package cluster

import (
	"errors"
	"math"
	"math/rand"

	"github.com/risknetlabs/risknet/internal/domain"
)

// PCAReducer is the default dimensionality reducer: a seeded linear principal
// component projector computed by power iteration with deflation. It stands
// in for an external nonlinear reducer service; neighborCount is accepted for
// interface compatibility and unused by the linear projection.
type PCAReducer struct{}

var _ domain.Reducer = PCAReducer{}

const powerIterations = 60

// Reduce projects matrix to targetDims columns. A cosine metric is honored by
// L2-normalizing rows before centering. Fails (and the caller keeps the
// original matrix) on degenerate input.
func (PCAReducer) Reduce(
	matrix [][]float32, targetDims, neighborCount int, metric string, seed int64,
) ([][]float32, error) {
	n := len(matrix)
	if n == 0 {
		return nil, errors.New("empty matrix")
	}
	d := len(matrix[0])
	if targetDims < 1 {
		return nil, errors.New("target dimensionality must be positive")
	}
	if targetDims >= d {
		return matrix, nil
	}

	x := toFloat64(matrix)
	if metric == "cosine" {
		for _, row := range x {
			normalize(row)
		}
	}

	// Center columns.
	mean := make([]float64, d)
	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	centered := make([][]float64, n)
	for i, row := range x {
		c := make([]float64, d)
		for j, v := range row {
			c[j] = v - mean[j]
		}
		centered[i] = c
	}

	rng := rand.New(rand.NewSource(seed))
	components := make([][]float64, 0, targetDims)
	work := make([][]float64, n)
	for i := range centered {
		work[i] = append([]float64(nil), centered[i]...)
	}

	for range targetDims {
		v := make([]float64, d)
		for j := range v {
			v[j] = rng.NormFloat64()
		}
		normalize(v)

		for range powerIterations {
			// v <- normalize(Xᵀ X v) without forming the d×d covariance.
			xv := make([]float64, n)
			for i, row := range work {
				xv[i] = dotF64(row, v)
			}
			next := make([]float64, d)
			for i, row := range work {
				for j, val := range row {
					next[j] += xv[i] * val
				}
			}
			norm := normalize(next)
			if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
				return nil, errors.New("power iteration collapsed")
			}
			v = next
		}

		// Deflate: remove the found component from the working matrix.
		for _, row := range work {
			proj := dotF64(row, v)
			for j := range row {
				row[j] -= proj * v[j]
			}
		}
		components = append(components, v)
	}

	out := make([][]float32, n)
	for i, row := range centered {
		projected := make([]float32, targetDims)
		for c, comp := range components {
			p := dotF64(row, comp)
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, errors.New("non-finite projection")
			}
			projected[c] = float32(p)
		}
		out[i] = projected
	}
	return out, nil
}

func dotF64(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func normalize(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return 0
	}
	for i := range v {
		v[i] /= norm
	}
	return norm
}
