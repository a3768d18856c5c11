package cluster

import "math"

func toFloat64(rows [][]float32) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		row := make([]float64, len(r))
		for j, v := range r {
			row[j] = float64(v)
		}
		out[i] = row
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// cosineDistance is 1 - cosine similarity, clamped to [0,2].
func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	if d < 0 {
		return 0
	}
	return d
}

func distanceFunc(metric string) func(a, b []float64) float64 {
	if metric == "cosine" {
		return cosineDistance
	}
	return euclidean
}

// distanceMatrix computes the full symmetric pairwise distance matrix.
func distanceMatrix(points [][]float64, metric string) [][]float64 {
	dist := distanceFunc(metric)
	n := len(points)
	m := make([][]float64, n)
	for i := range n {
		m[i] = make([]float64, n)
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := dist(points[i], points[j])
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}
