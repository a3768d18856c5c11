// Package similarity builds the pruned semantic-similarity edge set.
//
// The dense matrix is O(n²d) and the per-row ranking O(n² log n), which caps
// practical input at a few thousand records; an approximate-neighbor index is
// the scale-up path beyond that.
package similarity

import (
	"runtime"
	"sort"
	"sync"

	"github.com/risknetlabs/risknet/internal/domain"
)

// Edge is a similarity edge between record indexes, canonical order I < J.
type Edge struct {
	I      int
	J      int
	Weight float64
}

// Matrix computes the pairwise cosine similarity matrix. Rows are expected to
// be L2-normalized, so similarity reduces to the dot product. Rows are
// computed over parallel, read-only ranges.
func Matrix(embeddings [][]float32) [][]float64 {
	n := len(embeddings)
	sim := make([][]float64, n)

	workers := min(runtime.GOMAXPROCS(0), n)
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	rows := make(chan int)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				row := make([]float64, n)
				for j := range n {
					row[j] = dot(embeddings[i], embeddings[j])
				}
				sim[i] = row
			}
		}()
	}
	for i := range n {
		rows <- i
	}
	close(rows)
	wg.Wait()
	return sim
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

type pairKey struct{ i, j int }

// BuildEdges walks each row's descending similarity ranking, accepting up to
// MaxEdgesPerNode neighbors at or above Threshold. A pair survives when it
// appears in the top-k of either endpoint; the per-row results are merged
// into a canonical (min,max) set, so the final graph can look asymmetric by
// construction. That union policy is deliberate, documented behavior.
func BuildEdges(embeddings [][]float32, params domain.SimilarityParams) []Edge {
	sim := Matrix(embeddings)
	n := len(embeddings)

	accepted := make(map[pairKey]float64)
	ranking := make([]int, 0, n)
	for i := range n {
		ranking = ranking[:0]
		for j := range n {
			if j != i {
				ranking = append(ranking, j)
			}
		}
		sort.Slice(ranking, func(a, b int) bool {
			if sim[i][ranking[a]] != sim[i][ranking[b]] {
				return sim[i][ranking[a]] > sim[i][ranking[b]]
			}
			return ranking[a] < ranking[b]
		})

		taken := 0
		for _, j := range ranking {
			if sim[i][j] < params.Threshold || taken >= params.MaxEdgesPerNode {
				break
			}
			key := pairKey{min(i, j), max(i, j)}
			accepted[key] = sim[i][j]
			taken++
		}
	}

	edges := make([]Edge, 0, len(accepted))
	for key, w := range accepted {
		edges = append(edges, Edge{I: key.i, J: key.j, Weight: w})
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].I != edges[b].I {
			return edges[a].I < edges[b].I
		}
		return edges[a].J < edges[b].J
	})
	return edges
}
