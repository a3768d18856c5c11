package layout

import (
	"math"
	"runtime"
	"sort"
	"sync"
)

// Force constants for the refinement simulation.
const (
	refineRepulsion  = 5000.0
	refineAttraction = 0.01
	refineDamping    = 0.9
	refineStep       = 0.1
)

// Refine runs an explicit force simulation over existing positions: pairwise
// inverse-square repulsion, linear spring attraction along edges, velocity
// damping. Pure — the input map is not mutated — and deterministic for a
// given input. O(n²) per iteration; per-node forces are computed over
// parallel row ranges since they only read the shared position slice.
//
// Not on the analysis request path; intended for incremental client-driven
// adjustment of an already computed layout.
func Refine(positions map[string]Point, edges []WeightedEdge, iterations int) map[string]Point {
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	n := len(ids)
	if n == 0 {
		return map[string]Point{}
	}

	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	px := make([]float64, n)
	py := make([]float64, n)
	for i, id := range ids {
		px[i] = positions[id].X
		py[i] = positions[id].Y
	}
	vx := make([]float64, n)
	vy := make([]float64, n)

	type adj struct {
		j int
		w float64
	}
	neighbors := make([][]adj, n)
	for _, e := range edges {
		a, okA := index[e.Source]
		b, okB := index[e.Target]
		if !okA || !okB || a == b {
			continue
		}
		neighbors[a] = append(neighbors[a], adj{j: b, w: e.Weight})
		neighbors[b] = append(neighbors[b], adj{j: a, w: e.Weight})
	}

	fx := make([]float64, n)
	fy := make([]float64, n)
	workers := min(runtime.GOMAXPROCS(0), n)
	if workers < 1 {
		workers = 1
	}

	for range iterations {
		// Each worker owns a row range and writes only its own force slots,
		// reading the frozen position slices.
		var wg sync.WaitGroup
		chunk := (n + workers - 1) / workers
		for w := range workers {
			lo := w * chunk
			hi := min(lo+chunk, n)
			if lo >= hi {
				continue
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					var fxi, fyi float64
					for j := range n {
						if j == i {
							continue
						}
						ddx := px[i] - px[j]
						ddy := py[i] - py[j]
						dist := math.Hypot(ddx, ddy) + 0.1
						f := refineRepulsion / (dist * dist)
						fxi += ddx / dist * f
						fyi += ddy / dist * f
					}
					for _, nb := range neighbors[i] {
						ddx := px[nb.j] - px[i]
						ddy := py[nb.j] - py[i]
						fxi += refineAttraction * nb.w * ddx
						fyi += refineAttraction * nb.w * ddy
					}
					fx[i] = fxi
					fy[i] = fyi
				}
			}(lo, hi)
		}
		wg.Wait()

		for i := range n {
			vx[i] = vx[i]*refineDamping + fx[i]*refineStep
			vy[i] = vy[i]*refineDamping + fy[i]*refineStep
			px[i] += vx[i]
			py[i] += vy[i]
		}
	}

	out := make(map[string]Point, n)
	for i, id := range ids {
		out[id] = Point{X: px[i], Y: py[i]}
	}
	return out
}
