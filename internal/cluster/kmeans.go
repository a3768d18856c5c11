package cluster

import (
	"errors"
	"math"
	"math/rand"
)

const (
	kmeansMaxIter    = 300
	kmeansRestarts   = 10
	autoKRestarts    = 5
	autoKLowerBound  = 3
	autoKUpperBound  = 15
)

// centroidResult is the raw output of the centroid clusterer.
type centroidResult struct {
	labels    []int
	probs     []float64
	k         int
}

// kmeansCluster partitions points into k groups. When k is zero the best k is
// chosen by silhouette score over [3, min(15, n-1)]. Confidence per point is
// 1 - (distance to own centroid / max such distance over all points).
func kmeansCluster(points [][]float64, k int, seed int64) (centroidResult, error) {
	n := len(points)
	if n == 0 {
		return centroidResult{}, errors.New("no points")
	}
	if k <= 0 {
		k = findOptimalK(points, seed)
	}
	if k > n {
		k = n
	}

	labels, centroids, err := kmeansFit(points, k, seed, kmeansRestarts)
	if err != nil {
		return centroidResult{}, err
	}

	ownDist := make([]float64, n)
	maxDist := 0.0
	for i, p := range points {
		ownDist[i] = euclidean(p, centroids[labels[i]])
		if ownDist[i] > maxDist {
			maxDist = ownDist[i]
		}
	}
	maxDist += 1e-10

	probs := make([]float64, n)
	for i := range probs {
		probs[i] = math.Min(1, math.Max(0, 1-ownDist[i]/maxDist))
	}
	return centroidResult{labels: labels, probs: probs, k: k}, nil
}

// findOptimalK refits k-means once per candidate k and keeps the silhouette
// winner. Deliberately unoptimized; the refit-per-k cost is the documented
// default.
func findOptimalK(points [][]float64, seed int64) int {
	n := len(points)
	minK := autoKLowerBound
	maxK := min(autoKUpperBound, n-1)
	if maxK <= minK {
		return minK
	}

	bestK := minK
	bestScore := -1.0
	for k := minK; k <= maxK; k++ {
		labels, _, err := kmeansFit(points, k, seed, autoKRestarts)
		if err != nil {
			continue
		}
		if distinctLabels(labels) < 2 {
			continue
		}
		if score := silhouetteScore(points, labels, k); score > bestScore {
			bestScore = score
			bestK = k
		}
	}
	return bestK
}

// kmeansFit runs seeded k-means++ with restarts, keeping the lowest-inertia run.
func kmeansFit(points [][]float64, k int, seed int64, restarts int) ([]int, [][]float64, error) {
	n := len(points)
	if k < 1 || k > n {
		return nil, nil, errors.New("k out of range")
	}
	rng := rand.New(rand.NewSource(seed))

	var bestLabels []int
	var bestCentroids [][]float64
	bestInertia := math.Inf(1)

	for range restarts {
		centroids := seedCentroids(points, k, rng)
		labels := make([]int, n)

		for range kmeansMaxIter {
			changed := false
			for i, p := range points {
				best := 0
				bestD := math.Inf(1)
				for c, cent := range centroids {
					if d := euclidean(p, cent); d < bestD {
						bestD = d
						best = c
					}
				}
				if labels[i] != best {
					labels[i] = best
					changed = true
				}
			}

			counts := make([]int, k)
			next := make([][]float64, k)
			for c := range next {
				next[c] = make([]float64, len(points[0]))
			}
			for i, p := range points {
				counts[labels[i]]++
				for j, v := range p {
					next[labels[i]][j] += v
				}
			}
			for c := range next {
				if counts[c] == 0 {
					// Re-seed an emptied centroid on the farthest point.
					next[c] = append([]float64(nil), points[farthestPoint(points, centroids)]...)
					continue
				}
				for j := range next[c] {
					next[c][j] /= float64(counts[c])
				}
			}
			centroids = next
			if !changed {
				break
			}
		}

		var inertia float64
		for i, p := range points {
			d := euclidean(p, centroids[labels[i]])
			inertia += d * d
		}
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
			bestCentroids = centroids
		}
	}
	if bestLabels == nil {
		return nil, nil, errors.New("k-means did not converge")
	}
	return bestLabels, bestCentroids, nil
}

// seedCentroids is k-means++: D²-weighted sampling of successive centers.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), points[rng.Intn(n)]...))

	d2 := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			best := math.Inf(1)
			for _, c := range centroids {
				if d := euclidean(p, c); d < best {
					best = d
				}
			}
			d2[i] = best * best
			total += d2[i]
		}
		if total == 0 {
			centroids = append(centroids, append([]float64(nil), points[rng.Intn(n)]...))
			continue
		}
		target := rng.Float64() * total
		idx := 0
		for i, w := range d2 {
			target -= w
			if target <= 0 {
				idx = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), points[idx]...))
	}
	return centroids
}

func farthestPoint(points [][]float64, centroids [][]float64) int {
	bestIdx, bestD := 0, -1.0
	for i, p := range points {
		nearest := math.Inf(1)
		for _, c := range centroids {
			if d := euclidean(p, c); d < nearest {
				nearest = d
			}
		}
		if nearest > bestD {
			bestD = nearest
			bestIdx = i
		}
	}
	return bestIdx
}

func distinctLabels(labels []int) int {
	set := make(map[int]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return len(set)
}

// silhouetteScore is the mean silhouette over all points; singleton-cluster
// points score zero.
func silhouetteScore(points [][]float64, labels []int, k int) float64 {
	n := len(points)
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}

	var total float64
	for i := range n {
		if sizes[labels[i]] <= 1 {
			continue // silhouette of a singleton is 0
		}
		sumTo := make([]float64, k)
		for j := range n {
			if j == i {
				continue
			}
			sumTo[labels[j]] += euclidean(points[i], points[j])
		}
		a := sumTo[labels[i]] / float64(sizes[labels[i]]-1)
		b := math.Inf(1)
		for c := range k {
			if c == labels[i] || sizes[c] == 0 {
				continue
			}
			if m := sumTo[c] / float64(sizes[c]); m < b {
				b = m
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}
