package cluster

import (
	"errors"
	"math"
	"sort"
)

// densityResult is the raw output of the density clusterer.
type densityResult struct {
	labels      []int
	probs       []float64
	numClusters int
}

// lambdaCap bounds 1/distance when duplicate points make the distance zero.
const lambdaCap = 1e9

// hdbscan runs hierarchical density-based clustering: core distances from the
// minSamples-th neighbor, mutual reachability, a minimum spanning tree, a
// condensed cluster tree with minClusterSize, and excess-of-mass cluster
// selection. epsilon keeps clusters from splitting below that distance.
// Labels use -1 for noise; probs are per-point membership strengths in [0,1].
func hdbscan(points [][]float64, minClusterSize, minSamples int, epsilon float64, metric string) (densityResult, error) {
	n := len(points)
	if n < 2 {
		return densityResult{}, errors.New("need at least 2 points")
	}
	if minClusterSize < 2 {
		minClusterSize = 2
	}
	if minSamples < 1 {
		minSamples = minClusterSize
	}
	if minSamples > n-1 {
		minSamples = n - 1
	}

	dist := distanceMatrix(points, metric)

	// Core distance: distance to the minSamples-th nearest neighbor, the
	// point itself counting as its own first neighbor.
	core := make([]float64, n)
	neigh := make([]float64, 0, n)
	for i := range n {
		neigh = neigh[:0]
		neigh = append(neigh, 0)
		for j := range n {
			if j != i {
				neigh = append(neigh, dist[i][j])
			}
		}
		sort.Float64s(neigh)
		core[i] = neigh[minSamples-1]
	}

	mst := mutualReachabilityMST(dist, core)
	tree := buildCondensedTree(mst, n, minClusterSize)
	return tree.selectClusters(epsilon)
}

type mstEdge struct {
	a, b int
	w    float64
}

// mutualReachabilityMST builds a minimum spanning tree over the mutual
// reachability graph with Prim's algorithm, O(n²).
func mutualReachabilityMST(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	bestFrom := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	mreach := func(i, j int) float64 {
		return math.Max(dist[i][j], math.Max(core[i], core[j]))
	}

	edges := make([]mstEdge, 0, n-1)
	inTree[0] = true
	for j := 1; j < n; j++ {
		best[j] = mreach(0, j)
		bestFrom[j] = 0
	}
	for range n - 1 {
		next := -1
		for j := range n {
			if !inTree[j] && (next == -1 || best[j] < best[next]) {
				next = j
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: bestFrom[next], b: next, w: best[next]})
		for j := range n {
			if !inTree[j] {
				if w := mreach(next, j); w < best[j] {
					best[j] = w
					bestFrom[j] = next
				}
			}
		}
	}
	return edges
}

// condensedTree holds clusters (ids >= n) and the lambda at which each point
// or child cluster detaches from its parent cluster.
type condensedTree struct {
	n          int
	parent     map[int]int       // cluster -> parent cluster (root has none)
	birth      map[int]float64   // cluster -> lambda at creation
	children   map[int][]int     // cluster -> child clusters
	pointHome  []int             // point -> cluster it fell out of
	pointLam   []float64         // point -> lambda at fall-out
	childLam   map[int]float64   // child cluster -> lambda at split
	childSize  map[int]int       // child cluster -> size at split
	clusterIDs []int             // all cluster ids in creation (BFS) order
	descPoints map[int][]int     // cluster -> points under it (transitively)
}

// hierNode is one single-linkage dendrogram node.
type hierNode struct {
	left, right int
	dist        float64
	size        int
}

// buildCondensedTree turns the MST into a single-linkage hierarchy and
// condenses it: a split survives only when both sides hold at least
// minClusterSize points, otherwise the small side's points fall out of the
// current cluster at that level's lambda.
func buildCondensedTree(mst []mstEdge, n, minClusterSize int) *condensedTree {
	sort.Slice(mst, func(i, j int) bool { return mst[i].w < mst[j].w })

	// Union-find that tracks the dendrogram node currently representing each set.
	parent := make([]int, 2*n-1)
	repr := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		repr[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	nodes := make([]hierNode, 2*n-1)
	for i := range n {
		nodes[i] = hierNode{left: -1, right: -1, size: 1}
	}
	next := n
	for _, e := range mst {
		ra, rb := find(e.a), find(e.b)
		na, nb := repr[ra], repr[rb]
		nodes[next] = hierNode{left: na, right: nb, dist: e.w, size: nodes[na].size + nodes[nb].size}
		parent[ra] = next
		parent[rb] = next
		repr[next] = next
		next++
	}
	root := next - 1

	t := &condensedTree{
		n:          n,
		parent:     make(map[int]int),
		birth:      make(map[int]float64),
		children:   make(map[int][]int),
		pointHome:  make([]int, n),
		pointLam:   make([]float64, n),
		childLam:   make(map[int]float64),
		childSize:  make(map[int]int),
		descPoints: make(map[int][]int),
	}

	rootCluster := n // condensed cluster ids start at n
	nextCluster := n + 1
	t.birth[rootCluster] = 0
	t.clusterIDs = append(t.clusterIDs, rootCluster)

	lambdaOf := func(d float64) float64 {
		if d <= 0 {
			return lambdaCap
		}
		l := 1 / d
		if l > lambdaCap {
			return lambdaCap
		}
		return l
	}

	// collectLeaves gathers all points under a dendrogram node.
	var collectLeaves func(node int, out *[]int)
	collectLeaves = func(node int, out *[]int) {
		if node < n {
			*out = append(*out, node)
			return
		}
		collectLeaves(nodes[node].left, out)
		collectLeaves(nodes[node].right, out)
	}

	type frame struct {
		node    int
		cluster int
	}
	stack := []frame{{node: root, cluster: rootCluster}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node < n {
			// Single point left in the cluster: it detaches when the cluster dies.
			t.pointHome[f.node] = f.cluster
			t.pointLam[f.node] = lambdaCap
			continue
		}

		node := nodes[f.node]
		lambda := lambdaOf(node.dist)
		leftSize, rightSize := nodes[node.left].size, nodes[node.right].size

		switch {
		case leftSize >= minClusterSize && rightSize >= minClusterSize:
			for _, child := range []int{node.left, node.right} {
				c := nextCluster
				nextCluster++
				t.parent[c] = f.cluster
				t.birth[c] = lambda
				t.children[f.cluster] = append(t.children[f.cluster], c)
				t.childLam[c] = lambda
				t.childSize[c] = nodes[child].size
				t.clusterIDs = append(t.clusterIDs, c)
				stack = append(stack, frame{node: child, cluster: c})
			}
		case leftSize < minClusterSize && rightSize < minClusterSize:
			var pts []int
			collectLeaves(f.node, &pts)
			for _, p := range pts {
				t.pointHome[p] = f.cluster
				t.pointLam[p] = lambda
			}
		default:
			big, small := node.left, node.right
			if leftSize < minClusterSize {
				big, small = node.right, node.left
			}
			var pts []int
			collectLeaves(small, &pts)
			for _, p := range pts {
				t.pointHome[p] = f.cluster
				t.pointLam[p] = lambda
			}
			stack = append(stack, frame{node: big, cluster: f.cluster})
		}
	}

	for p := range n {
		for c := t.pointHome[p]; ; {
			t.descPoints[c] = append(t.descPoints[c], p)
			parentC, ok := t.parent[c]
			if !ok {
				break
			}
			c = parentC
		}
	}
	return t
}

// selectClusters applies excess-of-mass selection over the condensed tree.
// The root is never selectable, so a corpus with no dense region comes back
// all noise. epsilon > 0 makes clusters born below that distance ineligible,
// pushing selection up to their ancestors.
func (t *condensedTree) selectClusters(epsilon float64) (densityResult, error) {
	stability := make(map[int]float64, len(t.clusterIDs))
	for _, c := range t.clusterIDs {
		var s float64
		for _, p := range t.descPoints[c] {
			if t.pointHome[p] == c {
				s += t.pointLam[p] - t.birth[c]
			}
		}
		for _, child := range t.children[c] {
			s += (t.childLam[child] - t.birth[c]) * float64(t.childSize[child])
		}
		stability[c] = s
	}

	eligible := func(c int) bool {
		if _, hasParent := t.parent[c]; !hasParent {
			return false // the root is never a cluster on its own
		}
		if epsilon > 0 && t.birth[c] > 1/epsilon {
			return false
		}
		return true
	}

	selected := make(map[int]bool)
	score := make(map[int]float64)
	// clusterIDs are in BFS order, so reverse iteration is bottom-up.
	for i := len(t.clusterIDs) - 1; i >= 0; i-- {
		c := t.clusterIDs[i]
		var childSum float64
		for _, child := range t.children[c] {
			childSum += score[child]
		}
		if eligible(c) && stability[c] >= childSum {
			selected[c] = true
			score[c] = stability[c]
		} else {
			score[c] = childSum
		}
	}
	// Keep only the shallowest selected cluster on every root-to-leaf path.
	for _, c := range t.clusterIDs {
		if !selected[c] {
			continue
		}
		for p, ok := t.parent[c]; ok; p, ok = t.parent[p] {
			if selected[p] {
				selected[c] = false
				break
			}
		}
	}

	finals := make([]int, 0, len(selected))
	for _, c := range t.clusterIDs {
		if selected[c] {
			finals = append(finals, c)
		}
	}
	sort.Ints(finals)

	labelOf := make(map[int]int, len(finals))
	for i, c := range finals {
		labelOf[c] = i
	}

	labels := make([]int, t.n)
	probs := make([]float64, t.n)
	for p := range t.n {
		labels[p] = -1
		cluster := -1
		for c := t.pointHome[p]; ; {
			if lbl, ok := labelOf[c]; ok {
				labels[p] = lbl
				cluster = c
				break
			}
			parentC, ok := t.parent[c]
			if !ok {
				break
			}
			c = parentC
		}
		if cluster >= 0 {
			maxLam := 0.0
			for _, q := range t.descPoints[cluster] {
				if t.pointLam[q] > maxLam {
					maxLam = t.pointLam[q]
				}
			}
			if maxLam > 0 {
				probs[p] = math.Min(1, t.pointLam[p]/maxLam)
			} else {
				probs[p] = 1
			}
		}
	}

	return densityResult{labels: labels, probs: probs, numClusters: len(finals)}, nil
}
