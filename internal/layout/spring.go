package layout

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/domain"
)

const layoutSeed = 42

// Engine computes node and cluster-anchor positions. Safe for concurrent
// use; each Compute call owns its state.
type Engine struct {
	params domain.LayoutParams
	logger *zap.Logger
}

// NewEngine creates a layout engine.
func NewEngine(params domain.LayoutParams, logger *zap.Logger) *Engine {
	return &Engine{params: params, logger: logger}
}

// Compute places every node and every non-noise cluster on the canvas.
//
// The solved graph is the similarity edges plus one virtual anchor vertex per
// non-noise cluster, tied to each member by a weak spring. If the spring
// solver blows up, deterministic seeded positions inside the central canvas
// region are substituted; the failure is never propagated. Cluster positions
// come from the solved anchor when available, otherwise from the member
// centroid. A final overlap pass pushes clustered nodes to at least
// MinSeparation from their cluster's position, using golden-angle placement
// for nodes sitting exactly on it.
func (e *Engine) Compute(nodeIDs []string, edges []WeightedEdge, clusterLabels []int) Result {
	if len(nodeIDs) == 0 {
		return Result{Positions: map[string]Point{}, ClusterPositions: map[int]Point{}}
	}

	vertices := append([]string(nil), nodeIDs...)
	clusterOf := make(map[string]int, len(nodeIDs))
	clusters := make(map[int]struct{})
	for i, id := range nodeIDs {
		label := domain.NoiseLabel
		if i < len(clusterLabels) {
			label = clusterLabels[i]
		}
		clusterOf[id] = label
		if label != domain.NoiseLabel {
			clusters[label] = struct{}{}
		}
	}

	all := append([]WeightedEdge(nil), edges...)
	// Anchors join the vertex list in sorted label order so the seeded
	// initial positions do not depend on map iteration.
	labels := make([]int, 0, len(clusters))
	for label := range clusters {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	anchorIDs := make(map[int]string, len(clusters))
	for _, label := range labels {
		anchor := AnchorID(label)
		anchorIDs[label] = anchor
		vertices = append(vertices, anchor)
		for _, id := range nodeIDs {
			if clusterOf[id] == label {
				all = append(all, WeightedEdge{Source: id, Target: anchor, Weight: anchorEdgeWeight})
			}
		}
	}

	pos, err := e.springSolve(vertices, all)
	if err != nil {
		e.logger.Warn("spring layout failed, using seeded random placement", zap.Error(err))
		pos = randomPlacement(vertices)
	}

	positions := make(map[string]Point, len(nodeIDs))
	clusterPositions := make(map[int]Point, len(clusters))
	for _, id := range nodeIDs {
		positions[id] = pos[id]
	}
	for label, anchor := range anchorIDs {
		clusterPositions[label] = pos[anchor]
	}
	// Centroid of member positions when the anchor has no solved position.
	for label := range clusters {
		if _, ok := clusterPositions[label]; ok {
			continue
		}
		var cx, cy float64
		var count int
		for _, id := range nodeIDs {
			if clusterOf[id] == label {
				cx += positions[id].X
				cy += positions[id].Y
				count++
			}
		}
		if count > 0 {
			clusterPositions[label] = Point{X: cx / float64(count), Y: cy / float64(count)}
		}
	}

	resolveOverlaps(nodeIDs, clusterLabels, positions, clusterPositions)
	return Result{Positions: positions, ClusterPositions: clusterPositions}
}

// springSolve is a seeded Fruchterman-Reingold pass: inverse-distance
// repulsion scaled by an optimal distance k ∝ 1/√V, attraction proportional
// to edge weight, mild gravity toward the center, linear cooling, and a
// final rescale into the canvas.
func (e *Engine) springSolve(vertices []string, edges []WeightedEdge) (map[string]Point, error) {
	n := len(vertices)
	index := make(map[string]int, n)
	for i, v := range vertices {
		index[v] = i
	}

	rng := rand.New(rand.NewSource(layoutSeed))
	px := make([]float64, n)
	py := make([]float64, n)
	for i := range n {
		px[i] = rng.Float64()
		py[i] = rng.Float64()
	}
	if n == 1 {
		return rescale(vertices, px, py)
	}

	type edgeIdx struct {
		a, b int
		w    float64
	}
	eidx := make([]edgeIdx, 0, len(edges))
	for _, e := range edges {
		a, okA := index[e.Source]
		b, okB := index[e.Target]
		if okA && okB && a != b {
			eidx = append(eidx, edgeIdx{a: a, b: b, w: e.Weight})
		}
	}

	k := e.params.ScalingRatio * 3 / math.Sqrt(float64(n))
	temp := 0.1
	cool := temp / float64(e.params.Iterations+1)
	gravity := e.params.Gravity * 0.01

	dx := make([]float64, n)
	dy := make([]float64, n)
	for range e.params.Iterations {
		for i := range n {
			dx[i], dy[i] = 0, 0
		}

		// Repulsion, all pairs.
		for i := range n {
			for j := i + 1; j < n; j++ {
				ddx := px[i] - px[j]
				ddy := py[i] - py[j]
				dist := math.Hypot(ddx, ddy)
				if dist < 1e-9 {
					dist = 1e-9
					ddx = 1e-9
				}
				f := k * k / (dist * dist)
				dx[i] += ddx * f
				dy[i] += ddy * f
				dx[j] -= ddx * f
				dy[j] -= ddy * f
			}
		}

		// Attraction along edges, proportional to weight.
		for _, ed := range eidx {
			ddx := px[ed.a] - px[ed.b]
			ddy := py[ed.a] - py[ed.b]
			dist := math.Hypot(ddx, ddy)
			if dist < 1e-9 {
				continue
			}
			f := dist * ed.w / k
			dx[ed.a] -= ddx / dist * f
			dy[ed.a] -= ddy / dist * f
			dx[ed.b] += ddx / dist * f
			dy[ed.b] += ddy / dist * f
		}

		// Mild gravity toward the layout center.
		for i := range n {
			dx[i] += (0.5 - px[i]) * gravity
			dy[i] += (0.5 - py[i]) * gravity
		}

		for i := range n {
			disp := math.Hypot(dx[i], dy[i])
			if disp < 1e-12 {
				continue
			}
			step := math.Min(disp, temp)
			px[i] += dx[i] / disp * step
			py[i] += dy[i] / disp * step
		}
		temp -= cool
		if temp < 1e-4 {
			temp = 1e-4
		}
	}

	for i := range n {
		if !finite(px[i]) || !finite(py[i]) {
			return nil, errors.New("spring solver diverged to non-finite positions")
		}
	}
	return rescale(vertices, px, py)
}

// rescale maps solver coordinates into the canvas rectangle with margin.
func rescale(vertices []string, px, py []float64) (map[string]Point, error) {
	minX, maxX := px[0], px[0]
	minY, maxY := py[0], py[0]
	for i := range px {
		minX = math.Min(minX, px[i])
		maxX = math.Max(maxX, px[i])
		minY = math.Min(minY, py[i])
		maxY = math.Max(maxY, py[i])
	}
	spanX := maxX - minX
	spanY := maxY - minY

	out := make(map[string]Point, len(vertices))
	for i, v := range vertices {
		nx, ny := 0.5, 0.5
		if spanX > 1e-12 {
			nx = (px[i] - minX) / spanX
		}
		if spanY > 1e-12 {
			ny = (py[i] - minY) / spanY
		}
		out[v] = Point{
			X: CanvasWidth*CanvasMargin + nx*CanvasWidth*(1-2*CanvasMargin),
			Y: CanvasHeight*CanvasMargin + ny*CanvasHeight*(1-2*CanvasMargin),
		}
	}
	return out, nil
}

// randomPlacement is the layout fallback: deterministic seeded positions
// inside the central canvas region.
func randomPlacement(vertices []string) map[string]Point {
	rng := rand.New(rand.NewSource(layoutSeed))
	out := make(map[string]Point, len(vertices))
	for _, v := range vertices {
		out[v] = Point{
			X: CanvasWidth*CanvasMargin + rng.Float64()*CanvasWidth*(1-2*CanvasMargin),
			Y: CanvasHeight*CanvasMargin + rng.Float64()*CanvasHeight*(1-2*CanvasMargin),
		}
	}
	return out
}

// resolveOverlaps pushes clustered nodes radially outward so none sits closer
// than MinSeparation to its cluster's position. Nodes exactly on the cluster
// position are fanned out on a circle by golden-angle increments keyed by
// node index, which keeps simultaneously degenerate nodes apart.
func resolveOverlaps(nodeIDs []string, clusterLabels []int, positions map[string]Point, clusterPositions map[int]Point) {
	for i, id := range nodeIDs {
		if i >= len(clusterLabels) || clusterLabels[i] == domain.NoiseLabel {
			continue
		}
		cpos, ok := clusterPositions[clusterLabels[i]]
		if !ok {
			continue
		}
		npos, ok := positions[id]
		if !ok {
			continue
		}
		ddx := npos.X - cpos.X
		ddy := npos.Y - cpos.Y
		dist := math.Hypot(ddx, ddy)
		if dist >= MinSeparation {
			continue
		}
		if dist < 0.1 {
			angle := float64(i) * goldenAngle
			ddx = math.Cos(angle)
			ddy = math.Sin(angle)
			dist = 1
		}
		scale := MinSeparation / dist
		positions[id] = Point{X: cpos.X + ddx*scale, Y: cpos.Y + ddy*scale}
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
