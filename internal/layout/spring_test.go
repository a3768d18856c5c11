package layout

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/domain"
)

func testParams() domain.LayoutParams {
	return domain.LayoutParams{Iterations: 100, Gravity: 1.0, ScalingRatio: 2.0}
}

func TestCompute_EmptyInput(t *testing.T) {
	res := NewEngine(testParams(), zap.NewNop()).Compute(nil, nil, nil)
	if len(res.Positions) != 0 || len(res.ClusterPositions) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestCompute_PositionsWithinCanvas(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f"}
	labels := []int{0, 0, 1, 1, domain.NoiseLabel, domain.NoiseLabel}
	edges := []WeightedEdge{
		{Source: "a", Target: "b", Weight: 0.9},
		{Source: "c", Target: "d", Weight: 0.8},
	}

	res := NewEngine(testParams(), zap.NewNop()).Compute(ids, edges, labels)

	if len(res.Positions) != len(ids) {
		t.Fatalf("got %d positions, want %d", len(res.Positions), len(ids))
	}
	if len(res.ClusterPositions) != 2 {
		t.Fatalf("got %d cluster positions, want 2", len(res.ClusterPositions))
	}

	// The overlap pass may push a node up to MinSeparation past the margin.
	slack := MinSeparation
	check := func(name string, p Point) {
		if p.X < -slack || p.X > CanvasWidth+slack || p.Y < -slack || p.Y > CanvasHeight+slack {
			t.Errorf("%s at (%g,%g) outside canvas", name, p.X, p.Y)
		}
	}
	for id, p := range res.Positions {
		check("node "+id, p)
	}
	for label, p := range res.ClusterPositions {
		check("cluster anchor", p)
		_ = label
	}
}

func TestCompute_MinSeparationFromClusterPosition(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	labels := []int{0, 0, 0, 0}
	edges := []WeightedEdge{
		{Source: "a", Target: "b", Weight: 0.95},
		{Source: "b", Target: "c", Weight: 0.95},
		{Source: "c", Target: "d", Weight: 0.95},
		{Source: "a", Target: "d", Weight: 0.95},
	}

	res := NewEngine(testParams(), zap.NewNop()).Compute(ids, edges, labels)
	cpos := res.ClusterPositions[0]
	for _, id := range ids {
		p := res.Positions[id]
		dist := math.Hypot(p.X-cpos.X, p.Y-cpos.Y)
		if dist < MinSeparation-1e-6 {
			t.Errorf("node %s at distance %g from cluster, want >= %g", id, dist, MinSeparation)
		}
	}
}

func TestCompute_Deterministic(t *testing.T) {
	// Several clusters, so the anchor vertices and membership springs must
	// be assembled in a stable order for the seeded solve to repeat.
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	labels := []int{0, 0, 1, 1, 2, 2, domain.NoiseLabel}
	edges := []WeightedEdge{
		{Source: "a", Target: "b", Weight: 0.9},
		{Source: "c", Target: "d", Weight: 0.8},
		{Source: "e", Target: "f", Weight: 0.7},
	}

	first := NewEngine(testParams(), zap.NewNop()).Compute(ids, edges, labels)
	for range 3 {
		again := NewEngine(testParams(), zap.NewNop()).Compute(ids, edges, labels)
		for id := range first.Positions {
			if first.Positions[id] != again.Positions[id] {
				t.Fatalf("layout not deterministic for node %s: %+v vs %+v",
					id, first.Positions[id], again.Positions[id])
			}
		}
		for label := range first.ClusterPositions {
			if first.ClusterPositions[label] != again.ClusterPositions[label] {
				t.Fatalf("layout not deterministic for cluster %d", label)
			}
		}
	}
}

func TestResolveOverlaps_GoldenAngleDegenerateNodes(t *testing.T) {
	positions := map[string]Point{
		"a": {X: 500, Y: 400},
		"b": {X: 500, Y: 400},
		"c": {X: 500, Y: 400},
	}
	clusterPositions := map[int]Point{0: {X: 500, Y: 400}}
	resolveOverlaps([]string{"a", "b", "c"}, []int{0, 0, 0}, positions, clusterPositions)

	seen := map[Point]bool{}
	for id, p := range positions {
		dist := math.Hypot(p.X-500, p.Y-400)
		if math.Abs(dist-MinSeparation) > 1e-6 {
			t.Errorf("node %s at distance %g, want exactly %g", id, dist, MinSeparation)
		}
		if seen[p] {
			t.Errorf("degenerate nodes collided at (%g,%g)", p.X, p.Y)
		}
		seen[p] = true
	}
}

func TestResolveOverlaps_SkipsNoise(t *testing.T) {
	positions := map[string]Point{"a": {X: 500, Y: 400}}
	clusterPositions := map[int]Point{0: {X: 500, Y: 400}}
	resolveOverlaps([]string{"a"}, []int{domain.NoiseLabel}, positions, clusterPositions)
	if positions["a"] != (Point{X: 500, Y: 400}) {
		t.Fatal("noise node was moved by the overlap pass")
	}
}

func TestRandomPlacement_InsideCentralRegion(t *testing.T) {
	pos := randomPlacement([]string{"a", "b", "c", "d"})
	for id, p := range pos {
		if p.X < CanvasWidth*CanvasMargin || p.X > CanvasWidth*(1-CanvasMargin) ||
			p.Y < CanvasHeight*CanvasMargin || p.Y > CanvasHeight*(1-CanvasMargin) {
			t.Errorf("fallback position for %s at (%g,%g) outside central region", id, p.X, p.Y)
		}
	}
}
