// Package layout places risk nodes and cluster anchors on a bounded canvas
// with a force-directed solver.
package layout

import "fmt"

// Canvas geometry. All returned positions fall inside this rectangle.
const (
	CanvasWidth  = 1000.0
	CanvasHeight = 800.0
	CanvasMargin = 0.1 // fraction kept clear on each side

	// MinSeparation is the smallest allowed distance between a clustered
	// node and its cluster's position after the overlap pass.
	MinSeparation = 40.0

	// goldenAngle (radians) spreads coincident degenerate nodes on a circle.
	goldenAngle = 2.39996

	// anchorEdgeWeight is the weak spring tying a member to its cluster
	// anchor, well below typical similarity weights.
	anchorEdgeWeight = 0.1
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WeightedEdge is an undirected edge between vertex ids.
type WeightedEdge struct {
	Source string
	Target string
	Weight float64
}

// Result maps node ids and cluster labels to canvas positions.
type Result struct {
	Positions        map[string]Point
	ClusterPositions map[int]Point
}

// AnchorID returns the virtual vertex id used for a cluster anchor.
func AnchorID(cluster int) string {
	return fmt.Sprintf("__cluster_%d__", cluster)
}
