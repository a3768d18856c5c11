package layout

import (
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/domain"
)

// projectMinSamples is the smallest corpus a 2D projection is defined for.
const projectMinSamples = 4

// Project2D places nodes by reducing their embeddings straight to two
// dimensions, so canvas proximity mirrors semantic proximity. Below
// projectMinSamples rows, or when the reducer fails, nodes get seeded jitter
// around the canvas center instead.
func Project2D(reducer domain.Reducer, embeddings [][]float32, nodeIDs []string, logger *zap.Logger) map[string]Point {
	n := len(embeddings)
	if n < projectMinSamples {
		return centerJitter(nodeIDs)
	}

	neighbors := max(2, min(15, n-1))
	coords, err := reducer.Reduce(embeddings, 2, neighbors, "cosine", layoutSeed)
	if err != nil {
		logger.Warn("2D projection failed, using seeded jitter", zap.Error(err))
		return centerJitter(nodeIDs)
	}

	minX, maxX := float64(coords[0][0]), float64(coords[0][0])
	minY, maxY := float64(coords[0][1]), float64(coords[0][1])
	for _, c := range coords {
		minX = math.Min(minX, float64(c[0]))
		maxX = math.Max(maxX, float64(c[0]))
		minY = math.Min(minY, float64(c[1]))
		maxY = math.Max(maxY, float64(c[1]))
	}

	positions := make(map[string]Point, len(nodeIDs))
	for i, id := range nodeIDs {
		x := (float64(coords[i][0]) - minX) / (maxX - minX + 1e-10)
		y := (float64(coords[i][1]) - minY) / (maxY - minY + 1e-10)
		positions[id] = Point{
			X: x*CanvasWidth*(1-2*CanvasMargin) + CanvasWidth*CanvasMargin,
			Y: y*CanvasHeight*(1-2*CanvasMargin) + CanvasHeight*CanvasMargin,
		}
	}
	return positions
}

func centerJitter(nodeIDs []string) map[string]Point {
	rng := rand.New(rand.NewSource(layoutSeed))
	positions := make(map[string]Point, len(nodeIDs))
	for _, id := range nodeIDs {
		positions[id] = Point{
			X: CanvasWidth/2 + rng.NormFloat64()*100,
			Y: CanvasHeight/2 + rng.NormFloat64()*100,
		}
	}
	return positions
}
