package cluster

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/domain"
)

func testEngine() *Engine {
	return NewEngine(PCAReducer{}, zap.NewNop())
}

func defaultParams() domain.ClusteringParams {
	return domain.ClusteringParams{MinClusterSize: 2, Metric: "euclidean"}
}

// twoPairsTwoSingles: two tight pairs plus two far-away singletons.
func twoPairsTwoSingles() [][]float32 {
	return [][]float32{
		{0, 0}, {0, 0.1},
		{10, 10}, {10, 10.1},
		{50, 50},
		{-50, -50},
	}
}

func TestCluster_FewerThanThreeRecords(t *testing.T) {
	for _, n := range []int{1, 2} {
		emb := make([][]float32, n)
		for i := range emb {
			emb[i] = []float32{float32(i), 1}
		}
		res, err := testEngine().Cluster(emb, defaultParams())
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if res.NumClusters != 1 {
			t.Errorf("n=%d: NumClusters = %d, want 1", n, res.NumClusters)
		}
		for i := range n {
			if res.Labels[i] != 0 {
				t.Errorf("n=%d: label[%d] = %d, want 0", n, i, res.Labels[i])
			}
			if res.Confidences[i] != 1 {
				t.Errorf("n=%d: confidence[%d] = %g, want 1", n, i, res.Confidences[i])
			}
		}
	}
}

func TestCluster_DensityFindsPairsAndNoise(t *testing.T) {
	res, err := testEngine().Cluster(twoPairsTwoSingles(), defaultParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodDensity {
		t.Fatalf("method = %s, want %s", res.Method, MethodDensity)
	}
	if res.NumClusters != 2 {
		t.Fatalf("NumClusters = %d, want 2 (labels %v)", res.NumClusters, res.Labels)
	}
	if res.Labels[0] != res.Labels[1] || res.Labels[2] != res.Labels[3] {
		t.Errorf("pair members split across clusters: %v", res.Labels)
	}
	if res.Labels[0] == res.Labels[2] {
		t.Errorf("distinct pairs share a cluster: %v", res.Labels)
	}
	if res.Labels[4] != domain.NoiseLabel || res.Labels[5] != domain.NoiseLabel {
		t.Errorf("singletons not noise: %v", res.Labels)
	}
	for i := range 4 {
		if res.Confidences[i] < 0 || res.Confidences[i] > 1 {
			t.Errorf("confidence[%d] = %g out of [0,1]", i, res.Confidences[i])
		}
	}
}

func TestHDBSCAN_CoreDistanceCountsSelf(t *testing.T) {
	// A point's own zero distance is its first neighbor, so with
	// minSamples=2 a pair member's core distance reaches exactly its
	// partner. Counting from the partner instead would pull every core
	// distance out to the next pair and dissolve both pairs into noise.
	points := [][]float64{
		{0, 0}, {0, 0.1},
		{10, 10}, {10, 10.1},
		{50, 50}, {-50, -50},
	}
	res, err := hdbscan(points, 2, 2, 0, "euclidean")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.numClusters != 2 {
		t.Fatalf("numClusters = %d, want 2 (labels %v)", res.numClusters, res.labels)
	}
	if res.labels[0] != res.labels[1] || res.labels[2] != res.labels[3] {
		t.Errorf("pair members split across clusters: %v", res.labels)
	}
	if res.labels[4] != domain.NoiseLabel || res.labels[5] != domain.NoiseLabel {
		t.Errorf("singletons not noise: %v", res.labels)
	}
}

func TestCluster_FallbackHasNoNoise(t *testing.T) {
	// Four corners of a square: density clustering finds no cluster with two
	// dense sides, so the centroid fallback must take over noise-free.
	emb := [][]float32{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	res, err := testEngine().Cluster(emb, defaultParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodCentroid {
		t.Fatalf("method = %s, want %s", res.Method, MethodCentroid)
	}
	for i, l := range res.Labels {
		if l == domain.NoiseLabel {
			t.Errorf("label[%d] is noise; fallback has no noise concept", i)
		}
	}
	if len(res.Degradations) == 0 {
		t.Error("fallback substitution not recorded as degradation")
	}
	if distinctLabels(res.Labels) != res.NumClusters {
		t.Errorf("distinct labels %d != reported clusters %d", distinctLabels(res.Labels), res.NumClusters)
	}
}

func TestCluster_ExplicitKMeans(t *testing.T) {
	params := defaultParams()
	params.Method = MethodCentroid
	params.K = 2

	res, err := testEngine().Cluster(twoPairsTwoSingles(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodCentroid || res.NumClusters != 2 {
		t.Fatalf("got method %s k=%d, want kmeans k=2", res.Method, res.NumClusters)
	}
	if len(res.Degradations) != 0 {
		t.Errorf("explicit method must not count as degradation: %v", res.Degradations)
	}
}

func TestCluster_Deterministic(t *testing.T) {
	first, err := testEngine().Cluster(twoPairsTwoSingles(), defaultParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range 3 {
		again, err := testEngine().Cluster(twoPairsTwoSingles(), defaultParams())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := range first.Labels {
			if first.Labels[i] != again.Labels[i] {
				t.Fatalf("labels not deterministic: %v vs %v", first.Labels, again.Labels)
			}
		}
	}
}

type failingReducer struct{ called bool }

func (r *failingReducer) Reduce([][]float32, int, int, string, int64) ([][]float32, error) {
	r.called = true
	return nil, errors.New("reducer exploded")
}

func TestCluster_ReducerFailureKeepsOriginalMatrix(t *testing.T) {
	red := &failingReducer{}
	engine := NewEngine(red, zap.NewNop())

	// 60 dimensions forces the reduction path; two clear groups survive either way.
	emb := make([][]float32, 8)
	for i := range emb {
		row := make([]float32, 60)
		if i < 4 {
			row[0] = 1 + float32(i)*0.01
		} else {
			row[1] = 1 + float32(i)*0.01
		}
		emb[i] = row
	}

	res, err := engine.Cluster(emb, defaultParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !red.called {
		t.Fatal("reducer was never invoked for 60-dimensional input")
	}
	if len(res.Degradations) == 0 {
		t.Error("reducer failure not recorded as degradation")
	}
	if res.NumClusters < 1 {
		t.Errorf("clustering produced no clusters at all: %+v", res)
	}
}

func TestFindOptimalK_ThreeGroups(t *testing.T) {
	var points [][]float64
	centers := [][2]float64{{0, 0}, {20, 0}, {0, 20}}
	for _, c := range centers {
		for i := range 5 {
			points = append(points, []float64{c[0] + float64(i)*0.1, c[1] - float64(i)*0.1})
		}
	}
	if k := findOptimalK(points, randomSeed); k != 3 {
		t.Fatalf("optimal k = %d, want 3", k)
	}
}

func TestKMeansCluster_ConfidenceRange(t *testing.T) {
	points := [][]float64{{0, 0}, {0.2, 0}, {5, 5}, {5.2, 5}, {9, 0}}
	res, err := kmeansCluster(points, 2, randomSeed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, p := range res.probs {
		if p < 0 || p > 1 {
			t.Errorf("confidence[%d] = %g out of [0,1]", i, p)
		}
	}
}
