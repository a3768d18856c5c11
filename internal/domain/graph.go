package domain

// Edge types on the returned graph.
const (
	EdgeTypeSimilarity = "similarity"
	EdgeTypeMembership = "membership"
)

// Node is a risk record annotated with its cluster label and canvas position.
type Node struct {
	RiskRecord
	Cluster int     `json:"cluster"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Edge connects two node ids (or a cluster anchor id and a node id for
// membership edges).
type Edge struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Weight   float64 `json:"weight"`
	EdgeType string  `json:"edge_type"`
}

// ClusterSummary describes one detected cluster.
type ClusterSummary struct {
	ID       int      `json:"id"`
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
	Size     int      `json:"size"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
}

// AnalysisRequest is the full pipeline input.
type AnalysisRequest struct {
	Risks      []RiskRecord     `json:"risks"`
	Clustering ClusteringParams `json:"clustering"`
	Similarity SimilarityParams `json:"similarity"`
	Layout     LayoutParams     `json:"layout"`
}

// AnalysisResponse is the assembled risk network.
type AnalysisResponse struct {
	Nodes    []Node           `json:"nodes"`
	Edges    []Edge           `json:"edges"`
	Clusters []ClusterSummary `json:"clusters"`
	Metadata map[string]any   `json:"metadata"`
}

// ApplyDefaults fills parameter blocks the caller left at their zero value.
func (r *AnalysisRequest) ApplyDefaults() {
	if r.Clustering == (ClusteringParams{}) {
		r.Clustering = DefaultClusteringParams()
	}
	if r.Similarity == (SimilarityParams{}) {
		r.Similarity = DefaultSimilarityParams()
	}
	if r.Layout == (LayoutParams{}) {
		r.Layout = DefaultLayoutParams()
	}
}

// Validate checks all parameter blocks.
func (r AnalysisRequest) Validate() error {
	if err := r.Clustering.Validate(); err != nil {
		return err
	}
	if err := r.Similarity.Validate(); err != nil {
		return err
	}
	return r.Layout.Validate()
}
