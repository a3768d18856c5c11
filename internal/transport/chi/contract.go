package chi

import (
	"context"

	"github.com/risknetlabs/risknet/internal/domain"
)

// Analyzer runs the analysis pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResponse, error)
	SimilarityMatrix(ctx context.Context, risks []domain.RiskRecord) ([]string, [][]float64, error)
}

// RiskRegister persists and lists risk records.
type RiskRegister interface {
	Upsert(ctx context.Context, risks []domain.RiskRecord) error
	List(ctx context.Context) ([]domain.RiskRecord, error)
	Get(ctx context.Context, id string) (domain.RiskRecord, error)
}

// HealthChecker reports readiness of one dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
