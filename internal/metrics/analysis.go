package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Analysis pipeline Prometheus metrics.
var (
	AnalysisStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "risknet",
			Name:      "analysis_stage_duration_seconds",
			Help:      "Duration of each analysis pipeline stage",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	AnalysisDegradationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "risknet",
			Name:      "analysis_degradations_total",
			Help:      "Stage fallbacks substituted during analysis",
		},
		[]string{"stage"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "risknet",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "risknet",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "risknet",
			Name:      "result_cache_total",
			Help:      "Analysis result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var analysisMetricsRegistered bool

// RegisterAnalysisMetrics registers analysis metrics. Must be called once from main.
func RegisterAnalysisMetrics() {
	if analysisMetricsRegistered {
		return
	}
	prometheus.MustRegister(AnalysisStageDuration)
	prometheus.MustRegister(AnalysisDegradationsTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(ResultCacheTotal)
	analysisMetricsRegistered = true
}

// ObserveStage records one stage duration.
func ObserveStage(stage string, d time.Duration) {
	AnalysisStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncDegradation counts one substituted fallback.
func IncDegradation(stage string) {
	AnalysisDegradationsTotal.WithLabelValues(stage).Inc()
}
