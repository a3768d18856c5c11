// Package chi exposes the analysis pipeline over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/domain"
	"github.com/risknetlabs/risknet/internal/usecase/ingest"
	"github.com/risknetlabs/risknet/internal/version"
)

// maxUploadBytes caps CSV uploads at 20 MiB.
const maxUploadBytes = 20 << 20

// Error codes returned in the JSON error body.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeNotFound         = "not_found"
	codeProviderError    = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// UploadDefaults are the analysis settings applied to CSV uploads when the
// corresponding query parameter is absent. Zero fields fall back to the
// domain defaults.
type UploadDefaults struct {
	MinClusterSize      int
	SimilarityThreshold float64
	MaxEdgesPerNode     int
}

// Server is the HTTP API server.
type Server struct {
	analyzer      Analyzer
	register      RiskRegister
	checks        map[string]HealthChecker
	defaults      UploadDefaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. checks maps dependency names to
// their readiness probes for the health endpoint.
func NewServer(
	analyzer Analyzer,
	register RiskRegister,
	checks map[string]HealthChecker,
	defaults UploadDefaults,
	logger *zap.Logger,
) *Server {
	s := &Server{
		analyzer: analyzer,
		register: register,
		checks:   checks,
		defaults: defaults,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidParams, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmptyCorpus, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmptyCSV, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrMissingColumn, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Routes mounts all handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.root)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.analyze)
		r.Post("/upload-csv", s.uploadCSV)
		r.Post("/similarity-matrix", s.similarityMatrix)
		r.Get("/health", s.health)
		r.Post("/risks", s.upsertRisks)
		r.Get("/risks", s.listRisks)
		r.Get("/risks/{id}", s.getRisk)
	})
}

// root handles GET /.
func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "risknet",
		"version": version.Version,
		"docs":    "/api/v1",
	})
}

// analyze handles POST /api/v1/analyze.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req domain.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// uploadCSV handles POST /api/v1/upload-csv. Analysis settings come from
// query parameters; everything else uses defaults.
func (s *Server) uploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Missing file upload: "+err.Error())
		return
	}
	defer file.Close()

	parsed, err := ingest.ParseCSV(file)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.logger.Info("parsed CSV upload",
		zap.Int("valid", len(parsed.Risks)),
		zap.Int("total", parsed.TotalRows),
		zap.Int("skipped", parsed.Skipped),
	)

	req := domain.AnalysisRequest{Risks: parsed.Risks}
	req.ApplyDefaults()
	if s.defaults.MinClusterSize > 0 {
		req.Clustering.MinClusterSize = s.defaults.MinClusterSize
	}
	if s.defaults.SimilarityThreshold > 0 {
		req.Similarity.Threshold = s.defaults.SimilarityThreshold
	}
	if s.defaults.MaxEdgesPerNode > 0 {
		req.Similarity.MaxEdgesPerNode = s.defaults.MaxEdgesPerNode
	}
	if err := applyQueryParams(r, &req); err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// similarityMatrixResponse is the POST /similarity-matrix body.
type similarityMatrixResponse struct {
	RiskIDs []string    `json:"risk_ids"`
	Matrix  [][]float64 `json:"matrix"`
}

// similarityMatrix handles POST /api/v1/similarity-matrix.
func (s *Server) similarityMatrix(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Risks []domain.RiskRecord `json:"risks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ids, matrix, err := s.analyzer.SimilarityMatrix(r.Context(), req.Risks)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, similarityMatrixResponse{RiskIDs: ids, Matrix: matrix})
}

// health handles GET /api/v1/health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unhealthy"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks[name] = "healthy"
		}
	}
	writeJSON(w, httpStatus, map[string]any{"status": status, "checks": checks})
}

// upsertRisks handles POST /api/v1/risks.
func (s *Server) upsertRisks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Risks []domain.RiskRecord `json:"risks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Risks) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "risks must not be empty")
		return
	}

	if err := s.register.Upsert(r.Context(), req.Risks); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stored": len(req.Risks)})
}

// listRisks handles GET /api/v1/risks.
func (s *Server) listRisks(w http.ResponseWriter, r *http.Request) {
	risks, err := s.register.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"risks": risks})
}

// getRisk handles GET /api/v1/risks/{id}.
func (s *Server) getRisk(w http.ResponseWriter, r *http.Request) {
	risk, err := s.register.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, risk)
}

// applyQueryParams overrides analysis settings from upload-csv query parameters.
func applyQueryParams(r *http.Request, req *domain.AnalysisRequest) error {
	q := r.URL.Query()
	if v := q.Get("min_cluster_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("min_cluster_size %q: %w", v, domain.ErrInvalidParams)
		}
		req.Clustering.MinClusterSize = n
	}
	if v := q.Get("similarity_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("similarity_threshold %q: %w", v, domain.ErrInvalidParams)
		}
		req.Similarity.Threshold = f
	}
	if v := q.Get("max_edges_per_node"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("max_edges_per_node %q: %w", v, domain.ErrInvalidParams)
		}
		req.Similarity.MaxEdgesPerNode = n
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidParams,
		domain.ErrEmptyCorpus,
		domain.ErrEmptyCSV,
		domain.ErrMissingColumn,
		domain.ErrNotFound,
		domain.ErrEmbeddingProvider,
		domain.ErrAnalysisFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
