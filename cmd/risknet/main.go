package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/cluster"
	"github.com/risknetlabs/risknet/internal/config"
	dbRedis "github.com/risknetlabs/risknet/internal/db/redis"
	"github.com/risknetlabs/risknet/internal/domain"
	logpkg "github.com/risknetlabs/risknet/internal/logger"
	"github.com/risknetlabs/risknet/internal/metrics"
	"github.com/risknetlabs/risknet/internal/repository/resultcache"
	"github.com/risknetlabs/risknet/internal/repository/riskstore"
	chiTransport "github.com/risknetlabs/risknet/internal/transport/chi"
	openaiEmb "github.com/risknetlabs/risknet/internal/transport/openai"
	"github.com/risknetlabs/risknet/internal/usecase/analysis"
	"github.com/risknetlabs/risknet/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting risknet API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("sqlite_path", cfg.Storage.SQLitePath),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	// Risk register
	register, err := riskstore.Open(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Fatal("Failed to open risk register", zap.Error(err))
	}
	defer register.Close()

	// Register analysis metrics explicitly (no init())
	metrics.RegisterAnalysisMetrics()

	// Embedding provider
	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	// Analysis pipeline
	engine := cluster.NewEngine(cluster.PCAReducer{}, logger)
	svc := analysis.New(embedder, engine, logger)

	checks := map[string]chiTransport.HealthChecker{
		"sqlite":    register,
		"embedding": pingAdapter{embedder.HealthCheck},
	}

	// Optional result cache in front of the pipeline
	var analyzer chiTransport.Analyzer = svc
	if len(cfg.Cache.Addrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.WaitForReady(ctx, 30*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to result cache", zap.Strings("addrs", cfg.Cache.Addrs))

		cached := resultcache.New(
			svc, store, time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.ResultCacheTotal, logger,
		)
		analyzer = cachedAnalyzer{cache: cached, svc: svc}
		checks["cache"] = store
	}

	server := chiTransport.NewServer(analyzer, register, checks, chiTransport.UploadDefaults{
		MinClusterSize:      cfg.Analysis.MinClusterSize,
		SimilarityThreshold: cfg.Analysis.SimilarityThreshold,
		MaxEdgesPerNode:     cfg.Analysis.MaxEdgesPerNode,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// cachedAnalyzer serves Analyze through the cache and everything else
// straight from the service.
type cachedAnalyzer struct {
	cache *resultcache.CachedAnalyzer
	svc   *analysis.Service
}

func (a cachedAnalyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResponse, error) {
	return a.cache.Analyze(ctx, req)
}

func (a cachedAnalyzer) SimilarityMatrix(ctx context.Context, risks []domain.RiskRecord) ([]string, [][]float64, error) {
	return a.svc.SimilarityMatrix(ctx, risks)
}

// pingAdapter exposes a HealthCheck func as a chiTransport.HealthChecker.
type pingAdapter struct {
	check func(ctx context.Context) error
}

func (p pingAdapter) Ping(ctx context.Context) error { return p.check(ctx) }

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
