// Package resultcache caches whole analysis responses in a key-value store,
// keyed by a digest of the canonicalized corpus and the analysis parameters.
// Embeddings themselves are never stored.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/risknetlabs/risknet/internal/db"
	"github.com/risknetlabs/risknet/internal/domain"
	"github.com/risknetlabs/risknet/internal/text"
)

const cacheKeyPrefix = "risknet:analysis:"

// store is the consumer interface for the result cache.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// analyzer is the inner service being decorated.
type analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResponse, error)
}

// CachedAnalyzer serves repeated analysis requests from the cache. The
// pipeline is deterministic, so identical corpus plus identical parameters
// yields an identical response.
type CachedAnalyzer struct {
	inner      analyzer
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner analyzer,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedAnalyzer {
	return &CachedAnalyzer{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Analyze returns a cached response or calls the inner service.
func (c *CachedAnalyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResponse, error) {
	req.ApplyDefaults()
	key, err := c.cacheKey(req)
	if err != nil {
		return c.inner.Analyze(ctx, req)
	}

	if resp, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return resp, nil
	}
	c.incCache("miss")

	resp, err := c.inner.Analyze(ctx, req)
	if err != nil {
		return domain.AnalysisResponse{}, err
	}

	c.putToCache(ctx, key, resp)
	return resp, nil
}

func (c *CachedAnalyzer) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey digests the canonical texts and all parameter blocks.
func (c *CachedAnalyzer) cacheKey(req domain.AnalysisRequest) (string, error) {
	payload := struct {
		Texts      []string                `json:"texts"`
		Clustering domain.ClusteringParams `json:"clustering"`
		Similarity domain.SimilarityParams `json:"similarity"`
		Layout     domain.LayoutParams     `json:"layout"`
	}{
		Texts:      text.CombineAll(req.Risks),
		Clustering: req.Clustering,
		Similarity: req.Similarity,
		Layout:     req.Layout,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal cache key payload: %w", err)
	}
	h := sha256.Sum256(data)
	return cacheKeyPrefix + hex.EncodeToString(h[:]), nil
}

func (c *CachedAnalyzer) getFromCache(ctx context.Context, key string) (domain.AnalysisResponse, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached analysis", zap.String("key", key), zap.Error(err))
		}
		return domain.AnalysisResponse{}, false
	}

	var resp domain.AnalysisResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("Failed to parse cached analysis", zap.String("key", key), zap.Error(err))
		return domain.AnalysisResponse{}, false
	}
	return resp, true
}

func (c *CachedAnalyzer) putToCache(ctx context.Context, key string, resp domain.AnalysisResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("Failed to marshal analysis for cache", zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache analysis", zap.String("key", key), zap.Error(err))
	}
}
