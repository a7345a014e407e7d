// Package embcache caches embeddings in the store's key-value space,
// keyed by a digest of the exact text sent to the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/db"
	"github.com/kailas-cloud/cortex/internal/domain"
	"github.com/kailas-cloud/cortex/internal/repository/keyspace"
)

// kvStore is the consumer interface for the embedding cache (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches embeddings in a key-value store.
type CachedEmbedder struct {
	inner      domain.Embedder
	kv         kvStore
	keys       keyspace.Keyspace
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	kv kvStore,
	keys keyspace.Keyspace,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		kv:         kv,
		keys:       keys,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// WithTTL expires cached vectors after ttl. Zero keeps them forever.
func (c *CachedEmbedder) WithTTL(ttl time.Duration) *CachedEmbedder {
	c.ttl = ttl
	return c
}

// Embed returns a cached embedding or calls the inner embedder.
// A hit reports zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.store(ctx, key, result.Embedding)
	return result, nil
}

// miss is a text the cache could not serve, with its position in the batch.
type miss struct {
	pos  int
	key  string
	text string
}

// BatchEmbed serves hits from the cache and sends only the misses to the
// inner embedder, in one batch. Output order matches texts; tokens count
// the misses only.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	var misses []miss
	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.lookup(ctx, key); ok {
			out.Embeddings[i] = vec
			continue
		}
		misses = append(misses, miss{pos: i, key: key, text: text})
	}
	if len(misses) == 0 {
		return out, nil
	}

	pending := make([]string, len(misses))
	for j, m := range misses {
		pending[j] = m.text
	}
	res, err := domain.BatchOf(c.inner).BatchEmbed(ctx, pending)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed %d texts: %w", len(pending), err)
	}
	if len(res.Embeddings) != len(pending) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: got %d vectors for %d texts: %w",
			len(res.Embeddings), len(pending), domain.ErrUpstreamUnavailable)
	}

	for j, m := range misses {
		out.Embeddings[m.pos] = res.Embeddings[j]
		c.store(ctx, m.key, res.Embeddings[j])
	}
	out.PromptTokens, out.TotalTokens = res.PromptTokens, res.TotalTokens
	return out, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.keys.Embedding(hex.EncodeToString(sum[:]))
}

// lookup reads a cached vector and counts the hit or miss. Store failures
// and undecodable entries are misses.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, err := c.read(ctx, key)
	switch {
	case err == nil && len(vec) > 0:
		c.count("hit")
		return vec, true
	case err != nil && !errors.Is(err, db.ErrKeyNotFound):
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
	}
	c.count("miss")
	return nil, false
}

func (c *CachedEmbedder) read(ctx context.Context, key string) ([]float32, error) {
	data, err := c.kv.Get(ctx, key)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	vec, err := db.DecodeVector(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode cached vector: %w", err)
	}
	return vec, nil
}

// store writes a vector. Write failures are logged and dropped.
func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	data := []byte(db.EncodeVector(vec))
	var err error
	if c.ttl > 0 {
		err = c.kv.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.kv.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
