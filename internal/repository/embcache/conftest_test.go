package embcache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/db"
	"github.com/kailas-cloud/cortex/internal/domain"
	"github.com/kailas-cloud/cortex/internal/repository/keyspace"
	"github.com/kailas-cloud/cortex/internal/repository/memory"
)

// lengthEmbedder embeds text as [len(text), 1] and bills one token per byte.
type lengthEmbedder struct {
	batches   [][]string
	singles   int
	err       error
	healthErr error
}

func (e *lengthEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.singles++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: vec(text), PromptTokens: len(text), TotalTokens: len(text)}, nil
}

func (e *lengthEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.batches = append(e.batches, texts)
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	var out domain.BatchEmbeddingResult
	for _, text := range texts {
		out.Add(domain.BatchEmbeddingResult{
			Embeddings:   [][]float32{vec(text)},
			PromptTokens: len(text),
			TotalTokens:  len(text),
		})
	}
	return out, nil
}

func (e *lengthEmbedder) HealthCheck(context.Context) error { return e.healthErr }

func vec(text string) []float32 { return []float32{float32(len(text)), 1} }

// recordingKV wraps the in-memory KV, records TTLs and can inject failures.
type recordingKV struct {
	*memory.KV
	getErr error
	setErr error
	ttls   map[string]time.Duration
}

func (s *recordingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.KV.Get(ctx, key)
}

func (s *recordingKV) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

func (s *recordingKV) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.ttls[key] = ttl
	return s.KV.SetWithTTL(ctx, key, value, ttl)
}

type fixture struct {
	cache   *CachedEmbedder
	inner   *lengthEmbedder
	kv      *recordingKV
	results *prometheus.CounterVec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		inner:   &lengthEmbedder{},
		kv:      &recordingKV{KV: memory.NewKV(), ttls: map[string]time.Duration{}},
		results: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_embedding_cache_total"}, []string{"result"}),
	}
	f.cache = New(f.inner, f.kv, keyspace.New("test:"), f.results, zap.NewNop())
	return f
}

func (f *fixture) counted(result string) float64 {
	return testutil.ToFloat64(f.results.WithLabelValues(result))
}

// seed stores a vector for text as if an earlier call had embedded it.
func (f *fixture) seed(t *testing.T, text string, v ...float32) {
	t.Helper()
	if err := f.kv.KV.Set(context.Background(), f.cache.cacheKey(text), []byte(db.EncodeVector(v))); err != nil {
		t.Fatalf("seed %q: %v", text, err)
	}
}
