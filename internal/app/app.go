// Package app assembles the cortex services from configuration.
// Both the HTTP server and the operator CLI start here.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/cortex/internal/chunker"
	"github.com/kailas-cloud/cortex/internal/config"
	"github.com/kailas-cloud/cortex/internal/db"
	dbRedis "github.com/kailas-cloud/cortex/internal/db/redis"
	"github.com/kailas-cloud/cortex/internal/domain"
	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
	"github.com/kailas-cloud/cortex/internal/loader"
	"github.com/kailas-cloud/cortex/internal/lock"
	"github.com/kailas-cloud/cortex/internal/metrics"
	chunkrepo "github.com/kailas-cloud/cortex/internal/repository/chunk"
	collectionrepo "github.com/kailas-cloud/cortex/internal/repository/collection"
	"github.com/kailas-cloud/cortex/internal/repository/embcache"
	"github.com/kailas-cloud/cortex/internal/repository/keyspace"
	"github.com/kailas-cloud/cortex/internal/repository/memory"
	"github.com/kailas-cloud/cortex/internal/retrieval"
	"github.com/kailas-cloud/cortex/internal/retrieval/cache"
	openaiTransport "github.com/kailas-cloud/cortex/internal/transport/openai"
	collectionuc "github.com/kailas-cloud/cortex/internal/usecase/collection"
	embeddinguc "github.com/kailas-cloud/cortex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/cortex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cortex/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/cortex/internal/usecase/query"
)

// storeRepos is what one storage driver provides to the services.
type storeRepos struct {
	pinger      healthuc.DBPinger
	kv          kvStore
	collections collectionuc.Repository
	chunks      chunkRepository
	close       func()
}

type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type chunkRepository interface {
	Upsert(ctx context.Context, collectionName string, chunks []domchunk.Chunk) error
	Count(ctx context.Context, collectionName string) (int, error)
	Page(ctx context.Context, collectionName string, offset, limit int) (domchunk.Page, error)
	Walk(ctx context.Context, collectionName string, fn domchunk.WalkFunc) error
	Search(ctx context.Context, collectionName string, vec []float32, k int) ([]domchunk.Scored, error)
}

var (
	_ collectionuc.Repository = (*collectionrepo.Repo)(nil)
	_ collectionuc.Repository = (*memory.Store)(nil)
	_ chunkRepository         = (*chunkrepo.Repo)(nil)
	_ chunkRepository         = (*memory.Store)(nil)
)

// App holds the wired services.
type App struct {
	Collections *collectionuc.Service
	Ingest      *ingestuc.Service
	Query       *queryuc.Service
	Health      *healthuc.Service

	close  func()
	logger *zap.Logger
}

// New connects to the configured store and builds every service.
// The returned App must be closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registerMetrics()

	repos, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	mode, err := retrieval.ParseMode(cfg.RAG.Retrieval)
	if err != nil {
		repos.close()
		return nil, fmt.Errorf("retrieval mode: %w", err)
	}

	base := buildEmbedder(cfg, repos.kv, logger)
	docEmbedder := domain.NewPrefixEmbedder(base, cfg.Embedding.DocumentPrefix)
	queryEmbedder := domain.NewPrefixEmbedder(base, cfg.Embedding.QueryPrefix)

	completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Logger:      logger,
	})

	builder := retrieval.NewBuilder(repos.collections, repos.chunks, mode)
	indexes := cache.New(builder, metrics.IndexCacheLookupsTotal, metrics.IndexBuildDuration, logger)
	locks := lock.NewKeyed()
	vectorDim := cfg.Embedding.Dimensions

	collections := collectionuc.New(repos.collections, repos.chunks, indexes, locks, vectorDim, logger).
		WithPaging(cfg.RAG.DefaultChunkPage, cfg.RAG.MaxChunkPage)

	ch := chunker.New(
		chunker.WithChunkSize(cfg.RAG.ChunkSize),
		chunker.WithOverlap(cfg.RAG.ChunkOverlap),
	)
	ld := loader.New(cfg.Ingest.Extensions, logger)
	ingest := ingestuc.New(repos.collections, repos.chunks, ld, ch, docEmbedder, indexes, locks, vectorDim, logger).
		WithMetrics(ingestuc.Metrics{
			Documents: metrics.IngestDocumentsTotal,
			Chunks:    metrics.IngestChunksTotal,
			Duration:  metrics.IngestDuration,
		})

	query := queryuc.New(indexes, queryEmbedder, completer, cfg.RAG.TopK, cfg.RAG.MaxContextChars, logger).
		WithDuration(metrics.QueryDuration)

	logger.Info("Services ready",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("retrieval", string(mode)),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", vectorDim),
		zap.String("llm_model", cfg.LLM.Model),
	)

	return &App{
		Collections: collections,
		Ingest:      ingest,
		Query:       query,
		Health:      healthuc.New(repos.pinger, docEmbedder, completer),
		close:       repos.close,
		logger:      logger,
	}, nil
}

// Close releases the store connection.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

func registerMetrics() {
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterLLMMetrics()
	metrics.RegisterRAGMetrics()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storeRepos, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		s := memory.NewStore()
		return storeRepos{
			pinger:      s,
			kv:          memory.NewKV(),
			collections: s,
			chunks:      s,
			close:       func() {},
		}, nil

	case config.DriverRedis, "":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:       cfg.Database.Addrs,
			Username:    cfg.Database.Username,
			Password:    cfg.Database.Password,
			DB:          cfg.Database.DB,
			DialTimeout: time.Duration(cfg.Database.DialTimeoutSec) * time.Second,
		})
		if err != nil {
			return storeRepos{}, fmt.Errorf("create database store: %w", err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return storeRepos{}, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
		return redisRepos(store, cfg), nil

	default:
		return storeRepos{}, fmt.Errorf("unknown database driver %q: %w", cfg.Database.Driver, domain.ErrInvalidArgument)
	}
}

func redisRepos(store db.Store, cfg config.Config) storeRepos {
	keys := keyspace.New(cfg.Storage.KeyPrefix)
	cols := collectionrepo.New(store, keys, cfg.Embedding.Dimensions).WithIndex(collectionrepo.IndexConfig{
		Algorithm:   db.VectorAlgorithm(cfg.Storage.IndexAlgorithm),
		M:           cfg.Storage.HNSWM,
		EFConstruct: cfg.Storage.HNSWEFConstruct,
	})
	chunks := chunkrepo.New(store, keys, cfg.RAG.UpsertBatchSize).WithScanSize(cfg.RAG.PageSize)
	return storeRepos{
		pinger:      store,
		kv:          store,
		collections: cols,
		chunks:      chunks,
		close:       store.Close,
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// Task prefixes are applied outside the chain, so the cache key includes them.
func buildEmbedder(cfg config.Config, kv kvStore, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:      cfg.Embedding.APIKey,
		BaseURL:     cfg.Embedding.BaseURL,
		Model:       cfg.Embedding.Model,
		Dimensions:  cfg.Embedding.Dimensions,
		Provider:    cfg.Embedding.Provider,
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		Timeout:     time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:      logger,
	})

	var embedder domain.Embedder = base
	if cfg.Embedding.Cache {
		keys := keyspace.New(cfg.Storage.KeyPrefix)
		cached := embcache.New(base, kv, keys, metrics.EmbeddingCacheTotal, logger)
		if cfg.Embedding.CacheTTLHours > 0 {
			cached = cached.WithTTL(time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour)
		}
		embedder = cached
	}

	// Pass a nil interface, not a typed nil pointer, when throttling is off.
	var limiter embeddinguc.Limiter
	if rps := cfg.Embedding.RequestsPerSecond; rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Provider, cfg.Embedding.Model, limiter, logger)
}

// EnsureCollection creates name with description when absent. An existing
// collection keeps its metadata.
func (a *App) EnsureCollection(ctx context.Context, name, description string) (domcol.Collection, error) {
	col, created, err := a.Collections.Create(ctx, name, description)
	if err != nil {
		return domcol.Collection{}, err
	}
	if created {
		a.logger.Info("Collection created", zap.String("collection", name))
	}
	return col, nil
}
