package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/domain"
	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
	"github.com/kailas-cloud/cortex/internal/domain/document"
	"github.com/kailas-cloud/cortex/internal/ledger"
	"github.com/kailas-cloud/cortex/internal/loader"
)

// Result summarizes one ingestion run.
type Result struct {
	Collection  string
	IngestID    string
	Ingested    int
	Skipped     int
	NewChunks   int
	TotalChunks int
}

// Metrics are the collectors an ingestion run reports to. Nil fields are skipped.
type Metrics struct {
	// Documents has label "result" ("ingested"/"skipped").
	Documents *prometheus.CounterVec
	Chunks    prometheus.Counter
	Duration  prometheus.Observer
}

// Service runs deduplicated, incremental ingestion into collections.
// Runs against the same collection are serialized; different collections proceed in parallel.
type Service struct {
	cols      CollectionRepository
	chunks    ChunkRepository
	loader    DocumentLoader
	chunker   Chunker
	embedder  domain.BatchEmbedder
	cache     IndexCache
	locks     Locker
	vectorDim int
	metrics   Metrics
	logger    *zap.Logger
}

// New creates an ingestion service. vectorDim is used for collections the
// service has to create.
func New(
	cols CollectionRepository,
	chunks ChunkRepository,
	ld DocumentLoader,
	ch Chunker,
	embedder domain.BatchEmbedder,
	cache IndexCache,
	locks Locker,
	vectorDim int,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cols:      cols,
		chunks:    chunks,
		loader:    ld,
		chunker:   ch,
		embedder:  embedder,
		cache:     cache,
		locks:     locks,
		vectorDim: vectorDim,
		logger:    logger,
	}
}

// WithMetrics sets the collectors runs report to.
func (s *Service) WithMetrics(m Metrics) *Service {
	s.metrics = m
	return s
}

// Directory ingests every allow-listed file under dir into the named
// collection, creating it when absent, and records dir as its source.
func (s *Service) Directory(ctx context.Context, name, dir string) (Result, error) {
	if err := loader.Check(dir); err != nil {
		return Result{}, fmt.Errorf("ingest into %s: %w", name, err)
	}
	return s.run(ctx, name, dir, func(ctx context.Context) ([]document.Document, error) {
		return s.loader.Load(ctx, dir)
	})
}

type loadFunc func(ctx context.Context) ([]document.Document, error)

func (s *Service) run(ctx context.Context, name, source string, load loadFunc) (Result, error) {
	start := time.Now()
	blank, err := domcol.New(name, "", s.vectorDim)
	if err != nil {
		return Result{}, fmt.Errorf("ingest into %q: %w: %w", name, domain.ErrInvalidArgument, err)
	}

	unlock, err := s.locks.Lock(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("lock collection %s: %w", name, err)
	}
	defer unlock()

	col, created, err := s.cols.GetOrCreate(ctx, blank)
	if err != nil {
		return Result{}, fmt.Errorf("resolve collection %s: %w", name, err)
	}
	if created {
		s.logger.Info("collection created", zap.String("collection", name))
	}
	if source != "" && col.Source() != source {
		meta := col.Metadata().Merge(domcol.Patch{Source: &source})
		if err := s.cols.UpdateMetadata(ctx, name, meta); err != nil {
			return Result{}, fmt.Errorf("record source of %s: %w", name, err)
		}
		col = col.WithMetadata(meta)
	}

	led, err := ledger.Load(ctx, s.chunks, name)
	if err != nil {
		return Result{}, err
	}

	docs, err := load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("ingest into %s: %w", name, err)
	}

	res := Result{Collection: name}
	fresh := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		if !led.Add(doc.Fingerprint()) {
			res.Skipped++
			continue
		}
		fresh = append(fresh, doc)
	}
	res.Ingested = len(fresh)
	s.countDocuments(res)

	if len(fresh) > 0 {
		res.IngestID = uuid.NewString()
		n, err := s.write(ctx, col, fresh, res.IngestID)
		if err != nil {
			return Result{}, err
		}
		res.NewChunks = n
	}

	total, err := s.chunks.Count(ctx, name)
	if err != nil {
		return Result{}, fmt.Errorf("count chunks of %s: %w", name, err)
	}
	res.TotalChunks = total

	if s.metrics.Duration != nil {
		s.metrics.Duration.Observe(time.Since(start).Seconds())
	}
	s.logger.Info("ingestion finished",
		zap.String("collection", name),
		zap.String("source", source),
		zap.String("ingest_id", res.IngestID),
		zap.Int("ingested", res.Ingested),
		zap.Int("skipped", res.Skipped),
		zap.Int("chunks", res.NewChunks),
		zap.Int("total_chunks", res.TotalChunks),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// write chunks, embeds and persists docs, then drops the cached index.
func (s *Service) write(ctx context.Context, col domcol.Collection, docs []document.Document, ingestID string) (int, error) {
	name := col.Name()

	var chunks []domchunk.Chunk
	for _, doc := range docs {
		for _, c := range s.chunker.Chunk(doc) {
			if c.Metadata.Extra == nil {
				c.Metadata.Extra = make(map[string]string, 1)
			}
			c.Metadata.Extra[domchunk.MetaIngestID] = ingestID
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	emb, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks for %s: %w", name, upstream(err))
	}
	if len(emb.Embeddings) != len(chunks) {
		return 0, fmt.Errorf("embed chunks for %s: got %d vectors for %d chunks: %w",
			name, len(emb.Embeddings), len(chunks), domain.ErrUpstreamUnavailable)
	}
	for i := range chunks {
		if dim := len(emb.Embeddings[i]); dim != col.VectorDim() {
			return 0, fmt.Errorf("collection %s expects %d dimensions, embedder returned %d: %w",
				name, col.VectorDim(), dim, domain.ErrVectorDimMismatch)
		}
		chunks[i].Embedding = emb.Embeddings[i]
	}

	defer s.cache.Invalidate(name)
	if err := s.chunks.Upsert(ctx, name, chunks); err != nil {
		return 0, fmt.Errorf("persist chunks into %s: %w", name, err)
	}
	if s.metrics.Chunks != nil {
		s.metrics.Chunks.Add(float64(len(chunks)))
	}
	return len(chunks), nil
}

func (s *Service) countDocuments(res Result) {
	if s.metrics.Documents == nil {
		return
	}
	s.metrics.Documents.WithLabelValues("ingested").Add(float64(res.Ingested))
	s.metrics.Documents.WithLabelValues("skipped").Add(float64(res.Skipped))
}

// upstream tags provider errors unless they already carry a kind.
func upstream(err error) error {
	if domain.Kind(err) != "internal" {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
}
