package collection

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/domain"
	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
)

// ChunkPreviewLength is how many characters of a chunk a page shows.
const ChunkPreviewLength = 300

const (
	defaultPageSize = 50
	defaultMaxPage  = 500
)

// Summary is a collection with its chunk count.
type Summary struct {
	Collection domcol.Collection
	Count      int
}

// Service manages collections, keeping the store and the index cache consistent.
// Mutations share the per-collection lock with ingestion.
type Service struct {
	repo      Repository
	chunks    ChunkReader
	cache     IndexCache
	locks     Locker
	vectorDim int
	pageSize  int
	maxPage   int
	logger    *zap.Logger
}

// New creates a collection service.
func New(repo Repository, chunks ChunkReader, cache IndexCache, locks Locker, vectorDim int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		chunks:    chunks,
		cache:     cache,
		locks:     locks,
		vectorDim: vectorDim,
		pageSize:  defaultPageSize,
		maxPage:   defaultMaxPage,
		logger:    logger,
	}
}

// WithPaging overrides the default and maximum chunk page sizes.
func (s *Service) WithPaging(def, limit int) *Service {
	if def > 0 {
		s.pageSize = def
	}
	if limit > 0 {
		s.maxPage = limit
	}
	if s.pageSize > s.maxPage {
		s.pageSize = s.maxPage
	}
	return s
}

// Create returns the named collection, creating it with description when absent.
// The bool reports whether it was created.
func (s *Service) Create(ctx context.Context, name, description string) (domcol.Collection, bool, error) {
	col, err := domcol.New(name, description, s.vectorDim)
	if err != nil {
		return domcol.Collection{}, false, fmt.Errorf("validate collection %q: %w: %w", name, domain.ErrInvalidArgument, err)
	}

	got, created, err := s.repo.GetOrCreate(ctx, col)
	if err != nil {
		return domcol.Collection{}, false, fmt.Errorf("create collection %s: %w", name, err)
	}
	if created {
		s.logger.Info("collection created", zap.String("collection", name))
	}
	return got, created, nil
}

// Get retrieves a collection by name.
func (s *Service) Get(ctx context.Context, name string) (domcol.Collection, error) {
	col, err := s.repo.Get(ctx, name)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection %s: %w", name, err)
	}
	return col, nil
}

// List returns every collection with its chunk count, oldest first.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	cols, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	out := make([]Summary, 0, len(cols))
	for _, col := range cols {
		n, err := s.chunks.Count(ctx, col.Name())
		if err != nil {
			return nil, fmt.Errorf("count chunks of %s: %w", col.Name(), err)
		}
		out = append(out, Summary{Collection: col, Count: n})
	}
	return out, nil
}

// Delete removes a collection with its chunks.
func (s *Service) Delete(ctx context.Context, name string) error {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	s.cache.Invalidate(name)
	s.logger.Info("collection deleted", zap.String("collection", name))
	return nil
}

// Clear removes every chunk of a collection and keeps its metadata.
// The collection is dropped and recreated with a new creation time.
func (s *Service) Clear(ctx context.Context, name string) (domcol.Collection, error) {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return domcol.Collection{}, err
	}
	defer unlock()

	col, err := s.repo.Get(ctx, name)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("clear collection %s: %w", name, err)
	}
	if err := s.repo.Delete(ctx, name); err != nil {
		return domcol.Collection{}, fmt.Errorf("clear collection %s: %w", name, err)
	}
	s.cache.Invalidate(name)

	fresh := col.Renewed()
	if err := s.repo.Create(ctx, fresh); err != nil {
		s.logger.Error("collection lost while clearing",
			zap.String("collection", name),
			zap.String("description", col.Description()),
			zap.String("source", col.Source()),
			zap.Error(err),
		)
		return domcol.Collection{}, fmt.Errorf("recreate collection %s: %w", name, err)
	}
	s.logger.Info("collection cleared", zap.String("collection", name))
	return fresh, nil
}

// UpdateMetadata merges the fields set in p into the collection metadata.
func (s *Service) UpdateMetadata(ctx context.Context, name string, p domcol.Patch) (domcol.Collection, error) {
	unlock, err := s.lock(ctx, name)
	if err != nil {
		return domcol.Collection{}, err
	}
	defer unlock()

	col, err := s.repo.Get(ctx, name)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("update collection %s: %w", name, err)
	}
	if p.IsEmpty() {
		return col, nil
	}

	meta := col.Metadata().Merge(p)
	if err := s.repo.UpdateMetadata(ctx, name, meta); err != nil {
		return domcol.Collection{}, fmt.Errorf("update collection %s: %w", name, err)
	}
	return col.WithMetadata(meta), nil
}

// ChunksPage lists chunks in a stable order with their text cut to a preview.
// A zero limit selects the default page size; larger limits are capped.
func (s *Service) ChunksPage(ctx context.Context, name string, limit, offset int) (domchunk.Page, error) {
	if limit < 0 {
		return domchunk.Page{}, fmt.Errorf("limit must not be negative: %w", domain.ErrInvalidArgument)
	}
	if offset < 0 {
		return domchunk.Page{}, fmt.Errorf("offset must not be negative: %w", domain.ErrInvalidArgument)
	}
	if limit == 0 {
		limit = s.pageSize
	}
	limit = min(limit, s.maxPage)

	if _, err := s.repo.Get(ctx, name); err != nil {
		return domchunk.Page{}, fmt.Errorf("list chunks of %s: %w", name, err)
	}
	page, err := s.chunks.Page(ctx, name, offset, limit)
	if err != nil {
		return domchunk.Page{}, fmt.Errorf("list chunks of %s: %w", name, err)
	}
	page.Offset, page.Limit = offset, limit
	for i := range page.Chunks {
		page.Chunks[i].Text = domchunk.Preview(page.Chunks[i].Text, ChunkPreviewLength)
	}
	return page, nil
}

func (s *Service) lock(ctx context.Context, name string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lock collection %s: %w", name, err)
	}
	return unlock, nil
}
