// Package memory keeps collections, chunks and cache entries in process memory.
// It satisfies the same contracts as the Redis-backed repositories and is
// selected with database.driver "memory".
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/cortex/internal/domain"
	"github.com/kailas-cloud/cortex/internal/domain/chunk"
	"github.com/kailas-cloud/cortex/internal/domain/collection"
	"github.com/kailas-cloud/cortex/internal/retrieval"
)

type entry struct {
	col    collection.Collection
	chunks map[string]chunk.Chunk
}

// Store is a process-local vector store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*entry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]*entry),
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// --- collections ---

// Create stores a new collection.
func (s *Store) Create(_ context.Context, col collection.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[col.Name()]; ok {
		return fmt.Errorf("collection %s: %w", col.Name(), domain.ErrAlreadyExists)
	}
	s.collections[col.Name()] = &entry{col: col, chunks: make(map[string]chunk.Chunk)}
	return nil
}

// GetOrCreate returns the stored collection named like col, creating it when absent.
func (s *Store) GetOrCreate(_ context.Context, col collection.Collection) (collection.Collection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.collections[col.Name()]; ok {
		return e.col, false, nil
	}
	s.collections[col.Name()] = &entry{col: col, chunks: make(map[string]chunk.Chunk)}
	return col, true, nil
}

// Get returns a collection by name.
func (s *Store) Get(_ context.Context, name string) (collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.collections[name]
	if !ok {
		return collection.Collection{}, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	return e.col, nil
}

// List returns all collections sorted by CreatedAt.
func (s *Store) List(_ context.Context) ([]collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]collection.Collection, 0, len(s.collections))
	for _, e := range s.collections {
		out = append(out, e.col)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt() != out[j].CreatedAt() {
			return out[i].CreatedAt() < out[j].CreatedAt()
		}
		return out[i].Name() < out[j].Name()
	})
	return out, nil
}

// Delete removes a collection and its chunks.
func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	delete(s.collections, name)
	return nil
}

// UpdateMetadata replaces a collection's metadata.
func (s *Store) UpdateMetadata(_ context.Context, name string, meta collection.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	e.col = e.col.WithMetadata(meta)
	return nil
}

// --- chunks ---

// Upsert writes chunks, overwriting equal ids.
func (s *Store) Upsert(_ context.Context, collectionName string, chunks []chunk.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.collections[collectionName]
	if !ok {
		return fmt.Errorf("upsert into %s: %w", collectionName, domain.ErrNotFound)
	}
	for _, c := range chunks {
		e.chunks[c.ID] = c.Clone()
	}
	return nil
}

// Count returns the number of chunks in a collection.
func (s *Store) Count(_ context.Context, collectionName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.collections[collectionName]
	if !ok {
		return 0, fmt.Errorf("count chunks: collection %s: %w", collectionName, domain.ErrNotFound)
	}
	return len(e.chunks), nil
}

// Page returns chunks ordered by id, without embeddings.
func (s *Store) Page(_ context.Context, collectionName string, offset, limit int) (chunk.Page, error) {
	if limit <= 0 {
		return chunk.Page{}, fmt.Errorf("page limit must be positive: %w", domain.ErrInvalidArgument)
	}
	if offset < 0 {
		return chunk.Page{}, fmt.Errorf("page offset must not be negative: %w", domain.ErrInvalidArgument)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.collections[collectionName]
	if !ok {
		return chunk.Page{}, fmt.Errorf("list chunks: collection %s: %w", collectionName, domain.ErrNotFound)
	}

	sorted := e.sorted()
	page := chunk.Page{Total: len(sorted), Chunks: []chunk.Chunk{}}
	if offset >= len(sorted) {
		return page, nil
	}
	for _, c := range sorted[offset:min(offset+limit, len(sorted))] {
		c = c.Clone()
		c.Embedding = nil
		page.Chunks = append(page.Chunks, c)
	}
	return page, nil
}

// Walk streams a snapshot of every chunk in id order, in one batch.
func (s *Store) Walk(ctx context.Context, collectionName string, fn chunk.WalkFunc) error {
	s.mu.RLock()
	e, ok := s.collections[collectionName]
	var snapshot []chunk.Chunk
	if ok {
		snapshot = e.sorted()
		for i := range snapshot {
			snapshot[i] = snapshot[i].Clone()
		}
	}
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("walk chunks: collection %s: %w", collectionName, domain.ErrNotFound)
	}
	if len(snapshot) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(snapshot)
}

// Search runs an exact cosine search over the collection.
func (s *Store) Search(ctx context.Context, collectionName string, vec []float32, k int) ([]chunk.Scored, error) {
	var snapshot []chunk.Chunk
	err := s.Walk(ctx, collectionName, func(batch []chunk.Chunk) error {
		snapshot = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	hits, err := retrieval.NewFlat(snapshot).Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Score = max(0, hits[i].Score)
	}
	return hits, nil
}

func (e *entry) sorted() []chunk.Chunk {
	out := make([]chunk.Chunk, 0, len(e.chunks))
	for _, c := range e.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
