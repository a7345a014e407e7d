// Package retrieval provides similarity search over a collection's chunks.
package retrieval

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/cortex/internal/domain"
	"github.com/kailas-cloud/cortex/internal/domain/chunk"
	"github.com/kailas-cloud/cortex/internal/domain/collection"
)

// Index answers top-K similarity queries for one collection.
// Implementations are immutable once built and safe for concurrent use.
type Index interface {
	// Search returns at most k chunks ordered by descending score.
	Search(ctx context.Context, vec []float32, k int) ([]chunk.Scored, error)
	// Len is the number of chunks the index covered when it was built.
	Len() int
}

// Mode selects how indexes are built.
type Mode string

const (
	// ModeMemory loads every chunk into a Flat index.
	ModeMemory Mode = "memory"
	// ModeStore delegates search to the store's vector index.
	ModeStore Mode = "store"
)

// ParseMode validates a configured mode. Empty means ModeMemory.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMemory:
		return ModeMemory, nil
	case ModeStore:
		return ModeStore, nil
	default:
		return "", fmt.Errorf("unknown retrieval mode %q: %w", s, domain.ErrInvalidArgument)
	}
}

// CollectionSource resolves collections.
type CollectionSource interface {
	Get(ctx context.Context, name string) (collection.Collection, error)
}

// ChunkSource reads persisted chunks.
type ChunkSource interface {
	Walk(ctx context.Context, collectionName string, fn chunk.WalkFunc) error
	Count(ctx context.Context, collectionName string) (int, error)
	Search(ctx context.Context, collectionName string, vec []float32, k int) ([]chunk.Scored, error)
}

// Builder builds indexes from the vector store.
type Builder struct {
	collections CollectionSource
	chunks      ChunkSource
	mode        Mode
}

// NewBuilder creates a Builder.
func NewBuilder(collections CollectionSource, chunks ChunkSource, mode Mode) *Builder {
	if mode == "" {
		mode = ModeMemory
	}
	return &Builder{collections: collections, chunks: chunks, mode: mode}
}

// Mode returns the build mode.
func (b *Builder) Mode() Mode { return b.mode }

// Build creates a fresh index for the named collection.
// A missing collection yields an error wrapping domain.ErrNotFound.
func (b *Builder) Build(ctx context.Context, name string) (Index, error) {
	if _, err := b.collections.Get(ctx, name); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	if b.mode == ModeStore {
		n, err := b.chunks.Count(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
		return &Remote{name: name, searcher: b.chunks, size: n}, nil
	}

	var all []chunk.Chunk
	err := b.chunks.Walk(ctx, name, func(batch []chunk.Chunk) error {
		all = append(all, batch...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build index for %s: %w", name, err)
	}
	return NewFlat(all), nil
}

// Remote forwards queries to the store's vector index.
type Remote struct {
	name     string
	searcher ChunkSource
	size     int
}

// Search implements Index.
func (r *Remote) Search(ctx context.Context, vec []float32, k int) ([]chunk.Scored, error) {
	if k <= 0 {
		return nil, fmt.Errorf("top k must be positive: %w", domain.ErrInvalidArgument)
	}
	if r.size == 0 {
		return []chunk.Scored{}, nil
	}
	return r.searcher.Search(ctx, r.name, vec, k)
}

// Len implements Index.
func (r *Remote) Len() int { return r.size }
