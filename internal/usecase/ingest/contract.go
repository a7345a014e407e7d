package ingest

import (
	"context"

	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
	"github.com/kailas-cloud/cortex/internal/domain/document"
)

// CollectionRepository resolves and updates the target collection.
type CollectionRepository interface {
	GetOrCreate(ctx context.Context, col domcol.Collection) (domcol.Collection, bool, error)
	UpdateMetadata(ctx context.Context, name string, meta domcol.Metadata) error
}

// ChunkRepository reads the ledger source and persists new chunks.
type ChunkRepository interface {
	Walk(ctx context.Context, collectionName string, fn domchunk.WalkFunc) error
	Upsert(ctx context.Context, collectionName string, chunks []domchunk.Chunk) error
	Count(ctx context.Context, collectionName string) (int, error)
}

// DocumentLoader reads documents from a directory.
type DocumentLoader interface {
	Load(ctx context.Context, dir string) ([]document.Document, error)
	LoadRelative(ctx context.Context, dir string) ([]document.Document, error)
}

// Chunker splits a document into chunks.
type Chunker interface {
	Chunk(doc document.Document) []domchunk.Chunk
}

// IndexCache drops built retrieval indexes.
type IndexCache interface {
	Invalidate(name string)
}

// Locker serializes work per collection.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
