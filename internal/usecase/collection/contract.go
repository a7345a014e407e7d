package collection

import (
	"context"

	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
)

// Repository defines the storage contract for collections.
type Repository interface {
	Create(ctx context.Context, col domcol.Collection) error
	GetOrCreate(ctx context.Context, col domcol.Collection) (domcol.Collection, bool, error)
	Get(ctx context.Context, name string) (domcol.Collection, error)
	List(ctx context.Context) ([]domcol.Collection, error)
	Delete(ctx context.Context, name string) error
	UpdateMetadata(ctx context.Context, name string, meta domcol.Metadata) error
}

// ChunkReader reads chunks for counting and listing.
type ChunkReader interface {
	Count(ctx context.Context, collectionName string) (int, error)
	Page(ctx context.Context, collectionName string, offset, limit int) (domchunk.Page, error)
}

// IndexCache drops built retrieval indexes.
type IndexCache interface {
	Invalidate(name string)
}

// Locker serializes mutations per collection.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
