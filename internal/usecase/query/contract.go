package query

import (
	"context"

	"github.com/kailas-cloud/cortex/internal/retrieval"
)

// IndexCache returns the built retrieval index of a collection.
type IndexCache interface {
	Get(ctx context.Context, name string) (retrieval.Index, error)
}
