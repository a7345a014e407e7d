package chi

import (
	"context"

	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
	collectionuc "github.com/kailas-cloud/cortex/internal/usecase/collection"
	healthuc "github.com/kailas-cloud/cortex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cortex/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/cortex/internal/usecase/query"
)

// CollectionService manages collections.
type CollectionService interface {
	Create(ctx context.Context, name, description string) (domcol.Collection, bool, error)
	List(ctx context.Context) ([]collectionuc.Summary, error)
	Delete(ctx context.Context, name string) error
	Clear(ctx context.Context, name string) (domcol.Collection, error)
	UpdateMetadata(ctx context.Context, name string, p domcol.Patch) (domcol.Collection, error)
	ChunksPage(ctx context.Context, name string, limit, offset int) (domchunk.Page, error)
}

// IngestService loads documents into collections.
type IngestService interface {
	Directory(ctx context.Context, name, dir string) (ingestuc.Result, error)
	Files(ctx context.Context, name string, files []ingestuc.File) (ingestuc.Result, error)
}

// QueryService answers questions.
type QueryService interface {
	Query(ctx context.Context, req queryuc.Request) (queryuc.Answer, error)
}

// HealthService reports dependency health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}
