package chunk

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kailas-cloud/cortex/internal/db"
	"github.com/kailas-cloud/cortex/internal/domain"
	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	"github.com/kailas-cloud/cortex/internal/repository/keyspace"
)

// store is the consumer interface for chunks (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

const defaultBatchSize = 100

// Repo implements the chunk half of the vector store adapter.
// Chunks are hashes under the collection's chunk prefix, indexed by its FT index.
type Repo struct {
	store     store
	keys      keyspace.Keyspace
	batchSize int
	scanSize  int
}

// New creates a chunk repository. batchSize bounds pipelined writes and,
// unless WithScanSize overrides it, reads.
func New(s store, keys keyspace.Keyspace, batchSize int) *Repo {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Repo{store: s, keys: keys, batchSize: batchSize, scanSize: batchSize}
}

// WithScanSize sets how many hashes Walk reads per pipelined round trip.
func (r *Repo) WithScanSize(n int) *Repo {
	if n > 0 {
		r.scanSize = n
	}
	return r
}

// Upsert writes chunks in pipelined batches. Ids are deterministic,
// so rewriting a chunk overwrites its hash.
func (r *Repo) Upsert(ctx context.Context, collectionName string, chunks []domchunk.Chunk) error {
	for start := 0; start < len(chunks); start += r.batchSize {
		end := min(start+r.batchSize, len(chunks))
		items := make([]db.HashSetItem, 0, end-start)
		for i := start; i < end; i++ {
			items = append(items, db.HashSetItem{
				Key:    r.keys.Chunk(collectionName, chunks[i].ID),
				Fields: buildHashFields(&chunks[i]),
			})
		}
		if err := r.store.HSetMulti(ctx, items); err != nil {
			return fmt.Errorf("upsert chunks %d-%d into %s: %w: %w",
				start, end, collectionName, domain.ErrStoreFailure, err)
		}
	}
	return nil
}

// Count returns the number of indexed chunks in a collection.
func (r *Repo) Count(ctx context.Context, collectionName string) (int, error) {
	n, err := r.store.SearchCount(ctx, r.keys.Index(collectionName), "*")
	if err != nil {
		return 0, wrapSearchErr("count chunks", collectionName, err)
	}
	return n, nil
}

// Page returns one page of chunks ordered by id, without embeddings.
func (r *Repo) Page(ctx context.Context, collectionName string, offset, limit int) (domchunk.Page, error) {
	if limit <= 0 {
		return domchunk.Page{}, fmt.Errorf("page limit must be positive: %w", domain.ErrInvalidArgument)
	}
	if offset < 0 {
		return domchunk.Page{}, fmt.Errorf("page offset must not be negative: %w", domain.ErrInvalidArgument)
	}

	result, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName: r.keys.Index(collectionName),
		Offset:    offset,
		Limit:     limit,
		SortBy:    keyspace.FieldChunkID,
	})
	if err != nil {
		return domchunk.Page{}, wrapSearchErr("list chunks", collectionName, err)
	}

	page := domchunk.Page{Total: result.Total, Chunks: make([]domchunk.Chunk, 0, len(result.Entries))}
	for _, entry := range result.Entries {
		c, err := parseHashFields(entry.Fields, false)
		if err != nil {
			return domchunk.Page{}, fmt.Errorf("parse %s: %w: %w", entry.Key, domain.ErrStoreFailure, err)
		}
		if c.ID == "" {
			c.ID = r.keys.ChunkID(collectionName, entry.Key)
		}
		page.Chunks = append(page.Chunks, c)
	}
	return page, nil
}

// Walk streams every chunk of a collection, embeddings included, in batches.
// Keys come from SCAN so it is not bounded by the search module's result window.
func (r *Repo) Walk(ctx context.Context, collectionName string, fn domchunk.WalkFunc) error {
	keys, err := r.store.Scan(ctx, r.keys.ChunkPrefix(collectionName)+"*")
	if err != nil {
		return fmt.Errorf("scan chunks of %s: %w: %w", collectionName, domain.ErrStoreFailure, err)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	for start := 0; start < len(keys); start += r.scanSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+r.scanSize, len(keys))
		hashes, err := r.store.HGetAllMulti(ctx, keys[start:end])
		if err != nil {
			return fmt.Errorf("read chunks of %s: %w: %w", collectionName, domain.ErrStoreFailure, err)
		}

		batch := make([]domchunk.Chunk, 0, len(hashes))
		for i, m := range hashes {
			if len(m) == 0 {
				continue // removed after SCAN
			}
			c, err := parseHashFields(m, true)
			if err != nil {
				return fmt.Errorf("parse %s: %w: %w", keys[start+i], domain.ErrStoreFailure, err)
			}
			batch = append(batch, c)
		}
		if len(batch) == 0 {
			continue
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a KNN query against the collection's index. Hits carry
// their full metadata but no embedding.
func (r *Repo) Search(ctx context.Context, collectionName string, vec []float32, k int) ([]domchunk.Scored, error) {
	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName: r.keys.Index(collectionName),
		Vector:    vec,
		K:         k,
	})
	if err != nil {
		return nil, wrapSearchErr("search chunks", collectionName, err)
	}

	out := make([]domchunk.Scored, 0, len(result.Entries))
	for _, entry := range result.Entries {
		c, err := parseHashFields(entry.Fields, false)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w: %w", entry.Key, domain.ErrStoreFailure, err)
		}
		if c.ID == "" {
			c.ID = r.keys.ChunkID(collectionName, entry.Key)
		}
		out = append(out, domchunk.Scored{Chunk: c, Score: entry.Score})
	}
	return out, nil
}

func wrapSearchErr(op, collectionName string, err error) error {
	if errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("%s: collection %s: %w", op, collectionName, domain.ErrNotFound)
	}
	return fmt.Errorf("%s of %s: %w: %w", op, collectionName, domain.ErrStoreFailure, err)
}
