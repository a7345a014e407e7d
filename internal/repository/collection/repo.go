package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/cortex/internal/db"
	"github.com/kailas-cloud/cortex/internal/domain"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
	"github.com/kailas-cloud/cortex/internal/repository/keyspace"
)

// store is the consumer interface for collections (ISP).
//
//nolint:interfacebloat // collection repo needs hash + index management operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
}

// IndexConfig holds vector index parameters.
type IndexConfig struct {
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
}

// Repo implements the collection half of the vector store adapter.
type Repo struct {
	store            store
	keys             keyspace.Keyspace
	defaultVectorDim int
	index            IndexConfig
}

// New creates a collection repository.
func New(s store, keys keyspace.Keyspace, defaultVectorDim int) *Repo {
	return &Repo{
		store:            s,
		keys:             keys,
		defaultVectorDim: defaultVectorDim,
		index:            IndexConfig{Algorithm: db.VectorHNSW, M: 16, EFConstruct: 200},
	}
}

// WithIndex overrides vector index parameters. Zero values keep the defaults.
func (r *Repo) WithIndex(cfg IndexConfig) *Repo {
	if cfg.Algorithm != "" {
		r.index.Algorithm = cfg.Algorithm
	}
	if cfg.M > 0 {
		r.index.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.index.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Create stores a collection: HSET metadata then FT.CREATE index.
// On FT.CREATE failure, rolls back the HSET via DEL.
func (r *Repo) Create(ctx context.Context, col domcol.Collection) error {
	name := col.Name()

	metaKey := r.keys.Meta(name)
	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check collection %s: %w: %w", name, domain.ErrStoreFailure, err)
	}
	if exists {
		return fmt.Errorf("collection %s: %w", name, domain.ErrAlreadyExists)
	}

	indexDef, err := buildIndex(r.keys, name, col.VectorDim(), r.index)
	if err != nil {
		return fmt.Errorf("build index for %s: %w", name, err)
	}
	hashData, err := collectionToHash(col)
	if err != nil {
		return err
	}

	if err := r.store.HSet(ctx, metaKey, hashData); err != nil {
		return fmt.Errorf("hset collection %s: %w: %w", name, domain.ErrStoreFailure, err)
	}

	// FT.CREATE; roll back the HSET on error
	if err := r.store.CreateIndex(ctx, indexDef); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			// Leftover index from an interrupted delete; chunks under it belong to nobody.
			if dropErr := r.store.DropIndex(ctx, indexDef.Name, true); dropErr == nil {
				err = r.store.CreateIndex(ctx, indexDef)
			}
		}
		if err != nil {
			cleanupErr := r.store.Del(ctx, metaKey)
			return fmt.Errorf("create index for %s: %w: %w", name, domain.ErrStoreFailure, errors.Join(err, cleanupErr))
		}
	}

	return nil
}

// GetOrCreate returns the stored collection named like col, creating it from col when absent.
// The boolean reports whether it was created.
func (r *Repo) GetOrCreate(ctx context.Context, col domcol.Collection) (domcol.Collection, bool, error) {
	existing, err := r.Get(ctx, col.Name())
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domcol.Collection{}, false, err
	}

	if err := r.Create(ctx, col); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// lost a creation race
			existing, getErr := r.Get(ctx, col.Name())
			return existing, false, getErr
		}
		return domcol.Collection{}, false, err
	}
	return col, true, nil
}

// Get retrieves a collection by name.
func (r *Repo) Get(ctx context.Context, name string) (domcol.Collection, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Meta(name))
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("hgetall collection %s: %w: %w", name, domain.ErrStoreFailure, err)
	}
	if len(m) == 0 {
		return domcol.Collection{}, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}

	col, err := collectionFromHash(m, r.defaultVectorDim)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("parse collection %s: %w: %w", name, domain.ErrStoreFailure, err)
	}
	return col, nil
}

// List returns all collections sorted by CreatedAt.
func (r *Repo) List(ctx context.Context) ([]domcol.Collection, error) {
	keys, err := r.store.Scan(ctx, r.keys.MetaPattern())
	if err != nil {
		return nil, fmt.Errorf("scan collections: %w: %w", domain.ErrStoreFailure, err)
	}
	if len(keys) == 0 {
		return []domcol.Collection{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi collections: %w: %w", domain.ErrStoreFailure, err)
	}

	collections := make([]domcol.Collection, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue // deleted between SCAN and HGETALL
		}
		col, err := collectionFromHash(m, r.defaultVectorDim)
		if err != nil {
			return nil, fmt.Errorf("parse collection %s: %w: %w", keys[i], domain.ErrStoreFailure, err)
		}
		collections = append(collections, col)
	}

	sort.SliceStable(collections, func(i, j int) bool {
		return collections[i].CreatedAt() < collections[j].CreatedAt()
	})

	return collections, nil
}

// Delete removes a collection and its chunks: DEL metadata, FT.DROPINDEX DD (rollback HSET on error).
func (r *Repo) Delete(ctx context.Context, name string) error {
	metaKey := r.keys.Meta(name)

	metaBackup, err := r.store.HGetAll(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("hgetall collection %s: %w: %w", name, domain.ErrStoreFailure, err)
	}
	if len(metaBackup) == 0 {
		return fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}

	if err := r.store.Del(ctx, metaKey); err != nil {
		return fmt.Errorf("del collection %s: %w: %w", name, domain.ErrStoreFailure, err)
	}

	if err := r.store.DropIndex(ctx, r.keys.Index(name), true); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil
		}
		cleanupErr := r.store.HSet(ctx, metaKey, metaBackup)
		return fmt.Errorf("drop index for %s: %w: %w", name, domain.ErrStoreFailure, errors.Join(err, cleanupErr))
	}

	return nil
}

// UpdateMetadata replaces the stored metadata fields of a collection.
// Callers merge patches before calling.
func (r *Repo) UpdateMetadata(ctx context.Context, name string, meta domcol.Metadata) error {
	metaKey := r.keys.Meta(name)
	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check collection %s: %w: %w", name, domain.ErrStoreFailure, err)
	}
	if !exists {
		return fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}

	fields, err := metadataToHash(meta)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, metaKey, fields); err != nil {
		return fmt.Errorf("hset collection %s: %w: %w", name, domain.ErrStoreFailure, err)
	}
	return nil
}
