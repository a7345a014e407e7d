// Package db defines the storage contract cortex runs on: hashes, plain
// values and FT vector indexes, as served by Redis 8 with the query engine.
// Drivers live in subpackages; repositories depend on the narrow interfaces.
package db

import (
	"context"
	"time"
)

// Store is everything a driver provides.
//
//nolint:interfacebloat // consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore holds collection metadata and chunk documents.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Scan returns each matching key once, in no particular order.
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// HashSetItem is one hash of a pipelined HSetMulti.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// KVStore holds opaque values such as cached embeddings and ledger entries.
// Get returns ErrKeyNotFound for absent or expired keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager owns FT index lifecycles.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex with deleteDocs also removes every indexed hash.
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher queries FT indexes. A missing index is ErrIndexNotFound.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchList(ctx context.Context, q *ListQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
