package collection

import (
	"github.com/kailas-cloud/cortex/internal/db"
	"github.com/kailas-cloud/cortex/internal/repository/keyspace"
)

// buildIndex creates the FT index definition over a collection's chunk hashes.
// chunk_id is SORTABLE so listings page in a stable order.
func buildIndex(keys keyspace.Keyspace, name string, vectorDim int, cfg IndexConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(keys.Index(name)).
		Prefix(keys.ChunkPrefix(name)).
		Tag(keyspace.FieldChunkID).Sortable().
		Tag(keyspace.FieldDocHash).
		Numeric(keyspace.FieldPosition)

	params := db.VectorParams{Algorithm: db.VectorFlat, Dim: vectorDim, Distance: db.DistanceCosine}
	if cfg.Algorithm != db.VectorFlat {
		params.Algorithm = db.VectorHNSW
		params.M, params.EFConstruct = cfg.M, cfg.EFConstruct
	}

	return b.Vector(keyspace.FieldEmbedding, params).As("vector").Build()
}
