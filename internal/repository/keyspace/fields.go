package keyspace

// Chunk hash fields. The first four are indexed by FT.CREATE.
const (
	FieldChunkID    = "chunk_id"
	FieldDocHash    = "doc_hash"
	FieldPosition   = "position"
	FieldEmbedding  = "embedding"
	FieldContent    = "content"
	FieldOriginPath = "origin_path"
	FieldDocChunks  = "doc_chunks"

	// ExtraFieldPrefix namespaces free-form chunk metadata.
	ExtraFieldPrefix = "meta:"
)
