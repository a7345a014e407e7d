package chunk

import (
	"fmt"
	"maps"
)

// Extra metadata keys stamped by the ingestion pipeline.
const (
	MetaFileName     = "file_name"
	MetaFileType     = "file_type"
	MetaFileSize     = "file_size"
	MetaLastModified = "last_modified"
	MetaIngestID     = "ingest_id"
)

// Metadata is attached to every persisted chunk.
type Metadata struct {
	OriginPath     string
	DocFingerprint string
	Position       int
	// DocChunks is how many chunks the source document produced.
	DocChunks int
	Extra     map[string]string
}

// Chunk is the atomic persisted and searchable unit.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// ID derives a chunk id from its document fingerprint and position.
// Re-writing the same document overwrites instead of duplicating.
func ID(fingerprint string, position int) string {
	return fmt.Sprintf("%s-%d", fingerprint, position)
}

// Clone returns a deep copy of c.
func (c Chunk) Clone() Chunk {
	out := c
	if c.Embedding != nil {
		out.Embedding = append([]float32(nil), c.Embedding...)
	}
	out.Metadata.Extra = maps.Clone(c.Metadata.Extra)
	return out
}

// Scored is a chunk with its similarity to a query. Higher is more similar.
type Scored struct {
	Chunk
	Score float64
}

// Page is one slice of a collection's chunks. Offset and Limit echo the
// effective window.
type Page struct {
	Total  int
	Offset int
	Limit  int
	Chunks []Chunk
}

// WalkFunc receives consecutive batches of a full collection scan.
type WalkFunc func(batch []Chunk) error

// Preview truncates text to limit runes, appending "..." when cut.
func Preview(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i] + "..."
		}
		n++
	}
	return text
}
