package cortex

import "io"

// CollectionInfo describes a collection.
type CollectionInfo struct {
	Name        string
	Description string
	Source      string
	// Metadata holds every metadata key, description and source included.
	Metadata  map[string]string
	Count     int
	CreatedAt int64
}

// CollectionPatch is a partial metadata update. Nil fields are unchanged.
type CollectionPatch struct {
	Description *string
	Source      *string
}

// Chunk is a stored chunk preview.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// ChunkPage is one page of a collection's chunks.
type ChunkPage struct {
	Collection string
	Total      int
	Offset     int
	Limit      int
	Chunks     []Chunk
}

// QueryRequest asks a question against a collection.
// Zero values use the server defaults: collection "default", top_k 5, sources included.
type QueryRequest struct {
	Query      string
	Collection string
	TopK       int
	// IncludeSources nil means the server default (true).
	IncludeSources *bool
}

// Source is a retrieved passage backing an answer.
type Source struct {
	Text     string
	Score    float64
	Metadata map[string]any
}

// Answer is a synthesized response.
type Answer struct {
	Text    string
	Sources []Source
}

// IngestResult summarizes an ingestion run.
type IngestResult struct {
	Collection  string
	IngestID    string
	Ingested    int
	Skipped     int
	TotalChunks int
	Message     string
}

// File is one file to upload.
type File struct {
	Name    string
	Content io.Reader
}

// HealthStatus represents the aggregated server health.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component → "ok"/"error"
}
