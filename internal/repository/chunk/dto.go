package chunk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/cortex/internal/db"
	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	"github.com/kailas-cloud/cortex/internal/repository/keyspace"
)

// buildHashFields converts a domain Chunk into a flat map[string]string for HSET.
func buildHashFields(c *domchunk.Chunk) map[string]string {
	m := make(map[string]string, 7+len(c.Metadata.Extra))
	m[keyspace.FieldChunkID] = c.ID
	m[keyspace.FieldContent] = c.Text
	m[keyspace.FieldEmbedding] = db.EncodeVector(c.Embedding)
	m[keyspace.FieldDocHash] = c.Metadata.DocFingerprint
	m[keyspace.FieldOriginPath] = c.Metadata.OriginPath
	m[keyspace.FieldPosition] = strconv.Itoa(c.Metadata.Position)
	m[keyspace.FieldDocChunks] = strconv.Itoa(c.Metadata.DocChunks)
	for k, v := range c.Metadata.Extra {
		m[keyspace.ExtraFieldPrefix+k] = v
	}
	return m
}

// parseHashFields converts a flat hash map back into a domain Chunk.
// withEmbedding=false skips decoding the vector blob.
func parseHashFields(m map[string]string, withEmbedding bool) (domchunk.Chunk, error) {
	c := domchunk.Chunk{
		ID:   m[keyspace.FieldChunkID],
		Text: m[keyspace.FieldContent],
		Metadata: domchunk.Metadata{
			OriginPath:     m[keyspace.FieldOriginPath],
			DocFingerprint: m[keyspace.FieldDocHash],
		},
	}

	if v := m[keyspace.FieldPosition]; v != "" {
		pos, err := strconv.Atoi(v)
		if err != nil {
			return domchunk.Chunk{}, fmt.Errorf("invalid position %q: %w", v, err)
		}
		c.Metadata.Position = pos
	}
	if v := m[keyspace.FieldDocChunks]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domchunk.Chunk{}, fmt.Errorf("invalid doc_chunks %q: %w", v, err)
		}
		c.Metadata.DocChunks = n
	}

	if withEmbedding {
		vec, err := db.DecodeVector(m[keyspace.FieldEmbedding])
		if err != nil {
			return domchunk.Chunk{}, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		c.Embedding = vec
	}

	for k, v := range m {
		if name, ok := strings.CutPrefix(k, keyspace.ExtraFieldPrefix); ok {
			if c.Metadata.Extra == nil {
				c.Metadata.Extra = make(map[string]string)
			}
			c.Metadata.Extra[name] = v
		}
	}

	return c, nil
}
