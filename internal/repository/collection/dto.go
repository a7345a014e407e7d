package collection

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/cortex/internal/domain/collection"
)

// collectionToHash converts a domain Collection to a map for HSET.
func collectionToHash(col collection.Collection) (map[string]string, error) {
	m, err := metadataToHash(col.Metadata())
	if err != nil {
		return nil, err
	}
	m["name"] = col.Name()
	m["vector_dim"] = strconv.Itoa(col.VectorDim())
	m["created_at"] = strconv.FormatInt(col.CreatedAt(), 10)
	return m, nil
}

// metadataToHash converts the mutable metadata fields for HSET.
func metadataToHash(meta collection.Metadata) (map[string]string, error) {
	extra := "{}"
	if len(meta.Extra) > 0 {
		data, err := json.Marshal(meta.Extra)
		if err != nil {
			return nil, fmt.Errorf("marshal extra metadata: %w", err)
		}
		extra = string(data)
	}
	return map[string]string{
		"description": meta.Description,
		"source":      meta.Source,
		"extra_json":  extra,
	}, nil
}

// collectionFromHash hydrates a domain Collection from an HGETALL result map.
func collectionFromHash(m map[string]string, defaultVectorDim int) (collection.Collection, error) {
	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return collection.Collection{}, fmt.Errorf("invalid created_at: %w", err)
	}

	var extra map[string]string
	if raw := m["extra_json"]; raw != "" && raw != "{}" {
		if err := json.Unmarshal([]byte(raw), &extra); err != nil {
			return collection.Collection{}, fmt.Errorf("unmarshal extra metadata: %w", err)
		}
	}

	vectorDim := defaultVectorDim
	if dimStr, ok := m["vector_dim"]; ok && dimStr != "" {
		if parsed, err := strconv.Atoi(dimStr); err == nil {
			vectorDim = parsed
		}
	}

	meta := collection.Metadata{
		Description: m["description"],
		Source:      m["source"],
		Extra:       extra,
	}
	return collection.Reconstruct(m["name"], meta, vectorDim, createdAt), nil
}
