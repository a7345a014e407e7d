package cortex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	api "github.com/kailas-cloud/cortex/internal/transport/chi"
)

// CollectionService manages collections.
type CollectionService struct {
	c *Client
}

// Create creates a collection. Creating an existing collection is not an
// error: created is false and the stored metadata is returned unchanged.
func (s *CollectionService) Create(
	ctx context.Context, name, description string,
) (_ CollectionInfo, created bool, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("collection.create", start, err) }()

	var query url.Values
	if description != "" {
		query = url.Values{"description": {description}}
	}
	var resp api.CollectionStatusResponse
	if err = s.c.doJSON(ctx, http.MethodPost, collectionPath(name), query, nil, &resp); err != nil {
		return CollectionInfo{}, false, fmt.Errorf("create collection: %w", err)
	}
	return fromMetadata(resp.Name, resp.Metadata), resp.Status == "created", nil
}

// List returns every collection, oldest first, with its chunk count.
func (s *CollectionService) List(ctx context.Context) (_ []CollectionInfo, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("collection.list", start, err) }()

	var resp api.CollectionListResponse
	if err = s.c.doJSON(ctx, http.MethodGet, "/collections", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out := make([]CollectionInfo, len(resp.Collections))
	for i, col := range resp.Collections {
		info := fromMetadata(col.Name, col.Metadata)
		info.Count = col.Count
		info.CreatedAt = col.CreatedAt
		out[i] = info
	}
	return out, nil
}

// Delete removes a collection and its chunks.
func (s *CollectionService) Delete(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("collection.delete", start, err) }()

	if err = s.c.doJSON(ctx, http.MethodDelete, collectionPath(name), nil, nil, nil); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

// Clear removes every chunk of a collection and keeps its metadata.
func (s *CollectionService) Clear(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("collection.clear", start, err) }()

	if err = s.c.doJSON(ctx, http.MethodDelete, collectionPath(name)+"/clear", nil, nil, nil); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	return nil
}

// Update merges p into the collection metadata and returns the result.
func (s *CollectionService) Update(ctx context.Context, name string, p CollectionPatch) (_ CollectionInfo, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("collection.update", start, err) }()

	body := api.UpdateCollectionRequest{Description: p.Description, Source: p.Source}
	var resp api.CollectionStatusResponse
	if err = s.c.doJSON(ctx, http.MethodPatch, collectionPath(name), nil, body, &resp); err != nil {
		return CollectionInfo{}, fmt.Errorf("update collection: %w", err)
	}
	return fromMetadata(resp.Name, resp.Metadata), nil
}

// Chunks returns one page of chunk previews ordered by id.
// Zero limit uses the server default; limits above the server maximum are capped.
func (s *CollectionService) Chunks(ctx context.Context, name string, limit, offset int) (_ ChunkPage, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("collection.chunks", start, err) }()

	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	var resp api.ChunkListResponse
	if err = s.c.doJSON(ctx, http.MethodGet, collectionPath(name)+"/chunks", query, nil, &resp); err != nil {
		return ChunkPage{}, fmt.Errorf("list chunks: %w", err)
	}

	page := ChunkPage{
		Collection: resp.Collection,
		Total:      resp.Total,
		Offset:     resp.Offset,
		Limit:      resp.Limit,
		Chunks:     make([]Chunk, len(resp.Chunks)),
	}
	for i, ch := range resp.Chunks {
		page.Chunks[i] = Chunk{ID: ch.ID, Text: ch.Text, Metadata: ch.Metadata}
	}
	return page, nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

func fromMetadata(name string, meta map[string]string) CollectionInfo {
	return CollectionInfo{
		Name:        name,
		Description: meta["description"],
		Source:      meta["source"],
		Metadata:    meta,
	}
}
