package chunk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kailas-cloud/cortex/internal/db"
	"github.com/kailas-cloud/cortex/internal/domain"
	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
)

// --- Upsert ---

func TestUpsert_Batches(t *testing.T) {
	repo, ms := newTestRepo(t, 2)

	var sizes []int
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		sizes = append(sizes, len(items))
		for _, it := range items {
			if !strings.HasPrefix(it.Key, "cortex:chunk:notes:") {
				t.Errorf("unexpected key: %s", it.Key)
			}
		}
		return nil
	}

	chunks := []domchunk.Chunk{
		testChunk(t, "aa", 0), testChunk(t, "aa", 1), testChunk(t, "bb", 0),
	}
	if err := repo.Upsert(context.Background(), "notes", chunks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Errorf("unexpected batch sizes: %v", sizes)
	}
}

func TestUpsert_HashLayout(t *testing.T) {
	repo, ms := newTestRepo(t, 0)

	var fields map[string]string
	var key string
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		key, fields = items[0].Key, items[0].Fields
		return nil
	}

	if err := repo.Upsert(context.Background(), "notes", []domchunk.Chunk{testChunk(t, "aa", 1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "cortex:chunk:notes:aa-1" {
		t.Errorf("key = %q", key)
	}
	want := map[string]string{
		"chunk_id":       "aa-1",
		"content":        "hello world",
		"doc_hash":       "aa",
		"origin_path":    "/docs/a.md",
		"position":       "1",
		"doc_chunks":     "2",
		"meta:file_name": "a.md",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, fields[k], v)
		}
	}
	if len(fields["embedding"]) != 12 {
		t.Errorf("embedding blob length = %d, want 12", len(fields["embedding"]))
	}
}

func TestUpsert_Error(t *testing.T) {
	repo, ms := newTestRepo(t, 0)
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		return &db.Error{Op: db.OpHSet, Err: errors.New("oom")}
	}

	err := repo.Upsert(context.Background(), "notes", []domchunk.Chunk{testChunk(t, "aa", 0)})
	if !errors.Is(err, domain.ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "notes") {
		t.Errorf("error should name the collection: %v", err)
	}
}

func TestUpsert_Empty(t *testing.T) {
	repo, ms := newTestRepo(t, 0)
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		t.Error("HSetMulti must not be called")
		return nil
	}
	if err := repo.Upsert(context.Background(), "notes", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- Count ---

func TestCount(t *testing.T) {
	repo, ms := newTestRepo(t, 0)
	ms.searchCountFn = func(_ context.Context, index, query string) (int, error) {
		if index != "cortex:idx:notes" || query != "*" {
			t.Errorf("unexpected args %q %q", index, query)
		}
		return 7, nil
	}

	n, err := repo.Count(context.Background(), "notes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("Count() = %d, want 7", n)
	}
}

func TestCount_MissingIndex(t *testing.T) {
	repo, ms := newTestRepo(t, 0)
	ms.searchCountFn = func(_ context.Context, _, _ string) (int, error) {
		return 0, db.ErrIndexNotFound
	}

	_, err := repo.Count(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Page ---

func TestPage(t *testing.T) {
	repo, ms := newTestRepo(t, 0)
	ms.searchListFn = func(_ context.Context, q *db.ListQuery) (*db.SearchResult, error) {
		if q.IndexName != "cortex:idx:notes" || q.SortBy != "chunk_id" || q.Offset != 10 || q.Limit != 2 {
			t.Errorf("unexpected query: %+v", q)
		}
		return &db.SearchResult{
			Total: 12,
			Entries: []db.SearchEntry{
				{Key: "cortex:chunk:notes:aa-0", Fields: map[string]string{
					"chunk_id": "aa-0", "content": "one", "doc_hash": "aa", "position": "0",
					"embedding": db.EncodeVector([]float32{1}),
				}},
				{Key: "cortex:chunk:notes:aa-1", Fields: map[string]string{
					"content": "two", "doc_hash": "aa", "position": "1", "meta:file_type": "text/markdown",
				}},
			},
		}, nil
	}

	page, err := repo.Page(context.Background(), "notes", 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 12 || len(page.Chunks) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Chunks[0].Embedding != nil {
		t.Error("page must not carry embeddings")
	}
	if page.Chunks[1].ID != "aa-1" {
		t.Errorf("ID should fall back to key suffix, got %q", page.Chunks[1].ID)
	}
	if page.Chunks[1].Metadata.Extra["file_type"] != "text/markdown" {
		t.Errorf("unexpected extra: %v", page.Chunks[1].Metadata.Extra)
	}
}

func TestPage_InvalidArgs(t *testing.T) {
	repo, _ := newTestRepo(t, 0)
	if _, err := repo.Page(context.Background(), "notes", 0, 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for zero limit, got %v", err)
	}
	if _, err := repo.Page(context.Background(), "notes", -1, 5); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for negative offset, got %v", err)
	}
}

// --- Walk ---

func TestWalk(t *testing.T) {
	repo, ms := newTestRepo(t, 2)
	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "cortex:chunk:notes:*" {
			t.Errorf("unexpected pattern: %s", pattern)
		}
		return []string{"cortex:chunk:notes:c-0", "cortex:chunk:notes:a-0", "cortex:chunk:notes:b-0"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		out := make([]map[string]string, len(keys))
		for i, k := range keys {
			id := strings.TrimPrefix(k, "cortex:chunk:notes:")
			out[i] = map[string]string{
				"chunk_id":  id,
				"doc_hash":  id[:1],
				"embedding": db.EncodeVector([]float32{1, 0}),
			}
		}
		return out, nil
	}

	var ids []string
	batches := 0
	err := repo.Walk(context.Background(), "notes", func(batch []domchunk.Chunk) error {
		batches++
		for _, c := range batch {
			if len(c.Embedding) != 2 {
				t.Errorf("chunk %s missing embedding", c.ID)
			}
			ids = append(ids, c.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batches != 2 {
		t.Errorf("batches = %d, want 2", batches)
	}
	if fmt.Sprint(ids) != "[a-0 b-0 c-0]" {
		t.Errorf("ids = %v, want sorted", ids)
	}
}

func TestWalk_RepeatedScanKeys(t *testing.T) {
	repo, ms := newTestRepo(t, 10)
	ms.scanFn = func(_ context.Context, _ string) ([]string, error) {
		return []string{"cortex:chunk:notes:a-0", "cortex:chunk:notes:b-0", "cortex:chunk:notes:a-0"}, nil
	}
	var requested []string
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		requested = append(requested, keys...)
		out := make([]map[string]string, len(keys))
		for i, k := range keys {
			out[i] = map[string]string{"chunk_id": strings.TrimPrefix(k, "cortex:chunk:notes:"), "doc_hash": "a"}
		}
		return out, nil
	}

	var ids []string
	err := repo.Walk(context.Background(), "notes", func(batch []domchunk.Chunk) error {
		for _, c := range batch {
			ids = append(ids, c.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(ids) != "[a-0 b-0]" {
		t.Errorf("ids = %v, want each chunk once", ids)
	}
	if len(requested) != 2 {
		t.Errorf("fetched %d hashes, want 2", len(requested))
	}
}

func TestWalk_StopsOnCallbackError(t *testing.T) {
	repo, ms := newTestRepo(t, 1)
	ms.scanFn = func(_ context.Context, _ string) ([]string, error) {
		return []string{"cortex:chunk:notes:a-0", "cortex:chunk:notes:b-0"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		return []map[string]string{{"chunk_id": "x"}}, nil
	}

	stop := errors.New("stop")
	calls := 0
	err := repo.Walk(context.Background(), "notes", func(_ []domchunk.Chunk) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("expected stop after first batch, got err=%v calls=%d", err, calls)
	}
}

func TestWalk_ScanError(t *testing.T) {
	repo, ms := newTestRepo(t, 0)
	ms.scanFn = func(_ context.Context, _ string) ([]string, error) {
		return nil, errors.New("conn reset")
	}

	err := repo.Walk(context.Background(), "notes", func(_ []domchunk.Chunk) error { return nil })
	if !errors.Is(err, domain.ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
}

// --- Search ---

func TestSearch(t *testing.T) {
	repo, ms := newTestRepo(t, 0)
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "cortex:idx:notes" || q.K != 3 {
			t.Errorf("unexpected query: %+v", q)
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{
			Key:   "cortex:chunk:notes:aa-0",
			Score: 0.8,
			Fields: map[string]string{
				"chunk_id": "aa-0", "content": "hit", "origin_path": "/docs/a.md",
				"embedding": "\x00\x00\x80?",
			},
		}}}, nil
	}

	hits, err := repo.Search(context.Background(), "notes", []float32{1}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].Score != 0.8 || hits[0].Text != "hit" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if hits[0].Embedding != nil {
		t.Error("search hits must not carry embeddings")
	}
}

func TestSearch_MissingIndex(t *testing.T) {
	repo, ms := newTestRepo(t, 0)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, db.ErrIndexNotFound
	}

	_, err := repo.Search(context.Background(), "ghost", []float32{1}, 3)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- DTO ---

func TestParseHashFields_Invalid(t *testing.T) {
	if _, err := parseHashFields(map[string]string{"position": "x"}, false); err == nil {
		t.Error("expected error for bad position")
	}
	if _, err := parseHashFields(map[string]string{"embedding": "abc"}, true); err == nil {
		t.Error("expected error for truncated embedding")
	}
}
