package collection

import (
	"context"
	"testing"

	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
	"github.com/kailas-cloud/cortex/internal/lock"
	"github.com/kailas-cloud/cortex/internal/repository/memory"
)

// --- Mocks ---

type mockRepo struct {
	*memory.Store
	deleteErr error
	createErr error
	updateErr error
}

func (m *mockRepo) Create(ctx context.Context, col domcol.Collection) error {
	if m.createErr != nil {
		return m.createErr
	}
	return m.Store.Create(ctx, col)
}

func (m *mockRepo) Delete(ctx context.Context, name string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	return m.Store.Delete(ctx, name)
}

func (m *mockRepo) UpdateMetadata(ctx context.Context, name string, meta domcol.Metadata) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	return m.Store.UpdateMetadata(ctx, name, meta)
}

type mockCache struct {
	invalidated []string
}

func (m *mockCache) Invalidate(name string) {
	m.invalidated = append(m.invalidated, name)
}

type fixture struct {
	svc   *Service
	store *memory.Store
	repo  *mockRepo
	cache *mockCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	repo := &mockRepo{Store: store}
	cache := &mockCache{}
	svc := New(repo, store, cache, lock.NewKeyed(), 4, nil)
	return &fixture{svc: svc, store: store, repo: repo, cache: cache}
}

func (f *fixture) seedChunks(t *testing.T, name string, texts ...string) {
	t.Helper()
	chunks := make([]domchunk.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domchunk.Chunk{
			ID:        domchunk.ID("fp", i),
			Text:      text,
			Embedding: []float32{1, 0, 0, 0},
			Metadata:  domchunk.Metadata{DocFingerprint: "fp", Position: i, DocChunks: len(texts)},
		}
	}
	if err := f.store.Upsert(context.Background(), name, chunks); err != nil {
		t.Fatalf("seed chunks: %v", err)
	}
}
