package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/cortex/internal/chunker"
	"github.com/kailas-cloud/cortex/internal/domain"
	"github.com/kailas-cloud/cortex/internal/domain/document"
	"github.com/kailas-cloud/cortex/internal/loader"
	"github.com/kailas-cloud/cortex/internal/lock"
	"github.com/kailas-cloud/cortex/internal/repository/memory"
)

const testDim = 4

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	dim   int
	err   error
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	dim := f.dim
	if dim == 0 {
		dim = testDim
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		vec := make([]float32, dim)
		vec[0] = float32(len(text)%7 + 1)
		vec[1] = 1
		out.Embeddings[i] = vec
	}
	return out, nil
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (f *fakeCache) Invalidate(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, name)
}

func (f *fakeCache) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invalidated)
}

type staticLoader struct {
	docs []document.Document
}

func (s staticLoader) Load(_ context.Context, _ string) ([]document.Document, error) {
	return s.docs, nil
}

func (s staticLoader) LoadRelative(ctx context.Context, dir string) ([]document.Document, error) {
	return s.Load(ctx, dir)
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	embedder *fakeEmbedder
	cache    *fakeCache
}

func newFixture(t *testing.T, ld DocumentLoader) *fixture {
	t.Helper()
	if ld == nil {
		ld = loader.New(nil, nil)
	}
	store := memory.NewStore()
	emb := &fakeEmbedder{}
	cache := &fakeCache{}
	ch := chunker.New(chunker.WithChunkSize(40), chunker.WithOverlap(8))
	svc := New(store, store, ld, ch, emb, cache, lock.NewKeyed(), testDim, nil)
	return &fixture{svc: svc, store: store, embedder: emb, cache: cache}
}

func writeDocs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func threeDocs(t *testing.T) string {
	t.Helper()
	return writeDocs(t, map[string]string{
		"a.md":     "# Alpha\n\nAlpha is the first letter. It starts everything.",
		"b.md":     "Beta follows alpha. Beta is second.",
		"sub/c.md": "Gamma comes third. Gamma rays are energetic. They travel far.",
	})
}
