package query

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/cortex/internal/chunker"
	"github.com/kailas-cloud/cortex/internal/domain"
	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
	"github.com/kailas-cloud/cortex/internal/loader"
	"github.com/kailas-cloud/cortex/internal/lock"
	"github.com/kailas-cloud/cortex/internal/repository/memory"
	"github.com/kailas-cloud/cortex/internal/retrieval"
	"github.com/kailas-cloud/cortex/internal/retrieval/cache"
	"github.com/kailas-cloud/cortex/internal/usecase/ingest"
)

type fakeCache struct {
	idx retrieval.Index
	err error
}

func (f fakeCache) Get(_ context.Context, _ string) (retrieval.Index, error) {
	return f.idx, f.err
}

// keywordEmbedder maps text onto two axes: "alpha" and "beta" mentions.
type keywordEmbedder struct {
	calls int
	err   error
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: keywords(text)}, nil
}

func (e *keywordEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.EmbedEach(ctx, e, texts)
}

func keywords(text string) []float32 {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "alpha")) + 0.01,
		float32(strings.Count(lower, "beta")) + 0.01,
	}
}

type recordingCompleter struct {
	query    string
	passages []string
	calls    int
	err      error
}

func (c *recordingCompleter) Complete(_ context.Context, query string, passages []string) (string, error) {
	c.calls++
	c.query = query
	c.passages = passages
	if c.err != nil {
		return "", c.err
	}
	return "answer", nil
}

func scored(id, text string, vec ...float32) domchunk.Chunk {
	return domchunk.Chunk{ID: id, Text: text, Embedding: vec, Metadata: domchunk.Metadata{OriginPath: id + ".md"}}
}

func TestQuery_RetrievesAndSynthesizes(t *testing.T) {
	idx := retrieval.NewFlat([]domchunk.Chunk{
		scored("a", "about alpha", 1, 0),
		scored("b", "about beta", 0, 1),
		scored("c", strings.Repeat("alpha ", 100), 0.9, 0.1),
	})
	comp := &recordingCompleter{}
	svc := New(fakeCache{idx: idx}, &keywordEmbedder{}, comp, 2, 0, nil)

	ans, err := svc.Query(context.Background(), Request{Collection: "docs", Text: "alpha?", IncludeSources: true})
	require.NoError(t, err)

	assert.Equal(t, "answer", ans.Text)
	assert.Equal(t, "alpha?", comp.query)
	require.Len(t, comp.passages, 2)
	assert.Equal(t, "about alpha", comp.passages[0])

	require.Len(t, ans.Sources, 2)
	assert.Equal(t, "a", ans.Sources[0].ID)
	assert.GreaterOrEqual(t, ans.Sources[0].Score, ans.Sources[1].Score)
	assert.Equal(t, SourcePreviewLength+3, len([]rune(ans.Sources[1].Text)))
	assert.Equal(t, 600, len(comp.passages[1]), "context gets the full text")
	assert.Equal(t, "a.md", ans.Sources[0].Metadata.OriginPath)
	assert.Nil(t, ans.Sources[0].Embedding)
}

func TestQuery_WithoutSources(t *testing.T) {
	idx := retrieval.NewFlat([]domchunk.Chunk{scored("a", "alpha", 1, 0)})
	svc := New(fakeCache{idx: idx}, &keywordEmbedder{}, &recordingCompleter{}, 5, 0, nil)

	ans, err := svc.Query(context.Background(), Request{Collection: "docs", Text: "alpha"})
	require.NoError(t, err)
	assert.Nil(t, ans.Sources)
}

func TestQuery_EmptyCollectionStillSynthesizes(t *testing.T) {
	emb := &keywordEmbedder{}
	comp := &recordingCompleter{}
	svc := New(fakeCache{idx: retrieval.NewFlat(nil)}, emb, comp, 5, 0, nil)

	ans, err := svc.Query(context.Background(), Request{Collection: "docs", Text: "anything", IncludeSources: true})
	require.NoError(t, err)
	assert.Equal(t, 1, comp.calls)
	assert.Empty(t, comp.passages)
	assert.Zero(t, emb.calls, "no embedding needed for an empty index")
	assert.NotNil(t, ans.Sources)
	assert.Empty(t, ans.Sources)
}

func TestQuery_Errors(t *testing.T) {
	idx := retrieval.NewFlat([]domchunk.Chunk{scored("a", "alpha", 1, 0)})
	tests := []struct {
		name string
		svc  *Service
		req  Request
		want error
	}{
		{
			name: "missing collection",
			svc:  New(fakeCache{err: domain.ErrNotFound}, &keywordEmbedder{}, &recordingCompleter{}, 5, 0, nil),
			req:  Request{Collection: "ghost", Text: "q"},
			want: domain.ErrNotFound,
		},
		{
			name: "empty text",
			svc:  New(fakeCache{idx: idx}, &keywordEmbedder{}, &recordingCompleter{}, 5, 0, nil),
			req:  Request{Collection: "docs", Text: "  "},
			want: domain.ErrInvalidArgument,
		},
		{
			name: "negative top k",
			svc:  New(fakeCache{idx: idx}, &keywordEmbedder{}, &recordingCompleter{}, 5, 0, nil),
			req:  Request{Collection: "docs", Text: "q", TopK: -1},
			want: domain.ErrInvalidArgument,
		},
		{
			name: "embedder down",
			svc:  New(fakeCache{idx: idx}, &keywordEmbedder{err: errors.New("refused")}, &recordingCompleter{}, 5, 0, nil),
			req:  Request{Collection: "docs", Text: "q"},
			want: domain.ErrUpstreamUnavailable,
		},
		{
			name: "llm down",
			svc:  New(fakeCache{idx: idx}, &keywordEmbedder{}, &recordingCompleter{err: errors.New("502")}, 5, 0, nil),
			req:  Request{Collection: "docs", Text: "q"},
			want: domain.ErrUpstreamUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Query(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			if tt.req.Collection != "" && !errors.Is(err, domain.ErrInvalidArgument) {
				assert.Contains(t, err.Error(), tt.req.Collection)
			}
		})
	}
}

func TestPassages_Budget(t *testing.T) {
	svc := New(nil, nil, nil, 5, 10, nil)
	hits := []domchunk.Scored{
		{Chunk: domchunk.Chunk{Text: "12345"}},
		{Chunk: domchunk.Chunk{Text: "6789"}},
		{Chunk: domchunk.Chunk{Text: "overflow"}},
	}
	assert.Equal(t, []string{"12345", "6789"}, svc.passages(hits))

	long := []domchunk.Scored{{Chunk: domchunk.Chunk{Text: "ééééééééééééééé"}}}
	assert.Equal(t, []string{"éééééééééé"}, svc.passages(long))
}

// Queries observe chunks written by an ingest that ran after the index was cached.
func TestQuery_SeesFreshIngest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	emb := &keywordEmbedder{}
	idxCache := cache.New(retrieval.NewBuilder(store, store, retrieval.ModeMemory), nil, nil, nil)
	ingester := ingest.New(store, store, loader.New(nil, nil), chunker.New(), emb, idxCache, lock.NewKeyed(), 2, nil)
	comp := &recordingCompleter{}
	svc := New(idxCache, emb, comp, 5, 0, nil)

	col, err := domcol.New("default", "", 2)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, col))

	ans, err := svc.Query(ctx, Request{Collection: "default", Text: "alpha", IncludeSources: true})
	require.NoError(t, err)
	assert.Empty(t, ans.Sources)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("Alpha facts."), 0o644))
	_, err = ingester.Directory(ctx, "default", dir)
	require.NoError(t, err)

	ans, err = svc.Query(ctx, Request{Collection: "default", Text: "alpha", IncludeSources: true})
	require.NoError(t, err)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "Alpha facts.", ans.Sources[0].Text)
	assert.Equal(t, []string{"Alpha facts."}, comp.passages)

	_, err = svc.Query(ctx, Request{Collection: "missing", Text: "alpha"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
