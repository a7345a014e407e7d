package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/cortex/internal/domain"
	"github.com/kailas-cloud/cortex/internal/domain/chunk"
)

func vecChunk(id string, v ...float32) chunk.Chunk {
	return chunk.Chunk{ID: id, Text: "text " + id, Embedding: v}
}

func TestFlat_RanksByCosine(t *testing.T) {
	idx := NewFlat([]chunk.Chunk{
		vecChunk("orthogonal", 0, 1),
		vecChunk("same", 2, 0),
		vecChunk("diagonal", 1, 1),
	})

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "same", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "diagonal", hits[1].ID)
	assert.InDelta(t, 0.7071, hits[1].Score, 1e-3)
	assert.Nil(t, hits[0].Embedding, "results must not carry embeddings")
}

func TestFlat_TiesKeepInsertionOrder(t *testing.T) {
	idx := NewFlat([]chunk.Chunk{
		vecChunk("a", 1, 0),
		vecChunk("b", 1, 0),
		vecChunk("c", 1, 0),
	})

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
}

func TestFlat_KLargerThanIndex(t *testing.T) {
	idx := NewFlat([]chunk.Chunk{vecChunk("a", 1)})

	hits, err := idx.Search(context.Background(), []float32{1}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, 1, idx.Len())
}

func TestFlat_Empty(t *testing.T) {
	hits, err := NewFlat(nil).Search(context.Background(), []float32{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFlat_Errors(t *testing.T) {
	idx := NewFlat([]chunk.Chunk{vecChunk("a", 1, 0)})

	_, err := idx.Search(context.Background(), []float32{1, 0}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrVectorDimMismatch)
}

func TestFlat_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFlat([]chunk.Chunk{vecChunk("a", 1)}).Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, cosine(tc.a, tc.b, norm(tc.a), norm(tc.b)), 1e-9)
		})
	}
}
