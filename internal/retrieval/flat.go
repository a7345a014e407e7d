package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/cortex/internal/domain"
	"github.com/kailas-cloud/cortex/internal/domain/chunk"
)

// Flat is an exact in-memory cosine index. Ties keep insertion order.
type Flat struct {
	chunks []chunk.Chunk
	norms  []float64
}

// NewFlat indexes chunks. Embeddings are kept for scoring only; search
// results never carry them.
func NewFlat(chunks []chunk.Chunk) *Flat {
	f := &Flat{chunks: chunks, norms: make([]float64, len(chunks))}
	for i := range chunks {
		f.norms[i] = norm(chunks[i].Embedding)
	}
	return f
}

// Len implements Index.
func (f *Flat) Len() int { return len(f.chunks) }

// Search implements Index.
func (f *Flat) Search(ctx context.Context, vec []float32, k int) ([]chunk.Scored, error) {
	if k <= 0 {
		return nil, fmt.Errorf("top k must be positive: %w", domain.ErrInvalidArgument)
	}
	if len(f.chunks) == 0 {
		return []chunk.Scored{}, nil
	}

	qn := norm(vec)
	scores := make([]float64, len(f.chunks))
	for i := range f.chunks {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		emb := f.chunks[i].Embedding
		if len(emb) != len(vec) {
			return nil, fmt.Errorf("chunk %s has %d dims, query has %d: %w",
				f.chunks[i].ID, len(emb), len(vec), domain.ErrVectorDimMismatch)
		}
		scores[i] = cosine(vec, emb, qn, f.norms[i])
	}

	order := make([]int, len(f.chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	k = min(k, len(order))
	out := make([]chunk.Scored, k)
	for i := 0; i < k; i++ {
		c := f.chunks[order[i]]
		c.Embedding = nil
		out[i] = chunk.Scored{Chunk: c, Score: scores[order[i]]}
	}
	return out, nil
}

// cosine scores equal-length vectors given their norms. A zero vector
// scores 0.
func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
