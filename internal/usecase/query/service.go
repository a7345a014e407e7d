package query

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/domain"
	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
)

// SourcePreviewLength is how many characters of a source chunk an answer shows.
const SourcePreviewLength = 500

const (
	defaultTopK            = 5
	defaultMaxContextChars = 12000
)

// Request is a natural-language question against one collection.
type Request struct {
	Collection     string
	Text           string
	TopK           int
	IncludeSources bool
}

// Answer is the synthesized response.
type Answer struct {
	Text string
	// Sources is nil unless requested.
	Sources []domchunk.Scored
}

// Service answers questions by retrieving chunks and asking the language model.
// It never mutates persisted state.
type Service struct {
	cache     IndexCache
	embedder  domain.Embedder
	completer domain.Completer
	topK      int
	maxChars  int
	duration  prometheus.Observer
	logger    *zap.Logger
}

// New creates a query service.
func New(cache IndexCache, embedder domain.Embedder, completer domain.Completer, topK, maxContextChars int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = defaultTopK
	}
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cache:     cache,
		embedder:  embedder,
		completer: completer,
		topK:      topK,
		maxChars:  maxContextChars,
		logger:    logger,
	}
}

// WithDuration sets the histogram observing query seconds.
func (s *Service) WithDuration(o prometheus.Observer) *Service {
	s.duration = o
	return s
}

// Query retrieves the top-K chunks for req and synthesizes an answer.
// An empty collection still reaches the language model, with no context.
func (s *Service) Query(ctx context.Context, req Request) (Answer, error) {
	start := time.Now()
	if strings.TrimSpace(req.Text) == "" {
		return Answer{}, fmt.Errorf("query text is required: %w", domain.ErrInvalidArgument)
	}
	if req.TopK < 0 {
		return Answer{}, fmt.Errorf("top_k must not be negative: %w", domain.ErrInvalidArgument)
	}
	k := req.TopK
	if k == 0 {
		k = s.topK
	}

	idx, err := s.cache.Get(ctx, req.Collection)
	if err != nil {
		return Answer{}, fmt.Errorf("query collection %s: %w", req.Collection, err)
	}

	hits := []domchunk.Scored{}
	if idx.Len() > 0 {
		emb, err := s.embedder.Embed(ctx, req.Text)
		if err != nil {
			return Answer{}, fmt.Errorf("embed query for %s: %w", req.Collection, upstream(err))
		}
		hits, err = idx.Search(ctx, emb.Embedding, k)
		if err != nil {
			return Answer{}, fmt.Errorf("search collection %s: %w", req.Collection, err)
		}
	}

	text, err := s.completer.Complete(ctx, req.Text, s.passages(hits))
	if err != nil {
		return Answer{}, fmt.Errorf("synthesize answer for %s: %w", req.Collection, upstream(err))
	}

	ans := Answer{Text: text}
	if req.IncludeSources {
		ans.Sources = make([]domchunk.Scored, len(hits))
		for i, h := range hits {
			h.Chunk = h.Chunk.Clone()
			h.Text = domchunk.Preview(h.Text, SourcePreviewLength)
			ans.Sources[i] = h
		}
	}

	if s.duration != nil {
		s.duration.Observe(time.Since(start).Seconds())
	}
	s.logger.Debug("query answered",
		zap.String("collection", req.Collection),
		zap.Int("top_k", k),
		zap.Int("retrieved", len(hits)),
		zap.Duration("duration", time.Since(start)),
	)
	return ans, nil
}

// passages takes hit texts in rank order until maxChars is reached.
// A first passage longer than the budget is cut to it.
func (s *Service) passages(hits []domchunk.Scored) []string {
	out := make([]string, 0, len(hits))
	used := 0
	for _, h := range hits {
		n := utf8.RuneCountInString(h.Text)
		if used+n > s.maxChars {
			if len(out) == 0 {
				out = append(out, string([]rune(h.Text)[:s.maxChars]))
			}
			break
		}
		out = append(out, h.Text)
		used += n
	}
	return out
}

func upstream(err error) error {
	if domain.Kind(err) != "internal" {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
}
