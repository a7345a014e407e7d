package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/domain"
)

// DefaultMaxAPIBatchSize is the largest number of texts sent in one provider call.
const DefaultMaxAPIBatchSize = 256

// Limiter throttles provider calls. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// InstrumentedEmbedder adds throttling, sub-batching and logging around an
// Embedder. Request counters and token metrics live in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	limiter  Limiter
	maxBatch int
	log      *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. A nil limiter disables throttling.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	limiter Limiter, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		limiter:  limiter,
		maxBatch: DefaultMaxAPIBatchSize,
		log:      logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// WithMaxBatch caps the number of texts per provider call.
func (p *InstrumentedEmbedder) WithMaxBatch(n int) *InstrumentedEmbedder {
	if n > 0 {
		p.maxBatch = n
	}
	return p
}

func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := p.throttle(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	took := time.Since(start)
	if err != nil {
		p.log.Error("Embedding request failed", zap.Duration("duration", took), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.log.Debug("Embedding request completed",
		zap.Duration("duration", took),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed sends texts in windows of at most maxBatch, throttling before
// each window. Vectors come back in input order.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	if len(texts) == 0 {
		return out, nil
	}

	start := time.Now()
	batcher := domain.BatchOf(p.inner)
	for lo := 0; lo < len(texts); lo += p.maxBatch {
		window := texts[lo:min(lo+p.maxBatch, len(texts))]
		res, err := p.embedWindow(ctx, batcher, window)
		if err != nil {
			p.log.Error("Batch embedding request failed",
				zap.Int("chunk_offset", lo),
				zap.Int("chunk_size", len(window)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		out.Add(res)
	}

	p.log.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

func (p *InstrumentedEmbedder) embedWindow(
	ctx context.Context, b domain.BatchEmbedder, window []string,
) (domain.BatchEmbeddingResult, error) {
	if err := p.throttle(ctx); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	res, err := b.BatchEmbed(ctx, window)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if got := len(res.Embeddings); got != len(window) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("got %d vectors for %d texts: %w",
			got, len(window), domain.ErrUpstreamUnavailable)
	}
	return res, nil
}

// HealthCheck delegates when the wrapped embedder can check itself.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := p.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
}

func (p *InstrumentedEmbedder) throttle(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		p.log.Warn("Embedding rate limit wait aborted", zap.Error(err))
		return fmt.Errorf("rate limit wait: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}
