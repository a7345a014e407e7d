package metrics

// Embedding provider collectors. Every series carries provider and model.
var (
	EmbeddingRequestsTotal = counterVec("embedding_requests_total",
		"Embedding provider calls by outcome (success/error)", "provider", "model", "status")
	EmbeddingRequestDuration = histogramVec("embedding_request_duration_seconds",
		"Embedding provider call duration in seconds",
		[]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, "provider", "model")
	EmbeddingTokensTotal = counterVec("embedding_tokens_total",
		"Tokens billed for embeddings, by type (prompt/total)", "provider", "model", "type")
	EmbeddingErrorsTotal = counterVec("embedding_errors_total",
		"Failed embedding calls by cause", "provider", "model", "error_type")
	// EmbeddingCacheTotal has label "result": hit or miss.
	EmbeddingCacheTotal = counterVec("embedding_cache_total",
		"Embedding cache lookups by result", "result")
)

var embeddingSet = newSet(
	EmbeddingRequestsTotal,
	EmbeddingRequestDuration,
	EmbeddingTokensTotal,
	EmbeddingErrorsTotal,
	EmbeddingCacheTotal,
)

// RegisterEmbeddingMetrics registers the embedding collectors.
func RegisterEmbeddingMetrics() { embeddingSet.register() }
