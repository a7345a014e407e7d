package metrics

// Answer synthesis collectors, labelled by model.
var (
	LLMRequestsTotal = counterVec("llm_requests_total",
		"Answer synthesis calls by outcome (success/error)", "model", "status")
	LLMRequestDuration = histogramVec("llm_request_duration_seconds",
		"Answer synthesis call duration in seconds",
		[]float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}, "model")
	LLMTokensTotal = counterVec("llm_tokens_total",
		"Language model tokens by type (prompt/completion)", "model", "type")
)

var llmSet = newSet(LLMRequestsTotal, LLMRequestDuration, LLMTokensTotal)

// RegisterLLMMetrics registers the answer synthesis collectors.
func RegisterLLMMetrics() { llmSet.register() }
