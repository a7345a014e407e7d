package metrics

// Ingestion, query and index cache collectors.
var (
	// IngestDocumentsTotal has label "result": ingested or skipped.
	IngestDocumentsTotal = counterVec("ingest_documents_total",
		"Documents seen by ingestion", "result")
	IngestChunksTotal = counter("ingest_chunks_total",
		"Chunks written by ingestion")
	IngestDuration = histogram("ingest_duration_seconds",
		"Ingestion run duration in seconds",
		[]float64{0.1, 0.5, 1, 5, 15, 60, 300, 900})

	QueryDuration = histogram("query_duration_seconds",
		"Query duration in seconds, retrieval and synthesis included",
		[]float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60})

	// IndexCacheLookupsTotal has label "result": hit, miss or stale.
	IndexCacheLookupsTotal = counterVec("index_cache_lookups_total",
		"Retrieval index cache lookups", "result")
	IndexBuildDuration = histogram("index_build_duration_seconds",
		"Retrieval index build duration in seconds",
		[]float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15})
)

var ragSet = newSet(
	IngestDocumentsTotal,
	IngestChunksTotal,
	IngestDuration,
	QueryDuration,
	IndexCacheLookupsTotal,
	IndexBuildDuration,
)

// RegisterRAGMetrics registers the ingestion, query and index cache collectors.
func RegisterRAGMetrics() { ragSet.register() }
