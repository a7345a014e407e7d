// Package cortex is a Go client for the cortex RAG server.
//
// It covers the whole HTTP surface: collection management, chunk listing,
// directory and file ingestion, question answering and health.
//
//	client, _ := cortex.New("http://localhost:8082", cortex.WithAPIKey(os.Getenv("CORTEX_API_KEY")))
//	res, _ := client.Ingest().Directory(ctx, "handbook", "/srv/handbook")
//	answer, _ := client.Query(ctx, cortex.QueryRequest{Collection: "handbook", Query: "How do I deploy?"})
//
// Failures carry the server's error kind; use errors.Is with ErrNotFound,
// ErrInvalidArgument and the other sentinels.
package cortex
