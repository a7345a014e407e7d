package db

import "fmt"

// KNNQuery asks for the K nearest chunks to Vector.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// Validate rejects queries the server would refuse, wrapped in ErrInvalidQuery.
func (q *KNNQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return fmt.Errorf("%w: index name is required", ErrInvalidQuery)
	case len(q.Vector) == 0:
		return fmt.Errorf("%w: vector is required", ErrInvalidQuery)
	case q.K <= 0:
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidQuery, q.K)
	}
	return nil
}

// ListQuery pages through documents matching Query ("*" when empty).
type ListQuery struct {
	IndexName    string
	Query        string
	Offset       int
	Limit        int
	ReturnFields []string
	SortBy       string // must be SORTABLE
	SortDesc     bool
}

func (q *ListQuery) Validate() error {
	switch {
	case q.IndexName == "":
		return fmt.Errorf("%w: index name is required", ErrInvalidQuery)
	case q.Limit <= 0:
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, q.Limit)
	case q.Offset < 0:
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidQuery, q.Offset)
	}
	return nil
}

// SearchResult holds one page of hits. Total counts all matches.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one hit. Score is set by KNN searches only.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
