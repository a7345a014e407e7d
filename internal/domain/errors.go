package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by a service wraps exactly one of them,
// together with the collection name or path it concerns.
var (
	// ErrInvalidArgument signals a malformed request (empty name, bad directory).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUpstreamUnavailable signals an embedding or LLM provider failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrStoreFailure signals a persistent store I/O error.
	ErrStoreFailure = errors.New("store failure")
)

var (
	// ErrNoDocuments signals that a source matched no loadable documents.
	ErrNoDocuments = fmt.Errorf("no documents found: %w", ErrNotFound)
	// ErrVectorDimMismatch signals an embedding whose dimension differs from the collection's.
	ErrVectorDimMismatch = fmt.Errorf("vector dimension mismatch: %w", ErrInvalidArgument)
)

// Kind returns the taxonomy name of err, or "internal" if it carries none.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrStoreFailure):
		return "store_failure"
	default:
		return "internal"
	}
}
