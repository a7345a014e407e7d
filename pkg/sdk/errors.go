package cortex

import (
	"fmt"

	"github.com/kailas-cloud/cortex/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidArgument     = domain.ErrInvalidArgument
	ErrNotFound            = domain.ErrNotFound
	ErrNoDocuments         = domain.ErrNoDocuments
	ErrAlreadyExists       = domain.ErrAlreadyExists
	ErrUpstreamUnavailable = domain.ErrUpstreamUnavailable
	ErrStoreFailure        = domain.ErrStoreFailure
)

// APIError is a non-2xx response. It unwraps to the sentinel matching its code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cortex: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps the server error code to a sentinel.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "bad_request", "validation_failed":
		return ErrInvalidArgument
	case "no_documents":
		return ErrNoDocuments
	case "not_found":
		return ErrNotFound
	case "already_exists":
		return ErrAlreadyExists
	case "upstream_unavailable":
		return ErrUpstreamUnavailable
	case "store_unavailable":
		return ErrStoreFailure
	default:
		return nil
	}
}
