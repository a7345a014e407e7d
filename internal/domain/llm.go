package domain

import "context"

// Completer synthesizes an answer to query from the given context passages.
// Implementations may drop passages that do not fit the model window.
type Completer interface {
	Complete(ctx context.Context, query string, passages []string) (string, error)
}
