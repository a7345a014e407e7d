package collection

import (
	"fmt"
	"maps"
	"regexp"
	"time"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxNameLength bounds collection names; they are embedded in store keys.
const MaxNameLength = 64

// Metadata is the mutable descriptive part of a collection.
// Extra carries provider-specific passthrough keys and is never interpreted.
type Metadata struct {
	Description string
	Source      string
	Extra       map[string]string
}

// Patch names the metadata fields to overwrite. Nil fields are left untouched.
type Patch struct {
	Description *string
	Source      *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Description == nil && p.Source == nil
}

// Merge returns a copy of m with the fields set in p applied.
func (m Metadata) Merge(p Patch) Metadata {
	out := Metadata{
		Description: m.Description,
		Source:      m.Source,
		Extra:       maps.Clone(m.Extra),
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Source != nil {
		out.Source = *p.Source
	}
	return out
}

// Collection is a named corpus of chunks (immutable value object).
type Collection struct {
	name      string
	metadata  Metadata
	vectorDim int
	createdAt int64
}

// ValidateName checks that name can be used as a collection name.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("collection name too long (max %d)", MaxNameLength)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

// New validates and creates a Collection.
func New(name, description string, vectorDim int) (Collection, error) {
	if err := ValidateName(name); err != nil {
		return Collection{}, err
	}
	if vectorDim <= 0 {
		return Collection{}, fmt.Errorf("vector dimension must be positive")
	}
	return Collection{
		name:      name,
		metadata:  Metadata{Description: description},
		vectorDim: vectorDim,
		createdAt: time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Collection without validation (storage hydration).
func Reconstruct(name string, meta Metadata, vectorDim int, createdAt int64) Collection {
	return Collection{
		name:      name,
		metadata:  meta,
		vectorDim: vectorDim,
		createdAt: createdAt,
	}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// Metadata returns the collection metadata.
func (c Collection) Metadata() Metadata { return c.metadata }

// Description is a shortcut for Metadata().Description.
func (c Collection) Description() string { return c.metadata.Description }

// Source is a shortcut for Metadata().Source.
func (c Collection) Source() string { return c.metadata.Source }

// VectorDim returns the embedding dimension fixed for the collection's lifetime.
func (c Collection) VectorDim() int { return c.vectorDim }

// CreatedAt returns the creation timestamp (unix millis).
func (c Collection) CreatedAt() int64 { return c.createdAt }

// WithMetadata returns a copy of c carrying meta.
func (c Collection) WithMetadata(meta Metadata) Collection {
	c.metadata = meta
	return c
}

// Renewed returns a copy of c stamped with a fresh creation time,
// as used when a collection is cleared by recreation.
func (c Collection) Renewed() Collection {
	c.createdAt = time.Now().UnixMilli()
	return c
}
