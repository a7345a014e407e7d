package db

import (
	"errors"
	"fmt"
	"regexp"
)

// StorageType is the document type an FT index covers.
type StorageType string

// StorageHash indexes Redis hashes.
const StorageHash StorageType = "HASH"

// DistanceMetric is the similarity measure of a vector field.
type DistanceMetric string

// Distance metrics understood by FT.CREATE.
const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm is the ANN structure behind a vector field.
type VectorAlgorithm string

const (
	// VectorHNSW is the approximate graph index.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat is exact brute-force search.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates the schema field kinds cortex uses.
type IndexFieldType int

const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldVector
)

func (t IndexFieldType) String() string {
	switch t {
	case IndexFieldNumeric:
		return "NUMERIC"
	case IndexFieldTag:
		return "TAG"
	case IndexFieldVector:
		return "VECTOR"
	default:
		return fmt.Sprintf("IndexFieldType(%d)", int(t))
	}
}

// TagOptions tune a TAG field. The zero value keeps server defaults.
type TagOptions struct {
	Separator     string
	CaseSensitive bool
}

// VectorParams configure a VECTOR field. Zero M, EFConstruct and BlockSize
// keep server defaults; an empty Algorithm means FLAT and an empty Distance
// means COSINE.
type VectorParams struct {
	Algorithm   VectorAlgorithm
	Dim         int
	Distance    DistanceMetric
	M           int // HNSW max edges per node
	EFConstruct int // HNSW build-time candidate list
	BlockSize   int // FLAT only
}

// IndexField is one entry of an FT index schema.
type IndexField struct {
	Name     string
	Alias    string
	Type     IndexFieldType
	Sortable bool
	Tag      TagOptions
	Vector   VectorParams
}

// Attribute is the name queries refer to the field by.
func (f IndexField) Attribute() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func (f IndexField) validate() error {
	switch f.Type {
	case IndexFieldNumeric, IndexFieldTag:
		return nil
	case IndexFieldVector:
	default:
		return fmt.Errorf("field %s: unknown type %s", f.Name, f.Type)
	}
	if f.Sortable {
		return fmt.Errorf("field %s: vector fields cannot be sortable", f.Name)
	}
	if f.Vector.Dim <= 0 {
		return fmt.Errorf("field %s: vector dimension must be positive", f.Name)
	}
	switch f.Vector.Algorithm {
	case "", VectorHNSW, VectorFlat:
		return nil
	default:
		return fmt.Errorf("field %s: unknown vector algorithm %q", f.Name, f.Vector.Algorithm)
	}
}

// IndexDefinition is everything FT.CREATE needs.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_:-]+$`)

// Validate reports the first problem with the definition, wrapped in
// ErrInvalidIndex.
func (idx *IndexDefinition) Validate() error {
	if err := idx.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	return nil
}

func (idx *IndexDefinition) validate() error {
	switch {
	case idx.Name == "":
		return errors.New("index name is required")
	case !identifierRe.MatchString(idx.Name):
		return fmt.Errorf("index name %q has invalid characters", idx.Name)
	case len(idx.Fields) == 0:
		return errors.New("index has no fields")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i, f := range idx.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if err := f.validate(); err != nil {
			return err
		}
		attr := f.Attribute()
		if _, dup := seen[attr]; dup {
			return fmt.Errorf("duplicate field name: %s", attr)
		}
		seen[attr] = struct{}{}
	}
	return nil
}
