package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexBuilder_ChunkIndex(t *testing.T) {
	hnsw := VectorParams{Algorithm: VectorHNSW, Dim: 768, Distance: DistanceCosine, M: 16, EFConstruct: 200}
	idx, err := NewIndex("cortex:idx:docs").
		Prefix("cortex:chunk:docs:").
		Tag("chunk_id").Sortable().
		Tag("doc_hash").
		Numeric("position").
		Vector("embedding", hnsw).As("vector").
		Build()
	require.NoError(t, err)

	assert.Equal(t, StorageHash, idx.StorageType)
	assert.Equal(t, []string{"cortex:chunk:docs:"}, idx.Prefixes)
	assert.Equal(t, []IndexField{
		{Name: "chunk_id", Type: IndexFieldTag, Sortable: true},
		{Name: "doc_hash", Type: IndexFieldTag},
		{Name: "position", Type: IndexFieldNumeric},
		{Name: "embedding", Alias: "vector", Type: IndexFieldVector, Vector: hnsw},
	}, idx.Fields)
	assert.Equal(t, "vector", idx.Fields[3].Attribute())
	assert.Equal(t, "position", idx.Fields[2].Attribute())
}

func TestIndexBuilder_ModifiersBeforeFields(t *testing.T) {
	idx, err := NewIndex("cortex:idx:docs").Sortable().As("x").Tag("chunk_id").Build()
	require.NoError(t, err)
	assert.Equal(t, IndexField{Name: "chunk_id", Type: IndexFieldTag}, idx.Fields[0])
}

func TestIndexBuilder_BuildReturnsCopy(t *testing.T) {
	b := NewIndex("cortex:idx:docs").Tag("chunk_id")
	first, err := b.Build()
	require.NoError(t, err)

	_, err = b.Numeric("position").Build()
	require.NoError(t, err)
	assert.Len(t, first.Fields, 1)
}

func TestIndexDefinition_Validate(t *testing.T) {
	flat := func(dim int) VectorParams { return VectorParams{Algorithm: VectorFlat, Dim: dim} }
	tests := []struct {
		name    string
		build   *IndexBuilder
		wantErr string
	}{
		{"no name", NewIndex("").Tag("chunk_id"), "index name is required"},
		{"bad name", NewIndex("cortex idx").Tag("chunk_id"), "invalid characters"},
		{"non-ascii name", NewIndex("naïve").Tag("chunk_id"), "invalid characters"},
		{"no fields", NewIndex("cortex:idx:docs"), "index has no fields"},
		{"zero dim", NewIndex("cortex:idx:docs").Vector("embedding", flat(0)), "dimension must be positive"},
		{"sortable vector", NewIndex("cortex:idx:docs").Vector("embedding", flat(4)).Sortable(), "cannot be sortable"},
		{
			"unknown algorithm",
			NewIndex("cortex:idx:docs").Vector("embedding", VectorParams{Algorithm: "IVF", Dim: 4}),
			`unknown vector algorithm "IVF"`,
		},
		{"duplicate name", NewIndex("cortex:idx:docs").Tag("chunk_id").Numeric("chunk_id"), "duplicate field name: chunk_id"},
		{
			"alias collides",
			NewIndex("cortex:idx:docs").Tag("vector").Vector("embedding", flat(4)).As("vector"),
			"duplicate field name: vector",
		},
		{"empty field name", NewIndex("cortex:idx:docs").Tag(""), "field 0: name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build.Build()
			require.ErrorIs(t, err, ErrInvalidIndex)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestIndexDefinition_UnknownFieldType(t *testing.T) {
	def := &IndexDefinition{Name: "cortex:idx:docs", Fields: []IndexField{{Name: "f", Type: IndexFieldType(9)}}}
	assert.ErrorContains(t, def.Validate(), "unknown type IndexFieldType(9)")
}
