package db

import "slices"

// IndexBuilder assembles an IndexDefinition. Sortable and As apply to the
// field added last and are no-ops before any field exists.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts a HASH index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name, StorageType: StorageHash}}
}

// Prefix restricts the index to keys under the given prefixes.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldNumeric})
}

func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldTag})
}

// Vector adds a VECTOR field.
func (b *IndexBuilder) Vector(name string, params VectorParams) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldVector, Vector: params})
}

func (b *IndexBuilder) Sortable() *IndexBuilder {
	return b.last(func(f *IndexField) { f.Sortable = true })
}

// As names the last field for queries.
func (b *IndexBuilder) As(alias string) *IndexBuilder {
	return b.last(func(f *IndexField) { f.Alias = alias })
}

// Build validates the definition and returns it.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	def.Prefixes = slices.Clone(def.Prefixes)
	def.Fields = slices.Clone(def.Fields)
	return &def, nil
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

func (b *IndexBuilder) last(apply func(*IndexField)) *IndexBuilder {
	if n := len(b.def.Fields); n > 0 {
		apply(&b.def.Fields[n-1])
	}
	return b
}
