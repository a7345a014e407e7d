package redis

import (
	"cmp"
	"context"
	"strconv"

	"github.com/kailas-cloud/cortex/internal/db"
)

// Server error fragments the index commands translate into sentinels.
const (
	errIndexExists  = "index already exists"
	errUnknownIndex = "unknown index name"
)

// CreateIndex runs FT.CREATE for a validated definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := ftCreateArgs(def)
	if err != nil {
		return err
	}
	err = s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, errIndexExists):
		return db.ErrIndexExists
	default:
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
}

// DropIndex runs FT.DROPINDEX. With deleteDocs the indexed hashes go too.
func (s *Store) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name)
	if deleteDocs {
		cmd = cmd.Args("DD")
	}
	err := s.do(ctx, cmd.Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, errUnknownIndex):
		return db.ErrIndexNotFound
	default:
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
}

// IndexExists asks FT.INFO about the index.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case isRedisErr(err, errUnknownIndex):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
}

// ftCreateArgs renders everything after the FT.CREATE keyword.
func ftCreateArgs(def *db.IndexDefinition) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	args := []string{def.Name, "ON", string(cmp.Or(def.StorageType, db.StorageHash))}
	if n := len(def.Prefixes); n > 0 {
		args = append(args, "PREFIX", strconv.Itoa(n))
		args = append(args, def.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for _, f := range def.Fields {
		args = append(args, schemaField(f)...)
	}
	return args, nil
}

// schemaField renders one SCHEMA entry of a field that passed validation.
func schemaField(f db.IndexField) []string {
	out := []string{f.Name}
	if f.Alias != "" {
		out = append(out, "AS", f.Alias)
	}
	out = append(out, f.Type.String())

	switch f.Type {
	case db.IndexFieldTag:
		if f.Tag.Separator != "" {
			out = append(out, "SEPARATOR", f.Tag.Separator)
		}
		if f.Tag.CaseSensitive {
			out = append(out, "CASESENSITIVE")
		}
	case db.IndexFieldVector:
		algo, attrs := vectorAttrs(f.Vector)
		out = append(out, string(algo), strconv.Itoa(len(attrs)))
		out = append(out, attrs...)
	}

	if f.Sortable {
		out = append(out, "SORTABLE")
	}
	return out
}

// vectorAttrs resolves defaults and returns the algorithm with its
// attribute pairs, which FT.CREATE expects to be counted.
func vectorAttrs(p db.VectorParams) (db.VectorAlgorithm, []string) {
	algo := cmp.Or(p.Algorithm, db.VectorFlat)
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(p.Dim),
		"DISTANCE_METRIC", string(cmp.Or(p.Distance, db.DistanceCosine)),
	}
	optional := func(name string, v int) {
		if v > 0 {
			attrs = append(attrs, name, strconv.Itoa(v))
		}
	}
	if algo == db.VectorHNSW {
		optional("M", p.M)
		optional("EF_CONSTRUCTION", p.EFConstruct)
	} else {
		optional("BLOCK_SIZE", p.BlockSize)
	}
	return algo, attrs
}
