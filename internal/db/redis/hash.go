package redis

import (
	"context"
	"maps"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cortex/internal/db"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// hsetCmd writes fields in sorted order so the command is deterministic.
func (s *Store) hsetCmd(key string, fields map[string]string) rueidis.Completed {
	cmd := s.b().Hset().Key(key).FieldValue()
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		cmd = cmd.FieldValue(name, fields[name])
	}
	return cmd.Build()
}

func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.do(ctx, s.hsetCmd(key, fields)).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HSetMulti pipelines one HSET per item. The first failure names its key.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}
	keys := make([]string, len(items))
	cmds := make(rueidis.Commands, len(items))
	for i, item := range items {
		keys[i] = item.Key
		cmds[i] = s.hsetCmd(item.Key, item.Fields)
	}
	return s.pipeline(ctx, db.OpHSet, keys, cmds, func(_ int, res rueidis.RedisResult) error {
		return res.Error()
	})
}

// HGetAll returns every field of a hash; a missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti pipelines HGETALL and returns the hashes in key order.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}
	out := make([]map[string]string, len(keys))
	err := s.pipeline(ctx, db.OpHGetAll, keys, cmds, func(i int, res rueidis.RedisResult) error {
		m, err := res.AsStrMap()
		out[i] = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.do(ctx, s.b().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return n > 0, nil
}

// Scan walks the whole keyspace cursor for keys matching pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	seen := make(map[string]struct{})
	for {
		entry, err := s.do(ctx, s.b().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		// SCAN may report a key more than once across one iteration.
		for _, k := range entry.Elements {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		if cursor = entry.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}

// pipeline sends cmds in one DoMulti round-trip and hands each result to
// each. The first failure is reported against keys[i].
func (s *Store) pipeline(
	ctx context.Context, op string, keys []string, cmds rueidis.Commands,
	each func(i int, res rueidis.RedisResult) error,
) error {
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := each(i, res); err != nil {
			return &db.Error{Op: op, Key: keys[i], Err: err}
		}
	}
	return nil
}
