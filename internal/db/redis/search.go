package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cortex/internal/db"
)

// scoreField is the pseudo-field FT.SEARCH fills with the KNN distance.
const scoreField = "__vector_score"

// SearchKNN returns the K nearest chunks. Scores are cosine similarities,
// 1 - distance clamped at 0, in descending order.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	args := []string{q.IndexName, fmt.Sprintf("*=>[KNN %d @vector $BLOB]", q.K)}
	if len(q.ReturnFields) > 0 {
		// Once RETURN narrows the reply the score has to be asked for by name.
		args = appendCounted(args, "RETURN", append([]string{scoreField}, q.ReturnFields...))
	}
	args = append(args,
		"SORTBY", scoreField,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", db.EncodeVector(q.Vector),
		"DIALECT", "2",
	)

	raw, err := s.ftSearch(ctx, args)
	if err != nil {
		return nil, err
	}
	res, err := decodeReply(raw)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		if d, ok := e.Fields[scoreField]; ok {
			e.Score = similarity(d)
			delete(e.Fields, scoreField)
		}
	}
	return res, nil
}

// SearchList returns one page of documents matching q.Query.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := q.Query
	if query == "" {
		query = "*"
	}
	args := []string{q.IndexName, query}
	if len(q.ReturnFields) > 0 {
		args = appendCounted(args, "RETURN", q.ReturnFields)
	}
	if q.SortBy != "" {
		order := "ASC"
		if q.SortDesc {
			order = "DESC"
		}
		args = append(args, "SORTBY", q.SortBy, order)
	}
	args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit), "DIALECT", "2")

	raw, err := s.ftSearch(ctx, args)
	if err != nil {
		return nil, err
	}
	return decodeReply(raw)
}

// SearchCount counts matches without fetching any document.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	raw, err := s.ftSearch(ctx, []string{index, query, "LIMIT", "0", "0"})
	if err != nil || len(raw) == 0 {
		return 0, err
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// ftSearch runs FT.SEARCH and maps a missing index to db.ErrIndexNotFound.
// Older servers say "no such index", newer ones "unknown index name".
func (s *Store) ftSearch(ctx context.Context, args []string) ([]rueidis.RedisMessage, error) {
	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	switch {
	case err == nil:
		return raw, nil
	case isRedisErr(err, "no such index"), isRedisErr(err, errUnknownIndex):
		return nil, db.ErrIndexNotFound
	default:
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
}

func appendCounted(args []string, keyword string, values []string) []string {
	args = append(args, keyword, strconv.Itoa(len(values)))
	return append(args, values...)
}

// similarity turns a cosine distance reply into a score in [0, 1].
// Unparsable distances score 0.
func similarity(distance string) float64 {
	d, err := strconv.ParseFloat(distance, 64)
	if err != nil {
		return 0
	}
	return max(0, 1-d)
}

// decodeReply reads the RESP2 FT.SEARCH reply
// [total, key1, [f, v, ...], key2, [f, v, ...], ...]. Entries whose key or
// field list is malformed are dropped.
func decodeReply(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	res := &db.SearchResult{}
	if len(raw) == 0 {
		return res, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	res.Total = int(total)

	hits := raw[1:]
	for i := 0; i+1 < len(hits); i += 2 {
		key, kerr := hits[i].ToString()
		pairs, ferr := hits[i+1].ToArray()
		if kerr != nil || ferr != nil {
			continue
		}
		res.Entries = append(res.Entries, db.SearchEntry{Key: key, Fields: decodePairs(pairs)})
	}
	return res, nil
}

func decodePairs(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, nerr := pairs[i].ToString()
		value, verr := pairs[i+1].ToString()
		if nerr == nil && verr == nil {
			m[name] = value
		}
	}
	return m
}
