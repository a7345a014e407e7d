package redis

import (
	"context"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/cortex/internal/db"
)

func TestSearchKNN(t *testing.T) {
	s, c := newMockStore(t)

	var got []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			got = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("cortex:chunk:docs:a"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.25"),
				mock.RedisString("text"), mock.RedisString("Cortex answers questions."),
			),
			mock.RedisString("cortex:chunk:docs:b"),
			mock.RedisArray(mock.RedisString("__vector_score"), mock.RedisString("1.4")),
		)))

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    chunkIndex,
		Vector:       []float32{0.5, 0.5},
		K:            2,
		ReturnFields: []string{"text"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"FT.SEARCH", chunkIndex, "*=>[KNN 2 @vector $BLOB]",
		"RETURN", "2", "__vector_score", "text",
		"SORTBY", "__vector_score",
		"LIMIT", "0", "2",
		"PARAMS", "2", "BLOB", db.EncodeVector([]float32{0.5, 0.5}),
		"DIALECT", "2",
	}, got)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, 2, res.Total)
	assert.InDelta(t, 0.75, res.Entries[0].Score, 1e-9)
	assert.Equal(t, map[string]string{"text": "Cortex answers questions."}, res.Entries[0].Fields)
	assert.Zero(t, res.Entries[1].Score, "similarity is clamped at zero")
}

func TestSearchKNN_Invalid(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	_, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{1}, K: 1})
	require.ErrorIs(t, err, db.ErrInvalidQuery)
	assert.ErrorContains(t, err, "index name")
	_, err = s.SearchKNN(ctx, &db.KNNQuery{IndexName: chunkIndex, K: 1})
	assert.ErrorContains(t, err, "vector")
	_, err = s.SearchKNN(ctx, &db.KNNQuery{IndexName: chunkIndex, Vector: []float32{1}})
	assert.ErrorContains(t, err, "k must be positive")
}

func TestSearch_MissingIndex(t *testing.T) {
	for _, msg := range []string{"cortex:idx:docs: no such index", "Unknown Index name"} {
		t.Run(msg, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), cmdNamed("FT.SEARCH")).Return(mock.Result(mock.RedisError(msg))).Times(3)

			_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: chunkIndex, Vector: []float32{1}, K: 1})
			assert.ErrorIs(t, err, db.ErrIndexNotFound)
			_, err = s.SearchList(context.Background(), &db.ListQuery{IndexName: chunkIndex, Limit: 1})
			assert.ErrorIs(t, err, db.ErrIndexNotFound)
			_, err = s.SearchCount(context.Background(), chunkIndex, "*")
			assert.ErrorIs(t, err, db.ErrIndexNotFound)
		})
	}
}

func TestSearchList(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.SEARCH", chunkIndex, "*",
			"RETURN", "2", "chunk_id", "text",
			"SORTBY", "chunk_id", "ASC",
			"LIMIT", "50", "25",
			"DIALECT", "2",
		)).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(60),
			mock.RedisString("cortex:chunk:docs:a"),
			mock.RedisArray(mock.RedisString("chunk_id"), mock.RedisString("a"), mock.RedisString("text"), mock.RedisString("one")),
		)))

	res, err := s.SearchList(context.Background(), &db.ListQuery{
		IndexName:    chunkIndex,
		Offset:       50,
		Limit:        25,
		ReturnFields: []string{"chunk_id", "text"},
		SortBy:       "chunk_id",
	})
	require.NoError(t, err)
	assert.Equal(t, 60, res.Total)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "cortex:chunk:docs:a", res.Entries[0].Key)
	assert.Equal(t, "one", res.Entries[0].Fields["text"])
}

func TestSearchList_DescendingWithQuery(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.SEARCH", chunkIndex, "@doc_hash:{3f2a}",
			"SORTBY", "position", "DESC",
			"LIMIT", "0", "10",
			"DIALECT", "2",
		)).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	res, err := s.SearchList(context.Background(), &db.ListQuery{
		IndexName: chunkIndex,
		Query:     "@doc_hash:{3f2a}",
		Limit:     10,
		SortBy:    "position",
		SortDesc:  true,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)

	_, err = (&Store{}).SearchList(context.Background(), &db.ListQuery{IndexName: chunkIndex})
	assert.ErrorContains(t, err, "limit must be positive")
	_, err = (&Store{}).SearchList(context.Background(), &db.ListQuery{IndexName: chunkIndex, Limit: 1, Offset: -1})
	assert.ErrorIs(t, err, db.ErrInvalidQuery)
}

func TestSearchCount(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", chunkIndex, "*", "LIMIT", "0", "0")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(42))))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", chunkIndex, "@doc_hash:{none}", "LIMIT", "0", "0")).
		Return(mock.Result(mock.RedisArray()))

	n, err := s.SearchCount(context.Background(), chunkIndex, "*")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = s.SearchCount(context.Background(), chunkIndex, "@doc_hash:{none}")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDecodeReply_SkipsMalformedEntries(t *testing.T) {
	res, err := decodeReply([]rueidis.RedisMessage{
		mock.RedisInt64(2),
		mock.RedisString("cortex:chunk:docs:a"),
		mock.RedisString("not-an-array"),
		mock.RedisString("cortex:chunk:docs:b"),
		mock.RedisArray(mock.RedisString("text"), mock.RedisString("two")),
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "cortex:chunk:docs:b", res.Entries[0].Key)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, similarity("0"), 1e-9)
	assert.InDelta(t, 0.4, similarity("0.6"), 1e-9)
	assert.Zero(t, similarity("1.7"))
	assert.Zero(t, similarity("nan-ish"))
}

func TestSearchKNN_WrapsServerError(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), cmdNamed("FT.SEARCH")).Return(mock.ErrorResult(context.Canceled))

	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: chunkIndex, Vector: []float32{1}, K: 3})
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpSearch, dbErr.Op)
}
