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

const chunkKey = "cortex:chunk:docs:3f2a"

func TestHSet(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("HSET", chunkKey, "doc_hash", "3f2a")).
		Return(mock.Result(mock.RedisInt64(1)))

	require.NoError(t, s.HSet(context.Background(), chunkKey, map[string]string{"doc_hash": "3f2a"}))
}

func TestHSet_WrapsError(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), cmdNamed("HSET")).Return(mock.ErrorResult(context.DeadlineExceeded))

	err := s.HSet(context.Background(), chunkKey, map[string]string{"text": "x"})
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpHSet, dbErr.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHSetMulti(t *testing.T) {
	t.Run("empty skips the round-trip", func(t *testing.T) {
		require.NoError(t, NewStoreForTest(nil).HSetMulti(context.Background(), nil))
	})

	t.Run("reports the failing key", func(t *testing.T) {
		s, c := newMockStore(t)
		c.EXPECT().
			DoMulti(gomock.Any(), cmdNamed("HSET"), cmdNamed("HSET")).
			Return([]rueidis.RedisResult{
				mock.Result(mock.RedisInt64(3)),
				mock.Result(mock.RedisError("OOM command not allowed")),
			})

		err := s.HSetMulti(context.Background(), []db.HashSetItem{
			{Key: "cortex:chunk:docs:a", Fields: map[string]string{"text": "one"}},
			{Key: "cortex:chunk:docs:b", Fields: map[string]string{"text": "two"}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cortex:chunk:docs:b")
	})
}

func TestHGetAll(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "cortex:meta:docs")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"description": mock.RedisString("Project docs"),
		})))

	m, err := s.HGetAll(context.Background(), "cortex:meta:docs")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"description": "Project docs"}, m)
}

func TestHGetAllMulti(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(), cmdNamed("HGETALL"), cmdNamed("HGETALL")).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{"name": mock.RedisString("docs")})),
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{"name": mock.RedisString("notes")})),
		})

	out, err := s.HGetAllMulti(context.Background(), []string{"cortex:meta:docs", "cortex:meta:notes"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "docs", out[0]["name"])
	assert.Equal(t, "notes", out[1]["name"])

	out, err = NewStoreForTest(nil).HGetAllMulti(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDelAndExists(t *testing.T) {
	s, c := newMockStore(t)
	key := "cortex:meta:docs"
	c.EXPECT().Do(gomock.Any(), mock.Match("DEL", key)).Return(mock.Result(mock.RedisInt64(1)))
	c.EXPECT().Do(gomock.Any(), mock.Match("EXISTS", key)).Return(mock.Result(mock.RedisInt64(0)))

	require.NoError(t, s.Del(context.Background(), key))
	ok, err := s.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScan_FollowsCursor(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("SCAN", "0", "MATCH", "cortex:meta:*", "COUNT", "100")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisInt64(17),
				mock.RedisArray(mock.RedisString("cortex:meta:docs")),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("SCAN", "17", "MATCH", "cortex:meta:*", "COUNT", "100")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("cortex:meta:notes")),
			))),
	)

	keys, err := s.Scan(context.Background(), "cortex:meta:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"cortex:meta:docs", "cortex:meta:notes"}, keys)
}

func TestScan_DropsRepeatedKeys(t *testing.T) {
	s, c := newMockStore(t)
	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("SCAN", "0", "MATCH", "cortex:chunk:docs:*", "COUNT", "100")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisInt64(9),
				mock.RedisArray(mock.RedisString("cortex:chunk:docs:a-0"), mock.RedisString("cortex:chunk:docs:b-0")),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("SCAN", "9", "MATCH", "cortex:chunk:docs:*", "COUNT", "100")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("cortex:chunk:docs:b-0")),
			))),
	)

	keys, err := s.Scan(context.Background(), "cortex:chunk:docs:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"cortex:chunk:docs:a-0", "cortex:chunk:docs:b-0"}, keys)
}

func TestHSet_FieldsInSortedOrder(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("HSET", chunkKey, "doc_hash", "3f2a", "position", "2", "text", "hello")).
		Return(mock.Result(mock.RedisInt64(3)))

	require.NoError(t, s.HSet(context.Background(), chunkKey, map[string]string{
		"text": "hello", "position": "2", "doc_hash": "3f2a",
	}))
}

func TestHGetAllMulti_ReportsFailingKey(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(), cmdNamed("HGETALL"), cmdNamed("HGETALL")).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})),
			mock.ErrorResult(context.DeadlineExceeded),
		})

	_, err := s.HGetAllMulti(context.Background(), []string{"cortex:meta:docs", "cortex:meta:notes"})
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpHGetAll, dbErr.Op)
	assert.ErrorContains(t, err, "cortex:meta:notes")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
