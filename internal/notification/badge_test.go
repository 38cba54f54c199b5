package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgeCount_Hit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(badgeKey("u1")).SetVal("4")

	n, err := NewBadge(rdb).Count(context.Background(), "u1", func(context.Context) (int64, error) {
		t.Fatalf("loader must not run on a cache hit")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBadgeCount_MissLoadsAndCaches(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(badgeKey("u1")).RedisNil()
	mock.ExpectSet(badgeKey("u1"), int64(2), badgeTTL).SetVal("OK")

	n, err := NewBadge(rdb).Count(context.Background(), "u1", func(context.Context) (int64, error) {
		return 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBadgeCount_RedisDownReadsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(badgeKey("u1")).SetErr(errors.New("connection refused"))

	n, err := NewBadge(rdb).Count(context.Background(), "u1", func(context.Context) (int64, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestBadge_NilIsReadThrough(t *testing.T) {
	var b *Badge
	n, err := b.Count(context.Background(), "u1", func(context.Context) (int64, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, b.Invalidate(context.Background(), "u1"))
}
