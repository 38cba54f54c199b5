package notification

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const badgeTTL = 24 * time.Hour

// Badge caches unread counts in Redis. Writers invalidate, readers refill
// from the database on a miss. A nil Badge or client always reads through.
type Badge struct {
	rdb *redis.Client
}

func NewBadge(rdb *redis.Client) *Badge {
	return &Badge{rdb: rdb}
}

func badgeKey(userID string) string {
	return "notifications:unread:" + userID
}

// Count returns the cached unread count for userID, loading and caching it
// on a miss.
func (b *Badge) Count(ctx context.Context, userID string, load func(context.Context) (int64, error)) (int64, error) {
	if b == nil || b.rdb == nil {
		return load(ctx)
	}

	key := badgeKey(userID)
	n, err := b.rdb.Get(ctx, key).Int64()
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, redis.Nil) {
		return load(ctx)
	}

	n, err = load(ctx)
	if err != nil {
		return 0, err
	}
	_ = b.rdb.Set(ctx, key, n, badgeTTL).Err()
	return n, nil
}

func (b *Badge) Invalidate(ctx context.Context, userIDs ...string) error {
	if b == nil || b.rdb == nil || len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, badgeKey(id))
	}
	return b.rdb.Del(ctx, keys...).Err()
}
