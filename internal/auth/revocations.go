package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations remembers logged-out token ids until the tokens would have
// expired anyway. A nil client revokes nothing.
type Revocations struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRevocations(rdb *redis.Client) *Revocations {
	return &Revocations{rdb: rdb, now: time.Now}
}

func revokedKey(tokenID string) string {
	return "auth:revoked:" + tokenID
}

func (r *Revocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if r == nil || r.rdb == nil || tokenID == "" {
		return nil
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKey(tokenID), "1", ttl).Err()
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r == nil || r.rdb == nil || tokenID == "" {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
