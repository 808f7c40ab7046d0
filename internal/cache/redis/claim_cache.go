package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veloralabs/liqlock/internal/domain"
)

// claimCacheTTL bounds staleness of the reverse index. Entries are
// invalidated explicitly on release, so the TTL only covers missed
// invalidations.
const claimCacheTTL = 24 * time.Hour

// ClaimCache implements domain.ClaimCache on top of Redis string keys. It
// caches the underlying-position to claim-identifier reverse index so that
// lookups avoid hitting the ledger.
type ClaimCache struct {
	rdb *redis.Client
}

// NewClaimCache creates a ClaimCache backed by the given Client.
func NewClaimCache(c *Client) *ClaimCache {
	return &ClaimCache{rdb: c.Underlying()}
}

func claimKey(pos domain.PositionID) string {
	return "claim:" + strconv.FormatUint(uint64(pos), 10)
}

// SetClaim records the claim identifier bound to an underlying position.
func (cc *ClaimCache) SetClaim(ctx context.Context, pos domain.PositionID, claim domain.ClaimID) error {
	if err := cc.rdb.Set(ctx, claimKey(pos), uint64(claim), claimCacheTTL).Err(); err != nil {
		return fmt.Errorf("redis: set claim %d: %w", pos, err)
	}
	return nil
}

// GetClaim returns the cached claim identifier for an underlying position.
// It returns domain.ErrNotFound on a cache miss.
func (cc *ClaimCache) GetClaim(ctx context.Context, pos domain.PositionID) (domain.ClaimID, error) {
	val, err := cc.rdb.Get(ctx, claimKey(pos)).Result()
	if err != nil {
		if err == redis.Nil {
			return domain.NilClaimID, domain.ErrNotFound
		}
		return domain.NilClaimID, fmt.Errorf("redis: get claim %d: %w", pos, err)
	}

	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return domain.NilClaimID, fmt.Errorf("redis: parse claim %d: %w", pos, err)
	}
	return domain.ClaimID(id), nil
}

// InvalidateClaim drops the cached entry for an underlying position.
func (cc *ClaimCache) InvalidateClaim(ctx context.Context, pos domain.PositionID) error {
	if err := cc.rdb.Del(ctx, claimKey(pos)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate claim %d: %w", pos, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ClaimCache = (*ClaimCache)(nil)
