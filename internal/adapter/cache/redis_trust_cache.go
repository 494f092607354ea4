package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/commentkit/commentkit/internal/repository"
)

const trustKeyPrefix = "ck:trust:"

// RedisTrustCache implements DomainTrustCache backed by Redis.
type RedisTrustCache struct {
	client redis.UniversalClient
}

var _ repository.DomainTrustCache = (*RedisTrustCache)(nil)

// NewRedisTrustCache constructs a Redis-backed domain trust cache.
func NewRedisTrustCache(client redis.UniversalClient) *RedisTrustCache {
	return &RedisTrustCache{client: client}
}

// GetTrusted returns the cached verified flag for host, or nil on a miss.
func (c *RedisTrustCache) GetTrusted(ctx context.Context, host string) (*bool, error) {
	val, err := c.client.Get(ctx, trustKeyPrefix+host).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load domain trust: %w", err)
	}
	trusted := val == "1"
	return &trusted, nil
}

// SetTrusted stores the verified flag for host with TTL.
func (c *RedisTrustCache) SetTrusted(ctx context.Context, host string, trusted bool, ttl time.Duration) error {
	val := "0"
	if trusted {
		val = "1"
	}
	if err := c.client.Set(ctx, trustKeyPrefix+host, val, ttl).Err(); err != nil {
		return fmt.Errorf("persist domain trust: %w", err)
	}
	return nil
}
