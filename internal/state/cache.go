package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateKey        = "carwow:rate:gbp_jpy"
	quotaKeyPrefix = "carwow:translate:chars:"
	quotaRetention = 40 * 24 * time.Hour
)

// RateCache keeps the fetched GBP to JPY rate in Redis with a TTL
type RateCache struct {
	redisClient *redis.Client
}

func NewRateCache(redisClient *redis.Client) *RateCache {
	return &RateCache{redisClient: redisClient}
}

func (c *RateCache) GetRate(ctx context.Context) (float64, bool, error) {
	rate, err := c.redisClient.Get(ctx, rateKey).Float64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get cached rate: %w", err)
	}
	return rate, true, nil
}

func (c *RateCache) SetRate(ctx context.Context, rate float64, ttl time.Duration) error {
	if err := c.redisClient.Set(ctx, rateKey, rate, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache rate: %w", err)
	}
	return nil
}

// QuotaStore counts translated characters per month in Redis so usage survives restarts
type QuotaStore struct {
	redisClient *redis.Client
}

func NewQuotaStore(redisClient *redis.Client) *QuotaStore {
	return &QuotaStore{redisClient: redisClient}
}

func (q *QuotaStore) Used(ctx context.Context, month string) (int, error) {
	used, err := q.redisClient.Get(ctx, quotaKeyPrefix+month).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get quota usage for %s: %w", month, err)
	}
	return used, nil
}

func (q *QuotaStore) Add(ctx context.Context, month string, chars int) (int, error) {
	key := quotaKeyPrefix + month

	pipe := q.redisClient.TxPipeline()
	incr := pipe.IncrBy(ctx, key, int64(chars))
	pipe.Expire(ctx, key, quotaRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to add quota usage for %s: %w", month, err)
	}
	return int(incr.Val()), nil
}
