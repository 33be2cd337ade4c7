package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateManager remembers when each vehicle slug was last written to the sinks
type StateManager interface {
	LastSynced(ctx context.Context, slug string) (time.Time, bool, error)
	MarkSynced(ctx context.Context, slug string, at time.Time) error
}

type redisStateManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   "carwow:synced:",
	}
}

func (s *redisStateManager) LastSynced(ctx context.Context, slug string) (time.Time, bool, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+slug).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil // never synced
		}
		return time.Time{}, false, fmt.Errorf("failed to get last sync of %s: %w", slug, err)
	}

	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse last sync of %s: %w", slug, err)
	}

	return time.Unix(unix, 0).UTC(), true, nil
}

func (s *redisStateManager) MarkSynced(ctx context.Context, slug string, at time.Time) error {
	if err := s.redisClient.Set(ctx, s.keyPrefix+slug, at.Unix(), 0).Err(); err != nil {
		return fmt.Errorf("failed to set last sync of %s: %w", slug, err)
	}
	return nil
}

type noopStateManager struct{}

// NewNoopStateManager is used when Redis is disabled: nothing is ever fresh
func NewNoopStateManager() StateManager {
	return noopStateManager{}
}

func (noopStateManager) LastSynced(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (noopStateManager) MarkSynced(context.Context, string, time.Time) error {
	return nil
}

// IsFresh reports whether slug was synced less than maxAge ago. A zero maxAge disables the check.
func IsFresh(ctx context.Context, s StateManager, slug string, maxAge time.Duration, now time.Time) (bool, error) {
	if maxAge <= 0 {
		return false, nil
	}
	last, ok, err := s.LastSynced(ctx, slug)
	if err != nil || !ok {
		return false, err
	}
	return now.Sub(last) < maxAge, nil
}
