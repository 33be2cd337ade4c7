package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisStateManager(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisStateManager(rdb)
	ctx := context.Background()

	if _, ok, err := s.LastSynced(ctx, "bmw/x5"); err != nil || ok {
		t.Fatalf("LastSynced before sync = %v, %v", ok, err)
	}

	at := time.Date(2026, 10, 18, 9, 15, 30, 0, time.UTC)
	if err := s.MarkSynced(ctx, "bmw/x5", at); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	got, ok, err := s.LastSynced(ctx, "bmw/x5")
	if err != nil || !ok || !got.Equal(at) {
		t.Errorf("LastSynced = %v, %v, %v, want %v", got, ok, err, at)
	}
}

func TestRedisStateManagerBadValue(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Set("carwow:synced:bmw/x5", "yesterday")

	if _, _, err := NewRedisStateManager(rdb).LastSynced(context.Background(), "bmw/x5"); err == nil {
		t.Fatal("want a parse error")
	}
}

func TestRateCache(t *testing.T) {
	mr, rdb := newTestRedis(t)
	c := NewRateCache(rdb)
	ctx := context.Background()

	if _, ok, err := c.GetRate(ctx); err != nil || ok {
		t.Fatalf("GetRate on empty cache = %v, %v", ok, err)
	}
	if err := c.SetRate(ctx, 191.25, time.Hour); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	rate, ok, err := c.GetRate(ctx)
	if err != nil || !ok || rate != 191.25 {
		t.Errorf("GetRate = %v, %v, %v", rate, ok, err)
	}
	if ttl := mr.TTL(rateKey); ttl != time.Hour {
		t.Errorf("ttl = %v", ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	if _, ok, _ := c.GetRate(ctx); ok {
		t.Error("expired rate still cached")
	}
}

func TestQuotaStore(t *testing.T) {
	mr, rdb := newTestRedis(t)
	q := NewQuotaStore(rdb)
	ctx := context.Background()

	if used, err := q.Used(ctx, "2026-10"); err != nil || used != 0 {
		t.Fatalf("Used on a new month = %d, %v", used, err)
	}
	if total, err := q.Add(ctx, "2026-10", 120); err != nil || total != 120 {
		t.Fatalf("Add = %d, %v", total, err)
	}
	if total, err := q.Add(ctx, "2026-10", 80); err != nil || total != 200 {
		t.Fatalf("Add = %d, %v", total, err)
	}
	if used, err := q.Used(ctx, "2026-10"); err != nil || used != 200 {
		t.Errorf("Used = %d, %v", used, err)
	}
	if used, _ := q.Used(ctx, "2026-11"); used != 0 {
		t.Errorf("months share a counter: %d", used)
	}
	if ttl := mr.TTL(quotaKeyPrefix + "2026-10"); ttl != quotaRetention {
		t.Errorf("ttl = %v, want %v", ttl, quotaRetention)
	}
}
