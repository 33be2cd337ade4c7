package queue

import (
	"context"
	"testing"
	"time"

	"carwow/catalog/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q, err := NewRedisQueue(context.Background(), rdb, config.RedisConfig{ConsumerGroup: "carwow_sync"})
	if err != nil {
		t.Fatalf("NewRedisQueue: %v", err)
	}
	return q.(*RedisQueue), mr, rdb
}

func failed(slug string, retries int) *FailedVehicleTask {
	return &FailedVehicleTask{
		Slug:       slug,
		URL:        "https://www.carwow.co.uk/" + slug,
		ErrorKind:  "fetch",
		Error:      "status 503",
		RetryCount: retries,
		FailedAt:   time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func TestEnsureStreamsExistTwice(t *testing.T) {
	q, _, _ := newTestQueue(t)
	if err := q.EnsureStreamsExist(context.Background()); err != nil {
		t.Fatalf("existing group should be reused: %v", err)
	}
}

func TestDrainFailedReadsQueuedTasks(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	for _, task := range []*FailedVehicleTask{failed("bmw/x5", 0), failed("audi/a4", 1), failed("kia/ev6", maxRetries)} {
		if err := q.AddFailed(ctx, task); err != nil {
			t.Fatalf("AddFailed: %v", err)
		}
	}

	tasks, err := q.DrainFailed(ctx, "run-1", 10)
	if err != nil {
		t.Fatalf("DrainFailed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2 (the exhausted one is dropped)", len(tasks))
	}
	if tasks[0].Task.Slug != "bmw/x5" || tasks[1].Task.Slug != "audi/a4" || tasks[1].Task.RetryCount != 1 {
		t.Errorf("tasks = %+v, %+v", tasks[0].Task, tasks[1].Task)
	}

	again, err := q.DrainFailed(ctx, "run-1", 10)
	if err != nil {
		t.Fatalf("DrainFailed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("recently delivered tasks were handed out again: %+v", again)
	}
}

func TestDrainFailedRespectsMax(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()
	for _, slug := range []string{"bmw/x1", "bmw/x3", "bmw/x5"} {
		if err := q.AddFailed(ctx, failed(slug, 0)); err != nil {
			t.Fatal(err)
		}
	}

	tasks, err := q.DrainFailed(ctx, "run-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Errorf("got %d tasks, want 2", len(tasks))
	}
}

func TestDrainFailedClaimsIdleTasks(t *testing.T) {
	q, mr, _ := newTestQueue(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	mr.SetTime(start)

	if err := q.AddFailed(ctx, failed("bmw/x5", 0)); err != nil {
		t.Fatal(err)
	}
	first, err := q.DrainFailed(ctx, "crashed-run", 10)
	if err != nil || len(first) != 1 {
		t.Fatalf("DrainFailed = %v, %v", first, err)
	}

	mr.SetTime(start.Add(2 * time.Minute))
	second, err := q.DrainFailed(ctx, "next-run", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 || second[0].ID != first[0].ID {
		t.Errorf("idle task not claimed by the next run: %+v", second)
	}
}

func TestAckTaskDeletesMessage(t *testing.T) {
	q, _, rdb := newTestQueue(t)
	ctx := context.Background()

	if err := q.AddFailed(ctx, failed("bmw/x5", 0)); err != nil {
		t.Fatal(err)
	}
	tasks, err := q.DrainFailed(ctx, "run-1", 10)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("DrainFailed = %v, %v", tasks, err)
	}

	if err := q.AckTask(ctx, tasks[0].ID); err != nil {
		t.Fatalf("AckTask: %v", err)
	}
	if n := rdb.XLen(ctx, q.failedStream()).Val(); n != 0 {
		t.Errorf("stream length = %d, want 0", n)
	}
	pending, err := rdb.XPending(ctx, q.failedStream(), q.groupName).Result()
	if err != nil {
		t.Fatal(err)
	}
	if pending.Count != 0 {
		t.Errorf("pending = %d, want 0", pending.Count)
	}
}

func TestDrainFailedDropsMalformedMessages(t *testing.T) {
	q, _, rdb := newTestQueue(t)
	ctx := context.Background()

	if err := rdb.XAdd(ctx, &redis.XAddArgs{Stream: q.failedStream(), Values: map[string]any{"task_type": "x"}}).Err(); err != nil {
		t.Fatal(err)
	}
	if err := q.AddFailed(ctx, failed("bmw/x5", 0)); err != nil {
		t.Fatal(err)
	}

	tasks, err := q.DrainFailed(ctx, "run-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Task.Slug != "bmw/x5" {
		t.Errorf("tasks = %+v", tasks)
	}
	if n := rdb.XLen(ctx, q.failedStream()).Val(); n != 1 {
		t.Errorf("stream length = %d, want only the valid task left", n)
	}
}
