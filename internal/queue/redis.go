package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carwow/catalog/internal/config"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// maxRetries is how many runs a failed vehicle is retried before it is dropped
const maxRetries = 3

type Queue interface {
	AddTask(ctx context.Context, task Task) (string, error) // returns the message ID
	AddFailed(ctx context.Context, task *FailedVehicleTask) error
	DrainFailed(ctx context.Context, consumer string, max int) ([]PendingTask, error)
	AckTask(ctx context.Context, msgID string) error
	EnsureStreamsExist(ctx context.Context) error
}

// PendingTask is a failed vehicle read from the stream, acknowledged once handled
type PendingTask struct {
	ID   string
	Task *FailedVehicleTask
}

type RedisQueue struct {
	redisClient  *redis.Client
	streamPrefix string
	groupName    string
}

func NewRedisQueue(ctx context.Context, redisClient *redis.Client, cfg config.RedisConfig) (Queue, error) {
	q := &RedisQueue{
		redisClient:  redisClient,
		streamPrefix: "carwow:stream:",
		groupName:    cfg.ConsumerGroup,
	}

	if err := q.EnsureStreamsExist(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure streams exist: %w", err)
	}

	return q, nil
}

func (q *RedisQueue) failedStream() string {
	return q.streamPrefix + FailedVehicleTaskType
}

func (q *RedisQueue) createGroup(ctx context.Context, stream string) error {
	err := q.redisClient.XGroupCreateMkStream(ctx, stream, q.groupName, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		log.Debugf("Group %s already exists for stream %s", q.groupName, stream)
		return nil
	}
	return err
}

func (q *RedisQueue) AddTask(ctx context.Context, task Task) (string, error) {
	taskType := task.TaskType()
	streamName := q.streamPrefix + taskType

	taskValue, err := task.TaskValue()
	if err != nil {
		return "", fmt.Errorf("failed to serialize task: %w", err)
	}

	messageID, err := q.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]any{
			"task_type": taskType,
			"task_data": string(taskValue),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add task to Redis stream %s: %w", streamName, err)
	}

	log.Debugf("Added task %s to stream %s with message ID: %s", taskType, streamName, messageID)
	return messageID, nil
}

// AddFailed queues a failed vehicle for the next run unless it ran out of retries
func (q *RedisQueue) AddFailed(ctx context.Context, task *FailedVehicleTask) error {
	if task.RetryCount >= maxRetries {
		log.Warnf("🗑️ Dropping %s after %d failed runs: %s", task.Slug, task.RetryCount, task.Error)
		return nil
	}
	if _, err := q.AddTask(ctx, task); err != nil {
		return err
	}
	log.Infof("🔄 Queued %s for retry (%s)", task.Slug, task.ErrorKind)
	return nil
}

// DrainFailed returns up to max queued failures: entries left pending by an earlier consumer
// first, then new ones. It does not block when the stream is empty.
func (q *RedisQueue) DrainFailed(ctx context.Context, consumer string, max int) ([]PendingTask, error) {
	stream := q.failedStream()

	claimed, _, err := q.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    q.groupName,
		Consumer: consumer,
		MinIdle:  time.Minute,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to claim messages from Redis stream %s: %w", stream, err)
	}

	messages := claimed
	if remaining := max - len(claimed); remaining > 0 {
		result, err := q.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.groupName,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    int64(remaining),
			Block:    -1,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read from Redis stream %s: %w", stream, err)
		}
		for _, s := range result {
			messages = append(messages, s.Messages...)
		}
	}

	tasks := make([]PendingTask, 0, len(messages))
	for _, msg := range messages {
		task, err := DecodeFailedVehicleTask(msg.Values)
		if err != nil {
			log.Warnf("⚠️ Skipping malformed message %s: %v", msg.ID, err)
			if ackErr := q.AckTask(ctx, msg.ID); ackErr != nil {
				log.Warnf("⚠️ Failed to ack malformed message %s: %v", msg.ID, ackErr)
			}
			continue
		}
		tasks = append(tasks, PendingTask{ID: msg.ID, Task: task})
	}
	return tasks, nil
}

func (q *RedisQueue) AckTask(ctx context.Context, msgID string) error {
	stream := q.failedStream()
	pipe := q.redisClient.TxPipeline()
	pipe.XAck(ctx, stream, q.groupName, msgID)
	pipe.XDel(ctx, stream, msgID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msgID, err)
	}
	return nil
}

// EnsureStreamsExist creates the retry stream and its consumer group
func (q *RedisQueue) EnsureStreamsExist(ctx context.Context) error {
	streamName := q.failedStream()
	if err := q.createGroup(ctx, streamName); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", streamName, err)
	}
	log.Infof("✅ Stream %s and consumer group %s ready", streamName, q.groupName)
	return nil
}
