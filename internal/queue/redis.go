package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// JobsKey is the Redis list holding pending dispatch jobs.
	JobsKey         = "announce:dispatch:jobs"
	cancelKeyPrefix = "announce:dispatch:cancel:"
)

// RedisQueue is a Redis list queue: LPUSH to enqueue, BRPOP to dequeue.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

// NewRedisQueue creates a queue on the default jobs key.
func NewRedisQueue(client redis.Cmdable) *RedisQueue {
	return &RedisQueue{client: client, key: JobsKey}
}

// Enqueue pushes a job.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue pops the oldest job, waiting up to timeout.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	// res is [key, value]
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Len returns the number of pending jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// RedisCancelFlags stores cancellation requests as expiring keys.
type RedisCancelFlags struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCancelFlags creates flags that expire after ttl.
func NewRedisCancelFlags(client redis.Cmdable, ttl time.Duration) *RedisCancelFlags {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCancelFlags{client: client, ttl: ttl}
}

func (f *RedisCancelFlags) RequestCancel(ctx context.Context, campaignID string) error {
	return f.client.Set(ctx, cancelKeyPrefix+campaignID, "1", f.ttl).Err()
}

func (f *RedisCancelFlags) IsCancelled(ctx context.Context, campaignID string) (bool, error) {
	n, err := f.client.Exists(ctx, cancelKeyPrefix+campaignID).Result()
	if err != nil {
		return false, fmt.Errorf("check cancel flag: %w", err)
	}
	return n > 0, nil
}

func (f *RedisCancelFlags) Clear(ctx context.Context, campaignID string) error {
	return f.client.Del(ctx, cancelKeyPrefix+campaignID).Err()
}
