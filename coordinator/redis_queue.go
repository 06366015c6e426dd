package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisQueueBackend implements QueueBackend over a Redis list: Enqueue is an
// LPUSH, Dequeue a blocking BRPOP. Runs round-trip as JSON. The client is
// created lazily on first use, mirroring the lazy-connect pattern used
// elsewhere in this module for Redis-backed components.
type RedisQueueBackend struct {
	addr     string
	password string
	db       int
	key      string

	initOnce sync.Once
	client   *redis.Client
}

// NewRedisQueueBackend builds a backend that pushes/pops runs under key on
// the Redis instance at addr.
func NewRedisQueueBackend(addr, key string) *RedisQueueBackend {
	return NewRedisQueueBackendWithOptions(addr, "", 0, key)
}

// NewRedisQueueBackendWithOptions builds a backend with full connection
// options.
func NewRedisQueueBackendWithOptions(addr, password string, db int, key string) *RedisQueueBackend {
	if key == "" {
		key = "workflow:run_queue"
	}
	return &RedisQueueBackend{addr: addr, password: password, db: db, key: key}
}

func (q *RedisQueueBackend) connect() {
	q.initOnce.Do(func() {
		q.client = redis.NewClient(&redis.Options{
			Addr:     q.addr,
			Password: q.password,
			DB:       q.db,
		})
	})
}

// Close releases the underlying Redis client connection.
func (q *RedisQueueBackend) Close() error {
	q.connect()
	return q.client.Close()
}

func (q *RedisQueueBackend) Enqueue(ctx context.Context, run *Run) error {
	q.connect()
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("redis queue: marshal run %s: %w", run.ID, err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis queue: lpush run %s: %w", run.ID, err)
	}
	return nil
}

func (q *RedisQueueBackend) Dequeue(ctx context.Context) (*Run, error) {
	q.connect()
	// BRPop blocks up to the context deadline; a zero timeout blocks
	// indefinitely, which is what we want here since cancellation is
	// carried by ctx itself.
	result, err := q.client.BRPop(ctx, 0, q.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis queue: brpop: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("redis queue: unexpected BRPOP reply shape: %v", result)
	}
	var run Run
	if err := json.Unmarshal([]byte(result[1]), &run); err != nil {
		return nil, fmt.Errorf("redis queue: unmarshal run: %w", err)
	}
	return &run, nil
}
