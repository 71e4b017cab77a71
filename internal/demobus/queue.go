// Package demobus is the Redis-backed stand-in "bus" for cmd/demo
// (component 4.M): a minimal inbound queue that lets the demo delivery
// loop exercise the full tracker contract end to end. It is explicitly
// peripheral — the spec (§1) calls the surrounding publish/subscribe
// integration test illustrative and out of scope, and the tracker
// package itself has no import dependency on Redis. Built the way the
// teacher's internal/queue/redisclient/client.go is built.
package demobus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Pop when the queue currently has nothing to
// deliver.
var ErrEmpty = errors.New("demobus: queue empty")

// Delivery is one simulated inbound message.
type Delivery struct {
	MessageID string `json:"messageId"`
	Payload   string `json:"payload"`
	// FailUntilAttempt makes the simulated handler fail for every
	// delivery attempt strictly before this count, then succeed —
	// letting the demo exercise both the retry path and the
	// eventual-success path deterministically.
	FailUntilAttempt int `json:"failUntilAttempt"`
}

// Queue wraps a Redis list used as a FIFO inbound queue.
type Queue struct {
	rdb *redis.Client
	key string
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// New connects to Redis and returns a Queue backed by cfg.Key.
func New(cfg Config) *Queue {
	if cfg.Key == "" {
		cfg.Key = "errortracker:demo:deliveries"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &Queue{rdb: rdb, key: cfg.Key}
}

// Ping checks Redis connectivity.
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Close releases the underlying Redis client.
func (q *Queue) Close() error {
	return q.rdb.Close()
}

// Push enqueues a simulated delivery.
func (q *Queue) Push(ctx context.Context, d Delivery) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, q.key, b).Err()
}

// Pop dequeues the next simulated delivery, or ErrEmpty if none is
// available within the given timeout.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Delivery, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Delivery{}, ErrEmpty
	}
	if err != nil {
		return Delivery{}, err
	}
	if len(res) != 2 {
		return Delivery{}, ErrEmpty
	}

	var d Delivery
	if err := json.Unmarshal([]byte(res[1]), &d); err != nil {
		return Delivery{}, err
	}
	return d, nil
}

// Requeue pushes d back onto the tail of the queue for a later delivery
// attempt — the demo's stand-in for the real bus's retry scheduling,
// which is out of scope for the tracker itself (spec §1).
func (q *Queue) Requeue(ctx context.Context, d Delivery) error {
	return q.Push(ctx, d)
}
