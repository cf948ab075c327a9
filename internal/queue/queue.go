package queue

import (
	"context"
	"time"

	"flowchart_gateway/internal/models"
)

// Package queue buffers usage records between the request path and the
// persistence worker. Two backends are available:
//
//  1. Memory queue (channel-based): no persistence, records are lost on
//     restart. Suitable for standalone deployments.
//  2. Redis queue (list-based): survives restarts and supports workers
//     running in separate processes.
//
// Either way the request path only ever enqueues; writing records to the
// database is the worker's job, in batches, with retries and a dead-letter
// queue for records that repeatedly fail to persist.

// Queue is a FIFO buffer of usage records.
type Queue interface {
	// Enqueue adds a record to the queue
	Enqueue(ctx context.Context, rec *models.UsageRecord) error

	// Dequeue retrieves up to maxItems records, blocking until at least
	// one is available or the context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]*models.UsageRecord, error)

	// DequeueWithTimeout retrieves up to maxItems records, returning an
	// empty slice if none arrive before the timeout
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.UsageRecord, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue holds records that could not be persisted after retries.
type DeadLetterQueue interface {
	// Add stores a failed record together with the error that killed it
	Add(ctx context.Context, rec *models.UsageRecord, err error) error

	// List retrieves up to maxItems dead letter entries
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove deletes a dead letter entry by ID
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem is a usage record that exhausted its retries.
type DeadLetterItem struct {
	ID        string              `json:"id"`
	Record    *models.UsageRecord `json:"record"`
	Error     string              `json:"error"`
	Timestamp time.Time           `json:"timestamp"`
	Retries   int                 `json:"retries"`
}

// Config holds queue configuration
type Config struct {
	// QueueName is the name/key for the queue
	QueueName string

	// BatchSize is the maximum number of records per batch
	BatchSize int

	// BatchTimeout is how long to wait before flushing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of persistence attempts per batch
	MaxRetries int

	// RetryBackoff is the initial backoff duration between attempts
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend over the in-memory one
	UseRedis bool

	// RedisAddr is the Redis server address (if UseRedis is true)
	RedisAddr string

	// RedisPassword is the Redis password (if UseRedis is true)
	RedisPassword string

	// RedisDB is the Redis database number (if UseRedis is true)
	RedisDB int
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		QueueName:    queueName,
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
	}
}
