package queue

import (
	"context"
	"sync"
	"time"

	"flowchart_gateway/internal/models"
)

// MemoryQueue implements Queue using an in-memory channel
type MemoryQueue struct {
	records chan *models.UsageRecord
	mu      sync.RWMutex
	closed  bool
	config  *Config
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	return &MemoryQueue{
		records: make(chan *models.UsageRecord, config.BatchSize*10), // Buffer for 10 batches
		config:  config,
	}
}

// Enqueue adds a record to the queue
func (q *MemoryQueue) Enqueue(ctx context.Context, rec *models.UsageRecord) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.records <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue retrieves records from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]*models.UsageRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var recs []*models.UsageRecord

	// Block until we get at least one record
	select {
	case rec := <-q.records:
		recs = append(recs, rec)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Drain more without blocking
	for len(recs) < maxItems {
		select {
		case rec := <-q.records:
			recs = append(recs, rec)
		default:
			return recs, nil
		}
	}

	return recs, nil
}

// DequeueWithTimeout retrieves records with a timeout
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.UsageRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var recs []*models.UsageRecord
	deadline := time.After(timeout)

	select {
	case rec := <-q.records:
		recs = append(recs, rec)
	case <-deadline:
		return recs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Drain more without blocking
	for len(recs) < maxItems {
		select {
		case rec := <-q.records:
			recs = append(recs, rec)
		default:
			return recs, nil
		}
	}

	return recs, nil
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	return len(q.records), nil
}

// Close shuts down the queue
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.records)
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue using in-memory storage
type MemoryDeadLetterQueue struct {
	items  []DeadLetterItem
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDeadLetterQueue creates a new in-memory dead letter queue
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		items: make([]DeadLetterItem, 0),
	}
}

// Add adds a failed record to the dead letter queue
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, rec *models.UsageRecord, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, DeadLetterItem{
		ID:        generateID(),
		Record:    rec,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
	return nil
}

// List retrieves items from the dead letter queue
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove removes an item from the dead letter queue
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}

	return ErrItemNotFound
}

// Close shuts down the dead letter queue
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

// generateID generates a unique ID for dead letter items
func generateID() string {
	return time.Now().Format("20060102150405.000000")
}
