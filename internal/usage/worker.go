package usage

import (
	"context"
	"fmt"
	"time"

	"flowchart_gateway/internal/models"
	"flowchart_gateway/internal/queue"
	"flowchart_gateway/internal/utils"
)

// Store persists usage records. Satisfied by storage.UsageRepository.
type Store interface {
	Create(ctx context.Context, rec *models.UsageRecord) error
	CreateBatch(ctx context.Context, recs []*models.UsageRecord) error
}

// Worker drains the usage queue and writes records to the store in
// batches. Records that fail a batch insert fall back to individual
// inserts with retries; records that exhaust their retries go to the
// dead letter queue.
type Worker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	store       Store
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewWorker creates a new usage persistence worker
func NewWorker(q queue.Queue, dlq queue.DeadLetterQueue, store Store, config *queue.Config) *Worker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}

	return &Worker{
		queue:       q,
		dlq:         dlq,
		store:       store,
		config:      config,
		logger:      utils.NewLogger("usage-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// run is the main worker loop
func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Usage worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Usage worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// processBatch drains one batch from the queue and persists it
func (w *Worker) processBatch(ctx context.Context) {
	recs, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		w.logger.Error("Failed to dequeue usage records", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(recs) == 0 {
		return
	}

	w.logger.Debug("Processing usage batch", "count", len(recs))

	if err := w.store.CreateBatch(ctx, recs); err != nil {
		w.logger.Error("Failed to insert batch, falling back to individual inserts", "error", err)
		for _, rec := range recs {
			if err := w.processRecord(ctx, rec); err != nil {
				w.logger.Error("Failed to process usage record", "error", err)
			}
		}
	}
}

// processRecord persists a single record with retries
func (w *Worker) processRecord(ctx context.Context, rec *models.UsageRecord) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying usage record", "attempt", attempt, "backoff", backoff)
			time.Sleep(backoff)
		}

		if err := w.store.Create(ctx, rec); err != nil {
			lastErr = err
			w.logger.Error("Failed to insert usage record", "attempt", attempt, "error", err)
			continue
		}

		w.logger.Debug("Usage record inserted", "request_id", rec.RequestID)
		return nil
	}

	// Max retries exceeded - move to dead letter queue
	if w.dlq != nil {
		if err := w.dlq.Add(ctx, rec, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Usage record moved to DLQ",
				"request_id", rec.RequestID, "error", lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// QueueLength returns the current queue length
func (w *Worker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems returns items from the dead letter queue
func (w *Worker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a failed record from the dead letter queue
func (w *Worker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID == id {
			if err := w.queue.Enqueue(ctx, dlItem.Record); err != nil {
				return fmt.Errorf("failed to re-enqueue record: %w", err)
			}

			if err := w.dlq.Remove(ctx, id); err != nil {
				return fmt.Errorf("failed to remove from DLQ: %w", err)
			}

			return nil
		}
	}

	return queue.ErrItemNotFound
}
