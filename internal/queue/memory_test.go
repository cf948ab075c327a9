package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowchart_gateway/internal/models"
)

func testRecord(requestID string) *models.UsageRecord {
	return &models.UsageRecord{
		RequestID: requestID,
		KeyValue:  "akt_aaaaaaaaaaaaaaaaaaaaa",
		Outcome:   models.UsageOutcomeSuccess,
	}
}

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testRecord("req-1")))

	recs, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "req-1", recs[0].RequestID)
}

func TestMemoryQueue_BatchDequeue(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 5
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, testRecord("req")))
	}

	recs, err := q.Dequeue(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recs, 5)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, length)
}

func TestMemoryQueue_DequeueWithTimeout(t *testing.T) {
	t.Run("returns empty on timeout", func(t *testing.T) {
		q := NewMemoryQueue(DefaultConfig("test"))
		defer q.Close()

		start := time.Now()
		recs, err := q.DequeueWithTimeout(context.Background(), 10, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("returns available records before timeout", func(t *testing.T) {
		q := NewMemoryQueue(DefaultConfig("test"))
		defer q.Close()

		ctx := context.Background()
		require.NoError(t, q.Enqueue(ctx, testRecord("req-1")))
		require.NoError(t, q.Enqueue(ctx, testRecord("req-2")))

		recs, err := q.DequeueWithTimeout(ctx, 10, time.Second)
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	require.NoError(t, q.Close())

	ctx := context.Background()

	err := q.Enqueue(ctx, testRecord("req-1"))
	assert.True(t, errors.Is(err, ErrQueueClosed))

	_, err = q.Dequeue(ctx, 1)
	assert.True(t, errors.Is(err, ErrQueueClosed))

	// Closing twice is fine
	assert.NoError(t, q.Close())
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()

	ctx := context.Background()

	require.NoError(t, dlq.Add(ctx, testRecord("req-1"), errors.New("insert failed")))
	require.NoError(t, dlq.Add(ctx, testRecord("req-2"), errors.New("insert failed")))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "insert failed", items[0].Error)
	assert.NotEmpty(t, items[0].ID)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))

	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	err = dlq.Remove(ctx, "missing-id")
	assert.True(t, errors.Is(err, ErrItemNotFound))
}
