package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("admits up to the limit then rejects", func(t *testing.T) {
		l := NewFixedWindowLimiter()

		for i := 0; i < 5; i++ {
			allowed, err := l.Allow(ctx, "key-1", 5)
			require.NoError(t, err)
			assert.True(t, allowed, "attempt %d should be admitted", i)
		}

		allowed, err := l.Allow(ctx, "key-1", 5)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		l := NewFixedWindowLimiter()

		allowed, err := l.Allow(ctx, "key-a", 1)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = l.Allow(ctx, "key-a", 1)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, err = l.Allow(ctx, "key-b", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("zero and negative limits always reject", func(t *testing.T) {
		l := NewFixedWindowLimiter()

		allowed, err := l.Allow(ctx, "key-zero", 0)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, err = l.Allow(ctx, "key-neg", -1)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("window resets after one minute", func(t *testing.T) {
		l := NewFixedWindowLimiter()
		current := time.Now()
		l.now = func() time.Time { return current }

		allowed, err := l.Allow(ctx, "key-reset", 1)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = l.Allow(ctx, "key-reset", 1)
		require.NoError(t, err)
		assert.False(t, allowed)

		current = current.Add(Window + time.Second)

		allowed, err = l.Allow(ctx, "key-reset", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("concurrent burst admits exactly the limit", func(t *testing.T) {
		l := NewFixedWindowLimiter()
		const limit = 10
		const attempts = 25

		var admitted int64
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				allowed, err := l.Allow(ctx, "key-burst", limit)
				assert.NoError(t, err)
				if allowed {
					atomic.AddInt64(&admitted, 1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(limit), admitted)
	})
}

func TestFixedWindowLimiter_Prune(t *testing.T) {
	l := NewFixedWindowLimiter()
	current := time.Now()
	l.now = func() time.Time { return current }

	ctx := context.Background()
	_, err := l.Allow(ctx, "stale", 5)
	require.NoError(t, err)
	_, err = l.Allow(ctx, "fresh", 5)
	require.NoError(t, err)

	current = current.Add(10 * time.Minute)
	_, err = l.Allow(ctx, "fresh", 5)
	require.NoError(t, err)

	removed := l.Prune(5 * time.Minute)
	assert.Equal(t, 1, removed)
}
