package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is the admission window every limiter implementation enforces.
const Window = time.Minute

// Limiter enforces a per-key requests-per-minute ceiling. Allow reports
// whether the attempt is admitted; every attempt counts against the window
// whether or not the request later passes quota checks.
type Limiter interface {
	Allow(ctx context.Context, keyValue string, limitPerMinute int) (bool, error)
}

// FixedWindowLimiter keeps one in-process counter per key, reset when the
// window's age exceeds one minute. Increment-and-compare happens under the
// lock, so concurrent bursts can never admit more than the limit.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	now func() time.Time // overridable for tests
}

type window struct {
	start time.Time
	count int
}

// NewFixedWindowLimiter creates an in-process fixed-window limiter.
func NewFixedWindowLimiter() *FixedWindowLimiter {
	return &FixedWindowLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow admits the attempt if fewer than limitPerMinute admissions happened
// in the current window. A non-positive limit always rejects.
func (l *FixedWindowLimiter) Allow(ctx context.Context, keyValue string, limitPerMinute int) (bool, error) {
	if limitPerMinute <= 0 {
		return false, nil
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[keyValue]
	if !ok || now.Sub(w.start) >= Window {
		w = &window{start: now}
		l.windows[keyValue] = w
	}

	w.count++
	return w.count <= limitPerMinute, nil
}

// Prune drops windows that have been idle longer than maxAge. Intended to be
// called periodically so the key map does not grow without bound.
func (l *FixedWindowLimiter) Prune(maxAge time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= maxAge {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
