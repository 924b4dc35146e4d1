// Package interactions tracks when each user last messaged us. WhatsApp only
// allows free-form text inside a window after the user's last message; outside
// it the reminder must go out as an approved template.
package interactions

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultWindow is the WhatsApp customer service window.
const DefaultWindow = 24 * time.Hour

const keyPrefix = "interaction:"

// Tracker records interactions and answers whether one is recent.
type Tracker interface {
	RecordInteraction(ctx context.Context, userID string, at time.Time) error
	HasRecentInteraction(ctx context.Context, userID string) bool
}

// RedisTracker stores one key per user that expires when the window closes.
type RedisTracker struct {
	rdb    redis.Cmdable
	window time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewRedisTracker creates a RedisTracker. A non-positive window uses DefaultWindow.
func NewRedisTracker(rdb redis.Cmdable, window time.Duration, log zerolog.Logger) *RedisTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisTracker{rdb: rdb, window: window, now: time.Now, log: log}
}

// RecordInteraction marks the user as active at the given time. Interactions
// already outside the window are ignored.
func (t *RedisTracker) RecordInteraction(ctx context.Context, userID string, at time.Time) error {
	ttl := t.window - t.now().Sub(at)
	if ttl <= 0 {
		return nil
	}
	if err := t.rdb.Set(ctx, keyPrefix+userID, at.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return err
	}
	return nil
}

// HasRecentInteraction reports whether the user's window is open. Redis
// failures are logged and answered with false.
func (t *RedisTracker) HasRecentInteraction(ctx context.Context, userID string) bool {
	n, err := t.rdb.Exists(ctx, keyPrefix+userID).Result()
	if err != nil {
		t.log.Warn().Err(err).Str("recipient", userID).Msg("Interaction lookup failed")
		return false
	}
	return n > 0
}

// MemoryTracker keeps interactions in process memory.
type MemoryTracker struct {
	mu     sync.RWMutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewMemoryTracker creates a MemoryTracker. A non-positive window uses DefaultWindow.
func NewMemoryTracker(window time.Duration) *MemoryTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryTracker{
		last:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// RecordInteraction keeps the latest interaction time per user.
func (t *MemoryTracker) RecordInteraction(ctx context.Context, userID string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.last[userID]; !ok || at.After(prev) {
		t.last[userID] = at
	}
	return nil
}

// HasRecentInteraction reports whether the last interaction is inside the window.
func (t *MemoryTracker) HasRecentInteraction(ctx context.Context, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	at, ok := t.last[userID]
	if !ok {
		return false
	}
	return t.now().Sub(at) < t.window
}

var (
	_ Tracker = (*RedisTracker)(nil)
	_ Tracker = (*MemoryTracker)(nil)
)
