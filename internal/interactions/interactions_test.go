package interactions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dvloznov/finance-reminders/internal/logger"
)

func TestRedisTracker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	tracker := NewRedisTracker(rdb, 24*time.Hour, logger.NewWithWriter(io.Discard))
	tracker.now = func() time.Time { return now }
	ctx := context.Background()

	if tracker.HasRecentInteraction(ctx, "5511") {
		t.Fatal("HasRecentInteraction() = true before any interaction")
	}

	if err := tracker.RecordInteraction(ctx, "5511", now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("RecordInteraction() error = %v", err)
	}
	if !tracker.HasRecentInteraction(ctx, "5511") {
		t.Error("HasRecentInteraction() = false right after an interaction")
	}
	if ttl := mr.TTL(keyPrefix + "5511"); ttl != 22*time.Hour {
		t.Errorf("TTL = %v, want 22h", ttl)
	}

	mr.FastForward(23 * time.Hour)
	if tracker.HasRecentInteraction(ctx, "5511") {
		t.Error("HasRecentInteraction() = true after the window closed")
	}

	if err := tracker.RecordInteraction(ctx, "5522", now.Add(-25*time.Hour)); err != nil {
		t.Fatalf("RecordInteraction() error = %v", err)
	}
	if mr.Exists(keyPrefix + "5522") {
		t.Error("an interaction outside the window was stored")
	}
}

func TestRedisTracker_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	tracker := NewRedisTracker(rdb, 0, logger.NewWithWriter(io.Discard))
	if tracker.window != DefaultWindow {
		t.Errorf("window = %v, want %v", tracker.window, DefaultWindow)
	}
	if tracker.HasRecentInteraction(context.Background(), "5511") {
		t.Error("HasRecentInteraction() = true with Redis down")
	}
}

func TestMemoryTracker(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	tracker := NewMemoryTracker(time.Hour)
	tracker.now = func() time.Time { return now }
	ctx := context.Background()

	_ = tracker.RecordInteraction(ctx, "5511", now.Add(-30*time.Minute))
	_ = tracker.RecordInteraction(ctx, "5511", now.Add(-3*time.Hour))
	_ = tracker.RecordInteraction(ctx, "5522", now.Add(-2*time.Hour))

	if !tracker.HasRecentInteraction(ctx, "5511") {
		t.Error("5511: an older record replaced a newer one")
	}
	if tracker.HasRecentInteraction(ctx, "5522") {
		t.Error("5522: interaction outside the window reported as recent")
	}
	if tracker.HasRecentInteraction(ctx, "5533") {
		t.Error("5533: unknown user reported as recent")
	}
}
