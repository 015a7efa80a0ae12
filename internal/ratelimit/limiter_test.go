package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(limit int) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.Local)}
	l := NewMemoryLimiter(limit, time.Minute)
	l.now = clock.Now
	return l, clock
}

func TestMemoryLimiter_AllowsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(10)

	for i := 0; i < 10; i++ {
		if !l.TryAcquire(1) {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.TryAcquire(1) {
		t.Error("11th attempt within the window should be refused")
	}
	if !l.TryAcquire(2) {
		t.Error("another user must not be affected")
	}
}

func TestMemoryLimiter_RefusedAttemptIsNotRecorded(t *testing.T) {
	l, clock := newTestLimiter(2)

	l.TryAcquire(1)
	clock.Advance(30 * time.Second)
	l.TryAcquire(1)

	// Refused attempts must not extend the window.
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		if l.TryAcquire(1) {
			t.Fatal("expected refusal while window is full")
		}
	}

	// First stamp is now 60s old and drops out.
	clock.Advance(25 * time.Second)
	if !l.TryAcquire(1) {
		t.Error("expected a slot once the oldest attempt left the window")
	}
}

func TestMemoryLimiter_Prune(t *testing.T) {
	l, clock := newTestLimiter(3)

	l.TryAcquire(1)
	l.TryAcquire(2)
	clock.Advance(90 * time.Second)
	l.TryAcquire(2)

	if removed := l.Prune(); removed != 1 {
		t.Errorf("expected 1 idle user pruned, got %d", removed)
	}
	if _, ok := l.windows[1]; ok {
		t.Error("user 1 should have been pruned")
	}
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire(7) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("expected exactly 10 allowed, got %d", allowed)
	}
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	const userID = 990001
	client.Del(ctx, "ratelimit:requests:990001")
	t.Cleanup(func() { client.Del(context.Background(), "ratelimit:requests:990001") })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewRedisLimiter(client, 3, time.Minute, logger)
	clock := &fakeClock{now: time.Now()}
	l.now = clock.Now

	for i := 0; i < 3; i++ {
		if !l.TryAcquire(userID) {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		clock.Advance(time.Millisecond)
	}
	if l.TryAcquire(userID) {
		t.Error("4th attempt should be refused")
	}

	clock.Advance(time.Minute)
	if !l.TryAcquire(userID) {
		t.Error("expected a slot after the window elapsed")
	}
}
