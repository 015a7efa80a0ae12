package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/guard"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/ratelimit"
)

func newTestInfoService(engine *fakeEngine, rateLimit int) *InfoService {
	return NewInfoService(
		engine,
		guard.NewURLPolicy(500, guard.DefaultSupportedDomains, guard.DefaultBlacklistedDomains),
		ratelimit.NewMemoryLimiter(rateLimit, time.Minute),
		16,
		time.Minute,
		100,
		10,
		discardLogger(),
	)
}

func TestInfoService_CachesLookups(t *testing.T) {
	engine := &fakeEngine{}
	svc := newTestInfoService(engine, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := svc.Lookup(ctx, freeUser, testURL)
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if info.Title != "Never Gonna Give You Up" {
			t.Errorf("unexpected title %q", info.Title)
		}
	}
	if n := atomic.LoadInt32(&engine.infoCalls); n != 1 {
		t.Errorf("expected a single engine call, got %d", n)
	}
}

func TestInfoService_Gates(t *testing.T) {
	engine := &fakeEngine{}
	svc := newTestInfoService(engine, 1)
	ctx := context.Background()

	if _, err := svc.Lookup(ctx, freeUser, "https://vimeo.com/1"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.Lookup(ctx, freeUser, testURL); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if _, err := svc.Lookup(ctx, freeUser, testURL); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}
