package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestFileStore_LoadMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	var v map[string]int
	if err := s.Load(context.Background(), DocQuota, &v); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := s.Save(ctx, DocBlocked, []int64{1, 2}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, DocBlocked, []int64{3}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var got []int64
	if err := s.Load(ctx, DocBlocked, &got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0] != 3 {
		t.Errorf("expected [3], got %v", got)
	}
}

func TestFileStore_IntegerMapKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	in := map[string]map[int64]int{"2026-10-16": {42: 3}}
	if err := s.Save(ctx, DocQuota, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var out map[string]map[int64]int
	if err := s.Load(ctx, DocQuota, &out); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out["2026-10-16"][42] != 3 {
		t.Errorf("expected count 3, got %v", out)
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	s := NewRedisStore(client, "test:store:")
	t.Cleanup(func() { client.Del(context.Background(), "test:store:"+DocPremium) })

	if err := s.Save(ctx, DocPremium, map[int64]int64{7: 1900000000}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	var got map[int64]int64
	if err := s.Load(ctx, DocPremium, &got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got[7] != 1900000000 {
		t.Errorf("unexpected document: %v", got)
	}

	var missing []int64
	if err := s.Load(ctx, "does-not-exist", &missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
