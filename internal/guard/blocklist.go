package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/store"
)

// Blocklist holds user ids that may not submit requests. It is maintained
// outside this service and only read here.
type Blocklist struct {
	mu      sync.RWMutex
	blocked map[int64]struct{}
	store   store.Store
}

func NewBlocklist(st store.Store) *Blocklist {
	return &Blocklist{blocked: make(map[int64]struct{}), store: st}
}

// Load replaces the in-memory set with the blocked_users document
func (b *Blocklist) Load(ctx context.Context) error {
	var ids []int64
	if err := b.store.Load(ctx, store.DocBlocked, &ids); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load blocked users: %w", err)
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	b.mu.Lock()
	b.blocked = set
	b.mu.Unlock()
	return nil
}

func (b *Blocklist) IsBlocked(userID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blocked[userID]
	return ok
}

// Len is the number of blocked users
func (b *Blocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blocked)
}
