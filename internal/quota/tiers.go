package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/store"
)

// TierResolver maps a user to their service class
type TierResolver interface {
	TierOf(userID int64) model.Tier
}

// Subscriptions resolves tiers from the configured admin ids and the premium
// expiry document maintained by the subscription store.
type Subscriptions struct {
	mu      sync.RWMutex
	admins  map[int64]struct{}
	premium map[int64]time.Time
	store   store.Store
	now     func() time.Time
}

func NewSubscriptions(adminIDs []int64, st store.Store) *Subscriptions {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Subscriptions{
		admins:  admins,
		premium: make(map[int64]time.Time),
		store:   st,
		now:     time.Now,
	}
}

// Load replaces the premium set with the stored one, skipping expired entries.
// The document maps user id to a unix expiry timestamp.
func (s *Subscriptions) Load(ctx context.Context) error {
	var doc map[int64]float64
	if err := s.store.Load(ctx, store.DocPremium, &doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load premium users: %w", err)
	}

	now := s.now()
	premium := make(map[int64]time.Time, len(doc))
	for userID, expiry := range doc {
		until := time.Unix(0, int64(expiry*float64(time.Second)))
		if now.Before(until) {
			premium[userID] = until
		}
	}

	s.mu.Lock()
	s.premium = premium
	s.mu.Unlock()
	return nil
}

// TierOf returns admin, then unexpired premium, then free
func (s *Subscriptions) TierOf(userID int64) model.Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.admins[userID]; ok {
		return model.TierAdmin
	}
	if until, ok := s.premium[userID]; ok && s.now().Before(until) {
		return model.TierPremium
	}
	return model.TierFree
}
