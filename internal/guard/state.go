package guard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/store"
)

// TierResolver tells admins apart from everyone else
type TierResolver interface {
	TierOf(userID int64) model.Tier
}

type botState struct {
	Enabled bool `json:"enabled"`
}

// ServiceSwitch is the operator's on/off switch for accepting downloads.
// Like the blocklist it is written elsewhere and only read here. While the
// switch is off only admins are admitted.
type ServiceSwitch struct {
	enabled atomic.Bool
	tiers   TierResolver
	store   store.Store
}

func NewServiceSwitch(st store.Store, tiers TierResolver) *ServiceSwitch {
	s := &ServiceSwitch{tiers: tiers, store: st}
	s.enabled.Store(true)
	return s
}

// Load reads the bot_state document. A missing document or a missing field
// leaves the service enabled.
func (s *ServiceSwitch) Load(ctx context.Context) error {
	state := botState{Enabled: true}
	if err := s.store.Load(ctx, store.DocBotState, &state); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.enabled.Store(true)
			return nil
		}
		return fmt.Errorf("failed to load bot state: %w", err)
	}
	s.enabled.Store(state.Enabled)
	return nil
}

func (s *ServiceSwitch) Enabled() bool {
	return s.enabled.Load()
}

// Admits reports whether userID may submit requests right now
func (s *ServiceSwitch) Admits(userID int64) bool {
	if s.enabled.Load() {
		return true
	}
	return s.tiers != nil && s.tiers.TierOf(userID) == model.TierAdmin
}
