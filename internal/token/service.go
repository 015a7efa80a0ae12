// Package token issues and redeems single-use download authorization tokens.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/store"
)

// entropyBytes is 256 bits of randomness per token
const entropyBytes = 32

type entry struct {
	UserID int64     `json:"user_id"`
	Expiry time.Time `json:"expiry"`
}

// Service keeps outstanding tokens in memory and mirrors them to the store
type Service struct {
	mu     sync.Mutex
	saveMu sync.Mutex
	tokens map[string]entry
	ttl    time.Duration
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(ttl time.Duration, st store.Store, logger *slog.Logger) *Service {
	return &Service{
		tokens: make(map[string]entry),
		ttl:    ttl,
		store:  st,
		logger: logger.With(slog.String("component", "token_service")),
		now:    time.Now,
	}
}

// Load restores unexpired tokens saved by a previous process
func (s *Service) Load(ctx context.Context) error {
	var doc map[string]entry
	if err := s.store.Load(ctx, store.DocTokens, &doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load download tokens: %w", err)
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for value, e := range doc {
		if now.Before(e.Expiry) {
			s.tokens[value] = e
		}
	}
	return nil
}

// Issue creates a token bound to userID that expires after the service TTL
func (s *Service) Issue(ctx context.Context, userID int64) (model.DownloadToken, error) {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return model.DownloadToken{}, fmt.Errorf("failed to generate token: %w", err)
	}

	tok := model.DownloadToken{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.tokens[tok.Value] = entry{UserID: tok.UserID, Expiry: tok.ExpiresAt}
	s.mu.Unlock()

	s.persist(ctx)
	return tok, nil
}

// Redeem consumes the token. It succeeds only for an unexpired token issued
// to userID. The token is removed whatever the outcome, so a value can never
// be presented twice.
func (s *Service) Redeem(ctx context.Context, value string, userID int64) bool {
	s.mu.Lock()
	e, ok := s.tokens[value]
	if ok {
		delete(s.tokens, value)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.persist(ctx)

	if e.UserID != userID {
		s.logger.Warn("token presented by another user",
			slog.Int64("owner_id", e.UserID),
			slog.Int64("user_id", userID),
		)
		return false
	}
	return s.now().Before(e.Expiry)
}

// Revoke drops a token without redeeming it. Unknown values are ignored.
func (s *Service) Revoke(ctx context.Context, value string) {
	s.mu.Lock()
	_, ok := s.tokens[value]
	delete(s.tokens, value)
	s.mu.Unlock()

	if ok {
		s.persist(ctx)
	}
}

// SweepExpired deletes every expired token and returns how many were removed
func (s *Service) SweepExpired(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for value, e := range s.tokens {
		if !now.Before(e.Expiry) {
			delete(s.tokens, value)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.persist(ctx)
	}
	return removed
}

// Outstanding is the number of tokens not yet redeemed or swept
func (s *Service) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *Service) persist(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	doc := make(map[string]entry, len(s.tokens))
	for value, e := range s.tokens {
		doc[value] = e
	}
	s.mu.Unlock()

	if err := s.store.Save(ctx, store.DocTokens, doc); err != nil {
		s.logger.Error("failed to save download tokens", slog.String("error", err.Error()))
	}
}
