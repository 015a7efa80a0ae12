// Package store persists whole-document key-value blobs: quota counters,
// blocked users, premium expiry, the service switch and issued download
// tokens. Each document is read once at startup and rewritten after every
// mutation.
package store

import (
	"context"
	"errors"
)

// Document names
const (
	DocQuota    = "user_requests"
	DocBlocked  = "blocked_users"
	DocPremium  = "premium_users"
	DocTokens   = "download_tokens"
	DocHistory  = "user_history"
	DocBotState = "bot_state"
)

// ErrNotFound is returned by Load when the document was never saved.
var ErrNotFound = errors.New("document not found")

// Store defines the persistence boundary for process-lifetime state
type Store interface {
	Load(ctx context.Context, doc string, v any) error
	Save(ctx context.Context, doc string, v any) error
}
