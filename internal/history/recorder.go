// Package history keeps the most recent downloads of every user.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/store"
)

// DefaultLimit is the number of entries kept per user
const DefaultLimit = 50

type Recorder struct {
	mu      sync.Mutex
	saveMu  sync.Mutex
	entries map[int64][]model.HistoryEntry
	limit   int
	store   store.Store
	logger  *slog.Logger
}

func NewRecorder(limit int, st store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		entries: make(map[int64][]model.HistoryEntry),
		limit:   limit,
		store:   st,
		logger:  logger.With(slog.String("component", "history")),
	}
}

func (r *Recorder) Load(ctx context.Context) error {
	var doc map[int64][]model.HistoryEntry
	if err := r.store.Load(ctx, store.DocHistory, &doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load history: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, list := range doc {
		r.entries[id] = list
	}
	return nil
}

// Record appends an entry and drops the oldest ones beyond the limit
func (r *Recorder) Record(ctx context.Context, userID int64, e model.HistoryEntry) {
	r.mu.Lock()
	list := append(r.entries[userID], e)
	if len(list) > r.limit {
		list = append([]model.HistoryEntry(nil), list[len(list)-r.limit:]...)
	}
	r.entries[userID] = list
	r.mu.Unlock()

	r.persist(ctx)
}

// Recent returns up to n entries, newest first. n <= 0 returns all of them.
func (r *Recorder) Recent(userID int64, n int) []model.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[userID]
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	out := make([]model.HistoryEntry, 0, n)
	for i := len(list) - 1; i >= len(list)-n; i-- {
		out = append(out, list[i])
	}
	return out
}

func (r *Recorder) persist(ctx context.Context) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	doc := make(map[int64][]model.HistoryEntry, len(r.entries))
	for id, list := range r.entries {
		doc[id] = append([]model.HistoryEntry(nil), list...)
	}
	r.mu.Unlock()

	if err := r.store.Save(ctx, store.DocHistory, doc); err != nil {
		r.logger.Error("failed to save history", slog.String("error", err.Error()))
	}
}
