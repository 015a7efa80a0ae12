// Package quota tracks per-user, per-day request counts against tier limits.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/store"
)

// Unlimited is reported as the limit and remaining count of untracked tiers.
const Unlimited = -1

const dayLayout = "2006-01-02"

// Limits holds the daily request allowance per tier. A tier that is absent
// or mapped to Unlimited is not tracked.
type Limits map[model.Tier]int

// DefaultLimits are 5 requests a day for free users and 20 for premium.
func DefaultLimits() Limits {
	return Limits{
		model.TierFree:    5,
		model.TierPremium: 20,
		model.TierAdmin:   Unlimited,
	}
}

// Ledger counts requests keyed by (local calendar day, user id). A pair that
// was never incremented has no entry and counts as zero.
type Ledger struct {
	mu     sync.Mutex
	saveMu sync.Mutex
	counts map[string]map[int64]int
	tiers  TierResolver
	limits Limits
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewLedger(tiers TierResolver, limits Limits, st store.Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		counts: make(map[string]map[int64]int),
		tiers:  tiers,
		limits: limits,
		store:  st,
		logger: logger.With(slog.String("component", "quota_ledger")),
		now:    time.Now,
	}
}

// Load restores the counters saved by a previous process
func (l *Ledger) Load(ctx context.Context) error {
	var doc map[string]map[int64]int
	if err := l.store.Load(ctx, store.DocQuota, &doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load quota counters: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for day, users := range doc {
		l.counts[day] = users
	}
	return nil
}

// CanRequest reports whether the user has allowance left today. Admins
// always pass.
func (l *Ledger) CanRequest(userID int64) bool {
	limit, tracked := l.limitFor(userID)
	if !tracked {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used(l.today(), userID) < limit
}

// RecordRequest charges one unit of today's allowance without checking it
func (l *Ledger) RecordRequest(ctx context.Context, userID int64) {
	if _, tracked := l.limitFor(userID); !tracked {
		return
	}

	l.mu.Lock()
	l.charge(l.today(), userID)
	l.mu.Unlock()

	l.persist(ctx)
}

// TryCharge checks the allowance and charges one unit under a single lock,
// so concurrent requests can never push a user past the limit. It reports
// whether the request was admitted. Admins always pass and are not counted.
func (l *Ledger) TryCharge(ctx context.Context, userID int64) bool {
	limit, tracked := l.limitFor(userID)
	if !tracked {
		return true
	}

	l.mu.Lock()
	day := l.today()
	if l.used(day, userID) >= limit {
		l.mu.Unlock()
		return false
	}
	l.charge(day, userID)
	l.mu.Unlock()

	l.persist(ctx)
	return true
}

// charge increments the user's counter for day. l.mu must be held.
func (l *Ledger) charge(day string, userID int64) {
	users, ok := l.counts[day]
	if !ok {
		users = make(map[int64]int)
		l.counts[day] = users
	}
	users[userID]++
}

// Remaining returns today's unused allowance, or Unlimited
func (l *Ledger) Remaining(userID int64) int {
	limit, tracked := l.limitFor(userID)
	if !tracked {
		return Unlimited
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return max(0, limit-l.used(l.today(), userID))
}

// Snapshot describes the user's standing for today
func (l *Ledger) Snapshot(userID int64) model.User {
	tier := l.tiers.TierOf(userID)
	limit, tracked := l.limitFor(userID)
	if !tracked {
		return model.User{ID: userID, Tier: tier, Limit: Unlimited, Remaining: Unlimited}
	}

	l.mu.Lock()
	used := l.used(l.today(), userID)
	l.mu.Unlock()

	return model.User{
		ID:        userID,
		Tier:      tier,
		Limit:     limit,
		UsedToday: used,
		Remaining: max(0, limit-used),
	}
}

// PruneBefore drops counters of every day before today
func (l *Ledger) PruneBefore(ctx context.Context) int {
	l.mu.Lock()
	today := l.today()
	removed := 0
	for day := range l.counts {
		if day < today {
			delete(l.counts, day)
			removed++
		}
	}
	l.mu.Unlock()

	if removed > 0 {
		l.persist(ctx)
	}
	return removed
}

func (l *Ledger) limitFor(userID int64) (int, bool) {
	limit, ok := l.limits[l.tiers.TierOf(userID)]
	if !ok || limit == Unlimited {
		return 0, false
	}
	return limit, true
}

// used must be called with mu held
func (l *Ledger) used(day string, userID int64) int {
	return l.counts[day][userID]
}

// ResetIn is the time left until the local calendar day rolls over and
// every counter starts from zero
func (l *Ledger) ResetIn() time.Duration {
	now := l.now()
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Sub(now)
}

func (l *Ledger) today() string {
	return l.now().Format(dayLayout)
}

// persist writes the current counters. saveMu keeps snapshots and writes in
// the same order.
func (l *Ledger) persist(ctx context.Context) {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.Lock()
	doc := l.snapshot()
	l.mu.Unlock()

	if err := l.store.Save(ctx, store.DocQuota, doc); err != nil {
		l.logger.Error("failed to save quota counters", slog.String("error", err.Error()))
	}
}

// snapshot must be called with mu held
func (l *Ledger) snapshot() map[string]map[int64]int {
	out := make(map[string]map[int64]int, len(l.counts))
	for day, users := range l.counts {
		cp := make(map[int64]int, len(users))
		for id, n := range users {
			cp[id] = n
		}
		out[day] = cp
	}
	return out
}
