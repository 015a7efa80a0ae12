// Package ratelimit throttles how often a single user may start requests,
// independently of the daily quota.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter decides whether a user's request attempt may proceed
type Limiter interface {
	TryAcquire(userID int64) bool
}

// MemoryLimiter keeps, per user, the timestamps of accepted attempts within
// the trailing window.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[int64][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewMemoryLimiter allows at most limit attempts per user within window
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[int64][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// TryAcquire records the attempt and returns true if the user is below the
// limit. A refused attempt is not recorded.
func (l *MemoryLimiter) TryAcquire(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.trim(l.windows[userID], now)
	if len(recent) >= l.limit {
		l.windows[userID] = recent
		return false
	}
	l.windows[userID] = append(recent, now)
	return true
}

// Prune forgets users whose window has fully elapsed
func (l *MemoryLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for userID, stamps := range l.windows {
		if len(l.trim(stamps, now)) == 0 {
			delete(l.windows, userID)
			removed++
		}
	}
	return removed
}

// trim drops timestamps that are at least one window old. Timestamps are
// appended in order, so the survivors are a suffix.
func (l *MemoryLimiter) trim(stamps []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= l.window {
		i++
	}
	return stamps[i:]
}
