package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type TokenSweeper interface {
	SweepExpired(ctx context.Context) int
}

type QuotaPruner interface {
	PruneBefore(ctx context.Context) int
}

type WindowPruner interface {
	Prune() int
}

// Reloader re-reads a document maintained outside this process
type Reloader interface {
	Load(ctx context.Context) error
}

// Janitor periodically drops expired state and reloads external documents
type Janitor struct {
	interval  time.Duration
	tokens    TokenSweeper
	quota     QuotaPruner
	windows   WindowPruner
	reloaders map[string]Reloader
	workDir   string
	staleAge  time.Duration
	logger    *slog.Logger
}

// JanitorDeps lists what the janitor maintains. Windows may be nil when the
// rate limiter keeps no local state.
type JanitorDeps struct {
	Tokens    TokenSweeper
	Quota     QuotaPruner
	Windows   WindowPruner
	Reloaders map[string]Reloader
	WorkDir   string
	StaleAge  time.Duration
}

func NewJanitor(interval time.Duration, deps JanitorDeps, logger *slog.Logger) *Janitor {
	return &Janitor{
		interval:  interval,
		tokens:    deps.Tokens,
		quota:     deps.Quota,
		windows:   deps.Windows,
		reloaders: deps.Reloaders,
		workDir:   deps.WorkDir,
		staleAge:  deps.StaleAge,
		logger:    logger.With(slog.String("component", "janitor")),
	}
}

// Run sweeps every interval until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep performs one cleanup pass
func (j *Janitor) Sweep(ctx context.Context) {
	tokens := j.tokens.SweepExpired(ctx)
	days := j.quota.PruneBefore(ctx)

	windows := 0
	if j.windows != nil {
		windows = j.windows.Prune()
	}

	for name, r := range j.reloaders {
		if err := r.Load(ctx); err != nil {
			j.logger.Error("reload failed", slog.String("document", name), slog.String("error", err.Error()))
		}
	}

	dirs := j.removeStaleDirs()

	if tokens+days+windows+dirs > 0 {
		j.logger.Info("cleanup finished",
			slog.Int("expired_tokens", tokens),
			slog.Int("quota_days", days),
			slog.Int("idle_windows", windows),
			slog.Int("stale_dirs", dirs),
		)
	}
}

// removeStaleDirs deletes job directories left behind by a crashed process
func (j *Janitor) removeStaleDirs() int {
	if j.workDir == "" || j.staleAge <= 0 {
		return 0
	}

	entries, err := os.ReadDir(j.workDir)
	if err != nil {
		j.logger.Warn("failed to read work dir", slog.String("error", err.Error()))
		return 0
	}

	cutoff := time.Now().Add(-j.staleAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "job-") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(j.workDir, e.Name())); err == nil {
			removed++
		}
	}
	return removed
}
