package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/guard"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/store"
)

type counter struct {
	calls int32
	n     int
}

func (c *counter) SweepExpired(context.Context) int { atomic.AddInt32(&c.calls, 1); return c.n }
func (c *counter) PruneBefore(context.Context) int  { atomic.AddInt32(&c.calls, 1); return c.n }
func (c *counter) Prune() int                       { atomic.AddInt32(&c.calls, 1); return c.n }

type reloader struct {
	calls int32
	err   error
}

func (r *reloader) Load(context.Context) error {
	atomic.AddInt32(&r.calls, 1)
	return r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweep_CallsEveryStep(t *testing.T) {
	tokens, quota, windows := &counter{n: 1}, &counter{}, &counter{}
	blocked, premium := &reloader{}, &reloader{err: errors.New("store down")}

	j := NewJanitor(time.Minute, JanitorDeps{
		Tokens:    tokens,
		Quota:     quota,
		Windows:   windows,
		Reloaders: map[string]Reloader{"blocked_users": blocked, "premium_users": premium},
	}, discardLogger())
	j.Sweep(context.Background())

	for name, n := range map[string]int32{
		"tokens":  tokens.calls,
		"quota":   quota.calls,
		"windows": windows.calls,
		"blocked": blocked.calls,
		"premium": premium.calls,
	} {
		if n != 1 {
			t.Errorf("%s: expected 1 call, got %d", name, n)
		}
	}
}

func TestSweep_NilWindows(t *testing.T) {
	j := NewJanitor(time.Minute, JanitorDeps{Tokens: &counter{}, Quota: &counter{}}, discardLogger())
	j.Sweep(context.Background())
}

func TestSweep_RemovesStaleJobDirs(t *testing.T) {
	workDir := t.TempDir()
	stale := filepath.Join(workDir, "job-old")
	fresh := filepath.Join(workDir, "job-new")
	other := filepath.Join(workDir, "cache")
	for _, dir := range []string{stale, fresh, other} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(other, old, old); err != nil {
		t.Fatal(err)
	}

	j := NewJanitor(time.Minute, JanitorDeps{
		Tokens:   &counter{},
		Quota:    &counter{},
		WorkDir:  workDir,
		StaleAge: time.Hour,
	}, discardLogger())
	j.Sweep(context.Background())

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale job dir should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh job dir must be kept")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-job dirs must be kept")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	tokens := &counter{}
	j := NewJanitor(5*time.Millisecond, JanitorDeps{Tokens: tokens, Quota: &counter{}}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if atomic.LoadInt32(&tokens.calls) == 0 {
		t.Error("expected at least one sweep")
	}
}

func TestSweep_ReloadsServiceSwitch(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	sw := guard.NewServiceSwitch(st, nil)

	j := NewJanitor(time.Minute, JanitorDeps{
		Tokens:    &counter{},
		Quota:     &counter{},
		Reloaders: map[string]Reloader{store.DocBotState: sw},
	}, discardLogger())

	if err := st.Save(ctx, store.DocBotState, map[string]bool{"enabled": false}); err != nil {
		t.Fatal(err)
	}
	if !sw.Enabled() {
		t.Fatal("switch should not change before a sweep")
	}
	j.Sweep(ctx)
	if sw.Enabled() {
		t.Error("sweep should pick up the disabled state")
	}
}
