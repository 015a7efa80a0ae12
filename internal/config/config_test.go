package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func loadWithEnv(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for k, v := range env {
		t.Setenv(k, v)
	}
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWithEnv(t, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Limits.RateLimitRequests != 10 || cfg.Limits.RateLimitWindow != time.Minute {
		t.Errorf("unexpected rate limit %d/%v", cfg.Limits.RateLimitRequests, cfg.Limits.RateLimitWindow)
	}
	if cfg.Limits.FreeDaily != 5 || cfg.Limits.PremiumDaily != 20 {
		t.Errorf("unexpected quotas %d/%d", cfg.Limits.FreeDaily, cfg.Limits.PremiumDaily)
	}
	if cfg.Limits.MaxConcurrentDownloads != 3 {
		t.Errorf("expected 3 slots, got %d", cfg.Limits.MaxConcurrentDownloads)
	}
	if cfg.Limits.TokenTTL != 10*time.Minute || cfg.Limits.JobTimeout != 600*time.Second {
		t.Errorf("unexpected ttl/timeout %v/%v", cfg.Limits.TokenTTL, cfg.Limits.JobTimeout)
	}
	if cfg.Limits.MaxFileSizeMB != 50 || cfg.Limits.MaxFilenameLength != 100 {
		t.Errorf("unexpected artifact limits %v/%d", cfg.Limits.MaxFileSizeMB, cfg.Limits.MaxFilenameLength)
	}
	if len(cfg.URLs.Supported) != 7 || cfg.URLs.Supported[2] != "youtu.be" {
		t.Errorf("unexpected supported domains %v", cfg.URLs.Supported)
	}
	if len(cfg.Admin.IDs) != 0 {
		t.Errorf("expected no admins, got %v", cfg.Admin.IDs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{
		"ADMIN_IDS":                "42, 7",
		"MAX_CONCURRENT_DOWNLOADS": "5",
		"MAX_DOWNLOAD_TIME":        "2m",
		"STORE_BACKEND":            "redis",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !reflect.DeepEqual(cfg.Admin.IDs, []int64{42, 7}) {
		t.Errorf("unexpected admin ids %v", cfg.Admin.IDs)
	}
	if cfg.Limits.MaxConcurrentDownloads != 5 || cfg.Limits.JobTimeout != 2*time.Minute {
		t.Errorf("env overrides not applied: %+v", cfg.Limits)
	}
	if cfg.Store.Backend != "redis" {
		t.Errorf("expected redis store, got %s", cfg.Store.Backend)
	}
}

func TestLoad_SecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JWT_SECRET", "")

	cfg, err := loadWithEnv(t, map[string]string{"JWT_SECRET_FILE": path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWT.Secret != "s3cret" {
		t.Errorf("expected secret from file, got %q", cfg.JWT.Secret)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"zero slots":    {"MAX_CONCURRENT_DOWNLOADS": "0"},
		"bad admin id":  {"ADMIN_IDS": "abc"},
		"bad backend":   {"STORE_BACKEND": "sqlite"},
		"bad delivery":  {"DOWNLOAD_DELIVERY": "ftp"},
		"zero file cap": {"MAX_FILE_SIZE": "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := loadWithEnv(t, env); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG") != slog.LevelDebug || parseLevel("warn") != slog.LevelWarn || parseLevel("") != slog.LevelInfo {
		t.Error("unexpected level mapping")
	}
}
