package client

import (
	"errors"
	"testing"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/config"
)

func TestEndpointFor(t *testing.T) {
	creds := config.R2Config{AccessKeyID: "id", SecretAccessKey: "secret", BucketName: "media"}

	tests := []struct {
		name      string
		mutate    func(c *config.R2Config)
		endpoint  string
		pathStyle bool
		err       error
	}{
		{"r2 account", func(c *config.R2Config) { c.AccountID = "acc" }, "https://acc.r2.cloudflarestorage.com", false, nil},
		{"explicit endpoint", func(c *config.R2Config) { c.Endpoint = "http://minio:9000" }, "http://minio:9000", true, nil},
		{"no account", func(c *config.R2Config) {}, "", false, ErrStorageNotConfigured},
		{"no bucket", func(c *config.R2Config) { c.AccountID = "acc"; c.BucketName = "" }, "", false, ErrStorageNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := creds
			tt.mutate(&cfg)
			endpoint, pathStyle, err := endpointFor(&cfg)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if endpoint != tt.endpoint || pathStyle != tt.pathStyle {
				t.Errorf("got (%q, %v), want (%q, %v)", endpoint, pathStyle, tt.endpoint, tt.pathStyle)
			}
		})
	}
}

func TestAttachmentDisposition(t *testing.T) {
	if got := attachmentDisposition(""); got != "" {
		t.Errorf("empty name: %q", got)
	}
	if got := attachmentDisposition("clip.mp4"); got != "attachment; filename=clip.mp4" {
		t.Errorf("plain name: %q", got)
	}
}
