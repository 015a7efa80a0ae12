// Package guard screens requests before they reach the quota ledger.
package guard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrBlacklistedDomain   = errors.New("blacklisted domain")
	ErrSuspiciousURL       = errors.New("suspicious url")
)

// DefaultSupportedDomains are the hosts the extraction engine is used for
var DefaultSupportedDomains = []string{
	"youtube.com", "m.youtube.com", "youtu.be",
	"tiktok.com", "vm.tiktok.com", "vt.tiktok.com",
	"rutube.ru",
}

// DefaultBlacklistedDomains are refused even when otherwise supported
var DefaultBlacklistedDomains = []string{"malicious.com", "spam.org", "evil.com"}

var suspiciousPatterns = []string{
	"javascript:", "data:", "vbscript:",
	"<script>", "</script>", "%3cscript%3e", "%3c/script%3e",
	"onload=", "onerror=", "onclick=",
}

// URLPolicy decides which URLs may be handed to the engine
type URLPolicy struct {
	MaxLength   int
	Supported   []string
	Blacklisted []string
}

func NewURLPolicy(maxLength int, supported, blacklisted []string) *URLPolicy {
	return &URLPolicy{MaxLength: maxLength, Supported: supported, Blacklisted: blacklisted}
}

// Check returns nil for an acceptable URL
func (p *URLPolicy) Check(raw string) error {
	if raw == "" || len(raw) > p.MaxLength {
		return fmt.Errorf("%w: length %d", ErrInvalidURL, len(raw))
	}

	lower := strings.ToLower(raw)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(lower, pattern) {
			return ErrSuspiciousURL
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if matchDomain(host, p.Blacklisted) {
		return fmt.Errorf("%w: %s", ErrBlacklistedDomain, host)
	}
	if !matchDomain(host, p.Supported) {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, host)
	}
	return nil
}

// matchDomain reports whether host is one of domains or a subdomain of one
func matchDomain(host string, domains []string) bool {
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(d), "www.")
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
