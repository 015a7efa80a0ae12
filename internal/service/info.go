package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/extractor"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/guard"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/ratelimit"
)

// InfoService answers metadata lookups without downloading anything.
// Lookups share the per-user rate limiter with downloads but are not
// charged against the daily quota.
type InfoService struct {
	engine   extractor.Engine
	urls     *guard.URLPolicy
	limiter  ratelimit.Limiter
	cache    *expirable.LRU[string, *model.MediaInfo]
	throttle *rate.Limiter
	logger   *slog.Logger
}

func NewInfoService(
	engine extractor.Engine,
	urls *guard.URLPolicy,
	limiter ratelimit.Limiter,
	cacheSize int,
	cacheTTL time.Duration,
	perSecond float64,
	burst int,
	logger *slog.Logger,
) *InfoService {
	return &InfoService{
		engine:   engine,
		urls:     urls,
		limiter:  limiter,
		cache:    expirable.NewLRU[string, *model.MediaInfo](cacheSize, nil, cacheTTL),
		throttle: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:   logger.With(slog.String("component", "info_service")),
	}
}

// Lookup returns the media metadata for url
func (s *InfoService) Lookup(ctx context.Context, userID int64, url string) (*model.MediaInfo, error) {
	if err := s.urls.Check(url); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if !s.limiter.TryAcquire(userID) {
		admissionRejections.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	if info, ok := s.cache.Get(url); ok {
		return info, nil
	}

	if err := s.throttle.Wait(ctx); err != nil {
		return nil, fmt.Errorf("info lookup throttled: %w", err)
	}

	info, err := s.engine.ExtractInfo(ctx, url)
	if err != nil {
		s.logger.Warn("info lookup failed", slog.String("error", err.Error()))
		return nil, err
	}
	s.cache.Add(url, info)
	return info, nil
}
