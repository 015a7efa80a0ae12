package handler

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/service"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/pkg/response"
)

// JobRunner is the orchestrator's entry points
type JobRunner interface {
	DownloadVideoAuto(ctx context.Context, userID int64, url string, d service.Deliverer) (model.JobResult, error)
	DownloadVideoQuality(ctx context.Context, userID int64, url string, quality model.Quality, d service.Deliverer) (model.JobResult, error)
	DownloadAudio(ctx context.Context, userID int64, url string, d service.Deliverer) (model.JobResult, error)
}

type InfoLookup interface {
	Lookup(ctx context.Context, userID int64, url string) (*model.MediaInfo, error)
}

type RemainingReader interface {
	Remaining(userID int64) int
	ResetIn() time.Duration
}

// JobHandler lets operators run jobs on behalf of a user
type JobHandler struct {
	jobs       JobRunner
	info       InfoLookup
	quota      RemainingReader
	rateWindow time.Duration
	validator  *validator.Validate
}

// NewJobHandler takes the rate limiter window to advertise as Retry-After
func NewJobHandler(jobs JobRunner, info InfoLookup, quota RemainingReader, rateWindow time.Duration, v *validator.Validate) *JobHandler {
	return &JobHandler{
		jobs:       jobs,
		info:       info,
		quota:      quota,
		rateWindow: rateWindow,
		validator:  v,
	}
}

// Create handles POST /api/jobs. The job runs to completion before the
// response is written.
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req model.JobSubmission
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	quality, err := model.ParseQuality(req.Quality)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	var res model.JobResult
	switch {
	case req.Kind == model.MediaAudio:
		res, err = h.jobs.DownloadAudio(c.Context(), req.UserID, req.URL, nil)
	case quality == model.QualityAuto:
		res, err = h.jobs.DownloadVideoAuto(c.Context(), req.UserID, req.URL, nil)
	default:
		res, err = h.jobs.DownloadVideoQuality(c.Context(), req.UserID, req.URL, quality, nil)
	}
	if err != nil {
		return h.admissionError(c, req.UserID, err)
	}
	return response.OK(c, res)
}

// Info handles GET /api/info?userId=&url=
func (h *JobHandler) Info(c *fiber.Ctx) error {
	var q struct {
		UserID int64  `query:"userId" validate:"required,gt=0"`
		URL    string `query:"url" validate:"required,url,max=500"`
	}
	if err := c.QueryParser(&q); err != nil {
		return response.ValidationError(c, "Invalid query", nil)
	}
	if err := h.validator.Struct(&q); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	info, err := h.info.Lookup(c.Context(), q.UserID, q.URL)
	if err != nil {
		if errors.Is(err, service.ErrRateLimited) || errors.Is(err, service.ErrInvalidRequest) {
			return h.admissionError(c, q.UserID, err)
		}
		return response.EngineError(c, "Failed to fetch media info")
	}
	return response.OK(c, info)
}

func (h *JobHandler) admissionError(c *fiber.Ctx, userID int64, err error) error {
	switch {
	case errors.Is(err, service.ErrRateLimited):
		return response.RateLimited(c, h.rateWindow)
	case errors.Is(err, service.ErrQuotaExceeded):
		return response.QuotaExceeded(c, h.quota.Remaining(userID), h.quota.ResetIn())
	case errors.Is(err, service.ErrUserBlocked):
		return response.Forbidden(c, "User is blocked")
	case errors.Is(err, service.ErrServiceDisabled):
		return response.Unavailable(c, "Service is temporarily disabled")
	case errors.Is(err, service.ErrInvalidRequest):
		return response.ValidationError(c, err.Error(), nil)
	default:
		return response.ServiceError(c, err.Error())
	}
}
