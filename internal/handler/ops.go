package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/admission"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/pkg/response"
)

type QuotaReader interface {
	Snapshot(userID int64) model.User
}

type HistoryReader interface {
	Recent(userID int64, n int) []model.HistoryEntry
}

type Counter interface {
	Len() int
}

type TokenCounter interface {
	Outstanding() int
}

// OpsHandler serves the read-only operational views
type OpsHandler struct {
	slots     *admission.Controller
	quota     QuotaReader
	history   HistoryReader
	tokens    TokenCounter
	blocklist Counter
	validator *validator.Validate
}

func NewOpsHandler(
	slots *admission.Controller,
	quota QuotaReader,
	history HistoryReader,
	tokens TokenCounter,
	blocklist Counter,
	v *validator.Validate,
) *OpsHandler {
	return &OpsHandler{
		slots:     slots,
		quota:     quota,
		history:   history,
		tokens:    tokens,
		blocklist: blocklist,
		validator: v,
	}
}

// Stats handles GET /api/stats
func (h *OpsHandler) Stats(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"activeJobs":        h.slots.Active(),
		"capacity":          h.slots.Capacity(),
		"outstandingTokens": h.tokens.Outstanding(),
		"blockedUsers":      h.blocklist.Len(),
	})
}

// Quota handles GET /api/users/:userId/quota
func (h *OpsHandler) Quota(c *fiber.Ctx) error {
	userID, ok := userIDParam(c)
	if !ok {
		return response.ValidationError(c, "Invalid user ID", nil)
	}
	return response.OK(c, h.quota.Snapshot(userID))
}

type historyQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=50"`
}

// History handles GET /api/users/:userId/history
func (h *OpsHandler) History(c *fiber.Ctx) error {
	userID, ok := userIDParam(c)
	if !ok {
		return response.ValidationError(c, "Invalid user ID", nil)
	}

	var q historyQuery
	if err := c.QueryParser(&q); err != nil {
		return response.ValidationError(c, "Invalid query", nil)
	}
	if err := h.validator.Struct(&q); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	return response.OK(c, fiber.Map{
		"userId":  userID,
		"entries": h.history.Recent(userID, q.Limit),
	})
}
