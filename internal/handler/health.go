package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Pinger is a dependency that can report its availability
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	redis          *redis.Client
	storage        Pinger
	authConfigured bool
}

// NewHealthHandler accepts nil for dependencies that are not configured
func NewHealthHandler(redisClient *redis.Client, storage Pinger, authConfigured bool) *HealthHandler {
	return &HealthHandler{
		redis:          redisClient,
		storage:        storage,
		authConfigured: authConfigured,
	}
}

// Check handles GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	redisOK := h.redis != nil && h.redis.Ping(ctx).Err() == nil
	storageOK := h.storage != nil && h.storage.Ping(ctx) == nil

	return c.JSON(fiber.Map{
		"status": "ok",
		"services": fiber.Map{
			"redis":   redisOK,
			"storage": storageOK,
			"auth":    h.authConfigured,
		},
	})
}
